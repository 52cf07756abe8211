// Package marks owns the Start and End mark sets of the loaded video and
// persists them through a storage.KV.
package marks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mgpai22/shadowplay/internal/logging"
	"github.com/mgpai22/shadowplay/internal/metrics"
	"github.com/mgpai22/shadowplay/internal/storage"
)

// Record is the persisted form of a mark set pair.
type Record struct {
	Starts []float64 `json:"starts"`
	Ends   []float64 `json:"ends"`
}

// DecodeRecord parses a stored value. Invalid times are dropped and both
// lists come back sorted and deduplicated.
func DecodeRecord(raw string) (Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("decode marks: %w", err)
	}
	starts, ends := NewSet(rec.Starts...), NewSet(rec.Ends...)
	return Record{Starts: starts.Values(), Ends: ends.Values()}, nil
}

func (r Record) Empty() bool {
	return len(r.Starts) == 0 && len(r.Ends) == 0
}

// Segment is an End mark paired with the nearest Start strictly before it.
type Segment struct {
	Start float64
	End   float64
}

// Store holds the marks for one Key at a time.
//
// Writes are suppressed until Load has finished for the current key, so a
// transient empty state never overwrites a stored entry.
type Store struct {
	mu     sync.Mutex
	kv     storage.KV
	logger *logging.Logger

	key    Key
	starts Set
	ends   Set
	ready  bool
}

// NewStore returns a store backed by kv. A nil kv keeps marks in memory only.
func NewStore(kv storage.KV, logger *logging.Logger) *Store {
	return &Store{kv: kv, logger: logging.OrNop(logger).Named("marks")}
}

// Load switches the store to key. When no entry exists for key, the entry
// of the same video without a subtitle is used instead. It reports whether
// any stored entry was found. Corrupt or unreadable entries load as empty.
func (s *Store) Load(ctx context.Context, key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ready = false
	s.key = key
	s.starts.clear()
	s.ends.clear()
	defer func() { s.ready = true }()

	if s.kv == nil {
		return false
	}

	candidates := []Key{key}
	if key.HasSubtitle() {
		candidates = append(candidates, key.Fallback())
	}

	for _, k := range candidates {
		raw, ok, err := s.kv.Get(ctx, k.String())
		if err != nil {
			s.logger.Warnw("Failed to read marks, starting empty",
				"key", k.String(),
				"error", err,
			)
			return false
		}
		if !ok {
			continue
		}
		rec, err := DecodeRecord(raw)
		if err != nil {
			s.logger.Warnw("Ignoring corrupt marks entry",
				"key", k.String(),
				"error", err,
			)
			return false
		}
		s.starts = NewSet(rec.Starts...)
		s.ends = NewSet(rec.Ends...)
		s.logger.Debugw("Loaded marks",
			"key", k.String(),
			"fallback", k != key,
			"starts", s.starts.Len(),
			"ends", s.ends.Len(),
		)
		return true
	}
	return false
}

func (s *Store) Key() Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Ready reports whether Load has completed for the current key.
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Store) set(kind Kind) *Set {
	if kind == End {
		return &s.ends
	}
	return &s.starts
}

// Toggle adds a mark of kind at t, or removes the existing one within Epsilon.
func (s *Store) Toggle(ctx context.Context, kind Kind, t float64) (added bool, err error) {
	if !valid(t) {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	added = s.set(kind).Toggle(t)
	result := "removed"
	if added {
		result = "added"
	}
	metrics.MarkTogglesTotal.WithLabelValues(kind.String(), result).Inc()
	return added, s.persist(ctx)
}

func (s *Store) ToggleStart(ctx context.Context, t float64) (bool, error) {
	return s.Toggle(ctx, Start, t)
}

func (s *Store) ToggleEnd(ctx context.Context, t float64) (bool, error) {
	return s.Toggle(ctx, End, t)
}

// Remove deletes the mark of kind within Epsilon of t.
func (s *Store) Remove(ctx context.Context, kind Kind, t float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.set(kind).Remove(t) {
		return false, nil
	}
	return true, s.persist(ctx)
}

// Replace moves the mark at from to to, keeping the set sorted. It reports
// false when no mark exists at from or to is not a valid time.
func (s *Store) Replace(ctx context.Context, kind Kind, from, to float64) (bool, error) {
	if !valid(to) {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.set(kind)
	if !set.Remove(from) {
		return false, nil
	}
	set.Add(to)
	return true, s.persist(ctx)
}

// Clear removes every mark of the current key.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.starts.clear()
	s.ends.clear()
	return s.persist(ctx)
}

// RemoveClosestFuture removes the nearest Start or End mark strictly after t
// and no further than window seconds away. Starts win ties.
func (s *Store) RemoveClosestFuture(ctx context.Context, t, window float64) (Kind, float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind, at, found := Start, 0.0, false
	if v, ok := s.starts.After(t); ok && v-t <= window {
		at, found = v, true
	}
	if v, ok := s.ends.After(t); ok && v-t <= window && (!found || v < at) {
		kind, at, found = End, v, true
	}
	if !found {
		return 0, 0, false, nil
	}
	s.set(kind).Remove(at)
	return kind, at, true, s.persist(ctx)
}

// PrecedingStart returns the nearest Start mark strictly before t.
func (s *Store) PrecedingStart(t float64) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts.Before(t)
}

// FollowingStart returns the nearest Start mark at or after t.
func (s *Store) FollowingStart(t float64) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts.AtOrAfter(t)
}

func (s *Store) Starts() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts.Values()
}

func (s *Store) Ends() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ends.Values()
}

// Record returns a copy of the current marks.
func (s *Store) Record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Record{Starts: s.starts.Values(), Ends: s.ends.Values()}
}

// Segments pairs each End mark with the nearest Start strictly before it.
// Ends without such a Start are skipped.
func (s *Store) Segments() []Segment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Segment
	for _, end := range s.ends.values {
		if start, ok := s.starts.Before(end); ok {
			out = append(out, Segment{Start: start, End: end})
		}
	}
	return out
}

// persist writes the current marks under the current key. Callers hold mu.
func (s *Store) persist(ctx context.Context) error {
	if !s.ready || s.kv == nil {
		return nil
	}
	raw, err := json.Marshal(Record{Starts: s.starts.Values(), Ends: s.ends.Values()})
	if err != nil {
		return fmt.Errorf("encode marks: %w", err)
	}
	if err := s.kv.Set(ctx, s.key.String(), string(raw)); err != nil {
		s.logger.Errorw("Failed to save marks",
			"key", s.key.String(),
			"error", err,
		)
		return fmt.Errorf("save marks: %w", err)
	}
	return nil
}
