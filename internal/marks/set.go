package marks

import (
	"math"
	"sort"
)

// Epsilon is the tolerance under which two marks of the same kind are the same mark.
const Epsilon = 0.0005

// Round snaps t to whole milliseconds.
func Round(t float64) float64 {
	return math.Round(t*1000) / 1000
}

func valid(t float64) bool {
	return !math.IsNaN(t) && !math.IsInf(t, 0) && t >= 0
}

func near(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// Set is an ascending, epsilon-deduplicated list of mark times.
// The zero value is an empty set.
type Set struct {
	values []float64
}

// NewSet builds a set from arbitrary input, dropping invalid and duplicate times.
func NewSet(values ...float64) Set {
	var s Set
	for _, v := range values {
		s.Add(v)
	}
	return s
}

func (s *Set) find(t float64) int {
	i := sort.SearchFloat64s(s.values, t-Epsilon)
	for ; i < len(s.values) && s.values[i] < t+Epsilon; i++ {
		if near(s.values[i], t) {
			return i
		}
	}
	return -1
}

// Add inserts t unless a mark already exists within Epsilon of it. The stored
// value is snapped to whole milliseconds when the snapped time stays within
// Epsilon of t and clear of every other mark; otherwise t is kept as given.
func (s *Set) Add(t float64) bool {
	if !valid(t) {
		return false
	}
	if s.find(t) >= 0 {
		return false
	}
	if r := Round(t); near(r, t) && s.find(r) < 0 {
		t = r
	}
	i := sort.SearchFloat64s(s.values, t)
	s.values = append(s.values, 0)
	copy(s.values[i+1:], s.values[i:])
	s.values[i] = t
	return true
}

// Remove deletes the mark within Epsilon of t.
func (s *Set) Remove(t float64) bool {
	if !valid(t) {
		return false
	}
	i := s.find(t)
	if i < 0 {
		return false
	}
	s.values = append(s.values[:i], s.values[i+1:]...)
	return true
}

// Toggle removes the mark at t if present, otherwise adds it. It reports
// whether a mark was added.
func (s *Set) Toggle(t float64) bool {
	if s.Remove(t) {
		return false
	}
	return s.Add(t)
}

func (s *Set) Contains(t float64) bool {
	return valid(t) && s.find(t) >= 0
}

// Before returns the greatest mark strictly before t.
func (s *Set) Before(t float64) (float64, bool) {
	i := sort.SearchFloat64s(s.values, t)
	if i == 0 {
		return 0, false
	}
	return s.values[i-1], true
}

// AtOrAfter returns the smallest mark at or after t.
func (s *Set) AtOrAfter(t float64) (float64, bool) {
	i := sort.SearchFloat64s(s.values, t)
	if i == len(s.values) {
		return 0, false
	}
	return s.values[i], true
}

// After returns the smallest mark strictly after t.
func (s *Set) After(t float64) (float64, bool) {
	i := sort.Search(len(s.values), func(i int) bool { return s.values[i] > t })
	if i == len(s.values) {
		return 0, false
	}
	return s.values[i], true
}

func (s *Set) Len() int { return len(s.values) }

// Values returns a copy of the marks in ascending order.
func (s *Set) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

func (s *Set) clear() { s.values = nil }
