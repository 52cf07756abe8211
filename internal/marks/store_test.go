package marks

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/mgpai22/shadowplay/internal/storage"
)

type countingKV struct {
	storage.KV
	sets    int
	failGet bool
	failSet bool
}

func (c *countingKV) Get(ctx context.Context, key string) (string, bool, error) {
	if c.failGet {
		return "", false, errors.New("disk on fire")
	}
	return c.KV.Get(ctx, key)
}

func (c *countingKV) Set(ctx context.Context, key, value string) error {
	c.sets++
	if c.failSet {
		return errors.New("disk full")
	}
	return c.KV.Set(ctx, key, value)
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	key := Key{Video: "a.mp4", Subtitle: "a.vtt"}

	s := NewStore(kv, nil)
	s.Load(ctx, key)
	for _, v := range []float64{40, 10, 25} {
		if _, err := s.ToggleStart(ctx, v); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.ToggleEnd(ctx, 35); err != nil {
		t.Fatal(err)
	}

	reloaded := NewStore(kv, nil)
	if !reloaded.Load(ctx, key) {
		t.Fatal("expected stored entry to be found")
	}
	if got := reloaded.Starts(); !reflect.DeepEqual(got, []float64{10, 25, 40}) {
		t.Errorf("unexpected starts %v", got)
	}
	if got := reloaded.Ends(); !reflect.DeepEqual(got, []float64{35}) {
		t.Errorf("unexpected ends %v", got)
	}

	other := NewStore(kv, nil)
	if other.Load(ctx, Key{Video: "b.mp4", Subtitle: "a.vtt"}) {
		t.Error("different video must not see a.mp4 marks")
	}
	if other.Load(ctx, Key{Video: "a.mp4", Subtitle: "b.vtt"}) {
		t.Error("different subtitle without a none entry must not see a.mp4::a.vtt marks")
	}
}

func TestLoadFallsBackToNoneSubtitle(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	_ = kv.Set(ctx, "marks:a.mp4::none", `{"starts":[1,2],"ends":[3]}`)

	s := NewStore(kv, nil)
	if !s.Load(ctx, Key{Video: "a.mp4", Subtitle: "a.vtt"}) {
		t.Fatal("expected fallback entry")
	}
	if got := s.Starts(); !reflect.DeepEqual(got, []float64{1, 2}) {
		t.Errorf("unexpected starts %v", got)
	}

	// changes persist under the exact key, leaving the fallback entry alone
	if _, err := s.ToggleEnd(ctx, 4); err != nil {
		t.Fatal(err)
	}
	raw, _, _ := kv.Get(ctx, "marks:a.mp4::none")
	if raw != `{"starts":[1,2],"ends":[3]}` {
		t.Errorf("fallback entry was modified: %s", raw)
	}
	raw, ok, _ := kv.Get(ctx, "marks:a.mp4::a.vtt")
	if !ok || raw != `{"starts":[1,2],"ends":[3,4]}` {
		t.Errorf("unexpected exact entry %q", raw)
	}
}

func TestExactEntryWinsOverFallback(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	_ = kv.Set(ctx, "marks:a.mp4::none", `{"starts":[1],"ends":[]}`)
	_ = kv.Set(ctx, "marks:a.mp4::a.vtt", `{"starts":[7],"ends":[]}`)

	s := NewStore(kv, nil)
	s.Load(ctx, Key{Video: "a.mp4", Subtitle: "a.vtt"})
	if got := s.Starts(); !reflect.DeepEqual(got, []float64{7}) {
		t.Errorf("expected exact entry, got %v", got)
	}
}

func TestCorruptEntryLoadsEmptyWithoutWriteBack(t *testing.T) {
	ctx := context.Background()
	kv := &countingKV{KV: storage.NewMemory()}
	_ = kv.KV.Set(ctx, "marks:a.mp4::none", "{garbage")

	s := NewStore(kv, nil)
	if s.Load(ctx, Key{Video: "a.mp4"}) {
		t.Error("corrupt entry should not count as found")
	}
	if !s.Record().Empty() {
		t.Error("expected empty marks after corrupt load")
	}
	if kv.sets != 0 {
		t.Errorf("expected no write-back, got %d writes", kv.sets)
	}
	raw, _, _ := kv.Get(ctx, "marks:a.mp4::none")
	if raw != "{garbage" {
		t.Errorf("stored value was overwritten: %q", raw)
	}

	if _, err := s.ToggleStart(ctx, 5); err != nil {
		t.Fatal(err)
	}
	if kv.sets != 1 {
		t.Errorf("expected a write after a legitimate change, got %d", kv.sets)
	}
}

func TestReadErrorLoadsEmpty(t *testing.T) {
	kv := &countingKV{KV: storage.NewMemory(), failGet: true}
	s := NewStore(kv, nil)
	if s.Load(context.Background(), Key{Video: "a.mp4"}) {
		t.Error("expected not found on read error")
	}
	if !s.Ready() {
		t.Error("store should be ready after a failed load")
	}
}

func TestNoWritesBeforeLoad(t *testing.T) {
	ctx := context.Background()
	kv := &countingKV{KV: storage.NewMemory()}
	s := NewStore(kv, nil)

	if _, err := s.ToggleStart(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if kv.sets != 0 {
		t.Errorf("expected no writes before load, got %d", kv.sets)
	}
}

func TestSaveErrorKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	kv := &countingKV{KV: storage.NewMemory(), failSet: true}
	s := NewStore(kv, nil)
	s.Load(ctx, Key{Video: "a.mp4"})

	added, err := s.ToggleStart(ctx, 3)
	if err == nil {
		t.Fatal("expected save error")
	}
	if !added || !reflect.DeepEqual(s.Starts(), []float64{3}) {
		t.Errorf("expected in-memory mark to survive, got %v", s.Starts())
	}
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemory(), nil)
	s.Load(ctx, Key{Video: "a.mp4"})
	s.ToggleStart(ctx, 10)
	s.ToggleStart(ctx, 20)

	ok, err := s.Replace(ctx, Start, 20, 5)
	if err != nil || !ok {
		t.Fatalf("Replace failed: %v %v", ok, err)
	}
	if got := s.Starts(); !reflect.DeepEqual(got, []float64{5, 10}) {
		t.Errorf("expected re-sorted starts, got %v", got)
	}
	if ok, _ := s.Replace(ctx, Start, 99, 1); ok {
		t.Error("expected false for missing mark")
	}
	if ok, _ := s.Replace(ctx, Start, 5, -1); ok {
		t.Error("expected false for negative target")
	}
}

func TestRemoveClosestFuture(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	s.Load(ctx, Key{Video: "a.mp4"})
	s.ToggleStart(ctx, 10)
	s.ToggleStart(ctx, 80)
	s.ToggleEnd(ctx, 15)

	kind, at, ok, _ := s.RemoveClosestFuture(ctx, 9, 60)
	if !ok || kind != Start || at != 10 {
		t.Errorf("expected start 10, got %v %v %v", kind, at, ok)
	}
	kind, at, ok, _ = s.RemoveClosestFuture(ctx, 9, 60)
	if !ok || kind != End || at != 15 {
		t.Errorf("expected end 15, got %v %v %v", kind, at, ok)
	}
	if _, _, ok, _ = s.RemoveClosestFuture(ctx, 9, 60); ok {
		t.Error("mark at 80 is outside the window")
	}
}

func TestSegmentsAndStartLookups(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	s.Load(ctx, Key{Video: "a.mp4"})
	for _, v := range []float64{10, 40} {
		s.ToggleStart(ctx, v)
	}
	for _, v := range []float64{5, 35, 50} {
		s.ToggleEnd(ctx, v)
	}

	want := []Segment{{Start: 10, End: 35}, {Start: 40, End: 50}}
	if got := s.Segments(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if v, ok := s.PrecedingStart(35); !ok || v != 10 {
		t.Errorf("expected preceding start 10, got %v %v", v, ok)
	}
	if _, ok := s.PrecedingStart(10); ok {
		t.Error("preceding start must be strictly before")
	}
	if v, ok := s.FollowingStart(10); !ok || v != 10 {
		t.Errorf("expected following start 10, got %v %v", v, ok)
	}
}

func TestDecodeRecordSanitizes(t *testing.T) {
	rec, err := DecodeRecord(`{"starts":[3,1,1.0001,-2],"ends":null}`)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rec.Starts, []float64{1, 3}) || len(rec.Ends) != 0 {
		t.Errorf("unexpected record %+v", rec)
	}
}
