package registry

import (
	"context"
	"errors"
	"testing"

	"festering.ai/internal/sim/voxel"
)

func TestRegister_DerivesRadiusAndSeedsFrontier(t *testing.T) {
	r := New(Config{})
	c := voxel.Pos{X: 10, Y: 64, Z: -3}
	s, err := r.Register(c, 3)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if s.MaxRadius != 3*DefaultRadiusPerStrength {
		t.Fatalf("radius: got %d want %d", s.MaxRadius, 3*DefaultRadiusPerStrength)
	}
	if s.Frontier.Len() != 1 || !s.Frontier.Has(c) {
		t.Fatalf("frontier: got %v want {%s}", s.Frontier.Slice(), c)
	}
	if !r.Dirty() {
		t.Fatalf("register should mark dirty")
	}
}

func TestRegister_RejectsNearbyCenter(t *testing.T) {
	r := New(Config{})
	if _, err := r.Register(voxel.Pos{}, 1); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := r.Register(voxel.Pos{X: 3, Y: 4}, 2)
	if !errors.Is(err, ErrTooClose) {
		t.Fatalf("distance 5: got %v want ErrTooClose", err)
	}
	if r.Len() != 1 {
		t.Fatalf("len: got %d want 1", r.Len())
	}
	if _, err := r.Register(voxel.Pos{X: 6}, 2); err != nil {
		t.Fatalf("distance 6: %v", err)
	}
}

func TestRegister_RejectsBadStrength(t *testing.T) {
	r := New(Config{})
	if _, err := r.Register(voxel.Pos{}, 0); !errors.Is(err, ErrBadStrength) {
		t.Fatalf("got %v want ErrBadStrength", err)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	r := New(Config{})
	c := voxel.Pos{}
	if _, err := r.Register(c, 1); err != nil {
		t.Fatalf("register: %v", err)
	}
	s, _ := r.Get(c)
	s.Frontier.Add(voxel.Pos{X: 1})
	again, _ := r.Get(c)
	if again.Frontier.Len() != 1 {
		t.Fatalf("mutating a copy leaked into the registry")
	}
}

func TestUpdateFrontier(t *testing.T) {
	r := New(Config{})
	c := voxel.Pos{}
	_, _ = r.Register(c, 1)

	next := voxel.NewSet(voxel.Pos{X: 1}, voxel.Pos{X: 2})
	if !r.UpdateFrontier(c, next, 40) {
		t.Fatalf("update of known source refused")
	}
	next.Add(voxel.Pos{X: 3})
	s, _ := r.Get(c)
	if s.Frontier.Len() != 2 || s.LastUpdateTick != 40 {
		t.Fatalf("got %d members tick %d", s.Frontier.Len(), s.LastUpdateTick)
	}
	r.UpdateFrontier(c, voxel.NewSet(), 10)
	s, _ = r.Get(c)
	if s.LastUpdateTick != 40 {
		t.Fatalf("tick went backwards: %d", s.LastUpdateTick)
	}
	if r.UpdateFrontier(voxel.Pos{X: 100}, next, 50) {
		t.Fatalf("update of unknown source accepted")
	}
}

func TestNearAndAll(t *testing.T) {
	r := New(Config{})
	for _, c := range []voxel.Pos{{X: 100}, {X: 0}, {X: 20}} {
		if _, err := r.Register(c, 1); err != nil {
			t.Fatalf("register %s: %v", c, err)
		}
	}
	all := r.All()
	if len(all) != 3 || all[0].Center.X != 0 || all[2].Center.X != 100 {
		t.Fatalf("all not ordered: %+v", all)
	}
	s, ok := r.Near(voxel.Pos{X: 14}, 10)
	if !ok || s.Center.X != 20 {
		t.Fatalf("near: got %v %v want X=20", s.Center, ok)
	}
	if _, ok := r.Near(voxel.Pos{X: 50}, 10); ok {
		t.Fatalf("near found a source 30 away")
	}
	if !r.Remove(voxel.Pos{X: 20}) || r.Remove(voxel.Pos{X: 20}) {
		t.Fatalf("remove should succeed exactly once")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := &MemoryStore{}
	r := New(Config{})
	c := voxel.Pos{X: 1, Y: 2, Z: 3}
	_, _ = r.Register(c, 2)
	r.UpdateFrontier(c, voxel.NewSet(voxel.Pos{X: 4, Y: 2, Z: 3}, voxel.Pos{X: 999}), 77)

	if err := r.Save(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	if r.Dirty() {
		t.Fatalf("save should clear dirty")
	}
	if err := r.Save(ctx, st); err != nil || st.Saves != 1 {
		t.Fatalf("clean save wrote again: saves=%d err=%v", st.Saves, err)
	}

	loaded := New(Config{})
	if err := loaded.Load(ctx, st); err != nil {
		t.Fatalf("load: %v", err)
	}
	s, ok := loaded.Get(c)
	if !ok {
		t.Fatalf("source missing after load")
	}
	if s.Strength != 2 || s.MaxRadius != 128 || s.LastUpdateTick != 77 {
		t.Fatalf("loaded %+v", s)
	}
	// X=999 lies outside the radius and is dropped on restore.
	if s.Frontier.Len() != 1 || !s.Frontier.Has(voxel.Pos{X: 4, Y: 2, Z: 3}) {
		t.Fatalf("frontier: got %v", s.Frontier.Sorted())
	}
}

type failingStore struct{ MemoryStore }

var errDisk = errors.New("disk full")

func (*failingStore) SaveSources(context.Context, []Record) error { return errDisk }

func TestSave_KeepsDirtyOnFailure(t *testing.T) {
	r := New(Config{})
	_, _ = r.Register(voxel.Pos{}, 1)
	err := r.Save(context.Background(), &failingStore{})
	if !errors.Is(err, errDisk) {
		t.Fatalf("got %v want errDisk", err)
	}
	if !r.Dirty() {
		t.Fatalf("failed save cleared dirty")
	}
}

func TestRestore_RejectsDuplicates(t *testing.T) {
	r := New(Config{})
	recs := []Record{{Center: [3]int{1, 1, 1}, Strength: 1}, {Center: [3]int{1, 1, 1}, Strength: 2}}
	if err := r.Restore(recs); err == nil {
		t.Fatalf("duplicate centers accepted")
	}
}

func TestRestore_KeepsFrontierOrder(t *testing.T) {
	r := New(Config{})
	c := voxel.Pos{}
	_, _ = r.Register(c, 1)
	f := voxel.NewSet(voxel.Pos{X: 3}, voxel.Pos{X: 1}, voxel.Pos{X: 2}, voxel.Pos{X: 4})
	f.Remove(voxel.Pos{X: 1})
	r.UpdateFrontier(c, f, 5)

	back := New(Config{})
	if err := back.Restore(r.Records()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	s, _ := back.Get(c)
	want := f.Slice()
	got := s.Frontier.Slice()
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("member %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestNew_DefaultsMergeRadius(t *testing.T) {
	if got := New(Config{}).Config().MergeRadius; got != DefaultMergeRadius {
		t.Fatalf("merge radius: got %d want %d", got, DefaultMergeRadius)
	}
	if got := New(Config{MergeRadius: -3}).Config().MergeRadius; got != DefaultMergeRadius {
		t.Fatalf("negative merge radius: got %d want %d", got, DefaultMergeRadius)
	}
}

func TestRegister_ClampsStrength(t *testing.T) {
	r := New(Config{})
	s, err := r.Register(voxel.Pos{}, 1000)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if s.Strength != MaxStrength || s.MaxRadius != MaxStrength*DefaultRadiusPerStrength {
		t.Fatalf("source: strength %d radius %d", s.Strength, s.MaxRadius)
	}

	if err := r.Restore([]Record{{Center: [3]int{9, 9, 9}, Strength: 1 << 40}}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	s, _ = r.Get(voxel.Pos{X: 9, Y: 9, Z: 9})
	if s.Strength != MaxStrength {
		t.Fatalf("restored strength: got %d want %d", s.Strength, MaxStrength)
	}
}

func TestFlush_WritesCleanRegistry(t *testing.T) {
	ctx := context.Background()
	r := New(Config{})
	_, _ = r.Register(voxel.Pos{X: 1}, 1)
	st := &MemoryStore{}
	if err := r.Save(ctx, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := r.Flush(ctx, st); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if st.Saves != 2 || r.Dirty() {
		t.Fatalf("saves %d dirty %v", st.Saves, r.Dirty())
	}
	if err := r.Flush(ctx, &failingStore{}); !errors.Is(err, errDisk) || !r.Dirty() {
		t.Fatalf("failed flush: err %v dirty %v", err, r.Dirty())
	}
}
