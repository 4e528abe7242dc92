package snapshot

import (
	"path/filepath"
	"testing"
)

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "120.snap.zst")
	in := SnapshotV1{
		Header:   Header{Version: Version, WorldID: "w1", RunID: "r", Tick: 120},
		Seed:     42,
		TickRate: 20,
		Height:   32,
		Palette:  []string{"AIR", "GRASS_BLOCK", "OAK_LOG[axis=x]"},
		Chunks:   []ChunkV1{{CX: -1, CZ: 2, Height: 32, Blocks: make([]uint16, 16*16*32)}},
		Loaded:   []ChunkKeyV1{{CX: -1, CZ: 2}},
		Sources:  []SourceV1{{Center: [3]int{1, 65, 3}, Strength: 2, LastTick: 100, Frontier: [][3]int{{1, 64, 3}}}},
	}
	in.Chunks[0].Blocks[17] = 2

	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if h != in.Header {
		t.Fatalf("header: got %+v want %+v", h, in.Header)
	}
	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.Seed != 42 || len(out.Palette) != 3 || out.Palette[2] != "OAK_LOG[axis=x]" {
		t.Fatalf("scalar fields: %+v", out)
	}
	if len(out.Chunks) != 1 || out.Chunks[0].Blocks[17] != 2 || out.Chunks[0].CX != -1 {
		t.Fatalf("chunks not restored")
	}
	if len(out.Sources) != 1 || out.Sources[0].Frontier[0] != [3]int{1, 64, 3} {
		t.Fatalf("sources: %+v", out.Sources)
	}
}

func TestReadSnapshot_RejectsOtherVersions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1.snap.zst")
	if err := WriteSnapshot(path, SnapshotV1{Header: Header{Version: 9, Tick: 1}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected version error")
	}
}
