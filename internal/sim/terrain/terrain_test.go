package terrain

import (
	"testing"

	"festering.ai/internal/sim/block"
)

func testConfig() Config {
	return Config{Seed: 99, Height: 64, SeaLevel: 30, BaseHeight: 32, Amplitude: 8, NoiseScale: 32, TreePermille: 40, FlowerPermille: 30}
}

func column(g *Generator, x, z int) []block.State {
	out := make([]block.State, g.Config().Height)
	g.Column(x, z, func(y int, s block.State) { out[y] = s })
	return out
}

func TestColumn_Layers(t *testing.T) {
	g := New(testConfig())
	for x := -20; x <= 20; x += 5 {
		for z := -20; z <= 20; z += 5 {
			col := column(g, x, z)
			surface := g.SurfaceY(x, z)
			if col[0].ID != block.Bedrock {
				t.Fatalf("(%d,%d) y=0: got %s", x, z, col[0])
			}
			if surface < 24 || surface > 40 {
				t.Fatalf("(%d,%d) surface %d outside base±amplitude", x, z, surface)
			}
			if !block.Solid(col[surface].ID) {
				t.Fatalf("(%d,%d) surface block %s not solid", x, z, col[surface])
			}
			if col[len(col)-1].ID != block.Air {
				t.Fatalf("(%d,%d) top: got %s", x, z, col[len(col)-1])
			}
			for y, s := range col {
				if s.ID == "" {
					t.Fatalf("(%d,%d) y=%d left unset", x, z, y)
				}
			}
		}
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	a, b := New(testConfig()), New(testConfig())
	for x := -8; x <= 8; x++ {
		ca, cb := column(a, x, 3), column(b, x, 3)
		for y := range ca {
			if ca[y] != cb[y] {
				t.Fatalf("(%d,%d,3) differs: %s vs %s", x, y, ca[y], cb[y])
			}
		}
	}
}

func TestColumn_WaterBelowSeaLevel(t *testing.T) {
	cfg := testConfig()
	cfg.SeaLevel = 50
	g := New(cfg)
	col := column(g, 0, 0)
	surface := g.SurfaceY(0, 0)
	for y := surface + 1; y < cfg.SeaLevel; y++ {
		if col[y].ID != block.Water {
			t.Fatalf("y=%d: got %s want WATER", y, col[y])
		}
	}
}
