package biome

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"worldgen/internal/noise"
	"worldgen/internal/sched"
)

func testDefinitions() []Definition {
	return []Definition{
		{Name: "low", Color: mgl64.Vec3{0, 0, 0}, Material: "Mud", BaseHeight: 10, HeightVariation: 0, SpawnRate: 0.2},
		{Name: "high", Color: mgl64.Vec3{1, 1, 1}, Material: "Rock", BaseHeight: 50, HeightVariation: 0, SpawnRate: 0.6, Features: []string{"boulder"}},
		{Name: "hills", Color: mgl64.Vec3{0.2, 0.6, 0.2}, Material: "Grass", BaseHeight: 40, HeightVariation: 20, SpawnRate: 0.4},
		{Name: "desert", Color: mgl64.Vec3{0.9, 0.8, 0.5}, Material: "Sand", BaseHeight: 20, HeightVariation: 5, SpawnRate: 0.05},
	}
}

func testParams() Params {
	return Params{MaxHeight: 256, MinSpacing: 16, MinSize: 40, MaxSize: 120}
}

func newTestField(t *testing.T, defs []Definition, centers []Center) *Field {
	t.Helper()
	nf, err := noise.NewField(42)
	if err != nil {
		t.Fatal(err)
	}
	f, err := NewField(nf, defs, testParams(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if centers != nil {
		if err := f.SetCenters(centers); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestAssignContainingCenterWins(t *testing.T) {
	f := newTestField(t, testDefinitions(), []Center{
		{Biome: "low", X: 0, Z: 0, Radius: 100},
		{Biome: "high", X: 60, Z: 0, Radius: 5},
	})
	// "high" is nearer but does not contain the point.
	if got := f.Assign(50, 0); got != "low" {
		t.Fatalf("Assign(50,0) = %q, want low", got)
	}
	if got := f.Assign(60, 0); got != "high" {
		t.Fatalf("Assign(60,0) = %q, want high", got)
	}
}

func TestAssignFallsBackToNearest(t *testing.T) {
	f := newTestField(t, testDefinitions(), []Center{
		{Biome: "low", X: 0, Z: 0, Radius: 1},
		{Biome: "high", X: 100, Z: 0, Radius: 1},
	})
	if got := f.Assign(30, 0); got != "low" {
		t.Fatalf("Assign(30,0) = %q, want low", got)
	}
	if got := f.Assign(70, 50); got != "high" {
		t.Fatalf("Assign(70,50) = %q, want high", got)
	}
}

func TestAssignCoverage(t *testing.T) {
	f := newTestField(t, testDefinitions(), nil)
	f.ScatterCenters(256, 4)
	for x := -64.0; x <= 320; x += 7 {
		for z := -64.0; z <= 320; z += 7 {
			name := f.Assign(x, z)
			if name == "" {
				t.Fatalf("gap at (%v,%v)", x, z)
			}
			if _, err := f.Definition(name); err != nil {
				t.Fatalf("Assign(%v,%v) returned unknown biome %q", x, z, name)
			}
		}
	}
}

func TestZeroCentersUseFlatDefault(t *testing.T) {
	f := newTestField(t, testDefinitions(), nil)
	f.ScatterCenters(256, 0)
	if got := f.Assign(12, 34); got != DefaultName {
		t.Fatalf("Assign with no centers = %q, want %q", got, DefaultName)
	}
	cell, err := f.TerrainAt(12, 34)
	if err != nil {
		t.Fatal(err)
	}
	if cell.Height != DefaultDefinition().BaseHeight || cell.Biome != DefaultName {
		t.Fatalf("unexpected fallback cell %+v", cell)
	}
}

func TestNoDefinitionsUsesDefault(t *testing.T) {
	f := newTestField(t, nil, nil)
	centers := f.ScatterCenters(128, 3)
	for _, c := range centers {
		if c.Biome != DefaultName {
			t.Fatalf("center uses %q, want %q", c.Biome, DefaultName)
		}
	}
	if f.Stats().Definitions != 1 {
		t.Fatalf("expected the single default definition, got %d", f.Stats().Definitions)
	}
}

func TestDuplicateDefinitionRejected(t *testing.T) {
	nf, _ := noise.NewField(1)
	defs := []Definition{{Name: "a"}, {Name: "a"}}
	if _, err := NewField(nf, defs, testParams(), nil); !errors.Is(err, ErrDuplicateBiome) {
		t.Fatalf("err = %v, want ErrDuplicateBiome", err)
	}
}

func TestNonFiniteDefinitionRejected(t *testing.T) {
	nf, _ := noise.NewField(1)
	for _, d := range []Definition{
		{Name: "a", BaseHeight: math.NaN()},
		{Name: "b", BaseHeight: 10, HeightVariation: math.Inf(1)},
		{Name: "c", BaseHeight: 10, SpawnRate: math.NaN()},
		{Name: "d", BaseHeight: 10, Color: mgl64.Vec3{0, math.NaN(), 0}},
	} {
		if _, err := NewField(nf, []Definition{d}, testParams(), nil); err == nil {
			t.Errorf("definition %+v accepted", d)
		}
	}
	p := testParams()
	p.MaxHeight = math.NaN()
	if _, err := NewField(nf, testDefinitions(), p, nil); err == nil {
		t.Errorf("NaN max height accepted")
	}
}

func TestSetCentersRejectsUnknownBiome(t *testing.T) {
	f := newTestField(t, testDefinitions(), nil)
	if err := f.SetCenters([]Center{{Biome: "lava"}}); !errors.Is(err, ErrUnknownBiome) {
		t.Fatalf("err = %v, want ErrUnknownBiome", err)
	}
}

func TestScatterCentersDistinctAndBounded(t *testing.T) {
	f := newTestField(t, testDefinitions(), nil)
	p := testParams()
	centers := f.ScatterCenters(512, 4)
	if len(centers) != 4 {
		t.Fatalf("expected 4 centers, got %d", len(centers))
	}
	seen := map[string]bool{}
	for _, c := range centers {
		if seen[c.Biome] {
			t.Fatalf("biome %q placed twice", c.Biome)
		}
		seen[c.Biome] = true
		if c.X < p.MinSpacing || c.X > 512-p.MinSpacing || c.Z < p.MinSpacing || c.Z > 512-p.MinSpacing {
			t.Fatalf("center %+v outside spacing bounds", c)
		}
		if c.Radius < p.MinSize || c.Radius > p.MaxSize {
			t.Fatalf("center %+v radius outside [%v,%v]", c, p.MinSize, p.MaxSize)
		}
	}

	again := newTestField(t, testDefinitions(), nil).ScatterCenters(512, 4)
	for i := range centers {
		if centers[i] != again[i] {
			t.Fatalf("scatter not deterministic: %+v vs %+v", centers[i], again[i])
		}
	}
}

func TestScatterCentersCyclesDefinitions(t *testing.T) {
	f := newTestField(t, testDefinitions(), nil)
	centers := f.ScatterCenters(512, 10)
	if len(centers) != 10 {
		t.Fatalf("expected 10 centers, got %d", len(centers))
	}
	counts := map[string]int{}
	for _, c := range centers {
		counts[c.Biome]++
	}
	if len(counts) != 4 {
		t.Fatalf("expected every definition used, got %v", counts)
	}
}

func TestTerrainAtClampsToMaxHeight(t *testing.T) {
	defs := []Definition{{Name: "peaks", Material: "Rock", BaseHeight: 250, HeightVariation: 100}}
	f := newTestField(t, defs, []Center{{Biome: "peaks", X: 0, Z: 0, Radius: 1000}})
	clamped := 0
	for x := 0.0; x < 200; x += 3 {
		for z := 0.0; z < 200; z += 3 {
			cell, err := f.TerrainAt(x, z)
			if err != nil {
				t.Fatal(err)
			}
			if cell.Height > 256 {
				t.Fatalf("height %v above max at (%v,%v)", cell.Height, x, z)
			}
			if cell.Height == 256 {
				clamped++
			}
		}
	}
	if clamped == 0 {
		t.Fatal("expected some cells clamped exactly to the max height")
	}
}

func TestTerrainAtHeightWithinBand(t *testing.T) {
	defs := testDefinitions()
	f := newTestField(t, defs, []Center{{Biome: "hills", X: 0, Z: 0, Radius: 1000}})
	for x := -50.0; x < 50; x += 1.5 {
		cell, err := f.TerrainAt(x, x/2)
		if err != nil {
			t.Fatal(err)
		}
		if cell.Height < 20 || cell.Height > 60 {
			t.Fatalf("height %v outside [20,60]", cell.Height)
		}
		if cell.Biome != "hills" || cell.Material != "Grass" {
			t.Fatalf("unexpected cell %+v", cell)
		}
	}
}

func TestTerrainAtBlendsAcrossBorder(t *testing.T) {
	f := newTestField(t, testDefinitions(), []Center{
		{Biome: "low", X: 0, Z: 0, Radius: 10},
		{Biome: "high", X: 20, Z: 0, Radius: 10},
	})
	if f.Assign(9.5, 0) != "low" || f.Assign(10.5, 1) != "high" {
		t.Fatal("fixture does not straddle the border")
	}
	cell, err := f.TerrainAt(9.5, 0)
	if err != nil {
		t.Fatal(err)
	}
	// t = 9.5 / (9.5 + 10.5)
	const blendT = 0.475
	if math.Abs(cell.Height-(10+blendT*40)) > 1e-9 {
		t.Fatalf("blended height = %v, want %v", cell.Height, 10+blendT*40)
	}
	if math.Abs(cell.Color.X()-blendT) > 1e-9 {
		t.Fatalf("blended color = %v", cell.Color)
	}
	if cell.Biome != "low" || cell.Material != "Mud" {
		t.Fatalf("categorical fields should come from the nearer side, got %+v", cell)
	}

	inner, _ := f.TerrainAt(0, 0)
	if inner.Height != 10 {
		t.Fatalf("interior cell should not blend, got %v", inner.Height)
	}
}

func TestTerrainAtRejectsInvalidInput(t *testing.T) {
	f := newTestField(t, testDefinitions(), []Center{{Biome: "low", Radius: 10}})
	if _, err := f.TerrainAt(math.NaN(), 0); !errors.Is(err, noise.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestSmoothPassTieBreak(t *testing.T) {
	src := []string{"a", "b"}
	dst := make([]string, 2)
	if changed := smoothPass(src, dst, 2, 1); changed != 1 {
		t.Fatalf("expected 1 change, got %d", changed)
	}
	if dst[0] != "a" || dst[1] != "a" {
		t.Fatalf("ties should go to first seen label, got %v", dst)
	}
}

func TestSmoothRemovesSingleCellNoise(t *testing.T) {
	f := newTestField(t, testDefinitions(), []Center{{Biome: "low", Radius: 1000}})
	g, err := f.BuildGrid(0, 0, 5, 0)
	if err != nil {
		t.Fatal(err)
	}
	odd, _ := f.cellForName("high", 2, 2)
	*g.At(2, 2) = odd

	if err := f.Smooth(g, 2); err != nil {
		t.Fatal(err)
	}
	for i, c := range g.Cells {
		if c.Biome != "low" || c.Height != 10 {
			t.Fatalf("cell %d not smoothed: %+v", i, c)
		}
	}
	if f.Stats().SmoothedCells != 1 {
		t.Fatalf("expected 1 smoothed cell, got %d", f.Stats().SmoothedCells)
	}
}

func TestGridBuilderResumesUnderBudget(t *testing.T) {
	f := newTestField(t, testDefinitions(), nil)
	f.ScatterCenters(128, 4)

	want, err := f.BuildGrid(-16, 8, 17, 2)
	if err != nil {
		t.Fatal(err)
	}

	b := f.NewGridBuilder(-16, 8, 17, 2)
	steps := 0
	for !b.Done() {
		if b.Grid() != nil {
			t.Fatal("grid exposed before completion")
		}
		if _, err := b.Step(sched.NewBudget(1, 0)); err != nil {
			t.Fatal(err)
		}
		steps++
	}
	if steps < 2 {
		t.Fatalf("expected the budget to split work, got %d steps", steps)
	}
	got := b.Grid()
	for i := range want.Cells {
		if got.Cells[i].Biome != want.Cells[i].Biome || got.Cells[i].Height != want.Cells[i].Height {
			t.Fatalf("cell %d differs: %+v vs %+v", i, got.Cells[i], want.Cells[i])
		}
	}
}

func TestAdjacentGridsShareEdges(t *testing.T) {
	f := newTestField(t, testDefinitions(), nil)
	f.ScatterCenters(96, 4)
	const size = 32
	left, err := f.BuildGrid(0, 0, size+1, 2)
	if err != nil {
		t.Fatal(err)
	}
	right, err := f.BuildGrid(size, 0, size+1, 2)
	if err != nil {
		t.Fatal(err)
	}
	for j := 0; j <= size; j++ {
		a, b := left.At(size, j), right.At(0, j)
		if a.Biome != b.Biome || a.Height != b.Height {
			t.Fatalf("seam mismatch at row %d: %+v vs %+v", j, a, b)
		}
	}
}

func BenchmarkBuildGrid(b *testing.B) {
	nf, _ := noise.NewField(42)
	f, _ := NewField(nf, testDefinitions(), testParams(), nil)
	f.ScatterCenters(512, 4)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		nf.ClearCache()
		_, _ = f.BuildGrid(i*32, 0, 33, 2)
	}
}
