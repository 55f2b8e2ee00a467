package bounds

import (
	"math"
	"math/rand"
	"testing"

	"github.com/menta2k/product-compositor/pkg/types"
)

func TestNormalizeDenormalizeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		w, h := 1+rng.Intn(3000), 1+rng.Intn(3000)
		b := types.Bounds{X: rng.Intn(w), Y: rng.Intn(h)}
		b.Width = 1 + rng.Intn(w-b.X)
		b.Height = 1 + rng.Intn(h-b.Y)

		got := Denormalize(Normalize(b, w, h), w, h)
		if got != b {
			t.Fatalf("case %d (%dx%d): expected %+v, got %+v", i, w, h, b, got)
		}
	}
}

func TestDenormalizeOntoDifferentSize(t *testing.T) {
	box := Normalize(types.Bounds{X: 100, Y: 50, Width: 200, Height: 300}, 400, 400)

	got := Denormalize(box, 800, 1200)
	want := types.Bounds{X: 200, Y: 150, Width: 400, Height: 900}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	r := DenormalizeRect(box, 800, 1200)
	if math.Abs(r.W-400) > 1e-9 || math.Abs(r.H-900) > 1e-9 {
		t.Errorf("Expected 400x900 rect, got %vx%v", r.W, r.H)
	}
}

func TestNormalizeClamps(t *testing.T) {
	box := Normalize(types.Bounds{X: 90, Y: 90, Width: 50, Height: 50}, 100, 100)
	if box.Right() > 1 || box.Bottom() > 1 {
		t.Errorf("Expected clamped box, got %+v", box)
	}
}

func randomBox(rng *rand.Rand) types.Box {
	x, y := rng.Float64(), rng.Float64()
	return types.Box{X: x, Y: y, W: rng.Float64() * (1 - x), H: rng.Float64() * (1 - y)}
}

func TestMergeContainsBoth(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 500; i++ {
		a, b := randomBox(rng), randomBox(rng)
		m := Merge(a, b)

		if !m.Contains(a) || !m.Contains(b) {
			t.Fatalf("case %d: merge %+v does not contain %+v and %+v", i, m, a, b)
		}

		// every edge of the merged box touches one of the inputs
		const eps = 1e-9
		if math.Abs(m.X-math.Min(a.X, b.X)) > eps ||
			math.Abs(m.Y-math.Min(a.Y, b.Y)) > eps ||
			math.Abs(m.Right()-math.Max(a.Right(), b.Right())) > eps ||
			math.Abs(m.Bottom()-math.Max(a.Bottom(), b.Bottom())) > eps {
			t.Fatalf("case %d: merge %+v is not minimal for %+v and %+v", i, m, a, b)
		}
	}
}

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator()
	if _, ok := acc.Current(); ok {
		t.Fatal("Expected empty accumulator")
	}

	first := types.Box{X: 0.2, Y: 0.2, W: 0.3, H: 0.3}
	if got := acc.Add(first); !boxEqual(got, first) {
		t.Errorf("Expected first box %+v, got %+v", first, got)
	}

	second := types.Box{X: 0.1, Y: 0.4, W: 0.2, H: 0.5}
	union := acc.Add(second)
	if !union.Contains(first) || !union.Contains(second) {
		t.Errorf("Expected union to contain both inputs, got %+v", union)
	}

	// a smaller box never narrows the union
	again := acc.Add(types.Box{X: 0.3, Y: 0.3, W: 0.01, H: 0.01})
	if !boxEqual(again, union) {
		t.Errorf("Expected union to stay %+v, got %+v", union, again)
	}

	acc.Reset()
	if _, ok := acc.Current(); ok {
		t.Error("Expected accumulator to be empty after Reset")
	}
}

func boxEqual(a, b types.Box) bool {
	const eps = 1e-9
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps &&
		math.Abs(a.W-b.W) < eps && math.Abs(a.H-b.H) < eps
}
