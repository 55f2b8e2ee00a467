package bounds

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/menta2k/product-compositor/pkg/types"
)

// createTestImage creates a width x height image filled with bg
func createTestImage(width, height int, bg color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, bg)
		}
	}
	return img
}

func fillRect(img *image.NRGBA, r types.Bounds, c color.NRGBA) {
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

var (
	white       = color.NRGBA{255, 255, 255, 255}
	transparent = color.NRGBA{0, 0, 0, 0}
	dark        = color.NRGBA{10, 10, 10, 255}
)

func TestDetectWhiteBackground(t *testing.T) {
	img := createTestImage(100, 80, white)
	rect := types.Bounds{X: 10, Y: 12, Width: 30, Height: 20}
	fillRect(img, rect, dark)

	got, err := Detect(img, WhiteOptions(0))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if got != rect {
		t.Errorf("Expected %+v, got %+v", rect, got)
	}
}

func TestDetectWhiteBackgroundRandomRects(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const w, h = 120, 90

	for i := 0; i < 200; i++ {
		rect := types.Bounds{X: rng.Intn(w), Y: rng.Intn(h)}
		rect.Width = 1 + rng.Intn(w-rect.X)
		rect.Height = 1 + rng.Intn(h-rect.Y)

		img := createTestImage(w, h, white)
		fillRect(img, rect, color.NRGBA{uint8(rng.Intn(200)), uint8(rng.Intn(200)), uint8(rng.Intn(256)), 255})

		got, err := Detect(img, WhiteOptions(0))
		if err != nil {
			t.Fatalf("case %d: Detect failed: %v", i, err)
		}
		if got != rect {
			t.Fatalf("case %d: expected %+v, got %+v", i, rect, got)
		}
	}
}

func TestDetectWhiteIgnoresTransparent(t *testing.T) {
	img := createTestImage(50, 40, white)
	fillRect(img, types.Bounds{X: 0, Y: 0, Width: 50, Height: 10}, transparent)
	rect := types.Bounds{X: 5, Y: 15, Width: 10, Height: 8}
	fillRect(img, rect, color.NRGBA{0, 0, 0, 255})

	got, err := Detect(img, WhiteOptions(0))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if got != rect {
		t.Errorf("Expected %+v, got %+v", rect, got)
	}
}

func TestDetectAlphaThreshold(t *testing.T) {
	img := createTestImage(60, 60, transparent)
	// faint haze around an opaque core
	fillRect(img, types.Bounds{X: 5, Y: 5, Width: 50, Height: 50}, color.NRGBA{200, 200, 200, 60})
	core := types.Bounds{X: 20, Y: 18, Width: 15, Height: 25}
	fillRect(img, core, color.NRGBA{0, 0, 0, 255})

	general, err := Detect(img, AlphaOptions())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if general != (types.Bounds{X: 5, Y: 5, Width: 50, Height: 50}) {
		t.Errorf("Expected haze to count with default threshold, got %+v", general)
	}

	bezel, err := Detect(img, Options{Mode: ModeAlpha, Threshold: BezelAlphaThreshold})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if bezel != core {
		t.Errorf("Expected %+v with bezel threshold, got %+v", core, bezel)
	}
}

func TestDetectPadding(t *testing.T) {
	img := createTestImage(40, 40, transparent)
	fillRect(img, types.Bounds{X: 2, Y: 10, Width: 20, Height: 10}, dark)

	tests := []struct {
		name    string
		padding int
		want    types.Bounds
	}{
		{"grow clamps at edge", 4, types.Bounds{X: 0, Y: 6, Width: 26, Height: 18}},
		{"shrink", -2, types.Bounds{X: 4, Y: 12, Width: 16, Height: 6}},
		{"shrink past empty keeps a pixel", -8, types.Bounds{X: 10, Y: 14, Width: 4, Height: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(img, Options{Mode: ModeAlpha, Threshold: 10, Padding: tt.padding})
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestDetectNotFound(t *testing.T) {
	if _, err := Detect(createTestImage(30, 30, transparent), AlphaOptions()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for empty image, got %v", err)
	}
	if _, err := Detect(createTestImage(30, 30, white), WhiteOptions(0)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for blank white image, got %v", err)
	}
	if _, err := Detect(createTestImage(1, 1, dark), AlphaOptions()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for single pixel image, got %v", err)
	}
	if _, err := Detect(image.NewNRGBA(image.Rect(0, 0, 0, 10)), AlphaOptions()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for zero area image, got %v", err)
	}
}

func TestDetectOffsetOrigin(t *testing.T) {
	img := image.NewNRGBA(image.Rect(100, 50, 140, 90))
	img.SetNRGBA(110, 60, dark)
	img.SetNRGBA(120, 70, dark)

	got, err := Detect(img, AlphaOptions())
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	want := types.Bounds{X: 10, Y: 10, Width: 11, Height: 11}
	if got != want {
		t.Errorf("Expected %+v relative to image origin, got %+v", want, got)
	}
}

func TestDetectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	img := createTestImage(200, 200, dark)
	if _, err := DetectContext(ctx, img, AlphaOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func BenchmarkDetect(b *testing.B) {
	img := createTestImage(1920, 1080, white)
	fillRect(img, types.Bounds{X: 400, Y: 200, Width: 900, Height: 600}, dark)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Detect(img, WhiteOptions(0))
	}
}
