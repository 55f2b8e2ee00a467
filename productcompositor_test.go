package productcompositor

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/product-compositor/internal/config"
	"github.com/menta2k/product-compositor/pkg/batch"
	"github.com/menta2k/product-compositor/pkg/catalog"
	"github.com/menta2k/product-compositor/pkg/layout"
	"github.com/menta2k/product-compositor/pkg/processing"
	"github.com/menta2k/product-compositor/pkg/types"
)

// createTestImage creates a transparent image with an opaque subject in the
// center third
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := height / 3; y < 2*height/3; y++ {
		for x := width / 3; x < 2*width/3; x++ {
			img.SetNRGBA(x, y, color.NRGBA{30, 30, 30, 255})
		}
	}
	return img
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	single := layout.SingleCenteredLayout(layout.SingleCentered{})
	cat, err := catalog.New(
		catalog.Product{
			ID:     "screen",
			Layout: &single,
			Overlay: &layout.Overlay{
				Area:      types.Box{X: 0.1, Y: 0.1, W: 0.8, H: 0.8},
				FillColor: "#ff0000",
			},
		},
	)
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}

	cfg := config.Default()
	cfg.Canvas.Size = 120
	cfg.Batch.AssetRoot = t.TempDir()
	engine, err := NewWithConfig(cfg, cat, nil)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return engine
}

func TestNew(t *testing.T) {
	cat, _ := catalog.New()
	engine, err := New(cat)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if engine.renderer == nil || engine.compositor == nil || engine.runner == nil {
		t.Error("Expected all components to be initialized")
	}
	if engine.Config().Canvas.Size != 800 {
		t.Errorf("Expected default canvas size 800, got %d", engine.Config().Canvas.Size)
	}
}

func TestNewWithInvalidConfig(t *testing.T) {
	cat, _ := catalog.New()
	cfg := config.Default()
	cfg.Canvas.Background = "white"

	if _, err := NewWithConfig(cfg, cat, nil); err == nil {
		t.Error("Expected error for invalid background color")
	}
}

func TestRunAndSave(t *testing.T) {
	engine := testEngine(t)
	front, err := processing.EncodePNG(createTestImage(90, 90))
	if err != nil {
		t.Fatal(err)
	}

	report := engine.Run(context.Background(), batch.Request{
		Device:     batch.Device{Front: front},
		Selections: catalog.NewSelections("screen"),
	}, nil)
	if len(report.Results) != 1 {
		t.Fatalf("Expected 1 result, got failures %+v", report.Failures)
	}

	handle := report.Results[0].CompositeHandle
	img, err := engine.Image(handle)
	if err != nil {
		t.Fatalf("Failed to read composite: %v", err)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 120 {
		t.Errorf("Expected 120x120 composite, got %v", img.Bounds())
	}

	path := filepath.Join(t.TempDir(), "screen.png")
	if err := engine.Save(handle, path); err != nil {
		t.Fatalf("Failed to save composite: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected composite file to exist: %v", err)
	}

	if _, err := engine.Image("mem://999"); err == nil {
		t.Error("Expected error for unknown handle")
	}
}

func TestComposeProduct(t *testing.T) {
	engine := testEngine(t)

	out, err := engine.ComposeProduct(context.Background(), "screen", createTestImage(90, 90), nil, "")
	if err != nil {
		t.Fatalf("ComposeProduct failed: %v", err)
	}
	if out.Bounds().Dx() != 120 {
		t.Errorf("Expected 120px canvas, got %d", out.Bounds().Dx())
	}

	// the subject is filled red by the overlay and centered
	got := out.NRGBAAt(60, 60)
	if got.R < 200 || got.G > 60 || got.B > 60 {
		t.Errorf("Expected red overlay at the center, got %v", got)
	}

	if _, err := engine.ComposeProduct(context.Background(), "missing", nil, nil, ""); err == nil {
		t.Error("Expected error for unknown product")
	}
}

func TestDebugBase(t *testing.T) {
	engine := testEngine(t)

	res, dbg, err := engine.DebugBase(context.Background(), "screen", createTestImage(90, 90))
	if err != nil {
		t.Fatalf("DebugBase failed: %v", err)
	}
	if res.Canvas == nil || dbg == nil {
		t.Fatal("Expected base canvas and debug image")
	}
	if dbg.Bounds() != res.Canvas.Bounds() {
		t.Errorf("Expected debug image to match the canvas, got %v and %v", dbg.Bounds(), res.Canvas.Bounds())
	}
	if res.Bounds.W <= 0 || res.Bounds.W >= 1 {
		t.Errorf("Expected detected bounds inside the canvas, got %+v", res.Bounds)
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("Expected %s, got %s", Version, GetVersion())
	}
}
