package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/menta2k/product-compositor/pkg/bounds"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to be valid, got %v", err)
	}
	if cfg.Canvas.Size != 800 {
		t.Errorf("Expected canvas size 800, got %d", cfg.Canvas.Size)
	}
	if cfg.Detector.AlphaThreshold != int(bounds.DefaultAlphaThreshold) {
		t.Errorf("Expected alpha threshold %d, got %d", bounds.DefaultAlphaThreshold, cfg.Detector.AlphaThreshold)
	}
	if cfg.Output.DefaultFormat != "png" {
		t.Errorf("Expected png output, got %s", cfg.Output.DefaultFormat)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Canvas.Size = 1024
	cfg.Compose.Text.Color = "#112233"
	cfg.Output.DefaultFormat = "webp"
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Canvas.Size != 1024 || loaded.Compose.Text.Color != "#112233" || loaded.Output.DefaultFormat != "webp" {
		t.Errorf("Expected saved values to round trip, got %+v", loaded)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"canvas": {"size": 600}}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Canvas.Size != 600 {
		t.Errorf("Expected canvas size 600, got %d", cfg.Canvas.Size)
	}
	if cfg.Canvas.Background != Default().Canvas.Background {
		t.Errorf("Expected default background, got %s", cfg.Canvas.Background)
	}
	if cfg.Batch.PrefetchConcurrency != Default().Batch.PrefetchConcurrency {
		t.Errorf("Expected default prefetch concurrency, got %d", cfg.Batch.PrefetchConcurrency)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFromFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("Expected error for malformed file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero canvas", func(c *Config) { c.Canvas.Size = 0 }},
		{"bad background", func(c *Config) { c.Canvas.Background = "white" }},
		{"bad divider", func(c *Config) { c.Compose.DividerColor = "#12" }},
		{"alpha threshold", func(c *Config) { c.Detector.AlphaThreshold = 300 }},
		{"white threshold", func(c *Config) { c.Detector.WhiteThreshold = -1 }},
		{"negative radius", func(c *Config) { c.Refiner.Radius = -1 }},
		{"boost too low", func(c *Config) { c.Refiner.Boost = 0.5 }},
		{"negative blur", func(c *Config) { c.Render.SourceBlur = -0.1 }},
		{"text sizes", func(c *Config) { c.Compose.Text.MinSize = 40; c.Compose.Text.MaxSize = 20 }},
		{"text margin", func(c *Config) { c.Compose.Text.MarginRatio = 0.5 }},
		{"timeout", func(c *Config) { c.Batch.ItemTimeoutSeconds = 0 }},
		{"concurrency", func(c *Config) { c.Batch.PrefetchConcurrency = 0 }},
		{"cutout timeout", func(c *Config) { c.Cutout.TimeoutSeconds = -1 }},
		{"format", func(c *Config) { c.Output.DefaultFormat = "gif" }},
		{"quality", func(c *Config) { c.Output.Quality = 101 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
		})
	}
}

func TestConverters(t *testing.T) {
	cfg := Default()
	cfg.Canvas.Size = 512
	cfg.Detector.AlphaThreshold = 20
	cfg.Detector.WhiteThreshold = 240
	cfg.Detector.Padding = -2
	cfg.Batch.ItemTimeoutSeconds = 5
	cfg.Batch.AssetRoot = "/srv/assets"

	r := cfg.RenderConfig()
	if r.CanvasSize != 512 || r.Detect.Threshold != 20 || r.Detect.Padding != -2 || r.Detect.Mode != bounds.ModeAlpha {
		t.Errorf("Unexpected render config %+v", r)
	}

	c := cfg.ComposeConfig()
	if c.CanvasSize != 512 || c.WhiteThreshold != 240 || c.Background != cfg.Canvas.Background {
		t.Errorf("Unexpected compose config %+v", c)
	}

	b := cfg.BatchConfig()
	if b.ItemTimeout != 5*time.Second || b.PrefetchConcurrency != cfg.Batch.PrefetchConcurrency {
		t.Errorf("Unexpected batch config %+v", b)
	}

	if cfg.CutoutClient() != nil {
		t.Error("Expected no cutout client without a server URL")
	}
	cfg.Cutout.URL = "http://localhost:7000"
	if cfg.CutoutClient() == nil {
		t.Error("Expected cutout client for configured server")
	}

	p := cfg.ProcessorConfig()
	if p.AssetRoot != "/srv/assets" || p.MaxBytes <= 0 {
		t.Errorf("Unexpected processor config %+v", p)
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()
	if filepath.Base(path) != "config.json" {
		t.Errorf("Expected config.json, got %s", path)
	}
}
