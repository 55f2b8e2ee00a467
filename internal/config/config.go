package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/menta2k/product-compositor/pkg/batch"
	"github.com/menta2k/product-compositor/pkg/bounds"
	"github.com/menta2k/product-compositor/pkg/compose"
	"github.com/menta2k/product-compositor/pkg/cutout"
	"github.com/menta2k/product-compositor/pkg/processing"
	"github.com/menta2k/product-compositor/pkg/refine"
	"github.com/menta2k/product-compositor/pkg/render"
	"github.com/menta2k/product-compositor/pkg/surface"
)

// Config holds the application configuration
type Config struct {
	Canvas   CanvasConfig   `json:"canvas"`
	Detector DetectorConfig `json:"detector"`
	Refiner  RefinerConfig  `json:"refiner"`
	Render   RenderConfig   `json:"render"`
	Compose  ComposeConfig  `json:"compose"`
	Batch    BatchConfig    `json:"batch"`
	Cutout   CutoutConfig   `json:"cutout"`
	Output   OutputConfig   `json:"output"`
	Log      LogConfig      `json:"log"`
}

// CanvasConfig holds the square output canvas settings
type CanvasConfig struct {
	Size       int    `json:"size"`
	Background string `json:"background"`
}

// DetectorConfig holds thresholds for content bounds detection
type DetectorConfig struct {
	AlphaThreshold int `json:"alpha_threshold"`
	WhiteThreshold int `json:"white_threshold"`
	Padding        int `json:"padding"`
}

// RefinerConfig holds configuration for alpha refinement
type RefinerConfig struct {
	Radius int     `json:"radius"`
	Boost  float64 `json:"boost"`
}

// RenderConfig holds configuration for base canvas rendering
type RenderConfig struct {
	SourceBlur  float64 `json:"source_blur"`
	OverlayBlur float64 `json:"overlay_blur"`
}

// ComposeConfig holds configuration for layout composition
type ComposeConfig struct {
	DividerColor        string     `json:"divider_color"`
	DrawBlur            float64    `json:"draw_blur"`
	CenterBadgeGapRatio float64    `json:"center_badge_gap_ratio"`
	EdgeMarginRatio     float64    `json:"edge_margin_ratio"`
	Text                TextConfig `json:"text"`
}

// TextConfig holds configuration for the SKU label
type TextConfig struct {
	Color       string  `json:"color"`
	MaxSize     float64 `json:"max_size"`
	MinSize     float64 `json:"min_size"`
	MarginRatio float64 `json:"margin_ratio"`
	TopRatio    float64 `json:"top_ratio"`
}

// BatchConfig holds configuration for batch runs
type BatchConfig struct {
	ItemTimeoutSeconds  int    `json:"item_timeout_seconds"`
	PrefetchConcurrency int    `json:"prefetch_concurrency"`
	AssetRoot           string `json:"asset_root"`
	CatalogPath         string `json:"catalog_path"`
}

// CutoutConfig holds the background-removal server settings. An empty URL
// disables cutouts.
type CutoutConfig struct {
	URL            string `json:"url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	DefaultFormat string `json:"default_format"`
	Quality       int    `json:"quality"`
	Lossless      bool   `json:"lossless"`
	OutputDir     string `json:"output_dir"`
	Prefix        string `json:"prefix"`
	Suffix        string `json:"suffix"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns a configuration with default values
func Default() *Config {
	r := render.DefaultConfig()
	c := compose.DefaultConfig()
	b := batch.DefaultConfig()
	return &Config{
		Canvas: CanvasConfig{
			Size:       r.CanvasSize,
			Background: c.Background,
		},
		Detector: DetectorConfig{
			AlphaThreshold: int(bounds.DefaultAlphaThreshold),
			WhiteThreshold: int(bounds.DefaultWhiteThreshold),
			Padding:        0,
		},
		Refiner: RefinerConfig{
			Radius: r.Refine.Radius,
			Boost:  r.Refine.Boost,
		},
		Render: RenderConfig{
			SourceBlur:  r.SourceBlur,
			OverlayBlur: r.OverlayBlur,
		},
		Compose: ComposeConfig{
			DividerColor:        c.DividerColor,
			DrawBlur:            c.DrawBlur,
			CenterBadgeGapRatio: c.CenterBadgeGapRatio,
			EdgeMarginRatio:     c.EdgeMarginRatio,
			Text: TextConfig{
				Color:       c.Text.Color,
				MaxSize:     c.Text.MaxSize,
				MinSize:     c.Text.MinSize,
				MarginRatio: c.Text.MarginRatio,
				TopRatio:    c.Text.TopRatio,
			},
		},
		Batch: BatchConfig{
			ItemTimeoutSeconds:  int(b.ItemTimeout / time.Second),
			PrefetchConcurrency: b.PrefetchConcurrency,
			AssetRoot:           ".",
			CatalogPath:         "configs/catalog.yaml",
		},
		Cutout: CutoutConfig{
			URL:            "",
			Model:          "",
			TimeoutSeconds: int(cutout.DefaultTimeout / time.Second),
		},
		Output: OutputConfig{
			DefaultFormat: "png",
			Quality:       90,
			Lossless:      false,
			OutputDir:     "./output",
			Prefix:        "",
			Suffix:        "",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Missing fields keep
// their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Canvas.Size < 1 {
		return fmt.Errorf("canvas.size must be positive")
	}

	for name, hex := range map[string]string{
		"canvas.background":     c.Canvas.Background,
		"compose.divider_color": c.Compose.DividerColor,
		"compose.text.color":    c.Compose.Text.Color,
	} {
		if _, err := surface.ParseHex(hex); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.Detector.AlphaThreshold < 0 || c.Detector.AlphaThreshold > 255 {
		return fmt.Errorf("detector.alpha_threshold must be between 0 and 255")
	}

	if c.Detector.WhiteThreshold < 0 || c.Detector.WhiteThreshold > 255 {
		return fmt.Errorf("detector.white_threshold must be between 0 and 255")
	}

	if c.Refiner.Radius < 0 {
		return fmt.Errorf("refiner.radius cannot be negative")
	}

	if c.Refiner.Boost < 1 || c.Refiner.Boost > 2 {
		return fmt.Errorf("refiner.boost must be between 1 and 2")
	}

	if c.Render.SourceBlur < 0 || c.Render.OverlayBlur < 0 || c.Compose.DrawBlur < 0 {
		return fmt.Errorf("blur values cannot be negative")
	}

	if c.Compose.Text.MinSize <= 0 || c.Compose.Text.MaxSize < c.Compose.Text.MinSize {
		return fmt.Errorf("compose.text sizes must satisfy 0 < min_size <= max_size")
	}

	if c.Compose.Text.MarginRatio < 0 || c.Compose.Text.MarginRatio >= 0.5 {
		return fmt.Errorf("compose.text.margin_ratio must be between 0 and 0.5")
	}

	if c.Batch.ItemTimeoutSeconds < 1 {
		return fmt.Errorf("batch.item_timeout_seconds must be positive")
	}

	if c.Batch.PrefetchConcurrency < 1 {
		return fmt.Errorf("batch.prefetch_concurrency must be positive")
	}

	if c.Cutout.TimeoutSeconds < 0 {
		return fmt.Errorf("cutout.timeout_seconds cannot be negative")
	}

	switch c.Output.DefaultFormat {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("output.default_format must be png, jpg or webp")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// RenderConfig returns the base renderer configuration
func (c *Config) RenderConfig() render.Config {
	return render.Config{
		CanvasSize:  c.Canvas.Size,
		SourceBlur:  c.Render.SourceBlur,
		OverlayBlur: c.Render.OverlayBlur,
		Refine: refine.Options{
			Radius: c.Refiner.Radius,
			Boost:  c.Refiner.Boost,
		},
		Detect: bounds.Options{
			Mode:      bounds.ModeAlpha,
			Threshold: uint8(c.Detector.AlphaThreshold),
			Padding:   c.Detector.Padding,
		},
	}
}

// ComposeConfig returns the compositor configuration
func (c *Config) ComposeConfig() compose.Config {
	return compose.Config{
		CanvasSize:          c.Canvas.Size,
		Background:          c.Canvas.Background,
		DividerColor:        c.Compose.DividerColor,
		WhiteThreshold:      uint8(c.Detector.WhiteThreshold),
		DrawBlur:            c.Compose.DrawBlur,
		CenterBadgeGapRatio: c.Compose.CenterBadgeGapRatio,
		EdgeMarginRatio:     c.Compose.EdgeMarginRatio,
		Text: compose.TextConfig{
			Color:       c.Compose.Text.Color,
			MaxSize:     c.Compose.Text.MaxSize,
			MinSize:     c.Compose.Text.MinSize,
			MarginRatio: c.Compose.Text.MarginRatio,
			TopRatio:    c.Compose.Text.TopRatio,
		},
	}
}

// BatchConfig returns the batch runner configuration
func (c *Config) BatchConfig() batch.Config {
	return batch.Config{
		ItemTimeout:         time.Duration(c.Batch.ItemTimeoutSeconds) * time.Second,
		PrefetchConcurrency: c.Batch.PrefetchConcurrency,
	}
}

// ProcessorConfig returns the image processor configuration
func (c *Config) ProcessorConfig() processing.Config {
	p := processing.DefaultConfig()
	p.AssetRoot = c.Batch.AssetRoot
	return p
}

// CutoutClient returns the background-removal client, or nil when no
// server is configured
func (c *Config) CutoutClient() *cutout.Client {
	if c.Cutout.URL == "" {
		return nil
	}
	return cutout.NewClient(c.Cutout.URL, c.Cutout.Model, time.Duration(c.Cutout.TimeoutSeconds)*time.Second)
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "product-compositor", "config.json")
}
