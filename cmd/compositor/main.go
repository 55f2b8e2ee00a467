package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	productcompositor "github.com/menta2k/product-compositor"
	"github.com/menta2k/product-compositor/internal/config"
	"github.com/menta2k/product-compositor/internal/logger"
	"github.com/menta2k/product-compositor/internal/utils"
	"github.com/menta2k/product-compositor/pkg/batch"
	"github.com/menta2k/product-compositor/pkg/catalog"
	"github.com/menta2k/product-compositor/pkg/processing"
)

// partFlags collects repeated -part id=path flags
type partFlags map[string]string

func (p partFlags) String() string {
	var parts []string
	for id, path := range p {
		parts = append(parts, id+"="+path)
	}
	return strings.Join(parts, ",")
}

func (p partFlags) Set(v string) error {
	id, path, ok := strings.Cut(v, "=")
	if !ok || id == "" || path == "" {
		return fmt.Errorf("expected id=path, got %q", v)
	}
	p[id] = path
	return nil
}

func main() {
	var configPath, catalogPath, assetRoot string
	var front, back, products, sku string
	var outDir, ext string
	var quality int
	var lossless bool
	var list, initConfig, debug bool

	// free pairing
	var left, right string
	var pairWidth, pairOffset, pairRight float64
	var whiteCrop, cutoutLeft, cutoutRight bool
	var cutoutURL string

	parts := partFlags{}

	flag.StringVar(&configPath, "config", "", "JSON config file (default: built-in defaults)")
	flag.StringVar(&catalogPath, "catalog", "", "product catalog YAML (overrides config)")
	flag.StringVar(&assetRoot, "assets", "", "directory asset references are resolved in (overrides config)")

	flag.StringVar(&front, "front", "", "device front photo path or URL")
	flag.StringVar(&back, "back", "", "device back photo path or URL")
	flag.StringVar(&products, "products", "", "comma separated product ids (default: all implemented)")
	flag.Var(parts, "part", "accessory upload as id=path, repeatable")
	flag.StringVar(&sku, "sku", "", "SKU label drawn on every composite")

	flag.StringVar(&outDir, "out", "", "output directory (overrides config)")
	flag.StringVar(&ext, "ext", "", "output format: png|jpg|webp (overrides config)")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&lossless, "lossless", false, "WebP output lossless mode")

	flag.StringVar(&left, "left", "", "free pairing: comma separated left photos or a directory")
	flag.StringVar(&right, "right", "", "free pairing: right reference photo")
	flag.Float64Var(&pairWidth, "pair-width", batch.DefaultPairParams().LeftWidthRatio, "free pairing: left width ratio (0.34..0.52)")
	flag.Float64Var(&pairOffset, "pair-offset", batch.DefaultPairParams().LeftOffsetRatio, "free pairing: left offset ratio (0.02..0.08)")
	flag.Float64Var(&pairRight, "pair-right", batch.DefaultPairParams().RightHeightRatio, "free pairing: right height ratio (0.74..0.86)")
	flag.BoolVar(&whiteCrop, "white-crop", false, "free pairing: crop the left photo by its white background")
	flag.BoolVar(&cutoutLeft, "cutout-left", false, "free pairing: remove the background of the left photo")
	flag.BoolVar(&cutoutRight, "cutout-right", false, "free pairing: remove the background of the right photo")
	flag.StringVar(&cutoutURL, "cutout-url", "", "background-removal server URL (overrides config)")

	flag.BoolVar(&list, "list", false, "list catalog products and exit")
	flag.BoolVar(&initConfig, "init-config", false, "write the default config to -config (or the user config path) and exit")
	flag.BoolVar(&debug, "debug", false, "write base canvases with their content bounds outlined")
	flag.Parse()

	if initConfig {
		path := configPath
		if path == "" {
			path = config.GetConfigPath()
		}
		if err := config.Default().SaveToFile(path); err != nil {
			logger.Logger.Fatalf("failed to write config: %v", err)
		}
		fmt.Println(path)
		return
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			logger.Logger.Fatal(err)
		}
		cfg = loaded
	}
	applyOverrides(cfg, catalogPath, assetRoot, outDir, ext, quality, lossless)
	if cutoutURL != "" {
		cfg.Cutout.URL = cutoutURL
	}
	logger.SetLevel(cfg.Log.Level)
	logger.SetFormat(cfg.Log.Format)

	cat, err := catalog.Load(cfg.Batch.CatalogPath)
	if err != nil {
		logger.Logger.Fatal(err)
	}

	if list {
		printCatalog(cat)
		return
	}

	engine, err := productcompositor.NewWithConfig(cfg, cat, nil)
	if err != nil {
		logger.Logger.Fatal(err)
	}
	if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
		logger.Logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c := cfg.CutoutClient(); c != nil {
		if err := c.HealthCheck(ctx); err != nil {
			logger.WithError(err).Warn("cutout server unavailable, photos are used as is")
		}
	}

	saver := &saver{engine: engine, cfg: cfg, prefix: sku}
	var report batch.Report
	if left != "" {
		params := batch.DefaultPairParams()
		params.LeftWidthRatio = pairWidth
		params.LeftOffsetRatio = pairOffset
		params.RightHeightRatio = pairRight
		params.WhiteCrop = whiteCrop
		params.CutoutLeft = cutoutLeft
		params.CutoutRight = cutoutRight
		params.SKU = sku

		pairs, err := loadPairs(ctx, engine.Processor(), left, right)
		if err != nil {
			logger.Logger.Fatal(err)
		}
		report = engine.RunPairs(ctx, pairs, params, saver)
	} else {
		if front == "" && back == "" {
			logger.Logger.Fatalf("usage: %s -front front.png [-back back.png] [-products a,b] [-part id=path] [-sku SKU] [-out dir]\n       %s -left a.jpg,b.jpg -right ref.png [-pair-width 0.4]", filepath.Base(os.Args[0]), filepath.Base(os.Args[0]))
		}
		req, err := buildRequest(ctx, engine, front, back, products, parts)
		if err != nil {
			logger.Logger.Fatal(err)
		}
		req.SKU = sku
		if err := req.Selections.Validate(cat); err != nil {
			logger.Logger.Fatal(err)
		}
		if debug {
			writeDebug(ctx, engine, cfg, req)
		}
		report = engine.Run(ctx, req, saver)
	}

	writeReport(cfg.Output.OutputDir, report)
	if len(report.Failures) > 0 {
		os.Exit(1)
	}
}

// writeReport stores the batch report as report.json in dir.
func writeReport(dir string, report batch.Report) {
	js, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.WithError(err).Warn("failed to encode report")
		return
	}
	reportPath := filepath.Join(dir, "report.json")
	if err := os.WriteFile(reportPath, js, 0o644); err != nil {
		logger.WithError(err).Warn("failed to write report")
	}
}

func applyOverrides(cfg *config.Config, catalogPath, assetRoot, outDir, ext string, quality int, lossless bool) {
	if catalogPath != "" {
		cfg.Batch.CatalogPath = catalogPath
	}
	if assetRoot != "" {
		cfg.Batch.AssetRoot = assetRoot
	}
	if outDir != "" {
		cfg.Output.OutputDir = outDir
	}
	if ext != "" {
		cfg.Output.DefaultFormat = strings.ToLower(ext)
	}
	if quality > 0 {
		cfg.Output.Quality = quality
	}
	if lossless {
		cfg.Output.Lossless = true
	}
}

func printCatalog(cat *catalog.Catalog) {
	for _, p := range cat.Products() {
		status := " "
		if p.Implemented {
			status = "*"
		}
		part := ""
		if p.NeedsPartImage {
			part = " [part image"
			if p.DefaultPartImage != "" {
				part += ": " + p.DefaultPartImage
			}
			part += "]"
		}
		fmt.Printf("%s %-28s %-6s %-14s %s%s\n", status, p.ID, p.Side(), p.Spec().Layout.Kind, p.Title, part)
	}
}

func buildRequest(ctx context.Context, engine *productcompositor.Engine, front, back, products string, parts partFlags) (batch.Request, error) {
	var req batch.Request
	var err error
	p := engine.Processor()

	if front != "" {
		if req.Device.Front, err = p.ReadSource(ctx, front); err != nil {
			return req, fmt.Errorf("front photo: %w", err)
		}
	}
	if back != "" {
		if req.Device.Back, err = p.ReadSource(ctx, back); err != nil {
			return req, fmt.Errorf("back photo: %w", err)
		}
	}

	sel := catalog.NewSelections()
	if products == "" {
		for _, prod := range engine.Catalog().Implemented() {
			sel.Select(prod.ID)
		}
	} else {
		for _, id := range strings.Split(products, ",") {
			if id = strings.TrimSpace(id); id != "" {
				sel.Select(id)
			}
		}
	}

	for id, path := range parts {
		data, err := p.ReadSource(ctx, path)
		if err != nil {
			return req, fmt.Errorf("part image %s: %w", id, err)
		}
		sel.Select(id)
		sel.SetAccessory(id, data)
	}
	req.Selections = sel
	return req, nil
}

func loadPairs(ctx context.Context, p *processing.Processor, left, right string) ([]batch.Pair, error) {
	var lefts []string
	if utils.DirExists(left) {
		files, err := utils.ListImageFiles(left)
		if err != nil {
			return nil, err
		}
		lefts = files
	} else {
		for _, l := range strings.Split(left, ",") {
			if l = strings.TrimSpace(l); l != "" {
				lefts = append(lefts, l)
			}
		}
	}
	if len(lefts) == 0 {
		return nil, fmt.Errorf("no left photos in %q", left)
	}

	var rightData []byte
	if right != "" {
		data, err := p.ReadSource(ctx, right)
		if err != nil {
			return nil, fmt.Errorf("right photo: %w", err)
		}
		rightData = data
	}

	pairs := make([]batch.Pair, 0, len(lefts))
	for _, l := range lefts {
		data, err := p.ReadSource(ctx, l)
		if err != nil {
			return nil, fmt.Errorf("left photo %s: %w", l, err)
		}
		pairs = append(pairs, batch.Pair{ID: utils.BaseName(l), Left: data, Right: rightData})
	}
	return pairs, nil
}

// writeDebug saves the base canvas of every selected product rendered from
// the device photos, with its content bounds outlined.
func writeDebug(ctx context.Context, engine *productcompositor.Engine, cfg *config.Config, req batch.Request) {
	photos := map[catalog.Side][]byte{catalog.SideFront: req.Device.Front, catalog.SideBack: req.Device.Back}
	for _, id := range req.Selections.IDs() {
		p, ok := engine.Catalog().Get(id)
		if !ok || p.NeedsPartImage || len(photos[p.Side()]) == 0 {
			continue
		}
		src, err := processing.DecodeBytes(photos[p.Side()])
		if err != nil {
			logger.WithError(err).Warn("debug: failed to decode device photo")
			return
		}
		_, dbg, err := engine.DebugBase(ctx, id, src)
		if err != nil {
			logger.WithField("item", id).WithError(err).Warn("debug: render failed")
			continue
		}
		path := utils.OutputFilename(cfg.Output.OutputDir, "debug_", id, "", "png")
		if err := engine.Processor().SaveImage(dbg, path, "png", 0, false); err != nil {
			logger.WithField("item", id).WithError(err).Warn("debug: save failed")
			continue
		}
		logger.WithField("path", path).Info("wrote debug base")
	}
}

// saver writes every finished composite to the output directory
type saver struct {
	engine *productcompositor.Engine
	cfg    *config.Config
	prefix string
}

func (s *saver) ItemCompleted(res batch.Result) {
	out := s.cfg.Output
	prefix := out.Prefix
	if s.prefix != "" {
		prefix += utils.SanitizeFilename(s.prefix) + "_"
	}
	path := utils.OutputFilename(out.OutputDir, prefix, res.SourceID, out.Suffix, out.DefaultFormat)
	if err := s.engine.Save(res.CompositeHandle, path); err != nil {
		logger.WithField("item", res.SourceID).WithError(err).Error("failed to save composite")
		return
	}

	size := ""
	if info, err := os.Stat(path); err == nil {
		size = utils.FormatFileSize(info.Size())
	}
	logger.WithField("item", res.SourceID).WithField("path", path).WithField("size", size).Info("wrote composite")
}

func (s *saver) ItemFailed(id string, err error) {
	logger.WithField("item", id).WithError(err).Error("composite failed")
}

func (s *saver) BatchCompleted(report batch.Report) {
	fmt.Printf("%d composites written, %d failed, in %s\n", len(report.Results), len(report.Failures), report.Duration.Round(1e6))
}
