package processing

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/product-compositor/pkg/types"
)

// Config holds configuration for the processor
type Config struct {
	// AssetRoot is the directory relative asset references are resolved in.
	AssetRoot   string
	HTTPTimeout time.Duration
	UserAgent   string
	// MaxBytes limits downloaded and read assets. Zero means no limit.
	MaxBytes int64
}

// DefaultConfig returns the default processor configuration
func DefaultConfig() Config {
	return Config{
		AssetRoot:   ".",
		HTTPTimeout: 30 * time.Second,
		UserAgent:   "Product-Compositor/1.0",
		MaxBytes:    32 << 20,
	}
}

// Processor handles image loading, decoding and encoding
type Processor struct {
	config Config
	client *http.Client
}

// NewProcessor creates a new image processor with assets rooted at assetRoot
func NewProcessor(assetRoot string) *Processor {
	config := DefaultConfig()
	if assetRoot != "" {
		config.AssetRoot = assetRoot
	}
	return NewProcessorWithConfig(config)
}

// NewProcessorWithConfig creates a new image processor with custom configuration
func NewProcessorWithConfig(config Config) *Processor {
	if config.HTTPTimeout <= 0 {
		config.HTTPTimeout = DefaultConfig().HTTPTimeout
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultConfig().UserAgent
	}
	return &Processor{
		config: config,
		client: &http.Client{Timeout: config.HTTPTimeout},
	}
}

// Fetch returns the raw bytes of an asset reference. http and https
// references are downloaded; anything else is a path below AssetRoot.
func (p *Processor) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("empty asset reference")
	}
	if isURL(ref) {
		return p.download(ctx, ref)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(p.resolve(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to open asset %s: %w", ref, err)
	}
	defer f.Close()
	return p.readAll(f)
}

// FetchImage fetches and decodes an asset reference.
func (p *Processor) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	data, err := p.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	img, err := DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", ref, err)
	}
	return img, nil
}

// resolve maps a relative reference into AssetRoot. Leading slashes and ".."
// segments cannot leave the root.
func (p *Processor) resolve(ref string) string {
	clean := filepath.Clean("/" + filepath.FromSlash(ref))
	return filepath.Join(p.config.AssetRoot, clean)
}

func (p *Processor) download(ctx context.Context, imageURL string) ([]byte, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", p.config.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	return p.readAll(resp.Body)
}

func (p *Processor) readAll(r io.Reader) ([]byte, error) {
	if p.config.MaxBytes > 0 {
		r = io.LimitReader(r, p.config.MaxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %v", err)
	}
	if p.config.MaxBytes > 0 && int64(len(data)) > p.config.MaxBytes {
		return nil, fmt.Errorf("image larger than %d bytes", p.config.MaxBytes)
	}
	return data, nil
}

// ReadSource returns the raw bytes of a user supplied photo: http and https
// sources are downloaded, anything else is read as a local path. Unlike
// Fetch, paths are not confined to AssetRoot.
func (p *Processor) ReadSource(ctx context.Context, source string) ([]byte, error) {
	if source == "" {
		return nil, fmt.Errorf("empty image source")
	}
	if isURL(source) {
		return p.download(ctx, source)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return p.readAll(f)
}

// DecodeBytes decodes JPEG, PNG or WebP data, honoring EXIF orientation.
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image: empty data")
	}
	if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	return Encode(img, "png", 0, false)
}

// Encode encodes img as png, jpg or webp.
func Encode(img image.Image, format string, quality int, lossless bool) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch strings.ToLower(format) {
	case "webp":
		err = webp.Encode(&buf, img, &webp.Options{Lossless: lossless, Quality: float32(quality)})
	case "png":
		err = imaging.Encode(&buf, img, imaging.PNG)
	case "jpg", "jpeg":
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// CreateDebugOverlay returns a copy of img with the content bounds and, when
// non-empty, an overlay area outlined.
func (p *Processor) CreateDebugOverlay(img image.Image, contentBox, overlayBox types.Box) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	green := color.NRGBA{0, 255, 0, 255}
	gold := color.NRGBA{255, 204, 0, 255}
	blue := color.NRGBA{0, 170, 255, 255}
	stroke := max(2, minInt(w, h)/250)

	drawBox(nrgba, contentBox, w, h, green, stroke)
	if overlayBox.W > 0 && overlayBox.H > 0 {
		drawBox(nrgba, overlayBox, w, h, gold, stroke)
	}

	// canvas center marker
	ix, iy := w/2, h/2
	drawHLine(nrgba, iy, ix-6, ix+6, blue)
	drawVLine(nrgba, ix, iy-6, iy+6, blue)

	return nrgba
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Helper functions
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func boxToPixels(box types.Box, w, h int) (int, int, int, int) {
	x0 := int(clamp(box.X, 0, 1)*float64(w) + 0.5)
	y0 := int(clamp(box.Y, 0, 1)*float64(h) + 0.5)
	x1 := int(clamp(box.X+box.W, 0, 1)*float64(w) + 0.5)
	y1 := int(clamp(box.Y+box.H, 0, 1)*float64(h) + 0.5)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return x0, y0, x1, y1
}

func drawBox(img *image.NRGBA, box types.Box, w, h int, color color.NRGBA, stroke int) {
	x0, y0, x1, y1 := boxToPixels(box, w, h)
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, color)
		drawHLine(img, y1-1-s, x0, x1, color)
		drawVLine(img, x0+s, y0, y1, color)
		drawVLine(img, x1-1-s, y0, y1, color)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
