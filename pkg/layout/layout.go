// Package layout defines the declarative per-product layout specification
// consumed by the renderer and the compositor.
package layout

import (
	"fmt"
	"image"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/product-compositor/pkg/types"
)

// Kind names a layout strategy.
type Kind string

const (
	KindSideBySide     Kind = "side-by-side"
	KindSingleCentered Kind = "single-centered"
)

// ScaleMode selects how the left panel of a side-by-side layout is sized.
type ScaleMode string

const (
	ScaleHeight ScaleMode = "height"
	ScaleWidth  ScaleMode = "width"
)

// Side is a horizontal side of the canvas.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Defaults applied when a ratio is left unset.
const (
	DefaultLeftHeightRatio   = 0.80
	DefaultLeftWidthRatio    = 0.52
	DefaultRightHeightRatio  = 0.80
	DefaultTargetHeightRatio = 0.80
	DefaultIconWidthRatio    = 0.5
	DefaultFilmOverlapPx     = 2
	DefaultFilmAlpha         = 160
	DefaultFilmHeightRatio   = 1.0
)

// Assets resolves image references used by overlays and badges.
type Assets interface {
	Image(ref string) (image.Image, bool)
}

// AssetMap is an in-memory Assets implementation.
type AssetMap map[string]image.Image

// Image implements Assets.
func (m AssetMap) Image(ref string) (image.Image, bool) {
	img, ok := m[ref]
	return img, ok && img != nil
}

// Spec is the immutable layout description of one product.
type Spec struct {
	// Accessory products supply their own cutout and never publish bounds.
	Accessory bool     `yaml:"accessory" json:"accessory"`
	Overlay   *Overlay `yaml:"overlay,omitempty" json:"overlay,omitempty"`
	Layout    Layout   `yaml:"layout" json:"layout"`
}

// Validate checks the spec for invalid field combinations.
func (s Spec) Validate() error {
	if s.Overlay != nil {
		if err := s.Overlay.Validate(); err != nil {
			return fmt.Errorf("overlay: %w", err)
		}
	}
	if err := s.Layout.Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	return nil
}

// Refs returns every asset reference the spec draws.
func (s Spec) Refs() []string {
	var refs []string
	if o := s.Overlay; o != nil {
		if o.Decals != nil && o.Decals.Image != "" {
			refs = append(refs, o.Decals.Image)
		}
		if o.Icon != nil && o.Icon.Image != "" {
			refs = append(refs, o.Icon.Image)
		}
	}
	switch l := s.Layout; l.Kind {
	case KindSideBySide:
		for _, b := range l.SideBySide.Badges {
			refs = append(refs, b.Src)
		}
		for _, b := range l.SideBySide.CenterBadges {
			refs = append(refs, b.Src)
		}
	case KindSingleCentered:
		for _, b := range l.SingleCentered.EdgeBadges {
			refs = append(refs, b.Src)
		}
		if f := l.SingleCentered.Film; f != nil {
			refs = append(refs, f.Asset)
		}
	}
	return refs
}

// Layout is a tagged union over the layout strategies. Exactly one of the
// pointers matching Kind is set.
type Layout struct {
	Kind           Kind
	SideBySide     *SideBySide
	SingleCentered *SingleCentered
}

// SideBySideLayout wraps s as a Layout
func SideBySideLayout(s SideBySide) Layout {
	return Layout{Kind: KindSideBySide, SideBySide: &s}
}

// SingleCenteredLayout wraps s as a Layout
func SingleCenteredLayout(s SingleCentered) Layout {
	return Layout{Kind: KindSingleCentered, SingleCentered: &s}
}

// Validate checks that the tag and payload agree.
func (l Layout) Validate() error {
	switch l.Kind {
	case KindSideBySide:
		if l.SideBySide == nil || l.SingleCentered != nil {
			return fmt.Errorf("kind %q requires only side-by-side settings", l.Kind)
		}
		return l.SideBySide.validate()
	case KindSingleCentered:
		if l.SingleCentered == nil || l.SideBySide != nil {
			return fmt.Errorf("kind %q requires only single-centered settings", l.Kind)
		}
		return l.SingleCentered.validate()
	case "":
		return fmt.Errorf("missing layout kind")
	default:
		return fmt.Errorf("unknown layout kind %q", l.Kind)
	}
}

// UnmarshalYAML decodes the union keyed on its "kind" field.
func (l *Layout) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		Kind Kind `yaml:"kind"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}

	switch head.Kind {
	case KindSideBySide:
		var s SideBySide
		if err := node.Decode(&s); err != nil {
			return fmt.Errorf("side-by-side layout: %w", err)
		}
		*l = SideBySideLayout(s)
	case KindSingleCentered:
		var s SingleCentered
		if err := node.Decode(&s); err != nil {
			return fmt.Errorf("single-centered layout: %w", err)
		}
		*l = SingleCenteredLayout(s)
	case "":
		return fmt.Errorf("line %d: layout kind is required", node.Line)
	default:
		return fmt.Errorf("line %d: unknown layout kind %q", node.Line, head.Kind)
	}
	return nil
}

// MarshalYAML flattens the union back into a single mapping.
func (l Layout) MarshalYAML() (interface{}, error) {
	switch l.Kind {
	case KindSideBySide:
		return struct {
			Kind       Kind `yaml:"kind"`
			SideBySide `yaml:",inline"`
		}{l.Kind, *l.SideBySide}, nil
	case KindSingleCentered:
		return struct {
			Kind           Kind `yaml:"kind"`
			SingleCentered `yaml:",inline"`
		}{l.Kind, *l.SingleCentered}, nil
	default:
		return nil, fmt.Errorf("unknown layout kind %q", l.Kind)
	}
}

// Badge is a decorative image positioned relative to the whole canvas.
type Badge struct {
	Src string `yaml:"src" json:"src"`
	// WidthRatio is the badge width as a fraction of the canvas width.
	WidthRatio float64 `yaml:"width_ratio" json:"width_ratio"`
	// YRatio is the vertical position of the badge center.
	YRatio float64 `yaml:"y_ratio" json:"y_ratio"`
}

func (b Badge) validate() error {
	if b.Src == "" {
		return fmt.Errorf("badge without src")
	}
	if b.WidthRatio <= 0 || b.WidthRatio > 1 {
		return fmt.Errorf("badge %s: width ratio %v out of (0,1]", b.Src, b.WidthRatio)
	}
	return nil
}

// EdgeBadge is a badge pinned to the left or right canvas edge.
type EdgeBadge struct {
	Badge `yaml:",inline"`
	Side  Side `yaml:"side" json:"side"`
}

// SideBySide places the processed panel and the reference in two columns.
type SideBySide struct {
	DividerColor      string  `yaml:"divider_color,omitempty" json:"divider_color,omitempty"`
	DividerWidthRatio float64 `yaml:"divider_width_ratio,omitempty" json:"divider_width_ratio,omitempty"`

	LeftScaleMode   ScaleMode `yaml:"left_scale_mode,omitempty" json:"left_scale_mode,omitempty"`
	LeftHeightRatio float64   `yaml:"left_height_ratio,omitempty" json:"left_height_ratio,omitempty"`
	// LeftWidthRatio is a fraction of the column width, used in width mode.
	LeftWidthRatio float64 `yaml:"left_width_ratio,omitempty" json:"left_width_ratio,omitempty"`
	// LeftWidthCanvasRatio and LeftCanvasOffsetRatioX size the left panel in
	// canvas units and take precedence over the scale mode when set.
	LeftWidthCanvasRatio   float64 `yaml:"left_width_canvas_ratio,omitempty" json:"left_width_canvas_ratio,omitempty"`
	LeftCanvasOffsetRatioX float64 `yaml:"left_canvas_offset_ratio_x,omitempty" json:"left_canvas_offset_ratio_x,omitempty"`

	RightHeightRatio float64 `yaml:"right_height_ratio,omitempty" json:"right_height_ratio,omitempty"`

	// WhiteCrop re-crops the left panel by white-background detection.
	WhiteCrop        bool `yaml:"white_crop,omitempty" json:"white_crop,omitempty"`
	WhiteCropPadding int  `yaml:"white_crop_padding,omitempty" json:"white_crop_padding,omitempty"`

	Badges       []Badge `yaml:"badges,omitempty" json:"badges,omitempty"`
	CenterBadges []Badge `yaml:"center_badges,omitempty" json:"center_badges,omitempty"`
}

// WithDefaults returns a copy with unset ratios filled in.
func (s SideBySide) WithDefaults() SideBySide {
	if s.LeftScaleMode == "" {
		s.LeftScaleMode = ScaleHeight
	}
	if s.LeftHeightRatio == 0 {
		s.LeftHeightRatio = DefaultLeftHeightRatio
	}
	if s.LeftWidthRatio == 0 {
		s.LeftWidthRatio = DefaultLeftWidthRatio
	}
	if s.RightHeightRatio == 0 {
		s.RightHeightRatio = DefaultRightHeightRatio
	}
	return s
}

// AbsoluteLeft reports whether the left panel is sized in canvas units.
func (s SideBySide) AbsoluteLeft() bool {
	return s.LeftWidthCanvasRatio > 0
}

func (s SideBySide) validate() error {
	switch s.LeftScaleMode {
	case "", ScaleHeight, ScaleWidth:
	default:
		return fmt.Errorf("unknown left scale mode %q", s.LeftScaleMode)
	}
	for name, v := range map[string]float64{
		"divider_width_ratio":        s.DividerWidthRatio,
		"left_height_ratio":          s.LeftHeightRatio,
		"left_width_ratio":           s.LeftWidthRatio,
		"left_width_canvas_ratio":    s.LeftWidthCanvasRatio,
		"left_canvas_offset_ratio_x": s.LeftCanvasOffsetRatioX,
		"right_height_ratio":         s.RightHeightRatio,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s %v out of [0,1]", name, v)
		}
	}
	for _, b := range append(append([]Badge(nil), s.Badges...), s.CenterBadges...) {
		if err := b.validate(); err != nil {
			return err
		}
	}
	return nil
}

// SingleCentered shows the processed subject alone, centered.
type SingleCentered struct {
	TargetHeightRatio float64 `yaml:"target_height_ratio,omitempty" json:"target_height_ratio,omitempty"`
	// CenterOffsetRatioX shifts the subject (or the film pair) horizontally,
	// in canvas widths. Positive moves right.
	CenterOffsetRatioX float64 `yaml:"center_offset_ratio_x,omitempty" json:"center_offset_ratio_x,omitempty"`

	EdgeBadges []EdgeBadge  `yaml:"edge_badges,omitempty" json:"edge_badges,omitempty"`
	Film       *FilmPairing `yaml:"film,omitempty" json:"film,omitempty"`
}

// WithDefaults returns a copy with unset ratios filled in.
func (s SingleCentered) WithDefaults() SingleCentered {
	if s.TargetHeightRatio == 0 {
		s.TargetHeightRatio = DefaultTargetHeightRatio
	}
	if s.Film != nil {
		f := s.Film.WithDefaults()
		s.Film = &f
	}
	return s
}

func (s SingleCentered) validate() error {
	if s.TargetHeightRatio < 0 || s.TargetHeightRatio > 1 {
		return fmt.Errorf("target_height_ratio %v out of [0,1]", s.TargetHeightRatio)
	}
	if s.CenterOffsetRatioX < -0.5 || s.CenterOffsetRatioX > 0.5 {
		return fmt.Errorf("center_offset_ratio_x %v out of [-0.5,0.5]", s.CenterOffsetRatioX)
	}
	for _, b := range s.EdgeBadges {
		if err := b.validate(); err != nil {
			return err
		}
		if b.Side != SideLeft && b.Side != SideRight {
			return fmt.Errorf("badge %s: unknown side %q", b.Src, b.Side)
		}
	}
	if s.Film != nil {
		return s.Film.validate()
	}
	return nil
}

// FilmPairing places a protective film asset next to the subject.
type FilmPairing struct {
	Asset string `yaml:"asset" json:"asset"`
	// Side is where the film goes relative to the subject.
	Side Side `yaml:"side" json:"side"`
	// OverlapPx is the minimum horizontal overlap between the two pieces.
	OverlapPx int `yaml:"overlap_px,omitempty" json:"overlap_px,omitempty"`
	// AlphaThreshold trims the film to its opaque bezel.
	AlphaThreshold uint8 `yaml:"alpha_threshold,omitempty" json:"alpha_threshold,omitempty"`
	// HeightRatio is the film height relative to the subject height.
	HeightRatio float64 `yaml:"height_ratio,omitempty" json:"height_ratio,omitempty"`
}

// WithDefaults returns a copy with unset fields filled in.
func (f FilmPairing) WithDefaults() FilmPairing {
	if f.Side == "" {
		f.Side = SideLeft
	}
	if f.OverlapPx <= 0 {
		f.OverlapPx = DefaultFilmOverlapPx
	}
	if f.AlphaThreshold == 0 {
		f.AlphaThreshold = DefaultFilmAlpha
	}
	if f.HeightRatio <= 0 {
		f.HeightRatio = DefaultFilmHeightRatio
	}
	return f
}

func (f FilmPairing) validate() error {
	if f.Asset == "" {
		return fmt.Errorf("film without asset")
	}
	switch f.Side {
	case "", SideLeft, SideRight:
	default:
		return fmt.Errorf("film: unknown side %q", f.Side)
	}
	return nil
}

// Overlay is an effect drawn inside a region of the detected device bounds.
// Decals and Icon are mutually exclusive.
type Overlay struct {
	// Area is relative to the active content bounds.
	Area types.Box `yaml:"area" json:"area"`

	// FillColor is a hex color painted over Area before decals.
	FillColor string  `yaml:"fill_color,omitempty" json:"fill_color,omitempty"`
	Decals    *Decals `yaml:"decals,omitempty" json:"decals,omitempty"`
	Icon      *Icon   `yaml:"icon,omitempty" json:"icon,omitempty"`
}

// Validate rejects overlays that combine icon and decal modes.
func (o Overlay) Validate() error {
	if o.Area.W <= 0 || o.Area.H <= 0 {
		return fmt.Errorf("empty overlay area")
	}
	if o.Icon != nil && (o.Decals != nil || o.FillColor != "") {
		return fmt.Errorf("icon overlay cannot be combined with fill or decals")
	}
	if o.Icon != nil && o.Icon.Image == "" {
		return fmt.Errorf("icon overlay without image")
	}
	if o.Decals != nil && o.Decals.Image == "" && len(o.Decals.Points) > 0 {
		return fmt.Errorf("decal points without image")
	}
	return nil
}

// Decals stamps one image at several points of the overlay area.
type Decals struct {
	Image  string       `yaml:"image" json:"image"`
	Points []DecalPoint `yaml:"points" json:"points"`
}

// DecalPoint is a decal center relative to the overlay area, and its size as
// a fraction of the area width.
type DecalPoint struct {
	X    float64 `yaml:"x" json:"x"`
	Y    float64 `yaml:"y" json:"y"`
	Size float64 `yaml:"size" json:"size"`
}

// Icon is a single image centered in the overlay area.
type Icon struct {
	Image string `yaml:"image" json:"image"`
	// WidthRatio is the icon width as a fraction of the area width.
	WidthRatio float64 `yaml:"width_ratio,omitempty" json:"width_ratio,omitempty"`
}

// Width returns the configured width ratio or its default.
func (i Icon) Width() float64 {
	if i.WidthRatio <= 0 {
		return DefaultIconWidthRatio
	}
	return i.WidthRatio
}
