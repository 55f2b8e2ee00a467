package batch

import (
	"context"
	"fmt"
	"image"

	apperrors "github.com/menta2k/product-compositor/internal/errors"
	"github.com/menta2k/product-compositor/internal/logger"
	"github.com/menta2k/product-compositor/pkg/layout"
)

// Pair is one free pairing: an accessory photo on the left and a reference
// photo on the right.
type Pair struct {
	ID    string
	Left  []byte
	Right []byte
}

// PairParams are the layout controls shared by every pair of a run.
type PairParams struct {
	// LeftWidthRatio is the left panel width in canvas widths.
	LeftWidthRatio float64 `json:"left_width_ratio"`
	// LeftOffsetRatio is the left panel distance from the canvas edge.
	LeftOffsetRatio  float64 `json:"left_offset_ratio"`
	RightHeightRatio float64 `json:"right_height_ratio"`

	WhiteCrop   bool `json:"white_crop"`
	CutoutLeft  bool `json:"cutout_left"`
	CutoutRight bool `json:"cutout_right"`

	Badges []layout.Badge `json:"badges,omitempty"`
	SKU    string         `json:"sku,omitempty"`
}

// Accepted ranges of the pair sliders.
const (
	MinPairLeftWidth   = 0.34
	MaxPairLeftWidth   = 0.52
	MinPairLeftOffset  = 0.02
	MaxPairLeftOffset  = 0.08
	MinPairRightHeight = 0.74
	MaxPairRightHeight = 0.86
)

// DefaultPairParams returns the initial slider positions
func DefaultPairParams() PairParams {
	return PairParams{
		LeftWidthRatio:   0.40,
		LeftOffsetRatio:  0.04,
		RightHeightRatio: 0.80,
	}
}

// Validate checks every slider against its range.
func (p PairParams) Validate() error {
	for _, c := range []struct {
		name      string
		v, lo, hi float64
	}{
		{"left_width_ratio", p.LeftWidthRatio, MinPairLeftWidth, MaxPairLeftWidth},
		{"left_offset_ratio", p.LeftOffsetRatio, MinPairLeftOffset, MaxPairLeftOffset},
		{"right_height_ratio", p.RightHeightRatio, MinPairRightHeight, MaxPairRightHeight},
	} {
		if c.v < c.lo || c.v > c.hi {
			return fmt.Errorf("%s %v out of [%v,%v]", c.name, c.v, c.lo, c.hi)
		}
	}
	return nil
}

// Spec returns the accessory layout every pair is drawn with. A background
// removed left photo is never white-cropped.
func (p PairParams) Spec() layout.Spec {
	return layout.Spec{
		Accessory: true,
		Layout: layout.SideBySideLayout(layout.SideBySide{
			LeftWidthCanvasRatio:   p.LeftWidthRatio,
			LeftCanvasOffsetRatioX: p.LeftOffsetRatio,
			RightHeightRatio:       p.RightHeightRatio,
			WhiteCrop:              p.WhiteCrop && !p.CutoutLeft,
			Badges:                 p.Badges,
		}),
	}
}

// RunPairs composes every pair with the same parameters. Invalid parameters
// fail every pair.
func (r *Runner) RunPairs(ctx context.Context, pairs []Pair, params PairParams, l Listener) Report {
	b := r.begin(l)
	logger.WithField("items", len(pairs)).Info("pair batch started")

	ids := make([]string, len(pairs))
	for i, p := range pairs {
		ids[i] = p.ID
		if ids[i] == "" {
			ids[i] = fmt.Sprintf("pair-%d", i+1)
		}
	}

	if err := params.Validate(); err != nil {
		for _, id := range ids {
			b.fail(id, apperrors.NewValidationError("invalid pair parameters", err))
		}
		return b.finish()
	}
	spec := params.Spec()

	for i, p := range pairs {
		if ctx.Err() != nil {
			b.cancelRest(ctx, ids[i:])
			break
		}
		id := ids[i]
		res, err := b.item(ctx, id, func(ctx context.Context) (Result, error) {
			left, err := b.photo(ctx, id, p.Left, params.CutoutLeft)
			if err != nil {
				return Result{}, err
			}
			right, err := b.photo(ctx, id, p.Right, params.CutoutRight)
			if err != nil {
				return Result{}, err
			}
			return b.render(ctx, id, spec, left, right, params.SKU)
		})
		if err != nil {
			b.fail(id, err)
			continue
		}
		b.complete(res)
	}
	return b.finish()
}

// photo decodes data, cutting the background out first when asked to. A
// failed cutout falls back to the original bytes; a failed decode yields a
// blank panel.
func (b *run) photo(ctx context.Context, id string, data []byte, cutout bool) (image.Image, error) {
	if len(data) == 0 {
		return nil, nil
	}
	log := logger.WithField("item", id)

	if cutout && b.remover != nil {
		out, err := b.remover.Remove(ctx, data)
		switch {
		case err == nil && len(out) > 0:
			data = out
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			log.WithError(err).Warn("background removal failed, using original photo")
		}
	}

	img, err := decode(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithError(err).Warn("failed to decode photo, using blank panel")
		return nil, nil
	}
	return img, nil
}
