package stereo

import (
	"errors"
	"fmt"
)

// ErrInvalidParameters is returned when the images or matching parameters
// fail validation. It is detected before any allocation; the output buffer
// is untouched in that case.
var ErrInvalidParameters = errors.New("invalid parameters")

// Params configures a disparity computation.
type Params struct {
	// BlockSize is the full matching window side, odd and >= 1.
	BlockSize int

	// MaxDisparity is the largest candidate offset searched, >= 0.
	MaxDisparity int

	// UniquenessThreshold is the minimum margin (in percent) by which the
	// winning disparity must beat all non-neighbouring candidates. 0
	// disables the test, and no pixel is ever marked Unreliable.
	UniquenessThreshold int

	// PreFilter applies the horizontal gradient filter to both inputs
	// before matching.
	PreFilter bool

	// InterpolateBad repairs Unreliable pixels from their reliable
	// neighbourhood after selection.
	InterpolateBad bool

	// Workers bounds the goroutines aggregating disparity levels.
	// Values <= 1 keep the whole computation on the calling goroutine.
	Workers int

	// Progress, when non-nil, is invoked as pipeline stages advance.
	// It must be cheap; it is called from the matching goroutines.
	Progress func(stage string, done, total int)
}

// DefaultParams mirrors the interactive demo defaults.
func DefaultParams() Params {
	return Params{
		BlockSize:           11,
		MaxDisparity:        64,
		UniquenessThreshold: 15,
		PreFilter:           true,
		InterpolateBad:      true,
		Workers:             1,
	}
}

// Stage names reported through Params.Progress.
const (
	StagePrefilter   = "prefilter"
	StagePixelCost   = "pixel-cost"
	StageAggregate   = "aggregate"
	StageSelect      = "select"
	StageInterpolate = "interpolate"
)

// ComputeDisparityMap estimates, for each pixel of the left image, the
// horizontal offset at which the best-matching block is found in the right
// image, and writes the result into out. left and right must be U8 images
// of identical size, out an S16 image of the same size. The computation is
// a pure function of its inputs; on error the output is untouched.
func ComputeDisparityMap(left, right, out *Image, p Params) error {
	if err := validateInputs(left, right, out, p); err != nil {
		return err
	}

	half := p.BlockSize / 2
	report := func(stage string, done, total int) {
		if p.Progress != nil {
			p.Progress(stage, done, total)
		}
	}

	var leftPre, rightPre *Image
	if p.PreFilter {
		leftPre = horizontalSobel(left)
		rightPre = horizontalSobel(right)
	} else {
		leftPre = widenU8(left)
		rightPre = widenU8(right)
	}
	report(StagePrefilter, 2, 2)

	pixelCosts := buildPixelCosts(leftPre, rightPre, p.MaxDisparity)
	report(StagePixelCost, pixelCosts.levels, pixelCosts.levels)

	blockCosts := aggregateBlockCosts(pixelCosts, half, p.Workers, func(done, total int) {
		report(StageAggregate, done, total)
	})
	// The pixel-cost volume is only needed to build the block volume;
	// drop it before selection so peak memory is one volume of each.
	pixelCosts = nil

	selectDisparities(blockCosts, out, half, p.MaxDisparity, p.UniquenessThreshold)
	report(StageSelect, 1, 1)

	if p.InterpolateBad && p.UniquenessThreshold > 0 {
		interpolateBadPixels(out)
		report(StageInterpolate, 1, 1)
	}
	return nil
}

func validateInputs(left, right, out *Image, p Params) error {
	if left == nil || right == nil || out == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidParameters)
	}
	if left.Kind != U8 || right.Kind != U8 {
		return fmt.Errorf("%w: input images must be U8, got %s/%s",
			ErrInvalidParameters, left.Kind, right.Kind)
	}
	if out.Kind != S16 {
		return fmt.Errorf("%w: output image must be S16, got %s", ErrInvalidParameters, out.Kind)
	}
	if left.Width != right.Width || left.Height != right.Height ||
		left.Width != out.Width || left.Height != out.Height {
		return fmt.Errorf("%w: image sizes differ (%dx%d, %dx%d, %dx%d)",
			ErrInvalidParameters,
			left.Width, left.Height, right.Width, right.Height, out.Width, out.Height)
	}
	if left.Width <= 0 || left.Height <= 0 {
		return fmt.Errorf("%w: empty image", ErrInvalidParameters)
	}
	if p.BlockSize < 1 || p.BlockSize%2 == 0 {
		return fmt.Errorf("%w: block size must be odd and >= 1, got %d",
			ErrInvalidParameters, p.BlockSize)
	}
	if p.BlockSize > left.Width || p.BlockSize > left.Height {
		return fmt.Errorf("%w: block size %d exceeds image extent %dx%d",
			ErrInvalidParameters, p.BlockSize, left.Width, left.Height)
	}
	if p.MaxDisparity < 0 {
		return fmt.Errorf("%w: max disparity must be >= 0, got %d",
			ErrInvalidParameters, p.MaxDisparity)
	}
	return nil
}
