// Package tune searches matcher parameters against a ground-truth
// disparity map. The objective is the fraction of badly matched pixels,
// so a tuned parameter set transfers directly to similar scenes.
package tune

import (
	"fmt"

	"github.com/cwbudde/stereomatch/internal/stereo"
)

// ParamSpace bounds the searched matcher parameters.
type ParamSpace struct {
	MinBlockSize   int
	MaxBlockSize   int
	MinDisparity   int
	MaxDisparity   int
	MaxUniqueness  int
	BadPixelMargin int     // disparity error tolerated before a pixel counts as bad
	UnreliableCost float64 // weight of an Unreliable output pixel relative to a bad one
}

// DefaultParamSpace covers the ranges the interactive demo exposed.
func DefaultParamSpace() ParamSpace {
	return ParamSpace{
		MinBlockSize:   5,
		MaxBlockSize:   41,
		MinDisparity:   16,
		MaxDisparity:   120,
		MaxUniqueness:  50,
		BadPixelMargin: 1,
		UnreliableCost: 0.5,
	}
}

// Evaluator scores parameter vectors by matching a fixed stereo pair and
// comparing the result against a ground-truth disparity map. Parameter
// vectors live in [0,1]^3 and are decoded to (block size, max disparity,
// uniqueness threshold); the continuous space keeps the optimizer's
// box-constraint model simple.
type Evaluator struct {
	left  *stereo.Image
	right *stereo.Image
	truth *stereo.Image
	space ParamSpace
	evals int
}

// NewEvaluator validates the pair against the ground truth and returns an
// evaluator over the given parameter space.
func NewEvaluator(left, right, truth *stereo.Image, space ParamSpace) (*Evaluator, error) {
	if left.Kind != stereo.U8 || right.Kind != stereo.U8 {
		return nil, fmt.Errorf("stereo pair must be U8, got %s/%s", left.Kind, right.Kind)
	}
	if truth.Kind != stereo.S16 {
		return nil, fmt.Errorf("ground truth must be S16, got %s", truth.Kind)
	}
	if left.Width != right.Width || left.Height != right.Height ||
		left.Width != truth.Width || left.Height != truth.Height {
		return nil, fmt.Errorf("pair and ground truth sizes differ")
	}
	if space.MinBlockSize < 1 || space.MaxBlockSize < space.MinBlockSize {
		return nil, fmt.Errorf("bad block size range [%d, %d]", space.MinBlockSize, space.MaxBlockSize)
	}
	if space.MinDisparity < 0 || space.MaxDisparity < space.MinDisparity {
		return nil, fmt.Errorf("bad disparity range [%d, %d]", space.MinDisparity, space.MaxDisparity)
	}
	return &Evaluator{left: left, right: right, truth: truth, space: space}, nil
}

// Dim returns the dimensionality of the search space.
func (e *Evaluator) Dim() int { return 3 }

// Bounds returns the box constraints of the search space.
func (e *Evaluator) Bounds() (lower, upper []float64) {
	return []float64{0, 0, 0}, []float64{1, 1, 1}
}

// Evaluations reports how many times Cost has run.
func (e *Evaluator) Evaluations() int { return e.evals }

// Decode maps a continuous parameter vector to matcher settings. Block
// size snaps to the nearest odd value inside the range.
func (e *Evaluator) Decode(v []float64) stereo.Params {
	params := stereo.DefaultParams()

	block := e.space.MinBlockSize + int(clamp01(v[0])*float64(e.space.MaxBlockSize-e.space.MinBlockSize)+0.5)
	if block%2 == 0 {
		block++
	}
	if block > e.space.MaxBlockSize {
		block -= 2
	}
	if block < 1 {
		block = 1
	}
	params.BlockSize = block

	params.MaxDisparity = e.space.MinDisparity +
		int(clamp01(v[1])*float64(e.space.MaxDisparity-e.space.MinDisparity)+0.5)
	params.UniquenessThreshold = int(clamp01(v[2])*float64(e.space.MaxUniqueness) + 0.5)
	return params
}

// Cost matches the pair with the decoded parameters and scores the result:
// bad pixels count 1, Unreliable pixels count UnreliableCost, both
// normalised by the number of comparable pixels. Lower is better; a failed
// match scores 1.
func (e *Evaluator) Cost(v []float64) float64 {
	e.evals++
	params := e.Decode(v)

	out := stereo.NewImage(e.left.Width, e.left.Height, stereo.S16)
	if err := stereo.ComputeDisparityMap(e.left, e.right, out, params); err != nil {
		return 1
	}
	return e.score(out, params)
}

func (e *Evaluator) score(out *stereo.Image, params stereo.Params) float64 {
	w, h := out.Width, out.Height
	half := params.BlockSize / 2
	margin := int32(e.space.BadPixelMargin)

	total, bad := 0, 0
	unreliable := 0
	for y := half; y < h-half; y++ {
		row := y * w
		for x := params.MaxDisparity; x < w-half; x++ {
			truth := e.truth.PixS16[row+x]
			if truth == stereo.Unreliable {
				continue
			}
			total++
			got := out.PixS16[row+x]
			if got == stereo.Unreliable {
				unreliable++
				continue
			}
			diff := int32(got) - int32(truth)
			if diff < 0 {
				diff = -diff
			}
			if diff > margin {
				bad++
			}
		}
	}
	if total == 0 {
		return 1
	}
	return (float64(bad) + e.space.UnreliableCost*float64(unreliable)) / float64(total)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
