package stereo

import "math"

// Unreliable is the disparity sentinel for pixels that failed the
// uniqueness test and were not repaired by interpolation.
const Unreliable int16 = -1

// selectDisparities performs the winner-take-all scan over the block-cost
// volume and writes the disparity map. For every pixel inside the valid
// region (y in [h, H-h), x in [maxDisparity, W-h)):
//
//  1. The candidate range is clipped per pixel: dLimit = maxDisparity when
//     x >= h+maxDisparity, else x-h, so the reference window in the right
//     image never reaches outside it.
//  2. A forward scan picks the smallest d achieving the minimum block cost.
//  3. With uniquenessThreshold > 0, any non-neighbouring candidate whose
//     cost undercuts minCost*(1+0.01*threshold) marks the pixel Unreliable.
//  4. An interior winner is refined by fitting a parabola through the three
//     costs around it; a degenerate denominator falls back to the integer
//     winner.
//
// Pixels outside the valid region, and pixels whose clipped range is empty,
// keep the zero the output buffer was cleared to.
func selectDisparities(bv *blockVolume, out *Image, half, maxDisparity, uniquenessThreshold int) {
	out.mustKind(S16)
	w, h := bv.width, bv.height
	dst := out.PixS16

	for i := range dst {
		dst[i] = 0
	}

	n := w * h
	for y := half; y < h-half; y++ {
		row := y * w
		for x := maxDisparity; x < w-half; x++ {
			dLimit := maxDisparity
			if x < half+maxDisparity {
				dLimit = x - half
			}
			if dLimit < 0 {
				continue
			}

			best := 0
			minCost := bv.pix[row+x]
			for d := 1; d <= dLimit; d++ {
				if c := bv.pix[d*n+row+x]; c < minCost {
					minCost = c
					best = d
				}
			}

			if uniquenessThreshold > 0 {
				thresh := float64(minCost) * (1 + 0.01*float64(uniquenessThreshold))
				unique := true
				for d := 0; d <= dLimit; d++ {
					if d-best > 1 || best-d > 1 {
						if float64(bv.pix[d*n+row+x]) < thresh {
							unique = false
							break
						}
					}
				}
				if !unique {
					dst[row+x] = Unreliable
					continue
				}
			}

			disparity := int16(best)
			if best > 0 && best < dLimit {
				p := int64(bv.pix[(best-1)*n+row+x])
				c := int64(minCost)
				nx := int64(bv.pix[(best+1)*n+row+x])
				if denom := p - 2*c + nx; denom != 0 {
					refined := float64(best) - 0.5*float64(nx-p)/float64(denom)
					disparity = int16(math.Round(refined))
				}
			}
			dst[row+x] = disparity
		}
	}
}
