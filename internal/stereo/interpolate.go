package stereo

// interpolationKernel weights the 5x5 neighbourhood used to repair
// unreliable pixels. Center-heavy, roughly Gaussian.
var interpolationKernel = [5][5]int32{
	{1, 2, 3, 2, 1},
	{2, 4, 6, 4, 2},
	{3, 6, 9, 6, 3},
	{2, 4, 6, 4, 2},
	{1, 2, 3, 2, 1},
}

// interpolateBadPixels replaces Unreliable pixels with a weighted average
// of their reliable 5x5 neighbourhood. The repair is accepted only when
// more than 5 reliable neighbours contributed and the absolute weighted
// sum exceeds 30; otherwise the pixel stays Unreliable.
//
// Reliability is judged against a snapshot of the input map, so pixels
// repaired earlier in the scan never feed later repairs.
func interpolateBadPixels(disp *Image) {
	disp.mustKind(S16)
	w, h := disp.Width, disp.Height
	src := make([]int16, len(disp.PixS16))
	copy(src, disp.PixS16)
	dst := disp.PixS16

	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			if src[row+x] != Unreliable {
				continue
			}

			var sum, weight int64
			contributors := 0
			for j := -2; j <= 2; j++ {
				ny := y + j
				if ny < 0 || ny >= h {
					continue
				}
				for i := -2; i <= 2; i++ {
					nx := x + i
					if nx < 0 || nx >= w {
						continue
					}
					v := src[ny*w+nx]
					if v == Unreliable {
						continue
					}
					k := int64(interpolationKernel[j+2][i+2])
					sum += k * int64(v)
					weight += k
					contributors++
				}
			}

			abs := sum
			if abs < 0 {
				abs = -abs
			}
			if contributors > 5 && abs > 30 {
				dst[row+x] = int16((sum + weight/2) / weight)
			}
		}
	}
}
