package stereo

// aggregatePlaneNaive recomputes every block sum by direct summation.
// It is the correctness reference for aggregatePlane: same swept region,
// same zero boundary, O(B^2) per pixel instead of O(1). The property
// tests require the two to agree bit for bit.
func aggregatePlaneNaive(cost []int16, block []uint32, w, h, half, d int) {
	x0 := d + half
	y0 := half
	xMax := w - half - 1
	yMax := h - half - 1
	if x0 > xMax || y0 > yMax {
		return
	}

	for y := y0; y <= yMax; y++ {
		for x := x0; x <= xMax; x++ {
			var sum uint32
			for j := y - half; j <= y+half; j++ {
				row := j * w
				for i := x - half; i <= x+half; i++ {
					sum += uint32(cost[row+i])
				}
			}
			block[y*w+x] = sum
		}
	}
}
