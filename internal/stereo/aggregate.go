package stereo

import "sync"

// aggregateBlockCosts turns the pixel-cost volume into block sums over the
// (2h+1)x(2h+1) window centered on each pixel. Levels are independent, so
// with workers > 1 they are farmed out across goroutines; the sweeps inside
// a level stay serial because each row reuses the previous one.
func aggregateBlockCosts(cv *costVolume, half, workers int, progress func(done, total int)) *blockVolume {
	bv := newBlockVolume(cv.width, cv.height, cv.levels)

	if workers <= 1 {
		for d := 0; d < cv.levels; d++ {
			aggregatePlane(cv.plane(d), bv.plane(d), cv.width, cv.height, half, d)
			if progress != nil {
				progress(d+1, cv.levels)
			}
		}
		return bv
	}

	var wg sync.WaitGroup
	levels := make(chan int)
	var mu sync.Mutex
	done := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range levels {
				aggregatePlane(cv.plane(d), bv.plane(d), cv.width, cv.height, half, d)
				if progress != nil {
					mu.Lock()
					done++
					progress(done, cv.levels)
					mu.Unlock()
				}
			}
		}()
	}
	for d := 0; d < cv.levels; d++ {
		levels <- d
	}
	close(levels)
	wg.Wait()
	return bv
}

// aggregatePlane computes block sums for one disparity level with the
// running-window scheme. The swept region is x in [d+h, W-h-1],
// y in [h, H-h-1]; everything outside stays zero and the selector never
// reads it.
//
// Four phases:
//  1. the first block at (x0, y0) by direct summation,
//  2. the first row, sliding right by exchanging one window column,
//  3. the first column, sliding down by exchanging one window row,
//  4. the interior, where for each x two running column sums (the column
//     leaving the window on the left and the column entering on the right)
//     are updated one pixel at a time while y advances, giving
//     B(x,y) = B(x-1,y) - take + add.
//
// Everything is O(1) per pixel after the seed block, and the result is
// bit-identical to direct summation.
func aggregatePlane(cost []int16, block []uint32, w, h, half, d int) {
	x0 := d + half
	y0 := half
	xMax := w - half - 1
	yMax := h - half - 1
	if x0 > xMax || y0 > yMax {
		return
	}

	// Phase 1: seed block.
	var seed uint32
	for j := y0 - half; j <= y0+half; j++ {
		row := j * w
		for i := x0 - half; i <= x0+half; i++ {
			seed += uint32(cost[row+i])
		}
	}
	block[y0*w+x0] = seed

	// Phase 2: first row. Drop the column leaving on the left, gain the
	// column entering on the right.
	run := seed
	for x := x0 + 1; x <= xMax; x++ {
		for j := y0 - half; j <= y0+half; j++ {
			row := j * w
			run -= uint32(cost[row+x-half-1])
			run += uint32(cost[row+x+half])
		}
		block[y0*w+x] = run
	}

	// Phase 3: first column. Each step down exchanges the top row of the
	// previous window for the new bottom row.
	for y := y0 + 1; y <= yMax; y++ {
		acc := block[(y-1)*w+x0]
		top := (y - half - 1) * w
		bot := (y + half) * w
		for i := x0 - half; i <= x0+half; i++ {
			acc -= uint32(cost[top+i])
			acc += uint32(cost[bot+i])
		}
		block[y*w+x0] = acc
	}

	// Phase 4: interior. take is the column just left of the window,
	// add the column just entering it; both slide down one pixel per row.
	for x := x0 + 1; x <= xMax; x++ {
		tc := x - half - 1
		ac := x + half
		var take, add uint32
		for j := y0 - half; j <= y0+half; j++ {
			row := j * w
			take += uint32(cost[row+tc])
			add += uint32(cost[row+ac])
		}
		for y := y0 + 1; y <= yMax; y++ {
			top := (y - half - 1) * w
			bot := (y + half) * w
			take -= uint32(cost[top+tc])
			take += uint32(cost[bot+tc])
			add -= uint32(cost[top+ac])
			add += uint32(cost[bot+ac])
			block[y*w+x] = block[y*w+x-1] - take + add
		}
	}
}
