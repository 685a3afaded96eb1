package stereo

import (
	"errors"
	"math/rand"
	"testing"
)

// randomGray fills a U8 image with uncorrelated noise.
func randomGray(w, h int, seed int64) *Image {
	rng := rand.New(rand.NewSource(seed))
	im := NewImage(w, h, U8)
	for i := range im.PixU8 {
		im.PixU8[i] = uint8(rng.Intn(256))
	}
	return im
}

// shiftedPair builds a textured left image and a right image whose
// content sits k pixels to the left, i.e. right(x) = left(x+k), which is
// what a true disparity of k means under the cost definition
// C_d(x) = |L(x) - R(x-d)|. Columns with no source pixel stay zero.
func shiftedPair(w, h, k int, seed int64) (left, right *Image) {
	left = randomGray(w, h, seed)
	right = NewImage(w, h, U8)
	for y := 0; y < h; y++ {
		for x := 0; x+k < w; x++ {
			right.PixU8[y*w+x] = left.PixU8[y*w+x+k]
		}
	}
	return left, right
}

func TestComputeDisparityMap_InvalidParameters(t *testing.T) {
	valid := func() (l, r, o *Image) {
		return NewImage(32, 32, U8), NewImage(32, 32, U8), NewImage(32, 32, S16)
	}

	cases := []struct {
		name   string
		mutate func(l, r, o *Image) (*Image, *Image, *Image, Params)
	}{
		{"height mismatch", func(l, r, o *Image) (*Image, *Image, *Image, Params) {
			return l, r, NewImage(32, 16, S16), DefaultParams()
		}},
		{"width mismatch", func(l, r, o *Image) (*Image, *Image, *Image, Params) {
			return l, NewImage(16, 32, U8), o, DefaultParams()
		}},
		{"left not U8", func(l, r, o *Image) (*Image, *Image, *Image, Params) {
			return NewImage(32, 32, S16), r, o, DefaultParams()
		}},
		{"out not S16", func(l, r, o *Image) (*Image, *Image, *Image, Params) {
			return l, r, NewImage(32, 32, U32), DefaultParams()
		}},
		{"even block size", func(l, r, o *Image) (*Image, *Image, *Image, Params) {
			p := DefaultParams()
			p.BlockSize = 8
			return l, r, o, p
		}},
		{"zero block size", func(l, r, o *Image) (*Image, *Image, *Image, Params) {
			p := DefaultParams()
			p.BlockSize = 0
			return l, r, o, p
		}},
		{"block larger than image", func(l, r, o *Image) (*Image, *Image, *Image, Params) {
			p := DefaultParams()
			p.BlockSize = 33
			return l, r, o, p
		}},
		{"negative max disparity", func(l, r, o *Image) (*Image, *Image, *Image, Params) {
			p := DefaultParams()
			p.MaxDisparity = -1
			return l, r, o, p
		}},
		{"nil image", func(l, r, o *Image) (*Image, *Image, *Image, Params) {
			return l, nil, o, DefaultParams()
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, r, o := valid()
			l2, r2, o2, p := tc.mutate(l, r, o)

			// Pre-fill the output so untouched-on-error is observable.
			if o2 != nil {
				for i := range o2.PixS16 {
					o2.PixS16[i] = 99
				}
			}

			err := ComputeDisparityMap(l2, r2, o2, p)
			if !errors.Is(err, ErrInvalidParameters) {
				t.Fatalf("err = %v, want ErrInvalidParameters", err)
			}
			if o2 != nil {
				for i, v := range o2.PixS16 {
					if v != 99 {
						t.Fatalf("output pixel %d mutated to %d on failed validation", i, v)
					}
				}
			}
		})
	}
}

func TestComputeDisparityMap_ConstantImages(t *testing.T) {
	// Scenario: both images all 128, block 5, D 16, uniqueness off.
	left := NewImage(32, 32, U8)
	right := NewImage(32, 32, U8)
	for i := range left.PixU8 {
		left.PixU8[i] = 128
		right.PixU8[i] = 128
	}
	out := NewImage(32, 32, S16)

	params := Params{BlockSize: 5, MaxDisparity: 16, PreFilter: true, Workers: 1}
	if err := ComputeDisparityMap(left, right, out, params); err != nil {
		t.Fatal(err)
	}

	for y := 2; y < 30; y++ {
		for x := 16; x < 30; x++ {
			if got := out.AtS16(x, y); got != 0 {
				t.Errorf("disparity(%d,%d) = %d, want 0 for constant inputs", x, y, got)
			}
		}
	}
}

func TestComputeDisparityMap_IdenticalTexturedImages(t *testing.T) {
	left := randomGray(48, 32, 21)
	out := NewImage(48, 32, S16)

	params := Params{BlockSize: 7, MaxDisparity: 12, PreFilter: true, Workers: 1}
	if err := ComputeDisparityMap(left, left, out, params); err != nil {
		t.Fatal(err)
	}

	half := 3
	for y := half; y < 32-half; y++ {
		for x := 12; x < 48-half; x++ {
			if got := out.AtS16(x, y); got != 0 {
				t.Errorf("disparity(%d,%d) = %d, want 0 for identical images", x, y, got)
			}
		}
	}
}

func TestComputeDisparityMap_ShiftedTexture(t *testing.T) {
	const (
		w, h  = 64, 32
		k     = 3
		block = 5
		maxD  = 16
	)
	left, right := shiftedPair(w, h, k, 22)
	out := NewImage(w, h, S16)

	params := Params{BlockSize: block, MaxDisparity: maxD, PreFilter: true, Workers: 1}
	if err := ComputeDisparityMap(left, right, out, params); err != nil {
		t.Fatal(err)
	}

	// Stay clear of the right edge, where the shifted image ran out of
	// source columns, and of the window border.
	half := block / 2
	for y := half; y < h-half; y++ {
		for x := maxD; x < w-half-k-half; x++ {
			got := out.AtS16(x, y)
			if got < k-1 || got > k+1 {
				t.Errorf("disparity(%d,%d) = %d, want %d (+-1)", x, y, got, k)
			}
		}
	}
}

func TestComputeDisparityMap_ShiftedStepEdge(t *testing.T) {
	// Scenario: left half black, right half white, shifted by 3. Only
	// the gradient edge carries texture, so check the columns around it.
	const (
		w, h  = 64, 32
		k     = 3
		block = 5
		maxD  = 16
	)
	left := NewImage(w, h, U8)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			left.PixU8[y*w+x] = 255
		}
	}
	right := NewImage(w, h, U8)
	for y := 0; y < h; y++ {
		for x := 0; x+k < w; x++ {
			right.PixU8[y*w+x] = left.PixU8[y*w+x+k]
		}
	}
	out := NewImage(w, h, S16)

	params := Params{BlockSize: block, MaxDisparity: maxD, PreFilter: true, Workers: 1}
	if err := ComputeDisparityMap(left, right, out, params); err != nil {
		t.Fatal(err)
	}

	half := block / 2
	edge := w / 2
	for y := half + 1; y < h-half-1; y++ {
		for x := edge - 1; x <= edge+1; x++ {
			got := out.AtS16(x, y)
			if got < k-1 || got > k+1 {
				t.Errorf("disparity(%d,%d) = %d, want %d (+-1) at the textured edge", x, y, got, k)
			}
		}
	}
}

func TestComputeDisparityMap_NoisePairMostlyUnreliable(t *testing.T) {
	// Scenario: uncorrelated noise with uniqueness filtering; the
	// majority of valid pixels must be rejected.
	const (
		w, h  = 64, 48
		block = 7
		maxD  = 32
	)
	left := randomGray(w, h, 100)
	right := randomGray(w, h, 200)
	out := NewImage(w, h, S16)

	params := Params{
		BlockSize:           block,
		MaxDisparity:        maxD,
		UniquenessThreshold: 15,
		PreFilter:           true,
		Workers:             1,
	}
	if err := ComputeDisparityMap(left, right, out, params); err != nil {
		t.Fatal(err)
	}

	half := block / 2
	total, unreliable := 0, 0
	for y := half; y < h-half; y++ {
		for x := maxD; x < w-half; x++ {
			total++
			if out.AtS16(x, y) == Unreliable {
				unreliable++
			}
		}
	}
	if unreliable*2 <= total {
		t.Errorf("unreliable %d of %d valid pixels, want majority", unreliable, total)
	}
}

func TestComputeDisparityMap_UniquenessZeroNeverUnreliable(t *testing.T) {
	left := randomGray(48, 32, 5)
	right := randomGray(48, 32, 6)
	out := NewImage(48, 32, S16)

	params := Params{BlockSize: 7, MaxDisparity: 16, PreFilter: true, InterpolateBad: true, Workers: 1}
	if err := ComputeDisparityMap(left, right, out, params); err != nil {
		t.Fatal(err)
	}

	for i, v := range out.PixS16 {
		if v == Unreliable {
			t.Fatalf("pixel %d unreliable with threshold 0", i)
		}
	}
}

func TestComputeDisparityMap_MaxDisparityZero(t *testing.T) {
	left := randomGray(32, 24, 7)
	right := randomGray(32, 24, 8)
	out := NewImage(32, 24, S16)

	params := Params{BlockSize: 5, MaxDisparity: 0, UniquenessThreshold: 10, PreFilter: true, Workers: 1}
	if err := ComputeDisparityMap(left, right, out, params); err != nil {
		t.Fatal(err)
	}

	for i, v := range out.PixS16 {
		if v != 0 && v != Unreliable {
			t.Fatalf("pixel %d = %d, want 0 or Unreliable with no disparity range", i, v)
		}
	}
}

func TestComputeDisparityMap_BlockSizeOne(t *testing.T) {
	// h = 0 reduces aggregation to the pixel costs themselves; the
	// pipeline must still run end to end.
	left := randomGray(24, 16, 9)
	out := NewImage(24, 16, S16)

	params := Params{BlockSize: 1, MaxDisparity: 8, PreFilter: true, Workers: 1}
	if err := ComputeDisparityMap(left, left, out, params); err != nil {
		t.Fatal(err)
	}

	for y := 0; y < 16; y++ {
		for x := 8; x < 24; x++ {
			if got := out.AtS16(x, y); got != 0 {
				t.Errorf("disparity(%d,%d) = %d, want 0 for identical images", x, y, got)
			}
		}
	}
}

func TestComputeDisparityMap_NarrowImage(t *testing.T) {
	// W = maxDisparity + h + 1 leaves a single valid column whose
	// candidate range is clipped below maxDisparity.
	const (
		block = 5
		maxD  = 8
	)
	half := block / 2
	w := maxD + half + 1
	left := randomGray(w, 16, 10)
	out := NewImage(w, 16, S16)

	params := Params{BlockSize: block, MaxDisparity: maxD, PreFilter: true, Workers: 1}
	if err := ComputeDisparityMap(left, left, out, params); err != nil {
		t.Fatal(err)
	}

	for y := half; y < 16-half; y++ {
		got := out.AtS16(maxD, y)
		if got < 0 || int(got) > maxD-half {
			t.Errorf("disparity(%d,%d) = %d, outside clipped range [0, %d]", maxD, y, got, maxD-half)
		}
	}
}

func TestComputeDisparityMap_MirrorSwapConsistency(t *testing.T) {
	// Mirroring both images horizontally and swapping the pair must
	// reproduce the disparities of the original match, mirrored.
	const (
		w, h  = 64, 32
		k     = 4
		block = 5
		maxD  = 12
	)
	left, right := shiftedPair(w, h, k, 33)

	mirror := func(src *Image) *Image {
		dst := NewImage(w, h, U8)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst.PixU8[y*w+x] = src.PixU8[y*w+w-1-x]
			}
		}
		return dst
	}

	params := Params{BlockSize: block, MaxDisparity: maxD, PreFilter: true, Workers: 1}

	fwd := NewImage(w, h, S16)
	if err := ComputeDisparityMap(left, right, fwd, params); err != nil {
		t.Fatal(err)
	}
	rev := NewImage(w, h, S16)
	if err := ComputeDisparityMap(mirror(right), mirror(left), rev, params); err != nil {
		t.Fatal(err)
	}

	half := block / 2
	agree, total := 0, 0
	for y := half; y < h-half; y++ {
		for x := maxD + k; x < w-half-k-maxD; x++ {
			mx := w - 1 - x
			if mx < maxD || mx >= w-half {
				continue
			}
			total++
			d1 := fwd.AtS16(x, y)
			d2 := rev.AtS16(mx, y)
			if d1-d2 <= 1 && d2-d1 <= 1 {
				agree++
			}
		}
	}
	if total == 0 {
		t.Fatal("consistency region is empty")
	}
	if agree*10 < total*9 {
		t.Errorf("only %d of %d pixels consistent under mirror swap", agree, total)
	}
}

func TestComputeDisparityMap_WorkersMatchSerial(t *testing.T) {
	left, right := shiftedPair(48, 32, 2, 44)

	run := func(workers int) *Image {
		out := NewImage(48, 32, S16)
		params := Params{
			BlockSize:           5,
			MaxDisparity:        10,
			UniquenessThreshold: 10,
			PreFilter:           true,
			InterpolateBad:      true,
			Workers:             workers,
		}
		if err := ComputeDisparityMap(left, right, out, params); err != nil {
			t.Fatal(err)
		}
		return out
	}

	serial := run(1)
	parallel := run(4)
	for i := range serial.PixS16 {
		if serial.PixS16[i] != parallel.PixS16[i] {
			t.Fatalf("pixel %d: serial %d != parallel %d", i, serial.PixS16[i], parallel.PixS16[i])
		}
	}
}

func TestComputeDisparityMap_ProgressStages(t *testing.T) {
	left, right := shiftedPair(32, 24, 2, 55)
	out := NewImage(32, 24, S16)

	seen := map[string]bool{}
	params := Params{
		BlockSize:           5,
		MaxDisparity:        8,
		UniquenessThreshold: 10,
		PreFilter:           true,
		InterpolateBad:      true,
		Workers:             1,
		Progress: func(stage string, done, total int) {
			seen[stage] = true
		},
	}
	if err := ComputeDisparityMap(left, right, out, params); err != nil {
		t.Fatal(err)
	}

	for _, stage := range []string{StagePrefilter, StagePixelCost, StageAggregate, StageSelect, StageInterpolate} {
		if !seen[stage] {
			t.Errorf("stage %q never reported", stage)
		}
	}
}

func BenchmarkComputeDisparityMap(b *testing.B) {
	left, right := shiftedPair(320, 240, 5, 77)
	out := NewImage(320, 240, S16)
	params := Params{
		BlockSize:           11,
		MaxDisparity:        32,
		UniquenessThreshold: 15,
		PreFilter:           true,
		InterpolateBad:      true,
		Workers:             1,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := ComputeDisparityMap(left, right, out, params); err != nil {
			b.Fatal(err)
		}
	}
}
