package stereo

// horizontalSobel differentiates src horizontally with the 3x3 kernel
//
//	[-1 0 1]
//	[-2 0 2]
//	[-1 0 1]
//
// The result is signed and not clamped (interior values span -1020..1020)
// so that gradient direction survives into the matching cost. The 1-pixel
// border is left zero.
//
// Differentiating suppresses per-camera brightness and gain mismatches
// that would otherwise dominate absolute-difference matching.
func horizontalSobel(src *Image) *Image {
	src.mustKind(U8)
	w, h := src.Width, src.Height
	dst := NewImage(w, h, S16)

	pix := src.PixU8
	out := dst.PixS16
	for y := 1; y < h-1; y++ {
		up := (y - 1) * w
		mid := y * w
		dn := (y + 1) * w
		for x := 1; x < w-1; x++ {
			sum := -int32(pix[up+x-1]) + int32(pix[up+x+1]) +
				-2*int32(pix[mid+x-1]) + 2*int32(pix[mid+x+1]) +
				-int32(pix[dn+x-1]) + int32(pix[dn+x+1])
			out[mid+x] = int16(sum)
		}
	}
	return dst
}

// widenU8 copies a U8 image into an S16 image unchanged. Used when the
// gradient prefilter is disabled so the cost builder always consumes S16.
func widenU8(src *Image) *Image {
	src.mustKind(U8)
	dst := NewImage(src.Width, src.Height, S16)
	for i, v := range src.PixU8 {
		dst.PixS16[i] = int16(v)
	}
	return dst
}
