package stereo

import (
	"fmt"
	"image"
)

// ElemKind tags the element type stored in an Image.
type ElemKind int

const (
	U8 ElemKind = iota
	S16
	U32
)

func (k ElemKind) String() string {
	switch k {
	case U8:
		return "U8"
	case S16:
		return "S16"
	case U32:
		return "U32"
	default:
		return "unknown"
	}
}

// ColorSpace is carried on every image for caller bookkeeping.
// The matcher itself never inspects it.
type ColorSpace int

const ColorSpaceDefault ColorSpace = 0

// Image is a dense 2-D pixel buffer with an explicit element kind.
// Storage is row-major with no padding: pixel (x, y) lives at index y*Width+x.
// Exactly one of the backing slices is non-nil, matching Kind; the accessors
// enforce the tag so a buffer cannot silently be read as the wrong width.
type Image struct {
	Width      int
	Height     int
	Kind       ElemKind
	ColorSpace ColorSpace

	PixU8  []uint8
	PixS16 []int16
	PixU32 []uint32
}

// NewImage allocates a zero-initialised image of the given kind.
func NewImage(width, height int, kind ElemKind) *Image {
	im := &Image{
		Width:      width,
		Height:     height,
		Kind:       kind,
		ColorSpace: ColorSpaceDefault,
	}
	n := width * height
	switch kind {
	case U8:
		im.PixU8 = make([]uint8, n)
	case S16:
		im.PixS16 = make([]int16, n)
	case U32:
		im.PixU32 = make([]uint32, n)
	default:
		panic(fmt.Sprintf("stereo: unknown element kind %d", kind))
	}
	return im
}

// FromGray wraps a stdlib grayscale image as a U8 Image. When the source
// stride equals its width and its bounds start at the origin the pixel
// slice is borrowed; otherwise the rows are compacted into a fresh
// padding-free buffer.
func FromGray(src *image.Gray) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	im := &Image{
		Width:      w,
		Height:     h,
		Kind:       U8,
		ColorSpace: ColorSpaceDefault,
	}
	if src.Stride == w && b.Min == (image.Point{}) {
		im.PixU8 = src.Pix[:w*h]
		return im
	}
	im.PixU8 = make([]uint8, w*h)
	for y := 0; y < h; y++ {
		srcRow := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X):]
		copy(im.PixU8[y*w:(y+1)*w], srcRow[:w])
	}
	return im
}

// Gray copies a U8 image back into a stdlib grayscale image.
func (im *Image) Gray() *image.Gray {
	im.mustKind(U8)
	out := image.NewGray(image.Rect(0, 0, im.Width, im.Height))
	for y := 0; y < im.Height; y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+im.Width], im.PixU8[y*im.Width:(y+1)*im.Width])
	}
	return out
}

func (im *Image) mustKind(k ElemKind) {
	if im.Kind != k {
		panic(fmt.Sprintf("stereo: image accessed as %s but holds %s", k, im.Kind))
	}
}

// AtU8 reads pixel (x, y) of a U8 image.
func (im *Image) AtU8(x, y int) uint8 {
	im.mustKind(U8)
	return im.PixU8[y*im.Width+x]
}

// SetU8 writes pixel (x, y) of a U8 image.
func (im *Image) SetU8(x, y int, v uint8) {
	im.mustKind(U8)
	im.PixU8[y*im.Width+x] = v
}

// AtS16 reads pixel (x, y) of an S16 image.
func (im *Image) AtS16(x, y int) int16 {
	im.mustKind(S16)
	return im.PixS16[y*im.Width+x]
}

// SetS16 writes pixel (x, y) of an S16 image.
func (im *Image) SetS16(x, y int, v int16) {
	im.mustKind(S16)
	im.PixS16[y*im.Width+x] = v
}

// AtU32 reads pixel (x, y) of a U32 image.
func (im *Image) AtU32(x, y int) uint32 {
	im.mustKind(U32)
	return im.PixU32[y*im.Width+x]
}

// SetU32 writes pixel (x, y) of a U32 image.
func (im *Image) SetU32(x, y int, v uint32) {
	im.mustKind(U32)
	im.PixU32[y*im.Width+x] = v
}
