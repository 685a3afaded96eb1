// Package imageio loads stereo pairs and renders disparity maps. The
// matcher core is I/O-free; everything file- or format-shaped lives here.
package imageio

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/cwbudde/stereomatch/internal/stereo"
)

// LoadGray reads an image file and collapses it to 8-bit grayscale.
// PNG and JPEG go through the stdlib decoders; .pgm files are handled
// natively since stereo datasets ship in that format.
func LoadGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".pgm") {
		img, err := ReadPGM(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return img, nil
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return toGray(img), nil
}

// SaveGray writes a grayscale image, choosing the format by extension:
// .pgm gets the native writer, everything else PNG.
func SaveGray(path string, img *image.Gray) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".pgm") {
		if err := WritePGM(f, img); err != nil {
			return fmt.Errorf("failed to encode %s: %w", path, err)
		}
		return nil
	}
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}

// Downscale resizes a grayscale image by the given factor in (0, 1] using
// bilinear filtering. A factor of 1 returns the input unchanged.
func Downscale(img *image.Gray, factor float64) (*image.Gray, error) {
	if factor <= 0 || factor > 1 {
		return nil, fmt.Errorf("scale factor must be in (0, 1], got %g", factor)
	}
	if factor == 1 {
		return img, nil
	}
	b := img.Bounds()
	w := int(float64(b.Dx()) * factor)
	h := int(float64(b.Dy()) * factor)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("scale factor %g collapses %dx%d to zero size", factor, b.Dx(), b.Dy())
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, nil
}

// RenderDisparity converts an S16 disparity map to an 8-bit image the way
// the interactive demo displayed it: linear scaling by 255/(max-min) with
// no offset, so Unreliable pixels clamp to black.
func RenderDisparity(disp *stereo.Image) *image.Gray {
	w, h := disp.Width, disp.Height
	out := image.NewGray(image.Rect(0, 0, w, h))

	minV, maxV := disp.PixS16[0], disp.PixS16[0]
	for _, v := range disp.PixS16 {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if maxV == minV {
		return out
	}

	scale := 255.0 / float64(maxV-minV)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float64(disp.PixS16[y*w+x]) * scale
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			out.Pix[y*out.Stride+x] = uint8(v + 0.5)
		}
	}
	return out
}
