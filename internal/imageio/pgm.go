package imageio

import (
	"bufio"
	"fmt"
	"image"
	"io"
)

// ReadPGM decodes a binary (P5) PGM image with maxval <= 255. Comment
// lines are tolerated anywhere in the header.
func ReadPGM(r io.Reader) (*image.Gray, error) {
	br := bufio.NewReader(r)

	magic, err := pgmToken(br)
	if err != nil {
		return nil, err
	}
	if magic != "P5" {
		return nil, fmt.Errorf("pgm: unsupported magic %q", magic)
	}

	width, err := pgmInt(br)
	if err != nil {
		return nil, err
	}
	height, err := pgmInt(br)
	if err != nil {
		return nil, err
	}
	maxval, err := pgmInt(br)
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("pgm: bad dimensions %dx%d", width, height)
	}
	if maxval <= 0 || maxval > 255 {
		return nil, fmt.Errorf("pgm: unsupported maxval %d", maxval)
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	row := make([]byte, width)
	for y := 0; y < height; y++ {
		if _, err := io.ReadFull(br, row); err != nil {
			return nil, fmt.Errorf("pgm: short pixel data: %w", err)
		}
		copy(img.Pix[y*img.Stride:y*img.Stride+width], row)
	}
	return img, nil
}

// WritePGM encodes a grayscale image as binary (P5) PGM.
func WritePGM(w io.Writer, img *image.Gray) error {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if _, err := fmt.Fprintf(w, "P5\n%d %d\n255\n", width, height); err != nil {
		return err
	}
	for y := 0; y < height; y++ {
		row := img.Pix[(y+b.Min.Y-img.Rect.Min.Y)*img.Stride:]
		if _, err := w.Write(row[:width]); err != nil {
			return err
		}
	}
	return nil
}

// pgmToken reads the next whitespace-delimited header token, skipping
// '#' comments through end of line.
func pgmToken(br *bufio.Reader) (string, error) {
	var tok []byte
	inComment := false
	for {
		c, err := br.ReadByte()
		if err != nil {
			if err == io.EOF && len(tok) > 0 {
				return string(tok), nil
			}
			return "", fmt.Errorf("pgm: truncated header: %w", err)
		}
		if inComment {
			if c == '\n' {
				inComment = false
			}
			continue
		}
		switch {
		case c == '#':
			inComment = true
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			if len(tok) > 0 {
				return string(tok), nil
			}
		default:
			tok = append(tok, c)
		}
	}
}

func pgmInt(br *bufio.Reader) (int, error) {
	tok, err := pgmToken(br)
	if err != nil {
		return 0, err
	}
	var v int
	if _, err := fmt.Sscanf(tok, "%d", &v); err != nil {
		return 0, fmt.Errorf("pgm: bad header field %q", tok)
	}
	return v, nil
}
