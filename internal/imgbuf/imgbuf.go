package imgbuf

import (
	"errors"
	"fmt"
)

// Mode is the pixel representation shared by every pixel of a buffer
type Mode int

const (
	// Grayscale buffers hold one intensity per pixel
	Grayscale Mode = iota
	// RGB buffers hold a red, green and blue value per pixel
	RGB
)

func (m Mode) String() string {
	switch m {
	case Grayscale:
		return "grayscale"
	case RGB:
		return "rgb"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Pixel is a colour pixel, channels are on a 0-255 scale
type Pixel [3]float64

// Pure white and pure black colour pixels
var (
	White = Pixel{255, 255, 255}
	Black = Pixel{0, 0, 0}
)

// Luminance weights used when converting colour images to grayscale
const (
	redWeight   = 0.2989
	greenWeight = 0.5870
	blueWeight  = 0.1140
)

func luminance(r, g, b float64) float64 {
	return redWeight*r + greenWeight*g + blueWeight*b
}

// Buffer is an in-memory image: a rectangular array of pixels plus the path it was loaded from.
// Every transform replaces the whole pixel array, or returns an error before touching it.
// A Buffer is not safe for concurrent use.
type Buffer struct {
	mode Mode
	gray [][]float64
	rgb  [][]Pixel
	path string
}

// Errors
var (
	ErrLoad              = errors.New("unable to load image")
	ErrEmptyImage        = errors.New("image is empty")
	ErrDimensionMismatch = errors.New("image dimensions do not match")
	ErrInvalidFormat     = errors.New("invalid pixel format")
	ErrInvalidParameter  = errors.New("invalid parameter")
)

// NewGray creates a grayscale buffer from a copy of rows
func NewGray(rows [][]float64, path string) (*Buffer, error) {
	if err := checkRectangular(rows); err != nil {
		return nil, err
	}

	return &Buffer{
		mode: Grayscale,
		gray: copyRows(rows),
		path: path,
	}, nil
}

// NewRGB creates a colour buffer from a copy of rows
func NewRGB(rows [][]Pixel, path string) (*Buffer, error) {
	if err := checkRectangular(rows); err != nil {
		return nil, err
	}

	return &Buffer{
		mode: RGB,
		rgb:  copyRows(rows),
		path: path,
	}, nil
}

// Mode returns the pixel mode of the buffer
func (b *Buffer) Mode() Mode {
	return b.mode
}

// Path returns the path the buffer was loaded from
func (b *Buffer) Path() string {
	return b.path
}

// Height returns the number of rows
func (b *Buffer) Height() int {
	if b.mode == RGB {
		return len(b.rgb)
	}

	return len(b.gray)
}

// Width returns the number of pixels per row
func (b *Buffer) Width() int {
	if b.mode == RGB {
		if len(b.rgb) == 0 {
			return 0
		}
		return len(b.rgb[0])
	}

	if len(b.gray) == 0 {
		return 0
	}
	return len(b.gray[0])
}

// Gray returns a copy of the intensities of a grayscale buffer, or nil for a colour buffer
func (b *Buffer) Gray() [][]float64 {
	if b.mode != Grayscale {
		return nil
	}

	return copyRows(b.gray)
}

// RGB returns a copy of the pixels of a colour buffer, or nil for a grayscale buffer
func (b *Buffer) RGB() [][]Pixel {
	if b.mode != RGB {
		return nil
	}

	return copyRows(b.rgb)
}

// Clone returns a deep copy of the buffer
func (b *Buffer) Clone() *Buffer {
	return &Buffer{
		mode: b.mode,
		gray: copyRows(b.gray),
		rgb:  copyRows(b.rgb),
		path: b.path,
	}
}

func (b *Buffer) expect(mode Mode, operation string) error {
	if b.mode != mode {
		return fmt.Errorf("%w: %s expects a %s image, got %s", ErrInvalidFormat, operation, mode, b.mode)
	}

	return nil
}

func (b *Buffer) empty() bool {
	return b.Height() == 0 || b.Width() == 0
}

func checkRectangular[T any](rows [][]T) error {
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return fmt.Errorf("%w: row %d has %d pixels, expected %d", ErrInvalidFormat, i, len(row), len(rows[0]))
		}
	}

	return nil
}

func copyRows[T any](rows [][]T) [][]T {
	if rows == nil {
		return nil
	}

	out := make([][]T, len(rows))
	for i, row := range rows {
		out[i] = append([]T(nil), row...)
	}

	return out
}
