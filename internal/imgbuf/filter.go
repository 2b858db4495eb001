package imgbuf

import (
	"fmt"
	"math"
)

// Default parameters
const (
	DefaultBlurLevel        = 16
	DefaultSegmentThreshold = 100
)

// Blur averages every level x level window that fits inside the image and stores the
// truncated mean at the window's top-left corner. The result shrinks to
// (height-level+1) x (width-level+1).
func (b *Buffer) Blur(level int) error {
	if err := b.expect(Grayscale, "blur"); err != nil {
		return err
	}

	height, width := b.Height(), b.Width()
	if level < 1 {
		return fmt.Errorf("%w: blur level must be at least 1, got %d", ErrInvalidParameter, level)
	}
	if level > height || level > width {
		return fmt.Errorf("%w: blur level %d does not fit a %dx%d image", ErrInvalidParameter, level, width, height)
	}

	outHeight, outWidth := height-level+1, width-level+1

	// Vertical window sums for every anchor row, then summed horizontally
	columns := make([][]float64, outHeight)
	for i := range columns {
		columns[i] = make([]float64, width)
		for k := 0; k < level; k++ {
			for j, v := range b.gray[i+k] {
				columns[i][j] += v
			}
		}
	}

	area := float64(level * level)
	result := make([][]float64, outHeight)
	for i := range result {
		result[i] = make([]float64, outWidth)
		for j := range result[i] {
			var sum float64
			for _, v := range columns[i][j : j+level] {
				sum += v
			}
			result[i][j] = math.Floor(sum / area)
		}
	}

	b.gray = result
	return nil
}

// Contour replaces every row with the absolute differences of horizontally adjacent pixels.
// Rows lose one pixel, the row count is unchanged.
func (b *Buffer) Contour() error {
	if err := b.expect(Grayscale, "contour"); err != nil {
		return err
	}

	if b.empty() {
		return fmt.Errorf("%w: contour needs at least one pixel", ErrEmptyImage)
	}

	result := make([][]float64, len(b.gray))
	for i, row := range b.gray {
		result[i] = make([]float64, len(row)-1)
		for j := range result[i] {
			result[i][j] = math.Abs(row[j] - row[j+1])
		}
	}

	b.gray = result
	return nil
}

// Rotate turns the image 90 degrees clockwise
func (b *Buffer) Rotate() error {
	if b.empty() {
		return fmt.Errorf("%w: cannot rotate an empty image", ErrEmptyImage)
	}

	if b.mode == RGB {
		b.rgb = rotate(b.rgb)
	} else {
		b.gray = rotate(b.gray)
	}

	return nil
}

func rotate[T any](rows [][]T) [][]T {
	height, width := len(rows), len(rows[0])

	result := make([][]T, width)
	for c := range result {
		result[c] = make([]T, height)
		for r := range result[c] {
			result[c][r] = rows[height-1-r][c]
		}
	}

	return result
}

// Segment turns every pixel white when the mean of its channels is above threshold, black otherwise
func (b *Buffer) Segment(threshold float64) error {
	if err := b.expect(RGB, "segment"); err != nil {
		return err
	}

	result := make([][]Pixel, len(b.rgb))
	for i, row := range b.rgb {
		result[i] = make([]Pixel, len(row))
		for j, p := range row {
			if (p[0]+p[1]+p[2])/3 > threshold {
				result[i][j] = White
			} else {
				result[i][j] = Black
			}
		}
	}

	b.rgb = result
	return nil
}
