package imgbuf

import (
	"fmt"
	"strings"
)

// Direction is the axis along which two buffers are joined
type Direction int

const (
	// Horizontal places the other image to the right
	Horizontal Direction = iota
	// Vertical places the other image below
	Vertical
)

func (d Direction) String() string {
	switch d {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection parses "horizontal" or "vertical", case-insensitively. An empty string is horizontal.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "horizontal":
		return Horizontal, nil
	case "vertical":
		return Vertical, nil
	default:
		return 0, fmt.Errorf("%w: invalid direction %q, use 'horizontal' or 'vertical'", ErrInvalidParameter, s)
	}
}

// Concat joins other onto the buffer. Horizontal needs equal heights, vertical needs equal widths.
// other is never modified.
func (b *Buffer) Concat(other *Buffer, direction Direction) error {
	if other == nil {
		return fmt.Errorf("%w: nothing to concatenate", ErrInvalidParameter)
	}

	if direction != Horizontal && direction != Vertical {
		return fmt.Errorf("%w: invalid direction %s", ErrInvalidParameter, direction)
	}

	if b.mode != other.mode {
		return fmt.Errorf("%w: cannot concatenate a %s image with a %s image", ErrInvalidFormat, b.mode, other.mode)
	}

	switch direction {
	case Horizontal:
		if b.Height() != other.Height() {
			return fmt.Errorf("%w: images must have the same height for horizontal concatenation (%d != %d)", ErrDimensionMismatch, b.Height(), other.Height())
		}
	case Vertical:
		if b.Width() != other.Width() {
			return fmt.Errorf("%w: images must have the same width for vertical concatenation (%d != %d)", ErrDimensionMismatch, b.Width(), other.Width())
		}
	}

	if b.mode == RGB {
		b.rgb = concat(b.rgb, other.rgb, direction)
	} else {
		b.gray = concat(b.gray, other.gray, direction)
	}

	return nil
}

func concat[T any](a, b [][]T, direction Direction) [][]T {
	if direction == Vertical {
		return append(copyRows(a), copyRows(b)...)
	}

	result := make([][]T, len(a))
	for i := range a {
		row := make([]T, 0, len(a[i])+len(b[i]))
		row = append(row, a[i]...)
		result[i] = append(row, b[i]...)
	}

	return result
}
