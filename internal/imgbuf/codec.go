package imgbuf

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/clone"
	"github.com/disintegration/imaging"

	// Register the WebP decoder, imaging registers the others
	_ "golang.org/x/image/webp"
)

const (
	filteredSuffix = "_filtered"
	jpegQuality    = 95
)

// Load reads an image file and converts it to a grayscale buffer
func Load(path string) (*Buffer, error) {
	return load(path, Grayscale)
}

// LoadRGB reads an image file into a colour buffer
func LoadRGB(path string) (*Buffer, error) {
	return load(path, RGB)
}

func load(path string, mode Mode) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer f.Close()

	return Decode(f, path, mode)
}

// Decode reads an encoded image from r. The path is recorded as the source path of the buffer.
func Decode(r io.Reader, path string, mode Mode) (*Buffer, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: error decoding %s: %w", ErrLoad, path, err)
	}

	return FromImage(img, path, mode), nil
}

// FromImage converts a decoded image into a buffer of the given mode
func FromImage(img image.Image, path string, mode Mode) *Buffer {
	rgba := clone.AsRGBA(img)
	bounds := rgba.Bounds()

	b := &Buffer{mode: mode, path: path}
	switch mode {
	case RGB:
		b.rgb = make([][]Pixel, bounds.Dy())
	default:
		b.mode = Grayscale
		b.gray = make([][]float64, bounds.Dy())
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := y - bounds.Min.Y
		if b.mode == RGB {
			b.rgb[row] = make([]Pixel, bounds.Dx())
		} else {
			b.gray[row] = make([]float64, bounds.Dx())
		}

		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := rgba.PixOffset(x, y)
			r, g, bl := float64(rgba.Pix[i]), float64(rgba.Pix[i+1]), float64(rgba.Pix[i+2])

			if b.mode == RGB {
				b.rgb[row][x-bounds.Min.X] = Pixel{r, g, bl}
			} else {
				b.gray[row][x-bounds.Min.X] = luminance(r, g, bl)
			}
		}
	}

	return b
}

// Image renders the buffer as an image.Image.
// Grayscale data goes through a gray colormap spanning the data's min..max range, colour data is clamped to 0..255.
func (b *Buffer) Image() image.Image {
	width, height := b.Width(), b.Height()
	rect := image.Rect(0, 0, width, height)

	if b.mode == RGB {
		img := image.NewNRGBA(rect)
		for y, row := range b.rgb {
			for x, p := range row {
				img.SetNRGBA(x, y, color.NRGBA{clamp(p[0]), clamp(p[1]), clamp(p[2]), 0xff})
			}
		}
		return img
	}

	low, high := math.Inf(1), math.Inf(-1)
	for _, row := range b.gray {
		for _, v := range row {
			low = math.Min(low, v)
			high = math.Max(high, v)
		}
	}

	img := image.NewGray(rect)
	for y, row := range b.gray {
		for x, v := range row {
			img.SetGray(x, y, color.Gray{colormap(v, low, high)})
		}
	}

	return img
}

// Encode writes the buffer to w in the format implied by the source path extension
func (b *Buffer) Encode(w io.Writer) error {
	format, err := b.outputFormat()
	if err != nil {
		return err
	}

	return imaging.Encode(w, b.Image(), format, imaging.JPEGQuality(jpegQuality))
}

// Save writes the buffer next to its source file, see FilteredPath, and returns the path written.
// The write is not atomic.
func (b *Buffer) Save() (string, error) {
	format, err := b.outputFormat()
	if err != nil {
		return "", err
	}

	path := FilteredPath(b.path)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if err := imaging.Encode(f, b.Image(), format, imaging.JPEGQuality(jpegQuality)); err != nil {
		f.Close()
		return "", err
	}

	if err := f.Close(); err != nil {
		return "", err
	}

	return path, nil
}

func (b *Buffer) outputFormat() (imaging.Format, error) {
	if b.empty() {
		return 0, fmt.Errorf("%w: nothing to encode", ErrEmptyImage)
	}

	format, err := imaging.FormatFromFilename(b.path)
	if err != nil {
		return 0, fmt.Errorf("%w: output format for %q: %w", ErrInvalidParameter, b.path, err)
	}

	return format, nil
}

// FilteredPath inserts the _filtered suffix before the extension of path
func FilteredPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + filteredSuffix + ext
}

func clamp(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}

// colormap maps v in [low, high] onto 256 gray levels, constant data maps to black
func colormap(v, low, high float64) uint8 {
	if high <= low {
		return 0
	}

	level := int((v - low) / (high - low) * 256)
	if level > 255 {
		level = 255
	}
	if level < 0 {
		level = 0
	}

	return uint8(level)
}
