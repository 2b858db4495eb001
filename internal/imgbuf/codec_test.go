package imgbuf_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/polybot/polybot/internal/imgbuf"
)

// writeFixture writes a width x height PNG whose left half is red and right half is blue
func writeFixture(t *testing.T, name string, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < width/2 {
				img.Set(x, y, color.RGBA{255, 0, 0, 255})
			} else {
				img.Set(x, y, color.RGBA{0, 0, 255, 255})
			}
		}
	}

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLoad(t *testing.T) {
	path := writeFixture(t, "photo.png", 6, 4)

	t.Run("converts to grayscale", func(t *testing.T) {
		b, err := imgbuf.Load(path)
		if err != nil {
			t.Fatal(err)
		}

		if b.Mode() != imgbuf.Grayscale || b.Width() != 6 || b.Height() != 4 {
			t.Fatalf("wrong buffer %s %dx%d", b.Mode(), b.Width(), b.Height())
		}

		data := b.Gray()
		if math.Abs(data[0][0]-0.2989*255) > 1e-9 || math.Abs(data[3][5]-0.1140*255) > 1e-9 {
			t.Errorf("wrong intensities %v %v", data[0][0], data[3][5])
		}
	})

	t.Run("keeps colour", func(t *testing.T) {
		b, err := imgbuf.LoadRGB(path)
		if err != nil {
			t.Fatal(err)
		}

		if b.Mode() != imgbuf.RGB || b.RGB()[0][0] != (imgbuf.Pixel{255, 0, 0}) {
			t.Errorf("wrong buffer %s %v", b.Mode(), b.RGB()[0][0])
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := imgbuf.Load(filepath.Join(t.TempDir(), "missing.png"))
		if !errors.Is(err, imgbuf.ErrLoad) || !errors.Is(err, os.ErrNotExist) {
			t.Errorf("wrong error %v", err)
		}
	})

	t.Run("not an image", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "text.png")
		if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := imgbuf.Load(path)
		if !errors.Is(err, imgbuf.ErrLoad) {
			t.Errorf("wrong error %v", err)
		}
	})
}

func TestSave(t *testing.T) {
	path := writeFixture(t, "photo.png", 8, 5)

	b, err := imgbuf.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	savedPath, err := b.Save()
	if err != nil {
		t.Fatal(err)
	}

	if savedPath != filepath.Join(filepath.Dir(path), "photo_filtered.png") {
		t.Errorf("wrong path %s", savedPath)
	}

	reloaded, err := imgbuf.Load(savedPath)
	if err != nil {
		t.Fatal(err)
	}

	if reloaded.Width() != b.Width() || reloaded.Height() != b.Height() {
		t.Errorf("wrong dimensions %dx%d", reloaded.Width(), reloaded.Height())
	}

	t.Run("rotated colour image", func(t *testing.T) {
		b, err := imgbuf.LoadRGB(path)
		if err != nil {
			t.Fatal(err)
		}

		if err := b.Rotate(); err != nil {
			t.Fatal(err)
		}

		savedPath, err := b.Save()
		if err != nil {
			t.Fatal(err)
		}

		reloaded, err := imgbuf.LoadRGB(savedPath)
		if err != nil {
			t.Fatal(err)
		}

		if reloaded.Width() != 5 || reloaded.Height() != 8 {
			t.Errorf("wrong dimensions %dx%d", reloaded.Width(), reloaded.Height())
		}

		// The red half ends up on top after a clockwise rotation
		if reloaded.RGB()[0][0] != (imgbuf.Pixel{255, 0, 0}) || reloaded.RGB()[7][0] != (imgbuf.Pixel{0, 0, 255}) {
			t.Errorf("wrong pixels %v %v", reloaded.RGB()[0][0], reloaded.RGB()[7][0])
		}
	})

	t.Run("empty image", func(t *testing.T) {
		b, _ := imgbuf.NewGray(nil, filepath.Join(t.TempDir(), "empty.png"))
		if _, err := b.Save(); !errors.Is(err, imgbuf.ErrEmptyImage) {
			t.Errorf("wrong error %v", err)
		}
	})

	t.Run("unknown extension", func(t *testing.T) {
		b, _ := imgbuf.NewGray([][]float64{{1}}, filepath.Join(t.TempDir(), "image.unknown"))
		if _, err := b.Save(); !errors.Is(err, imgbuf.ErrInvalidParameter) {
			t.Errorf("wrong error %v", err)
		}
	})
}

func TestEncode(t *testing.T) {
	b, err := imgbuf.NewGray([][]float64{{10, 20}, {30, 40}}, "photos/file_1.png")
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := b.Encode(&buf); err != nil {
		t.Fatal(err)
	}

	decoded, err := imgbuf.Decode(&buf, "decoded.png", imgbuf.Grayscale)
	if err != nil {
		t.Fatal(err)
	}

	// The colormap stretches the data to the full gray range
	data := decoded.Gray()
	if math.Round(data[0][0]) != 0 || math.Round(data[1][1]) != 255 {
		t.Errorf("wrong data %v", data)
	}
}

func TestImage(t *testing.T) {
	b, _ := imgbuf.NewGray([][]float64{{5, 5}, {5, 5}}, "constant.png")
	img, ok := b.Image().(*image.Gray)
	if !ok {
		t.Fatalf("wrong image type %T", b.Image())
	}

	for _, v := range img.Pix {
		if v != 0 {
			t.Fatal("constant data should map to black")
		}
	}

	c, _ := imgbuf.NewRGB([][]imgbuf.Pixel{{{-10, 300, 127.6}}}, "clamped.png")
	nrgba := c.Image().(*image.NRGBA)
	if nrgba.Pix[0] != 0 || nrgba.Pix[1] != 255 || nrgba.Pix[2] != 128 {
		t.Errorf("wrong pixel %v", nrgba.Pix[:4])
	}
}

func TestFilteredPath(t *testing.T) {
	tests := []struct {
		Path     string
		Expected string
	}{
		{"photos/file_0.jpg", "photos/file_0_filtered.jpg"},
		{"archive.tar.gz", "archive.tar_filtered.gz"},
		{"noext", "noext_filtered"},
	}

	for _, test := range tests {
		if path := imgbuf.FilteredPath(test.Path); path != test.Expected {
			t.Errorf("%s: wrong path %s", test.Path, path)
		}
	}
}
