package filter_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	goimage "image"
	"image/color"
	"image/png"
	"testing"

	"github.com/polybot/polybot/internal/cache/memory"
	"github.com/polybot/polybot/internal/image"
	"github.com/polybot/polybot/internal/image/filter"
	"github.com/polybot/polybot/internal/imgbuf"
	"github.com/polybot/polybot/internal/logger"
	"github.com/polybot/polybot/internal/storage"
	"github.com/polybot/polybot/internal/storage/file"
	"github.com/polybot/polybot/internal/tracing/test"
	"go.uber.org/zap"
)

func encodePNG(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()

	img := goimage.NewRGBA(goimage.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func setup(t *testing.T) (*filter.Processor, *file.Provider) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := logger.New(zap.FatalLevel)
	tracer := test.Tracer(log)

	photos, err := file.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	fixtures := map[string][]byte{
		"photos/1/wide.png":   encodePNG(t, 40, 20, color.RGBA{200, 200, 200, 255}),
		"photos/1/other.png":  encodePNG(t, 10, 20, color.RGBA{0, 0, 0, 255}),
		"photos/1/tall.png":   encodePNG(t, 10, 30, color.RGBA{0, 0, 0, 255}),
		"photos/1/broken.png": []byte("not a photo"),
	}
	for key, data := range fixtures {
		if err := photos.Put(ctx, key, data); err != nil {
			t.Fatal(err)
		}
	}

	processor, err := filter.New(ctx, log, tracer, 2, image.NewCache(tracer, memory.New(), photos, image.DefaultPhotoTTL), photos)
	if err != nil {
		t.Fatal(err)
	}

	return processor, photos
}

func TestProcessImage(t *testing.T) {
	processor, photos := setup(t)

	tests := []struct {
		Name           string
		Task           *image.Task
		ExpectedKey    string
		ExpectedWidth  int
		ExpectedHeight int
	}{
		{"blur", image.NewTask(image.Blur, "photos/1/wide.png"), "photos/1/wide_filtered.png", 25, 5},
		{"contour", image.NewTask(image.Contour, "photos/1/wide.png"), "photos/1/wide_filtered.png", 39, 20},
		{"rotate", image.NewTask(image.Rotate, "photos/1/wide.png"), "photos/1/wide_filtered.png", 20, 40},
		{"segment", image.NewTask(image.Segment, "photos/1/wide.png"), "photos/1/wide_filtered.png", 40, 20},
		{"salt and pepper", &image.Task{Operation: image.SaltAndPepper, Images: []string{"photos/1/wide.png"}, SaltProbability: 0.1, PepperProbability: 0.1, Seed: 7}, "photos/1/wide_filtered.png", 40, 20},
		{"concat", image.NewTask(image.Concat, "photos/1/wide.png", "photos/1/other.png"), "photos/1/wide_filtered.png", 50, 20},
	}

	for _, test := range tests {
		result, err := processor.ProcessImage(context.Background(), test.Task)
		if err != nil {
			t.Errorf("%s: %s", test.Name, err)
			continue
		}

		if result.Key != test.ExpectedKey {
			t.Errorf("%s: wrong key %s", test.Name, result.Key)
		}

		decoded, err := imgbuf.Decode(bytes.NewReader(result.Data), result.Key, imgbuf.RGB)
		if err != nil {
			t.Errorf("%s: %s", test.Name, err)
			continue
		}

		if decoded.Width() != test.ExpectedWidth || decoded.Height() != test.ExpectedHeight {
			t.Errorf("%s: wrong dimensions %dx%d", test.Name, decoded.Width(), decoded.Height())
		}

		stored, err := photos.Get(context.Background(), result.Key)
		if err != nil || !bytes.Equal(stored, result.Data) {
			t.Errorf("%s: result not stored: %v", test.Name, err)
		}
	}
}

func TestSegmentResult(t *testing.T) {
	processor, _ := setup(t)

	result, err := processor.ProcessImage(context.Background(), image.NewTask(image.Segment, "photos/1/wide.png"))
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := imgbuf.Decode(bytes.NewReader(result.Data), result.Key, imgbuf.RGB)
	if err != nil {
		t.Fatal(err)
	}

	// Every fixture pixel has a mean of 200, JPEG may shift white slightly
	if p := decoded.RGB()[3][7]; p[0] < 250 || p[1] < 250 || p[2] < 250 {
		t.Errorf("wrong pixel %v", p)
	}
}

func TestProcessImageErrors(t *testing.T) {
	processor, _ := setup(t)

	tests := []struct {
		Name          string
		Task          *image.Task
		ExpectedError error
	}{
		{"missing photo", image.NewTask(image.Rotate, "photos/1/missing.png"), storage.ErrNotFound},
		{"broken photo", image.NewTask(image.Rotate, "photos/1/broken.png"), imgbuf.ErrLoad},
		{"blur too large", &image.Task{Operation: image.Blur, Images: []string{"photos/1/other.png"}, BlurLevel: 11}, imgbuf.ErrInvalidParameter},
		{"concat height mismatch", image.NewTask(image.Concat, "photos/1/wide.png", "photos/1/tall.png"), imgbuf.ErrDimensionMismatch},
	}

	for _, test := range tests {
		_, err := processor.ProcessImage(context.Background(), test.Task)
		if !errors.Is(err, test.ExpectedError) {
			t.Errorf("%s: wrong error %v", test.Name, err)
		}
	}

	t.Run("wrong number of photos", func(t *testing.T) {
		_, err := processor.ProcessImage(context.Background(), image.NewTask(image.Concat, "photos/1/wide.png"))
		if err == nil {
			t.Error("no error")
		}
	})
}

func TestNew(t *testing.T) {
	log := logger.New(zap.FatalLevel)
	tracer := test.Tracer(log)

	_, err := filter.New(context.Background(), log, tracer, 0, nil, nil)
	if err == nil {
		t.Error("no error")
	}
}

func TestCacheIsBounded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logger.New(zap.FatalLevel)
	tracer := test.Tracer(log)

	photos, err := file.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	photo := encodePNG(t, 4, 4, color.RGBA{10, 20, 30, 255})
	cache := memory.New(memory.WithMaxEntries(5))

	processor, err := filter.New(ctx, log, tracer, 2, image.NewCache(tracer, cache, photos, image.DefaultPhotoTTL), photos)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("photos/%d/photo.png", i)
		if err := photos.Put(ctx, key, photo); err != nil {
			t.Fatal(err)
		}

		if _, err := processor.ProcessImage(ctx, image.NewTask(image.Rotate, key)); err != nil {
			t.Fatal(err)
		}
	}

	if n := cache.Len(); n > 5 {
		t.Errorf("%d photos held in the cache", n)
	}
}
