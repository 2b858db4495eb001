package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jamiealquiza/envy"
	"github.com/polybot/polybot/internal/image"
	"github.com/polybot/polybot/internal/image/filter"
	"github.com/polybot/polybot/internal/imgbuf"
	"github.com/polybot/polybot/internal/logger"
	"go.uber.org/zap"
)

// Comandline flags
var (
	loglevel = zap.LevelFlag("log-level", zap.InfoLevel, "log level (default \"info\") (debug, info, warn, error, dpanic, panic, fatal)")
	caption  = flag.String("caption", "", "filter to apply, written like a photo caption, e.g. \"Blur 8\" or \"Concat vertical\"")
	input    = flag.String("input", "", "photo to filter, the result is written next to it with a _filtered suffix")
	second   = flag.String("second", "", "second photo, only used by concat")
	seed     = flag.Int64("seed", 0, "seed for salt and pepper noise, 0 picks a random seed")
)

func main() {
	// Parse environment variables
	envy.Parse("IMGFILTER")

	// Parse commandline flags
	flag.Parse()

	// Initialize the logger
	log := logger.New(*loglevel)
	defer log.Sync()

	if *caption == "" || *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	path, err := run()
	if err != nil {
		log.Fatal(err)
	}

	log.Debugw("filtered photo saved",
		"input", *input,
		"output", path,
	)
	fmt.Println(path)
}

func run() (string, error) {
	task, err := image.ParseCaption(*caption)
	if err != nil {
		return "", err
	}
	task.Seed = *seed

	paths := []string{*input}
	if task.Operation == image.Concat {
		if *second == "" {
			return "", fmt.Errorf("concat needs a second photo")
		}
		paths = append(paths, *second)
	}

	buffers := make([]*imgbuf.Buffer, len(paths))
	for i, path := range paths {
		if task.Operation.Mode() == imgbuf.RGB {
			buffers[i], err = imgbuf.LoadRGB(path)
		} else {
			buffers[i], err = imgbuf.Load(path)
		}

		if err != nil {
			return "", err
		}
	}

	if err := filter.Apply(task.WithImages(paths...), buffers); err != nil {
		return "", err
	}

	return buffers[0].Save()
}
