package image

import (
	"fmt"

	"github.com/polybot/polybot/internal/imgbuf"
)

// Operation is a transform the bot can apply to a photo
type Operation int

const (
	// Blur applies a box blur
	Blur Operation = iota + 1
	// Contour keeps the horizontal differences between pixels
	Contour
	// Rotate turns the photo clockwise
	Rotate
	// Segment thresholds the photo to black and white
	Segment
	// SaltAndPepper adds impulse noise
	SaltAndPepper
	// Concat joins two photos
	Concat
)

var operations = []Operation{Blur, Contour, Rotate, Segment, SaltAndPepper, Concat}

var operationNames = map[Operation]string{
	Blur:          "Blur",
	Contour:       "Contour",
	Rotate:        "Rotate",
	Segment:       "Segment",
	SaltAndPepper: "Salt and pepper",
	Concat:        "Concat",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}

	return fmt.Sprintf("operation(%d)", int(o))
}

// Mode is the pixel mode the operation works on
func (o Operation) Mode() imgbuf.Mode {
	switch o {
	case Segment, SaltAndPepper:
		return imgbuf.RGB
	default:
		return imgbuf.Grayscale
	}
}

// Images is the number of photos the operation takes
func (o Operation) Images() int {
	if o == Concat {
		return 2
	}

	return 1
}

// Task is an image processing task
type Task struct {
	Operation         Operation
	Images            []string // Storage keys of the source photos
	BlurLevel         int
	Threshold         float64
	SaltProbability   float64
	PepperProbability float64
	Direction         imgbuf.Direction
	Seed              int64 // Seeds the noise, zero picks a random seed
}

// NewTask creates a task with default parameters
func NewTask(operation Operation, images ...string) *Task {
	return &Task{
		Operation:         operation,
		Images:            images,
		BlurLevel:         imgbuf.DefaultBlurLevel,
		Threshold:         imgbuf.DefaultSegmentThreshold,
		SaltProbability:   imgbuf.DefaultSaltProbability,
		PepperProbability: imgbuf.DefaultPepperProbability,
		Direction:         imgbuf.Horizontal,
	}
}

// WithImages sets the source photos
func (t *Task) WithImages(images ...string) *Task {
	t.Images = images
	return t
}

// Result is a processed photo
type Result struct {
	Key  string // Storage key the result was written to
	Data []byte
}
