package image

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/polybot/polybot/internal/imgbuf"
)

// Errors
var (
	ErrUnknownCaption   = errors.New("Invalid caption. Supported captions: 'Blur', 'Contour', 'Rotate', 'Segment', 'Salt and pepper', 'Concat'.")
	ErrInvalidArguments = errors.New("Invalid caption arguments")
)

// ParseCaption turns a photo caption into a task without images.
// Matching is case-insensitive and ignores surrounding and repeated whitespace.
// Arguments may follow the operation name:
//
//	Blur [level]
//	Segment [threshold]
//	Salt and pepper [salt probability] [pepper probability]
//	Concat [horizontal|vertical]
func ParseCaption(caption string) (*Task, error) {
	fields := strings.Fields(strings.ToLower(caption))

	operation, args := matchOperation(fields)
	if operation == 0 {
		return nil, ErrUnknownCaption
	}

	task := NewTask(operation)

	var err error
	switch operation {
	case Blur:
		if len(args) > 1 {
			return nil, tooManyArguments(operation)
		}
		if len(args) == 1 {
			task.BlurLevel, err = strconv.Atoi(args[0])
		}
	case Segment:
		if len(args) > 1 {
			return nil, tooManyArguments(operation)
		}
		if len(args) == 1 {
			task.Threshold, err = strconv.ParseFloat(args[0], 64)
		}
	case SaltAndPepper:
		if len(args) > 2 {
			return nil, tooManyArguments(operation)
		}
		if len(args) >= 1 {
			task.SaltProbability, err = strconv.ParseFloat(args[0], 64)
		}
		if err == nil && len(args) == 2 {
			task.PepperProbability, err = strconv.ParseFloat(args[1], 64)
		}
	case Concat:
		if len(args) > 1 {
			return nil, tooManyArguments(operation)
		}
		if len(args) == 1 {
			task.Direction, err = imgbuf.ParseDirection(args[0])
		}
	default:
		if len(args) > 0 {
			return nil, tooManyArguments(operation)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("%w for %s: %s", ErrInvalidArguments, operation, err)
	}

	return task, nil
}

func matchOperation(fields []string) (Operation, []string) {
	for _, operation := range operations {
		words := strings.Fields(strings.ToLower(operation.String()))
		if len(fields) < len(words) {
			continue
		}

		matches := true
		for i, word := range words {
			if fields[i] != word {
				matches = false
				break
			}
		}

		if matches {
			return operation, fields[len(words):]
		}
	}

	return 0, nil
}

func tooManyArguments(operation Operation) error {
	return fmt.Errorf("%w: too many arguments for %s", ErrInvalidArguments, operation)
}
