package mock

import (
	"context"
	"fmt"

	"github.com/polybot/polybot/internal/image"
)

// Processor is a mock image processor that always fails
type Processor struct {
}

// ProcessImage returns an error
func (p *Processor) ProcessImage(ctx context.Context, task *image.Task) (*image.Result, error) {
	return nil, fmt.Errorf("processing error")
}
