package mock

import (
	"context"
	"fmt"
)

// Provider implements a broken photo storage
type Provider struct {
}

// Get always fails
func (p *Provider) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, fmt.Errorf("storage unavailable")
}

// Put always fails
func (p *Provider) Put(ctx context.Context, key string, data []byte) error {
	return fmt.Errorf("storage unavailable")
}
