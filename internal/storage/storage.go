package storage

import (
	"context"
	"errors"
)

// Provider is an interface for storing and retrieving photos by key.
// Keys are slash separated relative paths such as "photos/42/3f1a.jpg".
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Errors
var (
	ErrNotFound   = errors.New("Photo does not exist")
	ErrInvalidKey = errors.New("Invalid storage key")
)
