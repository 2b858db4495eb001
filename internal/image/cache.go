package image

import (
	"context"
	"time"

	"github.com/polybot/polybot/internal/cache"
	"github.com/polybot/polybot/internal/storage"
	"github.com/polybot/polybot/internal/tracing"
)

// Cache is a photo cache in front of the photo storage
type Cache = cache.Auto

// DefaultPhotoTTL is how long a loaded photo stays cached
const DefaultPhotoTTL = time.Hour

// NewCache instantiates a new cache, photos expire after ttl
func NewCache(tracer *tracing.Tracer, cacheProvider cache.Provider, storageProvider storage.Provider, ttl time.Duration) *Cache {
	return &Cache{
		Tracer:   tracer,
		Provider: cacheProvider,
		TTL:      ttl,
		Loader: func(ctx context.Context, key string) (data []byte, err error) {
			ctx, span := tracer.Start(ctx, "image.Cache.Loader")
			defer span.End()

			return storageProvider.Get(ctx, key)
		},
	}
}
