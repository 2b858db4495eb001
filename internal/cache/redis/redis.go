package redis

import (
	"context"
	"time"

	"github.com/mediocregopher/radix/v4"
	"github.com/polybot/polybot/internal/cache"
	"github.com/polybot/polybot/internal/tracing"
)

// Provider implements a redis cache
type Provider struct {
	client radix.Client
	tracer *tracing.Tracer
	prefix string
}

// New returns a new Provider instance. Every key is stored with prefix prepended.
func New(ctx context.Context, tracer *tracing.Tracer, address string, poolSize int, prefix string) (*Provider, error) {
	cfg := radix.PoolConfig{
		Size: poolSize,
	}

	client, err := cfg.New(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	return &Provider{
		client: client,
		tracer: tracer,
		prefix: prefix,
	}, nil
}

// Get returns an object from the cache if it exists
func (p *Provider) Get(ctx context.Context, key string) (data []byte, err error) {
	ctx, span := p.tracer.Start(ctx, "redis.Get")
	defer span.End()

	mn := radix.Maybe{Rcv: &data}
	err = p.client.Do(ctx, radix.Cmd(&mn, "GET", p.prefix+key))
	if err != nil {
		return nil, err
	}

	if mn.Null {
		return nil, cache.ErrNotFound
	}

	return
}

// Set adds an object to the cache, expiring it after ttl unless ttl is zero
func (p *Provider) Set(ctx context.Context, key string, data []byte, ttl time.Duration) (err error) {
	ctx, span := p.tracer.Start(ctx, "redis.Set")
	defer span.End()

	if ttl > 0 {
		return p.client.Do(ctx, radix.FlatCmd(nil, "SET", p.prefix+key, data, "PX", ttl.Milliseconds()))
	}

	return p.client.Do(ctx, radix.FlatCmd(nil, "SET", p.prefix+key, data))
}

// Delete removes an object from the cache
func (p *Provider) Delete(ctx context.Context, key string) (err error) {
	ctx, span := p.tracer.Start(ctx, "redis.Delete")
	defer span.End()

	return p.client.Do(ctx, radix.Cmd(nil, "DEL", p.prefix+key))
}

// Shutdown shuts down the cache
func (p *Provider) Shutdown() {
	p.client.Close()
}
