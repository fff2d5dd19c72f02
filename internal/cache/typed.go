package cache

import (
	"context"

	"github.com/pkg/errors"
)

// ReadAs is Read for a fetcher of a concrete type.
func ReadAs[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	value, err := c.Read(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, errors.Errorf("cache key %s holds %T, not %T", key, value, zero)
	}
	return typed, nil
}
