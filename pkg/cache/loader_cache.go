// Package cache provides a generic read-through LRU whose concurrent misses for the
// same key share a single load.
package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// LoaderCache is a bounded LRU that fills itself through a loader callback.
// Only successful loads are stored, so errors such as "not found" are retried on the next call.
type LoaderCache[K comparable, V any] struct {
	entries *lru.Cache[K, V]
	group   singleflight.Group
	flight  func(K) string
}

// NewLoaderCache creates a cache holding at most maxEntries values.
// flightKey maps a key to the string used to coalesce concurrent loads.
func NewLoaderCache[K comparable, V any](maxEntries int, flightKey func(K) string) (*LoaderCache[K, V], error) {
	entries, err := lru.New[K, V](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}

	return &LoaderCache[K, V]{entries: entries, flight: flightKey}, nil
}

// Get returns the value for key and whether it was already cached.
// On a miss one caller runs load; the others wait for its result. The load runs with a
// context detached from cancellation so one impatient caller cannot fail the others;
// a caller whose own ctx ends stops waiting and gets ctx.Err().
func (c *LoaderCache[K, V]) Get(
	ctx context.Context, key K, load func(context.Context, K) (V, error),
) (value V, hit bool, err error) {
	if v, ok := c.entries.Get(key); ok {
		return v, true, nil
	}

	ch := c.group.DoChan(c.flight(key), func() (any, error) {
		loaded, loadErr := load(context.WithoutCancel(ctx), key)
		if loadErr != nil {
			return nil, loadErr
		}

		c.entries.Add(key, loaded)

		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return value, false, ctx.Err() //nolint:wrapcheck // caller's own context error
	case res := <-ch:
		if res.Err != nil {
			return value, false, res.Err //nolint:wrapcheck // loader error passed through unchanged
		}

		v, _ := res.Val.(V)

		return v, false, nil
	}
}

// Peek returns a cached value without loading or touching recency.
func (c *LoaderCache[K, V]) Peek(key K) (V, bool) {
	return c.entries.Peek(key)
}

// Invalidate removes the entry for key.
func (c *LoaderCache[K, V]) Invalidate(key K) {
	c.entries.Remove(key)
}

// Len returns the number of cached entries.
func (c *LoaderCache[K, V]) Len() int {
	return c.entries.Len()
}
