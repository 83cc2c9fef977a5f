package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/matst80/slask-discovery/pkg/common/jsoncompat"
)

// Helper stores values of type T as json in a Store.
type Helper[T any] struct {
	Store Store
}

func NewHelper[T any](store Store) *Helper[T] {
	return &Helper[T]{Store: store}
}

// Handle loads key into out. On a miss fn is called and its value is stored
// for expiration. The returned bool reports a cache hit.
func (c *Helper[T]) Handle(ctx context.Context, key string, out *T, fn func(context.Context) (T, error), expiration time.Duration) (bool, error) {
	if c.Store != nil {
		data, err := c.Store.Get(ctx, key)
		if err == nil {
			if err = jsoncompat.Unmarshal(data, out); err == nil {
				return true, nil
			}
			log.Printf("dropping unreadable cache entry %s: %v", key, err)
		} else if !errors.Is(err, ErrMiss) {
			log.Printf("cache read failed for %s: %v", key, err)
		}
	}

	value, err := fn(ctx)
	if err != nil {
		return false, err
	}
	*out = value
	if c.Store == nil {
		return false, nil
	}
	data, err := jsoncompat.Marshal(value)
	if err != nil {
		log.Printf("unable to encode cache entry %s: %v", key, err)
		return false, nil
	}
	if err := c.Store.Set(ctx, key, data, expiration); err != nil {
		log.Printf("cache write failed for %s: %v", key, err)
	}
	return false, nil
}
