package walletage

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// CacheObserver is notified of every cache hit or miss.
type CacheObserver func(hit bool)

// Cached fronts a Lookup with a Cache. Cache faults degrade to a direct lookup.
type Cached struct {
	lookup  Lookup
	cache   Cache
	observe CacheObserver
}

var _ Lookup = (*Cached)(nil)

// NewCached wraps lookup with cache. observe may be nil.
func NewCached(lookup Lookup, cache Cache, observe CacheObserver) *Cached {
	if observe == nil {
		observe = func(bool) {}
	}
	return &Cached{lookup: lookup, cache: cache, observe: observe}
}

func (c *Cached) CreatedAt(ctx context.Context, address string) (time.Time, error) {
	if err := ValidateAddress(address); err != nil {
		return time.Time{}, err
	}

	created, ok, err := c.cache.Get(ctx, address)
	if err != nil {
		log.Warn().Err(err).Str("address", address).Msg("walletage: cache get failed")
	}
	if ok {
		c.observe(true)
		return created, nil
	}
	c.observe(false)

	created, err = c.lookup.CreatedAt(ctx, address)
	if err != nil {
		return time.Time{}, err
	}
	if err := c.cache.Set(ctx, address, created); err != nil {
		log.Warn().Err(err).Str("address", address).Msg("walletage: cache set failed")
	}
	return created, nil
}
