package scoring

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cory-johannsen/lootmaster/internal/game/gear"
	"github.com/cory-johannsen/lootmaster/internal/game/job"
	"github.com/cory-johannsen/lootmaster/internal/observability"
)

// Cached memoizes an engine's scores by job and gear fingerprint.
// Errors are never cached.
type Cached struct {
	inner Engine
	cache *expirable.LRU[string, float64]
}

// NewCached wraps inner with an LRU of size entries that expire after ttl.
//
// Precondition: size > 0. A ttl of 0 keeps entries until evicted.
func NewCached(inner Engine, size int, ttl time.Duration) *Cached {
	return &Cached{inner: inner, cache: expirable.NewLRU[string, float64](size, nil, ttl)}
}

// Score returns the cached score of (j, set) or computes and stores it.
func (c *Cached) Score(j *job.Job, set *gear.Set) (float64, error) {
	key := j.ID + "|" + set.Fingerprint()
	if v, ok := c.cache.Get(key); ok {
		observability.ScoreCache.WithLabelValues(observability.CacheHit).Inc()
		return v, nil
	}
	observability.ScoreCache.WithLabelValues(observability.CacheMiss).Inc()
	v, err := c.inner.Score(j, set)
	if err != nil {
		return 0, err
	}
	c.cache.Add(key, v)
	return v, nil
}

// Len returns the number of cached scores.
func (c *Cached) Len() int { return c.cache.Len() }

// Close purges the cache and closes the wrapped engine.
func (c *Cached) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}

// instrumented counts scoring failures per engine.
type instrumented struct {
	Engine
	name string
}

func (e *instrumented) Score(j *job.Job, set *gear.Set) (float64, error) {
	v, err := e.Engine.Score(j, set)
	if err != nil {
		observability.ScoreErrors.WithLabelValues(e.name).Inc()
	}
	return v, err
}
