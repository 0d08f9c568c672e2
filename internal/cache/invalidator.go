// Package cache centralizes page-cache invalidation. Every mutating entry
// point (product create/update/delete, order commit) calls the Invalidator
// after its transaction commits, instead of duplicating key logic per call
// site.
package cache

import (
	"context"

	"go.uber.org/zap"
)

// Cache key layout for rendered pages.
const (
	productKeyPrefix  = "page:product:"
	categoryKeyPrefix = "page:category:"
	homeKey           = "page:home"
)

// ProductKey returns the cache key of a product detail page.
func ProductKey(slug string) string { return productKeyPrefix + slug }

// CategoryKey returns the cache key of a category listing page.
func CategoryKey(slug string) string { return categoryKeyPrefix + slug }

// HomeKey returns the cache key of the landing page.
func HomeKey() string { return homeKey }

// Refresh names the pages affected by a write. Zero-value fields mean
// "nothing to invalidate" for that page kind.
type Refresh struct {
	ProductSlug  string
	CategorySlug string
	Homepage     bool
}

// Deleter removes cache entries by key. Deleting an absent key must succeed,
// which makes invalidation idempotent.
type Deleter interface {
	Delete(ctx context.Context, keys ...string) error
}

// Invalidator computes and executes the minimal set of cache-key deletions
// for a Refresh.
type Invalidator struct {
	deleter Deleter
	lg      *zap.Logger
}

// NewInvalidator creates an Invalidator over the given key deleter.
func NewInvalidator(deleter Deleter, lg *zap.Logger) *Invalidator {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Invalidator{deleter: deleter, lg: lg}
}

// Invalidate removes the cache entries named by r. It runs post-commit and is
// best effort: failures are logged, never returned, so a mutation that
// already committed cannot be reported as failed. An all-empty Refresh is a
// no-op.
func (i *Invalidator) Invalidate(ctx context.Context, r Refresh) {
	keys := Keys(r)
	if len(keys) == 0 {
		return
	}

	if err := i.deleter.Delete(ctx, keys...); err != nil {
		i.lg.Warn("cache invalidation failed",
			zap.Strings("keys", keys),
			zap.Error(err),
		)
		return
	}

	i.lg.Debug("cache invalidated", zap.Strings("keys", keys))
}

// Keys returns the cache keys affected by a Refresh.
func Keys(r Refresh) []string {
	var keys []string
	if r.ProductSlug != "" {
		keys = append(keys, ProductKey(r.ProductSlug))
	}
	if r.CategorySlug != "" {
		keys = append(keys, CategoryKey(r.CategorySlug))
	}
	if r.Homepage {
		keys = append(keys, homeKey)
	}
	return keys
}
