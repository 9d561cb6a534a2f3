// Package dedup decides whether a candidate lead has been seen before.
// The check runs in two tiers: a cache marker keyed on the normalized
// company/phone pair, then the store's unique index. The cache tier is
// advisory; when it is down the store answers alone.
package dedup

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-mx/internal/cache"
	"github.com/sells-group/leadgen-mx/internal/model"
	"github.com/sells-group/leadgen-mx/internal/store"
)

// Checker answers duplicate queries for candidate leads.
type Checker struct {
	cache cache.Cache
	store store.Store
	ttl   time.Duration
}

// NewChecker builds a checker. cache may be nil, in which case every
// lookup goes straight to the store.
func NewChecker(c cache.Cache, s store.Store, ttl time.Duration) *Checker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Checker{cache: c, store: s, ttl: ttl}
}

// Key returns the cache key for a lead's identity pair. Company name is
// case-folded and whitespace-collapsed so trivially restyled listings
// collide; the phone is already normalized to bare digits upstream.
func Key(source model.Source, companyName, phone string) string {
	name := strings.ToLower(strings.Join(strings.Fields(companyName), " "))
	sum := sha1.Sum([]byte(name + "|" + phone))
	return "dedup:" + source.String() + ":" + hex.EncodeToString(sum[:])
}

// IsDuplicate reports whether the candidate matches an already-stored lead.
// A cache hit short-circuits; a cache miss or cache failure falls through
// to the store's unique index.
func (c *Checker) IsDuplicate(ctx context.Context, source model.Source, candidate *model.CandidateLead) (bool, error) {
	if c.cache != nil {
		seen, err := c.cache.Exists(ctx, Key(source, candidate.CompanyName, candidate.Phone))
		if err != nil {
			zap.L().Debug("dedup: cache lookup failed, falling back to store", zap.Error(err))
		} else if seen {
			return true, nil
		}
	}

	exists, err := c.store.LeadExists(ctx, candidate.CompanyName, candidate.Phone, source)
	if err != nil {
		return false, eris.Wrap(err, "dedup: store lookup")
	}
	return exists, nil
}

// MarkSeen records the candidate's identity pair in the cache so the next
// occurrence inside the TTL window never reaches the store. Failures are
// logged and swallowed: the unique index remains the source of truth.
func (c *Checker) MarkSeen(ctx context.Context, source model.Source, candidate *model.CandidateLead) {
	if c.cache == nil {
		return
	}
	key := Key(source, candidate.CompanyName, candidate.Phone)
	if err := c.cache.Set(ctx, key, "1", c.ttl); err != nil {
		zap.L().Debug("dedup: cache mark failed", zap.String("key", key), zap.Error(err))
	}
}
