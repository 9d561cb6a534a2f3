package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-mx/internal/cache"
	"github.com/sells-group/leadgen-mx/internal/model"
	"github.com/sells-group/leadgen-mx/internal/store/storetest"
)

// failingCache returns an error from every operation.
type failingCache struct{}

func (failingCache) Get(context.Context, string) (string, bool, error) {
	return "", false, eris.New("cache down")
}
func (failingCache) Set(context.Context, string, string, time.Duration) error {
	return eris.New("cache down")
}
func (failingCache) Exists(context.Context, string) (bool, error) {
	return false, eris.New("cache down")
}
func (failingCache) Increment(context.Context, string) (int64, error) {
	return 0, eris.New("cache down")
}
func (failingCache) Expire(context.Context, string, time.Duration) error {
	return eris.New("cache down")
}
func (failingCache) Close() error { return nil }

func candidate() *model.CandidateLead {
	return &model.CandidateLead{
		CompanyName: "Taquería El Progreso",
		Phone:       "5512345678",
		Address:     "Av. Insurgentes Sur 1234",
	}
}

func TestChecker_FreshLead(t *testing.T) {
	ctx := context.Background()
	c := NewChecker(cache.NewMemory(), storetest.New(), time.Hour)

	dup, err := c.IsDuplicate(ctx, model.SourcePaginasAmarillas, candidate())
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestChecker_CacheHit(t *testing.T) {
	ctx := context.Background()
	c := NewChecker(cache.NewMemory(), storetest.New(), time.Hour)

	c.MarkSeen(ctx, model.SourcePaginasAmarillas, candidate())

	dup, err := c.IsDuplicate(ctx, model.SourcePaginasAmarillas, candidate())
	require.NoError(t, err)
	assert.True(t, dup)

	// Same identity, different source: distinct key, not a duplicate.
	dup, err = c.IsDuplicate(ctx, model.SourceSeccionAmarilla, candidate())
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestChecker_StoreFallback(t *testing.T) {
	ctx := context.Background()
	fake := storetest.New()
	require.NoError(t, fake.SaveLead(ctx, &model.Lead{
		CompanyName: "Taquería El Progreso",
		Phone:       "5512345678",
		Source:      model.SourcePaginasAmarillas,
	}))

	// Cache is cold but the store already holds the lead.
	c := NewChecker(cache.NewMemory(), fake, time.Hour)
	dup, err := c.IsDuplicate(ctx, model.SourcePaginasAmarillas, candidate())
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestChecker_CacheDownDegradesToStore(t *testing.T) {
	ctx := context.Background()
	fake := storetest.New()

	c := NewChecker(failingCache{}, fake, time.Hour)
	dup, err := c.IsDuplicate(ctx, model.SourcePaginasAmarillas, candidate())
	require.NoError(t, err)
	assert.False(t, dup)

	// MarkSeen must swallow the cache failure.
	c.MarkSeen(ctx, model.SourcePaginasAmarillas, candidate())

	require.NoError(t, fake.SaveLead(ctx, &model.Lead{
		CompanyName: "Taquería El Progreso",
		Phone:       "5512345678",
		Source:      model.SourcePaginasAmarillas,
	}))
	dup, err = c.IsDuplicate(ctx, model.SourcePaginasAmarillas, candidate())
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestChecker_NilCache(t *testing.T) {
	ctx := context.Background()
	c := NewChecker(nil, storetest.New(), time.Hour)

	dup, err := c.IsDuplicate(ctx, model.SourcePaginasAmarillas, candidate())
	require.NoError(t, err)
	assert.False(t, dup)
	c.MarkSeen(ctx, model.SourcePaginasAmarillas, candidate())
}

func TestKey_NormalizesName(t *testing.T) {
	a := Key(model.SourcePaginasAmarillas, "Taquería  El Progreso", "5512345678")
	b := Key(model.SourcePaginasAmarillas, "taquería el progreso", "5512345678")
	assert.Equal(t, a, b)

	c := Key(model.SourcePaginasAmarillas, "Otra Empresa", "5512345678")
	assert.NotEqual(t, a, c)
}
