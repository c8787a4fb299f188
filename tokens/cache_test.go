package tokens_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/tokens"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	cache := tokens.NewMemoryCache()

	_, ok := cache.Get(ctx, 1)
	require.False(t, ok)

	entry := tokens.Entry{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	cache.Set(ctx, 1, entry)

	got, ok := cache.Get(ctx, 1)
	require.True(t, ok)
	require.Equal(t, entry, got)

	cache.Invalidate(ctx, 1)

	_, ok = cache.Get(ctx, 1)
	require.False(t, ok)
}
