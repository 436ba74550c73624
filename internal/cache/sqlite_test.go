package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteTier(t *testing.T) *SQLiteTier {
	t.Helper()
	tier, err := NewSQLiteTier(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tier.Close() })
	return tier
}

func TestSQLiteTier_SetGet(t *testing.T) {
	ctx := context.Background()
	tier := newTestSQLiteTier(t)

	blob, err := tier.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Nil(t, blob, "miss returns nil, nil")

	require.NoError(t, tier.Set(ctx, "acme", []byte(`{"lat":39.78}`)))

	blob, err = tier.Get(ctx, "acme")
	require.NoError(t, err)
	assert.JSONEq(t, `{"lat":39.78}`, string(blob))
}

func TestSQLiteTier_Upsert(t *testing.T) {
	ctx := context.Background()
	tier := newTestSQLiteTier(t)

	require.NoError(t, tier.Set(ctx, "acme", []byte(`{"lat":1}`)))
	require.NoError(t, tier.Set(ctx, "acme", []byte(`{"lat":2}`)))

	blob, err := tier.Get(ctx, "acme")
	require.NoError(t, err)
	assert.JSONEq(t, `{"lat":2}`, string(blob))

	n, err := tier.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteTier_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	tier := newTestSQLiteTier(t)

	require.NoError(t, tier.Set(ctx, "a", []byte(`{}`)))
	require.NoError(t, tier.Set(ctx, "b", []byte(`{}`)))

	require.NoError(t, tier.Delete(ctx, "a"))
	blob, err := tier.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, blob)

	require.NoError(t, tier.Clear(ctx))
	n, err := tier.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteTier_Sample(t *testing.T) {
	ctx := context.Background()
	tier := newTestSQLiteTier(t)

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, tier.Set(ctx, key, []byte(`{}`)))
	}

	keys, err := tier.Sample(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	for _, k := range keys {
		assert.Contains(t, []string{"a", "b", "c"}, k)
	}
}
