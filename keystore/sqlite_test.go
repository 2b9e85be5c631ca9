package keystore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *SQLite {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "keys.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := tempStore(t)

	require.NoError(t, store.Put(ctx, "key-1", "secret-1"))
	require.NoError(t, store.Put(ctx, "key-2", "secret-2"))

	secret, found, err := store.ResolveSecret(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "secret-1", secret)

	_, found, err = store.ResolveSecret(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)

	// replacing a secret
	require.NoError(t, store.Put(ctx, "key-1", "rotated"))
	secret, found, err = store.ResolveSecret(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "rotated", secret)
}

func TestSQLiteDisableAndRemove(t *testing.T) {
	ctx := context.Background()
	store := tempStore(t)
	require.NoError(t, store.Put(ctx, "key-1", "secret-1"))

	require.NoError(t, store.Disable(ctx, "key-1", true))
	_, found, err := store.ResolveSecret(ctx, "key-1")
	require.NoError(t, err)
	require.False(t, found, "disabled keys resolve as unknown")

	require.NoError(t, store.Disable(ctx, "key-1", false))
	_, found, err = store.ResolveSecret(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, store.Remove(ctx, "key-1"))
	_, found, err = store.ResolveSecret(ctx, "key-1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSQLiteList(t *testing.T) {
	ctx := context.Background()
	store := tempStore(t)
	require.NoError(t, store.Put(ctx, "zeta", "z"))
	require.NoError(t, store.Put(ctx, "alpha", "a"))
	require.NoError(t, store.Disable(ctx, "zeta", true))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []Record{
		{APIKey: "alpha", Secret: "a"},
		{APIKey: "zeta", Secret: "z", Disabled: true},
	}, records)
}
