//go:build integration

package badger_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hapcore/hapd/pkg/pairing"
	"github.com/hapcore/hapd/pkg/pairing/badger"
)

func openStore(t *testing.T) *badger.Store {
	t.Helper()
	store, err := badger.Open(filepath.Join(t.TempDir(), "pairing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	rec := &pairing.Record{
		ControllerID:   []byte("controller-1"),
		ControllerLTPK: []byte("ltpk-bytes"),
		Admin:          true,
	}
	require.NoError(t, store.Put(ctx, rec))
	require.NotEmpty(t, rec.ID)

	got, err := store.Get(ctx, []byte("controller-1"))
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, rec.ControllerLTPK, got.ControllerLTPK)
	require.True(t, got.Admin)
}

func TestGetNotFound(t *testing.T) {
	store := openStore(t)
	_, err := store.Get(context.Background(), []byte("unknown"))
	require.ErrorIs(t, err, pairing.ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, []byte("never-paired")))

	rec := &pairing.Record{ControllerID: []byte("c2")}
	require.NoError(t, store.Put(ctx, rec))
	require.NoError(t, store.Delete(ctx, []byte("c2")))
	require.NoError(t, store.Delete(ctx, []byte("c2")))

	_, err := store.Get(ctx, []byte("c2"))
	require.ErrorIs(t, err, pairing.ErrNotFound)
}

func TestCountAndForEach(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, store.Put(ctx, &pairing.Record{ControllerID: []byte("a"), Admin: true}))
	require.NoError(t, store.Put(ctx, &pairing.Record{ControllerID: []byte("b")}))

	n, err = store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	seen := map[string]bool{}
	err = store.ForEach(ctx, func(rec *pairing.Record) error {
		seen[string(rec.ControllerID)] = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, seen["a"])
	require.True(t, seen["b"])
}
