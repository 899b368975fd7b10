package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pzntech/showcase-crawler/internal/catalog"
)

type fakeCacheStore struct {
	entries   []catalog.CacheEntry
	upserts   []catalog.CacheEntry
	loadErr   error
	upsertErr error
}

func (f *fakeCacheStore) LoadCacheEntries(_ context.Context) ([]catalog.CacheEntry, error) {
	return f.entries, f.loadErr
}

func (f *fakeCacheStore) UpsertCacheEntry(_ context.Context, entry catalog.CacheEntry) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, entry)
	return nil
}

func TestLoadReplacesSnapshot(t *testing.T) {
	t.Parallel()

	store := &fakeCacheStore{entries: []catalog.CacheEntry{
		{Type: catalog.CacheTypeBranch, Name: "main", Hash: "h1"},
		{Type: catalog.CacheTypeProject, Name: "main_2024_01_05_1", Hash: "h2"},
	}}
	c := New(store, zap.NewNop())
	require.NoError(t, c.Load(context.Background()))
	require.Equal(t, 2, c.Len())

	hash, ok := c.Get(catalog.CacheTypeBranch, "main")
	require.True(t, ok)
	require.Equal(t, "h1", hash)

	_, ok = c.Get(catalog.CacheTypeProject, "unknown")
	require.False(t, ok)

	// A reload drops entries that vanished from storage.
	store.entries = store.entries[:1]
	require.NoError(t, c.Load(context.Background()))
	require.Equal(t, 1, c.Len())
}

func TestPutPersistsBeforeMemory(t *testing.T) {
	t.Parallel()

	store := &fakeCacheStore{upsertErr: errors.New("db down")}
	c := New(store, zap.NewNop())

	err := c.Put(context.Background(), catalog.CacheTypeProject, "p1", "h1")
	require.Error(t, err)
	_, ok := c.Get(catalog.CacheTypeProject, "p1")
	require.False(t, ok, "memory must not update when persistence fails")

	store.upsertErr = nil
	require.NoError(t, c.Put(context.Background(), catalog.CacheTypeProject, "p1", "h1"))
	hash, ok := c.Get(catalog.CacheTypeProject, "p1")
	require.True(t, ok)
	require.Equal(t, "h1", hash)
	require.Len(t, store.upserts, 1)
}

func TestPutReplacesExistingHash(t *testing.T) {
	t.Parallel()

	store := &fakeCacheStore{}
	c := New(store, zap.NewNop())

	require.NoError(t, c.Put(context.Background(), catalog.CacheTypeBranch, "main", "old"))
	require.NoError(t, c.Put(context.Background(), catalog.CacheTypeBranch, "main", "new"))

	hash, _ := c.Get(catalog.CacheTypeBranch, "main")
	require.Equal(t, "new", hash)
	require.Equal(t, 1, c.Len())
}

func TestLoadErrorPropagates(t *testing.T) {
	t.Parallel()

	c := New(&fakeCacheStore{loadErr: errors.New("no table")}, zap.NewNop())
	require.Error(t, c.Load(context.Background()))
}
