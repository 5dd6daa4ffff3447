package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

type fakeClient struct {
	values map[string][]byte
	err    error
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: make(map[string][]byte)}
}

func (f *fakeClient) Get(_ context.Context, key string) *goredis.StringCmd {
	if f.err != nil {
		return goredis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(string(v), nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, _ time.Duration) *goredis.StatusCmd {
	if f.err != nil {
		return goredis.NewStatusResult("", f.err)
	}
	f.values[key] = value.([]byte)
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

func TestCheckpointStoreLifecycle(t *testing.T) {
	client := newFakeClient()
	store, err := New(client, "")
	require.NoError(t, err)
	ctx := context.Background()

	cp, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cp)

	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	require.NoError(t, store.Save(ctx, catalog.NewCheckpoint([]string{"A", "B", "C"}, 1, now)))
	assert.JSONEq(t,
		`{"urls":["A","B","C"],"index":1,"timestamp":"2024-03-09 14:05:06"}`,
		string(client.values[DefaultKey]))

	cp, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 1, cp.Cursor)
	assert.Equal(t, []string{"A", "B", "C"}, cp.Keys)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	cp, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestCheckpointStoreSurfacesErrors(t *testing.T) {
	client := newFakeClient()
	client.err = errors.New("connection refused")
	store, err := New(client, "custom")
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	assert.ErrorContains(t, err, "connection refused")

	err = store.Save(context.Background(), catalog.NewCheckpoint([]string{"A"}, 0, time.Now()))
	assert.ErrorContains(t, err, "connection refused")
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(nil, "k")
	assert.Error(t, err)
}
