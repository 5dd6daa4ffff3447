package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
	"github.com/JakeFAU/filament-catalog/internal/notify"
)

type fakeStream struct {
	added []*goredis.XAddArgs
	err   error
}

func (f *fakeStream) XAdd(_ context.Context, args *goredis.XAddArgs) *goredis.StringCmd {
	if f.err != nil {
		return goredis.NewStringResult("", f.err)
	}
	f.added = append(f.added, args)
	return goredis.NewStringResult("1-0", nil)
}

func TestPublisherAppendsEntry(t *testing.T) {
	stream := &fakeStream{}
	closed := false
	pub, err := New(stream, "", func() error {
		closed = true
		return nil
	})
	require.NoError(t, err)

	rec := catalog.MaterialRecord{ID: 42, Key: "https://example.com/swatch/42", Name: "Lime"}
	require.NoError(t, pub.Publish(context.Background(), rec))
	require.Len(t, stream.added, 1)

	args := stream.added[0]
	assert.Equal(t, DefaultStream, args.Stream)
	values, ok := args.Values.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, notify.EventRecordUpdated, values["type"])
	assert.Equal(t, rec.Key, values["key"])
	assert.Equal(t, "42", values["id"])

	var body notify.Message
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &body))
	assert.Equal(t, "Lime", body.Record.Name)

	require.NoError(t, pub.Close())
	assert.True(t, closed)
}

func TestPublisherWrapsErrors(t *testing.T) {
	pub, err := New(&fakeStream{err: errors.New("READONLY")}, "s", nil)
	require.NoError(t, err)
	err = pub.Publish(context.Background(), catalog.MaterialRecord{Key: "a"})
	assert.ErrorContains(t, err, "READONLY")
	assert.NoError(t, pub.Close())
}
