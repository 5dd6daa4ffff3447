package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

func TestCheckpointStoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewCheckpointStore()
	ctx := context.Background()

	cp, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cp)

	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	require.NoError(t, s.Save(ctx, catalog.NewCheckpoint([]string{"A", "B", "C"}, 1, now)))

	cp, err = s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, []string{"A", "B", "C"}, cp.Keys)
	assert.Equal(t, 1, cp.Cursor)
	assert.True(t, now.Equal(cp.CreatedAt))

	require.NoError(t, s.Clear(ctx))
	cp, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestCheckpointStoreRejectsInvalid(t *testing.T) {
	t.Parallel()

	s := NewCheckpointStore()
	err := s.Save(context.Background(), catalog.Checkpoint{Keys: []string{"A"}, Cursor: 5})
	assert.ErrorIs(t, err, catalog.ErrInvalidCheckpoint)
}
