package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

func TestRecordStoreMergeSemantics(t *testing.T) {
	t.Parallel()

	s := NewRecordStore()
	ctx := context.Background()

	id, err := s.Upsert(ctx, "A", catalog.MaterialRecord{
		Name:         "Red",
		Manufacturer: "X",
		Color:        catalog.MustParseHex("#FF0000"),
	}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	complete, err := s.IsComplete(ctx, "A")
	require.NoError(t, err)
	assert.True(t, complete)

	again, err := s.Upsert(ctx, "A", catalog.MaterialRecord{}, false)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	rec, err := s.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "Red", rec.Name)
	assert.Equal(t, "X", rec.Manufacturer)
	assert.Equal(t, "#FF0000", rec.ColorHex())

	_, err = s.Upsert(ctx, "A", catalog.MaterialRecord{}, true)
	require.NoError(t, err)
	rec, err = s.Get(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, rec.Name)
	assert.Empty(t, rec.Manufacturer)
	assert.Nil(t, rec.Color)
	assert.Equal(t, "A", rec.Key)
	assert.Equal(t, int64(1), rec.ID)

	complete, err = s.IsComplete(ctx, "A")
	require.NoError(t, err)
	assert.False(t, complete)
	assert.Equal(t, 1, s.Len())
}

func TestRecordStoreGetMissing(t *testing.T) {
	t.Parallel()

	s := NewRecordStore()
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	complete, err := s.IsComplete(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, complete)
}

func TestRecordStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	s := NewRecordStore()
	ctx := context.Background()
	_, err := s.Upsert(ctx, "A", catalog.MaterialRecord{Name: "Red", Color: catalog.MustParseHex("#FF0000")}, false)
	require.NoError(t, err)

	rec, err := s.Get(ctx, "A")
	require.NoError(t, err)
	rec.Color.R = 0
	rec.Name = "changed"

	again, err := s.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, "Red", again.Name)
	assert.Equal(t, "#FF0000", again.ColorHex())
}

func TestRecordStoreFailWith(t *testing.T) {
	t.Parallel()

	s := NewRecordStore()
	boom := errors.New("disk full")
	s.FailWith(boom)
	_, err := s.Upsert(context.Background(), "A", catalog.MaterialRecord{Name: "Red"}, false)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Len())

	s.FailWith(nil)
	_, err = s.Upsert(context.Background(), "A", catalog.MaterialRecord{Name: "Red"}, false)
	require.NoError(t, err)
}

func TestRecordStoreBrowse(t *testing.T) {
	t.Parallel()

	s := NewRecordStore()
	ctx := context.Background()
	seed := []catalog.MaterialRecord{
		{Key: "1", Name: "Galaxy Black", Manufacturer: "Prusament", MaterialType: "PLA"},
		{Key: "2", Name: "Lime", Manufacturer: "Elegoo", MaterialType: "PETG"},
		{Key: "3", Name: "Jet Black", Manufacturer: "Prusament", MaterialType: "PETG"},
		{Key: "4", Name: "Unknown"},
	}
	for _, rec := range seed {
		_, err := s.Upsert(ctx, rec.Key, rec, false)
		require.NoError(t, err)
	}

	got, err := s.List(ctx, catalog.Filter{Manufacturer: "prusament"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].Key)
	assert.Equal(t, "3", got[1].Key)

	got, err = s.List(ctx, catalog.Filter{MaterialType: "PETG", Offset: 1, Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].Key)

	got, err = s.List(ctx, catalog.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	makers, err := s.Manufacturers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Elegoo", "Prusament"}, makers)

	types, err := s.MaterialTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"PETG", "PLA"}, types)
}
