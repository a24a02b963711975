package grid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/warmap/game/catalog"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(DefaultDimensions())
	require.NoError(t, err)
	return store
}

func TestNewStore(t *testing.T) {
	store := newTestStore(t)

	assert.Equal(t, 20, store.Width())
	assert.Equal(t, 20, store.Height())

	for y := 0; y < store.Height(); y++ {
		for x := 0; x < store.Width(); x++ {
			kind, err := store.Get(x, y)
			require.NoError(t, err)
			assert.True(t, kind.IsEmpty())
		}
	}
}

func TestNewStore_InvalidDimensions(t *testing.T) {
	tests := []Dimensions{
		{Width: 0, Height: 10},
		{Width: 10, Height: -1},
		{Width: MaxDimension + 1, Height: 10},
	}
	for _, dims := range tests {
		_, err := NewStore(dims)
		assert.True(t, errors.Is(err, ErrInvalidDimensions), "expected ErrInvalidDimensions for %+v, got %v", dims, err)
	}
}

func TestStore_GetOutOfBounds(t *testing.T) {
	store := newTestStore(t)

	for _, p := range []Position{{-1, 0}, {0, -1}, {20, 0}, {0, 20}} {
		_, err := store.Get(p.X, p.Y)
		assert.ErrorIs(t, err, ErrOutOfBounds, "position %+v", p)
	}
}

func TestStore_SetFootprintRecordsOrigin(t *testing.T) {
	store := newTestStore(t)
	store.SetFootprint(2, 3, 3, catalog.HQ)

	for dy := 0; dy < 3; dy++ {
		for dx := 0; dx < 3; dx++ {
			c, err := store.Cell(2+dx, 3+dy)
			require.NoError(t, err)
			assert.Equal(t, catalog.HQ, c.Kind)
			assert.Equal(t, Position{X: 2, Y: 3}, c.Origin)
		}
	}

	kind, err := store.Get(5, 3)
	require.NoError(t, err)
	assert.True(t, kind.IsEmpty(), "cell right of footprint must stay empty")
}

func TestStore_SetFootprintSkipsOutOfBoundsCells(t *testing.T) {
	store := newTestStore(t)
	assert.NotPanics(t, func() {
		store.SetFootprint(19, 19, 3, catalog.HQ)
	})
	kind, _ := store.Get(19, 19)
	assert.Equal(t, catalog.HQ, kind)
}

func TestStore_ClearFootprintRemovesMeta(t *testing.T) {
	store := newTestStore(t)
	store.SetFootprint(5, 5, 2, catalog.City)
	for _, p := range []Position{{5, 5}, {6, 5}, {5, 6}, {6, 6}} {
		store.SetCityMeta(p.X, p.Y, "Riverside", "bg-green-300")
	}

	store.ClearFootprint(5, 5, 2)

	for _, p := range []Position{{5, 5}, {6, 5}, {5, 6}, {6, 6}} {
		kind, _ := store.Get(p.X, p.Y)
		assert.True(t, kind.IsEmpty())
		_, ok := store.GetCityMeta(p.X, p.Y)
		assert.False(t, ok)
	}
}

func TestStore_CityMeta(t *testing.T) {
	store := newTestStore(t)

	store.SetCityMeta(1, 2, "Ashford", "bg-red-300")
	meta, ok := store.GetCityMeta(1, 2)
	require.True(t, ok)
	assert.Equal(t, CityMeta{Label: "Ashford", Color: "bg-red-300"}, meta)

	store.RemoveCityMeta(1, 2)
	_, ok = store.GetCityMeta(1, 2)
	assert.False(t, ok)
}

func TestStore_SnapshotIsDetached(t *testing.T) {
	store := newTestStore(t)
	store.SetFootprint(0, 0, 1, catalog.Banner)

	snap := store.Snapshot()
	snap.Cells[0][0] = Cell{}
	snap.CityMeta["0-0"] = CityMeta{Label: "x"}

	kind, _ := store.Get(0, 0)
	assert.Equal(t, catalog.Banner, kind, "mutating a snapshot must not touch the store")
	_, ok := store.GetCityMeta(0, 0)
	assert.False(t, ok)
}

func TestStore_Restore(t *testing.T) {
	src := newTestStore(t)
	src.SetFootprint(5, 5, 2, catalog.City)
	src.SetCityMeta(5, 5, "Riverside", "bg-green-300")

	dst, err := NewStore(Dimensions{Width: 4, Height: 4})
	require.NoError(t, err)
	require.NoError(t, dst.Restore(src.Snapshot()))

	assert.Equal(t, src.Snapshot(), dst.Snapshot())
}

func TestStore_RestoreRejectsRaggedSnapshot(t *testing.T) {
	store := newTestStore(t)
	snap := EmptySnapshot(Dimensions{Width: 3, Height: 3})
	snap.Cells[1] = snap.Cells[1][:2]

	err := store.Restore(snap)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
	assert.Equal(t, 20, store.Width(), "failed restore must leave the store untouched")
}

func TestSnapshot_Instances(t *testing.T) {
	store := newTestStore(t)
	store.SetFootprint(0, 0, 2, catalog.City)
	store.SetFootprint(2, 0, 2, catalog.City)
	for _, p := range []Position{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		store.SetCityMeta(p.X, p.Y, "West", "bg-green-300")
	}
	for _, p := range []Position{{2, 0}, {3, 0}, {2, 1}, {3, 1}} {
		store.SetCityMeta(p.X, p.Y, "East", "bg-red-300")
	}
	store.SetFootprint(0, 5, 1, catalog.Banner)

	instances := store.Snapshot().Instances()
	require.Len(t, instances, 3)
	assert.Equal(t, Instance{Origin: Position{0, 0}, Kind: catalog.City, Size: 2, Label: "West", Color: "bg-green-300"}, instances[0])
	assert.Equal(t, Instance{Origin: Position{2, 0}, Kind: catalog.City, Size: 2, Label: "East", Color: "bg-red-300"}, instances[1])
	assert.Equal(t, Instance{Origin: Position{0, 5}, Kind: catalog.Banner, Size: 1}, instances[2])
}

func TestCellKey(t *testing.T) {
	assert.Equal(t, "5-6", CellKey(5, 6))

	x, y, err := ParseCellKey("12-3")
	require.NoError(t, err)
	assert.Equal(t, 12, x)
	assert.Equal(t, 3, y)

	for _, bad := range []string{"", "12", "a-3", "3-b", "-1-2"} {
		_, _, err := ParseCellKey(bad)
		assert.ErrorIs(t, err, ErrInvalidCellKey, "key %q", bad)
	}
}
