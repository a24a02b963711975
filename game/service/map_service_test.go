package service_test

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/warmap/game/board"
	"github.com/wricardo/warmap/game/catalog"
	"github.com/wricardo/warmap/game/config"
	"github.com/wricardo/warmap/game/grid"
	"github.com/wricardo/warmap/game/persistence"
	"github.com/wricardo/warmap/game/service"
	"github.com/wricardo/warmap/render"
)

// MockPresetManager implements service.PresetManager for testing
type MockPresetManager struct {
	presets map[string]*config.Preset
}

func NewMockPresetManager() *MockPresetManager {
	return &MockPresetManager{
		presets: map[string]*config.Preset{
			"default": {Name: "default", Width: 20, Height: 20},
			"small":   {Name: "Small", Width: 6, Height: 5, CityColor: "bg-blue-300"},
		},
	}
}

func (m *MockPresetManager) LoadPreset(name string) (*config.Preset, error) {
	p, ok := m.presets[name]
	if !ok {
		return nil, config.ErrPresetNotFound
	}
	return p, nil
}

func (m *MockPresetManager) ListPresets() ([]*config.PresetInfo, error) {
	return []*config.PresetInfo{
		{PresetID: "default", Name: "default", Width: 20, Height: 20},
		{PresetID: "small", Name: "Small", Width: 6, Height: 5},
	}, nil
}

func (m *MockPresetManager) GetDefault() *config.Preset {
	return m.presets["default"]
}

func (m *MockPresetManager) SavePreset(name string, p *config.Preset) error {
	return config.ErrReadOnly
}

func (m *MockPresetManager) RefreshCache() {}

func newTestService(t *testing.T) (service.MapService, *board.Manager, persistence.Backend) {
	t.Helper()
	backend := persistence.NewMemoryBackend()
	boards := board.NewManager(backend)
	t.Cleanup(boards.Close)
	return service.NewMapService(boards, NewMockPresetManager()), boards, backend
}

func strPtr(s string) *string { return &s }

func TestMapService_CreateMap(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	tests := []struct {
		name       string
		req        service.CreateMapRequest
		wantErr    error
		wantWidth  int
		wantHeight int
	}{
		{name: "default preset", req: service.CreateMapRequest{}, wantWidth: 20, wantHeight: 20},
		{name: "named preset", req: service.CreateMapRequest{Preset: "small"}, wantWidth: 6, wantHeight: 5},
		{name: "override width", req: service.CreateMapRequest{Preset: "small", Width: 9}, wantWidth: 9, wantHeight: 5},
		{name: "unknown preset", req: service.CreateMapRequest{Preset: "huge"}, wantErr: service.ErrPresetNotFound},
		{name: "too large", req: service.CreateMapRequest{Width: grid.MaxDimension + 1}, wantErr: service.ErrInvalidRequest},
		{name: "negative", req: service.CreateMapRequest{Height: -3}, wantErr: service.ErrInvalidRequest},
		{name: "bad id", req: service.CreateMapRequest{ID: "../etc"}, wantErr: service.ErrInvalidMapID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := svc.CreateMap(ctx, tt.req)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, info.ID)
			assert.Equal(t, tt.wantWidth, info.Width)
			assert.Equal(t, tt.wantHeight, info.Height)
			assert.True(t, info.Loaded)
			assert.Zero(t, info.Tiles)
		})
	}
}

func TestMapService_CreateMapDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.CreateMap(ctx, service.CreateMapRequest{ID: "front"})
	require.NoError(t, err)
	_, err = svc.CreateMap(ctx, service.CreateMapRequest{ID: "front"})
	assert.ErrorIs(t, err, service.ErrMapExists)
}

func TestMapService_PlaceAndReject(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	info, err := svc.CreateMap(ctx, service.CreateMapRequest{ID: "m1"})
	require.NoError(t, err)

	res, err := svc.Place(ctx, info.ID, service.PlaceRequest{X: 2, Y: 2, Kind: "hq"})
	require.NoError(t, err)
	assert.True(t, res.Placed)
	assert.Empty(t, res.Reason)
	assert.Equal(t, catalog.HQ, res.Outcome.Kind)
	assert.Len(t, res.Outcome.Cells, 9)
	require.NotNil(t, res.State)
	assert.Equal(t, 1, res.State.Counts[string(catalog.HQ)])
	assert.Equal(t, catalog.HQ, res.State.Layout.Map[4][4])

	tests := []struct {
		name   string
		req    service.PlaceRequest
		reason string
	}{
		{name: "overlap", req: service.PlaceRequest{X: 3, Y: 3, Kind: "Banner"}, reason: service.ReasonOccupied},
		{name: "past edge", req: service.PlaceRequest{X: 18, Y: 0, Kind: "BEAR 1"}, reason: service.ReasonOutOfBounds},
		{name: "negative", req: service.PlaceRequest{X: -1, Y: 0, Kind: "Banner"}, reason: service.ReasonOutOfBounds},
		{name: "city without label", req: service.PlaceRequest{X: 10, Y: 10, Kind: "City"}, reason: service.ReasonCancelled},
		{name: "city blank label", req: service.PlaceRequest{X: 10, Y: 10, Kind: "City", Label: strPtr("  ")}, reason: service.ReasonCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Place(ctx, info.ID, tt.req)
			require.NoError(t, err)
			assert.False(t, res.Placed)
			assert.Equal(t, tt.reason, res.Reason)
			assert.NotEmpty(t, res.Message)
			assert.Equal(t, 1, len(res.State.Instances), "rejected placement must not change the grid")
		})
	}
}

func TestMapService_PlaceErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	info, err := svc.CreateMap(ctx, service.CreateMapRequest{})
	require.NoError(t, err)

	_, err = svc.Place(ctx, info.ID, service.PlaceRequest{Kind: "Dragon"})
	assert.ErrorIs(t, err, service.ErrInvalidKind)

	_, err = svc.Place(ctx, info.ID, service.PlaceRequest{Kind: ""})
	assert.ErrorIs(t, err, service.ErrInvalidKind)

	_, err = svc.Place(ctx, "missing", service.PlaceRequest{Kind: "Banner"})
	assert.ErrorIs(t, err, service.ErrMapNotFound)

	_, err = svc.Place(ctx, info.ID, service.PlaceRequest{Kind: "City", Label: strPtr("X"), Color: "purple"})
	assert.ErrorIs(t, err, service.ErrInvalidRequest)
}

func TestMapService_CityColorFromPreset(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	small, err := svc.CreateMap(ctx, service.CreateMapRequest{Preset: "small"})
	require.NoError(t, err)
	res, err := svc.Place(ctx, small.ID, service.PlaceRequest{X: 0, Y: 0, Kind: "City", Label: strPtr("North")})
	require.NoError(t, err)
	require.True(t, res.Placed)
	assert.Equal(t, "bg-blue-300", res.Outcome.Color)
	assert.Equal(t, "bg-blue-300", res.State.Layout.CityColors["1-1"])

	def, err := svc.CreateMap(ctx, service.CreateMapRequest{})
	require.NoError(t, err)
	res, err = svc.Place(ctx, def.ID, service.PlaceRequest{X: 0, Y: 0, Kind: "City", Label: strPtr("South")})
	require.NoError(t, err)
	assert.Equal(t, catalog.DefaultCityColor, res.Outcome.Color)

	res, err = svc.Place(ctx, def.ID, service.PlaceRequest{X: 5, Y: 5, Kind: "City", Label: strPtr("East"), Color: "#112233"})
	require.NoError(t, err)
	assert.Equal(t, "#112233", res.Outcome.Color)
}

func TestMapService_ClearAndClick(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	info, err := svc.CreateMap(ctx, service.CreateMapRequest{})
	require.NoError(t, err)

	res, err := svc.Click(ctx, info.ID, service.PlaceRequest{X: 0, Y: 0, Kind: "BEAR 2"})
	require.NoError(t, err)
	assert.True(t, res.Placed)

	// clicking any cell of the camp clears it
	res, err = svc.Click(ctx, info.ID, service.PlaceRequest{X: 2, Y: 1, Kind: "Banner"})
	require.NoError(t, err)
	assert.True(t, res.Cleared)
	assert.Equal(t, grid.Position{X: 0, Y: 0}, res.Outcome.Origin)
	assert.Empty(t, res.State.Instances)

	// eraser on an empty cell does nothing
	res, err = svc.Click(ctx, info.ID, service.PlaceRequest{X: 4, Y: 4, Kind: "empty"})
	require.NoError(t, err)
	assert.Equal(t, "none", string(res.Action))
	assert.False(t, res.Placed)
	assert.False(t, res.Cleared)

	res, err = svc.Clear(ctx, info.ID, 7, 7)
	require.NoError(t, err)
	assert.False(t, res.Cleared)

	res, err = svc.Clear(ctx, info.ID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, service.ReasonOutOfBounds, res.Reason)

	_, err = svc.Clear(ctx, "missing", 0, 0)
	assert.ErrorIs(t, err, service.ErrMapNotFound)
}

func TestMapService_StateAndDescribe(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	info, err := svc.CreateMap(ctx, service.CreateMapRequest{})
	require.NoError(t, err)

	_, err = svc.Place(ctx, info.ID, service.PlaceRequest{X: 3, Y: 4, Kind: "City", Label: strPtr("Harbor"), Color: "bg-red-400"})
	require.NoError(t, err)

	state, err := svc.GetState(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, state.Width)
	require.Len(t, state.Instances, 1)
	assert.Equal(t, "Harbor", state.Instances[0].Label)
	assert.Equal(t, "Harbor", state.Layout.CityLabels["4-5"])

	cell, err := svc.DescribeCell(ctx, info.ID, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, catalog.City, cell.Kind)
	require.NotNil(t, cell.Origin)
	assert.Equal(t, grid.Position{X: 3, Y: 4}, *cell.Origin)
	require.NotNil(t, cell.CityMeta)
	assert.Equal(t, "bg-red-400", cell.CityMeta.Color)

	empty, err := svc.DescribeCell(ctx, info.ID, 0, 0)
	require.NoError(t, err)
	assert.True(t, empty.Empty)

	_, err = svc.DescribeCell(ctx, info.ID, 0, 20)
	assert.ErrorIs(t, err, grid.ErrOutOfBounds)
}

func TestMapService_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, boards, backend := newTestService(t)

	_, err := svc.CreateMap(ctx, service.CreateMapRequest{ID: "alpha"})
	require.NoError(t, err)
	_, err = svc.CreateMap(ctx, service.CreateMapRequest{ID: "bravo"})
	require.NoError(t, err)

	// a map stored by another process shows up unloaded
	require.NoError(t, backend.Save(ctx, persistence.Record{
		ID:    "charlie",
		State: grid.ToPersisted(grid.EmptySnapshot(grid.DefaultDimensions())),
	}))

	maps, err := svc.ListMaps(ctx)
	require.NoError(t, err)
	require.Len(t, maps, 3)
	assert.Equal(t, "alpha", maps[0].ID)
	assert.Equal(t, "bravo", maps[1].ID)
	assert.Equal(t, "charlie", maps[2].ID)
	assert.False(t, maps[2].Loaded)

	require.NoError(t, svc.DeleteMap(ctx, "alpha"))
	_, err = svc.GetMap(ctx, "alpha")
	assert.ErrorIs(t, err, service.ErrMapNotFound)
	assert.Equal(t, 1, boards.Count())

	assert.ErrorIs(t, svc.DeleteMap(ctx, "alpha"), service.ErrMapNotFound)

	// charlie loads on demand
	info, err := svc.GetMap(ctx, "charlie")
	require.NoError(t, err)
	assert.True(t, info.Loaded)
}

func TestMapService_OpenMapFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	info, err := svc.OpenMap(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", info.ID)
	assert.Equal(t, grid.DefaultWidth, info.Width)
	assert.Empty(t, info.LoadError)

	_, err = svc.OpenMap(ctx, "bad/id")
	assert.ErrorIs(t, err, service.ErrInvalidMapID)
}

func TestMapService_ExportPNG(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	info, err := svc.CreateMap(ctx, service.CreateMapRequest{Preset: "small"})
	require.NoError(t, err)
	_, err = svc.Place(ctx, info.ID, service.PlaceRequest{X: 1, Y: 1, Kind: "Banner"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportPNG(ctx, info.ID, render.Options{CellSize: 10}, &buf))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 60, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	assert.ErrorIs(t, svc.ExportPNG(ctx, "missing", render.DefaultOptions(), &buf), service.ErrMapNotFound)
}

func TestMapService_TilesAndPresets(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	tiles, err := svc.ListTiles(ctx)
	require.NoError(t, err)
	require.Len(t, tiles, 5)
	assert.Equal(t, catalog.Bear1, tiles[0].Kind)

	presets, err := svc.ListPresets(ctx)
	require.NoError(t, err)
	assert.Len(t, presets, 2)

	p, err := svc.GetPreset(ctx, "small")
	require.NoError(t, err)
	assert.Equal(t, 6, p.Width)

	_, err = svc.GetPreset(ctx, "nope")
	assert.ErrorIs(t, err, service.ErrPresetNotFound)
}

func TestSavePreset(t *testing.T) {
	ctx := context.Background()
	presets, err := config.NewManager(t.TempDir())
	require.NoError(t, err)
	boards := board.NewManager(persistence.NewMemoryBackend())
	t.Cleanup(boards.Close)
	svc := service.NewMapService(boards, presets)

	info, err := svc.SavePreset(ctx, "arena.yaml", &config.Preset{Name: "Arena", Width: 12, Height: 9, CityColor: "#336699"})
	require.NoError(t, err)
	assert.Equal(t, "arena", info.PresetID)
	assert.Equal(t, 12, info.Width)

	m, err := svc.CreateMap(ctx, service.CreateMapRequest{ID: "arena-1", Preset: "arena"})
	require.NoError(t, err)
	assert.Equal(t, 12, m.Width)
	assert.Equal(t, 9, m.Height)

	// a saved default applies to maps created without a preset
	_, err = svc.SavePreset(ctx, "default", &config.Preset{Name: "Wide", Width: 30, Height: 6})
	require.NoError(t, err)
	m, err = svc.CreateMap(ctx, service.CreateMapRequest{ID: "plain"})
	require.NoError(t, err)
	assert.Equal(t, 30, m.Width)

	_, err = svc.SavePreset(ctx, "Bad Name", &config.Preset{Name: "x", Width: 5, Height: 5})
	assert.ErrorIs(t, err, service.ErrInvalidPreset)
	_, err = svc.SavePreset(ctx, "tiny", &config.Preset{Name: "Tiny", Width: 0, Height: 5})
	assert.ErrorIs(t, err, service.ErrInvalidPreset)
}

func TestSavePreset_ReadOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.SavePreset(context.Background(), "arena", &config.Preset{Name: "Arena", Width: 8, Height: 8})
	assert.ErrorIs(t, err, service.ErrPresetReadOnly)
}

func TestCreateMap_WarnsWhenSmallerThanLargestTile(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	svc, _, _ := newTestService(t)

	_, err := svc.CreateMap(context.Background(), service.CreateMapRequest{ID: "narrow", Width: 2, Height: 10})
	require.NoError(t, err)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["max_footprint"] == 3 {
			warned = true
		}
	}
	assert.True(t, warned, "expected a warning naming the largest footprint")

	hook.Reset()
	_, err = svc.CreateMap(context.Background(), service.CreateMapRequest{ID: "roomy", Width: 3, Height: 3})
	require.NoError(t, err)
	for _, e := range hook.AllEntries() {
		assert.NotContains(t, e.Message, "largest tile")
	}
}
