package service

import (
	"context"
	"io"

	"github.com/wricardo/warmap/game/board"
	"github.com/wricardo/warmap/game/catalog"
	"github.com/wricardo/warmap/game/config"
	"github.com/wricardo/warmap/game/engine"
	"github.com/wricardo/warmap/render"
)

// MapService defines all map-editing operations
type MapService interface {
	// Map Management
	CreateMap(ctx context.Context, req CreateMapRequest) (*MapInfo, error)
	OpenMap(ctx context.Context, mapID string) (*MapInfo, error)
	GetMap(ctx context.Context, mapID string) (*MapInfo, error)
	ListMaps(ctx context.Context) ([]*MapInfo, error)
	DeleteMap(ctx context.Context, mapID string) error

	// Gestures
	Place(ctx context.Context, mapID string, req PlaceRequest) (*GestureResult, error)
	Clear(ctx context.Context, mapID string, x, y int) (*GestureResult, error)
	Click(ctx context.Context, mapID string, req PlaceRequest) (*GestureResult, error)

	// Map State
	GetState(ctx context.Context, mapID string) (*MapState, error)
	DescribeCell(ctx context.Context, mapID string, x, y int) (*engine.CellInfo, error)
	ExportPNG(ctx context.Context, mapID string, opts render.Options, w io.Writer) error

	// Catalog and presets
	ListTiles(ctx context.Context) ([]catalog.Spec, error)
	ListPresets(ctx context.Context) ([]*config.PresetInfo, error)
	GetPreset(ctx context.Context, name string) (*config.Preset, error)
	SavePreset(ctx context.Context, name string, preset *config.Preset) (*config.PresetInfo, error)
}

// BoardManager defines board storage operations
type BoardManager interface {
	Catalog() *catalog.Catalog
	Create(ctx context.Context, opts board.CreateOptions) (*board.Board, error)
	Get(ctx context.Context, id string) (*board.Board, error)
	Open(ctx context.Context, id string) (*board.Board, error)
	List() []*board.Board
	ListStored(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// PresetManager handles map preset loading
type PresetManager interface {
	LoadPreset(name string) (*config.Preset, error)
	ListPresets() ([]*config.PresetInfo, error)
	GetDefault() *config.Preset
	SavePreset(name string, preset *config.Preset) error
	RefreshCache()
}
