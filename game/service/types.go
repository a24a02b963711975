package service

import (
	"errors"
	"time"

	"github.com/wricardo/warmap/game/board"
	"github.com/wricardo/warmap/game/config"
	"github.com/wricardo/warmap/game/engine"
	"github.com/wricardo/warmap/game/grid"
	"github.com/wricardo/warmap/game/persistence"
)

var (
	ErrMapNotFound    = board.ErrBoardNotFound
	ErrMapExists      = board.ErrBoardAlreadyExists
	ErrInvalidMapID   = board.ErrInvalidBoardID
	ErrInvalidKind    = engine.ErrInvalidKind
	ErrPresetNotFound = config.ErrPresetNotFound
	ErrInvalidPreset  = config.ErrInvalidPreset
	ErrPresetReadOnly = config.ErrReadOnly
	ErrInvalidRequest = errors.New("invalid request")
)

// Reason codes reported when a gesture is rejected
const (
	ReasonOutOfBounds = "out_of_bounds"
	ReasonOccupied    = "occupied"
	ReasonCancelled   = "cancelled"
)

// CreateMapRequest describes a new map. Width and Height override the preset.
type CreateMapRequest struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Preset string `json:"preset,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// MapInfo provides information about a map
type MapInfo struct {
	ID             string                 `json:"id"`
	Name           string                 `json:"name,omitempty"`
	Preset         string                 `json:"preset"`
	Width          int                    `json:"width"`
	Height         int                    `json:"height"`
	Tiles          int                    `json:"tiles"`
	CreatedAt      time.Time              `json:"created_at"`
	LastAccessedAt time.Time              `json:"last_accessed_at"`
	Loaded         bool                   `json:"loaded"`
	Repairs        []string               `json:"repairs,omitempty"`
	LoadError      string                 `json:"load_error,omitempty"`
	Saves          persistence.SaverStats `json:"saves"`
	Viewers        int                    `json:"viewers"`
}

// PlaceRequest is a placement or click at (X, Y). Label is required for cities;
// a nil label cancels the placement.
type PlaceRequest struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Kind  string  `json:"kind"`
	Label *string `json:"label,omitempty"`
	Color string  `json:"color,omitempty"`
}

// GestureResult contains the result of a place, clear or click. A rejected
// placement is not an error: Placed is false and Reason says why.
type GestureResult struct {
	Placed  bool           `json:"placed"`
	Cleared bool           `json:"cleared"`
	Action  engine.Action  `json:"action"`
	Reason  string         `json:"reason,omitempty"`
	Message string         `json:"message"`
	Outcome engine.Outcome `json:"outcome"`
	State   *MapState      `json:"state,omitempty"`
}

// MapState is the full state of a map: the stored layout plus derived views
type MapState struct {
	MapID     string          `json:"map_id"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Layout    grid.Persisted  `json:"layout"`
	Instances []grid.Instance `json:"instances"`
	Counts    map[string]int  `json:"counts"`
}

// NewMapState builds the transport view of a snapshot
func NewMapState(mapID string, snap grid.Snapshot) *MapState {
	instances := snap.Instances()
	counts := make(map[string]int)
	for _, inst := range instances {
		counts[string(inst.Kind)]++
	}
	return &MapState{
		MapID:     mapID,
		Width:     snap.Width,
		Height:    snap.Height,
		Layout:    grid.ToPersisted(snap),
		Instances: instances,
		Counts:    counts,
	}
}
