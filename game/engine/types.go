package engine

import (
	"errors"

	"github.com/wricardo/warmap/game/catalog"
	"github.com/wricardo/warmap/game/grid"
)

var (
	ErrOutOfBounds = grid.ErrOutOfBounds
	ErrOccupied    = errors.New("footprint overlaps an existing tile")
	ErrCancelled   = errors.New("city placement cancelled: no label supplied")
	ErrInvalidKind = errors.New("invalid tile kind")
)

// Action describes what a gesture did to the grid
type Action string

const (
	ActionPlaced  Action = "placed"
	ActionCleared Action = "cleared"
	ActionNone    Action = "none"
)

// CityInput carries the per-instance attributes of a city placement
type CityInput struct {
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
}

// Outcome reports the effect of a Place, Clear or Click
type Outcome struct {
	Action Action          `json:"action"`
	Kind   catalog.Kind    `json:"kind,omitempty"`
	Origin grid.Position   `json:"origin"`
	Size   int             `json:"size,omitempty"`
	Cells  []grid.Position `json:"cells,omitempty"`
	Label  string          `json:"label,omitempty"`
	Color  string          `json:"color,omitempty"`
}

// Changed reports whether the grid was mutated
func (o Outcome) Changed() bool {
	return o.Action == ActionPlaced || o.Action == ActionCleared
}

// CellInfo describes a single cell for inspection
type CellInfo struct {
	X        int            `json:"x"`
	Y        int            `json:"y"`
	Kind     catalog.Kind   `json:"kind"`
	Empty    bool           `json:"empty"`
	Origin   *grid.Position `json:"origin,omitempty"`
	Size     int            `json:"size,omitempty"`
	Color    string         `json:"color,omitempty"`
	CityMeta *grid.CityMeta `json:"city_meta,omitempty"`
}

// Saver receives the grid state after every mutation. Implementations must not block.
type Saver interface {
	Save(snap grid.Snapshot)
}

// SaverFunc adapts a function to the Saver interface
type SaverFunc func(snap grid.Snapshot)

// Save calls f(snap)
func (f SaverFunc) Save(snap grid.Snapshot) {
	f(snap)
}

// Listener is notified with a read-only copy of the grid after every mutation
type Listener func(snap grid.Snapshot)
