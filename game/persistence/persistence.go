package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wricardo/warmap/game/catalog"
	"github.com/wricardo/warmap/game/grid"
)

var (
	ErrMapNotFound = errors.New("map not found")
	ErrInvalidID   = errors.New("invalid map id")
	ErrUndecodable = errors.New("stored map is unusable")
)

// Record is a stored map: its metadata and persisted grid layout
type Record struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	Preset    string         `json:"preset,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	State     grid.Persisted `json:"state"`
}

// Backend stores Records keyed by map ID
type Backend interface {
	// Save creates or replaces the record
	Save(ctx context.Context, rec Record) error

	// Load returns the record with the given ID or ErrMapNotFound
	Load(ctx context.Context, id string) (Record, error)

	// Delete removes the record or returns ErrMapNotFound
	Delete(ctx context.Context, id string) error

	// List returns the IDs of all stored records
	List(ctx context.Context) ([]string, error)
}

// Gateway saves and loads the layout of a single map
type Gateway interface {
	Save(ctx context.Context, state grid.Persisted) error
	Load(ctx context.Context) (grid.Persisted, error)
}

// BoundGateway is a Gateway for one map of a Backend
type BoundGateway struct {
	backend Backend

	mu   sync.Mutex
	meta Record
}

// Bind returns the gateway of the map described by meta. The metadata is written
// along with every save; UpdatedAt is refreshed each time.
func Bind(b Backend, meta Record) *BoundGateway {
	meta.State = grid.Persisted{}
	return &BoundGateway{backend: b, meta: meta}
}

// ID returns the map ID the gateway is bound to
func (g *BoundGateway) ID() string {
	return g.meta.ID
}

// Save writes state with the bound metadata
func (g *BoundGateway) Save(ctx context.Context, state grid.Persisted) error {
	g.mu.Lock()
	rec := g.meta
	rec.UpdatedAt = time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
		g.meta.CreatedAt = rec.CreatedAt
	}
	g.mu.Unlock()

	rec.State = state
	if err := g.backend.Save(ctx, rec); err != nil {
		return fmt.Errorf("save map %s: %w", rec.ID, err)
	}
	return nil
}

// Meta returns the bound metadata, refreshed by a successful Load
func (g *BoundGateway) Meta() Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.meta
}

// Load reads the bound map's layout. The stored name, preset and creation time
// replace the bound ones so later saves keep them.
func (g *BoundGateway) Load(ctx context.Context) (grid.Persisted, error) {
	rec, err := g.backend.Load(ctx, g.meta.ID)
	if err != nil {
		return grid.Persisted{}, fmt.Errorf("load map %s: %w", g.meta.ID, err)
	}

	g.mu.Lock()
	g.meta.Name = rec.Name
	g.meta.Preset = rec.Preset
	if !rec.CreatedAt.IsZero() {
		g.meta.CreatedAt = rec.CreatedAt
	}
	g.mu.Unlock()
	return rec.State, nil
}

// LoadSnapshot loads and decodes a map. On any failure it returns an empty grid of
// size def and the failure, which callers treat as a warning. Decode failures
// match ErrUndecodable.
func LoadSnapshot(ctx context.Context, g Gateway, cat *catalog.Catalog, def grid.Dimensions) (grid.Snapshot, []grid.Repair, error) {
	state, err := g.Load(ctx)
	if err != nil {
		return grid.EmptySnapshot(def), nil, err
	}
	snap, repairs, err := grid.FromPersisted(state, cat, def)
	if err != nil {
		return grid.EmptySnapshot(def), nil, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}
	return snap, repairs, nil
}

// ValidateID rejects IDs that cannot be used as file names or keys
func ValidateID(id string) error {
	if id == "" || len(id) > 128 {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}
	return nil
}
