package engine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/wricardo/warmap/game/catalog"
	"github.com/wricardo/warmap/game/grid"
)

// Engine provides the gesture operations of the map editor
type Engine interface {
	// Gestures
	Place(x, y int, kind catalog.Kind, city *CityInput) (Outcome, error)
	Clear(x, y int) (Outcome, error)
	Click(x, y int, selection catalog.Kind, city *CityInput) (Outcome, error)

	// Read-only views
	Snapshot() grid.Snapshot
	Describe(x, y int) (CellInfo, error)
	Dimensions() grid.Dimensions
	Catalog() *catalog.Catalog
}

// PlacementEngine implements the Engine interface over a grid.Store
type PlacementEngine struct {
	mu        sync.RWMutex
	catalog   *catalog.Catalog
	store     *grid.Store
	saver     Saver
	listeners []Listener
}

// Option configures a PlacementEngine
type Option func(*PlacementEngine)

// WithSaver sets the saver triggered after every mutation
func WithSaver(s Saver) Option {
	return func(e *PlacementEngine) {
		e.saver = s
	}
}

// WithListener registers a change listener
func WithListener(l Listener) Option {
	return func(e *PlacementEngine) {
		if l != nil {
			e.listeners = append(e.listeners, l)
		}
	}
}

// NewEngine creates a placement engine that takes ownership of store
func NewEngine(cat *catalog.Catalog, store *grid.Store, opts ...Option) *PlacementEngine {
	if cat == nil {
		cat = catalog.Default()
	}
	e := &PlacementEngine{
		catalog: cat,
		store:   store,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the tile catalog used for footprint sizes
func (e *PlacementEngine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Dimensions returns the grid size
func (e *PlacementEngine) Dimensions() grid.Dimensions {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Dimensions()
}

// Snapshot returns a read-only copy of the grid
func (e *PlacementEngine) Snapshot() grid.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Snapshot()
}

// Place puts a tile of kind with its top-left corner at (x, y). The footprint is
// checked as a whole before anything is written.
func (e *PlacementEngine) Place(x, y int, kind catalog.Kind, city *CityInput) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.place(x, y, kind, city)
}

func (e *PlacementEngine) place(x, y int, kind catalog.Kind, city *CityInput) (Outcome, error) {
	none := Outcome{Action: ActionNone, Kind: kind, Origin: grid.Position{X: x, Y: y}}

	if kind.IsEmpty() || !e.catalog.Valid(kind) {
		return none, fmt.Errorf("%w: %q", ErrInvalidKind, string(kind))
	}

	size := e.catalog.FootprintSize(kind)
	none.Size = size
	if !e.store.InBounds(x, y) || !e.store.InBounds(x+size-1, y+size-1) {
		return none, fmt.Errorf("%w: %s at (%d,%d) needs %dx%d cells inside %dx%d",
			ErrOutOfBounds, kind, x, y, size, size, e.store.Width(), e.store.Height())
	}

	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			c, _ := e.store.Cell(x+dx, y+dy)
			if !c.IsEmpty() {
				return none, fmt.Errorf("%w: (%d,%d) holds %s placed at (%d,%d)",
					ErrOccupied, x+dx, y+dy, c.Kind, c.Origin.X, c.Origin.Y)
			}
		}
	}

	var label, color string
	if kind == catalog.City {
		if city == nil || strings.TrimSpace(city.Label) == "" {
			return none, ErrCancelled
		}
		label = strings.TrimSpace(city.Label)
		color = strings.TrimSpace(city.Color)
		if color == "" {
			color = catalog.DefaultCityColor
		}
	}

	e.store.SetFootprint(x, y, size, kind)
	cells := footprintCells(x, y, size)
	if kind == catalog.City {
		for _, p := range cells {
			e.store.SetCityMeta(p.X, p.Y, label, color)
		}
	}

	if color == "" {
		color, _ = e.catalog.DisplayColor(kind)
	}
	e.changed()
	return Outcome{
		Action: ActionPlaced,
		Kind:   kind,
		Origin: grid.Position{X: x, Y: y},
		Size:   size,
		Cells:  cells,
		Label:  label,
		Color:  color,
	}, nil
}

// Clear removes the whole instance covering (x, y). Clearing an empty cell is a no-op.
func (e *PlacementEngine) Clear(x, y int) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clear(x, y)
}

func (e *PlacementEngine) clear(x, y int) (Outcome, error) {
	c, err := e.store.Cell(x, y)
	if err != nil {
		return Outcome{Action: ActionNone, Origin: grid.Position{X: x, Y: y}}, err
	}
	if c.IsEmpty() {
		return Outcome{Action: ActionNone, Origin: grid.Position{X: x, Y: y}}, nil
	}

	size := e.catalog.FootprintSize(c.Kind)
	out := Outcome{Action: ActionCleared, Kind: c.Kind, Origin: c.Origin, Size: size}
	if meta, ok := e.store.GetCityMeta(c.Origin.X, c.Origin.Y); ok {
		out.Label = meta.Label
		out.Color = meta.Color
	}

	// only cells still pointing at this instance are touched
	for _, p := range footprintCells(c.Origin.X, c.Origin.Y, size) {
		cur, err := e.store.Cell(p.X, p.Y)
		if err != nil || cur.Kind != c.Kind || cur.Origin != c.Origin {
			continue
		}
		e.store.ClearFootprint(p.X, p.Y, 1)
		out.Cells = append(out.Cells, p)
	}

	e.changed()
	return out, nil
}

// Click applies the editor gesture: an occupied cell is cleared, an empty cell
// receives the current selection. An empty cell with the eraser selected is left alone.
func (e *PlacementEngine) Click(x, y int, selection catalog.Kind, city *CityInput) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.store.Cell(x, y)
	if err != nil {
		return Outcome{Action: ActionNone, Kind: selection, Origin: grid.Position{X: x, Y: y}}, err
	}
	if !c.IsEmpty() {
		return e.clear(x, y)
	}
	if selection.IsEmpty() {
		return Outcome{Action: ActionNone, Origin: grid.Position{X: x, Y: y}}, nil
	}
	return e.place(x, y, selection, city)
}

// Describe reports what occupies (x, y)
func (e *PlacementEngine) Describe(x, y int) (CellInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, err := e.store.Cell(x, y)
	if err != nil {
		return CellInfo{}, err
	}
	info := CellInfo{X: x, Y: y, Kind: c.Kind, Empty: c.IsEmpty()}
	if info.Empty {
		return info, nil
	}

	origin := c.Origin
	info.Origin = &origin
	info.Size = e.catalog.FootprintSize(c.Kind)
	if meta, ok := e.store.GetCityMeta(x, y); ok {
		info.CityMeta = &meta
		info.Color = meta.Color
	} else {
		info.Color, _ = e.catalog.DisplayColor(c.Kind)
	}
	return info, nil
}

// changed publishes the new state. Called with the write lock held so listeners
// and the saver observe mutations in order.
func (e *PlacementEngine) changed() {
	if len(e.listeners) == 0 && e.saver == nil {
		return
	}
	snap := e.store.Snapshot()
	for _, l := range e.listeners {
		l(snap)
	}
	if e.saver != nil {
		e.saver.Save(snap)
	}
}

func footprintCells(x, y, size int) []grid.Position {
	cells := make([]grid.Position, 0, size*size)
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			cells = append(cells, grid.Position{X: x + dx, Y: y + dy})
		}
	}
	return cells
}
