package grid

import (
	"fmt"
	"sort"

	"github.com/wricardo/warmap/game/catalog"
)

// Store owns the cell matrix and the city metadata of one map
type Store struct {
	width    int
	height   int
	cells    [][]Cell
	cityMeta map[string]CityMeta
}

// Snapshot is a detached copy of the full store state
type Snapshot struct {
	Width    int                 `json:"width"`
	Height   int                 `json:"height"`
	Cells    [][]Cell            `json:"cells"`
	CityMeta map[string]CityMeta `json:"city_meta"`
}

// NewStore creates an all-empty store of the given size
func NewStore(dims Dimensions) (*Store, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		width:    dims.Width,
		height:   dims.Height,
		cells:    newCells(dims.Width, dims.Height),
		cityMeta: make(map[string]CityMeta),
	}, nil
}

// EmptySnapshot returns the snapshot of an all-empty grid
func EmptySnapshot(dims Dimensions) Snapshot {
	return Snapshot{
		Width:    dims.Width,
		Height:   dims.Height,
		Cells:    newCells(dims.Width, dims.Height),
		CityMeta: make(map[string]CityMeta),
	}
}

func newCells(width, height int) [][]Cell {
	cells := make([][]Cell, height)
	for y := range cells {
		cells[y] = make([]Cell, width)
	}
	return cells
}

// Width returns the number of columns
func (s *Store) Width() int {
	return s.width
}

// Height returns the number of rows
func (s *Store) Height() int {
	return s.height
}

// Dimensions returns the grid size
func (s *Store) Dimensions() Dimensions {
	return Dimensions{Width: s.width, Height: s.height}
}

// InBounds reports whether (x, y) addresses a cell of the grid
func (s *Store) InBounds(x, y int) bool {
	return x >= 0 && x < s.width && y >= 0 && y < s.height
}

// Get returns the kind stored at (x, y)
func (s *Store) Get(x, y int) (catalog.Kind, error) {
	c, err := s.Cell(x, y)
	if err != nil {
		return catalog.Empty, err
	}
	return c.Kind, nil
}

// Cell returns the kind and origin stored at (x, y)
func (s *Store) Cell(x, y int) (Cell, error) {
	if !s.InBounds(x, y) {
		return Cell{}, fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrOutOfBounds, x, y, s.width, s.height)
	}
	return s.cells[y][x], nil
}

// SetFootprint writes kind into every cell of the size×size square at (originX, originY)
// and records the origin in each cell. No overlap validation is performed; cells
// outside the grid are skipped.
func (s *Store) SetFootprint(originX, originY, size int, kind catalog.Kind) {
	origin := Position{X: originX, Y: originY}
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			x, y := originX+dx, originY+dy
			if !s.InBounds(x, y) {
				continue
			}
			s.cells[y][x] = Cell{Kind: kind, Origin: origin}
		}
	}
}

// ClearFootprint empties every cell of the size×size square at (originX, originY)
// and removes their city metadata
func (s *Store) ClearFootprint(originX, originY, size int) {
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			s.clearCell(originX+dx, originY+dy)
		}
	}
}

func (s *Store) clearCell(x, y int) {
	if !s.InBounds(x, y) {
		return
	}
	s.cells[y][x] = Cell{}
	delete(s.cityMeta, CellKey(x, y))
}

// SetCityMeta attaches a label and color to the cell at (x, y)
func (s *Store) SetCityMeta(x, y int, label, color string) {
	s.cityMeta[CellKey(x, y)] = CityMeta{Label: label, Color: color}
}

// GetCityMeta returns the city metadata of the cell at (x, y), if any
func (s *Store) GetCityMeta(x, y int) (CityMeta, bool) {
	m, ok := s.cityMeta[CellKey(x, y)]
	return m, ok
}

// RemoveCityMeta drops the city metadata of the cell at (x, y)
func (s *Store) RemoveCityMeta(x, y int) {
	delete(s.cityMeta, CellKey(x, y))
}

// Snapshot returns a deep copy of the store
func (s *Store) Snapshot() Snapshot {
	cells := make([][]Cell, s.height)
	for y := range cells {
		cells[y] = make([]Cell, s.width)
		copy(cells[y], s.cells[y])
	}
	meta := make(map[string]CityMeta, len(s.cityMeta))
	for k, v := range s.cityMeta {
		meta[k] = v
	}
	return Snapshot{
		Width:    s.width,
		Height:   s.height,
		Cells:    cells,
		CityMeta: meta,
	}
}

// Restore replaces the whole store state with a copy of snap
func (s *Store) Restore(snap Snapshot) error {
	dims := Dimensions{Width: snap.Width, Height: snap.Height}
	if err := dims.Validate(); err != nil {
		return err
	}
	if len(snap.Cells) != snap.Height {
		return fmt.Errorf("%w: snapshot has %d rows, expected %d", ErrInvalidDimensions, len(snap.Cells), snap.Height)
	}
	for y, row := range snap.Cells {
		if len(row) != snap.Width {
			return fmt.Errorf("%w: snapshot row %d has %d cells, expected %d", ErrInvalidDimensions, y, len(row), snap.Width)
		}
	}

	s.width = snap.Width
	s.height = snap.Height
	s.cells = newCells(snap.Width, snap.Height)
	for y, row := range snap.Cells {
		copy(s.cells[y], row)
	}
	s.cityMeta = make(map[string]CityMeta, len(snap.CityMeta))
	for k, v := range snap.CityMeta {
		s.cityMeta[k] = v
	}
	return nil
}

// Get returns the kind at (x, y), or Empty when out of bounds
func (snap Snapshot) Get(x, y int) catalog.Kind {
	if y < 0 || y >= len(snap.Cells) || x < 0 || x >= len(snap.Cells[y]) {
		return catalog.Empty
	}
	return snap.Cells[y][x].Kind
}

// Instances groups the snapshot's cells into placed instances, ordered row-major by origin
func (snap Snapshot) Instances() []Instance {
	byOrigin := make(map[Position]*Instance)
	for y, row := range snap.Cells {
		for x, c := range row {
			if c.IsEmpty() {
				continue
			}
			inst, ok := byOrigin[c.Origin]
			if !ok {
				inst = &Instance{Origin: c.Origin, Kind: c.Kind}
				if m, ok := snap.CityMeta[CellKey(c.Origin.X, c.Origin.Y)]; ok {
					inst.Label = m.Label
					inst.Color = m.Color
				}
				byOrigin[c.Origin] = inst
			}
			if side := x - c.Origin.X + 1; side > inst.Size {
				inst.Size = side
			}
			if side := y - c.Origin.Y + 1; side > inst.Size {
				inst.Size = side
			}
		}
	}

	out := make([]Instance, 0, len(byOrigin))
	for _, inst := range byOrigin {
		out = append(out, *inst)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Origin.Y != out[j].Origin.Y {
			return out[i].Origin.Y < out[j].Origin.Y
		}
		return out[i].Origin.X < out[j].Origin.X
	})
	return out
}

// CountKind returns how many cells hold kind
func (snap Snapshot) CountKind(kind catalog.Kind) int {
	count := 0
	for _, row := range snap.Cells {
		for _, c := range row {
			if c.Kind == kind {
				count++
			}
		}
	}
	return count
}
