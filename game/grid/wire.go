package grid

import (
	"fmt"

	"github.com/wricardo/warmap/game/catalog"
)

// Persisted is the layout exchanged with the persistence gateway
type Persisted struct {
	Map        [][]catalog.Kind  `json:"map"`
	MapWidth   int               `json:"mapWidth"`
	MapHeight  int               `json:"mapHeight"`
	CityLabels map[string]string `json:"cityLabels"`
	CityColors map[string]string `json:"cityColors"`
}

// Repair records a piece of persisted state that was dropped or filled in while decoding
type Repair struct {
	X      int          `json:"x"`
	Y      int          `json:"y"`
	Kind   catalog.Kind `json:"kind,omitempty"`
	Reason string       `json:"reason"`
}

func (r Repair) String() string {
	if r.Kind.IsEmpty() {
		return fmt.Sprintf("(%d,%d): %s", r.X, r.Y, r.Reason)
	}
	return fmt.Sprintf("(%d,%d) %q: %s", r.X, r.Y, r.Kind, r.Reason)
}

const (
	reasonUnknownKind     = "unknown tile kind"
	reasonOutsideGrid     = "cell outside declared grid"
	reasonBrokenFootprint = "incomplete footprint"
	reasonOrphanMeta      = "city metadata on non-city cell"
	reasonBadKey          = "unparseable metadata key"
	reasonMissingMeta     = "city cell without metadata"
)

// ToPersisted converts a snapshot to the wire layout
func ToPersisted(snap Snapshot) Persisted {
	p := Persisted{
		Map:        make([][]catalog.Kind, snap.Height),
		MapWidth:   snap.Width,
		MapHeight:  snap.Height,
		CityLabels: make(map[string]string, len(snap.CityMeta)),
		CityColors: make(map[string]string, len(snap.CityMeta)),
	}
	for y := 0; y < snap.Height; y++ {
		p.Map[y] = make([]catalog.Kind, snap.Width)
		for x := 0; x < snap.Width; x++ {
			p.Map[y][x] = snap.Get(x, y)
		}
	}
	for key, m := range snap.CityMeta {
		p.CityLabels[key] = m.Label
		p.CityColors[key] = m.Color
	}
	return p
}

// dimensions resolves the grid size of a persisted layout. Missing sizes fall back to
// the map array, then to def.
func (p Persisted) dimensions(def Dimensions) Dimensions {
	dims := Dimensions{Width: p.MapWidth, Height: p.MapHeight}
	if dims.Height <= 0 {
		dims.Height = len(p.Map)
		if dims.Height == 0 {
			dims.Height = def.Height
		}
	}
	if dims.Width <= 0 {
		if len(p.Map) > 0 && len(p.Map[0]) > 0 {
			dims.Width = len(p.Map[0])
		} else {
			dims.Width = def.Width
		}
	}
	return dims
}

func (p Persisted) kindAt(x, y int) catalog.Kind {
	if y < 0 || y >= len(p.Map) || x < 0 || x >= len(p.Map[y]) {
		return catalog.Empty
	}
	return p.Map[y][x]
}

// FromPersisted decodes a wire layout into a snapshot that satisfies the placement
// invariants. Instances are re-derived by a row-major scan: the first unassigned cell
// of kind k whose footprint is entirely k and unassigned becomes an origin. Anything
// that cannot be explained that way is dropped and returned as a Repair.
func FromPersisted(p Persisted, cat *catalog.Catalog, def Dimensions) (Snapshot, []Repair, error) {
	dims := p.dimensions(def)
	if err := dims.Validate(); err != nil {
		return Snapshot{}, nil, err
	}

	snap := EmptySnapshot(dims)
	var repairs []Repair

	for y, row := range p.Map {
		for x, k := range row {
			if k.IsEmpty() {
				continue
			}
			if x >= dims.Width || y >= dims.Height {
				repairs = append(repairs, Repair{X: x, Y: y, Kind: k, Reason: reasonOutsideGrid})
			}
		}
	}

	assigned := make([][]bool, dims.Height)
	for y := range assigned {
		assigned[y] = make([]bool, dims.Width)
	}

	fits := func(ox, oy, size int, kind catalog.Kind) bool {
		if ox+size > dims.Width || oy+size > dims.Height {
			return false
		}
		for dy := 0; dy < size; dy++ {
			for dx := 0; dx < size; dx++ {
				if assigned[oy+dy][ox+dx] || p.kindAt(ox+dx, oy+dy) != kind {
					return false
				}
			}
		}
		return true
	}

	for y := 0; y < dims.Height; y++ {
		for x := 0; x < dims.Width; x++ {
			if assigned[y][x] {
				continue
			}
			k := p.kindAt(x, y)
			if k.IsEmpty() {
				continue
			}
			if !cat.Valid(k) {
				repairs = append(repairs, Repair{X: x, Y: y, Kind: k, Reason: reasonUnknownKind})
				continue
			}
			size := cat.FootprintSize(k)
			if !fits(x, y, size, k) {
				repairs = append(repairs, Repair{X: x, Y: y, Kind: k, Reason: reasonBrokenFootprint})
				continue
			}
			origin := Position{X: x, Y: y}
			for dy := 0; dy < size; dy++ {
				for dx := 0; dx < size; dx++ {
					assigned[y+dy][x+dx] = true
					snap.Cells[y+dy][x+dx] = Cell{Kind: k, Origin: origin}
				}
			}
		}
	}

	keys := make(map[string]struct{}, len(p.CityLabels)+len(p.CityColors))
	for k := range p.CityLabels {
		keys[k] = struct{}{}
	}
	for k := range p.CityColors {
		keys[k] = struct{}{}
	}
	for key := range keys {
		x, y, err := ParseCellKey(key)
		if err != nil {
			repairs = append(repairs, Repair{X: -1, Y: -1, Reason: fmt.Sprintf("%s %q", reasonBadKey, key)})
			continue
		}
		if snap.Get(x, y) != catalog.City {
			repairs = append(repairs, Repair{X: x, Y: y, Reason: reasonOrphanMeta})
		}
	}

	for y := 0; y < dims.Height; y++ {
		for x := 0; x < dims.Width; x++ {
			if snap.Cells[y][x].Kind != catalog.City {
				continue
			}
			key := CellKey(x, y)
			label, hasLabel := p.CityLabels[key]
			color, hasColor := p.CityColors[key]
			if !hasLabel && !hasColor {
				repairs = append(repairs, Repair{X: x, Y: y, Kind: catalog.City, Reason: reasonMissingMeta})
			}
			if color == "" {
				color = catalog.DefaultCityColor
			}
			snap.CityMeta[key] = CityMeta{Label: label, Color: color}
		}
	}

	return snap, repairs, nil
}
