package grid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wricardo/warmap/game/catalog"
)

const (
	DefaultWidth  = 20
	DefaultHeight = 20
	MaxDimension  = 200
)

var (
	ErrOutOfBounds       = errors.New("coordinates out of bounds")
	ErrInvalidDimensions = errors.New("invalid grid dimensions")
	ErrInvalidCellKey    = errors.New("invalid cell key")
)

// Position represents x,y coordinates
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Dimensions is the fixed size of a grid
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultDimensions returns the size used for new and unrecoverable maps
func DefaultDimensions() Dimensions {
	return Dimensions{Width: DefaultWidth, Height: DefaultHeight}
}

// Validate checks that both sides are within 1..MaxDimension
func (d Dimensions) Validate() error {
	if d.Width < 1 || d.Height < 1 || d.Width > MaxDimension || d.Height > MaxDimension {
		return fmt.Errorf("%w: %dx%d (each side must be between 1 and %d)", ErrInvalidDimensions, d.Width, d.Height, MaxDimension)
	}
	return nil
}

// Cell is the content of a single grid cell
type Cell struct {
	Kind   catalog.Kind `json:"kind"`
	Origin Position     `json:"origin"`
}

// IsEmpty reports whether no tile covers the cell
func (c Cell) IsEmpty() bool {
	return c.Kind.IsEmpty()
}

// CityMeta is the per-cell label and color of a city placement
type CityMeta struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Instance describes one placed tile
type Instance struct {
	Origin Position     `json:"origin"`
	Kind   catalog.Kind `json:"kind"`
	Size   int          `json:"size"`
	Label  string       `json:"label,omitempty"`
	Color  string       `json:"color,omitempty"`
}

// CellKey returns the composite "x-y" key used for per-cell metadata
func CellKey(x, y int) string {
	return strconv.Itoa(x) + "-" + strconv.Itoa(y)
}

// ParseCellKey parses an "x-y" key
func ParseCellKey(key string) (int, int, error) {
	xs, ys, ok := strings.Cut(key, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidCellKey, key)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidCellKey, key)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidCellKey, key)
	}
	return x, y, nil
}
