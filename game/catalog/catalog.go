package catalog

import (
	"encoding/json"
	"strings"
)

// Kind identifies a tile kind. The string value is the name used on the wire.
type Kind string

const (
	Empty  Kind = ""
	Bear1  Kind = "BEAR 1"
	Bear2  Kind = "BEAR 2"
	HQ     Kind = "Alliance HQ"
	Banner Kind = "Banner"
	City   Kind = "City"

	// DefaultCityColor is used when a city is placed without a color.
	DefaultCityColor = "bg-green-300"
)

// IsEmpty reports whether k is the empty pseudo-kind
func (k Kind) IsEmpty() bool {
	return k == Empty
}

// MarshalJSON encodes Empty as null so persisted maps match the stored layout
func (k Kind) MarshalJSON() ([]byte, error) {
	if k == Empty {
		return []byte("null"), nil
	}
	return json.Marshal(string(k))
}

// UnmarshalJSON decodes null and "" as Empty
func (k *Kind) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*k = Empty
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*k = Kind(s)
	return nil
}

// Spec describes the fixed attributes of a tile kind
type Spec struct {
	Kind  Kind   `json:"kind"`
	Size  int    `json:"size"`
	Color string `json:"color,omitempty"`
	Label string `json:"label"`
}

// Catalog is an immutable lookup table of tile specs
type Catalog struct {
	specs map[Kind]Spec
	order []Kind
}

// New builds a catalog from the given specs. Later duplicates replace earlier ones.
func New(specs ...Spec) *Catalog {
	c := &Catalog{specs: make(map[Kind]Spec, len(specs))}
	for _, s := range specs {
		if s.Kind == Empty {
			continue
		}
		if s.Size < 1 {
			s.Size = 1
		}
		if _, exists := c.specs[s.Kind]; !exists {
			c.order = append(c.order, s.Kind)
		}
		c.specs[s.Kind] = s
	}
	return c
}

// Default returns the standard catalog used by the editor
func Default() *Catalog {
	return New(
		Spec{Kind: Bear1, Size: 3, Color: "bg-gray-400", Label: "BEAR 1"},
		Spec{Kind: Bear2, Size: 3, Color: "bg-gray-500", Label: "BEAR 2"},
		Spec{Kind: HQ, Size: 3, Color: "bg-yellow-400", Label: "Alliance HQ"},
		Spec{Kind: Banner, Size: 1, Color: "bg-blue-500", Label: "Banner"},
		Spec{Kind: City, Size: 2, Label: "City"},
	)
}

// FootprintSize returns the side length of the kind's square footprint.
// Unknown kinds and Empty occupy a single cell.
func (c *Catalog) FootprintSize(kind Kind) int {
	if s, ok := c.specs[kind]; ok {
		return s.Size
	}
	return 1
}

// DisplayColor returns the catalog color of a kind. City has none.
func (c *Catalog) DisplayColor(kind Kind) (string, bool) {
	s, ok := c.specs[kind]
	if !ok || s.Color == "" {
		return "", false
	}
	return s.Color, true
}

// Valid reports whether kind is a placeable kind in this catalog
func (c *Catalog) Valid(kind Kind) bool {
	_, ok := c.specs[kind]
	return ok
}

// Lookup resolves a kind from its wire name or a loose alias such as "hq" or "bear1".
func (c *Catalog) Lookup(name string) (Kind, bool) {
	if _, ok := c.specs[Kind(name)]; ok {
		return Kind(name), true
	}
	norm := normalize(name)
	if norm == "" || norm == "empty" || norm == "eraser" {
		return Empty, true
	}
	for _, k := range c.order {
		if normalize(string(k)) == norm {
			return k, true
		}
	}
	switch norm {
	case "hq":
		return c.alias(HQ)
	case "bear":
		return c.alias(Bear1)
	}
	return Empty, false
}

// Kinds returns the placeable kinds in catalog order
func (c *Catalog) Kinds() []Kind {
	out := make([]Kind, len(c.order))
	copy(out, c.order)
	return out
}

// Specs returns all specs in catalog order
func (c *Catalog) Specs() []Spec {
	out := make([]Spec, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.specs[k])
	}
	return out
}

// MaxFootprint returns the largest footprint side in the catalog
func (c *Catalog) MaxFootprint() int {
	max := 1
	for _, s := range c.specs {
		if s.Size > max {
			max = s.Size
		}
	}
	return max
}

func (c *Catalog) alias(k Kind) (Kind, bool) {
	_, ok := c.specs[k]
	return k, ok
}

func normalize(name string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(name)))
}
