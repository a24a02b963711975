package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/wricardo/warmap/game/catalog"
	"github.com/wricardo/warmap/game/grid"
)

// Preset is a named template for new maps
type Preset struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Width       int    `json:"width" yaml:"width"`
	Height      int    `json:"height" yaml:"height"`
	CityColor   string `json:"city_color,omitempty" yaml:"city_color,omitempty"`
}

// PresetInfo describes a preset available for map creation
type PresetInfo struct {
	Filename    string `json:"filename,omitempty"`
	PresetID    string `json:"preset_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	CityColor   string `json:"city_color"`
}

var (
	colorPattern    = regexp.MustCompile(`^(bg-[a-z]+(-[0-9]{2,3})?|#[0-9a-fA-F]{6})$`)
	presetIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

// Dimensions returns the grid size of the preset
func (p *Preset) Dimensions() grid.Dimensions {
	return grid.Dimensions{Width: p.Width, Height: p.Height}
}

// DefaultCityColor returns the preset's city color, or the catalog default
func (p *Preset) DefaultCityColor() string {
	if p == nil || p.CityColor == "" {
		return catalog.DefaultCityColor
	}
	return p.CityColor
}

// ValidatePreset checks a preset for usable dimensions and color
func ValidatePreset(p *Preset) error {
	if p == nil {
		return fmt.Errorf("%w: preset cannot be nil", ErrInvalidPreset)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPreset)
	}
	if err := p.Dimensions().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPreset, err)
	}
	if p.CityColor != "" && !IsColor(p.CityColor) {
		return fmt.Errorf("%w: city_color %q is neither a bg- class nor #rrggbb", ErrInvalidPreset, p.CityColor)
	}
	return nil
}

// ValidatePresetID checks that a preset file name, extension optional, is
// usable as a preset ID in URLs
func ValidatePresetID(name string) error {
	id := name
	if hasPresetExtension(id) {
		id = strings.TrimSuffix(id, filepath.Ext(id))
	}
	if !presetIDPattern.MatchString(id) {
		return fmt.Errorf("%w: preset ID %q must be lowercase letters, digits, '-' or '_'", ErrInvalidPreset, id)
	}
	return nil
}

// IsColor reports whether s is a color the renderers understand
func IsColor(s string) bool {
	return colorPattern.MatchString(s)
}

// builtinPreset is used when the presets directory has no default
func builtinPreset() *Preset {
	return &Preset{
		Name:        "default",
		Description: "Empty 20x20 map",
		Width:       grid.DefaultWidth,
		Height:      grid.DefaultHeight,
		CityColor:   catalog.DefaultCityColor,
	}
}
