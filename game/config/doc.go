// Package config provides map preset management for the war map server.
//
// The config package handles:
//   - Loading presets from JSON or YAML files
//   - Preset validation (dimensions and city color)
//   - Default preset selection
//   - Preset discovery and listing
//
// Preset Format:
//
// Presets live in the presets directory as <id>.json, <id>.yaml or <id>.yml.
// Each preset defines the size of new maps and the color given to cities that
// are placed without one:
//
//	name: Alliance season
//	description: Large map for a full server season
//	width: 40
//	height: 40
//	city_color: bg-green-300
//
// Colors are Tailwind background classes (bg-green-300) or #rrggbb values.
//
// Default Preset:
//
// The preset with ID "default" is used when a map is created without one. When
// the directory does not define it, a built-in 20x20 preset takes its place.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	preset, err := manager.LoadPreset("large")
//	presets, err := manager.ListPresets()
package config
