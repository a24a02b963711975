// Command validate provides a small CLI that validates map preset files
// (JSON or YAML) in a presets directory (../configs by default). It checks:
//   - File structure, rejecting unknown fields
//   - Name, dimensions and city color, as the preset loader does
//   - Preset IDs usable in URLs (the file name without extension)
//   - Presets shadowed by another file with the same ID
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/warmap/game/config"
)

// extensionOrder matches the order in which the preset loader tries extensions
var extensionOrder = []string{".json", ".yaml", ".yml"}

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// decodeStrict parses a preset and rejects fields the loader would ignore
func decodeStrict(path string, data []byte) (*config.Preset, error) {
	var p config.Preset
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return nil, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func presetID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func validatePresetFile(filePath string) ValidationResult {
	result := ValidationResult{File: filepath.Base(filePath), Valid: true}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	p, err := decodeStrict(filePath, data)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid preset structure: %v", err))
		return result
	}

	id := presetID(filePath)
	if err := config.ValidatePresetID(id); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}

	// the loader falls back to the ID for a missing name
	if p.Name == "" {
		p.Name = id
		result.Errors = append(result.Errors, fmt.Sprintf("✓ No name, %q will be used", id))
	}

	if err := config.ValidatePreset(p); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	if !result.Valid {
		return result
	}

	result.Errors = append(result.Errors,
		fmt.Sprintf("✓ %s (%s)", p.Name, id),
		fmt.Sprintf("✓ %dx%d grid", p.Width, p.Height),
		fmt.Sprintf("✓ City color %s", p.DefaultCityColor()),
	)
	return result
}

// findShadowed returns files the loader never reads because another file has
// the same preset ID and an earlier extension
func findShadowed(files []string) []string {
	byID := make(map[string][]string)
	for _, f := range files {
		byID[presetID(f)] = append(byID[presetID(f)], f)
	}

	rank := func(f string) int {
		ext := strings.ToLower(filepath.Ext(f))
		for i, e := range extensionOrder {
			if e == ext {
				return i
			}
		}
		return len(extensionOrder)
	}

	var shadowed []string
	for _, group := range byID {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return rank(group[i]) < rank(group[j]) })
		shadowed = append(shadowed, group[1:]...)
	}
	sort.Strings(shadowed)
	return shadowed
}

func presetFiles(dir string) ([]string, error) {
	var files []string
	for _, ext := range extensionOrder {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func main() {
	presetDir := "../configs"
	if len(os.Args) > 1 {
		presetDir = os.Args[1]
	}

	files, err := presetFiles(presetDir)
	if err != nil {
		fmt.Printf("Error finding preset files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validatePresetFile(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	for _, f := range findShadowed(files) {
		fmt.Printf("\n⚠️  %s is shadowed by another file with the same preset ID\n", filepath.Base(f))
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All presets are valid!")
	} else {
		fmt.Println("❌ Some presets have errors")
		os.Exit(1)
	}
}
