package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	ErrPresetNotFound = errors.New("preset not found")
	ErrInvalidPreset  = errors.New("invalid preset")
	ErrReadOnly       = errors.New("no preset directory configured")
)

// presetExtensions are tried in order when resolving a preset name
var presetExtensions = []string{".json", ".yaml", ".yml"}

// Manager handles map preset loading and caching
type Manager struct {
	presetDir     string
	defaultPreset *Preset
	presets       map[string]*Preset
	mu            sync.RWMutex
}

// NewManager creates a preset manager reading from presetDir. An empty presetDir
// serves the built-in default preset only.
func NewManager(presetDir string) (*Manager, error) {
	if presetDir != "" {
		if _, err := os.Stat(presetDir); os.IsNotExist(err) {
			return nil, fmt.Errorf("preset directory does not exist: %s", presetDir)
		}
	}

	m := &Manager{
		presetDir: presetDir,
		presets:   make(map[string]*Preset),
	}
	m.loadDefaultPreset()
	return m, nil
}

// LoadPreset loads a preset by ID (file name without extension)
func (m *Manager) LoadPreset(name string) (*Preset, error) {
	name = presetID(name)

	m.mu.RLock()
	if p, exists := m.presets[name]; exists {
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(name)
}

func (m *Manager) loadLocked(name string) (*Preset, error) {
	if p, exists := m.presets[name]; exists {
		return p, nil
	}
	if m.presetDir == "" || strings.ContainsAny(name, `/\`) || name == "" {
		if name == "default" {
			return builtinPreset(), nil
		}
		return nil, ErrPresetNotFound
	}

	var (
		data []byte
		path string
		err  error
	)
	for _, ext := range presetExtensions {
		path = filepath.Join(m.presetDir, name+ext)
		data, err = os.ReadFile(path)
		if err == nil || !os.IsNotExist(err) {
			break
		}
	}
	if err != nil {
		if os.IsNotExist(err) {
			if name == "default" {
				return builtinPreset(), nil
			}
			return nil, ErrPresetNotFound
		}
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}

	p, err := parsePreset(path, data)
	if err != nil {
		return nil, err
	}
	if p.Name == "" {
		p.Name = name
	}
	if err := ValidatePreset(p); err != nil {
		return nil, err
	}

	m.presets[name] = p
	return p, nil
}

func parsePreset(path string, data []byte) (*Preset, error) {
	var p Preset
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse preset: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse preset: %w", err)
		}
	}
	return &p, nil
}

// ListPresets returns all valid presets in the directory, plus the built-in
// default when the directory does not define one
func (m *Manager) ListPresets() ([]*PresetInfo, error) {
	var infos []*PresetInfo
	seen := make(map[string]bool)

	if m.presetDir != "" {
		entries, err := os.ReadDir(m.presetDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read preset directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !hasPresetExtension(entry.Name()) {
				continue
			}
			id := presetID(entry.Name())
			if seen[id] {
				continue
			}
			p, err := m.LoadPreset(id)
			if err != nil {
				// skip invalid presets
				continue
			}
			seen[id] = true
			infos = append(infos, newPresetInfo(entry.Name(), id, p))
		}
	}

	if !seen["default"] {
		infos = append(infos, newPresetInfo("", "default", builtinPreset()))
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].PresetID < infos[j].PresetID })
	return infos, nil
}

func newPresetInfo(filename, id string, p *Preset) *PresetInfo {
	return &PresetInfo{
		Filename:    filename,
		PresetID:    id,
		Name:        p.Name,
		Description: p.Description,
		Width:       p.Width,
		Height:      p.Height,
		CityColor:   p.DefaultCityColor(),
	}
}

// GetDefault returns the default preset
func (m *Manager) GetDefault() *Preset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultPreset
}

// SetDefault sets the default preset by ID
func (m *Manager) SetDefault(name string) error {
	p, err := m.LoadPreset(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultPreset = p
	return nil
}

// RefreshCache drops all cached presets and reloads the default
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.presets = make(map[string]*Preset)
	m.mu.Unlock()

	m.loadDefaultPreset()
}

// SavePreset validates p and writes it as <name>.yaml or <name>.json depending on
// the extension of name (JSON when there is none). The cache is not touched;
// RefreshCache picks up the file that now wins for the ID.
func (m *Manager) SavePreset(name string, p *Preset) error {
	if m.presetDir == "" {
		return ErrReadOnly
	}
	if err := ValidatePresetID(name); err != nil {
		return err
	}
	if err := ValidatePreset(p); err != nil {
		return err
	}

	filename := strings.ToLower(name)
	if !hasPresetExtension(filename) {
		filename += ".json"
	}

	var (
		data []byte
		err  error
	)
	switch filepath.Ext(filename) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(p)
	default:
		data, err = json.MarshalIndent(p, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal preset: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.presetDir, filename), data, 0644); err != nil {
		return fmt.Errorf("failed to write preset file: %w", err)
	}
	return nil
}

// loadDefaultPreset picks "default" from the directory, else the built-in one
func (m *Manager) loadDefaultPreset() {
	p, err := m.LoadPreset("default")
	if err != nil {
		p = builtinPreset()
	}

	m.mu.Lock()
	m.defaultPreset = p
	m.mu.Unlock()
}

func hasPresetExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range presetExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func presetID(name string) string {
	if hasPresetExtension(name) {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return strings.ToLower(name)
}
