package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/warmap/game/catalog"
	"github.com/wricardo/warmap/game/grid"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func createTestPresetDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "small.yaml", "name: Skirmish\nwidth: 12\nheight: 10\ncity_color: bg-blue-300\n")
	writeFile(t, dir, "kingdom.json", `{"name":"Kingdom","width":64,"height":48,"city_color":"#f97316"}`)
	writeFile(t, dir, "broken.json", `{"name":"Broken","width":0,"height":10}`)
	writeFile(t, dir, "notes.txt", "not a preset")
	return dir
}

func TestNewManager_MissingDirectory(t *testing.T) {
	_, err := NewManager(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestNewManager_BuiltinDefault(t *testing.T) {
	m, err := NewManager("")
	require.NoError(t, err)

	def := m.GetDefault()
	require.NotNil(t, def)
	assert.Equal(t, grid.DefaultDimensions(), def.Dimensions())
	assert.Equal(t, catalog.DefaultCityColor, def.DefaultCityColor())

	_, err = m.LoadPreset("small")
	assert.ErrorIs(t, err, ErrPresetNotFound)
}

func TestLoadPreset_YAMLAndJSON(t *testing.T) {
	m, err := NewManager(createTestPresetDir(t))
	require.NoError(t, err)

	small, err := m.LoadPreset("small")
	require.NoError(t, err)
	assert.Equal(t, "Skirmish", small.Name)
	assert.Equal(t, grid.Dimensions{Width: 12, Height: 10}, small.Dimensions())
	assert.Equal(t, "bg-blue-300", small.DefaultCityColor())

	kingdom, err := m.LoadPreset("kingdom.json")
	require.NoError(t, err)
	assert.Equal(t, 64, kingdom.Width)
	assert.Equal(t, "#f97316", kingdom.CityColor)

	again, err := m.LoadPreset("Kingdom")
	require.NoError(t, err)
	assert.Same(t, kingdom, again, "presets are cached")
}

func TestLoadPreset_Invalid(t *testing.T) {
	m, err := NewManager(createTestPresetDir(t))
	require.NoError(t, err)

	_, err = m.LoadPreset("broken")
	assert.ErrorIs(t, err, ErrInvalidPreset)

	_, err = m.LoadPreset("missing")
	assert.ErrorIs(t, err, ErrPresetNotFound)

	_, err = m.LoadPreset("../small")
	assert.ErrorIs(t, err, ErrPresetNotFound)
}

func TestListPresets(t *testing.T) {
	m, err := NewManager(createTestPresetDir(t))
	require.NoError(t, err)

	infos, err := m.ListPresets()
	require.NoError(t, err)

	var ids []string
	for _, info := range infos {
		ids = append(ids, info.PresetID)
	}
	assert.Equal(t, []string{"default", "kingdom", "small"}, ids, "invalid and foreign files are skipped")
	assert.Equal(t, catalog.DefaultCityColor, infos[0].CityColor)
	assert.Empty(t, infos[0].Filename)
	assert.Equal(t, "small.yaml", infos[2].Filename)
}

func TestDefaultPresetFromDirectory(t *testing.T) {
	dir := createTestPresetDir(t)
	writeFile(t, dir, "default.yml", "name: House default\nwidth: 30\nheight: 25\n")

	m, err := NewManager(dir)
	require.NoError(t, err)
	assert.Equal(t, "House default", m.GetDefault().Name)
	assert.Equal(t, catalog.DefaultCityColor, m.GetDefault().DefaultCityColor())

	require.NoError(t, m.SetDefault("small"))
	assert.Equal(t, "Skirmish", m.GetDefault().Name)
	assert.ErrorIs(t, m.SetDefault("missing"), ErrPresetNotFound)
}

func TestSavePreset(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	require.NoError(t, m.SavePreset("arena.yaml", &Preset{Name: "Arena", Width: 8, Height: 8}))
	require.NoError(t, m.SavePreset("plains", &Preset{Name: "Plains", Width: 30, Height: 15, CityColor: "bg-red-300"}))
	assert.FileExists(t, filepath.Join(dir, "arena.yaml"))
	assert.FileExists(t, filepath.Join(dir, "plains.json"))

	err = m.SavePreset("bad", &Preset{Name: "Bad", Width: 10, Height: 10, CityColor: "red"})
	assert.ErrorIs(t, err, ErrInvalidPreset)
	err = m.SavePreset("../escape", &Preset{Name: "Escape", Width: 10, Height: 10})
	assert.ErrorIs(t, err, ErrInvalidPreset)
	assert.NoFileExists(t, filepath.Join(dir, "..", "escape.json"))

	builtin, err := NewManager("")
	require.NoError(t, err)
	assert.ErrorIs(t, builtin.SavePreset("arena", &Preset{Name: "Arena", Width: 8, Height: 8}), ErrReadOnly)

	// a fresh manager reads what was written
	m2, err := NewManager(dir)
	require.NoError(t, err)
	arena, err := m2.LoadPreset("arena")
	require.NoError(t, err)
	assert.Equal(t, 8, arena.Width)
	plains, err := m2.LoadPreset("plains")
	require.NoError(t, err)
	assert.Equal(t, "bg-red-300", plains.CityColor)
}

func TestRefreshCache(t *testing.T) {
	dir := createTestPresetDir(t)
	m, err := NewManager(dir)
	require.NoError(t, err)

	_, err = m.LoadPreset("small")
	require.NoError(t, err)
	writeFile(t, dir, "small.yaml", "name: Skirmish v2\nwidth: 14\nheight: 14\n")

	small, _ := m.LoadPreset("small")
	assert.Equal(t, "Skirmish", small.Name)

	m.RefreshCache()
	small, err = m.LoadPreset("small")
	require.NoError(t, err)
	assert.Equal(t, "Skirmish v2", small.Name)
}

func TestSavePresetThenRefreshReplacesDefault(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)
	assert.Equal(t, grid.DefaultWidth, m.GetDefault().Width)

	require.NoError(t, m.SavePreset("default", &Preset{Name: "Wide", Width: 40, Height: 10}))
	assert.Equal(t, grid.DefaultWidth, m.GetDefault().Width, "cache is refreshed explicitly")

	m.RefreshCache()
	assert.Equal(t, 40, m.GetDefault().Width)
}

func TestValidatePresetID(t *testing.T) {
	for _, ok := range []string{"small", "season-3", "big_map.yaml", "x.json"} {
		assert.NoError(t, ValidatePresetID(ok), ok)
	}
	for _, bad := range []string{"", "Big", "big map", "../x", "-lead", ".json"} {
		assert.ErrorIs(t, ValidatePresetID(bad), ErrInvalidPreset, bad)
	}
}

func TestValidatePreset(t *testing.T) {
	tests := []struct {
		name   string
		preset *Preset
		valid  bool
	}{
		{"nil", nil, false},
		{"no name", &Preset{Width: 10, Height: 10}, false},
		{"too wide", &Preset{Name: "x", Width: grid.MaxDimension + 1, Height: 10}, false},
		{"bad color", &Preset{Name: "x", Width: 10, Height: 10, CityColor: "green"}, false},
		{"tailwind color", &Preset{Name: "x", Width: 10, Height: 10, CityColor: "bg-emerald-500"}, true},
		{"hex color", &Preset{Name: "x", Width: 10, Height: 10, CityColor: "#A0b1C2"}, true},
		{"no color", &Preset{Name: "x", Width: 1, Height: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePreset(tt.preset)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPreset)
			}
		})
	}
}

func TestConcurrentLoad(t *testing.T) {
	m, err := NewManager(createTestPresetDir(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := m.LoadPreset("kingdom")
			assert.NoError(t, err)
			assert.Equal(t, "Kingdom", p.Name)
		}()
	}
	wg.Wait()
}
