package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/warmap/game/persistence"
	"github.com/wricardo/warmap/game/service"
	"github.com/wricardo/warmap/transport/mcp"
)

func TestConstants(t *testing.T) {
	assert.Equal(t, "1.0.0", Version)
	assert.Equal(t, "War Map Editor", AppName)
}

// parseConfig runs the app with a capturing action and returns the resolved config
func parseConfig(t *testing.T, args ...string) appConfig {
	t.Helper()
	var cfg appConfig
	app := newApp()
	app.Action = func(ctx context.Context, cmd *cli.Command) error {
		cfg = configFromCommand(cmd)
		return nil
	}
	require.NoError(t, app.Run(context.Background(), append([]string{"warmap"}, args...)))
	return cfg
}

func TestFlagDefaults(t *testing.T) {
	cfg := parseConfig(t)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "configs", cfg.PresetDir)
	assert.Equal(t, StoreFile, cfg.Store)
	assert.Equal(t, "maps", cfg.DataDir)
	assert.Equal(t, 24*time.Hour, cfg.IdleTimeout)
	assert.False(t, cfg.Ngrok)
	assert.Equal(t, "localhost:8080", cfg.addr())
}

func TestFlagOverrides(t *testing.T) {
	t.Setenv("WARMAP_STORE", "SQLite")
	cfg := parseConfig(t, "--port", "9090", "--host", "0.0.0.0", "--idle-timeout", "30m")

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.addr())
	assert.Equal(t, StoreSQLite, cfg.Store, "store name is case-insensitive and read from the environment")
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
}

func TestNewBackend(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     appConfig
		wantErr bool
	}{
		{name: "memory", cfg: appConfig{Store: StoreMemory}},
		{name: "file", cfg: appConfig{Store: StoreFile, DataDir: filepath.Join(dir, "maps")}},
		{name: "sqlite", cfg: appConfig{Store: StoreSQLite, SQLitePath: filepath.Join(dir, "warmap.db")}},
		{name: "http", cfg: appConfig{Store: StoreHTTP, StoreURL: "http://127.0.0.1:1/maps"}},
		{name: "http without url", cfg: appConfig{Store: StoreHTTP}, wantErr: true},
		{name: "unknown", cfg: appConfig{Store: "floppy"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, closer, err := newBackend(ctx, tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, backend)
			if closer != nil {
				closer()
			}
		})
	}
}

func TestInitializeServices(t *testing.T) {
	if _, err := os.Stat("configs"); os.IsNotExist(err) {
		t.Skip("Skipping test - configs directory not found")
	}

	s, err := initializeServices(context.Background(), appConfig{PresetDir: "configs", Store: StoreMemory})
	require.NoError(t, err)
	defer s.Close()

	info, err := s.mapService.CreateMap(context.Background(), service.CreateMapRequest{ID: "main-test"})
	require.NoError(t, err)
	assert.Equal(t, "main-test", info.ID)
}

func TestInitializeServices_Errors(t *testing.T) {
	_, err := initializeServices(context.Background(), appConfig{PresetDir: "/non/existent/path", Store: StoreMemory})
	assert.Error(t, err)

	_, err = initializeServices(context.Background(), appConfig{Store: StoreMemory, DefaultPreset: "missing"})
	assert.Error(t, err)

	_, err = initializeServices(context.Background(), appConfig{Store: "floppy"})
	assert.Error(t, err)
}

func TestMCPHandler(t *testing.T) {
	handler := mcpHandler(mcp.NewClient("http://127.0.0.1:1"))

	req := httptest.NewRequest("GET", "/mcp", nil)
	w := httptest.NewRecorder()
	handler(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`
	req = httptest.NewRequest("POST", "/mcp", strings.NewReader(body))
	w = httptest.NewRecorder()
	handler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "place_tile")
	assert.Contains(t, w.Body.String(), "map_state")
}

func TestRouterServesAPIAndMCP(t *testing.T) {
	s, err := initializeServices(context.Background(), appConfig{Store: StoreMemory})
	require.NoError(t, err)
	defer s.Close()

	router := newRouter(s, appConfig{}, "http://127.0.0.1:1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/mcp", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestApiReachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	assert.True(t, apiReachable(server.URL))
	assert.False(t, apiReachable("http://127.0.0.1:1"))
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "maps")

	// seed the file store through the service so the layout is realistic
	s, err := initializeServices(context.Background(), appConfig{Store: StoreFile, DataDir: dataDir})
	require.NoError(t, err)
	_, err = s.mapService.CreateMap(context.Background(), service.CreateMapRequest{ID: "exported", Width: 6, Height: 6})
	require.NoError(t, err)
	_, err = s.mapService.Place(context.Background(), "exported", service.PlaceRequest{X: 0, Y: 0, Kind: "Alliance HQ"})
	require.NoError(t, err)
	s.Close()

	backend, err := persistence.NewFileBackend(dataDir)
	require.NoError(t, err)
	rec, err := backend.Load(context.Background(), "exported")
	require.NoError(t, err)
	assert.Equal(t, 6, rec.State.MapWidth)

	out := filepath.Join(dir, "out.png")
	err = newApp().Run(context.Background(), []string{
		"warmap", "--store", "file", "--data-dir", dataDir, "--preset-dir", "",
		"export", "--out", out, "--cell", "10", "exported",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")))
}

func TestExportCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	base := []string{"warmap", "--store", "memory", "--preset-dir", ""}

	err := newApp().Run(context.Background(), append(base, "export"))
	assert.Error(t, err)

	out := filepath.Join(dir, "missing.png")
	err = newApp().Run(context.Background(), append(base, "export", "--out", out, "nope"))
	assert.ErrorIs(t, err, service.ErrMapNotFound)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "failed export leaves no file behind")
}

func TestPresetsCommand(t *testing.T) {
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf

	require.NoError(t, app.Run(context.Background(), []string{"warmap", "--preset-dir", "", "presets"}))
	assert.Contains(t, buf.String(), "default")
	assert.Contains(t, buf.String(), "20x20")
}
