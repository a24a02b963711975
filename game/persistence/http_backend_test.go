package persistence

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/warmap/game/catalog"
)

// fakeWebApp mimics a spreadsheet-backed web app: GET ?action=load|list, POST {"action":...}
type fakeWebApp struct {
	mu          sync.Mutex
	maps        map[string]json.RawMessage
	contentType string
	failSaves   bool
}

func newFakeWebApp() *fakeWebApp {
	return &fakeWebApp{maps: make(map[string]json.RawMessage)}
}

func (f *fakeWebApp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		switch r.URL.Query().Get("action") {
		case "load":
			data, ok := f.maps[r.URL.Query().Get("map")]
			if !ok {
				w.Write([]byte(`{}`))
				return
			}
			w.Write(data)
		case "list":
			ids := make([]string, 0, len(f.maps))
			for id := range f.maps {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			json.NewEncoder(w).Encode(map[string]interface{}{"maps": ids})
		default:
			http.Error(w, "unknown action", http.StatusBadRequest)
		}
	case http.MethodPost:
		f.contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Action string          `json:"action"`
			Map    string          `json:"map"`
			Name   string          `json:"name"`
			Data   json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.Action {
		case "save":
			if f.failSaves {
				http.Error(w, "quota exceeded", http.StatusServiceUnavailable)
				return
			}
			// the store keeps the bare layout and adds the name next to it
			var layout map[string]interface{}
			json.Unmarshal(req.Data, &layout)
			layout["name"] = req.Name
			f.maps[req.Map], _ = json.Marshal(layout)
			w.Write([]byte(`{"status":"ok"}`))
		case "delete":
			_, ok := f.maps[req.Map]
			delete(f.maps, req.Map)
			json.NewEncoder(w).Encode(map[string]bool{"deleted": ok})
		default:
			http.Error(w, "unknown action", http.StatusBadRequest)
		}
	}
}

func TestHTTPBackend(t *testing.T) {
	app := newFakeWebApp()
	srv := httptest.NewServer(app)
	defer srv.Close()

	b := NewHTTPBackend(srv.URL + "/exec")
	ctx := context.Background()

	_, err := b.Load(ctx, "alpha")
	assert.ErrorIs(t, err, ErrMapNotFound)

	rec := sampleRecord(t, "alpha")
	require.NoError(t, b.Save(ctx, rec))
	assert.Equal(t, "text/plain;charset=utf-8", app.contentType)

	got, err := b.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.ID)
	assert.Equal(t, "Season 3", got.Name)
	assert.Equal(t, rec.State, got.State)

	ids, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, ids)

	require.NoError(t, b.Delete(ctx, "alpha"))
	assert.ErrorIs(t, b.Delete(ctx, "alpha"), ErrMapNotFound)
}

func TestHTTPBackend_LoadsBareLayout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "load", r.URL.Query().Get("action"))
		w.Write([]byte(`{"map":[[null,"Banner"]],"mapWidth":2,"mapHeight":1,"cityLabels":{},"cityColors":{}}`))
	}))
	defer srv.Close()

	rec, err := NewHTTPBackend(srv.URL).Load(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.State.MapWidth)
	assert.Equal(t, catalog.Banner, rec.State.Map[0][1])
}

func TestHTTPBackend_SaveErrorSurfaces(t *testing.T) {
	app := newFakeWebApp()
	app.failSaves = true
	srv := httptest.NewServer(app)
	defer srv.Close()

	err := NewHTTPBackend(srv.URL).Save(context.Background(), sampleRecord(t, "alpha"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestHTTPBackend_UnreachableStore(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPBackend(url).Load(context.Background(), "alpha")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMapNotFound)
}
