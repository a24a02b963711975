package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/wricardo/warmap/game/grid"
)

// HTTPBackend implements Backend against a remote web-app store. Loads are
// GET <url>?action=load&map=<id> answered with the bare layout; saves are POSTed
// as {"action":"save","map":<id>,"data":<layout>}.
type HTTPBackend struct {
	endpoint   string
	httpClient *http.Client
}

// remoteMap is the load response: the persisted layout with optional metadata
type remoteMap struct {
	grid.Persisted
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Preset    string    `json:"preset,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type remoteRequest struct {
	Action    string          `json:"action"`
	Map       string          `json:"map"`
	Name      string          `json:"name,omitempty"`
	Preset    string          `json:"preset,omitempty"`
	CreatedAt *time.Time      `json:"createdAt,omitempty"`
	Data      *grid.Persisted `json:"data,omitempty"`
}

// NewHTTPBackend creates a backend for the store at endpoint
func NewHTTPBackend(endpoint string) *HTTPBackend {
	return &HTTPBackend{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Save posts the record's layout and metadata
func (hb *HTTPBackend) Save(ctx context.Context, rec Record) error {
	if err := ValidateID(rec.ID); err != nil {
		return err
	}
	state := rec.State
	body := remoteRequest{
		Action: "save",
		Map:    rec.ID,
		Name:   rec.Name,
		Preset: rec.Preset,
		Data:   &state,
	}
	if !rec.CreatedAt.IsZero() {
		body.CreatedAt = &rec.CreatedAt
	}
	return hb.post(ctx, body, nil)
}

// Load fetches a map. A response without a layout counts as not found.
func (hb *HTTPBackend) Load(ctx context.Context, id string) (Record, error) {
	if err := ValidateID(id); err != nil {
		return Record{}, err
	}

	var resp remoteMap
	if err := hb.get(ctx, url.Values{"action": {"load"}, "map": {id}}, &resp); err != nil {
		return Record{}, err
	}
	if resp.Error != "" {
		return Record{}, fmt.Errorf("remote store: %s", resp.Error)
	}
	if resp.Map == nil && resp.MapWidth == 0 && resp.MapHeight == 0 {
		return Record{}, ErrMapNotFound
	}

	rec := Record{
		ID:        id,
		Name:      resp.Name,
		Preset:    resp.Preset,
		CreatedAt: resp.CreatedAt,
		UpdatedAt: resp.UpdatedAt,
		State:     resp.Persisted,
	}
	return rec, nil
}

// Delete asks the store to drop a map
func (hb *HTTPBackend) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	var resp struct {
		Deleted bool   `json:"deleted"`
		Error   string `json:"error"`
	}
	if err := hb.post(ctx, remoteRequest{Action: "delete", Map: id}, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("remote store: %s", resp.Error)
	}
	if !resp.Deleted {
		return ErrMapNotFound
	}
	return nil
}

// List asks the store for its map IDs
func (hb *HTTPBackend) List(ctx context.Context) ([]string, error) {
	var resp struct {
		Maps []string `json:"maps"`
	}
	if err := hb.get(ctx, url.Values{"action": {"list"}}, &resp); err != nil {
		return nil, err
	}
	return resp.Maps, nil
}

func (hb *HTTPBackend) get(ctx context.Context, query url.Values, result interface{}) error {
	u, err := url.Parse(hb.endpoint)
	if err != nil {
		return fmt.Errorf("invalid store url: %w", err)
	}
	q := u.Query()
	for k, v := range query {
		q[k] = v
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	return hb.do(req, result)
}

func (hb *HTTPBackend) post(ctx context.Context, body interface{}, result interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hb.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	// web-app stores read the raw body; text/plain keeps them from rejecting it
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	return hb.do(req, result)
}

func (hb *HTTPBackend) do(req *http.Request, result interface{}) error {
	resp, err := hb.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("remote store: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrMapNotFound
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote store: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	if result == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("remote store: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("remote store: invalid response: %w", err)
	}
	return nil
}
