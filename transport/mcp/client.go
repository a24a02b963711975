package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/warmap/game/catalog"
	"github.com/wricardo/warmap/game/config"
	"github.com/wricardo/warmap/game/engine"
	"github.com/wricardo/warmap/game/grid"
	"github.com/wricardo/warmap/game/service"
	"github.com/wricardo/warmap/render"
)

// Version reported to MCP clients
const Version = "1.0.0"

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"War Map Editor",
		Version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`War Map Editor - MCP Interface

This is a thin client that proxies all requests to the REST API server.

THE MAP:
A rectangular grid (default 20x20). Tiles are squares placed by their top-left cell:
  BEAR 1, BEAR 2, Alliance HQ: 3x3
  City: 2x2, needs a label, optional color (bg-green-300 by default)
  Banner: 1x1
Tiles must fit inside the grid and may not overlap. Clearing any cell of a tile removes the whole tile.

AVAILABLE TOOLS:
- create_map: Create a new map (optionally from a preset)
- list_maps: List maps
- map_state: Show the grid and the placed tiles
- place_tile: Place a tile with its top-left corner at (x, y)
- clear_tile: Remove the tile covering (x, y)
- click_cell: Editor click: clears an occupied cell, otherwise places the selection
- describe_cell: Details of a single cell
- list_tiles: Tile kinds and sizes
- list_presets: Map presets`),
	)

	// Register all tools
	c.registerTools()
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Map management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_map",
		Description: "Create a new empty map. Width and height override the preset.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"map_id": stringProp("ID for the new map (optional, generated when empty)"),
				"name":   stringProp("Display name (optional)"),
				"preset": stringProp("Preset ID from list_presets (optional)"),
				"width":  intProp("Grid width in cells (optional)"),
				"height": intProp("Grid height in cells (optional)"),
			},
		},
	}, c.handleCreateMap)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_maps",
		Description: "List open and stored maps",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListMaps)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "open_map",
		Description: "Open a map from the store. A map that cannot be loaded opens as an empty 20x20 grid and the load error is reported.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"map_id": stringProp("Map ID"),
			},
			Required: []string{"map_id"},
		},
	}, c.handleOpenMap)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "map_state",
		Description: "Show the map grid and every placed tile",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"map_id": stringProp("Map ID"),
			},
			Required: []string{"map_id"},
		},
	}, c.handleMapState)

	// Editing
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "place_tile",
		Description: "Place a tile with its top-left corner at (x, y). Cities need a label.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"map_id": stringProp("Map ID"),
				"x":      intProp("Column of the top-left cell (0-based)"),
				"y":      intProp("Row of the top-left cell (0-based)"),
				"kind":   stringProp("Tile kind: BEAR 1, BEAR 2, Alliance HQ, Banner or City"),
				"label":  stringProp("City name (required for City)"),
				"color":  stringProp("City color as bg-<color>-<shade> or #rrggbb (optional)"),
			},
			Required: []string{"map_id", "x", "y", "kind"},
		},
	}, c.handlePlaceTile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "clear_tile",
		Description: "Remove the whole tile covering (x, y). Clearing an empty cell does nothing.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"map_id": stringProp("Map ID"),
				"x":      intProp("Column (0-based)"),
				"y":      intProp("Row (0-based)"),
			},
			Required: []string{"map_id", "x", "y"},
		},
	}, c.handleClearTile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "click_cell",
		Description: "Editor click at (x, y): an occupied cell is cleared, an empty cell receives the selected kind. Select 'eraser' to only clear.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"map_id": stringProp("Map ID"),
				"x":      intProp("Column (0-based)"),
				"y":      intProp("Row (0-based)"),
				"kind":   stringProp("Selected tile kind, or eraser"),
				"label":  stringProp("City name when placing a City"),
				"color":  stringProp("City color (optional)"),
			},
			Required: []string{"map_id", "x", "y", "kind"},
		},
	}, c.handleClickCell)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Get what occupies a single cell, including the tile's origin and city details",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"map_id": stringProp("Map ID"),
				"x":      intProp("Column (0-based)"),
				"y":      intProp("Row (0-based)"),
			},
			Required: []string{"map_id", "x", "y"},
		},
	}, c.handleDescribeCell)

	// Catalog and presets
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_tiles",
		Description: "List tile kinds with their footprint size and color",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListTiles)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_presets",
		Description: "List map presets available to create_map",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListPresets)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func mapPath(mapID string, parts ...string) string {
	p := "/api/maps/" + url.PathEscape(mapID)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// Argument helpers

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func argString(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

func argInt(args map[string]interface{}, key string) (int, error) {
	switch v := args[key].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("%s is required", key)
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
}

func argXY(args map[string]interface{}) (int, int, error) {
	x, err := argInt(args, "x")
	if err != nil {
		return 0, 0, err
	}
	y, err := argInt(args, "y")
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func placeBody(args map[string]interface{}, x, y int) map[string]interface{} {
	body := map[string]interface{}{
		"x":    x,
		"y":    y,
		"kind": argString(args, "kind"),
	}
	if label, ok := args["label"].(string); ok {
		body["label"] = label
	}
	if color := argString(args, "color"); color != "" {
		body["color"] = color
	}
	return body
}

// Tool handlers

func (c *Client) handleCreateMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]interface{}{}
	if id := argString(args, "map_id"); id != "" {
		body["id"] = id
	}
	if name := argString(args, "name"); name != "" {
		body["name"] = name
	}
	if preset := argString(args, "preset"); preset != "" {
		body["preset"] = preset
	}
	for _, key := range []string{"width", "height"} {
		if _, present := args[key]; present {
			n, err := argInt(args, key)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			body[key] = n
		}
	}

	var info service.MapInfo
	if err := c.apiCall(ctx, "POST", "/api/maps", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created map: %s\nSize: %dx%d\nPreset: %s\n", info.ID, info.Width, info.Height, info.Preset)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListMaps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int               `json:"count"`
		Maps  []service.MapInfo `json:"maps"`
	}
	if err := c.apiCall(ctx, "GET", "/api/maps", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMapList(response.Maps)), nil
}

func (c *Client) handleOpenMap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mapID := argString(arguments(request), "map_id")
	if mapID == "" {
		return mcp.NewToolResultError("map_id is required"), nil
	}

	var info service.MapInfo
	if err := c.apiCall(ctx, "POST", mapPath(mapID, "open"), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatOpenedMap(&info)), nil
}

func (c *Client) handleMapState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mapID := argString(arguments(request), "map_id")

	var state service.MapState
	if err := c.apiCall(ctx, "GET", mapPath(mapID, "state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMapState(&state)), nil
}

func (c *Client) handlePlaceTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.gesture(ctx, request, "place")
}

func (c *Client) handleClickCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.gesture(ctx, request, "click")
}

func (c *Client) gesture(ctx context.Context, request mcp.CallToolRequest, action string) (*mcp.CallToolResult, error) {
	args := arguments(request)
	x, y, err := argXY(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.GestureResult
	if err := c.apiCall(ctx, "POST", mapPath(argString(args, "map_id"), action), placeBody(args, x, y), &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGestureResult(&result)), nil
}

func (c *Client) handleClearTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	x, y, err := argXY(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result service.GestureResult
	body := map[string]int{"x": x, "y": y}
	if err := c.apiCall(ctx, "POST", mapPath(argString(args, "map_id"), "clear"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGestureResult(&result)), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	x, y, err := argXY(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var info engine.CellInfo
	path := mapPath(argString(args, "map_id"), "cells", fmt.Sprint(x), fmt.Sprint(y))
	if err := c.apiCall(ctx, "GET", path, nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCellInfo(&info)), nil
}

func (c *Client) handleListTiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var tiles []catalog.Spec
	if err := c.apiCall(ctx, "GET", "/api/tiles", nil, &tiles); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Tile kinds:\n")
	for _, t := range tiles {
		color := t.Color
		if color == "" {
			color = "per city (default " + catalog.DefaultCityColor + ")"
		}
		fmt.Fprintf(&b, "- %s [%c]: %dx%d, color %s\n", t.Kind, render.Symbol(t.Kind), t.Size, t.Size, color)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleListPresets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var presets []config.PresetInfo
	if err := c.apiCall(ctx, "GET", "/api/presets", nil, &presets); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Presets (%d):\n", len(presets))
	for _, p := range presets {
		fmt.Fprintf(&b, "- %s: %s, %dx%d", p.PresetID, p.Name, p.Width, p.Height)
		if p.Description != "" {
			fmt.Fprintf(&b, " (%s)", p.Description)
		}
		b.WriteByte('\n')
	}
	return mcp.NewToolResultText(b.String()), nil
}

// Formatting

func formatMapList(maps []service.MapInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Maps (%d):\n\n", len(maps))
	for _, m := range maps {
		if !m.Loaded {
			fmt.Fprintf(&b, "- %s (stored)\n", m.ID)
			continue
		}
		fmt.Fprintf(&b, "- %s %dx%d, %d tiles", m.ID, m.Width, m.Height, m.Tiles)
		if m.Name != "" {
			fmt.Fprintf(&b, ", %q", m.Name)
		}
		if m.Preset != "" {
			fmt.Fprintf(&b, ", preset %s", m.Preset)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func formatOpenedMap(info *service.MapInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Opened map: %s\nSize: %dx%d\nTiles: %d\n", info.ID, info.Width, info.Height, info.Tiles)
	if info.LoadError != "" {
		fmt.Fprintf(&b, "WARNING: load failed, started from an empty grid: %s\n", info.LoadError)
	}
	if len(info.Repairs) > 0 {
		fmt.Fprintf(&b, "Repaired on load (%d):\n", len(info.Repairs))
		for _, r := range info.Repairs {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return b.String()
}

func formatMapState(state *service.MapState) string {
	snap, _, err := grid.FromPersisted(state.Layout, catalog.Default(), grid.DefaultDimensions())
	if err != nil {
		return fmt.Sprintf("Map %s: unreadable layout: %v\n", state.MapID, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Map %s (%dx%d)\n\n", state.MapID, snap.Width, snap.Height)
	b.WriteString(render.Text(snap))
	b.WriteByte('\n')
	b.WriteString(render.Summary(snap))
	return b.String()
}

func formatGestureResult(result *service.GestureResult) string {
	var b strings.Builder
	switch {
	case result.Placed:
		fmt.Fprintf(&b, "OK: %s\n", result.Message)
	case result.Cleared:
		fmt.Fprintf(&b, "OK: %s\n", result.Message)
	case result.Reason != "":
		fmt.Fprintf(&b, "REJECTED (%s): %s\n", result.Reason, result.Message)
	default:
		fmt.Fprintf(&b, "NO CHANGE: %s\n", result.Message)
	}
	if result.State != nil {
		fmt.Fprintf(&b, "Tiles on map: %d\n", len(result.State.Instances))
	}
	return b.String()
}

func formatCellInfo(info *engine.CellInfo) string {
	if info.Empty {
		return fmt.Sprintf("Cell (%d,%d) is empty\n", info.X, info.Y)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Cell (%d,%d): %s\n", info.X, info.Y, info.Kind)
	if info.Origin != nil {
		fmt.Fprintf(&b, "Tile origin: (%d,%d), size %dx%d\n", info.Origin.X, info.Origin.Y, info.Size, info.Size)
	}
	if info.CityMeta != nil {
		fmt.Fprintf(&b, "City: %q, color %s\n", info.CityMeta.Label, info.CityMeta.Color)
	} else if info.Color != "" {
		fmt.Fprintf(&b, "Color: %s\n", info.Color)
	}
	return b.String()
}
