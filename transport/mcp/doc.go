// Package mcp provides a Model Context Protocol server for the war map editor.
//
// The Client is a thin proxy: every tool call is translated into a request
// against the REST API, so agents and browsers edit the same maps and browsers
// see agent edits live through the websocket hub.
//
// MCP Tools:
//
//   - create_map: Create a map, optionally from a preset
//   - list_maps: List open and stored maps
//   - open_map: Load a stored map; an unloadable map opens empty with a warning
//   - map_state: Text rendering of the grid plus a list of placed tiles
//   - place_tile: Place a tile by its top-left cell
//   - clear_tile: Remove the tile covering a cell
//   - click_cell: Editor click semantics (clear occupied, place on empty)
//   - describe_cell: Occupant details for one cell
//   - list_tiles: Tile kinds with sizes and colors
//   - list_presets: Available map presets
//
// Rejected placements (out of bounds, overlap, missing city label) are not
// tool errors; they come back as text starting with "REJECTED" and a reason
// code. Transport or lookup failures are returned as tool errors.
//
// Transport Modes:
//
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: the /mcp endpoint passes request bodies to HandleMessage
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
package mcp
