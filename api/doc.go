// Package api provides HTTP REST API handlers for the war map editor.
//
// The api package implements:
//   - Map management (create, list, open, delete)
//   - Editing gestures (place, clear, click)
//   - Read-only queries (state, single cell, tile catalog, presets)
//   - PNG export
//   - WebSocket upgrade handling
//
// Endpoints:
//
// Maps:
//   - POST /api/maps - Create a map {"id", "name", "preset", "width", "height"}
//   - GET /api/maps - List open and stored maps (?limit=N)
//   - GET /api/maps/{id} - Map metadata, save counters, load repairs and viewer count
//   - DELETE /api/maps/{id} - Delete from memory and store
//   - POST /api/maps/{id}/open - Reload from the store
//
// Editing:
//   - GET /api/maps/{id}/state - Full layout and placed instances
//   - POST /api/maps/{id}/place - {"x", "y", "kind", "label", "color"}
//   - POST /api/maps/{id}/clear - {"x", "y"}
//   - POST /api/maps/{id}/click - Same body as place; clears when the cell is occupied
//   - GET /api/maps/{id}/cells/{x}/{y} - Occupant of one cell
//   - GET /api/maps/{id}/export.png - ?cell=40&labels=false&grid=false&bg=...&download=1
//
// Catalog:
//   - GET /api/tiles
//   - GET /api/presets
//   - GET /api/presets/{name}
//   - POST /api/presets/{name} - Save a preset (name may end in .yaml/.yml/.json)
//
// WebSocket:
//   - GET /ws?map={id} - Initial state, then one message per change and "deleted" on removal
//
// Gesture responses:
//
// A gesture that the grid rejects is not an HTTP error. The response is 200
// with placed/cleared false and a reason code:
//
//	{
//	  "placed": false,
//	  "cleared": false,
//	  "reason": "out_of_bounds|occupied|cancelled",
//	  "message": "footprint exceeds grid bounds",
//	  "state": {...}
//	}
//
// Error Handling:
//
// Unknown maps, unknown tile kinds and malformed requests are returned as JSON
// with the matching HTTP status code:
//
//	{
//	  "error": "error message",
//	  "code": 404
//	}
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	server := api.NewServer(mapService, hub)
//	http.ListenAndServe(":8080", server)
package api
