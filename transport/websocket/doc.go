// Package websocket pushes map state to editor clients.
//
// The websocket package implements the renderer side of the editor: every
// client subscribes to one map and receives a read-only copy of the grid after
// each mutation. Clients never mutate through the socket; gestures go through
// the REST API.
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection is handled by a dedicated pair
// of goroutines for reading and writing. Broadcasts are queued on a buffered
// channel and never block the caller, so BroadcastState can run as a board
// listener while the placement engine holds its lock.
//
// Message Protocol:
//
//   - On connect: {"map_id": "3fa1c2d9", "event": "state", "state": {...}}
//   - After each change: {"map_id": "3fa1c2d9", "event": "state_update", "state": {...}}
//
// The state object carries the stored layout (map, mapWidth, mapHeight,
// cityLabels, cityColors) together with the list of placed instances.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	defer hub.Stop()
//
//	boards := board.NewManager(backend, board.WithListener(hub.BroadcastState))
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("map"), nil)
//	})
package websocket
