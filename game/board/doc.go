// Package board manages the open maps of a war map server.
//
// A Board is one editable map: a placement engine over its own grid store, the
// gateway that persists it and an AsyncSaver that turns every mutation into a
// background save. The Manager creates, opens, lists and evicts boards.
//
// Loading:
//
// Boards are loaded on first use. If the stored map cannot be read or decoded
// the board starts as an empty grid of the default size and the failure is
// logged; a load failure is never returned to the caller of Open. Pieces of a
// stored map that violate the placement rules are dropped while decoding and
// kept on the board as Repairs.
//
// Identifiers:
//
// Board IDs are short lowercase strings. When none is given, Create derives one
// from a random UUID. Lookups are case-insensitive.
//
// Concurrency:
//
// The Manager is safe for concurrent use. A board's engine serializes its own
// gestures, and the board's saver writes from a single goroutine.
//
// Usage:
//
//	backend, _ := persistence.NewFileBackend("maps")
//	manager := board.NewManager(backend,
//		board.WithListener(func(id string, s grid.Snapshot) { hub.BroadcastToMap(id, s) }),
//	)
//	defer manager.Close()
//
//	b, err := manager.Create(ctx, board.CreateOptions{Name: "Season 3"})
//	outcome, err := b.Engine.Place(5, 5, catalog.City, &engine.CityInput{Label: "Riverside"})
package board
