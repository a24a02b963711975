// Package engine provides the placement engine for the war map editor.
//
// The engine package implements:
//   - Tile placement with footprint bounds and overlap checks
//   - Removal of a whole placed instance from any of its cells
//   - The editor click gesture (clear when occupied, place otherwise)
//   - Change notification for renderers and fire-and-forget saves
//
// Core Types:
//
// The Engine interface defines the operations a transport needs, implemented
// by PlacementEngine. The engine owns a grid.Store and consults a
// catalog.Catalog for footprint sizes; it is the only mutator of the store.
//
// Usage:
//
//	store, _ := grid.NewStore(grid.DefaultDimensions())
//	eng := engine.NewEngine(catalog.Default(), store,
//		engine.WithSaver(saver),
//		engine.WithListener(func(s grid.Snapshot) { hub.Broadcast(s) }),
//	)
//
//	outcome, err := eng.Place(5, 5, catalog.City, &engine.CityInput{Label: "Riverside"})
//	if errors.Is(err, engine.ErrOccupied) {
//		// placement rejected, nothing changed
//	}
//
// Placement Rules:
//
// A tile occupies a size×size square whose top-left cell is the clicked cell.
// The whole square must lie inside the grid and every cell of it must be empty,
// otherwise nothing is written. Cities additionally need a label; a missing or
// blank label cancels the placement.
//
// Clearing any cell of an instance removes the whole instance. Cells are
// matched by kind and by the origin recorded when the instance was placed, so
// an adjacent instance of the same kind is never touched.
package engine
