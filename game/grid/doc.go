// Package grid provides the cell store behind the war map editor.
//
// The grid package implements:
//   - A fixed-size 2D matrix of cells addressed by (x, y)
//   - Per-cell origin back-references identifying the placement instance
//   - Per-cell city metadata (label and color) keyed by "x-y"
//   - Deep-copy snapshots and wholesale restore
//   - The persisted wire layout and its decoding with repair
//
// Representation:
//
// Every cell covered by a placed tile stores the tile kind and the origin
// (top-left cell) of the instance it belongs to. Two adjacent instances of the
// same kind therefore never blur together: an instance is exactly the set of
// cells sharing one origin.
//
// The Store is a low-level mutator. SetFootprint and ClearFootprint perform no
// overlap checks; the placement engine validates before it writes.
//
// Wire Layout:
//
//	{
//	  "map": [["City", "City", null], ...],
//	  "mapWidth": 20,
//	  "mapHeight": 20,
//	  "cityLabels": {"5-5": "Riverside"},
//	  "cityColors": {"5-5": "bg-green-300"}
//	}
//
// Origins are not part of the wire layout. FromPersisted re-derives them by a
// row-major scan and drops anything that cannot form a complete footprint, so
// a restored store always satisfies the placement invariants.
package grid
