// Package catalog provides the fixed registry of tile kinds for the war map editor.
//
// The catalog answers two questions for every kind of tile:
//   - how large its square footprint is (side length in cells)
//   - which display color it is drawn with
//
// Tile Kinds:
//
// The set of kinds is closed: BEAR 1, BEAR 2, Alliance HQ, Banner and City.
// Empty is a pseudo-kind that means "no tile" and doubles as the eraser
// selection in the editor; it is never stored in a cell.
//
// City tiles carry no catalog color. Their label and color are chosen by the
// user for each placed instance and stored as per-cell metadata in the grid.
//
// Usage:
//
//	cat := catalog.Default()
//	size := cat.FootprintSize(catalog.HQ) // 3
//	color, ok := cat.DisplayColor(catalog.Banner)
package catalog
