// Package render draws map snapshots for export and for text-only clients.
//
// Image and EncodePNG produce the war-map.png export: every placed instance is a
// filled square outlined in dark gray, labelled with the city name or tile name.
// Colors are Tailwind background classes as used by the editor (bg-green-300)
// or #rrggbb values; ParseColor resolves both.
//
// Text and Summary produce plain-text views used by the MCP tools and the
// inspect command.
package render
