// Package service provides the business logic layer for the war map editor.
//
// The service package implements:
//   - Multi-map management on top of the board manager
//   - Preset resolution for new maps
//   - Placement, clearing and click gestures
//   - State, cell inspection and PNG export
//
// Core Interfaces:
//
// MapService is the main service interface used by the REST API, the WebSocket
// hub and the MCP tools. BoardManager handles board creation, loading and
// lifecycle. PresetManager supplies map presets.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the placement engine. Gestures are serialized by a service-wide mutex so only
// one mutation runs at a time; each board's engine notifies listeners and queues
// a background save after every change.
//
// Usage:
//
//	boards := board.NewManager(backend, board.WithListener(hub.BroadcastState))
//	presets, _ := config.NewManager("configs")
//	svc := service.NewMapService(boards, presets)
//
//	info, err := svc.CreateMap(ctx, service.CreateMapRequest{Preset: "season"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	label := "Riverside"
//	res, err := svc.Place(ctx, info.ID, service.PlaceRequest{X: 4, Y: 4, Kind: "City", Label: &label})
//
// Rejections:
//
// A placement that falls outside the grid, overlaps a tile, or is a city without
// a label is not an error. The result has Placed false and Reason set to
// out_of_bounds, occupied or cancelled. Unknown kinds return ErrInvalidKind and
// unknown maps return ErrMapNotFound.
package service
