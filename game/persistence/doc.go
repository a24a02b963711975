// Package persistence stores and retrieves map layouts.
//
// A Backend keeps Records (map metadata plus the persisted grid layout) keyed by
// map ID. Four backends are provided:
//   - FileBackend: one indented JSON file per map in a directory
//   - HTTPBackend: a remote web-app store speaking ?action=load / {"action":"save"}
//   - SQLiteBackend: a single table in a SQLite database (pure Go driver)
//   - RedisBackend: one string key per map plus an index set
//
// Bind narrows a Backend to the Gateway of one map, which is what a board's
// engine talks to. AsyncSaver wraps a Gateway so that saves never block the
// caller: a background goroutine writes the newest pending snapshot, retrying a
// bounded number of times with exponential backoff. Failures are logged and
// otherwise dropped.
//
// LoadSnapshot implements load-on-init: any load or decode failure yields an
// empty grid of the default size together with the error, so the caller can log
// it and carry on.
//
// Usage:
//
//	backend, _ := persistence.NewFileBackend("maps")
//	gw := persistence.Bind(backend, persistence.Record{ID: id, Name: "Season 3"})
//	snap, repairs, err := persistence.LoadSnapshot(ctx, gw, catalog.Default(), grid.DefaultDimensions())
//	if err != nil {
//		log.WithError(err).Warn("starting from an empty map")
//	}
//
//	saver := persistence.NewAsyncSaver(gw, persistence.WithAttempts(3))
//	defer saver.Close()
package persistence
