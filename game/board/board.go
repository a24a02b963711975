package board

import (
	"sync"
	"time"

	"github.com/wricardo/warmap/game/engine"
	"github.com/wricardo/warmap/game/grid"
	"github.com/wricardo/warmap/game/persistence"
)

// Board is one open map
type Board struct {
	ID        string
	Name      string
	Preset    string
	CreatedAt time.Time
	Engine    *engine.PlacementEngine

	// Repairs lists what was dropped while decoding the stored map
	Repairs []grid.Repair

	// LoadError is the load failure that made the board start empty, if any
	LoadError error

	gateway *persistence.BoundGateway
	saver   *persistence.AsyncSaver

	mu             sync.Mutex
	lastAccessedAt time.Time
}

// Touch records an access
func (b *Board) Touch() {
	b.mu.Lock()
	b.lastAccessedAt = time.Now()
	b.mu.Unlock()
}

// LastAccessedAt returns the time of the last access
func (b *Board) LastAccessedAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastAccessedAt
}

// SaveStats reports the board's background save counters
func (b *Board) SaveStats() persistence.SaverStats {
	if b.saver == nil {
		return persistence.SaverStats{}
	}
	return b.saver.Stats()
}

// close flushes pending saves
func (b *Board) close() {
	if b.saver != nil {
		b.saver.Close()
	}
}
