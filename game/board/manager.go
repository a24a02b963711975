package board

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/warmap/game/catalog"
	"github.com/wricardo/warmap/game/engine"
	"github.com/wricardo/warmap/game/grid"
	"github.com/wricardo/warmap/game/persistence"
)

var (
	ErrBoardNotFound      = errors.New("map not found")
	ErrBoardAlreadyExists = errors.New("map already exists")
	ErrInvalidBoardID     = errors.New("invalid map ID")
)

// Listener is told about every mutation of any board
type Listener func(boardID string, snap grid.Snapshot)

// CreateOptions describes a new board
type CreateOptions struct {
	ID         string
	Name       string
	Preset     string
	Dimensions grid.Dimensions
}

// NormalizeID returns the key a board is stored and broadcast under. IDs are
// case-insensitive.
func NormalizeID(id string) string {
	return strings.ToLower(id)
}

// Manager handles board lifecycle
type Manager struct {
	backend      persistence.Backend
	catalog      *catalog.Catalog
	defaultDims  grid.Dimensions
	listener     Listener
	saverOptions []persistence.SaverOption
	log          *logrus.Entry

	boards map[string]*Board
	mu     sync.RWMutex
}

// Option configures a Manager
type Option func(*Manager)

// WithCatalog sets the tile catalog used by every board
func WithCatalog(c *catalog.Catalog) Option {
	return func(m *Manager) {
		if c != nil {
			m.catalog = c
		}
	}
}

// WithDefaultDimensions sets the size of new boards and of the load fallback
func WithDefaultDimensions(d grid.Dimensions) Option {
	return func(m *Manager) {
		if d.Validate() == nil {
			m.defaultDims = d
		}
	}
}

// WithListener registers the mutation listener
func WithListener(l Listener) Option {
	return func(m *Manager) {
		m.listener = l
	}
}

// WithSaverOptions configures the background saver of each board
func WithSaverOptions(opts ...persistence.SaverOption) Option {
	return func(m *Manager) {
		m.saverOptions = append(m.saverOptions, opts...)
	}
}

// WithLogger sets the manager's logger
func WithLogger(log *logrus.Entry) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager creates a board manager over backend. A nil backend keeps maps in memory.
func NewManager(backend persistence.Backend, opts ...Option) *Manager {
	if backend == nil {
		backend = persistence.NewMemoryBackend()
	}
	m := &Manager{
		backend:     backend,
		catalog:     catalog.Default(),
		defaultDims: grid.DefaultDimensions(),
		log:         logrus.WithField("component", "board"),
		boards:      make(map[string]*Board),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Catalog returns the tile catalog shared by all boards
func (m *Manager) Catalog() *catalog.Catalog {
	return m.catalog
}

// Create creates a new empty board and stores it
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Board, error) {
	id := NormalizeID(strings.TrimSpace(opts.ID))
	if id == "" {
		id = generateBoardID()
	}
	if err := persistence.ValidateID(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBoardID, opts.ID)
	}

	dims := opts.Dimensions
	if dims.Width == 0 && dims.Height == 0 {
		dims = m.defaultDims
	}
	store, err := grid.NewStore(dims)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.boards[id]; exists {
		return nil, ErrBoardAlreadyExists
	}
	if _, err := m.backend.Load(ctx, id); err == nil {
		return nil, ErrBoardAlreadyExists
	}

	gw := persistence.Bind(m.backend, persistence.Record{
		ID:        id,
		Name:      opts.Name,
		Preset:    opts.Preset,
		CreatedAt: time.Now().UTC(),
	})
	b := m.open(gw, store)

	if err := b.gateway.Save(ctx, grid.ToPersisted(store.Snapshot())); err != nil {
		// the board is usable; the first edit saves again
		m.log.WithError(err).WithField("map_id", id).Warn("failed to persist new map")
	}

	m.boards[id] = b
	m.log.WithFields(logrus.Fields{"map_id": id, "width": dims.Width, "height": dims.Height}).Info("map created")
	return b, nil
}

// Get returns an open board, loading it from the backend if needed
func (m *Manager) Get(ctx context.Context, id string) (*Board, error) {
	id = NormalizeID(id)

	m.mu.RLock()
	b, exists := m.boards[id]
	m.mu.RUnlock()
	if exists {
		b.Touch()
		return b, nil
	}

	gw := persistence.Bind(m.backend, persistence.Record{ID: id})
	snap, repairs, err := persistence.LoadSnapshot(ctx, gw, m.catalog, m.defaultDims)
	switch {
	case errors.Is(err, persistence.ErrMapNotFound), errors.Is(err, persistence.ErrInvalidID):
		return nil, ErrBoardNotFound
	case err != nil && !errors.Is(err, persistence.ErrUndecodable):
		return nil, fmt.Errorf("failed to load map %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, exists := m.boards[id]; exists {
		b.Touch()
		return b, nil
	}
	b = m.restore(gw, snap, repairs, err)
	m.boards[id] = b
	return b, nil
}

// Open returns the board with the given ID, creating it if it cannot be loaded.
// A failed load yields an empty board of the default size; the failure is logged
// and kept in Board.LoadError.
func (m *Manager) Open(ctx context.Context, id string) (*Board, error) {
	b, err := m.Get(ctx, id)
	if err == nil {
		return b, nil
	}
	id = NormalizeID(id)
	if perr := persistence.ValidateID(id); perr != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBoardID, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, exists := m.boards[id]; exists {
		return b, nil
	}

	store, serr := grid.NewStore(m.defaultDims)
	if serr != nil {
		return nil, serr
	}
	b = m.open(persistence.Bind(m.backend, persistence.Record{ID: id, CreatedAt: time.Now().UTC()}), store)
	if !errors.Is(err, ErrBoardNotFound) {
		b.LoadError = err
		m.log.WithError(err).WithField("map_id", id).Warn("map load failed; starting from an empty grid")
	}
	m.boards[id] = b
	return b, nil
}

// restore builds a board from a loaded snapshot. A decode failure has already
// been replaced by an empty grid; it is kept as the board's LoadError.
// Callers hold m.mu.
func (m *Manager) restore(gw *persistence.BoundGateway, snap grid.Snapshot, repairs []grid.Repair, loadErr error) *Board {
	log := m.log.WithField("map_id", gw.ID())

	if loadErr != nil {
		log.WithError(loadErr).Warn("stored map is unusable; starting from an empty grid")
	}
	for _, r := range repairs {
		log.WithField("repair", r.String()).Warn("dropped invalid map content")
	}

	store, _ := grid.NewStore(grid.Dimensions{Width: snap.Width, Height: snap.Height})
	if rerr := store.Restore(snap); rerr != nil {
		log.WithError(rerr).Warn("failed to restore map; starting from an empty grid")
		store, _ = grid.NewStore(m.defaultDims)
	}

	b := m.open(gw, store)
	b.Repairs = repairs
	b.LoadError = loadErr
	log.WithField("repairs", len(repairs)).Info("map loaded")
	return b
}

// open wires a store into a new board with its engine and saver
func (m *Manager) open(gw *persistence.BoundGateway, store *grid.Store) *Board {
	meta := gw.Meta()
	log := m.log.WithField("map_id", meta.ID)
	saverOpts := append([]persistence.SaverOption{persistence.WithLogger(log)}, m.saverOptions...)
	saver := persistence.NewAsyncSaver(gw, saverOpts...)

	engOpts := []engine.Option{engine.WithSaver(saver)}
	if m.listener != nil {
		id, listener := meta.ID, m.listener
		engOpts = append(engOpts, engine.WithListener(func(s grid.Snapshot) {
			listener(id, s)
		}))
	}

	return &Board{
		ID:             meta.ID,
		Name:           meta.Name,
		Preset:         meta.Preset,
		CreatedAt:      meta.CreatedAt,
		Engine:         engine.NewEngine(m.catalog, store, engOpts...),
		gateway:        gw,
		saver:          saver,
		lastAccessedAt: time.Now(),
	}
}

// List returns the open boards, oldest first
func (m *Manager) List() []*Board {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Board, 0, len(m.boards))
	for _, b := range m.boards {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// ListStored returns the IDs of all maps in the backend
func (m *Manager) ListStored(ctx context.Context) ([]string, error) {
	return m.backend.List(ctx)
}

// Delete closes a board and removes it from the backend
func (m *Manager) Delete(ctx context.Context, id string) error {
	id = NormalizeID(id)

	m.mu.Lock()
	b, inMemory := m.boards[id]
	delete(m.boards, id)
	m.mu.Unlock()

	if inMemory {
		b.close()
	}

	err := m.backend.Delete(ctx, id)
	if errors.Is(err, persistence.ErrMapNotFound) || errors.Is(err, persistence.ErrInvalidID) {
		if inMemory {
			return nil
		}
		return ErrBoardNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete stored map: %w", err)
	}
	return nil
}

// Evict flushes a board's pending save and drops it from memory
func (m *Manager) Evict(id string) error {
	id = NormalizeID(id)

	m.mu.Lock()
	b, exists := m.boards[id]
	delete(m.boards, id)
	m.mu.Unlock()

	if !exists {
		return ErrBoardNotFound
	}
	b.close()
	return nil
}

// CleanupIdle evicts boards not accessed within maxAge and returns how many were evicted
func (m *Manager) CleanupIdle(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	var idle []*Board
	for id, b := range m.boards {
		if b.LastAccessedAt().Before(cutoff) {
			idle = append(idle, b)
			delete(m.boards, id)
		}
	}
	m.mu.Unlock()

	for _, b := range idle {
		b.close()
	}
	if len(idle) > 0 {
		m.log.WithField("count", len(idle)).Info("evicted idle maps")
	}
	return len(idle)
}

// LoadStored opens every map in the backend
func (m *Manager) LoadStored(ctx context.Context) error {
	ids, err := m.backend.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stored maps: %w", err)
	}

	loaded := 0
	for _, id := range ids {
		m.mu.RLock()
		_, exists := m.boards[NormalizeID(id)]
		m.mu.RUnlock()
		if exists {
			continue
		}
		if _, err := m.Get(ctx, id); err != nil {
			m.log.WithError(err).WithField("map_id", id).Warn("failed to load stored map")
			continue
		}
		loaded++
	}

	if loaded > 0 {
		m.log.WithField("count", loaded).Info("loaded stored maps")
	}
	return nil
}

// Count returns the number of open boards
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.boards)
}

// Close flushes and stops every board's saver
func (m *Manager) Close() {
	m.mu.Lock()
	boards := make([]*Board, 0, len(m.boards))
	for _, b := range m.boards {
		boards = append(boards, b)
	}
	m.boards = make(map[string]*Board)
	m.mu.Unlock()

	for _, b := range boards {
		b.close()
	}
}

// generateBoardID returns the first 8 hex characters of a random UUID
func generateBoardID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
