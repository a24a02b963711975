package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/warmap/game/board"
	"github.com/wricardo/warmap/game/catalog"
	"github.com/wricardo/warmap/game/config"
	"github.com/wricardo/warmap/game/engine"
	"github.com/wricardo/warmap/render"
)

// mapServiceImpl implements the MapService interface
type mapServiceImpl struct {
	boards  BoardManager
	presets PresetManager
	log     *logrus.Entry

	// held across each gesture so only one mutation runs at a time
	mu sync.Mutex
}

// NewMapService creates a new map service instance
func NewMapService(boards BoardManager, presets PresetManager) MapService {
	return &mapServiceImpl{
		boards:  boards,
		presets: presets,
		log:     logrus.WithField("component", "service"),
	}
}

// CreateMap creates a new empty map from a preset
func (s *mapServiceImpl) CreateMap(ctx context.Context, req CreateMapRequest) (*MapInfo, error) {
	preset, presetID, err := s.resolvePreset(req.Preset)
	if err != nil {
		return nil, err
	}

	dims := preset.Dimensions()
	if req.Width > 0 {
		dims.Width = req.Width
	}
	if req.Height > 0 {
		dims.Height = req.Height
	}
	if req.Width < 0 || req.Height < 0 {
		return nil, fmt.Errorf("%w: width and height must be positive", ErrInvalidRequest)
	}
	if err := dims.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if largest := s.boards.Catalog().MaxFootprint(); dims.Width < largest || dims.Height < largest {
		s.log.WithFields(logrus.Fields{
			"width":         dims.Width,
			"height":        dims.Height,
			"max_footprint": largest,
		}).Warn("map is smaller than the largest tile; some tiles cannot be placed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.boards.Create(ctx, board.CreateOptions{
		ID:         req.ID,
		Name:       req.Name,
		Preset:     presetID,
		Dimensions: dims,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create map: %w", err)
	}
	return mapInfo(b), nil
}

// resolvePreset loads the named preset, or the default when name is empty
func (s *mapServiceImpl) resolvePreset(name string) (*config.Preset, string, error) {
	if strings.TrimSpace(name) == "" {
		return s.presets.GetDefault(), "default", nil
	}
	preset, err := s.presets.LoadPreset(name)
	if err == nil {
		return preset, strings.ToLower(name), nil
	}
	if !errors.Is(err, config.ErrPresetNotFound) {
		return nil, "", fmt.Errorf("failed to load preset %s: %w", name, err)
	}

	// list what is available to make the error actionable
	if infos, listErr := s.presets.ListPresets(); listErr == nil && len(infos) > 0 {
		ids := make([]string, 0, len(infos))
		for _, info := range infos {
			ids = append(ids, info.PresetID)
		}
		return nil, "", fmt.Errorf("%w: '%s'. Available presets: %v", ErrPresetNotFound, name, ids)
	}
	return nil, "", fmt.Errorf("%w: '%s'", ErrPresetNotFound, name)
}

// OpenMap returns a map, starting an empty one when it cannot be loaded
func (s *mapServiceImpl) OpenMap(ctx context.Context, mapID string) (*MapInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.boards.Open(ctx, mapID)
	if err != nil {
		return nil, err
	}
	return mapInfo(b), nil
}

// GetMap retrieves map information
func (s *mapServiceImpl) GetMap(ctx context.Context, mapID string) (*MapInfo, error) {
	b, err := s.boards.Get(ctx, mapID)
	if err != nil {
		return nil, err
	}
	return mapInfo(b), nil
}

// ListMaps returns the open maps followed by stored maps not yet loaded
func (s *mapServiceImpl) ListMaps(ctx context.Context) ([]*MapInfo, error) {
	open := s.boards.List()
	result := make([]*MapInfo, 0, len(open))
	seen := make(map[string]bool, len(open))
	for _, b := range open {
		result = append(result, mapInfo(b))
		seen[b.ID] = true
	}

	stored, err := s.boards.ListStored(ctx)
	if err != nil {
		s.log.WithError(err).Warn("failed to list stored maps")
		return result, nil
	}
	sort.Strings(stored)
	for _, id := range stored {
		if !seen[id] {
			result = append(result, &MapInfo{ID: id})
		}
	}
	return result, nil
}

// DeleteMap removes a map from memory and storage
func (s *mapServiceImpl) DeleteMap(ctx context.Context, mapID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.boards.Delete(ctx, mapID)
}

// Place puts a tile with its top-left corner at (x, y)
func (s *mapServiceImpl) Place(ctx context.Context, mapID string, req PlaceRequest) (*GestureResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, kind, city, err := s.prepareGesture(ctx, mapID, req)
	if err != nil {
		return nil, err
	}
	if kind.IsEmpty() {
		return nil, fmt.Errorf("%w: %q cannot be placed", ErrInvalidKind, req.Kind)
	}

	out, err := b.Engine.Place(req.X, req.Y, kind, city)
	return s.gestureResult(b, out, err)
}

// Clear removes the tile covering (x, y)
func (s *mapServiceImpl) Clear(ctx context.Context, mapID string, x, y int) (*GestureResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.boards.Get(ctx, mapID)
	if err != nil {
		return nil, err
	}
	out, err := b.Engine.Clear(x, y)
	return s.gestureResult(b, out, err)
}

// Click applies the editor's click gesture with the given selection
func (s *mapServiceImpl) Click(ctx context.Context, mapID string, req PlaceRequest) (*GestureResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, kind, city, err := s.prepareGesture(ctx, mapID, req)
	if err != nil {
		return nil, err
	}
	out, err := b.Engine.Click(req.X, req.Y, kind, city)
	return s.gestureResult(b, out, err)
}

// prepareGesture resolves the board, the kind and the city attributes of a request
func (s *mapServiceImpl) prepareGesture(ctx context.Context, mapID string, req PlaceRequest) (*board.Board, catalog.Kind, *engine.CityInput, error) {
	b, err := s.boards.Get(ctx, mapID)
	if err != nil {
		return nil, catalog.Empty, nil, err
	}

	kind, ok := b.Engine.Catalog().Lookup(req.Kind)
	if !ok {
		return nil, catalog.Empty, nil, fmt.Errorf("%w: %q", ErrInvalidKind, req.Kind)
	}

	var city *engine.CityInput
	if kind == catalog.City && req.Label != nil {
		color := strings.TrimSpace(req.Color)
		if color != "" && !config.IsColor(color) {
			return nil, catalog.Empty, nil, fmt.Errorf("%w: color %q is neither a bg- class nor #rrggbb", ErrInvalidRequest, req.Color)
		}
		if color == "" {
			color = s.cityColor(b)
		}
		city = &engine.CityInput{Label: *req.Label, Color: color}
	}
	return b, kind, city, nil
}

// cityColor returns the default city color of the board's preset
func (s *mapServiceImpl) cityColor(b *board.Board) string {
	if b.Preset == "" || b.Preset == "default" {
		return s.presets.GetDefault().DefaultCityColor()
	}
	preset, err := s.presets.LoadPreset(b.Preset)
	if err != nil {
		s.log.WithError(err).WithField("preset", b.Preset).Debug("preset unavailable; using default city color")
		return s.presets.GetDefault().DefaultCityColor()
	}
	return preset.DefaultCityColor()
}

// gestureResult turns an engine outcome into a result. Rejections become a
// result with a reason; other errors are returned.
func (s *mapServiceImpl) gestureResult(b *board.Board, out engine.Outcome, err error) (*GestureResult, error) {
	result := &GestureResult{
		Action:  out.Action,
		Outcome: out,
		Placed:  out.Action == engine.ActionPlaced,
		Cleared: out.Action == engine.ActionCleared,
	}

	switch {
	case err == nil:
		result.Message = describeOutcome(out)
	case errors.Is(err, engine.ErrOutOfBounds):
		result.Reason = ReasonOutOfBounds
		result.Message = err.Error()
	case errors.Is(err, engine.ErrOccupied):
		result.Reason = ReasonOccupied
		result.Message = err.Error()
	case errors.Is(err, engine.ErrCancelled):
		result.Reason = ReasonCancelled
		result.Message = err.Error()
	default:
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"map_id": b.ID,
		"action": out.Action,
		"kind":   out.Kind,
		"x":      out.Origin.X,
		"y":      out.Origin.Y,
		"reason": result.Reason,
	}).Debug("gesture")

	b.Touch()
	result.State = NewMapState(b.ID, b.Engine.Snapshot())
	return result, nil
}

func describeOutcome(out engine.Outcome) string {
	switch out.Action {
	case engine.ActionPlaced:
		if out.Kind == catalog.City {
			return fmt.Sprintf("Placed City %q at (%d,%d)", out.Label, out.Origin.X, out.Origin.Y)
		}
		return fmt.Sprintf("Placed %s at (%d,%d)", out.Kind, out.Origin.X, out.Origin.Y)
	case engine.ActionCleared:
		return fmt.Sprintf("Cleared %s at (%d,%d), %d cells", out.Kind, out.Origin.X, out.Origin.Y, len(out.Cells))
	default:
		return fmt.Sprintf("Nothing changed at (%d,%d)", out.Origin.X, out.Origin.Y)
	}
}

// GetState returns the current state of a map
func (s *mapServiceImpl) GetState(ctx context.Context, mapID string) (*MapState, error) {
	b, err := s.boards.Get(ctx, mapID)
	if err != nil {
		return nil, err
	}
	return NewMapState(b.ID, b.Engine.Snapshot()), nil
}

// DescribeCell reports what occupies (x, y)
func (s *mapServiceImpl) DescribeCell(ctx context.Context, mapID string, x, y int) (*engine.CellInfo, error) {
	b, err := s.boards.Get(ctx, mapID)
	if err != nil {
		return nil, err
	}
	info, err := b.Engine.Describe(x, y)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ExportPNG writes the map as a PNG image
func (s *mapServiceImpl) ExportPNG(ctx context.Context, mapID string, opts render.Options, w io.Writer) error {
	b, err := s.boards.Get(ctx, mapID)
	if err != nil {
		return err
	}
	snap := b.Engine.Snapshot()
	if err := render.EncodePNG(w, snap, b.Engine.Catalog(), opts); err != nil {
		return fmt.Errorf("failed to encode map %s: %w", mapID, err)
	}
	return nil
}

// ListTiles returns the placeable tile kinds
func (s *mapServiceImpl) ListTiles(ctx context.Context) ([]catalog.Spec, error) {
	return s.boards.Catalog().Specs(), nil
}

// ListPresets returns the available map presets
func (s *mapServiceImpl) ListPresets(ctx context.Context) ([]*config.PresetInfo, error) {
	return s.presets.ListPresets()
}

// GetPreset returns a single preset
func (s *mapServiceImpl) GetPreset(ctx context.Context, name string) (*config.Preset, error) {
	return s.presets.LoadPreset(name)
}

// SavePreset writes a preset to disk and reloads the preset cache, so the new
// file is served and a saved "default" becomes the default preset
func (s *mapServiceImpl) SavePreset(ctx context.Context, name string, preset *config.Preset) (*config.PresetInfo, error) {
	if err := s.presets.SavePreset(name, preset); err != nil {
		return nil, err
	}
	s.presets.RefreshCache()

	id := strings.ToLower(name)
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		id = strings.TrimSuffix(id, ext)
	}
	s.log.WithField("preset", id).Info("preset saved")

	infos, err := s.presets.ListPresets()
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.PresetID == id {
			return info, nil
		}
	}
	return nil, fmt.Errorf("%w: '%s'", ErrPresetNotFound, id)
}

func mapInfo(b *board.Board) *MapInfo {
	snap := b.Engine.Snapshot()
	info := &MapInfo{
		ID:             b.ID,
		Name:           b.Name,
		Preset:         b.Preset,
		Width:          snap.Width,
		Height:         snap.Height,
		Tiles:          len(snap.Instances()),
		CreatedAt:      b.CreatedAt,
		LastAccessedAt: b.LastAccessedAt(),
		Loaded:         true,
		Saves:          b.SaveStats(),
	}
	for _, r := range b.Repairs {
		info.Repairs = append(info.Repairs, r.String())
	}
	if b.LoadError != nil {
		info.LoadError = b.LoadError.Error()
	}
	return info
}
