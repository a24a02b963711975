package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileBackend implements Backend using one JSON file per map
type FileBackend struct {
	dir string
}

// NewFileBackend creates a file backend rooted at dir, creating it if needed
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create maps directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// Save writes the record to <dir>/<id>.json. The file is replaced atomically.
func (fb *FileBackend) Save(ctx context.Context, rec Record) error {
	if err := ValidateID(rec.ID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal map record: %w", err)
	}

	tmp, err := os.CreateTemp(fb.dir, rec.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write map file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write map file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fb.path(rec.ID)); err != nil {
		return fmt.Errorf("failed to replace map file: %w", err)
	}
	return nil
}

// Load reads the record of a map
func (fb *FileBackend) Load(ctx context.Context, id string) (Record, error) {
	if err := ValidateID(id); err != nil {
		return Record{}, err
	}
	data, err := os.ReadFile(fb.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, ErrMapNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to read map file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal map record: %w", err)
	}
	if rec.ID == "" {
		rec.ID = id
	}
	return rec, nil
}

// Delete removes the map file
func (fb *FileBackend) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	err := os.Remove(fb.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return ErrMapNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove map file: %w", err)
	}
	return nil
}

// List returns the IDs of all map files, sorted
func (fb *FileBackend) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(fb.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read maps directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if ValidateID(id) == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (fb *FileBackend) path(id string) string {
	return filepath.Join(fb.dir, id+".json")
}
