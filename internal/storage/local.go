package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// LocalArchive keeps snapshots as JSON files in a directory.
type LocalArchive struct {
	dir string
	mu  sync.RWMutex
}

// NewLocalArchive creates the directory if needed.
func NewLocalArchive(dir string) (*LocalArchive, error) {
	if dir == "" {
		dir = "./data/snapshots"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &LocalArchive{dir: dir}, nil
}

func (a *LocalArchive) path(id string) string {
	return filepath.Join(a.dir, filepath.Base(id)+".json")
}

func (a *LocalArchive) Put(_ context.Context, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return os.WriteFile(a.path(snap.ID), data, 0644)
}

func (a *LocalArchive) Get(_ context.Context, id string) (*Snapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, err := os.ReadFile(a.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", id, err)
	}
	return &snap, nil
}

func (a *LocalArchive) List(_ context.Context, limit int) ([]SnapshotMeta, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	out := make([]SnapshotMeta, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(a.dir, e.Name()))
		if err != nil {
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			continue
		}
		out = append(out, snap.SnapshotMeta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
