package resultstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/equihomepartners/core-engine/internal/simulation/orchestrator"
)

// File is a Store backed by one JSON file per run_id under Dir, selected
// by RESULTS_DIR.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile returns a Store rooted at dir, creating it if absent.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &File{dir: dir}, nil
}

func (f *File) path(runID string) string {
	return filepath.Join(f.dir, sanitize(runID)+".json")
}

// sanitize strips path separators from a run_id before it is used to
// build a filename, preventing directory traversal via a crafted run_id.
func sanitize(runID string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(runID)
}

func (f *File) StoreResult(_ context.Context, runID string, summary *orchestrator.RunSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(runID)
	if _, err := os.Stat(path); err == nil {
		return ErrAlreadyExists
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (f *File) GetResult(_ context.Context, runID string) (*orchestrator.RunSummary, error) {
	data, err := os.ReadFile(f.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var summary orchestrator.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (f *File) ListResults(_ context.Context, limit, offset int) ([]*orchestrator.RunSummary, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if offset >= len(names) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(names) {
		end = len(names)
	}

	out := make([]*orchestrator.RunSummary, 0, end-offset)
	for _, name := range names[offset:end] {
		data, err := os.ReadFile(filepath.Join(f.dir, name))
		if err != nil {
			continue
		}
		var summary orchestrator.RunSummary
		if err := json.Unmarshal(data, &summary); err != nil {
			continue
		}
		out = append(out, &summary)
	}
	return out, nil
}

func (f *File) DeleteResult(_ context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := f.path(runID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return os.Remove(path)
}
