// Package resultstore implements the write-once result sink: each run_id
// may be stored exactly once, then read, listed, or deleted.
package resultstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/equihomepartners/core-engine/internal/simulation/orchestrator"
)

// ErrNotFound is returned by GetResult/DeleteResult when run_id is unknown.
var ErrNotFound = errors.New("resultstore: run not found")

// ErrAlreadyExists is returned by StoreResult when run_id has already been
// written, enforcing the write-once contract 
var ErrAlreadyExists = errors.New("resultstore: run already stored")

// Store is the result sink's operation set: StoreResult, GetResult,
// ListResults, DeleteResult.
type Store interface {
	StoreResult(ctx context.Context, runID string, summary *orchestrator.RunSummary) error
	GetResult(ctx context.Context, runID string) (*orchestrator.RunSummary, error)
	ListResults(ctx context.Context, limit, offset int) ([]*orchestrator.RunSummary, error)
	DeleteResult(ctx context.Context, runID string) error
}

// Memory is an in-process Store, safe for concurrent writes to distinct
// run_ids.
type Memory struct {
	mu      sync.RWMutex
	results map[string]*orchestrator.RunSummary
	order   []string
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{results: make(map[string]*orchestrator.RunSummary)}
}

func (m *Memory) StoreResult(_ context.Context, runID string, summary *orchestrator.RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.results[runID]; exists {
		return ErrAlreadyExists
	}
	m.results[runID] = summary
	m.order = append(m.order, runID)
	return nil
}

func (m *Memory) GetResult(_ context.Context, runID string) (*orchestrator.RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListResults(_ context.Context, limit, offset int) ([]*orchestrator.RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := append([]string(nil), m.order...)
	sort.Strings(ids)
	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(ids) {
		end = len(ids)
	}
	out := make([]*orchestrator.RunSummary, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, m.results[id])
	}
	return out, nil
}

func (m *Memory) DeleteResult(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[runID]; !ok {
		return ErrNotFound
	}
	delete(m.results, runID)
	for i, id := range m.order {
		if id == runID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}
