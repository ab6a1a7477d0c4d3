package healthcheck

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu          sync.RWMutex
	definitions map[int64]*Definition
	runs        map[int64]*Run
	nextDefID   int64
	nextRunID   int64
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		definitions: make(map[int64]*Definition),
		runs:        make(map[int64]*Run),
	}
}

// ListDefinitions returns definitions ordered by ID.
func (r *InMemoryRepository) ListDefinitions(_ context.Context, enabledOnly bool) ([]*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*Definition, 0, len(r.definitions))
	for _, d := range r.definitions {
		if enabledOnly && !d.Enabled {
			continue
		}
		cpy := *d
		defs = append(defs, &cpy)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

// GetDefinition retrieves a definition by ID.
func (r *InMemoryRepository) GetDefinition(_ context.Context, id int64) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.definitions[id]
	if !ok {
		return nil, ErrDefinitionNotFound
	}
	cpy := *d
	return &cpy, nil
}

// GetDefinitionByName retrieves a definition by its unique name.
func (r *InMemoryRepository) GetDefinitionByName(_ context.Context, name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.definitions {
		if d.Name == name {
			cpy := *d
			return &cpy, nil
		}
	}
	return nil, ErrDefinitionNotFound
}

// CreateDefinition stores a new definition.
func (r *InMemoryRepository) CreateDefinition(_ context.Context, def *Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.definitions {
		if d.Name == def.Name {
			return ErrDuplicateName
		}
	}

	r.nextDefID++
	def.ID = r.nextDefID
	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	if def.UpdatedAt.IsZero() {
		def.UpdatedAt = now
	}
	cpy := *def
	r.definitions[def.ID] = &cpy
	return nil
}

// CreateRun stores a new run.
func (r *InMemoryRepository) CreateRun(_ context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.definitions[run.CheckID]; !ok {
		return ErrDefinitionNotFound
	}

	r.nextRunID++
	run.ID = r.nextRunID
	r.runs[run.ID] = copyRun(run)
	return nil
}

// GetRun retrieves a run by ID.
func (r *InMemoryRepository) GetRun(_ context.Context, id int64) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return copyRun(run), nil
}

// ListRuns returns up to limit runs for a check, newest first.
func (r *InMemoryRepository) ListRuns(_ context.Context, checkID int64, limit int) ([]*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var runs []*Run
	for _, run := range r.runs {
		if run.CheckID == checkID {
			runs = append(runs, copyRun(run))
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func copyRun(run *Run) *Run {
	cpy := *run
	cpy.Details = maps.Clone(run.Details)
	return &cpy
}

var _ Repository = (*InMemoryRepository)(nil)
