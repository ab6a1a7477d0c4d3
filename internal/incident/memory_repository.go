package incident

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu            sync.RWMutex
	incidents     map[int64]*Incident
	attempts      map[int64][]*Attempt
	nextID        int64
	nextAttemptID int64
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		incidents: make(map[int64]*Incident),
		attempts:  make(map[int64][]*Attempt),
	}
}

// Create stores a new incident.
func (r *InMemoryRepository) Create(_ context.Context, inc *Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	inc.ID = r.nextID
	if inc.TriggeredAt.IsZero() {
		inc.TriggeredAt = time.Now().UTC()
	}
	r.incidents[inc.ID] = copyIncident(inc)
	return nil
}

// Get retrieves an incident by ID.
func (r *InMemoryRepository) Get(_ context.Context, id int64) (*Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inc, ok := r.incidents[id]
	if !ok {
		return nil, ErrIncidentNotFound
	}
	return copyIncident(inc), nil
}

// List returns incidents newest first.
func (r *InMemoryRepository) List(_ context.Context, filter ListFilter) ([]*Incident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Incident, 0, len(r.incidents))
	for _, inc := range r.incidents {
		if filter.Status != "" && inc.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && inc.Severity != filter.Severity {
			continue
		}
		out = append(out, copyIncident(inc))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TriggeredAt.Equal(out[j].TriggeredAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateStatus persists the mutable lifecycle fields.
func (r *InMemoryRepository) UpdateStatus(_ context.Context, inc *Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.incidents[inc.ID]
	if !ok {
		return ErrIncidentNotFound
	}
	stored.Status = inc.Status
	stored.ResolvedAt = copyTime(inc.ResolvedAt)
	stored.ResolutionNotes = copyString(inc.ResolutionNotes)
	return nil
}

// AddAttempt appends a remediation attempt.
func (r *InMemoryRepository) AddAttempt(_ context.Context, attempt *Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.incidents[attempt.IncidentID]; !ok {
		return ErrIncidentNotFound
	}
	r.nextAttemptID++
	attempt.ID = r.nextAttemptID
	r.attempts[attempt.IncidentID] = append(r.attempts[attempt.IncidentID], copyAttempt(attempt))
	return nil
}

// ListAttempts returns attempts for an incident in insertion order.
func (r *InMemoryRepository) ListAttempts(_ context.Context, incidentID int64) ([]*Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.attempts[incidentID]
	out := make([]*Attempt, 0, len(stored))
	for _, a := range stored {
		out = append(out, copyAttempt(a))
	}
	return out, nil
}

// Summarize counts incidents by status and severity.
func (r *InMemoryRepository) Summarize(_ context.Context, since time.Time) (*Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := newSummary()
	for _, inc := range r.incidents {
		recent := 0
		if !inc.TriggeredAt.Before(since) {
			recent = 1
		}
		s.add(inc.Status, inc.Severity, 1, recent)
	}
	return s, nil
}

func copyIncident(inc *Incident) *Incident {
	cpy := *inc
	cpy.CheckRunID = copyInt(inc.CheckRunID)
	cpy.ResolvedAt = copyTime(inc.ResolvedAt)
	cpy.ResolutionNotes = copyString(inc.ResolutionNotes)
	cpy.Attempts = nil
	return &cpy
}

func copyAttempt(a *Attempt) *Attempt {
	cpy := *a
	cpy.Details = maps.Clone(a.Details)
	cpy.CompletedAt = copyTime(a.CompletedAt)
	return &cpy
}

func copyInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

var _ Repository = (*InMemoryRepository)(nil)
