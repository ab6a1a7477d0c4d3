package incident

import (
	"context"
	"time"
)

// Repository defines persistence for incidents and remediation attempts.
type Repository interface {
	// Create assigns the ID.
	Create(ctx context.Context, inc *Incident) error

	// Get returns ErrIncidentNotFound when id is unknown. Attempts are not loaded.
	Get(ctx context.Context, id int64) (*Incident, error)

	// List returns incidents newest first.
	List(ctx context.Context, filter ListFilter) ([]*Incident, error)

	// UpdateStatus persists status, resolved_at and resolution notes.
	UpdateStatus(ctx context.Context, inc *Incident) error

	// AddAttempt appends a remediation attempt and assigns its ID.
	AddAttempt(ctx context.Context, attempt *Attempt) error

	// ListAttempts returns attempts for an incident in the order they were made.
	ListAttempts(ctx context.Context, incidentID int64) ([]*Attempt, error)

	// Summarize counts incidents. Last24Hours counts those triggered at or after since.
	Summarize(ctx context.Context, since time.Time) (*Summary, error)
}
