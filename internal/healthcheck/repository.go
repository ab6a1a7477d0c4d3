package healthcheck

import "context"

// Repository defines persistence for definitions and runs.
type Repository interface {
	// ListDefinitions returns definitions ordered by ID.
	ListDefinitions(ctx context.Context, enabledOnly bool) ([]*Definition, error)

	// GetDefinition returns ErrDefinitionNotFound when id is unknown.
	GetDefinition(ctx context.Context, id int64) (*Definition, error)

	// GetDefinitionByName returns ErrDefinitionNotFound when name is unknown.
	GetDefinitionByName(ctx context.Context, name string) (*Definition, error)

	// CreateDefinition assigns the ID. Returns ErrDuplicateName on a name clash.
	CreateDefinition(ctx context.Context, def *Definition) error

	// CreateRun assigns the ID.
	CreateRun(ctx context.Context, run *Run) error

	// GetRun returns ErrRunNotFound when id is unknown.
	GetRun(ctx context.Context, id int64) (*Run, error)

	// ListRuns returns up to limit runs for a check, newest first.
	ListRuns(ctx context.Context, checkID int64, limit int) ([]*Run, error)
}
