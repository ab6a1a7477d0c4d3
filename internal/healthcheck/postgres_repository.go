package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inferguard/inferguard/internal/checks"
	"github.com/inferguard/inferguard/internal/database"
	"github.com/inferguard/inferguard/internal/remediation"
)

const uniqueViolation = "23505"

const definitionColumns = `
	id, name, check_type, enabled, interval_seconds,
	threshold_value, remediation_strategy, created_at, updated_at`

const runColumns = `
	id, check_id, status, result_value, details, error, started_at, completed_at`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db database.DB
}

// NewPostgresRepository creates a new PostgreSQL health check repository.
func NewPostgresRepository(db database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListDefinitions returns definitions ordered by ID.
func (r *PostgresRepository) ListDefinitions(ctx context.Context, enabledOnly bool) ([]*Definition, error) {
	query := `SELECT` + definitionColumns + `
		FROM health_checks
		WHERE enabled OR NOT $1
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, enabledOnly)
	if err != nil {
		return nil, fmt.Errorf("list health checks: %w", err)
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// GetDefinition retrieves a definition by ID.
func (r *PostgresRepository) GetDefinition(ctx context.Context, id int64) (*Definition, error) {
	query := `SELECT` + definitionColumns + ` FROM health_checks WHERE id = $1`
	return r.getDefinition(ctx, query, id)
}

// GetDefinitionByName retrieves a definition by its unique name.
func (r *PostgresRepository) GetDefinitionByName(ctx context.Context, name string) (*Definition, error) {
	query := `SELECT` + definitionColumns + ` FROM health_checks WHERE name = $1`
	return r.getDefinition(ctx, query, name)
}

func (r *PostgresRepository) getDefinition(ctx context.Context, query string, arg any) (*Definition, error) {
	def, err := scanDefinition(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDefinitionNotFound
		}
		return nil, err
	}
	return def, nil
}

// CreateDefinition inserts a definition and fills in generated fields.
func (r *PostgresRepository) CreateDefinition(ctx context.Context, def *Definition) error {
	query := `
		INSERT INTO health_checks (
			name, check_type, enabled, interval_seconds, threshold_value, remediation_strategy
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		def.Name,
		string(def.Kind),
		def.Enabled,
		def.IntervalSeconds,
		def.Threshold,
		string(def.RemediationStrategy),
	).Scan(&def.ID, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateName
		}
		return fmt.Errorf("insert health check: %w", err)
	}
	return nil
}

// CreateRun inserts a check run.
func (r *PostgresRepository) CreateRun(ctx context.Context, run *Run) error {
	details, err := json.Marshal(run.Details)
	if err != nil {
		return fmt.Errorf("encode run details: %w", err)
	}

	query := `
		INSERT INTO check_runs (
			check_id, status, result_value, details, error, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err = r.db.QueryRow(ctx, query,
		run.CheckID,
		string(run.Status),
		run.ResultValue,
		details,
		run.Error,
		run.StartedAt,
		run.CompletedAt,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("insert check run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (r *PostgresRepository) GetRun(ctx context.Context, id int64) (*Run, error) {
	query := `SELECT` + runColumns + ` FROM check_runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

// ListRuns returns up to limit runs for a check, newest first.
func (r *PostgresRepository) ListRuns(ctx context.Context, checkID int64, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := `SELECT` + runColumns + `
		FROM check_runs
		WHERE check_id = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, checkID, limit)
	if err != nil {
		return nil, fmt.Errorf("list check runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanDefinition(row pgx.Row) (*Definition, error) {
	var (
		def      Definition
		kind     string
		strategy string
	)
	err := row.Scan(
		&def.ID,
		&def.Name,
		&kind,
		&def.Enabled,
		&def.IntervalSeconds,
		&def.Threshold,
		&strategy,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	def.Kind = checks.Kind(kind)
	def.RemediationStrategy = remediation.Strategy(strategy)
	return &def, nil
}

func scanRun(row pgx.Row) (*Run, error) {
	var (
		run     Run
		status  string
		details []byte
	)
	err := row.Scan(
		&run.ID,
		&run.CheckID,
		&status,
		&run.ResultValue,
		&details,
		&run.Error,
		&run.StartedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &run.Details); err != nil {
			return nil, fmt.Errorf("decode run details: %w", err)
		}
	}
	return &run, nil
}

var _ Repository = (*PostgresRepository)(nil)
