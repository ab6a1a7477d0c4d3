package incident

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/inferguard/inferguard/internal/database"
	"github.com/inferguard/inferguard/internal/remediation"
)

const incidentColumns = `
	id, title, description, severity, status, check_run_id,
	triggered_at, resolved_at, resolution_notes`

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db database.DB
}

// NewPostgresRepository creates a new PostgreSQL incident repository.
func NewPostgresRepository(db database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an incident.
func (r *PostgresRepository) Create(ctx context.Context, inc *Incident) error {
	if inc.TriggeredAt.IsZero() {
		inc.TriggeredAt = time.Now().UTC()
	}

	query := `
		INSERT INTO incidents (title, description, severity, status, check_run_id, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		inc.Title,
		inc.Description,
		string(inc.Severity),
		string(inc.Status),
		inc.CheckRunID,
		inc.TriggeredAt,
	).Scan(&inc.ID)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// Get retrieves an incident by ID.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Incident, error) {
	query := `SELECT` + incidentColumns + ` FROM incidents WHERE id = $1`

	inc, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIncidentNotFound
		}
		return nil, err
	}
	return inc, nil
}

// List returns incidents newest first.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Incident, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		where = append(where, "severity = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT` + incidentColumns + ` FROM incidents`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY triggered_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var out []*Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// UpdateStatus persists the mutable lifecycle fields.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, inc *Incident) error {
	query := `
		UPDATE incidents
		SET status = $2, resolved_at = $3, resolution_notes = $4
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, inc.ID, string(inc.Status), inc.ResolvedAt, inc.ResolutionNotes)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIncidentNotFound
	}
	return nil
}

// AddAttempt appends a remediation attempt.
func (r *PostgresRepository) AddAttempt(ctx context.Context, attempt *Attempt) error {
	details, err := json.Marshal(attempt.Details)
	if err != nil {
		return fmt.Errorf("encode attempt details: %w", err)
	}

	query := `
		INSERT INTO remediation_attempts (
			incident_id, strategy, dry_run, success, details, attempted_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err = r.db.QueryRow(ctx, query,
		attempt.IncidentID,
		string(attempt.Strategy),
		attempt.DryRun,
		attempt.Success,
		details,
		attempt.AttemptedAt,
		attempt.CompletedAt,
	).Scan(&attempt.ID)
	if err != nil {
		return fmt.Errorf("insert remediation attempt: %w", err)
	}
	return nil
}

// ListAttempts returns attempts for an incident in the order they were made.
func (r *PostgresRepository) ListAttempts(ctx context.Context, incidentID int64) ([]*Attempt, error) {
	query := `
		SELECT id, incident_id, strategy, dry_run, success, details, attempted_at, completed_at
		FROM remediation_attempts
		WHERE incident_id = $1
		ORDER BY attempted_at, id
	`

	rows, err := r.db.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("list remediation attempts: %w", err)
	}
	defer rows.Close()

	var out []*Attempt
	for rows.Next() {
		var (
			a        Attempt
			strategy string
			details  []byte
		)
		if err := rows.Scan(
			&a.ID, &a.IncidentID, &strategy, &a.DryRun, &a.Success,
			&details, &a.AttemptedAt, &a.CompletedAt,
		); err != nil {
			return nil, err
		}
		a.Strategy = remediation.Strategy(strategy)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &a.Details); err != nil {
				return nil, fmt.Errorf("decode attempt details: %w", err)
			}
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Summarize counts incidents grouped by status and severity.
func (r *PostgresRepository) Summarize(ctx context.Context, since time.Time) (*Summary, error) {
	query := `
		SELECT status, severity, COUNT(*), COUNT(*) FILTER (WHERE triggered_at >= $1)
		FROM incidents
		GROUP BY status, severity
	`

	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("summarize incidents: %w", err)
	}
	defer rows.Close()

	s := newSummary()
	for rows.Next() {
		var (
			status, severity string
			count, recent    int
		)
		if err := rows.Scan(&status, &severity, &count, &recent); err != nil {
			return nil, err
		}
		s.add(Status(status), Severity(severity), count, recent)
	}
	return s, rows.Err()
}

func scanIncident(row pgx.Row) (*Incident, error) {
	var (
		inc      Incident
		severity string
		status   string
	)
	err := row.Scan(
		&inc.ID,
		&inc.Title,
		&inc.Description,
		&severity,
		&status,
		&inc.CheckRunID,
		&inc.TriggeredAt,
		&inc.ResolvedAt,
		&inc.ResolutionNotes,
	)
	if err != nil {
		return nil, err
	}
	inc.Severity = Severity(severity)
	inc.Status = Status(status)
	return &inc, nil
}

var _ Repository = (*PostgresRepository)(nil)
