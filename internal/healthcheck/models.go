// Package healthcheck stores health check definitions and their run history.
package healthcheck

import (
	"errors"
	"time"

	"github.com/inferguard/inferguard/internal/checks"
	"github.com/inferguard/inferguard/internal/remediation"
)

// Repository errors.
var (
	ErrDefinitionNotFound = errors.New("health check not found")
	ErrDuplicateName      = errors.New("health check name already exists")
	ErrRunNotFound        = errors.New("check run not found")
)

// Definition configures a recurring health check.
type Definition struct {
	ID                  int64                `json:"id"`
	Name                string               `json:"name"`
	Kind                checks.Kind          `json:"check_type"`
	Enabled             bool                 `json:"enabled"`
	IntervalSeconds     int                  `json:"interval_seconds"`
	Threshold           float64              `json:"threshold_value"`
	RemediationStrategy remediation.Strategy `json:"remediation_strategy"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// RunStatus is the lifecycle state of a check run.
type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusPassed  RunStatus = "passed"
	RunStatusFailed  RunStatus = "failed"
	RunStatusError   RunStatus = "error"
)

// Run is one recorded execution of a Definition.
type Run struct {
	ID          int64          `json:"id"`
	CheckID     int64          `json:"check_id"`
	Status      RunStatus      `json:"status"`
	ResultValue *float64       `json:"result_value"`
	Details     map[string]any `json:"details"`
	Error       *string        `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// DefinitionStatus pairs a definition with its most recent run.
type DefinitionStatus struct {
	*Definition
	LastRun *Run `json:"last_run"`
}
