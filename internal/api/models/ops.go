package models

// HealthStatus is the verdict of a liveness or readiness probe.
type HealthStatus string

// Probe verdicts.
const (
	HealthStatusOK   HealthStatus = "OK"
	HealthStatusFail HealthStatus = "FAIL"
)

// Health is the body of /v1/ops/health and /v1/ops/ready.
type Health struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Details    map[string]string `json:"details,omitempty"`
	Subsystems []SubsystemStatus `json:"subsystems,omitempty"`
}

// SubsystemStatus is one readiness dependency. Detail carries the failure.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}
