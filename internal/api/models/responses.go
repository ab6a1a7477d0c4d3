package models

import (
	"github.com/inferguard/inferguard/internal/faults"
	"github.com/inferguard/inferguard/internal/infra"
	"github.com/inferguard/inferguard/internal/remediation"
)

// ClearFaultsResponse reports the configuration after a clear.
type ClearFaultsResponse struct {
	Status      string        `json:"status"`
	FailureMode faults.Config `json:"failure_mode"`
	Timestamp   Timestamp     `json:"timestamp"`
}

// ResolveIncidentResponse acknowledges a manual resolution.
type ResolveIncidentResponse struct {
	Status     string `json:"status"`
	IncidentID int64  `json:"incident_id"`
}

// AutoRemediationResponse summarises an auto-remediation run.
type AutoRemediationResponse struct {
	IncidentID   int64                `json:"incident_id"`
	Status       string               `json:"status"`
	Attempts     int                  `json:"attempts"`
	FinalSuccess bool                 `json:"final_success"`
	Results      []remediation.Result `json:"results"`
}

// InstanceList is the response for the fleet listing.
type InstanceList struct {
	Total     int              `json:"total"`
	Instances []infra.Instance `json:"instances"`
}

// IdleInstances is the response for the idle instance query.
type IdleInstances struct {
	ThresholdCPU float64              `json:"threshold_cpu"`
	Count        int                  `json:"count"`
	Instances    []infra.IdleInstance `json:"instances"`
}
