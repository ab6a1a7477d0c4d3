package remediation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

func (r *Remediator) restartService(_ context.Context, dryRun bool, details map[string]any) error {
	details["service"] = r.serviceName
	if dryRun {
		details["message"] = "Would restart service: " + r.serviceName
		return nil
	}

	time.Sleep(r.restartDelay)
	r.faults.Clear()

	details["message"] = fmt.Sprintf("Service %s restarted", r.serviceName)
	details["restart_completed"] = true
	details["simulated"] = true
	details["command"] = "docker restart " + r.serviceName
	return nil
}

func (r *Remediator) clearCache(ctx context.Context, dryRun bool, details map[string]any) error {
	if dryRun {
		details["message"] = "Would clear model cache"
		return nil
	}

	res, err := r.model.ClearCache(ctx)
	if err != nil {
		return fmt.Errorf("clear model cache: %w", err)
	}
	details["message"] = "Model cache cleared"
	details["status"] = res.Status
	details["entries_removed"] = res.EntriesRemoved
	details["timestamp"] = res.Timestamp
	return nil
}

func (r *Remediator) scaleHint(_ context.Context, dryRun bool, details map[string]any) error {
	details["recommendation"] = fmt.Sprintf("Scale %s from %d to %d replicas",
		r.serviceName, r.currentReplicas, r.targetReplicas)
	details["current_replicas"] = r.currentReplicas
	details["target_replicas"] = r.targetReplicas
	details["reason"] = "High latency or resource utilization detected"
	details["kubectl_command"] = fmt.Sprintf("kubectl scale deployment %s --replicas=%d",
		r.serviceName, r.targetReplicas)
	details["ansible_playbook"] = "scale_inference_service.yml"

	if dryRun {
		details["message"] = fmt.Sprintf("Would recommend scaling to %d replicas", r.targetReplicas)
		return nil
	}
	details["message"] = "Scaling recommendation logged"
	details["recommendation_logged"] = true
	return nil
}

// DefaultRollbackFallback is the last known-good model release.
const DefaultRollbackFallback = "v1.2.2"

func (r *Remediator) rollbackModel(_ context.Context, dryRun bool, details map[string]any) error {
	current := r.model.ModelVersion()
	target := r.rollbackTarget
	if target == "" {
		var err error
		if target, err = PreviousPatchVersion(current); err != nil {
			target = r.rollbackFallback
			details["fallback_target"] = true
		}
	}

	details["current_version"] = current
	details["target_version"] = target
	if dryRun {
		details["message"] = fmt.Sprintf("Would rollback from %s to %s", current, target)
		return nil
	}

	time.Sleep(r.rollbackDelay)
	r.model.SetModelVersion(target)
	r.faults.Clear()

	details["message"] = fmt.Sprintf("Rolled back from %s to %s", current, target)
	details["rollback_completed"] = true
	details["previous_version"] = current
	details["new_version"] = target
	return nil
}

// PreviousPatchVersion returns v with its patch number decremented,
// e.g. v1.2.3 -> v1.2.2.
func PreviousPatchVersion(v string) (string, error) {
	parts := strings.Split(strings.TrimPrefix(v, "v"), ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("cannot derive rollback target from version %q", v)
	}
	patch, err := strconv.Atoi(parts[2])
	if err != nil || patch <= 0 {
		return "", fmt.Errorf("cannot derive rollback target from version %q", v)
	}
	return fmt.Sprintf("v%s.%s.%d", parts[0], parts[1], patch-1), nil
}
