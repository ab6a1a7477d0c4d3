package checks

import (
	"context"
	"time"

	"github.com/inferguard/inferguard/internal/inference"
	"github.com/inferguard/inferguard/internal/sim"
)

// expectedLabels is the labelled sample set used by the correctness check.
var expectedLabels = []struct {
	sample string
	label  string
}{
	{"test_sample_1", inference.LabelMalware},
	{"test_sample_2", inference.LabelBenign},
	{"test_sample_3", inference.LabelSuspicious},
}

// SampleResult is one row of a correctness check.
type SampleResult struct {
	Sample   string `json:"sample"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Correct  bool   `json:"correct"`
}

func (r *Runner) latency(ctx context.Context, threshold float64, res *Result) {
	start := time.Now()
	pred, err := r.model.Infer(ctx, r.latencySample)
	measured := msSince(start)

	res.LatencyMs = measured
	res.ResultValue = measured
	res.Details["threshold_ms"] = threshold
	res.Details["measured_ms"] = measured
	if err != nil {
		res.Error = err.Error()
		return
	}

	res.Passed = measured <= threshold
	res.Details["model_reported_ms"] = pred.LatencyMs
	res.Details["model_version"] = pred.ModelVersion
}

func (r *Runner) correctness(ctx context.Context, threshold float64, res *Result) {
	start := time.Now()
	samples := make([]SampleResult, 0, len(expectedLabels))
	correct := 0
	var lastErr error

	for _, exp := range expectedLabels {
		actual := "error"
		pred, err := r.model.Infer(ctx, exp.sample)
		if err != nil {
			lastErr = err
		} else {
			actual = pred.Label
		}

		ok := actual == exp.label
		if ok {
			correct++
		}
		samples = append(samples, SampleResult{
			Sample:   exp.sample,
			Expected: exp.label,
			Actual:   actual,
			Correct:  ok,
		})
	}

	accuracy := float64(correct) / float64(len(expectedLabels))
	res.LatencyMs = msSince(start)
	res.ResultValue = accuracy
	res.Passed = accuracy >= threshold && lastErr == nil
	res.Details["accuracy"] = accuracy
	res.Details["accuracy_threshold"] = threshold
	res.Details["correct"] = correct
	res.Details["total"] = len(expectedLabels)
	res.Details["sample_results"] = samples
	if lastErr != nil {
		res.Error = lastErr.Error()
	}
}

func (r *Runner) drift(_ context.Context, threshold float64, res *Result) {
	current := r.model.PredictionDistribution(r.driftSamples)
	baseline := r.model.BaselineDistribution()
	if len(baseline) > r.driftSamples {
		baseline = baseline[:r.driftSamples]
	}

	stat, p := KolmogorovSmirnov(current, baseline)
	curMean, curStd := meanStd(current)
	baseMean, baseStd := meanStd(baseline)

	res.ResultValue = stat
	res.Passed = stat <= threshold
	res.Details["ks_statistic"] = stat
	res.Details["ks_threshold"] = threshold
	res.Details["p_value"] = p
	res.Details["drift_detected"] = !res.Passed
	res.Details["current_mean"] = curMean
	res.Details["current_std"] = curStd
	res.Details["baseline_mean"] = baseMean
	res.Details["baseline_std"] = baseStd
	res.Details["mean_shift"] = curMean - baseMean
	res.Details["sample_count"] = len(current)
}

func (r *Runner) resource(_ context.Context, threshold float64, res *Result) {
	cpu := 45 + r.rng.Gauss(0, 10)
	mem := 55 + r.rng.Gauss(0, 8)
	if r.faults != nil && r.faults.Snapshot().LatencyMultiplier > 2 {
		cpu *= 1.5
		mem *= 1.3
	}
	cpu = sim.Clamp(cpu, 0, 100)
	mem = sim.Clamp(mem, 0, 100)

	cpuOK := cpu <= threshold
	memOK := mem <= r.memoryThreshold

	res.ResultValue = max(cpu, mem)
	res.Passed = cpuOK && memOK
	res.Details["cpu_utilization"] = cpu
	res.Details["cpu_threshold"] = threshold
	res.Details["cpu_ok"] = cpuOK
	res.Details["memory_utilization"] = mem
	res.Details["memory_threshold"] = r.memoryThreshold
	res.Details["memory_ok"] = memOK
	res.Details["disk_iops"] = r.rng.Uniform(100, 500)
	res.Details["network_in_mbps"] = r.rng.Uniform(10, 100)
	res.Details["network_out_mbps"] = r.rng.Uniform(5, 50)
}
