package main

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/inferguard/inferguard/internal/faults"
	"github.com/inferguard/inferguard/internal/remediation"
)

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show model health, fault configuration and incident counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := opts.newClient()
			ctx := cmd.Context()

			// A failing readiness probe is reported, not fatal.
			ready := "OK"
			if _, err := c.Ready(ctx); err != nil {
				ready = "FAIL (" + err.Error() + ")"
			}

			health, err := c.ModelHealth(ctx)
			if err != nil {
				return fmt.Errorf("model health: %w", err)
			}
			summary, err := c.IncidentSummary(ctx)
			if err != nil {
				return fmt.Errorf("incident summary: %w", err)
			}

			out := map[string]any{"ready": ready, "model": health, "incidents": summary}
			return opts.render(cmd.OutOrStdout(), out, func(w io.Writer) error {
				fm := health.FailureMode
				fmt.Fprintf(w, "API:        %s\n", ready)
				fmt.Fprintf(w, "Model:      %s (%s) at %s\n", health.Status, health.ModelVersion, health.Endpoint)
				fmt.Fprintf(w, "Cache size: %d\n", health.CacheSize)
				fmt.Fprintf(w, "Faults:     latency x%.1f, error rate %.2f, drift %t, flip rate %.2f\n",
					fm.LatencyMultiplier, fm.ErrorRate, fm.DriftEnabled, fm.CorrectnessFlipRate)
				fmt.Fprintf(w, "Incidents:  %d total, %d in the last 24h\n", summary.Total, summary.Last24Hours)
				for _, status := range sortedKeys(summary.ByStatus) {
					fmt.Fprintf(w, "  %-12s %d\n", status, summary.ByStatus[status])
				}
				return nil
			})
		},
	}
}

func newInjectCmd(opts *options) *cobra.Command {
	var failureType, severity string

	cmd := &cobra.Command{
		Use:   "inject",
		Short: "Inject a simulated failure into the model",
		Example: "  inferctl inject --type latency --severity high\n" +
			"  inferctl inject --type error",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := faults.ParseKind(failureType); err != nil {
				return err
			}
			if _, err := faults.ParseSeverity(severity); err != nil {
				return err
			}
			injection, err := opts.newClient().InjectFault(cmd.Context(), failureType, severity)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), injection, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Injected %s failure at %s severity (x%.1f)\n",
					injection.Injected, injection.Severity, injection.Multiplier)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&failureType, "type", "", "failure type: latency, error, drift or correctness")
	cmd.Flags().StringVar(&severity, "severity", string(faults.SeverityMedium), "severity: low, medium or high")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newClearCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear every injected failure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := opts.newClient().ClearFaults(cmd.Context())
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), res, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, "All failures cleared")
				return err
			})
		},
	}
}

func newRunChecksCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run-checks",
		Short: "Run every enabled health check now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sweep, err := opts.newClient().RunAllChecks(cmd.Context())
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), sweep, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "CHECK\tTYPE\tRESULT\tVALUE\tTHRESHOLD\tINCIDENT")
				for _, o := range sweep.Results {
					result := "PASS"
					if !o.Passed {
						result = "FAIL"
					}
					incident := "-"
					if o.IncidentID != nil {
						incident = fmt.Sprintf("#%d", *o.IncidentID)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%.3f\t%.3f\t%s\n",
						o.CheckName, o.Kind, result, o.ResultValue, o.Threshold, incident)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				_, err := fmt.Fprintf(w, "\n%d passed, %d failed\n", sweep.Passed, sweep.Failed)
				return err
			})
		},
	}
}

func newIncidentsCmd(opts *options) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "incidents",
		Short: "List incidents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := opts.newClient().ListIncidents(cmd.Context(), status, limit)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), list, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tSEVERITY\tSTATUS\tTRIGGERED\tTITLE")
				for _, inc := range list {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
						inc.ID, inc.Severity, inc.Status, inc.TriggeredAt.Format(time.RFC3339), inc.Title)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status: open, remediating, resolved or escalated")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of incidents")
	return cmd
}

func newRemediateCmd(opts *options) *cobra.Command {
	var (
		incidentID int64
		strategy   string
		dryRun     bool
		auto       bool
		maxRetries int
	)

	cmd := &cobra.Command{
		Use:   "remediate",
		Short: "Run a remediation strategy against an incident",
		Example: "  inferctl remediate --incident 3 --strategy clear_cache --dry-run\n" +
			"  inferctl remediate --incident 3 --strategy restart_service --auto --max-retries 5",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if incidentID <= 0 {
				return errors.New("--incident must be a positive incident id")
			}
			if _, err := remediation.ParseStrategy(strategy); err != nil {
				return err
			}
			c := opts.newClient()

			if !auto {
				res, err := c.Remediate(cmd.Context(), incidentID, strategy, dryRun)
				if err != nil {
					return err
				}
				return opts.render(cmd.OutOrStdout(), res, func(w io.Writer) error {
					return printResult(w, 1, res)
				})
			}

			res, err := c.AutoRemediate(cmd.Context(), incidentID, strategy, maxRetries, dryRun)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), res, func(w io.Writer) error {
				for i := range res.Results {
					if err := printResult(w, i+1, &res.Results[i]); err != nil {
						return err
					}
				}
				_, err := fmt.Fprintf(w, "Incident #%d is %s after %d attempt(s)\n", res.IncidentID, res.Status, res.Attempts)
				return err
			})
		},
	}

	cmd.Flags().Int64Var(&incidentID, "incident", 0, "incident id")
	cmd.Flags().StringVar(&strategy, "strategy", "", "strategy: "+strategyNames())
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "describe the action without performing it")
	cmd.Flags().BoolVar(&auto, "auto", false, "retry until the strategy succeeds")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "attempts for --auto (default from server)")
	_ = cmd.MarkFlagRequired("incident")
	_ = cmd.MarkFlagRequired("strategy")
	return cmd
}

func newAuditCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent remediation attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := opts.newClient().Audit(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), entries, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tSTRATEGY\tINCIDENT\tDRY RUN\tSUCCESS\tDURATION")
				for _, e := range entries {
					incident := "-"
					if e.IncidentID != nil {
						incident = fmt.Sprintf("#%d", *e.IncidentID)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%.2fs\n",
						e.Timestamp.Format(time.RFC3339), e.Strategy, incident, e.DryRun, e.Success, e.DurationSeconds)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries (max 500)")
	return cmd
}

func printResult(w io.Writer, attempt int, res *remediation.Result) error {
	outcome := "succeeded"
	if !res.Success {
		outcome = "failed"
	}
	mode := ""
	if res.DryRun {
		mode = " (dry run)"
	}
	line := fmt.Sprintf("Attempt %d: %s %s%s in %.2fs", attempt, res.Strategy, outcome, mode, res.DurationSeconds)
	if msg, ok := res.Details["message"].(string); ok {
		line += ": " + msg
	}
	if res.Error != "" {
		line += ": " + res.Error
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func strategyNames() string {
	names := make([]string, len(remediation.Strategies))
	for i, s := range remediation.Strategies {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}
