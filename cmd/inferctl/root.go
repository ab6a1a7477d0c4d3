package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/inferguard/inferguard/internal/client"
)

const defaultAPIURL = "http://localhost:8080"

type options struct {
	apiURL  string
	timeout time.Duration
	asJSON  bool
}

// newClient builds the API client from the global flags.
func (o *options) newClient() *client.Client {
	cfg := client.DefaultConfig(o.apiURL)
	if o.timeout > 0 {
		cfg.Timeout = o.timeout
	}
	return client.New(cfg)
}

// render prints v as indented JSON when --json is set, otherwise calls text.
func (o *options) render(w io.Writer, v any, text func(io.Writer) error) error {
	if o.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "inferctl",
		Short:         "Operate the InferGuard inference health monitor",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	apiURL := os.Getenv("INFERGUARD_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", apiURL, "InferGuard API base URL (env INFERGUARD_API_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "per-request timeout (default 90s)")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print raw JSON")

	root.AddCommand(
		newStatusCmd(opts),
		newInjectCmd(opts),
		newClearCmd(opts),
		newRunChecksCmd(opts),
		newIncidentsCmd(opts),
		newRemediateCmd(opts),
		newAuditCmd(opts),
	)
	return root
}
