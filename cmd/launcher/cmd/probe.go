package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/launcher/health"
	"github.com/GoCodeAlone/launcher/reachability"
)

// ErrUnreachable is returned by probe when a server cannot be reached.
var ErrUnreachable = errors.New("server unreachable")

// NewProbeCommand creates the probe command
func NewProbeCommand() *cobra.Command {
	var (
		timeout time.Duration
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "probe SERVER...",
		Short: "Check that update servers accept TCP connections",
		Long: `Probe connects to each server, given as a URL or host:port, and reports
whether it is reachable. Default ports follow the URL scheme.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := health.NewAggregator(timeout + time.Second)
			for _, server := range args {
				checker, err := reachability.NewChecker(server, reachability.WithProber(reachability.SocketProber{Timeout: timeout}))
				if err != nil {
					return err
				}
				if err := checks.RegisterCheck(checker); err != nil {
					return err
				}
			}

			status := checks.CheckAll(cmd.Context())
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(status); err != nil {
					return err
				}
			} else {
				for _, name := range checks.Names() {
					r := status.CheckResults[name]
					fmt.Fprintf(out, "%-48s %-8s %s\n", name, r.Status, r.Message)
				}
			}

			if status.OverallStatus != health.StatusHealthy {
				return fmt.Errorf("%w: %d of %d", ErrUnreachable, status.Summary.TotalChecks-status.Summary.PassingChecks, status.Summary.TotalChecks)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", reachability.DefaultTimeout, "connect timeout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the health report as JSON")
	return cmd
}
