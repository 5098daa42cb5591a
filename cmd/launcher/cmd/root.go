package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/launcher"
)

// OsExit allows tests to replace os.Exit
var OsExit = os.Exit

// NewRootCommand creates the root command for the launcher CLI
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launcher",
		Short: "Launcher - start, update and probe applications",
		Long: `Launcher starts an application after applying any update published in its
manifest, and offers tools to probe update servers and find the local address.`,
		Version:       PrintVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewProbeCommand())
	cmd.AddCommand(NewAddressCommand())

	return cmd
}

// PrintVersion returns the build provenance of the CLI
func PrintVersion() string {
	p := launcher.ReadProvenance()
	return fmt.Sprintf("commit %s, built at %s", p.Commit, p.BuildTime)
}
