package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/launcher/netaddr"
)

// NewAddressCommand creates the address command
func NewAddressCommand() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the preferred outbound IP address of this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := netaddr.NewResolver(target).PreferredAddress()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", netaddr.DefaultTarget, "UDP destination used to select the outbound interface")
	return cmd
}
