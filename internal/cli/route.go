package cli

import (
	"fmt"
	"io"
	"net"

	"github.com/spf13/cobra"

	"github.com/gortc/mediaport/allocator"
)

func execRoute(destination string, stdout io.Writer) error {
	ip := net.ParseIP(destination)
	if ip == nil {
		// Not a literal, resolving via DNS.
		addr, err := net.ResolveIPAddr("ip", destination)
		if err != nil {
			return err
		}
		ip = addr.IP
	}
	local, err := allocator.ResolveLocalAddr(ip)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, local)
	return err
}

func getRouteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route [destination]",
		Short: "print the local address used to reach a destination",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			destination := "8.8.8.8"
			if len(args) > 0 {
				destination = args[0]
			}
			return execRoute(destination, cmd.OutOrStdout())
		},
	}
}
