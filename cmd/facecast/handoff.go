// cmd/facecast/handoff.go
package main

import (
	"fmt"

	handoffdispatch "facecast/internal/workers/export/handoff-dispatch"

	"github.com/spf13/cobra"
)

func newHandoffCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handoff",
		Short: "Inspect gallery handoff URIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "parse <uri>",
		Short: "Print the file path carried by a handoff URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scheme, path, err := handoffdispatch.ParseHandoffURI(args[0])
			if err != nil {
				return fail("handoff parse", err)
			}
			if scheme != a.cfg.Handoff.Scheme {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: scheme %q differs from configured %q\n", scheme, a.cfg.Handoff.Scheme)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})
	return cmd
}
