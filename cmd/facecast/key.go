// cmd/facecast/key.go
package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newKeyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the stored API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newKeySetCommand(a))
	cmd.AddCommand(newKeyStatusCommand(a))
	cmd.AddCommand(newKeyClearCommand(a))
	return cmd
}

func newKeySetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set [key]",
		Short: "Store an API key (read from stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 1 {
				value = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return fail("key set", err)
				}
				value = line
			}
			if strings.TrimSpace(value) == "" {
				return fail("key set", fmt.Errorf("no key given"))
			}

			// Subscribe reports the current state at once; only the change is printed.
			report := printPresence(cmd.OutOrStdout())
			initial := true
			unsubscribe := a.store.Subscribe(func(present bool) {
				if initial {
					initial = false
					return
				}
				report(present)
			})
			defer unsubscribe()
			return fail("key set", a.store.Set(cmd.Context(), value))
		},
	}
}

func newKeyStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether an API key is configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			unsubscribe := a.store.Subscribe(printPresence(cmd.OutOrStdout()))
			unsubscribe()
			return nil
		},
	}
}

func newKeyClearCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Clear(cmd.Context()); err != nil {
				return fail("key clear", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key removed from storage")
			if defaultAPIKey != "" || a.cfg.APIs.GenAI.APIKey != "" {
				fmt.Fprintln(cmd.OutOrStdout(), "note: a build-time or environment key will still be used on the next run")
			}
			return nil
		},
	}
}

func printPresence(w io.Writer) func(bool) {
	return func(present bool) {
		if present {
			fmt.Fprintln(w, "API key: set")
		} else {
			fmt.Fprintln(w, "API key: not set")
		}
	}
}
