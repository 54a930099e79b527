// cmd/facecast/root.go
package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "facecast",
		Short:         "Generate expression icons from a reference portrait and hand them to the gallery tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context(), configPath, logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: configs/config.yaml or the user config dir)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	cmd.AddCommand(newGenerateCommand(a))
	cmd.AddCommand(newKeyCommand(a))
	cmd.AddCommand(newExpressionsCommand(a))
	cmd.AddCommand(newHandoffCommand(a))
	return cmd, a
}
