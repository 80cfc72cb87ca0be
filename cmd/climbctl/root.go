package main

import (
	"github.com/spf13/cobra"

	"github.com/ignite/climblog/internal/pkg/logger"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           "climbctl",
		Short:         "Climb log import tools: templates, grade conversion and imports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetLevel(logger.ParseLevel(logLevel))
			logger.SetOutput(cmd.ErrOrStderr())
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newTemplatesCmd())
	cmd.AddCommand(newGradeCmd())
	cmd.AddCommand(newImportCmd())
	return cmd
}
