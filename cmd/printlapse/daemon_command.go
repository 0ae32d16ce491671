package main

import (
	"github.com/spf13/cobra"

	"printlapse/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the printlapse daemon in the foreground",
		Long: "Poll the printer, capture frames while it prints, and assemble a\n" +
			"timelapse when the print ends. Stop with SIGINT or SIGTERM; frames of an\n" +
			"unfinished print are kept and resumed on the next start.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log lines")
	return cmd
}
