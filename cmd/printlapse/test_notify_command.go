package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"printlapse/internal/ipc"
	"printlapse/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if local {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				svc := notifications.NewService(cfg)
				if !notifications.Configured(svc) {
					fmt.Fprintln(out, "No notify command or ntfy topic configured")
					return nil
				}
				if err := svc.TestNotification(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(out, "Test notification sent")
				return nil
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					if resp != nil && resp.Message != "" {
						fmt.Fprintln(out, resp.Message)
					}
					return err
				}
				if resp == nil {
					return errors.New("missing notification response")
				}
				switch {
				case resp.Message != "":
					fmt.Fprintln(out, resp.Message)
				case resp.Sent:
					fmt.Fprintln(out, "Test notification sent")
				default:
					fmt.Fprintln(out, "Notification not sent")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Send from this process instead of through the daemon")
	return cmd
}
