package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"assetwatch/internal/notifications"
	"assetwatch/internal/preflight"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through every configured sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			check := preflight.CheckNotificationsFromConfig(cfg)
			if !check.Passed {
				return errors.New(check.Detail)
			}
			if check.Detail == "Disabled" {
				fmt.Fprintln(cmd.OutOrStdout(), "No notification sinks configured; nothing sent")
				return nil
			}
			if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent via %s\n", check.Detail)
			return nil
		},
	}
}
