package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"assetwatch/internal/daemon"
	"assetwatch/internal/history"
	"assetwatch/internal/logging"
	"assetwatch/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Prime every asset and poll the origin until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	hist, err := history.Open(cfg)
	if err != nil {
		logger.Error("open change history", logging.Error(err))
		return err
	}

	mgr, err := workflow.NewManager(cfg, hist, logger)
	if err != nil {
		_ = hist.Close()
		return fmt.Errorf("create workflow: %w", err)
	}

	d, err := daemon.New(cfg, hist, logger, mgr)
	if err != nil {
		_ = hist.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	logger.Info("assetwatch running",
		logging.String("config", ctx.configPath),
		logging.String("origin", cfg.Origin.BaseURL),
		logging.String("api", d.APIAddress()),
	)

	<-signalCtx.Done()
	logger.Info("assetwatch shutting down")
	return nil
}
