package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"FinSelect/internal/di"
	"FinSelect/pkg/config"
	applogger "FinSelect/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "finselect",
		Short:         "Elastic-net feature selection over technical indicators",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the training queue until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	})

	var symbol string
	train := &cobra.Command{
		Use:   "train",
		Short: "Run one model build from the model config section and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return trainOnce(cmd.Context(), configPath, symbol)
		},
	}
	train.Flags().StringVarP(&symbol, "symbol", "s", "", "override model.symbol")
	root.AddCommand(train)

	return root
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Wire DI: Initialize all dependencies
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run application (blocks until signal)
	if err := app.Run(ctx); err != nil {
		app.Logger().Error("app error", applogger.Error(err))
		return err
	}
	return nil
}

func trainOnce(ctx context.Context, configPath, symbol string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if symbol != "" {
		cfg.Model.Symbol = symbol
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, buildErr := app.TrainOnce(ctx)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	}
	return buildErr
}
