package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"smart_parking_lot/internal/app"
	"smart_parking_lot/internal/config"
	"smart_parking_lot/internal/logging"
	"smart_parking_lot/internal/repository"
	"smart_parking_lot/internal/repository/backend"
)

// env is opened by the root command before any subcommand runs.
type env struct {
	cfg   *config.Config
	store *repository.Store
	core  *app.Core
}

var current env

var rootCmd = &cobra.Command{
	Use:           "parkingctl",
	Short:         "Inspect and administer the smart parking lot",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		verbose, _ := cmd.Flags().GetBool("verbose")
		level := "warn"
		if verbose {
			level = "debug"
		}
		logging.SetOutput(os.Stderr)
		if err := logging.Configure(level, "text"); err != nil {
			return err
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, err := backend.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
		}
		current = env{cfg: cfg, store: store}
		if cmd.Annotations[skipCoreAnnotation] != "true" {
			core, err := app.NewCore(ctx, cfg, store)
			if err != nil {
				return err
			}
			current.core = core
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current.store == nil {
			return nil
		}
		return current.store.Close()
	},
}

const skipCoreAnnotation = "skip-core"

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default $PARKING_CONFIG)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")
}
