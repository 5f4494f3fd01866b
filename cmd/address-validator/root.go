package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dea-madrid/address-validation/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "address-validator",
	Short: "Validates installation addresses against the Madrid street registry",
	Long: "Resolves submitted addresses against the official street registry " +
		"using exact, fuzzy and geographic matching, and keeps per-record " +
		"validation state for review workflows.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}
