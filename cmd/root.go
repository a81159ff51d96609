package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/torqueline/estimator/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "estimator",
	Short: "Parts price validation and labor-time consensus",
	Long:  "Searches the parts market for price signals, validates and refines them until confidence is met, and reconciles labor-time estimates from LLMs, web signals, and flat-rate guides into a single consensus.",
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

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
