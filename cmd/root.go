package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadforge/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "leadforge",
	Short: "Lead-generation pipeline",
	Long:  "Expands a market niche into products, scrapes company domains and founder names off search results, permutes candidate addresses, and verifies them over live SMTP.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if v, _ := cmd.Flags().GetString("model"); v != "" {
			cfg.Anthropic.Model = v
		}
		if v, _ := cmd.Flags().GetString("driver"); v != "" {
			cfg.Store.Driver = v
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("model", "", "override the product-expansion model name")
	rootCmd.PersistentFlags().String("driver", "", "override the store driver (postgres or sqlite)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
