// Command client-enricher builds company profiles for clients, either as a
// long-running HTTP service or one client at a time from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/client-enricher/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "client-enricher",
	Short: "Company profile enrichment pipeline",
	Long: `Scrapes a client's website, runs web and news searches, and synthesizes a
structured company profile with a language model.

Settings come from config.yaml in the working directory and ENRICH_* environment
variables. --log-level and --log-format override the log section for one run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyLogFlags(cmd.Flags(), &c.Log)
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

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "override log.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "override log.format (json or console)")
}

// applyLogFlags copies explicitly set log flags over the loaded settings.
func applyLogFlags(flags *pflag.FlagSet, lc *config.LogConfig) {
	if f := flags.Lookup("log-level"); f != nil && f.Changed {
		lc.Level = f.Value.String()
	}
	if f := flags.Lookup("log-format"); f != nil && f.Changed {
		lc.Format = f.Value.String()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
