package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"anonlab/internal/config"
	"anonlab/pkg/logger"
)

const skipConfig = "skip-config"

var (
	cfgFile  string
	logLevel string
	logJSON  bool

	appCfg *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "anonlab",
	Short: "Anonymize legal documents and measure how much survives",
	Long: `anonlab splits legal documents into model-sized chunks, anonymizes them
through a local language model, attacks the result with five reconstruction
tests and scores the outcome.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfig] == "true" {
			logger.Setup(logLevel, logJSON)
			return nil
		}
		var (
			cfg  *config.AppConfig
			path = cfgFile
			err  error
		)
		if path == "" {
			cfg, path, err = config.LoadDefault()
		} else {
			cfg, err = config.Load(path)
		}
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}
		logger.Setup(level, cfg.Log.JSON || logJSON)
		logger.GetDefault().Debug("config loaded", "path", path)
		appCfg = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./anonlab.yaml, then ~/.config/anonlab/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")
}

// Execute runs the root command. SIGINT and SIGTERM cancel the run between
// chunks and categories.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
