// Package main provides the qltr CLI entry point.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/query-ltr/qltr/config"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	configPath string
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "qltr",
	Short: "Build learning-to-rank datasets for next-query prediction",
	Long: `qltr turns query session logs into grouped ranking datasets.

For every session it selects candidate successors of the anchor query,
scores them against the recent history, labels the true next query and
partitions the result into train, validation and test groups.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Version = Version
}

func setupLogging(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// loadConfig reads the config, applies overrides and revalidates.
func loadConfig(override func(*config.Config)) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, &exitError{code: ExitConfigError, err: err}
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, &exitError{code: ExitConfigError, err: err}
		}
	}
	return cfg, nil
}
