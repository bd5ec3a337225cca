package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/SteelMorgan/apex-log-checker/internal/bookmark"
	"github.com/SteelMorgan/apex-log-checker/internal/config"
	"github.com/SteelMorgan/apex-log-checker/internal/logsource"
	"github.com/SteelMorgan/apex-log-checker/internal/observability"
	"github.com/SteelMorgan/apex-log-checker/internal/presets"
)

const version = "0.1.0"

var (
	outputFmt  string
	logLevel   string
	presetName string

	// set by setup before any subcommand runs
	cfg            *config.Config
	shutdownTracer func(context.Context) error
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "apexlog",
	Short: "apexlog - Apex debug log analyzer",
	Long: `apexlog reads Salesforce Apex debug logs and shows them three ways:
a classified line stream with limit usage, a reconstructed call tree with
durations, and a step-by-step replay of the call stack and variables.

Every command takes a log file path, or "-" for stdin. Gzip-compressed
logs are read as is.`,
	Version:            version,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "output format: text, json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&presetName, "preset", "p", "", "flat view filter preset (see PRESETS_PATH)")
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogFile)

	shutdownTracer, err = observability.InitTracer(observability.TracerConfig{
		ServiceName:    "apex-log-checker",
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		Protocol:       cfg.OTLPProtocol,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}

	log.Debug().
		Str("command", cmd.Name()).
		Str("version", version).
		Msg("apexlog starting")
	return nil
}

func teardown(cmd *cobra.Command, _ []string) error {
	if shutdownTracer == nil {
		return nil
	}
	if err := shutdownTracer(cmd.Context()); err != nil {
		log.Warn().Err(err).Msg("Failed to flush traces")
	}
	return nil
}

// readLog reads a whole log from a file path or "-" for stdin
func readLog(cmd *cobra.Command, path string) (string, error) {
	return logsource.Read(path, cmd.InOrStdin())
}

func loadPresets() (*presets.Presets, error) {
	p, err := presets.Load(cfg.PresetsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load presets: %w", err)
	}
	return p, nil
}

// openBookmarks returns nil when BOOKMARK_DB_PATH is empty
func openBookmarks() (bookmark.Store, error) {
	if cfg.BookmarkDBPath == "" {
		return nil, nil
	}
	store, err := bookmark.NewBoltDBStore(cfg.BookmarkDBPath)
	if err != nil {
		return nil, err
	}
	return store, nil
}
