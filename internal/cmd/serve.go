package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/SteelMorgan/apex-log-checker/internal/mcp"
	"github.com/SteelMorgan/apex-log-checker/internal/service"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP tool server",
	Long: `Serve the log views as JSON tool endpoints (/tools/parse_log,
/tools/get_trace, /tools/get_limits, /tools/soql, /tools/replay,
/tools/bookmarks, /tools/presets). With CLICKHOUSE_ENABLED=true every
analyzed trace is also written to ClickHouse.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default SERVER_PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	port := cfg.ServerPort
	if servePort > 0 {
		port = servePort
	}

	p, err := loadPresets()
	if err != nil {
		return err
	}

	store, err := openBookmarks()
	if err != nil {
		return err
	}

	var opts []service.AnalyzerOption
	if cfg.ClickHouseEnabled {
		sink, err := newClickHouseSink(cmd.Context())
		if err != nil {
			if store != nil {
				store.Close()
			}
			return err
		}
		opts = append(opts, service.WithSink(sink))
	}

	srv, err := mcp.NewServer(port, service.NewAnalyzer(opts...), p, store)
	if err != nil {
		return err
	}

	log.Info().
		Str("version", version).
		Int("port", port).
		Bool("bookmarks", store != nil).
		Bool("clickhouse", cfg.ClickHouseEnabled).
		Msg("Starting apex log tool server")

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case err = <-errChan:
		if err != nil {
			log.Error().Err(err).Msg("Tool server error")
		}
	}

	log.Info().Msg("Shutting down gracefully...")
	if stopErr := srv.Stop(); stopErr != nil {
		log.Error().Err(stopErr).Msg("Error during shutdown")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
