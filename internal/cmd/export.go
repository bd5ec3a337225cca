package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/SteelMorgan/apex-log-checker/internal/export"
	"github.com/SteelMorgan/apex-log-checker/internal/observability"
	"github.com/SteelMorgan/apex-log-checker/internal/service"
)

var (
	exportDay      string
	exportEndpoint string
	exportProtocol string
)

var exportCmd = &cobra.Command{
	Use:   "export <log>",
	Short: "Send the call tree to an OTLP collector as a trace",
	Long: `Replay the reconstructed call tree as OpenTelemetry spans with the log's
own timestamps, so it can be inspected in Jaeger, Tempo or any OTLP backend.
Debug logs only carry clock times; --day picks the calendar date.

Examples:
  apexlog export debug.log --endpoint localhost:4317
  apexlog export debug.log --endpoint localhost:4318 --protocol http --day 2024-03-15`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDay, "day", "", "calendar day of the log, YYYY-MM-DD (default: today)")
	exportCmd.Flags().StringVar(&exportEndpoint, "endpoint", "", "OTLP endpoint (default OTLP_ENDPOINT)")
	exportCmd.Flags().StringVar(&exportProtocol, "protocol", "", "grpc or http (default OTLP_PROTOCOL)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	text, err := readLog(cmd, args[0])
	if err != nil {
		return err
	}

	day := time.Now()
	if exportDay != "" {
		if day, err = time.ParseInLocation("2006-01-02", exportDay, time.Local); err != nil {
			return fmt.Errorf("invalid --day: %w", err)
		}
	}

	tc := observability.TracerConfig{
		ServiceName:    "apex-debug-log",
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		Protocol:       cfg.OTLPProtocol,
		Enabled:        true,
	}
	if exportEndpoint != "" {
		tc.Endpoint = exportEndpoint
	}
	if exportProtocol != "" {
		tc.Protocol = exportProtocol
	}
	if tc.Endpoint == "" {
		return fmt.Errorf("no OTLP endpoint, set --endpoint or OTLP_ENDPOINT")
	}

	ctx := cmd.Context()
	res, err := service.NewAnalyzer().Analyze(ctx, text)
	if err != nil {
		return err
	}

	tp, err := export.NewOTLPProvider(ctx, tc)
	if err != nil {
		return fmt.Errorf("failed to create OTLP provider: %w", err)
	}

	n, err := export.NewSpanExporter(tp).Export(ctx, res.ID, day, res.Forest)
	if err != nil {
		tp.Shutdown(ctx)
		return err
	}

	// Shutdown flushes the batch
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to flush spans: %w", err)
	}

	log.Info().
		Str("log_id", res.ID).
		Int("spans", n).
		Str("endpoint", tc.Endpoint).
		Msg("Trace exported")
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d spans for log %s\n", n, res.ID)
	return nil
}
