package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/SteelMorgan/apex-log-checker/internal/apexlog"
	"github.com/SteelMorgan/apex-log-checker/internal/clickhouse"
	"github.com/SteelMorgan/apex-log-checker/internal/domain"
	"github.com/SteelMorgan/apex-log-checker/internal/logsource"
	"github.com/SteelMorgan/apex-log-checker/internal/output"
	"github.com/SteelMorgan/apex-log-checker/internal/retry"
	"github.com/SteelMorgan/apex-log-checker/internal/service"
	"github.com/SteelMorgan/apex-log-checker/internal/trace"
	"github.com/SteelMorgan/apex-log-checker/internal/writer"
)

var (
	kindFilter       []string
	textFilter       string
	hideUnclassified bool
	showStats        bool
)

var linesCmd = &cobra.Command{
	Use:   "lines <log>",
	Short: "Print the classified line stream",
	Long: `Print every log line with its timestamp and event kind. Filters narrow
the stream; line numbers always refer to the original log.

Examples:
  apexlog lines debug.log
  apexlog lines debug.log --kind USER_DEBUG --kind EXCEPTION_THROWN
  apexlog lines debug.log --preset soql --text Account
  cat debug.log | apexlog lines - --output json`,
	Args: cobra.ExactArgs(1),
	RunE: runLines,
}

var treeCmd = &cobra.Command{
	Use:   "tree <log>",
	Short: "Print the reconstructed call tree with durations",
	Args:  cobra.ExactArgs(1),
	RunE:  runTree,
}

var limitsCmd = &cobra.Command{
	Use:   "limits <log>",
	Short: "Print governor limit usage per namespace",
	Args:  cobra.ExactArgs(1),
	RunE:  runLimits,
}

var soqlCmd = &cobra.Command{
	Use:   "soql <log>",
	Short: "Group SOQL queries by shape",
	Args:  cobra.ExactArgs(1),
	RunE:  runSOQL,
}

var storeCmd = &cobra.Command{
	Use:   "store <log|dir>...",
	Short: "Write classified lines, spans and limits to ClickHouse",
	Long: `Analyze each log and insert its rows into ClickHouse. Directories are
searched recursively for *.log and *.txt files. Requires
CLICKHOUSE_ENABLED=true; tables are created on first use.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStore,
}

func init() {
	linesCmd.Flags().StringSliceVarP(&kindFilter, "kind", "k", nil, "keep only these event kinds (repeatable)")
	linesCmd.Flags().StringVarP(&textFilter, "text", "t", "", "keep lines containing this text (case-insensitive)")
	linesCmd.Flags().BoolVar(&hideUnclassified, "hide-unclassified", false, "drop lines with no recognized marker")
	treeCmd.Flags().BoolVar(&showStats, "stats", false, "also print per-name span statistics")

	rootCmd.AddCommand(linesCmd, treeCmd, limitsCmd, soqlCmd, storeCmd)
}

func runLines(cmd *cobra.Command, args []string) error {
	text, err := readLog(cmd, args[0])
	if err != nil {
		return err
	}

	filter, err := buildFilter()
	if err != nil {
		return err
	}

	parsed := service.NewAnalyzer().Classify(cmd.Context(), text)
	return output.New(outputFmt, cmd.OutOrStdout()).Lines(filter.Apply(parsed.Lines))
}

// buildFilter starts from --preset and narrows it with the other flags
func buildFilter() (apexlog.Filter, error) {
	var filter apexlog.Filter
	if presetName != "" {
		p, err := loadPresets()
		if err != nil {
			return filter, err
		}
		if filter, err = p.Filter(presetName); err != nil {
			return filter, err
		}
	}
	if len(kindFilter) > 0 {
		filter.Kinds = nil
		for _, name := range kindFilter {
			kind, err := domain.ParseEventKind(name)
			if err != nil {
				return filter, err
			}
			filter.Kinds = append(filter.Kinds, kind)
		}
	}
	if textFilter != "" {
		filter.Text = textFilter
	}
	if hideUnclassified {
		filter.HideUnclassified = true
	}
	return filter, nil
}

func runTree(cmd *cobra.Command, args []string) error {
	text, err := readLog(cmd, args[0])
	if err != nil {
		return err
	}

	res, err := service.NewAnalyzer().Analyze(cmd.Context(), text)
	if err != nil {
		return err
	}

	r := output.New(outputFmt, cmd.OutOrStdout())
	if err := r.Tree(res.Forest); err != nil {
		return err
	}
	if showStats {
		return r.Stats(trace.Stats(res.Forest))
	}
	return nil
}

func runLimits(cmd *cobra.Command, args []string) error {
	text, err := readLog(cmd, args[0])
	if err != nil {
		return err
	}
	parsed := service.NewAnalyzer().Classify(cmd.Context(), text)
	return output.New(outputFmt, cmd.OutOrStdout()).Limits(parsed.Limits())
}

func runSOQL(cmd *cobra.Command, args []string) error {
	text, err := readLog(cmd, args[0])
	if err != nil {
		return err
	}
	parsed := service.NewAnalyzer().Classify(cmd.Context(), text)
	return output.New(outputFmt, cmd.OutOrStdout()).SOQL(apexlog.SummarizeSOQL(parsed.Lines))
}

func runStore(cmd *cobra.Command, args []string) error {
	if !cfg.ClickHouseEnabled {
		return fmt.Errorf("ClickHouse is disabled, set CLICKHOUSE_ENABLED=true")
	}

	paths, err := logsource.Expand(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	sink, err := newClickHouseSink(ctx)
	if err != nil {
		return err
	}
	analyzer := service.NewAnalyzer(service.WithSink(sink))
	defer analyzer.Close()

	for _, path := range paths {
		text, err := readLog(cmd, path)
		if err != nil {
			return err
		}
		res, err := analyzer.Analyze(ctx, text)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d lines)\n", res.ID, path, len(res.Log.Lines))
	}
	return nil
}

// newClickHouseSink connects, applies the schema and returns the writer
func newClickHouseSink(ctx context.Context) (*writer.ClickHouseWriter, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := clickhouse.NewClient(ctx, clickhouse.Options{
		Host:     cfg.ClickHouseHost,
		Port:     cfg.ClickHousePort,
		Database: "default", // cfg.ClickHouseDB may not exist before EnsureSchema
		Username: cfg.ClickHouseUser,
		Password: cfg.ClickHousePassword,
		Retry:    retry.FromSettings(cfg.RetryMaxAttempts, cfg.RetryInitialDelayMs, cfg.RetryMaxDelayMs, cfg.RetryMultiplier),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	w := writer.NewClickHouseWriter(client, cfg.ClickHouseDB, writer.BatchConfig{})
	if err := w.EnsureSchema(ctx, cfg.LogRetentionDays); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}
