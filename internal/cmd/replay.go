package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/SteelMorgan/apex-log-checker/internal/bookmark"
	"github.com/SteelMorgan/apex-log-checker/internal/domain"
	"github.com/SteelMorgan/apex-log-checker/internal/output"
	"github.com/SteelMorgan/apex-log-checker/internal/replay"
	"github.com/SteelMorgan/apex-log-checker/internal/service"
)

var (
	replayCursor   int
	replayBookmark string
	replaySave     string
	replayPlay     bool
	replayTick     time.Duration
	replayList     bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <log>",
	Short: "Show the call stack and variables at a line, or play the log step by step",
	Long: `Reconstruct the execution state after the first N lines of the log.
Without --cursor the whole log is applied. With --play the replay starts at
the cursor and advances one line per tick until the end or Ctrl+C.

Examples:
  apexlog replay debug.log --cursor 120
  apexlog replay debug.log --cursor 120 --save before-dml
  apexlog replay debug.log --bookmark before-dml --play --tick 200ms
  apexlog replay debug.log --list`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().IntVarP(&replayCursor, "cursor", "n", -1, "number of lines to apply (default: all)")
	replayCmd.Flags().StringVarP(&replayBookmark, "bookmark", "b", "", "start from a saved bookmark")
	replayCmd.Flags().StringVarP(&replaySave, "save", "s", "", "save the final cursor under this bookmark name")
	replayCmd.Flags().BoolVar(&replayPlay, "play", false, "advance one line per tick")
	replayCmd.Flags().DurationVar(&replayTick, "tick", 0, "autoplay interval (default REPLAY_TICK)")
	replayCmd.Flags().BoolVar(&replayList, "list", false, "list saved bookmarks for this log")

	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	text, err := readLog(cmd, args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logID := service.LogID(text)
	analyzer := service.NewAnalyzer()
	parsed := analyzer.Classify(ctx, text)
	lines := parsed.Lines

	var store bookmark.Store
	if replayBookmark != "" || replaySave != "" || replayList {
		if store, err = openBookmarks(); err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("bookmarks are disabled, set BOOKMARK_DB_PATH")
		}
		defer store.Close()
	}

	if replayList {
		return listBookmarks(ctx, cmd, store, logID)
	}

	cursor := len(lines)
	switch {
	case replayBookmark != "":
		if cursor, err = store.Get(ctx, logID, replayBookmark); err != nil {
			return fmt.Errorf("bookmark %q: %w", replayBookmark, err)
		}
	case replayCursor >= 0:
		cursor = replayCursor
	}
	if replayPlay && replayBookmark == "" && replayCursor < 0 {
		cursor = 0
	}

	r := output.New(outputFmt, cmd.OutOrStdout())
	var final replay.Frame

	if replayPlay {
		final, err = play(ctx, r, lines, cursor)
	} else {
		var last *domain.ClassifiedLine
		final, last, err = analyzer.Replay(ctx, lines, cursor)
		if err == nil {
			err = r.Frame(final, last)
		}
	}
	if err != nil {
		return err
	}

	if replaySave != "" {
		if err := store.Set(ctx, logID, replaySave, final.State.Cursor); err != nil {
			return err
		}
		log.Info().
			Str("log_id", logID).
			Str("bookmark", replaySave).
			Int("cursor", final.State.Cursor).
			Msg("Bookmark saved")
	}
	return nil
}

// play renders every frame from cursor to the end, stopping early on ctx
func play(ctx context.Context, r output.Renderer, lines []domain.ClassifiedLine, cursor int) (replay.Frame, error) {
	render := func(f replay.Frame) {
		var last *domain.ClassifiedLine
		if f.State.Cursor > 0 {
			last = &lines[f.State.Cursor-1]
		}
		if err := r.Frame(f, last); err != nil {
			log.Warn().Err(err).Msg("Failed to render frame")
		}
	}

	session := replay.NewSession(lines, replay.WithObserver(render))
	if _, err := session.Seek(cursor); err != nil {
		return replay.Frame{}, err
	}

	tick := replayTick
	if tick <= 0 {
		tick = cfg.ReplayTick
	}

	err := session.Play(ctx, tick)
	if err != nil && !errors.Is(err, context.Canceled) {
		return replay.Frame{}, err
	}
	return session.Snapshot(), nil
}

func listBookmarks(ctx context.Context, cmd *cobra.Command, store bookmark.Store, logID string) error {
	list, err := store.List(ctx, logID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no bookmarks for log %s\n", logID)
		return nil
	}
	for _, b := range list {
		fmt.Fprintf(cmd.OutOrStdout(), "%-24s %d\n", b.Name, b.Cursor)
	}
	return nil
}
