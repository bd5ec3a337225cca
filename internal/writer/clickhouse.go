package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultBatchSize = 10000

// ClickHouseWriter writes analyzed logs to ClickHouse
type ClickHouseWriter struct {
	db       Inserter
	database string
	cfg      BatchConfig
}

// NewClickHouseWriter creates a writer for tables in database
func NewClickHouseWriter(db Inserter, database string, cfg BatchConfig) *ClickHouseWriter {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = defaultBatchSize
	}
	return &ClickHouseWriter{
		db:       db,
		database: database,
		cfg:      cfg,
	}
}

// EnsureSchema creates the database and tables if they do not exist
func (w *ClickHouseWriter) EnsureSchema(ctx context.Context, ttlDays int) error {
	for _, stmt := range Schema(w.database, ttlDays) {
		if err := w.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// WriteLog writes lines, spans and limit records of one log
func (w *ClickHouseWriter) WriteLog(ctx context.Context, rec LogRecord) error {
	if rec.Log == nil {
		return fmt.Errorf("log %s: nothing to write", rec.ID)
	}
	startTime := time.Now()

	lineRows := BuildLineRows(rec.ID, rec.Day, rec.Log.Lines)
	lines := make([][]interface{}, 0, len(lineRows))
	for _, r := range lineRows {
		lines = append(lines, r.values())
	}
	if err := w.insert(ctx, "lines", lines); err != nil {
		return err
	}

	spanRows := BuildSpanRows(rec.ID, rec.Day, rec.Forest)
	spans := make([][]interface{}, 0, len(spanRows))
	for _, r := range spanRows {
		spans = append(spans, r.values())
	}
	if err := w.insert(ctx, "spans", spans); err != nil {
		return err
	}

	limitRows := BuildLimitRows(rec.ID, rec.Day, rec.Log)
	limits := make([][]interface{}, 0, len(limitRows))
	for _, r := range limitRows {
		limits = append(limits, r.values())
	}
	if err := w.insert(ctx, "limits", limits); err != nil {
		return err
	}

	log.Info().
		Str("log_id", rec.ID).
		Int("lines", len(lines)).
		Int("spans", len(spans)).
		Int("limits", len(limits)).
		Dur("duration", time.Since(startTime)).
		Msg("Log written to ClickHouse")

	return nil
}

// insert sends rows in chunks of at most cfg.MaxSize
func (w *ClickHouseWriter) insert(ctx context.Context, table string, rows [][]interface{}) error {
	fullName := w.database + "." + table
	for start := 0; start < len(rows); start += w.cfg.MaxSize {
		end := start + w.cfg.MaxSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := w.db.InsertBatch(ctx, fullName, rows[start:end]); err != nil {
			return fmt.Errorf("failed to write %s: %w", fullName, err)
		}
		log.Debug().
			Str("table", fullName).
			Int("batch_size", end-start).
			Msg("Batch sent")
	}
	return nil
}

// Close closes the underlying connection
func (w *ClickHouseWriter) Close() error {
	return w.db.Close()
}
