package writer

import (
	"context"
	"time"

	"github.com/SteelMorgan/apex-log-checker/internal/apexlog"
	"github.com/SteelMorgan/apex-log-checker/internal/trace"
)

// LogRecord is one analyzed log ready for export
type LogRecord struct {
	ID     string
	Day    time.Time // calendar day the log's clock times belong to
	Log    *apexlog.Log
	Forest *trace.Forest
}

// Sink stores analyzed logs
type Sink interface {
	// WriteLog writes the lines, spans and limit records of one log
	WriteLog(ctx context.Context, rec LogRecord) error

	// Close releases the underlying connection
	Close() error
}

// Inserter is the part of the ClickHouse client the writer needs
type Inserter interface {
	InsertBatch(ctx context.Context, table string, rows [][]interface{}) error
	Exec(ctx context.Context, query string, args ...interface{}) error
	Close() error
}

// BatchConfig configures batch behavior
type BatchConfig struct {
	MaxSize int // Maximum rows per INSERT
}
