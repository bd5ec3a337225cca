package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/apex-log-checker/internal/retry"
)

// Options describes how to reach ClickHouse
type Options struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Retry    retry.Config
}

// Client wraps ClickHouse connection
type Client struct {
	conn     clickhouse.Conn
	database string
	retryCfg retry.Config
}

// NewClient connects and pings ClickHouse with retry
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	username := opts.Username
	if username == "" {
		username = "default"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", opts.Host, opts.Port)},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := retry.Do(ctx, opts.Retry, func() error {
		return conn.Ping(ctx)
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	log.Info().
		Str("host", opts.Host).
		Int("port", opts.Port).
		Str("database", opts.Database).
		Msg("Connected to ClickHouse")

	return &Client{
		conn:     conn,
		database: opts.Database,
		retryCfg: opts.Retry,
	}, nil
}

// Database returns the database name rows are written to
func (c *Client) Database() string {
	return c.database
}

// Close closes the connection
func (c *Client) Close() error {
	log.Debug().Msg("Closing ClickHouse connection")
	return c.conn.Close()
}

// Query executes a SELECT query and returns rows with retry logic
func (c *Client) Query(ctx context.Context, query string, args ...interface{}) (driver.Rows, error) {
	return retry.DoWithResult(ctx, c.retryCfg, func() (driver.Rows, error) {
		return c.conn.Query(ctx, query, args...)
	})
}

// Exec executes a non-SELECT query with retry logic
func (c *Client) Exec(ctx context.Context, query string, args ...interface{}) error {
	return retry.Do(ctx, c.retryCfg, func() error {
		return c.conn.Exec(ctx, query, args...)
	})
}

// InsertBatch sends rows to table in one batch. A failed attempt aborts its
// batch and the whole batch is prepared again on retry.
func (c *Client) InsertBatch(ctx context.Context, table string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	return retry.Do(ctx, c.retryCfg, func() error {
		batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
		if err != nil {
			return fmt.Errorf("failed to prepare batch: %w", err)
		}
		for i, row := range rows {
			if err := batch.Append(row...); err != nil {
				batch.Abort()
				return fmt.Errorf("failed to append row %d to batch: %w", i, err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
		return nil
	})
}
