package writer

import "fmt"

// Schema returns the DDL for the export tables. Column order matches the
// values() order of the row types.
func Schema(database string, ttlDays int) []string {
	if ttlDays < 1 {
		ttlDays = 30
	}
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.lines (
    log_id String,
    line_index UInt32,
    instant_ms Float64,
    event_time DateTime64(6),
    timed UInt8,
    kind LowCardinality(String),
    marker LowCardinality(String),
    text String,
    detail String,
    structured UInt8,
    source_line UInt32,
    row_count Nullable(Int32),
    line_hash String,
    raw String
) ENGINE = ReplacingMergeTree
ORDER BY (log_id, line_index)
TTL toDateTime(event_time) + INTERVAL %d DAY`, database, ttlDays),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.spans (
    log_id String,
    span_id String,
    parent_id String,
    name String,
    category LowCardinality(String),
    depth UInt16,
    start_ms Float64,
    end_ms Float64,
    duration_ms Float64,
    self_ms Float64,
    start_time DateTime64(6),
    end_time DateTime64(6),
    start_line UInt32,
    end_line UInt32
) ENGINE = ReplacingMergeTree
ORDER BY (log_id, start_line, span_id)
TTL toDateTime(start_time) + INTERVAL %d DAY`, database, ttlDays),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.limits (
    log_id String,
    line_index UInt32,
    event_time DateTime64(6),
    namespace LowCardinality(String),
    metric LowCardinality(String),
    used UInt32,
    total UInt32,
    seen UInt32
) ENGINE = ReplacingMergeTree
ORDER BY (log_id, line_index, namespace, metric)
TTL toDateTime(event_time) + INTERVAL %d DAY`, database, ttlDays),
	}
}
