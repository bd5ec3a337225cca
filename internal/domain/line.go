package domain

import "time"

// Instant is a point on the log timeline in milliseconds since midnight of
// an arbitrary fixed date. Only ordering within one log is meaningful.
type Instant float64

// Time anchors the instant to a calendar day
func (i Instant) Time(day time.Time) time.Time {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return midnight.Add(time.Duration(float64(i) * float64(time.Millisecond)))
}

// ClassifiedLine is one raw log line annotated with its event kind.
// Derived once per line and never mutated afterwards.
type ClassifiedLine struct {
	OriginalIndex int       `json:"index"`
	Instant       Instant   `json:"instant"`
	Timed         bool      `json:"timed"` // false when the timestamp token was malformed
	Kind          EventKind `json:"kind"`
	Marker        string    `json:"marker,omitempty"` // verbatim marker token, e.g. SOQL_EXECUTE_BEGIN

	PrimaryText         string `json:"text"`
	SecondaryDetail     string `json:"detail,omitempty"`
	IsStructuredPayload bool   `json:"structured,omitempty"`

	// Key identifies the unit/method for start/end pairing
	Key string `json:"key,omitempty"`
	// SourceLine is the Apex source line from a [N] field, 0 if absent
	SourceLine int `json:"source_line,omitempty"`
	// RowCount is set on SOQL begin lines when the following line reports rows
	RowCount *int `json:"row_count,omitempty"`

	// Unit-specific fields (CODE_UNIT_STARTED)
	External bool   `json:"external,omitempty"`
	UnitType string `json:"unit_type,omitempty"`

	// Variable assignment fields
	VarName  string `json:"var_name,omitempty"`
	VarValue string `json:"var_value,omitempty"`

	// Limits is attached to the line closing a cumulative limit usage block
	Limits []LimitUsageRecord `json:"limits,omitempty"`

	Raw string `json:"raw"`
}

// LogHeader is the debug level configuration line found at the start of a log
// e.g. "59.0 APEX_CODE,FINEST;APEX_PROFILING,INFO;DB,INFO"
type LogHeader struct {
	APIVersion string            `json:"api_version"`
	Levels     map[string]string `json:"levels"`
	LineIndex  int               `json:"line_index"`
}
