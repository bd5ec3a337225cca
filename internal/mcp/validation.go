package mcp

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// maxLogBytes caps request bodies; debug logs are truncated by the platform
// well below this
const maxLogBytes = 64 << 20

// ValidationError represents a validation error with instructions
type ValidationError struct {
	Field        string   `json:"field"`
	Message      string   `json:"message"`
	Instructions []string `json:"instructions,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateLog checks that the raw log text was sent
func ValidateLog(text string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{
			Field:   "log",
			Message: "log is required",
			Instructions: []string{
				"1. Send the full debug log text in the 'log' field",
				"2. Keep line breaks; every line is classified separately",
			},
		}
	}
	return nil
}

// ValidateCursor checks 0 <= cursor <= total
func ValidateCursor(cursor, total int) error {
	if cursor < 0 || cursor > total {
		return &ValidationError{
			Field:   "cursor",
			Message: fmt.Sprintf("cursor %d is outside [0, %d]", cursor, total),
			Instructions: []string{
				"Cursor K means the first K lines are applied",
				"Use 0 for the initial state and the line count for the final state",
			},
		}
	}
	return nil
}

// ValidateLogID checks that a log id has the format produced by parse_log
func ValidateLogID(id string) error {
	if id == "" {
		return &ValidationError{
			Field:   "log_id",
			Message: "log_id or log is required",
			Instructions: []string{
				"1. Call /tools/parse_log and take 'log_id' from the response",
				"2. Or send the log text itself in the 'log' field",
			},
		}
	}
	if _, err := uuid.Parse(id); err != nil {
		return &ValidationError{
			Field:   "log_id",
			Message: "Invalid log_id format. Must be a valid UUID.",
			Instructions: []string{
				"Use the exact 'log_id' value returned by /tools/parse_log",
				"Example: '1b4e28ba-2fa1-51d2-883f-0016d3cca427'",
			},
		}
	}
	return nil
}

// ValidateBookmarkName checks a bookmark name
func ValidateBookmarkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{
			Field:   "name",
			Message: "name is required",
		}
	}
	return nil
}
