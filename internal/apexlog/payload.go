package apexlog

import (
	"bytes"
	"encoding/json"
	"strings"
)

// structuredPayload reports whether a debug message is a JSON object or array
// and returns it pretty-printed. Scalars are not treated as structured.
func structuredPayload(msg string) (string, bool) {
	trimmed := strings.TrimSpace(msg)
	if len(trimmed) < 2 {
		return "", false
	}
	if !(trimmed[0] == '{' && trimmed[len(trimmed)-1] == '}') &&
		!(trimmed[0] == '[' && trimmed[len(trimmed)-1] == ']') {
		return "", false
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(trimmed), "", "  "); err != nil {
		return "", false
	}
	return buf.String(), true
}
