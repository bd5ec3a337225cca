package apexlog

import (
	"regexp"
	"strings"

	"github.com/SteelMorgan/apex-log-checker/internal/domain"
)

// headerPattern matches the debug level line at the top of a log:
// 59.0 APEX_CODE,FINEST;APEX_PROFILING,INFO;CALLOUT,INFO;DB,INFO
var headerPattern = regexp.MustCompile(`^(\d+\.\d+)\s+([A-Za-z_]+,[A-Za-z]+(?:;[A-Za-z_]+,[A-Za-z]+)*);?\s*$`)

// headerScanLimit is how many leading lines may hold the header
const headerScanLimit = 3

// findHeader looks for the debug level line among the first lines of the log
func findHeader(lines []string) *domain.LogHeader {
	for i := 0; i < len(lines) && i < headerScanLimit; i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if h := parseHeader(line); h != nil {
			h.LineIndex = i
			return h
		}
	}
	return nil
}

func parseHeader(line string) *domain.LogHeader {
	m := headerPattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	header := &domain.LogHeader{
		APIVersion: m[1],
		Levels:     make(map[string]string),
	}
	for _, pair := range strings.Split(m[2], ";") {
		category, level, ok := strings.Cut(pair, ",")
		if !ok {
			continue
		}
		header.Levels[category] = level
	}
	return header
}

// describeHeader renders a header for the flat view detail column
func describeHeader(h *domain.LogHeader, line string) string {
	// keep the category order from the line itself
	m := headerPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "API " + h.APIVersion
	}
	pairs := strings.Split(m[2], ";")
	parts := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		parts = append(parts, strings.Replace(pair, ",", "=", 1))
	}
	return "API " + h.APIVersion + ": " + strings.Join(parts, ", ")
}
