package apexlog

import (
	"strings"

	"github.com/SteelMorgan/apex-log-checker/internal/domain"
)

// Filter selects lines for the flat view. The zero value keeps everything.
type Filter struct {
	Kinds            []domain.EventKind
	Text             string // case-insensitive substring of text, detail or raw line
	HideUnclassified bool
}

// Empty reports whether the filter keeps every line
func (f Filter) Empty() bool {
	return len(f.Kinds) == 0 && f.Text == "" && !f.HideUnclassified
}

// Match reports whether a line passes the filter
func (f Filter) Match(line domain.ClassifiedLine) bool {
	if f.HideUnclassified && line.Kind == domain.KindUnclassified {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if k == line.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Text != "" {
		needle := strings.ToLower(f.Text)
		if !strings.Contains(strings.ToLower(line.PrimaryText), needle) &&
			!strings.Contains(strings.ToLower(line.SecondaryDetail), needle) &&
			!strings.Contains(strings.ToLower(line.Raw), needle) {
			return false
		}
	}
	return true
}

// Apply returns the matching lines, keeping their original indices
func (f Filter) Apply(lines []domain.ClassifiedLine) []domain.ClassifiedLine {
	if f.Empty() {
		return lines
	}
	out := make([]domain.ClassifiedLine, 0, len(lines))
	for _, l := range lines {
		if f.Match(l) {
			out = append(out, l)
		}
	}
	return out
}

// KindCounts counts lines per kind
func KindCounts(lines []domain.ClassifiedLine) map[domain.EventKind]int {
	counts := make(map[domain.EventKind]int)
	for _, l := range lines {
		counts[l.Kind]++
	}
	return counts
}
