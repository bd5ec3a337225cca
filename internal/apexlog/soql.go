package apexlog

import (
	"regexp"
	"sort"
	"strings"

	"github.com/SteelMorgan/apex-log-checker/internal/domain"
)

// SOQLNormalizer replaces literal values in SOQL so that the same query
// executed with different bind values groups together
type SOQLNormalizer struct {
	stringPattern *regexp.Regexp
	inListPattern *regexp.Regexp
	idPattern     *regexp.Regexp
	datePattern   *regexp.Regexp
	numberPattern *regexp.Regexp
	bindPattern   *regexp.Regexp
	spacePattern  *regexp.Regexp
}

// NewSOQLNormalizer creates a normalizer with compiled patterns
func NewSOQLNormalizer() *SOQLNormalizer {
	return &SOQLNormalizer{
		// 'literal' with escaped quotes
		stringPattern: regexp.MustCompile(`'(?:[^'\\]|\\.)*'`),
		// IN (?, ?, ?) after literal replacement
		inListPattern: regexp.MustCompile(`(?i)\bIN\s*\(\s*\?(?:\s*,\s*\?)*\s*\)`),
		// 15/18 character record ids outside quotes
		idPattern: regexp.MustCompile(`\b[a-zA-Z0-9]{3}[0-9][a-zA-Z0-9]{11}(?:[a-zA-Z0-9]{3})?\b`),
		// 2024-01-31 and 2024-01-31T10:00:00Z
		datePattern:   regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}(?:T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?)?\b`),
		numberPattern: regexp.MustCompile(`\b\d+(?:\.\d+)?\b`),
		// :tmpVar1 bind expressions are already placeholders
		bindPattern:  regexp.MustCompile(`:\s*[A-Za-z_][A-Za-z0-9_.]*`),
		spacePattern: regexp.MustCompile(`\s+`),
	}
}

// Normalize returns the query shape with literals replaced by ?
func (n *SOQLNormalizer) Normalize(query string) string {
	if query == "" {
		return ""
	}
	q := n.stringPattern.ReplaceAllString(query, "?")
	q = n.datePattern.ReplaceAllString(q, "?")
	q = n.idPattern.ReplaceAllString(q, "?")
	q = n.bindPattern.ReplaceAllString(q, ":?")
	q = n.numberPattern.ReplaceAllString(q, "?")
	q = n.inListPattern.ReplaceAllString(q, "IN (?)")
	q = n.spacePattern.ReplaceAllString(q, " ")
	return strings.TrimSpace(q)
}

// SOQLGroup aggregates executions of one normalized query
type SOQLGroup struct {
	Query     string `json:"query"`
	Count     int    `json:"count"`
	Rows      int    `json:"rows"`
	FirstLine int    `json:"first_line"`
}

// SummarizeSOQL groups SOQL begin lines by normalized query text, most
// frequent first; ties keep first appearance order
func SummarizeSOQL(lines []domain.ClassifiedLine) []SOQLGroup {
	n := NewSOQLNormalizer()
	groups := make(map[string]*SOQLGroup)
	var order []*SOQLGroup

	for _, l := range lines {
		if l.Kind != domain.KindSOQLBegin {
			continue
		}
		shape := n.Normalize(l.PrimaryText)
		g, ok := groups[shape]
		if !ok {
			g = &SOQLGroup{Query: shape, FirstLine: l.OriginalIndex}
			groups[shape] = g
			order = append(order, g)
		}
		g.Count++
		if l.RowCount != nil {
			g.Rows += *l.RowCount
		}
	}

	out := make([]SOQLGroup, 0, len(order))
	for _, g := range order {
		out = append(out, *g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}
