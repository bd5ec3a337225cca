package apexlog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/SteelMorgan/apex-log-checker/internal/domain"
)

// DefaultNamespace is used for rows that appear before any LIMIT_USAGE_FOR_NS line
const DefaultNamespace = "(default)"

// metricRowPattern matches "  Number of SOQL queries: 3 out of 100"
// Rows close to the limit carry a trailing "******* CLOSE TO LIMIT" suffix.
var metricRowPattern = regexp.MustCompile(`^\s*([^:]+?)\s*:\s*(\d+)\s+out\s+of\s+(\d+)\b`)

// LimitAggregator collects the rows of one CUMULATIVE_LIMIT_USAGE block.
// It keeps every metric, including zero usage; suppression happens only in
// the human summary.
type LimitAggregator struct {
	active    bool
	namespace string
	records   []*domain.LimitUsageRecord
	byNS      map[string]*domain.LimitUsageRecord
	skipped   int
}

// NewLimitAggregator creates an idle aggregator
func NewLimitAggregator() *LimitAggregator {
	return &LimitAggregator{}
}

// Active reports whether a block is being collected
func (a *LimitAggregator) Active() bool {
	return a.active
}

// Skipped returns the number of malformed rows skipped in the current block
func (a *LimitAggregator) Skipped() int {
	return a.skipped
}

// Begin starts a block. A second Begin before End keeps collecting into the
// same block.
func (a *LimitAggregator) Begin() {
	if a.active {
		return
	}
	a.active = true
	a.namespace = DefaultNamespace
	a.records = nil
	a.byNS = make(map[string]*domain.LimitUsageRecord)
	a.skipped = 0
}

// Namespace switches the namespace subsequent rows belong to
func (a *LimitAggregator) Namespace(ns string) {
	if !a.active {
		return
	}
	ns = strings.TrimSpace(ns)
	if ns == "" {
		ns = DefaultNamespace
	}
	a.namespace = ns
	a.record(ns)
}

// Row consumes one metric row. Malformed rows are skipped and reported as
// false without aborting the block.
func (a *LimitAggregator) Row(line string) bool {
	if !a.active {
		return false
	}
	name, used, total, err := ParseMetricRow(line)
	if err != nil {
		a.skipped++
		return false
	}

	rec := a.record(a.namespace)
	m, seen := rec.Metrics[name]
	if !seen {
		rec.Order = append(rec.Order, name)
	}
	m.Used = used
	m.Total = total
	m.Seen++
	rec.Metrics[name] = m
	return true
}

// End closes the block and returns one record per namespace in the order
// namespaces were first seen. Returns nil when no block is active.
func (a *LimitAggregator) End() []domain.LimitUsageRecord {
	if !a.active {
		return nil
	}
	out := make([]domain.LimitUsageRecord, 0, len(a.records))
	for _, r := range a.records {
		out = append(out, *r)
	}
	a.active = false
	a.records = nil
	a.byNS = nil
	return out
}

func (a *LimitAggregator) record(ns string) *domain.LimitUsageRecord {
	if r, ok := a.byNS[ns]; ok {
		return r
	}
	r := &domain.LimitUsageRecord{
		Namespace: ns,
		Metrics:   make(map[string]domain.MetricUsage),
	}
	a.byNS[ns] = r
	a.records = append(a.records, r)
	return r
}

// ParseMetricRow parses "<metric name>: <used> out of <total>"
func ParseMetricRow(line string) (string, int, int, error) {
	m := metricRowPattern.FindStringSubmatch(line)
	if m == nil {
		return "", 0, 0, fmt.Errorf("invalid metric row: %q", strings.TrimSpace(line))
	}
	used, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid used value: %w", err)
	}
	total, err := strconv.Atoi(m[3])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid total value: %w", err)
	}
	return normalizeMetricName(m[1]), used, total, nil
}

func normalizeMetricName(name string) string {
	name = strings.TrimSpace(name)
	return strings.TrimPrefix(name, "Number of ")
}

// LimitSummary renders records for the flat view, e.g.
// "(default): SOQL queries: 3/100, DML statements: 1/150"
// Metrics with zero usage are omitted.
func LimitSummary(records []domain.LimitUsageRecord) string {
	if len(records) == 0 {
		return "No limit usage reported"
	}
	parts := make([]string, 0, len(records))
	for _, r := range records {
		names := r.NonZero()
		if len(names) == 0 {
			parts = append(parts, r.Namespace+": no usage")
			continue
		}
		metrics := make([]string, 0, len(names))
		for _, name := range names {
			m := r.Metrics[name]
			metrics = append(metrics, fmt.Sprintf("%s: %d/%d", name, m.Used, m.Total))
		}
		parts = append(parts, r.Namespace+": "+strings.Join(metrics, ", "))
	}
	return strings.Join(parts, "; ")
}
