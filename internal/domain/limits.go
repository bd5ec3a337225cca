package domain

// MetricUsage is one governor limit metric row
type MetricUsage struct {
	Used  int `json:"used"`
	Total int `json:"total"`
	// Seen counts how many rows for this metric were collected in the block
	Seen int `json:"seen"`
}

// LimitUsageRecord holds all metrics reported for one namespace in a
// CUMULATIVE_LIMIT_USAGE block
type LimitUsageRecord struct {
	Namespace string                 `json:"namespace"`
	Metrics   map[string]MetricUsage `json:"metrics"`
	// Order keeps metric names in the order they were reported
	Order []string `json:"order"`
}

// NonZero returns metric names with nonzero usage, in report order
func (r LimitUsageRecord) NonZero() []string {
	names := make([]string, 0, len(r.Order))
	for _, name := range r.Order {
		if r.Metrics[name].Used != 0 {
			names = append(names, name)
		}
	}
	return names
}
