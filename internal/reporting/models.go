package reporting

import "time"

// Stats is the aggregated view of the negotiation registry served at /stats.
// Computed on demand from in-memory state; nothing here is persisted.
type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`

	CompletedToday int `json:"completedToday"`

	// AverageDurationSeconds covers completed negotiations with a reported
	// call duration.
	AverageDurationSeconds int `json:"averageDurationSeconds"`

	// SuccessRate is completed over all terminal negotiations, 0..1.
	// Zero when nothing has finished yet.
	SuccessRate float64 `json:"successRate"`

	ByCategory map[string]int `json:"byCategory"`

	GeneratedAt time.Time `json:"generatedAt"`
}
