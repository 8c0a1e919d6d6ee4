package models

import "time"

// Record is a single event delivered by the ingestion host. Timestamp carries
// nanosecond resolution; Fields holds whatever numeric measurements the event
// exposes, keyed by field name.
type Record struct {
	TimestampNs int64              `json:"timestamp_ns"`
	Fields      map[string]float64 `json:"fields"`
}

// Timestamp returns the record time truncated to seconds.
func (r Record) Timestamp() int64 {
	return r.TimestampNs / int64(time.Second)
}

// Annotation is a timestamped textual marker attached to a series, used to
// explain anomalies on rendered output.
type Annotation struct {
	TimestampNs int64  `json:"timestamp_ns"`
	Text        string `json:"text"`
}

// Alert is an anomaly alert produced by a detection strategy.
type Alert struct {
	ID          string    `json:"id"`
	SeriesTitle string    `json:"series_title"`
	Strategy    string    `json:"strategy"`
	Message     string    `json:"message"`
	Score       float64   `json:"score"`
	CreatedAt   time.Time `json:"created_at"`
}

// AggregationHint tells downstream renderers how a column was produced. It is
// metadata only; the window buffer does not enforce it.
type AggregationHint string

const (
	AggregationSum  AggregationHint = "sum"
	AggregationNone AggregationHint = "none"
)

// ColumnMeta describes one column of a window buffer.
type ColumnMeta struct {
	Name string          `json:"name"`
	Unit string          `json:"unit"`
	Hint AggregationHint `json:"aggregation"`
}
