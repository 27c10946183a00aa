package models

// ShiftKind classifies a schema shift between two profiles.
type ShiftKind string

// Schema shift kinds.
const (
	ShiftRemoved     ShiftKind = "removed"
	ShiftAdded       ShiftKind = "added"
	ShiftTypeChanged ShiftKind = "type_changed"
)

// SchemaShift is a structural difference between two profiles of a table.
// PreviousType is empty for added columns and CurrentType for removed ones.
type SchemaShift struct {
	Column       string    `json:"column"`
	Kind         ShiftKind `json:"kind"`
	Description  string    `json:"description"`
	PreviousType string    `json:"previous_type,omitempty"`
	CurrentType  string    `json:"current_type,omitempty"`
}

// Severity grades an anomaly.
type Severity string

// Anomaly severities. SeverityLow is never assigned by threshold detection.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Anomaly is a metric change between two profiles that exceeded its threshold.
// Column is empty for table-level metrics such as row_count.
type Anomaly struct {
	Column        string   `json:"column"`
	Metric        string   `json:"metric"`
	Description   string   `json:"description"`
	Severity      Severity `json:"severity"`
	PreviousValue float64  `json:"previous_value"`
	CurrentValue  float64  `json:"current_value"`
	// Change is in points for percentage metrics and a fraction of the
	// previous value for the rest, matching Threshold.
	Change    float64 `json:"change"`
	Threshold float64 `json:"threshold"`
}
