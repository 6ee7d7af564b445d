package domain

import "time"

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is an operator notification for a stock mutation that could not be applied.
type Alert struct {
	ID           string    `json:"id"`
	Severity     Severity  `json:"severity"`
	Operation    string    `json:"operation"`
	OperationKey string    `json:"operation_key,omitempty"`
	Items        []Item    `json:"items"`
	Reason       string    `json:"reason"`
	OccurredAt   time.Time `json:"occurred_at"`
}
