package types

import "time"

// OutcomeKind distinguishes the four shapes an OutcomeRecord can take.
type OutcomeKind string

const (
	KindError        OutcomeKind = "error"
	KindSuccess      OutcomeKind = "success"
	KindFixNote      OutcomeKind = "fix_note"
	KindGateDecision OutcomeKind = "gate_decision"
)

// Classification is the deterministic error taxonomy produced by the
// error logger's classification cascade.
type Classification string

const (
	ClassSyntax     Classification = "syntax"
	ClassLogic      Classification = "logic"
	ClassAPI        Classification = "api"
	ClassDependency Classification = "dependency"
	ClassTimeout    Classification = "timeout"
	ClassPermission Classification = "permission"
	ClassValidation Classification = "validation"
	ClassNetwork    Classification = "network"
	ClassUnknown    Classification = "unknown"
)

// Severity ranks how urgently an error needs attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// OutcomeRecord is one captured execution attempt: either a failure, a
// success, a fix note closing out a fingerprint, or an audited gate
// decision. Only the fields relevant to Kind are populated; the struct
// is intentionally wide rather than a tagged union, matching the flat
// newline-delimited JSON records spec'd for errors/YYYY-MM-DD.json.
type OutcomeRecord struct {
	ID        string      `json:"id"`
	Kind      OutcomeKind `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`

	// Error fields
	Classification  Classification         `json:"classification,omitempty"`
	Severity        Severity               `json:"severity,omitempty"`
	Skill           string                 `json:"skill,omitempty"`
	Agent           string                 `json:"agent,omitempty"`
	Message         string                 `json:"message,omitempty"`
	Name            string                 `json:"name,omitempty"`
	Stack           string                 `json:"stack,omitempty"`
	Fingerprint     string                 `json:"fingerprint,omitempty"`
	InputSummary    string                 `json:"input_summary,omitempty"`
	OccurrenceCount int                    `json:"occurrence_count,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`

	// Success fields
	DurationMs int64 `json:"duration_ms,omitempty"`

	// fix_note fields
	FixDescription string `json:"fix_description,omitempty"`

	// gate_decision fields
	GateID string `json:"gate_id,omitempty"`
	Status string `json:"status,omitempty"`
}

// CapturedError is the structured input the error logger's Capture
// operation builds an OutcomeRecord from.
type CapturedError struct {
	Skill    string
	Agent    string
	Err      error
	Input    interface{}
	Metadata map[string]interface{}
	// Severity, when non-empty, overrides the inferred severity.
	Severity Severity
}
