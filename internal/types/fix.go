package types

import "time"

// FixStatus tracks a Fix through backup/apply/test/rollback.
type FixStatus string

const (
	FixGenerating FixStatus = "generating"
	FixReady      FixStatus = "ready"
	FixApproved   FixStatus = "approved"
	FixApplying   FixStatus = "applying"
	FixTesting    FixStatus = "testing"
	FixDeployed   FixStatus = "deployed"
	FixFailed     FixStatus = "failed"
	FixRolledBack FixStatus = "rolled_back"
	FixRejected   FixStatus = "rejected"
)

// Fix is a concrete source patch proposed for a specific Proposal.
type Fix struct {
	ID          string    `json:"id"`
	ProposalID  string    `json:"proposalId"`
	Skill       string    `json:"skill"`
	Status      FixStatus `json:"status"`
	SourceFile  string    `json:"sourceFile"`
	OriginalCode string   `json:"originalCode"`
	FixedCode   string    `json:"fixedCode"`
	Diff        string    `json:"diff"`
	Explanation string    `json:"explanation"`
	TestResults string    `json:"testResults,omitempty"`
	BackupPath  string    `json:"backupPath,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	ApprovedAt  *time.Time `json:"approvedAt,omitempty"`
	DeployedAt  *time.Time `json:"deployedAt,omitempty"`
	RejectedAt  *time.Time `json:"rejectedAt,omitempty"`

	RollbackReason string `json:"rollbackReason,omitempty"`
}

// MetricsSnapshot is one periodic summary appended by an analysis run.
type MetricsSnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	InsightCount  int       `json:"insightCount"`
	ProposalCount int       `json:"proposalCount"`
	ErrorRate     float64   `json:"errorRate,omitempty"`
	TotalRouted   int       `json:"totalRouted,omitempty"`
	MissCount     int       `json:"missCount,omitempty"`
}

// Trend describes the direction of the last few MetricsSnapshots.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDegrading Trend = "degrading"
	TrendStable    Trend = "stable"
)
