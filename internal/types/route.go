package types

import (
	"context"
	"regexp"
)

// Risk is the declared risk tier of a route, driving gate policy lookup.
type Risk string

const (
	RiskNone     Risk = "none"
	RiskLow      Risk = "low"
	RiskMedium   Risk = "medium"
	RiskHigh     Risk = "high"
	RiskCritical Risk = "critical"
)

// Priority tiers. Lower sorts earlier.
const (
	PriorityCritical = 0
	PriorityHigh     = 1
	PriorityNormal   = 2
	PriorityLow      = 3
	PriorityFallback = 99
)

// MatchResult is what a route's pattern match produced.
type MatchResult struct {
	Route   *Route
	Pattern *regexp.Regexp
	Groups  []string
}

// Handler executes a skill given its regex match and the dispatch context.
type Handler func(ctx context.Context, match *MatchResult, input interface{}) (interface{}, error)

// PreCheck is an ordered predicate evaluated before a handler runs.
type PreCheck func(ctx context.Context, input interface{}) (pass bool, reason string)

// Route declaratively binds a skill name to patterns, a handler, and
// the risk/priority metadata the router and gates consult.
type Route struct {
	Name        string
	Patterns    []*regexp.Regexp
	Aliases     []string
	Handler     Handler
	Agent       string
	Priority    int
	Risk        Risk
	AutoExecute bool
	PreChecks   []PreCheck
	Enabled     bool
}

// DefaultAutoExecute returns the spec's default for AutoExecute given a
// risk tier: false for high/critical, true otherwise.
func DefaultAutoExecute(risk Risk) bool {
	return risk != RiskHigh && risk != RiskCritical
}

// ExecutionStats aggregates per-route execution counters.
type ExecutionStats struct {
	Total           int
	Successes       int
	Failures        int
	TotalDurationMs int64
}

// UnmatchedEntry records one message that matched no route.
type UnmatchedEntry struct {
	Message   string
	Timestamp string
}

// RouteAnalytics is the router's per-process counters.
type RouteAnalytics struct {
	Hits       map[string]int
	Executions map[string]*ExecutionStats
	Unmatched  []UnmatchedEntry // bounded ring, most recent last
}

// NewRouteAnalytics returns an initialized, empty RouteAnalytics.
func NewRouteAnalytics() *RouteAnalytics {
	return &RouteAnalytics{
		Hits:       make(map[string]int),
		Executions: make(map[string]*ExecutionStats),
	}
}

// RouteSummary is the queryable per-route summary computed on demand.
type RouteSummary struct {
	Name          string
	Hits          int
	Executions    ExecutionStats
	SuccessRate   float64 // percentage, one decimal
	AvgDurationMs int64
}

// Outcome is what WorkflowRouter.Route returns for a dispatched message.
type Outcome struct {
	Matched  bool
	Route    string
	Result   interface{}
	Error    *OutcomeRecord
	Rejected *PreCheckFailure
}

// PreCheckFailure is reported when a middleware or pre-check aborts a
// routed call before the handler runs, or when no route matches and no
// fallback is installed.
type PreCheckFailure struct {
	Stage  string // "match", "middleware" or "precheck"
	Reason string
}
