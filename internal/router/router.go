// Package router holds an ordered, prioritized list of skills and turns
// an incoming message into a typed outcome, wrapping every handler
// invocation through the error logger and fanning lifecycle events out
// over an eventbus.Bus.
//
// The pipeline shape (hit → pre-middleware → pre-checks → handler →
// analytics → post-middleware → event) generalizes the teacher's
// gates.Runner.RunAll ordering (internal/gates/gates.go), which
// likewise threads a fixed stage sequence through a single entry point
// with a progress/event side-channel.
package router

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lokoweb3/skillbot/internal/errorlog"
	"github.com/lokoweb3/skillbot/internal/eventbus"
	"github.com/lokoweb3/skillbot/internal/types"
)

// Middleware runs before (pre) or after (post) a matched handler. A pre
// middleware returning a non-nil error aborts the pipeline as a
// pre-check failure; a post middleware's error is logged but never
// aborts anything (the call has already completed).
type Middleware func(ctx context.Context, m *types.MatchResult, input interface{}) error

// Router is the sole owner of RouteAnalytics.
type Router struct {
	logger *errorlog.Logger
	bus    *eventbus.Bus

	mu       sync.RWMutex
	routes   []*types.Route
	pre      []Middleware
	post     []Middleware
	fallback types.Handler

	analytics *types.RouteAnalytics
}

// New constructs a Router bound to a logger and an eventbus.
func New(logger *errorlog.Logger, bus *eventbus.Bus) *Router {
	return &Router{
		logger:    logger,
		bus:       bus,
		analytics: types.NewRouteAnalytics(),
	}
}

// AddRoute appends a route and re-sorts the route list by priority
// (stable, so equal-priority routes keep insertion order).
func (r *Router) AddRoute(route *types.Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
	sort.SliceStable(r.routes, func(i, j int) bool {
		return r.routes[i].Priority < r.routes[j].Priority
	})
}

// SetEnabled toggles a route by name; this is the only mutation a
// route undergoes after being added.
func (r *Router) SetEnabled(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rt := range r.routes {
		if rt.Name == name {
			rt.Enabled = enabled
			return
		}
	}
}

// Use registers pre middleware, run in registration order before the
// handler.
func (r *Router) Use(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pre = append(r.pre, mw)
}

// UsePost registers post middleware, run in registration order after
// the handler completes.
func (r *Router) UsePost(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.post = append(r.post, mw)
}

// SetFallback installs the handler invoked only when no route matches.
func (r *Router) SetFallback(h types.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
}

func (r *Router) match(message string) (*types.Route, *types.MatchResult) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, route := range r.routes {
		if !route.Enabled {
			continue
		}
		for _, pat := range route.Patterns {
			if groups := pat.FindStringSubmatch(message); groups != nil {
				return route, &types.MatchResult{Route: route, Pattern: pat, Groups: groups}
			}
		}
	}
	return nil, nil
}

func severityForRisk(risk types.Risk) types.Severity {
	switch risk {
	case types.RiskCritical:
		return types.SeverityCritical
	case types.RiskHigh:
		return types.SeverityHigh
	case types.RiskMedium:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}

// Route matches message against the route list and drives it through
// the full execution pipeline.
func (r *Router) Route(ctx context.Context, message string, input interface{}) types.Outcome {
	message = strings.TrimSpace(message)

	route, match := r.match(message)
	if route == nil {
		r.recordUnmatched(message)
		r.bus.Emit("no-match", map[string]interface{}{"message": message})

		if r.fallback != nil {
			result, _ := r.fallback(ctx, &types.MatchResult{}, input)
			return types.Outcome{Matched: false, Result: result}
		}
		return types.Outcome{Matched: false, Rejected: &types.PreCheckFailure{Stage: "match", Reason: "No matching route"}}
	}

	r.recordHit(route.Name)
	r.bus.Emit("match", map[string]interface{}{"route": route.Name, "message": message})

	for _, mw := range r.preMiddleware() {
		if err := mw(ctx, match, input); err != nil {
			if _, capErr := r.logger.Capture(types.CapturedError{
				Skill: "middleware-pre",
				Err:   err,
				Input: input,
			}); capErr != nil {
				r.bus.Emit("error", map[string]interface{}{"route": route.Name, "stage": "middleware-pre", "err": capErr})
			}
			return types.Outcome{Matched: true, Route: route.Name, Rejected: &types.PreCheckFailure{Stage: "middleware", Reason: err.Error()}}
		}
	}

	for _, check := range route.PreChecks {
		ok, reason := check(ctx, input)
		if !ok {
			return types.Outcome{Matched: true, Route: route.Name, Rejected: &types.PreCheckFailure{Stage: "precheck", Reason: reason}}
		}
	}

	severity := severityForRisk(route.Risk)
	start := time.Now()
	wrapped := r.logger.WrapExecute(route.Name, route.Agent, func() (interface{}, error) {
		return route.Handler(ctx, match, input)
	}, input, map[string]interface{}{"severityHint": severity})
	duration := time.Since(start).Milliseconds()

	r.recordExecution(route.Name, wrapped.OK, duration)

	for _, mw := range r.postMiddleware() {
		if err := mw(ctx, match, input); err != nil {
			if _, capErr := r.logger.Capture(types.CapturedError{
				Skill: "middleware-post",
				Err:   err,
				Input: input,
			}); capErr != nil {
				r.bus.Emit("error", map[string]interface{}{"route": route.Name, "stage": "middleware-post", "err": capErr})
			}
		}
	}

	outcome := types.Outcome{Matched: true, Route: route.Name, Result: wrapped.Result}
	if wrapped.OK {
		r.bus.Emit("success", map[string]interface{}{"route": route.Name, "result": wrapped.Result})
	} else {
		entry := wrapped.Entry
		outcome.Error = &entry
		r.bus.Emit("error", map[string]interface{}{"route": route.Name, "entry": entry})
	}
	return outcome
}

func (r *Router) preMiddleware() []Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Middleware(nil), r.pre...)
}

func (r *Router) postMiddleware() []Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Middleware(nil), r.post...)
}

func (r *Router) recordHit(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analytics.Hits[name]++
}

func (r *Router) recordExecution(name string, ok bool, durationMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := r.analytics.Executions[name]
	if stats == nil {
		stats = &types.ExecutionStats{}
		r.analytics.Executions[name] = stats
	}
	stats.Total++
	if ok {
		stats.Successes++
	} else {
		stats.Failures++
	}
	stats.TotalDurationMs += durationMs
}

func (r *Router) recordUnmatched(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	truncated := message
	if len(truncated) > 100 {
		truncated = truncated[:100]
	}
	r.analytics.Unmatched = append(r.analytics.Unmatched, types.UnmatchedEntry{
		Message:   truncated,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if len(r.analytics.Unmatched) > 50 {
		r.analytics.Unmatched = r.analytics.Unmatched[len(r.analytics.Unmatched)-50:]
	}
}

// ParallelDispatch invokes each named route's handler concurrently
// under the logger wrapping, returning result and error maps keyed by
// route name. Unknown names produce a per-name error without aborting
// the others.
func (r *Router) ParallelDispatch(ctx context.Context, names []string, input interface{}) (map[string]interface{}, map[string]error) {
	results := make(map[string]interface{}, len(names))
	errs := make(map[string]error, len(names))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		g.Go(func() error {
			r.mu.RLock()
			var route *types.Route
			for _, rt := range r.routes {
				if rt.Name == name {
					route = rt
					break
				}
			}
			r.mu.RUnlock()

			if route == nil {
				mu.Lock()
				errs[name] = fmt.Errorf("unknown route: %s", name)
				mu.Unlock()
				return nil
			}

			match := &types.MatchResult{Route: route}
			wrapped := r.logger.WrapExecute(route.Name, route.Agent, func() (interface{}, error) {
				return route.Handler(gctx, match, input)
			}, input, nil)

			mu.Lock()
			if wrapped.OK {
				results[name] = wrapped.Result
			} else {
				errs[name] = wrapped.Err
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}

// Analytics computes per-route summaries and the last five unmatched
// messages.
func (r *Router) Analytics() ([]types.RouteSummary, []types.UnmatchedEntry) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]types.RouteSummary, 0, len(r.routes))
	for _, route := range r.routes {
		stats := r.analytics.Executions[route.Name]
		s := types.RouteSummary{Name: route.Name, Hits: r.analytics.Hits[route.Name]}
		if stats != nil {
			s.Executions = *stats
			if stats.Total > 0 {
				s.SuccessRate = roundToTenth(100 * float64(stats.Successes) / float64(stats.Total))
				s.AvgDurationMs = stats.TotalDurationMs / int64(stats.Total)
			}
		}
		summaries = append(summaries, s)
	}

	lastFive := r.analytics.Unmatched
	if len(lastFive) > 5 {
		lastFive = lastFive[len(lastFive)-5:]
	}
	return summaries, append([]types.UnmatchedEntry(nil), lastFive...)
}

func roundToTenth(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// Routes returns a snapshot of the declared route list (for the
// improvement loop's zero-execution scan).
func (r *Router) Routes() []*types.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*types.Route(nil), r.routes...)
}

// RawAnalytics exposes the underlying RouteAnalytics for collaborators
// that need the full unmatched ring, not just the last five.
func (r *Router) RawAnalytics() *types.RouteAnalytics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := *r.analytics
	return &cp
}
