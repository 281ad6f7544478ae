package improvement

import (
	"log/slog"
	"time"

	"github.com/lokoweb3/skillbot/internal/errorlog"
	"github.com/lokoweb3/skillbot/internal/types"
)

// RunAnalysis freshly rebuilds the insight list over the given
// lookback window, generates proposals from it, appends a metrics
// snapshot, and emits analysis-complete.
func (l *Loop) RunAnalysis(lookbackDays int) ([]types.Insight, error) {
	var insights []types.Insight

	errorInsights, err := l.errorPatternInsights(lookbackDays)
	if err != nil {
		return nil, err
	}
	insights = append(insights, errorInsights...)

	skillRateInsights, err := l.skillErrorRateInsights(lookbackDays)
	if err != nil {
		return nil, err
	}
	insights = append(insights, skillRateInsights...)

	insights = append(insights, l.correctionPatternInsights(lookbackDays)...)

	gateInsights, err := l.gateDrivenInsights(lookbackDays)
	if err != nil {
		return nil, err
	}
	insights = append(insights, gateInsights...)

	insights = append(insights, l.routePerformanceInsights()...)
	insights = append(insights, l.unmatchedClusterInsights()...)

	l.mu.Lock()
	l.insights = insights
	if err := l.persist("insights.json", l.insights); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.mu.Unlock()

	proposed := l.generateProposals(insights)

	if err := l.snapshotMetrics(insights, lookbackDays); err != nil {
		return nil, err
	}

	slog.Info("analysis cycle complete", "insights", len(insights), "newProposals", proposed, "lookbackDays", lookbackDays)
	l.bus.Emit("analysis-complete", map[string]interface{}{"insightCount": len(insights)})
	return insights, nil
}

// 1. Error patterns.
func (l *Loop) errorPatternInsights(days int) ([]types.Insight, error) {
	recurring, err := l.logger.RecurringErrors(0, days)
	if err != nil {
		return nil, err
	}

	var out []types.Insight
	for _, entry := range recurring {
		if entry.Count < l.cfg.ErrorThreshold {
			continue
		}
		severity := types.SeverityMedium
		if entry.Count > 10 {
			severity = types.SeverityHigh
		}
		out = append(out, types.Insight{
			ID:        types.NewID(),
			Type:      types.InsightErrorPattern,
			Severity:  severity,
			Skill:     entry.Latest.Skill,
			Message:   "Recurring error fingerprint " + entry.Fingerprint,
			Data:      map[string]interface{}{"fingerprint": entry.Fingerprint, "count": entry.Count},
			Timestamp: time.Now().UTC(),
		})
	}
	return out, nil
}

// 2. Skill error rates.
func (l *Loop) skillErrorRateInsights(days int) ([]types.Insight, error) {
	records, err := l.logger.Query(errorlog.QueryFilter{Days: days})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, rec := range records {
		if rec.Kind == types.KindError {
			counts[rec.Skill]++
		}
	}

	var out []types.Insight
	skills := sortedKeys(counts)
	for _, skill := range skills {
		if counts[skill] > 5 {
			out = append(out, types.Insight{
				ID:        types.NewID(),
				Type:      types.InsightPerformance,
				Severity:  types.SeverityMedium,
				Skill:     skill,
				Message:   "Elevated error rate for skill " + skill,
				Data:      map[string]interface{}{"errorCount": counts[skill]},
				Timestamp: time.Now().UTC(),
			})
		}
	}
	return out, nil
}

// 3. Correction patterns.
func (l *Loop) correctionPatternInsights(days int) []types.Insight {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	l.mu.Lock()
	groups := make(map[string][]types.Correction)
	for _, c := range l.corrections {
		if c.Timestamp.Before(cutoff) {
			continue
		}
		groups[c.PatternHash] = append(groups[c.PatternHash], c)
	}
	l.mu.Unlock()

	var out []types.Insight
	hashes := sortedKeysCorrection(groups)
	for _, hash := range hashes {
		group := groups[hash]
		if len(group) < l.cfg.CorrectionThreshold {
			continue
		}
		var reasons []string
		for _, c := range group {
			reasons = append(reasons, canonicalCorrectionReason(c.Reason))
		}
		out = append(out, types.Insight{
			ID:        types.NewID(),
			Type:      types.InsightCorrectionPattern,
			Severity:  types.SeverityHigh,
			Skill:     group[0].Skill,
			Message:   "Repeated correction pattern for " + group[0].Skill,
			Data:      map[string]interface{}{"patternHash": hash, "commonReason": modeOf(reasons), "count": len(group)},
			Timestamp: time.Now().UTC(),
		})
	}
	return out
}

// 4. Gate-driven risk adjustments.
func (l *Loop) gateDrivenInsights(days int) ([]types.Insight, error) {
	stats, candidates, err := l.gates.Statistics(days)
	if err != nil {
		return nil, err
	}

	var out []types.Insight
	for _, cand := range candidates {
		out = append(out, types.Insight{
			ID:        types.NewID(),
			Type:      types.InsightRiskAdjustment,
			Severity:  types.SeverityLow,
			Skill:     cand.Skill,
			Message:   "Consider lowering risk tier for " + cand.Skill,
			Data:      map[string]interface{}{"resolutions": cand.Resolutions, "direction": "lower"},
			Timestamp: time.Now().UTC(),
		})
	}

	skills := make([]string, 0, len(stats.PerSkill))
	for skill := range stats.PerSkill {
		skills = append(skills, skill)
	}
	sortStrings(skills)
	for _, skill := range skills {
		counts := stats.PerSkill[skill]
		if counts[types.GateRejected] >= l.cfg.RejectionThreshold {
			out = append(out, types.Insight{
				ID:        types.NewID(),
				Type:      types.InsightRiskAdjustment,
				Severity:  types.SeverityMedium,
				Skill:     skill,
				Message:   "Consider raising risk tier for " + skill,
				Data:      map[string]interface{}{"rejections": counts[types.GateRejected], "direction": "raise"},
				Timestamp: time.Now().UTC(),
			})
		}
	}

	var totalExpired, totalResolved int
	for _, counts := range stats.PerGate {
		for status, n := range counts {
			totalResolved += n
			if status == types.GateExpired {
				totalExpired += n
			}
		}
	}
	if totalResolved > 0 && float64(totalExpired)/float64(totalResolved) > 0.3 {
		out = append(out, types.Insight{
			ID:        types.NewID(),
			Type:      types.InsightSkillUpdate,
			Severity:  types.SeverityLow,
			Message:   "More than 30% of plan gates are expiring; consider longer timeouts",
			Data:      map[string]interface{}{"expired": totalExpired, "total": totalResolved},
			Timestamp: time.Now().UTC(),
		})
	}

	return out, nil
}

// 5. Route performance.
func (l *Loop) routePerformanceInsights() []types.Insight {
	summaries, _ := l.router.Analytics()
	routes := l.router.Routes()

	declared := make(map[string]bool, len(routes))
	for _, r := range routes {
		declared[r.Name] = false
	}

	var out []types.Insight
	for _, s := range summaries {
		if _, ok := declared[s.Name]; ok {
			declared[s.Name] = s.Executions.Total > 0
		}
		if s.Executions.Total > 5 && s.SuccessRate < 80 {
			out = append(out, types.Insight{
				ID:        types.NewID(),
				Type:      types.InsightPerformance,
				Severity:  types.SeverityMedium,
				Skill:     s.Name,
				Message:   "Route " + s.Name + " has a success rate below 80%",
				Data:      map[string]interface{}{"successRate": s.SuccessRate, "executions": s.Executions},
				Timestamp: time.Now().UTC(),
			})
		}
		if s.AvgDurationMs > 5000 {
			out = append(out, types.Insight{
				ID:        types.NewID(),
				Type:      types.InsightPerformance,
				Severity:  types.SeverityLow,
				Skill:     s.Name,
				Message:   "Route " + s.Name + " averages over 5s per execution",
				Data:      map[string]interface{}{"avgDurationMs": s.AvgDurationMs},
				Timestamp: time.Now().UTC(),
			})
		}
	}

	names := make([]string, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	sortStrings(names)
	for _, name := range names {
		if !declared[name] {
			out = append(out, types.Insight{
				ID:        types.NewID(),
				Type:      types.InsightUnusedRoute,
				Severity:  types.SeverityLow,
				Skill:     name,
				Message:   "Route " + name + " has zero recorded executions",
				Timestamp: time.Now().UTC(),
			})
		}
	}
	return out
}

// 6. Unmatched-message clusters.
func (l *Loop) unmatchedClusterInsights() []types.Insight {
	analytics := l.router.RawAnalytics()
	if len(analytics.Unmatched) < l.cfg.MissThreshold {
		return nil
	}

	messages := make([]string, len(analytics.Unmatched))
	for i, u := range analytics.Unmatched {
		messages[i] = u.Message
	}

	clusters := clusterMessages(messages)
	var out []types.Insight
	for _, c := range clusters {
		if len(c.Examples) < l.cfg.ClusterMinimum {
			continue
		}
		out = append(out, types.Insight{
			ID:       types.NewID(),
			Type:     types.InsightNewRoute,
			Severity: types.SeverityMedium,
			Message:  "Cluster of unmatched messages resembling " + c.Representative,
			Data: map[string]interface{}{
				"representative":   c.Representative,
				"examples":         c.Examples,
				"suggestedPattern": suggestedPattern(c),
			},
			Timestamp: time.Now().UTC(),
		})
	}
	return out
}

