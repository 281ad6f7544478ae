package improvement

import (
	"time"

	"github.com/lokoweb3/skillbot/internal/errorlog"
	"github.com/lokoweb3/skillbot/internal/types"
)

// snapshotMetrics appends a MetricsSnapshot for this analysis cycle,
// bounding the ring to the last MaxMetricsHistory entries.
func (l *Loop) snapshotMetrics(insights []types.Insight, lookbackDays int) error {
	snapshot := types.MetricsSnapshot{
		Timestamp: time.Now().UTC(),
	}

	l.mu.Lock()
	snapshot.InsightCount = len(insights)
	pendingCount := 0
	for _, p := range l.proposals {
		if p.Status == types.ProposalPending {
			pendingCount++
		}
	}
	snapshot.ProposalCount = pendingCount
	l.mu.Unlock()

	if l.logger != nil {
		records, err := l.logger.Query(errorlog.QueryFilter{Days: lookbackDays})
		if err == nil {
			var errCount, successCount int
			for _, rec := range records {
				if rec.Kind == types.KindError {
					errCount++
				} else if rec.Kind == types.KindSuccess {
					successCount++
				}
			}
			total := errCount + successCount
			if total > 0 {
				snapshot.ErrorRate = float64(errCount) / float64(total)
			}
		}
	}
	if l.router != nil {
		analytics := l.router.RawAnalytics()
		total := 0
		for _, n := range analytics.Hits {
			total += n
		}
		snapshot.TotalRouted = total
		snapshot.MissCount = len(analytics.Unmatched)
	}

	l.mu.Lock()
	l.metrics = append(l.metrics, snapshot)
	if len(l.metrics) > MaxMetricsHistory {
		l.metrics = l.metrics[len(l.metrics)-MaxMetricsHistory:]
	}
	err := l.persist("metrics-history.json", l.metrics)
	l.mu.Unlock()
	return err
}

// Trend reports the direction of the last 4 metrics snapshots: if the
// most recent error rate is <=0.8x the earliest it is improving; if
// >=1.2x it is degrading; otherwise stable.
func (l *Loop) Trend() types.Trend {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.metrics)
	if n < 2 {
		return types.TrendStable
	}
	window := l.metrics
	if n > 4 {
		window = l.metrics[n-4:]
	}

	earliest := window[0].ErrorRate
	latest := window[len(window)-1].ErrorRate
	if earliest == 0 {
		return types.TrendStable
	}

	ratio := latest / earliest
	switch {
	case ratio <= 0.8:
		return types.TrendImproving
	case ratio >= 1.2:
		return types.TrendDegrading
	default:
		return types.TrendStable
	}
}

// Metrics returns a snapshot of the metrics ring (most recent last).
func (l *Loop) Metrics() []types.MetricsSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.MetricsSnapshot(nil), l.metrics...)
}

// Corrections returns a snapshot of the stored corrections.
func (l *Loop) Corrections() []types.Correction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.Correction(nil), l.corrections...)
}

// Close is a no-op; the loop owns no timers.
func (l *Loop) Close() error { return nil }
