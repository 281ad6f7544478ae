package improvement

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lokoweb3/skillbot/internal/types"
)

func TestSnapshotMetrics_DerivesErrorRateAndRoutedCounts(t *testing.T) {
	l := newTestLoop(t, Config{})
	_, err := l.logger.Capture(types.CapturedError{Skill: "reader", Err: errors.New("boom")})
	require.NoError(t, err)
	require.NoError(t, l.logger.RecordSuccess("reader", "", 10, nil))

	require.NoError(t, l.snapshotMetrics(nil, 30))

	snapshots := l.Metrics()
	require.Len(t, snapshots, 1)
	require.InDelta(t, 0.5, snapshots[0].ErrorRate, 0.001)
}

func TestSnapshotMetrics_RingBoundedAtMax(t *testing.T) {
	l := newTestLoop(t, Config{})
	for i := 0; i < MaxMetricsHistory+5; i++ {
		require.NoError(t, l.snapshotMetrics(nil, 30))
	}
	require.Len(t, l.Metrics(), MaxMetricsHistory)
}

func TestTrend_ImprovingWhenErrorRateDrops(t *testing.T) {
	l := newTestLoop(t, Config{})
	l.mu.Lock()
	l.metrics = []types.MetricsSnapshot{
		{ErrorRate: 1.0},
		{ErrorRate: 0.5},
	}
	l.mu.Unlock()
	require.Equal(t, types.TrendImproving, l.Trend())
}

func TestTrend_DegradingWhenErrorRateRises(t *testing.T) {
	l := newTestLoop(t, Config{})
	l.mu.Lock()
	l.metrics = []types.MetricsSnapshot{
		{ErrorRate: 0.2},
		{ErrorRate: 0.3},
	}
	l.mu.Unlock()
	require.Equal(t, types.TrendDegrading, l.Trend())
}

func TestTrend_StableWithinBand(t *testing.T) {
	l := newTestLoop(t, Config{})
	l.mu.Lock()
	l.metrics = []types.MetricsSnapshot{
		{ErrorRate: 0.5},
		{ErrorRate: 0.55},
	}
	l.mu.Unlock()
	require.Equal(t, types.TrendStable, l.Trend())
}

func TestTrend_OnlyConsidersLastFourSnapshots(t *testing.T) {
	l := newTestLoop(t, Config{})
	l.mu.Lock()
	l.metrics = []types.MetricsSnapshot{
		{ErrorRate: 1.0}, // outside the 4-window, ignored
		{ErrorRate: 0.5},
		{ErrorRate: 0.5},
		{ErrorRate: 0.5},
		{ErrorRate: 0.5},
	}
	l.mu.Unlock()
	require.Equal(t, types.TrendStable, l.Trend())
}

func TestCorrections_ReturnsDefensiveCopy(t *testing.T) {
	l := newTestLoop(t, Config{})
	_, err := l.RecordCorrection("reader", nil, nil, "bad output", nil)
	require.NoError(t, err)

	snap := l.Corrections()
	snap[0].Reason = "mutated"

	require.Equal(t, "bad output", l.Corrections()[0].Reason)
}
