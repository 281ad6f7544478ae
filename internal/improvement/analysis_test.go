package improvement

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lokoweb3/skillbot/internal/types"
)

func TestErrorPatternInsights_OnlyAboveThreshold(t *testing.T) {
	l := newTestLoop(t, Config{ErrorThreshold: 2})

	for i := 0; i < 3; i++ {
		_, err := l.logger.Capture(types.CapturedError{Skill: "reader", Err: errors.New("boom")})
		require.NoError(t, err)
	}

	insights, err := l.errorPatternInsights(30)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	require.Equal(t, types.InsightErrorPattern, insights[0].Type)
	require.Equal(t, "reader", insights[0].Skill)
}

func TestErrorPatternInsights_SeverityEscalatesPastTen(t *testing.T) {
	l := newTestLoop(t, Config{ErrorThreshold: 2})
	for i := 0; i < 11; i++ {
		_, err := l.logger.Capture(types.CapturedError{Skill: "reader", Err: errors.New("boom")})
		require.NoError(t, err)
	}

	insights, err := l.errorPatternInsights(30)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	require.Equal(t, types.SeverityHigh, insights[0].Severity)
}

func TestSkillErrorRateInsights_RequiresMoreThanFive(t *testing.T) {
	l := newTestLoop(t, Config{})
	for i := 0; i < 6; i++ {
		_, err := l.logger.Capture(types.CapturedError{Skill: "writer", Err: errors.New("boom")})
		require.NoError(t, err)
	}

	insights, err := l.skillErrorRateInsights(30)
	require.NoError(t, err)
	require.Len(t, insights, 1)
	require.Equal(t, "writer", insights[0].Skill)
}

func TestSkillErrorRateInsights_FiveIsNotEnough(t *testing.T) {
	l := newTestLoop(t, Config{})
	for i := 0; i < 5; i++ {
		_, err := l.logger.Capture(types.CapturedError{Skill: "writer", Err: errors.New("boom")})
		require.NoError(t, err)
	}

	insights, err := l.skillErrorRateInsights(30)
	require.NoError(t, err)
	require.Empty(t, insights)
}

func TestCorrectionPatternInsights_GroupsByPatternHashAndCommonReason(t *testing.T) {
	l := newTestLoop(t, Config{CorrectionThreshold: 2})
	_, err := l.RecordCorrection("reader", nil, nil, "wrong format", nil)
	require.NoError(t, err)
	_, err = l.RecordCorrection("reader", nil, nil, "  Wrong Format ", nil)
	require.NoError(t, err)

	insights := l.correctionPatternInsights(30)
	require.Len(t, insights, 1)
	require.Equal(t, types.InsightCorrectionPattern, insights[0].Type)
	require.Equal(t, 2, insights[0].Data["count"])
}

func TestCorrectionPatternInsights_BelowThresholdOmitted(t *testing.T) {
	l := newTestLoop(t, Config{CorrectionThreshold: 5})
	_, err := l.RecordCorrection("reader", nil, nil, "wrong format", nil)
	require.NoError(t, err)

	insights := l.correctionPatternInsights(30)
	require.Empty(t, insights)
}

func TestGateDrivenInsights_RejectionThresholdRaisesRiskTier(t *testing.T) {
	l := newTestLoop(t, Config{RejectionThreshold: 2})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		plan := &types.Plan{Description: "write a file", Extra: map[string]interface{}{"i": i}}
		done := make(chan struct{})
		go func() {
			l.gates.PlanGate(ctx, "writer", plan, types.GateContext{Risk: types.RiskHigh})
			close(done)
		}()
		require.Eventually(t, func() bool { return len(l.gates.Pending()) > 0 }, time.Second, 5*time.Millisecond)
		require.True(t, l.gates.Reject(l.gates.Pending()[0].GateID, "denied"))
		<-done
	}

	insights, err := l.gateDrivenInsights(30)
	require.NoError(t, err)

	var found bool
	for _, ins := range insights {
		if ins.Skill == "writer" && ins.Data["direction"] == "raise" {
			found = true
		}
	}
	require.True(t, found, "two rejections at threshold 2 must surface a raise-risk-tier insight")
}

func TestRoutePerformanceInsights_FlagsUnusedRoutes(t *testing.T) {
	l := newTestLoop(t, Config{})
	l.router.AddRoute(&types.Route{
		Name:     "ghost",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`^never-matches-anything$`)},
		Handler:  func(ctx context.Context, m *types.MatchResult, input interface{}) (interface{}, error) { return nil, nil },
		Priority: types.PriorityNormal,
		Enabled:  true,
	})

	insights := l.routePerformanceInsights()
	var found bool
	for _, ins := range insights {
		if ins.Type == types.InsightUnusedRoute && ins.Skill == "ghost" {
			found = true
		}
	}
	require.True(t, found)
}

func TestRoutePerformanceInsights_LowSuccessRateFlagged(t *testing.T) {
	l := newTestLoop(t, Config{})
	l.router.AddRoute(&types.Route{
		Name:     "flaky",
		Patterns: []*regexp.Regexp{regexp.MustCompile(`^go$`)},
		Handler:  func(ctx context.Context, m *types.MatchResult, input interface{}) (interface{}, error) { return nil, errors.New("nope") },
		Priority: types.PriorityNormal,
		Enabled:  true,
	})
	for i := 0; i < 6; i++ {
		l.router.Route(context.Background(), "go", nil)
	}

	insights := l.routePerformanceInsights()
	var found bool
	for _, ins := range insights {
		if ins.Skill == "flaky" && ins.Type == types.InsightPerformance {
			found = true
		}
	}
	require.True(t, found)
}

func TestUnmatchedClusterInsights_BelowMissThresholdOmitted(t *testing.T) {
	l := newTestLoop(t, Config{MissThreshold: 100})
	l.router.Route(context.Background(), "nonsense message one", nil)
	require.Empty(t, l.unmatchedClusterInsights())
}

func TestUnmatchedClusterInsights_ClustersSurfaceNewRoute(t *testing.T) {
	l := newTestLoop(t, Config{MissThreshold: 3, ClusterMinimum: 2})
	for i := 0; i < 3; i++ {
		l.router.Route(context.Background(), "please reset my password now", nil)
	}

	insights := l.unmatchedClusterInsights()
	require.NotEmpty(t, insights)
	require.Equal(t, types.InsightNewRoute, insights[0].Type)
}

func TestRunAnalysis_EmitsSnapshotAndPersists(t *testing.T) {
	l := newTestLoop(t, Config{ErrorThreshold: 1})
	_, err := l.logger.Capture(types.CapturedError{Skill: "reader", Err: errors.New("boom")})
	require.NoError(t, err)
	_, err = l.logger.Capture(types.CapturedError{Skill: "reader", Err: errors.New("boom")})
	require.NoError(t, err)

	insights, err := l.RunAnalysis(30)
	require.NoError(t, err)
	require.NotEmpty(t, insights)
	require.Len(t, l.Metrics(), 1)
}
