package improvement

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lokoweb3/skillbot/internal/errorlog"
	"github.com/lokoweb3/skillbot/internal/eventbus"
	"github.com/lokoweb3/skillbot/internal/gates"
	"github.com/lokoweb3/skillbot/internal/router"
	"github.com/lokoweb3/skillbot/internal/types"
)

func newTestLoop(t *testing.T, cfg Config) *Loop {
	t.Helper()
	bus := eventbus.New()
	logger, err := errorlog.New(errorlog.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	rtr := router.New(logger, bus)
	g, err := gates.New(gates.Config{DataDir: t.TempDir()}, bus)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	cfg.DataDir = t.TempDir()
	l, err := New(cfg, logger, rtr, g, bus)
	require.NoError(t, err)
	return l
}

func TestRecordCorrection_CrossesThresholdCreatesProposal(t *testing.T) {
	l := newTestLoop(t, Config{CorrectionThreshold: 2})

	var newProposals []interface{}
	// subscribe after construction since New doesn't take a bus hook here
	l.bus.On("new-proposal", func(e eventbus.Event) { newProposals = append(newProposals, e.Payload) })
	_, err := l.RecordCorrection("reader", nil, nil, "wrong format", nil)
	require.NoError(t, err)
	require.Empty(t, l.ListProposals(types.ProposalFilter{}))

	_, err = l.RecordCorrection("reader", nil, nil, "Wrong Format", nil)
	require.NoError(t, err)

	proposals := l.ListProposals(types.ProposalFilter{})
	require.Len(t, proposals, 1)
	require.Equal(t, types.InsightCorrectionPattern, proposals[0].InsightType)
	require.Len(t, newProposals, 1)
}

func TestAddProposalIfAbsent_UniquenessByInsightTypeAndSkill(t *testing.T) {
	l := newTestLoop(t, Config{})

	added1 := l.addProposalIfAbsent(types.Proposal{
		ID: types.NewID(), InsightType: types.InsightErrorPattern, Skill: "reader", Status: types.ProposalPending,
	}, false)
	added2 := l.addProposalIfAbsent(types.Proposal{
		ID: types.NewID(), InsightType: types.InsightErrorPattern, Skill: "reader", Status: types.ProposalPending,
	}, false)

	require.True(t, added1)
	require.False(t, added2, "a second pending proposal for the same (insightType, skill) pair must be suppressed")
	require.Len(t, l.ListProposals(types.ProposalFilter{}), 1)
}

func TestAddProposalIfAbsent_AllowsAfterPriorResolved(t *testing.T) {
	l := newTestLoop(t, Config{})
	p := types.Proposal{ID: types.NewID(), InsightType: types.InsightErrorPattern, Skill: "reader", Status: types.ProposalPending}
	require.True(t, l.addProposalIfAbsent(p, false))
	require.NoError(t, l.Approve(p.ID))

	added := l.addProposalIfAbsent(types.Proposal{
		ID: types.NewID(), InsightType: types.InsightErrorPattern, Skill: "reader", Status: types.ProposalPending,
	}, false)
	require.True(t, added, "once the prior proposal is no longer pending, a fresh one may be added")
}

func TestApproveReject_OnlyPendingTransitions(t *testing.T) {
	l := newTestLoop(t, Config{})
	p := types.Proposal{ID: types.NewID(), InsightType: types.InsightErrorPattern, Skill: "reader", Status: types.ProposalPending}
	require.True(t, l.addProposalIfAbsent(p, false))

	require.NoError(t, l.Approve(p.ID))
	require.Error(t, l.Approve(p.ID), "approving an already-approved proposal must fail")
	require.Error(t, l.Reject(p.ID, "too late"))
}

func TestListProposals_SortsBySeverity(t *testing.T) {
	l := newTestLoop(t, Config{})
	l.addProposalIfAbsent(types.Proposal{ID: types.NewID(), InsightType: types.InsightPerformance, Skill: "a", Severity: types.SeverityLow, Status: types.ProposalPending}, false)
	l.addProposalIfAbsent(types.Proposal{ID: types.NewID(), InsightType: types.InsightErrorPattern, Skill: "b", Severity: types.SeverityHigh, Status: types.ProposalPending}, false)
	l.addProposalIfAbsent(types.Proposal{ID: types.NewID(), InsightType: types.InsightRiskAdjustment, Skill: "c", Severity: types.SeverityMedium, Status: types.ProposalPending}, false)

	out := l.ListProposals(types.ProposalFilter{})
	require.Len(t, out, 3)
	require.Equal(t, types.SeverityHigh, out[0].Severity)
	require.Equal(t, types.SeverityMedium, out[1].Severity)
	require.Equal(t, types.SeverityLow, out[2].Severity)
}

func TestTrend_StableWithFewerThanTwoSnapshots(t *testing.T) {
	l := newTestLoop(t, Config{})
	require.Equal(t, types.TrendStable, l.Trend())
}

func TestRecordFeedback_NegativeBecomesCorrection(t *testing.T) {
	l := newTestLoop(t, Config{})
	c, err := l.RecordFeedback(types.Feedback{Skill: "reader", Rating: types.RatingDown, Comment: "bad output"})
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, "reader", c.Skill)
}

func TestRecordFeedback_PositiveIsIgnored(t *testing.T) {
	l := newTestLoop(t, Config{})
	c, err := l.RecordFeedback(types.Feedback{Skill: "reader", Rating: 5})
	require.NoError(t, err)
	require.Nil(t, c)
	require.Empty(t, l.Corrections())
}
