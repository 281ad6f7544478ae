package improvement

import (
	"fmt"
	"time"

	"github.com/lokoweb3/skillbot/internal/types"
)

// addProposalIfAbsent enforces the uniqueness invariant: at most one
// pending proposal per (insightType, skill), or per patternHash when
// byPatternHash is true (the correction path). Returns true if the
// proposal was added.
func (l *Loop) addProposalIfAbsent(p types.Proposal, byPatternHash bool) bool {
	l.mu.Lock()
	for _, existing := range l.proposals {
		if existing.Status != types.ProposalPending {
			continue
		}
		if byPatternHash {
			if existing.PatternHash == p.PatternHash && p.PatternHash != "" {
				l.mu.Unlock()
				return false
			}
			continue
		}
		if existing.InsightType == p.InsightType && existing.Skill == p.Skill {
			l.mu.Unlock()
			return false
		}
	}
	l.proposals = append(l.proposals, p)
	err := l.persist("proposals.json", l.proposals)
	l.mu.Unlock()

	if err != nil {
		return false
	}
	l.bus.Emit("new-proposal", p)
	return true
}

// Approve flips a proposal to approved and stamps ApprovedAt.
func (l *Loop) Approve(id string) error {
	return l.transition(id, func(p *types.Proposal) error {
		if p.Status != types.ProposalPending {
			return fmt.Errorf("improvement: proposal %s is not pending", id)
		}
		p.Status = types.ProposalApproved
		now := time.Now().UTC()
		p.ApprovedAt = &now
		return nil
	}, "proposal-approved")
}

// Reject flips a proposal to rejected, stamping RejectedAt and
// recording reason.
func (l *Loop) Reject(id, reason string) error {
	return l.transition(id, func(p *types.Proposal) error {
		if p.Status != types.ProposalPending {
			return fmt.Errorf("improvement: proposal %s is not pending", id)
		}
		p.Status = types.ProposalRejected
		p.RejectionReason = reason
		now := time.Now().UTC()
		p.RejectedAt = &now
		return nil
	}, "proposal-rejected")
}

// MarkApplied flips a proposal to applied, stamping AppliedAt and
// recording notes.
func (l *Loop) MarkApplied(id, notes string) error {
	return l.transition(id, func(p *types.Proposal) error {
		p.Status = types.ProposalApplied
		p.Notes = notes
		now := time.Now().UTC()
		p.AppliedAt = &now
		return nil
	}, "proposal-applied")
}

func (l *Loop) transition(id string, mutate func(*types.Proposal) error, event string) error {
	l.mu.Lock()
	var found *types.Proposal
	for i := range l.proposals {
		if l.proposals[i].ID == id {
			found = &l.proposals[i]
			break
		}
	}
	if found == nil {
		l.mu.Unlock()
		return fmt.Errorf("improvement: unknown proposal %s", id)
	}
	if err := mutate(found); err != nil {
		l.mu.Unlock()
		return err
	}
	snapshot := *found
	err := l.persist("proposals.json", l.proposals)
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.bus.Emit(event, snapshot)
	return nil
}

var severityRank = map[types.Severity]int{
	types.SeverityHigh:     0,
	types.SeverityMedium:   1,
	types.SeverityLow:      2,
	types.Severity(""):     3,
}

// ListProposals applies filter and sorts high -> medium -> low -> unknown.
func (l *Loop) ListProposals(filter types.ProposalFilter) []types.Proposal {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.Proposal, 0, len(l.proposals))
	for _, p := range l.proposals {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Skill != "" && p.Skill != filter.Skill {
			continue
		}
		if filter.Severity != "" && p.Severity != filter.Severity {
			continue
		}
		out = append(out, p)
	}

	rank := func(s types.Severity) int {
		if r, ok := severityRank[s]; ok {
			return r
		}
		return 3
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && rank(out[j].Severity) < rank(out[j-1].Severity); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// generateProposals converts each fresh insight into a proposal,
// skipping any whose (insightType, skill) already has a pending
// proposal. Returns the number of proposals actually added.
func (l *Loop) generateProposals(insights []types.Insight) int {
	added := 0
	for _, ins := range insights {
		action, effort := types.ActionForInsight(ins.Type)
		if l.addProposalIfAbsent(types.Proposal{
			ID:             types.NewID(),
			InsightType:    ins.Type,
			Skill:          ins.Skill,
			Severity:       ins.Severity,
			Status:         types.ProposalPending,
			Action:         action,
			Description:    ins.Message,
			Implementation: implementationHint(ins.Type),
			Effort:         effort,
			Data:           ins.Data,
			CreatedAt:      time.Now().UTC(),
		}, false) {
			added++
		}
	}
	return added
}

func implementationHint(t types.InsightType) string {
	switch t {
	case types.InsightErrorPattern:
		return "Add targeted error handling around the failing call site."
	case types.InsightCorrectionPattern:
		return "Revise the skill's logic to match the corrected behavior."
	case types.InsightRiskAdjustment:
		return "Adjust the route's declared risk tier."
	case types.InsightNewRoute:
		return "Add a new route matching the clustered unmatched messages."
	case types.InsightPerformance:
		return "Profile and optimize the slow or failing path."
	case types.InsightUnusedRoute:
		return "Review whether this route is still needed."
	default:
		return "Needs manual review."
	}
}
