// Package improvement mines the logger, router analytics, and gate
// statistics, plus explicit user corrections, into typed insights and
// approval-tracked proposals.
//
// Persistence again follows the teacher's cost.Tracker idiom
// (internal/cost/budget.go): whole-state marshal/unmarshal against a
// JSON file per collection, tolerating a missing file on first load.
package improvement

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lokoweb3/skillbot/internal/errorlog"
	"github.com/lokoweb3/skillbot/internal/eventbus"
	"github.com/lokoweb3/skillbot/internal/gates"
	"github.com/lokoweb3/skillbot/internal/router"
	"github.com/lokoweb3/skillbot/internal/types"
)

const (
	DefaultCorrectionThreshold = 3
	DefaultErrorThreshold      = 3
	DefaultRejectionThreshold  = 3
	DefaultMissThreshold       = 5
	DefaultClusterMinimum      = 3
	MaxMetricsHistory          = 90
)

// Config configures a Loop.
type Config struct {
	DataDir             string
	CorrectionThreshold int
	ErrorThreshold      int
	RejectionThreshold  int
	MissThreshold       int
	ClusterMinimum      int
}

// Loop is the sole owner of improvement-data/{corrections,proposals,
// insights,metrics-history}.json.
type Loop struct {
	cfg    Config
	logger *errorlog.Logger
	router *router.Router
	gates  *gates.Gates
	bus    *eventbus.Bus

	mu          sync.Mutex
	corrections []types.Correction
	proposals   []types.Proposal
	insights    []types.Insight
	metrics     []types.MetricsSnapshot
}

// New constructs a Loop, loading any persisted state.
func New(cfg Config, logger *errorlog.Logger, rtr *router.Router, gt *gates.Gates, bus *eventbus.Bus) (*Loop, error) {
	if cfg.CorrectionThreshold <= 0 {
		cfg.CorrectionThreshold = DefaultCorrectionThreshold
	}
	if cfg.ErrorThreshold <= 0 {
		cfg.ErrorThreshold = DefaultErrorThreshold
	}
	if cfg.RejectionThreshold <= 0 {
		cfg.RejectionThreshold = DefaultRejectionThreshold
	}
	if cfg.MissThreshold <= 0 {
		cfg.MissThreshold = DefaultMissThreshold
	}
	if cfg.ClusterMinimum <= 0 {
		cfg.ClusterMinimum = DefaultClusterMinimum
	}

	l := &Loop{cfg: cfg, logger: logger, router: rtr, gates: gt, bus: bus}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("improvement: create data dir: %w", err)
	}
	if err := l.load("corrections.json", &l.corrections); err != nil {
		return nil, err
	}
	if err := l.load("proposals.json", &l.proposals); err != nil {
		return nil, err
	}
	if err := l.load("insights.json", &l.insights); err != nil {
		return nil, err
	}
	if err := l.load("metrics-history.json", &l.metrics); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loop) path(name string) string {
	return filepath.Join(l.cfg.DataDir, name)
}

func (l *Loop) load(name string, out interface{}) error {
	data, err := os.ReadFile(l.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("improvement: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("improvement: unmarshal %s: %w", name, err)
	}
	return nil
}

// persist must be called with l.mu held.
func (l *Loop) persist(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("improvement: marshal %s: %w", name, err)
	}
	if err := os.WriteFile(l.path(name), data, 0644); err != nil {
		return fmt.Errorf("improvement: write %s: %w", name, err)
	}
	return nil
}

// RecordCorrection stores a correction and, if the count sharing its
// patternHash reaches the threshold, immediately creates a
// correction_pattern proposal outside the periodic cycle.
func (l *Loop) RecordCorrection(skill string, original, corrected map[string]interface{}, reason string, context map[string]interface{}) (types.Correction, error) {
	c := types.Correction{
		ID:          types.NewID(),
		Skill:       skill,
		Original:    original,
		Corrected:   corrected,
		Reason:      reason,
		Context:     context,
		Timestamp:   time.Now().UTC(),
		PatternHash: md5_10(skill + canonicalCorrectionReason(reason)),
	}

	l.mu.Lock()
	l.corrections = append(l.corrections, c)
	if err := l.persist("corrections.json", l.corrections); err != nil {
		l.mu.Unlock()
		return c, err
	}

	count := 0
	var mostCommonReason string
	var reasons []string
	for _, cc := range l.corrections {
		if cc.PatternHash == c.PatternHash {
			count++
			reasons = append(reasons, strings.ToLower(strings.TrimSpace(cc.Reason)))
		}
	}
	if count >= l.cfg.CorrectionThreshold {
		mostCommonReason = modeOf(reasons)
	}
	l.mu.Unlock()

	if count >= l.cfg.CorrectionThreshold {
		slog.Info("correction pattern crossed threshold", "skill", skill, "patternHash", c.PatternHash, "count", count)
		l.addProposalIfAbsent(types.Proposal{
			ID:          types.NewID(),
			InsightType: types.InsightCorrectionPattern,
			Skill:       skill,
			Severity:    types.SeverityHigh,
			Status:      types.ProposalPending,
			Action:      types.ActionUpdateSkillLogic,
			Description: fmt.Sprintf("Repeated correction pattern for skill %q", skill),
			Effort:      types.EffortHigh,
			Data:        map[string]interface{}{"commonReason": mostCommonReason, "count": count},
			PatternHash: c.PatternHash,
			CreatedAt:   time.Now().UTC(),
		}, true)
	}

	return c, nil
}

// RecordFeedback translates negative feedback into an anonymous
// correction carrying the supplied comment.
func (l *Loop) RecordFeedback(fb types.Feedback) (*types.Correction, error) {
	if !fb.IsNegative() {
		return nil, nil
	}
	c, err := l.RecordCorrection(fb.Skill, nil, nil, fb.Comment, nil)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func canonicalCorrectionReason(reason string) string {
	return strings.TrimSpace(strings.ToLower(reason))
}

func modeOf(items []string) string {
	counts := make(map[string]int)
	for _, it := range items {
		counts[it]++
	}
	var best string
	bestCount := -1
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > bestCount {
			best = k
			bestCount = counts[k]
		}
	}
	return best
}

func md5_10(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:10]
}
