// Package autofix materializes a proposal into a concrete source
// patch, applies it under file-backup discipline, runs the skill's
// test, and rolls back on failure.
//
// The apply pipeline's exec.CommandContext-with-timeout test runner
// follows the teacher's gates.Runner.runTestGate
// (internal/gates/gates.go); the LLM-response parsing follows
// ai/json_parser.go's code-fence extraction idiom.
package autofix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lokoweb3/skillbot/internal/errorlog"
	"github.com/lokoweb3/skillbot/internal/eventbus"
	"github.com/lokoweb3/skillbot/internal/types"
)

// DefaultTestTimeout is the hard ceiling on a skill's test subprocess.
const DefaultTestTimeout = 30 * time.Second

// Config configures an Engine.
type Config struct {
	DataDir     string
	SkillsDir   string
	Oracle      Oracle // optional; nil falls back to deterministic templates
	TestTimeout time.Duration
}

// Engine is the sole owner of autofix-data/fixes.json and
// autofix-data/backups/.
type Engine struct {
	cfg    Config
	logger *errorlog.Logger
	bus    *eventbus.Bus

	mu   sync.Mutex
	fixs []types.Fix
}

// New constructs an Engine, loading any persisted fixes.
func New(cfg Config, logger *errorlog.Logger, bus *eventbus.Bus) (*Engine, error) {
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = DefaultTestTimeout
	}
	e := &Engine{cfg: cfg, logger: logger, bus: bus}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("autofix: create data dir: %w", err)
	}
	if err := os.MkdirAll(e.backupsDir(), 0755); err != nil {
		return nil, fmt.Errorf("autofix: create backups dir: %w", err)
	}
	if err := e.load(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) fixesPath() string { return filepath.Join(e.cfg.DataDir, "fixes.json") }
func (e *Engine) backupsDir() string { return filepath.Join(e.cfg.DataDir, "backups") }

func (e *Engine) load() error {
	data, err := os.ReadFile(e.fixesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("autofix: read fixes: %w", err)
	}
	return json.Unmarshal(data, &e.fixs)
}

// persist must be called with e.mu held.
func (e *Engine) persist() error {
	data, err := json.MarshalIndent(e.fixs, "", "  ")
	if err != nil {
		return fmt.Errorf("autofix: marshal fixes: %w", err)
	}
	return os.WriteFile(e.fixesPath(), data, 0644)
}

// GenerateInput carries the context GenerateFix needs to localize and
// synthesize a patch.
type GenerateInput struct {
	Proposal         *types.Proposal
	ErrorRecord      types.OutcomeRecord
	RecentCorrections []types.Correction
}

// GenerateFix localizes source for the proposal's skill, synthesizes a
// patch via the oracle (if configured) or the deterministic template
// table, and stores the resulting Fix in "ready" status.
func (e *Engine) GenerateFix(in GenerateInput) (*types.Fix, error) {
	e.bus.Emit("fix-generating", map[string]interface{}{"proposalId": in.Proposal.ID})

	sourceFile, err := Localize(in.ErrorRecord.Stack, e.cfg.SkillsDir, in.Proposal.Skill)
	if err != nil {
		e.bus.Emit("fix-failed", map[string]interface{}{"proposalId": in.Proposal.ID, "reason": err.Error()})
		return nil, fmt.Errorf("autofix: localize: %w", err)
	}

	sourceBytes, err := os.ReadFile(sourceFile)
	if err != nil {
		e.bus.Emit("fix-failed", map[string]interface{}{"proposalId": in.Proposal.ID, "reason": err.Error()})
		return nil, fmt.Errorf("autofix: read source: %w", err)
	}
	source := string(sourceBytes)

	var fixedCode, explanation string
	if e.cfg.Oracle != nil {
		prompt := buildSynthesisPrompt(in, source)
		response, err := e.cfg.Oracle(context.Background(), prompt)
		if err != nil {
			e.bus.Emit("fix-failed", map[string]interface{}{"proposalId": in.Proposal.ID, "reason": err.Error()})
			return nil, fmt.Errorf("autofix: oracle call: %w", err)
		}
		result, err := ParseOracleResponse(response)
		if err != nil {
			e.bus.Emit("fix-failed", map[string]interface{}{"proposalId": in.Proposal.ID, "reason": err.Error()})
			return nil, fmt.Errorf("autofix: parse oracle response: %w", err)
		}
		fixedCode, explanation = result.FixedCode, result.Explanation
	} else {
		stackLine := parseStackLine(in.ErrorRecord.Stack)
		fixedCode, explanation, err = ApplyTemplate(source, in.ErrorRecord.Classification, in.ErrorRecord.Message, stackLine)
		if err != nil {
			e.bus.Emit("fix-failed", map[string]interface{}{"proposalId": in.Proposal.ID, "reason": err.Error()})
			return nil, fmt.Errorf("autofix: template synthesis: %w", err)
		}
	}

	fix := types.Fix{
		ID:           types.NewID(),
		ProposalID:   in.Proposal.ID,
		Skill:        in.Proposal.Skill,
		Status:       types.FixReady,
		SourceFile:   sourceFile,
		OriginalCode: source,
		FixedCode:    fixedCode,
		Diff:         Diff(source, fixedCode),
		Explanation:  explanation,
		Fingerprint:  in.ErrorRecord.Fingerprint,
		CreatedAt:    time.Now().UTC(),
	}

	e.mu.Lock()
	e.fixs = append(e.fixs, fix)
	err = e.persist()
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.bus.Emit("fix-ready", fix)
	return &fix, nil
}

func buildSynthesisPrompt(in GenerateInput, source string) string {
	var b strings.Builder
	b.WriteString("You are fixing a bug in a skill handler.\n\n")
	fmt.Fprintf(&b, "Issue: %s\n", in.Proposal.Description)
	fmt.Fprintf(&b, "Error classification: %s\n", in.ErrorRecord.Classification)
	fmt.Fprintf(&b, "Error message: %s\n", in.ErrorRecord.Message)
	fmt.Fprintf(&b, "Occurrences: %d\n", in.ErrorRecord.OccurrenceCount)
	fmt.Fprintf(&b, "Stack:\n%s\n", in.ErrorRecord.Stack)
	fmt.Fprintf(&b, "Input summary: %s\n\n", in.ErrorRecord.InputSummary)

	if len(in.RecentCorrections) > 0 {
		b.WriteString("Recent corrections for this skill:\n")
		for _, c := range in.RecentCorrections {
			fmt.Fprintf(&b, "- %s\n", c.Reason)
		}
		b.WriteString("\n")
	}

	b.WriteString("Source code:\n```\n")
	b.WriteString(source)
	b.WriteString("\n```\n\n")
	b.WriteString("Rules: return only the complete fixed file, make the minimum change necessary, introduce no new dependencies.\n")
	b.WriteString("Respond with EXPLANATION: followed by a short explanation, then a fenced code block containing the complete fixed file.\n")
	return b.String()
}

// ApproveFix flips a fix to approved. It does not apply it.
func (e *Engine) ApproveFix(id string) error {
	return e.transition(id, types.FixReady, types.FixApproved, func(f *types.Fix) {
		now := time.Now().UTC()
		f.ApprovedAt = &now
	}, "fix-approved")
}

// RejectFix flips a fix to rejected.
func (e *Engine) RejectFix(id string) error {
	return e.transition(id, types.FixReady, types.FixRejected, func(f *types.Fix) {
		now := time.Now().UTC()
		f.RejectedAt = &now
	}, "fix-rejected")
}

func (e *Engine) transition(id string, from, to types.FixStatus, mutate func(*types.Fix), event string) error {
	e.mu.Lock()
	var f *types.Fix
	for i := range e.fixs {
		if e.fixs[i].ID == id {
			f = &e.fixs[i]
			break
		}
	}
	if f == nil {
		e.mu.Unlock()
		return fmt.Errorf("autofix: unknown fix %s", id)
	}
	if f.Status != from {
		e.mu.Unlock()
		return fmt.Errorf("autofix: fix %s is %s, expected %s", id, f.Status, from)
	}
	f.Status = to
	mutate(f)
	snapshot := *f
	err := e.persist()
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.bus.Emit(event, snapshot)
	return nil
}

// MarkAppliedFunc is called by ApplyFix on a successful deploy so the
// originating proposal can be flipped to applied without the engine
// importing the improvement package (would create a cycle).
type MarkAppliedFunc func(proposalID, notes string) error

// ApplyFix runs the backup -> overwrite -> test -> deploy|rollback
// pipeline for an approved fix.
func (e *Engine) ApplyFix(id string, markApplied MarkAppliedFunc) error {
	e.mu.Lock()
	var f *types.Fix
	for i := range e.fixs {
		if e.fixs[i].ID == id {
			f = &e.fixs[i]
			break
		}
	}
	if f == nil {
		e.mu.Unlock()
		return fmt.Errorf("autofix: unknown fix %s", id)
	}
	if f.Status != types.FixApproved {
		e.mu.Unlock()
		return fmt.Errorf("autofix: fix %s is %s, expected approved", id, f.Status)
	}
	f.Status = types.FixApplying
	e.mu.Unlock()

	backupPath := filepath.Join(e.backupsDir(), fmt.Sprintf("%s.%d.bak", filepath.Base(f.SourceFile), time.Now().UnixMilli()))
	if err := copyFile(f.SourceFile, backupPath); err != nil {
		e.failFix(f, fmt.Sprintf("backup failed: %v", err))
		return err
	}

	e.mu.Lock()
	f.BackupPath = backupPath
	e.persist()
	e.mu.Unlock()

	if err := os.WriteFile(f.SourceFile, []byte(f.FixedCode), 0644); err != nil {
		e.failFix(f, fmt.Sprintf("overwrite failed: %v", err))
		return err
	}

	e.mu.Lock()
	f.Status = types.FixTesting
	e.persist()
	e.mu.Unlock()
	e.bus.Emit("fix-testing", *f)

	testFile := locateTestFile(e.cfg.SkillsDir, f.Skill)
	passed, output := true, "no test file found; treated as pass"
	if testFile != "" {
		passed, output = e.runTest(testFile)
	}

	e.mu.Lock()
	f.TestResults = output
	e.mu.Unlock()

	if passed {
		e.mu.Lock()
		f.Status = types.FixDeployed
		now := time.Now().UTC()
		f.DeployedAt = &now
		e.persist()
		e.mu.Unlock()

		slog.Info("fix deployed", "fixId", f.ID, "skill", f.Skill, "sourceFile", f.SourceFile)

		if f.Fingerprint != "" {
			_ = e.logger.RecordFix(f.Fingerprint, f.Skill, f.Explanation)
		}
		if markApplied != nil {
			_ = markApplied(f.ProposalID, "auto-fix deployed")
		}
		e.bus.Emit("fix-deployed", *f)
		e.bus.Emit("pipeline-complete", map[string]interface{}{"fixId": f.ID, "status": f.Status})
		return nil
	}

	if err := copyFile(backupPath, f.SourceFile); err != nil {
		e.failFix(f, fmt.Sprintf("rollback failed: %v", err))
		return err
	}

	e.mu.Lock()
	f.Status = types.FixRolledBack
	f.RollbackReason = "test failure: " + output
	e.persist()
	e.mu.Unlock()

	slog.Warn("fix rolled back", "fixId", f.ID, "skill", f.Skill, "reason", f.RollbackReason)
	e.bus.Emit("fix-rolled-back", *f)
	e.bus.Emit("pipeline-complete", map[string]interface{}{"fixId": f.ID, "status": f.Status})
	return nil
}

func (e *Engine) failFix(f *types.Fix, reason string) {
	e.mu.Lock()
	f.Status = types.FixFailed
	f.RollbackReason = reason
	e.persist()
	e.mu.Unlock()
	slog.Warn("fix pipeline failed", "fixId", f.ID, "skill", f.Skill, "reason", reason)
	e.bus.Emit("fix-failed", *f)
}

func (e *Engine) runTest(testFile string) (bool, string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.TestTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "node", testFile)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	_ = cmd.Run()

	output := out.String()
	if ctx.Err() != nil {
		return false, output + "\n(test run canceled: timeout)"
	}

	lower := strings.ToLower(output)
	if strings.Contains(lower, "failed") && !strings.Contains(lower, "0 failed") {
		return false, output
	}
	return true, output
}

func locateTestFile(skillsDir, skill string) string {
	candidates := []string{
		filepath.Join(skillsDir, skill, "test.js"),
		filepath.Join(skillsDir, skill, "tests", "test.js"),
		filepath.Join(skillsDir, "x1-"+skill, "test.js"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

// Fixes returns a snapshot of the stored fix list.
func (e *Engine) Fixes() []types.Fix {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.Fix(nil), e.fixs...)
}

// Close is a no-op; the engine owns no timers.
func (e *Engine) Close() error { return nil }
