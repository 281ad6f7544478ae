// Package errorlog captures structured outcome records for every skill
// execution, classifies and fingerprints failures, counts recurrences,
// and serves typed queries over the resulting day files.
//
// The on-disk persistence idiom — marshal the whole in-memory state,
// write it through a temp-free os.WriteFile, tolerate a missing file on
// first load — is lifted directly from the teacher's cost.Tracker
// (internal/cost/budget.go persistState/loadState).
package errorlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lokoweb3/skillbot/internal/types"
)

// DefaultThreshold is the post-increment occurrence count that, once
// strictly exceeded, fires the threshold callback.
const DefaultThreshold = 2

// criticalCallbackRateLimit caps how often OnCritical fires; a storm of
// identical critical errors should produce one notification, not one
// per capture.
const criticalCallbackRateLimit = rate.Limit(1) // one per second

// Config configures a Logger.
type Config struct {
	DataDir            string
	RecurringThreshold int // default DefaultThreshold

	OnCritical  func(rec types.OutcomeRecord)
	OnThreshold func(rec types.OutcomeRecord, count int)
}

// Logger is the sole owner of errors/YYYY-MM-DD.json and
// errors/_occurrences.json.
type Logger struct {
	cfg Config

	mu            sync.Mutex
	occurrences   map[string]int
	criticalLimit *rate.Limiter
}

// New constructs a Logger, loading any existing fingerprint counter
// from disk.
func New(cfg Config) (*Logger, error) {
	if cfg.RecurringThreshold <= 0 {
		cfg.RecurringThreshold = DefaultThreshold
	}
	l := &Logger{
		cfg:           cfg,
		occurrences:   make(map[string]int),
		criticalLimit: rate.NewLimiter(criticalCallbackRateLimit, 1),
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("errorlog: create data dir: %w", err)
	}
	if err := l.loadOccurrences(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Logger) occurrencesPath() string {
	return filepath.Join(l.cfg.DataDir, "_occurrences.json")
}

func (l *Logger) dayFilePath(t time.Time) string {
	return filepath.Join(l.cfg.DataDir, t.UTC().Format("2006-01-02")+".json")
}

func (l *Logger) loadOccurrences() error {
	data, err := os.ReadFile(l.occurrencesPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("errorlog: read occurrences: %w", err)
	}
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("errorlog: unmarshal occurrences: %w", err)
	}
	l.occurrences = m
	return nil
}

// persistOccurrences must be called with l.mu held.
func (l *Logger) persistOccurrences() error {
	data, err := json.MarshalIndent(l.occurrences, "", "  ")
	if err != nil {
		return fmt.Errorf("errorlog: marshal occurrences: %w", err)
	}
	if err := os.WriteFile(l.occurrencesPath(), data, 0644); err != nil {
		return fmt.Errorf("errorlog: write occurrences: %w", err)
	}
	return nil
}

func truncateSummary(v interface{}, limit int) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	s := string(data)
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

// Capture builds, fingerprints, and persists an error OutcomeRecord.
func (l *Logger) Capture(ce types.CapturedError) (types.OutcomeRecord, error) {
	name, message := errorNameAndMessage(ce.Err)
	stack := stackOf(ce.Err)
	classification := Classify(name, message)

	fp := Fingerprint(stack)
	severity := InferSeverity(ce.Skill, classification, ce.Severity)

	rec := types.OutcomeRecord{
		ID:              types.NewID(),
		Kind:            types.KindError,
		Timestamp:       time.Now().UTC(),
		Classification:  classification,
		Severity:        severity,
		Skill:           ce.Skill,
		Agent:           ce.Agent,
		Message:         message,
		Name:            name,
		Stack:           stack,
		Fingerprint:     fp,
		InputSummary:    truncateSummary(ce.Input, 500),
		Metadata:        ce.Metadata,
	}

	l.mu.Lock()
	l.occurrences[fp]++
	count := l.occurrences[fp]
	rec.OccurrenceCount = count
	if err := l.appendRecord(rec); err != nil {
		l.mu.Unlock()
		return rec, err
	}
	if err := l.persistOccurrences(); err != nil {
		l.mu.Unlock()
		return rec, err
	}
	l.mu.Unlock()

	if rec.Severity == types.SeverityCritical {
		slog.Warn("critical error captured", "skill", rec.Skill, "fingerprint", fp, "classification", classification)
		if l.cfg.OnCritical != nil && l.criticalLimit.Allow() {
			l.cfg.OnCritical(rec)
		}
	}
	if count > l.cfg.RecurringThreshold {
		slog.Debug("error recurring past threshold", "fingerprint", fp, "count", count, "skill", rec.Skill)
		if l.cfg.OnThreshold != nil {
			l.cfg.OnThreshold(rec, count)
		}
	}

	return rec, nil
}

// appendRecord must be called with l.mu held.
func (l *Logger) appendRecord(rec types.OutcomeRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("errorlog: marshal record: %w", err)
	}
	f, err := os.OpenFile(l.dayFilePath(rec.Timestamp), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("errorlog: open day file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("errorlog: append record: %w", err)
	}
	return nil
}

// RecordSuccess appends a success OutcomeRecord.
func (l *Logger) RecordSuccess(skill, agent string, durationMs int64, input interface{}) error {
	rec := types.OutcomeRecord{
		ID:           types.NewID(),
		Kind:         types.KindSuccess,
		Timestamp:    time.Now().UTC(),
		Skill:        skill,
		Agent:        agent,
		DurationMs:   durationMs,
		InputSummary: truncateSummary(input, 500),
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendRecord(rec)
}

// WrappedResult is the outcome of WrapExecute.
type WrappedResult struct {
	OK     bool
	Result interface{}
	Err    error
	Entry  types.OutcomeRecord
}

// WrapExecute times fn, recording a success or error OutcomeRecord.
func (l *Logger) WrapExecute(skill, agent string, fn func() (interface{}, error), input interface{}, metadata map[string]interface{}) WrappedResult {
	start := time.Now()
	result, err := fn()
	duration := time.Since(start).Milliseconds()

	if err == nil {
		if recErr := l.RecordSuccess(skill, agent, duration, input); recErr != nil {
			return WrappedResult{OK: true, Result: result, Err: recErr}
		}
		return WrappedResult{OK: true, Result: result}
	}

	entry, capErr := l.Capture(types.CapturedError{
		Skill:    skill,
		Agent:    agent,
		Err:      err,
		Input:    input,
		Metadata: metadata,
	})
	if capErr != nil {
		return WrappedResult{OK: false, Err: capErr}
	}
	return WrappedResult{OK: false, Err: err, Entry: entry}
}

// QueryFilter narrows a Query call.
type QueryFilter struct {
	Skill          string
	Classification string
	Fingerprint    string
	MinOccurrences int
	Days           int // default 7
}

// Query scans the last N day-files and returns matching records.
func (l *Logger) Query(f QueryFilter) ([]types.OutcomeRecord, error) {
	days := f.Days
	if days <= 0 {
		days = 7
	}

	var out []types.OutcomeRecord
	now := time.Now().UTC()
	for i := 0; i < days; i++ {
		day := now.AddDate(0, 0, -i)
		path := l.dayFilePath(day)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("errorlog: read day file: %w", err)
		}
		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var rec types.OutcomeRecord
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				continue // malformed lines are silently skipped
			}
			if matchesFilter(rec, f) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func matchesFilter(rec types.OutcomeRecord, f QueryFilter) bool {
	if f.Classification != "" {
		if rec.Kind != types.KindError {
			return false
		}
		if rec.Classification != f.Classification {
			return false
		}
	}
	if f.Skill != "" && rec.Skill != f.Skill {
		return false
	}
	if f.Fingerprint != "" && rec.Fingerprint != f.Fingerprint {
		return false
	}
	if f.MinOccurrences > 0 && rec.OccurrenceCount < f.MinOccurrences {
		return false
	}
	return true
}

// RecurringEntry pairs a fingerprint's count with its most recent record.
type RecurringEntry struct {
	Fingerprint string               `json:"fingerprint"`
	Count       int                  `json:"count"`
	Latest      types.OutcomeRecord  `json:"latest"`
}

// RecurringErrors returns the top-K fingerprints by count, each
// annotated with its most recent matching record within the lookback.
func (l *Logger) RecurringErrors(topK, days int) ([]RecurringEntry, error) {
	l.mu.Lock()
	counts := make(map[string]int, len(l.occurrences))
	for fp, c := range l.occurrences {
		counts[fp] = c
	}
	l.mu.Unlock()

	records, err := l.Query(QueryFilter{Days: days})
	if err != nil {
		return nil, err
	}
	latest := make(map[string]types.OutcomeRecord)
	for _, rec := range records {
		if rec.Kind != types.KindError || rec.Fingerprint == "" {
			continue
		}
		if cur, ok := latest[rec.Fingerprint]; !ok || rec.Timestamp.After(cur.Timestamp) {
			latest[rec.Fingerprint] = rec
		}
	}

	entries := make([]RecurringEntry, 0, len(counts))
	for fp, count := range counts {
		if count <= 0 {
			continue
		}
		entries = append(entries, RecurringEntry{Fingerprint: fp, Count: count, Latest: latest[fp]})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Fingerprint < entries[j].Fingerprint
	})
	if topK > 0 && len(entries) > topK {
		entries = entries[:topK]
	}
	return entries, nil
}

// RecordFix appends a fix_note record for fingerprint and clears it
// from the occurrence counter so a subsequent recurrence re-escalates
// from zero.
func (l *Logger) RecordFix(fingerprint, skill, description string) error {
	rec := types.OutcomeRecord{
		ID:              types.NewID(),
		Kind:            types.KindFixNote,
		Timestamp:       time.Now().UTC(),
		Skill:           skill,
		Fingerprint:     fingerprint,
		FixDescription:  description,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.appendRecord(rec); err != nil {
		return err
	}
	delete(l.occurrences, fingerprint)
	return l.persistOccurrences()
}

// OccurrenceCount returns the current count for a fingerprint (0 if
// unseen or cleared by a fix).
func (l *Logger) OccurrenceCount(fingerprint string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.occurrences[fingerprint]
}

// Close is a no-op; the logger owns no timers or background
// goroutines, only flush-on-write files.
func (l *Logger) Close() error { return nil }
