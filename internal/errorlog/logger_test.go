package errorlog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lokoweb3/skillbot/internal/types"
)

func newTestLogger(t *testing.T, cfg Config) *Logger {
	t.Helper()
	cfg.DataDir = t.TempDir()
	l, err := New(cfg)
	require.NoError(t, err)
	return l
}

func TestCapture_AssignsFingerprintAndIncrementsCount(t *testing.T) {
	l := newTestLogger(t, Config{})

	err := &WithStack{Err: errors.New("boom"), Trace: "at handler (/app/foo.js:1:1)"}
	rec1, cerr := l.Capture(types.CapturedError{Skill: "reader", Err: err})
	require.NoError(t, cerr)
	require.Equal(t, 1, rec1.OccurrenceCount)

	rec2, cerr := l.Capture(types.CapturedError{Skill: "reader", Err: err})
	require.NoError(t, cerr)
	require.Equal(t, 2, rec2.OccurrenceCount)
	require.Equal(t, rec1.Fingerprint, rec2.Fingerprint)
}

func TestCapture_OnThresholdFiresPastDefault(t *testing.T) {
	var fired []int
	l := newTestLogger(t, Config{
		OnThreshold: func(rec types.OutcomeRecord, count int) { fired = append(fired, count) },
	})

	err := &WithStack{Err: errors.New("boom"), Trace: "at handler (/app/foo.js:1:1)"}
	for i := 0; i < 3; i++ {
		_, cerr := l.Capture(types.CapturedError{Skill: "reader", Err: err})
		require.NoError(t, cerr)
	}
	// DefaultThreshold is 2; the callback fires once count strictly
	// exceeds it, i.e. on the 3rd capture only.
	require.Equal(t, []int{3}, fired)
}

func TestCapture_CriticalSkillTriggersOnCriticalOnce(t *testing.T) {
	var fired int
	l := newTestLogger(t, Config{
		OnCritical: func(rec types.OutcomeRecord) { fired++ },
	})

	err := errors.New("oops")
	for i := 0; i < 5; i++ {
		_, cerr := l.Capture(types.CapturedError{Skill: "deploy-contract", Err: err})
		require.NoError(t, cerr)
	}
	require.Equal(t, 1, fired, "the critical callback must be rate-limited to at most once per second")
}

func TestRecordFix_ClearsOccurrenceCount(t *testing.T) {
	l := newTestLogger(t, Config{})
	err := &WithStack{Err: errors.New("boom"), Trace: "at handler (/app/foo.js:1:1)"}
	rec, cerr := l.Capture(types.CapturedError{Skill: "reader", Err: err})
	require.NoError(t, cerr)
	require.Equal(t, 1, l.OccurrenceCount(rec.Fingerprint))

	require.NoError(t, l.RecordFix(rec.Fingerprint, "reader", "patched null check"))
	require.Equal(t, 0, l.OccurrenceCount(rec.Fingerprint))

	rec2, cerr := l.Capture(types.CapturedError{Skill: "reader", Err: err})
	require.NoError(t, cerr)
	require.Equal(t, 1, rec2.OccurrenceCount, "a fixed fingerprint must re-escalate from zero")
}

func TestQuery_FiltersBySkillAndClassification(t *testing.T) {
	l := newTestLogger(t, Config{})
	require.NoError(t, l.RecordSuccess("reader", "agent1", 10, nil))
	_, cerr := l.Capture(types.CapturedError{Skill: "writer", Err: errors.New("invalid input required")})
	require.NoError(t, cerr)

	recs, err := l.Query(QueryFilter{Skill: "writer"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "writer", recs[0].Skill)

	recs, err = l.Query(QueryFilter{Classification: string(types.ClassValidation)})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, types.ClassValidation, recs[0].Classification)
}

func TestRecurringErrors_SortedByCountDescending(t *testing.T) {
	l := newTestLogger(t, Config{})
	frequent := &WithStack{Err: errors.New("a"), Trace: "at h1 (/app/a.js:1:1)"}
	rare := &WithStack{Err: errors.New("b"), Trace: "at h2 (/app/b.js:1:1)"}

	for i := 0; i < 3; i++ {
		_, cerr := l.Capture(types.CapturedError{Skill: "reader", Err: frequent})
		require.NoError(t, cerr)
	}
	_, cerr := l.Capture(types.CapturedError{Skill: "reader", Err: rare})
	require.NoError(t, cerr)

	entries, err := l.RecurringErrors(0, 7)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 3, entries[0].Count)
	require.Equal(t, 1, entries[1].Count)
}

func TestWrapExecute_RecordsSuccessAndError(t *testing.T) {
	l := newTestLogger(t, Config{})

	okResult := l.WrapExecute("reader", "agent1", func() (interface{}, error) {
		return "done", nil
	}, nil, nil)
	require.True(t, okResult.OK)
	require.Equal(t, "done", okResult.Result)

	failResult := l.WrapExecute("reader", "agent1", func() (interface{}, error) {
		return nil, errors.New("kaboom")
	}, nil, nil)
	require.False(t, failResult.OK)
	require.Equal(t, types.KindError, failResult.Entry.Kind)
}

func TestLoadOccurrences_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	l1, err := New(Config{DataDir: dir})
	require.NoError(t, err)

	errVal := &WithStack{Err: errors.New("boom"), Trace: "at h (/app/x.js:1:1)"}
	rec, cerr := l1.Capture(types.CapturedError{Skill: "reader", Err: errVal})
	require.NoError(t, cerr)

	l2, err := New(Config{DataDir: dir})
	require.NoError(t, err)
	require.Equal(t, 1, l2.OccurrenceCount(rec.Fingerprint))
}
