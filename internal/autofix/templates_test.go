package autofix

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lokoweb3/skillbot/internal/types"
)

const sampleSource = `const fs = require('fs');

function handleSkill(input) {
  return fs.readFileSync(input.path);
}
`

func TestApplyTemplate_ValidationInjectsPreamble(t *testing.T) {
	fixed, explanation, err := ApplyTemplate(sampleSource, types.ClassValidation, "field is required", 0)
	require.NoError(t, err)
	require.Contains(t, fixed, autoFixMarker)
	require.Contains(t, fixed, "Invalid input")
	require.NotEmpty(t, explanation)
}

func TestApplyTemplate_NetworkInjectsRetryHelper(t *testing.T) {
	fixed, _, err := ApplyTemplate(sampleSource, types.ClassNetwork, "ECONNREFUSED", 0)
	require.NoError(t, err)
	require.Contains(t, fixed, "withRetry")
}

func TestApplyTemplate_TimeoutInjectsTimeoutHelper(t *testing.T) {
	fixed, _, err := ApplyTemplate(sampleSource, types.ClassTimeout, "request timed out", 0)
	require.NoError(t, err)
	require.Contains(t, fixed, "withTimeout")
}

func TestApplyTemplate_LogicNullCheckAtStackLine(t *testing.T) {
	fixed, explanation, err := ApplyTemplate(sampleSource, types.ClassLogic, "Cannot read properties of undefined (reading 'path')", 4)
	require.NoError(t, err)
	require.Contains(t, fixed, "null-check guard")
	require.Contains(t, explanation, "null-check")
}

func TestApplyTemplate_LogicFallsBackToTryCatch(t *testing.T) {
	fixed, _, err := ApplyTemplate(sampleSource, types.ClassLogic, "x is not a function", 0)
	require.NoError(t, err)
	require.Contains(t, fixed, "try {")
}

func TestApplyTemplate_UnknownWrapsTryCatch(t *testing.T) {
	fixed, _, err := ApplyTemplate(sampleSource, types.ClassUnknown, "mystery failure", 0)
	require.NoError(t, err)
	require.Contains(t, fixed, "try {")
	require.Contains(t, fixed, "catch (err)")
}

func TestInjectAtLine_OutOfRangeErrors(t *testing.T) {
	_, err := injectAtLine(sampleSource, 999, nullCheckGuard)
	require.Error(t, err)
}

func TestParseStackLine_ExtractsLineNumber(t *testing.T) {
	require.Equal(t, 42, parseStackLine("at handler (/app/skills/reader/index.js:42:7)"))
	require.Equal(t, 0, parseStackLine("no line info here"))
}
