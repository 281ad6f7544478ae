package autofix

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOracleResponse_ExtractsExplanationAndCode(t *testing.T) {
	text := "EXPLANATION: Added a null check before dereferencing target.\n\n```js\nfunction f() { return 1; }\n```\n"
	result, err := ParseOracleResponse(text)
	require.NoError(t, err)
	require.Equal(t, "Added a null check before dereferencing target.", result.Explanation)
	require.Contains(t, result.FixedCode, "function f()")
}

func TestParseOracleResponse_MissingCodeFenceErrors(t *testing.T) {
	_, err := ParseOracleResponse("EXPLANATION: nothing to show here, no code.")
	require.Error(t, err)
}

func TestParseOracleResponse_MissingExplanationStillParsesCode(t *testing.T) {
	text := "```go\npackage main\n```"
	result, err := ParseOracleResponse(text)
	require.NoError(t, err)
	require.Empty(t, result.Explanation)
	require.Contains(t, result.FixedCode, "package main")
}
