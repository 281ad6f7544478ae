package autofix

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiff_IdenticalProducesEmpty(t *testing.T) {
	require.Empty(t, Diff("a\nb\nc", "a\nb\nc"))
}

func TestDiff_SingleLineChange(t *testing.T) {
	d := Diff("line1\nline2\nline3", "line1\nCHANGED\nline3")
	require.Contains(t, d, "-line2")
	require.Contains(t, d, "+CHANGED")
	require.NotContains(t, d, "-line1")
	require.NotContains(t, d, "-line3")
}

func TestDiff_FixedLongerThanOriginal(t *testing.T) {
	d := Diff("a", "a\nb")
	require.Contains(t, d, "+b")
}
