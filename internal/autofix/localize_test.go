package autofix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocateFromStack_SkipsDependencyFrames(t *testing.T) {
	stack := "Error: boom\n    at internalHelper (node_modules/lodash/index.js:10:2)\n    at handleSkill (skills/reader/index.js:22:5)"
	file, err := LocateFromStack(stack)
	require.NoError(t, err)
	require.Equal(t, "skills/reader/index.js", file)
}

func TestLocateFromStack_SkipsLoggerInternals(t *testing.T) {
	stack := "Error: boom\n    at Logger.Capture (/app/internal/errorlog/logger.js:30:1)\n    at run (skills/reader/main.go:15:1)"
	file, err := LocateFromStack(stack)
	require.NoError(t, err)
	require.Equal(t, "skills/reader/main.go", file)
}

func TestLocateFromStack_NoNonDependencyFrameErrors(t *testing.T) {
	stack := "Error: boom\n    at internalHelper (node_modules/lodash/index.js:10:2)"
	_, err := LocateFromStack(stack)
	require.Error(t, err)
}

func TestLocateInSkillsDir_FindsIndexJS(t *testing.T) {
	dir := t.TempDir()
	skillDir := filepath.Join(dir, "reader")
	require.NoError(t, os.MkdirAll(skillDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "index.js"), []byte("module.exports = {}"), 0644))

	file, err := LocateInSkillsDir(dir, "reader")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(skillDir, "index.js"), file)
}

func TestLocateInSkillsDir_FindsX1PrefixedDir(t *testing.T) {
	dir := t.TempDir()
	skillDir := filepath.Join(dir, "x1-writer")
	require.NoError(t, os.MkdirAll(skillDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "main.js"), []byte("// main"), 0644))

	file, err := LocateInSkillsDir(dir, "writer")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(skillDir, "main.js"), file)
}

func TestLocateInSkillsDir_MissingSkillErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LocateInSkillsDir(dir, "nonexistent")
	require.Error(t, err)
}

func TestLocalize_FallsBackToSkillsDirWhenStackUnusable(t *testing.T) {
	dir := t.TempDir()
	skillDir := filepath.Join(dir, "reader")
	require.NoError(t, os.MkdirAll(skillDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "index.js"), []byte(""), 0644))

	file, err := Localize("", dir, "reader")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(skillDir, "index.js"), file)
}
