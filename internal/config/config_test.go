package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault_BaselineValues(t *testing.T) {
	cfg := Default()
	require.Equal(t, "./botdata", cfg.DataDir)
	require.Equal(t, 3, cfg.Gates.ApprovalThreshold)
	require.Equal(t, 3, cfg.Improvement.ErrorThreshold)
	require.False(t, cfg.Autofix.UseOracle)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default().Improvement, cfg.Improvement)
}

func TestLoad_FileOverridesLayerOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /tmp/custom-data
gates:
  approval_threshold: 7
  timeout: 45s
improvement:
  error_threshold: 10
autofix:
  use_oracle: true
  test_timeout: 10s
anthropic:
  model: claude-opus-4
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom-data", cfg.DataDir)
	require.Equal(t, 7, cfg.Gates.ApprovalThreshold)
	require.Equal(t, 45e9, float64(cfg.Gates.Timeout))
	require.Equal(t, 10, cfg.Improvement.ErrorThreshold)
	require.True(t, cfg.Autofix.UseOracle)
	require.Equal(t, "claude-opus-4", cfg.Anthropic.Model)
	// untouched fields keep their defaults
	require.Equal(t, 3, cfg.Improvement.CorrectionThreshold)
}

func TestLoad_ZeroOrAbsentOverridesKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gates:\n  approval_threshold: 0\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default().Gates.ApprovalThreshold, cfg.Gates.ApprovalThreshold)
}

func TestLoad_InvalidTimeoutErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gates:\n  timeout: not-a-duration\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_EnvAPIKeyAlwaysWinsOverFile(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-from-env")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sk-test-from-env", cfg.Anthropic.APIKey)
}

func TestExampleFile_ParsesBackIntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ExampleFile()), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default().Improvement, cfg.Improvement)
	require.Equal(t, Default().Gates.Timeout, cfg.Gates.Timeout)
}
