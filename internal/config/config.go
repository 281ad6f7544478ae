// Package config loads the umbrella YAML configuration for the bot,
// one sub-struct per component, following the teacher's
// internal/discovery/config.go ConfigFile/ToConfig/LoadConfigFile
// layering (defaults first, then file overrides, then environment).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved, in-memory configuration every
// component is constructed from.
type Config struct {
	DataDir   string
	SkillsDir string

	ErrorLog    ErrorLogConfig
	Router      RouterConfig
	Gates       GatesConfig
	Improvement ImprovementConfig
	Autofix     AutofixConfig
	Anthropic   AnthropicConfig
}

type ErrorLogConfig struct {
	RecurringThreshold int `yaml:"recurring_threshold"`
}

type RouterConfig struct {
	// no tunables yet beyond routes themselves, which are registered in code
}

type GatesConfig struct {
	ApprovalThreshold int           `yaml:"approval_threshold"`
	Timeout           time.Duration `yaml:"-"`
	TimeoutString     string        `yaml:"timeout"`
}

type ImprovementConfig struct {
	CorrectionThreshold int `yaml:"correction_threshold"`
	ErrorThreshold      int `yaml:"error_threshold"`
	RejectionThreshold  int `yaml:"rejection_threshold"`
	MissThreshold       int `yaml:"miss_threshold"`
	ClusterMinimum      int `yaml:"cluster_minimum"`
}

type AutofixConfig struct {
	UseOracle       bool          `yaml:"use_oracle"`
	TestTimeout     time.Duration `yaml:"-"`
	TestTimeoutStr  string        `yaml:"test_timeout"`
}

type AnthropicConfig struct {
	APIKey string `yaml:"-"` // always from ANTHROPIC_API_KEY, never from file
	Model  string `yaml:"model"`
}

// fileFormat is the on-disk YAML shape, a thin mirror of Config with
// yaml tags and string durations (parsed after load).
type fileFormat struct {
	DataDir   string `yaml:"data_dir"`
	SkillsDir string `yaml:"skills_dir"`

	ErrorLog    ErrorLogConfig    `yaml:"error_log"`
	Gates       GatesConfig       `yaml:"gates"`
	Improvement ImprovementConfig `yaml:"improvement"`
	Autofix     AutofixConfig     `yaml:"autofix"`
	Anthropic   AnthropicConfig   `yaml:"anthropic"`
}

// Default returns the baseline configuration used when no file is
// present and no overrides are supplied.
func Default() *Config {
	return &Config{
		DataDir:   "./botdata",
		SkillsDir: "./skills",
		ErrorLog: ErrorLogConfig{
			RecurringThreshold: 2,
		},
		Gates: GatesConfig{
			ApprovalThreshold: 3,
			Timeout:           120 * time.Second,
		},
		Improvement: ImprovementConfig{
			CorrectionThreshold: 3,
			ErrorThreshold:      3,
			RejectionThreshold:  3,
			MissThreshold:       5,
			ClusterMinimum:      3,
		},
		Autofix: AutofixConfig{
			UseOracle:   false,
			TestTimeout: 30 * time.Second,
		},
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-5-20250929",
		},
	}
}

// Load reads path (if it exists) and layers it over Default, then
// applies the ANTHROPIC_API_KEY environment variable, which always
// wins over the file (credentials are never persisted to YAML).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
			var ff fileFormat
			if err := yaml.Unmarshal(data, &ff); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
			if err := applyFile(cfg, &ff); err != nil {
				return nil, fmt.Errorf("config: apply %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.Anthropic.APIKey = key
	}

	cfg.DataDir = filepath.Clean(cfg.DataDir)
	return cfg, nil
}

func applyFile(cfg *Config, ff *fileFormat) error {
	if ff.DataDir != "" {
		cfg.DataDir = ff.DataDir
	}
	if ff.SkillsDir != "" {
		cfg.SkillsDir = ff.SkillsDir
	}
	if ff.ErrorLog.RecurringThreshold > 0 {
		cfg.ErrorLog.RecurringThreshold = ff.ErrorLog.RecurringThreshold
	}
	if ff.Gates.ApprovalThreshold > 0 {
		cfg.Gates.ApprovalThreshold = ff.Gates.ApprovalThreshold
	}
	if ff.Gates.TimeoutString != "" {
		d, err := time.ParseDuration(ff.Gates.TimeoutString)
		if err != nil {
			return fmt.Errorf("invalid gates.timeout: %w", err)
		}
		cfg.Gates.Timeout = d
	}
	if ff.Improvement.CorrectionThreshold > 0 {
		cfg.Improvement.CorrectionThreshold = ff.Improvement.CorrectionThreshold
	}
	if ff.Improvement.ErrorThreshold > 0 {
		cfg.Improvement.ErrorThreshold = ff.Improvement.ErrorThreshold
	}
	if ff.Improvement.RejectionThreshold > 0 {
		cfg.Improvement.RejectionThreshold = ff.Improvement.RejectionThreshold
	}
	if ff.Improvement.MissThreshold > 0 {
		cfg.Improvement.MissThreshold = ff.Improvement.MissThreshold
	}
	if ff.Improvement.ClusterMinimum > 0 {
		cfg.Improvement.ClusterMinimum = ff.Improvement.ClusterMinimum
	}
	cfg.Autofix.UseOracle = ff.Autofix.UseOracle
	if ff.Autofix.TestTimeoutStr != "" {
		d, err := time.ParseDuration(ff.Autofix.TestTimeoutStr)
		if err != nil {
			return fmt.Errorf("invalid autofix.test_timeout: %w", err)
		}
		cfg.Autofix.TestTimeout = d
	}
	if ff.Anthropic.Model != "" {
		cfg.Anthropic.Model = ff.Anthropic.Model
	}
	return nil
}

// ExampleFile returns sample YAML content whose values mirror Default.
func ExampleFile() string {
	return `# Self-supervising bot configuration
data_dir: ./botdata
skills_dir: ./skills

error_log:
  recurring_threshold: 2

gates:
  approval_threshold: 3
  timeout: 120s

improvement:
  correction_threshold: 3
  error_threshold: 3
  rejection_threshold: 3
  miss_threshold: 5
  cluster_minimum: 3

autofix:
  use_oracle: false
  test_timeout: 30s

anthropic:
  model: claude-sonnet-4-5-20250929
  # API key is read from ANTHROPIC_API_KEY, never stored here.
`
}
