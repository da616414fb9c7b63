// Package config loads the YAML configuration cmd/agentrt reads at
// startup, following the teacher's internal/config/config.go shape:
// os.ReadFile -> os.ExpandEnv -> strict yaml.v3 decode -> defaults ->
// validate.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/agentrt/internal/turn"
)

// Config is the top-level on-disk configuration for one agent process.
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	Agent     AgentConfig     `yaml:"agent"`
	Logging   LoggingConfig   `yaml:"logging"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ProviderConfig names which provider the process should use and carries
// its free-form settings (api_key, base_url, model, ...). Concrete vendor
// adapters are out of scope; Name "echo" selects the built-in reference
// provider (internal/provider's Echo).
type ProviderConfig struct {
	Name     string         `yaml:"name"`
	Settings map[string]any `yaml:"settings"`
}

// AgentConfig mirrors the Turn engine's Config fields a deployment is
// expected to tune.
type AgentConfig struct {
	SystemPrompt     string `yaml:"system_prompt"`
	MaxTurns         int    `yaml:"max_turns"`
	MaxTokens        int    `yaml:"max_tokens"`
	MaxRetries       int    `yaml:"max_retries"`
	RetryBackoffMS   int64  `yaml:"retry_backoff_ms"`
	TimeoutMS        int64  `yaml:"timeout_ms"`
	ToolTimeoutMS    int64  `yaml:"tool_timeout_ms"`
	WorkingDirectory string `yaml:"working_directory"`
}

// LoggingConfig configures internal/observability.Logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	AddSource bool   `yaml:"add_source"`
}

// SchedulerConfig lists the jobs cmd/agentrt's "schedule" command installs.
type SchedulerConfig struct {
	TickIntervalMS int64       `yaml:"tick_interval_ms"`
	Jobs           []JobConfig `yaml:"jobs"`
}

// JobConfig is one scheduler.Job's on-disk form.
type JobConfig struct {
	Name     string `yaml:"name"`
	PeriodMS int64  `yaml:"period_ms"`
	CronExpr string `yaml:"cron"`
	Prompt   string `yaml:"prompt"`
}

// Load reads, expands, and strictly decodes the YAML file at path, then
// applies defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "echo"
	}
	d := turn.DefaultConfig()
	if cfg.Agent.MaxTurns == 0 {
		cfg.Agent.MaxTurns = d.MaxTurns
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = d.MaxTokens
	}
	if cfg.Agent.MaxRetries == 0 {
		cfg.Agent.MaxRetries = d.MaxRetries
	}
	if cfg.Agent.RetryBackoffMS == 0 {
		cfg.Agent.RetryBackoffMS = d.RetryBackoffMS
	}
	if cfg.Agent.TimeoutMS == 0 {
		cfg.Agent.TimeoutMS = d.TimeoutMS
	}
	if cfg.Agent.ToolTimeoutMS == 0 {
		cfg.Agent.ToolTimeoutMS = d.ToolTimeoutMS
	}
	if cfg.Agent.WorkingDirectory == "" {
		cfg.Agent.WorkingDirectory = "."
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Scheduler.TickIntervalMS == 0 {
		cfg.Scheduler.TickIntervalMS = int64(time.Second / time.Millisecond)
	}
}

func validate(cfg *Config) error {
	if cfg.Agent.MaxTurns <= 0 {
		return fmt.Errorf("agent.max_turns must be positive")
	}
	for _, j := range cfg.Scheduler.Jobs {
		if j.Name == "" {
			return fmt.Errorf("scheduler.jobs: a job is missing a name")
		}
		if j.PeriodMS <= 0 && j.CronExpr == "" {
			return fmt.Errorf("scheduler.jobs[%s]: one of period_ms or cron is required", j.Name)
		}
	}
	return nil
}

// ToTurnConfig projects the loaded AgentConfig onto a turn.Config, leaving
// Provider/Registry/Middleware for the caller to attach.
func (c *Config) ToTurnConfig() turn.Config {
	return turn.Config{
		SystemPrompt:     c.Agent.SystemPrompt,
		MaxTurns:         c.Agent.MaxTurns,
		MaxTokens:        c.Agent.MaxTokens,
		MaxRetries:       c.Agent.MaxRetries,
		RetryBackoffMS:   c.Agent.RetryBackoffMS,
		TimeoutMS:        c.Agent.TimeoutMS,
		ToolTimeoutMS:    c.Agent.ToolTimeoutMS,
		WorkingDirectory: c.Agent.WorkingDirectory,
	}
}
