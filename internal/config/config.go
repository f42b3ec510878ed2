package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the assistant core: the
// agent orchestration engine and the time-based job engine, plus the
// ambient concerns (server, database, logging, tracing, LLM providers)
// those depend on.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	LLM           LLMConfig           `yaml:"llm"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
	Agent         AgentConfig         `yaml:"agent"`
	Tasks         TasksConfig         `yaml:"tasks"`
	Jobs          JobsConfig          `yaml:"jobs"`
	Session       SessionConfig       `yaml:"session"`
}

// AgentConfig bounds the plan/act/reflect loop of a single turn.
type AgentConfig struct {
	MaxAgentIterations int `yaml:"max_agent_iterations"`
}

// TasksConfig bounds a task session's turn and tool-attempt budget.
type TasksConfig struct {
	MaxTurns        int `yaml:"max_turns"`
	MaxToolAttempts int `yaml:"max_tool_attempts"`
}

// JobsConfig controls the scheduler tick, the proactive check cadence, and
// the per-owner guardrails the job engine enforces.
type JobsConfig struct {
	SchedulerTickSeconds int `yaml:"scheduler_tick_seconds"`
	ProactiveTickSeconds int `yaml:"proactive_tick_seconds"`

	// ReminderWindowMinMinutes/ReminderWindowMaxMinutes bound how far ahead a
	// proactive reminder nudge may look, in minutes.
	ReminderWindowMinMinutes int `yaml:"reminder_window_min_minutes"`
	ReminderWindowMaxMinutes int `yaml:"reminder_window_max_minutes"`

	JobsPerCallerPerDay int `yaml:"jobs_per_caller_per_day"`

	// CronAllowEveryMinute opts specific exact cron expressions (or, if set
	// to ["*"], every expression) into a sub-minute-equivalent every-minute
	// tick. Empty means no cron expression may fire more than once a
	// minute.
	CronAllowEveryMinute []string `yaml:"cron_allow_every_minute"`
}

// SessionConfig controls agent-loop session bookkeeping: how long a
// session may sit idle before it is considered inactive, and how its
// in-memory tool-result context is pruned.
type SessionConfig struct {
	SessionInactivityMinutes int                  `yaml:"session_inactivity_minutes"`
	ContextPruning           ContextPruningConfig `yaml:"context_pruning"`
}

// Load reads and parses the configuration file.
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

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyLLMDefaults(&cfg.LLM)
	applyLoggingDefaults(&cfg.Logging)
	applyObservabilityDefaults(&cfg.Observability)
	applyAgentDefaults(&cfg.Agent)
	applyTasksDefaults(&cfg.Tasks)
	applyJobsDefaults(&cfg.Jobs)
	applySessionDefaults(&cfg.Session)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8080
	}
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = 9090
	}
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.URL == "" {
		cfg.URL = "nexus.db"
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 25
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = "anthropic"
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

func applyObservabilityDefaults(cfg *ObservabilityConfig) {
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "nexus-core"
	}
	if cfg.Tracing.SamplingRate == 0 {
		cfg.Tracing.SamplingRate = 1.0
	}
}

func applyAgentDefaults(cfg *AgentConfig) {
	if cfg.MaxAgentIterations == 0 {
		cfg.MaxAgentIterations = 8
	}
}

func applyTasksDefaults(cfg *TasksConfig) {
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = 4
	}
	if cfg.MaxToolAttempts == 0 {
		cfg.MaxToolAttempts = 2
	}
}

func applyJobsDefaults(cfg *JobsConfig) {
	if cfg.SchedulerTickSeconds == 0 {
		cfg.SchedulerTickSeconds = 30
	}
	if cfg.ProactiveTickSeconds == 0 {
		cfg.ProactiveTickSeconds = 60
	}
	if cfg.ReminderWindowMinMinutes == 0 {
		cfg.ReminderWindowMinMinutes = 12
	}
	if cfg.ReminderWindowMaxMinutes == 0 {
		cfg.ReminderWindowMaxMinutes = 18
	}
	if cfg.JobsPerCallerPerDay == 0 {
		cfg.JobsPerCallerPerDay = 20
	}
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.SessionInactivityMinutes == 0 {
		cfg.SessionInactivityMinutes = 15
	}
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if value := strings.TrimSpace(os.Getenv("NEXUS_HOST")); value != "" {
		cfg.Server.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("NEXUS_HTTP_PORT")); value != "" {
		if parsed, err := parseInt(value); err == nil {
			cfg.Server.HTTPPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("NEXUS_METRICS_PORT")); value != "" {
		if parsed, err := parseInt(value); err == nil {
			cfg.Server.MetricsPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("DATABASE_URL")); value != "" {
		cfg.Database.URL = value
	}
}

func parseInt(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if cfg.Agent.MaxAgentIterations <= 0 {
		issues = append(issues, "agent.max_agent_iterations must be > 0")
	}
	if cfg.Tasks.MaxTurns <= 0 {
		issues = append(issues, "tasks.max_turns must be > 0")
	}
	if cfg.Tasks.MaxToolAttempts <= 0 {
		issues = append(issues, "tasks.max_tool_attempts must be > 0")
	}
	if cfg.Jobs.SchedulerTickSeconds <= 0 {
		issues = append(issues, "jobs.scheduler_tick_seconds must be > 0")
	}
	if cfg.Jobs.ProactiveTickSeconds <= 0 {
		issues = append(issues, "jobs.proactive_tick_seconds must be > 0")
	}
	if cfg.Jobs.ReminderWindowMinMinutes < 0 || cfg.Jobs.ReminderWindowMaxMinutes < 0 {
		issues = append(issues, "jobs.reminder_window_min_minutes/max_minutes must be >= 0")
	}
	if cfg.Jobs.ReminderWindowMinMinutes > cfg.Jobs.ReminderWindowMaxMinutes {
		issues = append(issues, "jobs.reminder_window_min_minutes must be <= reminder_window_max_minutes")
	}
	if cfg.Jobs.JobsPerCallerPerDay < 0 {
		issues = append(issues, "jobs.jobs_per_caller_per_day must be >= 0")
	}
	if cfg.Session.SessionInactivityMinutes <= 0 {
		issues = append(issues, "session.session_inactivity_minutes must be > 0")
	}

	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	if defaultProvider != "" {
		if _, ok := cfg.LLM.Providers[defaultProvider]; !ok {
			if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
				issues = append(issues, fmt.Sprintf("llm.providers missing entry for default_provider %q", cfg.LLM.DefaultProvider))
			}
		}
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
