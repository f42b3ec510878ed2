package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  extra: true
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestLoadValidatesDefaultProvider(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: openai
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "default_provider") {
		t.Fatalf("expected default_provider error, got %v", err)
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected config to load, got %v", err)
	}
	if cfg.Agent.MaxAgentIterations != 8 {
		t.Errorf("MaxAgentIterations default = %d, want 8", cfg.Agent.MaxAgentIterations)
	}
	if cfg.Tasks.MaxTurns != 4 || cfg.Tasks.MaxToolAttempts != 2 {
		t.Errorf("Tasks defaults = %+v", cfg.Tasks)
	}
	if cfg.Jobs.SchedulerTickSeconds != 30 || cfg.Jobs.ProactiveTickSeconds != 60 {
		t.Errorf("Jobs defaults = %+v", cfg.Jobs)
	}
	if cfg.Jobs.ReminderWindowMinMinutes != 12 || cfg.Jobs.ReminderWindowMaxMinutes != 18 {
		t.Errorf("Jobs reminder window defaults = %+v", cfg.Jobs)
	}
	if cfg.Jobs.JobsPerCallerPerDay != 20 {
		t.Errorf("JobsPerCallerPerDay default = %d, want 20", cfg.Jobs.JobsPerCallerPerDay)
	}
	if cfg.Session.SessionInactivityMinutes != 15 {
		t.Errorf("SessionInactivityMinutes default = %d, want 15", cfg.Session.SessionInactivityMinutes)
	}
}

func TestLoadValidatesReminderWindow(t *testing.T) {
	path := writeConfig(t, `
jobs:
  reminder_window_min_minutes: 20
  reminder_window_max_minutes: 10
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "reminder_window") {
		t.Fatalf("expected reminder_window error, got %v", err)
	}
}

func TestLoadValidatesAgentMaxIterations(t *testing.T) {
	path := writeConfig(t, `
agent:
  max_agent_iterations: -1
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "max_agent_iterations") {
		t.Fatalf("expected max_agent_iterations error, got %v", err)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("NEXUS_HOST", "127.0.0.1")
	t.Setenv("DATABASE_URL", "postgres://override@localhost:26257/nexus?sslmode=disable")

	path := writeConfig(t, `
server:
  host: 0.0.0.0
database:
  url: postgres://default@localhost:26257/nexus?sslmode=disable
llm:
  default_provider: anthropic
  providers:
    anthropic: {}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("expected host override, got %q", cfg.Server.Host)
	}
	if cfg.Database.URL != "postgres://override@localhost:26257/nexus?sslmode=disable" {
		t.Fatalf("expected database url override, got %q", cfg.Database.URL)
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "nexus.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}
