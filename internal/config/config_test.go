package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Name != "sourcepilot" {
		t.Errorf("expected name sourcepilot, got %s", cfg.Name)
	}
	if cfg.Memory.MaxEntries != 20 {
		t.Errorf("expected 20 memory entries, got %d", cfg.Memory.MaxEntries)
	}
	if cfg.Memory.MaxDecisions != 10 {
		t.Errorf("expected 10 memory decisions, got %d", cfg.Memory.MaxDecisions)
	}
	if cfg.Memory.MaxIntents != 5 {
		t.Errorf("expected 5 memory intents, got %d", cfg.Memory.MaxIntents)
	}
	if cfg.LLM.Enabled {
		t.Errorf("LLM narration should be off by default")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.DatabasePath != "data/sourcepilot.db" {
		t.Errorf("expected default db path, got %s", cfg.Storage.DatabasePath)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sourcepilot.yaml")
	content := `
name: sourcepilot
workspace: /work/cases
storage:
  database_path: /work/cases/pilot.db
memory:
  max_entries: 50
  max_decisions: 10
  max_intents: 5
llm:
  enabled: true
  model: gemini-2.5-pro
  timeout: 30s
logging:
  debug_mode: true
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workspace != "/work/cases" {
		t.Errorf("workspace = %q", cfg.Workspace)
	}
	if cfg.Storage.DatabasePath != "/work/cases/pilot.db" {
		t.Errorf("database_path = %q", cfg.Storage.DatabasePath)
	}
	if cfg.Memory.MaxEntries != 50 {
		t.Errorf("max_entries = %d", cfg.Memory.MaxEntries)
	}
	// Unset fields keep defaults.
	if cfg.Retrieval.MaxChunks != 5 {
		t.Errorf("max_chunks = %d, want default 5", cfg.Retrieval.MaxChunks)
	}
	if cfg.LLM.Model != "gemini-2.5-pro" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if got := cfg.LLM.GetTimeout().Seconds(); got != 30 {
		t.Errorf("llm timeout = %vs", got)
	}
	if !cfg.Logging.DebugMode {
		t.Errorf("debug_mode should be true")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sourcepilot.yaml")

	cfg := DefaultConfig()
	cfg.Workspace = "/tmp/ws"
	cfg.Memory.MaxEntries = 33
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Workspace != "/tmp/ws" {
		t.Errorf("workspace = %q", loaded.Workspace)
	}
	if loaded.Memory.MaxEntries != 33 {
		t.Errorf("max_entries = %d", loaded.Memory.MaxEntries)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	cfg.Memory.MaxEntries = 0
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error for zero memory entries")
	}
	cfg.Memory.MaxEntries = 20

	cfg.LLM.Enabled = true
	cfg.LLM.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Errorf("expected error when narration enabled without API key")
	}
	cfg.LLM.APIKey = "test-key"
	if err := cfg.Validate(); err != nil {
		t.Errorf("config with key should validate: %v", err)
	}
}

func TestInvalidTimeoutFallsBack(t *testing.T) {
	llm := LLMConfig{Timeout: "not-a-duration"}
	if got := llm.GetTimeout().Seconds(); got != 60 {
		t.Errorf("expected 60s fallback, got %vs", got)
	}
	st := StorageConfig{BusyTimeout: ""}
	if got := st.GetBusyTimeout().Seconds(); got != 5 {
		t.Errorf("expected 5s fallback, got %vs", got)
	}
}
