package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitializeCreatesLogsDir(t *testing.T) {
	workspace := t.TempDir()
	if err := Initialize(workspace, Settings{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	dir := filepath.Join(workspace, ".sourcepilot", "logs")
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("logs dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("expected %s to be a directory", dir)
	}
}

func TestGetReturnsNoopWhenDisabled(t *testing.T) {
	workspace := t.TempDir()
	if err := Initialize(workspace, Settings{DebugMode: false}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	log := Get(CategorySupervisor)
	// Must not panic even though no file backend exists.
	log.Infof("noop message %d", 1)
	log.Errorf("noop error")
}

func TestIsCategoryEnabled(t *testing.T) {
	workspace := t.TempDir()
	err := Initialize(workspace, Settings{
		DebugMode:  true,
		Level:      "debug",
		Categories: map[string]bool{"supervisor": true, "task": false},
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	if !IsCategoryEnabled(CategorySupervisor) {
		t.Errorf("supervisor category should be enabled")
	}
	if IsCategoryEnabled(CategoryTask) {
		t.Errorf("task category should be disabled")
	}
}

func TestCategoryLoggerWritesToFile(t *testing.T) {
	workspace := t.TempDir()
	if err := Initialize(workspace, Settings{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	log := Get(CategoryIntent)
	log.Infof("classified intent as %s", "DECIDE")
	CloseAll()

	dir := filepath.Join(workspace, ".sourcepilot", "logs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}
	var found bool
	for _, e := range entries {
		if strings.Contains(e.Name(), "intent") {
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				t.Fatalf("read log file: %v", err)
			}
			if strings.Contains(string(data), "classified intent as DECIDE") {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("expected intent log file to contain the message")
	}
}

func TestAuditEventsAreJSONLines(t *testing.T) {
	workspace := t.TempDir()
	if err := Initialize(workspace, Settings{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := InitAudit(); err != nil {
		t.Fatalf("InitAudit failed: %v", err)
	}

	audit := AuditFor("case-123")
	audit.StageAdvance("DTP-01", "DTP-02")
	audit.DecisionRecorded("approve", "strategy looks right")
	CloseAudit()
	CloseAll()

	dir := filepath.Join(workspace, ".sourcepilot", "logs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}
	var auditPath string
	for _, e := range entries {
		if strings.Contains(e.Name(), "audit") {
			auditPath = filepath.Join(dir, e.Name())
		}
	}
	if auditPath == "" {
		t.Fatalf("no audit log file created")
	}

	data, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	var events []AuditEvent
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}
		var ev AuditEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("audit line is not valid JSON: %v\nline: %s", err, line)
		}
		events = append(events, ev)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 audit events, got %d", len(events))
	}
	if events[0].EventType != AuditStageAdvance {
		t.Errorf("expected stage_advance first, got %s", events[0].EventType)
	}
	if events[0].CaseID != "case-123" {
		t.Errorf("expected case scope on event, got %q", events[0].CaseID)
	}
	if events[1].EventType != AuditDecisionRecorded {
		t.Errorf("expected decision_recorded second, got %s", events[1].EventType)
	}
}

func TestAuditRecordsWithoutDebugMode(t *testing.T) {
	workspace := t.TempDir()
	if err := Initialize(workspace, Settings{DebugMode: false}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := InitAudit(); err != nil {
		t.Fatalf("InitAudit failed: %v", err)
	}

	AuditFor("case-777").ActionBlocked("DECIDE", "execution phase")
	CloseAudit()

	dir := filepath.Join(workspace, ".sourcepilot", "logs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read logs dir: %v", err)
	}
	var auditPath string
	for _, e := range entries {
		if strings.Contains(e.Name(), "audit") {
			auditPath = filepath.Join(dir, e.Name())
		}
	}
	if auditPath == "" {
		t.Fatalf("no audit log file created with debug mode off")
	}
	data, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	if !strings.Contains(string(data), "action_blocked") {
		t.Errorf("expected action_blocked event in audit log, got:\n%s", data)
	}
}

func TestTimerStop(t *testing.T) {
	workspace := t.TempDir()
	if err := Initialize(workspace, Settings{DebugMode: true, Level: "debug"}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	timer := StartTimer(CategoryTask, "compare_bids")
	elapsed := timer.Stop()
	if elapsed < 0 {
		t.Errorf("negative elapsed time: %v", elapsed)
	}
}
