// Audit logging: structured governance events appended as JSON lines.
// Every state-affecting decision the supervisor makes (classification,
// routing, stage advances, human decisions, contradictions) leaves a record
// here so a case's history can be reconstructed without the database.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType defines the type of audit event.
type AuditEventType string

const (
	// Intent and routing
	AuditIntentClassified AuditEventType = "intent_classified"
	AuditActionRouted     AuditEventType = "action_routed"
	AuditActionBlocked    AuditEventType = "action_blocked"

	// Governance state
	AuditStageAdvance     AuditEventType = "stage_advance"
	AuditDecisionRecorded AuditEventType = "decision_recorded"
	AuditCaseCreated      AuditEventType = "case_created"

	// Execution
	AuditAgentExecute   AuditEventType = "agent_execute"
	AuditTaskExecute    AuditEventType = "task_execute"
	AuditArtifactCreate AuditEventType = "artifact_created"
	AuditLLMCall        AuditEventType = "llm_call"

	// Conflicts
	AuditContradictionFound    AuditEventType = "contradiction_detected"
	AuditContradictionResolved AuditEventType = "contradiction_resolved"
)

// AuditEvent is one structured audit record.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"` // Unix milliseconds
	EventType  AuditEventType `json:"event"`
	CaseID     string         `json:"case"`
	Agent      string         `json:"agent,omitempty"`
	Target     string         `json:"target,omitempty"`
	Success    bool           `json:"success"`
	DurationMs int64          `json:"dur_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	Message    string         `json:"msg,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

var (
	auditMu   sync.Mutex
	auditFile *os.File
)

// InitAudit opens the audit log file. Unlike the category loggers the audit
// trail is not gated on debug mode: governance events are recorded on every
// run. No-op when Initialize has not been called.
func InitAudit() error {
	mu.RLock()
	dir := logsDir
	mu.RUnlock()
	if dir == "" {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	path := filepath.Join(dir, time.Now().Format("2006-01-02")+"_audit.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	auditFile = file
	fmt.Fprintf(auditFile, "# audit log started %s\n", time.Now().Format(time.RFC3339))
	return nil
}

// CloseAudit closes the audit log file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// AuditLogger scopes audit events to one case.
type AuditLogger struct {
	caseID string
}

// AuditFor returns an audit logger scoped to a case.
func AuditFor(caseID string) *AuditLogger {
	return &AuditLogger{caseID: caseID}
}

// Log writes one audit event, filling in timestamp and case scope.
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.CaseID == "" {
		event.CaseID = a.caseID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// IntentClassified records an intent classification outcome.
func (a *AuditLogger) IntentClassified(intent string, goal, workType string, confidence float64) {
	a.Log(AuditEvent{
		EventType: AuditIntentClassified,
		Target:    intent,
		Success:   true,
		Fields: map[string]any{
			"user_goal":  goal,
			"work_type":  workType,
			"confidence": confidence,
		},
	})
}

// ActionRouted records a playbook routing decision.
func (a *AuditLogger) ActionRouted(agent string, tasks []string, approvalRequired bool) {
	a.Log(AuditEvent{
		EventType: AuditActionRouted,
		Agent:     agent,
		Success:   true,
		Fields: map[string]any{
			"tasks":             tasks,
			"approval_required": approvalRequired,
		},
	})
}

// ActionBlocked records a governance block.
func (a *AuditLogger) ActionBlocked(intent, reason string) {
	a.Log(AuditEvent{
		EventType: AuditActionBlocked,
		Target:    intent,
		Success:   false,
		Message:   reason,
	})
}

// StageAdvance records a stage transition.
func (a *AuditLogger) StageAdvance(from, to string) {
	a.Log(AuditEvent{
		EventType: AuditStageAdvance,
		Success:   true,
		Fields:    map[string]any{"from": from, "to": to},
	})
}

// DecisionRecorded records a human approval or rejection.
func (a *AuditLogger) DecisionRecorded(decision, reason string) {
	a.Log(AuditEvent{
		EventType: AuditDecisionRecorded,
		Target:    decision,
		Success:   true,
		Message:   reason,
	})
}

// AgentExecute records one agent invocation.
func (a *AuditLogger) AgentExecute(agent string, tasks int, tokens int, durationMs int64, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType:  AuditAgentExecute,
		Agent:      agent,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Fields:     map[string]any{"tasks": tasks, "tokens": tokens},
	})
}

// TaskExecute records one task execution.
func (a *AuditLogger) TaskExecute(task string, durationMs int64, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType:  AuditTaskExecute,
		Target:     task,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
	})
}

// LLMCall records an LLM invocation with token usage.
func (a *AuditLogger) LLMCall(model string, tokens int, durationMs int64, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType:  AuditLLMCall,
		Target:     model,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Fields:     map[string]any{"tokens": tokens},
	})
}

// ContradictionDetected records a surfaced conflict.
func (a *AuditLogger) ContradictionDetected(description, severity string, agents []string) {
	a.Log(AuditEvent{
		EventType: AuditContradictionFound,
		Success:   true,
		Message:   description,
		Fields:    map[string]any{"severity": severity, "agents": agents},
	})
}

// ContradictionResolved records a human-adjudicated conflict removal.
func (a *AuditLogger) ContradictionResolved(description string) {
	a.Log(AuditEvent{
		EventType: AuditContradictionResolved,
		Success:   true,
		Message:   description,
	})
}
