package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"sourcepilot/internal/logging"
	"sourcepilot/internal/memory"
)

// LoadMemory returns the persisted case memory, or (nil, nil) when the case
// has none yet. Bounds are restored to defaults after decoding.
func (s *Store) LoadMemory(ctx context.Context, caseID string) (*memory.CaseMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT memory FROM case_memory WHERE case_id = ?`, caseID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading memory for %s: %w", caseID, err)
	}

	var m memory.CaseMemory
	if err := json.Unmarshal([]byte(blob), &m); err != nil {
		return nil, fmt.Errorf("decoding memory for %s: %w", caseID, err)
	}
	m.RestoreBounds(memory.DefaultMaxEntries, memory.DefaultMaxDecisions, memory.DefaultMaxIntents)
	return &m, nil
}

// SaveMemory upserts the full case memory.
func (s *Store) SaveMemory(ctx context.Context, m *memory.CaseMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding memory for %s: %w", m.CaseID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO case_memory (case_id, memory, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET
			memory     = excluded.memory,
			updated_at = excluded.updated_at`,
		m.CaseID, string(blob), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving memory for %s: %w", m.CaseID, err)
	}
	logging.StoreDebug("saved memory for case %s (%d entries)", m.CaseID, len(m.Entries))
	return nil
}
