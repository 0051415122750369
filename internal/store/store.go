// Package store provides SQLite-backed persistence for sourcepilot. It holds
// case state, artifact packs, case memory, and the local document and supplier
// record tables the retrieval layer searches. Access is serialized through a
// single connection with WAL mode enabled.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sourcepilot/internal/logging"
	"sourcepilot/internal/types"
)

// Store is the SQLite implementation of types.CaseStore plus the record
// tables backing local retrieval.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// Options tune the SQLite connection. Zero values fall back to defaults.
type Options struct {
	// BusyTimeout is applied via the busy_timeout pragma.
	BusyTimeout time.Duration
}

// NewStore opens (or creates) the SQLite database at path with default
// options and ensures the schema is current.
func NewStore(path string) (*Store, error) {
	return NewStoreWithOptions(path, Options{})
}

// NewStoreWithOptions opens the database with explicit tuning.
func NewStoreWithOptions(path string, opts Options) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "open")
	defer timer.Stop()

	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent case updates.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if err := s.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logging.Store("opened case store at %s", path)
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cases (
		case_id     TEXT PRIMARY KEY,
		category_id TEXT NOT NULL DEFAULT '',
		dtp_stage   TEXT NOT NULL DEFAULT 'DTP-01',
		status      TEXT NOT NULL DEFAULT 'Open',
		state       TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status);
	CREATE INDEX IF NOT EXISTS idx_cases_stage ON cases(dtp_stage);
	CREATE INDEX IF NOT EXISTS idx_cases_category ON cases(category_id);

	CREATE TABLE IF NOT EXISTS artifact_packs (
		pack_id    TEXT PRIMARY KEY,
		case_id    TEXT NOT NULL,
		agent_name TEXT NOT NULL DEFAULT '',
		pack       TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_packs_case ON artifact_packs(case_id);

	CREATE TABLE IF NOT EXISTS case_memory (
		case_id    TEXT PRIMARY KEY,
		memory     TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		document_id   TEXT PRIMARY KEY,
		filename      TEXT NOT NULL DEFAULT '',
		document_type TEXT NOT NULL DEFAULT '',
		case_id       TEXT NOT NULL DEFAULT '',
		supplier_id   TEXT NOT NULL DEFAULT '',
		category_id   TEXT NOT NULL DEFAULT '',
		content       TEXT NOT NULL,
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_case ON documents(case_id);
	CREATE INDEX IF NOT EXISTS idx_documents_supplier ON documents(supplier_id);

	CREATE TABLE IF NOT EXISTS supplier_performance (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		supplier_id TEXT NOT NULL,
		category_id TEXT NOT NULL DEFAULT '',
		metric      TEXT NOT NULL,
		value       REAL NOT NULL DEFAULT 0,
		period      TEXT NOT NULL DEFAULT '',
		trend       TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_performance_supplier ON supplier_performance(supplier_id);

	CREATE TABLE IF NOT EXISTS supplier_spend (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		supplier_id TEXT NOT NULL,
		category_id TEXT NOT NULL DEFAULT '',
		period      TEXT NOT NULL DEFAULT '',
		amount      REAL NOT NULL DEFAULT 0,
		currency    TEXT NOT NULL DEFAULT 'USD'
	);
	CREATE INDEX IF NOT EXISTS idx_spend_supplier ON supplier_spend(supplier_id);

	CREATE TABLE IF NOT EXISTS sla_events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		supplier_id TEXT NOT NULL,
		severity    TEXT NOT NULL DEFAULT '',
		event_type  TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		occurred_at TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_sla_supplier ON sla_events(supplier_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LoadCase returns the stored case state, or (nil, nil) when no case with
// that ID exists.
func (s *Store) LoadCase(ctx context.Context, caseID string) (*types.CaseState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM cases WHERE case_id = ?`, caseID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading case %s: %w", caseID, err)
	}

	var cs types.CaseState
	if err := json.Unmarshal([]byte(blob), &cs); err != nil {
		return nil, fmt.Errorf("decoding case %s: %w", caseID, err)
	}
	logging.StoreDebug("loaded case %s (stage=%s status=%s)", cs.CaseID, cs.Stage, cs.Status)
	return &cs, nil
}

// SaveCase upserts the full case state. The indexed columns are derived from
// the state so listing can filter without decoding every row.
func (s *Store) SaveCase(ctx context.Context, state *types.CaseState) error {
	timer := logging.StartTimer(logging.CategoryStore, "save_case")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding case %s: %w", state.CaseID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cases (case_id, category_id, dtp_stage, status, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(case_id) DO UPDATE SET
			category_id = excluded.category_id,
			dtp_stage   = excluded.dtp_stage,
			status      = excluded.status,
			state       = excluded.state,
			updated_at  = excluded.updated_at`,
		state.CaseID, state.CategoryID, string(state.Stage), string(state.Status),
		string(blob), state.CreatedAt.Format(time.RFC3339Nano),
		state.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving case %s: %w", state.CaseID, err)
	}
	logging.StoreDebug("saved case %s (stage=%s status=%s)", state.CaseID, state.Stage, state.Status)
	return nil
}

// ListCases returns stored cases matching the filter, newest first.
func (s *Store) ListCases(ctx context.Context, filter types.CaseFilter) ([]*types.CaseState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT state FROM cases WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Stage != "" {
		query += ` AND dtp_stage = ?`
		args = append(args, string(filter.Stage))
	}
	if filter.CategoryID != "" {
		query += ` AND category_id = ?`
		args = append(args, filter.CategoryID)
	}
	query += ` ORDER BY updated_at DESC`

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing cases: %w", err)
	}
	defer rows.Close()

	var out []*types.CaseState
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scanning case row: %w", err)
		}
		var cs types.CaseState
		if err := json.Unmarshal([]byte(blob), &cs); err != nil {
			logging.Get(logging.CategoryStore).Warnf("skipping undecodable case row: %v", err)
			continue
		}
		out = append(out, &cs)
	}
	return out, rows.Err()
}

// SaveArtifactPack persists one agent invocation's output bundle.
func (s *Store) SaveArtifactPack(ctx context.Context, caseID string, pack *types.ArtifactPack) error {
	timer := logging.StartTimer(logging.CategoryStore, "save_pack")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(pack)
	if err != nil {
		return fmt.Errorf("encoding pack %s: %w", pack.PackID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifact_packs (pack_id, case_id, agent_name, pack, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(pack_id) DO UPDATE SET
			pack = excluded.pack`,
		pack.PackID, caseID, string(pack.AgentName), string(blob),
		pack.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving pack %s: %w", pack.PackID, err)
	}
	logging.StoreDebug("saved pack %s for case %s (%d artifacts)",
		pack.PackID, caseID, len(pack.Artifacts))
	return nil
}

// ListArtifactPacks returns the packs stored for a case, newest first.
func (s *Store) ListArtifactPacks(ctx context.Context, caseID string) ([]*types.ArtifactPack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT pack FROM artifact_packs
		WHERE case_id = ? ORDER BY created_at DESC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("listing packs for case %s: %w", caseID, err)
	}
	defer rows.Close()

	var out []*types.ArtifactPack
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scanning pack row: %w", err)
		}
		var pack types.ArtifactPack
		if err := json.Unmarshal([]byte(blob), &pack); err != nil {
			logging.Get(logging.CategoryStore).Warnf("skipping undecodable pack row: %v", err)
			continue
		}
		out = append(out, &pack)
	}
	return out, rows.Err()
}
