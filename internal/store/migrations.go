package store

import (
	"database/sql"
	"fmt"

	"sourcepilot/internal/logging"
)

// Migration adds one column to an existing table. Schema creation handles
// fresh databases; migrations handle databases created by earlier versions.
type Migration struct {
	Table  string
	Column string
	Def    string
}

var pendingMigrations = []Migration{
	{Table: "documents", Column: "category_id", Def: "TEXT NOT NULL DEFAULT ''"},
	{Table: "supplier_performance", Column: "trend", Def: "TEXT NOT NULL DEFAULT ''"},
	{Table: "supplier_spend", Column: "currency", Def: "TEXT NOT NULL DEFAULT 'USD'"},
	{Table: "sla_events", Column: "occurred_at", Def: "TEXT NOT NULL DEFAULT ''"},
}

// RunMigrations applies any pending column additions. Failures are logged
// and skipped so an unexpected local schema never blocks startup.
func (s *Store) RunMigrations() error {
	for _, m := range pendingMigrations {
		ok, err := s.tableExists(m.Table)
		if err != nil {
			return fmt.Errorf("checking table %s: %w", m.Table, err)
		}
		if !ok {
			continue
		}
		has, err := s.columnExists(m.Table, m.Column)
		if err != nil {
			return fmt.Errorf("checking column %s.%s: %w", m.Table, m.Column, err)
		}
		if has {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := s.db.Exec(stmt); err != nil {
			logging.Get(logging.CategoryStore).Warnf("migration %s.%s skipped: %v",
				m.Table, m.Column, err)
			continue
		}
		logging.Store("migrated: added %s.%s", m.Table, m.Column)
	}
	return nil
}

func (s *Store) tableExists(table string) (bool, error) {
	var name string
	err := s.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) columnExists(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name, typ string
			notnull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
