package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sourcepilot/internal/logging"
)

// Document is one searchable text document in the local corpus.
type Document struct {
	DocumentID   string
	Filename     string
	DocumentType string
	CaseID       string
	SupplierID   string
	CategoryID   string
	Content      string
	CreatedAt    time.Time
}

// PerformanceRecord is one supplier performance metric observation.
type PerformanceRecord struct {
	SupplierID string
	CategoryID string
	Metric     string
	Value      float64
	Period     string
	Trend      string
}

// SpendRecord is one supplier spend observation.
type SpendRecord struct {
	SupplierID string
	CategoryID string
	Period     string
	Amount     float64
	Currency   string
}

// SLAEvent is one recorded service-level incident.
type SLAEvent struct {
	SupplierID  string
	Severity    string
	EventType   string
	Description string
	OccurredAt  string
}

// AddDocument inserts or replaces a document in the corpus.
func (s *Store) AddDocument(ctx context.Context, d Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (document_id, filename, document_type, case_id, supplier_id, category_id, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			filename      = excluded.filename,
			document_type = excluded.document_type,
			case_id       = excluded.case_id,
			supplier_id   = excluded.supplier_id,
			category_id   = excluded.category_id,
			content       = excluded.content`,
		d.DocumentID, d.Filename, d.DocumentType, d.CaseID, d.SupplierID,
		d.CategoryID, d.Content, d.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("adding document %s: %w", d.DocumentID, err)
	}
	logging.StoreDebug("added document %s (%s)", d.DocumentID, d.DocumentType)
	return nil
}

// Documents returns corpus documents scoped by the optional filters. Ranking
// is the retrieval layer's job; this returns every candidate in scope.
func (s *Store) Documents(ctx context.Context, caseID, supplierID, categoryID string, documentTypes []string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT document_id, filename, document_type, case_id, supplier_id, category_id, content, created_at
		FROM documents WHERE 1=1`
	var args []any
	if caseID != "" {
		query += ` AND (case_id = ? OR case_id = '')`
		args = append(args, caseID)
	}
	if supplierID != "" {
		query += ` AND (supplier_id = ? OR supplier_id = '')`
		args = append(args, supplierID)
	}
	if categoryID != "" {
		query += ` AND (category_id = ? OR category_id = '')`
		args = append(args, categoryID)
	}
	if len(documentTypes) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(documentTypes)), ",")
		query += ` AND document_type IN (` + placeholders + `)`
		for _, dt := range documentTypes {
			args = append(args, dt)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var createdAt string
		if err := rows.Scan(&d.DocumentID, &d.Filename, &d.DocumentType,
			&d.CaseID, &d.SupplierID, &d.CategoryID, &d.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// AddPerformanceRecord inserts one supplier performance observation.
func (s *Store) AddPerformanceRecord(ctx context.Context, r PerformanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO supplier_performance (supplier_id, category_id, metric, value, period, trend)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.SupplierID, r.CategoryID, r.Metric, r.Value, r.Period, r.Trend)
	if err != nil {
		return fmt.Errorf("adding performance record for %s: %w", r.SupplierID, err)
	}
	return nil
}

// PerformanceRecords returns performance observations for a supplier,
// optionally scoped to a category.
func (s *Store) PerformanceRecords(ctx context.Context, supplierID, categoryID string) ([]PerformanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT supplier_id, category_id, metric, value, period, trend
		FROM supplier_performance WHERE supplier_id = ?`
	args := []any{supplierID}
	if categoryID != "" {
		query += ` AND (category_id = ? OR category_id = '')`
		args = append(args, categoryID)
	}
	query += ` ORDER BY period DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying performance for %s: %w", supplierID, err)
	}
	defer rows.Close()

	var out []PerformanceRecord
	for rows.Next() {
		var r PerformanceRecord
		if err := rows.Scan(&r.SupplierID, &r.CategoryID, &r.Metric,
			&r.Value, &r.Period, &r.Trend); err != nil {
			return nil, fmt.Errorf("scanning performance row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddSpendRecord inserts one supplier spend observation.
func (s *Store) AddSpendRecord(ctx context.Context, r SpendRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Currency == "" {
		r.Currency = "USD"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO supplier_spend (supplier_id, category_id, period, amount, currency)
		VALUES (?, ?, ?, ?, ?)`,
		r.SupplierID, r.CategoryID, r.Period, r.Amount, r.Currency)
	if err != nil {
		return fmt.Errorf("adding spend record for %s: %w", r.SupplierID, err)
	}
	return nil
}

// SpendRecords returns spend observations for a supplier, optionally scoped
// to a category.
func (s *Store) SpendRecords(ctx context.Context, supplierID, categoryID string) ([]SpendRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT supplier_id, category_id, period, amount, currency
		FROM supplier_spend WHERE supplier_id = ?`
	args := []any{supplierID}
	if categoryID != "" {
		query += ` AND (category_id = ? OR category_id = '')`
		args = append(args, categoryID)
	}
	query += ` ORDER BY period DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying spend for %s: %w", supplierID, err)
	}
	defer rows.Close()

	var out []SpendRecord
	for rows.Next() {
		var r SpendRecord
		if err := rows.Scan(&r.SupplierID, &r.CategoryID, &r.Period,
			&r.Amount, &r.Currency); err != nil {
			return nil, fmt.Errorf("scanning spend row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddSLAEvent inserts one service-level incident.
func (s *Store) AddSLAEvent(ctx context.Context, e SLAEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.OccurredAt == "" {
		e.OccurredAt = time.Now().UTC().Format("2006-01-02")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sla_events (supplier_id, severity, event_type, description, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.SupplierID, e.Severity, e.EventType, e.Description, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("adding SLA event for %s: %w", e.SupplierID, err)
	}
	return nil
}

// SLAEventRecords returns incidents for a supplier, optionally filtered by
// severity.
func (s *Store) SLAEventRecords(ctx context.Context, supplierID, severity string) ([]SLAEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT supplier_id, severity, event_type, description, occurred_at
		FROM sla_events WHERE supplier_id = ?`
	args := []any{supplierID}
	if severity != "" {
		query += ` AND severity = ?`
		args = append(args, severity)
	}
	query += ` ORDER BY occurred_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying SLA events for %s: %w", supplierID, err)
	}
	defer rows.Close()

	var out []SLAEvent
	for rows.Next() {
		var e SLAEvent
		if err := rows.Scan(&e.SupplierID, &e.Severity, &e.EventType,
			&e.Description, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning SLA event row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
