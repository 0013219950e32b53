package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Store persists Reports in the index database. Sections are written as an
// ordered JSON array; every append is its own transaction, which is the
// pipeline's durability point.
type Store struct {
	db *sql.DB
}

// NewStore creates a report Store over an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts an in-progress Report for the document if none exists and
// returns the current row either way.
func (s *Store) Create(ctx context.Context, documentID string) (*Report, error) {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (document_id, state, sections_json, created_at, updated_at)
		VALUES (?, ?, '[]', ?, ?)
		ON CONFLICT(document_id) DO NOTHING
	`, documentID, StateInProgress, now, now)
	if err != nil {
		return nil, fmt.Errorf("report: create %s: %w", documentID, err)
	}
	rep, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, fmt.Errorf("report: create %s: row missing after insert", documentID)
	}
	return rep, nil
}

// Get returns the document's Report, or nil when none exists.
func (s *Store) Get(ctx context.Context, documentID string) (*Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT document_id, state, sections_json, created_at, updated_at
		FROM reports
		WHERE document_id = ?
	`, documentID)

	var rep Report
	var sectionsJSON string
	var state string
	err := row.Scan(&rep.DocumentID, &state, &sectionsJSON, &rep.CreatedAt, &rep.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("report: get %s: %w", documentID, err)
	}
	rep.State = State(state)
	if err := json.Unmarshal([]byte(sectionsJSON), &rep.Sections); err != nil {
		return nil, fmt.Errorf("report: decode sections for %s: %w", documentID, err)
	}
	return &rep, nil
}

// AppendSection adds one task's output. Re-appending a task that already
// has a section is forbidden; the idempotent-resume path must skip
// completed tasks instead.
func (s *Store) AppendSection(ctx context.Context, documentID, task, text string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("report: begin tx: %w", err)
	}
	defer tx.Rollback()

	var sectionsJSON string
	err = tx.QueryRowContext(ctx, `
		SELECT sections_json FROM reports WHERE document_id = ?
	`, documentID).Scan(&sectionsJSON)
	if err == sql.ErrNoRows {
		return fmt.Errorf("report: append to %s: no report row", documentID)
	}
	if err != nil {
		return fmt.Errorf("report: append to %s: %w", documentID, err)
	}

	var sections []Section
	if err := json.Unmarshal([]byte(sectionsJSON), &sections); err != nil {
		return fmt.Errorf("report: decode sections for %s: %w", documentID, err)
	}
	for _, sec := range sections {
		if sec.Task == task {
			return fmt.Errorf("report: task %q already has a section in %s", task, documentID)
		}
	}
	sections = append(sections, Section{Task: task, Text: text})
	raw, err := json.Marshal(sections)
	if err != nil {
		return fmt.Errorf("report: encode sections for %s: %w", documentID, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE reports SET sections_json = ?, updated_at = ? WHERE document_id = ?
	`, string(raw), time.Now().Unix(), documentID)
	if err != nil {
		return fmt.Errorf("report: update sections for %s: %w", documentID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("report: commit section for %s: %w", documentID, err)
	}
	return nil
}

// SetState updates the report's state.
func (s *Store) SetState(ctx context.Context, documentID string, state State) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reports SET state = ?, updated_at = ? WHERE document_id = ?
	`, state, time.Now().Unix(), documentID)
	if err != nil {
		return fmt.Errorf("report: set state of %s: %w", documentID, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("report: set state of %s: no report row", documentID)
	}
	return nil
}
