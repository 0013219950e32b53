// Package amend reconciles amendment documents against the Report of the
// original submission they modify. History is append-only: reconciliation
// never mutates the original Report, it adds an AmendmentRecord.
package amend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AmendmentRecord links an amendment document to its original's Report.
// Immutable once written.
type AmendmentRecord struct {
	ID                  string `json:"id"`
	OriginalDocumentID  string `json:"original_document_id"`
	AmendmentDocumentID string `json:"amendment_document_id"`
	ChangeSummary       string `json:"change_summary"`
	AppliedAt           int64  `json:"applied_at"` // unix nanoseconds
}

// Records persists AmendmentRecords in the index database.
type Records struct {
	db *sql.DB
}

// NewRecords creates a Records store over an open database.
func NewRecords(db *sql.DB) *Records {
	return &Records{db: db}
}

// Insert writes a new record. AppliedAt is assigned here; nanosecond
// resolution keeps (original, applied_at) unique for sequential amendments
// landing in the same second.
func (r *Records) Insert(ctx context.Context, originalID, amendmentID, changeSummary string) (*AmendmentRecord, error) {
	rec := &AmendmentRecord{
		ID:                  uuid.NewString(),
		OriginalDocumentID:  originalID,
		AmendmentDocumentID: amendmentID,
		ChangeSummary:       changeSummary,
		AppliedAt:           time.Now().UnixNano(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO amendment_records (id, original_document_id, amendment_document_id, change_summary, applied_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.OriginalDocumentID, rec.AmendmentDocumentID, rec.ChangeSummary, rec.AppliedAt)
	if err != nil {
		return nil, fmt.Errorf("amend: insert record for %s: %w", originalID, err)
	}
	return rec, nil
}

// ListByOriginal returns every record referencing the original, oldest
// first.
func (r *Records) ListByOriginal(ctx context.Context, originalID string) ([]AmendmentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, original_document_id, amendment_document_id, change_summary, applied_at
		FROM amendment_records
		WHERE original_document_id = ?
		ORDER BY applied_at ASC
	`, originalID)
	if err != nil {
		return nil, fmt.Errorf("amend: list records for %s: %w", originalID, err)
	}
	defer rows.Close()

	var records []AmendmentRecord
	for rows.Next() {
		var rec AmendmentRecord
		if err := rows.Scan(&rec.ID, &rec.OriginalDocumentID, &rec.AmendmentDocumentID,
			&rec.ChangeSummary, &rec.AppliedAt); err != nil {
			return nil, fmt.Errorf("amend: scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
