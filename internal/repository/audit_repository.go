package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
	"github.com/sasamuel24/contabilidadcq/internal/database"
)

// AuditEntry is one immutable record in the workflow audit log.
type AuditEntry struct {
	ID           string
	InvoiceID    string
	Action       string
	PerformedBy  string
	PerformedAt  time.Time
	StatusBefore *string
	StatusAfter  *string
	Metadata     map[string]interface{}
}

// AuditRepository appends and reads immutable workflow audit log entries.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one audit entry. The table is append-only; this is the only
// mutation operation exposed.
func (r *AuditRepository) Append(ctx context.Context, entry *AuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "failed to marshal audit metadata")
		}
	}

	query := `
		INSERT INTO workflow_audit_log
		    (invoice_id, action, performed_by, status_before, status_after, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, performed_at
	`

	err := r.db.QueryRow(ctx, query,
		entry.InvoiceID,
		entry.Action,
		entry.PerformedBy,
		entry.StatusBefore,
		entry.StatusAfter,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to append audit entry")
	}
	return nil
}

// GetByInvoiceID returns the full audit trail for an invoice, oldest first.
func (r *AuditRepository) GetByInvoiceID(ctx context.Context, invoiceID string) ([]*AuditEntry, error) {
	query := `
		SELECT id, invoice_id, action, performed_by, performed_at,
		       status_before, status_after, metadata
		FROM workflow_audit_log
		WHERE invoice_id = $1
		ORDER BY performed_at ASC
	`

	rows, err := r.db.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get audit log")
	}
	defer rows.Close()

	entries := make([]*AuditEntry, 0)
	for rows.Next() {
		entry := &AuditEntry{}
		var metadataJSON []byte
		err := rows.Scan(
			&entry.ID,
			&entry.InvoiceID,
			&entry.Action,
			&entry.PerformedBy,
			&entry.PerformedAt,
			&entry.StatusBefore,
			&entry.StatusAfter,
			&metadataJSON,
		)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan audit entry")
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to unmarshal audit metadata")
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
