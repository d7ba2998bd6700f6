package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
	"github.com/sasamuel24/contabilidadcq/internal/database"
	"github.com/sasamuel24/contabilidadcq/internal/engine"
)

// AttachmentRepository tracks attachment metadata. Every upload is retained
// as history; the newest row per doc type is the "current" one for checklist
// purposes.
type AttachmentRepository struct {
	db *database.DB
}

// NewAttachmentRepository creates a new attachment repository.
func NewAttachmentRepository(db *database.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Add inserts a new attachment record.
func (r *AttachmentRepository) Add(ctx context.Context, a *engine.Attachment) error {
	query := `
		INSERT INTO attachments (invoice_id, doc_type, filename, content_type, storage_path, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		a.InvoiceID,
		a.DocType,
		a.Filename,
		a.ContentType,
		a.StoragePath,
		a.UploadedBy,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to add attachment")
	}
	return nil
}

// GetByID retrieves one attachment.
func (r *AttachmentRepository) GetByID(ctx context.Context, id string) (*engine.Attachment, error) {
	query := `
		SELECT id, invoice_id, doc_type, filename, content_type, storage_path, uploaded_by, created_at
		FROM attachments
		WHERE id = $1
	`

	a := &engine.Attachment{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.InvoiceID, &a.DocType, &a.Filename, &a.ContentType, &a.StoragePath, &a.UploadedBy, &a.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("attachment", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get attachment")
	}
	return a, nil
}

// ListByInvoice returns all attachments for an invoice, optionally filtered
// by doc type, oldest first.
func (r *AttachmentRepository) ListByInvoice(ctx context.Context, invoiceID string, docType *engine.DocType) ([]engine.Attachment, error) {
	query := `
		SELECT id, invoice_id, doc_type, filename, content_type, storage_path, uploaded_by, created_at
		FROM attachments
		WHERE invoice_id = $1
	`
	args := []any{invoiceID}
	if docType != nil {
		query += ` AND doc_type = $2`
		args = append(args, *docType)
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list attachments")
	}
	defer rows.Close()

	attachments := make([]engine.Attachment, 0)
	for rows.Next() {
		var a engine.Attachment
		err := rows.Scan(&a.ID, &a.InvoiceID, &a.DocType, &a.Filename, &a.ContentType, &a.StoragePath, &a.UploadedBy, &a.CreatedAt)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan attachment")
		}
		attachments = append(attachments, a)
	}
	return attachments, nil
}

// CurrentByDocType returns the latest attachment with the given tag, or nil.
func (r *AttachmentRepository) CurrentByDocType(ctx context.Context, invoiceID string, docType engine.DocType) (*engine.Attachment, error) {
	query := `
		SELECT id, invoice_id, doc_type, filename, content_type, storage_path, uploaded_by, created_at
		FROM attachments
		WHERE invoice_id = $1 AND doc_type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	a := &engine.Attachment{}
	err := r.db.QueryRow(ctx, query, invoiceID, docType).Scan(
		&a.ID, &a.InvoiceID, &a.DocType, &a.Filename, &a.ContentType, &a.StoragePath, &a.UploadedBy, &a.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get current attachment")
	}
	return a, nil
}
