package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
	"github.com/sasamuel24/contabilidadcq/internal/database"
	"github.com/sasamuel24/contabilidadcq/internal/engine"
)

// CommentRepository handles per-invoice comments.
type CommentRepository struct {
	db *database.DB
}

// NewCommentRepository creates a new comment repository.
func NewCommentRepository(db *database.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create inserts a new comment.
func (r *CommentRepository) Create(ctx context.Context, c *engine.Comment) error {
	query := `
		INSERT INTO comments (invoice_id, author_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, c.InvoiceID, c.AuthorID, c.Content).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to create comment")
	}
	return nil
}

// GetByID retrieves one comment.
func (r *CommentRepository) GetByID(ctx context.Context, id string) (*engine.Comment, error) {
	query := `
		SELECT id, invoice_id, author_id, content, created_at, updated_at
		FROM comments
		WHERE id = $1
	`

	c := &engine.Comment{}
	err := r.db.QueryRow(ctx, query, id).
		Scan(&c.ID, &c.InvoiceID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("comment", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get comment")
	}
	return c, nil
}

// ListByInvoice returns an invoice's comments, oldest first.
func (r *CommentRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]engine.Comment, error) {
	query := `
		SELECT id, invoice_id, author_id, content, created_at, updated_at
		FROM comments
		WHERE invoice_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to list comments")
	}
	defer rows.Close()

	comments := make([]engine.Comment, 0)
	for rows.Next() {
		var c engine.Comment
		if err := rows.Scan(&c.ID, &c.InvoiceID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan comment")
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// UpdateContent replaces a comment's content.
func (r *CommentRepository) UpdateContent(ctx context.Context, id, content string) (*engine.Comment, error) {
	query := `
		UPDATE comments
		SET content = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id, invoice_id, author_id, content, created_at, updated_at
	`

	c := &engine.Comment{}
	err := r.db.QueryRow(ctx, query, id, content).
		Scan(&c.ID, &c.InvoiceID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("comment", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to update comment")
	}
	return c, nil
}

// Delete removes a comment.
func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to delete comment")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("comment", id)
	}
	return nil
}
