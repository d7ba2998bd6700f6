package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
	"github.com/sasamuel24/contabilidadcq/internal/engine"
	"github.com/sasamuel24/contabilidadcq/internal/repository"
)

// CommentStore is the comment persistence surface.
type CommentStore interface {
	Create(ctx context.Context, c *engine.Comment) error
	GetByID(ctx context.Context, id string) (*engine.Comment, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]engine.Comment, error)
	UpdateContent(ctx context.Context, id, content string) (*engine.Comment, error)
	Delete(ctx context.Context, id string) error
}

var _ CommentStore = (*repository.CommentRepository)(nil)

// CommentService handles per-invoice notes. Comments are available in every
// workflow state; only their author may edit or delete them.
type CommentService struct {
	comments CommentStore
	invoices InvoiceStore
	log      zerolog.Logger
}

// NewCommentService creates a new comment service.
func NewCommentService(comments CommentStore, invoices InvoiceStore, log zerolog.Logger) *CommentService {
	return &CommentService{
		comments: comments,
		invoices: invoices,
		log:      log,
	}
}

// AddComment attaches a note to an invoice.
func (s *CommentService) AddComment(ctx context.Context, invoiceID string, actor Actor, content string) (*engine.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.InvalidInput("content", "comment content is required")
	}
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}

	comment := &engine.Comment{
		InvoiceID: invoiceID,
		AuthorID:  actor.ID,
		Content:   content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("invoice_id", invoiceID).
		Str("comment_id", comment.ID).
		Str("author_id", actor.ID).
		Msg("Comment added")

	return comment, nil
}

// ListComments lists an invoice's comments, oldest first.
func (s *CommentService) ListComments(ctx context.Context, invoiceID string) ([]engine.Comment, error) {
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.comments.ListByInvoice(ctx, invoiceID)
}

// UpdateComment edits a comment's content. Only the author may edit.
func (s *CommentService) UpdateComment(ctx context.Context, id string, actor Actor, content string) (*engine.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.InvalidInput("content", "comment content is required")
	}

	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != actor.ID {
		return nil, apperr.New(apperr.CodeUnauthorized, "only the author may edit a comment")
	}

	return s.comments.UpdateContent(ctx, id, content)
}

// DeleteComment removes a comment. Only the author may delete.
func (s *CommentService) DeleteComment(ctx context.Context, id string, actor Actor) error {
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if comment.AuthorID != actor.ID {
		return apperr.New(apperr.CodeUnauthorized, "only the author may delete a comment")
	}

	if err := s.comments.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info().
		Str("comment_id", id).
		Str("author_id", actor.ID).
		Msg("Comment deleted")

	return nil
}
