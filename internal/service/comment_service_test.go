package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
	"github.com/sasamuel24/contabilidadcq/internal/engine"
)

type mockCommentStore struct {
	comments map[string]*engine.Comment
	nextID   int
	deleted  []string
}

func newMockCommentStore() *mockCommentStore {
	return &mockCommentStore{comments: map[string]*engine.Comment{}}
}

func (m *mockCommentStore) Create(ctx context.Context, c *engine.Comment) error {
	m.nextID++
	c.ID = "comment-1"
	m.comments[c.ID] = c
	return nil
}

func (m *mockCommentStore) GetByID(ctx context.Context, id string) (*engine.Comment, error) {
	if c, ok := m.comments[id]; ok {
		return c, nil
	}
	return nil, apperr.NotFound("comment", id)
}

func (m *mockCommentStore) ListByInvoice(ctx context.Context, invoiceID string) ([]engine.Comment, error) {
	var out []engine.Comment
	for _, c := range m.comments {
		if c.InvoiceID == invoiceID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockCommentStore) UpdateContent(ctx context.Context, id, content string) (*engine.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, apperr.NotFound("comment", id)
	}
	c.Content = content
	return c, nil
}

func (m *mockCommentStore) Delete(ctx context.Context, id string) error {
	if _, ok := m.comments[id]; !ok {
		return apperr.NotFound("comment", id)
	}
	delete(m.comments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func TestComments_AuthorOnlyEdits(t *testing.T) {
	ctx := context.Background()
	store := newMockCommentStore()
	invoices := newMockInvoiceStore(readyInvoice(engine.StatusInProgress))
	svc := NewCommentService(store, invoices, zerolog.Nop())

	author := Actor{ID: "user-ops", Role: engine.RoleResponsibleArea}
	other := Actor{ID: "user-accounting", Role: engine.RoleAccounting}

	comment, err := svc.AddComment(ctx, "inv-1", author, "missing the delivery note")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.UpdateComment(ctx, comment.ID, other, "edited"); apperr.CodeOf(err) != apperr.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := svc.DeleteComment(ctx, comment.ID, other); apperr.CodeOf(err) != apperr.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	updated, err := svc.UpdateComment(ctx, comment.ID, author, "delivery note arrived")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Content != "delivery note arrived" {
		t.Fatalf("content = %q", updated.Content)
	}

	if err := svc.DeleteComment(ctx, comment.ID, author); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.deleted) != 1 {
		t.Fatalf("comment not deleted")
	}
}

func TestAddComment_RequiresContentAndInvoice(t *testing.T) {
	ctx := context.Background()
	store := newMockCommentStore()
	invoices := newMockInvoiceStore(readyInvoice(engine.StatusInProgress))
	svc := NewCommentService(store, invoices, zerolog.Nop())

	actor := Actor{ID: "user-ops", Role: engine.RoleResponsibleArea}

	if _, err := svc.AddComment(ctx, "inv-1", actor, "   "); apperr.CodeOf(err) != apperr.CodeInvalidInput {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := svc.AddComment(ctx, "ghost", actor, "hello"); apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestComments_AvailableInTerminalStates(t *testing.T) {
	// Comments stay open after the workflow closes.
	ctx := context.Background()
	store := newMockCommentStore()
	invoices := newMockInvoiceStore(readyInvoice(engine.StatusClosed))
	svc := NewCommentService(store, invoices, zerolog.Nop())

	if _, err := svc.AddComment(ctx, "inv-1", Actor{ID: "user-treasury", Role: engine.RoleTreasury}, "archived after payment"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
