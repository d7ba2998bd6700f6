package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
	"github.com/sasamuel24/contabilidadcq/internal/engine"
)

type mockAttachmentStore struct {
	added []*engine.Attachment
}

func (m *mockAttachmentStore) Add(ctx context.Context, a *engine.Attachment) error {
	a.ID = fmt.Sprintf("att-%d", len(m.added)+1)
	m.added = append(m.added, a)
	return nil
}

func (m *mockAttachmentStore) GetByID(ctx context.Context, id string) (*engine.Attachment, error) {
	for _, a := range m.added {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, apperr.NotFound("attachment", id)
}

func (m *mockAttachmentStore) ListByInvoice(ctx context.Context, invoiceID string, docType *engine.DocType) ([]engine.Attachment, error) {
	var out []engine.Attachment
	for _, a := range m.added {
		if a.InvoiceID == invoiceID && (docType == nil || a.DocType == *docType) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockAttachmentStore) CurrentByDocType(ctx context.Context, invoiceID string, docType engine.DocType) (*engine.Attachment, error) {
	for i := len(m.added) - 1; i >= 0; i-- {
		if m.added[i].InvoiceID == invoiceID && m.added[i].DocType == docType {
			return m.added[i], nil
		}
	}
	return nil, nil
}

func uploadReq(docType engine.DocType, contentType string, actor Actor) *UploadAttachmentRequest {
	return &UploadAttachmentRequest{
		InvoiceID:   "inv-1",
		Actor:       actor,
		DocType:     docType,
		Filename:    "document.pdf",
		ContentType: contentType,
		StoragePath: "invoices/inv-1/document.pdf",
	}
}

func TestUploadAttachment_ContentTypeRules(t *testing.T) {
	ctx := context.Background()
	ops := Actor{ID: "user-ops", Role: engine.RoleResponsibleArea}

	tests := []struct {
		name        string
		docType     engine.DocType
		contentType string
		ok          bool
	}{
		{"oc pdf", engine.DocTypeOC, "application/pdf", true},
		{"oc image rejected", engine.DocTypeOC, "image/png", false},
		{"os xml rejected", engine.DocTypeOS, "application/xml", false},
		{"approval pdf", engine.DocTypeApproval, "application/pdf", true},
		{"approval jpeg", engine.DocTypeApproval, "image/jpeg", true},
		{"approval webp", engine.DocTypeApproval, "image/webp", true},
		{"approval gif rejected", engine.DocTypeApproval, "image/gif", false},
		{"invoice pdf unrestricted", engine.DocTypeInvoicePDF, "application/octet-stream", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockInvoiceStore(readyInvoice(engine.StatusInProgress))
			svc := NewAttachmentService(&mockAttachmentStore{}, store, zerolog.Nop())

			_, err := svc.UploadAttachment(ctx, uploadReq(tt.docType, tt.contentType, ops))
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && apperr.CodeOf(err) != apperr.CodeInvalidInput {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestUploadAttachment_UnknownDocType(t *testing.T) {
	ctx := context.Background()
	store := newMockInvoiceStore(readyInvoice(engine.StatusInProgress))
	svc := NewAttachmentService(&mockAttachmentStore{}, store, zerolog.Nop())

	_, err := svc.UploadAttachment(ctx, uploadReq("RECIBO", "application/pdf",
		Actor{ID: "user-ops", Role: engine.RoleResponsibleArea}))
	if apperr.CodeOf(err) != apperr.CodeInvalidInput {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUploadAttachment_TreasuryDocuments(t *testing.T) {
	ctx := context.Background()

	store := newMockInvoiceStore(readyInvoice(engine.StatusTreasuryApproved))
	svc := NewAttachmentService(&mockAttachmentStore{}, store, zerolog.Nop())

	// Only treasury may attach payment documents.
	_, err := svc.UploadAttachment(ctx, uploadReq(engine.DocTypePEC, "application/pdf",
		Actor{ID: "user-ops", Role: engine.RoleResponsibleArea}))
	if apperr.CodeOf(err) != apperr.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	attachment, err := svc.UploadAttachment(ctx, uploadReq(engine.DocTypePEC, "application/pdf",
		Actor{ID: "user-treasury", Role: engine.RoleTreasury}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attachment.UploadedBy == nil || *attachment.UploadedBy != "user-treasury" {
		t.Fatalf("uploader not recorded: %+v", attachment)
	}
}

func TestUploadAttachment_ClosedInvoiceIsReadOnly(t *testing.T) {
	ctx := context.Background()
	store := newMockInvoiceStore(readyInvoice(engine.StatusClosed))
	svc := NewAttachmentService(&mockAttachmentStore{}, store, zerolog.Nop())

	_, err := svc.UploadAttachment(ctx, uploadReq(engine.DocTypePEC, "application/pdf",
		Actor{ID: "user-treasury", Role: engine.RoleTreasury}))
	if apperr.CodeOf(err) != apperr.CodeIllegalTransition {
		t.Fatalf("expected illegal transition, got %v", err)
	}

	_, err = svc.UploadAttachment(ctx, uploadReq(engine.DocTypeOC, "application/pdf",
		Actor{ID: "user-ops", Role: engine.RoleResponsibleArea}))
	if apperr.CodeOf(err) != apperr.CodeIllegalTransition {
		t.Fatalf("expected illegal transition, got %v", err)
	}
}

func TestCurrentDocument_LatestUploadWins(t *testing.T) {
	ctx := context.Background()
	store := newMockInvoiceStore(readyInvoice(engine.StatusInProgress))
	attachments := &mockAttachmentStore{}
	svc := NewAttachmentService(attachments, store, zerolog.Nop())

	ops := Actor{ID: "user-ops", Role: engine.RoleResponsibleArea}
	first, err := svc.UploadAttachment(ctx, uploadReq(engine.DocTypeOC, "application/pdf", ops))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.UploadAttachment(ctx, uploadReq(engine.DocTypeOC, "application/pdf", ops))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("uploads share id %q", first.ID)
	}

	current, err := svc.CurrentDocument(ctx, "inv-1", engine.DocTypeOC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current.ID != second.ID {
		t.Fatalf("current document = %q, want latest %q", current.ID, second.ID)
	}

	// History keeps both uploads.
	docType := engine.DocTypeOC
	history, err := svc.ListAttachments(ctx, "inv-1", &docType)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 uploads in history, got %d", len(history))
	}

	_, err = svc.CurrentDocument(ctx, "inv-1", engine.DocTypePEC)
	if apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("expected not found for missing document, got %v", err)
	}

	_, err = svc.CurrentDocument(ctx, "inv-1", engine.DocType("RECIBO"))
	if apperr.CodeOf(err) != apperr.CodeInvalidInput {
		t.Fatalf("expected invalid input for unknown type, got %v", err)
	}
}

func TestUploadAttachment_StandardDocsReadOnlyAfterSubmit(t *testing.T) {
	ctx := context.Background()
	store := newMockInvoiceStore(readyInvoice(engine.StatusAccountingReview))
	svc := NewAttachmentService(&mockAttachmentStore{}, store, zerolog.Nop())

	_, err := svc.UploadAttachment(ctx, uploadReq(engine.DocTypeOC, "application/pdf",
		Actor{ID: "user-ops", Role: engine.RoleResponsibleArea}))
	if apperr.CodeOf(err) != apperr.CodeIllegalTransition {
		t.Fatalf("expected illegal transition, got %v", err)
	}
}
