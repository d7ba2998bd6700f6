package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
	"github.com/sasamuel24/contabilidadcq/internal/engine"
	"github.com/sasamuel24/contabilidadcq/internal/repository"
)

// AttachmentStore is the attachment persistence surface.
type AttachmentStore interface {
	Add(ctx context.Context, a *engine.Attachment) error
	GetByID(ctx context.Context, id string) (*engine.Attachment, error)
	ListByInvoice(ctx context.Context, invoiceID string, docType *engine.DocType) ([]engine.Attachment, error)
	CurrentByDocType(ctx context.Context, invoiceID string, docType engine.DocType) (*engine.Attachment, error)
}

// AttachmentService handles document uploads and their per-type rules.
type AttachmentService struct {
	attachments AttachmentStore
	invoices    InvoiceStore
	log         zerolog.Logger
}

// NewAttachmentService creates a new attachment service.
func NewAttachmentService(attachments AttachmentStore, invoices InvoiceStore, log zerolog.Logger) *AttachmentService {
	return &AttachmentService{
		attachments: attachments,
		invoices:    invoices,
		log:         log,
	}
}

// UploadAttachmentRequest represents a document upload. File bytes are
// already in external storage; this records the metadata and tags the
// document type.
type UploadAttachmentRequest struct {
	InvoiceID   string
	Actor       Actor
	DocType     engine.DocType
	Filename    string
	ContentType string
	StoragePath string
}

// contentTypeRules restricts what formats each document type accepts.
// Types absent here accept any content type.
var contentTypeRules = map[engine.DocType][]string{
	engine.DocTypeOC: {"application/pdf"},
	engine.DocTypeOS: {"application/pdf"},
	engine.DocTypeApproval: {
		"application/pdf", "image/jpeg", "image/png", "image/webp",
	},
}

// UploadAttachment validates and records a document upload. Treasury payment
// documents (PEC, EC, PCE, PED) may only be attached by treasury; everything
// else requires the invoice to still be editable by its responsible area.
func (s *AttachmentService) UploadAttachment(ctx context.Context, req *UploadAttachmentRequest) (*engine.Attachment, error) {
	if !engine.KnownDocType(req.DocType) {
		return nil, apperr.InvalidInput("doc_type", fmt.Sprintf("unknown document type %q", req.DocType))
	}
	if strings.TrimSpace(req.Filename) == "" {
		return nil, apperr.InvalidInput("filename", "filename is required")
	}
	if strings.TrimSpace(req.StoragePath) == "" {
		return nil, apperr.InvalidInput("storage_path", "storage path is required")
	}

	if allowed, ok := contentTypeRules[req.DocType]; ok {
		match := false
		for _, ct := range allowed {
			if req.ContentType == ct {
				match = true
				break
			}
		}
		if !match {
			return nil, apperr.InvalidInput("content_type",
				fmt.Sprintf("document type %s does not accept %s uploads", req.DocType, req.ContentType))
		}
	}

	inv, err := s.invoices.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}

	if engine.IsTreasuryDocType(req.DocType) {
		if req.Actor.Role != engine.RoleTreasury {
			return nil, apperr.New(apperr.CodeUnauthorized,
				"only treasury may attach payment documents")
		}
		if inv.Status.Terminal() {
			return nil, apperr.IllegalTransition(
				"invoice is read-only in state " + string(inv.Status))
		}
	} else if err := ensureEditable(inv, req.Actor); err != nil {
		return nil, err
	}

	attachment := &engine.Attachment{
		InvoiceID:   inv.ID,
		DocType:     req.DocType,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		StoragePath: req.StoragePath,
		UploadedBy:  &req.Actor.ID,
	}
	if err := s.attachments.Add(ctx, attachment); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("invoice_id", inv.ID).
		Str("attachment_id", attachment.ID).
		Str("doc_type", string(req.DocType)).
		Str("uploaded_by", req.Actor.ID).
		Msg("Attachment uploaded")

	return attachment, nil
}

// ListAttachments lists an invoice's attachments, optionally filtered by
// document type.
func (s *AttachmentService) ListAttachments(ctx context.Context, invoiceID string, docType *engine.DocType) ([]engine.Attachment, error) {
	if docType != nil && !engine.KnownDocType(*docType) {
		return nil, apperr.InvalidInput("doc_type", fmt.Sprintf("unknown document type %q", *docType))
	}
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.attachments.ListByInvoice(ctx, invoiceID, docType)
}

// CurrentDocument returns the latest upload of one document type, which is
// the copy the completeness checklist counts. Earlier uploads stay available
// as history through ListAttachments.
func (s *AttachmentService) CurrentDocument(ctx context.Context, invoiceID string, docType engine.DocType) (*engine.Attachment, error) {
	if !engine.KnownDocType(docType) {
		return nil, apperr.InvalidInput("doc_type", fmt.Sprintf("unknown document type %q", docType))
	}
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	attachment, err := s.attachments.CurrentByDocType(ctx, invoiceID, docType)
	if err != nil {
		return nil, err
	}
	if attachment == nil {
		return nil, apperr.New(apperr.CodeNotFound,
			fmt.Sprintf("invoice %s has no %s document", invoiceID, docType))
	}
	return attachment, nil
}

// GetAttachment retrieves attachment metadata by ID.
func (s *AttachmentService) GetAttachment(ctx context.Context, id string) (*engine.Attachment, error) {
	return s.attachments.GetByID(ctx, id)
}

// compile-time checks that the repositories satisfy the store interfaces.
var (
	_ InvoiceStore    = (*repository.InvoiceRepository)(nil)
	_ AttachmentStore = (*repository.AttachmentRepository)(nil)
	_ AuditStore      = (*repository.AuditRepository)(nil)
	_ CatalogStore    = (*repository.CatalogRepository)(nil)
)
