package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
	"github.com/sasamuel24/contabilidadcq/internal/engine"
	"github.com/sasamuel24/contabilidadcq/internal/repository"
)

// FolderStore is the folder persistence surface.
type FolderStore interface {
	Create(ctx context.Context, f *engine.Folder) error
	GetByID(ctx context.Context, id string) (*engine.Folder, error)
	LoadTree(ctx context.Context) (engine.FolderTree, error)
	Update(ctx context.Context, id string, name *string, parentID *string, clearParent bool) error
	SetSummaryFile(ctx context.Context, id string, fileID *string) error
	Delete(ctx context.Context, id string) error
	AssignInvoice(ctx context.Context, folderID, invoiceID string) error
	UnassignInvoice(ctx context.Context, folderID, invoiceID string) error
}

var _ FolderStore = (*repository.FolderRepository)(nil)

// FolderService manages the folder tree invoices are filed into. Folders are
// an organisational overlay; filing an invoice never affects its workflow
// state.
type FolderService struct {
	folders     FolderStore
	invoices    InvoiceStore
	attachments AttachmentStore
	log         zerolog.Logger
}

// NewFolderService creates a new folder service.
func NewFolderService(folders FolderStore, invoices InvoiceStore, attachments AttachmentStore, log zerolog.Logger) *FolderService {
	return &FolderService{
		folders:     folders,
		invoices:    invoices,
		attachments: attachments,
		log:         log,
	}
}

// FolderNode is a folder with its resolved children and invoice counts.
type FolderNode struct {
	Folder            *engine.Folder `json:"folder"`
	InvoiceCount      int            `json:"invoice_count"`
	TotalInvoiceCount int            `json:"total_invoice_count"`
	Children          []*FolderNode  `json:"children"`
}

// CreateFolder creates a folder, optionally under an existing parent.
func (s *FolderService) CreateFolder(ctx context.Context, name string, parentID *string, createdBy string) (*engine.Folder, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.InvalidInput("name", "folder name is required")
	}

	if parentID != nil {
		tree, err := s.folders.LoadTree(ctx)
		if err != nil {
			return nil, err
		}
		if _, ok := tree[*parentID]; !ok {
			return nil, apperr.NotFound("folder", *parentID)
		}
	}

	folder := &engine.Folder{
		Name:      name,
		ParentID:  parentID,
		CreatedBy: &createdBy,
	}
	if err := s.folders.Create(ctx, folder); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("folder_id", folder.ID).
		Str("name", folder.Name).
		Msg("Folder created")

	return folder, nil
}

// GetFolder retrieves a folder with its direct children and invoice counts.
func (s *FolderService) GetFolder(ctx context.Context, id string) (*FolderNode, error) {
	tree, err := s.folders.LoadTree(ctx)
	if err != nil {
		return nil, err
	}
	folder, ok := tree[id]
	if !ok {
		return nil, apperr.NotFound("folder", id)
	}
	return s.buildNode(tree, folder, false), nil
}

// GetTree returns the full folder hierarchy with recursive invoice counts.
func (s *FolderService) GetTree(ctx context.Context) ([]*FolderNode, error) {
	tree, err := s.folders.LoadTree(ctx)
	if err != nil {
		return nil, err
	}

	roots := tree.Children("")
	nodes := make([]*FolderNode, 0, len(roots))
	for _, root := range roots {
		nodes = append(nodes, s.buildNode(tree, root, true))
	}
	return nodes, nil
}

// buildNode resolves one folder into a node; recurse expands the whole
// subtree, otherwise only direct children are attached.
func (s *FolderService) buildNode(tree engine.FolderTree, folder *engine.Folder, recurse bool) *FolderNode {
	node := &FolderNode{
		Folder:            folder,
		InvoiceCount:      len(folder.InvoiceIDs),
		TotalInvoiceCount: tree.TotalInvoiceCount(folder.ID),
		Children:          make([]*FolderNode, 0),
	}
	for _, child := range tree.Children(folder.ID) {
		if recurse {
			node.Children = append(node.Children, s.buildNode(tree, child, true))
		} else {
			node.Children = append(node.Children, &FolderNode{
				Folder:            child,
				InvoiceCount:      len(child.InvoiceIDs),
				TotalInvoiceCount: tree.TotalInvoiceCount(child.ID),
				Children:          make([]*FolderNode, 0),
			})
		}
	}
	return node
}

// UpdateFolderRequest renames a folder, moves it, or both. MoveToRoot
// detaches the folder from its parent; it is mutually exclusive with
// ParentID.
type UpdateFolderRequest struct {
	FolderID   string
	Name       *string
	ParentID   *string
	MoveToRoot bool
}

// UpdateFolder applies a rename or a move. Moves are validated against the
// tree: a folder can never become its own parent, directly or through a
// chain of descendants.
func (s *FolderService) UpdateFolder(ctx context.Context, req *UpdateFolderRequest) (*engine.Folder, error) {
	if req.Name == nil && req.ParentID == nil && !req.MoveToRoot {
		return nil, apperr.InvalidInput("folder", "nothing to update")
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, apperr.InvalidInput("name", "folder name is required")
	}
	if req.ParentID != nil && req.MoveToRoot {
		return nil, apperr.InvalidInput("parent_id", "cannot set a parent and move to root at once")
	}

	tree, err := s.folders.LoadTree(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := tree[req.FolderID]; !ok {
		return nil, apperr.NotFound("folder", req.FolderID)
	}
	if req.ParentID != nil {
		if err := tree.ValidateParent(req.FolderID, *req.ParentID); err != nil {
			return nil, err
		}
	}

	if err := s.folders.Update(ctx, req.FolderID, req.Name, req.ParentID, req.MoveToRoot); err != nil {
		return nil, err
	}
	return s.folders.GetByID(ctx, req.FolderID)
}

// SetSummaryFile links a generated summary PDF to a folder. The file must be
// an existing PDF attachment; a nil fileID clears the link.
func (s *FolderService) SetSummaryFile(ctx context.Context, folderID string, fileID *string) (*engine.Folder, error) {
	if _, err := s.folders.GetByID(ctx, folderID); err != nil {
		return nil, err
	}
	if fileID != nil {
		attachment, err := s.attachments.GetByID(ctx, *fileID)
		if err != nil {
			return nil, err
		}
		if attachment.ContentType != "application/pdf" {
			return nil, apperr.InvalidInput("summary_file_id", "summary file must be a PDF")
		}
	}

	if err := s.folders.SetSummaryFile(ctx, folderID, fileID); err != nil {
		return nil, err
	}
	return s.folders.GetByID(ctx, folderID)
}

// DeleteFolder removes a folder. Its children are reparented to the deleted
// folder's parent, so no subtree ever dangles.
func (s *FolderService) DeleteFolder(ctx context.Context, id string) error {
	if _, err := s.folders.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.folders.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info().Str("folder_id", id).Msg("Folder deleted")
	return nil
}

// AssignInvoice files an invoice in a folder. Filing is idempotent and an
// invoice may live in several folders at once.
func (s *FolderService) AssignInvoice(ctx context.Context, folderID, invoiceID string) error {
	if _, err := s.folders.GetByID(ctx, folderID); err != nil {
		return err
	}
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return err
	}
	return s.folders.AssignInvoice(ctx, folderID, invoiceID)
}

// UnassignInvoice removes an invoice from a folder.
func (s *FolderService) UnassignInvoice(ctx context.Context, folderID, invoiceID string) error {
	if _, err := s.folders.GetByID(ctx, folderID); err != nil {
		return err
	}
	return s.folders.UnassignInvoice(ctx, folderID, invoiceID)
}
