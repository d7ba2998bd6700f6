package engine

import (
	"fmt"
	"time"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
)

// Folder is a named node in the treasury filing tree. Folder assignment is
// pure tagging and never changes invoice state.
type Folder struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
	// InvoiceIDs are the direct invoice references filed in this folder.
	InvoiceIDs []string `json:"invoice_ids"`
	// SummaryFileID optionally points to the folder's summary PDF attachment.
	SummaryFileID *string   `json:"summary_file_id,omitempty"`
	CreatedBy     *string   `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FolderTree indexes folders by id for O(1) lookup. It is the in-memory shape
// used for cycle detection and recursive counting.
type FolderTree map[string]*Folder

// NewFolderTree builds a tree index from a folder list.
func NewFolderTree(folders []*Folder) FolderTree {
	tree := make(FolderTree, len(folders))
	for _, f := range folders {
		tree[f.ID] = f
	}
	return tree
}

// ValidateParent verifies that reparenting folderID under parentID keeps the
// structure a tree. Parent ids arrive from callers as opaque strings, so a
// self-reference or any cycle through existing ancestry is rejected.
func (t FolderTree) ValidateParent(folderID, parentID string) error {
	if folderID == parentID {
		return apperr.ReferentialIntegrity("a folder cannot be its own parent")
	}
	if _, ok := t[parentID]; !ok {
		return apperr.NotFound("folder", parentID)
	}

	// Walk up from the proposed parent; hitting folderID means the move would
	// close a cycle. The step bound guards against corrupt ancestry.
	current := parentID
	for steps := 0; steps <= len(t); steps++ {
		folder, ok := t[current]
		if !ok || folder.ParentID == nil {
			return nil
		}
		if *folder.ParentID == folderID {
			return apperr.ReferentialIntegrity(
				fmt.Sprintf("moving folder %s under %s would create a cycle", folderID, parentID))
		}
		current = *folder.ParentID
	}
	return apperr.ReferentialIntegrity("folder ancestry already contains a cycle")
}

// Children returns the direct children of a folder id ("" for roots).
func (t FolderTree) Children(parentID string) []*Folder {
	var children []*Folder
	for _, f := range t {
		if parentID == "" {
			if f.ParentID == nil {
				children = append(children, f)
			}
		} else if f.ParentID != nil && *f.ParentID == parentID {
			children = append(children, f)
		}
	}
	return children
}

// TotalInvoiceCount is the count of direct invoice references plus the
// recursive sum over child folders.
func (t FolderTree) TotalInvoiceCount(folderID string) int {
	folder, ok := t[folderID]
	if !ok {
		return 0
	}
	return t.countInvoices(folder, make(map[string]bool))
}

func (t FolderTree) countInvoices(folder *Folder, seen map[string]bool) int {
	if seen[folder.ID] {
		return 0
	}
	seen[folder.ID] = true

	total := len(folder.InvoiceIDs)
	for _, child := range t.Children(folder.ID) {
		total += t.countInvoices(child, seen)
	}
	return total
}
