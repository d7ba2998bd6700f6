package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
	"github.com/sasamuel24/contabilidadcq/internal/database"
	"github.com/sasamuel24/contabilidadcq/internal/engine"
)

// FolderRepository stores the treasury filing tree: folders, their parent
// links and their invoice references.
type FolderRepository struct {
	db *database.DB
}

// NewFolderRepository creates a new folder repository.
func NewFolderRepository(db *database.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

// Create inserts a new folder.
func (r *FolderRepository) Create(ctx context.Context, f *engine.Folder) error {
	query := `
		INSERT INTO folders (name, parent_id, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query, f.Name, f.ParentID, f.CreatedBy).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to create folder")
	}
	if f.InvoiceIDs == nil {
		f.InvoiceIDs = []string{}
	}
	return nil
}

// GetByID retrieves a folder with its invoice references.
func (r *FolderRepository) GetByID(ctx context.Context, id string) (*engine.Folder, error) {
	query := `
		SELECT id, name, parent_id, summary_file_id, created_by, created_at, updated_at
		FROM folders
		WHERE id = $1
	`

	f := &engine.Folder{}
	err := r.db.QueryRow(ctx, query, id).
		Scan(&f.ID, &f.Name, &f.ParentID, &f.SummaryFileID, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("folder", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get folder")
	}

	if f.InvoiceIDs, err = r.getInvoiceIDs(ctx, id); err != nil {
		return nil, err
	}
	return f, nil
}

// LoadTree loads every folder with its invoice references, indexed by id.
// The whole tree is small enough to hold in memory for cycle checks and
// recursive counts.
func (r *FolderRepository) LoadTree(ctx context.Context) (engine.FolderTree, error) {
	query := `
		SELECT id, name, parent_id, summary_file_id, created_by, created_at, updated_at
		FROM folders
		ORDER BY name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to load folders")
	}
	defer rows.Close()

	var folders []*engine.Folder
	for rows.Next() {
		f := &engine.Folder{InvoiceIDs: []string{}}
		err := rows.Scan(&f.ID, &f.Name, &f.ParentID, &f.SummaryFileID, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan folder")
		}
		folders = append(folders, f)
	}

	tree := engine.NewFolderTree(folders)

	refRows, err := r.db.Query(ctx, `SELECT folder_id, invoice_id FROM folder_invoices ORDER BY created_at`)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to load folder invoice references")
	}
	defer refRows.Close()

	for refRows.Next() {
		var folderID, invoiceID string
		if err := refRows.Scan(&folderID, &invoiceID); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan folder invoice reference")
		}
		if f, ok := tree[folderID]; ok {
			f.InvoiceIDs = append(f.InvoiceIDs, invoiceID)
		}
	}
	return tree, nil
}

// Update renames and/or reparents a folder. Cycle checks happen in the
// service against the loaded tree before this is called.
func (r *FolderRepository) Update(ctx context.Context, id string, name *string, parentID *string, clearParent bool) error {
	query := `
		UPDATE folders
		SET name = COALESCE($2, name),
		    parent_id = CASE WHEN $4 THEN NULL WHEN $3::uuid IS NOT NULL THEN $3 ELSE parent_id END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returned string
	err := r.db.QueryRow(ctx, query, id, name, parentID, clearParent).Scan(&returned)
	if err == pgx.ErrNoRows {
		return apperr.NotFound("folder", id)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to update folder")
	}
	return nil
}

// SetSummaryFile records the folder's summary PDF attachment reference.
func (r *FolderRepository) SetSummaryFile(ctx context.Context, id string, fileID *string) error {
	query := `
		UPDATE folders
		SET summary_file_id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returned string
	err := r.db.QueryRow(ctx, query, id, fileID).Scan(&returned)
	if err == pgx.ErrNoRows {
		return apperr.NotFound("folder", id)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to set folder summary file")
	}
	return nil
}

// Delete removes a folder. Children are reparented to the deleted folder's
// parent so no subtree is orphaned.
func (r *FolderRepository) Delete(ctx context.Context, id string) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE folders SET parent_id = (SELECT parent_id FROM folders WHERE id = $1)
			WHERE parent_id = $1
		`, id)
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "failed to reparent child folders")
		}

		tag, err := tx.Exec(ctx, `DELETE FROM folders WHERE id = $1`, id)
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "failed to delete folder")
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("folder", id)
		}
		return nil
	})
}

// AssignInvoice files an invoice into a folder. Re-assigning the same pair is
// a no-op.
func (r *FolderRepository) AssignInvoice(ctx context.Context, folderID, invoiceID string) error {
	query := `
		INSERT INTO folder_invoices (folder_id, invoice_id)
		VALUES ($1, $2)
		ON CONFLICT (folder_id, invoice_id) DO NOTHING
	`

	if _, err := r.db.Exec(ctx, query, folderID, invoiceID); err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to assign invoice to folder")
	}
	return nil
}

// UnassignInvoice removes an invoice reference from a folder.
func (r *FolderRepository) UnassignInvoice(ctx context.Context, folderID, invoiceID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM folder_invoices WHERE folder_id = $1 AND invoice_id = $2`, folderID, invoiceID)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to unassign invoice from folder")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("folder invoice reference", invoiceID)
	}
	return nil
}

func (r *FolderRepository) getInvoiceIDs(ctx context.Context, folderID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT invoice_id FROM folder_invoices WHERE folder_id = $1 ORDER BY created_at`, folderID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get folder invoice references")
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan invoice reference")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
