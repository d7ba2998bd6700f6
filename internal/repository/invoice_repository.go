package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
	"github.com/sasamuel24/contabilidadcq/internal/database"
	"github.com/sasamuel24/contabilidadcq/internal/engine"
)

// InvoiceRepository handles invoice data operations, including distribution
// lines and attachment metadata loaded with each snapshot.
type InvoiceRepository struct {
	db *database.DB
}

// NewInvoiceRepository creates a new invoice repository.
func NewInvoiceRepository(db *database.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `
	id, supplier_name, invoice_number, issue_date, total_amount,
	status, origin_area_id, area_id, assigned_user_id, return_reason,
	cost_center_id, operation_center_id, business_unit_id, auxiliary_account_id,
	is_administrative_expense,
	requires_inventory, inventory_destination, inventory_codes,
	has_discrepancy, credit_note_number,
	has_advance, advance_percentage, delivery_interval,
	created_at, updated_at`

// Create inserts a new invoice in the received state, owned by its origin
// area. Ingestion supplies only the immutable identity fields.
func (r *InvoiceRepository) Create(ctx context.Context, inv *engine.Invoice) error {
	query := `
		INSERT INTO invoices (supplier_name, invoice_number, issue_date, total_amount,
		                      status, origin_area_id, area_id)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, created_at, updated_at
	`

	inv.Status = engine.StatusReceived
	err := r.db.QueryRow(ctx, query,
		inv.SupplierName,
		inv.InvoiceNumber,
		inv.IssueDate,
		inv.TotalAmount,
		inv.Status,
		inv.OriginAreaID,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to create invoice")
	}

	inv.AreaID = inv.OriginAreaID
	return nil
}

// GetByID retrieves a full invoice snapshot: workflow fields, conditional
// sub-records, distribution lines and attachment metadata.
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*engine.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

	inv, err := scanInvoice(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("invoice", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get invoice")
	}

	if inv.Distribution, err = r.getDistribution(ctx, inv.ID); err != nil {
		return nil, err
	}
	if inv.Attachments, err = r.getAttachments(ctx, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

// List retrieves invoices filtered by status and area, newest first.
func (r *InvoiceRepository) List(ctx context.Context, status *engine.Status, areaID *string, limit, offset int) ([]*engine.Invoice, int64, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM invoices WHERE 1=1`

	args := []any{}
	argCount := 1

	if status != nil {
		clause := fmt.Sprintf(" AND status = $%d", argCount)
		query += clause
		countQuery += clause
		args = append(args, *status)
		argCount++
	}
	if areaID != nil {
		clause := fmt.Sprintf(" AND area_id = $%d", argCount)
		query += clause
		countQuery += clause
		args = append(args, *areaID)
		argCount++
	}

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(err, apperr.CodeInternal, "failed to count invoices")
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, invoice_number DESC LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Wrap(err, apperr.CodeInternal, "failed to list invoices")
	}
	defer rows.Close()

	invoices := make([]*engine.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, apperr.Wrap(err, apperr.CodeInternal, "failed to scan invoice")
		}
		invoices = append(invoices, inv)
	}
	return invoices, total, nil
}

// ApplyTransition commits a transition decision atomically: status change,
// area and owner reassignment, and return-reason capture all land in one
// status-guarded update. A zero row count against an existing invoice means
// the snapshot went stale between evaluation and commit.
func (r *InvoiceRepository) ApplyTransition(ctx context.Context, id string, d *engine.Decision, areaID string, ownerID *string) error {
	query := `
		UPDATE invoices
		SET status = $3,
		    area_id = $4,
		    assigned_user_id = $5,
		    return_reason = CASE
		        WHEN $6::text IS NOT NULL THEN $6
		        WHEN $7 THEN NULL
		        ELSE return_reason
		    END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	tag, err := r.db.Exec(ctx, query, id, d.From, d.To, areaID, ownerID, d.ReturnReason, d.ClearReturnReason)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to apply transition")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM invoices WHERE id = $1)`, id).Scan(&exists); err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "failed to verify invoice")
		}
		if !exists {
			return apperr.NotFound("invoice", id)
		}
		return apperr.Conflict("invoice state changed since it was loaded; reload and retry")
	}
	return nil
}

// UpdateClassification sets the CC/CO/BU/auxiliary-account classification.
func (r *InvoiceRepository) UpdateClassification(ctx context.Context, id string, costCenterID, operationCenterID, businessUnitID, auxiliaryAccountID *string) error {
	query := `
		UPDATE invoices
		SET cost_center_id = $2,
		    operation_center_id = $3,
		    business_unit_id = $4,
		    auxiliary_account_id = $5,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returned string
	err := r.db.QueryRow(ctx, query, id, costCenterID, operationCenterID, businessUnitID, auxiliaryAccountID).Scan(&returned)
	if err == pgx.ErrNoRows {
		return apperr.NotFound("invoice", id)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to update classification")
	}
	return nil
}

// SetAdministrativeExpense toggles the administrative-expense flag.
func (r *InvoiceRepository) SetAdministrativeExpense(ctx context.Context, id string, value bool) error {
	query := `
		UPDATE invoices
		SET is_administrative_expense = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returned string
	err := r.db.QueryRow(ctx, query, id, value).Scan(&returned)
	if err == pgx.ErrNoRows {
		return apperr.NotFound("invoice", id)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to update administrative expense flag")
	}
	return nil
}

// UpdateConditionals replaces the inventory, discrepancy and advance-payment
// sub-records. A nil sub-record clears its gating flag.
func (r *InvoiceRepository) UpdateConditionals(ctx context.Context, id string, inventory *engine.InventoryEntry, discrepancy *engine.Discrepancy, advance *engine.AdvancePayment) error {
	var (
		destination *string
		codesJSON   []byte
		creditNote  *string
		percentage  *string
		interval    *string
		err         error
	)

	if inventory != nil {
		d := string(inventory.Destination)
		destination = &d
		if codesJSON, err = json.Marshal(inventory.Codes); err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "failed to marshal inventory codes")
		}
	}
	if discrepancy != nil {
		creditNote = &discrepancy.CreditNoteNumber
	}
	if advance != nil {
		percentage = &advance.Percentage
		i := string(advance.DeliveryInterval)
		interval = &i
	}

	query := `
		UPDATE invoices
		SET requires_inventory = $2,
		    inventory_destination = $3,
		    inventory_codes = $4,
		    has_discrepancy = $5,
		    credit_note_number = $6,
		    has_advance = $7,
		    advance_percentage = $8,
		    delivery_interval = $9,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returned string
	err = r.db.QueryRow(ctx, query, id,
		inventory != nil, destination, codesJSON,
		discrepancy != nil, creditNote,
		advance != nil, percentage, interval,
	).Scan(&returned)
	if err == pgx.ErrNoRows {
		return apperr.NotFound("invoice", id)
	}
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "failed to update conditional sub-records")
	}
	return nil
}

// ReplaceDistribution swaps the invoice's distribution lines for the accepted
// set in one transaction. Old lines are discarded only because validation
// already passed.
func (r *InvoiceRepository) ReplaceDistribution(ctx context.Context, invoiceID string, lines []engine.DistributionLine) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM distribution_lines WHERE invoice_id = $1`, invoiceID); err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "failed to clear distribution lines")
		}

		query := `
			INSERT INTO distribution_lines (invoice_id, cost_center_id, operation_center_id,
			                                business_unit_id, auxiliary_account_id, percentage)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		for i := range lines {
			line := &lines[i]
			err := tx.QueryRow(ctx, query,
				invoiceID,
				line.CostCenterID,
				line.OperationCenterID,
				line.BusinessUnitID,
				line.AuxiliaryAccountID,
				line.Percentage,
			).Scan(&line.ID)
			if err != nil {
				return apperr.Wrap(err, apperr.CodeInternal, "failed to insert distribution line")
			}
		}
		return nil
	})
}

func (r *InvoiceRepository) getDistribution(ctx context.Context, invoiceID string) ([]engine.DistributionLine, error) {
	query := `
		SELECT id, cost_center_id, operation_center_id,
		       business_unit_id, auxiliary_account_id, percentage
		FROM distribution_lines
		WHERE invoice_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get distribution lines")
	}
	defer rows.Close()

	lines := make([]engine.DistributionLine, 0)
	for rows.Next() {
		var line engine.DistributionLine
		err := rows.Scan(
			&line.ID,
			&line.CostCenterID,
			&line.OperationCenterID,
			&line.BusinessUnitID,
			&line.AuxiliaryAccountID,
			&line.Percentage,
		)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to scan distribution line")
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (r *InvoiceRepository) getAttachments(ctx context.Context, invoiceID string) ([]engine.Attachment, error) {
	query := `
		SELECT id, invoice_id, doc_type, filename, content_type, storage_path, uploaded_by, created_at
		FROM attachments
		WHERE invoice_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to get attachments")
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

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*engine.Invoice, error) {
	inv := &engine.Invoice{}

	var (
		requiresInventory bool
		destination       *string
		codesJSON         []byte
		hasDiscrepancy    bool
		creditNote        *string
		hasAdvance        bool
		percentage        *string
		interval          *string
	)

	err := row.Scan(
		&inv.ID,
		&inv.SupplierName,
		&inv.InvoiceNumber,
		&inv.IssueDate,
		&inv.TotalAmount,
		&inv.Status,
		&inv.OriginAreaID,
		&inv.AreaID,
		&inv.AssignedUserID,
		&inv.ReturnReason,
		&inv.CostCenterID,
		&inv.OperationCenterID,
		&inv.BusinessUnitID,
		&inv.AuxiliaryAccountID,
		&inv.AdministrativeExpense,
		&requiresInventory,
		&destination,
		&codesJSON,
		&hasDiscrepancy,
		&creditNote,
		&hasAdvance,
		&percentage,
		&interval,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if requiresInventory {
		entry := &engine.InventoryEntry{Codes: map[string]string{}}
		if destination != nil {
			entry.Destination = engine.InventoryDestination(*destination)
		}
		if len(codesJSON) > 0 {
			if err := json.Unmarshal(codesJSON, &entry.Codes); err != nil {
				return nil, err
			}
		}
		inv.Inventory = entry
	}
	if hasDiscrepancy {
		d := &engine.Discrepancy{}
		if creditNote != nil {
			d.CreditNoteNumber = *creditNote
		}
		inv.Discrepancy = d
	}
	if hasAdvance {
		a := &engine.AdvancePayment{}
		if percentage != nil {
			a.Percentage = *percentage
		}
		if interval != nil {
			a.DeliveryInterval = engine.DeliveryInterval(*interval)
		}
		inv.Advance = a
	}

	return inv, nil
}
