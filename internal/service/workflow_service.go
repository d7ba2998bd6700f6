package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
	"github.com/sasamuel24/contabilidadcq/internal/config"
	"github.com/sasamuel24/contabilidadcq/internal/engine"
	"github.com/sasamuel24/contabilidadcq/internal/repository"
)

// Actor identifies who is performing an operation.
type Actor struct {
	ID   string
	Role engine.Role
}

// InvoiceStore is the invoice persistence surface the workflow needs.
type InvoiceStore interface {
	Create(ctx context.Context, inv *engine.Invoice) error
	GetByID(ctx context.Context, id string) (*engine.Invoice, error)
	List(ctx context.Context, status *engine.Status, areaID *string, limit, offset int) ([]*engine.Invoice, int64, error)
	ApplyTransition(ctx context.Context, id string, d *engine.Decision, areaID string, ownerID *string) error
	UpdateClassification(ctx context.Context, id string, costCenterID, operationCenterID, businessUnitID, auxiliaryAccountID *string) error
	SetAdministrativeExpense(ctx context.Context, id string, value bool) error
	UpdateConditionals(ctx context.Context, id string, inventory *engine.InventoryEntry, discrepancy *engine.Discrepancy, advance *engine.AdvancePayment) error
	ReplaceDistribution(ctx context.Context, invoiceID string, lines []engine.DistributionLine) error
}

// AuditStore appends immutable workflow audit entries.
type AuditStore interface {
	Append(ctx context.Context, entry *repository.AuditEntry) error
	GetByInvoiceID(ctx context.Context, invoiceID string) ([]*repository.AuditEntry, error)
}

// EventPublisher emits workflow events for downstream notification services.
type EventPublisher interface {
	PublishInvoiceEvent(ctx context.Context, eventType, invoiceID, actorID string, recipients []string, payload map[string]interface{})
}

// CatalogStore loads the referential catalogs used by distribution validation.
type CatalogStore interface {
	LoadOperationCenters(ctx context.Context) (engine.MapCatalog, error)
}

// WorkflowService drives invoices through the approval pipeline. Transition
// legality and checklist gating live in the engine; this layer loads
// snapshots, resolves hand-off destinations and commits decisions.
type WorkflowService struct {
	invoices InvoiceStore
	audit    AuditStore
	catalogs CatalogStore
	events   EventPublisher
	routing  config.RoutingConfig
	log      zerolog.Logger
}

// NewWorkflowService creates a new workflow service.
func NewWorkflowService(
	invoices InvoiceStore,
	audit AuditStore,
	catalogs CatalogStore,
	events EventPublisher,
	routing config.RoutingConfig,
	log zerolog.Logger,
) *WorkflowService {
	return &WorkflowService{
		invoices: invoices,
		audit:    audit,
		catalogs: catalogs,
		events:   events,
		routing:  routing,
		log:      log,
	}
}

// CreateInvoiceRequest represents an invoice ingestion request.
type CreateInvoiceRequest struct {
	SupplierName  string
	InvoiceNumber string
	IssueDate     string
	TotalAmount   string
	OriginAreaID  string
}

// CreateInvoice ingests a new invoice into the received queue of its origin
// area.
func (s *WorkflowService) CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (*engine.Invoice, error) {
	if req.SupplierName == "" {
		return nil, apperr.InvalidInput("supplier_name", "supplier name is required")
	}
	if req.InvoiceNumber == "" {
		return nil, apperr.InvalidInput("invoice_number", "invoice number is required")
	}
	if req.OriginAreaID == "" {
		return nil, apperr.InvalidInput("origin_area_id", "origin area is required")
	}

	issueDate, err := time.Parse("2006-01-02", req.IssueDate)
	if err != nil {
		return nil, apperr.InvalidInput("issue_date", "invalid date format, expected YYYY-MM-DD")
	}

	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		return nil, apperr.InvalidInput("total_amount", "invalid amount")
	}
	if !total.IsPositive() {
		return nil, apperr.InvalidInput("total_amount", "amount must be positive")
	}

	inv := &engine.Invoice{
		SupplierName:  req.SupplierName,
		InvoiceNumber: req.InvoiceNumber,
		IssueDate:     issueDate,
		TotalAmount:   total,
		OriginAreaID:  req.OriginAreaID,
	}

	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("invoice_id", inv.ID).
		Str("invoice_number", inv.InvoiceNumber).
		Str("supplier", inv.SupplierName).
		Str("origin_area_id", inv.OriginAreaID).
		Msg("Invoice ingested")

	return inv, nil
}

// GetInvoice retrieves a full invoice snapshot by ID.
func (s *WorkflowService) GetInvoice(ctx context.Context, id string) (*engine.Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

// GetAuditTrail returns the invoice's workflow history, oldest first.
func (s *WorkflowService) GetAuditTrail(ctx context.Context, invoiceID string) ([]*repository.AuditEntry, error) {
	if _, err := s.invoices.GetByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.audit.GetByInvoiceID(ctx, invoiceID)
}

// ListInvoices lists invoices filtered by status and area, with pagination.
func (s *WorkflowService) ListInvoices(ctx context.Context, status *engine.Status, areaID *string, page, pageSize int) ([]*engine.Invoice, int64, error) {
	if status != nil {
		valid := false
		for _, known := range engine.Statuses {
			if *status == known {
				valid = true
				break
			}
		}
		if !valid {
			return nil, 0, apperr.InvalidInput("status", "unknown status")
		}
	}
	offset := (page - 1) * pageSize
	return s.invoices.List(ctx, status, areaID, pageSize, offset)
}

// TransitionRequest represents a workflow action against one invoice.
type TransitionRequest struct {
	InvoiceID string
	Actor     Actor
	// Reason is required for returns.
	Reason string
	// AssigneeID is the user receiving the invoice on assignment.
	AssigneeID string
}

// Assign hands a received invoice to a user of its responsible area.
func (s *WorkflowService) Assign(ctx context.Context, req *TransitionRequest) (*engine.Invoice, error) {
	if req.AssigneeID == "" {
		return nil, apperr.InvalidInput("assignee_id", "assignee is required")
	}
	return s.transition(ctx, engine.ActionAssign, req)
}

// Start marks an assigned invoice as being worked.
func (s *WorkflowService) Start(ctx context.Context, req *TransitionRequest) (*engine.Invoice, error) {
	return s.transition(ctx, engine.ActionStart, req)
}

// Submit sends an in-progress invoice to accounting review. The engine gates
// this on the document, classification, conditional and distribution
// requirements.
func (s *WorkflowService) Submit(ctx context.Context, req *TransitionRequest) (*engine.Invoice, error) {
	return s.transition(ctx, engine.ActionSubmit, req)
}

// Approve routes an invoice in accounting review to treasury.
func (s *WorkflowService) Approve(ctx context.Context, req *TransitionRequest) (*engine.Invoice, error) {
	return s.transition(ctx, engine.ActionApprove, req)
}

// Return sends an invoice in accounting review back to the responsible area
// with a reason.
func (s *WorkflowService) Return(ctx context.Context, req *TransitionRequest) (*engine.Invoice, error) {
	return s.transition(ctx, engine.ActionReturn, req)
}

// ReturnToInvoicing sends an invoice in a review state back to the received
// queue of its origin area with a reason.
func (s *WorkflowService) ReturnToInvoicing(ctx context.Context, req *TransitionRequest) (*engine.Invoice, error) {
	return s.transition(ctx, engine.ActionReturnToInvoicing, req)
}

// Finalize closes a treasury-approved invoice. The engine requires at least
// one treasury payment document.
func (s *WorkflowService) Finalize(ctx context.Context, req *TransitionRequest) (*engine.Invoice, error) {
	return s.transition(ctx, engine.ActionFinalize, req)
}

// eventTypes maps workflow actions to published event types. Actions absent
// here do not notify anyone.
var eventTypes = map[engine.Action]string{
	engine.ActionAssign:            "invoice_assigned",
	engine.ActionSubmit:            "invoice_submitted",
	engine.ActionApprove:           "invoice_approved",
	engine.ActionReturn:            "invoice_returned",
	engine.ActionReturnToInvoicing: "invoice_returned_to_invoicing",
	engine.ActionFinalize:          "invoice_closed",
}

func (s *WorkflowService) transition(ctx context.Context, action engine.Action, req *TransitionRequest) (*engine.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}

	decision, err := engine.Decide(inv, action, req.Actor.Role, req.Reason)
	if err != nil {
		return nil, err
	}

	areaID, ownerID := s.destination(inv, decision, req)

	if err := s.invoices.ApplyTransition(ctx, inv.ID, decision, areaID, ownerID); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, inv, decision, req)

	if eventType, ok := eventTypes[action]; ok {
		recipients := make([]string, 0, 1)
		if ownerID != nil {
			recipients = append(recipients, *ownerID)
		}
		s.events.PublishInvoiceEvent(ctx, eventType, inv.ID, req.Actor.ID, recipients, map[string]interface{}{
			"invoice_number": inv.InvoiceNumber,
			"supplier_name":  inv.SupplierName,
			"from_status":    string(decision.From),
			"to_status":      string(decision.To),
		})
	}

	s.log.Info().
		Str("invoice_id", inv.ID).
		Str("action", string(action)).
		Str("from", string(decision.From)).
		Str("to", string(decision.To)).
		Str("actor_id", req.Actor.ID).
		Msg("Invoice transitioned")

	return s.invoices.GetByID(ctx, inv.ID)
}

// destination maps the decision's owning role to a concrete area and
// assignee. The responsible area is always the invoice's origin area.
func (s *WorkflowService) destination(inv *engine.Invoice, d *engine.Decision, req *TransitionRequest) (string, *string) {
	switch d.OwnerRole {
	case engine.RoleAccounting:
		return s.routing.AccountingAreaID, &s.routing.AccountingUserID
	case engine.RoleTreasury:
		return s.routing.TreasuryAreaID, &s.routing.TreasuryUserID
	default:
		if d.Action == engine.ActionAssign || d.Action == engine.ActionStart {
			owner := inv.AssignedUserID
			if req.AssigneeID != "" {
				owner = &req.AssigneeID
			}
			return inv.OriginAreaID, owner
		}
		// Returns land in the area queue unassigned.
		return inv.OriginAreaID, nil
	}
}

// recordAudit appends a workflow audit entry. Audit failures are logged and
// never fail the transition that already committed.
func (s *WorkflowService) recordAudit(ctx context.Context, inv *engine.Invoice, d *engine.Decision, req *TransitionRequest) {
	before := string(d.From)
	after := string(d.To)
	entry := &repository.AuditEntry{
		InvoiceID:    inv.ID,
		Action:       string(d.Action),
		PerformedBy:  req.Actor.ID,
		StatusBefore: &before,
		StatusAfter:  &after,
	}
	if d.ReturnReason != nil {
		entry.Metadata = map[string]interface{}{"reason": *d.ReturnReason}
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("invoice_id", inv.ID).
			Str("action", string(d.Action)).
			Msg("Failed to append audit entry")
	}
}

// ensureEditable rejects edits to invoices that have left the responsible
// area. Once submitted, invoice data is read-only for everyone until a
// return hands it back.
func ensureEditable(inv *engine.Invoice, actor Actor) error {
	if inv.Status.Terminal() || engine.OwnerRoleFor(inv.Status) != engine.RoleResponsibleArea {
		return apperr.IllegalTransition(
			"invoice is read-only in state " + string(inv.Status))
	}
	if actor.Role != engine.RoleResponsibleArea {
		return apperr.IllegalTransition(
			"role " + string(actor.Role) + " may not edit invoices")
	}
	return nil
}

// SaveDistributionRequest replaces an invoice's cost distribution.
type SaveDistributionRequest struct {
	InvoiceID string
	Actor     Actor
	Lines     []engine.DistributionLine
}

// SaveDistribution validates and replaces the invoice's distribution lines.
// The full set is validated against the operation center catalog and the
// 100% sum rule before anything is written.
func (s *WorkflowService) SaveDistribution(ctx context.Context, req *SaveDistributionRequest) (*engine.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if err := ensureEditable(inv, req.Actor); err != nil {
		return nil, err
	}

	catalog, err := s.catalogs.LoadOperationCenters(ctx)
	if err != nil {
		return nil, err
	}
	if violations := engine.ValidateDistribution(req.Lines, catalog); len(violations) > 0 {
		return nil, apperr.Validation(violations)
	}

	if err := s.invoices.ReplaceDistribution(ctx, inv.ID, req.Lines); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("invoice_id", inv.ID).
		Int("line_count", len(req.Lines)).
		Msg("Distribution saved")

	return s.invoices.GetByID(ctx, inv.ID)
}

// ClassificationRequest sets the cost accounting classification fields.
type ClassificationRequest struct {
	InvoiceID          string
	Actor              Actor
	CostCenterID       *string
	OperationCenterID  *string
	BusinessUnitID     *string
	AuxiliaryAccountID *string
}

// SetClassification updates the invoice's CC/CO/BU/auxiliary-account fields.
// When both a cost center and an operation center are present, the pair is
// checked against the catalog.
func (s *WorkflowService) SetClassification(ctx context.Context, req *ClassificationRequest) (*engine.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if err := ensureEditable(inv, req.Actor); err != nil {
		return nil, err
	}

	if req.CostCenterID != nil && req.OperationCenterID != nil {
		catalog, err := s.catalogs.LoadOperationCenters(ctx)
		if err != nil {
			return nil, err
		}
		if !catalog.OperationCenterBelongsTo(*req.OperationCenterID, *req.CostCenterID) {
			return nil, apperr.ReferentialIntegrity(
				"operation center " + *req.OperationCenterID + " does not belong to cost center " + *req.CostCenterID)
		}
	}

	if err := s.invoices.UpdateClassification(ctx, inv.ID,
		req.CostCenterID, req.OperationCenterID, req.BusinessUnitID, req.AuxiliaryAccountID); err != nil {
		return nil, err
	}
	return s.invoices.GetByID(ctx, inv.ID)
}

// SetAdministrativeExpense toggles the administrative-expense exemption. It
// waives the OC/OS and management-approval document requirements, never the
// distribution requirement.
func (s *WorkflowService) SetAdministrativeExpense(ctx context.Context, invoiceID string, actor Actor, value bool) (*engine.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := ensureEditable(inv, actor); err != nil {
		return nil, err
	}

	if err := s.invoices.SetAdministrativeExpense(ctx, inv.ID, value); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("invoice_id", inv.ID).
		Bool("administrative_expense", value).
		Msg("Administrative expense flag updated")

	return s.invoices.GetByID(ctx, inv.ID)
}

// ConditionalsRequest replaces the invoice's conditional sub-records. A nil
// sub-record turns its flag off and clears the stored data.
type ConditionalsRequest struct {
	InvoiceID   string
	Actor       Actor
	Inventory   *engine.InventoryEntry
	Discrepancy *engine.Discrepancy
	Advance     *engine.AdvancePayment
}

// SetConditionals updates the inventory, discrepancy and advance-payment
// sub-records. Enumerated fields are validated here; completeness rules
// (inventory codes, credit note, parseable percentage) are enforced by the
// submit checklist, so partial data can be saved while work is in progress.
func (s *WorkflowService) SetConditionals(ctx context.Context, req *ConditionalsRequest) (*engine.Invoice, error) {
	inv, err := s.invoices.GetByID(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if err := ensureEditable(inv, req.Actor); err != nil {
		return nil, err
	}

	if req.Inventory != nil {
		if len(engine.RequiredInventoryCodes(req.Inventory.Destination)) == 0 {
			return nil, apperr.InvalidInput("inventory.destination", "destination must be STORE or WAREHOUSE")
		}
	}
	if req.Advance != nil && req.Advance.DeliveryInterval != "" {
		switch req.Advance.DeliveryInterval {
		case engine.DeliveryOneWeek, engine.DeliveryTwoWeeks, engine.DeliveryThreeWeeks, engine.DeliveryOneMonth:
		default:
			return nil, apperr.InvalidInput("advance.delivery_interval", "unknown delivery interval")
		}
	}

	if err := s.invoices.UpdateConditionals(ctx, inv.ID, req.Inventory, req.Discrepancy, req.Advance); err != nil {
		return nil, err
	}
	return s.invoices.GetByID(ctx, inv.ID)
}
