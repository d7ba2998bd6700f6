// Package engine is the pure invoice lifecycle and allocation core: the
// state machine, the per-role completeness checklists and the CC/CO
// distribution validator. Nothing in this package performs I/O; every
// function takes an immutable snapshot and returns a decision or a typed
// rejection for the caller to apply atomically.
package engine

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is an invoice workflow state.
type Status string

const (
	StatusReceived         Status = "received"
	StatusAssigned         Status = "assigned"
	StatusInProgress       Status = "in_progress"
	StatusAccountingReview Status = "accounting_review"
	StatusTreasuryApproved Status = "treasury_approved"
	StatusClosed           Status = "closed"
	StatusRejected         Status = "rejected"
)

// Statuses lists every state in process order, with the rejected side branch
// last.
var Statuses = []Status{
	StatusReceived,
	StatusAssigned,
	StatusInProgress,
	StatusAccountingReview,
	StatusTreasuryApproved,
	StatusClosed,
	StatusRejected,
}

// Terminal reports whether no further transitions leave the state.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusRejected
}

// Role is a workflow actor role. Each state has exactly one owning role.
type Role string

const (
	RoleResponsibleArea Role = "responsible_area"
	RoleAccounting      Role = "accounting"
	RoleTreasury        Role = "treasury"
)

// Roles lists every workflow role.
var Roles = []Role{RoleResponsibleArea, RoleAccounting, RoleTreasury}

// OwnerRoleFor returns the role that owns a state.
func OwnerRoleFor(s Status) Role {
	switch s {
	case StatusAccountingReview:
		return RoleAccounting
	case StatusTreasuryApproved, StatusClosed:
		return RoleTreasury
	default:
		return RoleResponsibleArea
	}
}

// DocType tags an attachment with its document kind.
type DocType string

const (
	DocTypeOC               DocType = "OC"
	DocTypeOS               DocType = "OS"
	DocTypeApproval         DocType = "APROBACION_GERENCIA"
	DocTypeInventorySupport DocType = "SOPORTE_INVENTARIO"
	DocTypeInvoicePDF       DocType = "FACTURA_PDF"
	DocTypePaymentSupport   DocType = "SOPORTE_PAGO"
	DocTypePEC              DocType = "PEC"
	DocTypeEC               DocType = "EC"
	DocTypePCE              DocType = "PCE"
	DocTypePED              DocType = "PED"
)

// TreasuryDocTypes are the payment-support documents; at least one must be
// attached before an invoice can be closed.
var TreasuryDocTypes = []DocType{DocTypePEC, DocTypeEC, DocTypePCE, DocTypePED}

// KnownDocType reports whether t is a recognised document tag.
func KnownDocType(t DocType) bool {
	switch t {
	case DocTypeOC, DocTypeOS, DocTypeApproval, DocTypeInventorySupport,
		DocTypeInvoicePDF, DocTypePaymentSupport,
		DocTypePEC, DocTypeEC, DocTypePCE, DocTypePED:
		return true
	}
	return false
}

// IsTreasuryDocType reports whether t is one of the treasury payment documents.
func IsTreasuryDocType(t DocType) bool {
	for _, tt := range TreasuryDocTypes {
		if t == tt {
			return true
		}
	}
	return false
}

// InventoryDestination selects which fixed code set an inventory entry needs.
type InventoryDestination string

const (
	DestinationStore     InventoryDestination = "STORE"
	DestinationWarehouse InventoryDestination = "WAREHOUSE"
)

// RequiredInventoryCodes returns the code names mandatory for a destination.
// Exactly one destination applies; the other destination's codes are never
// required.
func RequiredInventoryCodes(d InventoryDestination) []string {
	switch d {
	case DestinationStore:
		return []string{"OCT", "ECT", "FPC"}
	case DestinationWarehouse:
		return []string{"OCC", "EDO", "FPC"}
	default:
		return nil
	}
}

// InventoryEntry is the sub-record unlocked by the requires-inventory flag.
type InventoryEntry struct {
	Destination InventoryDestination `json:"destination"`
	Codes       map[string]string    `json:"codes"`
}

// MissingCodes returns the required code names that are empty or absent.
func (e *InventoryEntry) MissingCodes() []string {
	var missing []string
	for _, code := range RequiredInventoryCodes(e.Destination) {
		if strings.TrimSpace(e.Codes[code]) == "" {
			missing = append(missing, code)
		}
	}
	return missing
}

// CreditNoteCode is the document code for discrepancy credit notes.
const CreditNoteCode = "NP"

// Discrepancy is the sub-record unlocked by the has-discrepancy flag.
type Discrepancy struct {
	CreditNoteNumber string `json:"credit_note_number"`
}

// DeliveryInterval is the agreed delivery window for advance payments.
type DeliveryInterval string

const (
	DeliveryOneWeek    DeliveryInterval = "1_WEEK"
	DeliveryTwoWeeks   DeliveryInterval = "2_WEEKS"
	DeliveryThreeWeeks DeliveryInterval = "3_WEEKS"
	DeliveryOneMonth   DeliveryInterval = "1_MONTH"
)

// AdvancePayment is the sub-record unlocked by the has-advance-payment flag.
// Percentage is kept as entered so the checklist can report unparseable
// values instead of masking them.
type AdvancePayment struct {
	Percentage       string           `json:"percentage"`
	DeliveryInterval DeliveryInterval `json:"delivery_interval"`
}

// Attachment is document metadata tracked per invoice. File bytes live in
// external storage behind StoragePath.
type Attachment struct {
	ID          string    `json:"id"`
	InvoiceID   string    `json:"invoice_id"`
	DocType     DocType   `json:"doc_type"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	StoragePath string    `json:"storage_path"`
	UploadedBy  *string   `json:"uploaded_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Comment is a per-invoice note, editable only by its author.
type Comment struct {
	ID        string    `json:"id"`
	InvoiceID string    `json:"invoice_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Invoice is an immutable workflow snapshot. The engine never mutates one;
// transitions return decisions the storage layer applies atomically.
type Invoice struct {
	ID string `json:"id"`

	// Immutable identity fields.
	SupplierName  string          `json:"supplier_name"`
	InvoiceNumber string          `json:"invoice_number"`
	IssueDate     time.Time       `json:"issue_date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`

	// Workflow fields.
	Status         Status  `json:"status"`
	OriginAreaID   string  `json:"origin_area_id"`
	AreaID         string  `json:"area_id"`
	AssignedUserID *string `json:"assigned_user_id,omitempty"`
	ReturnReason   *string `json:"return_reason,omitempty"`

	// Classification, all nullable until classified.
	CostCenterID       *string `json:"cost_center_id,omitempty"`
	OperationCenterID  *string `json:"operation_center_id,omitempty"`
	BusinessUnitID     *string `json:"business_unit_id,omitempty"`
	AuxiliaryAccountID *string `json:"auxiliary_account_id,omitempty"`

	// Administrative expenses are exempt from OC/OS and management-approval
	// documentation, but never from the distribution requirement.
	AdministrativeExpense bool `json:"is_administrative_expense"`

	// Conditional sub-records; nil means the gating flag is off.
	Inventory   *InventoryEntry `json:"inventory,omitempty"`
	Discrepancy *Discrepancy    `json:"discrepancy,omitempty"`
	Advance     *AdvancePayment `json:"advance,omitempty"`

	Distribution []DistributionLine `json:"distribution"`
	Attachments  []Attachment       `json:"attachments"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAttachment reports whether any attachment carries one of the given tags.
func (inv *Invoice) HasAttachment(types ...DocType) bool {
	for _, a := range inv.Attachments {
		for _, t := range types {
			if a.DocType == t {
				return true
			}
		}
	}
	return false
}
