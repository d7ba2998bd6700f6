package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
)

// EvaluateChecklist computes the ordered list of unmet requirements gating
// the given action on an invoice snapshot. It is pure and may be called
// speculatively (for a "missing items" preview) without any side effects.
//
// Rules are evaluated independently and unioned; adding more valid
// attachments or fields can only shrink the result, never grow it.
func EvaluateChecklist(inv *Invoice, action Action) []apperr.Violation {
	var unmet []apperr.Violation

	switch action {
	case ActionSubmit:
		unmet = append(unmet, documentRequirements(inv)...)
		unmet = append(unmet, classificationRequirements(inv)...)
		unmet = append(unmet, conditionalRequirements(inv)...)
		// The distribution is mandatory before accounting sees the invoice,
		// even for administrative expenses.
		unmet = append(unmet, distributionRequirement(inv)...)
	case ActionApprove:
		unmet = append(unmet, documentRequirements(inv)...)
		unmet = append(unmet, classificationRequirements(inv)...)
		unmet = append(unmet, conditionalRequirements(inv)...)
	case ActionFinalize:
		unmet = append(unmet, treasuryRequirement(inv)...)
	}

	return unmet
}

// documentRequirements checks OC/OS and management approval. Both are skipped
// entirely for administrative expenses.
func documentRequirements(inv *Invoice) []apperr.Violation {
	if inv.AdministrativeExpense {
		return nil
	}

	var unmet []apperr.Violation
	if !inv.HasAttachment(DocTypeOC, DocTypeOS) {
		unmet = append(unmet, apperr.Violation{
			Field:   "oc_os",
			Message: "OC/OS attachment is required (or mark the invoice as an administrative expense)",
		})
	}
	if !inv.HasAttachment(DocTypeApproval) {
		unmet = append(unmet, apperr.Violation{
			Field:   "management_approval",
			Message: "management approval attachment is required (or mark the invoice as an administrative expense)",
		})
	}
	return unmet
}

func classificationRequirements(inv *Invoice) []apperr.Violation {
	var unmet []apperr.Violation
	if inv.CostCenterID == nil || strings.TrimSpace(*inv.CostCenterID) == "" {
		unmet = append(unmet, apperr.Violation{
			Field:   "cost_center",
			Message: "cost center is required",
		})
	}
	if inv.OperationCenterID == nil || strings.TrimSpace(*inv.OperationCenterID) == "" {
		unmet = append(unmet, apperr.Violation{
			Field:   "operation_center",
			Message: "operation center is required",
		})
	}
	return unmet
}

func conditionalRequirements(inv *Invoice) []apperr.Violation {
	var unmet []apperr.Violation

	if inv.Inventory != nil {
		switch inv.Inventory.Destination {
		case DestinationStore, DestinationWarehouse:
			for _, code := range inv.Inventory.MissingCodes() {
				unmet = append(unmet, apperr.Violation{
					Field:   "inventory_code_" + code,
					Message: fmt.Sprintf("inventory code %s is required", code),
				})
			}
		default:
			unmet = append(unmet, apperr.Violation{
				Field:   "inventory_destination",
				Message: "inventory destination (store or warehouse) must be selected",
			})
		}
		if !inv.HasAttachment(DocTypeInventorySupport) {
			unmet = append(unmet, apperr.Violation{
				Field:   "inventory_support",
				Message: "inventory support attachment is required",
			})
		}
	}

	if inv.Discrepancy != nil && strings.TrimSpace(inv.Discrepancy.CreditNoteNumber) == "" {
		unmet = append(unmet, apperr.Violation{
			Field:   "credit_note",
			Message: fmt.Sprintf("credit note number (%s) is required", CreditNoteCode),
		})
	}

	if inv.Advance != nil {
		p, err := decimal.NewFromString(strings.TrimSpace(inv.Advance.Percentage))
		if err != nil || p.IsNegative() || p.GreaterThan(hundred) {
			unmet = append(unmet, apperr.Violation{
				Field:   "advance_percentage",
				Message: "advance percentage must be a number between 0 and 100",
			})
		}
	}

	return unmet
}

func distributionRequirement(inv *Invoice) []apperr.Violation {
	if DistributionComplete(inv.Distribution) {
		return nil
	}
	if len(inv.Distribution) == 0 {
		return []apperr.Violation{{
			Field:   "distribution",
			Message: "cost distribution is required before submitting to accounting",
		}}
	}
	return []apperr.Violation{{
		Field:   "distribution",
		Message: "cost distribution must sum to 100%",
	}}
}

func treasuryRequirement(inv *Invoice) []apperr.Violation {
	if inv.HasAttachment(TreasuryDocTypes...) {
		return nil
	}
	return []apperr.Violation{{
		Field:   "treasury_documents",
		Message: "at least one treasury document (PEC, EC, PCE or PED) is required",
	}}
}
