package engine

import (
	"fmt"
	"strings"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
)

// Action is a workflow operation an actor can attempt.
type Action string

const (
	// ActionAssign hands a received invoice to a responsible area and owner.
	ActionAssign Action = "assign"
	// ActionStart marks an assigned invoice as being worked.
	ActionStart Action = "start"
	// ActionSubmit sends the invoice to accounting review.
	ActionSubmit Action = "submit"
	// ActionApprove routes an accounting-reviewed invoice to treasury.
	ActionApprove Action = "approve"
	// ActionReturn sends an invoice in accounting review back to the
	// responsible area with a reason.
	ActionReturn Action = "return"
	// ActionReturnToInvoicing sends an invoice in a review state back to the
	// received queue with a reason.
	ActionReturnToInvoicing Action = "return_to_invoicing"
	// ActionFinalize closes a treasury-approved invoice.
	ActionFinalize Action = "finalize"
)

// Actions lists every workflow action.
var Actions = []Action{
	ActionAssign, ActionStart, ActionSubmit, ActionApprove,
	ActionReturn, ActionReturnToInvoicing, ActionFinalize,
}

// MinReturnReasonLen is the minimum length of a return reason.
const MinReturnReasonLen = 10

// Decision is the outcome of a legal transition: the caller must apply all
// of it atomically, or none of it.
type Decision struct {
	Action Action
	From   Status
	To     Status
	// OwnerRole is the role owning the target state; the storage layer maps
	// it to a concrete area and assignee.
	OwnerRole Role
	// ReturnReason is set for returns and must be stored with the invoice.
	ReturnReason *string
	// ClearReturnReason is set when the transition resolves a prior return.
	ClearReturnReason bool
}

type transitionRule struct {
	from         Status
	action       Action
	actor        Role
	to           Status
	needsReason  bool
	clearsReason bool
}

// transitionTable is the complete set of legal transitions. Any (state,
// action, role) combination not listed here is rejected.
var transitionTable = []transitionRule{
	{StatusReceived, ActionAssign, RoleResponsibleArea, StatusAssigned, false, false},
	{StatusAssigned, ActionStart, RoleResponsibleArea, StatusInProgress, false, false},
	{StatusInProgress, ActionSubmit, RoleResponsibleArea, StatusAccountingReview, false, true},
	{StatusAccountingReview, ActionApprove, RoleAccounting, StatusTreasuryApproved, false, false},
	{StatusAccountingReview, ActionReturn, RoleAccounting, StatusInProgress, true, false},
	{StatusAccountingReview, ActionReturnToInvoicing, RoleResponsibleArea, StatusReceived, true, false},
	{StatusTreasuryApproved, ActionReturnToInvoicing, RoleResponsibleArea, StatusReceived, true, false},
	{StatusTreasuryApproved, ActionFinalize, RoleTreasury, StatusClosed, false, false},
}

func lookupTransition(from Status, action Action) *transitionRule {
	for i := range transitionTable {
		rule := &transitionTable[i]
		if rule.from == from && rule.action == action {
			return rule
		}
	}
	return nil
}

// Decide is the transition function: old snapshot + action + actor role →
// decision or typed rejection. It never mutates the snapshot.
//
// Re-applying the same legal transition to an already-transitioned snapshot
// fails the "current state == from" precondition, which makes commits
// idempotent under optimistic concurrency.
func Decide(inv *Invoice, action Action, actor Role, reason string) (*Decision, error) {
	rule := lookupTransition(inv.Status, action)
	if rule == nil {
		return nil, apperr.IllegalTransition(
			fmt.Sprintf("action %q is not allowed from state %q", action, inv.Status))
	}
	if rule.actor != actor {
		return nil, apperr.IllegalTransition(
			fmt.Sprintf("role %q may not perform %q on an invoice in state %q", actor, action, inv.Status))
	}

	unmet := EvaluateChecklist(inv, action)
	if rule.needsReason && len(strings.TrimSpace(reason)) < MinReturnReasonLen {
		unmet = append(unmet, apperr.Violation{
			Field:   "reason",
			Message: fmt.Sprintf("return reason must be at least %d characters", MinReturnReasonLen),
		})
	}
	if len(unmet) > 0 {
		return nil, apperr.Validation(unmet)
	}

	decision := &Decision{
		Action:            action,
		From:              inv.Status,
		To:                rule.to,
		OwnerRole:         OwnerRoleFor(rule.to),
		ClearReturnReason: rule.clearsReason,
	}
	if rule.needsReason {
		trimmed := strings.TrimSpace(reason)
		decision.ReturnReason = &trimmed
	}
	return decision, nil
}
