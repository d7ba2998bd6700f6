package engine

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
)

func fields(violations []apperr.Violation) map[string]bool {
	m := make(map[string]bool, len(violations))
	for _, v := range violations {
		m[v.Field] = true
	}
	return m
}

func TestEvaluateChecklist_EmptyInvoiceSubmit(t *testing.T) {
	inv := &Invoice{Status: StatusInProgress}

	unmet := EvaluateChecklist(inv, ActionSubmit)
	got := fields(unmet)

	for _, want := range []string{"oc_os", "management_approval", "cost_center", "operation_center", "distribution"} {
		if !got[want] {
			t.Fatalf("missing violation for %s in %+v", want, unmet)
		}
	}
	if len(unmet) != 5 {
		t.Fatalf("expected 5 violations, got %d: %+v", len(unmet), unmet)
	}
}

func TestEvaluateChecklist_AdministrativeExpenseSkipsDocuments(t *testing.T) {
	inv := &Invoice{Status: StatusInProgress, AdministrativeExpense: true}

	got := fields(EvaluateChecklist(inv, ActionSubmit))
	if got["oc_os"] || got["management_approval"] {
		t.Fatalf("document requirements should be waived: %v", got)
	}
	// The distribution requirement survives the exemption.
	if !got["distribution"] {
		t.Fatalf("distribution requirement must not be waived: %v", got)
	}

	// Flipping the flag back restores the document requirements.
	inv.AdministrativeExpense = false
	got = fields(EvaluateChecklist(inv, ActionSubmit))
	if !got["oc_os"] || !got["management_approval"] {
		t.Fatalf("document requirements not restored: %v", got)
	}
}

func TestEvaluateChecklist_Monotonicity(t *testing.T) {
	// Each added artifact only ever shrinks the unmet set.
	inv := &Invoice{Status: StatusInProgress}
	prev := len(EvaluateChecklist(inv, ActionSubmit))

	steps := []func(){
		func() { inv.Attachments = append(inv.Attachments, Attachment{DocType: DocTypeOS}) },
		func() { inv.Attachments = append(inv.Attachments, Attachment{DocType: DocTypeApproval}) },
		func() { inv.CostCenterID = strPtr("cc-1") },
		func() { inv.OperationCenterID = strPtr("co-1") },
		func() {
			inv.Distribution = []DistributionLine{
				{CostCenterID: "cc-1", OperationCenterID: "co-1", Percentage: decimal.NewFromInt(100)},
			}
		},
	}
	for i, step := range steps {
		step()
		n := len(EvaluateChecklist(inv, ActionSubmit))
		if n > prev {
			t.Fatalf("step %d grew the unmet set from %d to %d", i, prev, n)
		}
		prev = n
	}
	if prev != 0 {
		t.Fatalf("expected a clear checklist, %d violations left", prev)
	}
}

func TestEvaluateChecklist_InventoryCodes(t *testing.T) {
	inv := readyInvoice(StatusInProgress)
	inv.Inventory = &InventoryEntry{Destination: DestinationStore, Codes: map[string]string{
		"OCT": "123",
	}}

	got := fields(EvaluateChecklist(inv, ActionSubmit))
	if got["inventory_code_OCT"] {
		t.Fatalf("provided code reported missing: %v", got)
	}
	for _, want := range []string{"inventory_code_ECT", "inventory_code_FPC", "inventory_support"} {
		if !got[want] {
			t.Fatalf("missing violation for %s: %v", want, got)
		}
	}
	// Store entries never require the warehouse code set.
	if got["inventory_code_OCC"] || got["inventory_code_EDO"] {
		t.Fatalf("warehouse codes demanded for a store entry: %v", got)
	}
}

func TestEvaluateChecklist_InventoryDestinationMissing(t *testing.T) {
	inv := readyInvoice(StatusInProgress)
	inv.Inventory = &InventoryEntry{}

	got := fields(EvaluateChecklist(inv, ActionSubmit))
	if !got["inventory_destination"] {
		t.Fatalf("expected destination violation: %v", got)
	}
}

func TestEvaluateChecklist_WarehouseCodes(t *testing.T) {
	inv := readyInvoice(StatusInProgress)
	inv.Inventory = &InventoryEntry{
		Destination: DestinationWarehouse,
		Codes:       map[string]string{"OCC": "a", "EDO": "b", "FPC": "c"},
	}
	inv.Attachments = append(inv.Attachments, Attachment{DocType: DocTypeInventorySupport})

	if unmet := EvaluateChecklist(inv, ActionSubmit); len(unmet) != 0 {
		t.Fatalf("expected a clear checklist, got %+v", unmet)
	}
}

func TestEvaluateChecklist_Discrepancy(t *testing.T) {
	inv := readyInvoice(StatusInProgress)
	inv.Discrepancy = &Discrepancy{}

	got := fields(EvaluateChecklist(inv, ActionSubmit))
	if !got["credit_note"] {
		t.Fatalf("expected credit note violation: %v", got)
	}

	inv.Discrepancy.CreditNoteNumber = "NP-0042"
	if unmet := EvaluateChecklist(inv, ActionSubmit); len(unmet) != 0 {
		t.Fatalf("expected a clear checklist, got %+v", unmet)
	}
}

func TestEvaluateChecklist_AdvancePercentage(t *testing.T) {
	tests := []struct {
		percentage string
		ok         bool
	}{
		{"50", true},
		{"0", true},
		{"100", true},
		{" 12.5 ", true},
		{"", false},
		{"abc", false},
		{"-1", false},
		{"100.01", false},
	}
	for _, tt := range tests {
		inv := readyInvoice(StatusInProgress)
		inv.Advance = &AdvancePayment{Percentage: tt.percentage, DeliveryInterval: DeliveryTwoWeeks}
		got := fields(EvaluateChecklist(inv, ActionSubmit))
		if got["advance_percentage"] == tt.ok {
			t.Fatalf("percentage %q: violation=%v, want ok=%v", tt.percentage, got["advance_percentage"], tt.ok)
		}
	}
}

func TestEvaluateChecklist_ApproveSkipsDistribution(t *testing.T) {
	// Accounting re-checks the documents, not the distribution sum; lines are
	// frozen on submit.
	inv := readyInvoice(StatusAccountingReview)
	inv.Distribution = nil

	if unmet := EvaluateChecklist(inv, ActionApprove); len(unmet) != 0 {
		t.Fatalf("expected a clear approve checklist, got %+v", unmet)
	}
}

func TestEvaluateChecklist_IncompleteDistributionSum(t *testing.T) {
	inv := readyInvoice(StatusInProgress)
	inv.Distribution = []DistributionLine{
		{CostCenterID: "cc-1", OperationCenterID: "co-1", Percentage: decimal.RequireFromString("99.5")},
	}

	got := fields(EvaluateChecklist(inv, ActionSubmit))
	if !got["distribution"] {
		t.Fatalf("expected distribution sum violation: %v", got)
	}
}
