package engine

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

var testCatalog = MapCatalog{
	"co-1": "cc-1",
	"co-2": "cc-1",
	"co-3": "cc-2",
}

func TestValidateDistribution_Accepts(t *testing.T) {
	tests := []struct {
		name  string
		lines []DistributionLine
	}{
		{
			"single line",
			[]DistributionLine{
				{CostCenterID: "cc-1", OperationCenterID: "co-1", Percentage: decimal.NewFromInt(100)},
			},
		},
		{
			"sixty forty",
			[]DistributionLine{
				{CostCenterID: "cc-1", OperationCenterID: "co-1", Percentage: decimal.NewFromInt(60)},
				{CostCenterID: "cc-2", OperationCenterID: "co-3", Percentage: decimal.NewFromInt(40)},
			},
		},
		{
			"rounding within tolerance",
			[]DistributionLine{
				{CostCenterID: "cc-1", OperationCenterID: "co-1", Percentage: decimal.RequireFromString("33.33")},
				{CostCenterID: "cc-1", OperationCenterID: "co-2", Percentage: decimal.RequireFromString("33.33")},
				{CostCenterID: "cc-2", OperationCenterID: "co-3", Percentage: decimal.RequireFromString("33.33")},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if violations := ValidateDistribution(tt.lines, testCatalog); len(violations) != 0 {
				t.Fatalf("unexpected violations: %+v", violations)
			}
		})
	}
}

func TestValidateDistribution_EmptySet(t *testing.T) {
	violations := ValidateDistribution(nil, testCatalog)
	if len(violations) != 1 || violations[0].Field != "lines" {
		t.Fatalf("unexpected violations: %+v", violations)
	}
}

func TestValidateDistribution_SumOutsideTolerance(t *testing.T) {
	lines := []DistributionLine{
		{CostCenterID: "cc-1", OperationCenterID: "co-1", Percentage: decimal.RequireFromString("99.5")},
	}
	violations := ValidateDistribution(lines, testCatalog)
	if len(violations) != 1 {
		t.Fatalf("expected exactly the sum violation, got %+v", violations)
	}
	if violations[0].Field != "lines" || !strings.Contains(violations[0].Message, "99.5") {
		t.Fatalf("unexpected violation: %+v", violations[0])
	}
}

func TestValidateDistribution_ReferentialIntegrity(t *testing.T) {
	lines := []DistributionLine{
		{CostCenterID: "cc-2", OperationCenterID: "co-1", Percentage: decimal.NewFromInt(100)},
	}
	violations := ValidateDistribution(lines, testCatalog)
	if len(violations) != 1 {
		t.Fatalf("expected exactly one violation, got %+v", violations)
	}
	if violations[0].Field != "lines[0].operation_center_id" {
		t.Fatalf("unexpected field: %s", violations[0].Field)
	}
}

func TestValidateDistribution_UnknownOperationCenter(t *testing.T) {
	lines := []DistributionLine{
		{CostCenterID: "cc-1", OperationCenterID: "co-missing", Percentage: decimal.NewFromInt(100)},
	}
	if violations := ValidateDistribution(lines, testCatalog); len(violations) != 1 {
		t.Fatalf("expected a referential violation, got %+v", violations)
	}
}

func TestValidateDistribution_ReportsEveryViolation(t *testing.T) {
	lines := []DistributionLine{
		{CostCenterID: "", OperationCenterID: "", Percentage: decimal.NewFromInt(0)},
		{CostCenterID: "cc-1", OperationCenterID: "co-1", Percentage: decimal.RequireFromString("101")},
	}
	violations := ValidateDistribution(lines, testCatalog)

	got := fields(violations)
	for _, want := range []string{
		"lines[0].cost_center_id",
		"lines[0].operation_center_id",
		"lines[0].percentage",
		"lines[1].percentage",
		"lines",
	} {
		if !got[want] {
			t.Fatalf("missing violation for %s: %+v", want, violations)
		}
	}
}

func TestValidateDistribution_PercentagePrecision(t *testing.T) {
	lines := []DistributionLine{
		{CostCenterID: "cc-1", OperationCenterID: "co-1", Percentage: decimal.RequireFromString("33.333")},
		{CostCenterID: "cc-1", OperationCenterID: "co-2", Percentage: decimal.RequireFromString("66.667")},
	}
	violations := ValidateDistribution(lines, testCatalog)

	precision := 0
	for _, v := range violations {
		if strings.Contains(v.Message, "two decimal places") {
			precision++
		}
	}
	if precision != 2 {
		t.Fatalf("expected 2 precision violations, got %+v", violations)
	}
}

func TestDistributionComplete(t *testing.T) {
	if DistributionComplete(nil) {
		t.Fatal("empty set reported complete")
	}

	lines := []DistributionLine{
		{Percentage: decimal.RequireFromString("33.33")},
		{Percentage: decimal.RequireFromString("33.33")},
		{Percentage: decimal.RequireFromString("33.33")},
	}
	if !DistributionComplete(lines) {
		t.Fatalf("sum %s should be complete within tolerance", DistributionSum(lines))
	}

	lines[2].Percentage = decimal.RequireFromString("33.31")
	if DistributionComplete(lines) {
		t.Fatalf("sum %s should be outside tolerance", DistributionSum(lines))
	}
}
