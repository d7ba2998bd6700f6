package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
)

// DistributionLine is one percentage-weighted CC/CO allocation of an invoice.
type DistributionLine struct {
	ID                 string          `json:"id,omitempty"`
	CostCenterID       string          `json:"cost_center_id"`
	OperationCenterID  string          `json:"operation_center_id"`
	BusinessUnitID     *string         `json:"business_unit_id,omitempty"`
	AuxiliaryAccountID *string         `json:"auxiliary_account_id,omitempty"`
	Percentage         decimal.Decimal `json:"percentage"`
}

// Catalog answers whether an operation center belongs to a cost center. It is
// a pure lookup so the validator stays synchronous and side-effect free;
// callers load it from storage up front.
type Catalog interface {
	OperationCenterBelongsTo(operationCenterID, costCenterID string) bool
}

// MapCatalog is a Catalog backed by an operation-center → cost-center map.
type MapCatalog map[string]string

// OperationCenterBelongsTo implements Catalog.
func (m MapCatalog) OperationCenterBelongsTo(operationCenterID, costCenterID string) bool {
	cc, ok := m[operationCenterID]
	return ok && cc == costCenterID
}

var (
	hundred               = decimal.NewFromInt(100)
	distributionTolerance = decimal.RequireFromString("0.01")
)

// ValidateDistribution checks a candidate line set and returns every
// violation found, tagged by line, never just the first. An empty result
// means the set may replace the invoice's current lines.
//
// Order of evaluation: per-line required ids, CO→CC referential consistency,
// percentage range and precision, then the 100% sum invariant.
func ValidateDistribution(lines []DistributionLine, catalog Catalog) []apperr.Violation {
	var violations []apperr.Violation

	if len(lines) == 0 {
		return []apperr.Violation{{
			Field:   "lines",
			Message: "at least one distribution line is required",
		}}
	}

	sum := decimal.Zero
	for i, line := range lines {
		hasCC := strings.TrimSpace(line.CostCenterID) != ""
		hasCO := strings.TrimSpace(line.OperationCenterID) != ""

		if !hasCC {
			violations = append(violations, apperr.Violation{
				Field:   fmt.Sprintf("lines[%d].cost_center_id", i),
				Message: "cost center is required",
			})
		}
		if !hasCO {
			violations = append(violations, apperr.Violation{
				Field:   fmt.Sprintf("lines[%d].operation_center_id", i),
				Message: "operation center is required",
			})
		}
		if hasCC && hasCO && catalog != nil &&
			!catalog.OperationCenterBelongsTo(line.OperationCenterID, line.CostCenterID) {
			violations = append(violations, apperr.Violation{
				Field: fmt.Sprintf("lines[%d].operation_center_id", i),
				Message: fmt.Sprintf("operation center %s does not belong to cost center %s",
					line.OperationCenterID, line.CostCenterID),
			})
		}

		p := line.Percentage
		switch {
		case p.LessThanOrEqual(decimal.Zero) || p.GreaterThan(hundred):
			violations = append(violations, apperr.Violation{
				Field:   fmt.Sprintf("lines[%d].percentage", i),
				Message: "percentage must be greater than 0 and at most 100",
			})
		case !p.Round(2).Equal(p):
			violations = append(violations, apperr.Violation{
				Field:   fmt.Sprintf("lines[%d].percentage", i),
				Message: "percentage supports at most two decimal places",
			})
		}

		sum = sum.Add(p)
	}

	// Tolerance absorbs two-decimal rounding; exact equality is not required.
	if sum.Sub(hundred).Abs().GreaterThan(distributionTolerance) {
		violations = append(violations, apperr.Violation{
			Field:   "lines",
			Message: fmt.Sprintf("percentages must sum to 100%%, got %s%%", sum.String()),
		})
	}

	return violations
}

// DistributionSum returns the total percentage across lines.
func DistributionSum(lines []DistributionLine) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Percentage)
	}
	return sum
}

// DistributionComplete reports whether the set is non-empty and sums to 100%
// within tolerance. Used by the checklist; full validation happens through
// ValidateDistribution when lines are saved.
func DistributionComplete(lines []DistributionLine) bool {
	if len(lines) == 0 {
		return false
	}
	return DistributionSum(lines).Sub(hundred).Abs().LessThanOrEqual(distributionTolerance)
}
