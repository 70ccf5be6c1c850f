package engine

import (
	"math"

	"github.com/mattquigleycfg/con-form-dash-sub000/internal/domain"
)

// Reconcile combines a job's stored budgets, its classified ledger
// spend, and the BOM material estimate into a single derived cost view.
//
// A nil job yields nil: the caller must skip it. Missing ledger or BOM
// data for a job yields zero rollups, not an error; partial data is
// expected and never aborts reconciliation for the job as a whole.
func Reconcile(job *domain.Job, ledger []domain.LedgerLine, chain *domain.BOMChain) *domain.CostAnalysis {
	if job == nil {
		return nil
	}

	var actualMaterial, actualNonMaterial float64
	for i := range ledger {
		line := &ledger[i]
		if !line.IsCost() || IsRevenueLine(line) {
			continue
		}

		category := line.CostCategory
		if category == "" {
			category = Classify(line.Description, line.LinkedItemName)
		}

		// Ledger costs are stored negative; analysis figures are
		// always non-negative.
		amount := math.Abs(line.Amount)
		if category == domain.CostMaterial {
			actualMaterial += amount
		} else {
			actualNonMaterial += amount
		}
	}

	var bomEstimate float64
	if chain != nil {
		breakdowns := Rollup(chain.Orders, chain.BOMs, chain.Lines, chain.Costs)
		bomEstimate = JobMaterialEstimate(breakdowns, chain.AdjustmentLines)
	}

	totalBudget := job.TotalBudget()
	totalActual := actualMaterial + actualNonMaterial

	a := &domain.CostAnalysis{
		JobID:             job.ID,
		BudgetedRevenue:   job.BudgetedRevenue,
		MaterialBudget:    job.MaterialBudget,
		NonMaterialBudget: job.NonMaterialBudget,
		TotalBudget:       totalBudget,

		ActualMaterialCost:    actualMaterial,
		ActualNonMaterialCost: actualNonMaterial,
		TotalActualCost:       totalActual,

		BomEstimatedMaterialCost: bomEstimate,
	}

	a.MaterialVariance = job.MaterialBudget - actualMaterial
	a.MaterialVariancePercent = safePercent(a.MaterialVariance, job.MaterialBudget)
	a.NonMaterialVariance = job.NonMaterialBudget - actualNonMaterial
	a.NonMaterialVariancePercent = safePercent(a.NonMaterialVariance, job.NonMaterialBudget)
	a.TotalVariance = totalBudget - totalActual
	a.TotalVariancePercent = safePercent(a.TotalVariance, totalBudget)

	a.BudgetedMargin = job.BudgetedRevenue - totalBudget
	a.BudgetedMarginPercent = safePercent(a.BudgetedMargin, job.BudgetedRevenue)
	a.ActualMargin = job.BudgetedRevenue - totalActual
	a.ActualMarginPercent = safePercent(a.ActualMargin, job.BudgetedRevenue)

	a.BudgetUsedPercent = safePercent(totalActual, totalBudget)

	return a
}

// BudgetTotals classifies budget lines at sync time and returns the
// material/service budget split. The upstream type tag is overridden by
// the product name keywords; see ClassifyProductType.
func BudgetTotals(lines []domain.BudgetLine) (materialBudget, nonMaterialBudget float64) {
	for i := range lines {
		line := &lines[i]
		subtotal := line.EffectiveSubtotal()
		if ClassifyProductType(line.ProductName, line.ProductType) == domain.ProductService {
			nonMaterialBudget += subtotal
		} else {
			materialBudget += subtotal
		}
	}
	return materialBudget, nonMaterialBudget
}

// safePercent returns value/base*100, short-circuiting to 0 when the
// denominator is 0 so percent fields are never NaN or Inf.
func safePercent(value, base float64) float64 {
	if base == 0 {
		return 0
	}
	return value / base * 100
}
