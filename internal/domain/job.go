// Package domain defines the core business entities for the job cost
// engine. These models are independent of the ERP backend and represent
// the canonical data structures used throughout the service.
package domain

import "time"

// ============================================================
// Jobs
// ============================================================

// Job represents one project/job mirrored from the ERP.
// MaterialBudget and NonMaterialBudget are set at job-sync time from
// budget-line classification and are the authoritative budget figures
// for reconciliation; they are not recomputed per analysis.
type Job struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Customer          string     `json:"customer,omitempty"`
	Status            string     `json:"status,omitempty"`
	OrderRef          string     `json:"order_ref,omitempty"`
	BudgetedRevenue   float64    `json:"budgeted_revenue"`
	MaterialBudget    float64    `json:"material_budget"`
	NonMaterialBudget float64    `json:"non_material_budget"`
	StartDate         *time.Time `json:"start_date,omitempty"`
	SyncedAt          time.Time  `json:"synced_at"`
}

// TotalBudget is the sum of the material and non-material budgets.
func (j *Job) TotalBudget() float64 {
	return j.MaterialBudget + j.NonMaterialBudget
}

// ============================================================
// Cost Analysis (derived view)
// ============================================================

// CostAnalysis is the fully reconciled cost view for one job.
// It is recomputed on every analysis request and never persisted as
// authoritative. Variances follow the budget-minus-actual convention:
// a positive variance means the job is under budget.
type CostAnalysis struct {
	JobID string `json:"job_id"`

	// Budgets (from the job's stored fields)
	BudgetedRevenue   float64 `json:"budgeted_revenue"`
	MaterialBudget    float64 `json:"material_budget"`
	NonMaterialBudget float64 `json:"non_material_budget"`
	TotalBudget       float64 `json:"total_budget"`

	// Actuals (ledger-derived, always non-negative)
	ActualMaterialCost    float64 `json:"actual_material_cost"`
	ActualNonMaterialCost float64 `json:"actual_non_material_cost"`
	TotalActualCost       float64 `json:"total_actual_cost"`

	// Secondary estimate from the manufacturing BOM chain. Reported
	// alongside the ledger actuals for comparison; never added to them.
	BomEstimatedMaterialCost float64 `json:"bom_estimated_material_cost"`

	// Variances (budget − actual)
	MaterialVariance           float64 `json:"material_variance"`
	MaterialVariancePercent    float64 `json:"material_variance_percent"`
	NonMaterialVariance        float64 `json:"non_material_variance"`
	NonMaterialVariancePercent float64 `json:"non_material_variance_percent"`
	TotalVariance              float64 `json:"total_variance"`
	TotalVariancePercent       float64 `json:"total_variance_percent"`

	// Margins (revenue − cost)
	BudgetedMargin        float64 `json:"budgeted_margin"`
	BudgetedMarginPercent float64 `json:"budgeted_margin_percent"`
	ActualMargin          float64 `json:"actual_margin"`
	ActualMarginPercent   float64 `json:"actual_margin_percent"`

	// Share of the total budget consumed so far, 0 when there is no budget.
	BudgetUsedPercent float64 `json:"budget_used_percent"`
}

// JobAnalysis pairs a job with its reconciled cost view. This is the
// input unit for the insight rule engine.
type JobAnalysis struct {
	Job      *Job          `json:"job"`
	Analysis *CostAnalysis `json:"analysis"`
}
