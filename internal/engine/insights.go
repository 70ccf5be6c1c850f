package engine

import (
	"fmt"
	"math"

	"github.com/mattquigleycfg/con-form-dash-sub000/internal/domain"
)

// Rule thresholds. Downstream dashboards assume these defaults.
const (
	varianceEmitPercent     = 10.0 // |variance%| must exceed this to emit
	varianceCriticalPercent = 25.0

	anomalyDivergencePoints = 30.0 // percentage-point gap between categories

	predictionMinUsedPercent   = 70.0 // partial jobs only
	predictionMaxUsedPercent   = 100.0
	predictionEmitPercent      = 5.0
	predictionCriticalPercent  = 15.0
	predictionPrimarySavings   = 0.50 // share of projected overrun
	predictionSecondarySavings = 0.30

	optimizationMinBudget       = 1000.0
	optimizationMarginPercent   = 10.0
	optimizationWarningPercent  = 5.0
	optimizationSupplierSavings = 0.10 // share of material actual
	optimizationQuantitySavings = 0.05

	wasteEmitPercent     = 20.0 // material overage beyond budget
	wasteCriticalPercent = 35.0
	wasteEstimateShare   = 0.30 // share of the overage assumed wasted
	wasteAuditSavings    = 0.30
	wasteOrderingSavings = 0.20
)

// insightRule is one pure rule category: it either fires with a single
// finding for the job or returns nil. Keeping the categories as
// separate functions keeps each threshold and recommendation table
// independently testable.
type insightRule func(ja domain.JobAnalysis) *domain.Insight

// rulesFor maps an analysis type to the rule categories it runs.
func rulesFor(analysisType domain.AnalysisType) []insightRule {
	switch analysisType {
	case domain.AnalysisVariance:
		return []insightRule{varianceRule}
	case domain.AnalysisAnomalies:
		return []insightRule{anomalyRule}
	case domain.AnalysisPredictions:
		return []insightRule{predictionRule}
	case domain.AnalysisOptimization:
		return []insightRule{optimizationRule}
	case domain.AnalysisWaste:
		return []insightRule{wasteRule}
	default:
		return []insightRule{varianceRule, anomalyRule, predictionRule, optimizationRule, wasteRule}
	}
}

// Generate evaluates the selected rule categories against each job and
// returns the findings. Jobs with a nil analysis are skipped. Insights
// come back unstamped: ID, CreatedAt and ExpiresAt are the lifecycle
// layer's concern.
func Generate(jobs []domain.JobAnalysis, analysisType domain.AnalysisType) []domain.Insight {
	rules := rulesFor(analysisType)

	var insights []domain.Insight
	for _, ja := range jobs {
		if ja.Job == nil || ja.Analysis == nil {
			continue
		}
		for _, rule := range rules {
			if ins := rule(ja); ins != nil {
				insights = append(insights, *ins)
			}
		}
	}
	return insights
}

// ============================================================
// Variance
// ============================================================

// varianceRule flags jobs whose total spend has drifted more than 10%
// from budget in either direction. Here variance is actual − budget:
// positive means over budget.
func varianceRule(ja domain.JobAnalysis) *domain.Insight {
	a := ja.Analysis
	variance := a.TotalActualCost - a.TotalBudget
	variancePercent := safePercent(variance, a.TotalBudget)

	if math.Abs(variancePercent) <= varianceEmitPercent {
		return nil
	}

	severity := domain.SeverityWarning
	if math.Abs(variancePercent) > varianceCriticalPercent {
		severity = domain.SeverityCritical
	}

	data := map[string]any{
		"total_budget":     a.TotalBudget,
		"total_actual":     a.TotalActualCost,
		"variance":         variance,
		"variance_percent": variancePercent,
	}

	if variance > 0 {
		return &domain.Insight{
			JobID:    ja.Job.ID,
			Type:     domain.InsightVariance,
			Severity: severity,
			Title:    fmt.Sprintf("Budget overrun on %s", ja.Job.Name),
			Description: fmt.Sprintf(
				"Actual cost $%.2f exceeds budget $%.2f by %.1f%% ($%.2f over).",
				a.TotalActualCost, a.TotalBudget, variancePercent, variance),
			Data: data,
			Recommendations: []domain.Recommendation{
				{
					Action:      "Review cost entries",
					Impact:      domain.ImpactHigh,
					Description: "Walk the ledger lines behind the overrun and confirm each booking belongs to this job.",
				},
				{
					Action:      "Compare with similar jobs",
					Impact:      domain.ImpactMedium,
					Description: "Check whether comparable jobs show the same drift or this one is an outlier.",
				},
				{
					Action:      "Revise remaining budget",
					Impact:      domain.ImpactMedium,
					Description: "Re-forecast the remaining spend so the reported margin reflects reality.",
				},
			},
		}
	}

	return &domain.Insight{
		JobID:    ja.Job.ID,
		Type:     domain.InsightVariance,
		Severity: severity,
		Title:    fmt.Sprintf("Running under budget on %s", ja.Job.Name),
		Description: fmt.Sprintf(
			"Actual cost $%.2f is %.1f%% below budget $%.2f.",
			a.TotalActualCost, math.Abs(variancePercent), a.TotalBudget),
		Data: data,
		Recommendations: []domain.Recommendation{
			{
				Action:      "Document what worked",
				Impact:      domain.ImpactLow,
				Description: "Capture the practices that kept this job under budget so future quotes can assume them.",
			},
		},
	}
}

// ============================================================
// Anomaly
// ============================================================

// anomalyRule fires when the material and non-material variance
// percentages diverge by more than 30 percentage points, flagging the
// category with the larger absolute variance.
func anomalyRule(ja domain.JobAnalysis) *domain.Insight {
	a := ja.Analysis

	materialPct := safePercent(a.ActualMaterialCost-a.MaterialBudget, a.MaterialBudget)
	nonMaterialPct := safePercent(a.ActualNonMaterialCost-a.NonMaterialBudget, a.NonMaterialBudget)

	if math.Abs(materialPct-nonMaterialPct) <= anomalyDivergencePoints {
		return nil
	}

	flagged := "material"
	flaggedPct := materialPct
	if math.Abs(nonMaterialPct) > math.Abs(materialPct) {
		flagged = "non-material"
		flaggedPct = nonMaterialPct
	}

	return &domain.Insight{
		JobID:    ja.Job.ID,
		Type:     domain.InsightAnomaly,
		Severity: domain.SeverityWarning,
		Title:    fmt.Sprintf("Cost anomaly in %s spend on %s", flagged, ja.Job.Name),
		Description: fmt.Sprintf(
			"The %s cost variance (%.1f%%) diverges sharply from the other category (material %.1f%%, non-material %.1f%%).",
			flagged, flaggedPct, materialPct, nonMaterialPct),
		Data: map[string]any{
			"material_variance_percent":     materialPct,
			"non_material_variance_percent": nonMaterialPct,
			"divergence_points":             math.Abs(materialPct - nonMaterialPct),
			"flagged_category":              flagged,
			"material_budget":               a.MaterialBudget,
			"material_actual":               a.ActualMaterialCost,
			"non_material_budget":           a.NonMaterialBudget,
			"non_material_actual":           a.ActualNonMaterialCost,
		},
		Recommendations: []domain.Recommendation{
			{
				Action:      "Review line items",
				Impact:      domain.ImpactMedium,
				Description: fmt.Sprintf("Go through the %s ledger lines for this job and confirm each amount.", flagged),
			},
			{
				Action:      "Check for duplicate entries",
				Impact:      domain.ImpactMedium,
				Description: "A divergence this size is often a double-booked supplier bill.",
			},
		},
	}
}

// ============================================================
// Prediction
// ============================================================

// predictionRule linearly extrapolates final cost for partial jobs
// (70% < budget used < 100%) and fires when the projection lands more
// than 5% over budget.
func predictionRule(ja domain.JobAnalysis) *domain.Insight {
	a := ja.Analysis
	used := a.BudgetUsedPercent

	if used <= predictionMinUsedPercent || used >= predictionMaxUsedPercent {
		return nil
	}

	projectedFinal := a.TotalActualCost * (100 / used)
	projectedOverrun := projectedFinal - a.TotalBudget
	projectedOverrunPercent := safePercent(projectedOverrun, a.TotalBudget)

	if projectedOverrunPercent <= predictionEmitPercent {
		return nil
	}

	severity := domain.SeverityWarning
	if projectedOverrunPercent > predictionCriticalPercent {
		severity = domain.SeverityCritical
	}

	primarySavings := projectedOverrun * predictionPrimarySavings
	secondarySavings := projectedOverrun * predictionSecondarySavings

	return &domain.Insight{
		JobID:    ja.Job.ID,
		Type:     domain.InsightPrediction,
		Severity: severity,
		Title:    fmt.Sprintf("Projected overrun on %s", ja.Job.Name),
		Description: fmt.Sprintf(
			"At %.1f%% budget used, the current burn rate projects a final cost of $%.2f, which is %.1f%% ($%.2f) over the $%.2f budget.",
			used, projectedFinal, projectedOverrunPercent, projectedOverrun, a.TotalBudget),
		Data: map[string]any{
			"budget_used_percent":       used,
			"total_budget":              a.TotalBudget,
			"total_actual":              a.TotalActualCost,
			"projected_final":           projectedFinal,
			"projected_overrun":         projectedOverrun,
			"projected_overrun_percent": projectedOverrunPercent,
		},
		Recommendations: []domain.Recommendation{
			{
				Action:          "Freeze non-essential spend",
				Impact:          domain.ImpactHigh,
				Description:     "Hold discretionary purchases until the remaining scope is re-costed.",
				ExpectedSavings: &primarySavings,
			},
			{
				Action:          "Renegotiate remaining supplier orders",
				Impact:          domain.ImpactMedium,
				Description:     "Open orders not yet delivered can still be re-priced or trimmed.",
				ExpectedSavings: &secondarySavings,
			},
		},
	}
}

// ============================================================
// Optimization
// ============================================================

// optimizationRule looks for jobs with a meaningful material budget
// whose material margin has thinned below 10%.
func optimizationRule(ja domain.JobAnalysis) *domain.Insight {
	a := ja.Analysis

	if a.MaterialBudget <= optimizationMinBudget {
		return nil
	}
	marginPercent := safePercent(a.MaterialBudget-a.ActualMaterialCost, a.MaterialBudget)
	if marginPercent >= optimizationMarginPercent {
		return nil
	}

	severity := domain.SeverityInfo
	if marginPercent < optimizationWarningPercent {
		severity = domain.SeverityWarning
	}

	supplierSavings := a.ActualMaterialCost * optimizationSupplierSavings
	quantitySavings := a.ActualMaterialCost * optimizationQuantitySavings

	return &domain.Insight{
		JobID:    ja.Job.ID,
		Type:     domain.InsightOptimization,
		Severity: severity,
		Title:    fmt.Sprintf("Thin material margin on %s", ja.Job.Name),
		Description: fmt.Sprintf(
			"Material margin is down to %.1f%% (budget $%.2f, actual $%.2f).",
			marginPercent, a.MaterialBudget, a.ActualMaterialCost),
		Data: map[string]any{
			"material_budget":         a.MaterialBudget,
			"material_actual":         a.ActualMaterialCost,
			"material_margin_percent": marginPercent,
		},
		Recommendations: []domain.Recommendation{
			{
				Action:          "Review supplier pricing",
				Impact:          domain.ImpactHigh,
				Description:     "Benchmark the main material lines against alternative suppliers.",
				ExpectedSavings: &supplierSavings,
			},
			{
				Action:          "Optimise order quantities",
				Impact:          domain.ImpactMedium,
				Description:     "Consolidate small orders to reach volume price breaks.",
				ExpectedSavings: &quantitySavings,
			},
			{
				Action:      "Raise future quote budgets",
				Impact:      domain.ImpactMedium,
				Description: "Quote material budgets 15-20% higher for comparable scopes.",
			},
		},
	}
}

// ============================================================
// Waste
// ============================================================

// wasteRule fires when material actuals exceed the material budget by
// more than 20%, attributing 30% of the overage to waste.
func wasteRule(ja domain.JobAnalysis) *domain.Insight {
	a := ja.Analysis

	if a.MaterialBudget == 0 {
		return nil
	}
	overage := a.ActualMaterialCost - a.MaterialBudget
	overagePercent := safePercent(overage, a.MaterialBudget)
	if overagePercent <= wasteEmitPercent {
		return nil
	}

	severity := domain.SeverityWarning
	if overagePercent > wasteCriticalPercent {
		severity = domain.SeverityCritical
	}

	estimatedWaste := overage * wasteEstimateShare
	auditSavings := overage * wasteAuditSavings
	orderingSavings := overage * wasteOrderingSavings

	return &domain.Insight{
		JobID:    ja.Job.ID,
		Type:     domain.InsightWaste,
		Severity: severity,
		Title:    fmt.Sprintf("Possible material waste on %s", ja.Job.Name),
		Description: fmt.Sprintf(
			"Material spend $%.2f exceeds budget $%.2f by %.1f%% ($%.2f); an estimated $%.2f of that is likely waste.",
			a.ActualMaterialCost, a.MaterialBudget, overagePercent, overage, estimatedWaste),
		Data: map[string]any{
			"material_budget": a.MaterialBudget,
			"material_actual": a.ActualMaterialCost,
			"overage":         overage,
			"overage_percent": overagePercent,
			"estimated_waste": estimatedWaste,
		},
		Recommendations: []domain.Recommendation{
			{
				Action:          "Run a waste audit",
				Impact:          domain.ImpactHigh,
				Description:     "Measure offcuts and damaged stock against the cutting lists for this job.",
				ExpectedSavings: &auditSavings,
			},
			{
				Action:          "Move to just-in-time ordering",
				Impact:          domain.ImpactMedium,
				Description:     "Order material against confirmed manufacturing orders instead of up front.",
				ExpectedSavings: &orderingSavings,
			},
			{
				Action:      "Improve quantity estimation",
				Impact:      domain.ImpactMedium,
				Description: "Feed the measured waste factor back into BOM quantities for future quotes.",
			},
		},
	}
}
