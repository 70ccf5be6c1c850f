package engine_test

import (
	"testing"

	"github.com/mattquigleycfg/con-form-dash-sub000/internal/domain"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/engine"
)

func jobAnalysis(a domain.CostAnalysis) domain.JobAnalysis {
	return domain.JobAnalysis{
		Job:      &domain.Job{ID: "job-1", Name: "Mezzanine A"},
		Analysis: &a,
	}
}

func generateOne(t *testing.T, a domain.CostAnalysis, analysisType domain.AnalysisType) []domain.Insight {
	t.Helper()
	return engine.Generate([]domain.JobAnalysis{jobAnalysis(a)}, analysisType)
}

// --- Variance ---

func TestVariance_Boundaries(t *testing.T) {
	tests := []struct {
		name         string
		actual       float64
		wantCount    int
		wantSeverity domain.Severity
	}{
		{name: "exactly 10 percent over emits nothing", actual: 11000, wantCount: 0},
		{name: "just past 10 percent is a warning", actual: 11001, wantCount: 1, wantSeverity: domain.SeverityWarning},
		{name: "just past 25 percent is critical", actual: 12501, wantCount: 1, wantSeverity: domain.SeverityCritical},
		{name: "on budget emits nothing", actual: 10000, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insights := generateOne(t, domain.CostAnalysis{
				JobID:           "job-1",
				TotalBudget:     10000,
				TotalActualCost: tt.actual,
			}, domain.AnalysisVariance)

			if len(insights) != tt.wantCount {
				t.Fatalf("expected %d insights, got %d", tt.wantCount, len(insights))
			}
			if tt.wantCount == 1 && insights[0].Severity != tt.wantSeverity {
				t.Errorf("expected severity %s, got %s", tt.wantSeverity, insights[0].Severity)
			}
		})
	}
}

func TestVariance_Overrun(t *testing.T) {
	insights := generateOne(t, domain.CostAnalysis{
		JobID:           "job-1",
		TotalBudget:     100000,
		TotalActualCost: 130000,
	}, domain.AnalysisVariance)

	if len(insights) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(insights))
	}

	ins := insights[0]
	if ins.Type != domain.InsightVariance {
		t.Errorf("expected variance insight, got %s", ins.Type)
	}
	if ins.Severity != domain.SeverityCritical {
		t.Errorf("expected critical severity at 30%% over, got %s", ins.Severity)
	}
	if variance, _ := ins.Data["variance"].(float64); !approx(variance, 30000) {
		t.Errorf("expected variance 30000 in data payload, got %v", ins.Data["variance"])
	}
	if pct, _ := ins.Data["variance_percent"].(float64); !approx(pct, 30) {
		t.Errorf("expected variance percent 30 in data payload, got %v", ins.Data["variance_percent"])
	}
	if len(ins.Recommendations) != 3 {
		t.Errorf("expected 3 overrun recommendations, got %d", len(ins.Recommendations))
	}
}

func TestVariance_Underrun(t *testing.T) {
	insights := generateOne(t, domain.CostAnalysis{
		JobID:           "job-1",
		TotalBudget:     10000,
		TotalActualCost: 8000,
	}, domain.AnalysisVariance)

	if len(insights) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(insights))
	}
	ins := insights[0]
	if ins.Severity != domain.SeverityWarning {
		t.Errorf("expected warning at 20%% under, got %s", ins.Severity)
	}
	if len(ins.Recommendations) != 1 {
		t.Errorf("expected the single underrun recommendation, got %d", len(ins.Recommendations))
	}
}

func TestVariance_ZeroBudget(t *testing.T) {
	insights := generateOne(t, domain.CostAnalysis{
		JobID:           "job-1",
		TotalActualCost: 5000, // no budget at all
	}, domain.AnalysisVariance)

	if len(insights) != 0 {
		t.Errorf("expected no insight when budget is 0, got %d", len(insights))
	}
}

// --- Anomaly ---

func TestAnomaly(t *testing.T) {
	// material +50%, non-material 0% -> 50 point divergence
	insights := generateOne(t, domain.CostAnalysis{
		JobID:                 "job-1",
		MaterialBudget:        1000,
		ActualMaterialCost:    1500,
		NonMaterialBudget:     1000,
		ActualNonMaterialCost: 1000,
	}, domain.AnalysisAnomalies)

	if len(insights) != 1 {
		t.Fatalf("expected 1 anomaly insight, got %d", len(insights))
	}
	ins := insights[0]
	if ins.Type != domain.InsightAnomaly || ins.Severity != domain.SeverityWarning {
		t.Errorf("expected anomaly/warning, got %s/%s", ins.Type, ins.Severity)
	}
	if flagged, _ := ins.Data["flagged_category"].(string); flagged != "material" {
		t.Errorf("expected material to be flagged, got %q", flagged)
	}
}

func TestAnomaly_BelowThreshold(t *testing.T) {
	// material +20%, non-material 0% -> 20 points, under 30
	insights := generateOne(t, domain.CostAnalysis{
		JobID:                 "job-1",
		MaterialBudget:        1000,
		ActualMaterialCost:    1200,
		NonMaterialBudget:     1000,
		ActualNonMaterialCost: 1000,
	}, domain.AnalysisAnomalies)

	if len(insights) != 0 {
		t.Errorf("expected no anomaly under 30 points divergence, got %d", len(insights))
	}
}

// --- Prediction ---

func TestPrediction_AtBudgetNoEmit(t *testing.T) {
	// Burn rate projects exactly to budget: nothing to flag.
	insights := generateOne(t, domain.CostAnalysis{
		JobID:             "job-1",
		TotalBudget:       10000,
		TotalActualCost:   8000,
		BudgetUsedPercent: 80,
	}, domain.AnalysisPredictions)

	if len(insights) != 0 {
		t.Errorf("expected no prediction when projection lands on budget, got %d", len(insights))
	}
}

func TestPrediction_ProjectedOverrun(t *testing.T) {
	// 80% of schedule consumed but $9,000 of a $10,000 budget spent:
	// projected final 11,250, 12.5% over.
	insights := generateOne(t, domain.CostAnalysis{
		JobID:             "job-1",
		TotalBudget:       10000,
		TotalActualCost:   9000,
		BudgetUsedPercent: 80,
	}, domain.AnalysisPredictions)

	if len(insights) != 1 {
		t.Fatalf("expected 1 prediction insight, got %d", len(insights))
	}
	ins := insights[0]
	if ins.Severity != domain.SeverityWarning {
		t.Errorf("expected warning at 12.5%% projected overrun, got %s", ins.Severity)
	}
	if projected, _ := ins.Data["projected_final"].(float64); !approx(projected, 11250) {
		t.Errorf("expected projected final 11250, got %v", ins.Data["projected_final"])
	}

	if len(ins.Recommendations) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(ins.Recommendations))
	}
	// savings split 50/30 of the $1,250 projected overrun
	if s := ins.Recommendations[0].ExpectedSavings; s == nil || !approx(*s, 625) {
		t.Errorf("expected primary savings 625, got %v", s)
	}
	if s := ins.Recommendations[1].ExpectedSavings; s == nil || !approx(*s, 375) {
		t.Errorf("expected secondary savings 375, got %v", s)
	}
}

func TestPrediction_Critical(t *testing.T) {
	// projected final 12,000 -> 20% over
	insights := generateOne(t, domain.CostAnalysis{
		JobID:             "job-1",
		TotalBudget:       10000,
		TotalActualCost:   9600,
		BudgetUsedPercent: 80,
	}, domain.AnalysisPredictions)

	if len(insights) != 1 {
		t.Fatalf("expected 1 prediction insight, got %d", len(insights))
	}
	if insights[0].Severity != domain.SeverityCritical {
		t.Errorf("expected critical above 15%% projected overrun, got %s", insights[0].Severity)
	}
}

func TestPrediction_OutsideWindow(t *testing.T) {
	for _, used := range []float64{0, 70, 100, 140} {
		insights := generateOne(t, domain.CostAnalysis{
			JobID:             "job-1",
			TotalBudget:       10000,
			TotalActualCost:   9000,
			BudgetUsedPercent: used,
		}, domain.AnalysisPredictions)
		if len(insights) != 0 {
			t.Errorf("expected no prediction at %.0f%% used, got %d", used, len(insights))
		}
	}
}

// --- Optimization ---

func TestOptimization(t *testing.T) {
	// margin 7.5% -> info
	insights := generateOne(t, domain.CostAnalysis{
		JobID:              "job-1",
		MaterialBudget:     20000,
		ActualMaterialCost: 18500,
	}, domain.AnalysisOptimization)

	if len(insights) != 1 {
		t.Fatalf("expected 1 optimization insight, got %d", len(insights))
	}
	ins := insights[0]
	if ins.Severity != domain.SeverityInfo {
		t.Errorf("expected info severity at 7.5%% margin, got %s", ins.Severity)
	}
	if len(ins.Recommendations) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(ins.Recommendations))
	}
	if s := ins.Recommendations[0].ExpectedSavings; s == nil || !approx(*s, 1850) {
		t.Errorf("expected supplier savings 1850 (10%% of actual), got %v", s)
	}
	if s := ins.Recommendations[1].ExpectedSavings; s == nil || !approx(*s, 925) {
		t.Errorf("expected quantity savings 925 (5%% of actual), got %v", s)
	}
}

func TestOptimization_WarningBelowFivePercent(t *testing.T) {
	// margin 4%
	insights := generateOne(t, domain.CostAnalysis{
		JobID:              "job-1",
		MaterialBudget:     20000,
		ActualMaterialCost: 19200,
	}, domain.AnalysisOptimization)

	if len(insights) != 1 {
		t.Fatalf("expected 1 optimization insight, got %d", len(insights))
	}
	if insights[0].Severity != domain.SeverityWarning {
		t.Errorf("expected warning below 5%% margin, got %s", insights[0].Severity)
	}
}

func TestOptimization_SmallBudgetIgnored(t *testing.T) {
	insights := generateOne(t, domain.CostAnalysis{
		JobID:              "job-1",
		MaterialBudget:     900, // under the 1000 floor
		ActualMaterialCost: 890,
	}, domain.AnalysisOptimization)

	if len(insights) != 0 {
		t.Errorf("expected no optimization insight for small budgets, got %d", len(insights))
	}
}

// --- Waste ---

func TestWaste(t *testing.T) {
	// overage 1200 on a 5000 budget = 24%
	insights := generateOne(t, domain.CostAnalysis{
		JobID:              "job-1",
		MaterialBudget:     5000,
		ActualMaterialCost: 6200,
	}, domain.AnalysisWaste)

	if len(insights) != 1 {
		t.Fatalf("expected 1 waste insight, got %d", len(insights))
	}
	ins := insights[0]
	if ins.Severity != domain.SeverityWarning {
		t.Errorf("expected warning at 24%% overage, got %s", ins.Severity)
	}
	if waste, _ := ins.Data["estimated_waste"].(float64); !approx(waste, 360) {
		t.Errorf("expected estimated waste 360 (30%% of overage), got %v", ins.Data["estimated_waste"])
	}
	if s := ins.Recommendations[0].ExpectedSavings; s == nil || !approx(*s, 360) {
		t.Errorf("expected audit savings 360, got %v", s)
	}
	if s := ins.Recommendations[1].ExpectedSavings; s == nil || !approx(*s, 240) {
		t.Errorf("expected ordering savings 240, got %v", s)
	}
}

func TestWaste_Critical(t *testing.T) {
	// overage 2000 on 5000 = 40%
	insights := generateOne(t, domain.CostAnalysis{
		JobID:              "job-1",
		MaterialBudget:     5000,
		ActualMaterialCost: 7000,
	}, domain.AnalysisWaste)

	if len(insights) != 1 {
		t.Fatalf("expected 1 waste insight, got %d", len(insights))
	}
	if insights[0].Severity != domain.SeverityCritical {
		t.Errorf("expected critical above 35%% overage, got %s", insights[0].Severity)
	}
}

func TestWaste_AtThresholdNoEmit(t *testing.T) {
	// exactly 20% overage does not fire
	insights := generateOne(t, domain.CostAnalysis{
		JobID:              "job-1",
		MaterialBudget:     5000,
		ActualMaterialCost: 6000,
	}, domain.AnalysisWaste)

	if len(insights) != 0 {
		t.Errorf("expected no waste insight at exactly 20%% overage, got %d", len(insights))
	}
}

// --- Generate plumbing ---

func TestGenerate_TypeFiltering(t *testing.T) {
	// 30% over budget: fires variance under "all", nothing under "waste".
	a := domain.CostAnalysis{
		JobID:           "job-1",
		TotalBudget:     100000,
		TotalActualCost: 130000,
	}

	if got := generateOne(t, a, domain.AnalysisWaste); len(got) != 0 {
		t.Errorf("expected waste-only run to skip the variance finding, got %d insights", len(got))
	}
	if got := generateOne(t, a, domain.AnalysisAll); len(got) != 1 {
		t.Errorf("expected the variance finding under all, got %d insights", len(got))
	}
}

func TestGenerate_SkipsIncompleteJobs(t *testing.T) {
	jobs := []domain.JobAnalysis{
		{Job: nil, Analysis: &domain.CostAnalysis{TotalBudget: 100, TotalActualCost: 200}},
		{Job: &domain.Job{ID: "job-2"}, Analysis: nil},
	}

	if got := engine.Generate(jobs, domain.AnalysisAll); len(got) != 0 {
		t.Errorf("expected incomplete jobs to be skipped, got %d insights", len(got))
	}
}
