package domain

import "time"

// ============================================================
// Insights
// ============================================================

// InsightType identifies the rule category that produced a finding.
type InsightType string

const (
	InsightVariance     InsightType = "variance"
	InsightAnomaly      InsightType = "anomaly"
	InsightPrediction   InsightType = "prediction"
	InsightOptimization InsightType = "optimization"
	InsightWaste        InsightType = "waste"
	InsightComparison   InsightType = "comparison"
)

// Severity ranks how urgent a finding is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Impact grades a recommendation's expected effect.
type Impact string

const (
	ImpactLow      Impact = "Low"
	ImpactMedium   Impact = "Medium"
	ImpactHigh     Impact = "High"
	ImpactCritical Impact = "Critical"
)

// AnalysisType selects which rule categories an insight run evaluates.
type AnalysisType string

const (
	AnalysisAll          AnalysisType = "all"
	AnalysisVariance     AnalysisType = "budget_variance"
	AnalysisAnomalies    AnalysisType = "anomalies"
	AnalysisPredictions  AnalysisType = "predictions"
	AnalysisOptimization AnalysisType = "optimization"
	AnalysisWaste        AnalysisType = "waste"
)

// Valid reports whether t names a known analysis type.
func (t AnalysisType) Valid() bool {
	switch t {
	case AnalysisAll, AnalysisVariance, AnalysisAnomalies,
		AnalysisPredictions, AnalysisOptimization, AnalysisWaste:
		return true
	}
	return false
}

// Recommendation is one costed, actionable suggestion attached to an
// insight. It has no lifecycle of its own.
type Recommendation struct {
	Action          string   `json:"action"`
	Impact          Impact   `json:"impact"`
	Description     string   `json:"description"`
	ExpectedSavings *float64 `json:"expected_savings,omitempty"`
}

// Insight is one generated, severity-ranked finding. The Data payload
// carries the exact numeric inputs the rule used, so consumers never
// have to recompute them.
type Insight struct {
	ID              string           `json:"id"`
	JobID           string           `json:"job_id"`
	Type            InsightType      `json:"type"`
	Severity        Severity         `json:"severity"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Data            map[string]any   `json:"data,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
	Dismissed       bool             `json:"dismissed"`
	CreatedAt       time.Time        `json:"created_at"`
	ExpiresAt       time.Time        `json:"expires_at"`
}

// Active reports whether the insight should still be displayed at the
// given instant. Expiry is an implicit dismissal.
func (i *Insight) Active(now time.Time) bool {
	return !i.Dismissed && now.Before(i.ExpiresAt)
}

// RunRequest is the body of POST /v1/insights/run.
type RunRequest struct {
	JobIDs       []string     `json:"job_ids"`
	AnalysisType AnalysisType `json:"analysis_type"`
}

// SuccessResponse is a generic acknowledgement payload.
type SuccessResponse struct {
	Message string `json:"message"`
}
