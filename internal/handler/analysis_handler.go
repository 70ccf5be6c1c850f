package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mattquigleycfg/con-form-dash-sub000/internal/domain"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Cost analysis
// ============================================================

func getCostAnalysisHandler(svc *service.AnalysisService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/jobs/{jobId}/cost-analysis")
		defer span.End()

		jobID := chi.URLParam(r, "jobId")
		analysis, err := svc.GetCostAnalysis(ctx, jobID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, analysis)
	}
}

func refreshJobBudgetsHandler(svc *service.AnalysisService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/jobs/{jobId}/budget/refresh")
		defer span.End()

		jobID := chi.URLParam(r, "jobId")
		job, err := svc.RefreshJobBudgets(ctx, jobID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

// ============================================================
// Insights
// ============================================================

func runAnalysisHandler(svc *service.AnalysisService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/insights/run")
		defer span.End()

		var req domain.RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		insights, err := svc.RunAnalysis(ctx, req.JobIDs, req.AnalysisType)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, insights)
	}
}

func listInsightsHandler(svc *service.AnalysisService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/jobs/{jobId}/insights")
		defer span.End()

		jobID := chi.URLParam(r, "jobId")
		insights, err := svc.ListInsights(ctx, jobID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, insights)
	}
}

func dismissInsightHandler(svc *service.AnalysisService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/insights/{insightId}/dismiss")
		defer span.End()

		insightID := chi.URLParam(r, "insightId")
		if err := svc.DismissInsight(ctx, insightID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "insight dismissed"})
	}
}
