// Package service provides the business logic layer (use cases).
// AnalysisService orchestrates input gathering, reconciliation, insight
// generation, and the insight lifecycle.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mattquigleycfg/con-form-dash-sub000/internal/domain"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/engine"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/infra/observability"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/infra/resilience"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/analysis")

// DefaultInsightTTL is how long a generated insight stays visible
// before expiry acts as an implicit dismissal.
const DefaultInsightTTL = 7 * 24 * time.Hour

// Stores bundles the ports the analysis service depends on. The
// Supabase client satisfies all of them.
type Stores struct {
	Jobs       port.JobFetcher
	JobBudgets port.JobBudgetUpdater
	Ledger     port.LedgerFetcher
	Budgets    port.BudgetFetcher
	BOM        port.BOMFetcher
	Insights   port.InsightStore
}

// AnalysisService is the orchestration layer over the pure engine.
type AnalysisService struct {
	stores     Stores
	cache      port.Cache[*domain.CostAnalysis]
	bulkhead   *resilience.Bulkhead
	metrics    *observability.Metrics
	logger     *zap.Logger
	insightTTL time.Duration
}

// NewAnalysisService creates the analysis service with all dependencies
// injected. maxConcurrency bounds how many jobs a batch run analyses at
// once.
func NewAnalysisService(
	stores Stores,
	cache port.Cache[*domain.CostAnalysis],
	maxConcurrency int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AnalysisService {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &AnalysisService{
		stores:     stores,
		cache:      cache,
		bulkhead:   resilience.NewBulkhead(maxConcurrency),
		metrics:    metrics,
		logger:     logger,
		insightTTL: DefaultInsightTTL,
	}
}

// GetCostAnalysis returns the reconciled cost view for one job,
// fetching the independent input feeds concurrently. A failed fetch
// propagates as an error: it is never silently treated as zero data.
func (s *AnalysisService) GetCostAnalysis(ctx context.Context, jobID string) (*domain.CostAnalysis, error) {
	ctx, span := tracer.Start(ctx, "AnalysisService.GetCostAnalysis")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("cost_analysis", time.Since(start))
	}()

	cacheKey := fmt.Sprintf("analysis:%s", jobID)
	if cached, ok := s.cache.Get(cacheKey); ok {
		s.metrics.IncrCacheHit("analysis")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("analysis")

	ja, err := s.fetchJobAnalysis(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(cacheKey, ja.Analysis)
	return ja.Analysis, nil
}

// fetchJobAnalysis gathers a job's independent input sources (job
// record, ledger lines, BOM chain) concurrently, joins, and reconciles.
func (s *AnalysisService) fetchJobAnalysis(ctx context.Context, jobID string) (*domain.JobAnalysis, error) {
	var (
		job    *domain.Job
		ledger []domain.LedgerLine
		chain  *domain.BOMChain
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		j, err := s.stores.Jobs.GetJob(gCtx, jobID)
		if err != nil {
			s.logger.Error("failed to fetch job",
				zap.String("job_id", jobID),
				zap.Error(err),
			)
			s.metrics.IncrExternalError("jobs")
			return fmt.Errorf("job fetch: %w", err)
		}
		job = j
		return nil
	})

	g.Go(func() error {
		l, err := s.stores.Ledger.GetLedgerLines(gCtx, jobID)
		if err != nil {
			s.logger.Error("failed to fetch ledger lines",
				zap.String("job_id", jobID),
				zap.Error(err),
			)
			s.metrics.IncrExternalError("ledger")
			return fmt.Errorf("ledger fetch: %w", err)
		}
		ledger = l
		return nil
	})

	g.Go(func() error {
		b, err := s.stores.BOM.GetBOMChain(gCtx, jobID)
		if err != nil {
			s.logger.Error("failed to fetch BOM chain",
				zap.String("job_id", jobID),
				zap.Error(err),
			)
			s.metrics.IncrExternalError("bom")
			return fmt.Errorf("bom fetch: %w", err)
		}
		chain = b
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	analysis := engine.Reconcile(job, ledger, chain)
	if analysis == nil {
		return nil, &domain.ErrNotFound{Resource: "job", ID: jobID}
	}

	return &domain.JobAnalysis{Job: job, Analysis: analysis}, nil
}

// RunAnalysis analyses a batch of jobs, generates insights for the
// selected rule categories, and supersedes everything previously stored
// for those jobs. Returns the stamped insights that were persisted.
func (s *AnalysisService) RunAnalysis(ctx context.Context, jobIDs []string, analysisType domain.AnalysisType) ([]domain.Insight, error) {
	ctx, span := tracer.Start(ctx, "AnalysisService.RunAnalysis")
	defer span.End()
	span.SetAttributes(
		attribute.Int("job.count", len(jobIDs)),
		attribute.String("analysis.type", string(analysisType)),
	)

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("insight_run", time.Since(start))
	}()

	if len(jobIDs) == 0 {
		return nil, &domain.ErrValidation{Field: "job_ids", Message: "required"}
	}
	if analysisType == "" {
		analysisType = domain.AnalysisAll
	}
	if !analysisType.Valid() {
		return nil, &domain.ErrValidation{Field: "analysis_type", Message: fmt.Sprintf("unknown type %q", analysisType)}
	}

	analyses := make([]domain.JobAnalysis, len(jobIDs))
	g, gCtx := errgroup.WithContext(ctx)

	for i, jobID := range jobIDs {
		i, jobID := i, jobID
		g.Go(func() error {
			if err := s.bulkhead.Acquire(gCtx); err != nil {
				return err
			}
			defer s.bulkhead.Release()

			ja, err := s.fetchJobAnalysis(gCtx, jobID)
			if err != nil {
				return err
			}
			analyses[i] = *ja
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.metrics.IncrAnalysisRun("error")
		return nil, err
	}

	insights := engine.Generate(analyses, analysisType)

	now := time.Now()
	for i := range insights {
		insights[i].ID = uuid.NewString()
		insights[i].CreatedAt = now
		insights[i].ExpiresAt = now.Add(s.insightTTL)
		s.metrics.IncrInsight(string(insights[i].Type), string(insights[i].Severity))
	}

	if err := s.stores.Insights.ReplaceForJobs(ctx, jobIDs, insights); err != nil {
		s.metrics.IncrAnalysisRun("error")
		return nil, err
	}

	s.metrics.IncrAnalysisRun("success")
	s.logger.Info("analysis run complete",
		zap.Int("jobs", len(jobIDs)),
		zap.String("analysis_type", string(analysisType)),
		zap.Int("insights", len(insights)),
	)

	return insights, nil
}

// ListInsights returns the active (undismissed, unexpired) insights for
// one job.
func (s *AnalysisService) ListInsights(ctx context.Context, jobID string) ([]domain.Insight, error) {
	ctx, span := tracer.Start(ctx, "AnalysisService.ListInsights")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	return s.stores.Insights.ListActive(ctx, jobID, time.Now())
}

// DismissInsight flags one insight as dismissed. The flag is one-way;
// there is no automatic re-surfacing.
func (s *AnalysisService) DismissInsight(ctx context.Context, insightID string) error {
	ctx, span := tracer.Start(ctx, "AnalysisService.DismissInsight")
	defer span.End()
	span.SetAttributes(attribute.String("insight.id", insightID))

	if insightID == "" {
		return &domain.ErrValidation{Field: "insight_id", Message: "required"}
	}
	return s.stores.Insights.Dismiss(ctx, insightID)
}

// RefreshJobBudgets re-derives the job's material/non-material budget
// split from its order's budget lines and writes it back. The upstream
// product type tags are overridden by name classification; see
// engine.ClassifyProductType.
func (s *AnalysisService) RefreshJobBudgets(ctx context.Context, jobID string) (*domain.Job, error) {
	ctx, span := tracer.Start(ctx, "AnalysisService.RefreshJobBudgets")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	job, err := s.stores.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("job fetch: %w", err)
	}

	lines, err := s.stores.Budgets.GetBudgetLines(ctx, jobID)
	if err != nil {
		s.metrics.IncrExternalError("budget")
		return nil, fmt.Errorf("budget fetch: %w", err)
	}

	material, nonMaterial := engine.BudgetTotals(lines)
	if err := s.stores.JobBudgets.UpdateJobBudgets(ctx, jobID, material, nonMaterial, job.BudgetedRevenue); err != nil {
		return nil, err
	}

	job.MaterialBudget = material
	job.NonMaterialBudget = nonMaterial

	// The cached analysis was derived from the old budgets.
	s.cache.Delete(fmt.Sprintf("analysis:%s", jobID))

	s.logger.Info("job budgets refreshed",
		zap.String("job_id", jobID),
		zap.Float64("material_budget", material),
		zap.Float64("non_material_budget", nonMaterial),
	)

	return job, nil
}
