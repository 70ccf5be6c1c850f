package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mattquigleycfg/con-form-dash-sub000/internal/domain"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/infra/cache"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/infra/observability"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockJobs struct {
	jobs map[string]*domain.Job
	err  error
}

func (m *mockJobs) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	if m.err != nil {
		return nil, m.err
	}
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "job", ID: jobID}
	}
	return job, nil
}

type mockBudgetUpdater struct {
	updated map[string][2]float64
	err     error
}

func (m *mockBudgetUpdater) UpdateJobBudgets(_ context.Context, jobID string, material, nonMaterial, _ float64) error {
	if m.err != nil {
		return m.err
	}
	if m.updated == nil {
		m.updated = make(map[string][2]float64)
	}
	m.updated[jobID] = [2]float64{material, nonMaterial}
	return nil
}

type mockLedger struct {
	lines map[string][]domain.LedgerLine
	err   error
}

func (m *mockLedger) GetLedgerLines(_ context.Context, jobID string) ([]domain.LedgerLine, error) {
	return m.lines[jobID], m.err
}

type mockBudgets struct {
	lines []domain.BudgetLine
	err   error
}

func (m *mockBudgets) GetBudgetLines(_ context.Context, _ string) ([]domain.BudgetLine, error) {
	return m.lines, m.err
}

type mockBOM struct {
	chains map[string]*domain.BOMChain
	err    error
}

func (m *mockBOM) GetBOMChain(_ context.Context, jobID string) (*domain.BOMChain, error) {
	if m.err != nil {
		return nil, m.err
	}
	if chain, ok := m.chains[jobID]; ok {
		return chain, nil
	}
	return &domain.BOMChain{}, nil
}

// fakeInsightStore keeps insights in memory with real supersede
// semantics, so lifecycle behaviour is observable across calls.
type fakeInsightStore struct {
	byJob      map[string][]domain.Insight
	dismissed  map[string]bool
	replaceErr error
}

func newFakeInsightStore() *fakeInsightStore {
	return &fakeInsightStore{
		byJob:     make(map[string][]domain.Insight),
		dismissed: make(map[string]bool),
	}
}

func (f *fakeInsightStore) ReplaceForJobs(_ context.Context, jobIDs []string, insights []domain.Insight) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	for _, id := range jobIDs {
		delete(f.byJob, id)
	}
	for _, ins := range insights {
		f.byJob[ins.JobID] = append(f.byJob[ins.JobID], ins)
	}
	return nil
}

func (f *fakeInsightStore) ListActive(_ context.Context, jobID string, now time.Time) ([]domain.Insight, error) {
	var active []domain.Insight
	for _, ins := range f.byJob[jobID] {
		if f.dismissed[ins.ID] {
			continue
		}
		if ins.Active(now) {
			active = append(active, ins)
		}
	}
	return active, nil
}

func (f *fakeInsightStore) Dismiss(_ context.Context, insightID string) error {
	f.dismissed[insightID] = true
	return nil
}

// --- Helpers ---

func overBudgetJob(id string) *domain.Job {
	return &domain.Job{
		ID:                id,
		Name:              "Platform " + id,
		BudgetedRevenue:   150000,
		MaterialBudget:    60000,
		NonMaterialBudget: 40000,
	}
}

// ledger spend of 130k against a 100k budget: fires the variance rule.
func overBudgetLedger(id string) []domain.LedgerLine {
	return []domain.LedgerLine{
		{ID: id + "-l1", Description: "STEEL BEAM 310UB", Amount: -80000},
		{ID: id + "-l2", Description: "SITE LABOUR", Amount: -50000},
	}
}

func newService(stores service.Stores) *service.AnalysisService {
	return service.NewAnalysisService(
		stores,
		cache.New[*domain.CostAnalysis](5*time.Minute),
		4,
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

// --- Tests ---

func TestGetCostAnalysis_Success(t *testing.T) {
	stores := service.Stores{
		Jobs:   &mockJobs{jobs: map[string]*domain.Job{"job-1": overBudgetJob("job-1")}},
		Ledger: &mockLedger{lines: map[string][]domain.LedgerLine{"job-1": overBudgetLedger("job-1")}},
		BOM:    &mockBOM{},
	}
	svc := newService(stores)

	a, err := svc.GetCostAnalysis(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if a.TotalActualCost != 130000 {
		t.Errorf("expected total actual 130000, got %f", a.TotalActualCost)
	}
	if a.TotalBudget != 100000 {
		t.Errorf("expected total budget 100000, got %f", a.TotalBudget)
	}
}

func TestGetCostAnalysis_CacheHit(t *testing.T) {
	jobs := &mockJobs{jobs: map[string]*domain.Job{"job-1": overBudgetJob("job-1")}}
	stores := service.Stores{
		Jobs:   jobs,
		Ledger: &mockLedger{lines: map[string][]domain.LedgerLine{"job-1": overBudgetLedger("job-1")}},
		BOM:    &mockBOM{},
	}
	svc := newService(stores)

	if _, err := svc.GetCostAnalysis(context.Background(), "job-1"); err != nil {
		t.Fatalf("priming call failed: %v", err)
	}

	// Break the backend; the second call must come from cache.
	jobs.err = errors.New("backend down")
	a, err := svc.GetCostAnalysis(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("expected cached analysis, got %v", err)
	}
	if a.TotalActualCost != 130000 {
		t.Errorf("expected cached total actual 130000, got %f", a.TotalActualCost)
	}
}

func TestGetCostAnalysis_JobNotFound(t *testing.T) {
	stores := service.Stores{
		Jobs:   &mockJobs{jobs: map[string]*domain.Job{}},
		Ledger: &mockLedger{},
		BOM:    &mockBOM{},
	}
	svc := newService(stores)

	_, err := svc.GetCostAnalysis(context.Background(), "missing")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetCostAnalysis_FetchFailurePropagates(t *testing.T) {
	// A failed ledger fetch must never be treated as zero spend.
	stores := service.Stores{
		Jobs:   &mockJobs{jobs: map[string]*domain.Job{"job-1": overBudgetJob("job-1")}},
		Ledger: &mockLedger{err: errors.New("connection refused")},
		BOM:    &mockBOM{},
	}
	svc := newService(stores)

	if _, err := svc.GetCostAnalysis(context.Background(), "job-1"); err == nil {
		t.Fatal("expected fetch failure to propagate, got nil")
	}
}

func TestRunAnalysis_GeneratesAndStores(t *testing.T) {
	store := newFakeInsightStore()
	stores := service.Stores{
		Jobs:     &mockJobs{jobs: map[string]*domain.Job{"job-1": overBudgetJob("job-1")}},
		Ledger:   &mockLedger{lines: map[string][]domain.LedgerLine{"job-1": overBudgetLedger("job-1")}},
		BOM:      &mockBOM{},
		Insights: store,
	}
	svc := newService(stores)

	insights, err := svc.RunAnalysis(context.Background(), []string{"job-1"}, domain.AnalysisVariance)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(insights) != 1 {
		t.Fatalf("expected 1 variance insight for a 30%% overrun, got %d", len(insights))
	}

	ins := insights[0]
	if ins.ID == "" {
		t.Error("expected a stamped insight ID")
	}
	if ins.ExpiresAt.Sub(ins.CreatedAt) != service.DefaultInsightTTL {
		t.Errorf("expected a 7 day TTL, got %v", ins.ExpiresAt.Sub(ins.CreatedAt))
	}

	stored, _ := store.ListActive(context.Background(), "job-1", time.Now())
	if len(stored) != 1 {
		t.Errorf("expected the insight to be persisted, got %d", len(stored))
	}
}

func TestRunAnalysis_Supersede(t *testing.T) {
	store := newFakeInsightStore()
	stores := service.Stores{
		Jobs:     &mockJobs{jobs: map[string]*domain.Job{"job-1": overBudgetJob("job-1")}},
		Ledger:   &mockLedger{lines: map[string][]domain.LedgerLine{"job-1": overBudgetLedger("job-1")}},
		BOM:      &mockBOM{},
		Insights: store,
	}
	svc := newService(stores)

	first, err := svc.RunAnalysis(context.Background(), []string{"job-1"}, domain.AnalysisVariance)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := svc.RunAnalysis(context.Background(), []string{"job-1"}, domain.AnalysisVariance)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	stored, _ := store.ListActive(context.Background(), "job-1", time.Now())
	if len(stored) != len(second) {
		t.Fatalf("expected exactly the second run's insights, got %d stored", len(stored))
	}
	for _, ins := range stored {
		if ins.ID == first[0].ID {
			t.Error("an insight from the first run survived the supersede")
		}
		if ins.Dismissed {
			t.Error("freshly stored insights must not be dismissed")
		}
	}
}

func TestRunAnalysis_Validation(t *testing.T) {
	svc := newService(service.Stores{})

	_, err := svc.RunAnalysis(context.Background(), nil, domain.AnalysisAll)
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error for empty job_ids, got %v", err)
	}

	_, err = svc.RunAnalysis(context.Background(), []string{"job-1"}, "bogus")
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error for unknown analysis type, got %v", err)
	}
}

func TestRunAnalysis_StoreFailurePropagates(t *testing.T) {
	store := newFakeInsightStore()
	store.replaceErr = errors.New("insert rejected")
	stores := service.Stores{
		Jobs:     &mockJobs{jobs: map[string]*domain.Job{"job-1": overBudgetJob("job-1")}},
		Ledger:   &mockLedger{lines: map[string][]domain.LedgerLine{"job-1": overBudgetLedger("job-1")}},
		BOM:      &mockBOM{},
		Insights: store,
	}
	svc := newService(stores)

	if _, err := svc.RunAnalysis(context.Background(), []string{"job-1"}, domain.AnalysisVariance); err == nil {
		t.Fatal("expected store failure to propagate, got nil")
	}
}

func TestRunAnalysis_FetchFailureAbortsRun(t *testing.T) {
	store := newFakeInsightStore()
	stores := service.Stores{
		Jobs:     &mockJobs{err: errors.New("backend down")},
		Ledger:   &mockLedger{},
		BOM:      &mockBOM{},
		Insights: store,
	}
	svc := newService(stores)

	if _, err := svc.RunAnalysis(context.Background(), []string{"job-1"}, domain.AnalysisAll); err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(store.byJob) != 0 {
		t.Error("a failed run must not touch the stored insights")
	}
}

func TestListInsights_FiltersExpired(t *testing.T) {
	store := newFakeInsightStore()
	now := time.Now()
	store.byJob["job-1"] = []domain.Insight{
		{ID: "fresh", JobID: "job-1", CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)},
		{ID: "stale", JobID: "job-1", CreatedAt: now.Add(-8 * 24 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour)},
	}

	svc := newService(service.Stores{Insights: store})
	insights, err := svc.ListInsights(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(insights) != 1 || insights[0].ID != "fresh" {
		t.Errorf("expected only the unexpired insight, got %+v", insights)
	}
}

func TestDismissInsight(t *testing.T) {
	store := newFakeInsightStore()
	now := time.Now()
	store.byJob["job-1"] = []domain.Insight{
		{ID: "ins-1", JobID: "job-1", ExpiresAt: now.Add(24 * time.Hour)},
	}

	svc := newService(service.Stores{Insights: store})
	if err := svc.DismissInsight(context.Background(), "ins-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	insights, _ := svc.ListInsights(context.Background(), "job-1")
	if len(insights) != 0 {
		t.Errorf("expected dismissed insight to be hidden, got %d", len(insights))
	}

	var validation *domain.ErrValidation
	if err := svc.DismissInsight(context.Background(), ""); !errors.As(err, &validation) {
		t.Errorf("expected validation error for empty id, got %v", err)
	}
}

func TestRefreshJobBudgets(t *testing.T) {
	updater := &mockBudgetUpdater{}
	stores := service.Stores{
		Jobs:       &mockJobs{jobs: map[string]*domain.Job{"job-1": overBudgetJob("job-1")}},
		JobBudgets: updater,
		Budgets: &mockBudgets{lines: []domain.BudgetLine{
			{ProductName: "RHS 100x50", Quantity: 10, UnitPrice: 500, ProductType: domain.ProductMaterial},
			{ProductName: "Walkway installation", Quantity: 1, UnitPrice: 3000, ProductType: domain.ProductMaterial},
		}},
	}
	svc := newService(stores)

	job, err := svc.RefreshJobBudgets(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if job.MaterialBudget != 5000 || job.NonMaterialBudget != 3000 {
		t.Errorf("expected 5000/3000 split, got %f/%f", job.MaterialBudget, job.NonMaterialBudget)
	}

	got, ok := updater.updated["job-1"]
	if !ok {
		t.Fatal("expected the split to be written back")
	}
	if got[0] != 5000 || got[1] != 3000 {
		t.Errorf("expected 5000/3000 written back, got %f/%f", got[0], got[1])
	}
}
