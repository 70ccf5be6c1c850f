// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the engine and
// service layer from the concrete ERP mirror backend.
package port

import (
	"context"
	"time"

	"github.com/mattquigleycfg/con-form-dash-sub000/internal/domain"
)

// JobFetcher retrieves job records.
type JobFetcher interface {
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
}

// JobBudgetUpdater writes back the budget split computed at sync time.
type JobBudgetUpdater interface {
	UpdateJobBudgets(ctx context.Context, jobID string, materialBudget, nonMaterialBudget, budgetedRevenue float64) error
}

// LedgerFetcher retrieves the ledger lines booked against a job's cost
// account(s).
type LedgerFetcher interface {
	GetLedgerLines(ctx context.Context, jobID string) ([]domain.LedgerLine, error)
}

// BudgetFetcher retrieves the planned cost lines from a job's order.
type BudgetFetcher interface {
	GetBudgetLines(ctx context.Context, jobID string) ([]domain.BudgetLine, error)
}

// BOMFetcher retrieves the full manufacturing chain for a job:
// manufacturing orders, their BOMs, the BOM component lines, job-level
// manual adjustment lines, and the standard cost records needed to
// price the components.
type BOMFetcher interface {
	GetBOMChain(ctx context.Context, jobID string) (*domain.BOMChain, error)
}

// InsightStore governs insight persistence. ReplaceForJobs must behave
// as a single logical unit per job-ID batch: delete everything stored
// for those jobs, then insert the new batch. A partial delete with no
// corresponding insert must never persist.
type InsightStore interface {
	ReplaceForJobs(ctx context.Context, jobIDs []string, insights []domain.Insight) error
	ListActive(ctx context.Context, jobID string, now time.Time) ([]domain.Insight, error)
	Dismiss(ctx context.Context, insightID string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
