// Package supabase provides a client for the Supabase PostgREST API
// that mirrors the ERP data: jobs, ledger lines, budget lines, the
// manufacturing BOM chain, and the generated insights.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mattquigleycfg/con-form-dash-sub000/internal/domain"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger

	// Serializes the delete-then-insert insight replace within this
	// process. Across processes the replace is last-writer-wins.
	replaceMu sync.Mutex
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// doRequest executes an authenticated GET-style request to PostgREST.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("supabase returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

// getInto runs a GET with circuit breaker + retry and decodes the rows.
func getInto[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var rows []T
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				rows = nil
				return nil
			}
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode %s: %w", path, err)
			}
			return nil
		})
	})
	return rows, err
}

// wrapExternal translates transport failures into the domain taxonomy:
// an open breaker and a blown deadline carry their own HTTP mappings.
func wrapExternal(service string, err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		return &domain.ErrCircuitOpen{Service: service}
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.ErrTimeout{Operation: service}
	default:
		return &domain.ErrExternalService{Service: service, Err: err}
	}
}

// inFilter builds a PostgREST in.(...) filter value.
func inFilter(ids []string) string {
	return fmt.Sprintf("in.(%s)", strings.Join(ids, ","))
}

func parseDate(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02", s)
	}
	return t
}

// --- Jobs (implements port.JobFetcher, port.JobBudgetUpdater) ---

// supabaseJob maps the jobs table columns to our domain.
type supabaseJob struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Customer          string  `json:"customer"`
	Status            string  `json:"status"`
	OrderRef          string  `json:"order_ref"`
	BudgetedRevenue   float64 `json:"budgeted_revenue"`
	MaterialBudget    float64 `json:"material_budget"`
	NonMaterialBudget float64 `json:"non_material_budget"`
	SyncedAt          string  `json:"synced_at"`
}

// GetJob fetches one job record.
func (c *Client) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetJob")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	path := fmt.Sprintf("jobs?id=eq.%s&limit=1", jobID)
	rows, err := getInto[supabaseJob](ctx, c, path)
	if err != nil {
		return nil, wrapExternal("supabase/jobs", err)
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "job", ID: jobID}
	}

	j := rows[0]
	return &domain.Job{
		ID:                j.ID,
		Name:              j.Name,
		Customer:          j.Customer,
		Status:            j.Status,
		OrderRef:          j.OrderRef,
		BudgetedRevenue:   j.BudgetedRevenue,
		MaterialBudget:    j.MaterialBudget,
		NonMaterialBudget: j.NonMaterialBudget,
		SyncedAt:          parseDate(j.SyncedAt),
	}, nil
}

// UpdateJobBudgets writes back the budget split computed from the
// job's classified budget lines.
func (c *Client) UpdateJobBudgets(ctx context.Context, jobID string, materialBudget, nonMaterialBudget, budgetedRevenue float64) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateJobBudgets")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	path := fmt.Sprintf("jobs?id=eq.%s", jobID)
	data := map[string]any{
		"material_budget":     materialBudget,
		"non_material_budget": nonMaterialBudget,
		"budgeted_revenue":    budgetedRevenue,
	}

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			return c.doPatch(ctx, path, data)
		})
	})
	if err != nil {
		return wrapExternal("supabase/jobs", err)
	}
	return nil
}
