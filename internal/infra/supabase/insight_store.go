package supabase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/mattquigleycfg/con-form-dash-sub000/internal/domain"
	"github.com/mattquigleycfg/con-form-dash-sub000/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Insight store (implements port.InsightStore)
// ============================================================

// supabaseInsight maps the job_insights table columns.
type supabaseInsight struct {
	ID              string                  `json:"id"`
	JobID           string                  `json:"job_id"`
	Type            string                  `json:"type"`
	Severity        string                  `json:"severity"`
	Title           string                  `json:"title"`
	Description     string                  `json:"description"`
	Data            map[string]any          `json:"data"`
	Recommendations []domain.Recommendation `json:"recommendations"`
	Dismissed       bool                    `json:"dismissed"`
	CreatedAt       string                  `json:"created_at"`
	ExpiresAt       string                  `json:"expires_at"`
}

// ReplaceForJobs deletes every stored insight for the job-ID batch and
// inserts the new batch. Re-running analysis is the update mechanism:
// this is a full supersede, not an incremental merge. The operation is
// serialized in-process so a concurrent run for the same jobs cannot
// interleave its delete with our insert; across processes PostgREST
// gives us last-writer-wins, which the engine accepts.
func (c *Client) ReplaceForJobs(ctx context.Context, jobIDs []string, insights []domain.Insight) error {
	ctx, span := tracer.Start(ctx, "Supabase.ReplaceInsights")
	defer span.End()
	span.SetAttributes(attribute.Int("job.count", len(jobIDs)), attribute.Int("insight.count", len(insights)))

	if len(jobIDs) == 0 {
		return nil
	}

	c.replaceMu.Lock()
	defer c.replaceMu.Unlock()

	deletePath := fmt.Sprintf("job_insights?job_id=%s", inFilter(jobIDs))
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			return c.doDelete(ctx, deletePath)
		})
	})
	if err != nil {
		return wrapExternal("supabase/insights", err)
	}

	if len(insights) == 0 {
		return nil
	}

	rows := make([]supabaseInsight, 0, len(insights))
	for i := range insights {
		ins := &insights[i]
		rows = append(rows, supabaseInsight{
			ID:              ins.ID,
			JobID:           ins.JobID,
			Type:            string(ins.Type),
			Severity:        string(ins.Severity),
			Title:           ins.Title,
			Description:     ins.Description,
			Data:            ins.Data,
			Recommendations: ins.Recommendations,
			Dismissed:       ins.Dismissed,
			CreatedAt:       ins.CreatedAt.UTC().Format(time.RFC3339),
			ExpiresAt:       ins.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}

	// The insert retries inside the same lock: a failed insert after
	// the delete is retried rather than left as a partial replace.
	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			_, postErr := c.doPost(ctx, "job_insights", rows)
			return postErr
		})
	})
	if err != nil {
		return wrapExternal("supabase/insights", err)
	}
	return nil
}

// ListActive returns the undismissed, unexpired insights for a job.
// Expiry is filtered in the query, never by a background sweep, so a
// stale insight can never be displayed.
func (c *Client) ListActive(ctx context.Context, jobID string, now time.Time) ([]domain.Insight, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListActiveInsights")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	cutoff := url.QueryEscape(now.UTC().Format(time.RFC3339))
	path := fmt.Sprintf("job_insights?job_id=eq.%s&dismissed=eq.false&expires_at=gt.%s&order=created_at.desc", jobID, cutoff)

	rows, err := getInto[supabaseInsight](ctx, c, path)
	if err != nil {
		return nil, wrapExternal("supabase/insights", err)
	}

	insights := make([]domain.Insight, 0, len(rows))
	for _, r := range rows {
		insights = append(insights, domain.Insight{
			ID:              r.ID,
			JobID:           r.JobID,
			Type:            domain.InsightType(r.Type),
			Severity:        domain.Severity(r.Severity),
			Title:           r.Title,
			Description:     r.Description,
			Data:            r.Data,
			Recommendations: r.Recommendations,
			Dismissed:       r.Dismissed,
			CreatedAt:       parseDate(r.CreatedAt),
			ExpiresAt:       parseDate(r.ExpiresAt),
		})
	}
	return insights, nil
}

// Dismiss flips the one-way dismissed flag on an insight.
func (c *Client) Dismiss(ctx context.Context, insightID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DismissInsight")
	defer span.End()
	span.SetAttributes(attribute.String("insight.id", insightID))

	path := fmt.Sprintf("job_insights?id=eq.%s", insightID)
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			return c.doPatch(ctx, path, map[string]any{"dismissed": true})
		})
	})
	if err != nil {
		return wrapExternal("supabase/insights", err)
	}
	return nil
}
