package supabase

import (
	"context"
	"fmt"

	"github.com/mattquigleycfg/con-form-dash-sub000/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Read-only feeds: ledger lines, budget lines, BOM chain
// ============================================================

// supabaseLedgerLine maps the ledger_lines table columns.
type supabaseLedgerLine struct {
	ID             string  `json:"id"`
	JobID          string  `json:"job_id"`
	Description    string  `json:"description"`
	LinkedItemName string  `json:"linked_item_name"`
	Amount         float64 `json:"amount"`
	Date           string  `json:"date"`
	Category       string  `json:"category"`
}

// GetLedgerLines fetches the ledger lines booked against a job's cost
// account. Implements port.LedgerFetcher.
func (c *Client) GetLedgerLines(ctx context.Context, jobID string) ([]domain.LedgerLine, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetLedgerLines")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	path := fmt.Sprintf("ledger_lines?job_id=eq.%s&order=date.desc", jobID)
	rows, err := getInto[supabaseLedgerLine](ctx, c, path)
	if err != nil {
		return nil, wrapExternal("supabase/ledger", err)
	}

	lines := make([]domain.LedgerLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, domain.LedgerLine{
			ID:             r.ID,
			JobID:          r.JobID,
			Description:    r.Description,
			LinkedItemName: r.LinkedItemName,
			Amount:         r.Amount,
			Date:           parseDate(r.Date),
			Category:       r.Category,
		})
	}
	return lines, nil
}

// supabaseBudgetLine maps the budget_lines table columns.
type supabaseBudgetLine struct {
	ID          string  `json:"id"`
	JobID       string  `json:"job_id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
	ProductType string  `json:"product_type"`
}

// GetBudgetLines fetches the planned cost lines from the job's order.
// Implements port.BudgetFetcher.
func (c *Client) GetBudgetLines(ctx context.Context, jobID string) ([]domain.BudgetLine, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetBudgetLines")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	path := fmt.Sprintf("budget_lines?job_id=eq.%s", jobID)
	rows, err := getInto[supabaseBudgetLine](ctx, c, path)
	if err != nil {
		return nil, wrapExternal("supabase/budget", err)
	}

	lines := make([]domain.BudgetLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, domain.BudgetLine{
			ID:          r.ID,
			JobID:       r.JobID,
			ProductID:   r.ProductID,
			ProductName: r.ProductName,
			Quantity:    r.Quantity,
			UnitPrice:   r.UnitPrice,
			Subtotal:    r.Subtotal,
			ProductType: domain.ProductType(r.ProductType),
		})
	}
	return lines, nil
}

// supabaseManufacturingOrder maps the manufacturing_orders table.
type supabaseManufacturingOrder struct {
	ID        string  `json:"id"`
	JobID     string  `json:"job_id"`
	ProductID string  `json:"product_id"`
	BOMID     string  `json:"bom_id"`
	Quantity  float64 `json:"quantity"`
}

// supabaseBOM maps the boms table.
type supabaseBOM struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
}

// supabaseBOMLine maps the bom_lines table.
type supabaseBOMLine struct {
	ID        string  `json:"id"`
	BOMID     string  `json:"bom_id"`
	JobID     string  `json:"job_id"`
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitCost  float64 `json:"unit_cost"`
	TotalCost float64 `json:"total_cost"`
	Notes     string  `json:"notes"`
}

// supabaseProductCost maps the product_costs table.
type supabaseProductCost struct {
	ProductID    string  `json:"product_id"`
	StandardCost float64 `json:"standard_cost"`
}

// GetBOMChain walks manufacturing orders → BOMs → component lines →
// product costs for one job, plus the job-level manual adjustment
// lines. Implements port.BOMFetcher. Empty facets are returned as-is;
// the rollup treats them as a partial estimate.
func (c *Client) GetBOMChain(ctx context.Context, jobID string) (*domain.BOMChain, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetBOMChain")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID))

	orderRows, err := getInto[supabaseManufacturingOrder](ctx, c, fmt.Sprintf("manufacturing_orders?job_id=eq.%s", jobID))
	if err != nil {
		return nil, wrapExternal("supabase/bom", err)
	}

	chain := &domain.BOMChain{}
	bomIDs := make([]string, 0, len(orderRows))
	for _, r := range orderRows {
		chain.Orders = append(chain.Orders, domain.ManufacturingOrder{
			ID:        r.ID,
			JobID:     r.JobID,
			ProductID: r.ProductID,
			BOMID:     r.BOMID,
			Quantity:  r.Quantity,
		})
		if r.BOMID != "" {
			bomIDs = append(bomIDs, r.BOMID)
		}
	}

	if len(bomIDs) > 0 {
		bomRows, err := getInto[supabaseBOM](ctx, c, fmt.Sprintf("boms?id=%s", inFilter(bomIDs)))
		if err != nil {
			return nil, wrapExternal("supabase/bom", err)
		}
		for _, r := range bomRows {
			chain.BOMs = append(chain.BOMs, domain.BOM{ID: r.ID, ProductID: r.ProductID})
		}

		lineRows, err := getInto[supabaseBOMLine](ctx, c, fmt.Sprintf("bom_lines?bom_id=%s", inFilter(bomIDs)))
		if err != nil {
			return nil, wrapExternal("supabase/bom", err)
		}
		for _, r := range lineRows {
			chain.Lines = append(chain.Lines, toBOMLine(r))
		}
	}

	// Job-level manual adjustment lines live in the same table, keyed
	// by job instead of BOM.
	adjRows, err := getInto[supabaseBOMLine](ctx, c, fmt.Sprintf("bom_lines?job_id=eq.%s", jobID))
	if err != nil {
		return nil, wrapExternal("supabase/bom", err)
	}
	for _, r := range adjRows {
		chain.AdjustmentLines = append(chain.AdjustmentLines, toBOMLine(r))
	}

	productIDs := make([]string, 0, len(chain.Lines))
	seen := make(map[string]bool)
	for _, l := range chain.Lines {
		if l.ProductID != "" && !seen[l.ProductID] {
			seen[l.ProductID] = true
			productIDs = append(productIDs, l.ProductID)
		}
	}
	if len(productIDs) > 0 {
		costRows, err := getInto[supabaseProductCost](ctx, c, fmt.Sprintf("product_costs?product_id=%s", inFilter(productIDs)))
		if err != nil {
			return nil, wrapExternal("supabase/bom", err)
		}
		for _, r := range costRows {
			chain.Costs = append(chain.Costs, domain.ProductCost{ProductID: r.ProductID, StandardCost: r.StandardCost})
		}
	}

	return chain, nil
}

func toBOMLine(r supabaseBOMLine) domain.BOMLine {
	return domain.BOMLine{
		ID:        r.ID,
		BOMID:     r.BOMID,
		JobID:     r.JobID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		UnitCost:  r.UnitCost,
		TotalCost: r.TotalCost,
		Notes:     r.Notes,
	}
}
