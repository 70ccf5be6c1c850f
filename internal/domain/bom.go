package domain

// ============================================================
// BOM chain (manufacturing orders → BOMs → component lines → costs)
// ============================================================

// ManualAdjustmentNote marks a hand-entered BOM line used to reconcile
// the displayed actual with a user override. At most one such line may
// exist per (job, product).
const ManualAdjustmentNote = "Manual actual adjustment"

// ManufacturingOrder is one production order linked to a job.
type ManufacturingOrder struct {
	ID        string  `json:"id"`
	JobID     string  `json:"job_id"`
	ProductID string  `json:"product_id,omitempty"`
	BOMID     string  `json:"bom_id,omitempty"`
	Quantity  float64 `json:"quantity"` // produced quantity
}

// BOM is the component list definition for a produced item.
type BOM struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
}

// BOMLine is one component consumption record. Definition lines carry a
// BOMID and a per-unit quantity; job-level adjustment lines carry a
// JobID and the ManualAdjustmentNote instead.
type BOMLine struct {
	ID        string  `json:"id"`
	BOMID     string  `json:"bom_id,omitempty"`
	JobID     string  `json:"job_id,omitempty"`
	ProductID string  `json:"product_id,omitempty"`
	Quantity  float64 `json:"quantity"`
	UnitCost  float64 `json:"unit_cost"`
	TotalCost float64 `json:"total_cost"`
	Notes     string  `json:"notes,omitempty"`
}

// EffectiveTotal returns the line's total cost, falling back to
// unit cost times quantity when the stored total is absent.
func (l *BOMLine) EffectiveTotal() float64 {
	if l.TotalCost != 0 {
		return l.TotalCost
	}
	return l.UnitCost * l.Quantity
}

// ProductCost is the standard per-unit cost record for a catalog product.
type ProductCost struct {
	ProductID    string  `json:"product_id"`
	StandardCost float64 `json:"standard_cost"`
}

// BOMChain bundles everything needed to roll up a job's planned
// material consumption. Any facet may be empty; a partial chain yields
// a partial (lower-bound) estimate, never an error.
type BOMChain struct {
	Orders          []ManufacturingOrder `json:"orders"`
	BOMs            []BOM                `json:"boms"`
	Lines           []BOMLine            `json:"lines"`
	AdjustmentLines []BOMLine            `json:"adjustment_lines,omitempty"`
	Costs           []ProductCost        `json:"costs"`
}

// BomComponentCost is one resolved component within an order rollup.
type BomComponentCost struct {
	ProductID        string  `json:"product_id"`
	QuantityPerUnit  float64 `json:"quantity_per_unit"`
	ConsumedQuantity float64 `json:"consumed_quantity"`
	UnitCost         float64 `json:"unit_cost"`
	MaterialCost     float64 `json:"material_cost"`
}

// BomCostBreakdown is the per-manufacturing-order material cost rollup.
// Components without a resolvable cost record are omitted, so the total
// is a lower bound on planned consumption.
type BomCostBreakdown struct {
	OrderID      string             `json:"order_id"`
	BOMID        string             `json:"bom_id"`
	ProductID    string             `json:"product_id,omitempty"`
	Quantity     float64            `json:"quantity"`
	Components   []BomComponentCost `json:"components"`
	MaterialCost float64            `json:"material_cost"`
}
