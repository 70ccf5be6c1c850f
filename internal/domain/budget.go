package domain

// ============================================================
// Budget lines
// ============================================================

// ProductType is the coarse structural type of a budget line's product.
type ProductType string

const (
	ProductMaterial ProductType = "material"
	ProductService  ProductType = "service"
)

// BudgetLine is one planned cost item derived from the job's sales
// order, expressed at cost (not sale) price. Created at job-sync time;
// immutable afterwards except for cost-refresh overwrites of UnitPrice
// and Subtotal.
type BudgetLine struct {
	ID          string      `json:"id"`
	JobID       string      `json:"job_id"`
	ProductID   string      `json:"product_id,omitempty"`
	ProductName string      `json:"product_name"`
	Quantity    float64     `json:"quantity"`
	UnitPrice   float64     `json:"unit_price"` // cost basis
	Subtotal    float64     `json:"subtotal"`
	ProductType ProductType `json:"product_type"`
}

// EffectiveSubtotal returns unit price times quantity, falling back to
// the literal subtotal when quantity is zero or unavailable.
func (b *BudgetLine) EffectiveSubtotal() float64 {
	if b.Quantity == 0 {
		return b.Subtotal
	}
	return b.UnitPrice * b.Quantity
}
