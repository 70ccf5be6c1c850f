package domain

import "time"

// ============================================================
// Ledger
// ============================================================

// CostCategory is the derived classification of a ledger cost line.
type CostCategory string

const (
	CostMaterial    CostCategory = "material"
	CostNonMaterial CostCategory = "non_material"
)

// LedgerLine is one signed financial movement attributed to a job's
// analytic cost account. Negative amounts are costs; revenue entries are
// detected separately and excluded before cost classification.
type LedgerLine struct {
	ID             string       `json:"id"`
	JobID          string       `json:"job_id"`
	Description    string       `json:"description"`
	LinkedItemName string       `json:"linked_item_name,omitempty"`
	Amount         float64      `json:"amount"` // signed; negative = cost
	Date           time.Time    `json:"date"`
	Category       string       `json:"category,omitempty"` // source-provided, untrusted
	CostCategory   CostCategory `json:"cost_category,omitempty"`
}

// IsCost reports whether the line represents spend (as opposed to a
// revenue or zero-value movement). Revenue detection is applied on top
// of this by the classifier.
func (l *LedgerLine) IsCost() bool {
	return l.Amount < 0
}
