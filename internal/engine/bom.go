package engine

import "github.com/mattquigleycfg/con-form-dash-sub000/internal/domain"

// Rollup expands manufacturing orders into priced component lists.
//
// For each order with a resolvable BOM, every component's per-unit
// quantity is multiplied by the order's produced quantity and priced at
// the product's standard cost. Orders without a resolvable BOM, and
// components without a cost record, are skipped rather than zero-filled:
// an unresolved component must not silently understate cost, so the
// aggregate is understood to be a lower bound.
func Rollup(orders []domain.ManufacturingOrder, boms []domain.BOM, lines []domain.BOMLine, costs []domain.ProductCost) []domain.BomCostBreakdown {
	bomByID := make(map[string]domain.BOM, len(boms))
	for _, b := range boms {
		bomByID[b.ID] = b
	}

	linesByBOM := make(map[string][]domain.BOMLine)
	for _, l := range lines {
		if l.BOMID == "" {
			continue
		}
		linesByBOM[l.BOMID] = append(linesByBOM[l.BOMID], l)
	}

	costByProduct := make(map[string]float64, len(costs))
	for _, c := range costs {
		costByProduct[c.ProductID] = c.StandardCost
	}

	breakdowns := make([]domain.BomCostBreakdown, 0, len(orders))
	for _, order := range orders {
		if order.BOMID == "" {
			continue
		}
		if _, ok := bomByID[order.BOMID]; !ok {
			continue // order references a missing BOM
		}

		bd := domain.BomCostBreakdown{
			OrderID:   order.ID,
			BOMID:     order.BOMID,
			ProductID: order.ProductID,
			Quantity:  order.Quantity,
		}

		for _, line := range linesByBOM[order.BOMID] {
			unitCost, ok := costByProduct[line.ProductID]
			if !ok {
				continue // no cost record, omit from the estimate
			}
			consumed := line.Quantity * order.Quantity
			component := domain.BomComponentCost{
				ProductID:        line.ProductID,
				QuantityPerUnit:  line.Quantity,
				ConsumedQuantity: consumed,
				UnitCost:         unitCost,
				MaterialCost:     consumed * unitCost,
			}
			bd.Components = append(bd.Components, component)
			bd.MaterialCost += component.MaterialCost
		}

		breakdowns = append(breakdowns, bd)
	}

	return breakdowns
}

// JobMaterialEstimate sums the per-order rollups into the job-level BOM
// material estimate, then applies any manual actual adjustments. The
// sentinel adjustment lines are hand-entered corrections; only the
// first per product counts, matching the one-per-(job, product) rule.
func JobMaterialEstimate(breakdowns []domain.BomCostBreakdown, adjustments []domain.BOMLine) float64 {
	var total float64
	for _, bd := range breakdowns {
		total += bd.MaterialCost
	}

	seen := make(map[string]bool)
	for i := range adjustments {
		adj := &adjustments[i]
		if adj.Notes != domain.ManualAdjustmentNote {
			continue
		}
		if seen[adj.ProductID] {
			continue
		}
		seen[adj.ProductID] = true
		total += adj.EffectiveTotal()
	}

	return total
}
