// Package engine implements the job cost reconciliation and insight
// rules: ledger line classification, BOM cost roll-up, budget/actual
// reconciliation, and the insight generator. Everything in this package
// is pure computation; fetching and persistence live behind the ports.
package engine

import (
	"strings"

	"github.com/mattquigleycfg/con-form-dash-sub000/internal/domain"
)

// ============================================================
// Keyword tables
//
// These are ordered, versioned constant tables kept separate from the
// matching logic so their evolution stays reviewable. The non-material
// table is always checked FIRST: service-indicating words such as
// "installation labour" can also contain material-sounding substrings,
// and operational cost categories take priority. Do not invert the
// order during a refactor.
// ============================================================

// nonMaterialKeywords flag operational/service spend. Includes the CFG
// short-code tags used on imported supplier lines.
var nonMaterialKeywords = []string{
	"LABOUR",
	"LABOR",
	"FREIGHT",
	"CRANAGE",
	"CRANE",
	"EQUIPMENT",
	"PLANT HIRE",
	"INSTALLATION",
	"INSTALL",
	"SILICON",
	"SEALANT",
	"TRUCK",
	"SERVICE",
	"HIRE",
	"TRAVEL",
	"ACCOMMODATION",
	"CFG TRUCK",
	"CFG LAB",
	"CFG INST",
	"CFG FRT",
	"SCAFFOLD",
	"SITE WORKS",
}

// materialKeywords flag physical goods: raw stock, fasteners, structural
// shapes, finishes, and standard fabricated parts.
var materialKeywords = []string{
	"RAW MATERIAL",
	"BOLT",
	"NUT",
	"SCREW",
	"WASHER",
	"FASTENER",
	"BRACKET",
	"FIXING",
	"WALKWAY",
	"M6",
	"M8",
	"M10",
	"M12",
	"M16",
	"M20",
	"M24",
	"RHS",
	"SHS",
	"CHS",
	"STEEL",
	"ALUMINIUM",
	"ALUMINUM",
	"PLATE",
	"ANGLE",
	"CHANNEL",
	"BEAM",
	"GALV",
	"POWDER COAT",
	"LADDER",
	"POST",
	"HANDRAIL",
	"MESH",
	"PURLIN",
	"FLAT BAR",
	"TREAD",
	"GRATING",
	"SHEET",
}

// serviceProductKeywords override a budget line's upstream product type
// to "service" whenever the product name contains one of them. Upstream
// type metadata is not trusted alone.
var serviceProductKeywords = []string{
	"INSTALLATION",
	"FREIGHT",
	"CRANAGE",
	"ACCOMMODATION",
	"TRAVEL",
	"TRANSPORT",
	"DELIVERY",
	"LABOUR",
	"SERVICE",
	"SITE INSPECTION",
	"WORKSHOP LABOUR",
	"SHOP DRAWING",
	"MAN DAY",
	"EXPENSES",
	"SITE LABOUR",
}

// revenueKeywords detect revenue/invoice movements in the ledger.
// Revenue lines must be excluded before cost classification is
// meaningful; counting them as costs would silently inflate spend.
var revenueKeywords = []string{
	"INVOICE",
	"INV#",
	"PROGRESS CLAIM",
	"CUSTOMER PAYMENT",
	"CREDIT NOTE",
	"DEPOSIT RECEIVED",
}

// labourKeywords gate the purchase-order fallback: an unlabeled PO line
// that talks about labour is not assumed to be goods.
var labourKeywords = []string{"LABOUR", "LABOR"}

// purchase-order marker tokens at the start of a description.
var poMarkers = []string{"PO ", "PO-", "PO#"}

// ============================================================
// Classification
// ============================================================

// Classify maps a raw ledger line's text to a cost category. It is a
// pure, total function: every input yields exactly one category.
//
// The policy is ordered and first-match-wins:
//  1. non-material keywords (checked first, see table comment)
//  2. material keywords
//  3. purchase-order marker without labour language → material
//  4. default → non_material (unclassified lines land in the
//     service/expense bucket rather than inflating material cost)
func Classify(description, linkedItemName string) domain.CostCategory {
	text := strings.ToUpper(description + " " + linkedItemName)

	for _, kw := range nonMaterialKeywords {
		if strings.Contains(text, kw) {
			return domain.CostNonMaterial
		}
	}

	for _, kw := range materialKeywords {
		if strings.Contains(text, kw) {
			return domain.CostMaterial
		}
	}

	if hasPOMarker(text) && !containsAny(text, labourKeywords) {
		return domain.CostMaterial
	}

	return domain.CostNonMaterial
}

// ClassifyProductType resolves a budget line's structural type at
// import time. Any service keyword in the product name forces
// "service", regardless of the upstream type tag.
func ClassifyProductType(productName string, upstreamType domain.ProductType) domain.ProductType {
	name := strings.ToUpper(productName)
	for _, kw := range serviceProductKeywords {
		if strings.Contains(name, kw) {
			return domain.ProductService
		}
	}
	if upstreamType == domain.ProductService {
		return domain.ProductService
	}
	return domain.ProductMaterial
}

// IsRevenueLine reports whether a ledger line is a revenue/invoice
// movement rather than spend.
func IsRevenueLine(line *domain.LedgerLine) bool {
	text := strings.ToUpper(line.Description)
	return containsAny(text, revenueKeywords)
}

func hasPOMarker(text string) bool {
	for _, m := range poMarkers {
		if strings.HasPrefix(text, m) {
			return true
		}
	}
	return false
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
