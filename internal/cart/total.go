package cart

import (
	"github.com/fjod/go_laundry/internal/domain"
	"github.com/shopspring/decimal"
)

// LineSubtotal is the priced view of one line.
type LineSubtotal struct {
	Line      domain.CartLine `json:"line"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Stale     bool            `json:"stale"`
}

// UnitPrice resolves the price of one unit of the line. ok is false when the
// catalog no longer lists the service or the garment type.
func UnitPrice(line domain.CartLine, catalog domain.Catalog) (decimal.Decimal, bool) {
	svc, p, ok := catalog.Lookup(line.ServiceID, line.GarmentType)
	if !ok {
		return decimal.Zero, false
	}
	if !line.IsExpress || !svc.IsExpressAvailable {
		return p.StandardPrice, true
	}
	switch {
	case p.ExpressPrice.IsPositive():
		return p.ExpressPrice, true
	case p.ExpressMultiplier.IsPositive():
		return p.StandardPrice.Mul(p.ExpressMultiplier), true
	default:
		return p.StandardPrice, true
	}
}

func LineSubtotals(lines []domain.CartLine, catalog domain.Catalog) []LineSubtotal {
	out := make([]LineSubtotal, 0, len(lines))
	for _, l := range lines {
		unit, ok := UnitPrice(l, catalog)
		out = append(out, LineSubtotal{
			Line:      l,
			UnitPrice: unit,
			Subtotal:  unit.Mul(decimal.NewFromInt(int64(l.Quantity))),
			Stale:     !ok,
		})
	}
	return out
}

// ComputeTotal sums quantity * unit price over all lines. Stale lines count as
// zero since the catalog may still be loading.
func ComputeTotal(lines []domain.CartLine, catalog domain.Catalog) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		unit, _ := UnitPrice(l, catalog)
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}
