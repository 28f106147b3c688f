package memory

import (
	"cmp"
	"context"
	"slices"

	"consigna/internal/core/types"
	"consigna/internal/domain/catalog/product"
	"consigna/internal/domain/ledger/shipment"
	"consigna/internal/domain/reports"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct{ s *Store }

var _ reports.Repository = (*ReportRepo)(nil)

func (r *ReportRepo) StockSummary(ctx context.Context) (types.Money, int, error) {
	value, qty := types.Zero(), 0
	r.s.read(ctx, func(st *state) {
		for _, p := range st.products {
			value = value.Add(types.LineAmount(p.Stock, p.SalePrice))
			qty += p.Stock
		}
	})
	return value, qty, nil
}

func (r *ReportRepo) ConsignedSummary(ctx context.Context) (int, types.Money, error) {
	pieces, value := 0, types.Zero()
	r.s.read(ctx, func(st *state) {
		for _, l := range st.lines {
			if l.Status != shipment.LineConsigned {
				continue
			}
			pieces += l.Quantity
			value = value.Add(l.Amount())
		}
	})
	return pieces, value, nil
}

func (r *ReportRepo) SalesByPayment(ctx context.Context, filter reports.SalesFilter) ([]reports.PaymentTotal, error) {
	byMethod := make(map[string]*reports.PaymentTotal)
	r.s.read(ctx, func(st *state) {
		for _, sl := range st.sales {
			if !filter.From.IsZero() && sl.CreatedAt.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && sl.CreatedAt.After(filter.To) {
				continue
			}
			method := string(sl.PaymentMethod)
			t, ok := byMethod[method]
			if !ok {
				t = &reports.PaymentTotal{PaymentMethod: method, Total: types.Zero()}
				byMethod[method] = t
			}
			t.Sales++
			for _, l := range st.saleLines {
				if l.SaleID == sl.ID {
					t.Total = t.Total.Add(l.Amount())
				}
			}
		}
	})

	out := make([]reports.PaymentTotal, 0, len(byMethod))
	for _, t := range byMethod {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b reports.PaymentTotal) int { return cmp.Compare(a.PaymentMethod, b.PaymentMethod) })
	return out, nil
}

func (r *ReportRepo) GetTurnover(ctx context.Context, filter reports.TurnoverFilter) (*reports.TurnoverReport, error) {
	report := &reports.TurnoverReport{FromDate: filter.FromDate, ToDate: filter.ToDate}
	byProduct := make(map[int64]*reports.TurnoverItem)

	r.s.read(ctx, func(st *state) {
		for _, m := range st.movements {
			if m.CreatedAt.Before(filter.FromDate) || m.CreatedAt.After(filter.ToDate) {
				continue
			}
			if len(filter.ProductIDs) > 0 && !slices.Contains(filter.ProductIDs, m.ProductID) {
				continue
			}
			item, ok := byProduct[m.ProductID]
			if !ok {
				item = &reports.TurnoverItem{ProductID: m.ProductID, ProductName: st.products[m.ProductID].Name}
				byProduct[m.ProductID] = item
			}
			switch m.Kind {
			case product.MovementReserve:
				item.Reserved -= m.Delta
			case product.MovementRelease:
				item.Released += m.Delta
			case product.MovementSet:
				item.Adjusted += m.Delta
			}
			item.ClosingQty = m.StockAfter
		}
	})

	items := make([]reports.TurnoverItem, 0, len(byProduct))
	for _, item := range byProduct {
		items = append(items, *item)
		report.TotalReserved += item.Reserved
		report.TotalReleased += item.Released
	}
	slices.SortFunc(items, func(a, b reports.TurnoverItem) int {
		return cmp.Or(cmp.Compare(a.ProductName, b.ProductName), cmp.Compare(a.ProductID, b.ProductID))
	})

	report.TotalItems = len(items)
	start := min(filter.Offset, len(items))
	end := len(items)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(items))
	}
	report.Items = items[start:end]
	return report, nil
}
