package memory

import (
	"cmp"
	"context"
	"slices"

	"consigna/internal/core/apperror"
	"consigna/internal/domain"
	"consigna/internal/domain/ledger/sale"
)

// SaleRepo implements sale.Repository.
type SaleRepo struct{ s *Store }

var _ sale.Repository = (*SaleRepo)(nil)

func (r *SaleRepo) Create(ctx context.Context, sl *sale.Sale) error {
	return r.s.write(ctx, func(st *state) error {
		sl.ID = st.next("sales")
		stored := *sl
		stored.Lines = nil
		st.sales[sl.ID] = stored
		return nil
	})
}

func (r *SaleRepo) SaveLines(ctx context.Context, saleID int64, lines []sale.Line) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.sales[saleID]; !ok {
			return apperror.NewNotFound("sale", saleID)
		}
		for i := range lines {
			lines[i].ID = st.next("sale_line_items")
			lines[i].SaleID = saleID
			st.saleLines = append(st.saleLines, lines[i])
		}
		return nil
	})
}

func (r *SaleRepo) GetByID(ctx context.Context, id int64) (*sale.Sale, error) {
	var (
		sl sale.Sale
		ok bool
	)
	r.s.read(ctx, func(st *state) { sl, ok = st.sales[id] })
	if !ok {
		return nil, apperror.NewNotFound("sale", id)
	}
	return &sl, nil
}

func (r *SaleRepo) GetLines(ctx context.Context, saleID int64) ([]sale.Line, error) {
	var out []sale.Line
	r.s.read(ctx, func(st *state) {
		for _, l := range st.saleLines {
			if l.SaleID == saleID {
				out = append(out, l)
			}
		}
	})
	return out, nil
}

// List returns newest first.
func (r *SaleRepo) List(ctx context.Context, filter sale.Filter) (domain.ListResult[*sale.Sale], error) {
	var items []*sale.Sale
	r.s.read(ctx, func(st *state) {
		for _, sl := range st.sales {
			if filter.PartyID != nil && (sl.PartyID == nil || *sl.PartyID != *filter.PartyID) {
				continue
			}
			if filter.PaymentMethod != "" && sl.PaymentMethod != filter.PaymentMethod {
				continue
			}
			if filter.From != nil && sl.CreatedAt.Before(*filter.From) {
				continue
			}
			if filter.To != nil && sl.CreatedAt.After(*filter.To) {
				continue
			}
			items = append(items, &sl)
		}
	})
	slices.SortFunc(items, func(a, b *sale.Sale) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return page(items, filter.Page), nil
}
