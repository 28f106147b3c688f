package memory

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"strings"

	"consigna/internal/core/apperror"
	"consigna/internal/domain"
	"consigna/internal/domain/ledger/shipment"
)

// ShipmentRepo implements shipment.Repository.
type ShipmentRepo struct{ s *Store }

var _ shipment.Repository = (*ShipmentRepo)(nil)

func (r *ShipmentRepo) Create(ctx context.Context, shp *shipment.Shipment) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.parties[shp.PartyID]; !ok {
			return apperror.NewNotFound("party", shp.PartyID)
		}
		shp.ID = st.next("shipments")
		stored := *shp
		stored.Lines = nil
		stored.PartyName = ""
		st.shipments[shp.ID] = stored
		return nil
	})
}

func (r *ShipmentRepo) GetByID(ctx context.Context, id int64) (*shipment.Shipment, error) {
	var (
		shp shipment.Shipment
		ok  bool
	)
	r.s.read(ctx, func(st *state) {
		shp, ok = st.shipments[id]
		if ok {
			shp.PartyName = st.parties[shp.PartyID].FullName
		}
	})
	if !ok {
		return nil, apperror.NewNotFound("shipment", id)
	}
	return &shp, nil
}

// GetForUpdate needs no row lock: transactions are serialized.
func (r *ShipmentRepo) GetForUpdate(ctx context.Context, id int64) (*shipment.Shipment, error) {
	return r.GetByID(ctx, id)
}

func (r *ShipmentRepo) UpdateState(ctx context.Context, shp *shipment.Shipment) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.shipments[shp.ID]
		if !ok {
			return apperror.NewNotFound("shipment", shp.ID)
		}
		cur.Status = shp.Status
		cur.DepartedAt = shp.DepartedAt
		cur.SettledAt = shp.SettledAt
		st.shipments[shp.ID] = cur
		return nil
	})
}

func (r *ShipmentRepo) Search(ctx context.Context, filter shipment.Filter) (domain.ListResult[*shipment.Shipment], error) {
	term := strings.ToLower(filter.Term)
	termID, idErr := strconv.ParseInt(filter.Term, 10, 64)

	var items []*shipment.Shipment
	r.s.read(ctx, func(st *state) {
		for _, shp := range st.shipments {
			if filter.Status != "" && shp.Status != filter.Status {
				continue
			}
			if filter.PartyID != nil && shp.PartyID != *filter.PartyID {
				continue
			}
			owner := st.parties[shp.PartyID]
			if term != "" {
				matched := (idErr == nil && shp.ID == termID) ||
					strings.Contains(strings.ToLower(owner.FullName), term) ||
					strings.Contains(strings.ToLower(owner.Document), term) ||
					strings.Contains(strings.ToLower(owner.Phone), term)
				if !matched {
					continue
				}
			}
			shp.PartyName = owner.FullName
			items = append(items, &shp)
		}
	})
	slices.SortFunc(items, func(a, b *shipment.Shipment) int {
		return cmp.Or(b.DepartedAt.Compare(a.DepartedAt), cmp.Compare(b.ID, a.ID))
	})
	return page(items, filter.Page), nil
}

func (r *ShipmentRepo) AddLines(ctx context.Context, lines []shipment.LineItem) error {
	return r.s.write(ctx, func(st *state) error {
		for i := range lines {
			l := &lines[i]
			if _, ok := st.products[l.ProductID]; !ok {
				return apperror.NewNotFound("product", l.ProductID)
			}
			for _, other := range st.lines {
				if other.ShipmentID == l.ShipmentID && other.ProductID == l.ProductID {
					return apperror.NewDuplicate("line item", "product", strconv.FormatInt(l.ProductID, 10))
				}
			}
			l.ID = st.next("line_items")
			stored := *l
			stored.ProductName, stored.Barcode = "", ""
			st.lines[l.ID] = stored
		}
		return nil
	})
}

func (r *ShipmentRepo) GetLines(ctx context.Context, shipmentID int64) ([]shipment.LineItem, error) {
	var out []shipment.LineItem
	r.s.read(ctx, func(st *state) {
		out = linesWhere(st, func(l shipment.LineItem) bool { return l.ShipmentID == shipmentID })
	})
	return out, nil
}

func (r *ShipmentRepo) LockLines(ctx context.Context, shipmentID int64) ([]shipment.LineItem, error) {
	return r.GetLines(ctx, shipmentID)
}

func (r *ShipmentRepo) UpdateLine(ctx context.Context, l *shipment.LineItem) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.lines[l.ID]
		if !ok {
			return apperror.NewNotFound("line item", l.ID)
		}
		cur.Quantity = l.Quantity
		cur.ReturnedQuantity = l.ReturnedQuantity
		cur.Status = l.Status
		st.lines[l.ID] = cur
		return nil
	})
}

func (r *ShipmentRepo) OpenConsignedLines(ctx context.Context, partyID int64) ([]shipment.LineItem, error) {
	var out []shipment.LineItem
	r.s.read(ctx, func(st *state) {
		out = linesWhere(st, func(l shipment.LineItem) bool {
			shp := st.shipments[l.ShipmentID]
			return shp.PartyID == partyID && shp.Status == shipment.StatusOpen && l.Status == shipment.LineConsigned
		})
	})
	return out, nil
}

// linesWhere returns matching lines in creation order, joined with product data.
func linesWhere(st *state, match func(shipment.LineItem) bool) []shipment.LineItem {
	var out []shipment.LineItem
	for _, l := range st.lines {
		if !match(l) {
			continue
		}
		p := st.products[l.ProductID]
		l.ProductName, l.Barcode = p.Name, p.Barcode
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b shipment.LineItem) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
