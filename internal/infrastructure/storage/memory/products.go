package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"consigna/internal/core/apperror"
	"consigna/internal/domain"
	"consigna/internal/domain/catalog/product"
)

// ProductRepo implements product.Repository.
type ProductRepo struct{ s *Store }

var _ product.Repository = (*ProductRepo)(nil)

func (r *ProductRepo) NextID(ctx context.Context) (int64, error) {
	var next int64
	err := r.s.write(ctx, func(st *state) error {
		next = st.next("products")
		return nil
	})
	return next, err
}

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	return r.s.write(ctx, func(st *state) error {
		if p.ID == 0 {
			p.ID = st.next("products")
		}
		for _, other := range st.products {
			if other.Name == p.Name {
				return apperror.NewDuplicate("product", "name", p.Name)
			}
			if other.Barcode == p.Barcode {
				return apperror.NewDuplicate("product", "barcode", p.Barcode)
			}
		}
		if _, ok := st.products[p.ID]; ok {
			return apperror.NewDuplicate("product", "id", "")
		}
		st.products[p.ID] = *p
		return nil
	})
}

func (r *ProductRepo) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	var (
		p  product.Product
		ok bool
	)
	r.s.read(ctx, func(st *state) { p, ok = st.products[id] })
	if !ok {
		return nil, apperror.NewNotFound("product", id)
	}
	return &p, nil
}

func (r *ProductRepo) GetByBarcode(ctx context.Context, code string) (*product.Product, error) {
	var found *product.Product
	r.s.read(ctx, func(st *state) {
		for _, p := range st.products {
			if p.Barcode == code {
				found = &p
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.NewNotFound("product", code)
	}
	return found, nil
}

func (r *ProductRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	return r.exists(ctx, func(p product.Product) bool { return p.Name == name }), nil
}

func (r *ProductRepo) ExistsByBarcode(ctx context.Context, code string) (bool, error) {
	return r.exists(ctx, func(p product.Product) bool { return p.Barcode == code }), nil
}

func (r *ProductRepo) exists(ctx context.Context, match func(product.Product) bool) bool {
	var found bool
	r.s.read(ctx, func(st *state) {
		for _, p := range st.products {
			if match(p) {
				found = true
				return
			}
		}
	})
	return found
}

func (r *ProductRepo) UpdatePricing(ctx context.Context, p *product.Product) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.products[p.ID]
		if !ok {
			return apperror.NewNotFound("product", p.ID)
		}
		cur.Cost = p.Cost
		cur.MarginPct = p.MarginPct
		cur.SalePrice = p.SalePrice
		cur.UpdatedAt = p.UpdatedAt
		st.products[p.ID] = cur
		return nil
	})
}

func (r *ProductRepo) List(ctx context.Context, filter product.Filter) (domain.ListResult[*product.Product], error) {
	term := strings.ToLower(filter.Term)
	var items []*product.Product
	r.s.read(ctx, func(st *state) {
		for _, p := range st.products {
			if term != "" && !strings.Contains(strings.ToLower(p.Name), term) && !strings.HasPrefix(p.Barcode, filter.Term) {
				continue
			}
			if filter.Material != "" && p.Material != filter.Material {
				continue
			}
			if filter.PieceTypeID != nil && (p.PieceTypeID == nil || *p.PieceTypeID != *filter.PieceTypeID) {
				continue
			}
			if filter.SupplierID != nil && (p.SupplierID == nil || *p.SupplierID != *filter.SupplierID) {
				continue
			}
			items = append(items, &p)
		}
	})
	slices.SortFunc(items, func(a, b *product.Product) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return page(items, filter.Page), nil
}

func (r *ProductRepo) IsReferenced(ctx context.Context, id int64) (bool, error) {
	var referenced bool
	r.s.read(ctx, func(st *state) {
		for _, l := range st.lines {
			if l.ProductID == id {
				referenced = true
				return
			}
		}
		for _, l := range st.saleLines {
			if l.ProductID == id {
				referenced = true
				return
			}
		}
	})
	return referenced, nil
}

func (r *ProductRepo) Delete(ctx context.Context, id int64) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.products[id]; !ok {
			return apperror.NewNotFound("product", id)
		}
		delete(st.products, id)
		return nil
	})
}

func (r *ProductRepo) DecrementStock(ctx context.Context, id int64, quantity int) (*product.Product, bool, error) {
	return r.adjust(ctx, id, -quantity)
}

func (r *ProductRepo) IncrementStock(ctx context.Context, id int64, quantity int) (*product.Product, bool, error) {
	return r.adjust(ctx, id, quantity)
}

// adjust applies delta under the write lock, the equivalent of a guarded
// UPDATE ... SET stock = stock + delta.
func (r *ProductRepo) adjust(ctx context.Context, id int64, delta int) (*product.Product, bool, error) {
	var (
		out     product.Product
		applied bool
	)
	err := r.s.write(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok || p.Stock+delta < 0 {
			return nil
		}
		p.Stock += delta
		st.products[id] = p
		out, applied = p, true
		return nil
	})
	if err != nil || !applied {
		return nil, false, err
	}
	return &out, true, nil
}

func (r *ProductRepo) SetStock(ctx context.Context, id int64, quantity int) (int, error) {
	var previous int
	err := r.s.write(ctx, func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return apperror.NewNotFound("product", id)
		}
		previous = p.Stock
		p.Stock = quantity
		st.products[id] = p
		return nil
	})
	return previous, err
}

func (r *ProductRepo) RecordMovements(ctx context.Context, movements []product.Movement) error {
	return r.s.write(ctx, func(st *state) error {
		st.movements = append(st.movements, movements...)
		return nil
	})
}

// ListMovements returns newest first.
func (r *ProductRepo) ListMovements(ctx context.Context, productID int64, limit int) ([]product.Movement, error) {
	var out []product.Movement
	r.s.read(ctx, func(st *state) {
		for i := len(st.movements) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
			if st.movements[i].ProductID == productID {
				out = append(out, st.movements[i])
			}
		}
	})
	return out, nil
}

// PieceTypeRepo implements product.PieceTypeRepository.
type PieceTypeRepo struct{ s *Store }

var _ product.PieceTypeRepository = (*PieceTypeRepo)(nil)

func (r *PieceTypeRepo) Create(ctx context.Context, pt *product.PieceType) error {
	return r.s.write(ctx, func(st *state) error {
		for _, other := range st.pieceTypes {
			if other.Name == pt.Name {
				return apperror.NewDuplicate("piece type", "name", pt.Name)
			}
		}
		pt.ID = st.next("piece_types")
		st.pieceTypes[pt.ID] = *pt
		return nil
	})
}

func (r *PieceTypeRepo) GetByID(ctx context.Context, id int64) (*product.PieceType, error) {
	var (
		pt product.PieceType
		ok bool
	)
	r.s.read(ctx, func(st *state) { pt, ok = st.pieceTypes[id] })
	if !ok {
		return nil, apperror.NewNotFound("piece type", id)
	}
	return &pt, nil
}

func (r *PieceTypeRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var found bool
	r.s.read(ctx, func(st *state) {
		for _, pt := range st.pieceTypes {
			if pt.Name == name {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (r *PieceTypeRepo) List(ctx context.Context) ([]product.PieceType, error) {
	var out []product.PieceType
	r.s.read(ctx, func(st *state) {
		out = make([]product.PieceType, 0, len(st.pieceTypes))
		for _, pt := range st.pieceTypes {
			out = append(out, pt)
		}
	})
	slices.SortFunc(out, func(a, b product.PieceType) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}
