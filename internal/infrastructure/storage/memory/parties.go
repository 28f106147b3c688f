package memory

import (
	"cmp"
	"context"
	"slices"

	"consigna/internal/core/apperror"
	"consigna/internal/domain/catalog/party"
)

// PartyRepo implements party.Repository.
type PartyRepo struct{ s *Store }

var _ party.Repository = (*PartyRepo)(nil)

func (r *PartyRepo) Create(ctx context.Context, p *party.Party) error {
	return r.s.write(ctx, func(st *state) error {
		for _, other := range st.parties {
			if other.Document == p.Document {
				return apperror.NewDuplicate("party", "document", p.Document)
			}
			if p.Email != nil && other.Email != nil && *other.Email == *p.Email {
				return apperror.NewDuplicate("party", "email", *p.Email)
			}
		}
		p.ID = st.next("parties")
		st.parties[p.ID] = *p
		return nil
	})
}

func (r *PartyRepo) GetByID(ctx context.Context, id int64) (*party.Party, error) {
	var (
		p  party.Party
		ok bool
	)
	r.s.read(ctx, func(st *state) { p, ok = st.parties[id] })
	if !ok {
		return nil, apperror.NewNotFound("party", id)
	}
	return &p, nil
}

func (r *PartyRepo) ExistsByDocument(ctx context.Context, document string) (bool, error) {
	var found bool
	r.s.read(ctx, func(st *state) {
		for _, p := range st.parties {
			if p.Document == document {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (r *PartyRepo) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	var found bool
	r.s.read(ctx, func(st *state) {
		for _, p := range st.parties {
			if p.ID != excludeID && p.Email != nil && *p.Email == email {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (r *PartyRepo) UpdateContact(ctx context.Context, p *party.Party) error {
	return r.s.write(ctx, func(st *state) error {
		cur, ok := st.parties[p.ID]
		if !ok {
			return apperror.NewNotFound("party", p.ID)
		}
		cur.Email = p.Email
		cur.Phone = p.Phone
		cur.Street = p.Street
		cur.Number = p.Number
		cur.District = p.District
		cur.City = p.City
		cur.State = p.State
		cur.PostalCode = p.PostalCode
		cur.UpdatedAt = p.UpdatedAt
		st.parties[p.ID] = cur
		return nil
	})
}

func (r *PartyRepo) Search(ctx context.Context, filter party.Filter) ([]*party.Party, error) {
	var out []*party.Party
	r.s.read(ctx, func(st *state) {
		for _, p := range st.parties {
			if filter.Matches(&p) {
				out = append(out, &p)
			}
		}
	})
	slices.SortFunc(out, func(a, b *party.Party) int {
		return cmp.Or(cmp.Compare(a.FullName, b.FullName), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r *PartyRepo) IsReferenced(ctx context.Context, id int64) (bool, error) {
	var referenced bool
	r.s.read(ctx, func(st *state) {
		for _, s := range st.shipments {
			if s.PartyID == id {
				referenced = true
				return
			}
		}
		for _, p := range st.products {
			if p.SupplierID != nil && *p.SupplierID == id {
				referenced = true
				return
			}
		}
		for _, s := range st.sales {
			if s.PartyID != nil && *s.PartyID == id {
				referenced = true
				return
			}
		}
	})
	return referenced, nil
}

func (r *PartyRepo) Delete(ctx context.Context, id int64) error {
	return r.s.write(ctx, func(st *state) error {
		if _, ok := st.parties[id]; !ok {
			return apperror.NewNotFound("party", id)
		}
		delete(st.parties, id)
		return nil
	})
}
