package party

import (
	"context"
	"fmt"
	"strings"

	"consigna/internal/core/apperror"
	"consigna/internal/core/clock"
	"consigna/internal/core/tx"
	"consigna/internal/core/validate"
	"consigna/internal/domain/audit"
	"consigna/pkg/logger"
)

// Service provides registry operations for clients and suppliers.
type Service struct {
	repo      Repository
	audit     audit.Recorder
	txManager tx.Manager
	clock     clock.Clock
}

// NewService creates a new party service.
func NewService(repo Repository, recorder audit.Recorder, txManager tx.Manager, clk clock.Clock) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, audit: recorder, txManager: txManager, clock: clk}
}

// Register creates a party with a unique document and, if present, a unique email.
func (s *Service) Register(ctx context.Context, d Draft, operator string) (*Party, error) {
	d.normalize()
	if err := validate.Struct(d); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	p := &Party{
		FullName:   d.FullName,
		Document:   d.Document,
		Phone:      d.Phone,
		Street:     d.Street,
		Number:     d.Number,
		District:   d.District,
		City:       d.City,
		State:      d.State,
		PostalCode: d.PostalCode,
		IsSupplier: d.IsSupplier,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if d.Email != "" {
		p.Email = &d.Email
	}
	if d.IsSupplier {
		material := d.SupplyMaterial
		if material == "" {
			material = SupplyPlated
		}
		p.SupplyMaterial = &material
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ExistsByDocument(ctx, p.Document)
		if err != nil {
			return fmt.Errorf("check document: %w", err)
		}
		if exists {
			return apperror.NewDuplicate("party", "document", p.Document)
		}

		if p.Email != nil {
			exists, err = s.repo.ExistsByEmail(ctx, *p.Email, 0)
			if err != nil {
				return fmt.Errorf("check email: %w", err)
			}
			if exists {
				return apperror.NewDuplicate("party", "email", *p.Email)
			}
		}

		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create party: %w", err)
		}

		return s.audit.Record(ctx, audit.NewEntry(audit.EntityParty, p.ID, audit.ActionCreate, operator, now,
			map[string]any{"full_name": p.FullName, "document": p.Document, "is_supplier": p.IsSupplier}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "party registered", "party_id", p.ID, "supplier", p.IsSupplier, "operator", operator)
	return p, nil
}

// Get retrieves a party by id.
func (s *Service) Get(ctx context.Context, partyID int64) (*Party, error) {
	return s.repo.GetByID(ctx, partyID)
}

// IsSupplier reports whether the party exists and is flagged as supplier.
func (s *Service) IsSupplier(ctx context.Context, partyID int64) (bool, error) {
	p, err := s.repo.GetByID(ctx, partyID)
	if err != nil {
		return false, err
	}
	return p.IsSupplier, nil
}

// Search returns parties matching every provided filter, ordered by name.
func (s *Service) Search(ctx context.Context, filter Filter) ([]*Party, error) {
	filter.normalize()
	return s.repo.Search(ctx, filter)
}

// Update changes contact and address fields.
func (s *Service) Update(ctx context.Context, partyID int64, change ContactChange, operator string) (*Party, error) {
	if err := validate.Struct(change); err != nil {
		return nil, err
	}

	var updated *Party
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, partyID)
		if err != nil {
			return err
		}
		before := p.contactState()

		if change.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*change.Email))
			if email == "" {
				p.Email = nil
			} else {
				exists, err := s.repo.ExistsByEmail(ctx, email, p.ID)
				if err != nil {
					return fmt.Errorf("check email: %w", err)
				}
				if exists {
					return apperror.NewDuplicate("party", "email", email)
				}
				p.Email = &email
			}
		}
		apply(&p.Phone, change.Phone)
		apply(&p.Street, change.Street)
		apply(&p.Number, change.Number)
		apply(&p.District, change.District)
		apply(&p.City, change.City)
		apply(&p.State, change.State)
		apply(&p.PostalCode, change.PostalCode)
		p.UpdatedAt = s.clock.Now()

		if err := s.repo.UpdateContact(ctx, p); err != nil {
			return fmt.Errorf("update party: %w", err)
		}
		updated = p

		return s.audit.Record(ctx, audit.NewEntry(audit.EntityParty, p.ID, audit.ActionUpdate, operator, p.UpdatedAt,
			audit.Diff(before, p.contactState())))
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func apply(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// Delete removes a party that no shipment, sale or product references.
func (s *Service) Delete(ctx context.Context, partyID int64, operator string) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, partyID)
		if err != nil {
			return err
		}
		referenced, err := s.repo.IsReferenced(ctx, partyID)
		if err != nil {
			return fmt.Errorf("check references: %w", err)
		}
		if referenced {
			return apperror.NewReferenced("party", partyID, "shipments, sales or products")
		}
		if err := s.repo.Delete(ctx, partyID); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.NewEntry(audit.EntityParty, p.ID, audit.ActionDelete, operator, s.clock.Now(),
			map[string]any{"document": p.Document}))
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "party deleted", "party_id", partyID, "operator", operator)
	return nil
}
