package product

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"consigna/internal/core/apperror"
	"consigna/internal/core/clock"
	"consigna/internal/core/id"
	"consigna/internal/core/tx"
	"consigna/internal/core/validate"
	"consigna/internal/domain"
	"consigna/internal/domain/audit"
	"consigna/pkg/logger"
)

// Deps holds the collaborators of Service.
type Deps struct {
	Repo       Repository
	PieceTypes PieceTypeRepository
	Suppliers  SupplierVerifier
	Cache      BarcodeCache
	Audit      audit.Recorder
	TxManager  tx.SerializableManager
	Clock      clock.Clock
}

// Service provides catalog operations.
type Service struct {
	repo       Repository
	pieceTypes PieceTypeRepository
	suppliers  SupplierVerifier
	cache      BarcodeCache
	audit      audit.Recorder
	txManager  tx.SerializableManager
	clock      clock.Clock
	hooks      *domain.HookRegistry[*Product]
}

// NewService creates a new product service.
func NewService(d Deps) *Service {
	s := &Service{
		repo:       d.Repo,
		pieceTypes: d.PieceTypes,
		suppliers:  d.Suppliers,
		cache:      d.Cache,
		audit:      d.Audit,
		txManager:  d.TxManager,
		clock:      d.Clock,
		hooks:      domain.NewHookRegistry[*Product](),
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.cache != nil {
		s.hooks.On(domain.AfterCreate, func(ctx context.Context, p *Product) error {
			return s.cache.Set(ctx, p.Barcode, p.ID)
		})
		s.hooks.On(domain.AfterDelete, func(ctx context.Context, p *Product) error {
			return s.cache.Delete(ctx, p.Barcode)
		})
	}
	return s
}

// Hooks returns the hook registry for external registration.
func (s *Service) Hooks() *domain.HookRegistry[*Product] {
	return s.hooks
}

// runHooks never fails the caller: the transaction has already committed.
func (s *Service) runHooks(ctx context.Context, event domain.HookEvent, p *Product) {
	if err := s.hooks.Run(ctx, event, p); err != nil {
		logger.Warn(ctx, "product hook failed", "event", event, "product_id", p.ID, "error", err)
	}
}

// Register validates a draft, derives its price and barcode, and stores it.
func (s *Service) Register(ctx context.Context, d Draft, operator string) (*Product, error) {
	d.Name = strings.TrimSpace(d.Name)
	if err := validate.Struct(d); err != nil {
		return nil, err
	}
	if err := validateMaterialRules(d); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, d.PieceTypeID, d.SupplierID); err != nil {
		return nil, err
	}

	margin := DefaultMargin
	if d.MarginPct != nil {
		margin = *d.MarginPct
	}
	var cost decimal.NullDecimal
	if d.Cost != nil {
		cost = decimal.NewNullDecimal(*d.Cost)
	}
	if d.Material == MaterialGold {
		margin = decimal.Zero
	}

	now := s.clock.Now()
	p := &Product{
		Name:        d.Name,
		Material:    d.Material,
		PieceTypeID: d.PieceTypeID,
		SupplierID:  d.SupplierID,
		Stock:       d.Stock,
		WeightGrams: d.WeightGrams,
		Cost:        cost,
		MarginPct:   margin,
		SalePrice:   DerivePrice(d.Material, cost, margin, d.SalePrice),
		Barcode:     d.Barcode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ExistsByName(ctx, p.Name)
		if err != nil {
			return fmt.Errorf("check name: %w", err)
		}
		if exists {
			return apperror.NewDuplicate("product", "name", p.Name)
		}

		if p.Barcode != "" {
			exists, err = s.repo.ExistsByBarcode(ctx, p.Barcode)
			if err != nil {
				return fmt.Errorf("check barcode: %w", err)
			}
			if exists {
				return apperror.NewDuplicate("product", "barcode", p.Barcode)
			}
		}

		p.ID, err = s.repo.NextID(ctx)
		if err != nil {
			return fmt.Errorf("next product id: %w", err)
		}

		if p.Barcode == "" {
			p.Barcode, err = GenerateBarcode(p.ID, p.Material, p.SalePrice, p.WeightGrams)
			if err != nil {
				return err
			}
		}

		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create product: %w", err)
		}

		if p.Stock > 0 {
			if err := s.repo.RecordMovements(ctx, []Movement{s.movement(p.ID, MovementSet, p.Stock, p.Stock, MovementRef{Operator: operator})}); err != nil {
				return fmt.Errorf("record initial stock: %w", err)
			}
		}

		return s.audit.Record(ctx, audit.NewEntry(audit.EntityProduct, p.ID, audit.ActionCreate, operator, now, map[string]any{
			"name":       p.Name,
			"material":   p.Material,
			"sale_price": p.SalePrice,
			"barcode":    p.Barcode,
			"stock":      p.Stock,
		}))
	})
	if err != nil {
		return nil, err
	}

	s.runHooks(ctx, domain.AfterCreate, p)
	logger.Info(ctx, "product registered", "product_id", p.ID, "barcode", p.Barcode, "operator", operator)
	return p, nil
}

func validateMaterialRules(d Draft) error {
	if d.WeightGrams.IsNegative() {
		return apperror.NewValidation("weight must not be negative").WithDetail(apperror.DetailField, "weightGrams")
	}

	if d.Material == MaterialGold {
		if d.Cost != nil || d.MarginPct != nil {
			return apperror.NewValidation("gold items are priced directly, not by cost and margin").
				WithDetail(apperror.DetailField, "cost")
		}
		if !d.WeightGrams.IsPositive() {
			return apperror.NewValidation("gold items need a weight").WithDetail(apperror.DetailField, "weightGrams")
		}
		if d.SalePrice != nil && d.SalePrice.IsNegative() {
			return apperror.NewValidation("sale price must not be negative").WithDetail(apperror.DetailField, "salePrice")
		}
		return nil
	}

	if d.SalePrice != nil {
		return apperror.NewValidation("sale price is derived from cost and margin").
			WithDetail(apperror.DetailField, "salePrice")
	}
	if d.Cost == nil {
		return apperror.NewValidation("cost is required").WithDetail(apperror.DetailField, "cost")
	}
	if d.Cost.IsNegative() {
		return apperror.NewValidation("cost must not be negative").WithDetail(apperror.DetailField, "cost")
	}
	if d.MarginPct != nil && d.MarginPct.IsNegative() {
		return apperror.NewValidation("margin must not be negative").WithDetail(apperror.DetailField, "marginPct")
	}
	return nil
}

func (s *Service) checkReferences(ctx context.Context, pieceTypeID, supplierID *int64) error {
	if pieceTypeID != nil {
		if _, err := s.pieceTypes.GetByID(ctx, *pieceTypeID); err != nil {
			return err
		}
	}
	if supplierID != nil {
		ok, err := s.suppliers.IsSupplier(ctx, *supplierID)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewValidation("referenced party is not a supplier").
				WithDetail(apperror.DetailField, "supplierId").
				WithDetail("party_id", *supplierID)
		}
	}
	return nil
}

// Get retrieves a product by id.
func (s *Service) Get(ctx context.Context, productID int64) (*Product, error) {
	return s.repo.GetByID(ctx, productID)
}

// FindByBarcode resolves a scanned code. The cache only maps code to id;
// the product itself is always read from the repository.
func (s *Service) FindByBarcode(ctx context.Context, code string) (*Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperror.NewValidation("barcode is required").WithDetail(apperror.DetailField, "barcode")
	}

	if s.cache != nil {
		productID, hit, err := s.cache.Get(ctx, code)
		if err != nil {
			logger.Warn(ctx, "barcode cache lookup failed", "barcode", code, "error", err)
		}
		if hit {
			p, err := s.repo.GetByID(ctx, productID)
			if err == nil && p.Barcode == code {
				return p, nil
			}
			if err != nil && !apperror.IsNotFound(err) {
				return nil, err
			}
			_ = s.cache.Delete(ctx, code)
		}
	}

	p, err := s.repo.GetByBarcode(ctx, code)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, code, p.ID); err != nil {
			logger.Warn(ctx, "barcode cache store failed", "barcode", code, "error", err)
		}
	}
	return p, nil
}

// ReserveStock atomically decrements stock. This is the only path by which
// stock decreases. Joins the caller's transaction when there is one.
func (s *Service) ReserveStock(ctx context.Context, productID int64, quantity int, ref MovementRef) (*Product, error) {
	if quantity <= 0 {
		return nil, apperror.NewInvalidQuantity("quantity", quantity).WithDetail("product_id", productID)
	}

	var reserved *Product
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, applied, err := s.repo.DecrementStock(ctx, productID, quantity)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if !applied {
			current, err := s.repo.GetByID(ctx, productID)
			if err != nil {
				return err
			}
			return apperror.NewInsufficientStock(current.ID, current.Name, quantity, current.Stock)
		}

		reserved = p
		return s.repo.RecordMovements(ctx, []Movement{s.movement(p.ID, MovementReserve, -quantity, p.Stock, ref)})
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

// ReleaseStock atomically increments stock. Used by settlement returns.
func (s *Service) ReleaseStock(ctx context.Context, productID int64, quantity int, ref MovementRef) (*Product, error) {
	if quantity <= 0 {
		return nil, apperror.NewInvalidQuantity("quantity", quantity).WithDetail("product_id", productID)
	}

	var released *Product
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, applied, err := s.repo.IncrementStock(ctx, productID, quantity)
		if err != nil {
			return fmt.Errorf("increment stock: %w", err)
		}
		if !applied {
			return apperror.NewNotFound("product", productID)
		}

		released = p
		return s.repo.RecordMovements(ctx, []Movement{s.movement(p.ID, MovementRelease, quantity, p.Stock, ref)})
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// BulkSetStock overwrites stock for several products, all or nothing.
func (s *Service) BulkSetStock(ctx context.Context, settings []StockSetting, operator string) error {
	if len(settings) == 0 {
		return apperror.NewValidation("at least one stock setting is required").WithDetail(apperror.DetailField, "settings")
	}

	seen := make(map[int64]struct{}, len(settings))
	for i, st := range settings {
		if st.Quantity < 0 {
			return apperror.NewInvalidQuantity("quantity", st.Quantity).
				WithDetail("product_id", st.ProductID).
				WithDetail("lineNo", i+1)
		}
		if _, dup := seen[st.ProductID]; dup {
			return apperror.NewValidation("product listed more than once").
				WithDetail("product_id", st.ProductID).
				WithDetail("lineNo", i+1)
		}
		seen[st.ProductID] = struct{}{}
	}

	err := s.txManager.RunSerializable(ctx, func(ctx context.Context) error {
		now := s.clock.Now()
		movements := make([]Movement, 0, len(settings))
		for _, st := range settings {
			previous, err := s.repo.SetStock(ctx, st.ProductID, st.Quantity)
			if err != nil {
				return err
			}
			if previous == st.Quantity {
				continue
			}
			movements = append(movements, s.movement(st.ProductID, MovementSet, st.Quantity-previous, st.Quantity, MovementRef{Operator: operator}))

			entry := audit.NewEntry(audit.EntityProduct, st.ProductID, audit.ActionStockSet, operator, now,
				map[string]any{"stock": map[string]any{"old": previous, "new": st.Quantity}})
			if err := s.audit.Record(ctx, entry); err != nil {
				return err
			}
		}

		if len(movements) == 0 {
			return nil
		}
		if err := s.repo.RecordMovements(ctx, movements); err != nil {
			return fmt.Errorf("record movements: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "stock overwritten", "products", len(settings), "operator", operator)
	return nil
}

// UpdatePricing changes pricing inputs and re-derives the sale price.
// Line items already created keep their frozen price.
func (s *Service) UpdatePricing(ctx context.Context, productID int64, change PricingChange, operator string) (*Product, error) {
	var updated *Product
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		before := p.pricingState()

		if p.Material == MaterialGold {
			if change.Cost != nil || change.MarginPct != nil {
				return apperror.NewValidation("gold items are priced directly, not by cost and margin").
					WithDetail(apperror.DetailField, "cost")
			}
			if change.SalePrice != nil {
				if change.SalePrice.IsNegative() {
					return apperror.NewValidation("sale price must not be negative").WithDetail(apperror.DetailField, "salePrice")
				}
				p.SalePrice = *change.SalePrice
			}
		} else {
			if change.SalePrice != nil {
				return apperror.NewValidation("sale price is derived from cost and margin").
					WithDetail(apperror.DetailField, "salePrice")
			}
			if change.Cost != nil {
				if change.Cost.IsNegative() {
					return apperror.NewValidation("cost must not be negative").WithDetail(apperror.DetailField, "cost")
				}
				p.Cost = decimal.NewNullDecimal(*change.Cost)
			}
			if change.MarginPct != nil {
				if change.MarginPct.IsNegative() {
					return apperror.NewValidation("margin must not be negative").WithDetail(apperror.DetailField, "marginPct")
				}
				p.MarginPct = *change.MarginPct
			}
			p.SalePrice = DerivePrice(p.Material, p.Cost, p.MarginPct, nil)
		}

		p.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdatePricing(ctx, p); err != nil {
			return fmt.Errorf("update pricing: %w", err)
		}
		updated = p

		return s.audit.Record(ctx, audit.NewEntry(audit.EntityProduct, p.ID, audit.ActionUpdate, operator, p.UpdatedAt,
			audit.Diff(before, p.pricingState())))
	})
	if err != nil {
		return nil, err
	}

	s.runHooks(ctx, domain.AfterUpdate, updated)
	logger.Info(ctx, "product pricing updated", "product_id", updated.ID, "sale_price", updated.SalePrice, "operator", operator)
	return updated, nil
}

// Search lists products matching filter.
func (s *Service) Search(ctx context.Context, filter Filter) (domain.ListResult[*Product], error) {
	filter.Term = strings.TrimSpace(filter.Term)
	filter.Page = filter.Page.Normalize()
	if filter.Material != "" && !filter.Material.Valid() {
		return domain.ListResult[*Product]{}, apperror.NewValidation("unknown material").
			WithDetail(apperror.DetailField, "material")
	}
	return s.repo.List(ctx, filter)
}

// Delete removes a product that no line item or sale line references.
func (s *Service) Delete(ctx context.Context, productID int64, operator string) error {
	var deleted *Product
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		referenced, err := s.repo.IsReferenced(ctx, productID)
		if err != nil {
			return fmt.Errorf("check references: %w", err)
		}
		if referenced {
			return apperror.NewReferenced("product", productID, "shipment or sale lines")
		}
		if err := s.repo.Delete(ctx, productID); err != nil {
			return err
		}
		deleted = p
		return s.audit.Record(ctx, audit.NewEntry(audit.EntityProduct, p.ID, audit.ActionDelete, operator, s.clock.Now(),
			map[string]any{"name": p.Name, "barcode": p.Barcode}))
	})
	if err != nil {
		return err
	}

	s.runHooks(ctx, domain.AfterDelete, deleted)
	logger.Info(ctx, "product deleted", "product_id", productID, "operator", operator)
	return nil
}

// Movements returns the most recent stock journal rows of a product.
func (s *Service) Movements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	if _, err := s.repo.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = domain.DefaultLimit
	}
	return s.repo.ListMovements(ctx, productID, limit)
}

// RegisterPieceType adds a piece type with a unique name.
func (s *Service) RegisterPieceType(ctx context.Context, name, operator string) (*PieceType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.NewValidation("piece type name is required").WithDetail(apperror.DetailField, "name")
	}

	pt := &PieceType{Name: name}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.pieceTypes.ExistsByName(ctx, name)
		if err != nil {
			return fmt.Errorf("check piece type: %w", err)
		}
		if exists {
			return apperror.NewDuplicate("piece type", "name", name)
		}
		if err := s.pieceTypes.Create(ctx, pt); err != nil {
			return fmt.Errorf("create piece type: %w", err)
		}
		return s.audit.Record(ctx, audit.NewEntry(audit.EntityPieceType, pt.ID, audit.ActionCreate, operator, s.clock.Now(),
			map[string]any{"name": name}))
	})
	if err != nil {
		return nil, err
	}
	return pt, nil
}

// ListPieceTypes returns all piece types ordered by name.
func (s *Service) ListPieceTypes(ctx context.Context) ([]PieceType, error) {
	return s.pieceTypes.List(ctx)
}

func (s *Service) movement(productID int64, kind MovementKind, delta, after int, ref MovementRef) Movement {
	now := s.clock.Now()
	return Movement{
		ID:         id.At(now),
		ProductID:  productID,
		Kind:       kind,
		Delta:      delta,
		StockAfter: after,
		ShipmentID: ref.ShipmentID,
		Operator:   ref.Operator,
		CreatedAt:  now,
	}
}
