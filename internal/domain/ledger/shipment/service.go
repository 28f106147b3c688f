package shipment

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"consigna/internal/core/apperror"
	"consigna/internal/core/clock"
	"consigna/internal/core/tx"
	"consigna/internal/core/types"
	"consigna/internal/domain"
	"consigna/internal/domain/audit"
	"consigna/internal/domain/catalog/party"
	"consigna/internal/domain/catalog/product"
	"consigna/internal/domain/ledger/sale"
	"consigna/internal/domain/receipt"
	"consigna/pkg/logger"
)

var tracer = otel.Tracer("consigna/ledger/shipment")

// StockKeeper reserves and releases product stock. Implemented by product.Service.
type StockKeeper interface {
	ReserveStock(ctx context.Context, productID int64, quantity int, ref product.MovementRef) (*product.Product, error)
	ReleaseStock(ctx context.Context, productID int64, quantity int, ref product.MovementRef) (*product.Product, error)
}

// PartyLookup resolves the owner of a shipment.
type PartyLookup interface {
	GetByID(ctx context.Context, id int64) (*party.Party, error)
}

// SaleRecorder appends sales. Implemented by sale.Service.
type SaleRecorder interface {
	RecordSale(ctx context.Context, d sale.Draft) (*sale.Sale, error)
}

// Deps holds the collaborators of Service.
type Deps struct {
	Repo      Repository
	Stock     StockKeeper
	Parties   PartyLookup
	Sales     SaleRecorder
	Receipts  *receipt.Composer
	Audit     audit.Recorder
	TxManager tx.SerializableManager
	Clock     clock.Clock
}

// Service runs shipment creation, amendment and settlement.
type Service struct {
	repo      Repository
	stock     StockKeeper
	parties   PartyLookup
	sales     SaleRecorder
	receipts  *receipt.Composer
	audit     audit.Recorder
	txManager tx.SerializableManager
	clock     clock.Clock
}

// NewService creates a new shipment service.
func NewService(d Deps) *Service {
	s := &Service{
		repo:      d.Repo,
		stock:     d.Stock,
		parties:   d.Parties,
		sales:     d.Sales,
		receipts:  d.Receipts,
		audit:     d.Audit,
		txManager: d.TxManager,
		clock:     d.Clock,
	}
	if s.receipts == nil {
		s.receipts = receipt.NewComposer(receipt.Settings{}, nil)
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	return s
}

// CreateShipment reserves stock for every line and records the shipment.
// A SALE is finalized at once and mirrored into the sale ledger. The receipt
// is produced after commit; its failure never undoes the shipment.
func (s *Service) CreateShipment(ctx context.Context, in CreateInput) (*CreateResult, error) {
	ctx, span := tracer.Start(ctx, "shipment.Create", trace.WithAttributes(
		attribute.Int64("party_id", in.PartyID),
		attribute.String("kind", string(in.Kind)),
		attribute.Int("lines", len(in.Lines)),
	))
	defer span.End()

	in.Operator = strings.TrimSpace(in.Operator)
	if err := requireOperator(in.Operator); err != nil {
		return nil, err
	}
	if !in.Kind.Valid() {
		return nil, apperror.NewValidation("unknown shipment kind").
			WithDetail(apperror.DetailField, "kind").
			WithDetail("value", string(in.Kind))
	}
	if in.Kind == KindSale {
		in.PaymentMethod = in.PaymentMethod.OrDefault()
	}
	if in.PaymentMethod != "" && !in.PaymentMethod.Valid() {
		return nil, apperror.NewValidation("unknown payment method").
			WithDetail(apperror.DetailField, "paymentMethod").
			WithDetail("value", string(in.PaymentMethod))
	}
	if err := validateLines(in.Lines); err != nil {
		return nil, err
	}

	var (
		shp      *Shipment
		recorded *sale.Sale
		owner    *party.Party
	)
	err := s.txManager.RunSerializable(ctx, func(ctx context.Context) error {
		var err error
		owner, err = s.parties.GetByID(ctx, in.PartyID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		shp = &Shipment{
			PartyID:              in.PartyID,
			DepartedAt:           now,
			ExpectedSettlementAt: in.ExpectedSettlement,
			Status:               StatusOpen,
			CreatedBy:            in.Operator,
			CreatedAt:            now,
			PartyName:            owner.FullName,
		}
		lineStatus := LineConsigned
		if in.Kind == KindSale {
			shp.Status = StatusFinalized
			shp.SettledAt = &now
			lineStatus = LineSold
		}
		if err := s.repo.Create(ctx, shp); err != nil {
			return fmt.Errorf("create shipment: %w", err)
		}

		shp.Lines, err = s.reserveLines(ctx, shp.ID, in.Lines, lineStatus, in.Operator)
		if err != nil {
			return err
		}

		if in.Kind == KindSale {
			recorded, err = s.sales.RecordSale(ctx, saleDraft(shp, in.Operator, in.PaymentMethod, shp.Lines))
			if err != nil {
				return fmt.Errorf("record sale: %w", err)
			}
		}

		return s.audit.Record(ctx, audit.NewEntry(audit.EntityShipment, shp.ID, audit.ActionCreate, in.Operator, now, map[string]any{
			"party_id": shp.PartyID,
			"kind":     in.Kind,
			"status":   shp.Status,
			"lines":    len(shp.Lines),
		}))
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "shipment created", "shipment_id", shp.ID, "kind", in.Kind, "lines", len(shp.Lines), "operator", in.Operator)

	label := receipt.LabelOpen
	if in.Kind == KindSale {
		label = receipt.LabelSale
	}
	result := &CreateResult{Shipment: shp, Sale: recorded}
	result.Receipt = s.produce(ctx, shp, label, receipt.ReceiptName(shp.ID), lineReceipt(shp.Lines))
	return result, nil
}

// AddLines amends an OPEN shipment with new consigned lines.
func (s *Service) AddLines(ctx context.Context, shipmentID int64, lines []LineRequest, operator string) (*Shipment, error) {
	ctx, span := tracer.Start(ctx, "shipment.AddLines", trace.WithAttributes(attribute.Int64("shipment_id", shipmentID)))
	defer span.End()

	operator = strings.TrimSpace(operator)
	if err := requireOperator(operator); err != nil {
		return nil, err
	}
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	var shp *Shipment
	err := s.txManager.RunSerializable(ctx, func(ctx context.Context) error {
		var err error
		shp, err = s.repo.GetForUpdate(ctx, shipmentID)
		if err != nil {
			return err
		}
		if !shp.IsOpen() {
			return apperror.NewInvalidSettlement("shipment is finalized and cannot be amended").
				WithDetail("shipment_id", shipmentID)
		}

		existing, err := s.repo.LockLines(ctx, shipmentID)
		if err != nil {
			return fmt.Errorf("lock lines: %w", err)
		}
		onShipment := make(map[int64]struct{}, len(existing))
		for _, l := range existing {
			onShipment[l.ProductID] = struct{}{}
		}
		for i, l := range lines {
			if _, dup := onShipment[l.ProductID]; dup {
				return apperror.NewValidation("product is already on the shipment").
					WithDetail("product_id", l.ProductID).
					WithDetail("lineNo", i+1)
			}
		}

		added, err := s.reserveLines(ctx, shipmentID, lines, LineConsigned, operator)
		if err != nil {
			return err
		}
		shp.Lines = append(existing, added...)

		return s.audit.Record(ctx, audit.NewEntry(audit.EntityShipment, shipmentID, audit.ActionAmend, operator, s.clock.Now(),
			map[string]any{"added_lines": len(added)}))
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "shipment amended", "shipment_id", shipmentID, "added", len(lines), "operator", operator)
	return shp, nil
}

// reserveLines reserves stock and inserts one line per request, freezing the
// price the product has at reservation time.
func (s *Service) reserveLines(ctx context.Context, shipmentID int64, reqs []LineRequest, status LineStatus, operator string) ([]LineItem, error) {
	now := s.clock.Now()
	ref := product.MovementRef{ShipmentID: &shipmentID, Operator: operator}

	items := make([]LineItem, 0, len(reqs))
	for _, r := range reqs {
		p, err := s.stock.ReserveStock(ctx, r.ProductID, r.Quantity, ref)
		if err != nil {
			return nil, err
		}
		items = append(items, LineItem{
			ShipmentID:  shipmentID,
			ProductID:   p.ID,
			Quantity:    r.Quantity,
			UnitPrice:   p.SalePrice,
			Status:      status,
			CreatedAt:   now,
			ProductName: p.Name,
			Barcode:     p.Barcode,
		})
	}

	if err := s.repo.AddLines(ctx, items); err != nil {
		return nil, fmt.Errorf("add lines: %w", err)
	}
	return items, nil
}

// Settle reconciles the quantities a client still holds. Differences go back
// to stock. CLOSE sells what was kept and finalizes the shipment; KEEP_OPEN
// restarts the consignment clock.
func (s *Service) Settle(ctx context.Context, in SettleInput) (*SettlementResult, error) {
	ctx, span := tracer.Start(ctx, "shipment.Settle", trace.WithAttributes(
		attribute.Int64("shipment_id", in.ShipmentID),
		attribute.String("outcome", string(in.Outcome)),
	))
	defer span.End()

	in.Operator = strings.TrimSpace(in.Operator)
	if err := requireOperator(in.Operator); err != nil {
		return nil, err
	}
	if !in.Outcome.Valid() {
		return nil, apperror.NewValidation("unknown settlement outcome").
			WithDetail(apperror.DetailField, "outcome").
			WithDetail("value", string(in.Outcome))
	}
	in.PaymentMethod = in.PaymentMethod.OrDefault()
	if !in.PaymentMethod.Valid() {
		return nil, apperror.NewValidation("unknown payment method").
			WithDetail(apperror.DetailField, "paymentMethod").
			WithDetail("value", string(in.PaymentMethod))
	}

	reported := make(map[int64]int, len(in.Reported))
	for _, r := range in.Reported {
		if _, dup := reported[r.LineItemID]; dup {
			return nil, apperror.NewInvalidSettlement("line item reported more than once").
				WithDetail("line_item_id", r.LineItemID)
		}
		if r.Quantity < 0 {
			return nil, apperror.NewInvalidSettlement("reported quantity must not be negative").
				WithDetail("line_item_id", r.LineItemID).
				WithDetail("quantity", r.Quantity)
		}
		reported[r.LineItemID] = r.Quantity
	}

	var (
		shp       *Shipment
		recorded  *sale.Sale
		statement Statement
	)
	err := s.txManager.RunSerializable(ctx, func(ctx context.Context) error {
		var err error
		shp, err = s.repo.GetForUpdate(ctx, in.ShipmentID)
		if err != nil {
			return err
		}
		if !shp.IsOpen() {
			return apperror.NewInvalidSettlement("shipment is already finalized").
				WithDetail("shipment_id", shp.ID)
		}

		lines, err := s.repo.LockLines(ctx, shp.ID)
		if err != nil {
			return fmt.Errorf("lock lines: %w", err)
		}
		if err := checkReported(shp.ID, lines, reported, in.Outcome); err != nil {
			return err
		}

		now := s.clock.Now()
		ref := product.MovementRef{ShipmentID: &shp.ID, Operator: in.Operator}
		var kept []LineItem
		for i := range lines {
			l := &lines[i]
			qty, ok := reported[l.ID]
			if !ok {
				continue
			}

			returned := l.Quantity - qty
			if returned > 0 {
				if _, err := s.stock.ReleaseStock(ctx, l.ProductID, returned, ref); err != nil {
					return err
				}
			}

			if qty == 0 {
				statement.Removed = append(statement.Removed, RemovedProduct{
					ProductID: l.ProductID,
					Barcode:   l.Barcode,
					Name:      l.ProductName,
					Quantity:  l.Quantity,
				})
				l.Status = LineReturned
			} else if in.Outcome == OutcomeClose {
				l.Status = LineSold
			}
			l.Quantity = qty
			l.ReturnedQuantity += returned

			if err := s.repo.UpdateLine(ctx, l); err != nil {
				return fmt.Errorf("update line %d: %w", l.ID, err)
			}
			if qty > 0 && in.Outcome == OutcomeClose {
				kept = append(kept, *l)
			}
		}

		if in.Outcome == OutcomeClose {
			shp.Status = StatusFinalized
			shp.SettledAt = &now
		} else {
			shp.DepartedAt = now
		}
		if err := s.repo.UpdateState(ctx, shp); err != nil {
			return fmt.Errorf("update shipment: %w", err)
		}

		if len(kept) > 0 {
			recorded, err = s.sales.RecordSale(ctx, saleDraft(shp, in.Operator, in.PaymentMethod, kept))
			if err != nil {
				return fmt.Errorf("record sale: %w", err)
			}
		}

		shp.Lines = lines
		for _, l := range lines {
			if l.Quantity > 0 {
				statement.Lines = append(statement.Lines, StatementLine{
					LineItemID: l.ID,
					ProductID:  l.ProductID,
					Barcode:    l.Barcode,
					Name:       l.ProductName,
					Quantity:   l.Quantity,
					UnitPrice:  l.UnitPrice,
				})
			}
		}

		changes := map[string]any{
			"outcome":  in.Outcome,
			"reported": len(in.Reported),
			"removed":  len(statement.Removed),
			"status":   shp.Status,
		}
		if recorded != nil {
			changes["sale_id"] = recorded.ID
		}
		return s.audit.Record(ctx, audit.NewEntry(audit.EntityShipment, shp.ID, audit.ActionSettle, in.Operator, now, changes))
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "shipment settled", "shipment_id", shp.ID, "outcome", in.Outcome, "status", shp.Status, "operator", in.Operator)

	if shp.PartyName == "" {
		if owner, err := s.parties.GetByID(ctx, shp.PartyID); err == nil {
			shp.PartyName = owner.FullName
		}
	}
	label := receipt.LabelOpen
	if in.Outcome == OutcomeClose {
		label = receipt.LabelFinalized
	}
	result := &SettlementResult{Shipment: shp, Sale: recorded, Statement: statement}
	result.Receipt = s.produce(ctx, shp, label, receipt.SettlementName(shp.ID), statement.receiptLines())
	return result, nil
}

// checkReported runs inside the transaction against the locked lines.
func checkReported(shipmentID int64, lines []LineItem, reported map[int64]int, outcome Outcome) error {
	byID := make(map[int64]LineItem, len(lines))
	for _, l := range lines {
		byID[l.ID] = l
	}

	for lineID, qty := range reported {
		l, ok := byID[lineID]
		if !ok {
			return apperror.NewInvalidSettlement("line item does not belong to the shipment").
				WithDetail("line_item_id", lineID).
				WithDetail("shipment_id", shipmentID)
		}
		if l.Status != LineConsigned {
			return apperror.NewInvalidSettlement("line item is not consigned").
				WithDetail("line_item_id", lineID).
				WithDetail("status", string(l.Status))
		}
		if qty > l.Quantity {
			return apperror.NewInvalidSettlement("reported quantity exceeds the consigned quantity").
				WithDetail("line_item_id", lineID).
				WithDetail("consigned", l.Quantity).
				WithDetail("reported", qty)
		}
	}

	if outcome == OutcomeClose {
		for _, l := range lines {
			if l.Status != LineConsigned {
				continue
			}
			if _, ok := reported[l.ID]; !ok {
				return apperror.NewInvalidSettlement("every consigned line must be reported to close the shipment").
					WithDetail("line_item_id", l.ID)
			}
		}
	}
	return nil
}

// Get returns a shipment with its lines.
func (s *Service) Get(ctx context.Context, shipmentID int64) (*Shipment, error) {
	shp, err := s.repo.GetByID(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	shp.Lines, err = s.repo.GetLines(ctx, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	return shp, nil
}

// Search finds shipments for settlement and history screens.
func (s *Service) Search(ctx context.Context, filter Filter) (domain.ListResult[*Shipment], error) {
	filter.Term = strings.TrimSpace(filter.Term)
	if filter.Status != "" && !filter.Status.Valid() {
		return domain.ListResult[*Shipment]{}, apperror.NewValidation("unknown shipment status").
			WithDetail(apperror.DetailField, "status")
	}
	filter.Page = filter.Page.Normalize()
	return s.repo.Search(ctx, filter)
}

// OutstandingBalance sums quantity × frozen price over the CONSIGNED lines
// of the party's OPEN shipments, at full precision.
func (s *Service) OutstandingBalance(ctx context.Context, partyID int64) (types.Money, error) {
	if _, err := s.parties.GetByID(ctx, partyID); err != nil {
		return types.Zero(), err
	}
	lines, err := s.repo.OpenConsignedLines(ctx, partyID)
	if err != nil {
		return types.Zero(), fmt.Errorf("open consigned lines: %w", err)
	}
	return computeTotals(lines).StillConsigned, nil
}

// Totals partitions a shipment's value by line status, computed on demand.
func (s *Service) Totals(ctx context.Context, shipmentID int64) (Totals, error) {
	if _, err := s.repo.GetByID(ctx, shipmentID); err != nil {
		return Totals{}, err
	}
	lines, err := s.repo.GetLines(ctx, shipmentID)
	if err != nil {
		return Totals{}, fmt.Errorf("get lines: %w", err)
	}
	return computeTotals(lines), nil
}

// Receipt reprints the document of an existing shipment. Returned lines are
// struck with the quantity that came back.
func (s *Service) Receipt(ctx context.Context, shipmentID int64) (receipt.Outcome, error) {
	shp, err := s.Get(ctx, shipmentID)
	if err != nil {
		return receipt.Outcome{}, err
	}
	if shp.PartyName == "" {
		owner, err := s.parties.GetByID(ctx, shp.PartyID)
		if err != nil {
			return receipt.Outcome{}, err
		}
		shp.PartyName = owner.FullName
	}

	lines := make([]receipt.Line, 0, len(shp.Lines))
	for _, l := range shp.Lines {
		if l.Status == LineReturned {
			lines = append(lines, receipt.Line{Barcode: l.Barcode, Name: l.ProductName, Quantity: l.ReturnedQuantity, Struck: true})
			continue
		}
		lines = append(lines, receipt.Line{Barcode: l.Barcode, Name: l.ProductName, UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}

	label := receipt.LabelOpen
	if !shp.IsOpen() {
		label = receipt.LabelFinalized
	}
	return s.produce(ctx, shp, label, receipt.ReceiptName(shp.ID), lines), nil
}

// produce runs after commit. A failure is logged and carried in the outcome.
func (s *Service) produce(ctx context.Context, shp *Shipment, label, name string, lines []receipt.Line) receipt.Outcome {
	id := shp.ID
	date := shp.DepartedAt
	if shp.SettledAt != nil {
		date = *shp.SettledAt
	}
	out := s.receipts.Produce(ctx, receipt.Input{
		PartyName:   shp.PartyName,
		ShipmentID:  &id,
		Date:        date,
		StatusLabel: label,
		Lines:       lines,
		Name:        name,
	})
	if out.Warning != nil {
		logger.Warn(ctx, "receipt not produced", "shipment_id", shp.ID, "error", out.Warning)
	}
	return out
}

func requireOperator(operator string) error {
	if operator == "" {
		return apperror.NewValidation("operator is required").WithDetail(apperror.DetailField, "operator")
	}
	return nil
}

func validateLines(lines []LineRequest) error {
	if len(lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail(apperror.DetailField, "lines")
	}
	seen := make(map[int64]struct{}, len(lines))
	for i, l := range lines {
		if l.Quantity <= 0 {
			return apperror.NewInvalidQuantity("lines", l.Quantity).
				WithDetail("product_id", l.ProductID).
				WithDetail("lineNo", i+1)
		}
		if _, dup := seen[l.ProductID]; dup {
			return apperror.NewValidation("product listed more than once").
				WithDetail("product_id", l.ProductID).
				WithDetail("lineNo", i+1)
		}
		seen[l.ProductID] = struct{}{}
	}
	return nil
}

func saleDraft(shp *Shipment, operator string, method sale.PaymentMethod, lines []LineItem) sale.Draft {
	partyID, shipmentID := shp.PartyID, shp.ID
	d := sale.Draft{
		PartyID:       &partyID,
		ShipmentID:    &shipmentID,
		Operator:      operator,
		PaymentMethod: method,
		Lines:         make([]sale.LineDraft, 0, len(lines)),
	}
	for _, l := range lines {
		d.Lines = append(d.Lines, sale.LineDraft{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return d
}

func lineReceipt(lines []LineItem) []receipt.Line {
	out := make([]receipt.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, receipt.Line{Barcode: l.Barcode, Name: l.ProductName, UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	return out
}
