// Package shipment provides the shipment ledger: outright sales and
// consignments leaving inventory, and their settlement.
package shipment

import (
	"time"

	"consigna/internal/core/types"
	"consigna/internal/domain"
	"consigna/internal/domain/ledger/sale"
	"consigna/internal/domain/receipt"
)

// Status is the lifecycle state of a shipment. FINALIZED is terminal.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusFinalized Status = "FINALIZED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusFinalized
}

// Kind selects how a shipment is created.
type Kind string

const (
	KindSale        Kind = "SALE"
	KindConsignment Kind = "CONSIGNMENT"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindSale || k == KindConsignment
}

// Outcome selects what a settlement does with the shipment.
type Outcome string

const (
	OutcomeKeepOpen Outcome = "KEEP_OPEN"
	OutcomeClose    Outcome = "CLOSE"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomeKeepOpen || o == OutcomeClose
}

// LineStatus is the state of a line item. Transitions only leave CONSIGNED.
type LineStatus string

const (
	LineConsigned LineStatus = "CONSIGNED"
	LineSold      LineStatus = "SOLD"
	LineReturned  LineStatus = "RETURNED"
)

// Shipment is a batch of products sent to a party.
type Shipment struct {
	ID                   int64      `db:"id" json:"id"`
	PartyID              int64      `db:"party_id" json:"partyId"`
	DepartedAt           time.Time  `db:"departed_at" json:"departedAt"`
	ExpectedSettlementAt *time.Time `db:"expected_settlement_at" json:"expectedSettlementAt,omitempty"`
	SettledAt            *time.Time `db:"settled_at" json:"settledAt,omitempty"`
	Status               Status     `db:"status" json:"status"`
	CreatedBy            string     `db:"created_by" json:"createdBy"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`

	// PartyName is filled by reads that join the party.
	PartyName string `db:"party_name" json:"partyName,omitempty"`

	Lines []LineItem `db:"-" json:"lines,omitempty"`
}

// IsOpen reports whether the shipment may still be amended or settled.
func (s *Shipment) IsOpen() bool {
	return s.Status == StatusOpen
}

// LineItem is one product of a shipment with its frozen unit price.
type LineItem struct {
	ID               int64       `db:"id" json:"id"`
	ShipmentID       int64       `db:"shipment_id" json:"shipmentId"`
	ProductID        int64       `db:"product_id" json:"productId"`
	Quantity         int         `db:"quantity" json:"quantity"`
	ReturnedQuantity int         `db:"returned_quantity" json:"returnedQuantity"`
	UnitPrice        types.Money `db:"unit_price" json:"unitPrice"`
	Status           LineStatus  `db:"status" json:"status"`
	CreatedAt        time.Time   `db:"created_at" json:"createdAt"`

	// Filled by reads that join the product.
	ProductName string `db:"product_name" json:"productName,omitempty"`
	Barcode     string `db:"barcode" json:"barcode,omitempty"`
}

// Amount returns quantity × frozen price.
func (l LineItem) Amount() types.Money {
	return types.LineAmount(l.Quantity, l.UnitPrice)
}

// LineRequest asks for quantity units of a product.
type LineRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// CreateInput is the input to CreateShipment.
type CreateInput struct {
	PartyID            int64              `json:"partyId"`
	Kind               Kind               `json:"kind"`
	Lines              []LineRequest      `json:"lines"`
	PaymentMethod      sale.PaymentMethod `json:"paymentMethod,omitempty"`
	ExpectedSettlement *time.Time         `json:"expectedSettlement,omitempty"`
	Operator           string             `json:"-"`
}

// CreateResult is the committed shipment plus its receipt.
type CreateResult struct {
	Shipment *Shipment
	Sale     *sale.Sale
	Receipt  receipt.Outcome
}

// ReportedQuantity is the count a client still holds for a line item.
type ReportedQuantity struct {
	LineItemID int64 `json:"lineItemId"`
	Quantity   int   `json:"quantity"`
}

// SettleInput is the input to Settle.
type SettleInput struct {
	ShipmentID    int64              `json:"shipmentId"`
	Reported      []ReportedQuantity `json:"reported"`
	Outcome       Outcome            `json:"outcome"`
	PaymentMethod sale.PaymentMethod `json:"paymentMethod,omitempty"`
	Operator      string             `json:"-"`
}

// StatementLine is a line that continues with the client after a settlement.
type StatementLine struct {
	LineItemID int64
	ProductID  int64
	Barcode    string
	Name       string
	Quantity   int
	UnitPrice  types.Money
}

// RemovedProduct is a product fully returned by a settlement, with the
// quantity the client held before it.
type RemovedProduct struct {
	ProductID int64
	Barcode   string
	Name      string
	Quantity  int
}

// Statement is what a settlement hands to receipt composition.
type Statement struct {
	Lines   []StatementLine
	Removed []RemovedProduct
}

// receiptLines lists continuing lines first, then removed products struck.
func (st Statement) receiptLines() []receipt.Line {
	out := make([]receipt.Line, 0, len(st.Lines)+len(st.Removed))
	for _, l := range st.Lines {
		out = append(out, receipt.Line{Barcode: l.Barcode, Name: l.Name, UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	for _, r := range st.Removed {
		out = append(out, receipt.Line{Barcode: r.Barcode, Name: r.Name, Quantity: r.Quantity, Struck: true})
	}
	return out
}

// SettlementResult is the committed settlement plus its receipt.
type SettlementResult struct {
	Shipment  *Shipment
	Sale      *sale.Sale
	Statement Statement
	Receipt   receipt.Outcome
}

// Totals partitions a shipment's value by line status.
type Totals struct {
	Sold           types.Money `json:"sold"`
	Returned       types.Money `json:"returned"`
	StillConsigned types.Money `json:"stillConsigned"`
}

// computeTotals keeps full precision.
func computeTotals(lines []LineItem) Totals {
	t := Totals{Sold: types.Zero(), Returned: types.Zero(), StillConsigned: types.Zero()}
	for _, l := range lines {
		t.Returned = t.Returned.Add(types.LineAmount(l.ReturnedQuantity, l.UnitPrice))
		switch l.Status {
		case LineSold:
			t.Sold = t.Sold.Add(l.Amount())
		case LineConsigned:
			t.StillConsigned = t.StillConsigned.Add(l.Amount())
		}
	}
	return t
}

// Filter narrows Search results. Term matches the party's name, document or
// phone, or an exact shipment id.
type Filter struct {
	Term    string
	Status  Status
	PartyID *int64
	domain.Page
}
