// Package sale provides the sale ledger: an append-only record of finalized
// sales, written by outright sales and by settlements that close.
package sale

import (
	"time"

	"consigna/internal/core/types"
	"consigna/internal/domain"
)

// PaymentMethod is how a sale was paid.
type PaymentMethod string

const (
	PaymentPix    PaymentMethod = "PIX"
	PaymentDebit  PaymentMethod = "DEB"
	PaymentCredit PaymentMethod = "CRE"
	PaymentCash   PaymentMethod = "DIN"
	PaymentOther  PaymentMethod = "OUT"
)

// DefaultPaymentMethod is used when a caller leaves the method empty.
const DefaultPaymentMethod = PaymentPix

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentPix, PaymentDebit, PaymentCredit, PaymentCash, PaymentOther:
		return true
	}
	return false
}

// OrDefault returns m, or DefaultPaymentMethod when m is empty.
func (m PaymentMethod) OrDefault() PaymentMethod {
	if m == "" {
		return DefaultPaymentMethod
	}
	return m
}

// Sale is a completed sale transaction.
type Sale struct {
	ID            int64         `db:"id" json:"id"`
	PartyID       *int64        `db:"party_id" json:"partyId,omitempty"`
	ShipmentID    *int64        `db:"shipment_id" json:"shipmentId,omitempty"`
	Operator      string        `db:"operator" json:"operator"`
	PaymentMethod PaymentMethod `db:"payment_method" json:"paymentMethod"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is a sold product with its frozen unit price.
type Line struct {
	ID        int64       `db:"id" json:"id"`
	SaleID    int64       `db:"sale_id" json:"saleId"`
	ProductID int64       `db:"product_id" json:"productId"`
	Quantity  int         `db:"quantity" json:"quantity"`
	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`
}

// Amount returns quantity × unit price.
func (l Line) Amount() types.Money {
	return types.LineAmount(l.Quantity, l.UnitPrice)
}

// Total sums the owned lines without rounding.
func (s *Sale) Total() types.Money {
	total := types.Zero()
	for _, l := range s.Lines {
		total = total.Add(l.Amount())
	}
	return total
}

// LineDraft is one line of a sale to record.
type LineDraft struct {
	ProductID int64       `json:"productId"`
	Quantity  int         `json:"quantity"`
	UnitPrice types.Money `json:"unitPrice"`
}

// Draft is the input to RecordSale.
type Draft struct {
	PartyID       *int64
	ShipmentID    *int64
	Operator      string
	PaymentMethod PaymentMethod
	Lines         []LineDraft
}

// Filter narrows List results.
type Filter struct {
	PartyID       *int64
	PaymentMethod PaymentMethod
	From          *time.Time
	To            *time.Time
	domain.Page
}
