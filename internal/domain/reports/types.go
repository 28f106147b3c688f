// Package reports provides read-only figures for the back office.
package reports

import (
	"time"

	"consigna/internal/core/types"
)

// --- Dashboard ---

// Dashboard is the home screen summary.
type Dashboard struct {
	// StockValue is Σ sale price × stock over the catalog.
	StockValue    types.Money `json:"stockValue"`
	StockQuantity int         `json:"stockQuantity"`

	// Consigned figures cover CONSIGNED lines of every shipment.
	ConsignedPieces int         `json:"consignedPieces"`
	ConsignedValue  types.Money `json:"consignedValue"`
}

// StockValueText formats StockValue for display.
func (d Dashboard) StockValueText() string { return types.FormatBRL(d.StockValue) }

// ConsignedValueText formats ConsignedValue for display.
func (d Dashboard) ConsignedValueText() string { return types.FormatBRL(d.ConsignedValue) }

// --- Sales summary ---

// SalesFilter bounds a sales summary. Zero times are open ends.
type SalesFilter struct {
	From time.Time
	To   time.Time
}

// PaymentTotal is the sales total of one payment method.
type PaymentTotal struct {
	PaymentMethod string      `db:"payment_method" json:"paymentMethod"`
	Sales         int         `db:"sales" json:"sales"`
	Total         types.Money `db:"total" json:"total"`
}

// --- Stock turnover ---

// TurnoverFilter defines the period of a turnover report.
type TurnoverFilter struct {
	FromDate time.Time
	ToDate   time.Time

	ProductIDs []int64

	Limit  int
	Offset int
}

// TurnoverItem sums the stock journal of one product over the period.
type TurnoverItem struct {
	ProductID   int64  `db:"product_id" json:"productId"`
	ProductName string `db:"product_name" json:"productName"`
	// Reserved is the units sent out, as a positive number.
	Reserved int `db:"reserved" json:"reserved"`
	Released int `db:"released" json:"released"`
	// Adjusted is the net delta of administrative overwrites.
	Adjusted   int `db:"adjusted" json:"adjusted"`
	ClosingQty int `db:"closing_qty" json:"closingQty"`
}

// TurnoverReport is the full turnover report.
type TurnoverReport struct {
	FromDate   time.Time      `json:"fromDate"`
	ToDate     time.Time      `json:"toDate"`
	Items      []TurnoverItem `json:"items"`
	TotalItems int            `json:"totalItems"`

	TotalReserved int `json:"totalReserved"`
	TotalReleased int `json:"totalReleased"`
}
