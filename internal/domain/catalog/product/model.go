// Package product provides the product catalog: price derivation, internal
// barcodes and the stock counters reserved and released by the ledger.
package product

import (
	"time"

	"github.com/shopspring/decimal"

	"consigna/internal/core/id"
	"consigna/internal/core/types"
	"consigna/internal/domain"
)

// Material is the product's material type.
type Material string

const (
	MaterialPlated Material = "FO"
	MaterialGold   Material = "OU"
	MaterialSilver Material = "PR"
)

// Valid reports whether m is a known material.
func (m Material) Valid() bool {
	switch m {
	case MaterialPlated, MaterialGold, MaterialSilver:
		return true
	}
	return false
}

// DefaultMargin is applied when a plated or silver draft omits the margin.
var DefaultMargin = decimal.NewFromInt(100)

// Product is a catalog item.
type Product struct {
	ID          int64               `db:"id" json:"id"`
	Name        string              `db:"name" json:"name"`
	Material    Material            `db:"material" json:"material"`
	PieceTypeID *int64              `db:"piece_type_id" json:"pieceTypeId,omitempty"`
	SupplierID  *int64              `db:"supplier_id" json:"supplierId,omitempty"`
	Stock       int                 `db:"stock" json:"stock"`
	WeightGrams decimal.Decimal     `db:"weight_grams" json:"weightGrams"`
	Cost        decimal.NullDecimal `db:"cost" json:"cost"`
	MarginPct   decimal.Decimal     `db:"margin_pct" json:"marginPct"`
	SalePrice   types.Money         `db:"sale_price" json:"salePrice"`
	Barcode     string              `db:"barcode" json:"barcode"`
	CreatedAt   time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time           `db:"updated_at" json:"updatedAt"`
}

// pricingState is the audit view of the fields UpdatePricing may change.
func (p *Product) pricingState() map[string]any {
	state := map[string]any{
		"margin_pct": p.MarginPct,
		"sale_price": p.SalePrice,
	}
	if p.Cost.Valid {
		state["cost"] = p.Cost.Decimal
	}
	return state
}

// Draft is the input to Register.
type Draft struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Material    Material         `json:"material" validate:"required,oneof=FO OU PR"`
	PieceTypeID *int64           `json:"pieceTypeId,omitempty"`
	SupplierID  *int64           `json:"supplierId,omitempty"`
	Stock       int              `json:"stock" validate:"gte=0"`
	WeightGrams decimal.Decimal  `json:"weightGrams"`
	Cost        *decimal.Decimal `json:"cost,omitempty"`
	MarginPct   *decimal.Decimal `json:"marginPct,omitempty"`
	// SalePrice may only be assigned for gold; other materials derive it.
	SalePrice *decimal.Decimal `json:"salePrice,omitempty"`
	Barcode   string           `json:"barcode,omitempty" validate:"omitempty,len=13,numeric"`
}

// PricingChange updates pricing inputs. Nil fields are left unchanged.
type PricingChange struct {
	Cost      *decimal.Decimal `json:"cost,omitempty"`
	MarginPct *decimal.Decimal `json:"marginPct,omitempty"`
	SalePrice *decimal.Decimal `json:"salePrice,omitempty"`
}

// StockSetting is one row of an administrative stock overwrite.
type StockSetting struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// Filter narrows Search results.
type Filter struct {
	// Term matches the name (case-insensitive substring) or the barcode (prefix).
	Term        string
	Material    Material
	PieceTypeID *int64
	SupplierID  *int64
	domain.Page
}

// PieceType is a product category such as "Anel" or "Brinco".
type PieceType struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// MovementKind classifies a stock journal row.
type MovementKind string

const (
	MovementReserve MovementKind = "reserve"
	MovementRelease MovementKind = "release"
	MovementSet     MovementKind = "set"
)

// Movement is one row of the append-only stock journal.
type Movement struct {
	ID         id.ID        `db:"id" json:"id"`
	ProductID  int64        `db:"product_id" json:"productId"`
	Kind       MovementKind `db:"kind" json:"kind"`
	Delta      int          `db:"delta" json:"delta"`
	StockAfter int          `db:"stock_after" json:"stockAfter"`
	ShipmentID *int64       `db:"shipment_id" json:"shipmentId,omitempty"`
	Operator   string       `db:"operator" json:"operator"`
	CreatedAt  time.Time    `db:"created_at" json:"createdAt"`
}

// MovementRef attributes a reservation or release.
type MovementRef struct {
	ShipmentID *int64
	Operator   string
}
