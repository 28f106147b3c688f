// Package receipt composes print-ready receipts from frozen line data.
// Composition is pure: it never reads or changes ledger state.
package receipt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"consigna/internal/core/types"
)

// DefaultPageSize is the number of rows printed per page.
const DefaultPageSize = 50

// Status labels printed in the header.
const (
	LabelSale      = "VENDA"
	LabelOpen      = "EM ABERTO"
	LabelFinalized = "FINALIZADO"
)

// Columns is the column-title block repeated on every page.
var Columns = []string{"Código", "Produtos", "Preço", "Qtd", "Total"}

// Line is one entry handed to Compose.
type Line struct {
	Barcode   string
	Name      string
	UnitPrice types.Money
	Quantity  int
	// Struck marks a fully returned product: it keeps a row but counts as zero.
	Struck bool
}

// Input is everything Compose needs.
type Input struct {
	PartyName    string
	ShipmentID   *int64
	Date         time.Time
	StatusLabel  string
	Lines        []Line
	DiscountRate types.Money
	TaxRate      types.Money
	// Name is the suggested file name without extension.
	Name string
}

// Header is repeated at the top of each page.
type Header struct {
	StoreLines  []string
	TaxID       string
	ShipmentRef string
	Date        time.Time
	PartyName   string
	StatusLabel string
}

// Row is a rendered line.
type Row struct {
	Barcode   string
	Name      string
	UnitPrice types.Money
	Quantity  int
	Subtotal  types.Money
	Struck    bool
}

// Page groups at most PageSize rows under a copy of the header.
type Page struct {
	Number  int
	Header  Header
	Columns []string
	Rows    []Row
}

// Document is a composed receipt. Monetary fields keep full precision;
// renderers round for display.
type Document struct {
	Name         string
	Header       Header
	Pages        []Page
	ItemCount    int
	Subtotal     types.Money
	DiscountRate types.Money
	Discount     types.Money
	TaxRate      types.Money
	Tax          types.Money
	Total        types.Money
}

// Option configures Compose.
type Option func(*settings)

type settings struct {
	pageSize   int
	storeLines []string
	taxID      string
}

// WithPageSize sets the number of rows per page.
func WithPageSize(n int) Option {
	return func(s *settings) { s.pageSize = n }
}

// WithStore sets the store address lines and tax id printed in the header.
func WithStore(lines []string, taxID string) Option {
	return func(s *settings) {
		s.storeLines = lines
		s.taxID = taxID
	}
}

var (
	errEmptyParty   = errors.New("party name is required")
	errPageSize     = errors.New("page size must be at least 1")
	errNegativeRate = errors.New("discount and tax rates must not be negative")
)

// Compose builds a paginated document. Rows with zero quantity are skipped.
// Struck rows occupy a row with zero price and subtotal and are left out of
// the item count. Discount applies to the subtotal; tax applies to the
// discounted amount.
func Compose(in Input, opts ...Option) (*Document, error) {
	cfg := settings{pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	if strings.TrimSpace(in.PartyName) == "" {
		return nil, errEmptyParty
	}
	if cfg.pageSize < 1 {
		return nil, errPageSize
	}
	if in.DiscountRate.IsNegative() || in.TaxRate.IsNegative() {
		return nil, errNegativeRate
	}

	header := Header{
		StoreLines:  cfg.storeLines,
		TaxID:       cfg.taxID,
		ShipmentRef: "-",
		Date:        in.Date,
		PartyName:   in.PartyName,
		StatusLabel: in.StatusLabel,
	}
	if in.ShipmentID != nil {
		header.ShipmentRef = fmt.Sprintf("%d", *in.ShipmentID)
	}

	doc := &Document{
		Name:         in.Name,
		Header:       header,
		Subtotal:     types.Zero(),
		DiscountRate: in.DiscountRate,
		TaxRate:      in.TaxRate,
	}
	if doc.Name == "" {
		doc.Name = "recibo"
	}

	var page *Page
	for i, l := range in.Lines {
		if l.Quantity < 0 {
			return nil, fmt.Errorf("line %d: negative quantity %d", i+1, l.Quantity)
		}
		if l.Quantity == 0 {
			continue
		}

		row := Row{Barcode: l.Barcode, Name: l.Name, Quantity: l.Quantity, Struck: l.Struck}
		if l.Struck {
			row.UnitPrice = decimal.Zero
			row.Subtotal = decimal.Zero
		} else {
			row.UnitPrice = l.UnitPrice
			row.Subtotal = types.LineAmount(l.Quantity, l.UnitPrice)
			doc.Subtotal = doc.Subtotal.Add(row.Subtotal)
			doc.ItemCount += l.Quantity
		}

		if page == nil || len(page.Rows) == cfg.pageSize {
			doc.Pages = append(doc.Pages, Page{
				Number:  len(doc.Pages) + 1,
				Header:  header,
				Columns: Columns,
				Rows:    make([]Row, 0, cfg.pageSize),
			})
			page = &doc.Pages[len(doc.Pages)-1]
		}
		page.Rows = append(page.Rows, row)
	}

	if len(doc.Pages) == 0 {
		doc.Pages = []Page{{Number: 1, Header: header, Columns: Columns}}
	}

	doc.Discount = types.Percent(doc.Subtotal, in.DiscountRate)
	doc.Tax = types.Percent(doc.Subtotal.Sub(doc.Discount), in.TaxRate)
	doc.Total = doc.Subtotal.Sub(doc.Discount).Add(doc.Tax)
	return doc, nil
}

// ReceiptName is the file name of a shipment receipt.
func ReceiptName(shipmentID int64) string {
	return fmt.Sprintf("recibo_remessa_%d", shipmentID)
}

// SettlementName is the file name of a settlement receipt.
func SettlementName(shipmentID int64) string {
	return fmt.Sprintf("acerto_remessa_%d", shipmentID)
}
