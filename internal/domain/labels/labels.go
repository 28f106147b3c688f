// Package labels composes shelf labels: a barcode, the product name over
// three short lines and a price code only the staff can read.
package labels

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"consigna/internal/core/apperror"
	"consigna/internal/domain/catalog/product"
)

const (
	maxNameRunes  = 48
	lineRunes     = 16
	hiddenPrefix  = "0300"
	labelFilename = "etiquetas"
)

// Label is one printed label.
type Label struct {
	ProductID int64
	Barcode   string
	Lines     [3]string
	// PriceCode is "0300" followed by the price in cents, or empty when the
	// product has neither price nor weight.
	PriceCode string
}

// Request asks for copies of a product's label.
type Request struct {
	Product *product.Product
	Copies  int
}

// Compose expands requests into one Label per copy, in request order.
func Compose(requests []Request) ([]Label, error) {
	var out []Label
	for i, r := range requests {
		if r.Product == nil {
			return nil, apperror.NewValidation("product is required").WithDetail("lineNo", i+1)
		}
		if r.Copies < 1 {
			return nil, apperror.NewInvalidQuantity("copies", r.Copies).
				WithDetail("product_id", r.Product.ID).
				WithDetail("lineNo", i+1)
		}

		l := Label{
			ProductID: r.Product.ID,
			Barcode:   r.Product.Barcode,
			Lines:     SplitName(r.Product.Name),
			PriceCode: PriceCode(r.Product.SalePrice, r.Product.WeightGrams),
		}
		for c := 0; c < r.Copies; c++ {
			out = append(out, l)
		}
	}
	return out, nil
}

// SplitName cuts name to 48 runes and splits it into three 16-rune lines.
// A single leading space of each line is dropped.
func SplitName(name string) [3]string {
	runes := []rune(name)
	if len(runes) > maxNameRunes {
		runes = runes[:maxNameRunes]
	}

	var lines [3]string
	for i := range lines {
		start := i * lineRunes
		if start >= len(runes) {
			break
		}
		end := min(start+lineRunes, len(runes))
		lines[i] = strings.TrimPrefix(string(runes[start:end]), " ")
	}
	return lines
}

// PriceCode encodes price in cents after the "0300" prefix. A zero price
// falls back to the weight.
func PriceCode(price, weight decimal.Decimal) string {
	base := price
	if !base.IsPositive() {
		base = weight
	}
	if !base.IsPositive() {
		return ""
	}
	cents := base.Mul(decimal.NewFromInt(100)).IntPart()
	return fmt.Sprintf("%s%04d", hiddenPrefix, cents)
}

// Rendered is a printable label sheet.
type Rendered struct {
	Filename    string
	ContentType string
	Bytes       []byte
}

// Renderer lays out labels on a sheet.
type Renderer interface {
	RenderLabels(ctx context.Context, name string, labels []Label) (*Rendered, error)
}

// ProductReader resolves products by id. Implemented by product.Service.
type ProductReader interface {
	Get(ctx context.Context, productID int64) (*product.Product, error)
}

// PrintRequest is a request by product id.
type PrintRequest struct {
	ProductID int64 `json:"productId"`
	Copies    int   `json:"copies"`
}

// Service resolves products and renders label sheets.
type Service struct {
	products ProductReader
	renderer Renderer
}

// NewService creates a label service.
func NewService(products ProductReader, renderer Renderer) *Service {
	return &Service{products: products, renderer: renderer}
}

// Print composes and renders a sheet for reqs. An unknown product is NotFound.
func (s *Service) Print(ctx context.Context, reqs []PrintRequest) (*Rendered, error) {
	if len(reqs) == 0 {
		return nil, apperror.NewValidation("at least one label is required").WithDetail(apperror.DetailField, "labels")
	}

	requests := make([]Request, 0, len(reqs))
	for _, r := range reqs {
		p, err := s.products.Get(ctx, r.ProductID)
		if err != nil {
			return nil, err
		}
		requests = append(requests, Request{Product: p, Copies: r.Copies})
	}

	composed, err := Compose(requests)
	if err != nil {
		return nil, err
	}
	rendered, err := s.renderer.RenderLabels(ctx, labelFilename, composed)
	if err != nil {
		return nil, apperror.NewDocumentComposition(err)
	}
	return rendered, nil
}
