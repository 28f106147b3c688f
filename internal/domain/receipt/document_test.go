package receipt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consigna/internal/core/apperror"
)

var day = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCompose_PaginatesAndRepeatsHeader(t *testing.T) {
	lines := make([]Line, 120)
	for i := range lines {
		lines[i] = Line{Barcode: fmt.Sprintf("%013d", i), Name: fmt.Sprintf("Item %d", i), UnitPrice: d("1.10"), Quantity: 1}
	}
	shipmentID := int64(9)

	doc, err := Compose(Input{PartyName: "Maria", ShipmentID: &shipmentID, Date: day, StatusLabel: LabelOpen, Lines: lines},
		WithStore([]string{"Loja Centro", "Rua A, 1"}, "12.345.678/0001-90"))
	require.NoError(t, err)

	require.Len(t, doc.Pages, 3)
	assert.Len(t, doc.Pages[0].Rows, 50)
	assert.Len(t, doc.Pages[1].Rows, 50)
	assert.Len(t, doc.Pages[2].Rows, 20)
	for i, p := range doc.Pages {
		assert.Equal(t, i+1, p.Number)
		assert.Equal(t, "9", p.Header.ShipmentRef)
		assert.Equal(t, "Maria", p.Header.PartyName)
		assert.Equal(t, LabelOpen, p.Header.StatusLabel)
		assert.Equal(t, "12.345.678/0001-90", p.Header.TaxID)
		assert.Equal(t, Columns, p.Columns)
	}
	assert.Equal(t, "Item 100", doc.Pages[2].Rows[0].Name)
	assert.Equal(t, 120, doc.ItemCount)
	assert.True(t, d("132").Equal(doc.Total))
}

func TestCompose_StruckAndZeroRows(t *testing.T) {
	doc, err := Compose(Input{
		PartyName: "Maria",
		Lines: []Line{
			{Name: "Anel", UnitPrice: d("45"), Quantity: 2},
			{Name: "Colar", UnitPrice: d("80"), Quantity: 0},
			{Name: "Brinco", UnitPrice: d("20"), Quantity: 3, Struck: true},
		},
	})
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	rows := doc.Pages[0].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "Brinco", rows[1].Name)
	assert.True(t, rows[1].Struck)
	assert.True(t, rows[1].UnitPrice.IsZero())
	assert.True(t, rows[1].Subtotal.IsZero())
	assert.Equal(t, 2, doc.ItemCount)
	assert.True(t, d("90").Equal(doc.Subtotal))
	assert.Equal(t, "-", doc.Header.ShipmentRef)
}

func TestCompose_DiscountThenTax(t *testing.T) {
	doc, err := Compose(Input{
		PartyName:    "Maria",
		Lines:        []Line{{Name: "Anel", UnitPrice: d("33.33"), Quantity: 3}},
		DiscountRate: d("10"),
		TaxRate:      d("5"),
	})
	require.NoError(t, err)

	assert.True(t, d("99.99").Equal(doc.Subtotal))
	assert.True(t, d("9.999").Equal(doc.Discount))
	assert.True(t, d("4.49955").Equal(doc.Tax))
	assert.True(t, d("94.49055").Equal(doc.Total), doc.Total.String())
}

func TestCompose_EmptyDocumentHasOnePage(t *testing.T) {
	doc, err := Compose(Input{PartyName: "Maria"})
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Empty(t, doc.Pages[0].Rows)
	assert.True(t, doc.Total.IsZero())
}

func TestCompose_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		opts []Option
	}{
		{"empty party", Input{PartyName: "  "}, nil},
		{"page size", Input{PartyName: "Maria"}, []Option{WithPageSize(0)}},
		{"negative discount", Input{PartyName: "Maria", DiscountRate: d("-1")}, nil},
		{"negative tax", Input{PartyName: "Maria", TaxRate: d("-0.5")}, nil},
		{"negative quantity", Input{PartyName: "Maria", Lines: []Line{{Name: "Anel", Quantity: -1}}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compose(tt.in, tt.opts...)
			assert.Error(t, err)
		})
	}
}

func TestComposer_Produce(t *testing.T) {
	ctx := context.Background()
	in := Input{PartyName: "Maria", Lines: []Line{{Name: "Anel", UnitPrice: d("45"), Quantity: 1}}, Name: ReceiptName(3)}

	t.Run("rendered", func(t *testing.T) {
		c := NewComposer(Settings{DiscountRate: d("10")}, &MockRenderer{})
		out := c.Produce(ctx, in)
		require.True(t, out.OK())
		assert.Equal(t, "recibo_remessa_3.xlsx", out.Rendered.Filename)
		assert.True(t, d("40.5").Equal(out.Document.Total))

		raw, err := base64.StdEncoding.DecodeString(out.Rendered.Base64())
		require.NoError(t, err)
		assert.Equal(t, out.Rendered.Bytes, raw)
	})

	t.Run("render failure becomes a warning", func(t *testing.T) {
		cause := errors.New("disk full")
		c := NewComposer(Settings{}, &MockRenderer{RenderFunc: func(context.Context, *Document) (*Rendered, error) {
			return nil, cause
		}})
		out := c.Produce(ctx, in)
		assert.False(t, out.OK())
		assert.NotNil(t, out.Document)
		assert.True(t, apperror.HasCode(out.Warning, apperror.CodeDocumentComposition))
		assert.ErrorIs(t, out.Warning, cause)
	})

	t.Run("compose failure becomes a warning", func(t *testing.T) {
		c := NewComposer(Settings{}, &MockRenderer{})
		out := c.Produce(ctx, Input{})
		assert.Nil(t, out.Document)
		assert.True(t, apperror.HasCode(out.Warning, apperror.CodeDocumentComposition))
	})

	t.Run("empty payload", func(t *testing.T) {
		c := NewComposer(Settings{}, &MockRenderer{RenderFunc: func(context.Context, *Document) (*Rendered, error) {
			return &Rendered{Filename: "x.xlsx"}, nil
		}})
		assert.False(t, c.Produce(ctx, in).OK())
	})

	t.Run("page size from settings", func(t *testing.T) {
		many := in
		many.Lines = make([]Line, 5)
		for i := range many.Lines {
			many.Lines[i] = Line{Name: fmt.Sprint(i), UnitPrice: d("1"), Quantity: 1}
		}
		out := NewComposer(Settings{PageSize: 2}, nil).Produce(ctx, many)
		require.True(t, out.OK())
		assert.Nil(t, out.Rendered)
		assert.Len(t, out.Document.Pages, 3)
	})
}

func TestNames(t *testing.T) {
	assert.Equal(t, "recibo_remessa_12", ReceiptName(12))
	assert.Equal(t, "acerto_remessa_12", SettlementName(12))
}
