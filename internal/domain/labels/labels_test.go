package labels

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consigna/internal/core/apperror"
	"consigna/internal/domain/catalog/product"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want [3]string
	}{
		{"short", "Anel", [3]string{"Anel", "", ""}},
		{"leading spaces dropped", "Brinco de argola dourado grande", [3]string{"Brinco de argola", "dourado grande", ""}},
		{"truncated at 48", "Colar Veneziana 45cm Banhado a Ouro 18k com Pingente Coração", [3]string{"Colar Veneziana ", "45cm Banhado a O", "uro 18k com Ping"}},
		{"multibyte runes", "Pulseira Coração", [3]string{"Pulseira Coração", "", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitName(tt.in))
		})
	}
}

func TestPriceCode(t *testing.T) {
	assert.Equal(t, "03004500", PriceCode(decimal.RequireFromString("45.00"), decimal.Zero))
	assert.Equal(t, "03000990", PriceCode(decimal.RequireFromString("9.90"), decimal.Zero))
	assert.Equal(t, "03000350", PriceCode(decimal.Zero, decimal.RequireFromString("3.5")))
	assert.Equal(t, "", PriceCode(decimal.Zero, decimal.Zero))
}

func TestCompose(t *testing.T) {
	ring := &product.Product{ID: 7, Name: "Anel", Barcode: "0000070000450", SalePrice: decimal.RequireFromString("45")}

	got, err := Compose([]Request{{Product: ring, Copies: 3}})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "0000070000450", got[2].Barcode)
	assert.Equal(t, "03004500", got[2].PriceCode)

	_, err = Compose([]Request{{Product: ring, Copies: 0}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

type productsFunc func(ctx context.Context, id int64) (*product.Product, error)

func (f productsFunc) Get(ctx context.Context, id int64) (*product.Product, error) { return f(ctx, id) }

type rendererFunc func(ctx context.Context, name string, labels []Label) (*Rendered, error)

func (f rendererFunc) RenderLabels(ctx context.Context, name string, labels []Label) (*Rendered, error) {
	return f(ctx, name, labels)
}

func TestService_Print(t *testing.T) {
	products := productsFunc(func(_ context.Context, id int64) (*product.Product, error) {
		if id != 7 {
			return nil, apperror.NewNotFound("product", id)
		}
		return &product.Product{ID: 7, Name: "Anel", Barcode: "0000070000450"}, nil
	})

	var rendered []Label
	svc := NewService(products, rendererFunc(func(_ context.Context, name string, labels []Label) (*Rendered, error) {
		rendered = labels
		return &Rendered{Filename: name + ".xlsx", Bytes: []byte("x")}, nil
	}))

	out, err := svc.Print(context.Background(), []PrintRequest{{ProductID: 7, Copies: 2}})
	require.NoError(t, err)
	assert.Equal(t, "etiquetas.xlsx", out.Filename)
	assert.Len(t, rendered, 2)

	_, err = svc.Print(context.Background(), []PrintRequest{{ProductID: 8, Copies: 1}})
	assert.True(t, apperror.IsNotFound(err))

	failing := NewService(products, rendererFunc(func(context.Context, string, []Label) (*Rendered, error) {
		return nil, errors.New("no printer")
	}))
	_, err = failing.Print(context.Background(), []PrintRequest{{ProductID: 7, Copies: 1}})
	assert.True(t, apperror.HasCode(err, apperror.CodeDocumentComposition))
}
