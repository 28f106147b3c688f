package postgres

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_DollarPlaceholders(t *testing.T) {
	sql, args, err := Builder().
		Select("id").
		From("products").
		Where(squirrel.Eq{"material": "FO"}).
		Where(squirrel.Gt{"stock": 0}).
		ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id FROM products WHERE material = $1 AND stock > $2", sql)
	assert.Equal(t, []any{"FO", 0}, args)
}

func TestBuilder_CountOverSubselect(t *testing.T) {
	inner := Builder().Select("id").From("parties").Where(squirrel.ILike{"city": "%rio%"})
	sql, args, err := Builder().Select("COUNT(*)").FromSelect(inner, "sub").ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) FROM (SELECT id FROM parties WHERE city ILIKE $1) AS sub", sql)
	assert.Equal(t, []any{"%rio%"}, args)
}

func TestLikePatterns_EscapeWildcards(t *testing.T) {
	tests := []struct {
		term       string
		wantAny    string
		wantPrefix string
	}{
		{term: "rio", wantAny: "%rio%", wantPrefix: "rio%"},
		{term: "1_3", wantAny: `%1\_3%`, wantPrefix: `1\_3%`},
		{term: "50%", wantAny: `%50\%%`, wantPrefix: `50\%%`},
		{term: `a\b`, wantAny: `%a\\b%`, wantPrefix: `a\\b%`},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			assert.Equal(t, tt.wantAny, Contains(tt.term))
			assert.Equal(t, tt.wantPrefix, HasPrefix(tt.term))
		})
	}
}
