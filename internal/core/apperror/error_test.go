package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_WrappedStillMatches(t *testing.T) {
	base := NewInsufficientStock(7, "Anel Dourado", 3, 2)
	wrapped := fmt.Errorf("reserve line 1: %w", base)

	assert.True(t, IsInsufficientStock(wrapped))
	assert.False(t, IsNotFound(wrapped))

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, int64(7), appErr.Details["product_id"])
	assert.Equal(t, "Anel Dourado", appErr.Details["product_name"])
	assert.Equal(t, ExitRejected, ExitStatus(wrapped))
}

func TestAppError_CauseIsUnwrapped(t *testing.T) {
	cause := errors.New("sheet write failed")
	err := NewDocumentComposition(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "DOCUMENT_COMPOSITION_ERROR")
	assert.Contains(t, err.Error(), "sheet write failed")
}

func TestNewInvalidQuantity(t *testing.T) {
	err := NewInvalidQuantity("quantity", -2)

	assert.Equal(t, CodeValidation, err.Code)
	assert.Equal(t, ReasonInvalidQty, err.Details[DetailReason])
	assert.Equal(t, -2, err.Details["quantity"])
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "plain error", err: errors.New("boom"), want: ExitInternal},
		{name: "validation", err: NewValidation("bad"), want: ExitInvalid},
		{name: "not found", err: fmt.Errorf("load: %w", NewNotFound("shipment", 9)), want: ExitNotFound},
		{name: "settlement", err: NewInvalidSettlement("returned more than sent"), want: ExitRejected},
		{name: "duplicate", err: NewDuplicate("product", "name", "Anel"), want: ExitConflict},
		{name: "unknown code", err: &AppError{Code: "SOMETHING_ELSE"}, want: ExitInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitStatus(tt.err))
		})
	}
	assert.False(t, IsAppError(errors.New("boom")))
}

func TestNewInternal_HidesCause(t *testing.T) {
	err := NewInternal(errors.New("dial tcp 10.0.0.5:5432: refused"))
	assert.Equal(t, "internal error", err.Message)
	assert.Contains(t, err.Error(), "refused")
}
