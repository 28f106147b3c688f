// Package apperror is the error taxonomy of the ledger. Every business
// failure is an *AppError, so the CLI can print it as JSON and pick an exit
// status from its code without parsing messages.
package apperror

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeInternal   = "INTERNAL_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"

	// Ledger rule violations.
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeInvalidSettlement      = "INVALID_SETTLEMENT"
	CodeDocumentComposition    = "DOCUMENT_COMPOSITION_ERROR"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Catalog conflicts.
	CodeDuplicate  = "DUPLICATE_ENTRY"
	CodeReferenced = "REFERENCED"
)

// Detail keys shared by several factories.
const (
	DetailField         = "field"
	DetailReason        = "reason"
	ReasonInvalidQty    = "InvalidQuantity"
	ReasonBarcodeFailed = "BarcodeGeneration"
)

// Process exit statuses. 2 is left to flag parsing.
const (
	ExitInternal = 1
	ExitInvalid  = 3
	ExitNotFound = 4
	ExitRejected = 5
	ExitConflict = 6
)

var exitByCode = map[string]int{
	CodeInternal:               ExitInternal,
	CodeValidation:             ExitInvalid,
	CodeNotFound:               ExitNotFound,
	CodeInsufficientStock:      ExitRejected,
	CodeInvalidSettlement:      ExitRejected,
	CodeDocumentComposition:    ExitRejected,
	CodeConcurrentModification: ExitConflict,
	CodeDuplicate:              ExitConflict,
	CodeReferenced:             ExitConflict,
}

// AppError carries a machine-readable code, a message for the operator and
// structured details (field names, quantities, ids).
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	// Err is the cause. It is logged, never printed.
	Err error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail sets one detail and returns e for chaining.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func newError(code, message string, details map[string]any) *AppError {
	return &AppError{Code: code, Message: message, Details: details}
}

func NewValidation(message string) *AppError {
	return newError(CodeValidation, message, nil)
}

// NewInvalidQuantity is a validation error for a negative or zero quantity.
func NewInvalidQuantity(field string, quantity int) *AppError {
	return NewValidation(fmt.Sprintf("invalid quantity %d", quantity)).
		WithDetail(DetailField, field).
		WithDetail(DetailReason, ReasonInvalidQty).
		WithDetail("quantity", quantity)
}

func NewNotFound(entity string, id any) *AppError {
	return newError(CodeNotFound, entity+" not found", map[string]any{"entity": entity, "id": id})
}

// NewInsufficientStock names the product so the operator can fix the line.
func NewInsufficientStock(productID int64, productName string, requested, available int) *AppError {
	return newError(CodeInsufficientStock, fmt.Sprintf("insufficient stock for %q", productName), map[string]any{
		"product_id":   productID,
		"product_name": productName,
		"requested":    requested,
		"available":    available,
	})
}

// NewInvalidSettlement rejects a settlement that breaks ledger rules.
func NewInvalidSettlement(message string) *AppError {
	return newError(CodeInvalidSettlement, message, nil)
}

// NewDocumentComposition wraps a failure to compose or render a printable document.
func NewDocumentComposition(err error) *AppError {
	return newError(CodeDocumentComposition, "printable document could not be produced", nil).WithCause(err)
}

// NewConcurrentModification is returned when the database aborts a
// transaction because of a concurrent writer. Rerunning the command is safe.
func NewConcurrentModification(entity string, id any) *AppError {
	return newError(CodeConcurrentModification, "record was modified concurrently, run the command again",
		map[string]any{"entity": entity, "id": id})
}

// NewInternal hides err from the printed message.
func NewInternal(err error) *AppError {
	return newError(CodeInternal, "internal error", nil).WithCause(err)
}

func NewDuplicate(entity, field, value string) *AppError {
	return newError(CodeDuplicate, fmt.Sprintf("%s with this %s already exists", entity, field),
		map[string]any{"entity": entity, "field": field, "value": value})
}

// NewReferenced is returned when deleting a record other records still point to.
func NewReferenced(entity string, id any, referencedBy string) *AppError {
	return newError(CodeReferenced, fmt.Sprintf("%s is referenced by %s and cannot be deleted", entity, referencedBy),
		map[string]any{"entity": entity, "id": id, "referenced_by": referencedBy})
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// ExitStatus maps err to a process exit status. Errors outside the
// taxonomy are internal.
func ExitStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		if status, ok := exitByCode[appErr.Code]; ok {
			return status
		}
	}
	return ExitInternal
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }

func IsInsufficientStock(err error) bool { return HasCode(err, CodeInsufficientStock) }

func IsInvalidSettlement(err error) bool { return HasCode(err, CodeInvalidSettlement) }

func IsConcurrentModification(err error) bool { return HasCode(err, CodeConcurrentModification) }
