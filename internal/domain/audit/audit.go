// Package audit defines the operator-attributed trail written by every
// catalog and ledger mutation.
package audit

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"consigna/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionStockSet Action = "stock_set"
	ActionAmend    Action = "amend"
	ActionSettle   Action = "settle"
)

// Entity types recorded in the trail.
const (
	EntityProduct   = "product"
	EntityPieceType = "piece_type"
	EntityParty     = "party"
	EntityShipment  = "shipment"
	EntitySale      = "sale"
)

// Entry is a single audit record.
type Entry struct {
	ID         id.ID          `json:"id"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Action     Action         `json:"action"`
	Operator   string         `json:"operator"`
	Changes    map[string]any `json:"changes,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// NewEntry builds an entry for an int64-keyed entity.
func NewEntry(entityType string, entityID int64, action Action, operator string, at time.Time, changes map[string]any) Entry {
	return Entry{
		ID:         id.At(at),
		EntityType: entityType,
		EntityID:   fmt.Sprintf("%d", entityID),
		Action:     action,
		Operator:   operator,
		Changes:    changes,
		CreatedAt:  at,
	}
}

// Recorder persists audit entries. Record joins the caller's transaction,
// so an aborted mutation leaves no trail.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
	History(ctx context.Context, entityType, entityID string, limit int) ([]Entry, error)
}

// Nop discards entries.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) error { return nil }

// History implements Recorder.
func (Nop) History(context.Context, string, string, int) ([]Entry, error) { return nil, nil }

// Diff calculates the difference between old and new entity states.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)

	// Find changed and new fields
	for key, newVal := range newState {
		oldVal, exists := oldState[key]
		if !exists {
			changes[key] = map[string]any{"old": nil, "new": newVal}
		} else if !equal(oldVal, newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}

	// Find deleted fields
	for key, oldVal := range oldState {
		if _, exists := newState[key]; !exists {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}

	return changes
}

// equal compares values, treating fmt.Stringer values (decimals) by their text.
func equal(a, b any) bool {
	if sa, ok := a.(fmt.Stringer); ok {
		if sb, ok := b.(fmt.Stringer); ok {
			return sa.String() == sb.String()
		}
	}
	return reflect.DeepEqual(a, b)
}
