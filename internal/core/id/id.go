// Package id mints UUIDv7 keys for append-only journal rows (stock movements,
// audit entries). Catalog and ledger records use database serials because the
// product id is embedded in barcodes.
package id

import (
	"time"

	"github.com/google/uuid"
)

// ID is a journal row key.
type ID = uuid.UUID

// New returns a UUIDv7 stamped with the current wall time.
func New() ID {
	return At(time.Now())
}

// At returns a UUIDv7 whose timestamp is t, so the key of a journal row
// agrees with its created_at even when the service clock is fixed.
// Keys minted for the same millisecond stay unique but are not ordered.
func At(t time.Time) ID {
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
		u[6] = u[6]&0x0f | 0x70
	}
	ms := t.UnixMilli()
	for i := 5; i >= 0; i-- {
		u[i] = byte(ms)
		ms >>= 8
	}
	return u
}

// Time reports the millisecond timestamp carried by a key minted here.
func Time(u ID) time.Time {
	ms := int64(u[0])<<40 | int64(u[1])<<32 | int64(u[2])<<24 | int64(u[3])<<16 | int64(u[4])<<8 | int64(u[5])
	return time.UnixMilli(ms)
}
