// Package party provides the registry of clients and suppliers.
package party

import (
	"strings"
	"time"
)

// SupplyMaterial is the material a supplier provides.
type SupplyMaterial string

const (
	SupplyPlated SupplyMaterial = "FO"
	SupplyGold   SupplyMaterial = "OU"
	SupplySilver SupplyMaterial = "PR"
	SupplyOther  SupplyMaterial = "OT"
)

// Party is a client or, when IsSupplier is set, a supplier.
type Party struct {
	ID             int64           `db:"id" json:"id"`
	FullName       string          `db:"full_name" json:"fullName"`
	Document       string          `db:"document" json:"document"`
	Email          *string         `db:"email" json:"email,omitempty"`
	Phone          string          `db:"phone" json:"phone"`
	Street         string          `db:"street" json:"street"`
	Number         string          `db:"number" json:"number"`
	District       string          `db:"district" json:"district"`
	City           string          `db:"city" json:"city"`
	State          string          `db:"state" json:"state"`
	PostalCode     string          `db:"postal_code" json:"postalCode"`
	IsSupplier     bool            `db:"is_supplier" json:"isSupplier"`
	SupplyMaterial *SupplyMaterial `db:"supply_material" json:"supplyMaterial,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

func (p *Party) contactState() map[string]any {
	email := ""
	if p.Email != nil {
		email = *p.Email
	}
	return map[string]any{
		"email":       email,
		"phone":       p.Phone,
		"street":      p.Street,
		"number":      p.Number,
		"district":    p.District,
		"city":        p.City,
		"state":       p.State,
		"postal_code": p.PostalCode,
	}
}

// Draft is the input to Register.
type Draft struct {
	FullName       string         `json:"fullName" validate:"required,max=200"`
	Document       string         `json:"document" validate:"required,max=20"`
	Email          string         `json:"email,omitempty" validate:"omitempty,email"`
	Phone          string         `json:"phone,omitempty" validate:"max=20"`
	Street         string         `json:"street,omitempty"`
	Number         string         `json:"number,omitempty"`
	District       string         `json:"district,omitempty"`
	City           string         `json:"city,omitempty"`
	State          string         `json:"state,omitempty" validate:"omitempty,len=2"`
	PostalCode     string         `json:"postalCode,omitempty"`
	IsSupplier     bool           `json:"isSupplier"`
	SupplyMaterial SupplyMaterial `json:"supplyMaterial,omitempty" validate:"omitempty,oneof=FO OU PR OT"`
}

func (d *Draft) normalize() {
	d.FullName = strings.TrimSpace(d.FullName)
	d.Document = strings.TrimSpace(d.Document)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Phone = strings.TrimSpace(d.Phone)
	d.City = strings.TrimSpace(d.City)
	d.State = strings.ToUpper(strings.TrimSpace(d.State))
}

// ContactChange updates mutable contact fields. Nil fields are left unchanged.
// The tax document is immutable.
type ContactChange struct {
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      *string `json:"phone,omitempty"`
	Street     *string `json:"street,omitempty"`
	Number     *string `json:"number,omitempty"`
	District   *string `json:"district,omitempty"`
	City       *string `json:"city,omitempty"`
	State      *string `json:"state,omitempty" validate:"omitempty,len=2"`
	PostalCode *string `json:"postalCode,omitempty"`
}

// Filter narrows Search. Empty strings and a nil IsSupplier impose no constraint.
type Filter struct {
	Name       string
	Document   string
	Phone      string
	City       string
	IsSupplier *bool
}

func (f *Filter) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Document = strings.TrimSpace(f.Document)
	f.Phone = strings.TrimSpace(f.Phone)
	f.City = strings.TrimSpace(f.City)
}

// Matches reports whether p satisfies every provided filter, comparing
// case-insensitive substrings. Stores without a query language use it directly.
func (f Filter) Matches(p *Party) bool {
	if f.IsSupplier != nil && p.IsSupplier != *f.IsSupplier {
		return false
	}
	return containsFold(p.FullName, f.Name) &&
		containsFold(p.Document, f.Document) &&
		containsFold(p.Phone, f.Phone) &&
		containsFold(p.City, f.City)
}

func containsFold(s, sub string) bool {
	if sub == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
