package customers

import "time"

// Customer is the billable party. Mutable master data; finalized documents
// keep their own immutable Snapshot instead of referencing these fields.
type Customer struct {
	ID           int64     `json:"id" db:"id"`
	AccountID    int64     `json:"account_id" db:"account_id"`
	Name         string    `json:"name" db:"name"`
	Email        *string   `json:"email,omitempty" db:"email"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	TaxNumber    *string   `json:"tax_number,omitempty" db:"tax_number"`
	AddressLine1 *string   `json:"address_line1,omitempty" db:"address_line1"`
	AddressLine2 *string   `json:"address_line2,omitempty" db:"address_line2"`
	City         *string   `json:"city,omitempty" db:"city"`
	PostalCode   *string   `json:"postal_code,omitempty" db:"postal_code"`
	Country      string    `json:"country" db:"country"`
	Currency     string    `json:"currency" db:"currency"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Snapshot freezes the customer's billing details at finalize time. Later
// edits to the customer never alter a finalized document.
type Snapshot struct {
	ID           int64     `json:"id" db:"id"`
	CustomerID   int64     `json:"customer_id" db:"customer_id"`
	Name         string    `json:"name" db:"name"`
	Email        *string   `json:"email,omitempty" db:"email"`
	TaxNumber    *string   `json:"tax_number,omitempty" db:"tax_number"`
	AddressLine1 *string   `json:"address_line1,omitempty" db:"address_line1"`
	AddressLine2 *string   `json:"address_line2,omitempty" db:"address_line2"`
	City         *string   `json:"city,omitempty" db:"city"`
	PostalCode   *string   `json:"postal_code,omitempty" db:"postal_code"`
	Country      string    `json:"country" db:"country"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// SnapshotOf copies the fields a finalized document must keep.
func SnapshotOf(c Customer) Snapshot {
	return Snapshot{
		CustomerID:   c.ID,
		Name:         c.Name,
		Email:        c.Email,
		TaxNumber:    c.TaxNumber,
		AddressLine1: c.AddressLine1,
		AddressLine2: c.AddressLine2,
		City:         c.City,
		PostalCode:   c.PostalCode,
		Country:      c.Country,
	}
}
