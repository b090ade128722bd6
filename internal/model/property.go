package model

import "time"

// Property is the canonical record for a real-world parcel. The golden
// identity is the normalized (APN, County) pair; it is assigned on first
// sighting and never changes. Everything else is mutable and upserted by
// every later sighting from any source.
type Property struct {
	ID        string `json:"id" db:"id"`
	APN       string `json:"apn" db:"apn"`
	County    string `json:"county" db:"county"`
	State     string `json:"state,omitempty" db:"state"`
	Street    string `json:"street,omitempty" db:"street"`
	City      string `json:"city,omitempty" db:"city"`
	ZipCode   string `json:"zip_code,omitempty" db:"zip_code"`
	OwnerName string `json:"owner_name,omitempty" db:"owner_name"`

	// Owner contact, filled by skip-trace enrichment when available.
	OwnerPhone string `json:"owner_phone,omitempty" db:"owner_phone"`
	OwnerEmail string `json:"owner_email,omitempty" db:"owner_email"`

	// Valuation. Nullable to distinguish "unknown" from zero.
	EstimatedValue *float64 `json:"estimated_value,omitempty" db:"estimated_value"`
	EquityPercent  *float64 `json:"equity_percent,omitempty" db:"equity_percent"`
	LoanBalance    *float64 `json:"loan_balance,omitempty" db:"loan_balance"`

	// Physical characteristics.
	Bedrooms  *int     `json:"bedrooms,omitempty" db:"bedrooms"`
	Bathrooms *float64 `json:"bathrooms,omitempty" db:"bathrooms"`
	SquareFt  *int     `json:"square_ft,omitempty" db:"square_ft"`
	YearBuilt *int     `json:"year_built,omitempty" db:"year_built"`

	// Flags holds source-specific metadata that has no dedicated column
	// (vendor IDs, listing URLs, raw condition notes).
	Flags map[string]any `json:"flags,omitempty" db:"flags"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OwnerProfile bundles the owner attributes the deterministic scorer
// weighs as seller-motivation signals.
type OwnerProfile struct {
	Absentee   bool `json:"absentee"`
	Corporate  bool `json:"corporate"`
	Inherited  bool `json:"inherited"`
	Elderly    bool `json:"elderly"`
	OutOfState bool `json:"out_of_state"`
}
