package models

import "time"

type RegistrationType string

const (
	RegistrationAdult  RegistrationType = "adult"
	RegistrationJunior RegistrationType = "junior"
)

func (t RegistrationType) Valid() bool {
	return t == RegistrationAdult || t == RegistrationJunior
}

type Cart struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	Items     []CartItem `json:"items"`
	ExpiresAt time.Time  `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Exists reports whether the cart is backed by a stored row. Lookups for an
// unknown session return an empty, non-existent cart rather than an error.
func (c *Cart) Exists() bool {
	return c != nil && c.ID != ""
}

// Total sums quantity times the frozen price, in cents.
func (c *Cart) Total() int64 {
	if c == nil {
		return 0
	}
	var total int64
	for _, item := range c.Items {
		total += int64(item.Quantity) * item.PriceAtAddCents
	}
	return total
}

// ItemCount sums quantities.
func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

type CartItem struct {
	ID               string           `json:"id"`
	CartID           string           `json:"cart_id"`
	ProgramID        string           `json:"program_id"`
	ProgramSessionID string           `json:"program_session_id,omitempty"`
	RegistrationType RegistrationType `json:"registration_type"`
	Quantity         int              `json:"quantity"`
	// Frozen at add time; not re-checked against the catalog before charging.
	PriceAtAddCents int64     `json:"price_at_add_cents"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
