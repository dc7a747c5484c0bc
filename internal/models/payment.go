package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// PaymentType tags what a payment intent pays for.
type PaymentType string

const (
	PaymentCartCheckout       PaymentType = "cart_checkout"
	PaymentAdultRegistration  PaymentType = "adult_registration"
	PaymentJuniorRegistration PaymentType = "junior_registration"
)

// PaymentIntent is the provider-neutral view of a charge attempt.
type PaymentIntent struct {
	ID          string
	AmountCents int64
	Currency    string
	CustomerID  string
	Status      string
	Metadata    IntentMetadata
}

// IntentMetadata is the minimal tag set stored at the payment provider.
// Form data never travels here; it lives in the checkout snapshot.
type IntentMetadata struct {
	Type PaymentType

	// cart_checkout
	CheckoutID string
	CartID     string
	ItemCount  int

	// adult_registration / junior_registration
	UserID                      string
	AdultRegistrationID         string
	JuniorRegistrationID        string
	JuniorProgramRegistrationID string
	ProgramID                   string
	ProgramSessionID            string
}

const (
	metaType                        = "type"
	metaCheckoutID                  = "checkoutId"
	metaCartID                      = "cartId"
	metaItemCount                   = "itemCount"
	metaUserID                      = "userId"
	metaAdultRegistrationID         = "adultRegistrationId"
	metaJuniorRegistrationID        = "juniorRegistrationId"
	metaJuniorProgramRegistrationID = "juniorProgramRegistrationId"
	metaProgramID                   = "programId"
	metaProgramSessionID            = "programSessionId"
)

// Map renders the metadata for the provider, omitting empty values.
func (m IntentMetadata) Map() map[string]string {
	out := map[string]string{metaType: string(m.Type)}
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put(metaCheckoutID, m.CheckoutID)
	put(metaCartID, m.CartID)
	if m.ItemCount > 0 {
		out[metaItemCount] = strconv.Itoa(m.ItemCount)
	}
	put(metaUserID, m.UserID)
	put(metaAdultRegistrationID, m.AdultRegistrationID)
	put(metaJuniorRegistrationID, m.JuniorRegistrationID)
	put(metaJuniorProgramRegistrationID, m.JuniorProgramRegistrationID)
	put(metaProgramID, m.ProgramID)
	put(metaProgramSessionID, m.ProgramSessionID)
	return out
}

// ParseIntentMetadata reads the provider's metadata bag. Unknown keys are
// ignored and an unparsable itemCount reads as zero.
func ParseIntentMetadata(m map[string]string) IntentMetadata {
	count, _ := strconv.Atoi(m[metaItemCount])
	return IntentMetadata{
		Type:                        PaymentType(m[metaType]),
		CheckoutID:                  m[metaCheckoutID],
		CartID:                      m[metaCartID],
		ItemCount:                   count,
		UserID:                      m[metaUserID],
		AdultRegistrationID:         m[metaAdultRegistrationID],
		JuniorRegistrationID:        m[metaJuniorRegistrationID],
		JuniorProgramRegistrationID: m[metaJuniorProgramRegistrationID],
		ProgramID:                   m[metaProgramID],
		ProgramSessionID:            m[metaProgramSessionID],
	}
}

// MaxAmountCents is the largest single charge Stripe accepts in USD.
const MaxAmountCents int64 = 99_999_999

var ErrAmountOutOfRange = errors.New("amount out of range")

// DollarsToCents rounds half away from zero. Amounts outside
// [0, MaxAmountCents] and non-finite values are rejected before conversion.
func DollarsToCents(dollars float64) (int64, error) {
	if math.IsNaN(dollars) || math.IsInf(dollars, 0) {
		return 0, fmt.Errorf("%w: %v", ErrAmountOutOfRange, dollars)
	}
	cents := math.Round(dollars * 100)
	if cents < 0 || cents > float64(MaxAmountCents) {
		return 0, fmt.Errorf("%w: %.2f", ErrAmountOutOfRange, dollars)
	}
	return int64(cents), nil
}

func CentsToDollars(cents int64) float64 {
	return float64(cents) / 100
}

// FormatCents renders 12345 as "123.45".
func FormatCents(cents int64) string {
	return strconv.FormatFloat(CentsToDollars(cents), 'f', 2, 64)
}
