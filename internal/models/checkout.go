package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type CheckoutStatus string

const (
	CheckoutPending   CheckoutStatus = "pending"
	CheckoutCompleted CheckoutStatus = "completed"
	CheckoutExpired   CheckoutStatus = "expired"
)

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutCompleted || s == CheckoutExpired
}

func (s CheckoutStatus) String() string {
	return string(s)
}

// CheckoutSession is the snapshot of everything needed to materialize
// registrations, written before any payment intent exists.
type CheckoutSession struct {
	ID                    string         `json:"id"`
	CheckoutID            string         `json:"checkout_id"`
	CartID                string         `json:"cart_id"`
	StripePaymentIntentID string         `json:"stripe_payment_intent_id,omitempty"`
	Items                 []CheckoutItem `json:"items"`
	TotalAmountCents      int64          `json:"total_amount_cents"`
	Status                CheckoutStatus `json:"status"`
	CreatedAt             time.Time      `json:"created_at"`
	ExpiresAt             time.Time      `json:"expires_at"`
}

func (s *CheckoutSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// StatusAt is the status as seen at now. Expiry is not stored; a pending
// snapshot past its ExpiresAt reads as expired.
func (s *CheckoutSession) StatusAt(now time.Time) CheckoutStatus {
	if s.Status == CheckoutPending && s.Expired(now) {
		return CheckoutExpired
	}
	return s.Status
}

// CheckoutItem is one registrant line. Exactly one of Adult or Junior is set,
// selected by RegistrationType; on the wire both travel as "formData".
type CheckoutItem struct {
	CartItemID       string
	ProgramID        string
	ProgramSessionID string
	RegistrationType RegistrationType
	Adult            *AdultForm
	Junior           *JuniorForm
}

type checkoutItemJSON struct {
	CartItemID       string           `json:"cartItemId"`
	ProgramID        string           `json:"programId"`
	ProgramSessionID string           `json:"programSessionId,omitempty"`
	RegistrationType RegistrationType `json:"registrationType"`
	FormData         json.RawMessage  `json:"formData"`
}

func (i CheckoutItem) MarshalJSON() ([]byte, error) {
	var form interface{}
	switch i.RegistrationType {
	case RegistrationAdult:
		form = i.Adult
	case RegistrationJunior:
		form = i.Junior
	default:
		return nil, fmt.Errorf("unknown registration type %q", i.RegistrationType)
	}
	raw, err := json.Marshal(form)
	if err != nil {
		return nil, err
	}
	return json.Marshal(checkoutItemJSON{
		CartItemID:       i.CartItemID,
		ProgramID:        i.ProgramID,
		ProgramSessionID: i.ProgramSessionID,
		RegistrationType: i.RegistrationType,
		FormData:         raw,
	})
}

func (i *CheckoutItem) UnmarshalJSON(data []byte) error {
	var aux checkoutItemJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*i = CheckoutItem{
		CartItemID:       aux.CartItemID,
		ProgramID:        aux.ProgramID,
		ProgramSessionID: aux.ProgramSessionID,
		RegistrationType: aux.RegistrationType,
	}
	if len(aux.FormData) == 0 || string(aux.FormData) == "null" {
		return nil
	}

	switch aux.RegistrationType {
	case RegistrationAdult:
		i.Adult = &AdultForm{}
		return json.Unmarshal(aux.FormData, i.Adult)
	case RegistrationJunior:
		i.Junior = &JuniorForm{}
		return json.Unmarshal(aux.FormData, i.Junior)
	default:
		return fmt.Errorf("unknown registration type %q", aux.RegistrationType)
	}
}

// PrimaryEmail is where the receipt goes.
func (i CheckoutItem) PrimaryEmail() string {
	switch {
	case i.Adult != nil:
		return i.Adult.Email
	case i.Junior != nil:
		return i.Junior.PrimaryContactEmail
	}
	return ""
}

type AdultForm struct {
	FirstName          string `json:"firstName" validate:"required,max=100"`
	LastName           string `json:"lastName" validate:"required,max=100"`
	Email              string `json:"email" validate:"required,email"`
	PhoneNumber        string `json:"phoneNumber" validate:"required,max=32"`
	AdditionalComments string `json:"additionalComments,omitempty" validate:"max=2000"`
}

func (f *AdultForm) Contact() Contact {
	return Contact{
		FirstName:   f.FirstName,
		LastName:    f.LastName,
		Email:       f.Email,
		PhoneNumber: f.PhoneNumber,
	}
}

type JuniorForm struct {
	PrimaryContactFirstName string `json:"primaryContactFirstName" validate:"required,max=100"`
	PrimaryContactLastName  string `json:"primaryContactLastName" validate:"required,max=100"`
	PrimaryContactEmail     string `json:"primaryContactEmail" validate:"required,email"`
	PrimaryContactPhone     string `json:"primaryContactPhone" validate:"required,max=32"`
	PhoneType               string `json:"phoneType" validate:"required,oneof=mobile home work"`
	PreferredContactMethod  string `json:"preferredContactMethod" validate:"required,oneof=text email"`
	ChildFirstName          string `json:"childFirstName" validate:"required,max=100"`
	ChildLastName           string `json:"childLastName" validate:"required,max=100"`
	ChildAge                int    `json:"childAge" validate:"required,min=3,max=18"`
	ChildExperienceLevel    string `json:"childExperienceLevel" validate:"required"`
	HasOwnClubs             bool   `json:"hasOwnClubs"`
	FriendsToGroupWith      string `json:"friendsToGroupWith,omitempty" validate:"max=500"`
	AdditionalComments      string `json:"additionalComments,omitempty" validate:"max=2000"`
}

func (f *JuniorForm) Contact() Contact {
	return Contact{
		FirstName:   f.PrimaryContactFirstName,
		LastName:    f.PrimaryContactLastName,
		Email:       f.PrimaryContactEmail,
		PhoneNumber: f.PrimaryContactPhone,
	}
}
