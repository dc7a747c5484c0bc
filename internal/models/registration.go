package models

import "time"

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

type AdultRegistration struct {
	ID                 string `json:"id"`
	UserID             string `json:"user_id"`
	ProgramID          string `json:"program_id"`
	ProgramSessionID   string `json:"program_session_id,omitempty"`
	AdditionalComments string `json:"additional_comments,omitempty"`
	// Empty for direct registrations. Together with StripePaymentIntentID it
	// forms the unique key that absorbs duplicate webhook deliveries.
	CheckoutItemID        string        `json:"checkout_item_id,omitempty"`
	StripePaymentIntentID string        `json:"stripe_payment_intent_id,omitempty"`
	StripeCustomerID      string        `json:"stripe_customer_id,omitempty"`
	PaymentStatus         PaymentStatus `json:"payment_status"`
	PaymentAmountCents    *int64        `json:"payment_amount_cents,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// JuniorRegistration is the guardian/child profile.
type JuniorRegistration struct {
	ID                     string    `json:"id"`
	UserID                 string    `json:"user_id"`
	PhoneType              string    `json:"phone_type"`
	PreferredContactMethod string    `json:"preferred_contact_method"`
	ChildFirstName         string    `json:"child_first_name"`
	ChildLastName          string    `json:"child_last_name"`
	ChildAge               int       `json:"child_age"`
	ChildExperienceLevel   string    `json:"child_experience_level"`
	HasOwnClubs            bool      `json:"has_own_clubs"`
	FriendsToGroupWith     string    `json:"friends_to_group_with,omitempty"`
	AdditionalComments     string    `json:"additional_comments,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// NewJuniorRegistration copies the child profile out of a submitted form.
func NewJuniorRegistration(userID string, f *JuniorForm) *JuniorRegistration {
	return &JuniorRegistration{
		UserID:                 userID,
		PhoneType:              f.PhoneType,
		PreferredContactMethod: f.PreferredContactMethod,
		ChildFirstName:         f.ChildFirstName,
		ChildLastName:          f.ChildLastName,
		ChildAge:               f.ChildAge,
		ChildExperienceLevel:   f.ChildExperienceLevel,
		HasOwnClubs:            f.HasOwnClubs,
		FriendsToGroupWith:     f.FriendsToGroupWith,
		AdditionalComments:     f.AdditionalComments,
	}
}

// JuniorProgramRegistration is the per-program payment record for a child.
type JuniorProgramRegistration struct {
	ID                    string        `json:"id"`
	JuniorRegistrationID  string        `json:"junior_registration_id"`
	ProgramID             string        `json:"program_id"`
	ProgramSessionID      string        `json:"program_session_id,omitempty"`
	CheckoutItemID        string        `json:"checkout_item_id,omitempty"`
	StripePaymentIntentID string        `json:"stripe_payment_intent_id,omitempty"`
	StripeCustomerID      string        `json:"stripe_customer_id,omitempty"`
	PaymentStatus         PaymentStatus `json:"payment_status"`
	PaymentAmountCents    *int64        `json:"payment_amount_cents,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// PaymentUpdate is applied to a pending direct registration once the
// provider reports an outcome. Nil fields are left unchanged.
type PaymentUpdate struct {
	Status             PaymentStatus
	StripeCustomerID   *string
	PaymentAmountCents *int64
}
