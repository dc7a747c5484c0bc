package db

import (
	"context"
	"time"

	"golf-booking/internal/models"
)

// Store is the full record store. Services depend on the narrower interfaces
// they declare themselves; Store is what the binary wires in.
type Store interface {
	Ping(ctx context.Context) error
	Close()

	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error

	GetCartBySessionID(ctx context.Context, sessionID string) (*models.Cart, error)
	CreateCart(ctx context.Context, cart *models.Cart) error
	TouchCart(ctx context.Context, cartID string, expiresAt time.Time) error
	AddCartItem(ctx context.Context, item *models.CartItem) error
	SetCartItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error
	DeleteCartItem(ctx context.Context, cartID, itemID string) error
	ClearCartItems(ctx context.Context, cartID string) error
	DeleteCart(ctx context.Context, cartID string) (string, error)

	CreateCheckoutSession(ctx context.Context, s *models.CheckoutSession) error
	AttachPaymentIntent(ctx context.Context, checkoutID, paymentIntentID string) error
	GetCheckoutSessionByCheckoutID(ctx context.Context, checkoutID string) (*models.CheckoutSession, error)
	GetCheckoutSessionByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.CheckoutSession, error)
	CompleteCheckoutSession(ctx context.Context, checkoutID string) (bool, error)

	CreateAdultRegistration(ctx context.Context, r *models.AdultRegistration) error
	GetAdultRegistration(ctx context.Context, id string) (*models.AdultRegistration, error)
	GetAdultRegistrationByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.AdultRegistration, error)
	ListAdultRegistrationsByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]*models.AdultRegistration, error)
	SetAdultRegistrationPaymentIntent(ctx context.Context, id, paymentIntentID string) error
	UpdateAdultRegistrationPayment(ctx context.Context, id string, u models.PaymentUpdate) error

	CreateJuniorEnrollment(ctx context.Context, jr *models.JuniorRegistration, jpr *models.JuniorProgramRegistration) error
	GetJuniorProgramRegistration(ctx context.Context, id string) (*models.JuniorProgramRegistration, error)
	GetJuniorProgramRegistrationByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.JuniorProgramRegistration, error)
	ListJuniorProgramRegistrationsByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]*models.JuniorProgramRegistration, error)
	SetJuniorProgramRegistrationPaymentIntent(ctx context.Context, id, paymentIntentID string) error
	UpdateJuniorProgramRegistrationPayment(ctx context.Context, id string, u models.PaymentUpdate) error

	CreateProgram(ctx context.Context, p *models.Program) error
	GetProgram(ctx context.Context, id string) (*models.Program, error)
	ListPrograms(ctx context.Context, programType models.RegistrationType) ([]*models.Program, error)
	GetProgramByCategory(ctx context.Context, category, level string) (*models.Program, error)
	UpdateProgram(ctx context.Context, id string, u models.ProgramUpdate) (*models.Program, error)
	DeleteProgram(ctx context.Context, id string) error
	CreateProgramSession(ctx context.Context, s *models.ProgramSession) error
	GetProgramSession(ctx context.Context, id string) (*models.ProgramSession, error)
	ListProgramSessions(ctx context.Context, programID string) ([]*models.ProgramSession, error)
}

var (
	_ Store = (*PostgresDB)(nil)
	_ Store = (*MemoryDB)(nil)
)
