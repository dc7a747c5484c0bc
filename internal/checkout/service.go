package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golf-booking/internal/db"
	"golf-booking/internal/models"
	"golf-booking/internal/payment"
	"golf-booking/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrCartNotFound       = errors.New("cart not found")
	ErrCartChanged        = errors.New("cart has changed")
	ErrInvalidForm        = errors.New("invalid registration form")
	ErrPaymentUnavailable = errors.New("payment intent could not be created")
)

// PaymentError is returned when the gateway refused to create an intent. The
// snapshot or pending registration it names is kept so a retry can reuse it.
type PaymentError struct {
	CheckoutID     string
	RegistrationID string
	Err            error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %v", ErrPaymentUnavailable, e.Err)
}

func (e *PaymentError) Unwrap() []error {
	return []error{ErrPaymentUnavailable, e.Err}
}

// Carts reads the cart a checkout is checked against. LoadCart must not be
// served from a cache.
type Carts interface {
	LoadCart(ctx context.Context, sessionID string) (*models.Cart, error)
}

type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req payment.IntentRequest) (*payment.IntentResult, error)
}

type Users interface {
	GetOrCreateUser(ctx context.Context, c models.Contact) (*models.User, error)
}

// RegistrationStore is what the direct registration flows write to.
type RegistrationStore interface {
	CreateAdultRegistration(ctx context.Context, r *models.AdultRegistration) error
	GetAdultRegistration(ctx context.Context, id string) (*models.AdultRegistration, error)
	SetAdultRegistrationPaymentIntent(ctx context.Context, id, paymentIntentID string) error
	CreateJuniorEnrollment(ctx context.Context, jr *models.JuniorRegistration, jpr *models.JuniorProgramRegistration) error
	GetJuniorProgramRegistration(ctx context.Context, id string) (*models.JuniorProgramRegistration, error)
	SetJuniorProgramRegistrationPaymentIntent(ctx context.Context, id, paymentIntentID string) error
}

// Request is the checkout form submission. TotalAmount is in dollars.
type Request struct {
	Items       []models.CheckoutItem `json:"items"`
	TotalAmount float64               `json:"totalAmount"`
	// CheckoutID is set when retrying an attempt whose intent creation failed.
	CheckoutID string `json:"checkoutId,omitempty"`
}

type Result struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	CheckoutID      string `json:"checkoutId"`
}

type Service struct {
	carts         Carts
	snapshots     *Snapshots
	gateway       Gateway
	users         Users
	registrations RegistrationStore
	currency      string
	log           *logger.Logger
}

func NewService(carts Carts, snapshots *Snapshots, gateway Gateway, users Users, registrations RegistrationStore, currency string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		carts:         carts,
		snapshots:     snapshots,
		gateway:       gateway,
		users:         users,
		registrations: registrations,
		currency:      currency,
		log:           log,
	}
}

func checkoutIdempotencyKey(checkoutID string) string {
	return "checkout-" + checkoutID
}

// ProcessCheckout snapshots the submitted forms and then asks the gateway for
// a payment intent. The snapshot is committed before the gateway call, so a
// webhook for the intent can always find it.
func (s *Service) ProcessCheckout(ctx context.Context, sessionID string, req Request) (*Result, error) {
	if sessionID == "" {
		return nil, ErrCartNotFound
	}
	cart, err := s.carts.LoadCart(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if !cart.Exists() || len(cart.Items) == 0 {
		return nil, ErrCartNotFound
	}
	if len(req.Items) != len(cart.Items) {
		s.log.Infow("checkout rejected, cart changed",
			"cart_id", cart.ID,
			"submitted_items", len(req.Items),
			"cart_items", len(cart.Items),
		)
		return nil, ErrCartChanged
	}
	if err := s.snapshots.ValidateItems(req.Items); err != nil {
		return nil, err
	}

	totalCents, err := models.DollarsToCents(req.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: total amount: %v", ErrInvalidForm, err)
	}
	if totalCents != cart.Total() {
		s.log.Warnw("checkout total differs from cart total",
			"cart_id", cart.ID,
			"submitted_cents", totalCents,
			"cart_cents", cart.Total(),
		)
	}

	snapshot, err := s.snapshotFor(ctx, cart, req, totalCents)
	if err != nil {
		return nil, err
	}
	log := s.log.With("checkout_id", snapshot.CheckoutID, "cart_id", cart.ID)

	intent, err := s.gateway.CreatePaymentIntent(ctx, payment.IntentRequest{
		AmountCents:   snapshot.TotalAmountCents,
		Currency:      s.currency,
		CustomerEmail: snapshot.Items[0].PrimaryEmail(),
		Metadata: models.IntentMetadata{
			Type:       models.PaymentCartCheckout,
			CheckoutID: snapshot.CheckoutID,
			CartID:     cart.ID,
			ItemCount:  len(snapshot.Items),
		},
		IdempotencyKey: checkoutIdempotencyKey(snapshot.CheckoutID),
	})
	if err != nil {
		log.Errorw("payment intent creation failed", "error", err)
		return nil, &PaymentError{CheckoutID: snapshot.CheckoutID, Err: err}
	}

	// The webhook falls back to the checkoutId metadata when this link is
	// missing, so a failure here does not fail the checkout.
	if err := s.snapshots.AttachPaymentIntent(ctx, snapshot.CheckoutID, intent.PaymentIntentID); err != nil {
		log.Errorw("failed to attach payment intent to checkout",
			"payment_intent_id", intent.PaymentIntentID,
			"error", err,
		)
	}

	log.Infow("checkout initiated",
		"payment_intent_id", intent.PaymentIntentID,
		"amount_cents", snapshot.TotalAmountCents,
		"items", len(snapshot.Items),
	)
	return &Result{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.PaymentIntentID,
		CheckoutID:      snapshot.CheckoutID,
	}, nil
}

// snapshotFor reuses the snapshot of a failed attempt when the retry matches
// it, and creates a fresh one otherwise.
func (s *Service) snapshotFor(ctx context.Context, cart *models.Cart, req Request, totalCents int64) (*models.CheckoutSession, error) {
	if req.CheckoutID != "" {
		existing, err := s.snapshots.FindByCheckoutID(ctx, req.CheckoutID)
		switch {
		case err == nil && reusable(existing, cart, req, totalCents, s.snapshots.now()):
			s.log.Infow("reusing checkout snapshot", "checkout_id", existing.CheckoutID, "cart_id", cart.ID)
			return existing, nil
		case err != nil && !errors.Is(err, db.ErrNotFound):
			return nil, fmt.Errorf("load checkout snapshot: %w", err)
		}
	}

	return s.snapshots.Create(ctx, uuid.NewString(), cart.ID, req.Items, totalCents)
}

func reusable(existing *models.CheckoutSession, cart *models.Cart, req Request, totalCents int64, now time.Time) bool {
	return existing.CartID == cart.ID &&
		!existing.StatusAt(now).IsTerminal() &&
		existing.TotalAmountCents == totalCents &&
		len(existing.Items) == len(req.Items)
}
