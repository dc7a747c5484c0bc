package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golf-booking/internal/models"

	"github.com/go-playground/validator/v10"
)

const DefaultSnapshotTTL = time.Hour

type SnapshotRepository interface {
	CreateCheckoutSession(ctx context.Context, s *models.CheckoutSession) error
	AttachPaymentIntent(ctx context.Context, checkoutID, paymentIntentID string) error
	GetCheckoutSessionByCheckoutID(ctx context.Context, checkoutID string) (*models.CheckoutSession, error)
	GetCheckoutSessionByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.CheckoutSession, error)
	CompleteCheckoutSession(ctx context.Context, checkoutID string) (bool, error)
}

// Snapshots records the registration forms of a checkout attempt before any
// payment is requested. Forms are validated here so readers can trust them.
type Snapshots struct {
	repo     SnapshotRepository
	validate *validator.Validate
	ttl      time.Duration
	now      func() time.Time
}

func NewSnapshots(repo SnapshotRepository, ttl time.Duration) *Snapshots {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &Snapshots{
		repo:     repo,
		validate: validator.New(),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create stores a pending snapshot that expires after the configured TTL.
func (s *Snapshots) Create(ctx context.Context, checkoutID, cartID string, items []models.CheckoutItem, totalCents int64) (*models.CheckoutSession, error) {
	if err := s.ValidateItems(items); err != nil {
		return nil, err
	}
	if totalCents <= 0 {
		return nil, fmt.Errorf("%w: total amount must be positive", ErrInvalidForm)
	}

	session := &models.CheckoutSession{
		CheckoutID:       checkoutID,
		CartID:           cartID,
		Items:            items,
		TotalAmountCents: totalCents,
		Status:           models.CheckoutPending,
		ExpiresAt:        s.now().Add(s.ttl),
	}
	if err := s.repo.CreateCheckoutSession(ctx, session); err != nil {
		return nil, fmt.Errorf("store checkout snapshot: %w", err)
	}
	return session, nil
}

// ValidateItems checks that each item carries the form its registration type
// calls for and that the form is complete.
func (s *Snapshots) ValidateItems(items []models.CheckoutItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidForm)
	}

	for i, item := range items {
		if strings.TrimSpace(item.CartItemID) == "" || strings.TrimSpace(item.ProgramID) == "" {
			return fmt.Errorf("%w: item %d is missing its cart item or program", ErrInvalidForm, i+1)
		}

		var form interface{}
		switch item.RegistrationType {
		case models.RegistrationAdult:
			if item.Adult == nil || item.Junior != nil {
				return fmt.Errorf("%w: item %d needs an adult form", ErrInvalidForm, i+1)
			}
			form = item.Adult
		case models.RegistrationJunior:
			if item.Junior == nil || item.Adult != nil {
				return fmt.Errorf("%w: item %d needs a junior form", ErrInvalidForm, i+1)
			}
			form = item.Junior
		default:
			return fmt.Errorf("%w: item %d has unknown registration type %q", ErrInvalidForm, i+1, item.RegistrationType)
		}

		if err := s.validate.Struct(form); err != nil {
			return fmt.Errorf("%w: item %d: %s", ErrInvalidForm, i+1, describe(err))
		}
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(fields, ", ")
}

// AttachPaymentIntent links the snapshot to its intent. It may only be set once.
func (s *Snapshots) AttachPaymentIntent(ctx context.Context, checkoutID, paymentIntentID string) error {
	return s.repo.AttachPaymentIntent(ctx, checkoutID, paymentIntentID)
}

func (s *Snapshots) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.CheckoutSession, error) {
	return s.repo.GetCheckoutSessionByPaymentIntentID(ctx, paymentIntentID)
}

func (s *Snapshots) FindByCheckoutID(ctx context.Context, checkoutID string) (*models.CheckoutSession, error) {
	return s.repo.GetCheckoutSessionByCheckoutID(ctx, checkoutID)
}

// Complete marks the snapshot completed. It reports false when the snapshot
// was already completed, so callers can skip repeated side effects.
func (s *Snapshots) Complete(ctx context.Context, checkoutID string) (bool, error) {
	return s.repo.CompleteCheckoutSession(ctx, checkoutID)
}
