package registration

import (
	"context"
	"errors"
	"fmt"

	"golf-booking/internal/db"
	"golf-booking/internal/models"
	"golf-booking/pkg/logger"
)

type Store interface {
	CreateAdultRegistration(ctx context.Context, r *models.AdultRegistration) error
	GetAdultRegistration(ctx context.Context, id string) (*models.AdultRegistration, error)
	GetAdultRegistrationByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.AdultRegistration, error)
	SetAdultRegistrationPaymentIntent(ctx context.Context, id, paymentIntentID string) error
	UpdateAdultRegistrationPayment(ctx context.Context, id string, u models.PaymentUpdate) error

	CreateJuniorEnrollment(ctx context.Context, jr *models.JuniorRegistration, jpr *models.JuniorProgramRegistration) error
	GetJuniorProgramRegistration(ctx context.Context, id string) (*models.JuniorProgramRegistration, error)
	GetJuniorProgramRegistrationByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.JuniorProgramRegistration, error)
	SetJuniorProgramRegistrationPaymentIntent(ctx context.Context, id, paymentIntentID string) error
	UpdateJuniorProgramRegistrationPayment(ctx context.Context, id string, u models.PaymentUpdate) error
}

type Snapshots interface {
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.CheckoutSession, error)
	FindByCheckoutID(ctx context.Context, checkoutID string) (*models.CheckoutSession, error)
	AttachPaymentIntent(ctx context.Context, checkoutID, paymentIntentID string) error
	Complete(ctx context.Context, checkoutID string) (bool, error)
}

type Users interface {
	GetOrCreateUser(ctx context.Context, c models.Contact) (*models.User, error)
}

type Carts interface {
	Delete(ctx context.Context, cartID string) error
}

// Materializer turns confirmed payments into registration rows. It is the
// only writer of paid registrations and is safe to run for the same intent
// any number of times, concurrently included.
type Materializer struct {
	store     Store
	snapshots Snapshots
	users     Users
	carts     Carts
	log       *logger.Logger
}

func NewMaterializer(store Store, snapshots Snapshots, users Users, carts Carts, log *logger.Logger) *Materializer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Materializer{
		store:     store,
		snapshots: snapshots,
		users:     users,
		carts:     carts,
		log:       log,
	}
}

// HandleSucceeded records a successful payment. A returned error means the
// event should be redelivered; missing data is logged and swallowed.
func (m *Materializer) HandleSucceeded(ctx context.Context, pi *models.PaymentIntent) error {
	log := m.log.With("payment_intent_id", pi.ID, "type", pi.Metadata.Type)

	switch pi.Metadata.Type {
	case models.PaymentCartCheckout:
		return m.materializeCheckout(ctx, pi, log)
	case models.PaymentAdultRegistration:
		return m.settleAdult(ctx, pi, models.PaymentPaid, log)
	case models.PaymentJuniorRegistration:
		return m.settleJunior(ctx, pi, models.PaymentPaid, log)
	default:
		log.Infow("ignoring payment intent with unknown type")
		return nil
	}
}

// HandleFailed records a failed payment. Cart checkouts have no rows yet, so
// their snapshot is simply left to expire.
func (m *Materializer) HandleFailed(ctx context.Context, pi *models.PaymentIntent) error {
	return m.handleUnpaid(ctx, pi, models.PaymentFailed)
}

func (m *Materializer) HandleCanceled(ctx context.Context, pi *models.PaymentIntent) error {
	return m.handleUnpaid(ctx, pi, models.PaymentCancelled)
}

func (m *Materializer) handleUnpaid(ctx context.Context, pi *models.PaymentIntent, status models.PaymentStatus) error {
	log := m.log.With("payment_intent_id", pi.ID, "type", pi.Metadata.Type, "status", status)

	switch pi.Metadata.Type {
	case models.PaymentCartCheckout:
		log.Infow("cart checkout payment not completed", "checkout_id", pi.Metadata.CheckoutID)
		return nil
	case models.PaymentAdultRegistration:
		return m.settleAdult(ctx, pi, status, log)
	case models.PaymentJuniorRegistration:
		return m.settleJunior(ctx, pi, status, log)
	default:
		log.Infow("ignoring payment intent with unknown type")
		return nil
	}
}

func (m *Materializer) materializeCheckout(ctx context.Context, pi *models.PaymentIntent, log *logger.Logger) error {
	session, err := m.findCheckout(ctx, pi, log)
	if err != nil || session == nil {
		return err
	}
	log = log.With("checkout_id", session.CheckoutID, "cart_id", session.CartID)

	if session.Status == models.CheckoutCompleted {
		log.Infow("checkout already completed, skipping duplicate event")
		return nil
	}

	charged := pi.AmountCents
	if charged <= 0 {
		charged = session.TotalAmountCents
	}
	amounts := SplitEvenly(charged, len(session.Items))

	var created, duplicates, failed int
	for i, item := range session.Items {
		err := m.materializeItem(ctx, pi, item, amounts[i])
		switch {
		case err == nil:
			created++
		case errors.Is(err, db.ErrDuplicate):
			duplicates++
			log.Infow("registration already recorded", "cart_item_id", item.CartItemID)
		default:
			failed++
			log.Errorw("failed to materialize checkout item",
				"cart_item_id", item.CartItemID,
				"program_id", item.ProgramID,
				"registration_type", item.RegistrationType,
				"error", err,
			)
		}
	}

	if _, err := m.snapshots.Complete(ctx, session.CheckoutID); err != nil {
		log.Errorw("failed to mark checkout completed", "error", err)
	}
	if err := m.carts.Delete(ctx, session.CartID); err != nil {
		log.Errorw("failed to delete cart after checkout", "error", err)
	}

	log.Infow("checkout materialized",
		"created", created,
		"duplicates", duplicates,
		"failed", failed,
		"amount_cents", charged,
	)
	return nil
}

// findCheckout returns nil without error when there is nothing to
// materialize. The snapshot is normally found by intent; if the webhook beat
// the attach step it is found by the checkoutId tag and attached here.
func (m *Materializer) findCheckout(ctx context.Context, pi *models.PaymentIntent, log *logger.Logger) (*models.CheckoutSession, error) {
	session, err := m.snapshots.FindByPaymentIntentID(ctx, pi.ID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("find checkout session: %w", err)
	}

	checkoutID := pi.Metadata.CheckoutID
	if checkoutID == "" {
		log.Errorw("no checkout session for payment intent")
		return nil, nil
	}
	session, err = m.snapshots.FindByCheckoutID(ctx, checkoutID)
	if errors.Is(err, db.ErrNotFound) {
		log.Errorw("no checkout session for payment intent", "checkout_id", checkoutID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find checkout session: %w", err)
	}
	if pi.Metadata.CartID != "" && session.CartID != pi.Metadata.CartID {
		log.Errorw("checkout session belongs to a different cart",
			"checkout_id", checkoutID,
			"session_cart_id", session.CartID,
			"intent_cart_id", pi.Metadata.CartID,
		)
		return nil, nil
	}

	err = m.snapshots.AttachPaymentIntent(ctx, checkoutID, pi.ID)
	if errors.Is(err, db.ErrConflict) || errors.Is(err, db.ErrDuplicate) {
		log.Errorw("checkout session is linked to another payment intent",
			"checkout_id", checkoutID,
			"linked_payment_intent_id", session.StripePaymentIntentID,
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("attach payment intent: %w", err)
	}
	session.StripePaymentIntentID = pi.ID
	log.Warnw("checkout session found by checkout id", "checkout_id", checkoutID)
	return session, nil
}

// materializeItem writes one paid registration. db.ErrDuplicate means an
// earlier delivery already wrote it.
func (m *Materializer) materializeItem(ctx context.Context, pi *models.PaymentIntent, item models.CheckoutItem, amount int64) error {
	switch item.RegistrationType {
	case models.RegistrationAdult:
		if item.Adult == nil {
			return errors.New("adult item has no form")
		}
		user, err := m.users.GetOrCreateUser(ctx, item.Adult.Contact())
		if err != nil {
			return fmt.Errorf("resolve user: %w", err)
		}
		return m.store.CreateAdultRegistration(ctx, &models.AdultRegistration{
			UserID:                user.ID,
			ProgramID:             item.ProgramID,
			ProgramSessionID:      item.ProgramSessionID,
			AdditionalComments:    item.Adult.AdditionalComments,
			CheckoutItemID:        item.CartItemID,
			StripePaymentIntentID: pi.ID,
			StripeCustomerID:      pi.CustomerID,
			PaymentStatus:         models.PaymentPaid,
			PaymentAmountCents:    &amount,
		})

	case models.RegistrationJunior:
		if item.Junior == nil {
			return errors.New("junior item has no form")
		}
		user, err := m.users.GetOrCreateUser(ctx, item.Junior.Contact())
		if err != nil {
			return fmt.Errorf("resolve user: %w", err)
		}
		return m.store.CreateJuniorEnrollment(ctx,
			models.NewJuniorRegistration(user.ID, item.Junior),
			&models.JuniorProgramRegistration{
				ProgramID:             item.ProgramID,
				ProgramSessionID:      item.ProgramSessionID,
				CheckoutItemID:        item.CartItemID,
				StripePaymentIntentID: pi.ID,
				StripeCustomerID:      pi.CustomerID,
				PaymentStatus:         models.PaymentPaid,
				PaymentAmountCents:    &amount,
			},
		)
	}
	return fmt.Errorf("unknown registration type %q", item.RegistrationType)
}

// settleAdult moves a pending direct registration to status. Rows are never
// created here, and a paid row never changes again.
func (m *Materializer) settleAdult(ctx context.Context, pi *models.PaymentIntent, status models.PaymentStatus, log *logger.Logger) error {
	reg, err := m.store.GetAdultRegistrationByPaymentIntentID(ctx, pi.ID)
	if errors.Is(err, db.ErrNotFound) && pi.Metadata.AdultRegistrationID != "" {
		reg, err = m.adoptAdult(ctx, pi)
	}
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrConflict) {
		log.Warnw("no pending adult registration for payment intent",
			"adult_registration_id", pi.Metadata.AdultRegistrationID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("find adult registration: %w", err)
	}

	log = log.With("adult_registration_id", reg.ID)
	if !transitionAllowed(reg.PaymentStatus, status) {
		log.Infow("adult registration already settled", "current_status", reg.PaymentStatus)
		return nil
	}
	if err := m.store.UpdateAdultRegistrationPayment(ctx, reg.ID, paymentUpdate(pi, status)); err != nil {
		return fmt.Errorf("update adult registration: %w", err)
	}
	log.Infow("adult registration payment updated")
	return nil
}

// adoptAdult links the intent to the registration named in its metadata when
// the webhook arrived before the initiating request saved the link.
func (m *Materializer) adoptAdult(ctx context.Context, pi *models.PaymentIntent) (*models.AdultRegistration, error) {
	reg, err := m.store.GetAdultRegistration(ctx, pi.Metadata.AdultRegistrationID)
	if err != nil {
		return nil, err
	}
	if reg.CheckoutItemID != "" || (reg.StripePaymentIntentID != "" && reg.StripePaymentIntentID != pi.ID) {
		return nil, db.ErrConflict
	}
	if err := m.store.SetAdultRegistrationPaymentIntent(ctx, reg.ID, pi.ID); err != nil {
		return nil, err
	}
	reg.StripePaymentIntentID = pi.ID
	return reg, nil
}

func (m *Materializer) settleJunior(ctx context.Context, pi *models.PaymentIntent, status models.PaymentStatus, log *logger.Logger) error {
	reg, err := m.store.GetJuniorProgramRegistrationByPaymentIntentID(ctx, pi.ID)
	if errors.Is(err, db.ErrNotFound) && pi.Metadata.JuniorProgramRegistrationID != "" {
		reg, err = m.adoptJunior(ctx, pi)
	}
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrConflict) {
		log.Warnw("no pending junior program registration for payment intent",
			"junior_program_registration_id", pi.Metadata.JuniorProgramRegistrationID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("find junior program registration: %w", err)
	}

	log = log.With("junior_program_registration_id", reg.ID)
	if !transitionAllowed(reg.PaymentStatus, status) {
		log.Infow("junior program registration already settled", "current_status", reg.PaymentStatus)
		return nil
	}
	if err := m.store.UpdateJuniorProgramRegistrationPayment(ctx, reg.ID, paymentUpdate(pi, status)); err != nil {
		return fmt.Errorf("update junior program registration: %w", err)
	}
	log.Infow("junior program registration payment updated")
	return nil
}

func (m *Materializer) adoptJunior(ctx context.Context, pi *models.PaymentIntent) (*models.JuniorProgramRegistration, error) {
	reg, err := m.store.GetJuniorProgramRegistration(ctx, pi.Metadata.JuniorProgramRegistrationID)
	if err != nil {
		return nil, err
	}
	if reg.CheckoutItemID != "" || (reg.StripePaymentIntentID != "" && reg.StripePaymentIntentID != pi.ID) {
		return nil, db.ErrConflict
	}
	if err := m.store.SetJuniorProgramRegistrationPaymentIntent(ctx, reg.ID, pi.ID); err != nil {
		return nil, err
	}
	reg.StripePaymentIntentID = pi.ID
	return reg, nil
}

// Paid is terminal. A failed payment may still be retried on the same intent
// and succeed.
func transitionAllowed(from, to models.PaymentStatus) bool {
	switch from {
	case models.PaymentPaid, models.PaymentCancelled:
		return false
	case models.PaymentFailed:
		return to != models.PaymentFailed
	}
	return true
}

func paymentUpdate(pi *models.PaymentIntent, status models.PaymentStatus) models.PaymentUpdate {
	u := models.PaymentUpdate{Status: status}
	if status != models.PaymentPaid {
		return u
	}
	if pi.CustomerID != "" {
		customer := pi.CustomerID
		u.StripeCustomerID = &customer
	}
	amount := pi.AmountCents
	u.PaymentAmountCents = &amount
	return u
}
