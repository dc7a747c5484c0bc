package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golf-booking/internal/models"
	"golf-booking/internal/payment"
	"golf-booking/pkg/logger"

	"github.com/stripe/stripe-go/v72"
)

// MaxBodyBytes caps the webhook payload. Stripe events are far smaller.
const MaxBodyBytes = 65536

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventPaymentCanceled  = "payment_intent.canceled"
)

var errMalformedEvent = errors.New("malformed event payload")

type Verifier interface {
	GetWebhookSecret() string
	VerifyWebhookSignature(payload []byte, sig string, webhookSecret string) (stripe.Event, error)
}

type Processor interface {
	HandleSucceeded(ctx context.Context, pi *models.PaymentIntent) error
	HandleFailed(ctx context.Context, pi *models.PaymentIntent) error
	HandleCanceled(ctx context.Context, pi *models.PaymentIntent) error
}

type Handler struct {
	verifier  Verifier
	processor Processor
	logger    *logger.Logger
}

func NewHandler(verifier Verifier, processor Processor, logger *logger.Logger) *Handler {
	return &Handler{
		verifier:  verifier,
		processor: processor,
		logger:    logger,
	}
}

// HandleStripeWebhook verifies and dispatches one delivery. Anything other
// than 200 makes Stripe redeliver, so only configuration, signature and
// unexpected processing errors fail the call.
func (h *Handler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Errorw("panic while processing webhook", "panic", rec)
			http.Error(w, "Webhook processing failed", http.StatusInternalServerError)
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		h.logger.Errorw("failed to read webhook body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	webhookSecret := h.verifier.GetWebhookSecret()
	if webhookSecret == "" {
		h.logger.Errorw("webhook secret is not configured")
		http.Error(w, "Webhook not configured", http.StatusInternalServerError)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.logger.Warnw("missing Stripe signature header")
		http.Error(w, "Missing signature", http.StatusBadRequest)
		return
	}

	event, err := h.verifier.VerifyWebhookSignature(body, signature, webhookSecret)
	if err != nil {
		h.logger.Warnw("failed to verify webhook signature", "error", err)
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	log := h.logger.With("event_id", event.ID, "event_type", event.Type)
	err = h.Dispatch(r.Context(), event)
	switch {
	case errors.Is(err, errMalformedEvent):
		log.Errorw("failed to parse webhook event", "error", err)
		http.Error(w, "Failed to parse event data", http.StatusBadRequest)
		return
	case err != nil:
		log.Errorw("failed to process webhook event", "error", err)
		http.Error(w, "Webhook processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

// Dispatch routes a verified event to the processor. Unhandled event types
// are acknowledged without work.
func (h *Handler) Dispatch(ctx context.Context, event stripe.Event) error {
	var handle func(context.Context, *models.PaymentIntent) error
	switch event.Type {
	case EventPaymentSucceeded:
		handle = h.processor.HandleSucceeded
	case EventPaymentFailed:
		handle = h.processor.HandleFailed
	case EventPaymentCanceled:
		handle = h.processor.HandleCanceled
	default:
		h.logger.Debugw("ignoring webhook event", "event_id", event.ID, "event_type", event.Type)
		return nil
	}

	pi, err := parseIntent(event)
	if err != nil {
		return err
	}
	h.logger.Infow("payment intent event received",
		"event_id", event.ID,
		"event_type", event.Type,
		"payment_intent_id", pi.ID,
		"payment_type", pi.Metadata.Type,
		"amount_cents", pi.AmountCents,
	)
	return handle(ctx, pi)
}

func parseIntent(event stripe.Event) (*models.PaymentIntent, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("%w: no data", errMalformedEvent)
	}
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if intent.ID == "" {
		return nil, fmt.Errorf("%w: payment intent has no id", errMalformedEvent)
	}
	return payment.IntentFromStripe(&intent), nil
}
