// internal/payment/stripe.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golf-booking/config"
	"golf-booking/internal/models"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"
)

var (
	ErrWebhookSecretMissing = errors.New("webhook secret is not configured")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrMissingIdempotency   = errors.New("idempotency key is required")
)

// IntentRequest describes one logical charge attempt. IdempotencyKey must be
// stable across retries of the same attempt.
type IntentRequest struct {
	AmountCents    int64
	Currency       string
	CustomerEmail  string
	Metadata       models.IntentMetadata
	IdempotencyKey string
}

type IntentResult struct {
	ClientSecret    string
	PaymentIntentID string
}

type StripeClient struct {
	api           *client.API
	webhookSecret string
	currency      string
	breaker       *gobreaker.CircuitBreaker[*stripe.PaymentIntent]
}

func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	return newStripeClient(cfg, nil)
}

// NewStripeClientWithURL points the API client at a different base URL.
// Network retries are disabled so callers see the first response.
func NewStripeClientWithURL(cfg config.StripeConfig, url string) *StripeClient {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		HTTPClient:        &http.Client{Timeout: 10 * time.Second},
	})
	return newStripeClient(cfg, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func newStripeClient(cfg config.StripeConfig, backends *stripe.Backends) *StripeClient {
	currency := cfg.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}

	return &StripeClient{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
		breaker: gobreaker.NewCircuitBreaker[*stripe.PaymentIntent](gobreaker.Settings{
			Name:        "stripe",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: isProviderHealthy,
		}),
	}
}

// Card declines and bad requests are the caller's problem, not an outage.
func isProviderHealthy(err error) bool {
	if err == nil {
		return true
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 &&
			stripeErr.HTTPStatusCode != http.StatusTooManyRequests
	}
	return false
}

func (s *StripeClient) GetWebhookSecret() string {
	return s.webhookSecret
}

func (s *StripeClient) Currency() string {
	return s.currency
}

func (s *StripeClient) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*IntentResult, error) {
	if req.IdempotencyKey == "" {
		return nil, ErrMissingIdempotency
	}
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("payment amount must be positive, got %d", req.AmountCents)
	}
	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(currency),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata.Map() {
		params.AddMetadata(k, v)
	}

	pi, err := s.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return s.api.PaymentIntents.New(params)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &IntentResult{
		ClientSecret:    pi.ClientSecret,
		PaymentIntentID: pi.ID,
	}, nil
}

func (s *StripeClient) RetrievePaymentIntent(ctx context.Context, id string) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return s.api.PaymentIntents.Get(id, params)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}
	return IntentFromStripe(pi), nil
}

// VerifyWebhookSignature checks the Stripe-Signature header against the raw
// body and returns the decoded event.
func (s *StripeClient) VerifyWebhookSignature(payload []byte, sig string, webhookSecret string) (stripe.Event, error) {
	if webhookSecret == "" {
		return stripe.Event{}, ErrWebhookSecretMissing
	}
	if sig == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEvent(payload, sig, webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

func IntentFromStripe(pi *stripe.PaymentIntent) *models.PaymentIntent {
	out := &models.PaymentIntent{
		ID:          pi.ID,
		AmountCents: pi.Amount,
		Currency:    string(pi.Currency),
		Status:      string(pi.Status),
		Metadata:    models.ParseIntentMetadata(pi.Metadata),
	}
	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
	}
	return out
}
