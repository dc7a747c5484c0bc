package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golf-booking/config"
	"golf-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"
)

const testSecret = "whsec_test"

type recordedRequest struct {
	path           string
	idempotencyKey string
	form           map[string][]string
}

// fakeStripe answers payment intent calls the way the API does.
func fakeStripe(t *testing.T, status int) (*httptest.Server, *[]recordedRequest) {
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		reqs = append(reqs, recordedRequest{
			path:           r.URL.Path,
			idempotencyKey: r.Header.Get("Idempotency-Key"),
			form:           r.PostForm,
		})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			fmt.Fprint(w, `{"error":{"type":"api_error","message":"boom"}}`)
			return
		}
		fmt.Fprint(w, `{"id":"pi_123","object":"payment_intent","amount":27000,"currency":"usd",
			"status":"requires_payment_method","client_secret":"pi_123_secret_abc",
			"customer":"cus_9","metadata":{"type":"cart_checkout","checkoutId":"co-1"}}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func newTestClient(url string) *StripeClient {
	return NewStripeClientWithURL(config.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testSecret,
		Currency:      "usd",
	}, url)
}

func TestCreatePaymentIntent(t *testing.T) {
	srv, reqs := fakeStripe(t, http.StatusOK)
	c := newTestClient(srv.URL)

	res, err := c.CreatePaymentIntent(context.Background(), IntentRequest{
		AmountCents:    27000,
		CustomerEmail:  "ann@example.com",
		IdempotencyKey: "checkout-co-1",
		Metadata:       models.IntentMetadata{Type: models.PaymentCartCheckout, CheckoutID: "co-1", CartID: "cart-1", ItemCount: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", res.PaymentIntentID)
	assert.Equal(t, "pi_123_secret_abc", res.ClientSecret)

	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, "/v1/payment_intents", got.path)
	assert.Equal(t, "checkout-co-1", got.idempotencyKey)
	assert.Equal(t, []string{"27000"}, got.form["amount"])
	assert.Equal(t, []string{"usd"}, got.form["currency"])
	assert.Equal(t, []string{"ann@example.com"}, got.form["receipt_email"])
	assert.Equal(t, []string{"cart_checkout"}, got.form["metadata[type]"])
	assert.Equal(t, []string{"co-1"}, got.form["metadata[checkoutId]"])
	assert.Equal(t, []string{"2"}, got.form["metadata[itemCount]"])
}

func TestCreatePaymentIntent_RequiresIdempotencyKey(t *testing.T) {
	srv, reqs := fakeStripe(t, http.StatusOK)
	c := newTestClient(srv.URL)

	_, err := c.CreatePaymentIntent(context.Background(), IntentRequest{AmountCents: 100})
	assert.ErrorIs(t, err, ErrMissingIdempotency)

	_, err = c.CreatePaymentIntent(context.Background(), IntentRequest{AmountCents: 0, IdempotencyKey: "k"})
	assert.Error(t, err)
	assert.Empty(t, *reqs)
}

func TestCreatePaymentIntent_ProviderError(t *testing.T) {
	srv, _ := fakeStripe(t, http.StatusInternalServerError)
	c := newTestClient(srv.URL)

	_, err := c.CreatePaymentIntent(context.Background(), IntentRequest{AmountCents: 100, IdempotencyKey: "k"})
	require.Error(t, err)
}

func TestRetrievePaymentIntent(t *testing.T) {
	srv, reqs := fakeStripe(t, http.StatusOK)
	c := newTestClient(srv.URL)

	pi, err := c.RetrievePaymentIntent(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, "pi_123", pi.ID)
	assert.Equal(t, int64(27000), pi.AmountCents)
	assert.Equal(t, "cus_9", pi.CustomerID)
	assert.Equal(t, "requires_payment_method", pi.Status)
	assert.Equal(t, models.PaymentCartCheckout, pi.Metadata.Type)
	assert.Equal(t, "co-1", pi.Metadata.CheckoutID)
	assert.Equal(t, "/v1/payment_intents/pi_123", (*reqs)[0].path)
}

func TestIsProviderHealthy(t *testing.T) {
	assert.True(t, isProviderHealthy(nil))
	assert.True(t, isProviderHealthy(&stripe.Error{HTTPStatusCode: http.StatusPaymentRequired}))
	assert.False(t, isProviderHealthy(&stripe.Error{HTTPStatusCode: http.StatusTooManyRequests}))
	assert.False(t, isProviderHealthy(&stripe.Error{HTTPStatusCode: http.StatusBadGateway}))
	assert.False(t, isProviderHealthy(fmt.Errorf("dial tcp: refused")))
}

func signedPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, secret)
	return fmt.Sprintf("t=%d,v1=%x", now.Unix(), sig)
}

func testEvent(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"id":          "evt_1",
		"object":      "event",
		"type":        "payment_intent.succeeded",
		"api_version": stripe.APIVersion,
		"data": map[string]interface{}{
			"object": map[string]interface{}{"id": "pi_123", "object": "payment_intent", "amount": 100},
		},
	})
	require.NoError(t, err)
	return raw
}

func TestVerifyWebhookSignature(t *testing.T) {
	c := newTestClient("http://unused")
	payload := testEvent(t)

	event, err := c.VerifyWebhookSignature(payload, signedPayload(t, payload, testSecret), c.GetWebhookSecret())
	require.NoError(t, err)
	assert.Equal(t, "payment_intent.succeeded", event.Type)

	_, err = c.VerifyWebhookSignature(payload, signedPayload(t, payload, "whsec_other"), testSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = ' '
	_, err = c.VerifyWebhookSignature(tampered, signedPayload(t, payload, testSecret), testSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = c.VerifyWebhookSignature(payload, "", testSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = c.VerifyWebhookSignature(payload, signedPayload(t, payload, testSecret), "")
	assert.ErrorIs(t, err, ErrWebhookSecretMissing)
}
