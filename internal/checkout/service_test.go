package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"golf-booking/internal/cart"
	"golf-booking/internal/catalog/catalogtest"
	"golf-booking/internal/db"
	"golf-booking/internal/identity"
	"golf-booking/internal/models"
	"golf-booking/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu       sync.Mutex
	requests []payment.IntentRequest
	byKey    map[string]string
	fail     error
	// onCreate runs inside the call, before the intent is returned.
	onCreate func(req payment.IntentRequest)
}

func (g *fakeGateway) CreatePaymentIntent(_ context.Context, req payment.IntentRequest) (*payment.IntentResult, error) {
	if g.onCreate != nil {
		g.onCreate(req)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.fail != nil {
		return nil, g.fail
	}
	if g.byKey == nil {
		g.byKey = make(map[string]string)
	}
	id, ok := g.byKey[req.IdempotencyKey]
	if !ok {
		id = fmt.Sprintf("pi_%d", len(g.byKey)+1)
		g.byKey[req.IdempotencyKey] = id
	}
	return &payment.IntentResult{PaymentIntentID: id, ClientSecret: id + "_secret"}, nil
}

type fixture struct {
	store    *db.MemoryDB
	carts    *cart.Service
	gateway  *fakeGateway
	snaps    *Snapshots
	service  *Service
	session  string
	cartRows []models.CartItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithCache(t, nil)
}

func newFixtureWithCache(t *testing.T, cache cart.CartCache) *fixture {
	t.Helper()
	store := db.NewMemoryDB()
	carts := cart.NewService(store, catalogtest.Seed(t, store), cache, cart.DefaultTTL, nil)
	gw := &fakeGateway{}
	snaps := NewSnapshots(store, time.Hour)
	svc := NewService(carts, snaps, gw, identity.NewResolver(store), store, "usd", nil)
	return &fixture{store: store, carts: carts, gateway: gw, snaps: snaps, service: svc, session: "sess-1"}
}

func (f *fixture) fillCart(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, f.session, cart.NewItem{ProgramID: "adult-101", RegistrationType: models.RegistrationAdult, PriceCents: 15000})
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, f.session, cart.NewItem{ProgramID: "junior-camp", ProgramSessionID: "week-2", RegistrationType: models.RegistrationJunior, PriceCents: 12000})
	require.NoError(t, err)

	c, err := f.carts.LoadCart(ctx, f.session)
	require.NoError(t, err)
	f.cartRows = c.Items
}

func (f *fixture) request() Request {
	var items []models.CheckoutItem
	for _, row := range f.cartRows {
		item := models.CheckoutItem{
			CartItemID:       row.ID,
			ProgramID:        row.ProgramID,
			ProgramSessionID: row.ProgramSessionID,
			RegistrationType: row.RegistrationType,
		}
		if row.RegistrationType == models.RegistrationAdult {
			item.Adult = validAdultForm()
		} else {
			item.Junior = validJuniorForm()
		}
		items = append(items, item)
	}
	return Request{Items: items, TotalAmount: 270}
}

func validAdultForm() *models.AdultForm {
	return &models.AdultForm{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", PhoneNumber: "555-0100"}
}

func validJuniorForm() *models.JuniorForm {
	return &models.JuniorForm{
		PrimaryContactFirstName: "Bo", PrimaryContactLastName: "Lee",
		PrimaryContactEmail: "bo@example.com", PrimaryContactPhone: "555-0101",
		PhoneType: "mobile", PreferredContactMethod: "text",
		ChildFirstName: "Cy", ChildLastName: "Lee", ChildAge: 9,
		ChildExperienceLevel: "1 - No Experience",
	}
}

func TestProcessCheckout_SnapshotExistsBeforeIntent(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)

	var seen *models.CheckoutSession
	f.gateway.onCreate = func(req payment.IntentRequest) {
		s, err := f.snaps.FindByCheckoutID(context.Background(), req.Metadata.CheckoutID)
		if assert.NoError(t, err, "snapshot must be stored before the gateway call") {
			seen = s
		}
	}

	res, err := f.service.ProcessCheckout(context.Background(), f.session, f.request())
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, res.CheckoutID, seen.CheckoutID)
	assert.Len(t, seen.Items, 2)
	assert.Equal(t, int64(27000), seen.TotalAmountCents)

	byIntent, err := f.snaps.FindByPaymentIntentID(context.Background(), res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, res.CheckoutID, byIntent.CheckoutID)
	assert.Equal(t, models.CheckoutPending, byIntent.Status)
}

func TestProcessCheckout_IntentRequest(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)

	res, err := f.service.ProcessCheckout(context.Background(), f.session, f.request())
	require.NoError(t, err)
	assert.NotEmpty(t, res.ClientSecret)

	require.Len(t, f.gateway.requests, 1)
	req := f.gateway.requests[0]
	assert.Equal(t, int64(27000), req.AmountCents)
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, "ann@example.com", req.CustomerEmail)
	assert.Equal(t, "checkout-"+res.CheckoutID, req.IdempotencyKey)
	assert.Equal(t, models.IntentMetadata{
		Type:       models.PaymentCartCheckout,
		CheckoutID: res.CheckoutID,
		CartID:     f.cartRows[0].CartID,
		ItemCount:  2,
	}, req.Metadata)
}

func TestProcessCheckout_CartChanged(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)

	req := f.request()
	req.Items = req.Items[:1]
	_, err := f.service.ProcessCheckout(context.Background(), f.session, req)
	assert.ErrorIs(t, err, ErrCartChanged)
	assert.Empty(t, f.gateway.requests)
}

func TestProcessCheckout_NoCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.ProcessCheckout(context.Background(), "nobody", Request{TotalAmount: 1})
	assert.ErrorIs(t, err, ErrCartNotFound)

	_, err = f.service.ProcessCheckout(context.Background(), "", Request{TotalAmount: 1})
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestProcessCheckout_InvalidFormCommitsNothing(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)

	req := f.request()
	req.Items[0].Adult.Email = "not-an-email"
	_, err := f.service.ProcessCheckout(context.Background(), f.session, req)
	assert.ErrorIs(t, err, ErrInvalidForm)
	assert.Empty(t, f.gateway.requests)

	req = f.request()
	req.Items[1].Junior = nil
	_, err = f.service.ProcessCheckout(context.Background(), f.session, req)
	assert.ErrorIs(t, err, ErrInvalidForm)
}

func TestProcessCheckout_GatewayFailureKeepsSnapshotForRetry(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	f.gateway.fail = errors.New("stripe unavailable")

	_, err := f.service.ProcessCheckout(context.Background(), f.session, f.request())
	require.ErrorIs(t, err, ErrPaymentUnavailable)

	var perr *PaymentError
	require.ErrorAs(t, err, &perr)
	require.NotEmpty(t, perr.CheckoutID)

	kept, err := f.snaps.FindByCheckoutID(context.Background(), perr.CheckoutID)
	require.NoError(t, err)
	assert.Empty(t, kept.StripePaymentIntentID)

	f.gateway.fail = nil
	req := f.request()
	req.CheckoutID = perr.CheckoutID
	res, err := f.service.ProcessCheckout(context.Background(), f.session, req)
	require.NoError(t, err)
	assert.Equal(t, perr.CheckoutID, res.CheckoutID)

	require.Len(t, f.gateway.requests, 2)
	assert.Equal(t, f.gateway.requests[0].IdempotencyKey, f.gateway.requests[1].IdempotencyKey)
}

func TestProcessCheckout_RetryOfCompletedCheckoutStartsFresh(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	ctx := context.Background()

	first, err := f.service.ProcessCheckout(ctx, f.session, f.request())
	require.NoError(t, err)
	_, err = f.snaps.Complete(ctx, first.CheckoutID)
	require.NoError(t, err)

	req := f.request()
	req.CheckoutID = first.CheckoutID
	second, err := f.service.ProcessCheckout(ctx, f.session, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.CheckoutID, second.CheckoutID)
	assert.NotEqual(t, first.PaymentIntentID, second.PaymentIntentID)
}

func TestProcessCheckout_SameCheckoutIDReturnsSameIntent(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	ctx := context.Background()

	first, err := f.service.ProcessCheckout(ctx, f.session, f.request())
	require.NoError(t, err)

	req := f.request()
	req.CheckoutID = first.CheckoutID
	second, err := f.service.ProcessCheckout(ctx, f.session, req)
	require.NoError(t, err)
	assert.Equal(t, first.PaymentIntentID, second.PaymentIntentID)
}

// frozenCache serves the same cart for every session and never invalidates.
type frozenCache struct{ cart *models.Cart }

func (c frozenCache) Get(context.Context, string) (*models.Cart, error) { return c.cart, nil }
func (frozenCache) Version(context.Context, string) (int64, error) { return 0, nil }
func (frozenCache) Set(context.Context, string, *models.Cart, int64) error { return nil }
func (frozenCache) Delete(context.Context, string) error { return nil }

func TestProcessCheckout_ChecksCartAgainstStore(t *testing.T) {
	stale := &models.Cart{ID: "old", SessionID: "sess-1", Items: []models.CartItem{
		{ID: "gone", ProgramID: "adult-101", RegistrationType: models.RegistrationAdult, Quantity: 1, PriceAtAddCents: 15000},
	}}
	f := newFixtureWithCache(t, frozenCache{cart: stale})
	f.fillCart(t)
	ctx := context.Background()

	cached, err := f.carts.GetCart(ctx, f.session)
	require.NoError(t, err)
	require.Len(t, cached.Items, 1)

	res, err := f.service.ProcessCheckout(ctx, f.session, f.request())
	require.NoError(t, err)

	session, err := f.snaps.FindByCheckoutID(ctx, res.CheckoutID)
	require.NoError(t, err)
	assert.Len(t, session.Items, 2)
	assert.NotEqual(t, "old", session.CartID)
}

func TestProcessCheckout_TotalOutOfRange(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)

	for _, total := range []float64{-1, 1e300} {
		req := f.request()
		req.TotalAmount = total
		_, err := f.service.ProcessCheckout(context.Background(), f.session, req)
		assert.ErrorIs(t, err, ErrInvalidForm)
	}
	assert.Empty(t, f.gateway.requests)
}

func TestProcessCheckout_ExpiredSnapshotIsNotReused(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t)
	f.gateway.fail = errors.New("stripe unavailable")
	ctx := context.Background()

	_, err := f.service.ProcessCheckout(ctx, f.session, f.request())
	var perr *PaymentError
	require.ErrorAs(t, err, &perr)

	f.gateway.fail = nil
	f.snaps.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	req := f.request()
	req.CheckoutID = perr.CheckoutID
	res, err := f.service.ProcessCheckout(ctx, f.session, req)
	require.NoError(t, err)
	assert.NotEqual(t, perr.CheckoutID, res.CheckoutID)
}
