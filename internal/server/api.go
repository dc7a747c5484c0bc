package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golf-booking/internal/cart"
	"golf-booking/internal/catalog"
	"golf-booking/internal/checkout"
	"golf-booking/internal/db"
	"golf-booking/internal/models"
	"golf-booking/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxRequestBodySize = 1 << 20

type IntentRetriever interface {
	RetrievePaymentIntent(ctx context.Context, id string) (*models.PaymentIntent, error)
}

type Deps struct {
	Carts     *cart.Service
	Catalog   *catalog.Service
	Checkout  *checkout.Service
	Snapshots *checkout.Snapshots
	Intents   IntentRetriever
	Webhook   http.Handler
	Health    func(ctx context.Context) error
	Cookie    CookieConfig
	Timeout   time.Duration
	Logger    *logger.Logger
}

// API is the JSON surface for the booking pages. The cart session comes from
// a cookie; everything below this layer takes it as an explicit argument.
type API struct {
	carts     *cart.Service
	catalog   *catalog.Service
	checkout  *checkout.Service
	snapshots *checkout.Snapshots
	intents   IntentRetriever
	webhook   http.Handler
	health    func(ctx context.Context) error
	cookie    CookieConfig
	timeout   time.Duration
	logger    *logger.Logger
}

func NewAPI(d Deps) *API {
	if d.Cookie.Name == "" {
		d.Cookie.Name = "cart_session_id"
	}
	if d.Cookie.TTL <= 0 {
		d.Cookie.TTL = cart.DefaultTTL
	}
	if d.Timeout <= 0 {
		d.Timeout = 30 * time.Second
	}
	if d.Logger == nil {
		d.Logger = logger.NewNop()
	}
	return &API{
		carts:     d.Carts,
		catalog:   d.Catalog,
		checkout:  d.Checkout,
		snapshots: d.Snapshots,
		intents:   d.Intents,
		webhook:   d.Webhook,
		health:    d.Health,
		cookie:    d.Cookie,
		timeout:   d.Timeout,
		logger:    d.Logger,
	}
}

func (a *API) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(a.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", a.handleHealth)

	// The webhook reads the raw body itself and must not be cut off by the
	// API timeout while the materializer is writing.
	if a.webhook != nil {
		r.Method(http.MethodPost, "/api/webhooks/stripe", a.webhook)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(a.timeout))
		r.Use(middleware.RequestSize(maxRequestBodySize))

		if a.catalog != nil {
			r.Get("/api/programs", a.listPrograms)
			r.Get("/api/programs/{programID}", a.getProgram)
		}

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", a.getCart)
			r.Get("/count", a.getCartCount)
			r.Delete("/", a.clearCart)
			r.Post("/items", a.addCartItem)
			r.Patch("/items/{itemID}", a.updateCartItem)
			r.Delete("/items/{itemID}", a.removeCartItem)
		})

		r.Post("/api/checkout", a.processCheckout)
		r.Get("/api/checkout/intents/{paymentIntentID}", a.getPaymentStatus)

		r.Post("/api/registrations/adult", a.registerAdult)
		r.Post("/api/registrations/junior", a.registerJunior)
	})

	return r
}

type ErrorResponse struct {
	Error          string `json:"error"`
	Code           string `json:"code,omitempty"`
	Details        string `json:"details,omitempty"`
	CheckoutID     string `json:"checkoutId,omitempty"`
	RegistrationID string `json:"registrationId,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.health(ctx); err != nil {
			a.logger.Warnw("health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondInternal logs err with request context and hides it from the caller.
func (a *API) respondInternal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	a.logger.Errorw(msg,
		"error", err,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}
