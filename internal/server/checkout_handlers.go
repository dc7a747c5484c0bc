package server

import (
	"errors"
	"net/http"
	"time"

	"golf-booking/internal/checkout"

	"github.com/go-chi/chi/v5"
)

const (
	msgCartChanged    = "Cart has changed. Please refresh and try again."
	msgPaymentFailure = "Failed to create payment intent. Please try again."
)

func (a *API) processCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := a.checkout.ProcessCheckout(r.Context(), a.cookie.sessionID(r), req)
	if err != nil {
		a.respondCheckoutError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (a *API) registerAdult(w http.ResponseWriter, r *http.Request) {
	var req checkout.AdultRegistrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := a.checkout.InitializeAdultRegistration(r.Context(), req)
	if err != nil {
		a.respondCheckoutError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (a *API) registerJunior(w http.ResponseWriter, r *http.Request) {
	var req checkout.JuniorRegistrationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := a.checkout.InitializeJuniorRegistration(r.Context(), req)
	if err != nil {
		a.respondCheckoutError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (a *API) respondCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *checkout.PaymentError
	switch {
	case errors.Is(err, checkout.ErrCartNotFound):
		respondError(w, http.StatusNotFound, "cart_not_found", "Cart not found")
	case errors.Is(err, checkout.ErrCartChanged):
		respondError(w, http.StatusConflict, "cart_changed", msgCartChanged)
	case errors.Is(err, checkout.ErrInvalidForm):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Some registration details are missing or invalid.",
			Code:    "invalid_form",
			Details: err.Error(),
		})
	case errors.As(err, &perr):
		a.logger.Errorw("payment intent creation failed",
			"checkout_id", perr.CheckoutID,
			"registration_id", perr.RegistrationID,
			"error", perr.Err,
		)
		respondJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:          msgPaymentFailure,
			Code:           "payment_unavailable",
			CheckoutID:     perr.CheckoutID,
			RegistrationID: perr.RegistrationID,
		})
	default:
		a.respondInternal(w, r, "checkout failed", err)
	}
}

// PaymentStatusDTO reports the provider's view of an intent alongside the
// local checkout snapshot, when there is one.
type PaymentStatusDTO struct {
	PaymentIntentID string `json:"paymentIntentId"`
	Status          string `json:"status"`
	AmountCents     int64  `json:"amountCents"`
	Currency        string `json:"currency"`
	CheckoutID      string `json:"checkoutId,omitempty"`
	CheckoutStatus  string `json:"checkoutStatus,omitempty"`
}

func (a *API) getPaymentStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "paymentIntentID")
	if a.intents == nil {
		respondError(w, http.StatusServiceUnavailable, "payment_unavailable", "payment provider is not configured")
		return
	}

	pi, err := a.intents.RetrievePaymentIntent(r.Context(), id)
	if err != nil {
		a.logger.Warnw("failed to retrieve payment intent", "payment_intent_id", id, "error", err)
		respondError(w, http.StatusNotFound, "not_found", "payment intent not found")
		return
	}

	out := PaymentStatusDTO{
		PaymentIntentID: pi.ID,
		Status:          pi.Status,
		AmountCents:     pi.AmountCents,
		Currency:        pi.Currency,
	}
	session, err := a.snapshots.FindByPaymentIntentID(r.Context(), pi.ID)
	switch {
	case err == nil:
		out.CheckoutID = session.CheckoutID
		out.CheckoutStatus = session.StatusAt(time.Now()).String()
	case !isNotFound(err):
		a.respondInternal(w, r, "failed to load checkout session", err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}
