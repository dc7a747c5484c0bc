package server

import (
	"errors"
	"net/http"

	"golf-booking/internal/cart"
	"golf-booking/internal/models"

	"github.com/go-chi/chi/v5"
)

// AddItemRequestDTO is posted from a program page. Price is in dollars.
type AddItemRequestDTO struct {
	ProgramID        string                  `json:"programId"`
	ProgramSessionID string                  `json:"programSessionId,omitempty"`
	RegistrationType models.RegistrationType `json:"registrationType"`
	Price            float64                 `json:"price"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartItemDTO struct {
	ID               string                  `json:"id"`
	ProgramID        string                  `json:"programId"`
	ProgramSessionID string                  `json:"programSessionId,omitempty"`
	RegistrationType models.RegistrationType `json:"registrationType"`
	Quantity         int                     `json:"quantity"`
	Price            string                  `json:"price"`
	PriceCents       int64                   `json:"priceCents"`
}

type CartDTO struct {
	Items      []CartItemDTO `json:"items"`
	Total      string        `json:"total"`
	TotalCents int64         `json:"totalCents"`
	ItemCount  int           `json:"itemCount"`
}

func newCartDTO(c *models.Cart) CartDTO {
	out := CartDTO{
		Items:      make([]CartItemDTO, 0, len(c.Items)),
		TotalCents: c.Total(),
		ItemCount:  c.ItemCount(),
	}
	out.Total = models.FormatCents(out.TotalCents)
	for _, item := range c.Items {
		out.Items = append(out.Items, CartItemDTO{
			ID:               item.ID,
			ProgramID:        item.ProgramID,
			ProgramSessionID: item.ProgramSessionID,
			RegistrationType: item.RegistrationType,
			Quantity:         item.Quantity,
			Price:            models.FormatCents(item.PriceAtAddCents),
			PriceCents:       item.PriceAtAddCents,
		})
	}
	return out
}

func (a *API) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := a.carts.GetCart(r.Context(), a.cookie.sessionID(r))
	if err != nil {
		a.respondInternal(w, r, "failed to load cart", err)
		return
	}
	respondJSON(w, http.StatusOK, newCartDTO(c))
}

func (a *API) getCartCount(w http.ResponseWriter, r *http.Request) {
	n, err := a.carts.ItemCount(r.Context(), a.cookie.sessionID(r))
	if err != nil {
		a.respondInternal(w, r, "failed to count cart items", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (a *API) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	priceCents, err := models.DollarsToCents(req.Price)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_item", err.Error())
		return
	}

	sessionID := a.cookie.ensureSession(w, r)
	_, err = a.carts.AddItem(r.Context(), sessionID, cart.NewItem{
		ProgramID:        req.ProgramID,
		ProgramSessionID: req.ProgramSessionID,
		RegistrationType: req.RegistrationType,
		PriceCents:       priceCents,
	})
	switch {
	case errors.Is(err, cart.ErrInvalidItem):
		respondError(w, http.StatusBadRequest, "invalid_item", err.Error())
		return
	case errors.Is(err, cart.ErrQuantityLimit):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
		return
	case err != nil:
		a.respondInternal(w, r, "failed to add cart item", err)
		return
	}
	a.respondCart(w, r, sessionID, http.StatusCreated)
}

func (a *API) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	sessionID := a.cookie.sessionID(r)
	err := a.carts.UpdateQuantity(r.Context(), sessionID, chi.URLParam(r, "itemID"), req.Quantity)
	if !a.cartMutationOK(w, r, err) {
		return
	}
	a.respondCart(w, r, sessionID, http.StatusOK)
}

func (a *API) removeCartItem(w http.ResponseWriter, r *http.Request) {
	sessionID := a.cookie.sessionID(r)
	err := a.carts.RemoveItem(r.Context(), sessionID, chi.URLParam(r, "itemID"))
	if !a.cartMutationOK(w, r, err) {
		return
	}
	a.respondCart(w, r, sessionID, http.StatusOK)
}

func (a *API) clearCart(w http.ResponseWriter, r *http.Request) {
	sessionID := a.cookie.sessionID(r)
	if err := a.carts.Clear(r.Context(), sessionID); err != nil {
		a.respondInternal(w, r, "failed to clear cart", err)
		return
	}
	a.respondCart(w, r, sessionID, http.StatusOK)
}

func (a *API) cartMutationOK(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, cart.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "not_found", "cart item not found")
	case errors.Is(err, cart.ErrQuantityLimit):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	default:
		a.respondInternal(w, r, "failed to update cart", err)
	}
	return false
}

func (a *API) respondCart(w http.ResponseWriter, r *http.Request, sessionID string, status int) {
	c, err := a.carts.GetCart(r.Context(), sessionID)
	if err != nil {
		a.respondInternal(w, r, "failed to load cart", err)
		return
	}
	respondJSON(w, status, newCartDTO(c))
}
