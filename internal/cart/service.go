package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golf-booking/internal/catalog"
	"golf-booking/internal/db"
	"golf-booking/internal/models"
	"golf-booking/pkg/logger"

	"golang.org/x/sync/singleflight"
)

var (
	ErrItemNotFound  = errors.New("cart item not found")
	ErrInvalidItem   = errors.New("invalid cart item")
	ErrQuantityLimit = fmt.Errorf("quantity is limited to %d per item", models.MaxItemQuantity)
)

const DefaultTTL = 30 * 24 * time.Hour

type Store interface {
	GetCartBySessionID(ctx context.Context, sessionID string) (*models.Cart, error)
	CreateCart(ctx context.Context, cart *models.Cart) error
	TouchCart(ctx context.Context, cartID string, expiresAt time.Time) error
	AddCartItem(ctx context.Context, item *models.CartItem) error
	SetCartItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error
	DeleteCartItem(ctx context.Context, cartID, itemID string) error
	ClearCartItems(ctx context.Context, cartID string) error
	DeleteCart(ctx context.Context, cartID string) (string, error)
}

// Catalog resolves a selection to the program it books. Its sentinel errors
// mark a selection that cannot be booked.
type Catalog interface {
	Resolve(ctx context.Context, programID, sessionID string, t models.RegistrationType) (*models.Program, error)
}

// NewItem is a program selection as submitted from a program page.
type NewItem struct {
	ProgramID        string
	ProgramSessionID string
	RegistrationType models.RegistrationType
	PriceCents       int64
}

// Service is the session-scoped cart. Every operation names the session
// explicitly; reads of an unknown session return an empty cart.
type Service struct {
	store   Store
	catalog Catalog
	cache   CartCache
	sfg     singleflight.Group
	ttl     time.Duration
	log     *logger.Logger
	now     func() time.Time
}

func NewService(store Store, programs Catalog, cache CartCache, ttl time.Duration, log *logger.Logger) *Service {
	if cache == nil {
		cache = NoopCache{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		store:   store,
		catalog: programs,
		cache:   cache,
		ttl:     ttl,
		log:     log,
		now:     time.Now,
	}
}

// GetOrCreateCart slides the expiry of an existing cart or creates one.
func (s *Service) GetOrCreateCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	expiresAt := s.now().Add(s.ttl)

	cart, err := s.store.GetCartBySessionID(ctx, sessionID)
	switch {
	case err == nil:
		if err := s.store.TouchCart(ctx, cart.ID, expiresAt); err != nil {
			return nil, fmt.Errorf("refresh cart expiry: %w", err)
		}
		cart.ExpiresAt = expiresAt
		s.invalidateCache(sessionID)
		return cart, nil
	case !errors.Is(err, db.ErrNotFound):
		return nil, fmt.Errorf("get cart: %w", err)
	}

	cart = &models.Cart{SessionID: sessionID, ExpiresAt: expiresAt}
	err = s.store.CreateCart(ctx, cart)
	if errors.Is(err, db.ErrDuplicate) {
		// Another request for the same session created it first.
		return s.store.GetCartBySessionID(ctx, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return cart, nil
}

// GetCart reads through the cache. Concurrent misses for one session share a
// single store query. The cart is cached only if no writer invalidated the
// session between the version read and the store read.
func (s *Service) GetCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	if sessionID == "" {
		return emptyCart(sessionID), nil
	}

	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, sessionID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warnw("cart cache get failed", "session_id", sessionID, "error", err)
		}

		version, verr := s.cache.Version(ctx, sessionID)
		if verr != nil {
			s.log.Warnw("cart cache version read failed", "session_id", sessionID, "error", verr)
		}

		cart, err = s.store.GetCartBySessionID(ctx, sessionID)
		if errors.Is(err, db.ErrNotFound) {
			return emptyCart(sessionID), nil
		}
		if err != nil {
			return nil, fmt.Errorf("get cart: %w", err)
		}

		if verr == nil {
			s.fillCache(ctx, sessionID, cart, version)
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Cart), nil
}

func (s *Service) fillCache(ctx context.Context, sessionID string, cart *models.Cart, version int64) {
	err := s.cache.Set(ctx, sessionID, cart, version)
	switch {
	case errors.Is(err, ErrStaleCart):
		s.log.Debugw("cart changed during read, not cached", "session_id", sessionID)
	case err != nil:
		s.log.Warnw("cart cache set failed", "session_id", sessionID, "error", err)
	}
}

// LoadCart reads the cart straight from the store, bypassing the cache. Use it
// where a decision depends on the cart's current contents.
func (s *Service) LoadCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	if sessionID == "" {
		return emptyCart(sessionID), nil
	}
	cart, err := s.store.GetCartBySessionID(ctx, sessionID)
	if errors.Is(err, db.ErrNotFound) {
		return emptyCart(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

func emptyCart(sessionID string) *models.Cart {
	return &models.Cart{SessionID: sessionID, Items: []models.CartItem{}}
}

// AddItem puts a program into the session's cart, creating the cart on first
// use. Adding a program already in the cart bumps its quantity. The program
// must exist in the catalog for the item's registration type; the submitted
// price is kept as the frozen price even when the catalog price differs.
func (s *Service) AddItem(ctx context.Context, sessionID string, in NewItem) (*models.CartItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	program, err := s.catalog.Resolve(ctx, in.ProgramID, in.ProgramSessionID, in.RegistrationType)
	if unbookable(err) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidItem, err)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve program: %w", err)
	}
	if program.PriceCents != in.PriceCents {
		s.log.Warnw("cart price differs from catalog price",
			"program_id", program.ID,
			"submitted_cents", in.PriceCents,
			"catalog_cents", program.PriceCents,
		)
	}

	cart, err := s.GetOrCreateCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	item := &models.CartItem{
		CartID:           cart.ID,
		ProgramID:        in.ProgramID,
		ProgramSessionID: in.ProgramSessionID,
		RegistrationType: in.RegistrationType,
		PriceAtAddCents:  in.PriceCents,
	}
	err = s.store.AddCartItem(ctx, item)
	if errors.Is(err, db.ErrLimit) {
		return nil, ErrQuantityLimit
	}
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}

	s.invalidateCache(sessionID)
	s.log.Infow("cart item added",
		"cart_id", cart.ID,
		"program_id", item.ProgramID,
		"quantity", item.Quantity,
	)
	return item, nil
}

func unbookable(err error) bool {
	return errors.Is(err, catalog.ErrProgramNotFound) ||
		errors.Is(err, catalog.ErrSessionNotFound) ||
		errors.Is(err, catalog.ErrTypeMismatch) ||
		errors.Is(err, catalog.ErrSessionClosed)
}

func (in NewItem) validate() error {
	switch {
	case strings.TrimSpace(in.ProgramID) == "":
		return fmt.Errorf("%w: program id is required", ErrInvalidItem)
	case !in.RegistrationType.Valid():
		return fmt.Errorf("%w: unknown registration type %q", ErrInvalidItem, in.RegistrationType)
	case in.PriceCents < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalidItem)
	}
	return nil
}

// UpdateQuantity sets an item's quantity; zero or less removes it.
func (s *Service) UpdateQuantity(ctx context.Context, sessionID, itemID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, sessionID, itemID)
	}
	if quantity > models.MaxItemQuantity {
		return ErrQuantityLimit
	}

	cart, err := s.existingCart(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.store.SetCartItemQuantity(ctx, cart.ID, itemID, quantity); err != nil {
		return itemErr("update quantity", err)
	}

	s.invalidateCache(sessionID)
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, sessionID, itemID string) error {
	cart, err := s.existingCart(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCartItem(ctx, cart.ID, itemID); err != nil {
		return itemErr("remove item", err)
	}

	s.invalidateCache(sessionID)
	return nil
}

// Clear empties the cart but keeps it. Clearing an unknown session is a no-op.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	cart, err := s.store.GetCartBySessionID(ctx, sessionID)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	if err := s.store.ClearCartItems(ctx, cart.ID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	s.invalidateCache(sessionID)
	return nil
}

// Delete removes the cart by id. Deleting a cart that is already gone is not
// an error.
func (s *Service) Delete(ctx context.Context, cartID string) error {
	sessionID, err := s.store.DeleteCart(ctx, cartID)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}

	s.invalidateCache(sessionID)
	return nil
}

// Total is the cart total in cents.
func (s *Service) Total(ctx context.Context, sessionID string) (int64, error) {
	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return cart.Total(), nil
}

func (s *Service) ItemCount(ctx context.Context, sessionID string) (int, error) {
	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return cart.ItemCount(), nil
}

func (s *Service) existingCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	cart, err := s.store.GetCartBySessionID(ctx, sessionID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

func itemErr(op string, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrItemNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) invalidateCache(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		s.log.Warnw("cart cache invalidate failed", "session_id", sessionID, "error", err)
	}
}
