package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golf-booking/internal/models"

	"github.com/google/uuid"
)

// MemoryDB keeps every table in process memory and enforces the same unique
// keys as the Postgres schema. It backs the "memory" store and the tests.
type MemoryDB struct {
	mu sync.RWMutex

	users        map[string]*models.User // by id
	usersByEmail map[string]string

	carts          map[string]*models.Cart // by id, items held in cartItems
	cartsBySession map[string]string
	cartItems      map[string]*models.CartItem

	checkouts         map[string]*models.CheckoutSession // by checkout id
	checkoutsByIntent map[string]string

	adults            map[string]*models.AdultRegistration
	juniors           map[string]*models.JuniorRegistration
	juniorPrograms    map[string]*models.JuniorProgramRegistration
	registrationKeys  map[regKey]string
	juniorProgramKeys map[regKey]string

	programs        map[string]*models.Program
	programSessions map[string]*models.ProgramSession

	now func() time.Time
}

type regKey struct {
	paymentIntentID string
	checkoutItemID  string
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:             make(map[string]*models.User),
		usersByEmail:      make(map[string]string),
		carts:             make(map[string]*models.Cart),
		cartsBySession:    make(map[string]string),
		cartItems:         make(map[string]*models.CartItem),
		checkouts:         make(map[string]*models.CheckoutSession),
		checkoutsByIntent: make(map[string]string),
		adults:            make(map[string]*models.AdultRegistration),
		juniors:           make(map[string]*models.JuniorRegistration),
		juniorPrograms:    make(map[string]*models.JuniorProgramRegistration),
		registrationKeys:  make(map[regKey]string),
		juniorProgramKeys: make(map[regKey]string),
		programs:          make(map[string]*models.Program),
		programSessions:   make(map[string]*models.ProgramSession),
		now:               time.Now,
	}
}

func (m *MemoryDB) Close() {}

func (m *MemoryDB) Ping(context.Context) error { return nil }

// Users

func (m *MemoryDB) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.usersByEmail[email]
	if !ok {
		return nil, fmt.Errorf("get user by email: %w", ErrNotFound)
	}
	u := *m.users[id]
	return &u, nil
}

func (m *MemoryDB) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.usersByEmail[user.Email]; ok {
		return fmt.Errorf("create user: %w", ErrDuplicate)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = m.now()
	user.UpdatedAt = user.CreatedAt

	u := *user
	m.users[u.ID] = &u
	m.usersByEmail[u.Email] = u.ID
	return nil
}

// Carts

func (m *MemoryDB) GetCartBySessionID(_ context.Context, sessionID string) (*models.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.cartsBySession[sessionID]
	if !ok {
		return nil, fmt.Errorf("get cart by session: %w", ErrNotFound)
	}
	return m.cartCopy(id), nil
}

func (m *MemoryDB) cartCopy(id string) *models.Cart {
	c := *m.carts[id]
	c.Items = []models.CartItem{}
	for _, item := range m.cartItems {
		if item.CartID == id {
			c.Items = append(c.Items, *item)
		}
	}
	sort.Slice(c.Items, func(i, j int) bool {
		if c.Items[i].CreatedAt.Equal(c.Items[j].CreatedAt) {
			return c.Items[i].ID < c.Items[j].ID
		}
		return c.Items[i].CreatedAt.Before(c.Items[j].CreatedAt)
	})
	return &c
}

func (m *MemoryDB) CreateCart(_ context.Context, cart *models.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cartsBySession[cart.SessionID]; ok {
		return fmt.Errorf("create cart: %w", ErrDuplicate)
	}
	if cart.ID == "" {
		cart.ID = uuid.NewString()
	}
	cart.CreatedAt = m.now()
	cart.UpdatedAt = cart.CreatedAt
	cart.Items = []models.CartItem{}

	c := *cart
	c.Items = nil
	m.carts[c.ID] = &c
	m.cartsBySession[c.SessionID] = c.ID
	return nil
}

func (m *MemoryDB) TouchCart(_ context.Context, cartID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.carts[cartID]
	if !ok {
		return fmt.Errorf("touch cart: %w", ErrNotFound)
	}
	c.ExpiresAt = expiresAt
	c.UpdatedAt = m.now()
	return nil
}

func (m *MemoryDB) AddCartItem(_ context.Context, item *models.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.carts[item.CartID]; !ok {
		return fmt.Errorf("add cart item: %w", ErrNotFound)
	}

	now := m.now()
	for _, existing := range m.cartItems {
		if existing.CartID == item.CartID && existing.ProgramID == item.ProgramID {
			if existing.Quantity >= models.MaxItemQuantity {
				return fmt.Errorf("add cart item: %w", ErrLimit)
			}
			existing.Quantity++
			existing.ProgramSessionID = item.ProgramSessionID
			existing.UpdatedAt = now
			*item = *existing
			return nil
		}
	}

	item.ID = uuid.NewString()
	item.Quantity = 1
	item.CreatedAt = now
	item.UpdatedAt = now
	stored := *item
	m.cartItems[stored.ID] = &stored
	return nil
}

func (m *MemoryDB) SetCartItemQuantity(_ context.Context, cartID, itemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.cartItems[itemID]
	if !ok || item.CartID != cartID {
		return fmt.Errorf("set cart item quantity: %w", ErrNotFound)
	}
	item.Quantity = quantity
	item.UpdatedAt = m.now()
	return nil
}

func (m *MemoryDB) DeleteCartItem(_ context.Context, cartID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.cartItems[itemID]
	if !ok || item.CartID != cartID {
		return fmt.Errorf("delete cart item: %w", ErrNotFound)
	}
	delete(m.cartItems, itemID)
	return nil
}

func (m *MemoryDB) ClearCartItems(_ context.Context, cartID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearItems(cartID)
	return nil
}

func (m *MemoryDB) clearItems(cartID string) {
	for id, item := range m.cartItems {
		if item.CartID == cartID {
			delete(m.cartItems, id)
		}
	}
}

func (m *MemoryDB) DeleteCart(_ context.Context, cartID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.carts[cartID]
	if !ok {
		return "", fmt.Errorf("delete cart: %w", ErrNotFound)
	}
	m.clearItems(cartID)
	delete(m.carts, cartID)
	delete(m.cartsBySession, c.SessionID)
	return c.SessionID, nil
}

// Checkout sessions

func (m *MemoryDB) CreateCheckoutSession(_ context.Context, s *models.CheckoutSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.checkouts[s.CheckoutID]; ok {
		return fmt.Errorf("create checkout session: %w", ErrDuplicate)
	}
	if s.StripePaymentIntentID != "" {
		if _, ok := m.checkoutsByIntent[s.StripePaymentIntentID]; ok {
			return fmt.Errorf("create checkout session: %w", ErrDuplicate)
		}
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = models.CheckoutPending
	}
	s.CreatedAt = m.now()

	m.checkouts[s.CheckoutID] = copyCheckout(s)
	if s.StripePaymentIntentID != "" {
		m.checkoutsByIntent[s.StripePaymentIntentID] = s.CheckoutID
	}
	return nil
}

func copyCheckout(s *models.CheckoutSession) *models.CheckoutSession {
	c := *s
	c.Items = append([]models.CheckoutItem(nil), s.Items...)
	return &c
}

func (m *MemoryDB) AttachPaymentIntent(_ context.Context, checkoutID, paymentIntentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.checkouts[checkoutID]
	if !ok {
		return fmt.Errorf("attach payment intent: %w", ErrNotFound)
	}
	switch s.StripePaymentIntentID {
	case paymentIntentID:
		return nil
	case "":
	default:
		return fmt.Errorf("attach payment intent: %w", ErrConflict)
	}
	if _, taken := m.checkoutsByIntent[paymentIntentID]; taken {
		return fmt.Errorf("attach payment intent: %w", ErrDuplicate)
	}
	s.StripePaymentIntentID = paymentIntentID
	m.checkoutsByIntent[paymentIntentID] = checkoutID
	return nil
}

func (m *MemoryDB) GetCheckoutSessionByCheckoutID(_ context.Context, checkoutID string) (*models.CheckoutSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.checkouts[checkoutID]
	if !ok {
		return nil, fmt.Errorf("get checkout session: %w", ErrNotFound)
	}
	return copyCheckout(s), nil
}

func (m *MemoryDB) GetCheckoutSessionByPaymentIntentID(_ context.Context, paymentIntentID string) (*models.CheckoutSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	checkoutID, ok := m.checkoutsByIntent[paymentIntentID]
	if !ok {
		return nil, fmt.Errorf("get checkout session by payment intent: %w", ErrNotFound)
	}
	return copyCheckout(m.checkouts[checkoutID]), nil
}

func (m *MemoryDB) CompleteCheckoutSession(_ context.Context, checkoutID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.checkouts[checkoutID]
	if !ok {
		return false, fmt.Errorf("complete checkout session: %w", ErrNotFound)
	}
	if s.Status == models.CheckoutCompleted {
		return false, nil
	}
	s.Status = models.CheckoutCompleted
	return true, nil
}

// Registrations

func (m *MemoryDB) CreateAdultRegistration(_ context.Context, r *models.AdultRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := regKey{r.StripePaymentIntentID, r.CheckoutItemID}
	if r.StripePaymentIntentID != "" {
		if _, ok := m.registrationKeys[key]; ok {
			return fmt.Errorf("create adult registration: %w", ErrDuplicate)
		}
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = m.now()
	r.UpdatedAt = r.CreatedAt

	stored := *r
	m.adults[stored.ID] = &stored
	if r.StripePaymentIntentID != "" {
		m.registrationKeys[key] = stored.ID
	}
	return nil
}

func (m *MemoryDB) GetAdultRegistration(_ context.Context, id string) (*models.AdultRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.adults[id]
	if !ok {
		return nil, fmt.Errorf("get adult registration: %w", ErrNotFound)
	}
	out := *r
	return &out, nil
}

func (m *MemoryDB) GetAdultRegistrationByPaymentIntentID(_ context.Context, paymentIntentID string) (*models.AdultRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.registrationKeys[regKey{paymentIntentID, ""}]
	if !ok {
		return nil, fmt.Errorf("get adult registration by payment intent: %w", ErrNotFound)
	}
	out := *m.adults[id]
	return &out, nil
}

func (m *MemoryDB) ListAdultRegistrationsByPaymentIntentID(_ context.Context, paymentIntentID string) ([]*models.AdultRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.AdultRegistration
	for _, r := range m.adults {
		if r.StripePaymentIntentID == paymentIntentID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckoutItemID < out[j].CheckoutItemID })
	return out, nil
}

func (m *MemoryDB) SetAdultRegistrationPaymentIntent(_ context.Context, id, paymentIntentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.adults[id]
	if !ok {
		return fmt.Errorf("set adult registration payment intent: %w", ErrNotFound)
	}
	if r.StripePaymentIntentID == paymentIntentID {
		return nil
	}
	key := regKey{paymentIntentID, r.CheckoutItemID}
	if _, taken := m.registrationKeys[key]; taken {
		return fmt.Errorf("set adult registration payment intent: %w", ErrDuplicate)
	}
	if r.StripePaymentIntentID != "" {
		delete(m.registrationKeys, regKey{r.StripePaymentIntentID, r.CheckoutItemID})
	}
	r.StripePaymentIntentID = paymentIntentID
	r.UpdatedAt = m.now()
	m.registrationKeys[key] = id
	return nil
}

func (m *MemoryDB) UpdateAdultRegistrationPayment(_ context.Context, id string, u models.PaymentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.adults[id]
	if !ok {
		return fmt.Errorf("update adult registration payment: %w", ErrNotFound)
	}
	r.PaymentStatus = u.Status
	if u.StripeCustomerID != nil {
		r.StripeCustomerID = *u.StripeCustomerID
	}
	if u.PaymentAmountCents != nil {
		amount := *u.PaymentAmountCents
		r.PaymentAmountCents = &amount
	}
	r.UpdatedAt = m.now()
	return nil
}

func (m *MemoryDB) CreateJuniorEnrollment(_ context.Context, jr *models.JuniorRegistration, jpr *models.JuniorProgramRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := regKey{jpr.StripePaymentIntentID, jpr.CheckoutItemID}
	if jpr.StripePaymentIntentID != "" {
		if _, ok := m.juniorProgramKeys[key]; ok {
			return fmt.Errorf("create junior enrollment: %w", ErrDuplicate)
		}
	}
	if jr.ID == "" {
		jr.ID = uuid.NewString()
	}
	if jpr.ID == "" {
		jpr.ID = uuid.NewString()
	}
	now := m.now()
	jr.CreatedAt, jr.UpdatedAt = now, now
	jpr.JuniorRegistrationID = jr.ID
	jpr.CreatedAt, jpr.UpdatedAt = now, now

	profile := *jr
	program := *jpr
	m.juniors[profile.ID] = &profile
	m.juniorPrograms[program.ID] = &program
	if jpr.StripePaymentIntentID != "" {
		m.juniorProgramKeys[key] = program.ID
	}
	return nil
}

func (m *MemoryDB) GetJuniorProgramRegistration(_ context.Context, id string) (*models.JuniorProgramRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.juniorPrograms[id]
	if !ok {
		return nil, fmt.Errorf("get junior program registration: %w", ErrNotFound)
	}
	out := *r
	return &out, nil
}

func (m *MemoryDB) GetJuniorProgramRegistrationByPaymentIntentID(_ context.Context, paymentIntentID string) (*models.JuniorProgramRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.juniorProgramKeys[regKey{paymentIntentID, ""}]
	if !ok {
		return nil, fmt.Errorf("get junior program registration by payment intent: %w", ErrNotFound)
	}
	out := *m.juniorPrograms[id]
	return &out, nil
}

func (m *MemoryDB) ListJuniorProgramRegistrationsByPaymentIntentID(_ context.Context, paymentIntentID string) ([]*models.JuniorProgramRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.JuniorProgramRegistration
	for _, r := range m.juniorPrograms {
		if r.StripePaymentIntentID == paymentIntentID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckoutItemID < out[j].CheckoutItemID })
	return out, nil
}

func (m *MemoryDB) SetJuniorProgramRegistrationPaymentIntent(_ context.Context, id, paymentIntentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.juniorPrograms[id]
	if !ok {
		return fmt.Errorf("set junior program registration payment intent: %w", ErrNotFound)
	}
	if r.StripePaymentIntentID == paymentIntentID {
		return nil
	}
	key := regKey{paymentIntentID, r.CheckoutItemID}
	if _, taken := m.juniorProgramKeys[key]; taken {
		return fmt.Errorf("set junior program registration payment intent: %w", ErrDuplicate)
	}
	if r.StripePaymentIntentID != "" {
		delete(m.juniorProgramKeys, regKey{r.StripePaymentIntentID, r.CheckoutItemID})
	}
	r.StripePaymentIntentID = paymentIntentID
	r.UpdatedAt = m.now()
	m.juniorProgramKeys[key] = id
	return nil
}

func (m *MemoryDB) UpdateJuniorProgramRegistrationPayment(_ context.Context, id string, u models.PaymentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.juniorPrograms[id]
	if !ok {
		return fmt.Errorf("update junior program registration payment: %w", ErrNotFound)
	}
	r.PaymentStatus = u.Status
	if u.StripeCustomerID != nil {
		r.StripeCustomerID = *u.StripeCustomerID
	}
	if u.PaymentAmountCents != nil {
		amount := *u.PaymentAmountCents
		r.PaymentAmountCents = &amount
	}
	r.UpdatedAt = m.now()
	return nil
}

// Programs

func (m *MemoryDB) CreateProgram(_ context.Context, p *models.Program) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := m.programs[p.ID]; ok {
		return fmt.Errorf("create program: %w", ErrDuplicate)
	}
	p.CreatedAt = m.now()
	p.UpdatedAt = p.CreatedAt

	m.programs[p.ID] = copyProgram(p)
	return nil
}

func copyProgram(p *models.Program) *models.Program {
	c := *p
	c.Features = append([]string(nil), p.Features...)
	c.Details = append([]models.ProgramDetail(nil), p.Details...)
	c.Sessions = nil
	return &c
}

func (m *MemoryDB) GetProgram(_ context.Context, id string) (*models.Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.programs[id]
	if !ok {
		return nil, fmt.Errorf("get program: %w", ErrNotFound)
	}
	return copyProgram(p), nil
}

func (m *MemoryDB) ListPrograms(_ context.Context, programType models.RegistrationType) ([]*models.Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Program
	for _, p := range m.programs {
		if programType == "" || p.Type == programType {
			out = append(out, copyProgram(p))
		}
	}
	sortPrograms(out)
	return out, nil
}

func (m *MemoryDB) GetProgramByCategory(_ context.Context, category, level string) (*models.Program, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []*models.Program
	for _, p := range m.programs {
		if p.Category == category && (level == "" || p.Level == level) {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("get program by category: %w", ErrNotFound)
	}
	sortPrograms(matches)
	return copyProgram(matches[0]), nil
}

func sortPrograms(ps []*models.Program) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Name == ps[j].Name {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].Name < ps[j].Name
	})
}

func (m *MemoryDB) UpdateProgram(_ context.Context, id string, u models.ProgramUpdate) (*models.Program, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.programs[id]
	if !ok {
		return nil, fmt.Errorf("update program: %w", ErrNotFound)
	}
	updated := copyProgram(p)
	u.Apply(updated)
	updated.UpdatedAt = m.now()
	m.programs[id] = updated
	return copyProgram(updated), nil
}

func (m *MemoryDB) DeleteProgram(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.programs[id]; !ok {
		return fmt.Errorf("delete program: %w", ErrNotFound)
	}
	delete(m.programs, id)
	for sid, s := range m.programSessions {
		if s.ProgramID == id {
			delete(m.programSessions, sid)
		}
	}
	return nil
}

func (m *MemoryDB) CreateProgramSession(_ context.Context, s *models.ProgramSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.programs[s.ProgramID]; !ok {
		return fmt.Errorf("create program session: %w", ErrNotFound)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if _, ok := m.programSessions[s.ID]; ok {
		return fmt.Errorf("create program session: %w", ErrDuplicate)
	}
	s.CreatedAt = m.now()
	s.UpdatedAt = s.CreatedAt

	c := *s
	m.programSessions[c.ID] = &c
	return nil
}

func (m *MemoryDB) GetProgramSession(_ context.Context, id string) (*models.ProgramSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.programSessions[id]
	if !ok {
		return nil, fmt.Errorf("get program session: %w", ErrNotFound)
	}
	c := *s
	return &c, nil
}

func (m *MemoryDB) ListProgramSessions(_ context.Context, programID string) ([]*models.ProgramSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.ProgramSession
	for _, s := range m.programSessions {
		if s.ProgramID == programID {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}
