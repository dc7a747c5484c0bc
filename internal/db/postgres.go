package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golf-booking/config"
	"golf-booking/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

type PoolOptions struct {
	MaxConns     int
	MinConns     int
	ConnLifetime time.Duration
}

func NewPostgresDB(ctx context.Context, cfg config.DBConfig) (*PostgresDB, error) {
	return Connect(ctx, cfg.DSN(), PoolOptions{
		MaxConns:     cfg.MaxOpenConns,
		MinConns:     cfg.MaxIdleConns,
		ConnLifetime: cfg.ConnLifetime,
	})
}

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string, opts PoolOptions) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB connection string: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.ConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.ConnLifetime
	}
	poolConfig.MaxConnIdleTime = 15 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Users

func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
        SELECT id, first_name, last_name, email, phone_number, created_at, updated_at
        FROM users
        WHERE email = $1
    `

	var user models.User
	err := db.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.Email,
		&user.PhoneNumber, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", classify(err))
	}
	return &user, nil
}

func (db *PostgresDB) CreateUser(ctx context.Context, user *models.User) error {
	query := `
        INSERT INTO users (id, first_name, last_name, email, phone_number)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at, updated_at
    `

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	err := db.pool.QueryRow(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Email, user.PhoneNumber,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", classify(err))
	}
	return nil
}

// Carts

func (db *PostgresDB) GetCartBySessionID(ctx context.Context, sessionID string) (*models.Cart, error) {
	query := `
        SELECT id, session_id, expires_at, created_at, updated_at
        FROM carts
        WHERE session_id = $1
    `

	var cart models.Cart
	err := db.pool.QueryRow(ctx, query, sessionID).Scan(
		&cart.ID, &cart.SessionID, &cart.ExpiresAt, &cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get cart by session: %w", classify(err))
	}

	items, err := db.cartItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return &cart, nil
}

func (db *PostgresDB) cartItems(ctx context.Context, cartID string) ([]models.CartItem, error) {
	query := `
        SELECT id, cart_id, program_id, program_session_id, registration_type,
               quantity, price_at_add_cents, created_at, updated_at
        FROM cart_items
        WHERE cart_id = $1
        ORDER BY created_at, id
    `

	rows, err := db.pool.Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(
			&item.ID, &item.CartID, &item.ProgramID, &item.ProgramSessionID,
			&item.RegistrationType, &item.Quantity, &item.PriceAtAddCents,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (db *PostgresDB) CreateCart(ctx context.Context, cart *models.Cart) error {
	query := `
        INSERT INTO carts (id, session_id, expires_at)
        VALUES ($1, $2, $3)
        RETURNING created_at, updated_at
    `

	if cart.ID == "" {
		cart.ID = uuid.NewString()
	}
	err := db.pool.QueryRow(ctx, query, cart.ID, cart.SessionID, cart.ExpiresAt).
		Scan(&cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create cart: %w", classify(err))
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return nil
}

func (db *PostgresDB) TouchCart(ctx context.Context, cartID string, expiresAt time.Time) error {
	query := `
        UPDATE carts
        SET expires_at = $2, updated_at = NOW()
        WHERE id = $1
    `

	tag, err := db.pool.Exec(ctx, query, cartID, expiresAt)
	if err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("touch cart: %w", ErrNotFound)
	}
	return nil
}

// AddCartItem inserts the item with quantity 1, or bumps the quantity of the
// existing (cart, program) line and overwrites its session selection. The
// price recorded on the first add is kept. item is filled from the stored row.
// A line already at models.MaxItemQuantity yields ErrLimit.
func (db *PostgresDB) AddCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
        INSERT INTO cart_items (id, cart_id, program_id, program_session_id,
                                registration_type, quantity, price_at_add_cents)
        VALUES ($1, $2, $3, $4, $5, 1, $6)
        ON CONFLICT (cart_id, program_id) DO UPDATE
        SET quantity = cart_items.quantity + 1,
            program_session_id = EXCLUDED.program_session_id,
            updated_at = NOW()
        WHERE cart_items.quantity < $7
        RETURNING id, registration_type, quantity, price_at_add_cents, created_at, updated_at
    `

	err := db.pool.QueryRow(ctx, query,
		uuid.NewString(), item.CartID, item.ProgramID, item.ProgramSessionID,
		item.RegistrationType, item.PriceAtAddCents, models.MaxItemQuantity,
	).Scan(
		&item.ID, &item.RegistrationType, &item.Quantity, &item.PriceAtAddCents,
		&item.CreatedAt, &item.UpdatedAt,
	)
	// The conflict branch returns no row when its WHERE rejects the bump.
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("add cart item: %w", ErrLimit)
	}
	if err != nil {
		return fmt.Errorf("add cart item: %w", classify(err))
	}
	return nil
}

func (db *PostgresDB) SetCartItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error {
	query := `
        UPDATE cart_items
        SET quantity = $3, updated_at = NOW()
        WHERE id = $2 AND cart_id = $1
    `

	tag, err := db.pool.Exec(ctx, query, cartID, itemID, quantity)
	if err != nil {
		return fmt.Errorf("set cart item quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set cart item quantity: %w", ErrNotFound)
	}
	return nil
}

func (db *PostgresDB) DeleteCartItem(ctx context.Context, cartID, itemID string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM cart_items WHERE id = $2 AND cart_id = $1`, cartID, itemID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete cart item: %w", ErrNotFound)
	}
	return nil
}

func (db *PostgresDB) ClearCartItems(ctx context.Context, cartID string) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// DeleteCart removes the cart and its items and returns the session it
// belonged to.
func (db *PostgresDB) DeleteCart(ctx context.Context, cartID string) (string, error) {
	var sessionID string
	err := db.pool.QueryRow(ctx, `DELETE FROM carts WHERE id = $1 RETURNING session_id`, cartID).Scan(&sessionID)
	if err != nil {
		return "", fmt.Errorf("delete cart: %w", classify(err))
	}
	return sessionID, nil
}

// Checkout sessions

const checkoutColumns = `id, checkout_id, cart_id, COALESCE(stripe_payment_intent_id, ''),
               items, total_amount_cents, status, created_at, expires_at`

func (db *PostgresDB) CreateCheckoutSession(ctx context.Context, s *models.CheckoutSession) error {
	query := `
        INSERT INTO checkout_sessions (id, checkout_id, cart_id, stripe_payment_intent_id,
                                       items, total_amount_cents, status, expires_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
        RETURNING created_at
    `

	items, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("marshal checkout items: %w", err)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = models.CheckoutPending
	}

	err = db.pool.QueryRow(ctx, query,
		s.ID, s.CheckoutID, s.CartID, s.StripePaymentIntentID,
		items, s.TotalAmountCents, s.Status, s.ExpiresAt,
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("create checkout session: %w", classify(err))
	}
	return nil
}

// AttachPaymentIntent sets the intent once. Re-attaching the same intent is a
// no-op; a different one yields ErrConflict.
func (db *PostgresDB) AttachPaymentIntent(ctx context.Context, checkoutID, paymentIntentID string) error {
	query := `
        UPDATE checkout_sessions
        SET stripe_payment_intent_id = $2
        WHERE checkout_id = $1
          AND (stripe_payment_intent_id IS NULL OR stripe_payment_intent_id = $2)
    `

	tag, err := db.pool.Exec(ctx, query, checkoutID, paymentIntentID)
	if err != nil {
		return fmt.Errorf("attach payment intent: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		if _, err := db.GetCheckoutSessionByCheckoutID(ctx, checkoutID); err != nil {
			return err
		}
		return fmt.Errorf("attach payment intent: %w", ErrConflict)
	}
	return nil
}

func (db *PostgresDB) GetCheckoutSessionByCheckoutID(ctx context.Context, checkoutID string) (*models.CheckoutSession, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkout_sessions WHERE checkout_id = $1`
	s, err := db.scanCheckoutSession(db.pool.QueryRow(ctx, query, checkoutID))
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	return s, nil
}

func (db *PostgresDB) GetCheckoutSessionByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.CheckoutSession, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkout_sessions WHERE stripe_payment_intent_id = $1`
	s, err := db.scanCheckoutSession(db.pool.QueryRow(ctx, query, paymentIntentID))
	if err != nil {
		return nil, fmt.Errorf("get checkout session by payment intent: %w", err)
	}
	return s, nil
}

func (db *PostgresDB) scanCheckoutSession(row pgx.Row) (*models.CheckoutSession, error) {
	var (
		s     models.CheckoutSession
		items []byte
	)
	err := row.Scan(
		&s.ID, &s.CheckoutID, &s.CartID, &s.StripePaymentIntentID,
		&items, &s.TotalAmountCents, &s.Status, &s.CreatedAt, &s.ExpiresAt,
	)
	if err != nil {
		return nil, classify(err)
	}
	if err := json.Unmarshal(items, &s.Items); err != nil {
		return nil, fmt.Errorf("unmarshal checkout items: %w", err)
	}
	return &s, nil
}

// CompleteCheckoutSession flips the session to completed and reports whether
// this call made the transition.
func (db *PostgresDB) CompleteCheckoutSession(ctx context.Context, checkoutID string) (bool, error) {
	query := `
        UPDATE checkout_sessions
        SET status = 'completed'
        WHERE checkout_id = $1 AND status <> 'completed'
    `

	tag, err := db.pool.Exec(ctx, query, checkoutID)
	if err != nil {
		return false, fmt.Errorf("complete checkout session: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := db.GetCheckoutSessionByCheckoutID(ctx, checkoutID); err != nil {
		return false, err
	}
	return false, nil
}

// Registrations

const adultColumns = `id, user_id, program_id, program_session_id, additional_comments,
               checkout_item_id, COALESCE(stripe_payment_intent_id, ''), stripe_customer_id,
               payment_status, payment_amount_cents, created_at, updated_at`

func (db *PostgresDB) CreateAdultRegistration(ctx context.Context, r *models.AdultRegistration) error {
	query := `
        INSERT INTO adult_registrations (id, user_id, program_id, program_session_id,
                                         additional_comments, checkout_item_id,
                                         stripe_payment_intent_id, stripe_customer_id,
                                         payment_status, payment_amount_cents)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)
        RETURNING created_at, updated_at
    `

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	err := db.pool.QueryRow(ctx, query,
		r.ID, r.UserID, r.ProgramID, r.ProgramSessionID, r.AdditionalComments,
		r.CheckoutItemID, r.StripePaymentIntentID, r.StripeCustomerID,
		r.PaymentStatus, r.PaymentAmountCents,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create adult registration: %w", classify(err))
	}
	return nil
}

func (db *PostgresDB) GetAdultRegistration(ctx context.Context, id string) (*models.AdultRegistration, error) {
	query := `SELECT ` + adultColumns + ` FROM adult_registrations WHERE id = $1`
	r, err := scanAdultRegistration(db.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get adult registration: %w", classify(err))
	}
	return r, nil
}

// GetAdultRegistrationByPaymentIntentID finds the direct (non-cart) row for
// an intent.
func (db *PostgresDB) GetAdultRegistrationByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.AdultRegistration, error) {
	query := `SELECT ` + adultColumns + `
        FROM adult_registrations
        WHERE stripe_payment_intent_id = $1 AND checkout_item_id = ''`
	r, err := scanAdultRegistration(db.pool.QueryRow(ctx, query, paymentIntentID))
	if err != nil {
		return nil, fmt.Errorf("get adult registration by payment intent: %w", classify(err))
	}
	return r, nil
}

func (db *PostgresDB) ListAdultRegistrationsByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]*models.AdultRegistration, error) {
	query := `SELECT ` + adultColumns + `
        FROM adult_registrations
        WHERE stripe_payment_intent_id = $1
        ORDER BY created_at, id`

	rows, err := db.pool.Query(ctx, query, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("list adult registrations: %w", err)
	}
	defer rows.Close()

	var out []*models.AdultRegistration
	for rows.Next() {
		r, err := scanAdultRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan adult registration: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanAdultRegistration(row pgx.Row) (*models.AdultRegistration, error) {
	var r models.AdultRegistration
	err := row.Scan(
		&r.ID, &r.UserID, &r.ProgramID, &r.ProgramSessionID, &r.AdditionalComments,
		&r.CheckoutItemID, &r.StripePaymentIntentID, &r.StripeCustomerID,
		&r.PaymentStatus, &r.PaymentAmountCents, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *PostgresDB) SetAdultRegistrationPaymentIntent(ctx context.Context, id, paymentIntentID string) error {
	query := `
        UPDATE adult_registrations
        SET stripe_payment_intent_id = $2, updated_at = NOW()
        WHERE id = $1
    `
	return db.execOne(ctx, "set adult registration payment intent", query, id, paymentIntentID)
}

func (db *PostgresDB) UpdateAdultRegistrationPayment(ctx context.Context, id string, u models.PaymentUpdate) error {
	query := `
        UPDATE adult_registrations
        SET payment_status = $2,
            stripe_customer_id = COALESCE($3, stripe_customer_id),
            payment_amount_cents = COALESCE($4, payment_amount_cents),
            updated_at = NOW()
        WHERE id = $1
    `
	return db.execOne(ctx, "update adult registration payment", query,
		id, u.Status, u.StripeCustomerID, u.PaymentAmountCents)
}

// CreateJuniorEnrollment writes the child profile and its program
// registration in one transaction. A duplicate program registration rolls the
// profile back too.
func (db *PostgresDB) CreateJuniorEnrollment(ctx context.Context, jr *models.JuniorRegistration, jpr *models.JuniorProgramRegistration) error {
	profileQuery := `
        INSERT INTO junior_registrations (id, user_id, phone_type, preferred_contact_method,
                                          child_first_name, child_last_name, child_age,
                                          child_experience_level, has_own_clubs,
                                          friends_to_group_with, additional_comments)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING created_at, updated_at
    `
	programQuery := `
        INSERT INTO junior_program_registrations (id, junior_registration_id, program_id,
                                                  program_session_id, checkout_item_id,
                                                  stripe_payment_intent_id, stripe_customer_id,
                                                  payment_status, payment_amount_cents)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
        RETURNING created_at, updated_at
    `

	if jr.ID == "" {
		jr.ID = uuid.NewString()
	}
	if jpr.ID == "" {
		jpr.ID = uuid.NewString()
	}
	jpr.JuniorRegistrationID = jr.ID

	err := db.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, profileQuery,
			jr.ID, jr.UserID, jr.PhoneType, jr.PreferredContactMethod,
			jr.ChildFirstName, jr.ChildLastName, jr.ChildAge, jr.ChildExperienceLevel,
			jr.HasOwnClubs, jr.FriendsToGroupWith, jr.AdditionalComments,
		).Scan(&jr.CreatedAt, &jr.UpdatedAt); err != nil {
			return err
		}
		return tx.QueryRow(ctx, programQuery,
			jpr.ID, jpr.JuniorRegistrationID, jpr.ProgramID, jpr.ProgramSessionID,
			jpr.CheckoutItemID, jpr.StripePaymentIntentID, jpr.StripeCustomerID,
			jpr.PaymentStatus, jpr.PaymentAmountCents,
		).Scan(&jpr.CreatedAt, &jpr.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("create junior enrollment: %w", classify(err))
	}
	return nil
}

const juniorProgramColumns = `id, junior_registration_id, program_id, program_session_id,
               checkout_item_id, COALESCE(stripe_payment_intent_id, ''), stripe_customer_id,
               payment_status, payment_amount_cents, created_at, updated_at`

func (db *PostgresDB) GetJuniorProgramRegistration(ctx context.Context, id string) (*models.JuniorProgramRegistration, error) {
	query := `SELECT ` + juniorProgramColumns + ` FROM junior_program_registrations WHERE id = $1`
	r, err := scanJuniorProgramRegistration(db.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get junior program registration: %w", classify(err))
	}
	return r, nil
}

func (db *PostgresDB) GetJuniorProgramRegistrationByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.JuniorProgramRegistration, error) {
	query := `SELECT ` + juniorProgramColumns + `
        FROM junior_program_registrations
        WHERE stripe_payment_intent_id = $1 AND checkout_item_id = ''`
	r, err := scanJuniorProgramRegistration(db.pool.QueryRow(ctx, query, paymentIntentID))
	if err != nil {
		return nil, fmt.Errorf("get junior program registration by payment intent: %w", classify(err))
	}
	return r, nil
}

func (db *PostgresDB) ListJuniorProgramRegistrationsByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]*models.JuniorProgramRegistration, error) {
	query := `SELECT ` + juniorProgramColumns + `
        FROM junior_program_registrations
        WHERE stripe_payment_intent_id = $1
        ORDER BY created_at, id`

	rows, err := db.pool.Query(ctx, query, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("list junior program registrations: %w", err)
	}
	defer rows.Close()

	var out []*models.JuniorProgramRegistration
	for rows.Next() {
		r, err := scanJuniorProgramRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan junior program registration: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanJuniorProgramRegistration(row pgx.Row) (*models.JuniorProgramRegistration, error) {
	var r models.JuniorProgramRegistration
	err := row.Scan(
		&r.ID, &r.JuniorRegistrationID, &r.ProgramID, &r.ProgramSessionID,
		&r.CheckoutItemID, &r.StripePaymentIntentID, &r.StripeCustomerID,
		&r.PaymentStatus, &r.PaymentAmountCents, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *PostgresDB) SetJuniorProgramRegistrationPaymentIntent(ctx context.Context, id, paymentIntentID string) error {
	query := `
        UPDATE junior_program_registrations
        SET stripe_payment_intent_id = $2, updated_at = NOW()
        WHERE id = $1
    `
	return db.execOne(ctx, "set junior program registration payment intent", query, id, paymentIntentID)
}

func (db *PostgresDB) UpdateJuniorProgramRegistrationPayment(ctx context.Context, id string, u models.PaymentUpdate) error {
	query := `
        UPDATE junior_program_registrations
        SET payment_status = $2,
            stripe_customer_id = COALESCE($3, stripe_customer_id),
            payment_amount_cents = COALESCE($4, payment_amount_cents),
            updated_at = NOW()
        WHERE id = $1
    `
	return db.execOne(ctx, "update junior program registration payment", query,
		id, u.Status, u.StripeCustomerID, u.PaymentAmountCents)
}

func (db *PostgresDB) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	tag, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// Programs

const programColumns = `id, name, description, type, category, level, price_cents,
               duration, capacity, image_url, features, details, created_at, updated_at`

func (db *PostgresDB) CreateProgram(ctx context.Context, p *models.Program) error {
	query := `
        INSERT INTO programs (id, name, description, type, category, level, price_cents,
                              duration, capacity, image_url, features, details)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING created_at, updated_at
    `

	details, err := marshalDetails(p.Details)
	if err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	err = db.pool.QueryRow(ctx, query,
		p.ID, p.Name, p.Description, p.Type, p.Category, p.Level, p.PriceCents,
		p.Duration, p.Capacity, p.ImageURL, nonNilStrings(p.Features), details,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create program: %w", classify(err))
	}
	return nil
}

func (db *PostgresDB) GetProgram(ctx context.Context, id string) (*models.Program, error) {
	query := `SELECT ` + programColumns + ` FROM programs WHERE id = $1`
	p, err := scanProgram(db.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get program: %w", err)
	}
	return p, nil
}

// ListPrograms returns every program of the given type, or all programs when
// programType is empty, ordered by name.
func (db *PostgresDB) ListPrograms(ctx context.Context, programType models.RegistrationType) ([]*models.Program, error) {
	query := `
        SELECT ` + programColumns + `
        FROM programs
        WHERE $1 = '' OR type = $1
        ORDER BY name, id
    `

	rows, err := db.pool.Query(ctx, query, string(programType))
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	var out []*models.Program
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("list programs: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProgramByCategory matches the level too when it is non-empty; otherwise
// the first program of the category by name.
func (db *PostgresDB) GetProgramByCategory(ctx context.Context, category, level string) (*models.Program, error) {
	query := `
        SELECT ` + programColumns + `
        FROM programs
        WHERE category = $1 AND ($2 = '' OR level = $2)
        ORDER BY name, id
        LIMIT 1
    `
	p, err := scanProgram(db.pool.QueryRow(ctx, query, category, level))
	if err != nil {
		return nil, fmt.Errorf("get program by category: %w", err)
	}
	return p, nil
}

func (db *PostgresDB) UpdateProgram(ctx context.Context, id string, u models.ProgramUpdate) (*models.Program, error) {
	var p *models.Program
	err := db.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var err error
		p, err = scanProgram(tx.QueryRow(ctx,
			`SELECT `+programColumns+` FROM programs WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		u.Apply(p)

		details, err := marshalDetails(p.Details)
		if err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
            UPDATE programs
            SET name = $2, description = $3, category = $4, level = $5, price_cents = $6,
                duration = $7, capacity = $8, image_url = $9, features = $10, details = $11,
                updated_at = NOW()
            WHERE id = $1
            RETURNING updated_at
        `,
			p.ID, p.Name, p.Description, p.Category, p.Level, p.PriceCents,
			p.Duration, p.Capacity, p.ImageURL, nonNilStrings(p.Features), details,
		).Scan(&p.UpdatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("update program: %w", classify(err))
	}
	return p, nil
}

// DeleteProgram removes the program and, by cascade, its sessions.
func (db *PostgresDB) DeleteProgram(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM programs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete program: %w", ErrNotFound)
	}
	return nil
}

func scanProgram(row pgx.Row) (*models.Program, error) {
	var (
		p       models.Program
		details []byte
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Type, &p.Category, &p.Level, &p.PriceCents,
		&p.Duration, &p.Capacity, &p.ImageURL, &p.Features, &details, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, classify(err)
	}
	if err := json.Unmarshal(details, &p.Details); err != nil {
		return nil, fmt.Errorf("unmarshal program details: %w", err)
	}
	return &p, nil
}

func marshalDetails(details []models.ProgramDetail) ([]byte, error) {
	if details == nil {
		details = []models.ProgramDetail{}
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal program details: %w", err)
	}
	return b, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

const programSessionColumns = `id, program_id, name, start_date, end_date, schedule,
               capacity, enrolled_count, is_active, created_at, updated_at`

// CreateProgramSession yields ErrNotFound when the program does not exist.
func (db *PostgresDB) CreateProgramSession(ctx context.Context, s *models.ProgramSession) error {
	query := `
        INSERT INTO program_sessions (id, program_id, name, start_date, end_date, schedule,
                                      capacity, enrolled_count, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at, updated_at
    `

	var schedule []byte
	if s.Schedule != nil {
		b, err := json.Marshal(s.Schedule)
		if err != nil {
			return fmt.Errorf("marshal session schedule: %w", err)
		}
		schedule = b
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	err := db.pool.QueryRow(ctx, query,
		s.ID, s.ProgramID, s.Name, s.StartDate, s.EndDate, schedule,
		s.Capacity, s.EnrolledCount, s.IsActive,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create program session: %w", classify(err))
	}
	return nil
}

func (db *PostgresDB) GetProgramSession(ctx context.Context, id string) (*models.ProgramSession, error) {
	query := `SELECT ` + programSessionColumns + ` FROM program_sessions WHERE id = $1`
	s, err := scanProgramSession(db.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get program session: %w", err)
	}
	return s, nil
}

func (db *PostgresDB) ListProgramSessions(ctx context.Context, programID string) ([]*models.ProgramSession, error) {
	query := `
        SELECT ` + programSessionColumns + `
        FROM program_sessions
        WHERE program_id = $1
        ORDER BY start_date, id
    `

	rows, err := db.pool.Query(ctx, query, programID)
	if err != nil {
		return nil, fmt.Errorf("list program sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.ProgramSession
	for rows.Next() {
		s, err := scanProgramSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list program sessions: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanProgramSession(row pgx.Row) (*models.ProgramSession, error) {
	var (
		s        models.ProgramSession
		schedule []byte
	)
	err := row.Scan(
		&s.ID, &s.ProgramID, &s.Name, &s.StartDate, &s.EndDate, &schedule,
		&s.Capacity, &s.EnrolledCount, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, classify(err)
	}
	if len(schedule) > 0 {
		s.Schedule = &models.SessionSchedule{}
		if err := json.Unmarshal(schedule, s.Schedule); err != nil {
			return nil, fmt.Errorf("unmarshal session schedule: %w", err)
		}
	}
	return &s, nil
}
