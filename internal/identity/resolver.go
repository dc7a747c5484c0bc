package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golf-booking/internal/db"
	"golf-booking/internal/models"
)

type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// Resolver maps a contact email to a stable user.
type Resolver struct {
	store UserStore
}

func NewResolver(store UserStore) *Resolver {
	return &Resolver{store: store}
}

// GetOrCreateUser returns the user owning c.Email, creating one if absent.
// An existing user is returned unchanged. Losing a concurrent create to the
// unique email constraint falls back to a second lookup.
func (r *Resolver) GetOrCreateUser(ctx context.Context, c models.Contact) (*models.User, error) {
	email := NormalizeEmail(c.Email)
	if email == "" {
		return nil, errors.New("contact email is required")
	}

	user, err := r.store.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	user = &models.User{
		FirstName:   strings.TrimSpace(c.FirstName),
		LastName:    strings.TrimSpace(c.LastName),
		Email:       email,
		PhoneNumber: strings.TrimSpace(c.PhoneNumber),
	}
	err = r.store.CreateUser(ctx, user)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, db.ErrDuplicate) {
		return nil, fmt.Errorf("create user: %w", err)
	}

	user, err = r.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user after duplicate create: %w", err)
	}
	return user, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
