package checkout

import (
	"context"
	"errors"
	"fmt"

	"golf-booking/internal/db"
	"golf-booking/internal/models"
	"golf-booking/internal/payment"
)

// AdultRegistrationRequest registers one adult for one program without a
// cart. RegistrationID names a pending registration from a failed attempt.
type AdultRegistrationRequest struct {
	models.AdultForm
	ProgramID        string  `json:"programId" validate:"required"`
	ProgramSessionID string  `json:"programSessionId,omitempty"`
	ProgramPrice     float64 `json:"programPrice" validate:"gt=0"`
	RegistrationID   string  `json:"registrationId,omitempty"`
}

type JuniorRegistrationRequest struct {
	models.JuniorForm
	ProgramID             string  `json:"programId" validate:"required"`
	ProgramSessionID      string  `json:"programSessionId,omitempty"`
	ProgramPrice          float64 `json:"programPrice" validate:"gt=0"`
	ProgramRegistrationID string  `json:"juniorProgramRegistrationId,omitempty"`
}

type DirectResult struct {
	UserID                      string `json:"userId"`
	AdultRegistrationID         string `json:"adultRegistrationId,omitempty"`
	JuniorRegistrationID        string `json:"juniorRegistrationId,omitempty"`
	JuniorProgramRegistrationID string `json:"juniorProgramRegistrationId,omitempty"`
	ProgramID                   string `json:"programId"`
	ProgramSessionID            string `json:"programSessionId,omitempty"`
	ClientSecret                string `json:"clientSecret"`
	PaymentIntentID             string `json:"paymentIntentId"`
}

// InitializeAdultRegistration writes a pending registration and creates its
// payment intent. Only the webhook marks it paid.
func (s *Service) InitializeAdultRegistration(ctx context.Context, req AdultRegistrationRequest) (*DirectResult, error) {
	if err := s.snapshots.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidForm, describe(err))
	}
	amountCents, err := models.DollarsToCents(req.ProgramPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: program price: %v", ErrInvalidForm, err)
	}

	user, err := s.users.GetOrCreateUser(ctx, req.Contact())
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	reg, err := s.pendingAdult(ctx, req, user.ID)
	if err != nil {
		return nil, err
	}
	log := s.log.With("adult_registration_id", reg.ID, "user_id", user.ID)

	intent, err := s.gateway.CreatePaymentIntent(ctx, payment.IntentRequest{
		AmountCents:   amountCents,
		Currency:      s.currency,
		CustomerEmail: user.Email,
		Metadata: models.IntentMetadata{
			Type:                models.PaymentAdultRegistration,
			UserID:              user.ID,
			AdultRegistrationID: reg.ID,
			ProgramID:           req.ProgramID,
			ProgramSessionID:    req.ProgramSessionID,
		},
		IdempotencyKey: "adult-registration-" + reg.ID,
	})
	if err != nil {
		log.Errorw("payment intent creation failed", "error", err)
		return nil, &PaymentError{RegistrationID: reg.ID, Err: err}
	}

	if err := s.registrations.SetAdultRegistrationPaymentIntent(ctx, reg.ID, intent.PaymentIntentID); err != nil {
		return nil, fmt.Errorf("save payment intent on registration: %w", err)
	}

	log.Infow("adult registration initialized", "payment_intent_id", intent.PaymentIntentID)
	return &DirectResult{
		UserID:              user.ID,
		AdultRegistrationID: reg.ID,
		ProgramID:           req.ProgramID,
		ProgramSessionID:    req.ProgramSessionID,
		ClientSecret:        intent.ClientSecret,
		PaymentIntentID:     intent.PaymentIntentID,
	}, nil
}

func (s *Service) pendingAdult(ctx context.Context, req AdultRegistrationRequest, userID string) (*models.AdultRegistration, error) {
	if req.RegistrationID != "" {
		existing, err := s.registrations.GetAdultRegistration(ctx, req.RegistrationID)
		switch {
		case err == nil && existing.UserID == userID && existing.ProgramID == req.ProgramID &&
			existing.PaymentStatus == models.PaymentPending:
			return existing, nil
		case err != nil && !errors.Is(err, db.ErrNotFound):
			return nil, fmt.Errorf("load registration: %w", err)
		}
	}

	reg := &models.AdultRegistration{
		UserID:             userID,
		ProgramID:          req.ProgramID,
		ProgramSessionID:   req.ProgramSessionID,
		AdditionalComments: req.AdditionalComments,
		PaymentStatus:      models.PaymentPending,
	}
	if err := s.registrations.CreateAdultRegistration(ctx, reg); err != nil {
		return nil, fmt.Errorf("create registration: %w", err)
	}
	return reg, nil
}

// InitializeJuniorRegistration writes the child profile and a pending program
// registration together, then creates the payment intent.
func (s *Service) InitializeJuniorRegistration(ctx context.Context, req JuniorRegistrationRequest) (*DirectResult, error) {
	if err := s.snapshots.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidForm, describe(err))
	}
	amountCents, err := models.DollarsToCents(req.ProgramPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: program price: %v", ErrInvalidForm, err)
	}

	user, err := s.users.GetOrCreateUser(ctx, req.Contact())
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	programReg, err := s.pendingJunior(ctx, req, user.ID)
	if err != nil {
		return nil, err
	}
	log := s.log.With("junior_program_registration_id", programReg.ID, "user_id", user.ID)

	intent, err := s.gateway.CreatePaymentIntent(ctx, payment.IntentRequest{
		AmountCents:   amountCents,
		Currency:      s.currency,
		CustomerEmail: user.Email,
		Metadata: models.IntentMetadata{
			Type:                        models.PaymentJuniorRegistration,
			UserID:                      user.ID,
			JuniorRegistrationID:        programReg.JuniorRegistrationID,
			JuniorProgramRegistrationID: programReg.ID,
			ProgramID:                   req.ProgramID,
			ProgramSessionID:            req.ProgramSessionID,
		},
		IdempotencyKey: "junior-registration-" + programReg.ID,
	})
	if err != nil {
		log.Errorw("payment intent creation failed", "error", err)
		return nil, &PaymentError{RegistrationID: programReg.ID, Err: err}
	}

	if err := s.registrations.SetJuniorProgramRegistrationPaymentIntent(ctx, programReg.ID, intent.PaymentIntentID); err != nil {
		return nil, fmt.Errorf("save payment intent on registration: %w", err)
	}

	log.Infow("junior registration initialized", "payment_intent_id", intent.PaymentIntentID)
	return &DirectResult{
		UserID:                      user.ID,
		JuniorRegistrationID:        programReg.JuniorRegistrationID,
		JuniorProgramRegistrationID: programReg.ID,
		ProgramID:                   req.ProgramID,
		ProgramSessionID:            req.ProgramSessionID,
		ClientSecret:                intent.ClientSecret,
		PaymentIntentID:             intent.PaymentIntentID,
	}, nil
}

func (s *Service) pendingJunior(ctx context.Context, req JuniorRegistrationRequest, userID string) (*models.JuniorProgramRegistration, error) {
	if req.ProgramRegistrationID != "" {
		existing, err := s.registrations.GetJuniorProgramRegistration(ctx, req.ProgramRegistrationID)
		switch {
		case err == nil && existing.ProgramID == req.ProgramID && existing.PaymentStatus == models.PaymentPending:
			return existing, nil
		case err != nil && !errors.Is(err, db.ErrNotFound):
			return nil, fmt.Errorf("load registration: %w", err)
		}
	}

	profile := models.NewJuniorRegistration(userID, &req.JuniorForm)
	programReg := &models.JuniorProgramRegistration{
		ProgramID:        req.ProgramID,
		ProgramSessionID: req.ProgramSessionID,
		PaymentStatus:    models.PaymentPending,
	}
	if err := s.registrations.CreateJuniorEnrollment(ctx, profile, programReg); err != nil {
		return nil, fmt.Errorf("create registration: %w", err)
	}
	return programReg, nil
}
