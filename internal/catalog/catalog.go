package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golf-booking/internal/db"
	"golf-booking/internal/models"
	"golf-booking/pkg/logger"

	"github.com/go-playground/validator/v10"
)

var (
	ErrProgramNotFound = errors.New("program not found")
	ErrSessionNotFound = errors.New("program session not found")
	ErrTypeMismatch    = errors.New("registration type does not match program")
	ErrSessionClosed   = errors.New("program session is not open for registration")
	ErrInvalidProgram  = errors.New("invalid program")
)

type Store interface {
	CreateProgram(ctx context.Context, p *models.Program) error
	GetProgram(ctx context.Context, id string) (*models.Program, error)
	ListPrograms(ctx context.Context, programType models.RegistrationType) ([]*models.Program, error)
	GetProgramByCategory(ctx context.Context, category, level string) (*models.Program, error)
	UpdateProgram(ctx context.Context, id string, u models.ProgramUpdate) (*models.Program, error)
	DeleteProgram(ctx context.Context, id string) error
	CreateProgramSession(ctx context.Context, s *models.ProgramSession) error
	GetProgramSession(ctx context.Context, id string) (*models.ProgramSession, error)
	ListProgramSessions(ctx context.Context, programID string) ([]*models.ProgramSession, error)
}

// Service is the program catalog: what can be booked, by whom, and in which
// sessions.
type Service struct {
	store    Store
	validate *validator.Validate
	log      *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{
		store:    store,
		validate: validator.New(),
		log:      log,
	}
}

func (s *Service) GetProgram(ctx context.Context, id string) (*models.Program, error) {
	p, err := s.store.GetProgram(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrProgramNotFound, "get program")
	}
	return p, nil
}

// GetProgramWithSessions returns the program with every session attached,
// active or not.
func (s *Service) GetProgramWithSessions(ctx context.Context, id string) (*models.Program, error) {
	p, err := s.GetProgram(ctx, id)
	if err != nil {
		return nil, err
	}
	sessions, err := s.GetProgramSessions(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Sessions = make([]models.ProgramSession, 0, len(sessions))
	for _, session := range sessions {
		p.Sessions = append(p.Sessions, *session)
	}
	return p, nil
}

func (s *Service) GetProgramSessions(ctx context.Context, programID string) ([]*models.ProgramSession, error) {
	sessions, err := s.store.ListProgramSessions(ctx, programID)
	if err != nil {
		return nil, fmt.Errorf("list program sessions: %w", err)
	}
	return sessions, nil
}

// ListPrograms lists every program, or only those of programType when it is
// set.
func (s *Service) ListPrograms(ctx context.Context, programType models.RegistrationType) ([]*models.Program, error) {
	if programType != "" && !programType.Valid() {
		return nil, fmt.Errorf("%w: unknown program type %q", ErrInvalidProgram, programType)
	}
	programs, err := s.store.ListPrograms(ctx, programType)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

func (s *Service) GetProgramByCategory(ctx context.Context, category, level string) (*models.Program, error) {
	p, err := s.store.GetProgramByCategory(ctx, category, level)
	if err != nil {
		return nil, notFound(err, ErrProgramNotFound, "get program by category")
	}
	return p, nil
}

func (s *Service) CreateProgram(ctx context.Context, p *models.Program) error {
	if p.Capacity == 0 {
		p.Capacity = 6
	}
	if err := s.validate.Struct(p); err != nil {
		return invalid(err)
	}
	if err := s.store.CreateProgram(ctx, p); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	s.log.Infow("program created", "program_id", p.ID, "type", p.Type, "category", p.Category)
	return nil
}

func (s *Service) UpdateProgram(ctx context.Context, id string, u models.ProgramUpdate) (*models.Program, error) {
	current, err := s.GetProgram(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Apply(current)
	if err := s.validate.Struct(current); err != nil {
		return nil, invalid(err)
	}

	p, err := s.store.UpdateProgram(ctx, id, u)
	if err != nil {
		return nil, notFound(err, ErrProgramNotFound, "update program")
	}
	return p, nil
}

// DeleteProgram removes a program and its sessions. Cart lines and
// registrations that name it are kept.
func (s *Service) DeleteProgram(ctx context.Context, id string) error {
	if err := s.store.DeleteProgram(ctx, id); err != nil {
		return notFound(err, ErrProgramNotFound, "delete program")
	}
	s.log.Infow("program deleted", "program_id", id)
	return nil
}

func (s *Service) CreateProgramSession(ctx context.Context, session *models.ProgramSession) error {
	if err := s.validate.Struct(session); err != nil {
		return invalid(err)
	}
	if err := s.store.CreateProgramSession(ctx, session); err != nil {
		return notFound(err, ErrProgramNotFound, "create program session")
	}
	return nil
}

// Resolve checks that a cart selection names a program open to the given
// registration type, and, when sessionID is set, an active session of that
// program.
func (s *Service) Resolve(ctx context.Context, programID, sessionID string, t models.RegistrationType) (*models.Program, error) {
	p, err := s.GetProgram(ctx, programID)
	if err != nil {
		return nil, err
	}
	if p.Type != t {
		return nil, fmt.Errorf("%w: %s is a %s program", ErrTypeMismatch, p.ID, p.Type)
	}
	if sessionID == "" {
		return p, nil
	}

	session, err := s.store.GetProgramSession(ctx, sessionID)
	if err != nil {
		return nil, notFound(err, ErrSessionNotFound, "get program session")
	}
	if session.ProgramID != p.ID {
		return nil, fmt.Errorf("%w: %s does not belong to %s", ErrSessionNotFound, sessionID, p.ID)
	}
	if !session.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, sessionID)
	}
	return p, nil
}

func notFound(err, sentinel error, op string) error {
	if errors.Is(err, db.ErrNotFound) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", op, err)
}

func invalid(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidProgram, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidProgram, strings.Join(fields, ", "))
}
