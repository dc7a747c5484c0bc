package catalog

import (
	"context"
	"testing"
	"time"

	"golf-booking/internal/db"
	"golf-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Service {
	t.Helper()
	svc := NewService(db.NewMemoryDB(), nil)
	start := time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC)

	_, err := svc.Seed(context.Background(), []models.Program{
		{
			ID: "ggr-1", Name: "Get Golf Ready (Level I)", Type: models.RegistrationAdult,
			Category: "get-golf-ready", Level: "Level I", PriceCents: 15000,
			Sessions: []models.ProgramSession{
				{ID: "ggr-1-may", Name: "May", StartDate: start.AddDate(0, 1, 0), EndDate: start.AddDate(0, 1, 28), Capacity: 6, IsActive: true},
				{ID: "ggr-1-apr", Name: "April", StartDate: start, EndDate: start.AddDate(0, 0, 28), Capacity: 6, IsActive: true},
				{ID: "ggr-1-mar", Name: "March", StartDate: start.AddDate(0, -1, 0), EndDate: start.AddDate(0, -1, 28), Capacity: 6},
			},
		},
		{
			ID: "ggr-2", Name: "Get Golf Ready (Level II)", Type: models.RegistrationAdult,
			Category: "get-golf-ready", Level: "Level II", PriceCents: 12000,
		},
		{
			ID: "camp", Name: "Junior Golf Camp", Type: models.RegistrationJunior,
			Category: "golf-camp", PriceCents: 29900, Capacity: 12,
		},
	})
	require.NoError(t, err)
	return svc
}

func TestResolve(t *testing.T) {
	svc := newTestCatalog(t)

	tests := []struct {
		name      string
		programID string
		sessionID string
		typ       models.RegistrationType
		wantErr   error
	}{
		{name: "program only", programID: "ggr-1", typ: models.RegistrationAdult},
		{name: "active session", programID: "ggr-1", sessionID: "ggr-1-apr", typ: models.RegistrationAdult},
		{name: "unknown program", programID: "nope", typ: models.RegistrationAdult, wantErr: ErrProgramNotFound},
		{name: "unknown session", programID: "ggr-1", sessionID: "nope", typ: models.RegistrationAdult, wantErr: ErrSessionNotFound},
		{name: "session of another program", programID: "ggr-2", sessionID: "ggr-1-apr", typ: models.RegistrationAdult, wantErr: ErrSessionNotFound},
		{name: "inactive session", programID: "ggr-1", sessionID: "ggr-1-mar", typ: models.RegistrationAdult, wantErr: ErrSessionClosed},
		{name: "adult booking junior program", programID: "camp", typ: models.RegistrationAdult, wantErr: ErrTypeMismatch},
		{name: "junior booking adult program", programID: "ggr-1", typ: models.RegistrationJunior, wantErr: ErrTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.Resolve(context.Background(), tt.programID, tt.sessionID, tt.typ)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.programID, p.ID)
		})
	}
}

func TestGetProgramWithSessions(t *testing.T) {
	svc := newTestCatalog(t)
	ctx := context.Background()

	p, err := svc.GetProgramWithSessions(ctx, "ggr-1")
	require.NoError(t, err)
	require.Len(t, p.Sessions, 3)
	assert.Equal(t, "ggr-1-mar", p.Sessions[0].ID)
	assert.Equal(t, "ggr-1-apr", p.Sessions[1].ID)
	assert.Equal(t, "ggr-1-may", p.Sessions[2].ID)

	bare, err := svc.GetProgramWithSessions(ctx, "ggr-2")
	require.NoError(t, err)
	assert.Empty(t, bare.Sessions)

	_, err = svc.GetProgramWithSessions(ctx, "nope")
	assert.ErrorIs(t, err, ErrProgramNotFound)
}

func TestListPrograms(t *testing.T) {
	svc := newTestCatalog(t)
	ctx := context.Background()

	all, err := svc.ListPrograms(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ggr-1", all[0].ID)
	assert.Equal(t, "ggr-2", all[1].ID)
	assert.Equal(t, "camp", all[2].ID)

	juniors, err := svc.ListPrograms(ctx, models.RegistrationJunior)
	require.NoError(t, err)
	require.Len(t, juniors, 1)
	assert.Equal(t, "camp", juniors[0].ID)

	_, err = svc.ListPrograms(ctx, "senior")
	assert.ErrorIs(t, err, ErrInvalidProgram)
}

func TestGetProgramByCategory(t *testing.T) {
	svc := newTestCatalog(t)
	ctx := context.Background()

	p, err := svc.GetProgramByCategory(ctx, "get-golf-ready", "Level II")
	require.NoError(t, err)
	assert.Equal(t, "ggr-2", p.ID)

	p, err = svc.GetProgramByCategory(ctx, "get-golf-ready", "")
	require.NoError(t, err)
	assert.Equal(t, "ggr-1", p.ID)

	_, err = svc.GetProgramByCategory(ctx, "get-golf-ready", "Level III")
	assert.ErrorIs(t, err, ErrProgramNotFound)
}

func TestCreateProgram(t *testing.T) {
	svc := newTestCatalog(t)
	ctx := context.Background()

	p := &models.Program{Name: "Golf for Women", Type: models.RegistrationAdult, PriceCents: 15000}
	require.NoError(t, svc.CreateProgram(ctx, p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 6, p.Capacity)

	invalid := []*models.Program{
		{Type: models.RegistrationAdult, PriceCents: 100},
		{Name: "Seniors", Type: "senior", PriceCents: 100},
		{Name: "Refund", Type: models.RegistrationAdult, PriceCents: -1},
		{Name: "Too much", Type: models.RegistrationAdult, PriceCents: models.MaxAmountCents + 1},
		{Name: "Nobody", Type: models.RegistrationAdult, Capacity: -1},
	}
	for _, p := range invalid {
		assert.ErrorIs(t, svc.CreateProgram(ctx, p), ErrInvalidProgram, p.Name)
	}

	all, err := svc.ListPrograms(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestUpdateProgram(t *testing.T) {
	svc := newTestCatalog(t)
	ctx := context.Background()

	price := int64(16000)
	level := "Level I+"
	p, err := svc.UpdateProgram(ctx, "ggr-1", models.ProgramUpdate{PriceCents: &price, Level: &level})
	require.NoError(t, err)
	assert.Equal(t, price, p.PriceCents)
	assert.Equal(t, level, p.Level)
	assert.Equal(t, "Get Golf Ready (Level I)", p.Name)

	empty := ""
	_, err = svc.UpdateProgram(ctx, "ggr-1", models.ProgramUpdate{Name: &empty})
	assert.ErrorIs(t, err, ErrInvalidProgram)

	got, err := svc.GetProgram(ctx, "ggr-1")
	require.NoError(t, err)
	assert.Equal(t, "Get Golf Ready (Level I)", got.Name)

	_, err = svc.UpdateProgram(ctx, "nope", models.ProgramUpdate{PriceCents: &price})
	assert.ErrorIs(t, err, ErrProgramNotFound)
}

func TestDeleteProgram(t *testing.T) {
	svc := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, svc.DeleteProgram(ctx, "ggr-1"))

	_, err := svc.GetProgram(ctx, "ggr-1")
	assert.ErrorIs(t, err, ErrProgramNotFound)
	sessions, err := svc.GetProgramSessions(ctx, "ggr-1")
	require.NoError(t, err)
	assert.Empty(t, sessions)

	assert.ErrorIs(t, svc.DeleteProgram(ctx, "ggr-1"), ErrProgramNotFound)
}

func TestCreateProgramSession(t *testing.T) {
	svc := newTestCatalog(t)
	ctx := context.Background()
	start := time.Date(2026, 7, 6, 0, 0, 0, 0, time.UTC)

	session := &models.ProgramSession{ProgramID: "camp", Name: "Week 1",
		StartDate: start, EndDate: start.AddDate(0, 0, 4), Capacity: 12, IsActive: true}
	require.NoError(t, svc.CreateProgramSession(ctx, session))
	assert.NotEmpty(t, session.ID)

	_, err := svc.Resolve(ctx, "camp", session.ID, models.RegistrationJunior)
	assert.NoError(t, err)

	backwards := &models.ProgramSession{ProgramID: "camp", Name: "Backwards",
		StartDate: start, EndDate: start.AddDate(0, 0, -1), Capacity: 12}
	assert.ErrorIs(t, svc.CreateProgramSession(ctx, backwards), ErrInvalidProgram)

	orphan := &models.ProgramSession{ProgramID: "nope", Name: "Week 1",
		StartDate: start, EndDate: start, Capacity: 12}
	assert.ErrorIs(t, svc.CreateProgramSession(ctx, orphan), ErrProgramNotFound)
}

func TestSeed_DefaultPrograms(t *testing.T) {
	svc := NewService(db.NewMemoryDB(), nil)
	ctx := context.Background()
	programs := DefaultPrograms(2026)

	res, err := svc.Seed(ctx, programs)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Programs: 10, Sessions: 21}, res)

	again, err := svc.Seed(ctx, DefaultPrograms(2026))
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Skipped: 10}, again)

	private, err := svc.GetProgramWithSessions(ctx, "adult-private-instruction")
	require.NoError(t, err)
	assert.Empty(t, private.Sessions)

	camp, err := svc.GetProgramWithSessions(ctx, "junior-golf-camp")
	require.NoError(t, err)
	require.Len(t, camp.Sessions, 3)
	first := camp.Sessions[0]
	assert.Equal(t, "junior-golf-camp-2026-04", first.ID)
	assert.Equal(t, time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), first.EndDate)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, first.Schedule.DaysOfWeek)
	assert.Equal(t, 12, first.Capacity)

	_, err = svc.Resolve(ctx, "junior-golf-camp", "junior-golf-camp-2026-05", models.RegistrationJunior)
	assert.NoError(t, err)

	level2, err := svc.GetProgramByCategory(ctx, "get-golf-ready", "Level II")
	require.NoError(t, err)
	assert.Equal(t, "get-golf-ready-level-2", level2.ID)
}
