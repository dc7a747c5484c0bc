package server

import (
	"errors"
	"net/http"

	"golf-booking/internal/catalog"
	"golf-booking/internal/models"

	"github.com/go-chi/chi/v5"
)

type ProgramSessionDTO struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	StartDate     string                  `json:"startDate"`
	EndDate       string                  `json:"endDate"`
	Schedule      *models.SessionSchedule `json:"schedule,omitempty"`
	Capacity      int                     `json:"capacity"`
	EnrolledCount int                     `json:"enrolledCount"`
	IsActive      bool                    `json:"isActive"`
}

type ProgramDTO struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Type        models.RegistrationType `json:"type"`
	Category    string                  `json:"category"`
	Level       string                  `json:"level,omitempty"`
	Price       string                  `json:"price"`
	PriceCents  int64                   `json:"priceCents"`
	Duration    string                  `json:"duration"`
	Capacity    int                     `json:"capacity"`
	ImageURL    string                  `json:"imageUrl,omitempty"`
	Features    []string                `json:"features,omitempty"`
	Details     []models.ProgramDetail  `json:"details,omitempty"`
	Sessions    []ProgramSessionDTO     `json:"sessions,omitempty"`
}

const dateLayout = "2006-01-02"

func newProgramDTO(p *models.Program) ProgramDTO {
	out := ProgramDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Type:        p.Type,
		Category:    p.Category,
		Level:       p.Level,
		Price:       models.FormatCents(p.PriceCents),
		PriceCents:  p.PriceCents,
		Duration:    p.Duration,
		Capacity:    p.Capacity,
		ImageURL:    p.ImageURL,
		Features:    p.Features,
		Details:     p.Details,
	}
	for _, s := range p.Sessions {
		out.Sessions = append(out.Sessions, ProgramSessionDTO{
			ID:            s.ID,
			Name:          s.Name,
			StartDate:     s.StartDate.Format(dateLayout),
			EndDate:       s.EndDate.Format(dateLayout),
			Schedule:      s.Schedule,
			Capacity:      s.Capacity,
			EnrolledCount: s.EnrolledCount,
			IsActive:      s.IsActive,
		})
	}
	return out
}

func (a *API) listPrograms(w http.ResponseWriter, r *http.Request) {
	programType := models.RegistrationType(r.URL.Query().Get("type"))
	programs, err := a.catalog.ListPrograms(r.Context(), programType)
	if errors.Is(err, catalog.ErrInvalidProgram) {
		respondError(w, http.StatusBadRequest, "invalid_type", err.Error())
		return
	}
	if err != nil {
		a.respondInternal(w, r, "failed to list programs", err)
		return
	}

	out := make([]ProgramDTO, 0, len(programs))
	for _, p := range programs {
		out = append(out, newProgramDTO(p))
	}
	respondJSON(w, http.StatusOK, out)
}

func (a *API) getProgram(w http.ResponseWriter, r *http.Request) {
	p, err := a.catalog.GetProgramWithSessions(r.Context(), chi.URLParam(r, "programID"))
	if errors.Is(err, catalog.ErrProgramNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "program not found")
		return
	}
	if err != nil {
		a.respondInternal(w, r, "failed to load program", err)
		return
	}
	respondJSON(w, http.StatusOK, newProgramDTO(p))
}
