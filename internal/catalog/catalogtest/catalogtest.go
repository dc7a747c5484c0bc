// Package catalogtest seeds a small program catalog for tests that book
// through the cart.
package catalogtest

import (
	"context"
	"testing"
	"time"

	"golf-booking/internal/catalog"
	"golf-booking/internal/models"
)

const (
	AdultProgramID  = "adult-101"
	JuniorProgramID = "junior-camp"
	JuniorSessionID = "week-2"
)

// Seed creates an adult program priced at $150 and a junior camp priced at
// $120 with one active session, and returns a catalog over store.
func Seed(tb testing.TB, store catalog.Store) *catalog.Service {
	tb.Helper()
	programs := catalog.NewService(store, nil)
	start := time.Date(2026, 6, 8, 0, 0, 0, 0, time.UTC)

	_, err := programs.Seed(context.Background(), []models.Program{
		{
			ID:         AdultProgramID,
			Name:       "Get Golf Ready (Level I)",
			Type:       models.RegistrationAdult,
			Category:   "get-golf-ready",
			PriceCents: 15000,
		},
		{
			ID:         JuniorProgramID,
			Name:       "Junior Golf Camp",
			Type:       models.RegistrationJunior,
			Category:   "golf-camp",
			PriceCents: 12000,
			Capacity:   12,
			Sessions: []models.ProgramSession{{
				ID:        JuniorSessionID,
				Name:      "Week 2",
				StartDate: start,
				EndDate:   start.AddDate(0, 0, 4),
				Capacity:  12,
				IsActive:  true,
			}},
		},
	})
	if err != nil {
		tb.Fatalf("seed catalog: %v", err)
	}
	return programs
}
