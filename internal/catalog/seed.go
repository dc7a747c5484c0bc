package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golf-booking/internal/db"
	"golf-booking/internal/models"
)

// SeedResult counts what Seed wrote. Programs that already exist are skipped
// together with their sessions.
type SeedResult struct {
	Programs int
	Sessions int
	Skipped  int
}

// Seed creates the given programs and their Sessions. It can be run again
// safely: programs whose id is already taken are left untouched.
func (s *Service) Seed(ctx context.Context, programs []models.Program) (SeedResult, error) {
	var res SeedResult
	for i := range programs {
		p := programs[i]
		sessions := p.Sessions
		p.Sessions = nil

		err := s.CreateProgram(ctx, &p)
		if errors.Is(err, db.ErrDuplicate) {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("seed program %q: %w", p.Name, err)
		}
		res.Programs++

		for j := range sessions {
			session := sessions[j]
			session.ProgramID = p.ID
			if err := s.CreateProgramSession(ctx, &session); err != nil {
				return res, fmt.Errorf("seed session %q of %q: %w", session.Name, p.Name, err)
			}
			res.Sessions++
		}
	}
	s.log.Infow("catalog seeded",
		"programs", res.Programs,
		"sessions", res.Sessions,
		"skipped", res.Skipped,
	)
	return res, nil
}

var (
	weekdayCamp   = &models.SessionSchedule{DaysOfWeek: []int{1, 2, 3, 4, 5}, StartTime: "09:00", EndTime: "15:00"}
	saturdayClass = &models.SessionSchedule{DaysOfWeek: []int{6}, StartTime: "09:00", EndTime: "10:00"}
)

// DefaultPrograms is the academy's standard catalog. Group programs get three
// monthly sessions, April through June of year; private instruction and open
// practice are booked without a session.
func DefaultPrograms(year int) []models.Program {
	programs := []models.Program{
		{
			ID:          "get-golf-ready-level-1",
			Name:        "Get Golf Ready (Level I)",
			Description: "A PGA National program for beginners covering the skills, rules, etiquette and values needed to step onto a golf course with confidence. Each class runs for five weeks.",
			Type:        models.RegistrationAdult,
			Category:    "get-golf-ready",
			Level:       "Level I",
			PriceCents:  15000,
			Duration:    "Five 1-hour range sessions",
			Capacity:    6,
			ImageURL:    "/golf_ready_level1.webp",
			Features: []string{
				"Pitching, chipping and bunker play",
				"Putting technique and reading greens",
				"Full swing fundamentals",
				"Club selections for golf course",
				"Keeping score and navigating course",
			},
			Details: []models.ProgramDetail{
				{Type: "all-inclusive", Descriptions: []string{"Practice balls and green fees are included", "Equipment is provided free of charge"}},
				{Type: "class-size", Descriptions: []string{"Class is limited to six students"}},
			},
		},
		{
			ID:          "get-golf-ready-level-2",
			Name:        "Get Golf Ready (Level II)",
			Description: "Builds on Level I with course play, strategy and more advanced technique.",
			Type:        models.RegistrationAdult,
			Category:    "get-golf-ready",
			Level:       "Level II",
			PriceCents:  12000,
			Duration:    "Four 1-hour sessions",
			Capacity:    6,
			ImageURL:    "/golf_ready_level2.webp",
			Features: []string{
				"Pitching, chipping and bunker play",
				"Full swing fundamentals",
				"Comprehensive video analysis of your golf swing",
			},
			Details: []models.ProgramDetail{
				{Type: "class-size", Descriptions: []string{"Class limited to six students per class"}},
				{Type: "video-analysis", Descriptions: []string{"Comprehensive video analysis of your golf swing"}},
			},
		},
		{
			ID:          "adult-short-game",
			Name:        "Adult Short Game Series",
			Description: "Putting, chipping, pitching and bunker play: the shots that lower scores.",
			Type:        models.RegistrationAdult,
			Category:    "short-game",
			PriceCents:  10000,
			Duration:    "Three 1-hour sessions",
			Capacity:    4,
			ImageURL:    "/adult_short_game.webp",
			Features: []string{
				"Chipping fundamentals",
				"Developing wedge shot distance control",
				"Putting technique and green reading skills",
			},
		},
		{
			ID:          "golf-for-women",
			Name:        "Golf for Women",
			Description: "A five week program for women learning the game in a supportive environment.",
			Type:        models.RegistrationAdult,
			Category:    "women",
			PriceCents:  15000,
			Duration:    "Five 1-hour range sessions",
			Capacity:    6,
			ImageURL:    "/golf_for_women.webp",
		},
		{
			ID:          "adult-private-instruction",
			Name:        "Adult Private Golf Instruction",
			Description: "One-on-one instruction with a PGA professional, with high-speed video review and a personal practice plan.",
			Type:        models.RegistrationAdult,
			Category:    "private",
			PriceCents:  7000,
			Duration:    "1-hour session",
			Capacity:    1,
			ImageURL:    "/adult_private_instruction.webp",
			Details: []models.ProgramDetail{
				{Type: "private-instruction", Descriptions: []string{"One-on-one coaching sessions"}},
				{Type: "video-analysis", Descriptions: []string{"High-speed video swing review"}},
			},
		},
		{
			ID:          "adult-open-practice",
			Name:        "Adult Open Practice",
			Description: "Supervised open practice for intermediate and advanced players.",
			Type:        models.RegistrationAdult,
			Category:    "open-practice",
			PriceCents:  3000,
			Duration:    "1-hour session",
			Capacity:    4,
			ImageURL:    "/adult_open_practice.webp",
			Details: []models.ProgramDetail{
				{Type: "schedule", Descriptions: []string{"April through October", "Saturday at 11:00 am"}},
			},
		},
		{
			ID:          "junior-beginner-series",
			Name:        "Junior Beginner Series",
			Description: "An introduction to golf for young players in a fun, engaging environment.",
			Type:        models.RegistrationJunior,
			Category:    "beginner-series",
			PriceCents:  12000,
			Duration:    "Four 1-hour sessions",
			Capacity:    6,
			ImageURL:    "/junior_beginner_series.webp",
			Details: []models.ProgramDetail{
				{Type: "instructor-ratio", Descriptions: []string{"6:1 for personalized instruction"}},
				{Type: "age-group", Descriptions: []string{"Boys and Girls ages 7-17"}},
			},
		},
		{
			ID:          "junior-developmental-series",
			Name:        "Junior Developmental Series",
			Description: "Skill development and course play for juniors ready for the next level.",
			Type:        models.RegistrationJunior,
			Category:    "developmental-series",
			PriceCents:  12500,
			Duration:    "Four 1.5-hour sessions",
			Capacity:    6,
			ImageURL:    "/junior_development_series.gif",
		},
		{
			ID:          "junior-golf-camp",
			Name:        "Junior Golf Camp",
			Description: "Full days of instruction, games and on-course play.",
			Type:        models.RegistrationJunior,
			Category:    "golf-camp",
			PriceCents:  29900,
			Duration:    "5-day camp (9am-3pm)",
			Capacity:    12,
			ImageURL:    "/junior_golf_camp.webp",
			Details: []models.ProgramDetail{
				{Type: "age-group", Descriptions: []string{"Ages 7-14"}},
				{Type: "course-play", Descriptions: []string{"End-of-camp tournament"}},
			},
		},
		{
			ID:          "junior-private-instruction",
			Name:        "Junior Private Instruction",
			Description: "Individual coaching for young golfers.",
			Type:        models.RegistrationJunior,
			Category:    "private-instruction",
			PriceCents:  6500,
			Duration:    "45-minute session",
			Capacity:    1,
			ImageURL:    "/junior_private_instruction.webp",
		},
	}

	for i := range programs {
		p := &programs[i]
		if p.Capacity <= 1 || p.Category == "open-practice" {
			continue
		}
		schedule := saturdayClass
		if p.Category == "golf-camp" {
			schedule = weekdayCamp
		}
		p.Sessions = monthlySessions(p.ID, year, p.Capacity, schedule)
	}
	return programs
}

func monthlySessions(programID string, year, capacity int, schedule *models.SessionSchedule) []models.ProgramSession {
	months := []time.Month{time.April, time.May, time.June}
	sessions := make([]models.ProgramSession, 0, len(months))
	for i, month := range months {
		start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		sessions = append(sessions, models.ProgramSession{
			ID:        fmt.Sprintf("%s-%d-%02d", programID, year, int(month)),
			Name:      fmt.Sprintf("Session %d: %s %d", i+1, month, year),
			StartDate: start,
			EndDate:   start.AddDate(0, 1, -1),
			Schedule:  schedule,
			Capacity:  capacity,
			IsActive:  true,
		})
	}
	return sessions
}
