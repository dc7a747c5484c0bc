package models

import "time"

// MaxItemQuantity bounds a single cart line.
const MaxItemQuantity = 99

// Program is a catalog entry: a lesson series, camp or private instruction
// offered to either adults or juniors.
type Program struct {
	ID          string           `json:"id"`
	Name        string           `json:"name" validate:"required"`
	Description string           `json:"description"`
	Type        RegistrationType `json:"type" validate:"oneof=adult junior"`
	Category    string           `json:"category"`
	Level       string           `json:"level,omitempty"`
	PriceCents  int64            `json:"price_cents" validate:"gte=0,lte=99999999"`
	Duration    string           `json:"duration"`
	Capacity    int              `json:"capacity" validate:"gte=1"`
	ImageURL    string           `json:"image_url,omitempty"`
	Features    []string         `json:"features,omitempty"`
	Details     []ProgramDetail  `json:"details,omitempty"`
	// Filled only by reads that ask for sessions.
	Sessions  []ProgramSession `json:"sessions,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ProgramDetail is one highlighted block on a program page, such as
// "class-size" or "all-inclusive".
type ProgramDetail struct {
	Type         string   `json:"type"`
	Descriptions []string `json:"descriptions"`
}

// ProgramSession is a dated run of a program with its own capacity.
type ProgramSession struct {
	ID            string           `json:"id"`
	ProgramID     string           `json:"program_id" validate:"required"`
	Name          string           `json:"name" validate:"required"`
	StartDate     time.Time        `json:"start_date" validate:"required"`
	EndDate       time.Time        `json:"end_date" validate:"required,gtefield=StartDate"`
	Schedule      *SessionSchedule `json:"schedule,omitempty"`
	Capacity      int              `json:"capacity" validate:"gte=1"`
	EnrolledCount int              `json:"enrolled_count" validate:"gte=0"`
	IsActive      bool             `json:"is_active"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// SessionSchedule is a weekly recurrence. Days count from Sunday as 0; times
// are "HH:MM" on a 24h clock.
type SessionSchedule struct {
	DaysOfWeek []int  `json:"daysOfWeek"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

// ProgramUpdate carries the fields to change; nil fields are left as stored.
type ProgramUpdate struct {
	Name        *string
	Description *string
	Category    *string
	Level       *string
	PriceCents  *int64
	Duration    *string
	Capacity    *int
	ImageURL    *string
	Features    []string
	Details     []ProgramDetail
}

// Apply copies the set fields onto p.
func (u ProgramUpdate) Apply(p *Program) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Level != nil {
		p.Level = *u.Level
	}
	if u.PriceCents != nil {
		p.PriceCents = *u.PriceCents
	}
	if u.Duration != nil {
		p.Duration = *u.Duration
	}
	if u.Capacity != nil {
		p.Capacity = *u.Capacity
	}
	if u.ImageURL != nil {
		p.ImageURL = *u.ImageURL
	}
	if u.Features != nil {
		p.Features = u.Features
	}
	if u.Details != nil {
		p.Details = u.Details
	}
}
