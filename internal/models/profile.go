package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Availability enums shown on a freelancer's profile.
const (
	AvailabilityFreeNow     = "freenow"
	AvailabilityFree1Hr     = "free1hr"
	AvailabilityFreeTonight = "freetonight"
	AvailabilityFreeWeekend = "freeweekend"
	AvailabilityBusy        = "busy"
)

var availabilities = map[string]bool{
	AvailabilityFreeNow: true, AvailabilityFree1Hr: true, AvailabilityFreeTonight: true,
	AvailabilityFreeWeekend: true, AvailabilityBusy: true,
}

// ValidAvailability reports whether a is a known availability status.
func ValidAvailability(a string) bool { return availabilities[a] }

type Profile struct {
	ID                  uuid.UUID `json:"id"`
	FullName            string    `json:"full_name"`
	CollegeEmail        string    `json:"college_email"`
	Bio                 string    `json:"bio"`
	Skills              []string  `json:"skills"`
	Availability        string    `json:"availability"`
	ReliabilityScore    int       `json:"reliability_score"`
	CompletedTasksCount int       `json:"completed_tasks_count"`
	RatingPointsTotal   int64     `json:"-"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (p *Profile) Validate() error {
	switch {
	case p.ID == uuid.Nil:
		return fmt.Errorf("%w: profile id is empty", ErrInvalidRecord)
	case p.ReliabilityScore < 0 || p.ReliabilityScore > 100:
		return fmt.Errorf("%w: profile %s reliability %d out of range", ErrInvalidRecord, p.ID, p.ReliabilityScore)
	case p.CompletedTasksCount < 0:
		return fmt.Errorf("%w: profile %s completed count is negative", ErrInvalidRecord, p.ID)
	case p.RatingPointsTotal < 0:
		return fmt.Errorf("%w: profile %s rating total is negative", ErrInvalidRecord, p.ID)
	}
	return nil
}

// ReliabilityStars is the 0-5 form of the reliability score shown in the UI.
func (p *Profile) ReliabilityStars() float64 {
	return float64(p.ReliabilityScore) / 20
}
