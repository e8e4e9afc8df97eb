package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidRecord is returned by Validate when a row read from the store
// breaks a field constraint.
var ErrInvalidRecord = errors.New("invalid record")

// Task status enums. A task only ever moves forward through these.
const (
	TaskStatusOpen      = "OPEN"
	TaskStatusAssigned  = "ASSIGNED"
	TaskStatusSubmitted = "SUBMITTED"
	TaskStatusCompleted = "COMPLETED"
)

// Task categories offered by the marketplace.
const (
	CategoryCoding   = "coding"
	CategoryDesign   = "design"
	CategoryTutoring = "tutoring"
	CategoryNotes    = "notes"
	CategoryDelivery = "delivery"
	CategoryData     = "data"
	CategoryEvent    = "event"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityUrgent = "urgent"
)

var (
	taskStatuses = map[string]bool{TaskStatusOpen: true, TaskStatusAssigned: true, TaskStatusSubmitted: true, TaskStatusCompleted: true}
	categories   = map[string]bool{
		CategoryCoding: true, CategoryDesign: true, CategoryTutoring: true, CategoryNotes: true,
		CategoryDelivery: true, CategoryData: true, CategoryEvent: true,
	}
	priorities = map[string]bool{PriorityLow: true, PriorityMedium: true, PriorityUrgent: true}
)

// ValidCategory reports whether c is a known task category.
func ValidCategory(c string) bool { return categories[c] }

// ValidPriority reports whether p is a known task priority.
func ValidPriority(p string) bool { return priorities[p] }

type Task struct {
	ID                   uuid.UUID  `json:"id"`
	ClientID             uuid.UUID  `json:"client_id"`
	AssignedFreelancerID *uuid.UUID `json:"assigned_freelancer_id,omitempty"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Category             string     `json:"category"`
	Priority             string     `json:"priority"`
	BudgetMinor          int64      `json:"budget_minor"`
	Deadline             time.Time  `json:"deadline"`
	Status               string     `json:"status"`
	RequiredSkills       []string   `json:"required_skills"`
	Rating               *int       `json:"rating,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Validate checks the constraints a task row must satisfy before the core uses it.
func (t *Task) Validate() error {
	switch {
	case t.ID == uuid.Nil:
		return fmt.Errorf("%w: task id is empty", ErrInvalidRecord)
	case t.ClientID == uuid.Nil:
		return fmt.Errorf("%w: task %s has no client", ErrInvalidRecord, t.ID)
	case t.BudgetMinor <= 0:
		return fmt.Errorf("%w: task %s budget %d must be positive", ErrInvalidRecord, t.ID, t.BudgetMinor)
	case !taskStatuses[t.Status]:
		return fmt.Errorf("%w: task %s has unknown status %q", ErrInvalidRecord, t.ID, t.Status)
	}
	if t.Status != TaskStatusOpen && t.AssignedFreelancerID == nil {
		return fmt.Errorf("%w: task %s is %s without an assigned freelancer", ErrInvalidRecord, t.ID, t.Status)
	}
	if t.Rating != nil && (*t.Rating < 1 || *t.Rating > 5) {
		return fmt.Errorf("%w: task %s rating %d out of range", ErrInvalidRecord, t.ID, *t.Rating)
	}
	return nil
}

// IsAssignedTo reports whether userID is the task's assigned freelancer.
func (t *Task) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssignedFreelancerID != nil && *t.AssignedFreelancerID == userID
}

// NormalizeSkills lowercases, trims and deduplicates skill tags, keeping first-seen order.
func NormalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
