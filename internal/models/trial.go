package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TrialStatus string

const (
	TrialNew       TrialStatus = "new"
	TrialContacted TrialStatus = "contacted"
	TrialScheduled TrialStatus = "scheduled"
	TrialCompleted TrialStatus = "completed"
	TrialConverted TrialStatus = "converted"
	TrialCancelled TrialStatus = "cancelled"
	TrialRejected  TrialStatus = "rejected"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var trialTransitions = map[TrialStatus][]TrialStatus{
	TrialNew:       {TrialContacted, TrialScheduled, TrialCancelled, TrialRejected},
	TrialContacted: {TrialScheduled, TrialCancelled, TrialRejected},
	TrialScheduled: {TrialContacted, TrialCompleted, TrialCancelled, TrialRejected},
	TrialCompleted: {TrialConverted, TrialRejected},
}

func (s TrialStatus) Valid() bool {
	switch s {
	case TrialNew, TrialContacted, TrialScheduled, TrialCompleted,
		TrialConverted, TrialCancelled, TrialRejected:
		return true
	}
	return false
}

func (s TrialStatus) Terminal() bool {
	_, open := trialTransitions[s]
	return !open
}

// CanTransition reports whether an admin may move a request from s to next.
// Setting the current status again is always allowed.
func (s TrialStatus) CanTransition(next TrialStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range trialTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TrialRequest is created by the public trial form and changed only by admins.
type TrialRequest struct {
	ID            uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	Name          string      `json:"name" gorm:"not null"`
	Email         string      `json:"email" gorm:"not null;index"`
	Phone         string      `json:"phone"`
	Age           *int        `json:"age,omitempty"`
	Course        string      `json:"course"`
	Level         Level       `json:"level,omitempty" gorm:"type:varchar(16)"`
	PreferredDate *Date       `json:"preferred_date,omitempty"`
	PreferredTime *string     `json:"preferred_time,omitempty" gorm:"type:varchar(5)"`
	Message       string      `json:"message,omitempty"`
	AdminNotes    string      `json:"admin_notes,omitempty"`
	Status        TrialStatus `json:"status" gorm:"type:varchar(16);not null;default:new;index"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Transition moves the request to next or returns ErrInvalidTransition.
func (t *TrialRequest) Transition(next TrialStatus) error {
	if !next.Valid() || !t.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	return nil
}
