package models

import (
	"time"

	"github.com/google/uuid"
)

// PracticeSession is logged by a student and never mutated afterwards.
type PracticeSession struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Date      Date      `json:"date" gorm:"not null;index"`
	Minutes   int       `json:"minutes" gorm:"not null"`
	StartTime *string   `json:"start_time,omitempty" gorm:"type:varchar(5)"`
	EndTime   *string   `json:"end_time,omitempty" gorm:"type:varchar(5)"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
