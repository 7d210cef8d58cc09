package models

import (
	"time"

	"github.com/google/uuid"
)

// PointsEntry is one row of the append-only points ledger. A student's
// total is the sum of PointsChange over their rows.
type PointsEntry struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	PointsChange int       `json:"points_change" gorm:"not null"`
	Activity     string    `json:"activity" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}

func (PointsEntry) TableName() string { return "student_points" }

type LeaderboardEntry struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Total  int       `json:"total"`
}
