package models

import (
	"time"

	"github.com/google/uuid"
)

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

// Attendance is at most one row per student per day.
type Attendance struct {
	ID        uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_attendance_user_date"`
	Date      Date             `json:"date" gorm:"not null;uniqueIndex:idx_attendance_user_date"`
	Status    AttendanceStatus `json:"status" gorm:"type:varchar(16);not null"`
	Notes     string           `json:"notes,omitempty"`
	MarkedBy  *uuid.UUID       `json:"marked_by,omitempty" gorm:"type:uuid"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (Attendance) TableName() string { return "attendance" }
