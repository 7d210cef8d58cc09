package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Profile is one row per account.
type Profile struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name         string    `json:"name" gorm:"not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	Role         Role      `json:"role" gorm:"type:varchar(16);not null;default:student"`
	Phone        string    `json:"phone,omitempty"`
	Level        Level     `json:"level,omitempty" gorm:"type:varchar(16)"`
	ParentName   string    `json:"parent_name,omitempty"`
	DateOfBirth  *Date     `json:"date_of_birth,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p Profile) IsAdmin() bool { return p.Role == RoleAdmin }

// NormalizeEmail is the stored form of a profile email. Emails are unique
// regardless of case.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProfilePatch carries the fields an admin may change on a profile. Nil
// fields are left untouched.
type ProfilePatch struct {
	Name        *string
	Email       *string
	Phone       *string
	Level       *Level
	ParentName  *string
	DateOfBirth *Date
	Role        *Role
}

func (p *Profile) Apply(patch ProfilePatch) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Email != nil {
		p.Email = *patch.Email
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	if patch.Level != nil {
		p.Level = *patch.Level
	}
	if patch.ParentName != nil {
		p.ParentName = *patch.ParentName
	}
	if patch.DateOfBirth != nil {
		dob := *patch.DateOfBirth
		p.DateOfBirth = &dob
	}
	if patch.Role != nil {
		p.Role = *patch.Role
	}
}
