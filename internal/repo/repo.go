// Package repo declares the storage contracts the HTTP layer depends on.
// internal/db implements them on Postgres, internal/memdb in memory.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/violin-academy/academy-back/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type ProfileFilter struct {
	Role  models.Role
	Level models.Level
	// Name matches profiles whose name contains it, case-insensitively.
	Name string
	IDs  []uuid.UUID
}

type Profiles interface {
	CreateProfile(ctx context.Context, p *models.Profile) error
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	ListProfiles(ctx context.Context, f ProfileFilter) ([]models.Profile, error)
	UpdateProfile(ctx context.Context, p *models.Profile) error
	DeleteProfile(ctx context.Context, id uuid.UUID) error
	IsAdmin(ctx context.Context, id uuid.UUID) (bool, error)
}

type PracticeFilter struct {
	UserID uuid.UUID
	From   *models.Date
	To     *models.Date
}

type Practice interface {
	CreatePracticeSession(ctx context.Context, s *models.PracticeSession) error
	ListPracticeSessions(ctx context.Context, f PracticeFilter) ([]models.PracticeSession, error)
}

type FeeFilter struct {
	Status models.FeeStatus
	// UserIDs restricts to these students. A non-nil empty slice matches nothing.
	UserIDs []uuid.UUID
	From    *models.Date
	To      *models.Date
}

type Fees interface {
	CreateFee(ctx context.Context, f *models.FeeRecord) error
	GetFee(ctx context.Context, id uuid.UUID) (*models.FeeRecord, error)
	ListFees(ctx context.Context, f FeeFilter) ([]models.FeeRecord, error)
	UpdateFee(ctx context.Context, f *models.FeeRecord) error
	DeleteFee(ctx context.Context, id uuid.UUID) error
	// MarkOverdue flips pending fees billed before cutoff to overdue and
	// returns how many changed.
	MarkOverdue(ctx context.Context, cutoff models.Date) (int64, error)
}

type TrialFilter struct {
	Status models.TrialStatus
	// Search matches name, email or phone, case-insensitively.
	Search string
	// CreatedBefore limits to requests created before this instant, when set.
	CreatedBefore *time.Time
}

type Trials interface {
	CreateTrialRequest(ctx context.Context, t *models.TrialRequest) error
	GetTrialRequest(ctx context.Context, id uuid.UUID) (*models.TrialRequest, error)
	ListTrialRequests(ctx context.Context, f TrialFilter) ([]models.TrialRequest, error)
	UpdateTrialRequest(ctx context.Context, t *models.TrialRequest) error
	// ConvertTrialRequest creates the student profile p and stores t's new
	// status in one transaction. Neither write is kept if the other fails.
	ConvertTrialRequest(ctx context.Context, t *models.TrialRequest, p *models.Profile) error
}

type Points interface {
	AddPoints(ctx context.Context, e *models.PointsEntry) error
	ListPoints(ctx context.Context, userID uuid.UUID) ([]models.PointsEntry, error)
	TotalPoints(ctx context.Context, userID uuid.UUID) (int, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

type AttendanceFilter struct {
	UserID *uuid.UUID
	From   *models.Date
	To     *models.Date
}

type Attendance interface {
	// UpsertAttendance stores a mark, replacing any mark the student already
	// has for that day.
	UpsertAttendance(ctx context.Context, a *models.Attendance) error
	ListAttendance(ctx context.Context, f AttendanceFilter) ([]models.Attendance, error)
	DeleteAttendance(ctx context.Context, id uuid.UUID) error
}

// Store bundles every repository.
type Store interface {
	Profiles
	Practice
	Fees
	Trials
	Points
	Attendance
	Ping(ctx context.Context) error
}
