package db

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
)

func (s *Store) UpsertAttendance(ctx context.Context, a *models.Attendance) error {
	ensureID(&a.ID)
	err := s.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
				DoUpdates: clause.AssignmentColumns([]string{"status", "notes", "marked_by", "updated_at"}),
			},
			clause.Returning{Columns: []clause.Column{{Name: "id"}, {Name: "created_at"}}},
		).
		Create(a).Error
	return classify(err, "upsert attendance")
}

func (s *Store) ListAttendance(ctx context.Context, f repo.AttendanceFilter) ([]models.Attendance, error) {
	tx := s.db.WithContext(ctx).Model(&models.Attendance{})
	if f.UserID != nil {
		tx = tx.Where("user_id = ?", *f.UserID)
	}
	if f.From != nil {
		tx = tx.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		tx = tx.Where("date <= ?", *f.To)
	}

	out := []models.Attendance{}
	if err := tx.Order("date DESC").Find(&out).Error; err != nil {
		return nil, classify(err, "list attendance")
	}
	return out, nil
}

func (s *Store) DeleteAttendance(ctx context.Context, id uuid.UUID) error {
	return affected(s.db.WithContext(ctx).Delete(&models.Attendance{}, "id = ?", id), "delete attendance")
}
