package db

import (
	"context"

	"github.com/google/uuid"

	"github.com/violin-academy/academy-back/internal/models"
)

func (s *Store) AddPoints(ctx context.Context, e *models.PointsEntry) error {
	ensureID(&e.ID)
	return classify(s.db.WithContext(ctx).Create(e).Error, "add points")
}

func (s *Store) ListPoints(ctx context.Context, userID uuid.UUID) ([]models.PointsEntry, error) {
	out := []models.PointsEntry{}
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error
	if err != nil {
		return nil, classify(err, "list points")
	}
	return out, nil
}

func (s *Store) TotalPoints(ctx context.Context, userID uuid.UUID) (int, error) {
	var total int
	err := s.db.WithContext(ctx).Model(&models.PointsEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points_change), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, classify(err, "total points")
	}
	return total, nil
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	out := []models.LeaderboardEntry{}
	err := s.db.WithContext(ctx).Table("student_points AS sp").
		Select("sp.user_id, p.name, SUM(sp.points_change) AS total").
		Joins("JOIN profiles p ON p.id = sp.user_id").
		Group("sp.user_id, p.name").
		Order("total DESC, p.name").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, classify(err, "points leaderboard")
	}
	return out, nil
}
