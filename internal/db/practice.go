package db

import (
	"context"

	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
)

func (s *Store) CreatePracticeSession(ctx context.Context, ps *models.PracticeSession) error {
	ensureID(&ps.ID)
	return classify(s.db.WithContext(ctx).Create(ps).Error, "create practice session")
}

func (s *Store) ListPracticeSessions(ctx context.Context, f repo.PracticeFilter) ([]models.PracticeSession, error) {
	tx := s.db.WithContext(ctx).Where("user_id = ?", f.UserID)
	if f.From != nil {
		tx = tx.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		tx = tx.Where("date <= ?", *f.To)
	}

	out := []models.PracticeSession{}
	if err := tx.Order("date DESC, created_at DESC").Find(&out).Error; err != nil {
		return nil, classify(err, "list practice sessions")
	}
	return out, nil
}
