package db

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
)

func (s *Store) CreateTrialRequest(ctx context.Context, t *models.TrialRequest) error {
	ensureID(&t.ID)
	if t.Status == "" {
		t.Status = models.TrialNew
	}
	return classify(s.db.WithContext(ctx).Create(t).Error, "create trial request")
}

func (s *Store) GetTrialRequest(ctx context.Context, id uuid.UUID) (*models.TrialRequest, error) {
	var t models.TrialRequest
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, classify(err, "get trial request")
	}
	return &t, nil
}

func (s *Store) ListTrialRequests(ctx context.Context, f repo.TrialFilter) ([]models.TrialRequest, error) {
	tx := s.db.WithContext(ctx).Model(&models.TrialRequest{})
	if f.Status != "" {
		tx = tx.Where("status = ?", f.Status)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		tx = tx.Where("name ILIKE ? OR email ILIKE ? OR phone ILIKE ?", p, p, p)
	}
	if f.CreatedBefore != nil {
		tx = tx.Where("created_at < ?", *f.CreatedBefore)
	}

	out := []models.TrialRequest{}
	if err := tx.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, classify(err, "list trial requests")
	}
	return out, nil
}

func (s *Store) UpdateTrialRequest(ctx context.Context, t *models.TrialRequest) error {
	return updateTrial(s.db.WithContext(ctx), t)
}

func updateTrial(tx *gorm.DB, t *models.TrialRequest) error {
	res := tx.Model(&models.TrialRequest{}).
		Where("id = ?", t.ID).
		Select("status", "admin_notes", "preferred_date", "preferred_time").
		Updates(t)
	return affected(res, "update trial request")
}

func (s *Store) ConvertTrialRequest(ctx context.Context, t *models.TrialRequest, p *models.Profile) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createProfile(tx, p); err != nil {
			return err
		}
		return updateTrial(tx, t)
	})
}
