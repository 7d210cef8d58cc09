package db

import (
	"context"

	"github.com/google/uuid"

	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
)

var feeColumns = []string{"amount", "date", "status", "level", "payment_method", "payment_date", "notes"}

func (s *Store) CreateFee(ctx context.Context, f *models.FeeRecord) error {
	ensureID(&f.ID)
	return classify(s.db.WithContext(ctx).Create(f).Error, "create fee")
}

func (s *Store) GetFee(ctx context.Context, id uuid.UUID) (*models.FeeRecord, error) {
	var f models.FeeRecord
	if err := s.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, classify(err, "get fee")
	}
	return &f, nil
}

func (s *Store) ListFees(ctx context.Context, f repo.FeeFilter) ([]models.FeeRecord, error) {
	out := []models.FeeRecord{}
	if f.UserIDs != nil && len(f.UserIDs) == 0 {
		return out, nil
	}

	tx := s.db.WithContext(ctx).Model(&models.FeeRecord{})
	if f.Status != "" {
		tx = tx.Where("status = ?", f.Status)
	}
	if len(f.UserIDs) > 0 {
		tx = tx.Where("user_id IN ?", f.UserIDs)
	}
	if f.From != nil {
		tx = tx.Where("date >= ?", *f.From)
	}
	if f.To != nil {
		tx = tx.Where("date <= ?", *f.To)
	}
	if err := tx.Order("date DESC, created_at DESC").Find(&out).Error; err != nil {
		return nil, classify(err, "list fees")
	}
	return out, nil
}

func (s *Store) UpdateFee(ctx context.Context, f *models.FeeRecord) error {
	res := s.db.WithContext(ctx).Model(&models.FeeRecord{}).
		Where("id = ?", f.ID).
		Select(feeColumns).
		Updates(f)
	return affected(res, "update fee")
}

func (s *Store) DeleteFee(ctx context.Context, id uuid.UUID) error {
	return affected(s.db.WithContext(ctx).Delete(&models.FeeRecord{}, "id = ?", id), "delete fee")
}

func (s *Store) MarkOverdue(ctx context.Context, cutoff models.Date) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.FeeRecord{}).
		Where("status = ? AND date < ?", models.FeePending, cutoff).
		Update("status", models.FeeOverdue)
	if res.Error != nil {
		return 0, classify(res.Error, "mark overdue fees")
	}
	return res.RowsAffected, nil
}
