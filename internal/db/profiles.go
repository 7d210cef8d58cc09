package db

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
)

var profileColumns = []string{"name", "email", "role", "phone", "level", "parent_name", "date_of_birth", "password_hash"}

func (s *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	return createProfile(s.db.WithContext(ctx), p)
}

func createProfile(tx *gorm.DB, p *models.Profile) error {
	ensureID(&p.ID)
	p.Email = models.NormalizeEmail(p.Email)
	return classify(tx.Create(p).Error, "create profile")
}

func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	err := s.withReadRetry(ctx, func(ctx context.Context) error {
		return classify(s.db.WithContext(ctx).First(&p, "id = ?", id).Error, "get profile")
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).Where("lower(email) = lower(?)", email).First(&p).Error; err != nil {
		return nil, classify(err, "get profile by email")
	}
	return &p, nil
}

func (s *Store) ListProfiles(ctx context.Context, f repo.ProfileFilter) ([]models.Profile, error) {
	out := []models.Profile{}
	if f.IDs != nil && len(f.IDs) == 0 {
		return out, nil
	}
	err := s.withReadRetry(ctx, func(ctx context.Context) error {
		out = out[:0]
		return classify(profileQuery(s.db.WithContext(ctx), f).Order("name").Find(&out).Error, "list profiles")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func profileQuery(tx *gorm.DB, f repo.ProfileFilter) *gorm.DB {
	tx = tx.Model(&models.Profile{})
	if f.Role != "" {
		tx = tx.Where("role = ?", f.Role)
	}
	if f.Level != "" {
		tx = tx.Where("level = ?", f.Level)
	}
	if f.Name != "" {
		tx = tx.Where("name ILIKE ?", likePattern(f.Name))
	}
	if len(f.IDs) > 0 {
		tx = tx.Where("id IN ?", f.IDs)
	}
	return tx
}

func (s *Store) UpdateProfile(ctx context.Context, p *models.Profile) error {
	p.Email = models.NormalizeEmail(p.Email)
	res := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", p.ID).
		Select(profileColumns).
		Updates(p)
	return affected(res, "update profile")
}

func (s *Store) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	return affected(s.db.WithContext(ctx).Delete(&models.Profile{}, "id = ?", id), "delete profile")
}

func (s *Store) IsAdmin(ctx context.Context, id uuid.UUID) (bool, error) {
	var roles []models.Role
	err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Pluck("role", &roles).Error
	if err != nil {
		return false, classify(err, "check admin role")
	}
	return len(roles) == 1 && roles[0] == models.RoleAdmin, nil
}
