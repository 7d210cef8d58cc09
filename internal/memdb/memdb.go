// Package memdb keeps every repository in process memory. It backs the
// handler tests and DATABASE_URL=memory local runs.
package memdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
)

type DB struct {
	mu         sync.RWMutex
	profiles   map[uuid.UUID]*models.Profile
	practice   map[uuid.UUID]*models.PracticeSession
	fees       map[uuid.UUID]*models.FeeRecord
	trials     map[uuid.UUID]*models.TrialRequest
	points     map[uuid.UUID]*models.PointsEntry
	attendance map[uuid.UUID]*models.Attendance

	now func() time.Time
}

var _ repo.Store = (*DB)(nil)

func New() *DB {
	return &DB{
		profiles:   make(map[uuid.UUID]*models.Profile),
		practice:   make(map[uuid.UUID]*models.PracticeSession),
		fees:       make(map[uuid.UUID]*models.FeeRecord),
		trials:     make(map[uuid.UUID]*models.TrialRequest),
		points:     make(map[uuid.UUID]*models.PointsEntry),
		attendance: make(map[uuid.UUID]*models.Attendance),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the timestamp source used for created_at/updated_at.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

func (db *DB) Ping(context.Context) error { return nil }

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func inRange(d models.Date, from, to *models.Date) bool {
	if from != nil && d.Before(*from) {
		return false
	}
	if to != nil && d.After(*to) {
		return false
	}
	return true
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Profiles

func (db *DB) CreateProfile(_ context.Context, p *models.Profile) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.createProfile(p)
}

func (db *DB) createProfile(p *models.Profile) error {
	p.Email = models.NormalizeEmail(p.Email)
	for _, existing := range db.profiles {
		if strings.EqualFold(existing.Email, p.Email) {
			return repo.ErrConflict
		}
	}
	ensureID(&p.ID)
	if _, ok := db.profiles[p.ID]; ok {
		return repo.ErrConflict
	}
	if p.Role == "" {
		p.Role = models.RoleStudent
	}
	now := db.now()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	db.profiles[p.ID] = &cp
	return nil
}

func (db *DB) GetProfile(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p, ok := db.profiles[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (db *DB) GetProfileByEmail(_ context.Context, email string) (*models.Profile, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, p := range db.profiles {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (db *DB) ListProfiles(_ context.Context, f repo.ProfileFilter) ([]models.Profile, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.Profile{}
	if f.IDs != nil && len(f.IDs) == 0 {
		return out, nil
	}
	ids := idSet(f.IDs)
	for _, p := range db.profiles {
		switch {
		case f.Role != "" && p.Role != f.Role:
		case f.Level != "" && p.Level != f.Level:
		case f.Name != "" && !containsFold(p.Name, f.Name):
		case len(ids) > 0 && !ids[p.ID]:
		default:
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (db *DB) UpdateProfile(_ context.Context, p *models.Profile) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.profiles[p.ID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Email = models.NormalizeEmail(p.Email)
	for id, other := range db.profiles {
		if id != p.ID && strings.EqualFold(other.Email, p.Email) {
			return repo.ErrConflict
		}
	}
	cp := *p
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = db.now()
	db.profiles[p.ID] = &cp
	p.UpdatedAt = cp.UpdatedAt
	return nil
}

// DeleteProfile removes the profile and every row that references it.
func (db *DB) DeleteProfile(_ context.Context, id uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.profiles[id]; !ok {
		return repo.ErrNotFound
	}
	delete(db.profiles, id)
	for k, v := range db.practice {
		if v.UserID == id {
			delete(db.practice, k)
		}
	}
	for k, v := range db.fees {
		if v.UserID == id {
			delete(db.fees, k)
		}
	}
	for k, v := range db.points {
		if v.UserID == id {
			delete(db.points, k)
		}
	}
	for k, v := range db.attendance {
		if v.UserID == id {
			delete(db.attendance, k)
		}
	}
	return nil
}

func (db *DB) IsAdmin(_ context.Context, id uuid.UUID) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p, ok := db.profiles[id]
	return ok && p.Role == models.RoleAdmin, nil
}
