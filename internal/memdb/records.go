package memdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
)

// Practice

func (db *DB) CreatePracticeSession(_ context.Context, s *models.PracticeSession) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.profiles[s.UserID]; !ok {
		return repo.ErrNotFound
	}
	ensureID(&s.ID)
	s.CreatedAt = db.now()
	cp := *s
	db.practice[s.ID] = &cp
	return nil
}

func (db *DB) ListPracticeSessions(_ context.Context, f repo.PracticeFilter) ([]models.PracticeSession, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.PracticeSession{}
	for _, s := range db.practice {
		if s.UserID == f.UserID && inRange(s.Date, f.From, f.To) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Fees

func (db *DB) CreateFee(_ context.Context, f *models.FeeRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.profiles[f.UserID]; !ok {
		return repo.ErrNotFound
	}
	ensureID(&f.ID)
	if f.Status == "" {
		f.Status = models.FeePending
	}
	now := db.now()
	f.CreatedAt, f.UpdatedAt = now, now
	cp := *f
	db.fees[f.ID] = &cp
	return nil
}

func (db *DB) GetFee(_ context.Context, id uuid.UUID) (*models.FeeRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	f, ok := db.fees[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (db *DB) ListFees(_ context.Context, f repo.FeeFilter) ([]models.FeeRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.FeeRecord{}
	if f.UserIDs != nil && len(f.UserIDs) == 0 {
		return out, nil
	}
	ids := idSet(f.UserIDs)
	for _, fee := range db.fees {
		switch {
		case f.Status != "" && fee.Status != f.Status:
		case len(ids) > 0 && !ids[fee.UserID]:
		case !inRange(fee.Date, f.From, f.To):
		default:
			out = append(out, *fee)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (db *DB) UpdateFee(_ context.Context, f *models.FeeRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.fees[f.ID]
	if !ok {
		return repo.ErrNotFound
	}
	cp := *f
	cp.UserID = existing.UserID
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = db.now()
	db.fees[f.ID] = &cp
	f.UpdatedAt = cp.UpdatedAt
	return nil
}

func (db *DB) DeleteFee(_ context.Context, id uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.fees[id]; !ok {
		return repo.ErrNotFound
	}
	delete(db.fees, id)
	return nil
}

func (db *DB) MarkOverdue(_ context.Context, cutoff models.Date) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var n int64
	now := db.now()
	for _, f := range db.fees {
		if f.Status == models.FeePending && f.Date.Before(cutoff) {
			f.Status = models.FeeOverdue
			f.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// Trial requests

func (db *DB) CreateTrialRequest(_ context.Context, t *models.TrialRequest) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	ensureID(&t.ID)
	if t.Status == "" {
		t.Status = models.TrialNew
	}
	now := db.now()
	t.CreatedAt, t.UpdatedAt = now, now
	cp := *t
	db.trials[t.ID] = &cp
	return nil
}

func (db *DB) GetTrialRequest(_ context.Context, id uuid.UUID) (*models.TrialRequest, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, ok := db.trials[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (db *DB) ListTrialRequests(_ context.Context, f repo.TrialFilter) ([]models.TrialRequest, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.TrialRequest{}
	for _, t := range db.trials {
		switch {
		case f.Status != "" && t.Status != f.Status:
		case f.Search != "" && !containsFold(t.Name, f.Search) && !containsFold(t.Email, f.Search) && !containsFold(t.Phone, f.Search):
		case f.CreatedBefore != nil && !t.CreatedAt.Before(*f.CreatedBefore):
		default:
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (db *DB) UpdateTrialRequest(_ context.Context, t *models.TrialRequest) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.updateTrial(t)
}

func (db *DB) updateTrial(t *models.TrialRequest) error {
	existing, ok := db.trials[t.ID]
	if !ok {
		return repo.ErrNotFound
	}
	existing.Status = t.Status
	existing.AdminNotes = t.AdminNotes
	existing.PreferredDate = t.PreferredDate
	existing.PreferredTime = t.PreferredTime
	existing.UpdatedAt = db.now()
	t.UpdatedAt = existing.UpdatedAt
	return nil
}

// ConvertTrialRequest checks both writes before applying either, so a
// failure leaves profiles and trials untouched.
func (db *DB) ConvertTrialRequest(_ context.Context, t *models.TrialRequest, p *models.Profile) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.trials[t.ID]; !ok {
		return repo.ErrNotFound
	}
	if err := db.createProfile(p); err != nil {
		return err
	}
	return db.updateTrial(t)
}

// Points

func (db *DB) AddPoints(_ context.Context, e *models.PointsEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.profiles[e.UserID]; !ok {
		return repo.ErrNotFound
	}
	ensureID(&e.ID)
	e.CreatedAt = db.now()
	cp := *e
	db.points[e.ID] = &cp
	return nil
}

func (db *DB) ListPoints(_ context.Context, userID uuid.UUID) ([]models.PointsEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.PointsEntry{}
	for _, e := range db.points {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (db *DB) TotalPoints(_ context.Context, userID uuid.UUID) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	total := 0
	for _, e := range db.points {
		if e.UserID == userID {
			total += e.PointsChange
		}
	}
	return total, nil
}

func (db *DB) Leaderboard(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	totals := make(map[uuid.UUID]int)
	for _, e := range db.points {
		totals[e.UserID] += e.PointsChange
	}
	out := make([]models.LeaderboardEntry, 0, len(totals))
	for id, total := range totals {
		p, ok := db.profiles[id]
		if !ok {
			continue
		}
		out = append(out, models.LeaderboardEntry{UserID: id, Name: p.Name, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Attendance

func (db *DB) UpsertAttendance(_ context.Context, a *models.Attendance) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.profiles[a.UserID]; !ok {
		return repo.ErrNotFound
	}
	now := db.now()
	for _, existing := range db.attendance {
		if existing.UserID == a.UserID && existing.Date.Equal(a.Date) {
			existing.Status = a.Status
			existing.Notes = a.Notes
			existing.MarkedBy = a.MarkedBy
			existing.UpdatedAt = now
			*a = *existing
			return nil
		}
	}
	ensureID(&a.ID)
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	db.attendance[a.ID] = &cp
	return nil
}

func (db *DB) ListAttendance(_ context.Context, f repo.AttendanceFilter) ([]models.Attendance, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := []models.Attendance{}
	for _, a := range db.attendance {
		if f.UserID != nil && a.UserID != *f.UserID {
			continue
		}
		if inRange(a.Date, f.From, f.To) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	return out, nil
}

func (db *DB) DeleteAttendance(_ context.Context, id uuid.UUID) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.attendance[id]; !ok {
		return repo.ErrNotFound
	}
	delete(db.attendance, id)
	return nil
}
