package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/violin-academy/academy-back/internal/auth"
	"github.com/violin-academy/academy-back/internal/cache"
	"github.com/violin-academy/academy-back/internal/mail"
	"github.com/violin-academy/academy-back/internal/memdb"
	"github.com/violin-academy/academy-back/internal/metrics"
	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
	"github.com/violin-academy/academy-back/internal/validate"
)

func init() {
	gin.SetMode(gin.TestMode)
	validate.Setup()
}

var now = time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC)

type outbox struct {
	sent []mail.Message
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.sent = append(o.sent, msg)
	return nil
}

type fixture struct {
	db      *memdb.DB
	router  *gin.Engine
	box     *outbox
	admin   *models.Profile
	student *models.Profile

	adminToken   string
	studentToken string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	db := memdb.New()
	f := &fixture{db: db, box: &outbox{}}

	f.admin = &models.Profile{Name: "Irina Admin", Email: "admin@example.com", Role: models.RoleAdmin}
	require.NoError(t, db.CreateProfile(ctx, f.admin))
	f.student = &models.Profile{Name: "Ana Petrova", Email: "ana@example.com", Role: models.RoleStudent, Level: models.LevelIntermediate}
	require.NoError(t, db.CreateProfile(ctx, f.student))

	tokens, err := auth.NewTokens("test-secret", 15*time.Minute, time.Hour)
	require.NoError(t, err)
	pair, err := tokens.Issue(f.admin)
	require.NoError(t, err)
	f.adminToken = pair.AccessToken
	pair, err = tokens.Issue(f.student)
	require.NoError(t, err)
	f.studentToken = pair.AccessToken

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := NewHandler(db, cache.NewMemory(), f.box, m, log, Options{
		Location:    time.UTC,
		CacheTTL:    time.Minute,
		NotifyEmail: "office@example.com",
	})
	h.now = func() time.Time { return now }

	f.router = SetupRouter(RouterDeps{
		Handler:  h,
		Auth:     auth.NewHandler(tokens, db, nil, log),
		Guard:    auth.NewGuard(tokens, db),
		Metrics:  m,
		Gatherer: reg,
		Log:      log,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "academy_http_requests_total")
}

func TestRouteGuards(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"anonymous student route", "/api/v1/me", "", http.StatusUnauthorized},
		{"garbage token", "/api/v1/me", "nope", http.StatusUnauthorized},
		{"student on student route", "/api/v1/me", f.studentToken, http.StatusOK},
		{"admin on student route", "/api/v1/me", f.adminToken, http.StatusOK},
		{"anonymous admin route", "/api/v1/admin/students", "", http.StatusUnauthorized},
		{"student on admin route", "/api/v1/admin/students", f.studentToken, http.StatusForbidden},
		{"admin on admin route", "/api/v1/admin/students", f.adminToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestPracticeLogAndStats(t *testing.T) {
	f := newFixture(t)

	// warm the cache so the writes below must invalidate it
	w := f.do(t, http.MethodGet, "/api/v1/me/practice/stats", f.studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	for _, s := range []map[string]interface{}{
		{"date": "2025-06-01", "minutes": 30},
		{"date": "2025-06-02", "minutes": 45, "start_time": "17:00", "end_time": "17:45"},
		{"date": "2025-06-04", "minutes": 20, "notes": "scales"},
	} {
		w := f.do(t, http.MethodPost, "/api/v1/me/practice", f.studentToken, s)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/v1/me/practice/stats", f.studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats StatsResponse
	decode(t, w, &stats)
	assert.Equal(t, 95, stats.TotalMinutes)
	assert.Equal(t, 3, stats.TotalSessions)
	assert.Equal(t, 3, stats.DistinctDays)
	assert.Equal(t, 1, stats.Streak)
	assert.Equal(t, 75, stats.ConsistencyPercent)
	assert.Equal(t, "2025-06-04", stats.Today.String())

	w = f.do(t, http.MethodGet, "/api/v1/me/practice?from=2025-06-02", f.studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []models.PracticeSession
	decode(t, w, &sessions)
	require.Len(t, sessions, 2)
	assert.Equal(t, "2025-06-04", sessions[0].Date.String())

	w = f.do(t, http.MethodGet, "/api/v1/me/practice/weekly", f.studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var weekly WeeklyResponse
	decode(t, w, &weekly)
	require.Len(t, weekly.Weeks, 4)
	// 2025-06-04 is a Wednesday; 06-01 is the Sunday before
	assert.Equal(t, 65, weekly.Weeks[3].Minutes)
	assert.Equal(t, 30, weekly.Weeks[2].Minutes)

	// admins see the same figures
	w = f.do(t, http.MethodGet, "/api/v1/admin/students/"+f.student.ID.String()+"/practice/stats", f.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &stats)
	assert.Equal(t, 95, stats.TotalMinutes)
}

func TestPracticeValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		body  map[string]interface{}
		field string
	}{
		{"zero minutes", map[string]interface{}{"date": "2025-06-04", "minutes": 0}, "minutes"},
		{"too long", map[string]interface{}{"date": "2025-06-04", "minutes": 601}, "minutes"},
		{"missing date", map[string]interface{}{"minutes": 10}, "date"},
		{"future date", map[string]interface{}{"date": "2025-06-05", "minutes": 10}, "date"},
		{"bad time", map[string]interface{}{"date": "2025-06-04", "minutes": 10, "start_time": "25:00"}, "start_time"},
		{"end before start", map[string]interface{}{"date": "2025-06-04", "minutes": 10, "start_time": "18:00", "end_time": "17:00"}, "end_time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/v1/me/practice", f.studentToken, tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			var resp ErrorResponse
			decode(t, w, &resp)
			assert.Equal(t, "validation failed", resp.Error)
			assert.Contains(t, resp.Fields, tt.field)
		})
	}
}

func TestFees(t *testing.T) {
	f := newFixture(t)
	other := &models.Profile{Name: "Liu Wei", Email: "liu@example.com", Role: models.RoleStudent}
	require.NoError(t, f.db.CreateProfile(context.Background(), other))

	for _, p := range []*models.Profile{f.student, other} {
		w := f.do(t, http.MethodPost, "/api/v1/admin/fees", f.adminToken, map[string]interface{}{
			"user_id": p.ID, "amount": 120, "date": "2025-06-01",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := f.do(t, http.MethodGet, "/api/v1/admin/fees?search=petrova", f.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fees []FeeView
	decode(t, w, &fees)
	require.Len(t, fees, 1)
	assert.Equal(t, "Ana Petrova", fees[0].StudentName)
	assert.Equal(t, "intermediate", fees[0].Details.Level)
	assert.Equal(t, models.DefaultPaymentMethod, fees[0].Details.PaymentMethod)
	assert.Nil(t, fees[0].Details.PaymentDate)

	w = f.do(t, http.MethodGet, "/api/v1/admin/fees?search=nobody", f.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = f.do(t, http.MethodPatch, "/api/v1/admin/fees/"+fees[0].ID.String(), f.adminToken, map[string]interface{}{
		"status": "paid", "payment_method": "cash",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var paid FeeView
	decode(t, w, &paid)
	assert.Equal(t, models.FeePaid, paid.Status)
	assert.Equal(t, "cash", paid.Details.PaymentMethod)
	require.NotNil(t, paid.Details.PaymentDate)
	assert.Equal(t, "2025-06-04", paid.Details.PaymentDate.String())

	w = f.do(t, http.MethodGet, "/api/v1/admin/fees?status=paid", f.adminToken, nil)
	decode(t, w, &fees)
	require.Len(t, fees, 1)

	w = f.do(t, http.MethodGet, "/api/v1/me/fees", f.studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &fees)
	require.Len(t, fees, 1)
	assert.Equal(t, models.FeePaid, fees[0].Status)

	w = f.do(t, http.MethodPatch, "/api/v1/admin/fees/"+paid.ID.String(), f.adminToken, map[string]interface{}{"status": "refunded"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/admin/fees/export", f.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	wb, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	rows, err := wb.GetRows("Fees")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	w = f.do(t, http.MethodDelete, "/api/v1/admin/fees/"+paid.ID.String(), f.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodDelete, "/api/v1/admin/fees/"+paid.ID.String(), f.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateFeeForUnknownStudent(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/admin/fees", f.adminToken, map[string]interface{}{
		"user_id": "6f1b4d2e-8a8f-4a7c-9a55-0c1e2d3f4a5b", "amount": 50, "date": "2025-06-01",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrialRequestLifecycle(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/trial-requests", "", map[string]interface{}{
		"name": "Maya Cole", "email": "Maya@Example.com", "phone": "555-0199", "age": 9,
		"level": "beginner", "preferred_date": "2025-06-10", "preferred_time": "16:30",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var trial models.TrialRequest
	decode(t, w, &trial)
	assert.Equal(t, models.TrialNew, trial.Status)
	assert.Equal(t, "maya@example.com", trial.Email)

	require.Len(t, f.box.sent, 1)
	assert.Equal(t, []string{"office@example.com"}, f.box.sent[0].To)
	assert.Contains(t, f.box.sent[0].Text, "Preferred date: 2025-06-10 16:30")

	path := "/api/v1/admin/trial-requests/" + trial.ID.String()

	w = f.do(t, http.MethodPatch, path, f.adminToken, map[string]interface{}{"status": "completed"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, path+"/convert", f.adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	for _, status := range []string{"contacted", "scheduled", "completed"} {
		w = f.do(t, http.MethodPatch, path, f.adminToken, map[string]interface{}{"status": status, "admin_notes": "called " + status})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/v1/admin/trial-requests?status=completed", f.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.TrialRequest
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "called completed", list[0].AdminNotes)

	w = f.do(t, http.MethodPost, path+"/convert", f.adminToken, map[string]interface{}{"password": "violin-123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var conv ConvertResponse
	decode(t, w, &conv)
	assert.Equal(t, models.TrialConverted, conv.TrialRequest.Status)
	assert.Equal(t, "maya@example.com", conv.Profile.Email)
	assert.Equal(t, models.LevelBeginner, conv.Profile.Level)

	_, err := f.db.GetProfileByEmail(context.Background(), "maya@example.com")
	assert.NoError(t, err)

	w = f.do(t, http.MethodPost, path+"/convert", f.adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestConvertTrialRequestTakenEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	trial := &models.TrialRequest{Name: "Ana Again", Email: "ANA@example.com", Status: models.TrialCompleted}
	require.NoError(t, f.db.CreateTrialRequest(ctx, trial))

	path := "/api/v1/admin/trial-requests/" + trial.ID.String()
	w := f.do(t, http.MethodPost, path+"/convert", f.adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	got, err := f.db.GetTrialRequest(ctx, trial.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TrialCompleted, got.Status)

	students, err := f.db.ListProfiles(ctx, repo.ProfileFilter{Name: "Ana Again"})
	require.NoError(t, err)
	assert.Empty(t, students)
}

func TestTrialRequestValidation(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/trial-requests", "", map[string]interface{}{
		"name": "M", "email": "not-an-email", "phone": "", "preferred_date": "2025-06-01",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	decode(t, w, &resp)
	assert.Contains(t, resp.Fields, "name")
	assert.Contains(t, resp.Fields, "email")
	assert.Equal(t, "phone is required", resp.Fields["phone"])

	w = f.do(t, http.MethodPost, "/api/v1/trial-requests", "", map[string]interface{}{
		"name": "Maya", "email": "maya@example.com", "phone": "555", "preferred_date": "2025-06-01",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	decode(t, w, &resp)
	assert.Contains(t, resp.Fields, "preferred_date")
	assert.Empty(t, f.box.sent)
}

func TestStudentsAdmin(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/admin/students", f.adminToken, map[string]interface{}{
		"name": "Sam Cole", "email": "SAM@example.com", "password": "long-enough", "level": "beginner", "parent_name": "Jo Cole",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sam models.Profile
	decode(t, w, &sam)
	assert.Equal(t, "sam@example.com", sam.Email)
	assert.NotContains(t, w.Body.String(), "password")

	w = f.do(t, http.MethodPost, "/api/v1/admin/students", f.adminToken, map[string]interface{}{
		"name": "Sam Again", "email": "sam@example.com",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/admin/students?level=beginner", f.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var students []models.Profile
	decode(t, w, &students)
	require.Len(t, students, 1)
	assert.Equal(t, sam.ID, students[0].ID)

	w = f.do(t, http.MethodPatch, "/api/v1/admin/students/"+sam.ID.String(), f.adminToken, map[string]interface{}{"level": "advanced"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// the list was cached before the patch
	w = f.do(t, http.MethodGet, "/api/v1/admin/students?level=beginner", f.adminToken, nil)
	decode(t, w, &students)
	assert.Empty(t, students)

	w = f.do(t, http.MethodPost, "/api/v1/admin/students/"+sam.ID.String()+"/points", f.adminToken, map[string]interface{}{
		"points_change": 15, "activity": "recital",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = f.do(t, http.MethodPost, "/api/v1/admin/students/"+sam.ID.String()+"/points", f.adminToken, map[string]interface{}{
		"points_change": 0, "activity": "nothing",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/admin/students/"+sam.ID.String(), f.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var details StudentDetails
	decode(t, w, &details)
	assert.Equal(t, models.LevelAdvanced, details.Profile.Level)
	assert.Equal(t, 15, details.Points.Total)
	assert.Len(t, details.Weekly, 4)
	assert.Empty(t, details.Fees)

	w = f.do(t, http.MethodDelete, "/api/v1/admin/students/"+f.admin.ID.String(), f.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/admin/students/"+sam.ID.String(), f.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/admin/students/"+sam.ID.String(), f.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/admin/students/not-a-uuid", f.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPointsLeaderboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.AddPoints(ctx, &models.PointsEntry{UserID: f.student.ID, PointsChange: 10, Activity: "practice week"}))
	require.NoError(t, f.db.AddPoints(ctx, &models.PointsEntry{UserID: f.student.ID, PointsChange: -3, Activity: "late"}))

	w := f.do(t, http.MethodGet, "/api/v1/me/points", f.studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var points PointsResponse
	decode(t, w, &points)
	assert.Equal(t, 7, points.Total)
	assert.Len(t, points.Entries, 2)

	w = f.do(t, http.MethodGet, "/api/v1/points/leaderboard?limit=5", f.studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var board []models.LeaderboardEntry
	decode(t, w, &board)
	require.Len(t, board, 1)
	assert.Equal(t, "Ana Petrova", board[0].Name)

	w = f.do(t, http.MethodGet, "/api/v1/points/leaderboard?limit=zero", f.studentToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendance(t *testing.T) {
	f := newFixture(t)

	for _, status := range []string{"late", "present"} {
		w := f.do(t, http.MethodPut, "/api/v1/admin/attendance", f.adminToken, map[string]interface{}{
			"user_id": f.student.ID, "date": "2025-06-04", "status": status,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := f.do(t, http.MethodGet, "/api/v1/admin/attendance", f.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var day []AttendanceView
	decode(t, w, &day)
	require.Len(t, day, 1)
	assert.Equal(t, models.AttendancePresent, day[0].Status)
	assert.Equal(t, "Ana Petrova", day[0].StudentName)
	require.NotNil(t, day[0].MarkedBy)
	assert.Equal(t, f.admin.ID, *day[0].MarkedBy)

	w = f.do(t, http.MethodGet, "/api/v1/me/attendance", f.studentToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []models.Attendance
	decode(t, w, &mine)
	assert.Len(t, mine, 1)

	w = f.do(t, http.MethodPut, "/api/v1/admin/attendance", f.adminToken, map[string]interface{}{
		"user_id": f.student.ID, "date": "2025-06-05", "status": "present",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/admin/attendance/export", f.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attendance-2025-06-01-2025-06-04.xlsx")

	w = f.do(t, http.MethodDelete, "/api/v1/admin/attendance/"+day[0].ID.String(), f.adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/admin/attendance?date=2025-06-04", f.adminToken, nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func rosterUpload(t *testing.T, token string, rows [][]interface{}) *http.Request {
	t.Helper()
	wb := excelize.NewFile()
	defer wb.Close()
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, wb.SetSheetRow("Sheet1", axis, &row))
	}
	var file bytes.Buffer
	_, err := wb.WriteTo(&file)
	require.NoError(t, err)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "roster.xlsx")
	require.NoError(t, err)
	_, err = part.Write(file.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/students/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestImportStudents(t *testing.T) {
	f := newFixture(t)

	req := rosterUpload(t, f.adminToken, [][]interface{}{
		{"Name", "Email", "Level"},
		{"New Kid", "kid@example.com", "beginner"},
		{"Ana Dup", "ana@example.com", ""},
	})
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp ImportResponse
	decode(t, w, &resp)
	require.Len(t, resp.Created, 1)
	assert.Equal(t, "kid@example.com", resp.Created[0].Email)
	require.Len(t, resp.Skipped, 1)
	assert.Equal(t, 3, resp.Skipped[0].Row)
}

// brokenStore fails profile creation for one email.
type brokenStore struct {
	*memdb.DB
	failEmail string
}

func (s brokenStore) CreateProfile(ctx context.Context, p *models.Profile) error {
	if p.Email == s.failEmail {
		return errors.New("connection reset")
	}
	return s.DB.CreateProfile(ctx, p)
}

func TestImportStudentsFailureDropsCachedProfiles(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()
	c := cache.NewMemory()
	require.NoError(t, c.Set(ctx, cache.Profiles, "list", []models.Profile{}, time.Hour))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(brokenStore{DB: db, failEmail: "second@example.com"}, c, &outbox{}, metrics.New(prometheus.NewRegistry()), log, Options{Location: time.UTC, CacheTTL: time.Hour})
	r := gin.New()
	r.POST("/api/v1/admin/students/import", h.ImportStudents)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, rosterUpload(t, "", [][]interface{}{
		{"Name", "Email"},
		{"First Kid", "first@example.com"},
		{"Second Kid", "second@example.com"},
	}))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	_, err := db.GetProfileByEmail(ctx, "first@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len(cache.Profiles))
}
