package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/violin-academy/academy-back/internal/auth"
	"github.com/violin-academy/academy-back/internal/cache"
	"github.com/violin-academy/academy-back/internal/excel"
	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/practice"
	"github.com/violin-academy/academy-back/internal/repo"
	"github.com/violin-academy/academy-back/internal/validate"
)

const maxRosterSize = 5 << 20

type StudentQuery struct {
	Search string       `form:"search" binding:"max=100"`
	Level  models.Level `form:"level" binding:"omitempty,oneof=beginner intermediate advanced"`
	Role   models.Role  `form:"role" binding:"omitempty,oneof=student teacher admin"`
}

// AdmissionRequest is the admission form for a new student.
type AdmissionRequest struct {
	Name        string       `json:"name" binding:"required,min=2,max=120"`
	Email       string       `json:"email" binding:"required,email"`
	Password    string       `json:"password" binding:"omitempty,min=8,max=72"`
	Phone       string       `json:"phone" binding:"max=32"`
	Level       models.Level `json:"level" binding:"omitempty,oneof=beginner intermediate advanced"`
	ParentName  string       `json:"parent_name" binding:"max=120"`
	DateOfBirth *models.Date `json:"date_of_birth"`
	Role        models.Role  `json:"role" binding:"omitempty,oneof=student teacher"`
}

type StudentPatchRequest struct {
	Name        *string       `json:"name" binding:"omitempty,min=2,max=120"`
	Email       *string       `json:"email" binding:"omitempty,email"`
	Phone       *string       `json:"phone" binding:"omitempty,max=32"`
	Level       *models.Level `json:"level" binding:"omitempty,oneof=beginner intermediate advanced"`
	ParentName  *string       `json:"parent_name" binding:"omitempty,max=120"`
	DateOfBirth *models.Date  `json:"date_of_birth"`
	Role        *models.Role  `json:"role" binding:"omitempty,oneof=student teacher admin"`
}

func (r StudentPatchRequest) patch() models.ProfilePatch {
	p := models.ProfilePatch{
		Name:        r.Name,
		Email:       r.Email,
		Phone:       r.Phone,
		Level:       r.Level,
		ParentName:  r.ParentName,
		DateOfBirth: r.DateOfBirth,
		Role:        r.Role,
	}
	if p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		p.Email = &email
	}
	return p
}

func checkBirthDate(d *models.Date, today models.Date) error {
	if d != nil && d.After(today) {
		return validate.Field("date_of_birth", "date_of_birth cannot be in the future")
	}
	return nil
}

// StudentDetails is everything the admin student page shows.
type StudentDetails struct {
	Profile    *models.Profile       `json:"profile"`
	Fees       []FeeView             `json:"fees"`
	Points     PointsResponse        `json:"points"`
	Practice   practice.Stats        `json:"practice"`
	Weekly     []practice.WeekBucket `json:"weekly"`
	Attendance []models.Attendance   `json:"attendance"`
}

type PointsRequest struct {
	PointsChange int    `json:"points_change" binding:"required,min=-1000,max=1000"`
	Activity     string `json:"activity" binding:"required,max=200"`
}

type ImportResponse struct {
	Created []models.Profile   `json:"created"`
	Skipped []excel.SkippedRow `json:"skipped"`
}

func (h *Handler) profile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	return cached(ctx, h, cache.Profiles, cache.Key("id", id.String()),
		func(ctx context.Context) (*models.Profile, error) {
			return h.store.GetProfile(ctx, id)
		})
}

// ListStudents godoc
// @Summary      List students
// @Tags         admin
// @Produce      json
// @Param        search  query  string  false  "Name contains"
// @Param        level   query  string  false  "beginner, intermediate or advanced"
// @Param        role    query  string  false  "Defaults to student"
// @Success      200 {array}  models.Profile
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/students [get]
func (h *Handler) ListStudents(c *gin.Context) {
	var q StudentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	if q.Role == "" {
		q.Role = models.RoleStudent
	}
	f := repo.ProfileFilter{Role: q.Role, Level: q.Level, Name: strings.TrimSpace(q.Search)}

	profiles, err := cached(c.Request.Context(), h, cache.Profiles, cache.Key("list", string(f.Role), string(f.Level), f.Name),
		func(ctx context.Context) ([]models.Profile, error) {
			return h.store.ListProfiles(ctx, f)
		})
	if err != nil {
		h.fail(c, err, "Failed to load students")
		return
	}
	c.JSON(http.StatusOK, profiles)
}

// CreateStudent godoc
// @Summary      Admit a student
// @Description  Creates a profile from the admission form. Without a password the student signs in with Google.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        body  body  AdmissionRequest  true  "Admission form"
// @Success      201 {object} models.Profile
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/students [post]
func (h *Handler) CreateStudent(c *gin.Context) {
	var req AdmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := checkBirthDate(req.DateOfBirth, h.today()); err != nil {
		bindError(c, err)
		return
	}

	p := &models.Profile{
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Role:        req.Role,
		Phone:       req.Phone,
		Level:       req.Level,
		ParentName:  req.ParentName,
		DateOfBirth: req.DateOfBirth,
	}
	if p.Role == "" {
		p.Role = models.RoleStudent
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			h.fail(c, err, "Failed to create student")
			return
		}
		p.PasswordHash = hash
	}

	if err := h.store.CreateProfile(c.Request.Context(), p); err != nil {
		h.fail(c, err, "Failed to create student")
		return
	}
	h.invalidate(c.Request.Context(), cache.Profiles)

	c.JSON(http.StatusCreated, p)
}

// GetStudent godoc
// @Summary      Student details
// @Description  Profile with fees, points, practice figures and the last 30 days of attendance
// @Tags         admin
// @Produce      json
// @Param        id  path  string  true  "Student ID"
// @Success      200 {object} StudentDetails
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/students/{id} [get]
func (h *Handler) GetStudent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	p, err := h.profile(ctx, id)
	if err != nil {
		h.fail(c, err, "Failed to load student")
		return
	}
	details := StudentDetails{Profile: p}

	if details.Fees, err = h.feeViews(ctx, repo.FeeFilter{UserIDs: []uuid.UUID{id}}); err != nil {
		h.fail(c, err, "Failed to load fees")
		return
	}
	if details.Points, err = h.points(ctx, id); err != nil {
		h.fail(c, err, "Failed to load points")
		return
	}

	sessions, err := h.sessions(ctx, id, nil, nil)
	if err != nil {
		h.fail(c, err, "Failed to load practice sessions")
		return
	}
	today := h.today()
	details.Practice = practice.Summarize(toAnalytics(sessions), today.Time, h.streakOptions())
	details.Weekly = practice.Weekly(toAnalytics(sessions), today.Time)

	from := today.AddDays(-30)
	if details.Attendance, err = h.attendance(ctx, repo.AttendanceFilter{UserID: &id, From: &from}); err != nil {
		h.fail(c, err, "Failed to load attendance")
		return
	}

	c.JSON(http.StatusOK, details)
}

// UpdateStudent godoc
// @Summary      Edit a student
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path  string               true  "Student ID"
// @Param        body  body  StudentPatchRequest  true  "Fields to change"
// @Success      200 {object} models.Profile
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/students/{id} [patch]
func (h *Handler) UpdateStudent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req StudentPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := checkBirthDate(req.DateOfBirth, h.today()); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	p, err := h.store.GetProfile(ctx, id)
	if err != nil {
		h.fail(c, err, "Failed to load student")
		return
	}
	p.Apply(req.patch())
	if err := h.store.UpdateProfile(ctx, p); err != nil {
		h.fail(c, err, "Failed to update student")
		return
	}
	// names and levels show up in fee, points and attendance views
	h.invalidate(ctx, cache.Profiles, cache.Fees, cache.Points, cache.Attendance)

	c.JSON(http.StatusOK, p)
}

// DeleteStudent godoc
// @Summary      Delete a student
// @Description  Removes the profile with its practice log, fees, points and attendance
// @Tags         admin
// @Param        id  path  string  true  "Student ID"
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/students/{id} [delete]
func (h *Handler) DeleteStudent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if id == session(c).Profile.ID {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "You cannot delete your own profile"})
		return
	}
	if err := h.store.DeleteProfile(c.Request.Context(), id); err != nil {
		h.fail(c, err, "Failed to delete student")
		return
	}
	h.invalidate(c.Request.Context(), cache.Profiles, cache.Practice, cache.Fees, cache.Points, cache.Attendance)
	c.Status(http.StatusNoContent)
}

// ImportStudents godoc
// @Summary      Import students from Excel
// @Description  Reads Name, Email, Phone, Level and Parent columns from the first sheet. Rows with known emails are skipped.
// @Tags         admin
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "xlsx workbook"
// @Success      200 {object} ImportResponse
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/students/import [post]
func (h *Handler) ImportStudents(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing file"})
		return
	}
	if fh.Size > maxRosterSize {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "File too large"})
		return
	}
	file, err := fh.Open()
	if err != nil {
		h.fail(c, err, "Failed to read upload")
		return
	}
	defer file.Close()

	roster, err := excel.ParseRoster(file, h.log)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	resp := ImportResponse{Created: []models.Profile{}, Skipped: roster.Skipped}
	// rows created before a failure stay stored
	defer func() {
		if len(resp.Created) > 0 {
			h.invalidate(ctx, cache.Profiles)
		}
	}()
	for _, row := range roster.Students {
		p := &models.Profile{
			Name:       row.Name,
			Email:      row.Email,
			Role:       models.RoleStudent,
			Phone:      row.Phone,
			Level:      row.Level,
			ParentName: row.ParentName,
		}
		err := h.store.CreateProfile(ctx, p)
		switch {
		case errors.Is(err, repo.ErrConflict):
			resp.Skipped = append(resp.Skipped, excel.SkippedRow{Row: row.Row, Reason: "email already registered"})
		case err != nil:
			h.fail(c, err, "Failed to import students")
			return
		default:
			resp.Created = append(resp.Created, *p)
		}
	}
	h.log.Info("imported students", "created", len(resp.Created), "skipped", len(resp.Skipped))

	c.JSON(http.StatusOK, resp)
}

// AddPoints godoc
// @Summary      Award or deduct points
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path  string         true  "Student ID"
// @Param        body  body  PointsRequest  true  "Signed, non-zero change"
// @Success      201 {object} models.PointsEntry
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/students/{id}/points [post]
func (h *Handler) AddPoints(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req PointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	e := &models.PointsEntry{UserID: id, PointsChange: req.PointsChange, Activity: strings.TrimSpace(req.Activity)}
	if err := h.store.AddPoints(c.Request.Context(), e); err != nil {
		h.fail(c, err, "Failed to add points")
		return
	}
	h.invalidate(c.Request.Context(), cache.Points)
	c.JSON(http.StatusCreated, e)
}

// StudentPoints godoc
// @Summary      A student's points
// @Tags         admin
// @Produce      json
// @Param        id  path  string  true  "Student ID"
// @Success      200 {object} PointsResponse
// @Security     BearerAuth
// @Router       /admin/students/{id}/points [get]
func (h *Handler) StudentPoints(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.points(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to load points")
		return
	}
	c.JSON(http.StatusOK, resp)
}
