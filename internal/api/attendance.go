package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/violin-academy/academy-back/internal/cache"
	"github.com/violin-academy/academy-back/internal/excel"
	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
	"github.com/violin-academy/academy-back/internal/validate"
)

type AttendanceRequest struct {
	UserID uuid.UUID               `json:"user_id"`
	Date   models.Date             `json:"date"`
	Status models.AttendanceStatus `json:"status" binding:"required,oneof=present absent late excused"`
	Notes  string                  `json:"notes" binding:"max=500"`
}

func (r AttendanceRequest) check(today models.Date) error {
	fields := map[string]string{}
	if r.UserID == uuid.Nil {
		fields["user_id"] = "user_id is required"
	}
	switch {
	case r.Date.IsZero():
		fields["date"] = "date is required"
	case r.Date.After(today):
		fields["date"] = "date cannot be in the future"
	}
	if len(fields) > 0 {
		return &validate.Error{Fields: fields}
	}
	return nil
}

// AttendanceView is an attendance mark with the student's name.
type AttendanceView struct {
	models.Attendance
	StudentName string `json:"student_name"`
}

func attendanceKey(f repo.AttendanceFilter) string {
	user := "*"
	if f.UserID != nil {
		user = f.UserID.String()
	}
	return cache.Key(user, dateKey(f.From), dateKey(f.To))
}

func (h *Handler) attendance(ctx context.Context, f repo.AttendanceFilter) ([]models.Attendance, error) {
	return cached(ctx, h, cache.Attendance, attendanceKey(f), func(ctx context.Context) ([]models.Attendance, error) {
		return h.store.ListAttendance(ctx, f)
	})
}

func (h *Handler) attendanceViews(ctx context.Context, f repo.AttendanceFilter) ([]AttendanceView, error) {
	marks, err := h.store.ListAttendance(ctx, f)
	if err != nil {
		return nil, err
	}
	students, err := profilesFor(ctx, h, marks, func(a models.Attendance) uuid.UUID { return a.UserID })
	if err != nil {
		return nil, err
	}
	views := make([]AttendanceView, len(marks))
	for i, a := range marks {
		views[i] = AttendanceView{Attendance: a, StudentName: students[a.UserID].Name}
	}
	return views, nil
}

func (h *Handler) studentAttendance(c *gin.Context, userID uuid.UUID) {
	dates, err := queryDates(c, "from", "to")
	if err != nil {
		bindError(c, err)
		return
	}
	marks, err := h.attendance(c.Request.Context(), repo.AttendanceFilter{UserID: &userID, From: dates[0], To: dates[1]})
	if err != nil {
		h.fail(c, err, "Failed to load attendance")
		return
	}
	c.JSON(http.StatusOK, marks)
}

// MarkAttendance godoc
// @Summary      Mark attendance
// @Description  Sets a student's attendance for a day, replacing any earlier mark for that day
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        body  body  AttendanceRequest  true  "Attendance mark"
// @Success      200 {object} models.Attendance
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/attendance [put]
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.check(h.today()); err != nil {
		bindError(c, err)
		return
	}

	admin := session(c).Profile.ID
	a := &models.Attendance{
		UserID:   req.UserID,
		Date:     req.Date,
		Status:   req.Status,
		Notes:    strings.TrimSpace(req.Notes),
		MarkedBy: &admin,
	}
	if err := h.store.UpsertAttendance(c.Request.Context(), a); err != nil {
		h.fail(c, err, "Failed to mark attendance")
		return
	}
	h.invalidate(c.Request.Context(), cache.Attendance)
	c.JSON(http.StatusOK, a)
}

// ListAttendance godoc
// @Summary      Attendance for a day
// @Tags         admin
// @Produce      json
// @Param        date  query  string  false  "Day (YYYY-MM-DD), defaults to today"
// @Success      200 {array}  AttendanceView
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/attendance [get]
func (h *Handler) ListAttendance(c *gin.Context) {
	dates, err := queryDates(c, "date")
	if err != nil {
		bindError(c, err)
		return
	}
	day := h.today()
	if dates[0] != nil {
		day = *dates[0]
	}
	f := repo.AttendanceFilter{From: &day, To: &day}

	views, err := cached(c.Request.Context(), h, cache.Attendance, cache.Key("day", day.String()),
		func(ctx context.Context) ([]AttendanceView, error) {
			return h.attendanceViews(ctx, f)
		})
	if err != nil {
		h.fail(c, err, "Failed to load attendance")
		return
	}
	c.JSON(http.StatusOK, views)
}

// StudentAttendance godoc
// @Summary      A student's attendance
// @Tags         admin
// @Produce      json
// @Param        id    path   string  true   "Student ID"
// @Param        from  query  string  false  "From date (YYYY-MM-DD)"
// @Param        to    query  string  false  "To date (YYYY-MM-DD)"
// @Success      200 {array}  models.Attendance
// @Security     BearerAuth
// @Router       /admin/students/{id}/attendance [get]
func (h *Handler) StudentAttendance(c *gin.Context) {
	if id, ok := pathID(c, "id"); ok {
		h.studentAttendance(c, id)
	}
}

// DeleteAttendance godoc
// @Summary      Delete an attendance mark
// @Tags         admin
// @Param        id  path  string  true  "Attendance ID"
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/attendance/{id} [delete]
func (h *Handler) DeleteAttendance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteAttendance(c.Request.Context(), id); err != nil {
		h.fail(c, err, "Failed to delete attendance")
		return
	}
	h.invalidate(c.Request.Context(), cache.Attendance)
	c.Status(http.StatusNoContent)
}

// ExportAttendance godoc
// @Summary      Export attendance to Excel
// @Tags         admin
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        from  query  string  false  "From date (YYYY-MM-DD), defaults to the 1st of this month"
// @Param        to    query  string  false  "To date (YYYY-MM-DD), defaults to today"
// @Success      200 {file} file
// @Security     BearerAuth
// @Router       /admin/attendance/export [get]
func (h *Handler) ExportAttendance(c *gin.Context) {
	dates, err := queryDates(c, "from", "to")
	if err != nil {
		bindError(c, err)
		return
	}
	today := h.today()
	from, to := dates[0], dates[1]
	if from == nil {
		first := today.AddDays(1 - today.Day())
		from = &first
	}
	if to == nil {
		to = &today
	}
	if to.Before(*from) {
		bindError(c, validate.Field("to", "to must not be before from"))
		return
	}

	views, err := h.attendanceViews(c.Request.Context(), repo.AttendanceFilter{From: from, To: to})
	if err != nil {
		h.fail(c, err, "Failed to load attendance")
		return
	}
	rows := make([]excel.AttendanceRow, len(views))
	for i, v := range views {
		rows[i] = excel.AttendanceRow{Student: v.StudentName, Attendance: v.Attendance}
	}
	var buf bytes.Buffer
	if err := excel.WriteAttendance(&buf, rows); err != nil {
		h.fail(c, err, "Failed to build spreadsheet")
		return
	}
	sendWorkbook(c, fmt.Sprintf("attendance-%s-%s.xlsx", from, to), buf.Bytes())
}
