package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/violin-academy/academy-back/internal/cache"
	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/practice"
	"github.com/violin-academy/academy-back/internal/repo"
	"github.com/violin-academy/academy-back/internal/validate"
)

type PracticeRequest struct {
	Date      models.Date `json:"date"`
	Minutes   int         `json:"minutes" binding:"required,min=1,max=600"`
	StartTime *string     `json:"start_time" binding:"omitempty,hhmm"`
	EndTime   *string     `json:"end_time" binding:"omitempty,hhmm"`
	Notes     string      `json:"notes" binding:"max=1000"`
}

// check runs the rules that depend on more than one field or on the clock.
func (r PracticeRequest) check(today models.Date) error {
	fields := map[string]string{}
	switch {
	case r.Date.IsZero():
		fields["date"] = "date is required"
	case r.Date.After(today):
		fields["date"] = "date cannot be in the future"
	}
	if r.StartTime != nil && r.EndTime != nil && *r.EndTime <= *r.StartTime {
		fields["end_time"] = "end_time must be after start_time"
	}
	if len(fields) > 0 {
		return &validate.Error{Fields: fields}
	}
	return nil
}

type StatsResponse struct {
	practice.Stats
	Today models.Date `json:"today"`
}

type WeeklyResponse struct {
	Weeks []practice.WeekBucket `json:"weeks"`
}

func (h *Handler) sessions(ctx context.Context, userID uuid.UUID, from, to *models.Date) ([]models.PracticeSession, error) {
	return cached(ctx, h, cache.Practice, cache.Key(userID.String(), dateKey(from), dateKey(to)),
		func(ctx context.Context) ([]models.PracticeSession, error) {
			return h.store.ListPracticeSessions(ctx, repo.PracticeFilter{UserID: userID, From: from, To: to})
		})
}

func toAnalytics(sessions []models.PracticeSession) []practice.Session {
	out := make([]practice.Session, len(sessions))
	for i, s := range sessions {
		out[i] = practice.Session{Day: s.Date.Time, Minutes: s.Minutes}
	}
	return out
}

func (h *Handler) listPractice(c *gin.Context, userID uuid.UUID) {
	dates, err := queryDates(c, "from", "to")
	if err != nil {
		bindError(c, err)
		return
	}
	sessions, err := h.sessions(c.Request.Context(), userID, dates[0], dates[1])
	if err != nil {
		h.fail(c, err, "Failed to load practice sessions")
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) practiceStats(c *gin.Context, userID uuid.UUID) {
	sessions, err := h.sessions(c.Request.Context(), userID, nil, nil)
	if err != nil {
		h.fail(c, err, "Failed to load practice sessions")
		return
	}
	today := h.today()
	c.JSON(http.StatusOK, StatsResponse{
		Stats: practice.Summarize(toAnalytics(sessions), today.Time, h.streakOptions()),
		Today: today,
	})
}

func (h *Handler) practiceWeekly(c *gin.Context, userID uuid.UUID) {
	today := h.today()
	from := models.NewDate(practice.WeekStart(today.Time)).AddDays(-7 * (practice.WeeksShown - 1))
	sessions, err := h.sessions(c.Request.Context(), userID, &from, nil)
	if err != nil {
		h.fail(c, err, "Failed to load practice sessions")
		return
	}
	c.JSON(http.StatusOK, WeeklyResponse{Weeks: practice.Weekly(toAnalytics(sessions), today.Time)})
}

// ListMyPractice godoc
// @Summary      List my practice sessions
// @Tags         me
// @Produce      json
// @Param        from  query  string  false  "From date (YYYY-MM-DD)"
// @Param        to    query  string  false  "To date (YYYY-MM-DD)"
// @Success      200 {array}  models.PracticeSession
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /me/practice [get]
func (h *Handler) ListMyPractice(c *gin.Context) {
	h.listPractice(c, session(c).Profile.ID)
}

// LogPractice godoc
// @Summary      Log a practice session
// @Description  Records minutes practiced on a day. Sessions cannot be edited afterwards.
// @Tags         me
// @Accept       json
// @Produce      json
// @Param        body  body  PracticeRequest  true  "Practice session"
// @Success      201 {object} models.PracticeSession
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /me/practice [post]
func (h *Handler) LogPractice(c *gin.Context) {
	var req PracticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := req.check(h.today()); err != nil {
		bindError(c, err)
		return
	}

	s := &models.PracticeSession{
		UserID:    session(c).Profile.ID,
		Date:      req.Date,
		Minutes:   req.Minutes,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Notes:     req.Notes,
	}
	if err := h.store.CreatePracticeSession(c.Request.Context(), s); err != nil {
		h.fail(c, err, "Failed to log practice")
		return
	}
	h.metrics.PracticeLogged.Inc()
	h.invalidate(c.Request.Context(), cache.Practice)

	c.JSON(http.StatusCreated, s)
}

// MyPracticeStats godoc
// @Summary      My practice statistics
// @Description  Total minutes, distinct days, current streak and this month's consistency
// @Tags         me
// @Produce      json
// @Success      200 {object} StatsResponse
// @Security     BearerAuth
// @Router       /me/practice/stats [get]
func (h *Handler) MyPracticeStats(c *gin.Context) {
	h.practiceStats(c, session(c).Profile.ID)
}

// MyPracticeWeekly godoc
// @Summary      My weekly practice
// @Description  Minutes and sessions for this week and the three weeks before
// @Tags         me
// @Produce      json
// @Success      200 {object} WeeklyResponse
// @Security     BearerAuth
// @Router       /me/practice/weekly [get]
func (h *Handler) MyPracticeWeekly(c *gin.Context) {
	h.practiceWeekly(c, session(c).Profile.ID)
}

// StudentPractice godoc
// @Summary      List a student's practice sessions
// @Tags         admin
// @Produce      json
// @Param        id    path   string  true   "Student ID"
// @Param        from  query  string  false  "From date (YYYY-MM-DD)"
// @Param        to    query  string  false  "To date (YYYY-MM-DD)"
// @Success      200 {array}  models.PracticeSession
// @Security     BearerAuth
// @Router       /admin/students/{id}/practice [get]
func (h *Handler) StudentPractice(c *gin.Context) {
	if id, ok := pathID(c, "id"); ok {
		h.listPractice(c, id)
	}
}

// StudentPracticeStats godoc
// @Summary      A student's practice statistics
// @Tags         admin
// @Produce      json
// @Param        id  path  string  true  "Student ID"
// @Success      200 {object} StatsResponse
// @Security     BearerAuth
// @Router       /admin/students/{id}/practice/stats [get]
func (h *Handler) StudentPracticeStats(c *gin.Context) {
	if id, ok := pathID(c, "id"); ok {
		h.practiceStats(c, id)
	}
}

// StudentPracticeWeekly godoc
// @Summary      A student's weekly practice
// @Tags         admin
// @Produce      json
// @Param        id  path  string  true  "Student ID"
// @Success      200 {object} WeeklyResponse
// @Security     BearerAuth
// @Router       /admin/students/{id}/practice/weekly [get]
func (h *Handler) StudentPracticeWeekly(c *gin.Context) {
	if id, ok := pathID(c, "id"); ok {
		h.practiceWeekly(c, id)
	}
}
