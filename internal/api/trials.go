package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/violin-academy/academy-back/internal/auth"
	"github.com/violin-academy/academy-back/internal/cache"
	"github.com/violin-academy/academy-back/internal/mail"
	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
	"github.com/violin-academy/academy-back/internal/validate"
)

// TrialRequestForm is the public "book a trial lesson" form.
type TrialRequestForm struct {
	Name          string       `json:"name" binding:"required,min=2,max=120"`
	Email         string       `json:"email" binding:"required,email"`
	Phone         string       `json:"phone" binding:"required,max=32"`
	Age           *int         `json:"age" binding:"omitempty,min=3,max=99"`
	Course        string       `json:"course" binding:"max=120"`
	Level         models.Level `json:"level" binding:"omitempty,oneof=beginner intermediate advanced"`
	PreferredDate *models.Date `json:"preferred_date"`
	PreferredTime *string      `json:"preferred_time" binding:"omitempty,hhmm"`
	Message       string       `json:"message" binding:"max=2000"`
}

type TrialQuery struct {
	Status models.TrialStatus `form:"status" binding:"omitempty,oneof=new contacted scheduled completed converted cancelled rejected"`
	Search string             `form:"search" binding:"max=100"`
}

type TrialUpdateRequest struct {
	Status        *models.TrialStatus `json:"status" binding:"omitempty,oneof=new contacted scheduled completed converted cancelled rejected"`
	AdminNotes    *string             `json:"admin_notes" binding:"omitempty,max=2000"`
	PreferredDate *models.Date        `json:"preferred_date"`
	PreferredTime *string             `json:"preferred_time" binding:"omitempty,hhmm"`
}

type ConvertRequest struct {
	Password string       `json:"password" binding:"omitempty,min=8,max=72"`
	Level    models.Level `json:"level" binding:"omitempty,oneof=beginner intermediate advanced"`
}

type ConvertResponse struct {
	Profile      *models.Profile      `json:"profile"`
	TrialRequest *models.TrialRequest `json:"trial_request"`
}

func (h *Handler) notifyTrial(ctx context.Context, t *models.TrialRequest) {
	if h.opts.NotifyEmail == "" {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\nPhone: %s\n", t.Name, t.Email, t.Phone)
	if t.Age != nil {
		fmt.Fprintf(&b, "Age: %d\n", *t.Age)
	}
	if t.Course != "" {
		fmt.Fprintf(&b, "Course: %s\n", t.Course)
	}
	if t.Level != "" {
		fmt.Fprintf(&b, "Level: %s\n", t.Level)
	}
	if t.PreferredDate != nil {
		fmt.Fprintf(&b, "Preferred date: %s", t.PreferredDate)
		if t.PreferredTime != nil {
			fmt.Fprintf(&b, " %s", *t.PreferredTime)
		}
		b.WriteString("\n")
	}
	if t.Message != "" {
		fmt.Fprintf(&b, "\n%s\n", t.Message)
	}

	err := h.mailer.Send(ctx, mail.Message{
		To:      []string{h.opts.NotifyEmail},
		Subject: "New trial request from " + t.Name,
		Text:    b.String(),
	})
	if err != nil {
		h.log.Error("trial notification failed", "trial_id", t.ID, "err", err)
	}
}

// SubmitTrialRequest godoc
// @Summary      Request a trial lesson
// @Description  Public form. Admins are notified by email.
// @Tags         trials
// @Accept       json
// @Produce      json
// @Param        body  body  TrialRequestForm  true  "Trial request"
// @Success      201 {object} models.TrialRequest
// @Failure      400 {object} ErrorResponse
// @Router       /trial-requests [post]
func (h *Handler) SubmitTrialRequest(c *gin.Context) {
	var req TrialRequestForm
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.PreferredDate != nil && req.PreferredDate.Before(h.today()) {
		bindError(c, validate.Field("preferred_date", "preferred_date cannot be in the past"))
		return
	}

	t := &models.TrialRequest{
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:         strings.TrimSpace(req.Phone),
		Age:           req.Age,
		Course:        req.Course,
		Level:         req.Level,
		PreferredDate: req.PreferredDate,
		PreferredTime: req.PreferredTime,
		Message:       req.Message,
		Status:        models.TrialNew,
	}
	ctx := c.Request.Context()
	if err := h.store.CreateTrialRequest(ctx, t); err != nil {
		h.fail(c, err, "Failed to submit trial request")
		return
	}
	h.metrics.TrialsReceived.Inc()
	h.invalidate(ctx, cache.Trials)
	h.notifyTrial(ctx, t)

	c.JSON(http.StatusCreated, t)
}

// ListTrialRequests godoc
// @Summary      List trial requests
// @Tags         admin
// @Produce      json
// @Param        status  query  string  false  "Status"
// @Param        search  query  string  false  "Name, email or phone contains"
// @Success      200 {array}  models.TrialRequest
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/trial-requests [get]
func (h *Handler) ListTrialRequests(c *gin.Context) {
	var q TrialQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	f := repo.TrialFilter{Status: q.Status, Search: strings.TrimSpace(q.Search)}

	trials, err := cached(c.Request.Context(), h, cache.Trials, cache.Key(string(f.Status), f.Search),
		func(ctx context.Context) ([]models.TrialRequest, error) {
			return h.store.ListTrialRequests(ctx, f)
		})
	if err != nil {
		h.fail(c, err, "Failed to load trial requests")
		return
	}
	c.JSON(http.StatusOK, trials)
}

// GetTrialRequest godoc
// @Summary      Get a trial request
// @Tags         admin
// @Produce      json
// @Param        id  path  string  true  "Trial request ID"
// @Success      200 {object} models.TrialRequest
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/trial-requests/{id} [get]
func (h *Handler) GetTrialRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := h.store.GetTrialRequest(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to load trial request")
		return
	}
	c.JSON(http.StatusOK, t)
}

// UpdateTrialRequest godoc
// @Summary      Update a trial request
// @Description  Moves the request along new, contacted, scheduled, completed, converted or closes it as cancelled or rejected
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path  string              true  "Trial request ID"
// @Param        body  body  TrialUpdateRequest  true  "Changes"
// @Success      200 {object} models.TrialRequest
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/trial-requests/{id} [patch]
func (h *Handler) UpdateTrialRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req TrialUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.Status != nil && *req.Status == models.TrialConverted {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Use the convert endpoint to convert a trial request"})
		return
	}

	ctx := c.Request.Context()
	t, err := h.store.GetTrialRequest(ctx, id)
	if err != nil {
		h.fail(c, err, "Failed to load trial request")
		return
	}
	if req.Status != nil {
		if err := t.Transition(*req.Status); err != nil {
			h.fail(c, err, "Failed to update trial request")
			return
		}
	}
	if req.AdminNotes != nil {
		t.AdminNotes = *req.AdminNotes
	}
	if req.PreferredDate != nil {
		t.PreferredDate = req.PreferredDate
	}
	if req.PreferredTime != nil {
		t.PreferredTime = req.PreferredTime
	}

	if err := h.store.UpdateTrialRequest(ctx, t); err != nil {
		h.fail(c, err, "Failed to update trial request")
		return
	}
	h.invalidate(ctx, cache.Trials)
	c.JSON(http.StatusOK, t)
}

// ConvertTrialRequest godoc
// @Summary      Convert a trial request into a student
// @Description  Creates a student profile from a completed trial request and marks the request converted
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path  string          true  "Trial request ID"
// @Param        body  body  ConvertRequest  false "Initial password and level"
// @Success      201 {object} ConvertResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/trial-requests/{id}/convert [post]
func (h *Handler) ConvertTrialRequest(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ConvertRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	ctx := c.Request.Context()
	t, err := h.store.GetTrialRequest(ctx, id)
	if err != nil {
		h.fail(c, err, "Failed to load trial request")
		return
	}
	if t.Status == models.TrialConverted {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "Trial request already converted"})
		return
	}
	if err := t.Transition(models.TrialConverted); err != nil {
		h.fail(c, err, "Failed to convert trial request")
		return
	}

	p := &models.Profile{
		Name:  t.Name,
		Email: t.Email,
		Role:  models.RoleStudent,
		Phone: t.Phone,
		Level: t.Level,
	}
	if req.Level != "" {
		p.Level = req.Level
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			h.fail(c, err, "Failed to convert trial request")
			return
		}
		p.PasswordHash = hash
	}
	if err := h.store.ConvertTrialRequest(ctx, t, p); err != nil {
		h.fail(c, err, "Failed to convert trial request")
		return
	}
	h.invalidate(ctx, cache.Trials, cache.Profiles)

	c.JSON(http.StatusCreated, ConvertResponse{Profile: p, TrialRequest: t})
}
