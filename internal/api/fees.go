package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/violin-academy/academy-back/internal/cache"
	"github.com/violin-academy/academy-back/internal/excel"
	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
	"github.com/violin-academy/academy-back/internal/validate"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// FeeView is a fee with its student's name and the optional columns resolved.
type FeeView struct {
	models.FeeRecord
	StudentName string            `json:"student_name"`
	Details     models.FeeDetails `json:"details"`
}

type FeeQuery struct {
	Status models.FeeStatus `form:"status" binding:"omitempty,oneof=pending paid overdue"`
	Search string           `form:"search" binding:"max=100"`
	UserID string           `form:"user_id" binding:"omitempty,uuid"`
}

type FeeRequest struct {
	UserID        uuid.UUID        `json:"user_id"`
	Amount        float64          `json:"amount" binding:"required,gt=0"`
	Date          models.Date      `json:"date"`
	Status        models.FeeStatus `json:"status" binding:"omitempty,oneof=pending paid overdue"`
	Level         *string          `json:"level" binding:"omitempty,max=32"`
	PaymentMethod *string          `json:"payment_method" binding:"omitempty,max=32"`
	PaymentDate   *models.Date     `json:"payment_date"`
	Notes         *string          `json:"notes" binding:"omitempty,max=500"`
}

func (r FeeRequest) check(today models.Date) error {
	fields := map[string]string{}
	if r.UserID == uuid.Nil {
		fields["user_id"] = "user_id is required"
	}
	if r.Date.IsZero() {
		fields["date"] = "date is required"
	}
	if r.PaymentDate != nil && r.PaymentDate.After(today) {
		fields["payment_date"] = "payment_date cannot be in the future"
	}
	if len(fields) > 0 {
		return &validate.Error{Fields: fields}
	}
	return nil
}

type FeeStatusRequest struct {
	Status        models.FeeStatus `json:"status" binding:"required,oneof=pending paid overdue"`
	PaymentMethod *string          `json:"payment_method" binding:"omitempty,max=32"`
	PaymentDate   *models.Date     `json:"payment_date"`
	Notes         *string          `json:"notes" binding:"omitempty,max=500"`
}

func feeCacheKey(f repo.FeeFilter) string {
	ids := "*"
	if f.UserIDs != nil {
		parts := make([]string, len(f.UserIDs))
		for i, id := range f.UserIDs {
			parts[i] = id.String()
		}
		sort.Strings(parts)
		ids = "[" + strings.Join(parts, ",") + "]"
	}
	return cache.Key(string(f.Status), dateKey(f.From), dateKey(f.To), ids)
}

func (h *Handler) feeViews(ctx context.Context, f repo.FeeFilter) ([]FeeView, error) {
	return cached(ctx, h, cache.Fees, feeCacheKey(f), func(ctx context.Context) ([]FeeView, error) {
		return h.loadFeeViews(ctx, f)
	})
}

func (h *Handler) loadFeeViews(ctx context.Context, f repo.FeeFilter) ([]FeeView, error) {
	fees, err := h.store.ListFees(ctx, f)
	if err != nil {
		return nil, err
	}
	students, err := profilesFor(ctx, h, fees, func(f models.FeeRecord) uuid.UUID { return f.UserID })
	if err != nil {
		return nil, err
	}

	views := make([]FeeView, len(fees))
	for i, fee := range fees {
		p := students[fee.UserID]
		views[i] = FeeView{FeeRecord: fee, StudentName: p.Name, Details: fee.Details(p.Level)}
	}
	return views, nil
}

// profilesFor loads the profiles referenced by rows in a single query.
func profilesFor[T any](ctx context.Context, h *Handler, rows []T, userOf func(T) uuid.UUID) (map[uuid.UUID]models.Profile, error) {
	var ids []uuid.UUID
	seen := map[uuid.UUID]bool{}
	for _, r := range rows {
		id := userOf(r)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	out := make(map[uuid.UUID]models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	profiles, err := h.store.ListProfiles(ctx, repo.ProfileFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

// feeFilter builds the admin fee filter. A name search is resolved to
// profile ids first, then the fees are filtered by those ids.
func (h *Handler) feeFilter(c *gin.Context) (repo.FeeFilter, bool) {
	var q FeeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return repo.FeeFilter{}, false
	}
	dates, err := queryDates(c, "from", "to")
	if err != nil {
		bindError(c, err)
		return repo.FeeFilter{}, false
	}
	f := repo.FeeFilter{Status: q.Status, From: dates[0], To: dates[1]}

	if search := strings.TrimSpace(q.Search); search != "" {
		profiles, err := h.store.ListProfiles(c.Request.Context(), repo.ProfileFilter{Name: search})
		if err != nil {
			h.fail(c, err, "Failed to search students")
			return repo.FeeFilter{}, false
		}
		f.UserIDs = make([]uuid.UUID, 0, len(profiles))
		for _, p := range profiles {
			f.UserIDs = append(f.UserIDs, p.ID)
		}
	}
	if q.UserID != "" {
		uid := uuid.MustParse(q.UserID)
		switch {
		case f.UserIDs == nil:
			f.UserIDs = []uuid.UUID{uid}
		case containsID(f.UserIDs, uid):
			f.UserIDs = []uuid.UUID{uid}
		default:
			f.UserIDs = []uuid.UUID{}
		}
	}
	return f, true
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func (h *Handler) feeView(ctx context.Context, fee *models.FeeRecord) FeeView {
	view := FeeView{FeeRecord: *fee, Details: fee.Details("")}
	if p, err := h.store.GetProfile(ctx, fee.UserID); err == nil {
		view.StudentName = p.Name
		view.Details = fee.Details(p.Level)
	}
	return view
}

// ListFees godoc
// @Summary      List fees
// @Description  Filters by status, billing date range, student id or a student name search
// @Tags         admin
// @Produce      json
// @Param        status   query  string  false  "pending, paid or overdue"
// @Param        search   query  string  false  "Student name"
// @Param        user_id  query  string  false  "Student ID"
// @Param        from     query  string  false  "From date (YYYY-MM-DD)"
// @Param        to       query  string  false  "To date (YYYY-MM-DD)"
// @Success      200 {array}  FeeView
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/fees [get]
func (h *Handler) ListFees(c *gin.Context) {
	f, ok := h.feeFilter(c)
	if !ok {
		return
	}
	views, err := h.feeViews(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err, "Failed to load fees")
		return
	}
	c.JSON(http.StatusOK, views)
}

// CreateFee godoc
// @Summary      Create a fee
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        body  body  FeeRequest  true  "Fee"
// @Success      201 {object} FeeView
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/fees [post]
func (h *Handler) CreateFee(c *gin.Context) {
	var req FeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	today := h.today()
	if err := req.check(today); err != nil {
		bindError(c, err)
		return
	}

	fee := &models.FeeRecord{UserID: req.UserID, Amount: req.Amount, Date: req.Date, Level: req.Level}
	status := req.Status
	if status == "" {
		status = models.FeePending
	}
	fee.Apply(models.FeeUpdate{
		Status:        status,
		PaymentMethod: req.PaymentMethod,
		PaymentDate:   req.PaymentDate,
		Notes:         req.Notes,
	}, today)

	if err := h.store.CreateFee(c.Request.Context(), fee); err != nil {
		h.fail(c, err, "Failed to create fee")
		return
	}
	h.invalidate(c.Request.Context(), cache.Fees)

	c.JSON(http.StatusCreated, h.feeView(c.Request.Context(), fee))
}

// UpdateFeeStatus godoc
// @Summary      Update a fee's status
// @Description  Marking a fee paid without a payment date records today
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path  string            true  "Fee ID"
// @Param        body  body  FeeStatusRequest  true  "Status and payment details"
// @Success      200 {object} FeeView
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/fees/{id} [patch]
func (h *Handler) UpdateFeeStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req FeeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	today := h.today()
	if req.PaymentDate != nil && req.PaymentDate.After(today) {
		bindError(c, validate.Field("payment_date", "payment_date cannot be in the future"))
		return
	}

	ctx := c.Request.Context()
	fee, err := h.store.GetFee(ctx, id)
	if err != nil {
		h.fail(c, err, "Failed to load fee")
		return
	}
	fee.Apply(models.FeeUpdate{
		Status:        req.Status,
		PaymentMethod: req.PaymentMethod,
		PaymentDate:   req.PaymentDate,
		Notes:         req.Notes,
	}, today)
	if err := h.store.UpdateFee(ctx, fee); err != nil {
		h.fail(c, err, "Failed to update fee")
		return
	}
	h.metrics.FeeStatusChange.WithLabelValues(string(req.Status)).Inc()
	h.invalidate(ctx, cache.Fees)

	c.JSON(http.StatusOK, h.feeView(ctx, fee))
}

// DeleteFee godoc
// @Summary      Delete a fee
// @Tags         admin
// @Param        id  path  string  true  "Fee ID"
// @Success      204
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /admin/fees/{id} [delete]
func (h *Handler) DeleteFee(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteFee(c.Request.Context(), id); err != nil {
		h.fail(c, err, "Failed to delete fee")
		return
	}
	h.invalidate(c.Request.Context(), cache.Fees)
	c.Status(http.StatusNoContent)
}

// ExportFees godoc
// @Summary      Export fees to Excel
// @Description  Same filters as the fee list
// @Tags         admin
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        status  query  string  false  "pending, paid or overdue"
// @Param        search  query  string  false  "Student name"
// @Param        from    query  string  false  "From date (YYYY-MM-DD)"
// @Param        to      query  string  false  "To date (YYYY-MM-DD)"
// @Success      200 {file} file
// @Security     BearerAuth
// @Router       /admin/fees/export [get]
func (h *Handler) ExportFees(c *gin.Context) {
	f, ok := h.feeFilter(c)
	if !ok {
		return
	}
	views, err := h.loadFeeViews(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err, "Failed to load fees")
		return
	}

	rows := make([]excel.FeeRow, len(views))
	for i, v := range views {
		rows[i] = excel.FeeRow{Student: v.StudentName, Fee: v.FeeRecord, Details: v.Details}
	}
	var buf bytes.Buffer
	if err := excel.WriteFees(&buf, rows); err != nil {
		h.fail(c, err, "Failed to build spreadsheet")
		return
	}
	sendWorkbook(c, fmt.Sprintf("fees-%s.xlsx", h.today()), buf.Bytes())
}

func sendWorkbook(c *gin.Context, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
