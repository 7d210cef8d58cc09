package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/violin-academy/academy-back/internal/cache"
	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 50
)

type PointsResponse struct {
	Total   int                  `json:"total"`
	Entries []models.PointsEntry `json:"entries"`
}

func (h *Handler) points(ctx context.Context, userID uuid.UUID) (PointsResponse, error) {
	return cached(ctx, h, cache.Points, cache.Key("user", userID.String()),
		func(ctx context.Context) (PointsResponse, error) {
			entries, err := h.store.ListPoints(ctx, userID)
			if err != nil {
				return PointsResponse{}, err
			}
			total, err := h.store.TotalPoints(ctx, userID)
			if err != nil {
				return PointsResponse{}, err
			}
			return PointsResponse{Total: total, Entries: entries}, nil
		})
}

// GetMe godoc
// @Summary      Get current profile
// @Description  Returns the signed-in profile
// @Tags         me
// @Produce      json
// @Success      200 {object} models.Profile
// @Failure      401 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /me [get]
func (h *Handler) GetMe(c *gin.Context) {
	c.JSON(http.StatusOK, session(c).Profile)
}

// MyPoints godoc
// @Summary      My points
// @Description  Points total and ledger, newest first
// @Tags         me
// @Produce      json
// @Success      200 {object} PointsResponse
// @Security     BearerAuth
// @Router       /me/points [get]
func (h *Handler) MyPoints(c *gin.Context) {
	resp, err := h.points(c.Request.Context(), session(c).Profile.ID)
	if err != nil {
		h.fail(c, err, "Failed to load points")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// MyFees godoc
// @Summary      My fees
// @Tags         me
// @Produce      json
// @Success      200 {array}  FeeView
// @Security     BearerAuth
// @Router       /me/fees [get]
func (h *Handler) MyFees(c *gin.Context) {
	p := session(c).Profile
	views, err := h.feeViews(c.Request.Context(), repo.FeeFilter{UserIDs: []uuid.UUID{p.ID}})
	if err != nil {
		h.fail(c, err, "Failed to load fees")
		return
	}
	c.JSON(http.StatusOK, views)
}

// MyAttendance godoc
// @Summary      My attendance
// @Tags         me
// @Produce      json
// @Param        from  query  string  false  "From date (YYYY-MM-DD)"
// @Param        to    query  string  false  "To date (YYYY-MM-DD)"
// @Success      200 {array}  models.Attendance
// @Security     BearerAuth
// @Router       /me/attendance [get]
func (h *Handler) MyAttendance(c *gin.Context) {
	h.studentAttendance(c, session(c).Profile.ID)
}

// Leaderboard godoc
// @Summary      Points leaderboard
// @Tags         points
// @Produce      json
// @Param        limit  query  int  false  "Number of entries (max 50)"
// @Success      200 {array}  models.LeaderboardEntry
// @Security     BearerAuth
// @Router       /points/leaderboard [get]
func (h *Handler) Leaderboard(c *gin.Context) {
	limit := defaultLeaderboardSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive number"})
			return
		}
		limit = min(n, maxLeaderboardSize)
	}

	board, err := cached(c.Request.Context(), h, cache.Points, cache.Key("leaderboard", strconv.Itoa(limit)),
		func(ctx context.Context) ([]models.LeaderboardEntry, error) {
			return h.store.Leaderboard(ctx, limit)
		})
	if err != nil {
		h.fail(c, err, "Failed to load leaderboard")
		return
	}
	c.JSON(http.StatusOK, board)
}
