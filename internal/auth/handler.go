package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
	"github.com/violin-academy/academy-back/internal/validate"
)

type Handler struct {
	tokens   *Tokens
	profiles repo.Profiles
	google   *Google
	log      *slog.Logger
}

// NewHandler builds the auth endpoints. google may be nil when Google
// sign-in is not configured.
func NewHandler(tokens *Tokens, profiles repo.Profiles, google *Google, log *slog.Logger) *Handler {
	return &Handler{tokens: tokens, profiles: profiles, google: google, log: log}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LoginResponse struct {
	TokenPair
	Profile *models.Profile `json:"profile"`
}

func bindError(c *gin.Context, err error) {
	if fields, ok := validate.Fields(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
}

func (h *Handler) authenticate(c *gin.Context, adminOnly bool) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	p, err := h.profiles.GetProfileByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	switch {
	case errors.Is(err, repo.ErrNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidCredentials.Error()})
		return
	case err != nil:
		h.log.Error("login lookup failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign in"})
		return
	}
	if err := CheckPassword(p.PasswordHash, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidCredentials.Error()})
		return
	}

	if adminOnly {
		ok, err := h.profiles.IsAdmin(c.Request.Context(), p.ID)
		if err != nil {
			h.log.Error("admin check failed", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign in"})
			return
		}
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
	}

	h.respondTokens(c, p)
}

func (h *Handler) respondTokens(c *gin.Context, p *models.Profile) {
	pair, err := h.tokens.Issue(p)
	if err != nil {
		h.log.Error("sign tokens failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign in"})
		return
	}
	c.JSON(http.StatusOK, LoginResponse{TokenPair: pair, Profile: p})
}

// Login godoc
// @Summary      Student login
// @Description  Exchanges email and password for an access/refresh token pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  LoginRequest  true  "Credentials"
// @Success      200   {object} LoginResponse
// @Failure      400   {object} map[string]string
// @Failure      401   {object} map[string]string
// @Router       /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	h.authenticate(c, false)
}

// AdminLogin godoc
// @Summary      Admin login
// @Description  Same as login, but only succeeds for admin profiles
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  LoginRequest  true  "Credentials"
// @Success      200   {object} LoginResponse
// @Failure      401   {object} map[string]string
// @Failure      403   {object} map[string]string
// @Router       /auth/admin/login [post]
func (h *Handler) AdminLogin(c *gin.Context) {
	h.authenticate(c, true)
}

// Refresh godoc
// @Summary      Refresh tokens
// @Description  Trades a refresh token for a new token pair
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  RefreshRequest  true  "Refresh token"
// @Success      200   {object} LoginResponse
// @Failure      401   {object} map[string]string
// @Router       /auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing refresh token"})
		return
	}

	claims, err := h.tokens.Parse(req.RefreshToken, TokenRefresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}
	id, err := claims.ProfileID()
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid claims"})
		return
	}

	p, err := h.profiles.GetProfile(c.Request.Context(), id)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account no longer exists"})
		return
	case err != nil:
		h.log.Error("refresh lookup failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh"})
		return
	}

	h.respondTokens(c, p)
}

// Register mounts the auth routes on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/login", h.Login)
	rg.POST("/admin/login", h.AdminLogin)
	rg.POST("/refresh", h.Refresh)
	if h.google != nil {
		rg.GET("/google/login", h.GoogleLogin)
		rg.GET("/google/callback", h.GoogleCallback)
	}
}
