package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/violin-academy/academy-back/internal/repo"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	stateCookie       = "oauth_state"
)

// Google signs existing profiles in with their Google account. Accounts
// are never created here; admins admit students first.
type Google struct {
	oauth       *oauth2.Config
	userInfoURL string
}

func NewGoogle(clientID, secret, redirectURL string) *Google {
	return &Google{
		oauth: &oauth2.Config{
			RedirectURL:  redirectURL,
			ClientID:     clientID,
			ClientSecret: secret,
			Scopes: []string{
				"openid",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (g *Google) email(ctx context.Context, code string) (string, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := g.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch user info: %s", resp.Status)
	}

	var info struct {
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decode user info: %w", err)
	}
	if info.Email == "" || !info.VerifiedEmail {
		return "", errors.New("google account has no verified email")
	}
	return info.Email, nil
}

// GoogleLogin godoc
// @Summary      Login with Google
// @Description  Redirects to Google's consent screen
// @Tags         auth
// @Success      307
// @Router       /auth/google/login [get]
func (h *Handler) GoogleLogin(c *gin.Context) {
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 600, "/", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusTemporaryRedirect, h.google.oauth.AuthCodeURL(state))
}

// GoogleCallback godoc
// @Summary      Google callback
// @Description  Completes Google sign-in for an existing profile and returns tokens
// @Tags         auth
// @Produce      json
// @Param        code   query  string  true  "Authorization code"
// @Param        state  query  string  true  "State"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} map[string]string
// @Failure      403 {object} map[string]string
// @Router       /auth/google/callback [get]
func (h *Handler) GoogleCallback(c *gin.Context) {
	state, err := c.Cookie(stateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OAuth state"})
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", c.Request.TLS != nil, true)

	email, err := h.google.email(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.log.Warn("google sign-in failed", "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to sign in with Google"})
		return
	}

	p, err := h.profiles.GetProfileByEmail(c.Request.Context(), email)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		c.JSON(http.StatusForbidden, gin.H{"error": "No academy account for this Google account"})
		return
	case err != nil:
		h.log.Error("google profile lookup failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign in"})
		return
	}

	h.respondTokens(c, p)
}
