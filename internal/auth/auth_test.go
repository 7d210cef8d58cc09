package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/violin-academy/academy-back/internal/memdb"
	"github.com/violin-academy/academy-back/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTokens(t *testing.T) *Tokens {
	t.Helper()
	tokens, err := NewTokens("test-secret", 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	return tokens
}

func seedProfile(t *testing.T, db *memdb.DB, name, email, password string, role models.Role) *models.Profile {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	p := &models.Profile{Name: name, Email: email, Role: role, PasswordHash: hash}
	require.NoError(t, db.CreateProfile(context.Background(), p))
	return p
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, CheckPassword("", "anything"), ErrInvalidCredentials)
}

func TestTokens(t *testing.T) {
	tokens := newTokens(t)
	p := &models.Profile{ID: uuid.New(), Email: "anna@example.com", Role: models.RoleStudent}

	pair, err := tokens.Issue(p)
	require.NoError(t, err)
	assert.EqualValues(t, 900, pair.ExpiresIn)

	claims, err := tokens.Parse(pair.AccessToken, TokenAccess)
	require.NoError(t, err)
	id, err := claims.ProfileID()
	require.NoError(t, err)
	assert.Equal(t, p.ID, id)
	assert.Equal(t, models.RoleStudent, claims.Role)

	_, err = tokens.Parse(pair.AccessToken, TokenRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewTokens("other-secret", time.Minute, time.Minute)
	require.NoError(t, err)
	_, err = other.Parse(pair.AccessToken, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	tokens.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = tokens.Parse(pair.AccessToken, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokens("", time.Minute, time.Minute)
	assert.Error(t, err)
}

func TestGuardResolve(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()
	tokens := newTokens(t)
	guard := NewGuard(tokens, db)

	student := seedProfile(t, db, "Anna", "anna@example.com", "password1", models.RoleStudent)
	admin := seedProfile(t, db, "Admin", "admin@example.com", "password1", models.RoleAdmin)

	sess, err := guard.Resolve(ctx, "garbage")
	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, sess.State)

	pair, _ := tokens.Issue(student)
	sess, err = guard.Resolve(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, sess.State)
	assert.Equal(t, student.ID, sess.Profile.ID)

	pair, _ = tokens.Issue(admin)
	sess, err = guard.Resolve(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, StateAdmin, sess.State)

	// A token whose role claim says admin is not enough on its own.
	forged := *student
	forged.Role = models.RoleAdmin
	pair, _ = tokens.Issue(&forged)
	sess, err = guard.Resolve(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, sess.State)

	require.NoError(t, db.DeleteProfile(ctx, student.ID))
	sess, err = guard.Resolve(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, sess.State)
}

func TestGuardMiddleware(t *testing.T) {
	db := memdb.New()
	tokens := newTokens(t)
	guard := NewGuard(tokens, db)
	student := seedProfile(t, db, "Anna", "anna@example.com", "password1", models.RoleStudent)
	admin := seedProfile(t, db, "Admin", "admin@example.com", "password1", models.RoleAdmin)

	r := gin.New()
	r.GET("/me", guard.RequireUser(), func(c *gin.Context) {
		sess, _ := SessionFrom(c)
		c.JSON(http.StatusOK, gin.H{"state": sess.State.String()})
	})
	r.GET("/admin", guard.RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	studentPair, _ := tokens.Issue(student)
	adminPair, _ := tokens.Issue(admin)

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"no token", "/me", "", http.StatusUnauthorized},
		{"bad token", "/me", "nope", http.StatusUnauthorized},
		{"refresh token used as access", "/me", studentPair.RefreshToken, http.StatusUnauthorized},
		{"student on student route", "/me", studentPair.AccessToken, http.StatusOK},
		{"student on admin route", "/admin", studentPair.AccessToken, http.StatusForbidden},
		{"admin on admin route", "/admin", adminPair.AccessToken, http.StatusNoContent},
		{"admin on student route", "/me", adminPair.AccessToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func postJSON(r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLoginHandlers(t *testing.T) {
	db := memdb.New()
	tokens := newTokens(t)
	seedProfile(t, db, "Anna", "anna@example.com", "password1", models.RoleStudent)
	seedProfile(t, db, "Admin", "admin@example.com", "password1", models.RoleAdmin)

	r := gin.New()
	NewHandler(tokens, db, nil, discardLogger()).Register(r.Group("/auth"))

	rec := postJSON(r, "/auth/login", LoginRequest{Email: "anna@example.com", Password: "password1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Anna", resp.Profile.Name)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	rec = postJSON(r, "/auth/login", LoginRequest{Email: "anna@example.com", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(r, "/auth/login", LoginRequest{Email: "nobody@example.com", Password: "password1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(r, "/auth/login", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(r, "/auth/admin/login", LoginRequest{Email: "anna@example.com", Password: "password1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = postJSON(r, "/auth/admin/login", LoginRequest{Email: "admin@example.com", Password: "password1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(r, "/auth/refresh", RefreshRequest{RefreshToken: resp.RefreshToken})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(r, "/auth/refresh", RefreshRequest{RefreshToken: resp.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGoogleCallback(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			_, _ = w.Write([]byte(`{"access_token":"google-token","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			_, _ = w.Write([]byte(`{"email":"anna@example.com","verified_email":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer provider.Close()

	db := memdb.New()
	seedProfile(t, db, "Anna", "anna@example.com", "password1", models.RoleStudent)

	g := NewGoogle("client", "secret", "http://localhost/callback")
	g.oauth.Endpoint = oauth2.Endpoint{AuthURL: provider.URL + "/auth", TokenURL: provider.URL + "/token"}
	g.userInfoURL = provider.URL + "/userinfo"

	r := gin.New()
	NewHandler(newTokens(t), db, g, discardLogger()).Register(r.Group("/auth"))

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=abc&state=xyz", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "xyz"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "access_token")

	req = httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=abc&state=xyz", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "other"})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/auth/google/login", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), provider.URL+"/auth")
}
