package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
)

// State is where a request stands after the guard ran.
type State int

const (
	StateLoading State = iota
	StateUnauthenticated
	StateAuthenticated
	StateAdmin
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateAdmin:
		return "admin"
	}
	return "loading"
}

type Session struct {
	State   State
	Profile *models.Profile
	Claims  *Claims
}

// Guard resolves the bearer token of a request into a Session.
type Guard struct {
	tokens   *Tokens
	profiles repo.Profiles
}

func NewGuard(tokens *Tokens, profiles repo.Profiles) *Guard {
	return &Guard{tokens: tokens, profiles: profiles}
}

// Resolve runs the session check (the token's profile still exists) and
// the admin-role check concurrently and settles once both finished.
func (g *Guard) Resolve(ctx context.Context, bearer string) (Session, error) {
	claims, err := g.tokens.Parse(bearer, TokenAccess)
	if err != nil {
		return Session{State: StateUnauthenticated}, nil
	}
	id, err := claims.ProfileID()
	if err != nil {
		return Session{State: StateUnauthenticated}, nil
	}

	var (
		profile *models.Profile
		isAdmin bool
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		p, err := g.profiles.GetProfile(egCtx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		profile = p
		return err
	})
	eg.Go(func() error {
		ok, err := g.profiles.IsAdmin(egCtx, id)
		isAdmin = ok
		return err
	})
	if err := eg.Wait(); err != nil {
		return Session{State: StateLoading}, err
	}

	switch {
	case profile == nil:
		return Session{State: StateUnauthenticated}, nil
	case isAdmin:
		return Session{State: StateAdmin, Profile: profile, Claims: claims}, nil
	default:
		return Session{State: StateAuthenticated, Profile: profile, Claims: claims}, nil
	}
}

const sessionKey = "session"

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (g *Guard) middleware(adminOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing Authorization header"})
			return
		}

		sess, err := g.Resolve(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify session"})
			return
		}

		switch {
		case sess.State == StateUnauthenticated:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		case adminOnly && sess.State != StateAdmin:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}

		c.Set(sessionKey, sess)
		c.Next()
	}
}

// RequireUser admits any signed-in profile.
func (g *Guard) RequireUser() gin.HandlerFunc { return g.middleware(false) }

// RequireAdmin admits admins only.
func (g *Guard) RequireAdmin() gin.HandlerFunc { return g.middleware(true) }

// SessionFrom returns the session a guard attached to c.
func SessionFrom(c *gin.Context) (Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return Session{}, false
	}
	sess, ok := v.(Session)
	return sess, ok
}
