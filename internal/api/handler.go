package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/violin-academy/academy-back/internal/auth"
	"github.com/violin-academy/academy-back/internal/cache"
	"github.com/violin-academy/academy-back/internal/mail"
	"github.com/violin-academy/academy-back/internal/metrics"
	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/practice"
	"github.com/violin-academy/academy-back/internal/repo"
	"github.com/violin-academy/academy-back/internal/validate"
)

type Options struct {
	// Location decides what "today" is for practice stats and date checks.
	Location    *time.Location
	StreakLimit int
	CacheTTL    time.Duration
	// NotifyEmail receives new trial request notifications. Empty disables them.
	NotifyEmail string
}

type Handler struct {
	store   repo.Store
	cache   cache.Cache
	mailer  mail.Mailer
	metrics *metrics.Metrics
	log     *slog.Logger
	opts    Options
	now     func() time.Time
}

func NewHandler(store repo.Store, c cache.Cache, mailer mail.Mailer, m *metrics.Metrics, log *slog.Logger, opts Options) *Handler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	return &Handler{store: store, cache: c, mailer: mailer, metrics: m, log: log, opts: opts, now: time.Now}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *Handler) today() models.Date {
	return models.NewDate(h.now().In(h.opts.Location))
}

func (h *Handler) streakOptions() practice.Options {
	return practice.Options{StreakLimit: h.opts.StreakLimit}
}

func bindError(c *gin.Context, err error) {
	if fields, ok := validate.Fields(err); ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fields})
		return
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request"})
}

// fail maps storage and domain errors to a response. Anything unexpected is
// logged and answered with 500 and msg.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: repo.ErrNotFound.Error()})
	case errors.Is(err, repo.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: repo.ErrConflict.Error()})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		_ = c.Error(err)
		h.log.Error(msg, "err", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msg})
	}
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func session(c *gin.Context) auth.Session {
	sess, _ := auth.SessionFrom(c)
	return sess
}

// queryDates reads optional YYYY-MM-DD query parameters.
func queryDates(c *gin.Context, names ...string) ([]*models.Date, error) {
	out := make([]*models.Date, len(names))
	fields := map[string]string{}
	for i, name := range names {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		d, err := models.ParseDate(raw)
		if err != nil {
			fields[name] = name + " must be a date formatted YYYY-MM-DD"
			continue
		}
		out[i] = &d
	}
	if len(fields) > 0 {
		return nil, &validate.Error{Fields: fields}
	}
	return out, nil
}

func dateKey(d *models.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

// cached serves load through the query cache. Cache failures are logged and
// fall through to load.
func cached[T any](ctx context.Context, h *Handler, namespace, key string, load func(context.Context) (T, error)) (T, error) {
	var v T
	hit, err := h.cache.Get(ctx, namespace, key, &v)
	if err != nil {
		h.log.Warn("cache read failed", "namespace", namespace, "err", err)
	}
	if hit {
		h.metrics.CacheLookups.WithLabelValues(namespace, "hit").Inc()
		return v, nil
	}
	h.metrics.CacheLookups.WithLabelValues(namespace, "miss").Inc()

	v, err = load(ctx)
	if err != nil {
		return v, err
	}
	if err := h.cache.Set(ctx, namespace, key, v, h.opts.CacheTTL); err != nil {
		h.log.Warn("cache write failed", "namespace", namespace, "err", err)
	}
	return v, nil
}

func (h *Handler) invalidate(ctx context.Context, namespaces ...string) {
	if err := h.cache.Invalidate(ctx, namespaces...); err != nil {
		h.log.Warn("cache invalidation failed", "namespaces", namespaces, "err", err)
	}
}

// Health godoc
// @Summary      Health check
// @Description  Pings the database
// @Tags         system
// @Produce      json
// @Success      200 {object} map[string]string
// @Failure      500 {object} map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.log.Error("db ping failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "db_ping_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
