package cron

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/violin-academy/academy-back/internal/cache"
	"github.com/violin-academy/academy-back/internal/mail"
	"github.com/violin-academy/academy-back/internal/metrics"
	"github.com/violin-academy/academy-back/internal/models"
	"github.com/violin-academy/academy-back/internal/repo"
)

const (
	jobTimeout = 2 * time.Minute
	// StaleTrialAge is how long a trial request may stay new before admins are reminded.
	StaleTrialAge = 48 * time.Hour
)

type Config struct {
	Location    *time.Location
	GraceDays   int
	NotifyEmail string
}

type Jobs struct {
	fees    repo.Fees
	trials  repo.Trials
	mailer  mail.Mailer
	cache   cache.Cache
	metrics *metrics.Metrics
	log     *slog.Logger
	cfg     Config
	now     func() time.Time
}

func NewJobs(fees repo.Fees, trials repo.Trials, mailer mail.Mailer, c cache.Cache, m *metrics.Metrics, log *slog.Logger, cfg Config) *Jobs {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Jobs{fees: fees, trials: trials, mailer: mailer, cache: c, metrics: m, log: log, cfg: cfg, now: time.Now}
}

// Start schedules the daily jobs and returns the running scheduler. Stop it
// on shutdown.
func (j *Jobs) Start() (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(j.cfg.Location))

	if _, err := c.AddFunc("@daily", j.run("overdue-fees", j.SweepOverdueFees)); err != nil {
		return nil, err
	}
	if _, err := c.AddFunc("@daily", j.run("stale-trials", func(ctx context.Context) error {
		_, err := j.RemindStaleTrials(ctx)
		return err
	})); err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}

func (j *Jobs) run(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		j.log.Info("running job", "job", name)
		if err := fn(ctx); err != nil {
			j.log.Error("job failed", "job", name, "err", err)
		}
	}
}

// SweepOverdueFees marks pending fees billed more than GraceDays ago as
// overdue and drops cached fee views when anything changed.
func (j *Jobs) SweepOverdueFees(ctx context.Context) error {
	today := models.NewDate(j.now().In(j.cfg.Location))
	cutoff := today.AddDays(-j.cfg.GraceDays)

	n, err := j.fees.MarkOverdue(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to mark overdue fees: %w", err)
	}
	j.metrics.FeesMarkedLate.Add(float64(n))
	j.log.Info("marked overdue fees", "count", n, "cutoff", cutoff.String())
	if n > 0 {
		if err := j.cache.Invalidate(ctx, cache.Fees); err != nil {
			j.log.Warn("failed to invalidate fee cache", "err", err)
		}
	}
	return nil
}

// RemindStaleTrials emails the admin inbox a list of requests still new
// after StaleTrialAge and returns them.
func (j *Jobs) RemindStaleTrials(ctx context.Context) ([]models.TrialRequest, error) {
	before := j.now().Add(-StaleTrialAge)
	stale, err := j.trials.ListTrialRequests(ctx, repo.TrialFilter{Status: models.TrialNew, CreatedBefore: &before})
	if err != nil {
		return nil, fmt.Errorf("failed to list trial requests: %w", err)
	}
	if len(stale) == 0 {
		return stale, nil
	}
	if j.cfg.NotifyEmail == "" {
		j.log.Warn("stale trial requests but no notify address", "count", len(stale))
		return stale, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d trial request(s) have not been contacted for more than 48 hours:\n\n", len(stale))
	for _, t := range stale {
		fmt.Fprintf(&b, "- %s <%s> %s, received %s\n", t.Name, t.Email, t.Phone, t.CreatedAt.In(j.cfg.Location).Format("2006-01-02 15:04"))
	}

	err = j.mailer.Send(ctx, mail.Message{
		To:      []string{j.cfg.NotifyEmail},
		Subject: fmt.Sprintf("%d trial request(s) awaiting contact", len(stale)),
		Text:    b.String(),
	})
	if err != nil {
		return stale, fmt.Errorf("failed to send reminder: %w", err)
	}
	return stale, nil
}
