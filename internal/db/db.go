package db

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sethvargo/go-retry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/violin-academy/academy-back/internal/repo"
)

// Store is the Postgres implementation of repo.Store.
type Store struct {
	db          *gorm.DB
	readRetries uint64
	retryDelay  time.Duration
}

var _ repo.Store = (*Store)(nil)

type Options struct {
	// ReadRetries is how many times profile reads are retried after a
	// transient failure.
	ReadRetries uint64
	RetryDelay  time.Duration
}

// Open connects to Postgres and applies pending migrations.
func Open(ctx context.Context, dsn string, log *slog.Logger, opts Options) (*Store, error) {
	s, err := Connect(ctx, dsn, log, opts)
	if err != nil {
		return nil, err
	}
	sqlDB, err := s.SQL()
	if err != nil {
		return nil, errors.Wrap(err, "database handle")
	}
	if err := Migrate(sqlDB); err != nil {
		return nil, err
	}
	log.Info("database connected and migrated")
	return s, nil
}

// Connect opens and pings the database without touching the schema.
func Connect(ctx context.Context, dsn string, log *slog.Logger, opts Options) (*Store, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(
			slog.NewLogLogger(log.Handler(), slog.LevelWarn),
			gormlogger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, errors.Wrap(err, "database handle")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "ping database")
	}
	return New(gdb, opts), nil
}

func New(gdb *gorm.DB, opts Options) *Store {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 200 * time.Millisecond
	}
	return &Store{db: gdb, readRetries: opts.ReadRetries, retryDelay: opts.RetryDelay}
}

func (s *Store) SQL() (*sql.DB, error) {
	return s.db.DB()
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// withReadRetry retries fn on transient errors. Not-found and context
// errors are returned immediately.
func (s *Store) withReadRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.readRetries == 0 {
		return fn(ctx)
	}
	backoff := retry.WithMaxRetries(s.readRetries, retry.NewConstant(s.retryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || errors.Is(err, repo.ErrNotFound) || ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	})
}

// classify maps gorm errors onto the repo sentinels.
func classify(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrap(repo.ErrNotFound, op)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Wrap(repo.ErrConflict, op)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		// the referenced profile does not exist
		return errors.Wrap(repo.ErrNotFound, op)
	default:
		return errors.Wrap(err, op)
	}
}

func affected(res *gorm.DB, op string) error {
	if res.Error != nil {
		return classify(res.Error, op)
	}
	if res.RowsAffected == 0 {
		return errors.Wrap(repo.ErrNotFound, op)
	}
	return nil
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func likePattern(s string) string {
	r := make([]rune, 0, len(s)+2)
	r = append(r, '%')
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			r = append(r, '\\')
		}
		r = append(r, c)
	}
	return string(append(r, '%'))
}
