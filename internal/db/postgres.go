package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/pizza-nz/staff-ordering/internal/config"
)

// SQLSTATE codes the service reacts to.
const (
	codeForeignKeyViolation  = "23503"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

type Postgres struct {
	DB *sqlx.DB

	logger    *zap.Logger
	txTimeout time.Duration
	txRetries uint64
}

// DSN builds a lib/pq connection string. A non-zero statement timeout is
// passed as a session parameter so every statement is bounded server side.
func DSN(cfg config.Database) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSN(cfg.Host), cfg.Port, quoteDSN(cfg.User), quoteDSN(cfg.Password),
		quoteDSN(cfg.DBName), quoteDSN(cfg.SSLMode))
	if cfg.StatementTimeout > 0 {
		dsn += fmt.Sprintf(" statement_timeout=%d", cfg.StatementTimeout.Milliseconds())
	}
	return dsn
}

var dsnEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// quoteDSN single-quotes a key/value connection parameter.
func quoteDSN(v string) string {
	return "'" + dsnEscaper.Replace(v) + "'"
}

// MigrateURL builds the postgres:// URL golang-migrate connects with.
func MigrateURL(cfg config.Database) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

func NewPostgres(cfg config.Database, logger *zap.Logger) (*Postgres, error) {
	connStr := DSN(cfg)

	// Connect with retries - helpful for system startup scenarios
	var db *sqlx.DB
	attempt := 0
	connect := func() error {
		attempt++
		var err error
		db, err = sqlx.Connect("postgres", connStr)
		if err != nil {
			logger.Warn("Failed to connect to database",
				zap.Int("attempt", attempt),
				zap.Uint64("max_retries", cfg.ConnectRetries),
				zap.Error(err))
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	if err := backoff.Retry(connect, backoff.WithMaxRetries(policy, cfg.ConnectRetries)); err != nil {
		return nil, fmt.Errorf("could not connect to database after %d attempts: %w", attempt, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("could not ping database: %w", err)
	}

	return New(db, cfg, logger), nil
}

// New wraps an open connection pool.
func New(db *sqlx.DB, cfg config.Database, logger *zap.Logger) *Postgres {
	return &Postgres{
		DB:        db,
		logger:    logger,
		txTimeout: cfg.TxTimeout,
		txRetries: cfg.TxRetries,
	}
}

// Close closes the database connection
func (p *Postgres) Close() error {
	return p.DB.Close()
}

// Migrate runs database migrations
func (p *Postgres) Migrate(cfg config.Database) error {
	return Migrate(cfg, p.logger)
}

// Migrate applies every pending migration from cfg.MigrationsPath.
func Migrate(cfg config.Database, logger *zap.Logger) error {
	m, err := migrate.New(cfg.MigrationsPath, MigrateURL(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize migrate: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// HealthCheck performs a database health check
func (p *Postgres) HealthCheck(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}

// WithTx runs fn inside one transaction bounded by the configured timeout.
// The transaction is committed when fn returns nil and rolled back on any
// error or panic. Serialization failures and deadlocks are retried with
// exponential backoff; fn must therefore only touch the database through tx.
func (p *Postgres) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if p.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.txTimeout)
		defer cancel()
	}

	attempt := 0
	op := func() error {
		attempt++
		err := p.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if IsRetryable(err) {
			p.logger.Warn("Retrying transaction", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, p.txRetries), ctx))
}

func (p *Postgres) runTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := p.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsRetryable reports whether err is a transient concurrency failure that
// a fresh transaction may not hit again.
func IsRetryable(err error) bool {
	switch pqCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// IsTimeout reports whether err was caused by a transaction deadline, a
// statement timeout or a lock timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch pqCode(err) {
	case codeQueryCanceled, codeLockNotAvailable:
		return true
	}
	return IsRetryable(err)
}

func IsUniqueViolation(err error) bool {
	return pqCode(err) == codeUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	return pqCode(err) == codeForeignKeyViolation
}

func IsCheckViolation(err error) bool {
	return pqCode(err) == codeCheckViolation
}
