package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/team-registry-api/pkg/logger"
)

// SerializationFailure is the SQLSTATE postgres reports when a transaction cannot be serialized.
const SerializationFailure = "40001"

var (
	// ErrTransientConflict marks a serialization failure in a run allowed a single attempt.
	ErrTransientConflict = errors.New("transient serialization conflict")
	// ErrRetriesExhausted marks a run whose every attempt hit a serialization failure.
	ErrRetriesExhausted = errors.New("transaction retries exhausted")
)

// TxError describes a failed transactional run.
type TxError struct {
	Op       string
	Attempts int
	Err      error

	kind error
}

func (e *TxError) Error() string {
	if e.kind != nil {
		return fmt.Sprintf("%s: %v after %d attempt(s): %v", e.Op, e.kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s (attempt %d): %v", e.Op, e.Attempts, e.Err)
}

// Unwrap exposes both the classification sentinel and the underlying driver error.
func (e *TxError) Unwrap() []error {
	if e.kind == nil {
		return []error{e.Err}
	}
	return []error{e.kind, e.Err}
}

// IsSerializationFailure reports whether err carries postgres SQLSTATE 40001.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == SerializationFailure
	}
	return false
}

// TxObserver receives transaction outcomes, typically for metrics.
type TxObserver interface {
	ObserveTxRetry(op string)
	ObserveTransaction(op, outcome string, duration time.Duration)
}

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TxConfig configures a TxRunner.
type TxConfig struct {
	Isolation  sql.IsolationLevel
	RetryDelay time.Duration
	Logger     *zap.Logger
	Observer   TxObserver
}

// TxRunner owns transaction boundaries: it begins, commits and rolls back, and hands the
// transaction to the work function explicitly.
type TxRunner struct {
	db         txBeginner
	isolation  sql.IsolationLevel
	readOnly   bool
	retryDelay time.Duration
	logger     *zap.Logger
	observer   TxObserver
}

// NewTxRunner builds a runner over db.
func NewTxRunner(db txBeginner, cfg TxConfig) *TxRunner {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	return &TxRunner{
		db:         db,
		isolation:  cfg.Isolation,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		observer:   cfg.Observer,
	}
}

// ReadOnly returns a copy of the runner opening read-only transactions.
func (r *TxRunner) ReadOnly() *TxRunner {
	clone := *r
	clone.readOnly = true
	return &clone
}

// Run is WithTransaction for work without a result.
func (r *TxRunner) Run(ctx context.Context, op string, maxAttempts int, work func(ctx context.Context, tx *sqlx.Tx) error) error {
	_, err := WithTransaction(ctx, r, op, maxAttempts, func(ctx context.Context, tx *sqlx.Tx) (struct{}, error) {
		return struct{}{}, work(ctx, tx)
	})
	return err
}

// WithTransaction runs work in a transaction and retries it on serialization failures.
//
// Attempts are counted from 1. With maxAttempts == 1 a serialization failure is reported as
// ErrTransientConflict; with more attempts the last failure is reported as ErrRetriesExhausted.
// Any other failure is returned at once. The transaction is rolled back whenever work fails or
// ctx is done before commit.
func WithTransaction[T any](ctx context.Context, r *TxRunner, op string, maxAttempts int, work func(ctx context.Context, tx *sqlx.Tx) (T, error)) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			r.observe(op, "cancelled", start)
			return zero, &TxError{Op: op, Attempts: attempt - 1, Err: err}
		}

		result, err := runAttempt(ctx, r, work)
		if err == nil {
			r.observe(op, "committed", start)
			return result, nil
		}
		if !IsSerializationFailure(err) {
			r.observe(op, "failed", start)
			return zero, &TxError{Op: op, Attempts: attempt, Err: err}
		}
		lastErr = err

		if maxAttempts == 1 {
			r.observe(op, "conflict", start)
			return zero, &TxError{Op: op, Attempts: attempt, Err: err, kind: ErrTransientConflict}
		}
		if attempt == maxAttempts {
			break
		}

		logger.WithRequest(ctx, r.logger).Warn("transaction serialization conflict, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err),
		)
		if r.observer != nil {
			r.observer.ObserveTxRetry(op)
		}
		if err := r.backoff(ctx, attempt); err != nil {
			r.observe(op, "cancelled", start)
			return zero, &TxError{Op: op, Attempts: attempt, Err: err}
		}
	}

	logger.WithRequest(ctx, r.logger).Error("transaction retries exhausted",
		zap.String("op", op),
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
	)
	r.observe(op, "exhausted", start)
	return zero, &TxError{Op: op, Attempts: maxAttempts, Err: lastErr, kind: ErrRetriesExhausted}
}

func runAttempt[T any](ctx context.Context, r *TxRunner, work func(ctx context.Context, tx *sqlx.Tx) (T, error)) (result T, err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: r.isolation, ReadOnly: r.readOnly})
	if err != nil {
		return result, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.Warn("transaction rollback failed", zap.Error(rbErr))
		}
	}()

	result, err = work(ctx, tx)
	if err != nil {
		return result, err
	}
	if err = ctx.Err(); err != nil {
		return result, err
	}
	if err = tx.Commit(); err != nil {
		return result, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return result, nil
}

func (r *TxRunner) backoff(ctx context.Context, attempt int) error {
	if r.retryDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(r.retryDelay * time.Duration(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *TxRunner) observe(op, outcome string, start time.Time) {
	if r.observer == nil {
		return
	}
	r.observer.ObserveTransaction(op, outcome, time.Since(start))
}

// ParseIsolation maps a configuration value to an isolation level.
func ParseIsolation(raw string) (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "serializable":
		return sql.LevelSerializable, nil
	case "repeatable_read":
		return sql.LevelRepeatableRead, nil
	case "read_committed":
		return sql.LevelReadCommitted, nil
	default:
		return sql.LevelDefault, fmt.Errorf("unknown isolation level %q", raw)
	}
}
