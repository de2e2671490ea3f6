package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/team-registry-api/internal/models"
	"github.com/noah-isme/team-registry-api/pkg/database"
	appErrors "github.com/noah-isme/team-registry-api/pkg/errors"
	"github.com/noah-isme/team-registry-api/pkg/logger"
)

type bankRepository interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, banks []models.Bank) error
	ListActive(ctx context.Context, exec sqlx.ExtContext) ([]models.Bank, error)
	SetActive(ctx context.Context, exec sqlx.ExtContext, name string, active bool) error
}

type taskRepository interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, tasks []models.Task) error
	ListByBank(ctx context.Context, exec sqlx.ExtContext, bankName string) ([]models.Task, error)
}

// CatalogService manages banks and their tasks. Bank activity changes which teams have passed,
// so every bank write drops cached team pages.
type CatalogService struct {
	banks       bankRepository
	tasks       taskRepository
	runner      *database.TxRunner
	cache       *PageCache
	validator   *validator.Validate
	logger      *zap.Logger
	maxAttempts int
}

// NewCatalogService constructs the catalog service.
func NewCatalogService(banks bankRepository, tasks taskRepository, runner *database.TxRunner, cache *PageCache, validate *validator.Validate, logger *zap.Logger, maxAttempts int) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &CatalogService{banks: banks, tasks: tasks, runner: runner, cache: cache, validator: validate, logger: logger, maxAttempts: maxAttempts}
}

// UpsertBanks inserts or updates banks by name.
func (s *CatalogService) UpsertBanks(ctx context.Context, banks []models.Bank) error {
	if len(banks) == 0 {
		return nil
	}
	for _, b := range banks {
		if err := s.validator.Struct(b); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bank payload")
		}
	}
	if dup := lo.FindDuplicates(lo.Map(banks, func(b models.Bank, _ int) string { return b.Name })); len(dup) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate bank %s", dup[0]))
	}
	err := s.runner.Run(ctx, "upsert banks", s.maxAttempts, func(ctx context.Context, tx *sqlx.Tx) error {
		return s.banks.Upsert(ctx, tx, append([]models.Bank(nil), banks...))
	})
	if err != nil {
		return mapStorageError(err, "failed to upsert banks")
	}
	s.cache.Purge(ctx)
	return nil
}

// SetBankActive toggles whether a bank counts toward passing.
func (s *CatalogService) SetBankActive(ctx context.Context, name string, active bool) error {
	err := s.runner.Run(ctx, "set bank active", s.maxAttempts, func(ctx context.Context, tx *sqlx.Tx) error {
		return s.banks.SetActive(ctx, tx, name, active)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "bank not found")
		}
		return mapStorageError(err, "failed to update bank")
	}
	logger.WithRequest(ctx, s.logger).Info("bank activity changed", zap.String("bank", name), zap.Bool("active", active))
	s.cache.Purge(ctx)
	return nil
}

// ListActiveBanks returns the banks that count toward passing.
func (s *CatalogService) ListActiveBanks(ctx context.Context) ([]models.Bank, error) {
	banks, err := database.WithTransaction(ctx, s.runner.ReadOnly(), "list active banks", s.maxAttempts,
		func(ctx context.Context, tx *sqlx.Tx) ([]models.Bank, error) {
			return s.banks.ListActive(ctx, tx)
		})
	if err != nil {
		return nil, mapStorageError(err, "failed to list banks")
	}
	return banks, nil
}

// UpsertTasks inserts or updates tasks by name.
func (s *CatalogService) UpsertTasks(ctx context.Context, tasks []models.Task) ([]models.Task, error) {
	if len(tasks) == 0 {
		return []models.Task{}, nil
	}
	for _, t := range tasks {
		if err := s.validator.Struct(t); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid task payload")
		}
	}
	if dup := lo.FindDuplicates(lo.Map(tasks, func(t models.Task, _ int) string { return t.Name })); len(dup) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate task %s", dup[0]))
	}
	stored, err := database.WithTransaction(ctx, s.runner, "upsert tasks", s.maxAttempts,
		func(ctx context.Context, tx *sqlx.Tx) ([]models.Task, error) {
			batch := append([]models.Task(nil), tasks...)
			if err := s.tasks.Upsert(ctx, tx, batch); err != nil {
				return nil, err
			}
			return batch, nil
		})
	if err != nil {
		return nil, mapStorageError(err, "failed to upsert tasks")
	}
	return stored, nil
}

// ListTasks returns the tasks of a bank.
func (s *CatalogService) ListTasks(ctx context.Context, bankName string) ([]models.Task, error) {
	tasks, err := database.WithTransaction(ctx, s.runner.ReadOnly(), "list tasks", s.maxAttempts,
		func(ctx context.Context, tx *sqlx.Tx) ([]models.Task, error) {
			return s.tasks.ListByBank(ctx, tx, bankName)
		})
	if err != nil {
		return nil, mapStorageError(err, "failed to list tasks")
	}
	return tasks, nil
}
