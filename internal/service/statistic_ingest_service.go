package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/team-registry-api/internal/models"
	"github.com/noah-isme/team-registry-api/pkg/database"
	appErrors "github.com/noah-isme/team-registry-api/pkg/errors"
	"github.com/noah-isme/team-registry-api/pkg/jobs"
)

const statisticsQueue = "statistics"

type statisticWriter interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, stats []models.Statistic) error
}

// StatisticIngestConfig sizes the ingestion worker pool.
type StatisticIngestConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// StatisticIngestService accepts request counters and writes them in the background.
// Each write gets a single transactional attempt; serialization conflicts go back on the queue.
type StatisticIngestService struct {
	stats     statisticWriter
	runner    *database.TxRunner
	cache     *PageCache
	validator *validator.Validate
	logger    *zap.Logger
	queue     *jobs.Queue[[]models.Statistic]
}

// NewStatisticIngestService wires the ingest queue. Call Start before Submit.
func NewStatisticIngestService(stats statisticWriter, runner *database.TxRunner, cache *PageCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg StatisticIngestConfig) *StatisticIngestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StatisticIngestService{stats: stats, runner: runner, cache: cache, validator: validate, logger: logger}
	qcfg := jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Retryable: func(err error) bool {
			return errors.Is(err, database.ErrTransientConflict)
		},
		Logger: logger,
	}
	if metrics != nil {
		qcfg.Observer = metrics
	}
	s.queue = jobs.NewQueue[[]models.Statistic](statisticsQueue, s.handle, qcfg)
	return s
}

// Start launches the workers.
func (s *StatisticIngestService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop halts the workers, discarding batches not yet written.
func (s *StatisticIngestService) Stop() {
	s.queue.Stop()
}

// Drain refuses new batches and writes the accepted ones before stopping, bounded by ctx.
func (s *StatisticIngestService) Drain(ctx context.Context) error {
	return s.queue.Drain(ctx)
}

// Submit validates a batch and queues it for writing.
func (s *StatisticIngestService) Submit(ctx context.Context, stats []models.Statistic) error {
	if len(stats) == 0 {
		return nil
	}
	for _, st := range stats {
		if err := s.validator.Struct(st); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid statistic payload")
		}
		if st.TeamID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "statistic requires a team id")
		}
	}
	// One statement cannot update the same (team, bank) row twice.
	keys := lo.Map(stats, func(st models.Statistic, _ int) string { return st.TeamID + "\x00" + st.BankName })
	if dupes := lo.FindDuplicates(keys); len(dupes) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, "duplicate statistic for a team and bank in one batch")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	job := jobs.Job[[]models.Statistic]{Type: "upsert", Payload: append([]models.Statistic(nil), stats...)}
	if err := s.queue.Enqueue(job); err != nil {
		if errors.Is(err, jobs.ErrDraining) {
			return appErrors.Wrap(err, "UNAVAILABLE", http.StatusServiceUnavailable, "statistics intake is shutting down")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue statistics")
	}
	return nil
}

func (s *StatisticIngestService) handle(ctx context.Context, job jobs.Job[[]models.Statistic]) error {
	err := s.runner.Run(ctx, "ingest statistics", 1, func(ctx context.Context, tx *sqlx.Tx) error {
		return s.stats.Upsert(ctx, tx, job.Payload)
	})
	if err != nil {
		return err
	}
	s.cache.Purge(ctx)
	s.logger.Debug("statistics ingested", zap.String("job_id", job.ID), zap.Int("rows", len(job.Payload)))
	return nil
}
