package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/team-registry-api/internal/models"
	"github.com/noah-isme/team-registry-api/pkg/database"
)

var statisticUpsert = database.UpsertSpec{
	Table:              "statistics",
	ConflictColumns:    []string{"team_id", "bank_name"},
	ExcludedFromUpdate: []string{"created_at"},
}

// StatisticRepository stores per-bank request counters.
type StatisticRepository struct {
	db *sqlx.DB
}

// NewStatisticRepository constructs the repository.
func NewStatisticRepository(db *sqlx.DB) *StatisticRepository {
	return &StatisticRepository{db: db}
}

func (r *StatisticRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert sets the request count of every (team, bank) pair in stats.
func (r *StatisticRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, stats []models.Statistic) error {
	return upsertStatistics(ctx, r.exec(exec), stats, time.Now().UTC())
}

// ListByTeams returns the statistics of the given teams ordered by bank.
func (r *StatisticRepository) ListByTeams(ctx context.Context, exec sqlx.ExtContext, teamIDs []string) ([]models.Statistic, error) {
	return listStatisticsByTeams(ctx, r.exec(exec), teamIDs)
}

func upsertStatistics(ctx context.Context, exec sqlx.ExtContext, stats []models.Statistic, now time.Time) error {
	records := make([]*database.Record, 0, len(stats))
	for i := range stats {
		stat := &stats[i]
		if stat.CreatedAt.IsZero() {
			stat.CreatedAt = now
		}
		stat.UpdatedAt = now
		records = append(records, database.NewRecord().
			Set("team_id", stat.TeamID).
			Set("bank_name", stat.BankName).
			Set("request_count", stat.RequestCount).
			Set("created_at", stat.CreatedAt).
			Set("updated_at", stat.UpdatedAt))
	}
	_, err := database.Upsert(ctx, exec, statisticUpsert, records)
	return err
}

func listStatisticsByTeams(ctx context.Context, exec sqlx.ExtContext, teamIDs []string) ([]models.Statistic, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT team_id, bank_name, request_count, created_at, updated_at FROM statistics WHERE team_id = ANY($1) ORDER BY team_id ASC, bank_name ASC`
	var stats []models.Statistic
	if err := sqlx.SelectContext(ctx, exec, &stats, query, pq.Array(teamIDs)); err != nil {
		return nil, fmt.Errorf("list statistics: %w", err)
	}
	return stats, nil
}
