package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/noah-isme/team-registry-api/internal/models"
	"github.com/noah-isme/team-registry-api/pkg/database"
	"github.com/noah-isme/team-registry-api/pkg/pagination"
)

var (
	teamUpsert = database.UpsertSpec{
		Table:              "teams",
		ConflictColumns:    []string{"username"},
		ExcludedFromUpdate: []string{"id", "created_at"},
	}
	studentUpsert = database.UpsertSpec{
		Table:              "students",
		ConflictColumns:    []string{"team_id", "first_name", "last_name"},
		ExcludedFromUpdate: []string{"id", "created_at"},
	}
)

// teamRow carries the aggregate columns the page query may add.
type teamRow struct {
	models.Team
	TotalRequests sql.NullInt64 `db:"total_requests"`
	Passed        sql.NullInt64 `db:"passed"`
}

type teamKey struct {
	ID       string `db:"id"`
	Username string `db:"username"`
}

// TeamRepository persists teams together with their students.
type TeamRepository struct {
	db *sqlx.DB
}

// NewTeamRepository constructs the repository.
func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FetchPage loads up to limit teams matching q past the boundary, ordered by username.
func (r *TeamRepository) FetchPage(ctx context.Context, exec sqlx.ExtContext, q models.TeamQuery, b pagination.Boundary, limit int) ([]models.Team, error) {
	query, args := composeTeamQuery(q, b, limit)
	var rows []teamRow
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return lo.Map(rows, func(row teamRow, _ int) models.Team { return row.Team }), nil
}

// FindByID returns a single team without relations.
func (r *TeamRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Team, error) {
	const query = `SELECT id, type, username, password, queue_name, created_at, updated_at FROM teams WHERE id = $1`
	var team models.Team
	if err := sqlx.GetContext(ctx, r.exec(exec), &team, query, id); err != nil {
		return nil, err
	}
	return &team, nil
}

// Hydrate attaches students and statistics to teams and derives HasPassed against activeBanks.
func (r *TeamRepository) Hydrate(ctx context.Context, exec sqlx.ExtContext, teams []models.Team, activeBanks []models.Bank) error {
	if len(teams) == 0 {
		return nil
	}
	target := r.exec(exec)
	ids := lo.Map(teams, func(t models.Team, _ int) string { return t.ID })

	const studentsQuery = `SELECT id, team_id, first_name, last_name, created_at, updated_at FROM students WHERE team_id = ANY($1) ORDER BY last_name ASC, first_name ASC`
	var students []models.Student
	if err := sqlx.SelectContext(ctx, target, &students, studentsQuery, pq.Array(ids)); err != nil {
		return fmt.Errorf("list team students: %w", err)
	}

	stats, err := listStatisticsByTeams(ctx, target, ids)
	if err != nil {
		return err
	}

	studentsByTeam := lo.GroupBy(students, func(s models.Student) string { return s.TeamID })
	statsByTeam := lo.GroupBy(stats, func(s models.Statistic) string { return s.TeamID })
	for i := range teams {
		teams[i].Students = studentsByTeam[teams[i].ID]
		teams[i].Statistics = statsByTeam[teams[i].ID]
		teams[i].HasPassed = models.DeriveHasPassed(teams[i].Statistics, activeBanks)
	}
	return nil
}

// Upsert writes teams keyed by username, then their students and statistics.
// Team IDs are replaced with the stored ones so existing rows keep their identity.
func (r *TeamRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, teams []models.Team) error {
	if len(teams) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	records := make([]*database.Record, 0, len(teams))
	for i := range teams {
		team := &teams[i]
		if team.ID == "" {
			team.ID = uuid.NewString()
		}
		if team.CreatedAt.IsZero() {
			team.CreatedAt = now
		}
		team.UpdatedAt = now
		records = append(records, database.NewRecord().
			Set("id", team.ID).
			Set("type", team.Type).
			Set("username", team.Username).
			Set("password", team.Password).
			Set("queue_name", team.QueueName).
			Set("created_at", team.CreatedAt).
			Set("updated_at", team.UpdatedAt))
	}

	keys, err := database.UpsertReturning[teamKey](ctx, target, teamUpsert, records, "id", "username")
	if err != nil {
		return err
	}
	idByUsername := lo.SliceToMap(keys, func(k teamKey) (string, string) { return k.Username, k.ID })

	var students []*database.Record
	var stats []models.Statistic
	for i := range teams {
		team := &teams[i]
		if id, ok := idByUsername[team.Username]; ok {
			team.ID = id
		}
		for j := range team.Students {
			student := &team.Students[j]
			if student.ID == "" {
				student.ID = uuid.NewString()
			}
			if student.CreatedAt.IsZero() {
				student.CreatedAt = now
			}
			student.TeamID = team.ID
			student.UpdatedAt = now
			students = append(students, database.NewRecord().
				Set("id", student.ID).
				Set("team_id", student.TeamID).
				Set("first_name", student.FirstName).
				Set("last_name", student.LastName).
				Set("created_at", student.CreatedAt).
				Set("updated_at", student.UpdatedAt))
		}
		for j := range team.Statistics {
			team.Statistics[j].TeamID = team.ID
		}
		stats = append(stats, team.Statistics...)
	}

	if _, err := database.Upsert(ctx, target, studentUpsert, students); err != nil {
		return err
	}
	if err := upsertStatistics(ctx, target, stats, now); err != nil {
		return err
	}
	return nil
}
