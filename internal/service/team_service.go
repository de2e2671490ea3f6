package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/team-registry-api/internal/dto"
	"github.com/noah-isme/team-registry-api/internal/models"
	"github.com/noah-isme/team-registry-api/pkg/database"
	appErrors "github.com/noah-isme/team-registry-api/pkg/errors"
	"github.com/noah-isme/team-registry-api/pkg/logger"
	"github.com/noah-isme/team-registry-api/pkg/pagination"
)

type teamRepository interface {
	FetchPage(ctx context.Context, exec sqlx.ExtContext, q models.TeamQuery, b pagination.Boundary, limit int) ([]models.Team, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Team, error)
	Hydrate(ctx context.Context, exec sqlx.ExtContext, teams []models.Team, activeBanks []models.Bank) error
	Upsert(ctx context.Context, exec sqlx.ExtContext, teams []models.Team) error
}

type activeBankLister interface {
	ListActive(ctx context.Context, exec sqlx.ExtContext) ([]models.Bank, error)
}

// TeamServiceConfig carries paging and retry limits.
type TeamServiceConfig struct {
	DefaultLimit int
	MaxLimit     int
	MaxAttempts  int
}

// TeamService lists and registers teams.
type TeamService struct {
	teams     teamRepository
	banks     activeBankLister
	runner    *database.TxRunner
	codec     *pagination.Codec[models.TeamQuery]
	cache     *PageCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TeamServiceConfig
}

// NewTeamService constructs the team service.
func NewTeamService(
	teams teamRepository,
	banks activeBankLister,
	runner *database.TxRunner,
	codec *pagination.Codec[models.TeamQuery],
	cache *PageCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TeamServiceConfig,
) *TeamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &TeamService{
		teams:     teams,
		banks:     banks,
		runner:    runner,
		codec:     codec,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// List returns one page of teams. An empty token starts at the first page of query;
// a nil query then means no filters with the default page size.
func (s *TeamService) List(ctx context.Context, token string, query *models.TeamQuery) (*dto.TeamPageResponse, error) {
	cur, err := s.resolveCursor(token, query)
	if err != nil {
		return nil, err
	}
	canonical, err := s.codec.Encode(cur)
	if err != nil {
		return nil, mapStorageError(err, "failed to encode cursor")
	}

	var cached dto.TeamPageResponse
	if s.cache.Load(ctx, canonical, &cached) {
		return &cached, nil
	}

	start := time.Now()
	page, err := database.WithTransaction(ctx, s.runner.ReadOnly(), "list teams", s.cfg.MaxAttempts,
		func(ctx context.Context, tx *sqlx.Tx) (*pagination.Page[models.TeamQuery, models.Team], error) {
			fetch := func(ctx context.Context, q models.TeamQuery, b pagination.Boundary, limit int) ([]models.Team, error) {
				return s.teams.FetchPage(ctx, tx, q, b, limit)
			}
			page, err := pagination.Paginate(ctx, cur, fetch, models.Team.SortKey)
			if err != nil {
				return nil, err
			}
			banks, err := s.banks.ListActive(ctx, tx)
			if err != nil {
				return nil, err
			}
			if err := s.teams.Hydrate(ctx, tx, page.Items, banks); err != nil {
				return nil, err
			}
			return page, nil
		})
	s.metrics.ObserveDBQuery("list_teams", time.Since(start))
	if err != nil {
		logger.WithRequest(ctx, s.logger).Warn("list teams failed", zap.Error(err))
		return nil, mapStorageError(err, "failed to list teams")
	}

	resp, err := s.toPageResponse(page)
	if err != nil {
		return nil, mapStorageError(err, "failed to encode cursor")
	}
	s.cache.Store(ctx, canonical, resp)
	return resp, nil
}

// Get returns a single hydrated team.
func (s *TeamService) Get(ctx context.Context, id string) (*dto.TeamResponse, error) {
	team, err := database.WithTransaction(ctx, s.runner.ReadOnly(), "get team", s.cfg.MaxAttempts,
		func(ctx context.Context, tx *sqlx.Tx) (*models.Team, error) {
			team, err := s.teams.FindByID(ctx, tx, id)
			if err != nil {
				return nil, err
			}
			banks, err := s.banks.ListActive(ctx, tx)
			if err != nil {
				return nil, err
			}
			teams := []models.Team{*team}
			if err := s.teams.Hydrate(ctx, tx, teams, banks); err != nil {
				return nil, err
			}
			return &teams[0], nil
		})
	if err != nil {
		return nil, mapStorageError(err, "failed to load team")
	}
	resp := toTeamResponse(*team)
	return &resp, nil
}

// Upsert inserts or updates teams together with their students and statistics.
func (s *TeamService) Upsert(ctx context.Context, teams []models.Team) ([]dto.TeamResponse, error) {
	if len(teams) == 0 {
		return []dto.TeamResponse{}, nil
	}
	if err := s.validateTeams(teams); err != nil {
		return nil, err
	}

	stored, err := database.WithTransaction(ctx, s.runner, "upsert teams", s.cfg.MaxAttempts,
		func(ctx context.Context, tx *sqlx.Tx) ([]models.Team, error) {
			// each attempt starts from the caller's records
			batch := cloneTeams(teams)
			if err := s.teams.Upsert(ctx, tx, batch); err != nil {
				return nil, err
			}
			return batch, nil
		})
	if err != nil {
		logger.WithRequest(ctx, s.logger).Warn("upsert teams failed", zap.Int("teams", len(teams)), zap.Error(err))
		return nil, mapStorageError(err, "failed to upsert teams")
	}

	s.cache.Purge(ctx)
	logger.WithRequest(ctx, s.logger).Info("teams upserted", zap.Int("teams", len(stored)))
	return lo.Map(stored, func(t models.Team, _ int) dto.TeamResponse { return toTeamResponse(t) }), nil
}

func (s *TeamService) resolveCursor(token string, query *models.TeamQuery) (pagination.Cursor[models.TeamQuery], error) {
	if token != "" {
		cur, err := s.codec.Decode(token)
		if err != nil {
			return cur, mapStorageError(err, "failed to decode cursor")
		}
		if cur.Query.Limit > s.cfg.MaxLimit {
			return cur, appErrors.Clone(appErrors.ErrInvalidCursor, "cursor page size exceeds the maximum")
		}
		return cur, nil
	}

	q := models.TeamQuery{Limit: s.cfg.DefaultLimit}
	if query != nil {
		q = query.Normalized()
	}
	if err := s.validateQuery(q); err != nil {
		return pagination.Cursor[models.TeamQuery]{}, err
	}
	return pagination.First(q), nil
}

func (s *TeamService) validateQuery(q models.TeamQuery) error {
	if err := s.validator.Struct(q); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid team query")
	}
	if q.Limit > s.cfg.MaxLimit {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("limit must not exceed %d", s.cfg.MaxLimit))
	}
	if q.MinRequests != nil && q.MaxRequests != nil && *q.MinRequests > *q.MaxRequests {
		return appErrors.Clone(appErrors.ErrValidation, "min_requests must not exceed max_requests")
	}
	return nil
}

func (s *TeamService) validateTeams(teams []models.Team) error {
	for i := range teams {
		if err := s.validator.Struct(teams[i]); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid team payload")
		}
		names := lo.Map(teams[i].Students, func(st models.Student, _ int) string { return st.FirstName + "\x00" + st.LastName })
		if len(lo.Uniq(names)) != len(names) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate student in team %s", teams[i].Username))
		}
		banks := lo.Map(teams[i].Statistics, func(st models.Statistic, _ int) string { return st.BankName })
		if len(lo.Uniq(banks)) != len(banks) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate bank statistic in team %s", teams[i].Username))
		}
	}
	usernames := lo.Map(teams, func(t models.Team, _ int) string { return t.Username })
	if dup := lo.FindDuplicates(usernames); len(dup) > 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate username %s", dup[0]))
	}
	return nil
}

func (s *TeamService) toPageResponse(page *pagination.Page[models.TeamQuery, models.Team]) (*dto.TeamPageResponse, error) {
	encode := func(cur *pagination.Cursor[models.TeamQuery]) (string, error) {
		if cur == nil {
			return "", nil
		}
		return s.codec.Encode(*cur)
	}
	resp := &dto.TeamPageResponse{
		Query: toQueryEcho(page.Query),
		Items: lo.Map(page.Items, func(t models.Team, _ int) dto.TeamResponse { return toTeamResponse(t) }),
	}
	var err error
	if resp.First, err = encode(&page.First); err != nil {
		return nil, err
	}
	if resp.Prev, err = encode(page.Prev); err != nil {
		return nil, err
	}
	if resp.Next, err = encode(page.Next); err != nil {
		return nil, err
	}
	if resp.Last, err = encode(&page.Last); err != nil {
		return nil, err
	}
	return resp, nil
}

func toQueryEcho(q models.TeamQuery) dto.TeamQueryEcho {
	return dto.TeamQueryEcho{
		Type:             q.Type,
		Username:         q.Username,
		QueueName:        q.QueueName,
		Passed:           q.Passed,
		MinRequests:      q.MinRequests,
		MaxRequests:      q.MaxRequests,
		StudentFirstName: q.StudentFirstName,
		StudentLastName:  q.StudentLastName,
		Banks:            q.Banks,
		Limit:            q.Limit,
	}
}

func toTeamResponse(t models.Team) dto.TeamResponse {
	return dto.TeamResponse{
		ID:        t.ID,
		Type:      t.Type,
		Username:  t.Username,
		QueueName: t.QueueName,
		HasPassed: t.HasPassed,
		Students: lo.Map(t.Students, func(st models.Student, _ int) dto.StudentResponse {
			return dto.StudentResponse{ID: st.ID, FirstName: st.FirstName, LastName: st.LastName}
		}),
		Statistics: lo.Map(t.Statistics, func(st models.Statistic, _ int) dto.StatisticResponse {
			return dto.StatisticResponse{BankName: st.BankName, RequestCount: st.RequestCount}
		}),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func cloneTeams(teams []models.Team) []models.Team {
	out := make([]models.Team, len(teams))
	for i, t := range teams {
		t.Students = append([]models.Student(nil), t.Students...)
		t.Statistics = append([]models.Statistic(nil), t.Statistics...)
		out[i] = t
	}
	return out
}
