package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/team-registry-api/internal/dto"
	"github.com/noah-isme/team-registry-api/internal/models"
	appErrors "github.com/noah-isme/team-registry-api/pkg/errors"
)

type teamServiceMock struct {
	lastToken string
	lastQuery *models.TeamQuery
	listErr   error
}

func (m *teamServiceMock) List(_ context.Context, token string, query *models.TeamQuery) (*dto.TeamPageResponse, error) {
	m.lastToken, m.lastQuery = token, query
	if m.listErr != nil {
		return nil, m.listErr
	}
	return &dto.TeamPageResponse{First: "first", Next: "next", Last: "last", Items: []dto.TeamResponse{{Username: "alpha"}}}, nil
}

func (m *teamServiceMock) Get(_ context.Context, id string) (*dto.TeamResponse, error) {
	if id != "t1" {
		return nil, appErrors.ErrNotFound
	}
	return &dto.TeamResponse{ID: id, Username: "alpha"}, nil
}

type statsSubmitterMock struct{ got []models.Statistic }

func (m *statsSubmitterMock) Submit(_ context.Context, stats []models.Statistic) error {
	m.got = stats
	return nil
}

type bankCatalogMock struct {
	name   string
	active bool
}

func (m *bankCatalogMock) ListActiveBanks(context.Context) ([]models.Bank, error) {
	return []models.Bank{{Name: "bank-a", Active: true}}, nil
}

func (m *bankCatalogMock) SetBankActive(_ context.Context, name string, active bool) error {
	m.name, m.active = name, active
	return nil
}

func newTeamRouter(teams *teamServiceMock, stats *statsSubmitterMock, banks *bankCatalogMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewTeamHandler(teams, stats, banks).Register(r)
	return r
}

func TestTeamHandlerList(t *testing.T) {
	teams := &teamServiceMock{}
	router := newTeamRouter(teams, &statsSubmitterMock{}, &bankCatalogMock{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teams?cursor=tok&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok", teams.lastToken)
	require.NotNil(t, teams.lastQuery)
	assert.Equal(t, 5, teams.lastQuery.Limit)

	var body struct {
		Data dto.TeamPageResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "next", body.Data.Next)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teams?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	teams.listErr = appErrors.ErrInvalidCursor
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teams?cursor=bad", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_CURSOR")
}

func TestTeamHandlerGet(t *testing.T) {
	router := newTeamRouter(&teamServiceMock{}, &statsSubmitterMock{}, &bankCatalogMock{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teams/t1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teams/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTeamHandlerStatisticsAndBanks(t *testing.T) {
	stats := &statsSubmitterMock{}
	banks := &bankCatalogMock{}
	router := newTeamRouter(&teamServiceMock{}, stats, banks)

	payload := []byte(`[{"team_id":"t1","bank_name":"bank-a","request_count":3}]`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/statistics", bytes.NewReader(payload)))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, stats.got, 1)
	assert.Equal(t, int64(3), stats.got[0].RequestCount)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/banks/bank-b/active", bytes.NewReader([]byte(`{"active":true}`))))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "bank-b", banks.name)
	assert.True(t, banks.active)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/banks/bank-b/active", bytes.NewReader([]byte(`{}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/banks/active", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bank-a")
}
