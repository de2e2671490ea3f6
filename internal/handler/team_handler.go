package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/team-registry-api/internal/dto"
	"github.com/noah-isme/team-registry-api/internal/models"
	appErrors "github.com/noah-isme/team-registry-api/pkg/errors"
	"github.com/noah-isme/team-registry-api/pkg/response"
)

type teamService interface {
	List(ctx context.Context, token string, query *models.TeamQuery) (*dto.TeamPageResponse, error)
	Get(ctx context.Context, id string) (*dto.TeamResponse, error)
}

type statisticSubmitter interface {
	Submit(ctx context.Context, stats []models.Statistic) error
}

type bankCatalog interface {
	ListActiveBanks(ctx context.Context) ([]models.Bank, error)
	SetBankActive(ctx context.Context, name string, active bool) error
}

// TeamHandler exposes cursor navigation over teams plus statistic ingestion.
type TeamHandler struct {
	teams   teamService
	stats   statisticSubmitter
	catalog bankCatalog
}

// NewTeamHandler builds a new handler.
func NewTeamHandler(teams teamService, stats statisticSubmitter, catalog bankCatalog) *TeamHandler {
	return &TeamHandler{teams: teams, stats: stats, catalog: catalog}
}

// List follows a cursor token, or starts at the first unfiltered page when none is given.
func (h *TeamHandler) List(c *gin.Context) {
	var query *models.TeamQuery
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid limit"))
			return
		}
		query = &models.TeamQuery{Limit: limit}
	}
	page, err := h.teams.List(c.Request.Context(), c.Query("cursor"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page)
}

// Get returns one team.
func (h *TeamHandler) Get(c *gin.Context) {
	team, err := h.teams.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, team)
}

// SubmitStatistics queues request counters for background writing.
func (h *TeamHandler) SubmitStatistics(c *gin.Context) {
	var stats []models.Statistic
	if err := c.ShouldBindJSON(&stats); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid statistics payload"))
		return
	}
	if err := h.stats.Submit(c.Request.Context(), stats); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"queued": len(stats)})
}

// ActiveBanks lists the banks that count toward passing.
func (h *TeamHandler) ActiveBanks(c *gin.Context) {
	banks, err := h.catalog.ListActiveBanks(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, banks)
}

// SetBankActive toggles a bank on or off.
func (h *TeamHandler) SetBankActive(c *gin.Context) {
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bank payload"))
		return
	}
	if err := h.catalog.SetBankActive(c.Request.Context(), c.Param("name"), *req.Active); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Register mounts the team routes on r.
func (h *TeamHandler) Register(r gin.IRouter) {
	r.GET("/teams", h.List)
	r.GET("/teams/:id", h.Get)
	r.POST("/statistics", h.SubmitStatistics)
	r.GET("/banks/active", h.ActiveBanks)
	r.PUT("/banks/:name/active", h.SetBankActive)
}
