package handler

import (
	"net/http"

	"github.com/alure/alure-api/internal/domain/module"
	"github.com/alure/alure-api/internal/domain/project"
	"github.com/alure/alure-api/internal/handler/dto"
	"github.com/alure/alure-api/internal/ierr"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ProjectHandler struct {
	projects project.Repository
	modules  module.Repository
	logger   *zap.Logger
}

func NewProjectHandler(projects project.Repository, modules module.Repository, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		modules:  modules,
		logger:   logger.Named("ProjectHandler"),
	}
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	proj := &project.Project{Name: req.Name}
	id, err := h.projects.Create(c.Request.Context(), proj)
	if err != nil {
		c.Error(err)
		return
	}

	created, err := h.projects.FindByID(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.ProjectResponse{
		ID:        created.ID,
		Name:      created.Name,
		CreatedAt: created.CreatedAt,
	})
}

func (h *ProjectHandler) CreateModule(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.Error(ierr.ErrValidation)
		return
	}

	var req dto.CreateModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	if _, err := h.projects.FindByID(c.Request.Context(), projectID); err != nil {
		c.Error(err)
		return
	}

	mod := &module.Module{
		ProjectID:     projectID,
		Key:           req.Key,
		Name:          req.Name,
		DefaultParams: req.DefaultParams,
	}
	id, err := h.modules.Create(c.Request.Context(), mod)
	if err != nil {
		c.Error(err)
		return
	}
	mod.ID = id

	c.JSON(http.StatusCreated, dto.NewModuleResponse(mod))
}

func (h *ProjectHandler) ListModules(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.Error(ierr.ErrValidation)
		return
	}

	mods, err := h.modules.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		c.Error(err)
		return
	}

	responses := make([]*dto.ModuleResponse, len(mods))
	for i, mod := range mods {
		responses[i] = dto.NewModuleResponse(mod)
	}
	c.JSON(http.StatusOK, responses)
}

// UpsertPlan registers or updates the grace period of one plan name.
func (h *ProjectHandler) UpsertPlan(c *gin.Context) {
	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.Error(ierr.ErrValidation)
		return
	}

	var req dto.UpsertPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err)
		return
	}

	if _, err := h.projects.FindByID(c.Request.Context(), projectID); err != nil {
		c.Error(err)
		return
	}

	plan := &project.Plan{
		ProjectID:       projectID,
		Name:            req.Name,
		GracePeriodDays: req.GracePeriodDays,
	}
	if err := h.projects.UpsertPlan(c.Request.Context(), plan); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
