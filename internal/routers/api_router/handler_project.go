package api_router

import (
	"github.com/bubblevault/bubble-backup-service/internal/app"
	"github.com/bubblevault/bubble-backup-service/internal/dto"
	pkgapp "github.com/bubblevault/bubble-backup-service/pkg/app"
	"github.com/bubblevault/bubble-backup-service/pkg/code"
	apperrors "github.com/bubblevault/bubble-backup-service/pkg/errors"

	"github.com/gin-gonic/gin"
)

// ProjectHandler project API router handler
type ProjectHandler struct {
	*Handler
}

// NewProjectHandler creates ProjectHandler instance
func NewProjectHandler(a *app.App) *ProjectHandler {
	return &ProjectHandler{Handler: NewHandler(a)}
}

// Register registers a Bubble.io project for backup
// @Summary Register a project
// @Description 注册 Bubble.io 项目，校验凭证并发现数据类型
// @Tags Project
// @Accept json
// @Produce json
// @Param params body dto.ProjectCreateRequest true "Project Parameters"
// @Success 200 {object} pkgapp.Res{data=dto.ProjectDTO} "Success"
// @Failure 400 {object} pkgapp.Res "Invalid Params"
// @Failure 401 {object} pkgapp.Res "Invalid Credentials"
// @Router /api/projects [post]
func (h *ProjectHandler) Register(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.ProjectCreateRequest{}

	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()))
		return
	}

	project, err := h.App.ProjectService.Register(c.Request.Context(), params)
	if err != nil {
		h.logError(c.Request.Context(), "ProjectHandler.Register", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessCreate.WithData(project))
}

// List lists registered projects
// @Summary List projects
// @Tags Project
// @Produce json
// @Success 200 {object} pkgapp.Res{data=[]dto.ProjectDTO} "Success"
// @Router /api/projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	projects, err := h.App.ProjectService.List(c.Request.Context())
	if err != nil {
		h.logError(c.Request.Context(), "ProjectHandler.List", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(projects))
}

// Get returns one project
// @Summary Get a project
// @Tags Project
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} pkgapp.Res{data=dto.ProjectDTO} "Success"
// @Failure 404 {object} pkgapp.Res "Not Found"
// @Router /api/projects/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	project, err := h.App.ProjectService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logError(c.Request.Context(), "ProjectHandler.Get", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(project))
}

// Update updates project connection settings
// @Summary Update a project
// @Tags Project
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param params body dto.ProjectUpdateRequest true "Update Parameters"
// @Success 200 {object} pkgapp.Res{data=dto.ProjectDTO} "Success"
// @Failure 404 {object} pkgapp.Res "Not Found"
// @Router /api/projects/{id} [put]
func (h *ProjectHandler) Update(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.ProjectUpdateRequest{}

	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()))
		return
	}

	project, err := h.App.ProjectService.Update(c.Request.Context(), c.Param("id"), params)
	if err != nil {
		h.logError(c.Request.Context(), "ProjectHandler.Update", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessUpdate.WithData(project))
}

// Delete removes a project
// @Summary Delete a project
// @Tags Project
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} pkgapp.Res "Success"
// @Failure 404 {object} pkgapp.Res "Not Found"
// @Router /api/projects/{id} [delete]
func (h *ProjectHandler) Delete(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	if err := h.App.ProjectService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.logError(c.Request.Context(), "ProjectHandler.Delete", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessDelete)
}

// Pause suspends scheduled backups for a project
// @Summary Pause a project
// @Tags Project
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} pkgapp.Res "Success"
// @Router /api/projects/{id}/pause [post]
func (h *ProjectHandler) Pause(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	if err := h.App.ProjectService.Pause(c.Request.Context(), c.Param("id")); err != nil {
		h.logError(c.Request.Context(), "ProjectHandler.Pause", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessUpdate)
}

// Resume reactivates scheduled backups for a project
// @Summary Resume a project
// @Tags Project
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} pkgapp.Res "Success"
// @Router /api/projects/{id}/resume [post]
func (h *ProjectHandler) Resume(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	if err := h.App.ProjectService.Resume(c.Request.Context(), c.Param("id")); err != nil {
		h.logError(c.Request.Context(), "ProjectHandler.Resume", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessUpdate)
}

// Rescan refreshes the project's discovered data types
// @Summary Rescan data types
// @Tags Project
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} pkgapp.Res{data=dto.ProjectDTO} "Success"
// @Router /api/projects/{id}/rescan [post]
func (h *ProjectHandler) Rescan(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	project, err := h.App.ProjectService.RescanDataTypes(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logError(c.Request.Context(), "ProjectHandler.Rescan", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessUpdate.WithData(project))
}

// GetSchedule returns the project's backup schedule
// @Summary Get the backup schedule
// @Tags Project
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} pkgapp.Res{data=dto.ScheduleDTO} "Success"
// @Router /api/projects/{id}/schedule [get]
func (h *ProjectHandler) GetSchedule(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	sched, err := h.App.ProjectService.GetSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logError(c.Request.Context(), "ProjectHandler.GetSchedule", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(sched))
}

// UpdateSchedule switches the project's backup cadence
// @Summary Update the backup schedule
// @Tags Project
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param params body dto.ScheduleUpdateRequest true "Schedule Parameters"
// @Success 200 {object} pkgapp.Res{data=dto.ScheduleDTO} "Success"
// @Router /api/projects/{id}/schedule [put]
func (h *ProjectHandler) UpdateSchedule(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.ScheduleUpdateRequest{}

	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()))
		return
	}

	sched, err := h.App.ProjectService.UpdateSchedule(c.Request.Context(), c.Param("id"), params)
	if err != nil {
		h.logError(c.Request.Context(), "ProjectHandler.UpdateSchedule", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessUpdate.WithData(sched))
}
