package api_router

import (
	"github.com/bubblevault/bubble-backup-service/internal/app"
	"github.com/bubblevault/bubble-backup-service/internal/dto"
	pkgapp "github.com/bubblevault/bubble-backup-service/pkg/app"
	"github.com/bubblevault/bubble-backup-service/pkg/code"
	apperrors "github.com/bubblevault/bubble-backup-service/pkg/errors"

	"github.com/gin-gonic/gin"
)

// BackupHandler backup API router handler
type BackupHandler struct {
	*Handler
}

// NewBackupHandler creates BackupHandler instance
func NewBackupHandler(a *app.App) *BackupHandler {
	return &BackupHandler{Handler: NewHandler(a)}
}

// Trigger starts an on-demand backup
// @Summary Trigger a manual backup
// @Description 触发即时备份。项目已有进行中的备份时返回 409。
// @Tags Backup
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} pkgapp.Res{data=dto.BackupDTO} "Success"
// @Failure 409 {object} pkgapp.Res "Backup Already In Flight"
// @Router /api/projects/{id}/backups [post]
func (h *BackupHandler) Trigger(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	backup, err := h.App.BackupService.TriggerManual(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logError(c.Request.Context(), "BackupHandler.Trigger", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.SuccessCreate.WithData(backup))
}

// List lists a project's backups
// @Summary List backups
// @Tags Backup
// @Produce json
// @Param id path string true "Project ID"
// @Param params query dto.BackupListRequest false "Filter Parameters"
// @Success 200 {object} pkgapp.Res{data=pkgapp.ListRes{list=[]dto.BackupDTO}} "Success"
// @Router /api/projects/{id}/backups [get]
func (h *BackupHandler) List(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.BackupListRequest{}

	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()))
		return
	}

	pager := pkgapp.NewPager(c)
	backups, count, err := h.App.BackupService.ListBackups(c.Request.Context(), c.Param("id"), params, pager)
	if err != nil {
		h.logError(c.Request.Context(), "BackupHandler.List", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponseList(code.Success, backups, int(count))
}

// Get returns one backup
// @Summary Get a backup
// @Tags Backup
// @Produce json
// @Param id path string true "Project ID"
// @Param backupId path string true "Backup ID"
// @Success 200 {object} pkgapp.Res{data=dto.BackupDTO} "Success"
// @Failure 404 {object} pkgapp.Res "Not Found"
// @Router /api/projects/{id}/backups/{backupId} [get]
func (h *BackupHandler) Get(c *gin.Context) {
	response := pkgapp.NewResponse(c)

	backup, err := h.App.BackupService.GetBackup(c.Request.Context(), c.Param("id"), c.Param("backupId"))
	if err != nil {
		h.logError(c.Request.Context(), "BackupHandler.Get", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(backup))
}

// Stats returns aggregated backup statistics
// @Summary Backup statistics
// @Description 按需汇总项目的备份历史，支持与列表相同的过滤条件
// @Tags Backup
// @Produce json
// @Param id path string true "Project ID"
// @Param params query dto.BackupListRequest false "Filter Parameters"
// @Success 200 {object} pkgapp.Res{data=dto.BackupStatsDTO} "Success"
// @Router /api/projects/{id}/backups/stats [get]
func (h *BackupHandler) Stats(c *gin.Context) {
	response := pkgapp.NewResponse(c)
	params := &dto.BackupListRequest{}

	if valid, errs := pkgapp.BindAndValid(c, params); !valid {
		response.ToResponse(code.ErrorInvalidParams.WithDetails(errs.ErrorsToString()))
		return
	}

	stats, err := h.App.BackupService.Stats(c.Request.Context(), c.Param("id"), params)
	if err != nil {
		h.logError(c.Request.Context(), "BackupHandler.Stats", err)
		apperrors.ErrorResponse(c, err)
		return
	}

	response.ToResponse(code.Success.WithData(stats))
}
