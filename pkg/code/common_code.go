package code

import "net/http"

// Success codes.
var (
	Success       = NewSuss(0, "success")
	SuccessCreate = NewSuss(1, "create success")
	SuccessUpdate = NewSuss(2, "update success")
	SuccessDelete = NewSuss(3, "delete success")
)

// Generic failure codes.
var (
	Failed               = NewError(10000, http.StatusInternalServerError, "internal server error")
	ErrorInvalidParams   = NewError(10001, http.StatusBadRequest, "invalid request parameters")
	ErrorNotFound        = NewError(10002, http.StatusNotFound, "resource not found")
	ErrorDBQuery         = NewError(10003, http.StatusInternalServerError, "database query error")
	ErrorInvalidStorage  = NewError(10004, http.StatusInternalServerError, "invalid storage type")
	ErrorTooManyRequests = NewError(10005, http.StatusTooManyRequests, "too many requests")
)

// Project codes.
var (
	ErrorProjectNotFound = NewError(20001, http.StatusNotFound, "project not found")
	ErrorProjectDeleted  = NewError(20002, http.StatusGone, "project has been deleted")
	ErrorProjectPaused   = NewError(20003, http.StatusConflict, "project is paused")
)

// Bubble collaborator codes (consumed contract taxonomy).
var (
	ErrorInvalidCredentials = NewError(20101, http.StatusUnauthorized, "invalid Bubble.io credentials")
	ErrorUnreachable        = NewError(20102, http.StatusBadGateway, "Bubble.io application unreachable")
	ErrorExportFailed       = NewError(20103, http.StatusBadGateway, "data export failed")
)

// Backup lifecycle codes.
var (
	ErrorDuplicateActiveJob  = NewError(20201, http.StatusConflict, "a backup is already in flight for this project")
	ErrorInvalidTransition   = NewError(20202, http.StatusConflict, "invalid backup state transition")
	ErrorScheduleComputation = NewError(20203, http.StatusInternalServerError, "schedule computation error")
	ErrorBackupNotFound      = NewError(20204, http.StatusNotFound, "backup not found")
	ErrorManualSchedule      = NewError(20205, http.StatusBadRequest, "manual schedules have no next run")
)
