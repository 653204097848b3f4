package logger

// Shared log field names, kept consistent across the project so log
// queries can rely on them.
const (
	// FieldTraceID request trace ID
	FieldTraceID = "traceId"

	// FieldProjectID project identifier
	FieldProjectID = "projectId"

	// FieldBackupID backup job identifier
	FieldBackupID = "backupId"

	// FieldSchedule schedule kind (daily/weekly/monthly/manual)
	FieldSchedule = "schedule"

	// FieldStatus backup job status
	FieldStatus = "status"

	// FieldDuration elapsed time
	FieldDuration = "duration"

	// FieldSize artifact size in bytes
	FieldSize = "sizeBytes"

	// FieldRecords exported record count
	FieldRecords = "recordCount"

	// FieldPath artifact storage path
	FieldPath = "path"

	// FieldError error message
	FieldError = "error"
)
