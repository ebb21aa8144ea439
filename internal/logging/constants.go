package logging

// Standardized field names for structured logging. Keeping these in one
// place keeps log output consistent and filterable.
const (
	FieldBackend   = "backend"
	FieldPath      = "path"
	FieldDate      = "date"
	FieldFilename  = "filename"
	FieldReceiptID = "receipt_id"
	FieldQueueID   = "queue_id"
	FieldAction    = "action"
	FieldStatus    = "status"
	FieldOperation = "operation"
	FieldAttempt   = "attempt"
	FieldSuffix    = "suffix"
	FieldSource    = "source"
	FieldCount     = "count"
	FieldDuration  = "duration_ms"
)
