package httpapi

const (
	ErrInvalidJSON = "invalid json"
	ErrMissingID   = "missing id"
	ErrDependency  = "dependency error"
	ErrNotFound    = "not found"
	ErrNotRetry    = "message is not in ERROR state"
)
