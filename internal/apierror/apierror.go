// Package apierror provides the error envelopes written to API clients.
// All errors returned to clients go through this package so internal details
// (stack traces, SQL errors) never leak.
package apierror

// Machine-readable codes carried in APIError.Code.
const (
	CodeSessionAlreadyOpen = "session_already_open"
	CodeNoActiveSession    = "no_active_session"
	CodeAlreadyClosed      = "session_already_closed"
	CodeSessionStillOpen   = "session_still_open"
	CodeConcurrentUpdate   = "concurrent_update"
	CodeNotFound           = "not_found"
	CodeValidation         = "validation_failed"
	CodeBadRequest         = "bad_request"
	CodeUnauthorized       = "unauthorized"
	CodeForbidden          = "forbidden"
	CodeRateLimited        = "rate_limited"
	CodeUnavailable        = "dependency_unavailable"
	CodeInternal           = "internal"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
// SessionID is set on precondition failures so the client can reconcile its view.
type APIError struct {
	Code      string `json:"code"`
	Detail    string `json:"detail"`
	SessionID string `json:"session_id,omitempty"`
}

func New(code, msg string) *APIError {
	return &APIError{Code: code, Detail: msg}
}

// WithSession returns e with the conflicting session attached.
func (e *APIError) WithSession(id string) *APIError {
	e.SessionID = id
	return e
}

// FieldError is one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field.
type ValidationError struct {
	Code   string       `json:"code"`
	Detail string       `json:"detail"`
	Fields []FieldError `json:"fields"`
}

func NewValidation(fields []FieldError) *ValidationError {
	return &ValidationError{Code: CodeValidation, Detail: "validation failed", Fields: fields}
}
