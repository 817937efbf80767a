package http

import (
	"fmt"
	"net/http"
)

// AppError is an error with the HTTP status and the machine-readable code
// returned to the client. Err stays server side.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

var statusCodes = map[int]string{
	http.StatusBadRequest:          "ERR_BAD_REQUEST",
	http.StatusNotFound:            "ERR_NOT_FOUND",
	http.StatusConflict:            "ERR_CONFLICT",
	http.StatusUnprocessableEntity: "ERR_UNPROCESSABLE",
	http.StatusInternalServerError: "ERR_INTERNAL",
}

// NewAppError creates an error for status with the default code for it.
func NewAppError(status int, message string) *AppError {
	code, ok := statusCodes[status]
	if !ok {
		code = "ERR_UNKNOWN"
	}
	return &AppError{Code: code, Message: message, Status: status}
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(message string) *AppError {
	return NewAppError(http.StatusNotFound, message)
}

func BadRequestError(message string) *AppError {
	return NewAppError(http.StatusBadRequest, message)
}

// ConflictError is returned when the same build is already running.
func ConflictError(message string) *AppError {
	return NewAppError(http.StatusConflict, message)
}

// UnprocessableError is for well-formed requests the data cannot satisfy.
func UnprocessableError(message string) *AppError {
	return NewAppError(http.StatusUnprocessableEntity, message)
}

func InternalError(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, message)
}
