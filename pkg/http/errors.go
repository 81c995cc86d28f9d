package http

import (
	"fmt"
	"net/http"
	"strings"
)

// AppError is an error that knows its HTTP status and client-facing code.
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

// StatusError builds an AppError whose code derives from the status,
// e.g. 404 gives ERR_NOT_FOUND and 409 gives ERR_CONFLICT.
func StatusError(status int, message string) *AppError {
	return &AppError{Code: statusCode(status), Message: message, Status: status}
}

func statusCode(status int) string {
	if status == http.StatusInternalServerError {
		return "ERR_INTERNAL"
	}
	text := http.StatusText(status)
	if text == "" {
		return "ERR_UNKNOWN"
	}
	return "ERR_" + strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}

// OnField names the request field the error is about.
func (e *AppError) OnField(field string) *AppError {
	e.Field = field
	return e
}

// WithParam attaches one detail value to the client payload.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError keeps the cause for logs; it is not serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}
