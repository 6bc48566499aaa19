// Package apierror defines the error envelopes returned to API clients.
// Handlers never write raw error values to the response body: everything
// goes through these types so internal details (SQL errors, stack traces)
// stay out of the wire format.
package apierror

import "fmt"

// APIError is the envelope for every 4xx/5xx response body.
type APIError struct {
	Detail string `json:"detail"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Newf builds an APIError with a formatted detail message.
func Newf(format string, args ...any) *APIError {
	return &APIError{Detail: fmt.Sprintf(format, args...)}
}

// ValidationError carries per-field messages for 422 responses.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}
