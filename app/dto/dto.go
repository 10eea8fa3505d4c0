// Package dto defines the request and response shapes of the HTTP API.
package dto

// APIResponse is the envelope every endpoint returns. Data is set on
// success, Error on failure; the two are mutually exclusive.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty" validate:"omitempty"`
	Error   any    `json:"error,omitempty" validate:"omitempty"`
}

// ErrorDetail carries a machine-readable error code plus optional detail
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}
