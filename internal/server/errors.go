package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	fallbackdomain "github.com/rcarraroia/comademig/internal/fallback/domain"
	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
	"github.com/rcarraroia/comademig/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not_found")
	ErrMethodNotAllowed = errors.New("method_not_allowed")
	ErrPayloadTooLarge  = errors.New("payload_too_large")
	ErrRateLimited      = errors.New("rate_limited")
)

type errorClass struct {
	status  int
	kind    string
	message string
	match   []error
}

// errorClasses is checked in order; the first match wins.
var errorClasses = []errorClass{
	{http.StatusUnauthorized, "unauthorized", "unauthorized", []error{ErrUnauthorized, gatewaydomain.ErrInvalidSignature}},
	{http.StatusNotFound, "not_found", "not found", []error{ErrNotFound, gatewaydomain.ErrProviderNotFound, gorm.ErrRecordNotFound}},
	{http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", []error{ErrMethodNotAllowed}},
	{http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", []error{ErrPayloadTooLarge}},
	{http.StatusTooManyRequests, "rate_limited", "too many requests", []error{ErrRateLimited}},
}

// fieldErrors turn a domain sentinel into a single field level validation error.
var fieldErrors = []struct {
	err   error
	field string
	code  string
}{
	{gatewaydomain.ErrInvalidPayload, "request", "invalid_payload"},
	{fallbackdomain.ErrInvalidStatus, "status", "invalid_status"},
	{pagination.ErrInvalidPageToken, "page_token", "invalid_page_token"},
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		lastErr := c.Errors.Last()
		if lastErr == nil || c.Writer.Written() {
			return
		}
		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{Errors: []ValidationError{{Field: field, Code: code, Message: message}}}
}

func mapError(err error) (int, errorPayload) {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, validationPayload(vErr.Errors)
	}
	for _, fe := range fieldErrors {
		if errors.Is(err, fe.err) {
			return http.StatusBadRequest, validationPayload([]ValidationError{{Field: fe.field, Code: fe.code, Message: "invalid value"}})
		}
	}
	for _, class := range errorClasses {
		for _, target := range class.match {
			if errors.Is(err, target) {
				return class.status, errorPayload{Type: class.kind, Message: class.message}
			}
		}
	}
	return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
}

func validationPayload(errs []ValidationError) errorPayload {
	return errorPayload{Type: "validation_error", Message: "validation error", Errors: errs}
}

// classifyErrorForLog feeds the request logger with the error type and
// whether the failure is ours or the caller's.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return payload.Type, "server"
	}
	return payload.Type, "client"
}
