package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	obsmetrics "github.com/smallbiznis/railzway-braintree/internal/observability/metrics"
	"github.com/smallbiznis/railzway-braintree/internal/payerr"
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
	Type       string            `json:"type"`
	Message    string            `json:"message"`
	FundsMoved bool              `json:"funds_moved,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Errors     []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

// ErrorHandlingMiddleware renders the last handler error. Store failures are
// counted so unrecorded gateway operations show up on /metrics.
func ErrorHandlingMiddleware(httpMetrics *obsmetrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		var pe *payerr.Error
		if errors.As(lastErr.Err, &pe) && pe.Kind == payerr.KindPersistence {
			httpMetrics.RecordStoreError(pe.Op, pe.Err, pe.FundsMoved)
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
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
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var pe *payerr.Error
	if errors.As(err, &pe) {
		payload := errorPayload{
			Type:       pe.Kind.String(),
			Message:    pe.Message,
			FundsMoved: pe.FundsMoved,
			Details:    pe.Fields,
		}
		return statusForKind(pe.Kind), payload
	}

	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
		}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func statusForKind(kind payerr.Kind) int {
	switch kind {
	case payerr.KindValidation:
		return http.StatusBadRequest
	case payerr.KindNotFound:
		return http.StatusNotFound
	case payerr.KindConflict:
		return http.StatusConflict
	case payerr.KindRateLimited:
		return http.StatusTooManyRequests
	case payerr.KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// classifyErrorForLog returns the error type and a short code for request logs.
func classifyErrorForLog(err error) (string, string) {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil && len(vErr.Errors) > 0 {
		return "validation_error", vErr.Errors[0].Code
	}
	var pe *payerr.Error
	if errors.As(err, &pe) {
		code := pe.Op
		if pe.FundsMoved {
			code += ":funds_moved"
		}
		return pe.Kind.String(), code
	}
	_, payload := mapError(err)
	return payload.Type, ""
}
