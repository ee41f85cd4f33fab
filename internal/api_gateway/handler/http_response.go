package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledger-core/internal/api_gateway/middleware"
	"github.com/ledger-core/internal/api_gateway/service"
	"github.com/ledger-core/internal/domain/operation"
	"github.com/ledger-core/internal/domain/shared"
	"github.com/ledger-core/internal/ledger"
	"github.com/ledger-core/internal/statement"
)

// Response represents a standard API response
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Meta          *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo represents error information in a response
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MetaInfo represents metadata in a response
type MetaInfo struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
	TotalItems int `json:"total_items,omitempty"`
}

// NewResponse creates a new response with data
func NewResponse(data interface{}) *Response {
	return &Response{
		Data: data,
	}
}

// NewErrorResponse creates a new error response
func NewErrorResponse(code, message string) *Response {
	return &Response{
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// NewPaginatedResponse creates a new paginated response
func NewPaginatedResponse(data interface{}, page, perPage, totalItems int) *Response {
	totalPages := totalItems / perPage
	if totalItems%perPage > 0 {
		totalPages++
	}

	return &Response{
		Data: data,
		Meta: &MetaInfo{
			Page:       page,
			PerPage:    perPage,
			TotalPages: totalPages,
			TotalItems: totalItems,
		},
	}
}

// RespondWithData sends a JSON response with data
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	response := NewResponse(data)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondWithError sends a JSON response with an error
func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	response := NewErrorResponse(code, message)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondWithPaginatedData sends a JSON response with paginated data
func RespondWithPaginatedData(c *gin.Context, statusCode int, data interface{}, page, perPage, totalItems int) {
	response := NewPaginatedResponse(data, page, perPage, totalItems)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondOK sends a 200 OK response with data
func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondCreated sends a 201 Created response with data
func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

// RespondAccepted sends a 202 Accepted response with data.
func RespondAccepted(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusAccepted, data)
}

// RespondBadRequest sends a 400 Bad Request response with an error
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

// RespondNotFound sends a 404 Not Found response with an error
func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RespondWithError(c, http.StatusNotFound, "NOT_FOUND", message)
}

// RespondInternalError sends a 500 Internal Server Error response with an error
func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
}

// RespondServiceUnavailable sends a 503 Service Unavailable response with an error
func RespondServiceUnavailable(c *gin.Context, code, message string) {
	RespondWithError(c, http.StatusServiceUnavailable, code, message)
}

// RespondError maps a service error to a status code and a stable error code.
// Only internal errors are logged here; the rest are expected outcomes.
func RespondError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, statement.ErrSummaryUnavailable):
		RespondServiceUnavailable(c, "SUMMARY_UNAVAILABLE", err.Error())
		return
	case errors.Is(err, service.ErrIntakeUnavailable):
		RespondServiceUnavailable(c, "INTAKE_UNAVAILABLE", "Operation could not be queued, retry with the same idempotency key")
		return
	case errors.Is(err, operation.ErrResultNotFound{}):
		RespondWithError(c, http.StatusNotFound, "OPERATION_NOT_FOUND", "Operation not found")
		return
	case errors.Is(err, operation.ErrMissingIdempotencyKey),
		errors.Is(err, operation.ErrInvalidType),
		errors.Is(err, operation.ErrMissingAccount),
		errors.Is(err, operation.ErrMissingDestination):
		RespondWithError(c, http.StatusBadRequest, string(shared.FailureReasonInvalidRequest), err.Error())
		return
	}

	code := string(ledger.Code(err))
	switch ledger.KindOf(err) {
	case ledger.KindValidation:
		RespondWithError(c, http.StatusBadRequest, code, err.Error())
	case ledger.KindNotFound:
		RespondWithError(c, http.StatusNotFound, code, err.Error())
	case ledger.KindConflict:
		RespondWithError(c, http.StatusConflict, code, err.Error())
	case ledger.KindTransient:
		RespondServiceUnavailable(c, code, "The operation conflicted with concurrent updates, retry with the same idempotency key")
	default:
		middleware.RequestLogger(c, logger).Error("Request failed", "path", c.FullPath(), "error", err)
		RespondInternalError(c)
	}
}
