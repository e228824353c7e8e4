package utils

import (
	"net/http"

	"github.com/abricot-app/abricot/internal/apperr"
	"github.com/abricot-app/abricot/internal/logger"
	"github.com/gin-gonic/gin"
)

// Response is the envelope returned by every endpoint.
type Response struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Data       any                `json:"data,omitempty"`
	Error      string             `json:"error,omitempty"`
	Code       string             `json:"code,omitempty"`
	StatusCode int                `json:"statusCode"`
	Errors     apperr.FieldErrors `json:"errors,omitempty"`
}

func OK(ctx *gin.Context, message string, data any) {
	respond(ctx, http.StatusOK, message, data)
}

func Created(ctx *gin.Context, message string, data any) {
	respond(ctx, http.StatusCreated, message, data)
}

func respond(ctx *gin.Context, status int, message string, data any) {
	ctx.JSON(status, Response{Success: true, Message: message, Data: data, StatusCode: status})
}

// ErrorResponse builds the failure envelope for err.
func ErrorResponse(err error) Response {
	e := apperr.From(err)
	status := e.Kind.HTTPStatus()
	return Response{
		Success:    false,
		Message:    e.Message,
		Error:      e.Message,
		Code:       e.Kind.String(),
		StatusCode: status,
		Errors:     e.Fields,
	}
}

// RespondError writes the failure envelope. Causes of internal and upstream
// failures are logged and never sent to the client.
func RespondError(ctx *gin.Context, err error) {
	resp := ErrorResponse(err)
	logFailure(ctx, err, resp.StatusCode)
	ctx.JSON(resp.StatusCode, resp)
}

// AbortWithError is RespondError for middleware.
func AbortWithError(ctx *gin.Context, err error) {
	resp := ErrorResponse(err)
	logFailure(ctx, err, resp.StatusCode)
	ctx.AbortWithStatusJSON(resp.StatusCode, resp)
}

func logFailure(ctx *gin.Context, err error, status int) {
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusBadGateway:
		logger.ErrorContext(ctx.Request.Context(), "Request failed", "path", ctx.FullPath(), "error", err)
	case status == http.StatusBadGateway:
		logger.WarnContext(ctx.Request.Context(), "Upstream failure", "path", ctx.FullPath(), "error", err)
	}
}
