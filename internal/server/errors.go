package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/quote-compare/internal/common"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
	Notices []common.Notice `json:"notices,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	var appErr *common.AppError
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, common.ErrSchemaSource):
		return http.StatusUnprocessableEntity, "SCHEMA_SOURCE"
	case errors.As(err, &appErr):
		return http.StatusInternalServerError, appErr.Code
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func respondError(c *gin.Context, err error, message string) {
	code, name := statusFor(err)
	if message == "" {
		message = err.Error()
	}
	abortWithError(c, code, name, message, err)
}

func abortWithError(c *gin.Context, code int, name, message string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   name,
		Message: message,
		Code:    code,
		Notices: []common.Notice{common.Failure(message)},
	})
}
