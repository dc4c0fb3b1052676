package api

import (
	"context"
	"errors"
	"net/http"

	"designer/internal/access"
	"designer/internal/blob"
	"designer/internal/datadef"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// classify: ошибка -> HTTP-статус и короткая категория для поля "error".
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, datadef.ErrInvalid):
		return http.StatusBadRequest, "Validation failed"
	case errors.Is(err, access.ErrWrongSourceType), errors.Is(err, access.ErrUnsupportedFormat):
		return http.StatusBadRequest, "Unsupported data source"
	case errors.Is(err, blob.ErrInvalidKey):
		return http.StatusBadRequest, "Invalid path"
	case errors.Is(err, access.ErrBadValue):
		return http.StatusBadRequest, "Invalid value"
	case errors.Is(err, datadef.ErrNotFound), errors.Is(err, blob.ErrNotExist):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, datadef.ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, access.ErrMissingRequired):
		return http.StatusUnprocessableEntity, "Source data does not match definition"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Timeout"
	case errors.Is(err, access.ErrBackend):
		return http.StatusBadGateway, "Backend error"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// writeError — единственное место, где ошибка превращается в ответ {error, message[, details]}.
func writeError(c *gin.Context, err error) {
	status, category := classify(err)
	body := gin.H{"error": category, "message": err.Error()}

	var verr *datadef.ValidationError
	if errors.As(err, &verr) {
		body["details"] = verr.Problems
	}

	ev := log.Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", status).
		Str("request_id", requestID(c)).
		Msg("request failed")

	c.AbortWithStatusJSON(status, body)
}

// bindJSON: false — ответ 400 уже отправлен.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON", "message": err.Error()})
		return false
	}
	return true
}
