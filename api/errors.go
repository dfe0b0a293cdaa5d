package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/lorekeep"
	"github.com/poiesic/lorekeep/core"
	"github.com/poiesic/lorekeep/storage"
)

// ErrServiceRequired is returned by New when svc is nil.
var ErrServiceRequired = errors.New("service is required")

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTenantRequired),
		errors.Is(err, core.ErrInvalidTenantID),
		errors.Is(err, core.ErrInvalidURI),
		errors.Is(err, core.ErrEmptyLabel),
		errors.Is(err, core.ErrEmptyInput),
		errors.Is(err, core.ErrInvalidSourceKind):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInsufficientContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, lorekeep.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abort writes err as JSON. extra fields are merged into the body.
func (s *Server) abort(c *gin.Context, err error, extra gin.H) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "tenant", c.Param("tenant"), "err", err)
		msg = "internal error"
	}
	body := gin.H{"error": msg}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}
