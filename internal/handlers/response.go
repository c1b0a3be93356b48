package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"task-tracker/backend/internal/services"
)

const (
	msgOK          = "OK"
	msgCreated     = "Created"
	msgDeleted     = "Deleted"
	msgServerError = "Server error"
	msgInvalidBody = "Invalid request body"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Message: message, Data: data})
}

// respondError maps service error kinds onto HTTP statuses. Anything that is
// not a service error is a 500.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status, message := http.StatusInternalServerError, msgServerError

	var svcErr *services.Error
	if errors.As(err, &svcErr) {
		message = svcErr.Message
		switch {
		case errors.Is(err, services.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, services.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, services.ErrConflict):
			status = http.StatusConflict
		default:
			message = msgServerError
		}
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		logger.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}
	respond(c, status, message, nil)
}
