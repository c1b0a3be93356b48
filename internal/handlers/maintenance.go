package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"task-tracker/backend/internal/services"
)

type Reconciler interface {
	Reconcile(ctx context.Context) (services.ReconcileReport, error)
}

type MaintenanceHandler struct {
	reconciler Reconciler
	logger     *slog.Logger
}

func NewMaintenanceHandler(reconciler Reconciler, logger *slog.Logger) *MaintenanceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceHandler{reconciler: reconciler, logger: logger}
}

// Reconcile rebuilds every pending set and reports what it changed.
func (h *MaintenanceHandler) Reconcile(c *gin.Context) {
	report, err := h.reconciler.Reconcile(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, msgOK, report)
}
