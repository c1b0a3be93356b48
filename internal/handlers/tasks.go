package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"task-tracker/backend/internal/services"
)

type TaskHandler struct {
	taskService services.TaskService
	logger      *slog.Logger
}

func NewTaskHandler(taskService services.TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{taskService: taskService, logger: logger}
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	result, err := h.taskService.ListTasks(c.Request.Context(), listParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, msgOK, result)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	task, err := h.taskService.GetTask(c.Request.Context(), c.Param("id"), queryValue(c, "select"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, msgOK, task)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	cmd, ok := h.bindTask(c)
	if !ok {
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, msgCreated, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	cmd, ok := h.bindTask(c)
	if !ok {
		return
	}

	task, err := h.taskService.ReplaceTask(c.Request.Context(), c.Param("id"), cmd)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, msgOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.taskService.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, msgDeleted, nil)
}

func (h *TaskHandler) bindTask(c *gin.Context) (services.TaskCommand, bool) {
	body, err := decodeBody(c)
	if err != nil {
		respond(c, http.StatusBadRequest, msgInvalidBody, nil)
		return services.TaskCommand{}, false
	}
	cmd, err := services.ParseTaskCommand(body)
	if err != nil {
		respondError(c, h.logger, err)
		return services.TaskCommand{}, false
	}
	return cmd, true
}
