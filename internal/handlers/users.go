package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"task-tracker/backend/internal/services"
)

type UserHandler struct {
	userService services.UserService
	logger      *slog.Logger
}

func NewUserHandler(userService services.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{userService: userService, logger: logger}
}

func (h *UserHandler) GetUsers(c *gin.Context) {
	result, err := h.userService.ListUsers(c.Request.Context(), listParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, msgOK, result)
}

func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("id"), queryValue(c, "select"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, msgOK, user)
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	cmd, ok := h.bindUser(c)
	if !ok {
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), cmd)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, msgCreated, user)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	cmd, ok := h.bindUser(c)
	if !ok {
		return
	}

	user, err := h.userService.ReplaceUser(c.Request.Context(), c.Param("id"), cmd)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, msgOK, user)
}

func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.userService.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, msgDeleted, nil)
}

func (h *UserHandler) bindUser(c *gin.Context) (services.UserCommand, bool) {
	body, err := decodeBody(c)
	if err != nil {
		respond(c, http.StatusBadRequest, msgInvalidBody, nil)
		return services.UserCommand{}, false
	}
	cmd, err := services.ParseUserCommand(body)
	if err != nil {
		respondError(c, h.logger, err)
		return services.UserCommand{}, false
	}
	return cmd, true
}
