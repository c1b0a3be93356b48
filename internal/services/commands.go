package services

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"

	"task-tracker/backend/internal/models"
)

// TaskCommand is the validated body of a task create or replace request.
type TaskCommand struct {
	Name             string    `binding:"required"`
	Description      string
	Deadline         time.Time `binding:"required"`
	Completed        bool
	AssignedUser     string
	AssignedUserName string
}

// UserCommand is the validated body of a user create or replace request.
// HasPendingTasks reports whether the client sent pendingTasks at all.
type UserCommand struct {
	Name            string `binding:"required"`
	Email           string `binding:"required"`
	PendingTasks    []string
	HasPendingTasks bool
}

// ParseTaskCommand converts an untyped request body into a TaskCommand.
func ParseTaskCommand(body map[string]any) (TaskCommand, error) {
	cmd := TaskCommand{
		Name:             strings.TrimSpace(text(body["name"])),
		Description:      text(body["description"]),
		Completed:        truthy(body["completed"]),
		AssignedUser:     strings.TrimSpace(text(body["assignedUser"])),
		AssignedUserName: strings.TrimSpace(text(body["assignedUserName"])),
	}

	if raw, ok := body["deadline"]; ok && raw != nil && text(raw) != "" {
		if list, ok := raw.([]any); ok {
			raw = list[0]
		}
		deadline, err := models.ParseTimestamp(raw)
		if err != nil {
			return TaskCommand{}, validationError("deadline must be a date or epoch milliseconds")
		}
		cmd.Deadline = deadline
	}

	if err := binding.Validator.ValidateStruct(&cmd); err != nil {
		return TaskCommand{}, validationError(msgTaskRequired)
	}
	return cmd, nil
}

// ParseUserCommand converts an untyped request body into a UserCommand.
func ParseUserCommand(body map[string]any) (UserCommand, error) {
	cmd := UserCommand{
		Name:  strings.TrimSpace(text(body["name"])),
		Email: models.NormalizeEmail(text(body["email"])),
	}

	if raw, ok := body["pendingTasks"]; ok && raw != nil {
		ids, err := idList(raw)
		if err != nil {
			return UserCommand{}, err
		}
		cmd.PendingTasks = ids
		cmd.HasPendingTasks = true
	}

	if err := binding.Validator.ValidateStruct(&cmd); err != nil {
		return UserCommand{}, validationError(msgUserRequired)
	}
	return cmd, nil
}

func idList(raw any) ([]string, error) {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case string:
		if strings.TrimSpace(v) != "" {
			items = []any{v}
		}
	default:
		return nil, validationError("pendingTasks must be a list of task ids")
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		id, ok := item.(string)
		if !ok || !models.IsValidID(id) {
			return nil, validationError("pendingTasks must be a list of task ids")
		}
		ids = append(ids, id)
	}
	return models.UniqueIDs(ids), nil
}

// text renders scalar body values as strings. Anything else is treated as
// absent.
func text(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		if len(v) == 1 {
			return text(v[0])
		}
	}
	return ""
}

func truthy(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	case []any:
		return len(v) == 1 && truthy(v[0])
	}
	return false
}
