package services

import (
	"context"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/query"
)

// Store is the document-style persistence contract the services rely on. Each
// method reads or writes a single entity type; nothing spans a task and a user
// atomically.
type Store interface {
	FindTask(ctx context.Context, id string) (*models.Task, error)
	FindTasks(ctx context.Context, d query.Descriptor) ([]models.Task, error)
	CountTasks(ctx context.Context, f query.Filter) (int64, error)
	FindTasksByIDs(ctx context.Context, ids []string) ([]models.Task, error)
	CreateTask(ctx context.Context, task *models.Task) error
	ReplaceTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error
	UnassignTasks(ctx context.Context, userID string, ids []string) (int64, error)
	ClaimTasks(ctx context.Context, ids []string, userID, userName string) (int64, error)
	ListPendingTasks(ctx context.Context) ([]models.Task, error)

	FindUser(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUsers(ctx context.Context, d query.Descriptor) ([]models.User, error)
	CountUsers(ctx context.Context, f query.Filter) (int64, error)
	CreateUser(ctx context.Context, user *models.User) error
	ReplaceUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
	AddPendingTask(ctx context.Context, userID, taskID string) error
	RemovePendingTask(ctx context.Context, userID, taskID string) error
	SetPendingTasks(ctx context.Context, userID string, taskIDs []string) error
	ListUserIDs(ctx context.Context) ([]string, error)
	ListPendingSets(ctx context.Context) (map[string][]string, error)
}

// recordReader is implemented by stores that can serve single-record reads
// from a cache. Consistency logic never reads through it.
type recordReader interface {
	GetTask(ctx context.Context, id string) (*models.Task, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
}
