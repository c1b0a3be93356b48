// Package repositories persists tasks and users through GORM. Every method
// touches a single entity; callers that need both sides of the assignment
// relationship updated issue separate calls.
package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/query"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &task, nil
}

func (s *GormStore) FindTasks(ctx context.Context, d query.Descriptor) ([]models.Task, error) {
	tasks := []models.Task{}
	if err := applyDescriptor(s.db.WithContext(ctx).Model(&models.Task{}), d).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *GormStore) CountTasks(ctx context.Context, f query.Filter) (int64, error) {
	var count int64
	if err := applyFilter(s.db.WithContext(ctx).Model(&models.Task{}), f).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// FindTasksByIDs returns the tasks that exist among ids, in no particular order.
func (s *GormStore) FindTasksByIDs(ctx context.Context, ids []string) ([]models.Task, error) {
	tasks := []models.Task{}
	if len(ids) == 0 {
		return tasks, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	return tasks, nil
}

func (s *GormStore) CreateTask(ctx context.Context, task *models.Task) error {
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// ReplaceTask overwrites every mutable field of the stored task. id and
// dateCreated are never changed.
func (s *GormStore) ReplaceTask(ctx context.Context, task *models.Task) error {
	result := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", task.ID).
		Select("name", "description", "deadline", "completed", "assigned_user", "assigned_user_name").
		Updates(task)
	if result.Error != nil {
		return fmt.Errorf("failed to replace task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteTask(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Task{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UnassignTasks clears the assignment of every incomplete task assigned to
// userID. A non-nil ids restricts the update to those tasks.
func (s *GormStore) UnassignTasks(ctx context.Context, userID string, ids []string) (int64, error) {
	if ids != nil && len(ids) == 0 {
		return 0, nil
	}

	tx := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("assigned_user = ? AND completed = ?", userID, false)
	if ids != nil {
		tx = tx.Where("id IN ?", ids)
	}

	result := tx.Updates(map[string]interface{}{
		"assigned_user":      "",
		"assigned_user_name": models.UnassignedName,
	})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to unassign tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ClaimTasks assigns ids to userID and reopens them. Ids that do not exist are
// ignored.
func (s *GormStore) ClaimTasks(ctx context.Context, ids []string, userID, userName string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"assigned_user":      userID,
			"assigned_user_name": userName,
			"completed":          false,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to claim tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ListPendingTasks returns every task that is assigned and not completed.
func (s *GormStore) ListPendingTasks(ctx context.Context) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.WithContext(ctx).
		Where("assigned_user <> ? AND completed = ?", "", false).
		Order("date_created").Order("id").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list pending tasks: %w", err)
	}
	return tasks, nil
}
