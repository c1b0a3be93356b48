package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/query"
)

func (s *GormStore) FindUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	users := []models.User{user}
	if err := s.loadPendingTasks(ctx, users); err != nil {
		return nil, err
	}
	return &users[0], nil
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return &user, nil
}

// FindUsers lists users matching d. Pending sets are only loaded when the
// projection keeps them.
func (s *GormStore) FindUsers(ctx context.Context, d query.Descriptor) ([]models.User, error) {
	users := []models.User{}
	if err := applyDescriptor(s.db.WithContext(ctx).Model(&models.User{}), d).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if d.Projection.Includes("pendingTasks") {
		if err := s.loadPendingTasks(ctx, users); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *GormStore) CountUsers(ctx context.Context, f query.Filter) (int64, error) {
	var count int64
	if err := applyFilter(s.db.WithContext(ctx).Model(&models.User{}), f).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// CreateUser stores the user together with its pending set.
func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return insertPendingRows(tx, user.ID, user.PendingTasks)
	})
	return userWriteError("create", err)
}

// ReplaceUser overwrites name, email and the whole pending set in one local
// transaction.
func (s *GormStore) ReplaceUser(ctx context.Context, user *models.User) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Select("name", "email").
			Updates(user)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return replacePendingRows(tx, user.ID, user.PendingTasks)
	})
	return userWriteError("replace", err)
}

func (s *GormStore) DeleteUser(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.PendingTask{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.User{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return userWriteError("delete", err)
}

// AddPendingTask adds taskID to the user's pending set. It is a no-op when the
// id is already present or the user does not exist.
func (s *GormStore) AddPendingTask(ctx context.Context, userID, taskID string) error {
	err := s.db.WithContext(ctx).Exec(`
		INSERT INTO user_pending_tasks (user_id, task_id, position)
		SELECT ?, ?, COALESCE((SELECT MAX(position) FROM user_pending_tasks WHERE user_id = ?), 0) + 1
		WHERE EXISTS (SELECT 1 FROM users WHERE id = ?)
		ON CONFLICT DO NOTHING`,
		userID, taskID, userID, userID).Error
	if err != nil {
		return fmt.Errorf("failed to add pending task: %w", err)
	}
	return nil
}

func (s *GormStore) RemovePendingTask(ctx context.Context, userID, taskID string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND task_id = ?", userID, taskID).
		Delete(&models.PendingTask{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove pending task: %w", err)
	}
	return nil
}

// SetPendingTasks replaces a user's pending set without touching the user row.
func (s *GormStore) SetPendingTasks(ctx context.Context, userID string, taskIDs []string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replacePendingRows(tx, userID, taskIDs)
	})
	if err != nil {
		return fmt.Errorf("failed to set pending tasks: %w", err)
	}
	return nil
}

func (s *GormStore) ListUserIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	return ids, nil
}

// ListPendingSets returns every stored pending set keyed by user id. Users
// with an empty set are absent.
func (s *GormStore) ListPendingSets(ctx context.Context) (map[string][]string, error) {
	var rows []models.PendingTask
	if err := s.db.WithContext(ctx).Order("user_id").Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending sets: %w", err)
	}
	sets := make(map[string][]string)
	for _, row := range rows {
		sets[row.UserID] = append(sets[row.UserID], row.TaskID)
	}
	return sets, nil
}

func (s *GormStore) loadPendingTasks(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}

	ids := make([]string, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}

	var rows []models.PendingTask
	err := s.db.WithContext(ctx).
		Where("user_id IN ?", ids).
		Order("user_id").Order("position").
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to load pending tasks: %w", err)
	}

	sets := make(map[string][]string, len(users))
	for _, row := range rows {
		sets[row.UserID] = append(sets[row.UserID], row.TaskID)
	}
	for i := range users {
		users[i].PendingTasks = sets[users[i].ID]
		if users[i].PendingTasks == nil {
			users[i].PendingTasks = []string{}
		}
	}
	return nil
}

func replacePendingRows(tx *gorm.DB, userID string, taskIDs []string) error {
	if err := tx.Where("user_id = ?", userID).Delete(&models.PendingTask{}).Error; err != nil {
		return err
	}
	return insertPendingRows(tx, userID, taskIDs)
}

func insertPendingRows(tx *gorm.DB, userID string, taskIDs []string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	rows := make([]models.PendingTask, len(taskIDs))
	for i, id := range taskIDs {
		rows[i] = models.PendingTask{UserID: userID, TaskID: id, Position: i + 1}
	}
	return tx.Create(&rows).Error
}

func userWriteError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateEmail
	default:
		return fmt.Errorf("failed to %s user: %w", op, err)
	}
}
