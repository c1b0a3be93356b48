package services

import (
	"context"
	"errors"
	"log/slog"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"
)

// RepairScheduler queues an out-of-band reconciliation after a compensating
// write failed.
type RepairScheduler interface {
	ScheduleRepair(ctx context.Context, reason string) error
}

// Engine keeps task assignments and user pending sets in agreement. Every
// mutation writes the primary entity first and then applies compensating
// writes to the other side, computed from a snapshot read before the primary
// write. A failed compensation is logged, reported and left for the
// reconciler; it never fails the request.
type Engine struct {
	store     Store
	logger    *slog.Logger
	repairs   RepairScheduler
	onFailure func(step string)
}

type EngineOption func(*Engine)

func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithRepairScheduler(repairs RepairScheduler) EngineOption {
	return func(e *Engine) {
		e.repairs = repairs
	}
}

// WithCompensationHook registers fn to be called once per failed
// compensating write.
func WithCompensationHook(fn func(step string)) EngineOption {
	return func(e *Engine) {
		e.onFailure = fn
	}
}

func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) CreateTask(ctx context.Context, cmd TaskCommand) (*models.Task, error) {
	task := models.NewTask(cmd.Name, cmd.Description, cmd.Deadline, cmd.Completed)
	if err := e.applyAssignment(ctx, &task, cmd); err != nil {
		return nil, err
	}

	if err := e.store.CreateTask(ctx, &task); err != nil {
		return nil, dependencyError(err)
	}

	if task.IsPending() {
		e.compensate(ctx, "add pending task", func(ctx context.Context) error {
			return e.store.AddPendingTask(ctx, task.AssignedUser, task.ID)
		}, "task_id", task.ID, "user_id", task.AssignedUser)
	}
	return &task, nil
}

func (e *Engine) ReplaceTask(ctx context.Context, id string, cmd TaskCommand) (*models.Task, error) {
	prev, err := e.findTask(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *prev
	next.Name = cmd.Name
	next.Description = cmd.Description
	next.Deadline = cmd.Deadline.UTC()
	next.Completed = cmd.Completed
	if err := e.applyAssignment(ctx, &next, cmd); err != nil {
		return nil, err
	}

	if err := e.store.ReplaceTask(ctx, &next); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError(msgTaskNotFound)
		}
		return nil, dependencyError(err)
	}

	if prev.IsPending() && (!next.IsPending() || prev.AssignedUser != next.AssignedUser) {
		e.compensate(ctx, "remove pending task", func(ctx context.Context) error {
			return e.store.RemovePendingTask(ctx, prev.AssignedUser, prev.ID)
		}, "task_id", prev.ID, "user_id", prev.AssignedUser)
	}
	if next.IsPending() {
		e.compensate(ctx, "add pending task", func(ctx context.Context) error {
			return e.store.AddPendingTask(ctx, next.AssignedUser, next.ID)
		}, "task_id", next.ID, "user_id", next.AssignedUser)
	}
	return &next, nil
}

func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	prev, err := e.findTask(ctx, id)
	if err != nil {
		return err
	}

	if err := e.store.DeleteTask(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return notFoundError(msgTaskNotFound)
		}
		return dependencyError(err)
	}

	if prev.IsPending() {
		e.compensate(ctx, "remove pending task", func(ctx context.Context) error {
			return e.store.RemovePendingTask(ctx, prev.AssignedUser, prev.ID)
		}, "task_id", prev.ID, "user_id", prev.AssignedUser)
	}
	return nil
}

// CreateUser stores a new user. A supplied pending set is treated as an
// explicit claim on each listed task.
func (e *Engine) CreateUser(ctx context.Context, cmd UserCommand) (*models.User, error) {
	user := models.NewUser(cmd.Name, cmd.Email, cmd.PendingTasks)
	if err := e.checkEmailFree(ctx, user.Email, ""); err != nil {
		return nil, err
	}

	claimed, err := e.snapshotTasks(ctx, user.PendingTasks)
	if err != nil {
		return nil, err
	}

	if err := e.store.CreateUser(ctx, &user); err != nil {
		return nil, userWriteError(err)
	}

	e.claimTasks(ctx, &user, user.PendingTasks, claimed)
	return &user, nil
}

// ReplaceUser overwrites name and email. When the command carries a pending
// set it becomes authoritative: dropped ids are released and added ids are
// claimed for this user.
func (e *Engine) ReplaceUser(ctx context.Context, id string, cmd UserCommand) (*models.User, error) {
	prev, err := e.findUser(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *prev
	next.Name = cmd.Name
	next.Email = models.NormalizeEmail(cmd.Email)
	next.PendingTasks = prev.PendingTasks
	if cmd.HasPendingTasks {
		next.PendingTasks = models.UniqueIDs(cmd.PendingTasks)
	}

	if next.Email != prev.Email {
		if err := e.checkEmailFree(ctx, next.Email, id); err != nil {
			return nil, err
		}
	}

	removed, added := models.DiffIDs(prev.PendingTasks, next.PendingTasks)
	claimed, err := e.snapshotTasks(ctx, added)
	if err != nil {
		return nil, err
	}

	if err := e.store.ReplaceUser(ctx, &next); err != nil {
		return nil, userWriteError(err)
	}

	if len(removed) > 0 {
		e.compensate(ctx, "release tasks", func(ctx context.Context) error {
			_, err := e.store.UnassignTasks(ctx, next.ID, removed)
			return err
		}, "user_id", next.ID, "task_ids", removed)
	}
	e.claimTasks(ctx, &next, added, claimed)
	return &next, nil
}

// DeleteUser releases every pending task of the user and then removes it. A
// failure to release aborts the delete.
func (e *Engine) DeleteUser(ctx context.Context, id string) error {
	if _, err := e.findUser(ctx, id); err != nil {
		return err
	}

	released, err := e.store.UnassignTasks(ctx, id, nil)
	if err != nil {
		return dependencyError(err)
	}

	if err := e.store.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return notFoundError(msgUserNotFound)
		}
		return dependencyError(err)
	}

	e.logger.DebugContext(ctx, "user deleted", "user_id", id, "tasks_released", released)
	return nil
}

// applyAssignment resolves the assignee named by cmd onto task.
func (e *Engine) applyAssignment(ctx context.Context, task *models.Task, cmd TaskCommand) error {
	if cmd.AssignedUser == "" {
		task.Unassign()
		return nil
	}
	if !models.IsValidID(cmd.AssignedUser) {
		return validationError(msgAssigneeMissing)
	}

	user, err := e.store.FindUser(ctx, cmd.AssignedUser)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return validationError(msgAssigneeMissing)
		}
		return dependencyError(err)
	}

	task.Assign(user.ID, user.Name, cmd.AssignedUserName)
	return nil
}

// claimTasks points every id in added at user and removes each claimed task
// from the pending set of the user that held it before, using the snapshot
// taken ahead of the primary write.
func (e *Engine) claimTasks(ctx context.Context, user *models.User, added []string, snapshot []models.Task) {
	if len(added) == 0 {
		return
	}

	e.compensate(ctx, "claim tasks", func(ctx context.Context) error {
		_, err := e.store.ClaimTasks(ctx, added, user.ID, user.Name)
		return err
	}, "user_id", user.ID, "task_ids", added)

	if missing := len(added) - len(snapshot); missing > 0 {
		e.logger.WarnContext(ctx, "pending set references tasks that do not exist",
			"user_id", user.ID, "missing", missing)
	}

	for _, task := range snapshot {
		if !task.IsPending() || task.AssignedUser == user.ID {
			continue
		}
		previous := task.AssignedUser
		taskID := task.ID
		e.compensate(ctx, "remove pending task", func(ctx context.Context) error {
			return e.store.RemovePendingTask(ctx, previous, taskID)
		}, "task_id", taskID, "user_id", previous)
	}
}

func (e *Engine) snapshotTasks(ctx context.Context, ids []string) ([]models.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tasks, err := e.store.FindTasksByIDs(ctx, ids)
	if err != nil {
		return nil, dependencyError(err)
	}
	return tasks, nil
}

func (e *Engine) checkEmailFree(ctx context.Context, email, ownerID string) error {
	existing, err := e.store.FindUserByEmail(ctx, email)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil
	case err != nil:
		return dependencyError(err)
	case existing.ID != ownerID:
		return conflictError(msgDuplicateEmail)
	}
	return nil
}

func (e *Engine) findTask(ctx context.Context, id string) (*models.Task, error) {
	if !models.IsValidID(id) {
		return nil, notFoundError(msgTaskNotFound)
	}
	task, err := e.store.FindTask(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError(msgTaskNotFound)
		}
		return nil, dependencyError(err)
	}
	return task, nil
}

func (e *Engine) findUser(ctx context.Context, id string) (*models.User, error) {
	if !models.IsValidID(id) {
		return nil, notFoundError(msgUserNotFound)
	}
	user, err := e.store.FindUser(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError(msgUserNotFound)
		}
		return nil, dependencyError(err)
	}
	return user, nil
}

// compensate runs a compensating write. It outlives a cancelled request so a
// client disconnect cannot leave half the relationship updated.
func (e *Engine) compensate(ctx context.Context, step string, fn func(ctx context.Context) error, attrs ...any) {
	ctx = context.WithoutCancel(ctx)
	err := fn(ctx)
	if err == nil {
		return
	}
	e.logger.ErrorContext(ctx, "compensating write failed", append(attrs, "step", step, "error", err)...)

	if e.onFailure != nil {
		e.onFailure(step)
	}
	if e.repairs != nil {
		if err := e.repairs.ScheduleRepair(ctx, step); err != nil {
			e.logger.ErrorContext(ctx, "failed to schedule repair", "step", step, "error", err)
		}
	}
}

func userWriteError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return notFoundError(msgUserNotFound)
	case errors.Is(err, repositories.ErrDuplicateEmail):
		return conflictError(msgDuplicateEmail)
	default:
		return dependencyError(err)
	}
}
