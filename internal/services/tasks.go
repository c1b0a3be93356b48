package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/query"
	"task-tracker/backend/internal/repositories"
)

type TaskService interface {
	// ListTasks returns the matching tasks, or their number when params ask
	// for a count.
	ListTasks(ctx context.Context, params query.Params) (interface{}, error)
	GetTask(ctx context.Context, id string, selection interface{}) (interface{}, error)
	CreateTask(ctx context.Context, cmd TaskCommand) (*models.Task, error)
	ReplaceTask(ctx context.Context, id string, cmd TaskCommand) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type TaskServiceImpl struct {
	store   Store
	reader  recordReader
	engine  *Engine
	options query.Options
}

// NewTaskService lists tasks with the given default and maximum page size.
// A store that also caches single-record reads serves GetTask.
func NewTaskService(store Store, engine *Engine, defaultLimit, maxLimit int) *TaskServiceImpl {
	s := &TaskServiceImpl{
		store:  store,
		engine: engine,
		options: query.Options{
			Fields:       query.TaskFields,
			DefaultLimit: defaultLimit,
			MaxLimit:     maxLimit,
		},
	}
	if reader, ok := store.(recordReader); ok {
		s.reader = reader
	}
	return s
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, params query.Params) (interface{}, error) {
	d, err := query.Translate(params, s.options)
	if err != nil {
		return nil, validationError(msgInvalidQuery)
	}

	if d.CountOnly {
		count, err := s.store.CountTasks(ctx, d.Filter)
		if err != nil {
			return nil, dependencyError(err)
		}
		return count, nil
	}

	tasks, err := s.store.FindTasks(ctx, d)
	if err != nil {
		return nil, dependencyError(err)
	}
	return projectAll(tasks, d.Projection)
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, id string, selection interface{}) (interface{}, error) {
	projection, err := query.TranslateProjection(selection, query.TaskFields)
	if err != nil || !models.IsValidID(id) {
		return nil, validationError(msgInvalidIDOrSelect)
	}

	var task *models.Task
	if s.reader != nil {
		task, err = s.reader.GetTask(ctx, id)
	} else {
		task, err = s.store.FindTask(ctx, id)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError(msgTaskNotFound)
		}
		return nil, dependencyError(err)
	}
	return project(task, projection)
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, cmd TaskCommand) (*models.Task, error) {
	return s.engine.CreateTask(ctx, cmd)
}

func (s *TaskServiceImpl) ReplaceTask(ctx context.Context, id string, cmd TaskCommand) (*models.Task, error) {
	return s.engine.ReplaceTask(ctx, id, cmd)
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, id string) error {
	return s.engine.DeleteTask(ctx, id)
}

// project applies p to the JSON form of record.
func project(record interface{}, p query.Projection) (interface{}, error) {
	if p.IsZero() {
		return record, nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, dependencyError(fmt.Errorf("failed to encode record: %w", err))
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, dependencyError(fmt.Errorf("failed to decode record: %w", err))
	}
	return p.Apply(doc), nil
}

func projectAll[T any](records []T, p query.Projection) (interface{}, error) {
	if p.IsZero() {
		return records, nil
	}
	docs := make([]interface{}, 0, len(records))
	for i := range records {
		doc, err := project(&records[i], p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
