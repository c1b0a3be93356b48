package services

import (
	"context"
	"errors"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/query"
	"task-tracker/backend/internal/repositories"
)

type UserService interface {
	ListUsers(ctx context.Context, params query.Params) (interface{}, error)
	GetUser(ctx context.Context, id string, selection interface{}) (interface{}, error)
	CreateUser(ctx context.Context, cmd UserCommand) (*models.User, error)
	ReplaceUser(ctx context.Context, id string, cmd UserCommand) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type UserServiceImpl struct {
	store   Store
	reader  recordReader
	engine  *Engine
	options query.Options
}

func NewUserService(store Store, engine *Engine, defaultLimit, maxLimit int) *UserServiceImpl {
	s := &UserServiceImpl{
		store:  store,
		engine: engine,
		options: query.Options{
			Fields:       query.UserFields,
			DefaultLimit: defaultLimit,
			MaxLimit:     maxLimit,
		},
	}
	if reader, ok := store.(recordReader); ok {
		s.reader = reader
	}
	return s
}

func (s *UserServiceImpl) ListUsers(ctx context.Context, params query.Params) (interface{}, error) {
	d, err := query.Translate(params, s.options)
	if err != nil {
		return nil, validationError(msgInvalidQuery)
	}

	if d.CountOnly {
		count, err := s.store.CountUsers(ctx, d.Filter)
		if err != nil {
			return nil, dependencyError(err)
		}
		return count, nil
	}

	users, err := s.store.FindUsers(ctx, d)
	if err != nil {
		return nil, dependencyError(err)
	}
	return projectAll(users, d.Projection)
}

func (s *UserServiceImpl) GetUser(ctx context.Context, id string, selection interface{}) (interface{}, error) {
	projection, err := query.TranslateProjection(selection, query.UserFields)
	if err != nil || !models.IsValidID(id) {
		return nil, validationError(msgInvalidIDOrSelect)
	}

	var user *models.User
	if s.reader != nil {
		user, err = s.reader.GetUser(ctx, id)
	} else {
		user, err = s.store.FindUser(ctx, id)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, notFoundError(msgUserNotFound)
		}
		return nil, dependencyError(err)
	}
	return project(user, projection)
}

func (s *UserServiceImpl) CreateUser(ctx context.Context, cmd UserCommand) (*models.User, error) {
	return s.engine.CreateUser(ctx, cmd)
}

func (s *UserServiceImpl) ReplaceUser(ctx context.Context, id string, cmd UserCommand) (*models.User, error) {
	return s.engine.ReplaceUser(ctx, id, cmd)
}

func (s *UserServiceImpl) DeleteUser(ctx context.Context, id string) error {
	return s.engine.DeleteUser(ctx, id)
}
