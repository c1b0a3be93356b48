package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"task-tracker/backend/internal/handlers"
	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/monitoring"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/services"
)

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func setupAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)
	monitoring.Reset()
	t.Cleanup(monitoring.Reset)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.Task{}, &models.User{}, &models.PendingTask{}))

	monitoring.RegisterHealthCheck("database", func(ctx context.Context) error {
		return sqlDB.PingContext(ctx)
	})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repositories.NewGormStore(db)
	engine := services.NewEngine(store, services.WithLogger(log))

	router := handlers.SetupRouter(handlers.RouterConfig{
		Tasks:         services.NewTaskService(store, engine, 100, 0),
		Users:         services.NewUserService(store, engine, 0, 0),
		Reconciler:    engine,
		Logger:        log,
		DatabaseCheck: "database",
	})
	return &apiClient{t: t, router: router}
}

func (a *apiClient) do(method, path string, body interface{}) (int, envelope) {
	a.t.Helper()

	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case url.Values:
		reader = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		data, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(a.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w.Code, decodeEnvelope(a.t, w)
}

func (a *apiClient) user(id string) models.User {
	a.t.Helper()
	code, resp := a.do(http.MethodGet, "/api/users/"+id, nil)
	require.Equal(a.t, http.StatusOK, code)
	var user models.User
	require.NoError(a.t, json.Unmarshal(resp.Data, &user))
	return user
}

func (a *apiClient) task(id string) models.Task {
	a.t.Helper()
	code, resp := a.do(http.MethodGet, "/api/tasks/"+id, nil)
	require.Equal(a.t, http.StatusOK, code)
	var task models.Task
	require.NoError(a.t, json.Unmarshal(resp.Data, &task))
	return task
}

func (a *apiClient) createUser(body interface{}) models.User {
	a.t.Helper()
	code, resp := a.do(http.MethodPost, "/api/users", body)
	require.Equal(a.t, http.StatusCreated, code, string(resp.Data))
	var user models.User
	require.NoError(a.t, json.Unmarshal(resp.Data, &user))
	return user
}

func (a *apiClient) createTask(body interface{}) models.Task {
	a.t.Helper()
	code, resp := a.do(http.MethodPost, "/api/tasks", body)
	require.Equal(a.t, http.StatusCreated, code, resp.Message)
	var task models.Task
	require.NoError(a.t, json.Unmarshal(resp.Data, &task))
	return task
}

func TestAPI_AssignmentLifecycle(t *testing.T) {
	api := setupAPI(t)

	ada := api.createUser(map[string]interface{}{"name": "Ada", "email": "ada@example.com"})
	assert.Equal(t, []string{}, ada.PendingTasks)

	task := api.createTask(map[string]interface{}{
		"name":         "Write report",
		"deadline":     "2030-01-01T00:00:00Z",
		"assignedUser": ada.ID,
	})
	assert.Equal(t, "Ada", task.AssignedUserName)
	assert.Equal(t, []string{task.ID}, api.user(ada.ID).PendingTasks)

	code, _ := api.do(http.MethodPut, "/api/tasks/"+task.ID, map[string]interface{}{
		"name":         "Write report",
		"deadline":     "2030-01-01T00:00:00Z",
		"assignedUser": ada.ID,
		"completed":    true,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, api.user(ada.ID).PendingTasks)

	code, _ = api.do(http.MethodPut, "/api/tasks/"+task.ID, map[string]interface{}{
		"name":         "Write report",
		"deadline":     "2030-01-01T00:00:00Z",
		"assignedUser": ada.ID,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{task.ID}, api.user(ada.ID).PendingTasks)

	code, resp := api.do(http.MethodDelete, "/api/users/"+ada.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Deleted", resp.Message)

	orphan := api.task(task.ID)
	assert.Equal(t, "", orphan.AssignedUser)
	assert.Equal(t, "unassigned", orphan.AssignedUserName)
}

func TestAPI_FormEncodedUserClaimsTasks(t *testing.T) {
	api := setupAPI(t)

	bob := api.createUser(map[string]interface{}{"name": "Bob", "email": "bob@example.com"})
	first := api.createTask(map[string]interface{}{"name": "first", "deadline": 1893456000000, "assignedUser": bob.ID})
	second := api.createTask(map[string]interface{}{"name": "second", "deadline": "1893456000000"})

	form := url.Values{}
	form.Set("name", "Ada")
	form.Set("email", "ada@example.com")
	form.Add("pendingTasks[]", first.ID)
	form.Add("pendingTasks[]", second.ID)
	ada := api.createUser(form)

	assert.Equal(t, []string{first.ID, second.ID}, ada.PendingTasks)
	assert.Equal(t, ada.ID, api.task(first.ID).AssignedUser)
	assert.Equal(t, "Ada", api.task(second.ID).AssignedUserName)
	assert.Empty(t, api.user(bob.ID).PendingTasks)
}

func TestAPI_ListQueries(t *testing.T) {
	api := setupAPI(t)

	for _, name := range []string{"alpha", "beta", "gamma"} {
		api.createTask(map[string]interface{}{"name": name, "deadline": "2030-01-01", "completed": name == "beta"})
	}

	code, resp := api.do(http.MethodGet, "/api/tasks?where="+url.QueryEscape(`{'completed': false}`)+"&count=true", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "2", string(resp.Data))

	code, resp = api.do(http.MethodGet, "/api/tasks?sort="+url.QueryEscape(`{"name": -1}`)+"&select="+url.QueryEscape(`{"name": 1, "_id": 0}`)+"&limit=2", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[{"name":"gamma"},{"name":"beta"}]`, string(resp.Data))

	code, resp = api.do(http.MethodGet, "/api/tasks?where[name]=alpha", nil)
	require.Equal(t, http.StatusOK, code)
	var tasks []models.Task
	require.NoError(t, json.Unmarshal(resp.Data, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "alpha", tasks[0].Name)

	code, resp = api.do(http.MethodGet, "/api/tasks?where="+url.QueryEscape(`{"name":`), nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid query parameters", resp.Message)
}

func TestAPI_ErrorResponses(t *testing.T) {
	api := setupAPI(t)

	api.createUser(map[string]interface{}{"name": "Ada", "email": "ada@example.com"})

	tests := []struct {
		name    string
		method  string
		path    string
		body    interface{}
		status  int
		message string
	}{
		{"duplicate email", http.MethodPost, "/api/users", map[string]interface{}{"name": "A", "email": "ADA@example.com"}, http.StatusConflict, "A user with that email already exists"},
		{"missing email", http.MethodPost, "/api/users", map[string]interface{}{"name": "A"}, http.StatusBadRequest, "Name and email are required"},
		{"missing deadline", http.MethodPost, "/api/tasks", map[string]interface{}{"name": "t"}, http.StatusBadRequest, "Task name and deadline are required"},
		{"unknown assignee", http.MethodPost, "/api/tasks", map[string]interface{}{"name": "t", "deadline": "2030-01-01", "assignedUser": models.NewID()}, http.StatusBadRequest, "assignedUser does not exist"},
		{"malformed id on get", http.MethodGet, "/api/tasks/not-an-id", nil, http.StatusBadRequest, "Invalid id or select"},
		{"malformed id on put", http.MethodPut, "/api/users/not-an-id", map[string]interface{}{"name": "A", "email": "a@example.com"}, http.StatusNotFound, "User not found"},
		{"missing task", http.MethodDelete, "/api/tasks/" + models.NewID(), nil, http.StatusNotFound, "Task not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := api.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, "null", string(resp.Data))
		})
	}

	code, resp := api.do(http.MethodGet, "/api/tasks?count=true", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "0", string(resp.Data))
}

func TestAPI_ReconcileAndHealth(t *testing.T) {
	api := setupAPI(t)

	code, resp := api.do(http.MethodPost, "/api/maintenance/reconcile", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"tasksUnassigned":0,"usersRepaired":0,"orphanSetsCleared":0}`, string(resp.Data))

	code, resp = api.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", resp.Message)

	code, resp = api.do(http.MethodGet, "/health/db", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"connected":true}`, string(resp.Data))
}
