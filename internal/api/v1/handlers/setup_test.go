package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	v1 "taskboard/internal/api/v1"
	"taskboard/internal/api/v1/handlers"
	"taskboard/internal/apperror"
	"taskboard/internal/models"
	"taskboard/internal/repository"
	"taskboard/internal/token"
	myws "taskboard/internal/websocket"
	"taskboard/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitLoggers()
	defer logger.SyncLoggers()
	os.Exit(m.Run())
}

// In-memory stand-ins for the Postgres repositories.

type fakeUserStore struct {
	mu     sync.Mutex
	nextID int
	users  map[string]models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]models.User)}
}

func (s *fakeUserStore) Create(_ context.Context, name, email, passwordHash, role string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return models.User{}, repository.ErrDuplicateEmail
	}
	s.nextID++
	now := time.Now()
	user := models.User{
		ID:        s.nextID,
		Name:      name,
		Email:     email,
		Password:  passwordHash,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[email] = user
	return user, nil
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, exists := s.users[email]
	if !exists {
		return models.User{}, repository.ErrNotFound
	}
	return user, nil
}

type fakeTaskStore struct {
	mu     sync.Mutex
	nextID int
	base   time.Time
	tasks  map[int]models.Task
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{base: time.Now(), tasks: make(map[int]models.Task)}
}

func (s *fakeTaskStore) Create(_ context.Context, ownerID int, title, description, status string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	// Distinct creation times so ordering assertions are deterministic.
	created := s.base.Add(time.Duration(s.nextID) * time.Second)
	task := models.Task{
		ID:          s.nextID,
		Owner:       ownerID,
		Title:       title,
		Description: description,
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	s.tasks[task.ID] = task
	return task, nil
}

func (s *fakeTaskStore) FindByID(_ context.Context, id int) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, exists := s.tasks[id]
	if !exists {
		return models.Task{}, repository.ErrNotFound
	}
	return task, nil
}

func (s *fakeTaskStore) ListAll(_ context.Context) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := []models.Task{}
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	sortNewestFirst(tasks)
	return tasks, nil
}

func (s *fakeTaskStore) ListByOwner(_ context.Context, ownerID int) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := []models.Task{}
	for _, task := range s.tasks {
		if task.Owner == ownerID {
			tasks = append(tasks, task)
		}
	}
	sortNewestFirst(tasks)
	return tasks, nil
}

func sortNewestFirst(tasks []models.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID > tasks[j].ID
	})
}

func (s *fakeTaskStore) Update(_ context.Context, task models.Task) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, exists := s.tasks[task.ID]
	if !exists {
		return models.Task{}, repository.ErrNotFound
	}
	stored.Title = task.Title
	stored.Description = task.Description
	stored.Status = task.Status
	stored.UpdatedAt = time.Now()
	s.tasks[task.ID] = stored
	return stored, nil
}

func (s *fakeTaskStore) Delete(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[id]; !exists {
		return repository.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

type memCache struct {
	mu    sync.Mutex
	tasks map[int]models.Task
}

func newMemCache() *memCache {
	return &memCache{tasks: make(map[int]models.Task)}
}

func (c *memCache) Get(_ context.Context, id int) (models.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	task, ok := c.tasks[id]
	return task, ok
}

func (c *memCache) Set(_ context.Context, task models.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks[task.ID] = task
}

func (c *memCache) Invalidate(_ context.Context, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tasks, id)
}

type testEnv struct {
	app    *fiber.App
	users  *fakeUserStore
	tasks  *fakeTaskStore
	tokens *token.Service
}

func newTestEnv() *testEnv {
	users := newFakeUserStore()
	tasks := newFakeTaskStore()
	tokens := token.NewService("test-secret", time.Hour)
	validate := validator.New()

	hub := myws.NewHub()
	go hub.Run()

	app := fiber.New(fiber.Config{ErrorHandler: apperror.Handler})
	v1.RegisterRoutes(app, v1.Handlers{
		Auth:   &handlers.AuthHandler{Users: users, Tokens: tokens, Validate: validate},
		Tasks:  &handlers.TaskHandler{Tasks: tasks, Cache: newMemCache(), Hub: hub, Validate: validate},
		Tokens: tokens,
		Hub:    hub,
	})
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Route not found"})
	})

	return &testEnv{app: app, users: users, tasks: tasks, tokens: tokens}
}

func (e *testEnv) request(t *testing.T, method, path, bearer string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := e.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp.StatusCode, decoded
}

// register creates an account through the API and returns its token and id.
func (e *testEnv) register(t *testing.T, name, email, password string) (string, int) {
	t.Helper()
	status, body := e.request(t, "POST", "/api/v1/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
	require.Equal(t, fiber.StatusCreated, status)
	user := body["user"].(map[string]interface{})
	return body["token"].(string), int(user["id"].(float64))
}

// seedAdmin plants an admin account directly in the store and returns a
// token for it.
func (e *testEnv) seedAdmin(t *testing.T) (string, int) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("adminpass"), bcrypt.MinCost)
	require.NoError(t, err)
	admin, err := e.users.Create(context.Background(), "Admin", "admin@example.com", string(hash), models.RoleAdmin)
	require.NoError(t, err)

	tokenString, err := e.tokens.Issue(admin.ID, admin.Role)
	require.NoError(t, err)
	return tokenString, admin.ID
}
