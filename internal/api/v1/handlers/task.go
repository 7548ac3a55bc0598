package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskboard/internal/apperror"
	"taskboard/internal/cache"
	"taskboard/internal/middleware"
	"taskboard/internal/models"
	"taskboard/internal/policy"
	"taskboard/internal/repository"
	"taskboard/internal/websocket"
	"taskboard/pkg/logger"
)

// TaskStore is the slice of the task store the task handlers need.
type TaskStore interface {
	Create(ctx context.Context, ownerID int, title, description, status string) (models.Task, error)
	FindByID(ctx context.Context, id int) (models.Task, error)
	ListAll(ctx context.Context) ([]models.Task, error)
	ListByOwner(ctx context.Context, ownerID int) ([]models.Task, error)
	Update(ctx context.Context, task models.Task) (models.Task, error)
	Delete(ctx context.Context, id int) error
}

type TaskHandler struct {
	Tasks    TaskStore
	Cache    cache.Tasks
	Hub      *websocket.Hub
	Validate *validator.Validate
}

func (h *TaskHandler) Create(c *fiber.Ctx) error {
	ident := middleware.CallerIdentity(c)

	type TaskRequest struct {
		Title       string `json:"title" validate:"required"`
		Description string `json:"description"`
		Status      string `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	}

	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create task", zap.Error(err))
		return apperror.BadRequest("Bad request")
	}
	req.Title = strings.TrimSpace(req.Title)

	if err := h.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error in create task", zap.Error(err))
		return apperror.Validation(err)
	}

	status := req.Status
	if status == "" {
		status = models.StatusTodo
	}

	// The owner is always the authenticated caller; a caller-supplied owner
	// field is never read.
	task, err := h.Tasks.Create(c.Context(), ident.UserID, req.Title, req.Description, status)
	if err != nil {
		logger.ErrorLogger.Error("Error creating task", zap.Error(err))
		return apperror.Internal("Error creating task")
	}

	h.Cache.Set(c.Context(), task)
	h.Hub.PublishTask("task.created", task)

	logger.AuditLogger.Info("Task created", zap.Int("task_id", task.ID), zap.Int("owner", task.Owner))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"task": task})
}

func (h *TaskHandler) List(c *fiber.Ctx) error {
	ident := middleware.CallerIdentity(c)

	var tasks []models.Task
	var err error
	if policy.HasRole(ident, models.RoleAdmin) {
		tasks, err = h.Tasks.ListAll(c.Context())
	} else {
		tasks, err = h.Tasks.ListByOwner(c.Context(), ident.UserID)
	}
	if err != nil {
		logger.ErrorLogger.Error("Error fetching tasks", zap.Error(err))
		return apperror.Internal("Error fetching tasks")
	}

	return c.JSON(fiber.Map{"items": tasks})
}

func (h *TaskHandler) Get(c *fiber.Ctx) error {
	ident := middleware.CallerIdentity(c)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		return apperror.BadRequest("Invalid task id")
	}

	if task, ok := h.Cache.Get(c.Context(), taskID); ok {
		if !policy.CanAccess(task.Owner, ident) {
			logger.SecurityLogger.Warn("Forbidden task read",
				zap.Int("user_id", ident.UserID), zap.Int("task_id", taskID))
			return apperror.Forbidden("Forbidden")
		}
		return c.JSON(fiber.Map{"task": task})
	}

	task, err := h.findTask(c.Context(), taskID)
	if err != nil {
		return err
	}
	if !policy.CanAccess(task.Owner, ident) {
		logger.SecurityLogger.Warn("Forbidden task read",
			zap.Int("user_id", ident.UserID), zap.Int("task_id", taskID))
		return apperror.Forbidden("Forbidden")
	}

	h.Cache.Set(c.Context(), task)
	return c.JSON(fiber.Map{"task": task})
}

func (h *TaskHandler) Update(c *fiber.Ctx) error {
	ident := middleware.CallerIdentity(c)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		return apperror.BadRequest("Invalid task id")
	}

	// Pointer fields distinguish "absent" from "set to empty": only fields
	// present in the patch are applied.
	type UpdateTaskRequest struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
	}

	var req UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update task", zap.Error(err))
		return apperror.BadRequest("Bad request")
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return apperror.BadRequest("Title is required")
	}
	if req.Status != nil && !models.ValidStatus(*req.Status) {
		return apperror.BadRequest("Invalid status")
	}

	task, err := h.findTask(c.Context(), taskID)
	if err != nil {
		return err
	}
	if !policy.CanAccess(task.Owner, ident) {
		logger.SecurityLogger.Warn("Forbidden task update",
			zap.Int("user_id", ident.UserID), zap.Int("task_id", taskID))
		return apperror.Forbidden("Forbidden")
	}

	if req.Title != nil {
		task.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		task.Status = *req.Status
	}

	updated, err := h.Tasks.Update(c.Context(), task)
	if err != nil {
		logger.ErrorLogger.Error("Error updating task", zap.Error(err))
		return apperror.Internal("Error updating task")
	}

	h.Cache.Invalidate(c.Context(), taskID)
	h.Cache.Set(c.Context(), updated)
	h.Hub.PublishTask("task.updated", updated)

	logger.AuditLogger.Info("Task updated", zap.Int("task_id", taskID))
	return c.JSON(fiber.Map{"task": updated})
}

func (h *TaskHandler) Delete(c *fiber.Ctx) error {
	ident := middleware.CallerIdentity(c)

	taskID, err := c.ParamsInt("id")
	if err != nil {
		return apperror.BadRequest("Invalid task id")
	}

	task, err := h.findTask(c.Context(), taskID)
	if err != nil {
		return err
	}
	if !policy.CanAccess(task.Owner, ident) {
		logger.SecurityLogger.Warn("Forbidden task delete",
			zap.Int("user_id", ident.UserID), zap.Int("task_id", taskID))
		return apperror.Forbidden("Forbidden")
	}

	if err := h.Tasks.Delete(c.Context(), taskID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Task not found")
		}
		logger.ErrorLogger.Error("Error deleting task", zap.Error(err))
		return apperror.Internal("Error deleting task")
	}

	h.Cache.Invalidate(c.Context(), taskID)
	h.Hub.PublishTask("task.deleted", task)

	logger.AuditLogger.Info("Task deleted", zap.Int("task_id", taskID))
	return c.JSON(fiber.Map{"message": "Task deleted"})
}

func (h *TaskHandler) findTask(ctx context.Context, id int) (models.Task, error) {
	task, err := h.Tasks.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Task{}, apperror.NotFound("Task not found")
		}
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return models.Task{}, apperror.Internal("Error fetching task")
	}
	return task, nil
}
