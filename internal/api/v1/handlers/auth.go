package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"taskboard/internal/apperror"
	"taskboard/internal/models"
	"taskboard/internal/repository"
	"taskboard/internal/token"
	"taskboard/pkg/logger"
)

// bcryptCost resists offline brute force; bcrypt.DefaultCost is too cheap
// for password storage.
const bcryptCost = 12

// UserStore is the slice of the credential store the auth handlers need.
type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash, role string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

type AuthHandler struct {
	Users    UserStore
	Tokens   *token.Service
	Validate *validator.Validate
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	type RegisterRequest struct {
		Name     string `json:"name" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
		Role     string `json:"role" validate:"omitempty,oneof=user admin"`
	}

	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in register", zap.Error(err))
		return apperror.BadRequest("Bad request")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)

	if err := h.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during register", zap.Error(err))
		return apperror.Validation(err)
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	// Granting admin requires an already-authenticated admin; anonymous
	// callers must not be able to self-assign the role.
	if role == models.RoleAdmin && !h.callerIsAdmin(c) {
		logger.SecurityLogger.Warn("Rejected admin self-registration", zap.String("email", req.Email))
		return apperror.Forbidden("Only an admin can grant the admin role")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		logger.ErrorLogger.Error("Error hashing password", zap.Error(err))
		return apperror.Internal("Error hashing password")
	}

	user, err := h.Users.Create(c.Context(), req.Name, req.Email, string(hashedPassword), role)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			logger.SecurityLogger.Warn("Duplicate email", zap.String("email", req.Email))
			return apperror.Conflict("Email already registered")
		}
		logger.ErrorLogger.Error("Error creating user", zap.Error(err))
		return apperror.Internal("Error creating user")
	}

	tokenString, err := h.Tokens.Issue(user.ID, user.Role)
	if err != nil {
		logger.ErrorLogger.Error("Error generating token", zap.Error(err))
		return apperror.Internal("Error generating token")
	}

	logger.AuditLogger.Info("User registered", zap.Int("user_id", user.ID), zap.String("role", user.Role))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": tokenString,
		"user":  user,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in login", zap.Error(err))
		return apperror.BadRequest("Bad request")
	}
	req.Email = normalizeEmail(req.Email)

	if err := h.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during login", zap.Error(err))
		return apperror.Validation(err)
	}

	user, err := h.Users.FindByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Same message as a wrong password so the response does not
			// reveal whether the account exists.
			logger.SecurityLogger.Warn("Login for unknown email", zap.String("email", req.Email))
			return apperror.Unauthorized("Invalid credentials")
		}
		logger.ErrorLogger.Error("Error fetching user", zap.Error(err))
		return apperror.Internal("Error fetching user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.SecurityLogger.Warn("Invalid password", zap.Int("user_id", user.ID))
		return apperror.Unauthorized("Invalid credentials")
	}

	tokenString, err := h.Tokens.Issue(user.ID, user.Role)
	if err != nil {
		logger.ErrorLogger.Error("Error generating token", zap.Error(err))
		return apperror.Internal("Error generating token")
	}

	logger.AuditLogger.Info("Login success", zap.Int("user_id", user.ID), zap.String("role", user.Role))
	return c.JSON(fiber.Map{
		"token": tokenString,
		"user":  user,
	})
}

// callerIsAdmin checks an optional bearer token on an otherwise public
// route. Any failure just means "not an admin".
func (h *AuthHandler) callerIsAdmin(c *fiber.Ctx) bool {
	parts := strings.Split(c.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return false
	}
	claims, err := h.Tokens.Verify(parts[1])
	if err != nil {
		return false
	}
	return claims.Role == models.RoleAdmin
}
