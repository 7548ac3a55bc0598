package main

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"

	"taskboard/configs"
	v1 "taskboard/internal/api/v1"
	"taskboard/internal/api/v1/handlers"
	"taskboard/internal/apperror"
	"taskboard/internal/cache"
	"taskboard/internal/middleware"
	"taskboard/internal/repository"
	"taskboard/internal/token"
	myws "taskboard/internal/websocket"
	"taskboard/pkg/database"
	"taskboard/pkg/logger"
)

func main() {
	logger.InitLoggers()
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))

	cfg := configs.LoadConfig()

	db := database.ConnectDB(cfg)
	defer db.Close()
	logger.SystemLogger.Info("Database connected")

	repository.CreateTableIfNotExists(db)

	redisClient := database.ConnectRedis(cfg)
	defer redisClient.Close()
	logger.SystemLogger.Info("Redis connected")

	tokens := token.NewService(cfg.JWTSecret, cfg.TokenTTL)
	validate := validator.New()

	hub := myws.NewHub()
	go hub.Run()

	app := fiber.New(fiber.Config{
		ErrorHandler: apperror.Handler,
	})

	app.Use(middleware.RequestLog())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	v1.RegisterRoutes(app, v1.Handlers{
		Auth: &handlers.AuthHandler{
			Users:    repository.NewUsers(db),
			Tokens:   tokens,
			Validate: validate,
		},
		Tasks: &handlers.TaskHandler{
			Tasks:    repository.NewTasks(db),
			Cache:    cache.NewRedisTasks(redisClient),
			Hub:      hub,
			Validate: validate,
		},
		Tokens: tokens,
		Hub:    hub,
	})

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Route not found"})
	})

	logger.SystemLogger.Info("Application ready", zap.Int("port", cfg.Port))
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.ErrorLogger.Error("Application failed to start", zap.Error(err))
	}
}
