package v1

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"taskboard/internal/api/v1/handlers"
	"taskboard/internal/middleware"
	"taskboard/internal/policy"
	"taskboard/internal/token"
	myws "taskboard/internal/websocket"
)

// Handlers bundles everything the router needs.
type Handlers struct {
	Auth   *handlers.AuthHandler
	Tasks  *handlers.TaskHandler
	Tokens *token.Service
	Hub    *myws.Hub
}

func RegisterRoutes(app *fiber.App, h Handlers) {
	api := app.Group("/api/v1")

	api.Get("/health", handlers.Health)

	// Auth
	api.Post("/auth/register", h.Auth.Register)
	api.Post("/auth/login", h.Auth.Login)

	// Task
	taskRoutes := api.Group("/tasks", middleware.Auth(h.Tokens))
	taskRoutes.Post("/", h.Tasks.Create)
	taskRoutes.Get("/", h.Tasks.List)
	taskRoutes.Get("/:id", h.Tasks.Get)
	taskRoutes.Patch("/:id", h.Tasks.Update)
	taskRoutes.Delete("/:id", h.Tasks.Delete)

	// Task event feed. Browsers cannot set an Authorization header on a
	// WebSocket handshake, so the token rides in the query string. The
	// verified identity sticks to the client so the hub can filter events.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		claims, err := h.Tokens.Verify(c.Query("token"))
		if err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals("identity", policy.Identity{UserID: claims.UserID, Role: claims.Role})
		return c.Next()
	})
	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		ident, _ := conn.Locals("identity").(policy.Identity)
		client := &myws.Client{Conn: conn, Ident: ident}
		h.Hub.Register <- client
		defer func() {
			h.Hub.Unregister <- client
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}))
}
