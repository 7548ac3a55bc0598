package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskboard/internal/apperror"
	"taskboard/pkg/logger"
)

// RequestLog logs every incoming request and converts panics into a 500
// handled by the central error responder.
func RequestLog() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorLogger.Error(fmt.Sprintf("Recovered from panic: %v", r),
					zap.String("stack", string(debug.Stack())))
				err = apperror.Internal("Server error")
			}
		}()
		logger.RequestLogger.Info("Incoming request",
			zap.String("method", c.Method()),
			zap.String("url", c.OriginalURL()),
		)
		return c.Next()
	}
}
