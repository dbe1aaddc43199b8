package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/simwallet/internal/apierror"
	"github.com/congo-pay/simwallet/internal/metrics"
)

// Audit emits a structured log line and a request counter for each request.
// Only the route pattern is recorded so path parameters such as aliases stay
// out of metric labels.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = apierror.Status(err)
		}
		duration := time.Since(start)
		requestID, _ := c.Locals(requestIDHeader).(string)
		route := c.Route().Path

		metrics.HTTPRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("duration", duration),
		}
		if requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		if uid, _ := c.Locals(localUserID).(string); uid != "" {
			attrs = append(attrs, slog.String("user_id", uid))
		}
		if err != nil && status >= fiber.StatusInternalServerError {
			attrs = append(attrs, slog.Any("error", apierror.Cause(err)))
			logger.Error("request completed", attrs...)
			return err
		}

		logger.Info("request completed", attrs...)
		return err
	}
}
