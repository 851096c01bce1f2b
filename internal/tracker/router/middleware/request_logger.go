package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SakuraBurst/questtracker/internal/pkg/metrics"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger tags every request with an id and records it in the http metrics.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDHeader, requestID)
		c.Locals("request_id", requestID)

		err := c.Next()
		if err != nil {
			// let the app error handler write the status before it is read
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		path := c.Route().Path
		status := c.Response().StatusCode()
		duration := time.Since(start).Seconds()

		metrics.ReqCount.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		metrics.ReqDuration.WithLabelValues(c.Method(), path).Observe(duration)

		logger.Info("http_request",
			zap.String("request_id", requestID),
			zap.String("method", c.Method()),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Float64("duration", duration),
			zap.String("client_ip", c.IP()),
		)
		return nil
	}
}
