package httpapi

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	headerCompanyID = "X-Company-ID"
	localRequestID  = "requestid"
	localCompanyID  = "company_id"
)

// RequestLogger logs one structured line per request. Chain errors are
// rendered first so the logged status is the one the client sees.
func RequestLogger(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := uuid.NewString()
		c.Locals(localRequestID, requestID)
		c.Set("X-Request-ID", requestID)

		chainErr := c.Next()
		if chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		entry := log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"http_method": c.Method(),
			"uri":         c.OriginalURL(),
			"status_code": status,
			"latency_ms":  time.Since(start).Milliseconds(),
			"client_ip":   c.IP(),
		})
		if chainErr != nil {
			entry = entry.WithField("error", chainErr.Error())
		}
		switch {
		case status >= 500:
			entry.Error("request completed with server error")
		case status >= 400:
			entry.Warn("request completed with client error")
		default:
			entry.Info("request completed")
		}
		return nil
	}
}

// Tenant requires the company header. The value is trusted as is.
func Tenant() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(headerCompanyID))
		if id == "" {
			return c.Status(fiber.StatusBadRequest).JSON(errorBody{
				Status:  "error",
				Code:    "MissingTenant",
				Message: headerCompanyID + " header is required",
			})
		}
		c.Locals(localCompanyID, id)
		return c.Next()
	}
}

func companyID(c *fiber.Ctx) string {
	id, _ := c.Locals(localCompanyID).(string)
	return id
}
