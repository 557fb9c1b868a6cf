package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/apperr"
)

type errorBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "success",
		"data":   data,
	})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindConflict:
		return fiber.StatusConflict
	case apperr.KindPrecondition:
		return fiber.StatusPreconditionFailed
	case apperr.KindUnavailable:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func errorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(errorBody{Status: "error", Code: statusCode(fe.Code), Message: fe.Message})
		}
		status := StatusFor(apperr.KindOf(err))
		code := apperr.CodeOf(err)
		msg := err.Error()
		if status == fiber.StatusInternalServerError {
			log.WithError(err).WithField("uri", c.OriginalURL()).Error("unhandled error")
			if code == "" {
				code = "Internal"
				msg = "internal error"
			}
		}
		return c.Status(status).JSON(errorBody{Status: "error", Code: code, Message: msg})
	}
}

// statusCode turns 413 into "RequestEntityTooLarge".
func statusCode(code int) string {
	if s := http.StatusText(code); s != "" {
		return strings.NewReplacer(" ", "", "-", "").Replace(s)
	}
	return fmt.Sprintf("Status%d", code)
}

// bind decodes an optional JSON body into dst and validates it.
func (h *handlers) bind(c *fiber.Ctx, dst any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(dst); err != nil {
			return apperr.Wrap(apperr.ErrInvalidInput, err, "invalid request body")
		}
	}
	if err := h.validate.Struct(dst); err != nil {
		return apperr.Wrap(apperr.ErrInvalidInput, err, "%s", strings.Join(formatValidationErrors(err), "; "))
	}
	return nil
}

func formatValidationErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		s := fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			s = fmt.Sprintf("%s (%s)", s, fe.Param())
		}
		out = append(out, s)
	}
	return out
}
