// Package httpapi exposes the clip pipeline over HTTP. Stage triggers answer
// 202 with the claimed entity; clients poll the entity for the outcome.
package httpapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/clipforge/internal/usecase"
)

type Options struct {
	UploadDir      string
	MaxUploadBytes int64
	// AllowOrigins is a comma-separated CORS origin list; empty allows all.
	AllowOrigins string
}

type handlers struct {
	svc      *usecase.Service
	opts     Options
	log      logrus.FieldLogger
	validate *validator.Validate
}

// New builds the fiber app with every route mounted.
func New(svc *usecase.Service, opts Options, log logrus.FieldLogger) *fiber.App {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 2 << 30
	}
	if opts.AllowOrigins == "" {
		opts.AllowOrigins = "*"
	}
	h := &handlers{svc: svc, opts: opts, log: log, validate: validator.New()}

	app := fiber.New(fiber.Config{
		AppName:               "clipforge",
		DisableStartupMessage: true,
		// Multipart overhead on top of the file itself.
		BodyLimit:    int(opts.MaxUploadBytes) + 1<<20,
		ErrorHandler: errorHandler(log),
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, " + headerCompanyID,
	}))
	app.Use(RequestLogger(log))

	app.Get("/health", h.health)
	app.Get("/health/encoder", h.encoderHealth)

	api := app.Group("/api/v1", Tenant())

	videos := api.Group("/videos")
	videos.Post("", h.uploadVideo)
	videos.Post("/import", h.importVideo)
	videos.Get("/:id", h.getVideo)
	videos.Post("/:id/probe", h.probeVideo)
	videos.Post("/:id/transcribe", h.transcribeVideo)
	videos.Post("/:id/analyze", h.analyzeVideo)
	videos.Post("/:id/regenerate", h.regenerateClips)
	videos.Get("/:id/transcript", h.getTranscript)
	videos.Get("/:id/transcript/range", h.getTranscriptRange)
	videos.Get("/:id/clips", h.listClips)

	clips := api.Group("/clips")
	clips.Get("/:id", h.getClip)
	clips.Patch("/:id/timeline", h.updateTimeline)
	clips.Patch("/:id/transcript", h.updateTranscript)
	clips.Patch("/:id/style", h.setStyle)
	clips.Patch("/:id/aspect-ratio", h.setAspectRatio)
	clips.Get("/:id/fillers", h.detectFillers)
	clips.Post("/:id/fillers/remove", h.removeFillers)
	clips.Post("/:id/duplicate", h.duplicateClip)
	clips.Post("/:id/approve", h.approveClip)
	clips.Post("/:id/reject", h.rejectClip)
	clips.Post("/:id/export", h.exportClip)
	clips.Get("/:id/captions", h.captions)

	return app
}

func (h *handlers) health(c *fiber.Ctx) error {
	if err := h.svc.Ping(c.UserContext()); err != nil {
		h.log.WithError(err).Error("health: repository ping failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "message": "repository unreachable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *handlers) encoderHealth(c *fiber.Ctx) error {
	if err := h.svc.EncoderStatus(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
