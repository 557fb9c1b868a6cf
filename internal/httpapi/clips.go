package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/forPelevin/clipforge/internal/domain/subtitles"
	"github.com/forPelevin/clipforge/internal/domain/transcript"
	"github.com/forPelevin/clipforge/internal/types"
	"github.com/forPelevin/clipforge/internal/usecase"
)

func (h *handlers) getClip(c *fiber.Ctx) error {
	clip, err := h.svc.GetClip(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusOK, clip)
}

// Pointers distinguish a missing bound from an explicit 0.
type timelineRequest struct {
	StartTime *float64 `json:"start_time" validate:"required"`
	EndTime   *float64 `json:"end_time" validate:"required"`
}

func (h *handlers) updateTimeline(c *fiber.Ctx) error {
	var req timelineRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	clip, err := h.svc.UpdateTimeline(c.UserContext(), c.Params("id"), *req.StartTime, *req.EndTime)
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusOK, clip)
}

type transcriptRequest struct {
	Text     string          `json:"text" validate:"max=20000"`
	Segments []types.Segment `json:"segments"`
}

func (h *handlers) updateTranscript(c *fiber.Ctx) error {
	var req transcriptRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	clip, err := h.svc.UpdateTranscript(c.UserContext(), c.Params("id"), req.Text, req.Segments)
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusOK, clip)
}

type styleRequest struct {
	Preset string           `json:"preset" validate:"required_without=Custom"`
	Custom *types.StyleSpec `json:"custom"`
}

func (h *handlers) setStyle(c *fiber.Ctx) error {
	var req styleRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	clip, err := h.svc.SetCaptionStyle(c.UserContext(), c.Params("id"), types.CaptionStyle{Preset: req.Preset, Custom: req.Custom})
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusOK, clip)
}

type aspectRequest struct {
	AspectRatio string `json:"aspect_ratio" validate:"required"`
}

func (h *handlers) setAspectRatio(c *fiber.Ctx) error {
	var req aspectRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	clip, err := h.svc.SetAspectRatio(c.UserContext(), c.Params("id"), types.AspectRatio(req.AspectRatio))
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusOK, clip)
}

func (h *handlers) detectFillers(c *fiber.Ctx) error {
	fillers, err := h.svc.DetectFillers(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusOK, fillers)
}

// An absent fillers list removes every detected filler.
type removeFillersRequest struct {
	Fillers []transcript.Filler `json:"fillers"`
}

func (h *handlers) removeFillers(c *fiber.Ctx) error {
	var req removeFillersRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	clip, removed, err := h.svc.RemoveFillers(c.UserContext(), c.Params("id"), req.Fillers)
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusOK, fiber.Map{"clip": clip, "removed": removed})
}

type duplicateRequest struct {
	Title string `json:"title" validate:"max=200"`
}

func (h *handlers) duplicateClip(c *fiber.Ctx) error {
	var req duplicateRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	clip, err := h.svc.Duplicate(c.UserContext(), c.Params("id"), req.Title)
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusCreated, clip)
}

func (h *handlers) approveClip(c *fiber.Ctx) error {
	clip, err := h.svc.Approve(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusOK, clip)
}

func (h *handlers) rejectClip(c *fiber.Ctx) error {
	clip, err := h.svc.Reject(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusOK, clip)
}

type exportRequest struct {
	CaptionStyle *types.CaptionStyle `json:"caption_style"`
	AspectRatio  string              `json:"aspect_ratio"`
	WordsPerLine int                 `json:"words_per_line" validate:"min=0,max=12"`
}

func (h *handlers) exportClip(c *fiber.Ctx) error {
	var req exportRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.TriggerExport(c.UserContext(), c.Params("id"), usecase.ExportOptions{
		CaptionStyle: req.CaptionStyle,
		AspectRatio:  types.AspectRatio(req.AspectRatio),
		WordsPerLine: req.WordsPerLine,
	})
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusAccepted, res)
}

// captions renders the clip's caption track as a plain-text download.
func (h *handlers) captions(c *fiber.Ctx) error {
	format, err := subtitles.ParseFormat(c.Query("format"))
	if err != nil {
		return err
	}
	body, err := h.svc.RenderCaptions(c.UserContext(), c.Params("id"), format, c.QueryInt("words_per_line", 0))
	if err != nil {
		return err
	}
	switch format {
	case subtitles.FormatSRT:
		c.Set(fiber.HeaderContentType, "application/x-subrip; charset=utf-8")
	default:
		c.Set(fiber.HeaderContentType, "text/x-ssa; charset=utf-8")
	}
	return c.SendString(body)
}
