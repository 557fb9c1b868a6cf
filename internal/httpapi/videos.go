package httpapi

import (
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/forPelevin/clipforge/internal/apperr"
)

var allowedExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".webm": true, ".mkv": true,
}

var allowedMimeTypes = map[string]bool{
	"video/mp4":                true,
	"video/quicktime":          true,
	"video/x-m4v":              true,
	"video/webm":               true,
	"video/x-matroska":         true,
	"application/octet-stream": true,
}

// validateUpload checks size, name and type before anything touches disk.
func validateUpload(fh *multipart.FileHeader, maxBytes int64) error {
	if fh.Size == 0 {
		return apperr.New(apperr.ErrInvalidInput, "uploaded file is empty")
	}
	if fh.Size > maxBytes {
		return apperr.New(apperr.ErrInvalidInput, "uploaded file is %d bytes, the limit is %d", fh.Size, maxBytes)
	}
	if len(fh.Filename) > 255 {
		return apperr.New(apperr.ErrInvalidInput, "filename too long, maximum 255 characters")
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtensions[ext] {
		return apperr.New(apperr.ErrInvalidInput, "unsupported file type %q (want mp4, mov, m4v, webm or mkv)", ext)
	}
	ct := strings.ToLower(strings.TrimSpace(strings.Split(fh.Header.Get("Content-Type"), ";")[0]))
	if ct != "" && !allowedMimeTypes[ct] {
		return apperr.New(apperr.ErrInvalidInput, "unsupported content type %q", ct)
	}
	return nil
}

func (h *handlers) uploadVideo(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return apperr.Wrap(apperr.ErrInvalidInput, err, "multipart field \"file\" is required")
	}
	if err := validateUpload(fh, h.opts.MaxUploadBytes); err != nil {
		return err
	}
	if err := os.MkdirAll(h.opts.UploadDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(h.opts.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	if err := c.SaveFile(fh, dst); err != nil {
		return err
	}
	v, err := h.svc.CreateUpload(c.UserContext(), companyID(c), dst, fh.Filename)
	if err != nil {
		if rerr := os.Remove(dst); rerr != nil {
			h.log.WithError(rerr).WithField("path", dst).Warn("remove rejected upload")
		}
		return err
	}
	return respondJSON(c, fiber.StatusAccepted, v)
}

type importRequest struct {
	URL string `json:"url" validate:"required,url"`
}

func (h *handlers) importVideo(c *fiber.Ctx) error {
	var req importRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	v, err := h.svc.CreateImport(c.UserContext(), companyID(c), req.URL)
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusAccepted, v)
}

func (h *handlers) getVideo(c *fiber.Ctx) error {
	v, err := h.svc.GetVideo(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusOK, v)
}

func (h *handlers) probeVideo(c *fiber.Ctx) error {
	v, err := h.svc.TriggerProbe(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusAccepted, v)
}

func (h *handlers) transcribeVideo(c *fiber.Ctx) error {
	v, err := h.svc.TriggerTranscribe(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusAccepted, v)
}

// analyzeVideo answers 200 without starting work when the video already has
// clips.
func (h *handlers) analyzeVideo(c *fiber.Ctx) error {
	v, started, err := h.svc.TriggerAnalyze(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if !started {
		return respondJSON(c, fiber.StatusOK, v)
	}
	return respondJSON(c, fiber.StatusAccepted, v)
}

func (h *handlers) regenerateClips(c *fiber.Ctx) error {
	v, err := h.svc.TriggerRegenerate(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusAccepted, v)
}

func (h *handlers) getTranscript(c *fiber.Ctx) error {
	tr, err := h.svc.GetTranscript(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusOK, tr)
}

func (h *handlers) getTranscriptRange(c *fiber.Ctx) error {
	start, err := queryFloat(c, "start")
	if err != nil {
		return err
	}
	end, err := queryFloat(c, "end")
	if err != nil {
		return err
	}
	r, err := h.svc.GetTranscriptRange(c.UserContext(), c.Params("id"), start, end)
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusOK, r)
}

func (h *handlers) listClips(c *fiber.Ctx) error {
	clips, err := h.svc.ListClips(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respondJSON(c, fiber.StatusOK, clips)
}

func queryFloat(c *fiber.Ctx, key string) (float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, apperr.New(apperr.ErrInvalidInput, "query parameter %q is required", key)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrInvalidRange, err, "query parameter %q is not a number", key)
	}
	return f, nil
}
