package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/forPelevin/clipforge/internal/apperr"
)

const defaultRequestTimeout = 90 * time.Second

// Client talks to the OpenRouter chat completions endpoint.
type Client struct {
	key     string
	baseURL string
	timeout time.Duration
	client  *http.Client
}

func New(apiKey, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		key:     apiKey,
		baseURL: normalizeBaseURL(baseURL),
		timeout: timeout,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *Client) Configured() bool { return strings.TrimSpace(c.key) != "" }

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// complete sends msgs under a strict JSON schema and returns the JSON object
// found in the first choice.
func (c *Client) complete(ctx context.Context, model string, msgs []message, schemaName string, schema map[string]any) (string, error) {
	if !c.Configured() {
		return "", apperr.New(apperr.ErrProviderNotConfigured, "OPENROUTER_API_KEY is not set")
	}
	payload := map[string]any{
		"model":    model,
		"stream":   false,
		"messages": msgs,
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schemaName,
				"schema": schema,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/api/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", apperr.New(apperr.ErrProvider, "openrouter timeout after %s (model=%s)", c.timeout, model)
		}
		return "", apperr.Wrap(apperr.ErrProvider, errors.New(redact(err.Error(), c.key)), "openrouter request")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if readErr != nil {
			return "", apperr.New(apperr.ErrProvider, "openrouter status %d and read body failed: %v", resp.StatusCode, readErr)
		}
		return "", apperr.New(apperr.ErrProvider, "openrouter status %d: %s", resp.StatusCode, truncate(redact(string(rb), c.key), 400))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", apperr.Wrap(apperr.ErrProvider, err, "decode openrouter response")
	}
	if len(raw.Choices) == 0 {
		return "", apperr.New(apperr.ErrProvider, "openrouter returned no choices")
	}
	content, err := flattenContent(raw.Choices[0].Message.Content)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrProvider, err, "read model content")
	}
	clean, err := jsonObject(content)
	if err != nil {
		return "", apperr.Wrap(apperr.ErrProvider, err, "parse model content")
	}
	return clean, nil
}
