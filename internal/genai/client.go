// Package genai calls a generateContent-style image generation endpoint.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"facecast/internal/common/config"
	httpclient "facecast/internal/common/http"
	"facecast/internal/common/logger"
	"facecast/internal/models"
)

var (
	ErrNoContent         = errors.New("no content returned")
	ErrUpstreamStatus    = errors.New("unexpected upstream status")
	ErrMalformedResponse = errors.New("malformed response")
)

const maxResponseBytes = 64 << 20

type Config struct {
	BaseURL   string
	Model     string
	Timeout   time.Duration
	UserAgent string
}

func ConfigFrom(cfg *config.Config) *Config {
	return &Config{
		BaseURL:   cfg.APIs.GenAI.BaseURL,
		Model:     cfg.APIs.GenAI.Model,
		Timeout:   config.GetDuration(cfg.APIs.GenAI.Timeout),
		UserAgent: cfg.App.Name + "/" + cfg.App.Version,
	}
}

type Client struct {
	config   *Config
	endpoint string
	http     *httpclient.Client
	logger   logger.Logger
}

func NewClient(cfg *Config, log logger.Logger) *Client {
	return NewClientWithHTTP(cfg, httpclient.NewClient(cfg.Timeout, cfg.UserAgent), log)
}

// NewClientWithHTTP lets tests point the client at an httptest server.
func NewClientWithHTTP(cfg *Config, hc *httpclient.Client, log logger.Logger) *Client {
	endpoint := strings.TrimRight(cfg.BaseURL, "/") +
		"/v1beta/models/" + url.PathEscape(cfg.Model) + ":generateContent"
	return &Client{
		config:   cfg,
		endpoint: endpoint,
		http:     hc,
		logger: log.With(map[string]interface{}{
			"component": "genai",
			"model":     cfg.Model,
		}),
	}
}

func (c *Client) Model() string {
	return c.config.Model
}

// Generate sends the reference image and prompt and returns the first image
// and the concatenated text of the response. A response with neither is
// ErrNoContent.
func (c *Client) Generate(ctx context.Context, apiKey string, ref models.ReferenceArtifact, prompt string) (models.Payload, error) {
	body, err := json.Marshal(buildRequest(ref, prompt))
	if err != nil {
		return models.Payload{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.Payload{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return models.Payload{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.Payload{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Payload{}, fmt.Errorf("%w %d: %s", ErrUpstreamStatus, resp.StatusCode, upstreamMessage(raw))
	}

	if err := validateResponse(raw); err != nil {
		return models.Payload{}, err
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return models.Payload{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	payload := extractPayload(&decoded)
	if !payload.HasImage() && payload.Text == "" {
		if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
			return models.Payload{}, fmt.Errorf("%w (blocked: %s)", ErrNoContent, decoded.PromptFeedback.BlockReason)
		}
		return models.Payload{}, ErrNoContent
	}

	c.logger.Debug("generation response received", map[string]interface{}{
		"durationMs": time.Since(start).Milliseconds(),
		"hasImage":   payload.HasImage(),
		"textLength": len(payload.Text),
	})

	return payload, nil
}

func buildRequest(ref models.ReferenceArtifact, prompt string) *generateRequest {
	return &generateRequest{
		Contents: []requestContent{{
			Role: "user",
			Parts: []requestPart{
				{InlineData: &inlineData{
					MIMEType: ref.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(ref.Data),
				}},
				{Text: prompt},
			},
		}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}
}

func extractPayload(resp *generateResponse) models.Payload {
	var payload models.Payload
	var texts []string
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if blob := part.blob(); blob != nil && payload.Image == "" {
				mime := blob.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				payload.Image = "data:" + mime + ";base64," + blob.Data
			}
			if t := strings.TrimSpace(part.Text); t != "" {
				texts = append(texts, t)
			}
		}
	}
	payload.Text = strings.Join(texts, "\n")
	return payload
}

func upstreamMessage(raw []byte) string {
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error.Message != "" {
		return er.Error.Message
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}
