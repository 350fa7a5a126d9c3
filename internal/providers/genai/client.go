package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Options controls how the image-backend client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client is a lightweight facade over the image-generation backend. Work
// functions hand it a prompt and get back the URL of the stored artifact;
// auth and model selection live here.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// PortraitRequest describes one portrait generation call.
type PortraitRequest struct {
	Prompt      string
	AspectRatio string
	RequestID   string
}

type generateRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

type generateResponse struct {
	Image struct {
		URL    string `json:"url"`
		Format string `json:"format"`
	} `json:"image"`
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a backend client with sane defaults. A nil HTTP
// client gets replaced with one carrying a generation-sized timeout.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		model:      opts.Model,
		httpClient: client,
		logger:     opts.Logger,
	}, nil
}

// GeneratePortrait runs one generation call and returns the artifact URL.
func (c *Client) GeneratePortrait(ctx context.Context, req PortraitRequest) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:       c.model,
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		RequestID:   req.RequestID,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/images:generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("image backend call: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image backend status %d: %s", resp.StatusCode, out.Error.Message)
	}
	if out.Image.URL == "" {
		return "", fmt.Errorf("image backend returned no artifact")
	}

	c.logger.Debug().
		Str("request_id", req.RequestID).
		Dur("elapsed", time.Since(start)).
		Msg("portrait generated")
	return out.Image.URL, nil
}
