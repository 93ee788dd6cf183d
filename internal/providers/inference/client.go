package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"aimint/internal/infra"
)

// DefaultModelURL is the hosted stable-diffusion endpoint used when no model
// URL is configured.
const DefaultModelURL = "https://api-inference.huggingface.co/models/stabilityai/stable-diffusion-2"

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("inference: api key is required")

// Options configures the inference client.
type Options struct {
	APIKey         string
	ModelURL       string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client calls a hosted text-to-image model and returns the raw image.
type Client struct {
	apiKey     string
	modelURL   string
	httpClient *http.Client
	logger     *infra.Logger
}

// Image is the binary payload returned by the model.
type Image struct {
	Data        []byte
	ContentType string
}

// DataURL encodes the image for inline browser preview.
func (img *Image) DataURL() string {
	if img == nil || len(img.Data) == 0 {
		return ""
	}
	return "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

type generationRequest struct {
	Inputs  string            `json:"inputs"`
	Options generationOptions `json:"options"`
}

type generationOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type errorResponse struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	modelURL := strings.TrimSpace(opts.ModelURL)
	if modelURL == "" {
		modelURL = DefaultModelURL
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		modelURL:   modelURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// ModelURL returns the configured model endpoint.
func (c *Client) ModelURL() string {
	return c.modelURL
}

// Generate sends prompt to the model exactly once and returns the image bytes.
func (c *Client) Generate(ctx context.Context, prompt string) (*Image, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("inference: prompt is required")
	}
	body, err := json.Marshal(generationRequest{
		Inputs:  prompt,
		Options: generationOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, fmt.Errorf("inference: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("inference: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("inference: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("inference: read response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error != "" {
			return nil, fmt.Errorf("inference: status %d: %s", resp.StatusCode, detail.Error)
		}
		return nil, fmt.Errorf("inference: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if isJSON(contentType) {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error != "" {
			return nil, fmt.Errorf("inference: %s", detail.Error)
		}
		return nil, errors.New("inference: expected image data, got json")
	}
	if len(raw) == 0 {
		return nil, errors.New("inference: empty image")
	}
	if contentType == "" {
		contentType = http.DetectContentType(raw)
	}
	c.logger.Debug().
		Str("model", c.modelURL).
		Str("content_type", contentType).
		Int("bytes", len(raw)).
		Dur("elapsed", time.Since(start)).
		Msg("inference: generated image")
	return &Image{Data: raw, ContentType: contentType}, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
