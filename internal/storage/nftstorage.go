package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"aimint/internal/infra"
)

const (
	// DefaultBaseURL is the public NFT.Storage API.
	DefaultBaseURL = "https://api.nft.storage"
	// DefaultGateway serves uploaded content over HTTPS.
	DefaultGateway = "ipfs.io"

	imageFilename = "image.jpeg"
	imageMIME     = "image/jpeg"
)

// ErrMissingToken indicates that the client was configured without credentials.
var ErrMissingToken = errors.New("storage: api token is required")

// Options configures the NFT.Storage client.
type Options struct {
	Token      string
	BaseURL    string
	Gateway    string
	HTTPClient *http.Client
	Logger     *infra.Logger
	Timeout    time.Duration
}

// Client uploads token metadata plus its image in one content-addressed
// submission.
type Client struct {
	token      string
	baseURL    string
	gateway    string
	httpClient *http.Client
	logger     *infra.Logger
}

// Upload is the metadata record and image stored for one token.
type Upload struct {
	Name        string
	Description string
	Image       []byte
}

// Stored is the outcome of a successful upload.
type Stored struct {
	CID         string
	URL         string
	MetadataURL string
}

type storeMeta struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Image       *string `json:"image"`
}

type storeResponse struct {
	OK    bool `json:"ok"`
	Value struct {
		IPNFT string `json:"ipnft"`
		URL   string `json:"url"`
	} `json:"value"`
	Error *struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with defaults applied.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	gateway := strings.TrimSpace(opts.Gateway)
	if gateway == "" {
		gateway = DefaultGateway
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{
		token:      strings.TrimSpace(opts.Token),
		baseURL:    baseURL,
		gateway:    gateway,
		httpClient: httpClient,
		logger:     logger,
	}
}

// MetadataURL derives the gateway URL of the metadata document for cid.
func MetadataURL(gateway, cid string) string {
	gateway = strings.TrimSpace(gateway)
	gateway = strings.TrimPrefix(gateway, "https://")
	gateway = strings.TrimPrefix(gateway, "http://")
	gateway = strings.TrimRight(gateway, "/")
	if gateway == "" {
		gateway = DefaultGateway
	}
	return "https://" + gateway + "/ipfs/" + cid + "/metadata.json"
}

// Store submits the image and metadata and returns the content identifier.
func (c *Client) Store(ctx context.Context, up Upload) (*Stored, error) {
	if c.token == "" {
		return nil, ErrMissingToken
	}
	if len(up.Image) == 0 {
		return nil, errors.New("storage: image is required")
	}
	body, contentType, err := encodeStoreForm(up)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/store", body)
	if err != nil {
		return nil, fmt.Errorf("storage: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read response: %w", err)
	}
	var decoded storeResponse
	decodeErr := json.Unmarshal(raw, &decoded)
	if resp.StatusCode >= 300 || (decodeErr == nil && !decoded.OK) {
		if decodeErr == nil && decoded.Error != nil && decoded.Error.Message != "" {
			return nil, fmt.Errorf("storage: status %d: %s", resp.StatusCode, decoded.Error.Message)
		}
		return nil, fmt.Errorf("storage: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("storage: decode response: %w", decodeErr)
	}
	cid := strings.TrimSpace(decoded.Value.IPNFT)
	if cid == "" {
		return nil, errors.New("storage: empty content identifier")
	}
	stored := &Stored{
		CID:         cid,
		URL:         decoded.Value.URL,
		MetadataURL: MetadataURL(c.gateway, cid),
	}
	c.logger.Debug().
		Str("cid", stored.CID).
		Str("metadata_url", stored.MetadataURL).
		Int("bytes", len(up.Image)).
		Msg("storage: stored token metadata")
	return stored, nil
}

// encodeStoreForm lays out the request the way the store endpoint expects:
// a "meta" JSON field with file values nulled, plus one part per file keyed by
// its property name.
func encodeStoreForm(up Upload) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	meta, err := json.Marshal(storeMeta{Name: up.Name, Description: up.Description})
	if err != nil {
		return nil, "", fmt.Errorf("storage: encode meta: %w", err)
	}
	if err := writer.WriteField("meta", string(meta)); err != nil {
		return nil, "", fmt.Errorf("storage: write meta: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, imageFilename))
	header.Set("Content-Type", imageMIME)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("storage: create image part: %w", err)
	}
	if _, err := part.Write(up.Image); err != nil {
		return nil, "", fmt.Errorf("storage: write image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("storage: close form: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}
