// Package cutout talks to an HTTP background-removal server.
//
// The server receives a base64 encoded photo and answers either with a JSON
// body carrying the base64 encoded cutout or with the cutout image itself.
package cutout

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultServerURL = "http://localhost:7000"
	DefaultEndpoint  = "/v1/remove"
	DefaultTimeout   = 2 * time.Minute
	DefaultMaxBytes  = 32 << 20
)

type Client struct {
	baseURL    string
	endpoint   string
	model      string
	maxBytes   int64
	httpClient *http.Client
}

// RemoveRequest is the JSON body posted to the server
type RemoveRequest struct {
	Model  string `json:"model,omitempty"`
	Image  string `json:"image"`
	Format string `json:"format"`
}

// RemoveResponse is the JSON answer of the server
type RemoveResponse struct {
	Image string `json:"image"`
	Error string `json:"error,omitempty"`
}

// NewClient creates a client for serverURL. An empty model lets the server
// pick its default.
func NewClient(serverURL, model string, timeout time.Duration) *Client {
	if serverURL == "" {
		serverURL = DefaultServerURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:  strings.TrimSuffix(serverURL, "/"),
		endpoint: DefaultEndpoint,
		model:    model,
		maxBytes: DefaultMaxBytes,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Remove returns the photo with its background made transparent, PNG encoded.
func (c *Client) Remove(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	req := RemoveRequest{
		Model:  c.model,
		Image:  base64.StdEncoding.EncodeToString(data),
		Format: "png",
	}

	body, contentType, err := c.sendRequest(ctx, c.endpoint, req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if strings.HasPrefix(contentType, "image/") {
		if len(body) == 0 {
			return nil, fmt.Errorf("empty image in response")
		}
		return body, nil
	}

	var resp RemoveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("server error: %s", resp.Error)
	}
	if resp.Image == "" {
		return nil, fmt.Errorf("no image in response")
	}

	return decodeImageField(resp.Image)
}

// HealthCheck verifies the server answers on its health endpoint
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("server not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) sendRequest(ctx context.Context, endpoint string, payload interface{}) ([]byte, string, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > c.maxBytes {
		return nil, "", fmt.Errorf("response larger than %d bytes", c.maxBytes)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// decodeImageField accepts plain base64 or a data URL
func decodeImageField(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, fmt.Errorf("malformed data URL")
		}
		s = s[i+1:]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image in response")
	}
	return data, nil
}
