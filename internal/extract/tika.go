package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TikaClient extracts text through an Apache Tika server's /tika
// endpoint. A slow or wedged server is cut off by the client timeout so
// a single extraction can never hold an indexing worker indefinitely.
type TikaClient struct {
	baseURL string
	client  *http.Client
}

// NewTikaClient creates a client with the given per-request timeout.
func NewTikaClient(baseURL string, timeout time.Duration) *TikaClient {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &TikaClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Extract sends the document body to Tika and returns the plain text.
func (c *TikaClient) Extract(ctx context.Context, r io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/tika", r)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("tika error (status %d): %s", resp.StatusCode, string(body))
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(text), nil
}

// Health checks that the Tika server is reachable.
func (c *TikaClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/version", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("tika unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tika unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}
