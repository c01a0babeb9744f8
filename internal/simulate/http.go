package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/okian/leaguemaker/pkg/logger"
)

// ErrUnexpectedStatus is returned when the service answers with a status the
// caller did not accept.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Client is a small JSON client for the service API.
type Client struct {
	baseURL string
	http    *http.Client
	verbose bool
	log     logger.Logger
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration, verbose bool) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		verbose: verbose,
		log:     logger.Get().Named("simulate.http"),
	}
}

// Do sends body (when non-nil) as JSON and decodes the response into out
// (when non-nil). It returns the status code; a status outside accept is
// reported as ErrUnexpectedStatus.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, accept ...int) (int, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Error(ctx, "failed to close response body", logger.Error(err))
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if c.verbose {
		c.log.Debug(ctx, "request",
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status", resp.StatusCode),
		)
	}

	if len(accept) > 0 && !slices.Contains(accept, resp.StatusCode) {
		return resp.StatusCode, fmt.Errorf("%w: %s %s answered %d: %s",
			ErrUnexpectedStatus, method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}
