package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskmanager/internal/models"
)

const maxBackoff = 30 * time.Second

// Client is a thin HTTP client for the record service. It handles
// Bearer authentication, the project header, JSON (de)serialization and
// retries with exponential backoff on HTTP 429 and 503.
type Client struct {
	baseURL    string
	projectID  string
	publicKey  string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	ProjectID  string
	PublicKey  string
	Timeout    time.Duration
	MaxRetries int
	// Backoff is the first retry delay when the service sends no Retry-After.
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient creates a record service client.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("remote: empty base url")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		projectID:  opts.ProjectID,
		publicKey:  opts.PublicKey,
		httpClient: opts.HTTPClient,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		logger:     opts.Logger.With(slog.String("store", "remote")),
	}, nil
}

// StatusError is a non-2xx answer from the record service.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("record service %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("record service %s %s: status %d", e.Method, e.Path, e.Code)
}

// Unwrap classifies the status: 404 is a missing record, anything else a
// backend failure.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return models.ErrNotFound
	}
	return models.ErrBackend
}

func tablePath(table string) string {
	return "/tables/" + table + "/records"
}

// fetch runs a query against a table.
func (c *Client) fetch(ctx context.Context, table string, params fetchParams) ([]record, error) {
	var resp dataResponse[[]record]
	if err := c.do(ctx, http.MethodPost, tablePath(table)+"/fetch", params, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure("fetch "+table, resp.Message)
	}
	return resp.Data, nil
}

// get reads a single record by id.
func (c *Client) get(ctx context.Context, table string, id int64) (record, error) {
	var resp dataResponse[record]
	path := tablePath(table) + "/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure("get "+table, resp.Message)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("%s record %d: %w", table, id, models.ErrNotFound)
	}
	return resp.Data, nil
}

// create inserts one record and returns the stored copy.
func (c *Client) create(ctx context.Context, table string, fields map[string]any) (record, error) {
	return c.mutate(ctx, http.MethodPost, table, mutateParams{Records: []map[string]any{fields}})
}

// update sends the changed fields of one record; fields must carry "Id".
func (c *Client) update(ctx context.Context, table string, fields map[string]any) (record, error) {
	return c.mutate(ctx, http.MethodPatch, table, mutateParams{Records: []map[string]any{fields}})
}

// remove deletes records by id.
func (c *Client) remove(ctx context.Context, table string, ids ...int64) error {
	_, err := c.mutate(ctx, http.MethodDelete, table, mutateParams{RecordIds: ids})
	return err
}

func (c *Client) mutate(ctx context.Context, method, table string, params mutateParams) (record, error) {
	var resp resultsResponse
	if err := c.do(ctx, method, tablePath(table), params, &resp); err != nil {
		return nil, err
	}
	op := strings.ToLower(method) + " " + table
	if !resp.Success {
		return nil, failure(op, resp.Message)
	}

	var first record
	for _, r := range resp.Results {
		if !r.Success {
			return nil, failure(op, r.describe())
		}
		if first == nil {
			first = r.Data
		}
	}
	return first, nil
}

func failure(op, msg string) error {
	if msg == "" {
		msg = "request was not successful"
	}
	return fmt.Errorf("%s: %w: %s", op, models.ErrBackend, msg)
}

// do builds the request, sets auth headers, retries rate limited and
// unavailable answers and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.publicKey)
		req.Header.Set("X-Project-Id", c.projectID)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("executing request %s %s: %w: %w", method, path, models.ErrBackend, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w: %w", models.ErrBackend, readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			lastErr = statusError(method, path, resp.StatusCode, respBody)
			if attempt == c.maxRetries {
				break
			}

			wait := c.retryAfter(resp, attempt)
			c.logger.Warn("record service busy, retrying",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Duration("wait", wait),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return statusError(method, path, resp.StatusCode, respBody)
		}

		if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response from %s %s: %w: %w", method, path, models.ErrBackend, err)
		}
		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

func statusError(method, path string, code int, body []byte) *StatusError {
	e := &StatusError{Method: method, Path: path, Code: code}
	var env struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &env) == nil {
		e.Message = env.Message
	}
	return e
}

// retryAfter reads the Retry-After header in seconds and otherwise falls
// back to exponential backoff from c.backoff.
func (c *Client) retryAfter(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
			return min(time.Duration(seconds)*time.Second, maxBackoff)
		}
	}
	return min(c.backoff*time.Duration(1<<uint(attempt)), maxBackoff)
}
