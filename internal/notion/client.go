// Package notion reads documents and their block trees from the Notion REST API.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/goliatone/go-mirror/internal/blocks"
	"github.com/goliatone/go-mirror/internal/logging"
	"github.com/goliatone/go-mirror/internal/properties"
	"github.com/goliatone/go-mirror/internal/runtimeconfig"
	"github.com/goliatone/go-mirror/pkg/interfaces"
)

const (
	headerVersion  = "Notion-Version"
	maxErrorBody   = 64 << 10
	defaultTimeout = 30 * time.Second
)

var (
	ErrDatabaseRequired = errors.New("notion: database id required")
	ErrNodeRequired     = errors.New("notion: node id required")
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("notion: status %d", e.Status)
	}
	return fmt.Sprintf("notion: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// Option customises a Client.
type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

func WithLogger(logger interfaces.Logger) Option {
	return func(c *Client) {
		c.logger = logging.Ensure(logger)
	}
}

// WithLimiter replaces the request limiter built from the config.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// Client is a throttled API client. It satisfies the document source used by
// the reconcile engine and the child source used by the converter.
type Client struct {
	cfg     runtimeconfig.SourceConfig
	base    string
	http    *http.Client
	limiter *rate.Limiter
	logger  interfaces.Logger
}

func NewClient(cfg runtimeconfig.SourceConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		cfg:     cfg,
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logging.NoOp(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// QueryDocuments returns one page of the active document set, newest first.
func (c *Client) QueryDocuments(ctx context.Context, cursor string) (properties.Batch, error) {
	databaseID := strings.TrimSpace(c.cfg.DatabaseID)
	if databaseID == "" {
		return properties.Batch{}, ErrDatabaseRequired
	}

	body := queryRequest{
		PageSize:    c.cfg.PageSize,
		StartCursor: cursor,
	}
	if c.cfg.StatusProperty != "" {
		body.Filter = &queryFilter{
			Property: c.cfg.StatusProperty,
			Select:   &selectCondition{Equals: c.cfg.StatusValue},
		}
	}
	if c.cfg.SortProperty != "" {
		body.Sorts = []querySort{{Property: c.cfg.SortProperty, Direction: "descending"}}
	}

	var resp listResponse[pageObject]
	if err := c.do(ctx, http.MethodPost, "/databases/"+url.PathEscape(databaseID)+"/query", body, &resp); err != nil {
		return properties.Batch{}, fmt.Errorf("notion: query database: %w", err)
	}

	batch := properties.Batch{
		Pages:   make([]properties.Page, 0, len(resp.Results)),
		HasMore: resp.HasMore,
	}
	if resp.NextCursor != nil {
		batch.NextCursor = *resp.NextCursor
	}
	for _, obj := range resp.Results {
		if obj.InTrash || obj.Archived {
			continue
		}
		batch.Pages = append(batch.Pages, obj.page())
	}
	c.logger.Debug("notion.query.page", "count", len(batch.Pages), "has_more", batch.HasMore)
	return batch, nil
}

// ListChildren returns one page of the children of nodeID.
func (c *Client) ListChildren(ctx context.Context, nodeID, cursor string) (blocks.Page, error) {
	nodeID = strings.TrimSpace(nodeID)
	if nodeID == "" {
		return blocks.Page{}, ErrNodeRequired
	}
	query := url.Values{}
	if c.cfg.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(c.cfg.PageSize))
	}
	if cursor != "" {
		query.Set("start_cursor", cursor)
	}
	path := "/blocks/" + url.PathEscape(nodeID) + "/children"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var resp listResponse[blockObject]
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return blocks.Page{}, fmt.Errorf("notion: list children of %s: %w", nodeID, err)
	}

	page := blocks.Page{
		Nodes:   make([]blocks.Node, 0, len(resp.Results)),
		HasMore: resp.HasMore,
	}
	if resp.NextCursor != nil {
		page.NextCursor = *resp.NextCursor
	}
	for _, obj := range resp.Results {
		if obj.InTrash || obj.Archived {
			continue
		}
		page.Nodes = append(page.Nodes, obj.node())
	}
	return page, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set(headerVersion, c.cfg.APIVersion)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("notion.request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(started),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var body errorResponse
		if raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); readErr == nil && json.Unmarshal(raw, &body) == nil {
			apiErr.Code = body.Code
			apiErr.Message = body.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
