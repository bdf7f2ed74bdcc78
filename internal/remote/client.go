package remote

import (
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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"notify_poller/internal/model"
)

var ErrMalformedResponse = errors.New("malformed response body")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

type contextKey string

const contextKeyUserID contextKey = "user_id"

// WithUserID attaches the acting user to ctx. The client sends it as
// X-User-ID and uses it to pick the bearer token.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyUserID).(string)
	return id
}

// Client talks to the notification store REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	log        *zap.Logger
}

func NewClient(baseURL string, tokens TokenSource, logger *zap.Logger) *Client {
	return NewClientWithHTTP(baseURL, tokens, logger, &http.Client{
		Timeout:   30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

func NewClientWithHTTP(baseURL string, tokens TokenSource, logger *zap.Logger, httpClient *http.Client) *Client {
	if tokens == nil {
		tokens = StaticToken("")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		log:        logger,
	}
}

type listData struct {
	Notifications []json.RawMessage `json:"notifications"`
	HasMore       bool              `json:"hasMore"`
}

type countData struct {
	Count int `json:"count"`
}

func (c *Client) ListUnread(ctx context.Context) ([]model.Notification, error) {
	var data listData
	if err := c.do(ctx, http.MethodGet, "/notifications?unread_only=true", &data); err != nil {
		return nil, err
	}
	return c.decodeList(data.Notifications), nil
}

func (c *Client) ListPage(ctx context.Context, page, limit int) ([]model.Notification, bool, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var data listData
	if err := c.do(ctx, http.MethodGet, "/notifications?"+q.Encode(), &data); err != nil {
		return nil, false, err
	}
	return c.decodeList(data.Notifications), data.HasMore, nil
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var data countData
	if err := c.do(ctx, http.MethodGet, "/notifications/unread-count", &data); err != nil {
		return 0, err
	}
	return data.Count, nil
}

func (c *Client) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/notifications/"+url.PathEscape(id)+"/read", nil)
}

func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/notifications/mark-all-read", nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(id), nil)
}

// decodeList decodes each notification on its own so one bad entry does
// not discard the rest of the list.
func (c *Client) decodeList(raw []json.RawMessage) []model.Notification {
	out := make([]model.Notification, 0, len(raw))
	for _, item := range raw {
		var n model.Notification
		if err := json.Unmarshal(item, &n); err != nil {
			c.log.Warn("skipping malformed notification", zap.Error(err))
			continue
		}
		out = append(out, n)
	}
	return out
}

func (c *Client) do(ctx context.Context, method, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	userID := userIDFrom(ctx)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	token, err := c.tokens.Token(ctx, userID)
	switch {
	case err != nil:
		c.log.Warn("missing credentials, sending request without authorization",
			zap.String("user_id", userID),
			zap.String("path", path),
			zap.Error(err),
		)
	case token == "":
		c.log.Warn("empty bearer token, sending request without authorization", zap.String("user_id", userID))
	default:
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if result == nil || len(body) == 0 || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, result); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	return nil
}
