// Package billing is the HTTP client for the remote billing service that
// owns schemes, connections and tasks.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/location"
	"tableflip.dev/wbc/pkg/task"
)

// SessionCookie is the name of the cookie that carries the console session.
const SessionCookie = "session"

// IdempotencyHeader carries a key that lets the service recognise a retried
// creation request.
const IdempotencyHeader = "Idempotency-Key"

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Session is the session cookie value. Empty means anonymous.
	Session string
	// HTTPClient overrides the transport; its Jar is replaced.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the billing service. It is safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
}

var _ location.Fetcher = (*Client)(nil)

// New builds a client with a cookie jar holding the session cookie.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("billing: base url required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("billing: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("billing: base url %q must be http or https", raw)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("billing: cookie jar: %w", err)
	}

	hc := &http.Client{}
	if cfg.HTTPClient != nil {
		clone := *cfg.HTTPClient
		hc = &clone
	}
	hc.Jar = jar
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	}

	c := &Client{base: base, http: hc, logger: cfg.Logger}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.SetSession(cfg.Session)
	return c, nil
}

// SetSession replaces the session cookie sent with every request.
func (c *Client) SetSession(session string) {
	session = strings.TrimSpace(session)
	cookie := &http.Cookie{Name: SessionCookie, Value: session, Path: "/"}
	if session == "" {
		cookie.MaxAge = -1
	}
	c.http.Jar.SetCookies(c.base, []*http.Cookie{cookie})
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type call struct {
	op      string
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	u := *c.base
	u.Path = path.Join("/", c.base.Path, cl.path)
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", cl.op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	for k, v := range cl.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("billing request failed",
			zap.String("op", cl.op), zap.String("url", u.Path), zap.Error(err))
		return &TransportError{Op: cl.op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: cl.op, Err: fmt.Errorf("read response: %w", err)}
	}
	c.logger.Debug("billing request",
		zap.String("op", cl.op),
		zap.String("method", cl.method),
		zap.String("url", u.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	var env envelope
	decodeErr := json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Op: cl.op, Status: resp.StatusCode, Message: env.Message}
		if decodeErr != nil {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		if errors.Is(apiErr, ErrUnauthorized) {
			return fault.Authorization(cl.op, apiErr)
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("%s: decode response: %w", cl.op, decodeErr)
	}
	if !env.Success {
		return &APIError{Op: cl.op, Status: resp.StatusCode, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", cl.op, err)
	}
	return nil
}

// FetchSchemes returns the full scheme tree with zones and routes nested.
func (c *Client) FetchSchemes(ctx context.Context) ([]location.Scheme, error) {
	var out []location.Scheme
	err := c.do(ctx, call{
		op:     "list schemes",
		method: http.MethodGet,
		path:   "/api/schemes",
		query:  url.Values{"include": {"zones,routes"}},
	}, &out)
	return out, err
}

// ZonesOf lists the zones of one scheme.
func (c *Client) ZonesOf(ctx context.Context, schemeID string) ([]location.Zone, error) {
	var out []location.Zone
	err := c.do(ctx, call{
		op:     "list zones",
		method: http.MethodGet,
		path:   "/api/schemes/" + url.PathEscape(schemeID) + "/zones",
	}, &out)
	return out, err
}

// RoutesOf lists the routes of one zone.
func (c *Client) RoutesOf(ctx context.Context, zoneID string) ([]location.Route, error) {
	var out []location.Route
	err := c.do(ctx, call{
		op:     "list routes",
		method: http.MethodGet,
		path:   "/api/zones/" + url.PathEscape(zoneID) + "/routes",
	}, &out)
	return out, err
}

// SearchConnections lists connections matching the scope and search text.
func (c *Client) SearchConnections(ctx context.Context, q connection.Query) ([]connection.Connection, error) {
	var out []connection.Connection
	err := c.do(ctx, call{
		op:     "search connections",
		method: http.MethodGet,
		path:   "/api/connections",
		query:  q.Values(),
	}, &out)
	return out, err
}

// DisconnectionCandidates lists connections in an aggregate scope that meet
// the thresholds, as computed by the service.
func (c *Client) DisconnectionCandidates(ctx context.Context, q connection.Query) ([]connection.Connection, error) {
	var out []connection.Connection
	err := c.do(ctx, call{
		op:     "list disconnection candidates",
		method: http.MethodGet,
		path:   "/api/connections/disconnection-candidates",
		query:  q.Values(),
	}, &out)
	return out, err
}

// TaskTypes lists the task types a task can be created with.
func (c *Client) TaskTypes(ctx context.Context) ([]task.Type, error) {
	var out []task.Type
	err := c.do(ctx, call{op: "list task types", method: http.MethodGet, path: "/api/task-types"}, &out)
	return out, err
}

// Assignees lists field staff that can receive tasks.
func (c *Client) Assignees(ctx context.Context) ([]task.Assignee, error) {
	var out []task.Assignee
	err := c.do(ctx, call{
		op:     "list assignees",
		method: http.MethodGet,
		path:   "/api/users",
		query:  url.Values{"role": {"field"}},
	}, &out)
	return out, err
}

// CreateTask creates one task. A non-empty key is sent as the idempotency
// key so a retry of the same request is recognised.
func (c *Client) CreateTask(ctx context.Context, req task.CreateRequest, key string) (task.Task, error) {
	var out task.Task
	headers := map[string]string{}
	if key != "" {
		headers[IdempotencyHeader] = key
	}
	err := c.do(ctx, call{
		op:      "create task",
		method:  http.MethodPost,
		path:    "/api/tasks",
		body:    req,
		headers: headers,
	}, &out)
	return out, err
}

// AssignTask reassigns an existing task.
func (c *Client) AssignTask(ctx context.Context, taskID string, req task.AssignRequest) (task.Task, error) {
	var out task.Task
	err := c.do(ctx, call{
		op:     "assign task",
		method: http.MethodPatch,
		path:   "/api/tasks/" + url.PathEscape(taskID) + "/assign",
		body:   req,
	}, &out)
	return out, err
}
