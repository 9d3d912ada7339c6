package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/topolab/internal/logging"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
)

// LocalID is the reserved identifier of the agent running next to the controller.
const LocalID = "local"

// APIPrefix is prepended to every path sent to a compute agent.
const APIPrefix = "/v2/compute"

// Connection describes how to reach a compute agent.
type Connection struct {
	Protocol string `json:"protocol" yaml:"protocol"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user,omitempty" yaml:"user"`
	Password string `json:"-" yaml:"password"`
}

// BaseURL returns the agent's API root, e.g. "https://example.com:84/v2/compute".
func (c Connection) BaseURL() string {
	protocol := c.Protocol
	if protocol == "" {
		protocol = "http"
	}
	return fmt.Sprintf("%s://%s%s", protocol, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), APIPrefix)
}

// Compute is the RPC proxy for one execution agent.
// All controller-to-agent traffic flows through it. Safe for concurrent use.
type Compute struct {
	id   string
	conn Connection

	client  *http.Client
	logger  *slog.Logger
	metrics *Metrics
	local   bool

	mu        sync.RWMutex
	connected bool
	version   string
}

var _ ports.ComputeClient = (*Compute)(nil)

// Option configures a Compute.
type Option func(*Compute)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Compute) {
		c.client = client
	}
}

// WithLogger sets a structured logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compute) {
		c.logger = logger
	}
}

// WithMetrics records every call in the given collectors.
func WithMetrics(m *Metrics) Option {
	return func(c *Compute) {
		c.metrics = m
	}
}

// WithLocal tells the proxy whether this controller process is configured as the local agent.
func WithLocal(local bool) Option {
	return func(c *Compute) {
		c.local = local
	}
}

// New creates a proxy for the agent identified by id.
// Using the reserved LocalID while the process is not configured as local is a
// configuration error, reported here rather than on first call.
func New(id string, conn Connection, opts ...Option) (*Compute, error) {
	c := &Compute{
		id:     id,
		conn:   conn,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if id == "" {
		return nil, domain.ConfigurationError("new compute", "compute id cannot be empty")
	}
	if id == LocalID && !c.local {
		return nil, domain.ConfigurationError("new compute",
			"compute id %q is reserved for the local agent but this controller is not configured as local", id)
	}

	c.logger = c.logger.With("compute_id", id)
	return c, nil
}

// ID returns the compute identifier.
func (c *Compute) ID() string { return c.id }

// Host returns the agent host.
func (c *Compute) Host() string { return c.conn.Host }

// Connection returns the connection descriptor.
func (c *Compute) Connection() Connection { return c.conn }

// Connected reports whether the last call reached the agent.
func (c *Compute) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Version returns the agent version, empty until Connect succeeded.
func (c *Compute) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func (c *Compute) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// Connect contacts the agent and records its version.
func (c *Compute) Connect(ctx context.Context) error {
	resp, err := c.Get(ctx, "/version")
	if err != nil {
		return err
	}
	version, _ := resp.JSON()["version"].(string)

	c.mu.Lock()
	c.version = version
	c.mu.Unlock()

	c.logger.Info("Compute connected", "version", version)
	return nil
}

// Get issues a GET request.
func (c *Compute) Get(ctx context.Context, path string) (*ports.Response, error) {
	return c.Call(ctx, http.MethodGet, path, nil)
}

// Post issues a POST request.
func (c *Compute) Post(ctx context.Context, path string, body any) (*ports.Response, error) {
	return c.Call(ctx, http.MethodPost, path, body)
}

// Put issues a PUT request.
func (c *Compute) Put(ctx context.Context, path string, body any) (*ports.Response, error) {
	return c.Call(ctx, http.MethodPut, path, body)
}

// Delete issues a DELETE request.
func (c *Compute) Delete(ctx context.Context, path string) (*ports.Response, error) {
	return c.Call(ctx, http.MethodDelete, path, nil)
}

// Call sends one request to the agent and maps the outcome:
// 409 is a conflict, any other non-2xx a backend command error, and a transport
// failure a connection error. Any answered call marks the compute connected.
func (c *Compute) Call(ctx context.Context, method, path string, body any) (*ports.Response, error) {
	op := method + " " + path
	start := time.Now()

	payload, err := encodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body for %s: %w", op, err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.conn.BaseURL()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request %s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.conn.User != "" {
		req.SetBasicAuth(c.conn.User, c.conn.Password)
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Cancellation says nothing about the agent's liveness.
			return nil, domain.ConnectionError(op, ctxErr)
		}
		c.setConnected(false)
		c.metrics.observe(c.id, method, domain.KindConnection, time.Since(start))
		c.logger.Warn("Compute unreachable", "op", op, "err", err)
		return nil, domain.ConnectionError(op, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.setConnected(false)
		c.metrics.observe(c.id, method, domain.KindConnection, time.Since(start))
		return nil, domain.ConnectionError(op, fmt.Errorf("failed to read response: %w", err))
	}
	c.setConnected(true)

	resp := &ports.Response{Status: httpResp.StatusCode, Raw: raw}
	if len(bytes.TrimSpace(raw)) > 0 {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			resp.Body = decoded
		}
	}

	switch {
	case httpResp.StatusCode == http.StatusConflict:
		c.metrics.observe(c.id, method, domain.KindConflict, time.Since(start))
		c.logger.Debug("Compute conflict", "op", op)
		return resp, &domain.Error{Kind: domain.KindConflict, Op: op, Status: resp.Status, Message: remoteMessage(resp)}
	case httpResp.StatusCode < 200 || httpResp.StatusCode >= 300:
		c.metrics.observe(c.id, method, domain.KindBackendCommand, time.Since(start))
		c.logger.Debug("Compute rejected request", "op", op, "status", resp.Status)
		return resp, domain.BackendCommandError(op, resp.Status, remoteMessage(resp))
	}

	c.metrics.observe(c.id, method, domain.KindUnknown, time.Since(start))
	c.logger.Debug("Compute call", "op", op, "status", resp.Status)
	return resp, nil
}

// WireBody is the public view of the compute; the password is never included.
func (c *Compute) WireBody() any {
	return map[string]any{
		"compute_id": c.id,
		"protocol":   c.conn.Protocol,
		"host":       c.conn.Host,
		"port":       c.conn.Port,
		"user":       c.conn.User,
		"connected":  c.Connected(),
		"version":    c.Version(),
	}
}

// Record returns the descriptor entry for this compute.
func (c *Compute) Record() domain.ComputeRecord {
	return domain.ComputeRecord{
		ComputeID: c.id,
		Protocol:  c.conn.Protocol,
		Host:      c.conn.Host,
		Port:      c.conn.Port,
		User:      c.conn.User,
	}
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	if w, ok := body.(ports.WireMarshaler); ok {
		body = w.WireBody()
	}
	return json.Marshal(body)
}

func remoteMessage(resp *ports.Response) string {
	if msg, ok := resp.JSON()["message"].(string); ok {
		return msg
	}
	return strings.TrimSpace(string(resp.Raw))
}
