package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/meigma/resx/codec"
	"github.com/meigma/resx/resource"
)

// HTTPCaller dispatches calls to HTTP RPC servers. Node identifiers
// resolve to base URLs through a static map.
type HTTPCaller struct {
	client  *http.Client
	timeout time.Duration

	mu    sync.RWMutex
	nodes map[string]string
}

// HTTPOption configures an HTTPCaller.
type HTTPOption func(*HTTPCaller)

// WithClient sets the HTTP client used for requests.
func WithClient(client *http.Client) HTTPOption {
	return func(c *HTTPCaller) {
		c.client = client
	}
}

// WithTimeout bounds each call. Zero means no per-call timeout beyond
// the caller's context.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPCaller) {
		c.timeout = d
	}
}

// WithNode maps a node identifier to a base URL.
func WithNode(node, baseURL string) HTTPOption {
	return func(c *HTTPCaller) {
		c.nodes[node] = baseURL
	}
}

// NewHTTPCaller creates a caller over the given node map.
func NewHTTPCaller(opts ...HTTPOption) *HTTPCaller {
	c := &HTTPCaller{
		client: http.DefaultClient,
		nodes:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	return c
}

// SetNode maps (or remaps) a node identifier to a base URL.
func (c *HTTPCaller) SetNode(node, baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[node] = baseURL
}

// Call implements Caller.
func (c *HTTPCaller) Call(ctx context.Context, node, service, method string, args, reply any) error {
	c.mu.RLock()
	base, ok := c.nodes[node]
	c.mu.RUnlock()
	if !ok {
		return resource.Internalf("no transport route to node %q", node)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := codec.Marshal(args)
	if err != nil {
		return resource.Internalf("encode rpc arguments: %w", err)
	}

	url := fmt.Sprintf("%s/rpc/%s/%s", base, service, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return resource.Internalf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/cbor")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return resource.Internalf("rpc timeout calling %s.%s on %s", service, method, node)
		}
		return resource.Internalf("rpc transport: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resource.Internalf("rpc %s.%s on %s: status %d", service, method, node, resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resource.Internalf("read rpc response: %w", err)
	}
	var wire wireResponse
	if err := codec.Unmarshal(payload, &wire); err != nil {
		return resource.Internalf("decode rpc response: %w", err)
	}
	return finishCall(wire, reply)
}

// Local dispatches calls to in-process servers, keyed by node
// identifier. It backs single-process deployments and the two-node
// test topologies.
type Local struct {
	mu    sync.RWMutex
	nodes map[string]*Server
}

// NewLocal creates an empty in-process caller.
func NewLocal() *Local {
	return &Local{nodes: make(map[string]*Server)}
}

// Register binds a node identifier to an in-process server.
func (l *Local) Register(node string, server *Server) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nodes[node] = server
}

// Call implements Caller without leaving the process. The argument
// payload still round-trips through the codec, so in-process calls
// exercise the same encoding as remote ones.
func (l *Local) Call(ctx context.Context, node, service, method string, args, reply any) error {
	l.mu.RLock()
	server := l.nodes[node]
	l.mu.RUnlock()
	if server == nil {
		return resource.Internalf("no transport route to node %q", node)
	}

	server.mu.RLock()
	handler := server.services[service][method]
	server.mu.RUnlock()
	if handler == nil {
		return resource.Internalf("node %q has no rpc handler %s.%s", node, service, method)
	}

	encoded, err := codec.Marshal(args)
	if err != nil {
		return resource.Internalf("encode rpc arguments: %w", err)
	}
	return finishCall(dispatch(ctx, handler, encoded), reply)
}
