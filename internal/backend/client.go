// Package backend is the REST client for the escuchas API. Every call carries the
// backend's session cookie of one browser session; the console never sees a token.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	maxBodyBytes   = 8 << 20
	defaultTimeout = 20 * time.Second
)

// Caller is the subset used by feature packages; *Conn implements it.
type Caller interface {
	Get(ctx context.Context, path string, query url.Values, dest any) error
	Post(ctx context.Context, path string, body any, dest any) error
}

// Observer receives one notification per completed backend call.
type Observer func(method, path string, status int, elapsed time.Duration)

// Client holds the shared transport configuration.
type Client struct {
	baseURL   *url.URL
	transport http.RoundTripper
	timeout   time.Duration
	logger    *slog.Logger
	observer  Observer
}

// Option customises a Client.
type Option func(*Client)

// WithTransport overrides the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithObserver installs a call observer (metrics).
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger sets the logger used for transport failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a Client for the backend rooted at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend: base url %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL:   u,
		transport: http.DefaultTransport,
		timeout:   timeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// StoredCookie is the persisted form of a backend cookie.
type StoredCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Conn is a Client bound to the cookie jar of one browser session.
type Conn struct {
	client *Client
	jar    *cookiejar.Jar
	http   *http.Client
}

// Conn returns a connection seeded with the given backend cookies.
func (c *Client) Conn(cookies []StoredCookie) *Conn {
	// cookiejar.New only fails with a non-nil PublicSuffixList error path.
	jar, _ := cookiejar.New(nil)
	if len(cookies) > 0 {
		seeded := make([]*http.Cookie, 0, len(cookies))
		for _, ck := range cookies {
			seeded = append(seeded, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"})
		}
		jar.SetCookies(c.baseURL, seeded)
	}
	return &Conn{
		client: c,
		jar:    jar,
		http:   &http.Client{Transport: c.transport, Timeout: c.timeout, Jar: jar},
	}
}

// Cookies returns the backend cookies currently held by the connection.
func (cn *Conn) Cookies() []StoredCookie {
	current := cn.jar.Cookies(cn.client.baseURL)
	out := make([]StoredCookie, 0, len(current))
	for _, ck := range current {
		out = append(out, StoredCookie{Name: ck.Name, Value: ck.Value})
	}
	return out
}

// Get issues a GET and decodes the JSON answer into dest.
func (cn *Conn) Get(ctx context.Context, path string, query url.Values, dest any) error {
	target := cn.client.resolve(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	return cn.do(req, path, dest)
}

// Post issues a POST with a JSON body and decodes the JSON answer into dest.
func (cn *Conn) Post(ctx context.Context, path string, body any, dest any) error {
	var payload io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cn.client.resolve(path).String(), payload)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return cn.do(req, path, dest)
}

type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (cn *Conn) do(req *http.Request, path string, dest any) error {
	req.Header.Set("Accept", "application/json")
	start := time.Now()
	resp, err := cn.http.Do(req)
	if err != nil {
		cn.client.observe(req.Method, path, 0, time.Since(start))
		cn.client.logger.Warn("backend call failed", slog.String("path", path), slog.Any("error", err))
		return &Error{Err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
	}
	defer func() { _ = resp.Body.Close() }()
	cn.client.observe(req.Method, path, resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &Error{Status: resp.StatusCode, Err: fmt.Errorf("%w: read body: %v", ErrUnavailable, err)}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	message := env.Message
	if message == "" {
		message = env.Error
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, message)
	}
	if decodeErr != nil {
		return &Error{Status: resp.StatusCode, Err: fmt.Errorf("%w: decode body: %v", ErrRejected, decodeErr)}
	}
	if (env.Success != nil && !*env.Success) || (env.Success == nil && env.Error != "") {
		return &Error{Status: resp.StatusCode, Message: message, Err: ErrRejected}
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &Error{Status: resp.StatusCode, Err: fmt.Errorf("%w: decode body: %v", ErrRejected, err)}
	}
	return nil
}

func (c *Client) resolve(path string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return &u
}

func (c *Client) observe(method, path string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(method, path, status, elapsed)
	}
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}
