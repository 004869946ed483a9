package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/plwatchdog/internal/router/cookies"
)

// UserAgent is the browser identity the router's CSRF checks expect.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.163 Safari/537.36"

// Config defines client configuration
type Config struct {
	// Host is the router address, e.g. 192.168.0.1.
	Host string
	// Timeout per request, 0 keeps the transport default (none).
	Timeout time.Duration
	// RPS limits requests per second, 0 is unlimited.
	RPS float64
}

// Client wraps resty with rate limiting and a per-attempt cookie jar
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter
	Jar     *cookies.Jar

	host      string
	transport *http.Transport
}

// StatusError reports a non-2xx response
type StatusError struct {
	Method string
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Status)
}

// New creates a client talking plain HTTP to the router. Each restart
// attempt creates its own client so no session state survives an attempt.
func New(cfg Config, logger *zap.Logger) *Client {
	// Pooled transport from the retryable client; retries themselves stay
	// off because the login exchange is not idempotent.
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil
	transport, _ := retryClient.HTTPClient.Transport.(*http.Transport)

	jar := cookies.New()

	restyClient := resty.New()
	restyClient.
		SetBaseURL("http://"+cfg.Host).
		SetRetryCount(0).
		SetCookieJar(jar).
		SetHeader("User-Agent", UserAgent)
	if transport != nil {
		restyClient.SetTransport(transport)
	}
	if cfg.Timeout > 0 {
		restyClient.SetTimeout(cfg.Timeout)
	}
	restyClient.JSONMarshal = sonic.Marshal
	restyClient.JSONUnmarshal = sonic.Unmarshal

	restyClient.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug("Router response",
			zap.String("method", resp.Request.Method),
			zap.String("url", resp.Request.URL),
			zap.Int("status", resp.StatusCode()),
			zap.Int("bytes", len(resp.Body())),
			zap.Duration("took", resp.Time()))
		return nil
	})

	limiter := rate.NewLimiter(rate.Inf, 0) // Unlimited by default
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Client{
		Resty:     restyClient,
		Limiter:   limiter,
		Jar:       jar,
		host:      cfg.Host,
		transport: transport,
	}
}

// Host returns the router address
func (c *Client) Host() string {
	return c.host
}

// URL returns the absolute URL of path on the router
func (c *Client) URL(path string) string {
	return "http://" + c.host + path
}

// Request creates new request with rate limiting
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}
	return c.Resty.R().SetContext(ctx), nil
}

// Do sends method to path and returns the body. Any non-2xx status is an
// error.
func (c *Client) Do(ctx context.Context, method, path string, configure func(*resty.Request)) ([]byte, int, error) {
	req, err := c.Request(ctx)
	if err != nil {
		return nil, 0, err
	}
	if configure != nil {
		configure(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, 0, err
	}
	if !resp.IsSuccess() {
		return resp.Body(), resp.StatusCode(), &StatusError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode(),
		}
	}
	return resp.Body(), resp.StatusCode(), nil
}

// Get fetches path and returns the body as text
func (c *Client) Get(ctx context.Context, path string, headers map[string]string) (string, error) {
	body, _, err := c.Do(ctx, http.MethodGet, path, func(r *resty.Request) {
		r.SetHeaders(headers)
	})
	return string(body), err
}

// Close drops idle connections
func (c *Client) Close() {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
}

// BrowserHeaders returns the headers a browser sends for an XHR issued from
// the page at referer.
func BrowserHeaders(host, referer string) map[string]string {
	if !strings.HasPrefix(referer, "/") {
		referer = "/" + referer
	}
	return map[string]string{
		"Accept":           "*/*",
		"Origin":           "http://" + host,
		"Referer":          "http://" + host + referer,
		"User-Agent":       UserAgent,
		"X-Requested-With": "XMLHttpRequest",
	}
}
