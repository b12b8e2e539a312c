// Package httpcall sends scenario requests to the service under test and
// captures request and response snapshots for the report.
package httpcall

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/http2"
	"golang.org/x/time/rate"
)

const defaultMaxBody = 1 << 20 // 1MB

// Request is a snapshot of what was sent.
type Request struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// EmptyRequest is recorded when no request was sent.
func EmptyRequest() Request {
	return Request{Headers: map[string]string{}}
}

func (r Request) IsEmpty() bool {
	return r.Method == "" && r.URL == ""
}

// Response is a snapshot of what came back.
type Response struct {
	Code     int               `json:"code"`
	Body     string            `json:"body"`
	Headers  map[string]string `json:"headers"`
	Duration time.Duration     `json:"duration"`
}

// EmptyResponse is recorded when no exchange completed.
func EmptyResponse() Response {
	return Response{Headers: map[string]string{}}
}

func (r Response) IsEmpty() bool {
	return r.Code == 0
}

type Options struct {
	Timeout          time.Duration
	RateLimitPerSec  float64
	RateLimitBurst   int
	MaxRetries       int
	RetryMaxInterval time.Duration
	HTTP2            bool
	SkipTLSVerify    bool
	Proxy            string
	MaxBodySize      int64
}

// Caller is safe for concurrent use.
type Caller struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    Options
	logger  *slog.Logger
}

func New(opts Options, logger *slog.Logger) (*Caller, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = defaultMaxBody
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 1
	}

	transport, err := newTransport(opts)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if opts.RateLimitPerSec > 0 {
		limit = rate.Limit(opts.RateLimitPerSec)
	}

	return &Caller{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			// fuzzed requests are judged on the first response
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: rate.NewLimiter(limit, opts.RateLimitBurst),
		opts:    opts,
		logger:  logger,
	}, nil
}

func newTransport(opts Options) (http.RoundTripper, error) {
	dialer := &net.Dialer{Timeout: opts.Timeout}
	tlsConfig := &tls.Config{InsecureSkipVerify: opts.SkipTLSVerify}

	dial := dialer.DialContext
	var proxyURL *url.URL
	if opts.Proxy != "" {
		if d := ProxyDialer(opts.Proxy, dialer.DialContext); d != nil {
			dial = d
		} else if proxyURL = HTTPProxyURL(opts.Proxy); proxyURL == nil {
			return nil, fmt.Errorf("unsupported proxy %q", opts.Proxy)
		}
	}

	t := &http.Transport{
		DialContext:         dial,
		TLSClientConfig:     tlsConfig,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     30 * time.Second,
	}
	if proxyURL != nil {
		t.Proxy = http.ProxyURL(proxyURL)
	}
	if !opts.HTTP2 {
		return t, nil
	}
	if err := http2.ConfigureTransport(t); err != nil {
		return nil, fmt.Errorf("configure http2: %w", err)
	}
	if proxyURL != nil {
		return t, nil
	}

	// prior-knowledge h2c for plain http targets
	h2c := &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dial(ctx, network, addr)
		},
	}
	return &schemeRouter{plain: h2c, secure: t}, nil
}

type schemeRouter struct {
	plain  http.RoundTripper
	secure http.RoundTripper
}

func (r *schemeRouter) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "http" {
		return r.plain.RoundTrip(req)
	}
	return r.secure.RoundTrip(req)
}

// Call sends req, waiting for the rate limiter first. Transport failures are
// retried with exponential backoff; any HTTP response, whatever its code, is
// returned as is.
func (c *Caller) Call(ctx context.Context, req Request) (Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return EmptyResponse(), fmt.Errorf("rate limit: %w", err)
	}

	var resp Response
	attempt := 0
	op := func() error {
		attempt++
		r, err := c.do(ctx, req)
		if err != nil {
			var invalid *invalidRequestError
			if errors.As(err, &invalid) {
				return backoff.Permanent(err)
			}
			c.logger.Debug("request attempt failed", "method", req.Method, "url", req.URL, "attempt", attempt, "error", err)
			return err
		}
		resp = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	if c.opts.RetryMaxInterval > 0 {
		b.MaxInterval = c.opts.RetryMaxInterval
	}
	retries := uint64(max(0, c.opts.MaxRetries))
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)); err != nil {
		return EmptyResponse(), fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	return resp, nil
}

type invalidRequestError struct{ err error }

func (e *invalidRequestError) Error() string { return "invalid request: " + e.err.Error() }
func (e *invalidRequestError) Unwrap() error { return e.err }

func (c *Caller) do(ctx context.Context, req Request) (Response, error) {
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Response{}, &invalidRequestError{err: err}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, c.opts.MaxBodySize))
	if err != nil {
		return Response{}, fmt.Errorf("read body: %w", err)
	}

	headers := make(map[string]string, len(httpResp.Header))
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}

	return Response{
		Code:     httpResp.StatusCode,
		Body:     string(data),
		Headers:  headers,
		Duration: time.Since(start),
	}, nil
}
