// Package scraper provides the outbound HTTP capability used by the CMS engine.
//
// A Client owns the shared transport, user agent selection and rate limiting.
// Each login flow gets its own Session (own cookie jar) from Client.NewSession,
// so nothing a portal sets leaks between invocations.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/corpix/uarand"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/publicsuffix"

	domerrors "github.com/openct/openct-cms/internal/errors"
	"github.com/openct/openct-cms/internal/logger"
	"github.com/openct/openct-cms/internal/metrics"
)

// maxBodySize is the default cap on a buffered portal response.
const maxBodySize = 16 << 20

// ErrBodyTooLarge is returned (inside a TransportError) when a response
// exceeds the client's body cap.
var ErrBodyTooLarge = errors.New("response body too large")

// Options configures a Client.
type Options struct {
	Timeout time.Duration
	Rate    float64 // requests per second per host, 0 disables limiting
	Burst   int

	// MaxBodySize caps each buffered response. 0 means 16 MiB.
	MaxBodySize int64

	// UserAgent pins the UA string. Empty picks a random browser UA per session.
	UserAgent string

	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Client is an HTTP client for CMS portals with rate limiting and
// gzip/charset handling. It is safe for concurrent use.
type Client struct {
	transport   http.RoundTripper
	timeout     time.Duration
	rateLimiter *RateLimiter
	userAgent   string
	maxBodySize int64
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

// NewClient creates a new scraper client
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = maxBodySize
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	return &Client{
		transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		timeout:     opts.Timeout,
		rateLimiter: NewRateLimiter(opts.Rate, opts.Burst, opts.Metrics),
		userAgent:   opts.UserAgent,
		maxBodySize: opts.MaxBodySize,
		metrics:     opts.Metrics,
		logger:      log.WithModule("scraper"),
	}
}

// NewSession starts an isolated browsing session with an empty cookie jar.
func (c *Client) NewSession() *Session {
	// cookiejar.New only fails on a nil-incompatible options value
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	ua := c.userAgent
	if ua == "" {
		ua = uarand.GetRandom()
	}

	follow := &http.Client{
		Transport: c.transport,
		Jar:       jar,
		Timeout:   c.timeout,
	}
	noFollow := &http.Client{
		Transport: c.transport,
		Jar:       jar,
		Timeout:   c.timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Session{
		client:    c,
		follow:    follow,
		noFollow:  noFollow,
		jar:       jar,
		userAgent: ua,
	}
}

// do performs a single request. Non-2xx statuses are not errors here;
// callers decide what a status means for them.
func (c *Client) do(ctx context.Context, hc *http.Client, req *http.Request, ua string) (*Response, error) {
	if err := c.rateLimiter.Wait(ctx, req.URL.Host); err != nil {
		return nil, domerrors.NewTransportError(req.URL.String(), 0, err)
	}

	req.Header.Set("User-Agent", ua)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Accept-Encoding", "gzip")

	start := time.Now()
	resp, err := hc.Do(req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		c.metrics.RecordScraperRequest(req.Method, "error", elapsed)
		c.logger.WithError(err).DebugContext(ctx, "Request failed",
			"method", req.Method, "url", req.URL.String())
		return nil, domerrors.NewTransportError(req.URL.String(), 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readBody(resp, c.maxBodySize)
	c.metrics.RecordScraperRequest(req.Method, statusClass(resp.StatusCode), elapsed)
	if err != nil {
		return nil, domerrors.NewTransportError(req.URL.String(), resp.StatusCode, err)
	}

	c.logger.DebugContext(ctx, "Request completed",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration_ms", int64(elapsed*1000),
	)

	finalURL := req.URL.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		URL:        finalURL,
	}, nil
}

// readBody drains the response, transparently inflating gzip bodies.
// Bodies longer than limit fail rather than being cut short, since a
// truncated page would parse as a partial table.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	var reader io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress gzip: %w", err)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}

	body, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}
	return body, nil
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}
