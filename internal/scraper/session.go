package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	domerrors "github.com/openct/openct-cms/internal/errors"
)

// Session is one browsing context against a portal. It carries its own cookie
// jar and must not be shared between login flows.
type Session struct {
	client    *Client
	follow    *http.Client
	noFollow  *http.Client
	jar       http.CookieJar
	userAgent string
}

// Get fetches rawURL following redirects.
func (s *Session) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	req, err := newRequest(ctx, http.MethodGet, rawURL, nil, header)
	if err != nil {
		return nil, err
	}
	return s.client.do(ctx, s.follow, req, s.userAgent)
}

// GetNoRedirect fetches rawURL and returns a 3xx response as-is, so the
// caller can inspect its Location header.
func (s *Session) GetNoRedirect(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	req, err := newRequest(ctx, http.MethodGet, rawURL, nil, header)
	if err != nil {
		return nil, err
	}
	return s.client.do(ctx, s.noFollow, req, s.userAgent)
}

// PostForm posts an already-encoded application/x-www-form-urlencoded body.
// Use EncodeForm to build body in the portal's charset.
func (s *Session) PostForm(ctx context.Context, rawURL string, header http.Header, body string) (*Response, error) {
	req, err := newRequest(ctx, http.MethodPost, rawURL, strings.NewReader(body), header)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.client.do(ctx, s.follow, req, s.userAgent)
}

// Download fetches rawURL and streams the raw body into w.
// Any non-2xx status is a TransportError.
func (s *Session) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	req, err := newRequest(ctx, http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")

	resp, err := s.client.do(ctx, s.follow, req, s.userAgent)
	if err != nil {
		return 0, err
	}
	if !resp.OK() {
		return 0, domerrors.NewTransportError(rawURL, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	n, err := w.Write(resp.Body)
	if err != nil {
		return int64(n), domerrors.NewTransportError(rawURL, resp.StatusCode, fmt.Errorf("write destination: %w", err))
	}
	return int64(n), nil
}

// Cookies returns the cookies the session would send to rawURL.
func (s *Session) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.jar.Cookies(u)
}

func newRequest(ctx context.Context, method, rawURL string, body io.Reader, header http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, domerrors.NewTransportError(rawURL, 0, fmt.Errorf("failed to create request: %w", err))
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	return req, nil
}
