package cms

import (
	"context"
	"io"
	"net/http"
	"regexp"

	"github.com/openct/openct-cms/internal/logger"
	"github.com/openct/openct-cms/internal/metrics"
	"github.com/openct/openct-cms/internal/scraper"
)

// Transport is the HTTP capability the engine needs. *scraper.Session
// implements it; every method is blocking and reports 3xx responses as-is
// only from GetNoRedirect.
type Transport interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*scraper.Response, error)
	GetNoRedirect(ctx context.Context, rawURL string, header http.Header) (*scraper.Response, error)
	PostForm(ctx context.Context, rawURL string, header http.Header, body string) (*scraper.Response, error)
	Download(ctx context.Context, rawURL string, w io.Writer) (int64, error)
}

// dynamicSegmentPattern finds the session token ASP.NET cookieless portals
// embed in redirect paths, e.g. /(S(x1y2z3))/default2.aspx.
var dynamicSegmentPattern = regexp.MustCompile(`\(.*\)+`)

// Resolver discovers the per-session login URL of dynamic portals.
type Resolver struct {
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewResolver creates a Resolver. Both arguments may be nil.
func NewResolver(log *logger.Logger, m *metrics.Metrics) *Resolver {
	if log == nil {
		log = logger.Discard()
	}
	return &Resolver{logger: log.WithModule("resolver"), metrics: m}
}

// Resolve returns the effective login URL for cfg. Static portals get
// cfg.LoginURL() back. Dynamic portals are probed once without following
// redirects; a 302 whose Location carries a parenthesized token yields
// LoginURL + token + "/". Anything else, network failures included,
// falls back to LoginURL. Resolve never fails and never mutates cfg.
func (r *Resolver) Resolve(ctx context.Context, t Transport, cfg InstitutionConfig) string {
	base := cfg.LoginURL()
	if !cfg.DynamicLoginURL {
		r.metrics.RecordSessionResolution("static")
		return base
	}

	resp, err := t.GetNoRedirect(ctx, base, nil)
	if err != nil {
		r.logger.WithError(err).WarnContext(ctx, "Dynamic login URL probe failed, using base URL",
			"url", base)
		r.metrics.RecordSessionResolution("fallback")
		return base
	}

	token := dynamicSegment(resp)
	if token == "" {
		r.logger.DebugContext(ctx, "No dynamic segment in response, using base URL",
			"url", base, "status", resp.StatusCode)
		r.metrics.RecordSessionResolution("fallback")
		return base
	}

	r.metrics.RecordSessionResolution("dynamic")
	return base + token + "/"
}

func dynamicSegment(resp *scraper.Response) string {
	if resp.StatusCode != http.StatusFound {
		return ""
	}
	location := resp.Location()
	if location == "" {
		return ""
	}
	return dynamicSegmentPattern.FindString(location)
}
