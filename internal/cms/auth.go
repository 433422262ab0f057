package cms

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	domerrors "github.com/openct/openct-cms/internal/errors"
	"github.com/openct/openct-cms/internal/logger"
	"github.com/openct/openct-cms/internal/metrics"
	"github.com/openct/openct-cms/internal/scraper"
)

// LoginForm is the submittable state of a portal's login form.
type LoginForm struct {
	Action string     // absolute URL the form posts to
	Fields url.Values // default values: hidden inputs, checked boxes, selected options, first submit
}

// ParseLoginForm finds the login form on a page: the first form holding a
// password input, else the first form. Relative actions resolve against
// pageURL; an empty action posts back to pageURL.
func ParseLoginForm(doc *goquery.Document, pageURL string) (*LoginForm, bool) {
	forms := doc.Find("form")
	if forms.Length() == 0 {
		return nil, false
	}
	form := forms.FilterFunction(func(_ int, f *goquery.Selection) bool {
		return f.Find(`input[type="password"]`).Length() > 0
	}).First()
	if form.Length() == 0 {
		form = forms.First()
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, false
	}
	action, err := base.Parse(strings.TrimSpace(form.AttrOr("action", "")))
	if err != nil {
		return nil, false
	}

	fields := url.Values{}
	submitSeen := false
	form.Find("input").Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok || name == "" {
			return
		}
		value := in.AttrOr("value", "")
		switch strings.ToLower(in.AttrOr("type", "text")) {
		case "checkbox", "radio":
			if _, checked := in.Attr("checked"); checked {
				fields.Add(name, value)
			}
		case "submit":
			// Only the button that was "clicked" is sent
			if !submitSeen {
				fields.Add(name, value)
				submitSeen = true
			}
		case "image", "button", "file", "reset":
		default:
			fields.Add(name, value)
		}
	})
	form.Find("select").Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("name")
		if !ok || name == "" {
			return
		}
		opt := sel.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = sel.Find("option").First()
		}
		if opt.Length() == 0 {
			return
		}
		fields.Add(name, opt.AttrOr("value", strings.TrimSpace(opt.Text())))
	})

	return &LoginForm{Action: action.String(), Fields: fields}, true
}

// Values merges credentials over the form defaults.
func (f *LoginForm) Values(credentials map[string]string) url.Values {
	out := make(url.Values, len(f.Fields)+len(credentials))
	for k, v := range f.Fields {
		out[k] = append([]string(nil), v...)
	}
	for k, v := range credentials {
		out.Set(k, v)
	}
	return out
}

// Authenticator performs the form login flow against a resolved login URL.
type Authenticator struct {
	institution string
	marker      string
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

// NewAuthenticator creates an Authenticator for one institution. An empty
// marker means DefaultSuccessMarker.
func NewAuthenticator(institution, marker string, log *logger.Logger, m *metrics.Metrics) *Authenticator {
	if marker == "" {
		marker = DefaultSuccessMarker
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Authenticator{
		institution: institution,
		marker:      marker,
		logger:      log.WithModule("auth"),
		metrics:     m,
	}
}

// Login fetches the login page at loginURL, submits its form with
// credentials (form field name to value) and returns the landing page
// text when it contains the success marker.
//
// Transport failures come back as *errors.TransportError. A missing form
// or a landing page without the marker is an *errors.AuthenticationError.
func (a *Authenticator) Login(ctx context.Context, t Transport, loginURL string, credentials map[string]string) (string, error) {
	page, err := t.Get(ctx, loginURL, nil)
	if err != nil {
		a.metrics.RecordLogin(a.institution, "transport_error")
		return "", err
	}
	if !page.OK() {
		a.metrics.RecordLogin(a.institution, "transport_error")
		return "", domerrors.NewTransportError(loginURL, page.StatusCode,
			fmt.Errorf("login page returned status %d", page.StatusCode))
	}

	doc, err := page.Document()
	if err != nil {
		a.metrics.RecordLogin(a.institution, "form_missing")
		return "", domerrors.NewAuthenticationError(a.institution, fmt.Errorf("%w: %w", domerrors.ErrLoginFormNotFound, err))
	}
	form, ok := ParseLoginForm(doc, page.URL)
	if !ok {
		a.metrics.RecordLogin(a.institution, "form_missing")
		a.logger.WarnContext(ctx, "Login form not found", "url", page.URL)
		return "", domerrors.NewAuthenticationError(a.institution, domerrors.ErrLoginFormNotFound)
	}

	body := scraper.EncodeForm(form.Values(credentials), page.Charset())
	resp, err := t.PostForm(ctx, form.Action, http.Header{"Referer": {form.Action}}, body)
	if err != nil {
		a.metrics.RecordLogin(a.institution, "transport_error")
		return "", err
	}

	landing := resp.Text()
	if !strings.Contains(landing, a.marker) {
		a.metrics.RecordLogin(a.institution, "auth_failed")
		a.logger.InfoContext(ctx, "Login rejected", "status", resp.StatusCode)
		return "", domerrors.NewAuthenticationError(a.institution, domerrors.ErrLoginFailed)
	}

	a.metrics.RecordLogin(a.institution, "success")
	a.logger.InfoContext(ctx, "Login succeeded")
	return landing, nil
}
