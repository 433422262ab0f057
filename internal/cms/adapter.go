package cms

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openct/openct-cms/internal/ctxutil"
	domerrors "github.com/openct/openct-cms/internal/errors"
	"github.com/openct/openct-cms/internal/logger"
	"github.com/openct/openct-cms/internal/metrics"
	"github.com/openct/openct-cms/internal/scraper"
)

// AdvancedCustomSource supplies user-edited class schemas by school name.
// Implementations return an error satisfying errors.IsNotFound when the
// school has none.
type AdvancedCustomSource interface {
	GetAdvancedCustom(ctx context.Context, schoolName string) (*AdvancedCustomInfo, error)
}

// Options configures an Adapter. Every field is optional.
type Options struct {
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	// Overrides are applied to the class schema before every extraction.
	Overrides RegexOverrides

	// Advanced, when set, is consulted before Overrides.
	Advanced AdvancedCustomSource
}

// Adapter runs the shared login, fetch and extract pipeline for any
// registered institution. It holds no per-call state.
type Adapter struct {
	client    *scraper.Client
	resolver  *Resolver
	root      *logger.Logger
	logger    *logger.Logger
	metrics   *metrics.Metrics
	overrides RegexOverrides
	advanced  AdvancedCustomSource
}

// NewAdapter creates an Adapter on top of client.
func NewAdapter(client *scraper.Client, opts Options) *Adapter {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Adapter{
		client:    client,
		resolver:  NewResolver(log, opts.Metrics),
		root:      log,
		logger:    log.WithModule("adapter"),
		metrics:   opts.Metrics,
		overrides: opts.Overrides,
		advanced:  opts.Advanced,
	}
}

// NewSession opens a fresh cookie jar and resolves inst's login URL.
func (a *Adapter) NewSession(ctx context.Context, inst Institution) *Session {
	ctx = ctxutil.WithInstitution(ctx, inst.Name)
	t := a.client.NewSession()
	return &Session{
		adapter:   a,
		inst:      inst,
		transport: t,
		loginURL:  a.resolver.Resolve(ctx, t, inst.Config),
	}
}

// FetchClassInfos logs in and returns the schedule, 7 entries per row.
// A nil slice with a nil error means the schedule table was not found.
func (a *Adapter) FetchClassInfos(ctx context.Context, inst Institution, creds Credentials) ([]ClassInfo, error) {
	return a.NewSession(ctx, inst).FetchClassInfos(ctx, creds)
}

// FetchGradeInfos logs in and returns one GradeInfo per grade row.
// A nil slice with a nil error means the grade table was not found.
func (a *Adapter) FetchGradeInfos(ctx context.Context, inst Institution, creds Credentials) ([]GradeInfo, error) {
	return a.NewSession(ctx, inst).FetchGradeInfos(ctx, creds)
}

// ClassSchema returns the schema used for inst's schedule: the stored
// advanced custom schema when there is one, else the registry's, with the
// runtime regex overrides applied on top.
func (a *Adapter) ClassSchema(ctx context.Context, inst Institution) (ClassTableSchema, error) {
	schema := inst.Config.ClassTable

	if a.advanced != nil {
		custom, err := a.advanced.GetAdvancedCustom(ctx, inst.Name)
		switch {
		case err == nil && custom != nil:
			schema = custom.ClassTable
		case err == nil, domerrors.IsNotFound(err):
		default:
			a.logger.WithError(err).WarnContext(ctx, "Advanced custom schema unavailable, using registry schema")
		}
	}

	return schema.WithOverrides(a.overrides)
}

// Session is one login flow against one institution. Use it once: CAPTCHA
// (optional), then a single fetch.
type Session struct {
	adapter   *Adapter
	inst      Institution
	transport Transport
	loginURL  string
}

// LoginURL is the resolved login URL, including any dynamic segment.
func (s *Session) LoginURL() string {
	return s.loginURL
}

// Institution returns the entry the session was opened for.
func (s *Session) Institution() Institution {
	return s.inst
}

// SaveCAPTCHA downloads the CAPTCHA image for this session to dest.
func (s *Session) SaveCAPTCHA(ctx context.Context, dest string) error {
	return SaveCAPTCHA(ctx, s.transport, s.loginURL, dest)
}

// Login submits creds and returns the landing page text.
func (s *Session) Login(ctx context.Context, creds Credentials) (string, error) {
	ctx = ctxutil.WithInstitution(ctx, s.inst.Name)
	auth := NewAuthenticator(s.inst.Name, s.inst.Config.Marker(), s.adapter.root, s.adapter.metrics)
	return auth.Login(ctx, s.transport, s.loginURL, s.inst.Config.LoginFields.FormValues(creds))
}

// FetchClassInfos logs in and extracts the schedule.
func (s *Session) FetchClassInfos(ctx context.Context, creds Credentials) ([]ClassInfo, error) {
	ctx = ctxutil.WithInstitution(ctx, s.inst.Name)
	html, err := s.loginAndFetch(ctx, creds, s.inst.ClassPage)
	if err != nil {
		return nil, err
	}

	schema, err := s.adapter.ClassSchema(ctx, s.inst)
	if err != nil {
		return nil, err
	}

	infos, ok := ExtractClassInfos(html, schema)
	if !ok {
		s.schemaMismatch(ctx, "class", schema.TableID)
		return nil, nil
	}
	s.adapter.metrics.RecordParsed(s.inst.Name, "class", len(infos))
	return infos, nil
}

// FetchGradeInfos logs in and extracts the grade table.
func (s *Session) FetchGradeInfos(ctx context.Context, creds Credentials) ([]GradeInfo, error) {
	ctx = ctxutil.WithInstitution(ctx, s.inst.Name)
	html, err := s.loginAndFetch(ctx, creds, s.inst.GradePage)
	if err != nil {
		return nil, err
	}

	grades, ok := ExtractGradeInfos(html, s.inst.Config.GradeTable)
	if !ok {
		s.schemaMismatch(ctx, "grade", s.inst.Config.GradeTable.TableID)
		return nil, nil
	}
	s.adapter.metrics.RecordParsed(s.inst.Name, "grade", len(grades))
	return grades, nil
}

func (s *Session) loginAndFetch(ctx context.Context, creds Credentials, page string) (string, error) {
	if page == "" {
		return "", fmt.Errorf("%s: %w", s.inst.Name, errNoPage)
	}
	if _, err := s.Login(ctx, creds); err != nil {
		return "", err
	}

	target, err := s.inst.PageURL(s.loginURL, page, creds.Username)
	if err != nil {
		return "", domerrors.NewTransportError(page, 0, err)
	}

	resp, err := s.transport.Get(ctx, target, http.Header{"Referer": {s.loginURL}})
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", domerrors.NewTransportError(target, resp.StatusCode,
			fmt.Errorf("page returned status %d", resp.StatusCode))
	}
	return resp.Text(), nil
}

func (s *Session) schemaMismatch(ctx context.Context, kind, tableID string) {
	s.adapter.metrics.RecordSchemaMismatch(s.inst.Name, kind)
	s.adapter.logger.WarnContext(ctx, "Target table not found, check the institution schema",
		"kind", kind,
		"table_id", tableID,
	)
}

// IsSchemaMismatch reports whether a fetch result means the table was not found.
func IsSchemaMismatch[T any](records []T, err error) bool {
	return err == nil && records == nil
}

// errNoPage guards against institutions without a configured page.
var errNoPage = errors.New("institution has no page configured")
