package main

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/openct/openct-cms/internal/buildinfo"
	"github.com/openct/openct-cms/internal/cms"
	"github.com/openct/openct-cms/internal/config"
	"github.com/openct/openct-cms/internal/ctxutil"
	domerrors "github.com/openct/openct-cms/internal/errors"
	"github.com/openct/openct-cms/internal/logger"
	"github.com/openct/openct-cms/internal/metrics"
	"github.com/openct/openct-cms/internal/r2client"
	"github.com/openct/openct-cms/internal/scraper"
	"github.com/openct/openct-cms/internal/sentry"
	"github.com/openct/openct-cms/internal/snapshot"
	"github.com/openct/openct-cms/internal/storage"
)

// app holds what every command shares. Resources are created on first use
// so that commands which never touch the database do not create one.
type app struct {
	stdin  *bufio.Reader
	stdout io.Writer
	stderr io.Writer

	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	db *storage.DB
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:  bufio.NewReader(stdin),
		stdout: stdout,
		stderr: stderr,
	}
}

// setup loads configuration and wires logging, metrics and error reporting.
// A preset cfg is kept.
func (a *app) setup(cmd *cobra.Command) error {
	if a.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	a.log = logger.NewWithOptions(a.cfg.LogLevel, a.stderr, logger.Options{
		BetterStackToken:    a.cfg.BetterStack.Token,
		BetterStackEndpoint: a.cfg.BetterStack.Endpoint,
	})
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)

	if err := sentry.Initialize(sentry.Config{
		Token:       a.cfg.Sentry.Token,
		Host:        a.cfg.Sentry.Host,
		Environment: a.cfg.Sentry.Environment,
		Release:     buildinfo.Get().Release(),
		SampleRate:  a.cfg.Sentry.SampleRate,
	}); err != nil {
		a.log.WithError(err).Warn("Sentry disabled")
	}

	cmd.SetContext(ctxutil.WithRequestID(cmd.Context(), uuid.NewString()))
	return nil
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil && a.log != nil {
			a.log.WithError(err).Warn("Failed to close database")
		}
		a.db = nil
	}
	if a.registry != nil && a.cfg != nil {
		if err := metrics.WriteTextfile(a.registry, a.cfg.MetricsTextfile); err != nil {
			a.log.WithError(err).Warn("Failed to write metrics textfile")
		}
	}
	if sentry.IsEnabled() {
		sentry.Flush(config.SentryFlush)
	}
}

// report sends a failed command to error tracking.
func (a *app) report(cmd *cobra.Command, err error) {
	if cmd == nil || a.log == nil {
		return
	}
	ctx := ctxutil.PreserveTracing(cmd.Context())
	log := a.log.WithError(err).WithField("command", cmd.CommandPath())
	if stage, inst, ok := domerrors.StageOf(err); ok {
		log = log.WithField("stage", string(stage))
		if inst != "" {
			log = log.WithField("institution", inst)
		}
	}
	log.ErrorContext(ctx, "Command failed")
	sentry.CaptureCommandError(ctx, cmd.CommandPath(), err)
}

func (a *app) store(ctx context.Context) (*storage.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := storage.New(ctx, a.cfg.SQLitePath())
	if err != nil {
		return nil, domerrors.At(domerrors.StageDatabase).Wrap(err, "could not open the local database")
	}
	a.db = db
	return db, nil
}

// institutions builds the registry: built-in entries, then the user file,
// then the custom institution stored in the database.
func (a *app) institutions(ctx context.Context) (*cms.Registry, error) {
	db, err := a.store(ctx)
	if err != nil {
		return nil, err
	}

	var extra []cms.Institution
	custom, err := db.GetCustomInstitution(ctx)
	switch {
	case err == nil:
		extra = append(extra, *custom)
	case !domerrors.IsNotFound(err):
		return nil, err
	}

	reg, err := cms.LoadRegistry(a.cfg.InstitutionsFile, extra...)
	if err != nil {
		return nil, domerrors.At(domerrors.StageRegistry).Wrap(err, "the institution registry is invalid")
	}
	return reg, nil
}

func (a *app) lookup(ctx context.Context, name string) (cms.Institution, error) {
	reg, err := a.institutions(ctx)
	if err != nil {
		return cms.Institution{}, err
	}
	inst, err := reg.Lookup(name)
	if err != nil {
		return cms.Institution{}, domerrors.At(domerrors.StageLookup).
			Wrapf(err, "no institution named %q, see `openct institutions`", name)
	}
	return inst, nil
}

func (a *app) adapter(ctx context.Context) (*cms.Adapter, error) {
	db, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	client := scraper.NewClient(scraper.Options{
		Timeout: a.cfg.ScraperTimeout,
		Rate:    a.cfg.ScraperRate,
		Burst:   a.cfg.ScraperBurst,
		Metrics: a.metrics,
		Logger:  a.log,
	})
	re := a.cfg.ClassRegex
	return cms.NewAdapter(client, cms.Options{
		Logger:  a.log,
		Metrics: a.metrics,
		Overrides: cms.RegexOverrides{
			Name:    re.Name,
			Type:    re.Type,
			During:  re.During,
			Time:    re.Time,
			Place:   re.Place,
			Teacher: re.Teacher,
		},
		Advanced: db,
	}), nil
}

func (a *app) snapshots(ctx context.Context) (*snapshot.Manager, error) {
	r2 := a.cfg.R2
	if !r2.Enabled() {
		return nil, domerrors.At(domerrors.StageSnapshot).Wrap(errR2Disabled,
			"R2 is not configured, set the "+config.EnvR2AccountID+" family of variables")
	}
	client, err := r2client.New(ctx, r2client.Config{
		Endpoint:    r2.Endpoint(),
		AccessKeyID: r2.AccessKeyID,
		SecretKey:   r2.SecretAccessKey,
		BucketName:  r2.BucketName,
	})
	if err != nil {
		return nil, err
	}
	return snapshot.New(client, snapshot.Config{Prefix: r2.SnapshotPrefix, TempDir: a.cfg.DataDir}, a.log), nil
}

// prompt asks for a line on stderr and reads it from stdin.
func (a *app) prompt(label string) (string, error) {
	_, _ = fmt.Fprintf(a.stderr, "%s: ", label)
	line, err := a.stdin.ReadString('\n')
	if err != nil && (!stderrors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

var (
	errR2Disabled     = stderrors.New("r2 not configured")
	errSchemaMismatch = stderrors.New("table not found on page")
)

// userMessage picks the friendliest description of err.
func userMessage(err error) string {
	switch {
	case domerrors.IsAuthentication(err):
		return "login failed, check the username, password and captcha"
	case stderrors.Is(err, context.Canceled):
		return "interrupted"
	}
	return domerrors.GetUserMessage(err)
}

// credentialFlags binds the login flags shared by the fetching commands.
type credentialFlags struct {
	username string
	password string
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "portal username (default $"+config.EnvUsername+")")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "portal password (default $"+config.EnvPassword+")")
}

// credentials resolves flags, then the environment, then an interactive prompt.
func (f *credentialFlags) credentials(a *app) (cms.Credentials, error) {
	creds := cms.Credentials{
		Username: firstNonEmpty(f.username, os.Getenv(config.EnvUsername)),
		Password: firstNonEmpty(f.password, os.Getenv(config.EnvPassword)),
	}
	var err error
	if creds.Username == "" {
		if creds.Username, err = a.prompt("Username"); err != nil {
			return creds, err
		}
	}
	if creds.Password == "" {
		if creds.Password, err = a.prompt("Password"); err != nil {
			return creds, err
		}
	}
	return creds, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
