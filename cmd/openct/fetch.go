package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/openct/openct-cms/internal/cms"
	"github.com/openct/openct-cms/internal/ctxutil"
	domerrors "github.com/openct/openct-cms/internal/errors"
	"github.com/openct/openct-cms/internal/scraper"
	"github.com/openct/openct-cms/internal/storage"
	"github.com/openct/openct-cms/internal/syncer"
)

// recordKind binds one record type to its session fetch and storage calls.
type recordKind[T any] struct {
	kind    string
	fetch   func(*cms.Session, context.Context, cms.Credentials) ([]T, error)
	cached  func(*storage.DB, context.Context, string) ([]T, error)
	replace func(*storage.DB, context.Context, string, []T) error
}

func newClassesCmd(a *app) *cobra.Command {
	return newFetchCmd(a, "classes", "Log in and print the class schedule.", recordKind[cms.ClassInfo]{
		kind:    syncer.KindClass,
		fetch:   (*cms.Session).FetchClassInfos,
		cached:  (*storage.DB).GetClasses,
		replace: (*storage.DB).ReplaceClasses,
	})
}

func newGradesCmd(a *app) *cobra.Command {
	return newFetchCmd(a, "grades", "Log in and print the grade table.", recordKind[cms.GradeInfo]{
		kind:    syncer.KindGrade,
		fetch:   (*cms.Session).FetchGradeInfos,
		cached:  (*storage.DB).GetGrades,
		replace: (*storage.DB).ReplaceGrades,
	})
}

func newFetchCmd[T any](a *app, use, short string, k recordKind[T]) *cobra.Command {
	var (
		creds       credentialFlags
		captchaPath string
		save        bool
		cached      bool
	)

	cmd := &cobra.Command{
		Use:   use + " <institution>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxutil.WithInstitution(cmd.Context(), args[0])
			inst, err := a.lookup(ctx, args[0])
			if err != nil {
				return err
			}
			db, err := a.store(ctx)
			if err != nil {
				return err
			}

			if cached {
				records, err := k.cached(db, ctx, inst.Name)
				if err != nil {
					return err
				}
				return a.printJSON(records)
			}

			adapter, err := a.adapter(ctx)
			if err != nil {
				return err
			}
			c, err := creds.credentials(a)
			if err != nil {
				return err
			}

			var records []T
			if captchaPath != "" {
				// The code is only valid for the session that served the image
				session := adapter.NewSession(ctx, inst)
				if c.Captcha, err = a.captcha(ctx, session, captchaPath); err != nil {
					return err
				}
				records, err = k.fetch(session, ctx, c)
			} else {
				err = scraper.RetryTransient(ctx, a.cfg.Retries, a.cfg.RetryInitial, func() error {
					var err error
					records, err = k.fetch(adapter.NewSession(ctx, inst), ctx, c)
					return err
				})
			}

			wrap := domerrors.At(domerrors.StageFetch).For(inst.Name)
			if err != nil {
				return wrap.Wrapf(err, "could not fetch %s from %s: %v", use, inst.Name, err)
			}
			if cms.IsSchemaMismatch(records, nil) {
				return wrap.Wrapf(errSchemaMismatch,
					"the %s table was not found on %s, check the institution schema", k.kind, inst.Name)
			}

			if save {
				if err := k.replace(db, ctx, inst.Name, records); err != nil {
					return err
				}
			}
			return a.printJSON(records)
		},
	}

	creds.bind(cmd)
	cmd.Flags().StringVar(&captchaPath, "captcha-file", "", "save the portal's captcha image here and prompt for its code")
	cmd.Flags().BoolVar(&save, "save", false, "replace the stored set with the fetched records")
	cmd.Flags().BoolVar(&cached, "cached", false, "print the stored set without contacting the portal")
	cmd.MarkFlagsMutuallyExclusive("cached", "save")
	return cmd
}

// captcha saves the session's image to path and asks for the code shown.
func (a *app) captcha(ctx context.Context, session *cms.Session, path string) (string, error) {
	if err := session.SaveCAPTCHA(ctx, path); err != nil {
		return "", domerrors.At(domerrors.StageCaptcha).For(session.Institution().Name).Wrapf(err, "could not download the captcha: %v", err)
	}
	return a.prompt("Captcha code (image saved to " + path + ")")
}

func newCaptchaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "captcha <institution> <dest>",
		Short: "Resolve the login URL and save the portal's captcha image.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxutil.WithInstitution(cmd.Context(), args[0])
			inst, err := a.lookup(ctx, args[0])
			if err != nil {
				return err
			}
			adapter, err := a.adapter(ctx)
			if err != nil {
				return err
			}

			session := adapter.NewSession(ctx, inst)
			if err := session.SaveCAPTCHA(ctx, args[1]); err != nil {
				return domerrors.At(domerrors.StageCaptcha).For(inst.Name).Wrapf(err, "could not download the captcha: %v", err)
			}
			return a.printJSON(map[string]string{
				"institution": inst.Name,
				"login_url":   session.LoginURL(),
				"path":        args[1],
			})
		},
	}
}

func newLoginCmd(a *app) *cobra.Command {
	var (
		creds       credentialFlags
		captchaPath string
	)

	cmd := &cobra.Command{
		Use:   "login <institution>",
		Short: "Check that the credentials are accepted by the portal.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxutil.WithInstitution(cmd.Context(), args[0])
			inst, err := a.lookup(ctx, args[0])
			if err != nil {
				return err
			}
			adapter, err := a.adapter(ctx)
			if err != nil {
				return err
			}
			c, err := creds.credentials(a)
			if err != nil {
				return err
			}

			session := adapter.NewSession(ctx, inst)
			if captchaPath != "" {
				if c.Captcha, err = a.captcha(ctx, session, captchaPath); err != nil {
					return err
				}
			}
			if _, err := session.Login(ctx, c); err != nil {
				return domerrors.At(domerrors.StageLogin).For(inst.Name).Wrapf(err, "could not log in to %s: %v", inst.Name, err)
			}
			return a.printJSON(map[string]any{
				"institution":   inst.Name,
				"login_url":     session.LoginURL(),
				"authenticated": true,
			})
		},
	}

	creds.bind(cmd)
	cmd.Flags().StringVar(&captchaPath, "captcha-file", "", "save the portal's captcha image here and prompt for its code")
	return cmd
}

func newSyncCmd(a *app) *cobra.Command {
	var (
		creds credentialFlags
		kinds string
	)

	cmd := &cobra.Command{
		Use:   "sync <institution>",
		Short: "Fetch classes and grades and replace the stored sets.",
		Long: `sync logs in once per record kind and replaces what is stored locally.
A kind whose table is not found keeps its stored set. Portals that enforce
a captcha cannot be synced unattended; use "classes --captcha-file --save".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxutil.WithInstitution(cmd.Context(), args[0])
			inst, err := a.lookup(ctx, args[0])
			if err != nil {
				return err
			}

			db, err := a.store(ctx)
			if err != nil {
				return err
			}
			adapter, err := a.adapter(ctx)
			if err != nil {
				return err
			}
			c, err := creds.credentials(a)
			if err != nil {
				return err
			}

			start := time.Now()
			stats, err := syncer.Run(ctx, adapter, db, inst, c, a.log, syncer.Options{
				Kinds:        syncer.ParseKinds(kinds),
				Retries:      a.cfg.Retries,
				RetryInitial: a.cfg.RetryInitial,
				Metrics:      a.metrics,
			})
			if err != nil {
				return domerrors.At(domerrors.StageSync).For(inst.Name).Wrapf(err, "sync of %s failed: %v", inst.Name, err)
			}
			return a.printJSON(stats.Report(inst.Name, time.Since(start)))
		},
	}

	creds.bind(cmd)
	cmd.Flags().StringVar(&kinds, "kinds", "", "comma-separated record kinds to sync (class,grade)")
	return cmd
}
