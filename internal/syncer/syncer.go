// Package syncer fetches an institution's schedule and grades and replaces
// the locally stored sets.
package syncer

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openct/openct-cms/internal/cms"
	"github.com/openct/openct-cms/internal/logger"
	"github.com/openct/openct-cms/internal/metrics"
	"github.com/openct/openct-cms/internal/scraper"
	"github.com/openct/openct-cms/internal/storage"
)

// Record kinds a sync can cover.
const (
	KindClass = "class"
	KindGrade = "grade"
)

// Fetcher logs in and extracts records; each call uses its own session.
// *cms.Adapter implements it.
type Fetcher interface {
	FetchClassInfos(ctx context.Context, inst cms.Institution, creds cms.Credentials) ([]cms.ClassInfo, error)
	FetchGradeInfos(ctx context.Context, inst cms.Institution, creds cms.Credentials) ([]cms.GradeInfo, error)
}

// Stats tracks sync results.
// All fields use atomic operations for concurrent access
type Stats struct {
	Classes    atomic.Int64
	Grades     atomic.Int64
	Mismatched atomic.Int64
}

// Report is a point-in-time copy of Stats.
type Report struct {
	Institution string        `json:"institution"`
	Classes     int64         `json:"classes"`
	Grades      int64         `json:"grades"`
	Mismatched  int64         `json:"schema_mismatches"`
	Duration    time.Duration `json:"duration_ns"`
}

// Options configures sync behavior
type Options struct {
	Kinds        []string         // Kinds to sync (class, grade); empty means both
	Retries      int              // Retries per fetch on transient transport errors
	RetryInitial time.Duration    // First retry delay
	Metrics      *metrics.Metrics // Optional metrics recorder
}

// Run syncs inst with creds. A kind whose table was not found keeps its
// previously stored set and counts as a mismatch. The first failing kind
// cancels the other; stores already replaced stay replaced.
func Run(ctx context.Context, f Fetcher, store storage.RecordRepository, inst cms.Institution, creds cms.Credentials, log *logger.Logger, opts Options) (*Stats, error) {
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithModule("syncer").WithInstitution(inst.Name)

	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = []string{KindClass, KindGrade}
	}
	for _, k := range kinds {
		if k != KindClass && k != KindGrade {
			return nil, fmt.Errorf("unknown record kind %q", k)
		}
	}

	stats := &Stats{}
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)

	if slices.Contains(kinds, KindClass) {
		g.Go(func() error {
			var classes []cms.ClassInfo
			err := scraper.RetryTransient(gctx, opts.Retries, opts.RetryInitial, func() error {
				var err error
				classes, err = f.FetchClassInfos(gctx, inst, creds)
				return err
			})
			if err != nil {
				log.WithError(err).ErrorContext(gctx, "Class sync failed")
				return fmt.Errorf("class: %w", err)
			}
			if cms.IsSchemaMismatch(classes, nil) {
				stats.Mismatched.Add(1)
				return nil
			}
			if err := store.ReplaceClasses(gctx, inst.Name, classes); err != nil {
				return fmt.Errorf("class: %w", err)
			}
			stats.Classes.Store(int64(len(classes)))
			return nil
		})
	}

	if slices.Contains(kinds, KindGrade) {
		g.Go(func() error {
			var grades []cms.GradeInfo
			err := scraper.RetryTransient(gctx, opts.Retries, opts.RetryInitial, func() error {
				var err error
				grades, err = f.FetchGradeInfos(gctx, inst, creds)
				return err
			})
			if err != nil {
				log.WithError(err).ErrorContext(gctx, "Grade sync failed")
				return fmt.Errorf("grade: %w", err)
			}
			if cms.IsSchemaMismatch(grades, nil) {
				stats.Mismatched.Add(1)
				return nil
			}
			if err := store.ReplaceGrades(gctx, inst.Name, grades); err != nil {
				return fmt.Errorf("grade: %w", err)
			}
			stats.Grades.Store(int64(len(grades)))
			return nil
		})
	}

	err := g.Wait()
	duration := time.Since(startTime)

	status := "success"
	switch {
	case err != nil:
		status = "error"
	case stats.Mismatched.Load() > 0:
		status = "partial"
	}
	opts.Metrics.RecordSync(inst.Name, status, duration.Seconds())

	log.WithField("duration", duration).
		WithField("kinds", strings.Join(kinds, ",")).
		WithField("classes", stats.Classes.Load()).
		WithField("grades", stats.Grades.Load()).
		WithField("schema_mismatches", stats.Mismatched.Load()).
		InfoContext(ctx, "Sync complete")

	if err != nil {
		return stats, fmt.Errorf("sync %s: %w", inst.Name, err)
	}
	return stats, nil
}

// Report returns a copy of s for inst.
func (s *Stats) Report(institution string, d time.Duration) Report {
	return Report{
		Institution: institution,
		Classes:     s.Classes.Load(),
		Grades:      s.Grades.Load(),
		Mismatched:  s.Mismatched.Load(),
		Duration:    d,
	}
}

// ParseKinds converts a comma-separated string to a kind list
func ParseKinds(kinds string) []string {
	var result []string
	for _, k := range strings.Split(kinds, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && !slices.Contains(result, k) {
			result = append(result, k)
		}
	}
	return result
}
