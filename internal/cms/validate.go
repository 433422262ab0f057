package cms

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Validate reports every problem with s. The table id and start marker
// are required; empty cell expressions just leave their field blank.
func (s ClassTableSchema) Validate() error {
	var errs []error
	if s.TableID == "" || s.InfoStart == "" {
		errs = append(errs, errors.New("table_id and info_start are required"))
	}
	if s.DailyClasses < 0 {
		errs = append(errs, fmt.Errorf("daily_classes cannot be negative, got %d", s.DailyClasses))
	}
	for _, f := range []struct{ name, expr string }{
		{"info_start", s.InfoStart},
		{"name_re", s.NameRE},
		{"type_re", s.TypeRE},
		{"during_re", s.DuringRE},
		{"time_re", s.TimeRE},
		{"place_re", s.PlaceRE},
		{"teacher_re", s.TeacherRE},
	} {
		if f.expr == "" {
			continue
		}
		if _, err := regexp.Compile(f.expr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
		}
	}
	return errors.Join(errs...)
}

// Validate reports every column index below -1.
func (s GradeTableSchema) Validate() error {
	var errs []error
	if s.TableID == "" {
		errs = append(errs, errors.New("grade_table.table_id is required"))
	}
	for _, f := range []struct {
		name  string
		index int
	}{
		{"class_code", s.ClassCode},
		{"class_name", s.ClassName},
		{"class_type", s.ClassType},
		{"points", s.Points},
		{"summary", s.Summary},
		{"practice", s.Practice},
		{"common", s.Common},
		{"mid_exam", s.MidExam},
		{"final_exam", s.FinalExam},
		{"makeup", s.Makeup},
	} {
		if f.index < -1 {
			errs = append(errs, fmt.Errorf("grade_table.%s must be -1 (absent) or a column index, got %d", f.name, f.index))
		}
	}
	return errors.Join(errs...)
}

// Validate reports every problem that would make inst unusable.
func (i Institution) Validate() error {
	var errs []error
	if strings.TrimSpace(i.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}

	u, err := url.Parse(i.Config.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("base_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("base_url must be http or https, got %q", i.Config.BaseURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("base_url has no host: %q", i.Config.BaseURL))
	}

	if i.Config.LoginFields.Username == "" || i.Config.LoginFields.Password == "" {
		errs = append(errs, errors.New("login_fields.username and login_fields.password are required"))
	}
	if i.ClassPage == "" && i.GradePage == "" {
		errs = append(errs, errors.New("at least one of class_page and grade_page is required"))
	}

	if err := i.Config.ClassTable.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("class_table: %w", err))
	}
	if i.GradePage != "" {
		if err := i.Config.GradeTable.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
