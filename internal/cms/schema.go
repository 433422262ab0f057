// Package cms implements the campus management system scraping engine:
// login URL resolution, form login, CAPTCHA retrieval, and the two
// schema-driven table extractors that turn portal HTML into records.
//
// Institutions differ only in data. Every portal goes through the same
// pipeline, parameterized by an InstitutionConfig from the Registry.
package cms

import (
	"fmt"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// DefaultSuccessMarker is the text that appears on the authenticated
// landing page of ZhengFang-style portals ("personal information").
const DefaultSuccessMarker = "个人信息"

// DefaultDailyClasses is the usual number of schedule rows per day.
const DefaultDailyClasses = 5

// InstitutionConfig describes how to log in to one portal and how to read
// its tables. It is immutable once loaded.
type InstitutionConfig struct {
	BaseURL         string           `json:"base_url"`
	DynamicLoginURL bool             `json:"dynamic_login_url"`
	SuccessMarker   string           `json:"success_marker,omitempty"`
	LoginFields     LoginFields      `json:"login_fields"`
	ClassTable      ClassTableSchema `json:"class_table"`
	GradeTable      GradeTableSchema `json:"grade_table"`
}

// LoginURL returns BaseURL with a guaranteed trailing slash.
func (c InstitutionConfig) LoginURL() string {
	if strings.HasSuffix(c.BaseURL, "/") {
		return c.BaseURL
	}
	return c.BaseURL + "/"
}

// Marker returns the configured success marker or the default one.
func (c InstitutionConfig) Marker() string {
	if c.SuccessMarker == "" {
		return DefaultSuccessMarker
	}
	return c.SuccessMarker
}

// LoginFields names the form inputs credentials are written to.
type LoginFields struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Captcha  string `json:"captcha,omitempty"`
}

// FormValues maps credentials onto the configured field names.
// Fields with no configured name are left out.
func (f LoginFields) FormValues(c Credentials) map[string]string {
	out := make(map[string]string, 3)
	if f.Username != "" {
		out[f.Username] = c.Username
	}
	if f.Password != "" {
		out[f.Password] = c.Password
	}
	if f.Captcha != "" && c.Captcha != "" {
		out[f.Captcha] = c.Captcha
	}
	return out
}

// Credentials are what the user types into the portal.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"-"`
	Captcha  string `json:"-"`
}

// ClassTableSchema locates the weekly schedule table and sub-parses its cells.
type ClassTableSchema struct {
	TableID      string `json:"table_id"`
	InfoStart    string `json:"info_start"`
	DailyClasses int    `json:"daily_classes,omitempty"`

	NameRE    string `json:"name_re,omitempty"`
	TypeRE    string `json:"type_re,omitempty"`
	DuringRE  string `json:"during_re,omitempty"`
	TimeRE    string `json:"time_re,omitempty"`
	PlaceRE   string `json:"place_re,omitempty"`
	TeacherRE string `json:"teacher_re,omitempty"`
}

// RegexOverrides replace individual cell expressions at runtime.
// Empty fields keep the schema's expression.
type RegexOverrides struct {
	Name    string `json:"name_re,omitempty"`
	Type    string `json:"type_re,omitempty"`
	During  string `json:"during_re,omitempty"`
	Time    string `json:"time_re,omitempty"`
	Place   string `json:"place_re,omitempty"`
	Teacher string `json:"teacher_re,omitempty"`
}

// IsZero reports whether no override is set.
func (o RegexOverrides) IsZero() bool {
	return o == RegexOverrides{}
}

// WithOverrides returns a copy of s with every non-empty override applied.
func (s ClassTableSchema) WithOverrides(o RegexOverrides) (ClassTableSchema, error) {
	if o.IsZero() {
		return s, nil
	}
	src := ClassTableSchema{
		NameRE:    o.Name,
		TypeRE:    o.Type,
		DuringRE:  o.During,
		TimeRE:    o.Time,
		PlaceRE:   o.Place,
		TeacherRE: o.Teacher,
	}
	out := s
	if err := mergo.Merge(&out, src, mergo.WithOverride); err != nil {
		return s, fmt.Errorf("merge regex overrides: %w", err)
	}
	return out, nil
}


// GradeTableSchema locates the grade table and its columns.
// Indices are zero-based; a negative index means the portal has no such column.
type GradeTableSchema struct {
	TableID   string `json:"table_id"`
	ClassCode int    `json:"class_code"`
	ClassName int    `json:"class_name"`
	ClassType int    `json:"class_type"`
	Points    int    `json:"points"`
	Summary   int    `json:"summary"`
	Practice  int    `json:"practice"`
	Common    int    `json:"common"`
	MidExam   int    `json:"mid_exam"`
	FinalExam int    `json:"final_exam"`
	Makeup    int    `json:"makeup"`
}

// AdvancedCustomInfo is a user-edited class table schema for a school,
// stored by name. It replaces the registry's schema whole.
type AdvancedCustomInfo struct {
	SchoolName string           `json:"school_name"`
	ClassTable ClassTableSchema `json:"class_table"`
}

// DecodeAdvancedCustom decodes a JSON5 {school_name, class_table} document.
// When base knows the school, the class_table fields present in the
// document are laid over base's schema, zero values included, so a partial
// document yields a complete schema.
func DecodeAdvancedCustom(data []byte, base func(school string) (ClassTableSchema, bool)) (AdvancedCustomInfo, error) {
	var info AdvancedCustomInfo
	if err := json5.Unmarshal(data, &info); err != nil {
		return AdvancedCustomInfo{}, err
	}
	if schema, ok := base(info.SchoolName); ok {
		info.ClassTable = schema
		if err := json5.Unmarshal(data, &info); err != nil {
			return AdvancedCustomInfo{}, err
		}
	}
	return info, nil
}
