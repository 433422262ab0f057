package cms

import (
	"regexp"
	"strings"
)

// WeekDays is the fixed width of one schedule row.
const WeekDays = 7

// ClassInfo is one schedule slot. The zero value is a blank slot.
type ClassInfo struct {
	Raw     string `json:"raw,omitempty"`
	Name    string `json:"name,omitempty"`
	Type    string `json:"type,omitempty"`
	During  string `json:"during,omitempty"`
	Time    string `json:"time,omitempty"`
	Place   string `json:"place,omitempty"`
	Teacher string `json:"teacher,omitempty"`
}

// IsBlank reports whether the slot holds no class.
func (c ClassInfo) IsBlank() bool {
	return c == ClassInfo{}
}

// GradeInfo is one row of the grade table.
type GradeInfo struct {
	ClassCode      string `json:"class_code"`
	ClassName      string `json:"class_name"`
	ClassType      string `json:"class_type"`
	Points         string `json:"points"`
	GradeSummary   string `json:"grade_summary"`
	GradePractice  string `json:"grade_practice"`
	GradeCommon    string `json:"grade_common"`
	GradeMidExam   string `json:"grade_mid_exam"`
	GradeFinalExam string `json:"grade_final_exam"`
	GradeMakeup    string `json:"grade_makeup"`
}

// NewGradeInfo picks fields out of a row's cell texts.
// Out-of-range and negative indices yield "".
func NewGradeInfo(cells []string, s GradeTableSchema) GradeInfo {
	at := func(i int) string {
		if i < 0 || i >= len(cells) {
			return ""
		}
		return cells[i]
	}
	return GradeInfo{
		ClassCode:      at(s.ClassCode),
		ClassName:      at(s.ClassName),
		ClassType:      at(s.ClassType),
		Points:         at(s.Points),
		GradeSummary:   at(s.Summary),
		GradePractice:  at(s.Practice),
		GradeCommon:    at(s.Common),
		GradeMidExam:   at(s.MidExam),
		GradeFinalExam: at(s.FinalExam),
		GradeMakeup:    at(s.Makeup),
	}
}

// cellParser holds the compiled cell expressions of a ClassTableSchema.
// A nil expression (unset or invalid) leaves its field empty.
type cellParser struct {
	name, typ, during, time, place, teacher *regexp.Regexp
}

func newCellParser(s ClassTableSchema) *cellParser {
	return &cellParser{
		name:    compileOptional(s.NameRE),
		typ:     compileOptional(s.TypeRE),
		during:  compileOptional(s.DuringRE),
		time:    compileOptional(s.TimeRE),
		place:   compileOptional(s.PlaceRE),
		teacher: compileOptional(s.TeacherRE),
	}
}

func compileOptional(expr string) *regexp.Regexp {
	if expr == "" {
		return nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil
	}
	return re
}

// parse builds a ClassInfo from a cell's normalized text. An empty cell is
// still a positional slot but carries no data, so it is blank.
func (p *cellParser) parse(text string) ClassInfo {
	if text == "" {
		return ClassInfo{}
	}
	return ClassInfo{
		Raw:     text,
		Name:    firstMatch(p.name, text),
		Type:    firstMatch(p.typ, text),
		During:  firstMatch(p.during, text),
		Time:    firstMatch(p.time, text),
		Place:   firstMatch(p.place, text),
		Teacher: firstMatch(p.teacher, text),
	}
}

// firstMatch returns capture group 1 when the expression has one,
// otherwise the whole match.
func firstMatch(re *regexp.Regexp, text string) string {
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(m[0])
}
