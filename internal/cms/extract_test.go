package cms

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weekdaySchema() ClassTableSchema {
	return ClassTableSchema{
		TableID:   "kbtable",
		InfoStart: "^星期",
		NameRE:    `^(\S+)`,
		TypeRE:    "(必修|选修)",
		DuringRE:  `\{(.*?)\}`,
		TeacherRE: `\}\s+(\S+)`,
		PlaceRE:   `\}\s+\S+\s+(\S+)`,
	}
}

func TestExtractClassInfos_FiveByFiveScenario(t *testing.T) {
	t.Parallel()

	infos, ok := ExtractClassInfos(scheduleHTML("kbtable", 5, 5), weekdaySchema())
	require.True(t, ok)
	require.Len(t, infos, 35)

	for row := range 5 {
		for col := range WeekDays {
			info := infos[row*WeekDays+col]
			if col >= 5 {
				assert.True(t, info.IsBlank(), "row %d col %d should be blank", row, col)
				continue
			}
			assert.False(t, info.IsBlank(), "row %d col %d should hold a class", row, col)
			assert.Equal(t, fmt.Sprintf("课程%d-%d", row+1, col+1), info.Name)
		}
	}

	first := infos[0]
	assert.Equal(t, "课程1-1 必修 {第1-16周} 教师1 A101", first.Raw)
	assert.Equal(t, "必修", first.Type)
	assert.Equal(t, "第1-16周", first.During)
	assert.Equal(t, "教师1", first.Teacher)
	assert.Equal(t, "A101", first.Place)
	assert.Empty(t, first.Time, "no time expression configured")
}

func TestExtractClassInfos_RowWidths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cells int
		want  int
	}{
		{cells: 0, want: 7},
		{cells: 1, want: 7},
		{cells: 7, want: 7},
		{cells: 8, want: 8},
		{cells: 12, want: 12},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d cells", tt.cells), func(t *testing.T) {
			t.Parallel()
			infos, ok := ExtractClassInfos(scheduleHTML("kbtable", 1, tt.cells), weekdaySchema())
			require.True(t, ok)
			assert.Len(t, infos, tt.want)
			for i := tt.cells; i < len(infos); i++ {
				assert.True(t, infos[i].IsBlank(), "padding entry %d should be blank", i)
			}
		})
	}
}

func TestExtractClassInfos_TableIDMismatch(t *testing.T) {
	t.Parallel()

	infos, ok := ExtractClassInfos(scheduleHTML("Table1", 3, 5), weekdaySchema())
	assert.False(t, ok)
	assert.Nil(t, infos)

	grades, ok := ExtractGradeInfos(gradeHTML("gradeTable", [][]string{{"a"}}), GradeTableSchema{TableID: "Datagrid1"})
	assert.False(t, ok)
	assert.Nil(t, grades)
}

func TestExtractClassInfos_MarkerInMiddleOfRow(t *testing.T) {
	t.Parallel()

	html := `<table id="kbtable">
<tr><td rowspan="2">上午</td><td>星期一</td><td>数学</td><td></td><td>&nbsp;</td></tr>
<tr><td>没有标记</td><td>英语</td></tr>
</table>`

	infos, ok := ExtractClassInfos(html, weekdaySchema())
	require.True(t, ok)
	require.Len(t, infos, 7, "only the row with a marker contributes")
	assert.Equal(t, "数学", infos[0].Name)
	assert.True(t, infos[1].IsBlank(), "empty cell is a blank slot")
	assert.True(t, infos[2].IsBlank(), "&nbsp; cell is a blank slot")
}

func TestExtractClassInfos_EmptyTable(t *testing.T) {
	t.Parallel()

	infos, ok := ExtractClassInfos(`<table id="kbtable"></table>`, weekdaySchema())
	assert.True(t, ok)
	assert.NotNil(t, infos)
	assert.Empty(t, infos)
}

func TestExtractClassInfos_InvalidStartMarker(t *testing.T) {
	t.Parallel()

	schema := weekdaySchema()
	schema.InfoStart = "(["
	_, ok := ExtractClassInfos(scheduleHTML("kbtable", 1, 1), schema)
	assert.False(t, ok)
}

func TestExtractClassInfos_InvalidFieldRegexOnlyEmptiesThatField(t *testing.T) {
	t.Parallel()

	schema := weekdaySchema()
	schema.TeacherRE = `(\S+`
	infos, ok := ExtractClassInfos(scheduleHTML("kbtable", 1, 1), schema)
	require.True(t, ok)
	assert.Empty(t, infos[0].Teacher)
	assert.Equal(t, "课程1-1", infos[0].Name)
	assert.Equal(t, "A101", infos[0].Place)
}

func TestExtractClassInfos_LastMatchingTableWins(t *testing.T) {
	t.Parallel()

	html := `<table id="kbtable"><tr><td>星期一</td><td>甲</td></tr></table>
<table id="kbtable"><tr><td>星期一</td><td>乙</td></tr></table>`

	infos, ok := ExtractClassInfos(html, weekdaySchema())
	require.True(t, ok)
	require.Len(t, infos, 7)
	assert.Equal(t, "乙", infos[0].Name)
}

func TestExtractGradeInfos_FirstMatchingTableWins(t *testing.T) {
	t.Parallel()

	html := gradeHTML("gradeTable", [][]string{{"C1", "甲"}}) + gradeHTML("gradeTable", [][]string{{"C2", "乙"}})

	grades, ok := ExtractGradeInfos(html, GradeTableSchema{TableID: "gradeTable", ClassCode: 0, ClassName: 1,
		ClassType: -1, Points: -1, Summary: -1, Practice: -1, Common: -1, MidExam: -1, FinalExam: -1, Makeup: -1})
	require.True(t, ok)
	require.Len(t, grades, 1)
	assert.Equal(t, "甲", grades[0].ClassName)
}

func TestExtractGradeInfos_KRows(t *testing.T) {
	t.Parallel()

	schema := GradeTableSchema{
		TableID: "gradeTable", ClassCode: 0, ClassName: 1, ClassType: 2, Points: 3,
		Summary: 4, Practice: 5, Common: 6, MidExam: 7, FinalExam: 8, Makeup: 9,
	}

	for _, k := range []int{0, 1, 3, 10} {
		t.Run(fmt.Sprintf("%d rows", k), func(t *testing.T) {
			t.Parallel()
			rows := make([][]string, k)
			for i := range rows {
				rows[i] = strings.Split(fmt.Sprintf("C%d,课程%d,必修,2.0,85,80,82,78,88,", i, i), ",")
			}

			grades, ok := ExtractGradeInfos(gradeHTML("gradeTable", rows), schema)
			require.True(t, ok)
			require.Len(t, grades, k)
			for i, g := range grades {
				assert.Equal(t, fmt.Sprintf("C%d", i), g.ClassCode)
				assert.Equal(t, "88", g.GradeFinalExam)
			}
		})
	}
}

func TestExtractGradeInfos_HeaderContentIrrelevant(t *testing.T) {
	t.Parallel()

	html := `<table id="g"><tr><td>C0</td><td>looks like data</td></tr><tr><td>C1</td><td>real</td></tr></table>`
	grades, ok := ExtractGradeInfos(html, GradeTableSchema{TableID: "g", ClassCode: 0, ClassName: 1})
	require.True(t, ok)
	require.Len(t, grades, 1)
	assert.Equal(t, "C1", grades[0].ClassCode)
}

func TestExtractGradeInfos_ShortRowsTolerated(t *testing.T) {
	t.Parallel()

	schema := GradeTableSchema{TableID: "g", ClassCode: 0, ClassName: 1, Makeup: 14, MidExam: -1}
	grades, ok := ExtractGradeInfos(gradeHTML("g", [][]string{{"MATH101", "高等数学"}}), schema)
	require.True(t, ok)
	require.Len(t, grades, 1)
	assert.Equal(t, "MATH101", grades[0].ClassCode)
	assert.Equal(t, "高等数学", grades[0].ClassName)
	assert.Empty(t, grades[0].GradeMakeup)
	assert.Empty(t, grades[0].GradeMidExam)
}

func TestExtractGradeInfos_NoRows(t *testing.T) {
	t.Parallel()

	grades, ok := ExtractGradeInfos(`<table id="g"></table>`, GradeTableSchema{TableID: "g"})
	assert.True(t, ok)
	assert.NotNil(t, grades)
	assert.Empty(t, grades)
}
