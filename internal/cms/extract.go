package cms

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractClassInfos reads the weekly schedule table out of html. When
// several tables carry s.TableID the last one is read.
//
// Every row whose cells contain a start-marker match contributes the cells
// after the marker, one ClassInfo each, padded with blanks to WeekDays.
// Rows wider than WeekDays are kept whole. Rows without a marker are skipped.
//
// The boolean is false when no table carries s.TableID (or the start marker
// does not compile); that is a schema mismatch, not an error.
func ExtractClassInfos(html string, s ClassTableSchema) ([]ClassInfo, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false
	}
	return ExtractClassInfosFromDocument(doc, s)
}

// ExtractClassInfosFromDocument is ExtractClassInfos on a parsed document.
func ExtractClassInfosFromDocument(doc *goquery.Document, s ClassTableSchema) ([]ClassInfo, bool) {
	table := lastTable(doc, s.TableID)
	if table == nil {
		return nil, false
	}
	start, err := regexp.Compile(s.InfoStart)
	if err != nil {
		return nil, false
	}

	daily := s.DailyClasses
	if daily <= 0 {
		daily = DefaultDailyClasses
	}
	parser := newCellParser(s)
	infos := make([]ClassInfo, 0, daily*WeekDays)

	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		first := tr.Find("td").First()
		if first.Length() == 0 {
			return
		}
		cells := first.AddSelection(first.NextAll())

		marker := -1
		cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
			if start.MatchString(cellText(cell)) {
				marker = i
				return false
			}
			return true
		})
		if marker < 0 {
			return
		}

		n := 0
		cells.Slice(marker+1, cells.Length()).Each(func(_ int, cell *goquery.Selection) {
			infos = append(infos, parser.parse(cellText(cell)))
			n++
		})
		for ; n < WeekDays; n++ {
			infos = append(infos, ClassInfo{})
		}
	})

	return infos, true
}

// ExtractGradeInfos reads the grade table out of html. The first row is a
// header and is dropped; each remaining row yields one GradeInfo.
// The boolean is false when no table carries s.TableID.
func ExtractGradeInfos(html string, s GradeTableSchema) ([]GradeInfo, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false
	}
	return ExtractGradeInfosFromDocument(doc, s)
}

// ExtractGradeInfosFromDocument is ExtractGradeInfos on a parsed document.
func ExtractGradeInfosFromDocument(doc *goquery.Document, s GradeTableSchema) ([]GradeInfo, bool) {
	table := firstTable(doc, s.TableID)
	if table == nil {
		return nil, false
	}

	rows := table.Find("tr")
	grades := make([]GradeInfo, 0, max(rows.Length()-1, 0))
	if rows.Length() == 0 {
		return grades, true
	}

	rows.Slice(1, rows.Length()).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td").Map(func(_ int, td *goquery.Selection) string {
			return cellText(td)
		})
		grades = append(grades, NewGradeInfo(cells, s))
	})
	return grades, true
}

// firstTable returns the first <table> whose id equals id. A missing id
// attribute compares as "".
func firstTable(doc *goquery.Document, id string) *goquery.Selection {
	return single(tablesWithID(doc, id).First())
}

// lastTable is firstTable for the last match.
func lastTable(doc *goquery.Document, id string) *goquery.Selection {
	return single(tablesWithID(doc, id).Last())
}

func tablesWithID(doc *goquery.Document, id string) *goquery.Selection {
	return doc.Find("table").FilterFunction(func(_ int, t *goquery.Selection) bool {
		return t.AttrOr("id", "") == id
	})
}

func single(sel *goquery.Selection) *goquery.Selection {
	if sel.Length() == 0 {
		return nil
	}
	return sel
}

// cellText returns a cell's text with <br> read as a space and all
// whitespace runs (including &nbsp;) collapsed.
func cellText(cell *goquery.Selection) string {
	if cell.Find("br").Length() > 0 {
		cell = cell.Clone()
		cell.Find("br").ReplaceWithHtml(" ")
	}
	return strings.Join(strings.Fields(cell.Text()), " ")
}
