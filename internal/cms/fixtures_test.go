package cms

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// scheduleHTML renders a table with a header row followed by rows, each a
// marker cell "星期N" and cells data cells.
func scheduleHTML(tableID string, rows, cells int) string {
	var b strings.Builder
	b.WriteString(`<html><body><table id="other"><tr><td>星期一</td><td>noise</td></tr></table>`)
	fmt.Fprintf(&b, `<table id="%s">`, tableID)
	b.WriteString(`<tr><td>时间</td><td>一</td><td>二</td><td>三</td><td>四</td><td>五</td></tr>`)
	for r := 1; r <= rows; r++ {
		fmt.Fprintf(&b, `<tr><td>星期%d</td>`, r)
		for c := 1; c <= cells; c++ {
			fmt.Fprintf(&b, `<td>课程%d-%d<br>必修<br>{第1-16周}<br>教师%d<br>A%d0%d</td>`, r, c, c, r, c)
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

// gradeHTML renders a grade table with a header row and one row per entry.
func gradeHTML(tableID string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><body><table id="%s"><tr><td>学年</td><td>课程代码</td><td>课程名称</td></tr>`, tableID)
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			fmt.Fprintf(&b, "<td>%s</td>", cell)
		}
		b.WriteString("</tr>")
	}
	b.WriteString(`</table></body></html>`)
	return b.String()
}

const loginPageHTML = `<html><head><meta charset="utf-8"></head><body>
<form name="form1" method="post" action="default2.aspx" id="form1">
<input type="hidden" name="__VIEWSTATE" value="dDwtMTM0" />
<input name="txtUserName" type="text" id="txtUserName" />
<input name="TextBox2" type="password" id="TextBox2" />
<input name="txtSecretCode" type="text" id="txtSecretCode" />
<input type="radio" name="RadioButtonList1" value="学生" checked="checked" />
<input type="radio" name="RadioButtonList1" value="教师" />
<input type="submit" name="Button1" value="登录" />
<input type="submit" name="Button2" value="重置" />
</form></body></html>`

const captchaBytes = "GIF89a-captcha"

// fakePortal is a ZhengFang-like portal. With dynamic set, GET / redirects
// to a cookieless session path.
type fakePortal struct {
	*httptest.Server
	dynamic  bool
	token    string
	schedule string
	grades   string

	logins   atomic.Int32
	referers atomic.Value
	captcha  atomic.Bool
}

func newFakePortal(t *testing.T, dynamic bool) *fakePortal {
	t.Helper()
	p := &fakePortal{
		dynamic:  dynamic,
		token:    "(S(tok123))",
		schedule: scheduleHTML("Table1", 5, 5),
		grades: gradeHTML("Datagrid1", [][]string{
			{"2023-2024", "1", "MATH101", "高等数学", "必修", "公共", "4.0", "3.7", "90", "88", "92", "", "91", "", ""},
			{"2023-2024", "1", "CS102", "程序设计", "选修", "专业", "3.0", "4.0", "95", "", "96", "97", "96", "", "60"},
		}),
	}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Close)
	return p
}

func (p *fakePortal) prefix() string {
	if p.dynamic {
		return "/" + p.token + "/"
	}
	return "/"
}

func (p *fakePortal) institution() Institution {
	return Institution{
		Name:      "fake",
		Title:     "Fake ZhengFang",
		ClassPage: "xskbcx.aspx?xh={username}",
		GradePage: "xscjcx_dq.aspx?xh={username}",
		Config: InstitutionConfig{
			BaseURL:         p.URL,
			DynamicLoginURL: p.dynamic,
			LoginFields:     LoginFields{Username: "txtUserName", Password: "TextBox2", Captcha: "txtSecretCode"},
			ClassTable: ClassTableSchema{
				TableID:   "Table1",
				InfoStart: "^星期",
				NameRE:    `^(\S+)`,
				TypeRE:    "(必修|选修)",
				DuringRE:  `\{(.*?)\}`,
				TeacherRE: `\}\s+(\S+)`,
				PlaceRE:   `\}\s+\S+\s+(\S+)`,
			},
			GradeTable: GradeTableSchema{
				TableID: "Datagrid1", ClassCode: 2, ClassName: 3, ClassType: 4, Points: 6,
				Summary: 12, Practice: 11, Common: 8, MidExam: 9, FinalExam: 10, Makeup: 14,
			},
		},
	}
}

func (p *fakePortal) loggedIn(r *http.Request) bool {
	c, err := r.Cookie("ASP.NET_SessionId")
	return err == nil && c.Value == "authed"
}

func (p *fakePortal) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	pre := p.prefix()

	switch {
	case p.dynamic && r.URL.Path == "/":
		http.Redirect(w, r, pre+"default2.aspx", http.StatusFound)

	case r.URL.Path == pre && r.Method == http.MethodGet,
		r.URL.Path == pre+"default2.aspx" && r.Method == http.MethodGet:
		http.SetCookie(w, &http.Cookie{Name: "ASP.NET_SessionId", Value: "anon", Path: "/"})
		_, _ = io.WriteString(w, loginPageHTML)

	case r.URL.Path == pre+"CheckCode.aspx":
		p.captcha.Store(true)
		w.Header().Set("Content-Type", "image/gif")
		_, _ = io.WriteString(w, captchaBytes)

	case r.URL.Path == pre+"default2.aspx" && r.Method == http.MethodPost:
		p.logins.Add(1)
		p.referers.Store(r.Header.Get("Referer"))
		_ = r.ParseForm()
		ok := r.PostForm.Get("__VIEWSTATE") == "dDwtMTM0" &&
			r.PostForm.Get("txtUserName") == "2021001" &&
			r.PostForm.Get("TextBox2") == "secret" &&
			r.PostForm.Get("RadioButtonList1") == "学生" &&
			r.PostForm.Get("Button1") == "登录" &&
			!r.PostForm.Has("Button2")
		if !ok {
			_, _ = io.WriteString(w, `<html><body><script>alert('密码错误！！');</script></body></html>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "ASP.NET_SessionId", Value: "authed", Path: "/"})
		http.Redirect(w, r, pre+"xs_main.aspx?xh=2021001", http.StatusFound)

	case r.URL.Path == pre+"xs_main.aspx":
		_, _ = io.WriteString(w, `<html><body><a href="xsgrxx.aspx">个人信息</a></body></html>`)

	case r.URL.Path == pre+"xskbcx.aspx":
		if !p.loggedIn(r) || r.URL.Query().Get("xh") != "2021001" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = io.WriteString(w, p.schedule)

	case r.URL.Path == pre+"xscjcx_dq.aspx":
		if !p.loggedIn(r) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = io.WriteString(w, p.grades)

	default:
		http.NotFound(w, r)
	}
}

var goodCreds = Credentials{Username: "2021001", Password: "secret", Captcha: "abcd"}
