package scraper

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Response is a fully buffered portal response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string // final URL after redirects
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Location returns the Location header, empty if absent.
func (r *Response) Location() string {
	return r.Header.Get("Location")
}

// Charset returns the canonical name of the body's encoding, using the
// Content-Type header first and then <meta> sniffing. Defaults to utf-8.
func (r *Response) Charset() string {
	_, name := r.encoding()
	return name
}

// Text returns the body decoded to UTF-8.
func (r *Response) Text() string {
	enc, _ := r.encoding()
	decoded, err := enc.NewDecoder().Bytes(r.Body)
	if err != nil {
		return string(r.Body)
	}
	return string(decoded)
}

// encoding picks the body's encoding. Sniffing only sees the first 1 KiB
// and guesses windows-1252 when that prefix is plain ASCII; the guess
// yields to UTF-8 whenever the whole body is valid UTF-8.
func (r *Response) encoding() (encoding.Encoding, string) {
	enc, name, certain := charset.DetermineEncoding(r.Body, r.Header.Get("Content-Type"))
	if name == "" || (!certain && name == "windows-1252" && utf8.Valid(r.Body)) {
		return encoding.Nop, "utf-8"
	}
	return enc, name
}

// Document parses the decoded body as HTML.
func (r *Response) Document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(r.Text()))
}

// EncodeForm url-encodes values after transcoding them into charsetName
// (e.g. "gbk", "gb2312", "big5"). Portals decode POST bodies in their page
// charset, so credentials containing CJK characters must match it. Unknown
// or UTF-8 charsets fall back to url.Values.Encode. Keys are sorted.
func EncodeForm(values url.Values, charsetName string) string {
	enc := lookupEncoding(charsetName)
	if enc == nil {
		return values.Encode()
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	encoder := enc.NewEncoder()
	var buf strings.Builder
	for _, k := range keys {
		ek := url.QueryEscape(transcode(encoder, k))
		for _, v := range values[k] {
			if buf.Len() > 0 {
				buf.WriteByte('&')
			}
			buf.WriteString(ek)
			buf.WriteByte('=')
			buf.WriteString(url.QueryEscape(transcode(encoder, v)))
		}
	}
	return buf.String()
}

func lookupEncoding(name string) encoding.Encoding {
	if name == "" {
		return nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil || enc == unicode.UTF8 {
		return nil
	}
	return enc
}

// transcode converts s, keeping the original text when a rune cannot be
// represented in the target charset.
func transcode(encoder *encoding.Encoder, s string) string {
	out, err := encoder.String(s)
	if err != nil {
		return s
	}
	return out
}
