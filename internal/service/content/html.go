package content

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const (
	wrapperOpen    = `<div style="font-family: Arial, sans-serif; font-size: 15px; color: #222;">`
	paragraphOpen  = `<p style="margin: 0 0 16px 0; line-height: 1.6;">`
	paragraphClose = `</p>`
)

var (
	strictPolicy    = bluemonday.StrictPolicy()
	paragraphBreaks = regexp.MustCompile(`\n\s*\n`)
)

// RenderHTML converts a plain-text body into inline-styled HTML. Blank lines
// separate paragraphs and single newlines become <br>. Any markup in the
// text is stripped and the rest escaped.
func RenderHTML(body string) string {
	var b strings.Builder
	b.WriteString(wrapperOpen)
	for _, para := range paragraphBreaks.Split(strings.TrimSpace(body), -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i, l := range lines {
			lines[i] = escapeText(strings.TrimSpace(l))
		}
		b.WriteString(paragraphOpen)
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString(paragraphClose)
	}
	b.WriteString("</div>")
	return b.String()
}

// escapeText strips tags and escapes the remaining text. The strict policy
// leaves entities encoded, so unescape first to avoid double encoding.
func escapeText(s string) string {
	return html.EscapeString(html.UnescapeString(strictPolicy.Sanitize(s)))
}
