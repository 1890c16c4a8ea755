package deliver

import (
	"html"
	"strings"
)

// RenderHTML turns plain-text digest body into a deterministic HTML
// fragment: lines starting with "# " or "## " become headings, consecutive
// lines starting with "- " become a single <ul>, blank lines separate
// paragraphs, everything else is wrapped in <p>. All text content is
// HTML-escaped.
func RenderHTML(body string) string {
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")

	var b strings.Builder
	var paragraph []string
	var list []string

	flushParagraph := func() {
		if len(paragraph) == 0 {
			return
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(strings.Join(paragraph, " ")))
		b.WriteString("</p>\n")
		paragraph = nil
	}
	flushList := func() {
		if len(list) == 0 {
			return
		}
		b.WriteString("<ul>\n")
		for _, item := range list {
			b.WriteString("<li>")
			b.WriteString(html.EscapeString(item))
			b.WriteString("</li>\n")
		}
		b.WriteString("</ul>\n")
		list = nil
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			flushParagraph()
			flushList()
		case strings.HasPrefix(line, "## "):
			flushParagraph()
			flushList()
			b.WriteString("<h3>")
			b.WriteString(html.EscapeString(strings.TrimPrefix(line, "## ")))
			b.WriteString("</h3>\n")
		case strings.HasPrefix(line, "# "):
			flushParagraph()
			flushList()
			b.WriteString("<h2>")
			b.WriteString(html.EscapeString(strings.TrimPrefix(line, "# ")))
			b.WriteString("</h2>\n")
		case strings.HasPrefix(line, "- "):
			flushParagraph()
			list = append(list, strings.TrimPrefix(line, "- "))
		default:
			flushList()
			paragraph = append(paragraph, line)
		}
	}
	flushParagraph()
	flushList()

	return b.String()
}
