package apiclient

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxHTMLBodyBytes = 1 << 20 // 1 MiB

// ErrorSummary returns a short description of the last error payload. HTML
// error pages (gateways, proxies) are reduced to their title or first heading.
func (c *Client) ErrorSummary(maxLen int) string {
	p := c.LastError(false)
	if p.State == PayloadAbsent {
		return ""
	}
	return summarize(p.Raw, maxLen)
}

func summarize(raw []byte, maxLen int) string {
	text := strings.TrimSpace(string(raw))
	if looksLikeHTML(text) {
		if headline := htmlHeadline(raw); headline != "" {
			text = headline
		}
	}
	if text == "" {
		return "<empty>"
	}
	if maxLen > 0 && len(text) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		return text[:cut] + "..."
	}
	return text
}

func looksLikeHTML(text string) bool {
	head := strings.ToLower(text)
	if len(head) > 256 {
		head = head[:256]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.Contains(head, "<html")
}

func htmlHeadline(raw []byte) string {
	if len(raw) > maxHTMLBodyBytes {
		raw = raw[:maxHTMLBodyBytes]
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	return firstNonEmpty(
		doc.Find("title").First().Text(),
		doc.Find("h1").First().Text(),
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.Join(strings.Fields(v), " "); s != "" {
			return s
		}
	}
	return ""
}
