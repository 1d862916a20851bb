package conv

import (
	"strings"

	"github.com/inbucket/html2text"
)

// HTMLToText flattens an HTML document (proxy error pages and the like) to
// plain text. Input that fails to parse is returned trimmed as is.
func HTMLToText(body string) string {
	text, err := html2text.FromString(body, html2text.Options{OmitLinks: true})
	if err != nil {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(text)
}

// LooksLikeHTML reports whether body appears to be an HTML document.
func LooksLikeHTML(body string) bool {
	head := strings.ToLower(strings.TrimSpace(body))
	if len(head) > 256 {
		head = head[:256]
	}
	return strings.HasPrefix(head, "<!doctype html") ||
		strings.HasPrefix(head, "<html") ||
		strings.Contains(head, "<body")
}
