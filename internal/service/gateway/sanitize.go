package gateway

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
	// A run of three newlines separates private reasoning from the answer
	// in some reasoning models' plain output.
	reasoningBreak = "\n\n\n"
)

// Sanitize normalizes line endings to LF and strips C0 control characters
// (other than newline and tab), U+202E and U+200B. It is idempotent.
func Sanitize(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20, r == '\u202e', r == '\u200b':
			return -1
		default:
			return r
		}
	}, s)
}

// FilterThinking drops model reasoning from a reply. With both think tags
// present only the text after the last closing tag is kept; afterwards a
// remaining triple newline cuts everything up to and including it.
func FilterThinking(content string) string {
	filtered := content
	if strings.Contains(filtered, thinkOpen) && strings.Contains(filtered, thinkClose) {
		filtered = strings.TrimSpace(filtered[strings.LastIndex(filtered, thinkClose)+len(thinkClose):])
	}

	if i := strings.Index(filtered, reasoningBreak); i >= 0 {
		filtered = filtered[i+len(reasoningBreak):]
	}

	return strings.TrimSpace(filtered)
}

// isContentError reports replies that are themselves upstream error text.
func isContentError(reply string) bool {
	return strings.HasPrefix(strings.ToLower(reply), "error")
}
