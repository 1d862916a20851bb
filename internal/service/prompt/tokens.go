package prompt

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tkOnce sync.Once
	tk     *tiktoken.Tiktoken
)

// CountTokens estimates the cl100k token count of text. When the encoding
// cannot be loaded it falls back to len/4.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}

	tkOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tk = enc
		}
	})
	if tk == nil {
		return (len(text) + 3) / 4
	}
	return len(tk.Encode(text, nil, nil))
}
