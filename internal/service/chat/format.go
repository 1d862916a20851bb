package chat

import (
	"fmt"
	"strings"
)

// WrapGroupMessage marks who said what so the model can tell group members apart.
func WrapGroupMessage(sender, content string) string {
	return fmt.Sprintf("<user %s>\n%s\n</user>", sender, content)
}

// StripMention removes a leading "@sender " the model sometimes echoes back.
func StripMention(reply, sender string) string {
	if sender == "" {
		return reply
	}
	return strings.TrimPrefix(reply, "@"+sender+" ")
}

func AddMention(reply, sender string) string {
	return "@" + sender + " " + reply
}
