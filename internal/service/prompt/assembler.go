// Package prompt composes system prompts and message lists from static
// prompt files, core memory and persona text.
package prompt

import (
	"strings"

	"github.com/sandevgo/companion/internal/core"
)

const coreMemoryHeader = "# Core Memory\n"

// BuildPrompt joins the prompt blocks in a fixed order: base, core memory
// (omitted when empty), persona. Group chats get the group preamble in
// front of the persona text.
func BuildPrompt(base, coreMemory, persona string, isGroup bool, groupPreamble string) string {
	var blocks []string

	if s := strings.TrimSpace(base); s != "" {
		blocks = append(blocks, s)
	}
	if s := strings.TrimSpace(coreMemory); s != "" {
		blocks = append(blocks, coreMemoryHeader+s)
	}

	persona = strings.TrimSpace(persona)
	if isGroup {
		if g := strings.TrimSpace(groupPreamble); g != "" {
			persona = strings.TrimSpace(g + "\n\n" + persona)
		}
	}
	if persona != "" {
		blocks = append(blocks, persona)
	}

	return strings.Join(blocks, "\n\n")
}

// TrimHistory keeps the trailing maxGroups*2 messages.
func TrimHistory(history []core.Message, maxGroups int) []core.Message {
	limit := maxGroups * 2
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

// BuildMessages returns system + trimmed history + the new user message.
// A history that already ends with the new message is not extended again.
func BuildMessages(system string, history []core.Message, newMessage string, maxGroups int) []core.Message {
	history = TrimHistory(history, maxGroups)

	msgs := make([]core.Message, 0, len(history)+2)
	msgs = append(msgs, core.Message{Role: core.RoleSystem, Content: system})
	msgs = append(msgs, history...)

	if n := len(history); n > 0 && history[n-1].Role == core.RoleUser && history[n-1].Content == newMessage {
		return msgs
	}
	return append(msgs, core.Message{Role: core.RoleUser, Content: newMessage})
}

// FlattenMessages renders the conversation as one prompt for backends that
// take a single user message.
func FlattenMessages(system string, history []core.Message, message string) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, m.Role+": "+m.Content)
	}

	var sb strings.Builder
	sb.WriteString(system)
	sb.WriteString("\n\nConversation history:\n")
	sb.WriteString(strings.Join(lines, "\n"))
	sb.WriteString("\n\nUser question: ")
	sb.WriteString(message)
	return sb.String()
}
