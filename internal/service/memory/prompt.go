package memory

import (
	"context"
	"strings"

	"github.com/sandevgo/companion/internal/core"
)

const defaultTemplate = `Merge the existing core memory with the recent conversation into a new core memory.
Keep only durable facts: who the user is, preferences, important events, promises and the state of the relationship.
Drop small talk. Write short plain sentences, no more than 200 words, and output the memory text only.`

const consolidationSystem = "You distill conversations into a compact summary. Extract only the most important information and keep the result as short as possible."

// TemplateSource supplies the installed consolidation template, or "" when
// none is available.
type TemplateSource interface {
	MemoryTemplate(ctx context.Context) string
}

func buildConsolidationPrompt(template, current string, turns []core.Turn) string {
	if strings.TrimSpace(template) == "" {
		template = defaultTemplate
	}

	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, "User: "+t.User+"\nReply: "+t.Bot)
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(template))
	sb.WriteString("\n\nExisting core memory:\n")
	sb.WriteString(current)
	sb.WriteString("\n\nRecent conversation:\n")
	sb.WriteString(strings.Join(lines, "\n"))
	return sb.String()
}

func consolidationID(persona, userID string) string {
	return "core_memory/" + pairKey(persona, userID)
}
