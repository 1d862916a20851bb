package command

import (
	"context"

	"github.com/sandevgo/companion/internal/core"
)

type ContextClearer interface {
	ClearContext(conversationID string) bool
}

type ContextCommand struct {
	contexts  ContextClearer
	formatter *ResponseFormatter
}

func NewContextCommand(contexts ContextClearer) *ContextCommand {
	return &ContextCommand{
		contexts:  contexts,
		formatter: NewResponseFormatter(),
	}
}

func (c *ContextCommand) Name() string {
	return "context"
}

func (c *ContextCommand) Description() string {
	return "Clear the conversation context"
}

func (c *ContextCommand) Execute(_ context.Context, scope core.Scope, _ []string) (string, error) {
	if !c.contexts.ClearContext(core.ChatConversationID(scope.ChatID)) {
		return c.formatter.Success("Conversation context already empty"), nil
	}
	return c.formatter.Success("Conversation context cleared"), nil
}
