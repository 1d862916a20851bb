package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/companion/internal/core"
)

// recentTurnsShown is how many short-term turns /mem prints.
const recentTurnsShown = 5

type MemCommand struct {
	memory    core.MemoryService
	formatter *ResponseFormatter
}

func NewMemCommand(memory core.MemoryService) *MemCommand {
	return &MemCommand{
		memory:    memory,
		formatter: NewResponseFormatter(),
	}
}

func (c *MemCommand) Name() string {
	return "mem"
}

func (c *MemCommand) Description() string {
	return "Show core memory and the latest turns"
}

func (c *MemCommand) Execute(ctx context.Context, scope core.Scope, _ []string) (string, error) {
	coreMemory := c.memory.GetCoreMemory(ctx, scope.Persona, scope.UserID)
	if coreMemory == "" {
		coreMemory = "(empty)"
	}

	turns := c.memory.RecentTurns(ctx, scope.Persona, scope.UserID, recentTurnsShown)
	recent := "(empty)"
	if len(turns) > 0 {
		var sb strings.Builder
		for i, t := range turns {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "[%s]\nUser: %s\nReply: %s\n", t.Timestamp, t.User, t.Bot)
		}
		recent = sb.String()
	}

	return c.formatter.Combine(
		c.formatter.Info("Memory"),
		c.formatter.Label("Persona", scope.Persona),
		c.formatter.Section("🧠", "Core memory", coreMemory),
		c.formatter.Section("📝", "Recent turns", recent),
	), nil
}

type ResetCommand struct {
	memory    core.MemoryService
	formatter *ResponseFormatter
}

func NewResetCommand(memory core.MemoryService) *ResetCommand {
	return &ResetCommand{
		memory:    memory,
		formatter: NewResponseFormatter(),
	}
}

func (c *ResetCommand) Name() string {
	return "reset"
}

func (c *ResetCommand) Description() string {
	return "Reset short-term memory"
}

func (c *ResetCommand) Execute(ctx context.Context, scope core.Scope, _ []string) (string, error) {
	if err := c.memory.ResetShortTerm(ctx, scope.Persona, scope.UserID); err != nil {
		return "", fmt.Errorf("failed to reset short-term memory: %w", err)
	}
	return c.formatter.Success("Short-term memory reset"), nil
}

type ClearCommand struct {
	memory    core.MemoryService
	formatter *ResponseFormatter
}

func NewClearCommand(memory core.MemoryService) *ClearCommand {
	return &ClearCommand{
		memory:    memory,
		formatter: NewResponseFormatter(),
	}
}

func (c *ClearCommand) Name() string {
	return "clear"
}

func (c *ClearCommand) Description() string {
	return "Clear core memory"
}

func (c *ClearCommand) Execute(ctx context.Context, scope core.Scope, _ []string) (string, error) {
	if err := c.memory.ClearCore(ctx, scope.Persona, scope.UserID); err != nil {
		return "", fmt.Errorf("failed to clear core memory: %w", err)
	}
	return c.formatter.Success("Core memory cleared"), nil
}
