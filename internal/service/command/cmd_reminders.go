package command

import (
	"context"
	"fmt"

	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/internal/service/reminder"
)

type ReminderLister interface {
	Pending(chatID string) []reminder.Reminder
}

type RemindersCommand struct {
	reminders ReminderLister
	formatter *ResponseFormatter
}

func NewRemindersCommand(reminders ReminderLister) *RemindersCommand {
	return &RemindersCommand{
		reminders: reminders,
		formatter: NewResponseFormatter(),
	}
}

func (c *RemindersCommand) Name() string {
	return "reminders"
}

func (c *RemindersCommand) Description() string {
	return "List pending reminders"
}

func (c *RemindersCommand) Execute(_ context.Context, scope core.Scope, _ []string) (string, error) {
	pending := c.reminders.Pending(scope.ChatID)
	if len(pending) == 0 {
		return c.formatter.Success("No pending reminders"), nil
	}

	items := make([]string, len(pending))
	for i, r := range pending {
		items[i] = fmt.Sprintf("%s  %s", r.At.Format(core.TimestampLayout), r.Content)
	}
	return c.formatter.Combine(
		c.formatter.Info("Pending reminders"),
		c.formatter.List(items),
	), nil
}
