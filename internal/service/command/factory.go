package command

import (
	"github.com/sandevgo/companion/internal/core"
)

// Options holds the commands backed by optional services. Nil fields
// leave the command out.
type Options struct {
	Diary     DiaryWriter
	Reminders ReminderLister
}

func NewCommands(
	memory core.MemoryService,
	contexts ContextClearer,
	opts Options,
) []core.Command {
	cmds := []core.Command{
		NewMemCommand(memory),
		NewResetCommand(memory),
		NewClearCommand(memory),
		NewContextCommand(contexts),
	}
	if opts.Diary != nil {
		cmds = append(cmds, NewDiaryCommand(opts.Diary))
	}
	if opts.Reminders != nil {
		cmds = append(cmds, NewRemindersCommand(opts.Reminders))
	}
	return cmds
}
