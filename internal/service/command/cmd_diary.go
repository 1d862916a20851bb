package command

import (
	"context"

	"github.com/sandevgo/companion/internal/core"
)

type DiaryWriter interface {
	Write(ctx context.Context, persona, userID string) (string, error)
}

type DiaryCommand struct {
	diary DiaryWriter
}

func NewDiaryCommand(diary DiaryWriter) *DiaryCommand {
	return &DiaryCommand{diary: diary}
}

func (c *DiaryCommand) Name() string {
	return "diary"
}

func (c *DiaryCommand) Description() string {
	return "Write a diary entry about the recent conversation"
}

// Execute returns the entry as is: it is persona text, not a status line.
func (c *DiaryCommand) Execute(ctx context.Context, scope core.Scope, _ []string) (string, error) {
	return c.diary.Write(ctx, scope.Persona, scope.UserID)
}
