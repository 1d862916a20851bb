package core

import "context"

// Scope identifies who a command acts on.
type Scope struct {
	Persona string
	UserID  string
	ChatID  string
}

type CmdRouter interface {
	Execute(ctx context.Context, scope Scope, input string) (string, bool)
	ListCommands() []Command
}

type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, scope Scope, args []string) (string, error)
}
