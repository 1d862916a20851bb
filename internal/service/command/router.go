package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/internal/observability"
	"github.com/sandevgo/companion/pkg/log"
)

type Router struct {
	commands map[string]core.Command
	metrics  *observability.Metrics
}

var _ core.CmdRouter = (*Router)(nil)

// New registers commands plus a /help listing all of them.
func New(commands []core.Command, metrics *observability.Metrics) *Router {
	c := &Router{
		commands: make(map[string]core.Command),
		metrics:  metrics,
	}

	for _, cmd := range commands {
		c.commands[cmd.Name()] = cmd
	}
	c.commands["help"] = NewHelpCommand(c)
	return c
}

func (c *Router) Execute(ctx context.Context, scope core.Scope, input string) (string, bool) {
	if !strings.HasPrefix(input, "/") {
		return "", false
	}

	parts := strings.Fields(input)
	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	args := parts[1:]

	cmd, ok := c.commands[name]
	if !ok {
		c.metrics.CommandHandled("unknown")
		return fmt.Sprintf("Unknown command: /%s\nUse /help to list commands", name), true
	}

	c.metrics.CommandHandled(name)
	result, err := cmd.Execute(ctx, scope, args)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("command", name).Msg("command failed")
		return fmt.Sprintf("%s %v", core.ErrorPrefix, err), true
	}
	return result, true
}

// ListCommands returns the registered commands sorted by name.
func (c *Router) ListCommands() []core.Command {
	res := make([]core.Command, 0, len(c.commands))
	for _, cmd := range c.commands {
		res = append(res, cmd)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name() < res[j].Name() })
	return res
}
