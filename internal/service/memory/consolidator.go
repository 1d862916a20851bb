package memory

import (
	"context"
	"strings"

	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/internal/observability"
	"github.com/sandevgo/companion/pkg/log"
)

// Consolidator turns recent turns and the previous core memory into a new
// core memory through the gateway.
type Consolidator struct {
	responder core.Responder
	templates TemplateSource
	metrics   *observability.Metrics
}

func NewConsolidator(responder core.Responder, templates TemplateSource, metrics *observability.Metrics) *Consolidator {
	return &Consolidator{
		responder: responder,
		templates: templates,
		metrics:   metrics,
	}
}

// Summarize returns the new core memory and true, or false when the model
// failed and the previous value must be kept.
func (c *Consolidator) Summarize(ctx context.Context, persona, userID string, turns []core.Turn, current string) (string, bool) {
	logger := log.FromCtx(ctx)

	template := ""
	if c.templates != nil {
		template = c.templates.MemoryTemplate(ctx)
	}

	reply := c.responder.GetResponse(
		ctx,
		buildConsolidationPrompt(template, current, turns),
		consolidationID(persona, userID),
		consolidationSystem,
		nil,
		"",
	)

	switch {
	case core.IsErrorReply(reply):
		logger.Warn().Str("reply", reply).Msg("core memory consolidation failed, keeping previous value")
		c.metrics.Consolidated("error")
		return "", false
	case strings.TrimSpace(reply) == "":
		logger.Warn().Msg("core memory consolidation returned nothing, keeping previous value")
		c.metrics.Consolidated("empty")
		return "", false
	default:
		c.metrics.Consolidated("ok")
		return strings.TrimSpace(reply), true
	}
}
