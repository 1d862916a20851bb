// Package chat turns a debounced batch into a persona reply: it assembles
// the prompt, calls the gateway, delivers the reply and records the turn.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/internal/service/prompt"
	"github.com/sandevgo/companion/internal/service/queue"
	"github.com/sandevgo/companion/pkg/log"
)

// Gateway is the part of the LLM gateway the pipeline needs.
type Gateway interface {
	core.Responder
	HasContext(conversationID string) bool
}

// Prompts supplies the persona description and the group preamble.
type Prompts interface {
	Persona(ctx context.Context) string
	GroupPreamble(ctx context.Context) string
}

type Options struct {
	Persona string
	// ChatLog is optional. When set every delivered reply is archived.
	ChatLog core.ChatLogRepository
}

type Service struct {
	persona string
	gateway Gateway
	memory  core.MemoryService
	prompts Prompts
	replier core.Replier
	chatLog core.ChatLogRepository
}

var _ queue.Handler = (*Service)(nil)

func NewService(
	gateway Gateway,
	memory core.MemoryService,
	prompts Prompts,
	replier core.Replier,
	opts Options,
) *Service {
	return &Service{
		persona: opts.Persona,
		gateway: gateway,
		memory:  memory,
		prompts: prompts,
		replier: replier,
		chatLog: opts.ChatLog,
	}
}

func (s *Service) HandleBatch(ctx context.Context, b queue.Batch) error {
	meta := b.Meta
	userID := meta.ChatID
	ctx = log.WithFields(ctx, "persona", s.persona, "user", userID)
	logger := log.FromCtx(ctx)

	content := b.Text
	if meta.IsGroup {
		content = WrapGroupMessage(meta.SenderName, content)
	}

	coreMemory := s.memory.GetCoreMemory(ctx, s.persona, userID)
	conversationID := core.ChatConversationID(userID)

	var prior []core.Message
	if !s.gateway.HasContext(conversationID) {
		prior = s.memory.GetRecentContext(ctx, s.persona, userID)
		if len(prior) > 0 {
			logger.Info().Int("messages", len(prior)).Msg("hydrating chat context from short-term memory")
		}
	}

	system := prompt.BuildPrompt("", "", s.prompts.Persona(ctx), meta.IsGroup, s.groupPreamble(ctx, meta.IsGroup))

	reply := s.gateway.GetResponse(ctx, content, conversationID, system, prior, coreMemory)
	logger.Info().
		Int("batch_messages", b.Count).
		Bool("error_reply", core.IsErrorReply(reply)).
		Msg("reply ready")

	clean := StripMention(reply, meta.SenderName)
	out := clean
	if meta.IsGroup {
		out = AddMention(clean, meta.SenderName)
	}

	if err := s.replier.Reply(ctx, meta, out); err != nil {
		// The turn is still recorded: the model did answer.
		logger.Error().Err(err).Msg("failed to deliver reply")
	}

	s.memory.RecordTurn(ctx, s.persona, userID, content, clean, meta.IsSystem())
	s.archive(ctx, meta, content, out)
	return nil
}

func (s *Service) groupPreamble(ctx context.Context, isGroup bool) string {
	if !isGroup {
		return ""
	}
	return s.prompts.GroupPreamble(ctx)
}

func (s *Service) archive(ctx context.Context, meta core.SenderMeta, message, reply string) {
	if s.chatLog == nil {
		return
	}
	rec := core.ChatRecord{
		SenderID:   meta.ChatID,
		SenderName: meta.SenderName,
		Message:    message,
		Reply:      reply,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.chatLog.AddRecord(ctx, rec); err != nil {
		log.FromCtx(ctx).Warn().Err(fmt.Errorf("archive chat record: %w", err)).Send()
	}
}
