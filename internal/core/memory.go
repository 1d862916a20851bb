package core

import (
	"context"
	"strings"
)

// ErrorPrefix marks a reply string as a failure. Replies carrying it are
// surfaced to the user but never recorded as turns.
const ErrorPrefix = "Error:"

// TimestampLayout is the layout used for persisted memory timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	MaxShortTermTurns  = 50
	ConsolidationEvery = 10
)

type Turn struct {
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Bot       string `json:"bot"`
}

type CoreMemory struct {
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

func IsErrorReply(reply string) bool {
	return strings.HasPrefix(reply, ErrorPrefix)
}

// Responder is the contract of the LLM gateway as seen by its callers.
type Responder interface {
	GetResponse(ctx context.Context, message, conversationID, systemPrompt string, prior []Message, coreMemory string) string
}

// MemoryService is the read/write surface of the memory store consumed by
// the chat pipeline and debug commands.
type MemoryService interface {
	RecordTurn(ctx context.Context, persona, userID, userMsg, botReply string, isSystem bool)
	GetCoreMemory(ctx context.Context, persona, userID string) string
	GetRecentContext(ctx context.Context, persona, userID string) []Message
	RecentTurns(ctx context.Context, persona, userID string, n int) []Turn
	ResetShortTerm(ctx context.Context, persona, userID string) error
	ClearCore(ctx context.Context, persona, userID string) error
}
