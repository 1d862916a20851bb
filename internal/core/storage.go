package core

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")

type MemoryKind string

const (
	KindShortTerm MemoryKind = "short_memory"
	KindCore      MemoryKind = "core_memory"
	KindDiary     MemoryKind = "diary"
)

// MemoryKey addresses one persisted value: persona + user + kind.
type MemoryKey struct {
	Persona string
	UserID  string
	Kind    MemoryKind
}

func (k MemoryKey) String() string {
	return strings.Join([]string{EscapeSegment(k.Persona), EscapeSegment(k.UserID), string(k.Kind)}, "/")
}

// EscapeSegment maps s to a single path segment. Distinct inputs never
// share an output, and the result is never "", "." or "..".
func EscapeSegment(s string) string {
	switch s {
	case "":
		return "%"
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}
	return url.PathEscape(s)
}

// ChatConversationID is the gateway conversation id of a chat. It never
// contains "/", unlike the ids of internal one-off calls.
func ChatConversationID(chatID string) string {
	return EscapeSegment(chatID)
}

// KVStore persists whole JSON documents. Values are replaced wholesale on
// Put; Get returns ErrNotFound for absent keys.
type KVStore interface {
	Get(ctx context.Context, key MemoryKey) ([]byte, error)
	Put(ctx context.Context, key MemoryKey, value []byte) error
	Delete(ctx context.Context, key MemoryKey) error
	Close() error
}

type ChatRecord struct {
	ID         int64     `json:"id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Message    string    `json:"message"`
	Reply      string    `json:"reply"`
	CreatedAt  time.Time `json:"created_at"`
}

type ChatLogRepository interface {
	AddRecord(ctx context.Context, rec ChatRecord) error
	GetRecords(ctx context.Context, senderID string, limit int) ([]ChatRecord, error)
}
