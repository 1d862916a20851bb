package core

import "context"

const (
	AppName          = "Companion"
	AppUserAgent     = "Companion-Agent/0.1"
	AppRepositoryURL = "https://github.com/sandevgo/companion"
	AppVersion       = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SystemSender marks messages injected by schedulers rather than people.
// Turns from this sender are never written to memory.
const SystemSender = "System"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SenderMeta travels with a pending aggregation from the transport to the
// chat pipeline.
type SenderMeta struct {
	Transport  string `json:"transport"`
	ChatID     string `json:"chat_id"`
	SenderName string `json:"sender_name"`
	Username   string `json:"username"`
	IsGroup    bool   `json:"is_group"`
}

func (m SenderMeta) IsSystem() bool {
	return m.SenderName == SystemSender || m.Username == SystemSender
}

// QueueKey returns the aggregation key: the chat id for private chats and
// chat id plus sender for group chats, so group members are debounced
// independently.
func (m SenderMeta) QueueKey() string {
	if m.IsGroup {
		return m.ChatID + "_" + m.SenderName
	}
	return m.ChatID
}

// Replier delivers a finished reply back through the transport the batch
// arrived on.
type Replier interface {
	Reply(ctx context.Context, meta SenderMeta, text string) error
}

// Dispatcher is the inbound side used by transports: commands are answered
// at once, everything else is queued for the chat pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, content string, meta SenderMeta)
}
