// Package reminder spots reminder requests in conversations and plays them
// back to the persona as system messages once they fall due.
package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/pkg/log"
)

// NotTimeRelated is the model's answer for messages without a request.
const NotTimeRelated = "NOT_TIME_RELATED"

const defaultSystem = `You detect reminder requests in chat messages.
If the message asks to be reminded of something at a time, answer with JSON only:
{"reminders": [{"target_time": "YYYY-MM-DD HH:MM:SS", "reminder_content": "what to remind about"}]}
Resolve relative times against the current time given in the message.
If there is no reminder request, answer exactly: NOT_TIME_RELATED`

// Gateway is the LLM gateway as seen by the recognizer. Each recognition is
// a one-off call, so its context is dropped afterwards.
type Gateway interface {
	core.Responder
	ClearContext(conversationID string) bool
}

// TemplateSource supplies the installed recognition prompt, or "".
type TemplateSource interface {
	ReminderTemplate(ctx context.Context) string
}

// Request is one reminder found in a message.
type Request struct {
	At      time.Time
	Content string
}

type Recognizer struct {
	gateway   Gateway
	templates TemplateSource
	clock     clockwork.Clock
}

func NewRecognizer(gateway Gateway, templates TemplateSource, clock clockwork.Clock) *Recognizer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Recognizer{
		gateway:   gateway,
		templates: templates,
		clock:     clock,
	}
}

// Recognize asks the model for the reminder requests in message. Times are
// read in the clock's location. Unusable answers yield no requests.
func (r *Recognizer) Recognize(ctx context.Context, chatID, message string) []Request {
	logger := log.FromCtx(ctx)

	system := ""
	if r.templates != nil {
		system = strings.TrimSpace(r.templates.ReminderTemplate(ctx))
	}
	if system == "" {
		system = defaultSystem
	}

	now := r.clock.Now()
	prompt := fmt.Sprintf(
		"Current time: %s\nFind the reminder requests in this message and answer in the JSON format described: %s",
		now.Format(core.TimestampLayout), message,
	)

	id := "reminder/" + core.EscapeSegment(chatID)
	reply := r.gateway.GetResponse(ctx, prompt, id, system, nil, "")
	r.gateway.ClearContext(id)

	if core.IsErrorReply(reply) {
		logger.Warn().Str("reply", reply).Msg("reminder recognition failed")
		return nil
	}

	reqs, err := parseRequests(reply, now.Location())
	if err != nil {
		logger.Debug().Err(err).Str("reply", reply).Msg("unusable reminder recognition reply")
		return nil
	}
	return reqs
}

type recognition struct {
	Reminders []struct {
		TargetTime string `json:"target_time"`
		Content    string `json:"reminder_content"`
	} `json:"reminders"`
}

// parseRequests reads the outermost JSON object in reply. Entries with a
// missing field or an unparsable time are skipped.
func parseRequests(reply string, loc *time.Location) ([]Request, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" || reply == NotTimeRelated {
		return nil, nil
	}

	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var rec recognition
	if err := json.Unmarshal([]byte(reply[start:end+1]), &rec); err != nil {
		return nil, fmt.Errorf("decode reminders: %w", err)
	}

	var reqs []Request
	for _, item := range rec.Reminders {
		content := strings.TrimSpace(item.Content)
		if content == "" || item.TargetTime == "" {
			continue
		}
		at, err := time.ParseInLocation(core.TimestampLayout, strings.TrimSpace(item.TargetTime), loc)
		if err != nil {
			continue
		}
		reqs = append(reqs, Request{At: at, Content: content})
	}
	return reqs, nil
}
