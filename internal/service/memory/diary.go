package memory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sandevgo/companion/internal/core"
)

const (
	diaryTurns      = 15
	maxDiaryEntries = 100
)

const defaultDiaryTemplate = `Write a short diary entry in the first person, as the persona described below.
Look back on the recent conversation: what happened and how it felt. Use two paragraphs and no emoji.`

const diarySystem = `You write diary entries in the first person voice of a given character, based on its persona and recent conversations.
Start the entry with the title %q followed by a blank line. Do not use emoji, emoticon tags or markup.`

var ErrNoConversation = errors.New("no recent conversation to write about")

var emoticonTag = regexp.MustCompile(`\[[^\]\n]*\]`)

type DiaryEntry struct {
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

// DiarySources supplies the persona text and the installed diary
// instructions ("" when absent).
type DiarySources interface {
	Persona(ctx context.Context) string
	DiaryTemplate(ctx context.Context) string
}

// ContextResponder is a gateway whose per-id context can be dropped after
// a one-off call.
type ContextResponder interface {
	core.Responder
	ClearContext(conversationID string) bool
}

// Diary writes persona diary entries from the short-term log and keeps
// them next to the other memory values.
type Diary struct {
	store   *Store
	gateway ContextResponder
	sources DiarySources
}

func NewDiary(store *Store, gateway ContextResponder, sources DiarySources) *Diary {
	return &Diary{
		store:   store,
		gateway: gateway,
		sources: sources,
	}
}

// Write generates, saves and returns a new entry. A failed save is logged
// and the entry is still returned.
func (d *Diary) Write(ctx context.Context, persona, userID string) (string, error) {
	logger := d.store.logger(ctx, persona, userID)

	turns := d.store.RecentTurns(ctx, persona, userID, diaryTurns)
	if len(turns) == 0 {
		return "", ErrNoConversation
	}

	now := d.store.clock.Now()
	title := fmt.Sprintf("%s's diary, %s", persona, now.Format("January 2, 2006"))
	id := "diary/" + pairKey(persona, userID)

	reply := d.gateway.GetResponse(
		ctx,
		buildDiaryPrompt(d.sources.DiaryTemplate(ctx), d.sources.Persona(ctx), title, turns),
		id,
		fmt.Sprintf(diarySystem, title),
		nil,
		"",
	)
	d.gateway.ClearContext(id)

	if core.IsErrorReply(reply) {
		return "", fmt.Errorf("diary generation failed: %s", strings.TrimSpace(strings.TrimPrefix(reply, core.ErrorPrefix)))
	}
	entry := formatDiary(reply)
	if entry == "" {
		return "", errors.New("diary generation returned nothing")
	}

	if err := d.save(ctx, persona, userID, DiaryEntry{Timestamp: now.Format(core.TimestampLayout), Content: entry}); err != nil {
		logger.Error().Err(err).Msg("failed to save diary entry")
	} else {
		logger.Info().Int("length", len(entry)).Msg("diary entry written")
	}
	return entry, nil
}

// Entries returns the saved entries, oldest first.
func (d *Diary) Entries(ctx context.Context, persona, userID string) []DiaryEntry {
	var entries []DiaryEntry
	d.store.get(ctx, diaryKey(persona, userID), &entries)
	return entries
}

func (d *Diary) save(ctx context.Context, persona, userID string, entry DiaryEntry) error {
	unlock := d.store.lock(pairKey(persona, userID))
	defer unlock()

	entries := append(d.Entries(ctx, persona, userID), entry)
	if len(entries) > maxDiaryEntries {
		entries = entries[len(entries)-maxDiaryEntries:]
	}
	return d.store.put(ctx, diaryKey(persona, userID), entries)
}

func diaryKey(persona, userID string) core.MemoryKey {
	return core.MemoryKey{Persona: persona, UserID: userID, Kind: core.KindDiary}
}

func buildDiaryPrompt(template, persona, title string, turns []core.Turn) string {
	if strings.TrimSpace(template) == "" {
		template = defaultDiaryTemplate
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(template))
	sb.WriteString("\n\nYour persona:\n")
	sb.WriteString(persona)
	sb.WriteString("\n\nRecent conversation:\n")
	for i, t := range turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("User: " + t.User + "\nReply: " + t.Bot)
	}
	sb.WriteString("\n\nReply with the entry only, no preface, in this format:\n")
	sb.WriteString(title)
	sb.WriteString("\n\n[entry]")
	return sb.String()
}

// formatDiary drops emoticon tags and keeps at most one blank line between
// paragraphs.
func formatDiary(s string) string {
	s = emoticonTag.ReplaceAllString(s, "")

	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return strings.Join(paragraphs, "\n\n")
}
