package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/internal/observability"
	"github.com/sandevgo/companion/internal/service/reminder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMemory struct {
	core     string
	turns    []core.Turn
	resetErr error

	resets, clears []string
	askedN         int
}

func (m *stubMemory) RecordTurn(context.Context, string, string, string, string, bool) {}

func (m *stubMemory) GetCoreMemory(context.Context, string, string) string { return m.core }

func (m *stubMemory) GetRecentContext(context.Context, string, string) []core.Message { return nil }

func (m *stubMemory) RecentTurns(_ context.Context, _, _ string, n int) []core.Turn {
	m.askedN = n
	return m.turns
}

func (m *stubMemory) ResetShortTerm(_ context.Context, persona, userID string) error {
	m.resets = append(m.resets, persona+"/"+userID)
	return m.resetErr
}

func (m *stubMemory) ClearCore(_ context.Context, persona, userID string) error {
	m.clears = append(m.clears, persona+"/"+userID)
	return nil
}

type stubContexts struct {
	cleared []string
	had     bool
}

func (s *stubContexts) ClearContext(id string) bool {
	s.cleared = append(s.cleared, id)
	return s.had
}

type stubDiary struct {
	entry string
	err   error
	asked []string
}

func (d *stubDiary) Write(_ context.Context, persona, userID string) (string, error) {
	d.asked = append(d.asked, persona+"/"+userID)
	return d.entry, d.err
}

type stubReminders map[string][]reminder.Reminder

func (s stubReminders) Pending(chatID string) []reminder.Reminder { return s[chatID] }

var scope = core.Scope{Persona: "mia", UserID: "u1", ChatID: "u1"}

func newRouter(mem *stubMemory, ctxs *stubContexts) *Router {
	return New(NewCommands(mem, ctxs, Options{}), observability.NewMetrics(nil))
}

func TestRouter_NotACommand(t *testing.T) {
	r := newRouter(&stubMemory{}, &stubContexts{})
	out, ok := r.Execute(context.Background(), scope, "hello /mem")
	assert.False(t, ok)
	assert.Empty(t, out)
}

func TestRouter_Unknown(t *testing.T) {
	r := newRouter(&stubMemory{}, &stubContexts{})
	out, ok := r.Execute(context.Background(), scope, "/dance")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(out, "Unknown command: /dance"))
}

func TestRouter_CaseInsensitive(t *testing.T) {
	mem := &stubMemory{}
	r := newRouter(mem, &stubContexts{})
	_, ok := r.Execute(context.Background(), scope, "/RESET")
	require.True(t, ok)
	assert.Equal(t, []string{"mia/u1"}, mem.resets)
}

func TestRouter_ListCommands(t *testing.T) {
	r := newRouter(&stubMemory{}, &stubContexts{})
	var names []string
	for _, c := range r.ListCommands() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"clear", "context", "help", "mem", "reset"}, names)
}

func TestHelp(t *testing.T) {
	r := newRouter(&stubMemory{}, &stubContexts{})
	out, ok := r.Execute(context.Background(), scope, "/help")
	require.True(t, ok)
	for _, want := range []string{"/mem", "/reset", "/clear", "/context", "/help"} {
		assert.Contains(t, out, want)
	}
}

func TestMem(t *testing.T) {
	tests := []struct {
		name     string
		mem      *stubMemory
		contains []string
	}{
		{
			name:     "empty",
			mem:      &stubMemory{},
			contains: []string{"Core memory", "(empty)"},
		},
		{
			name: "populated",
			mem: &stubMemory{
				core:  "likes tea",
				turns: []core.Turn{{Timestamp: "2024-05-01 09:30:00", User: "hi", Bot: "hello"}},
			},
			contains: []string{"likes tea", "User: hi", "Reply: hello", "2024-05-01 09:30:00"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(tt.mem, &stubContexts{})
			out, ok := r.Execute(context.Background(), scope, "/mem")
			require.True(t, ok)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			assert.Equal(t, recentTurnsShown, tt.mem.askedN)
		})
	}
}

func TestResetAndClear(t *testing.T) {
	mem := &stubMemory{}
	r := newRouter(mem, &stubContexts{})

	out, _ := r.Execute(context.Background(), scope, "/reset")
	assert.Contains(t, out, "Short-term memory reset")
	out, _ = r.Execute(context.Background(), scope, "/clear")
	assert.Contains(t, out, "Core memory cleared")

	assert.Equal(t, []string{"mia/u1"}, mem.resets)
	assert.Equal(t, []string{"mia/u1"}, mem.clears)
}

func TestReset_Error(t *testing.T) {
	mem := &stubMemory{resetErr: errors.New("disk full")}
	r := newRouter(mem, &stubContexts{})

	out, ok := r.Execute(context.Background(), scope, "/reset")
	require.True(t, ok)
	assert.True(t, core.IsErrorReply(out))
	assert.Contains(t, out, "disk full")
}

func TestContext(t *testing.T) {
	ctxs := &stubContexts{had: true}
	r := newRouter(&stubMemory{}, ctxs)

	out, _ := r.Execute(context.Background(), scope, "/context")
	assert.Contains(t, out, "Conversation context cleared")
	assert.Equal(t, []string{"u1"}, ctxs.cleared)

	ctxs.had = false
	out, _ = r.Execute(context.Background(), scope, "/context")
	assert.Contains(t, out, "already empty")
}

func TestOptionalCommands(t *testing.T) {
	r := New(NewCommands(&stubMemory{}, &stubContexts{}, Options{
		Diary:     &stubDiary{},
		Reminders: stubReminders{},
	}), observability.NewMetrics(nil))

	var names []string
	for _, c := range r.ListCommands() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"clear", "context", "diary", "help", "mem", "reminders", "reset"}, names)
}

func TestDiary(t *testing.T) {
	diary := &stubDiary{entry: "mia's diary, May 1, 2024\n\nA quiet day."}
	r := New(NewCommands(&stubMemory{}, &stubContexts{}, Options{Diary: diary}), observability.NewMetrics(nil))

	out, ok := r.Execute(context.Background(), scope, "/diary")
	require.True(t, ok)
	assert.Equal(t, diary.entry, out)
	assert.Equal(t, []string{"mia/u1"}, diary.asked)

	diary.err = errors.New("no recent conversation to write about")
	out, _ = r.Execute(context.Background(), scope, "/diary")
	assert.Equal(t, "Error: no recent conversation to write about", out)
}

func TestReminders(t *testing.T) {
	at := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	reminders := stubReminders{"u1": {{At: at, Content: "call mom"}}}
	r := New(NewCommands(&stubMemory{}, &stubContexts{}, Options{Reminders: reminders}), observability.NewMetrics(nil))

	out, _ := r.Execute(context.Background(), scope, "/reminders")
	assert.Contains(t, out, "2024-05-01 18:00:00  call mom")

	out, _ = r.Execute(context.Background(), core.Scope{Persona: "mia", UserID: "u2", ChatID: "u2"}, "/reminders")
	assert.Contains(t, out, "No pending reminders")
}
