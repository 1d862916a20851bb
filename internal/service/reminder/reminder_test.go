package reminder

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/internal/service/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu      sync.Mutex
	reply   string
	prompts []string
	systems []string
	cleared []string
}

func (g *fakeGateway) GetResponse(_ context.Context, message, _, system string, _ []core.Message, _ string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, message)
	g.systems = append(g.systems, system)
	return g.reply
}

func (g *fakeGateway) ClearContext(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cleared = append(g.cleared, id)
	return true
}

type batchRecorder struct {
	ch chan queue.Batch
}

func (r *batchRecorder) HandleBatch(_ context.Context, b queue.Batch) error {
	r.ch <- b
	return nil
}

func (r *batchRecorder) next(t *testing.T) queue.Batch {
	t.Helper()
	select {
	case b := <-r.ch:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("no reminder delivered")
		return queue.Batch{}
	}
}

func (r *batchRecorder) none(t *testing.T) {
	t.Helper()
	select {
	case b := <-r.ch:
		t.Fatalf("unexpected reminder: %+v", b)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestParseRequests(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    []Request
		wantErr bool
	}{
		{name: "not time related", reply: " NOT_TIME_RELATED "},
		{name: "empty", reply: ""},
		{
			name:  "wrapped in prose",
			reply: "Sure!\n```json\n{\"reminders\": [{\"target_time\": \"2024-05-01 09:20:00\", \"reminder_content\": \"call mom\"}]}\n```",
			want:  []Request{{At: epoch.Add(20 * time.Minute), Content: "call mom"}},
		},
		{
			name: "bad entries skipped",
			reply: `{"reminders": [
				{"target_time": "tomorrow", "reminder_content": "x"},
				{"target_time": "2024-05-01 10:00:00", "reminder_content": " "},
				{"target_time": "2024-05-01 11:00:00", "reminder_content": "stretch"}
			]}`,
			want: []Request{{At: epoch.Add(2 * time.Hour), Content: "stretch"}},
		},
		{name: "no json", reply: "I will remind you", wantErr: true},
		{name: "broken json", reply: `{"reminders": [}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRequests(tt.reply, time.UTC)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecognizer(t *testing.T) {
	gw := &fakeGateway{reply: `{"reminders": [{"target_time": "2024-05-01 09:30:00", "reminder_content": "tea"}]}`}
	r := NewRecognizer(gw, nil, clockwork.NewFakeClockAt(epoch))

	reqs := r.Recognize(context.Background(), "42", "remind me about tea in 30 minutes")
	require.Len(t, reqs, 1)
	assert.Equal(t, epoch.Add(30*time.Minute), reqs[0].At)

	require.Len(t, gw.prompts, 1)
	assert.True(t, strings.HasPrefix(gw.prompts[0], "Current time: 2024-05-01 09:00:00\n"))
	assert.Contains(t, gw.prompts[0], "remind me about tea in 30 minutes")
	assert.Equal(t, defaultSystem, gw.systems[0])
	assert.Equal(t, []string{"reminder/42"}, gw.cleared)

	gw.reply = "Error: http 500"
	assert.Empty(t, r.Recognize(context.Background(), "42", "remind me"))
}

// newTestScheduler returns the scheduler with the Advance of its fake clock.
func newTestScheduler(reply string) (*Scheduler, *fakeGateway, *batchRecorder, func(time.Duration)) {
	clk := clockwork.NewFakeClockAt(epoch)
	gw := &fakeGateway{reply: reply}
	rec := &batchRecorder{ch: make(chan queue.Batch, 4)}
	s := NewScheduler(context.Background(), NewRecognizer(gw, nil, clk), rec, Options{Clock: clk})
	return s, gw, rec, clk.Advance
}

func TestScheduler_DeliversDueReminder(t *testing.T) {
	s, _, rec, advance := newTestScheduler(`{"reminders": [
		{"target_time": "2024-05-01 09:30:00", "reminder_content": "drink water"},
		{"target_time": "2024-05-01 09:10:00", "reminder_content": "stand up"}
	]}`)
	defer s.Shutdown(context.Background())

	meta := core.SenderMeta{Transport: "telegram", ChatID: "42", SenderName: "Ann"}
	require.NoError(t, s.HandleBatch(context.Background(), queue.Batch{Text: "remind me", Meta: meta}))

	pending := s.Pending("42")
	require.Len(t, pending, 2)
	assert.Equal(t, "stand up", pending[0].Content)
	assert.Equal(t, "drink water", pending[1].Content)
	assert.Empty(t, s.Pending("7"))

	advance(10 * time.Minute)
	b := rec.next(t)
	assert.Contains(t, b.Text, "remind them about stand up")
	assert.Equal(t, "42", b.Key)
	assert.Equal(t, core.SenderMeta{
		Transport:  "telegram",
		ChatID:     "42",
		SenderName: core.SystemSender,
		Username:   core.SystemSender,
	}, b.Meta)
	assert.True(t, b.Meta.IsSystem())
	rec.none(t)
	assert.Len(t, s.Pending("42"), 1)

	advance(20 * time.Minute)
	assert.Contains(t, rec.next(t).Text, "drink water")
	assert.Empty(t, s.Pending("42"))
}

func TestScheduler_SystemBatchesAreNotScanned(t *testing.T) {
	s, gw, _, _ := newTestScheduler(`{"reminders": [{"target_time": "2024-05-01 09:30:00", "reminder_content": "x"}]}`)
	defer s.Shutdown(context.Background())

	meta := core.SenderMeta{ChatID: "42", SenderName: core.SystemSender}
	require.NoError(t, s.HandleBatch(context.Background(), queue.Batch{Text: "remind me", Meta: meta}))

	assert.Empty(t, gw.prompts)
	assert.Empty(t, s.Pending("42"))
}

func TestScheduler_Add(t *testing.T) {
	s, _, rec, advance := newTestScheduler("")
	ctx := context.Background()
	meta := core.SenderMeta{ChatID: "42"}

	assert.False(t, s.Add(ctx, epoch.Add(-2*time.Minute), "too late", meta))
	assert.True(t, s.Add(ctx, epoch.Add(-30*time.Second), "just missed", meta))
	assert.Contains(t, rec.next(t).Text, "just missed")

	assert.True(t, s.Add(ctx, epoch.Add(time.Hour), "later", meta))
	require.NoError(t, s.Shutdown(ctx))
	assert.Empty(t, s.Pending("42"))

	advance(2 * time.Hour)
	rec.none(t)
	assert.False(t, s.Add(ctx, epoch.Add(3*time.Hour), "after shutdown", meta))
}
