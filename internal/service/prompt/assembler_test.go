package prompt

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sandevgo/companion/internal/core"
)

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		core    string
		persona string
		isGroup bool
		group   string
		want    string
	}{
		{
			name:    "no core memory",
			base:    "BASE",
			persona: "PERSONA",
			want:    "BASE\n\nPERSONA",
		},
		{
			name:    "with core memory",
			base:    "BASE",
			core:    "likes tea",
			persona: "PERSONA",
			want:    "BASE\n\n# Core Memory\nlikes tea\n\nPERSONA",
		},
		{
			name:    "whitespace core memory is omitted",
			base:    "BASE",
			core:    "  \n",
			persona: "PERSONA",
			want:    "BASE\n\nPERSONA",
		},
		{
			name:    "group preamble precedes persona",
			base:    "BASE",
			core:    "likes tea",
			persona: "PERSONA",
			isGroup: true,
			group:   "GROUP",
			want:    "BASE\n\n# Core Memory\nlikes tea\n\nGROUP\n\nPERSONA",
		},
		{
			name:    "group preamble ignored for private chat",
			base:    "BASE",
			persona: "PERSONA",
			group:   "GROUP",
			want:    "BASE\n\nPERSONA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildPrompt(tt.base, tt.core, tt.persona, tt.isGroup, tt.group)
			if got != tt.want {
				t.Errorf("BuildPrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func history(n int) []core.Message {
	msgs := make([]core.Message, 0, n)
	for i := 0; i < n; i++ {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAssistant
		}
		msgs = append(msgs, core.Message{Role: role, Content: strings.Repeat("x", i+1)})
	}
	return msgs
}

func TestBuildMessages_TrimsHistory(t *testing.T) {
	h := history(30)

	got := BuildMessages("SYS", h, "new", 10)

	if len(got) != 1+20+1 {
		t.Fatalf("expected 22 messages, got %d", len(got))
	}
	if diff := cmp.Diff(h[10:], got[1:21]); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	if got[0].Role != core.RoleSystem || got[21].Content != "new" {
		t.Errorf("unexpected framing: %+v ... %+v", got[0], got[21])
	}
}

func TestBuildMessages_NoDuplicateUserMessage(t *testing.T) {
	h := []core.Message{
		{Role: core.RoleUser, Content: "hi"},
		{Role: core.RoleAssistant, Content: "hello"},
		{Role: core.RoleUser, Content: "again"},
	}

	got := BuildMessages("SYS", h, "again", 10)
	if len(got) != 4 {
		t.Fatalf("expected 4 messages, got %d: %+v", len(got), got)
	}
}

func TestFlattenMessages(t *testing.T) {
	h := []core.Message{
		{Role: core.RoleUser, Content: "hi"},
		{Role: core.RoleAssistant, Content: "hello"},
	}

	got := FlattenMessages("SYS", h, "what now?")
	want := "SYS\n\nConversation history:\nuser: hi\nassistant: hello\n\nUser question: what now?"
	if got != want {
		t.Errorf("FlattenMessages() = %q, want %q", got, want)
	}
}

func TestCountTokens(t *testing.T) {
	if CountTokens("") != 0 {
		t.Error("empty text must count as zero")
	}
	if CountTokens("hello there, how are you today?") <= 0 {
		t.Error("expected a positive estimate")
	}
}
