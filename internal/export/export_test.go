package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mockchat/internal/chat"
)

func sampleSession() *chat.Session {
	return &chat.Session{
		ID:    "session_1700000000000",
		Title: "你好",
		Messages: []chat.Message{
			{ID: 1, Role: chat.RoleUser, Type: chat.TypeText, Content: chat.Text("你好"), Timestamp: "2024-05-01 10:00"},
			{ID: 2, Role: chat.RoleAssistant, Type: chat.TypeText, Content: chat.Text("hi there")},
			{ID: 3, Role: chat.RoleUser, Type: chat.TypeImage, Content: chat.Text("file:///tmp/cat.png")},
			{ID: 4, Role: chat.RoleAssistant, Type: chat.TypeCard, Content: chat.CardContent(chat.Card{Title: "客服", Phone: "400-000"})},
			{ID: 5, Role: chat.RoleAssistant, Type: chat.TypeText, Content: chat.Text("oops")},
			{ID: 6, Role: chat.RoleAssistant, Type: chat.TypeText, Content: chat.Text("thinking")},
		},
		MessageStates: map[int64]chat.State{
			1: chat.StateSuccess,
			2: chat.StateSuccess,
			5: chat.StateError,
			6: chat.StateLoading,
		},
		CreatedAt: "2024-05-01 10:00",
	}
}

func TestBuildTranscriptMarkdown(t *testing.T) {
	out := BuildTranscriptMarkdown(sampleSession())

	for _, want := range []string{
		"## You · 2024-05-01 10:00\n\n你好",
		"## Assistant\n\nhi there",
		"![image](file:///tmp/cat.png)",
		"**客服**",
		"- Phone: 400-000",
		"## Assistant (failed)\n\noops",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in transcript:\n%s", want, out)
		}
	}
	if strings.Contains(out, "thinking") {
		t.Fatalf("loading messages should be skipped:\n%s", out)
	}
	if strings.Contains(out, "Contact") {
		t.Fatalf("empty card fields should be omitted:\n%s", out)
	}
}

func TestBuildSessionMarkdownHeader(t *testing.T) {
	s := sampleSession()
	now := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	out := BuildSessionMarkdown(s, "body", now)

	if !strings.HasPrefix(out, "# 你好\n\nExported: 2024-05-02T08:00:00Z") {
		t.Fatalf("unexpected header:\n%s", out)
	}
	if !strings.Contains(out, "message_count: 6") || !strings.Contains(out, "updated: n/a") {
		t.Fatalf("unexpected metadata:\n%s", out)
	}
	if !strings.HasSuffix(out, "body\n") {
		t.Fatalf("transcript should end with a newline:\n%q", out)
	}
}

func TestExportWritesFile(t *testing.T) {
	dir := t.TempDir()
	e := &Exporter{overrideDir: dir, cwd: "/unused", now: time.Now}

	path, err := e.Export(sampleSession())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if path != filepath.Join(dir, "session_1700000000000.md") {
		t.Fatalf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "hi there") {
		t.Fatalf("export missing transcript:\n%s", data)
	}
}

func TestOutputPath(t *testing.T) {
	s := &chat.Session{ID: "a/b c"}

	e := &Exporter{cwd: "/work"}
	if got := e.outputPath(s); got != "/work/exports/a_b_c.md" {
		t.Fatalf("unexpected default path %s", got)
	}

	e.overrideDir = "out"
	if got := e.outputPath(s); got != "/work/out/a_b_c.md" {
		t.Fatalf("relative override should resolve against cwd, got %s", got)
	}

	e.overrideDir = "/abs"
	if got := e.outputPath(&chat.Session{}); got != "/abs/session.md" {
		t.Fatalf("unexpected path %s", got)
	}
}
