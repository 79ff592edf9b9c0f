package ui

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"mockchat/internal/chat"
	"mockchat/internal/config"
	"mockchat/internal/export"
	"mockchat/internal/lifecycle"
	"mockchat/internal/render"
	"mockchat/internal/session"
	"mockchat/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

type fixedAnswers struct{}

func (fixedAnswers) Resolve(input string) chat.Payload {
	return chat.Payload{Kind: chat.PayloadText, Text: "echo: " + input}
}

func immediate(_ time.Duration, fn func(time.Time) tea.Msg) tea.Cmd {
	return func() tea.Msg { return fn(time.Time{}) }
}

func newTestModel(t *testing.T, failureRate float64) (Model, *session.Manager) {
	t.Helper()
	mgr := session.NewManager(store.NewMemory())
	cfg := config.DefaultBehavior()
	cfg.FailureRate = failureRate
	ctrl := lifecycle.New(mgr, fixedAnswers{}, cfg,
		lifecycle.WithScheduler(immediate),
		lifecycle.WithRand(func() float64 { return 0.5 }),
	)
	ctrl.Open(context.Background())

	exp, err := export.New(t.TempDir())
	if err != nil {
		t.Fatalf("exporter: %v", err)
	}
	m := NewModel(config.AppConfig{}, mgr, ctrl, exp, render.NewMarkdown("notty"))
	m = step(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, mgr
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	out, cmd := m.Update(msg)
	return run(t, out.(Model), cmd)
}

// run executes cmd and feeds every resulting message back into the model.
// Spinner ticks are dropped so the chain ends once the reply settles.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for n := 0; len(queue) > 0; n++ {
		if n > 10000 {
			t.Fatal("command chain did not terminate")
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case spinner.TickMsg, nil:
		default:
			out, c := m.Update(msg)
			m = out.(Model)
			queue = append(queue, c)
		}
	}
	return m
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+n":
		return tea.KeyMsg{Type: tea.KeyCtrlN}
	case "ctrl+x":
		return tea.KeyMsg{Type: tea.KeyCtrlX}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.input.SetValue(text)
	return step(t, m, keyPress("enter"))
}

func plain(m Model) string {
	return ansi.Strip(m.viewport.View())
}

func TestRevealText(t *testing.T) {
	cases := []struct {
		in       string
		progress int
		want     string
	}{
		{"abcdefghij", 0, ""},
		{"abcdefghij", 50, "abcde"},
		{"abcdefghij", 100, "abcdefghij"},
		{"abcdefghij", 120, "abcdefghij"},
		{"你好世界", 50, "你好"},
		{"abc", 2, ""},
	}
	for _, tc := range cases {
		if got := revealText(tc.in, tc.progress); got != tc.want {
			t.Fatalf("revealText(%q, %d) = %q, want %q", tc.in, tc.progress, got, tc.want)
		}
	}
}

func TestImageFromInput(t *testing.T) {
	img := imageFromInput(" https://example.com/a/cat.png ")
	if img.URL != "https://example.com/a/cat.png" || img.Name != "cat.png" {
		t.Fatalf("unexpected remote image %#v", img)
	}

	img = imageFromInput("/tmp/pics/dog.jpg")
	if img.URL != "file:///tmp/pics/dog.jpg" || img.Name != "dog.jpg" {
		t.Fatalf("unexpected local image %#v", img)
	}

	if img := imageFromInput("  "); img.URL != "" {
		t.Fatalf("blank input should yield no image, got %#v", img)
	}
}

func TestSendRendersReply(t *testing.T) {
	m, mgr := newTestModel(t, 0)
	m = send(t, m, "hello there")

	msgs := mgr.Current().Messages
	if len(msgs) != 3 {
		t.Fatalf("expected welcome, question, reply; got %d", len(msgs))
	}
	reply := msgs[2]
	if st, _ := mgr.Context().State(reply.ID); st != chat.StateSuccess {
		t.Fatalf("reply should settle to success, got %q", st)
	}
	if m.input.Value() != "" {
		t.Fatalf("input should clear after send, got %q", m.input.Value())
	}
	view := plain(m)
	if !strings.Contains(view, "echo: hello there") {
		t.Fatalf("reply missing from transcript:\n%s", view)
	}
	if mgr.Current().Title != "hello there" {
		t.Fatalf("unexpected title %q", mgr.Current().Title)
	}
}

func TestImageCommand(t *testing.T) {
	m, mgr := newTestModel(t, 0)

	m = send(t, m, "/image")
	if len(mgr.Current().Messages) != 1 || !strings.Contains(m.status, "Usage") {
		t.Fatalf("bare /image should only show usage, status=%q", m.status)
	}

	m = send(t, m, "/image https://example.com/cat.png")
	msgs := mgr.Current().Messages
	if msgs[1].Type != chat.TypeImage || msgs[2].Content.Text != config.ImageReplyText {
		t.Fatalf("unexpected image exchange %#v", msgs)
	}
	if !strings.Contains(plain(m), "[image] https://example.com/cat.png") {
		t.Fatalf("image message missing from transcript:\n%s", plain(m))
	}
}

func TestRetryKeyFlow(t *testing.T) {
	m, mgr := newTestModel(t, 1.0)
	m = send(t, m, "hi")
	reply := mgr.Current().Messages[2]
	if st, _ := mgr.Context().State(reply.ID); st != chat.StateError {
		t.Fatalf("expected failed reply, got %q", st)
	}
	if !strings.Contains(m.status, "retry") {
		t.Fatalf("expected retry hint, got %q", m.status)
	}

	m = step(t, m, keyPress("tab"))
	if m.focus != focusTranscript {
		t.Fatalf("tab should focus the transcript, got %v", m.focus)
	}
	m = step(t, m, keyPress("r"))
	got, _ := mgr.Current().Find(reply.ID)
	if got.Content.Text != config.RetryErrorText {
		t.Fatalf("expected retry error text, got %q", got.Content.Text)
	}
	if len(mgr.Current().Messages) != 3 {
		t.Fatal("retry must rewrite in place")
	}
}

func TestRetryOnSuccessfulReplyIsRejected(t *testing.T) {
	m, mgr := newTestModel(t, 0)
	m = send(t, m, "hi")
	before := mgr.Current().Messages[2]

	m = step(t, m, keyPress("tab"))
	m = step(t, m, keyPress("r"))
	if !strings.Contains(m.status, "Only failed replies") {
		t.Fatalf("unexpected status %q", m.status)
	}
	if after := mgr.Current().Messages[2]; after != before {
		t.Fatal("retry on a successful reply must not change it")
	}
}

func TestRegenerateSelectedReply(t *testing.T) {
	m, mgr := newTestModel(t, 0)
	m = send(t, m, "first")
	m = send(t, m, "second")

	m = step(t, m, keyPress("tab"))
	m = step(t, m, keyPress("p"))
	firstReply := mgr.Current().Messages[2]
	if m.target() != firstReply.ID {
		t.Fatalf("p should select the previous reply, got %d", m.target())
	}

	m = step(t, m, keyPress("g"))
	got, _ := mgr.Current().Find(firstReply.ID)
	if got.Content.Text != "echo: first" {
		t.Fatalf("regenerate should answer the preceding question, got %q", got.Content.Text)
	}

	m = step(t, m, keyPress("p"))
	m = step(t, m, keyPress("p"))
	welcome := mgr.Current().Messages[0]
	if m.target() != welcome.ID {
		t.Fatalf("selection should stop at the first reply, got %d", m.target())
	}
	m = step(t, m, keyPress("g"))
	if m.status != "Nothing to regenerate" {
		t.Fatalf("welcome message has no question to regenerate, status=%q", m.status)
	}
}

func TestNewAndDeleteChat(t *testing.T) {
	m, mgr := newTestModel(t, 0)
	first := mgr.CurrentID()

	m = step(t, m, keyPress("ctrl+n"))
	if len(mgr.Sessions()) != 2 || mgr.CurrentID() == first {
		t.Fatalf("ctrl+n should open a new chat, sessions=%d", len(mgr.Sessions()))
	}
	if len(m.list.Items()) != 2 {
		t.Fatalf("list should show both chats, got %d", len(m.list.Items()))
	}

	m = step(t, m, keyPress("ctrl+x"))
	if len(mgr.Sessions()) != 1 || mgr.CurrentID() != first {
		t.Fatalf("ctrl+x should delete the active chat and fall back, current=%s", mgr.CurrentID())
	}
}

func TestSwitchFromList(t *testing.T) {
	m, mgr := newTestModel(t, 0)
	m = send(t, m, "old chat")
	first := mgr.CurrentID()
	m = step(t, m, keyPress("ctrl+n"))

	m = step(t, m, keyPress("tab"))
	m = step(t, m, keyPress("tab"))
	if m.focus != focusList {
		t.Fatalf("expected list focus, got %v", m.focus)
	}
	m = step(t, m, keyPress("down"))
	m = step(t, m, keyPress("enter"))
	if mgr.CurrentID() != first {
		t.Fatalf("enter should open the highlighted chat, current=%s", mgr.CurrentID())
	}
	if m.focus != focusInput {
		t.Fatalf("opening a chat should return to the input, got %v", m.focus)
	}
	if !strings.Contains(plain(m), "echo: old chat") {
		t.Fatalf("switched transcript missing:\n%s", plain(m))
	}
}

func TestExportAndCopyStatus(t *testing.T) {
	m, _ := newTestModel(t, 0)
	m = send(t, m, "save me")
	m = step(t, m, keyPress("tab"))

	m = step(t, m, keyPress("e"))
	path, ok := strings.CutPrefix(m.status, "Exported: ")
	if !ok {
		t.Fatalf("unexpected export status %q", m.status)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "echo: save me") {
		t.Fatalf("export missing reply:\n%s", data)
	}

	m = step(t, m, keyPress("y"))
	if m.status != "Could not copy: clipboard tool not found" {
		t.Fatalf("unexpected copy status %q", m.status)
	}
}

func TestStatusLineFitsWidth(t *testing.T) {
	m, _ := newTestModel(t, 0)
	m.status = strings.Repeat("long status ", 40)
	if w := ansi.StringWidth(m.statusLine()); w > m.width {
		t.Fatalf("status line width %d exceeds terminal width %d", w, m.width)
	}
}
