package chat

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDeriveTitleTruncatesAtTwentyRunes(t *testing.T) {
	long := "abcdefghijklmnopqrstu" // 21 chars
	msgs := []Message{
		{Role: RoleAssistant, Content: Text("welcome")},
		{Role: RoleUser, Type: TypeText, Content: Text(long)},
	}
	got := DeriveTitle(msgs, 20, "新对话")
	if got != "abcdefghijklmnopqrst..." {
		t.Fatalf("unexpected title: %q", got)
	}

	exact := strings.Repeat("你", 20)
	got = DeriveTitle([]Message{{Role: RoleUser, Content: Text(exact)}}, 20, "新对话")
	if got != exact {
		t.Fatalf("20-rune title should not be truncated, got %q", got)
	}
}

func TestDeriveTitleKeepsCurrentWithoutUserText(t *testing.T) {
	cases := []struct {
		name string
		msgs []Message
	}{
		{"no user message", []Message{{Role: RoleAssistant, Content: Text("hi")}}},
		{"image first", []Message{{Role: RoleUser, Type: TypeImage, Content: Text("data:image/png;base64,xx")}}},
		{"empty", nil},
	}
	for _, tc := range cases {
		if got := DeriveTitle(tc.msgs, 20, "新对话"); got != "新对话" {
			t.Fatalf("%s: got %q", tc.name, got)
		}
	}
}

func TestNormalizeAnswer(t *testing.T) {
	card := NormalizeAnswer(Payload{Kind: PayloadCard, Card: Card{Title: "Support"}})
	if !card.IsCard() || card.Card.Type != "card" || card.MessageType() != TypeCard {
		t.Fatalf("expected card content, got %#v", card)
	}

	markup := NormalizeAnswer(Payload{Kind: PayloadMarkup, Text: "**raw**", Markup: "<b>raw</b>"})
	if markup.IsCard() || markup.Text != "**raw**" {
		t.Fatalf("markup payload should normalize to raw text, got %#v", markup)
	}

	obj := NormalizeAnswer(Payload{Kind: PayloadObject, Object: map[string]any{"a": 1}})
	if obj.Text != `{"a":1}` {
		t.Fatalf("object payload should serialize, got %q", obj.Text)
	}
}

func TestCopyText(t *testing.T) {
	card := Message{
		Type:    TypeCard,
		Content: CardContent(Card{Title: "Shop", URL: "https://example.com", Phone: "123"}),
	}
	if got := CopyText(card); got != "Shop\nhttps://example.com\n123" {
		t.Fatalf("unexpected card copy text: %q", got)
	}

	text := Message{Type: TypeText, Content: Text("hello")}
	if got := CopyText(text); got != "hello" {
		t.Fatalf("unexpected text copy: %q", got)
	}

	mistyped := Message{Type: TypeText, Content: CardContent(Card{Title: "x"})}
	if got := CopyText(mistyped); got != `{"type":"card","title":"x"}` {
		t.Fatalf("expected raw serialization, got %q", got)
	}
}

func TestContentJSON(t *testing.T) {
	msgs := []Message{
		{ID: 1, Role: RoleUser, Type: TypeText, Content: Text("hi")},
		{ID: 2, Role: RoleAssistant, Type: TypeCard, Content: CardContent(Card{Title: "T", Contact: "C"})},
	}
	raw, err := json.Marshal(msgs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"content":"hi"`) {
		t.Fatalf("text content should encode as a string: %s", raw)
	}

	var back []Message
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back[0].Content != msgs[0].Content || back[1].Content != msgs[1].Content {
		t.Fatalf("content mismatch: %#v", back)
	}
}

func TestContentUnmarshalLenient(t *testing.T) {
	var c Content
	if err := json.Unmarshal([]byte(`{"foo": [1, 2]}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.IsCard() || c.Text != `{"foo":[1,2]}` {
		t.Fatalf("unexpected content: %#v", c)
	}
	if err := json.Unmarshal([]byte(`42`), &c); err != nil || c.Text != "42" {
		t.Fatalf("number content: %#v err=%v", c, err)
	}
}

func TestIDSourceIsStrictlyIncreasing(t *testing.T) {
	fixed := time.UnixMilli(1000)
	ids := NewIDSource(func() time.Time { return fixed })
	a, b, c := ids.Next(), ids.Next(), ids.Next()
	if a != 1000 || b != 1001 || c != 1002 {
		t.Fatalf("unexpected ids: %d %d %d", a, b, c)
	}
}

func TestIDSourceSkipsObservedIDs(t *testing.T) {
	ids := NewIDSource(func() time.Time { return time.UnixMilli(1000) })
	ids.Observe(5000)
	ids.Observe(10) // lower ids never move the floor back
	if got := ids.Next(); got != 5001 {
		t.Fatalf("expected 5001 after observing 5000, got %d", got)
	}
}
