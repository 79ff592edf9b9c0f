package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

const timeLayout = "2006-01-02 15:04"

func FormatTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}

type PayloadKind int

const (
	PayloadText PayloadKind = iota
	PayloadCard
	PayloadMarkup
	PayloadObject
)

// Payload is a reply as the answer table stores it, before normalization.
type Payload struct {
	Kind   PayloadKind
	Text   string
	Card   Card
	Markup string
	Object map[string]any
}

// NormalizeAnswer converts a raw reply payload into message content. Markup
// payloads keep only the raw text; rendering happens at display time.
func NormalizeAnswer(p Payload) Content {
	switch p.Kind {
	case PayloadCard:
		return CardContent(p.Card)
	case PayloadMarkup, PayloadText:
		return Text(p.Text)
	case PayloadObject:
		raw, err := json.Marshal(p.Object)
		if err != nil {
			return Text(fmt.Sprint(p.Object))
		}
		return Text(string(raw))
	default:
		return Text(p.Text)
	}
}

// CopyText returns the clipboard form of a message.
func CopyText(m Message) string {
	if m.Type == TypeCard && m.Content.IsCard() {
		c := m.Content.Card
		parts := make([]string, 0, 5)
		for _, field := range []string{c.Title, c.Content, c.URL, c.Contact, c.Phone} {
			if field != "" {
				parts = append(parts, field)
			}
		}
		return strings.Join(parts, "\n")
	}
	if !m.Content.IsCard() {
		return m.Content.Text
	}
	raw, err := json.Marshal(m.Content)
	if err != nil {
		return ""
	}
	return string(raw)
}

// DeriveTitle takes the first user message. Image messages and sessions
// without a user message keep the current title.
func DeriveTitle(messages []Message, limit int, current string) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		if m.Content.IsCard() || m.Type == TypeImage {
			return current
		}
		runes := []rune(m.Content.Text)
		if len(runes) > limit {
			return string(runes[:limit]) + "..."
		}
		return m.Content.Text
	}
	return current
}

// IDSource hands out millisecond timestamps, bumped when two ids would collide.
type IDSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDSource(now func() time.Time) *IDSource {
	if now == nil {
		now = time.Now
	}
	return &IDSource{now: now}
}

func (s *IDSource) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.now().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}

// Observe records an id handed out elsewhere, such as one loaded from
// storage, so Next never returns it or anything below it.
func (s *IDSource) Observe(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id > s.last {
		s.last = id
	}
}
