package ui

import (
	"fmt"
	"strings"

	"mockchat/internal/chat"

	"github.com/charmbracelet/lipgloss"
)

// revealText returns the first progress percent of s, counted in runes.
func revealText(s string, progress int) string {
	if progress >= 100 {
		return s
	}
	if progress <= 0 {
		return ""
	}
	runes := []rune(s)
	return string(runes[:len(runes)*progress/100])
}

func (m *Model) transcript() string {
	s := m.sessions.Current()
	if s == nil {
		return ""
	}
	width := m.viewport.Width
	if width < 20 {
		width = 20
	}
	target := int64(0)
	if m.focus == focusTranscript {
		target = m.target()
	}

	blocks := make([]string, 0, len(s.Messages))
	for _, msg := range s.Messages {
		blocks = append(blocks, m.messageView(msg, width, msg.ID == target))
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) messageView(msg chat.Message, width int, selected bool) string {
	state, _ := m.sessions.Context().State(msg.ID)

	header := userLabelStyle.Render("You")
	if msg.Role == chat.RoleAssistant {
		header = assistantLabelStyle.Render("Assistant")
	}
	if msg.Timestamp != "" {
		header += " " + dimStyle.Render(msg.Timestamp)
	}
	switch state {
	case chat.StateLoading:
		header += " " + m.spinner.View()
	case chat.StateError:
		header += " " + errorStyle.Render("✗ failed")
	}

	block := header + "\n" + m.messageBody(msg, state, width-2)
	if selected {
		return selectedStyle.Render(block)
	}
	return unselectedStyle.Render(block)
}

func (m *Model) messageBody(msg chat.Message, state chat.State, width int) string {
	if msg.Role == chat.RoleUser {
		if msg.Type == chat.TypeImage {
			return "[image] " + msg.Content.Text
		}
		return lipgloss.NewStyle().Width(width).Render(msg.Content.Text)
	}

	progress, tracked := m.ctrl.Progress(msg.ID)
	switch {
	case state == chat.StateLoading && !tracked:
		return dimStyle.Width(width).Render(msg.Content.Text)
	case msg.Content.IsCard():
		card := cardView(msg.Content.Card, width)
		if tracked && progress < 100 {
			card += "\n" + dimStyle.Render(fmt.Sprintf("%d%%", progress))
		}
		return card
	case tracked && progress < 100:
		return lipgloss.NewStyle().Width(width).Render(revealText(msg.Content.Text, progress)) + cursorStyle.Render("▍")
	case state == chat.StateError:
		return errorStyle.Width(width).Render(msg.Content.Text)
	default:
		return m.markdown(msg, width)
	}
}

func (m *Model) markdown(msg chat.Message, width int) string {
	cacheKey := fmt.Sprintf("%d|%d|%s", width, msg.ID, msg.Content.Text)
	if out, ok := m.rendered[cacheKey]; ok {
		return out
	}
	out, err := m.md.Render(msg.Content.Text, width)
	if err != nil {
		m.log.Warn("markdown render failed", "messageID", msg.ID, "error", err)
		out = lipgloss.NewStyle().Width(width).Render(msg.Content.Text)
	}
	m.rendered[cacheKey] = out
	return out
}

func cardView(c chat.Card, width int) string {
	lines := make([]string, 0, 5)
	if c.Title != "" {
		lines = append(lines, cardTitleStyle.Render(c.Title))
	}
	for _, f := range []struct{ label, value string }{
		{"", c.Content},
		{"link", c.URL},
		{"contact", c.Contact},
		{"phone", c.Phone},
	} {
		if f.value == "" {
			continue
		}
		if f.label == "" {
			lines = append(lines, f.value)
			continue
		}
		lines = append(lines, dimStyle.Render(f.label+": ")+f.value)
	}
	inner := width - 4
	if inner < 10 {
		inner = 10
	}
	return cardStyle.Width(inner).Render(strings.Join(lines, "\n"))
}
