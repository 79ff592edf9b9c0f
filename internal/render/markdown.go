package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

const maxRenderChars = 500_000

// Markdown renders reply text for the terminal. Renderers are cached per
// wrap width since glamour bakes the width in at construction.
type Markdown struct {
	style string

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
}

func NewMarkdown(style string) *Markdown {
	return &Markdown{style: style, renderers: make(map[int]*glamour.TermRenderer)}
}

func (m *Markdown) renderer(wrap int) (*glamour.TermRenderer, error) {
	if wrap < 20 {
		wrap = 20
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.renderers[wrap]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	m.renderers[wrap] = r
	return r, nil
}

// Render returns md unchanged when it is too large or rendering fails.
func (m *Markdown) Render(md string, wrap int) (string, error) {
	if strings.TrimSpace(md) == "" || len(md) > maxRenderChars {
		return md, nil
	}
	r, err := m.renderer(wrap)
	if err != nil {
		return md, err
	}
	out, err := r.Render(md)
	if err != nil {
		return md, fmt.Errorf("render markdown: %w", err)
	}
	return strings.Trim(out, "\n"), nil
}
