package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"mockchat/internal/chat"
	"mockchat/internal/clipboard"
	"mockchat/internal/config"
	"mockchat/internal/export"
	"mockchat/internal/lifecycle"
	"mockchat/internal/logger"
	"mockchat/internal/render"
	"mockchat/internal/session"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// imageCommand prefixes input that should be sent as an image.
const imageCommand = "/image "

const titleWidth = 28

type focusArea int

const (
	focusInput focusArea = iota
	focusTranscript
	focusList
)

type Model struct {
	cfg      config.AppConfig
	sessions *session.Manager
	ctrl     *lifecycle.Controller
	exporter *export.Exporter
	md       *render.Markdown

	list     list.Model
	viewport viewport.Model
	help     help.Model
	spinner  spinner.Model
	input    textinput.Model
	keys     keyMap

	width  int
	height int

	focus    focusArea
	selected int64
	rendered map[string]string

	status string
	err    error
	log    *slog.Logger
}

type exportMsg struct {
	path string
	err  error
}

type sessionItem struct {
	s      *chat.Session
	active bool
}

func (i sessionItem) Title() string {
	title := i.s.Title
	if i.active {
		title = "● " + title
	}
	return ansi.Truncate(title, titleWidth, "…")
}

func (i sessionItem) Description() string {
	return fmt.Sprintf("%s | %d msgs", i.s.UpdatedAt, len(i.s.Messages))
}

func (i sessionItem) FilterValue() string {
	return strings.ToLower(i.s.Title)
}

func NewModel(cfg config.AppConfig, sessions *session.Manager, ctrl *lifecycle.Controller, exp *export.Exporter, md *render.Markdown) Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 40, 20)
	l.Title = "Chats"
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	vp := viewport.New(60, 20)

	h := help.New()
	h.ShowAll = false

	sp := spinner.New()
	sp.Spinner = spinner.Points

	ti := textinput.New()
	ti.Placeholder = "Ask something, or /image <path-or-url>"
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Focus()

	m := Model{
		cfg:      cfg,
		sessions: sessions,
		ctrl:     ctrl,
		exporter: exp,
		md:       md,
		list:     l,
		viewport: vp,
		help:     h,
		spinner:  sp,
		input:    ti,
		keys:     defaultKeys(),
		focus:    focusInput,
		rendered: make(map[string]string),
		log:      logger.ComponentLogger("UI"),
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.ctrl.Update(msg)}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()

	case lifecycle.StreamDoneMsg:
		if msg.Succeeded {
			m.status = ""
		} else {
			m.status = "Reply failed, press r on it to retry"
		}

	case lifecycle.CopiedMsg:
		switch {
		case msg.Err == nil:
			m.status = "Copied reply to clipboard"
		case errors.Is(msg.Err, clipboard.ErrToolNotFound), errors.Is(msg.Err, lifecycle.ErrNoClipboard):
			m.status = "Could not copy: clipboard tool not found"
		default:
			m.status = "Could not copy: " + msg.Err.Error()
		}

	case exportMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Exported: " + msg.path
		}

	case spinner.TickMsg:
		if m.ctrl.Busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		cmds = append(cmds, m.handleKey(msg))

	default:
		if m.focus == focusInput {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.refresh()
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.NewChat):
		m.ctrl.NewChat()
		m.selected = 0
		m.setFocus(focusInput)
		m.status = "New chat"
		return nil
	case key.Matches(msg, m.keys.DeleteChat):
		id := m.sessions.CurrentID()
		if m.focus == focusList {
			id = m.listSelectedID()
		}
		if m.ctrl.Delete(id) {
			m.selected = 0
			m.status = "Deleted chat"
		}
		return nil
	case key.Matches(msg, m.keys.Tab):
		m.setFocus((m.focus + 1) % 3)
		return nil
	}

	switch m.focus {
	case focusInput:
		return m.updateInput(msg)
	case focusList:
		return m.updateList(msg)
	default:
		return m.updateTranscript(msg)
	}
}

func (m *Model) updateInput(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Send):
		return m.submit(m.input.Value())
	case key.Matches(msg, m.keys.Esc):
		m.setFocus(focusTranscript)
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) submit(value string) tea.Cmd {
	text := strings.TrimSpace(value)
	if raw, ok := strings.CutPrefix(text+" ", imageCommand); ok {
		img := imageFromInput(raw)
		if img.URL == "" {
			m.status = "Usage: /image <path-or-url>"
			return nil
		}
		cmd, err := m.ctrl.SendImage(img)
		return m.started(cmd, err, true)
	}
	cmd, err := m.ctrl.Send(value)
	return m.started(cmd, err, true)
}

// imageFromInput accepts a URL or a local path, which becomes a file URL.
func imageFromInput(raw string) chat.Image {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return chat.Image{}
	}
	if strings.Contains(raw, "://") {
		return chat.Image{URL: raw, Name: path.Base(raw)}
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		abs = raw
	}
	return chat.Image{URL: "file://" + filepath.ToSlash(abs), Name: filepath.Base(abs)}
}

// started reports the outcome of a lifecycle call and kicks the spinner
// when a request was scheduled.
func (m *Model) started(cmd tea.Cmd, err error, fromInput bool) tea.Cmd {
	switch {
	case errors.Is(err, lifecycle.ErrBusy):
		m.status = "Still replying, please wait"
		return nil
	case errors.Is(err, lifecycle.ErrEmptyMessage):
		return nil
	case err != nil:
		m.err = err
		m.status = "Send failed: " + err.Error()
		return nil
	case cmd == nil:
		return nil
	}
	if fromInput {
		m.input.Reset()
		m.selected = 0
	}
	m.err = nil
	m.status = ""
	return tea.Batch(cmd, m.spinner.Tick)
}

func (m *Model) updateTranscript(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Compose), key.Matches(msg, m.keys.Esc):
		m.setFocus(focusInput)
	case key.Matches(msg, m.keys.Retry):
		cmd, err := m.ctrl.Retry(m.target())
		if cmd == nil && err == nil {
			m.status = "Only failed replies can be retried"
		}
		return m.started(cmd, err, false)
	case key.Matches(msg, m.keys.Regenerate):
		cmd, err := m.ctrl.Regenerate(m.target())
		if cmd == nil && err == nil {
			m.status = "Nothing to regenerate"
		}
		return m.started(cmd, err, false)
	case key.Matches(msg, m.keys.Copy):
		if id := m.target(); id != 0 {
			return m.ctrl.Copy(id)
		}
	case key.Matches(msg, m.keys.Export):
		return m.exportCmd()
	case key.Matches(msg, m.keys.PrevReply):
		m.moveSelection(-1)
	case key.Matches(msg, m.keys.NextReply):
		m.moveSelection(1)
	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
	}
	return nil
}

func (m *Model) updateList(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Select):
		if m.ctrl.Switch(m.listSelectedID()) {
			m.selected = 0
		}
		m.setFocus(focusInput)
		return nil
	case key.Matches(msg, m.keys.Export):
		return m.exportCmd()
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return cmd
}

func (m *Model) setFocus(f focusArea) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m *Model) listSelectedID() string {
	item, ok := m.list.SelectedItem().(sessionItem)
	if !ok {
		return ""
	}
	return item.s.ID
}

func (m *Model) assistantIDs() []int64 {
	s := m.sessions.Current()
	if s == nil {
		return nil
	}
	var ids []int64
	for _, msg := range s.Messages {
		if msg.Role == chat.RoleAssistant {
			ids = append(ids, msg.ID)
		}
	}
	return ids
}

// target is the assistant message the action keys apply to: the selected
// one when it still exists, otherwise the latest.
func (m *Model) target() int64 {
	ids := m.assistantIDs()
	if len(ids) == 0 {
		return 0
	}
	if m.selected != 0 && slices.Contains(ids, m.selected) {
		return m.selected
	}
	return ids[len(ids)-1]
}

func (m *Model) moveSelection(delta int) {
	ids := m.assistantIDs()
	if len(ids) == 0 {
		return
	}
	idx := slices.Index(ids, m.target()) + delta
	idx = max(0, min(idx, len(ids)-1))
	m.selected = ids[idx]
}

func (m *Model) exportCmd() tea.Cmd {
	s := m.sessions.Current()
	if s == nil || m.exporter == nil {
		return nil
	}
	snap := *s
	snap.Messages = slices.Clone(s.Messages)
	snap.MessageStates = maps.Clone(s.MessageStates)
	exp := m.exporter
	return func() tea.Msg {
		p, err := exp.Export(&snap)
		return exportMsg{path: p, err: err}
	}
}

func (m *Model) refresh() {
	items := make([]list.Item, 0, len(m.sessions.Sessions()))
	current := 0
	for i, s := range m.sessions.Sessions() {
		active := s.ID == m.sessions.CurrentID()
		if active {
			current = i
		}
		items = append(items, sessionItem{s: s, active: active})
	}
	m.list.SetItems(items)
	if m.focus != focusList {
		m.list.Select(current)
	}

	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.transcript())
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	left, right := m.paneWidths()

	bodyHeight := m.height - 2
	if bodyHeight < 8 {
		bodyHeight = 8
	}

	m.list.SetSize(left-2, bodyHeight-2)
	m.viewport.Width = right - 4
	m.viewport.Height = bodyHeight - 4
	m.input.Width = right - 8
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}

	left, right := m.paneWidths()
	leftPane := panelStyle(m.focus == focusList).Width(left).Height(m.height - 2).Render(m.list.View())

	divider := dimStyle.Render(strings.Repeat("─", max(m.viewport.Width, 0)))
	chatBody := lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), divider, m.input.View())
	rightPane := panelStyle(m.focus != focusList).Width(right).Height(m.height - 2).Render(chatBody)
	body := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusLine(),
		body,
		m.help.View(m.keys),
	)
}

func (m Model) statusLine() string {
	status := ""
	if s := m.sessions.Current(); s != nil {
		status = fmt.Sprintf("%s  messages=%d", s.Title, len(s.Messages))
	}
	if m.ctrl.Busy() {
		status += "  " + m.spinner.View() + " replying"
	}
	switch m.focus {
	case focusTranscript:
		status += "  [transcript]"
	case focusList:
		status += "  [chats]"
	}
	if strings.TrimSpace(m.status) != "" {
		status += "  " + strings.TrimSpace(m.status)
	}
	if m.err != nil {
		status += "  err=" + m.err.Error()
	}
	if m.width > 2 {
		status = ansi.Truncate(status, m.width-2, "…")
	}
	return statusStyle.Render(status)
}

func (m *Model) paneWidths() (int, int) {
	left := m.width / 4
	if left < 28 {
		left = 28
	}
	if left > m.width-40 {
		left = m.width - 40
	}
	if left < 20 {
		left = 20
	}
	right := m.width - left - 1
	if right < 30 {
		right = 30
	}
	return left, right
}
