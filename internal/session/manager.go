package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
	"time"

	"mockchat/internal/chat"
	"mockchat/internal/config"
	"mockchat/internal/logger"
	"mockchat/internal/store"
)

const persistTimeout = 2 * time.Second

// snapshot is the stored document under config.StorageKeySessions.
type snapshot struct {
	Sessions         []*chat.Session `json:"sessions"`
	CurrentSessionID string          `json:"currentSessionId"`
}

// Manager owns the session list and the active-session pointer. Every
// mutation is persisted. A Manager is not safe for concurrent use; the UI
// drives it from its update loop.
type Manager struct {
	store   store.Store
	ids     *chat.IDSource
	now     func() time.Time
	welcome string

	sessions  []*chat.Session
	currentID string
	active    Context
	onLeave   []func(*chat.Session)

	log *slog.Logger
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithWelcome(text string) Option {
	return func(m *Manager) { m.welcome = text }
}

func NewManager(st store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:   st,
		now:     time.Now,
		welcome: config.WelcomeText,
		log:     logger.ComponentLogger("Sessions"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ids = chat.NewIDSource(m.now)
	m.active.onChange = m.save
	return m
}

func (m *Manager) IDs() *chat.IDSource { return m.ids }

func (m *Manager) Now() time.Time { return m.now() }

func (m *Manager) Sessions() []*chat.Session { return m.sessions }

func (m *Manager) CurrentID() string { return m.currentID }

func (m *Manager) Context() *Context { return &m.active }

func (m *Manager) Session(id string) *chat.Session {
	for _, s := range m.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (m *Manager) Current() *chat.Session {
	return m.Session(m.currentID)
}

// OnLeave registers fn to run with the active session right before the
// context moves away from it.
func (m *Manager) OnLeave(fn func(*chat.Session)) {
	m.onLeave = append(m.onLeave, fn)
}

func (m *Manager) leave() {
	prev := m.Current()
	if prev == nil {
		return
	}
	for _, fn := range m.onLeave {
		fn(prev)
	}
}

func (m *Manager) stamp() string {
	return chat.FormatTime(m.now())
}

func (m *Manager) newSessionID() string {
	return "session_" + strconv.FormatInt(m.ids.Next(), 10)
}

// ResetSession rebinds the active context to id, generating an id when
// empty. Pending sending state is cleared.
func (m *Manager) ResetSession(id string) {
	if id == "" {
		id = m.newSessionID()
	}
	m.active.bind(id, m.Session(id))
}

func (m *Manager) SetMessageState(id int64, state chat.State) {
	m.active.SetMessageState(id, state)
}

func (m *Manager) SetIsSending(sending bool) {
	m.active.SetSending(sending)
}

// CreateNewSession prepends a session seeded with the welcome message and
// makes it active.
func (m *Manager) CreateNewSession() *chat.Session {
	m.leave()

	welcome := chat.Message{
		ID:        m.ids.Next(),
		Role:      chat.RoleAssistant,
		Type:      chat.TypeText,
		Content:   chat.Text(m.welcome),
		Timestamp: m.stamp(),
	}
	s := &chat.Session{
		ID:            m.newSessionID(),
		Title:         config.DefaultTitle,
		Messages:      []chat.Message{welcome},
		MessageStates: map[int64]chat.State{welcome.ID: chat.StateSuccess},
		CreatedAt:     m.stamp(),
		UpdatedAt:     m.stamp(),
	}
	m.sessions = append([]*chat.Session{s}, m.sessions...)
	m.currentID = s.ID
	m.ResetSession(s.ID)
	m.save()

	m.log.Debug("session created", "sessionID", s.ID)
	return s
}

// SwitchSession reports whether the active session changed.
func (m *Manager) SwitchSession(id string) bool {
	if id == m.currentID {
		return false
	}
	if m.Session(id) == nil {
		m.log.Warn("switch to unknown session ignored", "sessionID", id)
		return false
	}
	m.leave()
	m.currentID = id
	m.ResetSession(id)
	m.save()
	return true
}

// DeleteSession removes id. Deleting the active session activates the
// first remaining one, or a fresh session when none remain.
func (m *Manager) DeleteSession(id string) bool {
	idx := -1
	for i, s := range m.sessions {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}

	wasActive := id == m.currentID
	if wasActive {
		m.leave()
	}
	m.sessions = append(m.sessions[:idx:idx], m.sessions[idx+1:]...)

	if wasActive {
		if len(m.sessions) > 0 {
			m.currentID = ""
			m.SwitchSession(m.sessions[0].ID)
		} else {
			m.currentID = ""
			m.CreateNewSession()
		}
	}
	m.save()
	return true
}

func (m *Manager) UpdateSessionTitle(s *chat.Session) {
	s.Title = chat.DeriveTitle(s.Messages, config.TitleLimit, s.Title)
}

func (m *Manager) UpdateSessionMessages(id string, messages []chat.Message) {
	s := m.Session(id)
	if s == nil {
		return
	}
	s.Messages = messages
	s.UpdatedAt = m.stamp()
	m.UpdateSessionTitle(s)
	m.save()
}

// UpdateSessionStates replaces the state snapshot with a copy of states.
func (m *Manager) UpdateSessionStates(id string, states map[int64]chat.State) {
	s := m.Session(id)
	if s == nil {
		return
	}
	s.MessageStates = maps.Clone(states)
	if s.MessageStates == nil {
		s.MessageStates = make(map[int64]chat.State)
	}
	m.save()
}

// Load restores sessions from storage. Missing or unreadable data falls
// back to a single fresh session.
func (m *Manager) Load(ctx context.Context) {
	m.sessions = nil
	m.currentID = ""

	if snap, err := m.readSnapshot(ctx); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.log.Warn("load sessions failed", "error", err)
		}
	} else {
		for _, s := range snap.Sessions {
			if s == nil || s.ID == "" {
				continue
			}
			if s.MessageStates == nil {
				s.MessageStates = make(map[int64]chat.State)
			}
			if s.Messages == nil {
				s.Messages = []chat.Message{}
			}
			m.observe(s)
			m.sessions = append(m.sessions, s)
		}
		m.currentID = snap.CurrentSessionID
	}

	if len(m.sessions) == 0 {
		m.currentID = ""
		m.CreateNewSession()
		return
	}
	if m.Current() == nil {
		m.currentID = m.sessions[0].ID
	}
	m.ResetSession(m.currentID)
	m.log.Info("sessions loaded", "count", len(m.sessions), "current", m.currentID)
}

// observe keeps fresh ids clear of a loaded session's ids, which may be
// ahead of the local clock.
func (m *Manager) observe(s *chat.Session) {
	if n, err := strconv.ParseInt(strings.TrimPrefix(s.ID, "session_"), 10, 64); err == nil {
		m.ids.Observe(n)
	}
	for _, msg := range s.Messages {
		m.ids.Observe(msg.ID)
	}
	for id := range s.MessageStates {
		m.ids.Observe(id)
	}
}

func (m *Manager) readSnapshot(ctx context.Context) (snapshot, error) {
	var snap snapshot
	data, err := m.store.Get(ctx, config.StorageKeySessions)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode sessions: %w", err)
	}
	return snap, nil
}

// Persist writes the full session list and the active pointer.
func (m *Manager) Persist(ctx context.Context) error {
	data, err := json.Marshal(snapshot{Sessions: m.sessions, CurrentSessionID: m.currentID})
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	if err := m.store.Put(ctx, config.StorageKeySessions, data); err != nil {
		return fmt.Errorf("save sessions: %w", err)
	}
	return nil
}

func (m *Manager) save() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.Persist(ctx); err != nil {
		m.log.Warn("persist sessions failed", "error", err)
	}
}
