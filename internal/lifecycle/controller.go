package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"mockchat/internal/chat"
	"mockchat/internal/config"
	"mockchat/internal/logger"
	"mockchat/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

var (
	ErrBusy         = errors.New("a reply is already in flight")
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoSession    = errors.New("no active session")
	ErrNoClipboard  = errors.New("clipboard unavailable")
)

const copyTimeout = 3 * time.Second

type Resolver interface {
	Resolve(input string) chat.Payload
}

type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// Scheduler delivers fn's message after d. tea.Tick in production.
type Scheduler func(d time.Duration, fn func(time.Time) tea.Msg) tea.Cmd

// Controller runs the message lifecycle for the active session:
// loading, simulated latency, streamed reveal, then success or error.
// All methods must be called from the bubbletea update loop.
type Controller struct {
	sessions *session.Manager
	answers  Resolver
	clip     Clipboard
	cfg      config.Behavior

	after    Scheduler
	roll     func() float64
	newToken func() string

	pending  map[string]*request
	progress map[int64]int

	log *slog.Logger
}

type Option func(*Controller)

func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.after = s }
}

// WithRand sets the source used to decide whether a reply fails.
func WithRand(roll func() float64) Option {
	return func(c *Controller) { c.roll = roll }
}

func WithClipboard(clip Clipboard) Option {
	return func(c *Controller) { c.clip = clip }
}

func New(sessions *session.Manager, answers Resolver, cfg config.Behavior, opts ...Option) *Controller {
	c := &Controller{
		sessions: sessions,
		answers:  answers,
		cfg:      cfg,
		after:    tea.Tick,
		roll:     rand.Float64,
		newToken: uuid.NewString,
		pending:  make(map[string]*request),
		progress: make(map[int64]int),
		log:      logger.ComponentLogger("Lifecycle"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.StreamStep <= 0 {
		c.cfg.StreamStep = 100
	}
	sessions.OnLeave(c.settle)
	return c
}

func (c *Controller) state() *session.Context {
	return c.sessions.Context()
}

func (c *Controller) stamp() string {
	return chat.FormatTime(c.sessions.Now())
}

// Open restores stored sessions and prepares the active one for display.
func (c *Controller) Open(ctx context.Context) {
	c.sessions.Load(ctx)
	c.EnsureDefaultMessage()
	c.HydrateStreamProgress()
}

// Busy reports whether a send, retry, or regenerate is outstanding.
func (c *Controller) Busy() bool {
	return c.state().Sending()
}

func (c *Controller) Progress(id int64) (int, bool) {
	p, ok := c.progress[id]
	return p, ok
}

func (c *Controller) NewChat() *chat.Session {
	s := c.sessions.CreateNewSession()
	c.HydrateStreamProgress()
	return s
}

func (c *Controller) Switch(id string) bool {
	if !c.sessions.SwitchSession(id) {
		return false
	}
	c.EnsureDefaultMessage()
	c.HydrateStreamProgress()
	return true
}

func (c *Controller) Delete(id string) bool {
	if !c.sessions.DeleteSession(id) {
		return false
	}
	c.EnsureDefaultMessage()
	c.HydrateStreamProgress()
	return true
}

func (c *Controller) Send(content string) (tea.Cmd, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}
	return c.startSend(kindText, chat.TypeText, content)
}

// SendImage is a no-op when the image has no URL.
func (c *Controller) SendImage(img chat.Image) (tea.Cmd, error) {
	if img.URL == "" {
		return nil, nil
	}
	return c.startSend(kindImage, chat.TypeImage, img.URL)
}

func (c *Controller) startSend(kind requestKind, typ chat.Type, content string) (tea.Cmd, error) {
	if c.Busy() {
		return nil, ErrBusy
	}
	s := c.sessions.Current()
	if s == nil {
		return nil, ErrNoSession
	}
	ids := c.sessions.IDs()

	user := chat.Message{
		ID:        ids.Next(),
		Role:      chat.RoleUser,
		Type:      typ,
		Content:   chat.Text(content),
		Timestamp: c.stamp(),
	}
	c.sessions.UpdateSessionMessages(s.ID, append(s.Messages, user))
	c.state().SetMessageState(user.ID, chat.StateSuccess)

	placeholder := chat.Message{
		ID:        ids.Next(),
		Role:      chat.RoleAssistant,
		Type:      chat.TypeText,
		Content:   chat.Text(c.cfg.LoadingText),
		Timestamp: c.stamp(),
	}
	c.sessions.UpdateSessionMessages(s.ID, append(s.Messages, placeholder))
	c.state().SetMessageState(placeholder.ID, chat.StateLoading)
	c.state().SetSending(true)

	req := c.track(kind, s.ID, placeholder.ID, content)
	return c.after(c.cfg.ReplyLatency, func(time.Time) tea.Msg {
		return replyDueMsg{token: req.token}
	}), nil
}

// Retry re-runs the reply for an assistant message in the error state.
// Anything else is a no-op.
func (c *Controller) Retry(id int64) (tea.Cmd, error) {
	s := c.sessions.Current()
	if s == nil {
		return nil, nil
	}
	msg, _ := s.Find(id)
	if msg == nil || msg.Role != chat.RoleAssistant {
		return nil, nil
	}
	if st, _ := c.state().State(id); st != chat.StateError {
		return nil, nil
	}
	if c.Busy() {
		return nil, ErrBusy
	}
	return c.startRewrite(kindRetry, s.ID, id, c.PreviousUserContent(id)), nil
}

// Regenerate replaces an assistant reply regardless of its state, as long
// as a user message precedes it.
func (c *Controller) Regenerate(id int64) (tea.Cmd, error) {
	s := c.sessions.Current()
	if s == nil {
		return nil, nil
	}
	msg, _ := s.Find(id)
	if msg == nil || msg.Role != chat.RoleAssistant {
		return nil, nil
	}
	prompt := c.PreviousUserContent(id)
	if prompt == "" {
		return nil, nil
	}
	if c.Busy() {
		return nil, ErrBusy
	}
	return c.startRewrite(kindRegenerate, s.ID, id, prompt), nil
}

func (c *Controller) startRewrite(kind requestKind, sessionID string, id int64, prompt string) tea.Cmd {
	c.state().SetMessageState(id, chat.StateLoading)
	c.state().SetSending(true)
	delete(c.progress, id)

	req := c.track(kind, sessionID, id, prompt)
	return c.after(c.cfg.RetryLatency, func(time.Time) tea.Msg {
		return replyDueMsg{token: req.token}
	})
}

func (c *Controller) track(kind requestKind, sessionID string, id int64, prompt string) *request {
	req := &request{
		token:     c.newToken(),
		kind:      kind,
		sessionID: sessionID,
		messageID: id,
		prompt:    prompt,
	}
	c.pending[req.token] = req
	c.log.Info("reply requested", "request_id", req.token, "kind", kind.String(), "sessionID", sessionID, "messageID", id)
	return req
}

func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case replyDueMsg:
		return c.onReplyDue(msg)
	case streamTickMsg:
		return c.onStreamTick(msg)
	case CopiedMsg:
		if msg.Err != nil {
			c.log.Warn("copy failed", "messageID", msg.MessageID, "error", msg.Err)
		} else {
			c.log.Debug("copied message", "messageID", msg.MessageID)
		}
	}
	return nil
}

func (c *Controller) lookup(token string) (*request, *chat.Session) {
	req, ok := c.pending[token]
	if !ok {
		c.log.Debug("dropping timer for settled request", "request_id", token)
		return nil, nil
	}
	s := c.sessions.Session(req.sessionID)
	if s == nil || req.sessionID != c.sessions.CurrentID() {
		delete(c.pending, token)
		c.log.Debug("dropping timer for inactive session", "request_id", token, "sessionID", req.sessionID)
		return nil, nil
	}
	return req, s
}

func (c *Controller) onReplyDue(msg replyDueMsg) tea.Cmd {
	req, s := c.lookup(msg.token)
	if req == nil {
		return nil
	}
	succeeded := c.roll() >= c.cfg.FailureRate

	switch req.kind {
	case kindRetry, kindRegenerate:
		return c.rewrite(req, s, succeeded)
	default:
		return c.reply(req, s, succeeded)
	}
}

func (c *Controller) reply(req *request, s *chat.Session, succeeded bool) tea.Cmd {
	kept := make([]chat.Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.ID != req.messageID {
			kept = append(kept, m)
		}
	}
	c.state().ForgetMessageState(req.messageID)

	var content chat.Content
	switch {
	case !succeeded:
		content = chat.Text(c.cfg.ErrorText)
	case req.kind == kindImage:
		content = chat.NormalizeAnswer(chat.Payload{Kind: chat.PayloadText, Text: c.cfg.ImageReplyText})
	default:
		content = chat.NormalizeAnswer(c.answers.Resolve(req.prompt))
	}

	reply := chat.Message{
		ID:        c.sessions.IDs().Next(),
		Role:      chat.RoleAssistant,
		Type:      content.MessageType(),
		Content:   content,
		Timestamp: c.stamp(),
	}
	c.sessions.UpdateSessionMessages(s.ID, append(kept, reply))
	c.state().SetMessageState(reply.ID, chat.StateLoading)

	req.messageID = reply.ID
	return c.startStream(req, succeeded)
}

func (c *Controller) rewrite(req *request, s *chat.Session, succeeded bool) tea.Cmd {
	msg, _ := s.Find(req.messageID)
	if msg == nil {
		delete(c.pending, req.token)
		c.state().SetSending(false)
		return nil
	}

	var content chat.Content
	switch {
	case succeeded:
		content = chat.NormalizeAnswer(c.answers.Resolve(req.prompt))
	case req.kind == kindRetry:
		content = chat.Text(c.cfg.RetryErrorText)
	default:
		content = chat.Text(c.cfg.ErrorText)
	}

	msg.Content = content
	msg.Type = content.MessageType()
	msg.Timestamp = c.stamp()
	c.sessions.UpdateSessionMessages(s.ID, s.Messages)

	return c.startStream(req, succeeded)
}

func (c *Controller) startStream(req *request, succeeded bool) tea.Cmd {
	req.phase = phaseStreaming
	req.succeeded = succeeded
	c.progress[req.messageID] = 0
	return c.tick(req.token)
}

func (c *Controller) tick(token string) tea.Cmd {
	return c.after(c.cfg.StreamInterval, func(t time.Time) tea.Msg {
		return streamTickMsg{token: token, at: t}
	})
}

func (c *Controller) onStreamTick(msg streamTickMsg) tea.Cmd {
	req, _ := c.lookup(msg.token)
	if req == nil || req.phase != phaseStreaming {
		return nil
	}

	p := c.progress[req.messageID] + c.cfg.StreamStep
	if p > 100 {
		p = 100
	}
	c.progress[req.messageID] = p
	if p < 100 {
		return c.tick(req.token)
	}

	final := terminalState(req.succeeded)
	delete(c.pending, req.token)
	c.state().SetMessageState(req.messageID, final)
	c.state().SetSending(false)
	c.log.Info("reply finished", "request_id", req.token, "messageID", req.messageID, "state", final)

	done := StreamDoneMsg{MessageID: req.messageID, Succeeded: req.succeeded}
	return func() tea.Msg { return done }
}

func terminalState(succeeded bool) chat.State {
	if succeeded {
		return chat.StateSuccess
	}
	return chat.StateError
}

// settle finalizes the requests of a session the user is leaving so no
// timer writes into it later. It runs before the manager persists.
func (c *Controller) settle(s *chat.Session) {
	for token, req := range c.pending {
		if req.sessionID != s.ID {
			continue
		}
		delete(c.pending, token)

		switch {
		case req.phase == phaseStreaming:
			s.MessageStates[req.messageID] = terminalState(req.succeeded)
			c.progress[req.messageID] = 100
		case req.kind == kindText || req.kind == kindImage:
			if msg, _ := s.Find(req.messageID); msg != nil {
				msg.Content = chat.Text(c.cfg.ErrorText)
				msg.Type = chat.TypeText
			}
			s.MessageStates[req.messageID] = chat.StateError
		default:
			s.MessageStates[req.messageID] = chat.StateError
		}
		c.log.Info("request settled on session leave", "request_id", token, "sessionID", s.ID, "messageID", req.messageID)
	}
}

// Close settles the active session's outstanding requests and persists, so
// nothing is stored mid-flight.
func (c *Controller) Close(ctx context.Context) error {
	if s := c.sessions.Current(); s != nil {
		c.settle(s)
	}
	c.state().SetSending(false)
	return c.sessions.Persist(ctx)
}

// PreviousUserContent returns the nearest user message before id, or "".
func (c *Controller) PreviousUserContent(id int64) string {
	s := c.sessions.Current()
	if s == nil {
		return ""
	}
	_, idx := s.Find(id)
	for i := idx - 1; i >= 0; i-- {
		if s.Messages[i].Role == chat.RoleUser {
			return s.Messages[i].Content.Text
		}
	}
	return ""
}

// Copy writes the message's copy text to the clipboard. The result
// arrives as a CopiedMsg.
func (c *Controller) Copy(id int64) tea.Cmd {
	s := c.sessions.Current()
	if s == nil {
		return nil
	}
	msg, _ := s.Find(id)
	if msg == nil {
		return nil
	}
	text := chat.CopyText(*msg)
	clip := c.clip

	return func() tea.Msg {
		if clip == nil {
			return CopiedMsg{MessageID: id, Err: ErrNoClipboard}
		}
		ctx, cancel := context.WithTimeout(context.Background(), copyTimeout)
		defer cancel()
		return CopiedMsg{MessageID: id, Err: clip.Copy(ctx, text)}
	}
}

// HydrateStreamProgress marks stored assistant messages as fully revealed
// and backfills missing states as success.
func (c *Controller) HydrateStreamProgress() {
	s := c.sessions.Current()
	if s == nil {
		return
	}
	inFlight := make(map[int64]bool, len(c.pending))
	for _, req := range c.pending {
		inFlight[req.messageID] = true
	}
	for _, m := range s.Messages {
		if m.Role != chat.RoleAssistant || inFlight[m.ID] {
			continue
		}
		c.progress[m.ID] = 100
		if _, ok := c.state().State(m.ID); !ok {
			c.state().SetMessageState(m.ID, chat.StateSuccess)
		}
	}
}

// EnsureDefaultMessage seeds an empty active session with the welcome text.
func (c *Controller) EnsureDefaultMessage() {
	s := c.sessions.Current()
	if s == nil || len(s.Messages) > 0 {
		return
	}
	welcome := chat.Message{
		ID:        c.sessions.IDs().Next(),
		Role:      chat.RoleAssistant,
		Type:      chat.TypeText,
		Content:   chat.Text(c.cfg.WelcomeText),
		Timestamp: c.stamp(),
	}
	c.sessions.UpdateSessionMessages(s.ID, []chat.Message{welcome})
	c.state().SetMessageState(welcome.ID, chat.StateSuccess)
}
