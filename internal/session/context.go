package session

import (
	"maps"

	"mockchat/internal/chat"
)

// Context is the view of the active session shared by the lifecycle
// controller and the UI. Message states are written through to the bound
// session, so the session is the only copy.
type Context struct {
	sessionID string
	session   *chat.Session
	scratch   map[int64]chat.State
	sending   bool
	onChange  func()
}

func (c *Context) SessionID() string {
	return c.sessionID
}

func (c *Context) states() map[int64]chat.State {
	if c.session != nil {
		if c.session.MessageStates == nil {
			c.session.MessageStates = make(map[int64]chat.State)
		}
		return c.session.MessageStates
	}
	if c.scratch == nil {
		c.scratch = make(map[int64]chat.State)
	}
	return c.scratch
}

// SetMessageState ignores a zero id or an unknown state.
func (c *Context) SetMessageState(id int64, state chat.State) {
	if id == 0 || !state.Valid() {
		return
	}
	c.states()[id] = state
	if c.onChange != nil {
		c.onChange()
	}
}

// ForgetMessageState drops the entry for a message that no longer exists.
func (c *Context) ForgetMessageState(id int64) {
	delete(c.states(), id)
}

func (c *Context) State(id int64) (chat.State, bool) {
	st, ok := c.states()[id]
	return st, ok
}

// States returns a copy of the active session's message states.
func (c *Context) States() map[int64]chat.State {
	return maps.Clone(c.states())
}

func (c *Context) SetSending(sending bool) {
	c.sending = sending
}

func (c *Context) Sending() bool {
	return c.sending
}

// bind points the context at s (nil for an id with no session yet) and
// clears transient state.
func (c *Context) bind(sessionID string, s *chat.Session) {
	c.sessionID = sessionID
	c.session = s
	c.scratch = nil
	c.sending = false
}
