package chat

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
	TypeCard  Type = "card"
)

// State is the delivery state of one message.
type State string

const (
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

func (s State) Valid() bool {
	switch s {
	case StateLoading, StateSuccess, StateError:
		return true
	default:
		return false
	}
}

type Message struct {
	ID        int64   `json:"id"`
	Role      Role    `json:"role"`
	Type      Type    `json:"type,omitempty"`
	Content   Content `json:"content"`
	Timestamp string  `json:"timestamp"`
}

// Session is one conversation thread. MessageStates is the only copy of
// per-message delivery state; views of the active session read from it.
type Session struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Messages      []Message       `json:"messages"`
	MessageStates map[int64]State `json:"messageStates"`
	CreatedAt     string          `json:"createdAt"`
	UpdatedAt     string          `json:"updatedAt"`
}

// Find returns a pointer into s.Messages so callers can mutate in place.
func (s *Session) Find(id int64) (*Message, int) {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return &s.Messages[i], i
		}
	}
	return nil, -1
}

type Image struct {
	URL  string
	Name string
}
