package lifecycle

import "time"

type requestKind int

const (
	kindText requestKind = iota
	kindImage
	kindRetry
	kindRegenerate
)

func (k requestKind) String() string {
	switch k {
	case kindImage:
		return "image"
	case kindRetry:
		return "retry"
	case kindRegenerate:
		return "regenerate"
	default:
		return "text"
	}
}

type phase int

const (
	phaseWaiting phase = iota
	phaseStreaming
)

// request is one outstanding send, retry, or regenerate. Timer messages
// carry its token; once the request is gone from the pending set they are
// dropped.
type request struct {
	token     string
	kind      requestKind
	sessionID string
	messageID int64 // placeholder while waiting on a send, reply otherwise
	prompt    string
	phase     phase
	succeeded bool
}

type replyDueMsg struct {
	token string
}

type streamTickMsg struct {
	token string
	at    time.Time
}

// CopiedMsg reports the outcome of Copy.
type CopiedMsg struct {
	MessageID int64
	Err       error
}

// StreamDoneMsg is emitted when a reply reaches its terminal state.
type StreamDoneMsg struct {
	MessageID int64
	Succeeded bool
}
