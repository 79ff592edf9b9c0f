package answers

import (
	"log/slog"
	"strings"

	"mockchat/internal/chat"
	"mockchat/internal/config"
	"mockchat/internal/logger"
)

// Resolver maps user input to a canned reply.
type Resolver struct {
	entries  []Entry
	fallback chat.Payload
	augment  func(string) (string, error)
	log      *slog.Logger
}

type Option func(*Resolver)

// WithAugment renders text answers to markup. The raw text is kept
// alongside, so normalization never sees the rendered form.
func WithAugment(render func(string) (string, error)) Option {
	return func(r *Resolver) { r.augment = render }
}

func New(entries []Entry, opts ...Option) *Resolver {
	r := &Resolver{
		entries:  entries,
		fallback: chat.Payload{Kind: chat.PayloadText, Text: config.FallbackReply},
		log:      logger.ComponentLogger("Answers"),
	}
	for _, e := range entries {
		if e.UserQuestion == config.DefaultAnswerQ {
			r.fallback = e.AIAnswer
			break
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the first entry whose question appears in input,
// ignoring case, or the default reply.
func (r *Resolver) Resolve(input string) chat.Payload {
	lower := strings.ToLower(input)
	for _, e := range r.entries {
		q := strings.ToLower(e.UserQuestion)
		if q == "" || !strings.Contains(lower, q) {
			continue
		}
		return r.withMarkup(e.AIAnswer)
	}
	return r.withMarkup(r.fallback)
}

func (r *Resolver) withMarkup(p chat.Payload) chat.Payload {
	if r.augment == nil || p.Kind != chat.PayloadText {
		return p
	}
	out, err := r.augment(p.Text)
	if err != nil {
		r.log.Warn("markup render failed", "error", err)
		return p
	}
	return chat.Payload{Kind: chat.PayloadMarkup, Text: p.Text, Markup: out}
}
