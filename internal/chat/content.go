package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type ContentKind int

const (
	KindText ContentKind = iota
	KindCard
)

// Card is structured reply content. Only Type is interpreted; the rest is
// display and copy material.
type Card struct {
	Type    string `json:"type" yaml:"type"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	Contact string `json:"contact,omitempty" yaml:"contact,omitempty"`
	Phone   string `json:"phone,omitempty" yaml:"phone,omitempty"`
}

// Content is either plain text or a card. Kind is the discriminant.
type Content struct {
	Kind ContentKind
	Text string
	Card Card
}

func Text(s string) Content {
	return Content{Kind: KindText, Text: s}
}

func CardContent(c Card) Content {
	c.Type = string(TypeCard)
	return Content{Kind: KindCard, Card: c}
}

func (c Content) IsCard() bool {
	return c.Kind == KindCard
}

// MessageType is the message type implied by the content.
func (c Content) MessageType() Type {
	if c.IsCard() {
		return TypeCard
	}
	return TypeText
}

func (c Content) String() string {
	if c.IsCard() {
		return CopyText(Message{Type: TypeCard, Content: c})
	}
	return c.Text
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsCard() {
		card := c.Card
		card.Type = string(TypeCard)
		return json.Marshal(card)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts a string, a card object, or any other JSON value.
// Unknown shapes are kept as text holding their raw JSON.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Text("")
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode text content: %w", err)
		}
		*c = Text(s)
		return nil
	case '{':
		var card Card
		if err := json.Unmarshal(data, &card); err == nil && card.Type == string(TypeCard) {
			*c = CardContent(card)
			return nil
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return fmt.Errorf("decode content: %w", err)
	}
	*c = Text(compact.String())
	return nil
}
