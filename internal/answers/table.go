package answers

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"mockchat/internal/chat"

	"gopkg.in/yaml.v3"
)

//go:embed answers.yaml
var defaultTable []byte

type Entry struct {
	UserQuestion string       `yaml:"userQuestion"`
	AIAnswer     chat.Payload `yaml:"-"`
}

type tableFile struct {
	MockAnswers []entryFile `yaml:"mockAnswers"`
}

type entryFile struct {
	UserQuestion string      `yaml:"userQuestion"`
	AIAnswer     answerValue `yaml:"aiAnswer"`
}

type answerValue chat.Payload

func (v *answerValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*v = answerValue{Kind: chat.PayloadText, Text: node.Value}
		return nil
	case yaml.MappingNode:
		var obj map[string]any
		if err := node.Decode(&obj); err != nil {
			return err
		}
		if t, _ := obj["type"].(string); t == string(chat.TypeCard) {
			var card chat.Card
			if err := node.Decode(&card); err != nil {
				return err
			}
			*v = answerValue{Kind: chat.PayloadCard, Card: card}
			return nil
		}
		if raw, ok := obj["raw"].(string); ok && raw != "" {
			markup, _ := obj["html"].(string)
			*v = answerValue{Kind: chat.PayloadMarkup, Text: raw, Markup: markup}
			return nil
		}
		*v = answerValue{Kind: chat.PayloadObject, Object: obj}
		return nil
	default:
		return fmt.Errorf("line %d: unsupported aiAnswer shape", node.Line)
	}
}

// Parse decodes an answer table. JSON tables parse too.
func Parse(data []byte) ([]Entry, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("decode answer table: %w", err)
	}
	if len(tf.MockAnswers) == 0 {
		return nil, errors.New("answer table has no mockAnswers")
	}
	out := make([]Entry, 0, len(tf.MockAnswers))
	for _, e := range tf.MockAnswers {
		out = append(out, Entry{UserQuestion: e.UserQuestion, AIAnswer: chat.Payload(e.AIAnswer)})
	}
	return out, nil
}

// Load reads the table at path, or the built-in table when path is empty.
func Load(path string) ([]Entry, error) {
	if path == "" {
		return Parse(defaultTable)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answer table: %w", err)
	}
	return Parse(data)
}
