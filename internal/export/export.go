package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mockchat/internal/chat"
)

const defaultDir = "exports"

type Exporter struct {
	overrideDir string
	cwd         string
	now         func() time.Time
}

func New(overrideDir string) (*Exporter, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve cwd: %w", err)
	}
	return &Exporter{overrideDir: strings.TrimSpace(overrideDir), cwd: cwd, now: time.Now}, nil
}

// Export writes the session transcript and returns the file path.
func (e *Exporter) Export(session *chat.Session) (string, error) {
	path := e.outputPath(session)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	md := BuildSessionMarkdown(session, BuildTranscriptMarkdown(session), e.now().UTC())
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

// BuildTranscriptMarkdown renders the settled messages of a session.
// Messages still loading are skipped.
func BuildTranscriptMarkdown(session *chat.Session) string {
	var b strings.Builder
	for _, m := range session.Messages {
		state := session.MessageStates[m.ID]
		if state == chat.StateLoading {
			continue
		}
		body := messageMarkdown(m)
		if body == "" {
			continue
		}

		header := "## You"
		if m.Role == chat.RoleAssistant {
			header = "## Assistant"
			if state == chat.StateError {
				header += " (failed)"
			}
		}
		if m.Timestamp != "" {
			header += " · " + m.Timestamp
		}
		b.WriteString(header + "\n\n")
		b.WriteString(body + "\n\n")
	}
	return strings.TrimSpace(b.String()) + "\n"
}

func messageMarkdown(m chat.Message) string {
	switch {
	case m.Content.IsCard():
		return cardMarkdown(m.Content.Card)
	case m.Type == chat.TypeImage:
		url := strings.TrimSpace(m.Content.Text)
		if url == "" {
			return ""
		}
		return "![image](" + url + ")"
	default:
		return strings.TrimSpace(m.Content.Text)
	}
}

func cardMarkdown(c chat.Card) string {
	var lines []string
	if c.Title != "" {
		lines = append(lines, "**"+c.Title+"**", "")
	}
	for _, f := range []struct{ label, value string }{
		{"Content", c.Content},
		{"URL", c.URL},
		{"Contact", c.Contact},
		{"Phone", c.Phone},
	} {
		if f.value != "" {
			lines = append(lines, "- "+f.label+": "+f.value)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func BuildSessionMarkdown(session *chat.Session, transcript string, now time.Time) string {
	var b strings.Builder
	b.WriteString("# " + safeValue(session.Title) + "\n\n")
	b.WriteString("Exported: " + now.Format(time.RFC3339) + "\n\n")
	b.WriteString("```text\n")
	b.WriteString("session: " + session.ID + "\n")
	b.WriteString(fmt.Sprintf("message_count: %d\n", len(session.Messages)))
	b.WriteString("created: " + safeValue(session.CreatedAt) + "\n")
	b.WriteString("updated: " + safeValue(session.UpdatedAt) + "\n")
	b.WriteString("```\n\n")
	b.WriteString(transcript)
	if !strings.HasSuffix(transcript, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

func (e *Exporter) outputPath(session *chat.Session) string {
	dir := filepath.Join(e.cwd, defaultDir)
	if e.overrideDir != "" {
		dir = e.overrideDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(e.cwd, dir)
		}
	}
	return filepath.Join(dir, safeFileName(session.ID)+".md")
}

func safeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "session"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return replacer.Replace(s)
}

func safeValue(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "n/a"
	}
	return s
}
