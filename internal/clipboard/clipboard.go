package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"mockchat/internal/logger"

	atotto "github.com/atotto/clipboard"
)

var ErrToolNotFound = errors.New("clipboard tool not found")

type Command struct {
	Path string
	Args []string
}

// SelectCommand picks the native copy tool for goos. On linux Wayland's
// wl-copy wins over the X11 tools.
func SelectCommand(goos string, lookPath func(string) (string, error)) (Command, error) {
	var candidates []Command
	switch goos {
	case "darwin":
		candidates = []Command{{Path: "pbcopy"}}
	case "linux", "freebsd", "openbsd":
		candidates = []Command{
			{Path: "wl-copy"},
			{Path: "xclip", Args: []string{"-selection", "clipboard"}},
			{Path: "xsel", Args: []string{"--clipboard", "--input"}},
		}
	case "windows":
		candidates = []Command{{Path: "clip.exe"}}
	}

	for _, c := range candidates {
		if path, err := lookPath(c.Path); err == nil {
			return Command{Path: path, Args: c.Args}, nil
		}
	}
	return Command{}, ErrToolNotFound
}

// Writer copies text with the native tool, falling back to the portable
// clipboard package when no tool is installed.
type Writer struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(ctx context.Context, cmd Command, text string) error
	fallback func(text string) error
}

func New() *Writer {
	return &Writer{
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run:      runCommand,
		fallback: atottoWrite,
	}
}

func (w *Writer) Copy(ctx context.Context, text string) error {
	log := logger.ComponentLogger("Clipboard")

	cmd, err := SelectCommand(w.goos, w.lookPath)
	if err == nil {
		log.Debug("copying with native tool", "path", cmd.Path, "bytes", len(text))
		return w.run(ctx, cmd, text)
	}
	if w.fallback == nil {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	log.Debug("no native tool, using fallback", "goos", w.goos)
	if err := w.fallback(text); err != nil {
		return fmt.Errorf("%w: %v", ErrToolNotFound, err)
	}
	return nil
}

func atottoWrite(text string) error {
	if atotto.Unsupported {
		return errors.New("no clipboard utility available")
	}
	return atotto.WriteAll(text)
}

func runCommand(ctx context.Context, cmdDef Command, text string) error {
	cmd := exec.CommandContext(ctx, cmdDef.Path, cmdDef.Args...)
	cmd.Stdin = strings.NewReader(text)

	if out, err := cmd.CombinedOutput(); err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("clipboard command failed: %w: %s", err, msg)
		}
		return fmt.Errorf("clipboard command failed: %w", err)
	}
	return nil
}
