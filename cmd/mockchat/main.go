package main

import (
	"context"
	"fmt"
	"os"

	"mockchat/internal/answers"
	"mockchat/internal/clipboard"
	"mockchat/internal/config"
	"mockchat/internal/export"
	"mockchat/internal/lifecycle"
	"mockchat/internal/logger"
	"mockchat/internal/render"
	"mockchat/internal/session"
	"mockchat/internal/store"
	"mockchat/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mockchat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}

	logger.SetDebug(cfg.Debug)
	if err := logger.Init(cfg.LogPath); err != nil {
		return err
	}
	defer logger.Close()
	log := logger.ComponentLogger("Main")

	db, err := store.OpenSQLite(cfg.DBPath, cfg.Reset)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := answers.Load(cfg.AnswersPath)
	if err != nil {
		return err
	}
	md := render.NewMarkdown(config.DefaultGlamourStyle)
	resolver := answers.New(entries)

	exp, err := export.New(cfg.ExportDir)
	if err != nil {
		return err
	}

	behavior := cfg.Behavior()
	sessions := session.NewManager(db, session.WithWelcome(behavior.WelcomeText))
	ctrl := lifecycle.New(sessions, resolver, behavior,
		lifecycle.WithClipboard(clipboard.New()),
	)
	ctrl.Open(context.Background())
	log.Info("starting", "db", cfg.DBPath, "sessions", len(sessions.Sessions()), "failureRate", cfg.FailureRate)

	m := ui.NewModel(cfg, sessions, ctrl, exp, md)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}

	if err := ctrl.Close(context.Background()); err != nil {
		log.Warn("final persist failed", "error", err)
	}
	return nil
}
