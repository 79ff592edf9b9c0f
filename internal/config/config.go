package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

type AppConfig struct {
	Home        string
	DBPath      string
	ExportDir   string
	AnswersPath string
	LogPath     string
	FailureRate float64
	Debug       bool
	Reset       bool
}

func Parse() (AppConfig, error) {
	return ParseArgs(os.Args[1:])
}

func ParseArgs(args []string) (AppConfig, error) {
	var cfg AppConfig

	defaultHome, err := DetectHome("")
	if err != nil {
		return cfg, err
	}

	fs := flag.NewFlagSet("mockchat", flag.ContinueOnError)
	fs.StringVar(&cfg.Home, "home", defaultHome, "path to mockchat data directory")
	fs.StringVar(&cfg.DBPath, "db-path", "", "path to SQLite session store")
	fs.StringVar(&cfg.ExportDir, "export-dir", "", "override export output directory")
	fs.StringVar(&cfg.AnswersPath, "answers", "", "path to a YAML or JSON mock answer table")
	fs.StringVar(&cfg.LogPath, "log-path", "", "path to debug log file")
	fs.Float64Var(&cfg.FailureRate, "failure-rate", DefaultFailureRate, "probability (0-1) that a simulated reply fails")
	fs.BoolVar(&cfg.Debug, "debug", false, "enable debug logging")
	fs.BoolVar(&cfg.Reset, "reset", false, "delete stored sessions before starting")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if cfg.FailureRate < 0 || cfg.FailureRate > 1 {
		return cfg, fmt.Errorf("failure-rate must be within [0, 1], got %v", cfg.FailureRate)
	}

	cfg.Home, err = DetectHome(cfg.Home)
	if err != nil {
		return cfg, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.Home, "sessions.sqlite")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return cfg, fmt.Errorf("create db dir: %w", err)
	}

	return cfg, nil
}

// Behavior returns the lifecycle settings with flag overrides applied.
func (c AppConfig) Behavior() Behavior {
	b := DefaultBehavior()
	b.FailureRate = c.FailureRate
	return b
}

func DetectHome(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Clean(explicit), nil
	}
	if fromEnv := os.Getenv("MOCKCHAT_HOME"); fromEnv != "" {
		return filepath.Clean(fromEnv), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "mockchat"), nil
}
