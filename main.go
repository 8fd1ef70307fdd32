package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"caltodo/app"
	"caltodo/backend/supabase"
	"caltodo/config"
	"caltodo/session"
	"caltodo/store"
	"caltodo/tui"
)

func main() {
	configPath := flag.String("config", "", "path to the config file (default: $CALTODO_CONFIG or the XDG config dir)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "caltodo: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the TUI, so logs go to a file.
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "caltodo: create log dir: %v\n", err)
		os.Exit(1)
	}
	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "caltodo: open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	logger := log.NewWithOptions(logFile, log.Options{ReportTimestamp: true})
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	prefs, recovered, err := store.LoadWithRecovery(cfg.StatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "caltodo: load preferences: %v\n", err)
		os.Exit(1)
	}
	if recovered != "" {
		logger.Warn(recovered)
	}

	client, err := supabase.New(cfg.Supabase.URL, cfg.Supabase.AnonKey, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "caltodo: %v\n", err)
		os.Exit(1)
	}

	gateway := session.NewGateway(client, logger)
	ctrl := app.NewController(client, logger)

	program := tea.NewProgram(tui.NewModel(ctrl, gateway, prefs), tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "caltodo: %v\n", err)
		os.Exit(1)
	}

	if m, ok := final.(*tui.Model); ok {
		if err := store.Save(cfg.StatePath, m.Preferences()); err != nil {
			logger.Warn("could not save preferences", "err", err)
		}
	}
}
