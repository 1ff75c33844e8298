package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hitster/internal/ambient"
	"github.com/desertthunder/hitster/internal/playback"
	"github.com/desertthunder/hitster/internal/server"
	"github.com/desertthunder/hitster/internal/shared"
	"github.com/desertthunder/hitster/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive game screen.
//
// A local server receives the token at /return, and also serves the bootstrap
// login when a client id is configured.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := r.config.Log.File
	if logPath == "" {
		logPath = "./hitster.log"
	}
	fileLogger, logFile, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer logFile.Close()
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	bridge := ui.NewBridge(256)
	defer bridge.Close()
	progress := make(chan playback.Update, 32)

	g, err := r.newGame(ctx, gameOptions{
		location: cmd.String("url"),
		frames:   cmd.String("frames"),
		surface:  bridge,
		media:    bridge,
		haptics:  ambient.NewTerminalHaptics(os.Stderr, bridge.Flash),
		progress: progress,
	})
	if err != nil {
		return err
	}
	defer g.Close()

	stopReceiver := r.serveReceiver(g.ApplyToken)
	defer stopReceiver()

	model := ui.NewModel(ctx, ui.Options{
		Game:     g,
		Events:   bridge.Events(),
		Progress: progress,
		Entries:  r.resolver().Entries(ctx),
		OpenURL:  shared.OpenBrowser,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// serveReceiver runs the login routes in the background and returns their shutdown.
func (r *Runner) serveReceiver(apply func(token string)) func() {
	opts := server.Options{
		PublicURL: r.config.Server.PublicURL,
		Receiver:  server.NewReturnHandler(apply),
		Logger:    shared.WithLogger(r.logger, "component", "server"),
	}
	if config, err := r.oauthConfig(); err == nil {
		opts.OAuth = config
	}

	httpServer := &http.Server{
		Addr:              r.config.Server.Addr(),
		Handler:           server.NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Warn("login receiver unavailable", "addr", httpServer.Addr, "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}
}
