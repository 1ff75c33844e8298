package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/hitster/internal/server"
	"github.com/desertthunder/hitster/internal/services"
	"github.com/desertthunder/hitster/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the OAuth bootstrap and the refresh-token relay until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	opts := server.Options{
		PublicURL:     r.config.Server.PublicURL,
		RelayDeviceID: r.config.Credentials.Spotify.DeviceID,
		Logger:        shared.WithLogger(r.logger, "component", "server"),
	}

	if config, err := r.oauthConfig(); err != nil {
		r.logger.Warn("login disabled", "error", err)
	} else {
		opts.OAuth = config
	}

	if relay, err := r.relayPlayer(ctx); err != nil {
		r.logger.Warn("play relay disabled", "error", err)
	} else {
		opts.Relay = relay
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("serving bootstrap endpoint", "addr", addr, "public_url", r.config.Server.BaseURL())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err, ok := <-serverErrors:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// Devices lists Spotify Connect devices with the stored access token, or the relay's refresh token.
func (r *Runner) Devices(ctx context.Context, cmd *cli.Command) error {
	store, err := r.tokenStore(ctx, nil, "")
	if err != nil {
		return err
	}

	var player services.PlayerService
	if store.Valid() {
		player = r.userPlayer(store)
	} else if player, err = r.relayPlayer(ctx); err != nil {
		return fmt.Errorf("%w: run 'hitster auth login' or set a refresh token", shared.ErrNotAuthenticated)
	}

	devices, err := player.Devices(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrTokenExpired) {
			store.Invalidate("expired")
		}
		return fmt.Errorf("%w: %s", shared.ErrAPIRequest, services.ErrorDetail(err))
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"devices": devices}, true)
	}

	r.writePlain("Found %d devices:\n\n", len(devices))
	for i, d := range devices {
		marker := " "
		if d.IsActive {
			marker = "▶"
		}
		r.writePlain("%s %d. %s (%s)\n", marker, i+1, d.Name, d.Type)
		r.writePlain("     ID: %s\n", d.ID)
		if d.IsRestricted {
			r.writePlain("     Restricted: cannot be controlled\n")
		}
	}
	return nil
}
