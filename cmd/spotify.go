package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/hitster/internal/repositories"
	"github.com/desertthunder/hitster/internal/server"
	"github.com/desertthunder/hitster/internal/services"
	"github.com/desertthunder/hitster/internal/shared"
	"github.com/desertthunder/hitster/internal/tokens"
	"golang.org/x/oauth2"
)

const loginTimeout = 2 * time.Minute

// oauthConfig builds the provider client from [credentials.spotify].
func (r *Runner) oauthConfig() (*oauth2.Config, error) {
	c := r.config.Credentials.Spotify
	if c.ClientID == "" {
		return nil, fmt.Errorf("%w: credentials.spotify.client_id must be set in %s", shared.ErrMissingCredentials, r.configName())
	}
	return services.NewOAuthConfig(c.ClientID, c.ClientSecret, c.RedirectURI), nil
}

func (r *Runner) configName() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}

// preferences opens the preference store.
func (r *Runner) preferences(ctx context.Context) (*repositories.PreferenceRepository, error) {
	db, err := r.database(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return repositories.NewPreferenceRepository(db), nil
}

// tokenStore restores the stored access token. A non-empty fresh token replaces and persists it.
// location may be nil.
func (r *Runner) tokenStore(ctx context.Context, location tokens.ParamStripper, fresh string) (*tokens.Store, error) {
	prefs, err := r.preferences(ctx)
	if err != nil {
		return nil, err
	}

	store := tokens.NewStore(prefs, location, r.logger)
	store.Restore(fresh)
	return store, nil
}

// userPlayer is the provider client authorized by the session's access token.
func (r *Runner) userPlayer(store *tokens.Store) services.PlayerService {
	if r.provider != nil {
		return r.provider(store)
	}
	return services.NewSpotifyPlayer(store)
}

// relayPlayer is the provider client authorized by the configured refresh token.
func (r *Runner) relayPlayer(ctx context.Context) (services.PlayerService, error) {
	refresh := r.config.Credentials.Spotify.RefreshToken
	if refresh == "" {
		return nil, fmt.Errorf("%w: credentials.spotify.refresh_token", shared.ErrNoRefreshToken)
	}

	config, err := r.oauthConfig()
	if err != nil {
		return nil, err
	}
	return services.NewSpotifyPlayer(services.RefreshTokenSource(ctx, config, refresh)), nil
}

// doLogin runs the bootstrap login with a local receiver and returns the access token.
//
// An empty loginBase serves the bootstrap routes locally as well, which needs a client id.
func (r *Runner) doLogin(ctx context.Context, loginBase string) (string, error) {
	opts := server.Options{PublicURL: r.config.Server.PublicURL, Logger: r.logger}
	returnBase := "http://" + r.config.Server.Addr()

	if loginBase == "" {
		config, err := r.oauthConfig()
		if err != nil {
			return "", err
		}
		opts.OAuth = config
		loginBase = r.config.Server.BaseURL()
		returnBase = loginBase
	}

	receiver := server.NewReturnHandler(nil)
	opts.Receiver = receiver

	serverAddr := r.config.Server.Addr()
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: server.NewRouter(opts),
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting login receiver at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)

	loginURL := loginLink(loginBase, strings.TrimRight(returnBase, "/")+"/return")

	r.writePlain("→ Opening browser for Spotify login...\n")
	if err := shared.OpenBrowser(loginURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", loginURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(loginTimeout)
	defer timeout.Stop()

	select {
	case token, ok := <-receiver.Result():
		if !ok || token == "" {
			return "", errors.New("no token received")
		}
		return token, nil
	case err := <-serverErrors:
		return "", fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return "", fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// loginLink is the bootstrap login address returning to returnURL.
func loginLink(base, returnURL string) string {
	return strings.TrimRight(base, "/") + "/api/login?redirect_uri=" + url.QueryEscape(returnURL)
}
