package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/hitster/internal/services"
	"github.com/desertthunder/hitster/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin stores an access token, from --token or from the browser login.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	token := cmd.String("token")
	if token == "" {
		var err error
		if token, err = r.doLogin(ctx, cmd.String("login-base")); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
	}

	store, err := r.tokenStore(ctx, nil, token)
	if err != nil {
		return err
	}
	if !store.Valid() {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidArgument)
	}

	r.logger.Info("authentication successful")
	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token saved to %s\n\n", r.config.Database.Path)
	r.writePlain("You can now use: hitster tui\n")
	return nil
}

// AuthStatus checks the stored access token by listing devices.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("checking auth status")

	store, err := r.tokenStore(ctx, nil, "")
	if err != nil {
		return err
	}
	if !store.Valid() {
		return r.writePlain("Authentication: ✗ Not logged in\nRun 'hitster auth login'\n")
	}

	devices, err := r.userPlayer(store).Devices(ctx)
	switch {
	case errors.Is(err, shared.ErrTokenExpired):
		store.Invalidate("expired")
		return r.writePlain("Authentication: ✗ Token expired\nRun 'hitster auth login'\n")
	case err != nil:
		return fmt.Errorf("%w: %s", shared.ErrAPIRequest, services.ErrorDetail(err))
	}

	r.writePlain("Authentication: ✓ Authenticated\n")
	r.writePlain("Devices: %d\n", len(devices))
	if active, ok := services.ActiveDevice(devices); ok {
		r.writePlain("Active: %s (%s)\n", active.Name, active.ID)
	}
	return nil
}

// AuthLogout removes the stored access token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	store, err := r.tokenStore(ctx, nil, "")
	if err != nil {
		return err
	}

	had := store.Valid()
	store.Invalidate("logout")
	if !had {
		return r.writePlain("Not logged in\n")
	}
	return r.writePlain("✓ Logged out\n")
}
