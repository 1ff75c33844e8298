package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/hitster/internal/ambient"
	"github.com/desertthunder/hitster/internal/broadcast"
	"github.com/desertthunder/hitster/internal/device"
	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/playback"
	"github.com/desertthunder/hitster/internal/repositories"
	"github.com/desertthunder/hitster/internal/scanner"
	"github.com/desertthunder/hitster/internal/session"
	"github.com/desertthunder/hitster/internal/shared"
	"github.com/desertthunder/hitster/internal/tokens"
	"github.com/urfave/cli/v3"
)

const (
	readyTimeout = 15 * time.Second
	pollEvery    = 200 * time.Millisecond
)

// gameOptions selects what a command's session talks to.
type gameOptions struct {
	location string
	token    string
	frames   string
	surface  session.Surface
	media    ambient.MediaSession
	haptics  ambient.Haptics
	progress chan<- playback.Update
}

// game is a wired session with its cleanup.
type game struct {
	*session.Session
	bus broadcast.Bus
}

func (g *game) Close() {
	g.Session.Close()
	if g.bus != nil {
		g.bus.Close()
	}
}

// newGame wires a playback session from the config.
func (r *Runner) newGame(ctx context.Context, o gameOptions) (*game, error) {
	raw := o.location
	if raw == "" {
		raw = strings.TrimRight(r.config.Server.BaseURL(), "/") + "/return"
	}
	loc, err := session.NewLocation(raw)
	if err != nil {
		return nil, err
	}
	if o.token != "" {
		loc.SetParam(tokens.Param, o.token)
	}

	prefs, err := r.preferences(ctx)
	if err != nil {
		return nil, err
	}
	db, err := r.database(ctx)
	if err != nil {
		return nil, err
	}

	store := tokens.NewStore(prefs, loc, r.logger)
	provider := r.userPlayer(store)

	frames := o.frames
	if frames == "" {
		frames = r.config.Scanner.FramesDir
	}
	if o.surface == nil {
		o.surface = session.NewLogSurface(r.output, r.logger)
	}
	if o.haptics == nil {
		o.haptics = ambient.NewTerminalHaptics(os.Stderr, nil)
	}

	var camera scanner.Camera = scanner.NewDirCamera(frames)
	if r.camera != nil {
		camera = r.camera
	}
	var decoder scanner.Decoder = scanner.NewQRDecoder()
	if r.decoder != nil {
		decoder = r.decoder
	}

	g := &game{bus: r.broadcastBus()}

	opts := session.Options{
		Location:       loc,
		Surface:        o.surface,
		Prefs:          prefs,
		Plays:          repositories.NewPlayRepository(db),
		Provider:       provider,
		Resolver:       r.resolver(),
		PlayerFactory:  device.ConnectFactory(provider, r.config.Player.DeviceName, r.config.Player.PollInterval.Duration, r.logger),
		PlayerName:     r.config.Player.Name,
		Volume:         r.config.Player.Volume,
		PreviewSeconds: r.config.Player.PreviewSeconds,
		TransferDelay:  r.config.Player.TransferDelay.Duration,
		Camera:         camera,
		Decoder:        decoder,
		ScanInterval:   r.config.Scanner.SampleInterval.Duration,
		IdleTimeout:    r.config.Scanner.IdleTimeout.Duration,
		MediaSession:   o.media,
		Haptics:        o.haptics,
		Tokens:         store,
		LoginBase:      r.config.Server.BaseURL(),
		Progress:       o.progress,
		Clock:          r.clock,
		Logger:         r.logger,
	}
	if r.wakeLocker != nil {
		opts.WakeLocker = r.wakeLocker
	} else if locker, err := ambient.NewInhibitLocker("hitster", "Game in progress"); err != nil {
		r.logger.Debug("wake lock unavailable", "error", err)
	} else {
		opts.WakeLocker = locker
	}
	if g.bus != nil {
		opts.Bus = g.bus
	}

	sess, err := session.New(opts)
	if err != nil {
		if g.bus != nil {
			g.bus.Close()
		}
		return nil, err
	}
	g.Session = sess
	return g, nil
}

// broadcastBus connects the MQTT bridge when a broker is configured.
func (r *Runner) broadcastBus() broadcast.Bus {
	broker := r.config.Broadcast.MQTTBroker
	if broker == "" {
		return nil
	}

	bus, err := broadcast.NewMQTTBus(broadcast.MQTTOptions{
		BrokerURL: broker,
		Topic:     r.config.Broadcast.Topic,
		Logger:    r.logger,
	})
	if err != nil {
		r.logger.Warn("selection broadcast disabled", "broker", broker, "error", err)
		return nil
	}
	return bus
}

// startGame starts g and waits for a usable device.
func (r *Runner) startGame(ctx context.Context, g *game, full bool) error {
	if err := g.Start(ctx); err != nil {
		return err
	}
	if !g.Tokens().Valid() {
		return fmt.Errorf("%w: run 'hitster auth login'", shared.ErrNotAuthenticated)
	}
	if full {
		g.UseMode(models.ModeFull)
	}
	return waitUsable(ctx, g.Session, readyTimeout)
}

func waitUsable(ctx context.Context, sess *session.Session, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	for !sess.Device().IsUsable() {
		if !sess.Tokens().Valid() {
			return fmt.Errorf("%w: run 'hitster auth login'", shared.ErrTokenExpired)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: no device after %s", shared.ErrNotReady, timeout)
		case <-ticker.C:
		}
	}
	return nil
}

// waitPreview blocks while the countdown runs. An interrupt stops playback.
func (r *Runner) waitPreview(ctx context.Context, g *game) {
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	for g.Countdown().Running() {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := g.Stop(stopCtx); err != nil {
				r.logger.Warn("stop failed", "error", err)
			}
			return
		case <-ticker.C:
		}
	}
}

// Play plays one card from the command line.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	input := cmd.StringArg("input")
	if input == "" {
		return fmt.Errorf("%w: input", shared.ErrMissingArgument)
	}

	g, err := r.newGame(ctx, gameOptions{token: cmd.String("token")})
	if err != nil {
		return err
	}
	defer g.Close()

	if err := r.startGame(ctx, g, cmd.Bool("full")); err != nil {
		return err
	}
	if err := g.PlayInput(ctx, input); err != nil {
		return err
	}
	r.waitPreview(ctx, g)
	return nil
}

// Open handles a game link the way the page handles its URL.
func (r *Runner) Open(ctx context.Context, cmd *cli.Command) error {
	link := cmd.StringArg("url")
	if link == "" {
		return fmt.Errorf("%w: url", shared.ErrMissingArgument)
	}

	g, err := r.newGame(ctx, gameOptions{location: link, token: cmd.String("token")})
	if err != nil {
		return err
	}
	defer g.Close()

	if err := r.startGame(ctx, g, cmd.Bool("full")); err != nil {
		return err
	}

	if g.ScannerOpen() {
		return r.waitScanner(ctx, g)
	}
	if g.Current() == "" {
		return fmt.Errorf("%w: link selects no track", shared.ErrNoTrack)
	}
	if err := g.Play(ctx); err != nil {
		return err
	}
	r.waitPreview(ctx, g)
	r.writePlain("Link: %s\n", g.Location())
	return nil
}

// Scan watches the frames directory and plays the first recognized QR code.
func (r *Runner) Scan(ctx context.Context, cmd *cli.Command) error {
	g, err := r.newGame(ctx, gameOptions{token: cmd.String("token"), frames: cmd.String("frames")})
	if err != nil {
		return err
	}
	defer g.Close()

	if err := r.startGame(ctx, g, cmd.Bool("full")); err != nil {
		return err
	}
	if err := g.OpenScanner(ctx); err != nil {
		return err
	}

	r.writePlain("→ Watching for a QR code (Ctrl+C to stop)...\n")
	return r.waitScanner(ctx, g)
}

// waitScanner blocks until the scanner closes itself, then waits for the
// playback attempt of the scanned code and its preview. An interrupt returns
// without error.
func (r *Runner) waitScanner(ctx context.Context, g *game) error {
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	for g.ScannerOpen() {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}

	if err := g.WaitScan(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	r.waitPreview(ctx, g)
	return nil
}
