// Package session is the playback session controller: the one object that owns
// the token, the output device, the sequencer, the countdown, the scanner and
// the ambient effects of a game screen, and routes user intents between them.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hitster/internal/ambient"
	"github.com/desertthunder/hitster/internal/broadcast"
	"github.com/desertthunder/hitster/internal/device"
	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/playback"
	"github.com/desertthunder/hitster/internal/scanner"
	"github.com/desertthunder/hitster/internal/services"
	"github.com/desertthunder/hitster/internal/shared"
	"github.com/desertthunder/hitster/internal/tokens"
)

// Query parameters read from the [Location].
const (
	ParamTrack = "t"
	ParamID    = "id"
	ParamScan  = "scan"
)

// Status messages.
const (
	StatusAuthenticated = "Authenticated with Spotify."
	StatusExpired       = "Session expired, please log in again."
	StatusUnrecognized  = "QR code not recognized."
	StatusNext          = "Scan the next QR code!"
	StatusRemoteSelect  = "Track selected on another screen."
)

func statusNotFound(id string) string        { return fmt.Sprintf("ID %s not found in catalog", id) }
func scannerStatusNotFound(id string) string { return fmt.Sprintf("ID %s not found.", id) }
func statusBadTrack(raw string) string       { return fmt.Sprintf("Track %s not recognized.", raw) }

// closePauseTimeout bounds the pause sent for a track that started during Close.
const closePauseTimeout = 5 * time.Second

// Prefs is the preference store behind the token and the playback mode.
type Prefs interface {
	tokens.Persister
	playback.ModePrefs
}

// Resolver maps scanned or typed input to tracks and tracks to card metadata.
type Resolver interface {
	Resolve(ctx context.Context, input string) (models.TrackRef, bool)
	Lookup(ctx context.Context, ref models.TrackRef) (models.CatalogEntry, bool)
}

// PlayRecorder stores the history of started tracks.
type PlayRecorder interface {
	Create(play *models.Play) error
}

// Options configures a [Session]. Provider, Resolver and PlayerFactory are required.
type Options struct {
	Location      *Location
	Surface       Surface
	Prefs         Prefs
	Plays         PlayRecorder
	Provider      services.PlayerService
	Resolver      Resolver
	PlayerFactory device.PlayerFactory

	PlayerName     string
	Volume         float64
	PreviewSeconds int
	TransferDelay  time.Duration

	Camera       scanner.Camera
	Decoder      scanner.Decoder
	ScanInterval time.Duration
	IdleTimeout  time.Duration

	WakeLocker   ambient.WakeLocker
	MediaSession ambient.MediaSession
	Haptics      ambient.Haptics
	Bus          broadcast.Bus

	// Tokens replaces the session's own token store, so a provider client built
	// beforehand can use it as its token source.
	Tokens *tokens.Store

	// LoginBase is the origin of the OAuth bootstrap endpoint.
	LoginBase string
	Progress  chan<- playback.Update
	Clock     shared.Clock
	Logger    *log.Logger
}

// Session wires the components of one game screen together.
type Session struct {
	id     string
	opts   Options
	caps   Capabilities
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	tokens    *tokens.Store
	device    *device.Controller
	sequencer *playback.Sequencer
	countdown *playback.Countdown
	scanner   *scanner.Session
	wake      *ambient.WakeLock
	mirror    *ambient.Mirror
	feedback  *ambient.Feedback
	hold      *ambient.HoldGesture

	mu          sync.Mutex
	current     models.TrackRef
	unsubscribe func()
	closed      bool
	scanErr     error
}

// New builds a [Session]. Nothing touches the network until [Session.Start].
func New(opts Options) (*Session, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("%w: provider", shared.ErrMissingArgument)
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("%w: resolver", shared.ErrMissingArgument)
	}
	if opts.PlayerFactory == nil {
		return nil, fmt.Errorf("%w: player factory", shared.ErrMissingArgument)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock{}
	}
	if opts.Location == nil {
		opts.Location, _ = NewLocation("/")
	}
	if opts.Surface == nil {
		opts.Surface = NewLogSurface(nopWriter{}, opts.Logger)
	}
	if opts.PlayerName == "" {
		opts.PlayerName = "Hitster Player"
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:     shared.GenerateID(),
		opts:   opts,
		caps:   detectCapabilities(opts),
		logger: shared.WithLogger(opts.Logger, "component", "session"),
		ctx:    ctx,
		cancel: cancel,
	}
	surface := opts.Surface

	s.tokens = opts.Tokens
	if s.tokens == nil {
		var persist tokens.Persister
		if opts.Prefs != nil {
			persist = opts.Prefs
		}
		s.tokens = tokens.NewStore(persist, opts.Location, opts.Logger)
	}

	s.device = device.NewController(device.ControllerOptions{
		Name:          opts.PlayerName,
		Volume:        opts.Volume,
		Factory:       opts.PlayerFactory,
		Tokens:        s.tokens,
		Provider:      opts.Provider,
		Logger:        opts.Logger,
		Status:        surface.SetStatus,
		OnAuthError:   s.tokens.Invalidate,
		OnStateChange: s.onProviderState,
	})

	var prefs playback.ModePrefs
	if opts.Prefs != nil {
		prefs = opts.Prefs
	}
	s.countdown = playback.NewCountdown(playback.CountdownOptions{
		Seconds:  opts.PreviewSeconds,
		Clock:    opts.Clock,
		Device:   s.device,
		Prefs:    prefs,
		Logger:   opts.Logger,
		Status:   surface.SetStatus,
		OnTick:   surface.SetTimer,
		OnExpire: s.onExpire,
	})

	s.sequencer = playback.NewSequencer(playback.Options{
		Device:        s.device,
		Provider:      opts.Provider,
		TransferDelay: opts.TransferDelay,
		Logger:        opts.Logger,
		Progress:      opts.Progress,
		Status:        surface.SetStatus,
		OnPlaying:     s.onPlaying,
		OnAuthFailure: s.tokens.Invalidate,
	})

	s.scanner = scanner.NewSession(scanner.Options{
		Camera:      opts.Camera,
		Decoder:     opts.Decoder,
		Clock:       opts.Clock,
		Interval:    opts.ScanInterval,
		IdleTimeout: opts.IdleTimeout,
		Handler:     s.handleScan,
		Status:      surface.SetScannerStatus,
		Logger:      opts.Logger,
	})

	s.wake = ambient.NewWakeLock(opts.WakeLocker, opts.Logger)
	s.mirror = ambient.NewMirror(opts.MediaSession, opts.Resolver)
	s.feedback = ambient.NewFeedback(opts.Haptics, opts.Logger)
	s.hold = ambient.NewHoldGesture(opts.Clock, 0, s.onHold, surface.HideReveal)

	s.tokens.OnApply(s.onTokenApplied)
	s.tokens.OnInvalidate(s.onTokenInvalidated)
	return s, nil
}

// Start reads the location, restores the token and connects the player.
//
// A "t" parameter selects a track directly and an "id" parameter selects one
// through the catalog. A "token" parameter wins over the stored token and is
// stripped. A "scan" parameter opens the scanner once.
func (s *Session) Start(ctx context.Context) error {
	s.caps.log(s.logger)
	surface := s.opts.Surface
	surface.SetControlsEnabled(false)
	s.countdown.LoadMode()

	loc := s.opts.Location
	if raw := strings.TrimSpace(loc.Param(ParamTrack)); raw != "" {
		if ref, ok := models.ParseTrackRef(raw); ok {
			s.setCurrent(ref)
		} else {
			s.logger.Warn("ignoring track parameter", "value", raw)
			surface.SetStatus(statusBadTrack(raw))
		}
	}
	if id := strings.TrimSpace(loc.Param(ParamID)); id != "" {
		if ref, ok := s.opts.Resolver.Resolve(ctx, id); ok {
			s.setCurrent(ref)
		} else {
			surface.SetStatus(statusNotFound(id))
		}
	}

	s.tokens.Restore(loc.Param(tokens.Param))

	if s.opts.Bus != nil {
		unsubscribe := s.opts.Bus.Subscribe(s.onSelection)
		s.mu.Lock()
		s.unsubscribe = unsubscribe
		s.mu.Unlock()
	}

	if err := s.device.MarkSDKReady(ctx); err != nil {
		s.logger.Error("player setup failed", "error", err)
		surface.SetStatus("Init error: " + err.Error())
	}

	if loc.Param(ParamScan) != "" {
		loc.StripParam(ParamScan)
		if err := s.OpenScanner(ctx); err != nil {
			s.logger.Warn("scanner did not open", "error", err)
		}
	}
	return nil
}

// ApplyToken makes token current, as if it arrived through the OAuth return.
func (s *Session) ApplyToken(token string) { s.tokens.Apply(token) }

// Logout forgets the token.
func (s *Session) Logout() { s.tokens.Invalidate("logout") }

// LoginURL is the bootstrap login address that returns to the current location.
func (s *Session) LoginURL() string {
	base := strings.TrimRight(s.opts.LoginBase, "/")
	return base + "/api/login?redirect_uri=" + url.QueryEscape(s.opts.Location.String())
}

// HandlePayload routes a scanned payload: tracks and catalog ids are selected
// and played, anything else is reported as unrecognized.
func (s *Session) HandlePayload(ctx context.Context, p scanner.Payload) error {
	surface := s.opts.Surface
	switch p.Kind {
	case scanner.KindURI:
		ref := models.TrackRef(p.Value)
		s.setCurrent(ref)
		s.opts.Location.SetParam(ParamTrack, ref.String(), ParamID)
		return s.Play(ctx)
	case scanner.KindID:
		ref, ok := s.opts.Resolver.Resolve(ctx, p.Value)
		if !ok {
			surface.SetStatus(statusNotFound(p.Value))
			surface.SetScannerStatus(scannerStatusNotFound(p.Value))
			return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, p.Value)
		}
		s.setCurrent(ref)
		s.opts.Location.SetParam(ParamID, p.Value, ParamTrack)
		return s.Play(ctx)
	default:
		surface.SetStatus(StatusUnrecognized)
		surface.SetScannerStatus(StatusUnrecognized)
		return fmt.Errorf("%w: %q", shared.ErrUnrecognized, p.Value)
	}
}

// PlayInput plays typed input: a track reference, a share link, a catalog key,
// an alternate code or a card number.
func (s *Session) PlayInput(ctx context.Context, input string) error {
	p := scanner.Normalize(input)
	if p.Kind == scanner.KindRaw && p.Value != "" {
		p.Kind = scanner.KindID
	}
	return s.HandlePayload(ctx, p)
}

// Play plays the selected track through the sequencer and waits for the attempt.
func (s *Session) Play(ctx context.Context) error {
	return s.sequencer.Play(ctx, s.Current())
}

// Stop cancels the countdown and pauses the device.
func (s *Session) Stop(ctx context.Context) error {
	s.countdown.Stop()
	s.wake.Release()
	s.mirror.Pause()

	err := s.device.Pause(ctx)
	if err != nil {
		s.logger.Warn("pause failed", "error", err)
	}
	s.opts.Surface.SetStatus(playback.StatusStopped)
	return err
}

// Reveal shows the selected track's title and year.
func (s *Session) Reveal(ctx context.Context) {
	ref := s.Current()
	if ref == "" {
		s.opts.Surface.ShowReveal(models.NoTrackSelected, "")
		return
	}
	entry, ok := s.opts.Resolver.Lookup(ctx, ref)
	if !ok {
		s.opts.Surface.ShowReveal(models.UnknownTrack, "")
		return
	}
	s.opts.Surface.ShowReveal(entry.DisplayTitle(), entry.Year.String())
}

// Next hides the reveal and asks for the next card.
func (s *Session) Next() {
	s.opts.Surface.HideReveal()
	s.opts.Surface.SetStatus(StatusNext)
}

// Mode returns the current playback mode.
func (s *Session) Mode() models.PlaybackMode { return s.countdown.Mode() }

// ToggleMode switches between timed previews and full tracks.
func (s *Session) ToggleMode() models.PlaybackMode { return s.countdown.ToggleMode() }

// UseMode switches the mode for this session only, leaving the stored preference alone.
func (s *Session) UseMode(mode models.PlaybackMode) { s.countdown.UseMode(mode) }

// OpenScanner starts the camera.
func (s *Session) OpenScanner(ctx context.Context) error { return s.scanner.Open(ctx) }

// CloseScanner releases the camera.
func (s *Session) CloseScanner() { s.scanner.Close() }

// WaitScan blocks until the last decoded payload has been handled, including
// the playback attempt it triggered, and returns that attempt's error.
func (s *Session) WaitScan(ctx context.Context) error {
	select {
	case <-s.scanner.Settled():
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanErr
}

// ScannerOpen reports whether the camera is starting or scanning.
func (s *Session) ScannerOpen() bool { return s.scanner.State() != scanner.Closed }

// SetVisible reacts to the surface being shown or hidden. Hiding closes the
// scanner and releases the wake lock.
func (s *Session) SetVisible(ctx context.Context, visible bool) {
	s.scanner.SetVisible(visible)
	s.wake.SetVisible(ctx, visible)
}

// PressHold starts the hold-to-reveal gesture.
func (s *Session) PressHold() { s.hold.Press() }

// ReleaseHold ends the hold-to-reveal gesture.
func (s *Session) ReleaseHold() { s.hold.Release() }

// Close tears everything down. It is safe to call more than once.
//
// Attempts in flight are cancelled and drained before the countdown stops, so
// no countdown starts after Close returns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.scanner.Close()
	s.cancel()
	s.sequencer.Close()
	s.countdown.Stop()
	s.wake.Release()
	s.mirror.Clear()
	s.device.Teardown()
}

func (s *Session) ID() string                     { return s.id }
func (s *Session) Capabilities() Capabilities     { return s.caps }
func (s *Session) Tokens() *tokens.Store          { return s.tokens }
func (s *Session) Device() *device.Controller     { return s.device }
func (s *Session) Countdown() *playback.Countdown { return s.countdown }
func (s *Session) Scanner() *scanner.Session      { return s.scanner }
func (s *Session) WakeLock() *ambient.WakeLock    { return s.wake }
func (s *Session) Location() *Location            { return s.opts.Location }

// Enqueue queues the selected track without waiting for the attempt.
func (s *Session) Enqueue(ctx context.Context) *playback.Ticket {
	return s.sequencer.Enqueue(ctx, s.Current())
}

// Current returns the selected track, or "".
func (s *Session) Current() models.TrackRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) setCurrent(ref models.TrackRef) {
	s.mu.Lock()
	s.current = ref
	s.mu.Unlock()
	s.logger.Debug("track selected", "uri", ref)
}

// handleScan runs on the scanner's goroutine. It uses the session context so
// Close cancels the attempt.
func (s *Session) handleScan(_ context.Context, p scanner.Payload) {
	err := s.HandlePayload(s.ctx, p)
	if err != nil && !errors.Is(err, shared.ErrUnrecognized) {
		s.logger.Warn("scan did not play", "kind", p.Kind, "value", p.Value, "error", err)
	}
	s.mu.Lock()
	s.scanErr = err
	s.mu.Unlock()
}

func (s *Session) onTokenApplied(string) {
	s.opts.Surface.SetControlsEnabled(true)
	s.opts.Surface.SetStatus(StatusAuthenticated)
	if err := s.device.Setup(s.ctx); err != nil {
		s.logger.Error("player setup failed", "error", err)
	}
}

func (s *Session) onTokenInvalidated(reason string) {
	s.countdown.Stop()
	s.wake.Release()
	s.mirror.Clear()
	s.device.Teardown()
	s.opts.Surface.SetControlsEnabled(false)
	s.opts.Surface.SetStatus(StatusExpired)
}

func (s *Session) onPlaying(ctx context.Context, ref models.TrackRef) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		// started while closing: nothing would stop it later
		pauseCtx, cancel := context.WithTimeout(context.Background(), closePauseTimeout)
		defer cancel()
		if err := s.device.Pause(pauseCtx); err != nil {
			s.logger.Warn("pause after close failed", "uri", ref, "error", err)
		}
		return
	}

	s.countdown.Begin()
	s.mirror.Prime(ctx, ref)
	s.wake.Request(ctx)

	if s.opts.Plays != nil {
		play := models.NewPlay(ref, s.device.DeviceID(), s.countdown.Mode())
		if err := s.opts.Plays.Create(play); err != nil {
			s.logger.Warn("could not record play", "uri", ref, "error", err)
		}
	}
	if s.opts.Bus != nil {
		sel := broadcast.Selection{Origin: s.id, URI: ref, At: s.opts.Clock.Now()}
		if err := s.opts.Bus.Publish(ctx, sel); err != nil {
			s.logger.Warn("could not broadcast selection", "uri", ref, "error", err)
		}
	}
}

func (s *Session) onExpire() {
	s.wake.Release()
	s.mirror.Pause()
}

func (s *Session) onProviderState(state services.PlaybackState) {
	s.mirror.Sync(s.ctx, state)
}

func (s *Session) onSelection(sel broadcast.Selection) {
	if sel.Origin == s.id {
		return
	}
	s.setCurrent(sel.URI)
	s.opts.Surface.HideReveal()
	s.opts.Surface.SetStatus(StatusRemoteSelect)
}

func (s *Session) onHold() {
	s.feedback.Pulse()
	s.Reveal(s.ctx)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
