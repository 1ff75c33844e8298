package scanner

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hitster/internal/shared"
	"golang.org/x/time/rate"
)

// Facing selects a camera.
type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// TrackState is the lifecycle of a media track.
type TrackState int

const (
	TrackLive TrackState = iota
	TrackEnded
)

// MediaTrack is one track of a camera stream. Stop must be idempotent.
type MediaTrack interface {
	Stop()
	State() TrackState
}

// Stream is an open camera.
type Stream interface {
	Tracks() []MediaTrack
	// Frame returns the latest frame, or [shared.ErrNoFrame] when none is ready.
	Frame(ctx context.Context) (image.Image, error)
}

// Camera opens streams.
type Camera interface {
	Open(ctx context.Context, facing Facing) (Stream, error)
}

// Decoder extracts QR text from a frame.
type Decoder interface {
	Decode(img image.Image) (string, error)
}

// State is the session lifecycle.
type State int

const (
	Closed State = iota
	Opening
	Active
)

func (s State) String() string {
	switch s {
	case Opening:
		return "opening"
	case Active:
		return "active"
	default:
		return "closed"
	}
}

// Scanner status messages.
const (
	StatusCameraUnavailable  = "Camera not available on this device."
	StatusDecoderUnavailable = "QR decoder not available."
	StatusOpening            = "Opening camera..."
	StatusScanning           = "Scan a QR code..."
	StatusCameraDenied       = "Camera permission denied or unavailable."
	StatusDetected           = "QR detected!"
	StatusClosed             = "Camera closed."
	StatusIdle               = "Camera closed after inactivity."
)

// Handler receives the payload of a successful scan.
type Handler func(ctx context.Context, p Payload)

// Options configures a [Session].
type Options struct {
	Camera      Camera
	Decoder     Decoder
	Clock       shared.Clock
	Interval    time.Duration
	IdleTimeout time.Duration
	Handler     Handler
	Status      func(msg string)
	Logger      *log.Logger
}

// Session owns at most one open camera stream.
type Session struct {
	opts   Options
	logger *log.Logger

	mu           sync.Mutex
	state        State
	gen          uint64
	stream       Stream
	cancel       context.CancelFunc
	idle         shared.Timer
	lastActivity time.Time
	// handoff is closed once the handler for the last decoded payload returns.
	handoff chan struct{}
}

// NewSession creates a closed [Session].
func NewSession(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock{}
	}
	if opts.Interval <= 0 {
		opts.Interval = 250 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Session{opts: opts, logger: shared.WithLogger(opts.Logger, "component", "scanner")}
}

func (s *Session) status(msg string) {
	if s.opts.Status != nil {
		s.opts.Status(msg)
	}
}

// Available reports whether both a camera and a decoder are configured.
func (s *Session) Available() bool {
	return s.opts.Camera != nil && s.opts.Decoder != nil
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActivity returns when the session last opened.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Open starts scanning. Opening an open session is a no-op.
func (s *Session) Open(ctx context.Context) error {
	if s.opts.Camera == nil {
		s.status(StatusCameraUnavailable)
		return shared.ErrCameraUnavailable
	}
	if s.opts.Decoder == nil {
		s.status(StatusDecoderUnavailable)
		return shared.ErrDecoderUnavailable
	}

	s.mu.Lock()
	if s.state != Closed {
		s.mu.Unlock()
		return nil
	}
	s.state = Opening
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.status(StatusOpening)
	stream, err := s.opts.Camera.Open(ctx, FacingEnvironment)

	s.mu.Lock()
	if gen != s.gen {
		// closed while the camera was opening
		s.mu.Unlock()
		if stream != nil {
			stopTracks(stream)
		}
		return nil
	}
	if err != nil {
		s.state = Closed
		s.mu.Unlock()
		s.logger.Warn("camera open failed", "error", err)
		s.status(StatusCameraDenied)
		return fmt.Errorf("%w: %v", shared.ErrCameraDenied, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.state = Active
	s.stream = stream
	s.cancel = cancel
	s.lastActivity = s.opts.Clock.Now()
	if s.opts.IdleTimeout > 0 {
		s.idle = s.opts.Clock.AfterFunc(s.opts.IdleTimeout, func() { s.closeGen(gen, StatusIdle) })
	}
	s.mu.Unlock()

	s.status(StatusScanning)
	go s.loop(loopCtx, gen, stream)
	return nil
}

func (s *Session) loop(ctx context.Context, gen uint64, stream Stream) {
	limiter := rate.NewLimiter(rate.Every(s.opts.Interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		img, err := stream.Frame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		text, err := s.opts.Decoder.Decode(img)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}

		done := make(chan struct{})
		if !s.handOff(gen, done) {
			return
		}
		defer close(done)
		payload := Normalize(text)
		s.logger.Debug("scanned", "kind", payload.Kind, "value", payload.Value)
		if s.opts.Handler != nil {
			s.opts.Handler(context.Background(), payload)
		}
		return
	}
}

// Close releases the camera.
func (s *Session) Close() {
	s.mu.Lock()
	open := s.state != Closed
	s.releaseLocked()
	s.mu.Unlock()

	if open {
		s.status(StatusClosed)
	}
}

// SetVisible closes the session when the surface is hidden.
func (s *Session) SetVisible(visible bool) {
	if !visible {
		s.Close()
	}
}

// Settled returns a channel that is closed once the handler for the last
// decoded payload has returned. It is already closed when nothing was decoded.
func (s *Session) Settled() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handoff == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return s.handoff
}

// handOff closes generation gen after a decode and records done as the
// pending handoff in the same step, so a caller that sees the session closed
// also sees the handoff.
func (s *Session) handOff(gen uint64, done chan struct{}) bool {
	s.mu.Lock()
	if gen != s.gen || s.state == Closed {
		s.mu.Unlock()
		return false
	}
	s.releaseLocked()
	s.handoff = done
	s.mu.Unlock()

	s.status(StatusDetected)
	return true
}

// closeGen releases the camera if generation gen is still current.
func (s *Session) closeGen(gen uint64, msg string) bool {
	s.mu.Lock()
	if gen != s.gen || s.state == Closed {
		s.mu.Unlock()
		return false
	}
	s.releaseLocked()
	s.mu.Unlock()

	s.status(msg)
	return true
}

func (s *Session) releaseLocked() {
	s.gen++
	s.state = Closed
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.idle != nil {
		s.idle.Stop()
		s.idle = nil
	}
	if s.stream != nil {
		stopTracks(s.stream)
		s.stream = nil
	}
}

func stopTracks(stream Stream) {
	for _, t := range stream.Tracks() {
		t.Stop()
	}
}
