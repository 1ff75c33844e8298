package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/services"
	"github.com/desertthunder/hitster/internal/shared"
	"github.com/google/uuid"
)

// Status messages.
const (
	StatusNotReady          = "Login and wait for player ready."
	StatusNoTrack           = "No track URI selected."
	StatusActivationBlocked = "Audio is blocked on this device. Press play again to enable sound."
	StatusPlaying           = "Playing..."
	StatusStopped           = "Stopped."
	playbackErrorPrefix     = "Playback error: "
)

// ErrClosed is returned for requests still queued when the sequencer closes.
var ErrClosed = errors.New("sequencer closed")

// Device is the output device as seen by the sequencer.
type Device interface {
	IsUsable() bool
	DeviceID() string
	EnsureActivated(ctx context.Context) error
	Transferred() bool
	MarkTransferred(deviceID string)
	ResetTransferred()
}

// Provider is the subset of [services.PlayerService] used to start playback.
type Provider interface {
	TransferPlayback(ctx context.Context, deviceID string, play bool) error
	StartPlayback(ctx context.Context, deviceID string, uris ...models.TrackRef) error
}

// Options configures a [Sequencer].
type Options struct {
	Device   Device
	Provider Provider
	// TransferDelay is waited after a transfer before starting the track.
	TransferDelay time.Duration
	Logger        *log.Logger
	Progress      chan<- Update

	Status        func(msg string)
	OnPlaying     func(ctx context.Context, ref models.TrackRef)
	OnAuthFailure func(reason string)
}

// Ticket tracks one queued playback request.
type Ticket struct {
	ID  string
	Ref models.TrackRef

	ctx  context.Context
	done chan struct{}
	err  error
}

// Done is closed once the attempt finished.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Err returns the attempt's result. It is only meaningful after Done is closed.
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the attempt finished or ctx is done.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Ticket) finish(err error) {
	t.err = err
	close(t.done)
}

// Sequencer serializes playback attempts on a single worker goroutine.
type Sequencer struct {
	opts   Options
	logger *log.Logger

	mu      sync.Mutex
	pending []*Ticket
	closed  bool
	wake    chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSequencer creates a [Sequencer] and starts its worker. Call [Sequencer.Close] to stop it.
func NewSequencer(opts Options) *Sequencer {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sequencer{
		opts:   opts,
		logger: shared.WithLogger(opts.Logger, "component", "sequencer"),
		wake:   make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// Enqueue adds a request for ref to the back of the queue.
func (s *Sequencer) Enqueue(ctx context.Context, ref models.TrackRef) *Ticket {
	t := &Ticket{ID: uuid.NewString(), Ref: ref, ctx: ctx, done: make(chan struct{})}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		t.finish(ErrClosed)
		return t
	}
	s.pending = append(s.pending, t)
	depth := len(s.pending) - 1
	s.mu.Unlock()

	s.logger.Debug("playback queued", "request", t.ID, "uri", ref, "ahead", depth)
	s.send(queuedUpdate(t, depth))

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return t
}

// Play enqueues ref and waits for its attempt.
func (s *Sequencer) Play(ctx context.Context, ref models.TrackRef) error {
	return s.Enqueue(ctx, ref).Wait(ctx)
}

// Pending returns the number of requests not yet started.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops the worker after the attempt in flight and fails queued requests with [ErrClosed].
func (s *Sequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, t := range pending {
		t.finish(ErrClosed)
	}
	s.cancel()
	<-s.done
}

func (s *Sequencer) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}

		for {
			t := s.next()
			if t == nil {
				break
			}
			if err := t.ctx.Err(); err != nil {
				t.finish(err)
				continue
			}
			t.finish(s.attempt(t.ctx, t))
		}
	}
}

func (s *Sequencer) next() *Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	t := s.pending[0]
	s.pending = s.pending[1:]
	return t
}

func (s *Sequencer) attempt(ctx context.Context, t *Ticket) error {
	dev := s.opts.Device
	if !dev.IsUsable() {
		s.status(StatusNotReady)
		s.send(failedUpdate(t, StatusNotReady, shared.ErrNotReady))
		return shared.ErrNotReady
	}
	if t.Ref == "" {
		s.status(StatusNoTrack)
		s.send(failedUpdate(t, StatusNoTrack, shared.ErrNoTrack))
		return shared.ErrNoTrack
	}

	s.send(activateUpdate(t))
	if err := dev.EnsureActivated(ctx); err != nil {
		dev.ResetTransferred()
		if errors.Is(err, shared.ErrActivationBlocked) {
			s.logger.Warn("activation blocked", "request", t.ID, "error", err)
			s.status(StatusActivationBlocked)
			s.send(failedUpdate(t, StatusActivationBlocked, err))
			return err
		}
		return s.fail(t, err)
	}

	deviceID := dev.DeviceID()
	if !dev.Transferred() {
		s.send(transferUpdate(t, deviceID))
		if err := s.opts.Provider.TransferPlayback(ctx, deviceID, false); err != nil {
			return s.fail(t, fmt.Errorf("%w: %w", shared.ErrTransferFailed, err))
		}
		dev.MarkTransferred(deviceID)

		if err := sleep(ctx, s.opts.TransferDelay); err != nil {
			return s.fail(t, err)
		}
	}

	s.send(startUpdate(t))
	if err := s.opts.Provider.StartPlayback(ctx, deviceID, t.Ref); err != nil {
		return s.fail(t, fmt.Errorf("%w: %w", shared.ErrPlayFailed, err))
	}

	s.logger.Info("playing", "request", t.ID, "uri", t.Ref, "device", deviceID)
	s.status(StatusPlaying)
	s.send(playingUpdate(t))
	if s.opts.OnPlaying != nil {
		s.opts.OnPlaying(ctx, t.Ref)
	}
	return nil
}

func (s *Sequencer) fail(t *Ticket, err error) error {
	s.opts.Device.ResetTransferred()

	detail := services.ErrorDetail(err)
	msg := playbackErrorPrefix + detail
	s.logger.Error("playback failed", "request", t.ID, "uri", t.Ref, "error", err)
	s.status(msg)
	s.send(failedUpdate(t, msg, err))

	if errors.Is(err, shared.ErrTokenExpired) && s.opts.OnAuthFailure != nil {
		s.opts.OnAuthFailure(detail)
	}
	return err
}

func (s *Sequencer) status(msg string) {
	if s.opts.Status != nil {
		s.opts.Status(msg)
	}
}

// send publishes u without blocking.
func (s *Sequencer) send(u Update) {
	if s.opts.Progress == nil {
		return
	}
	select {
	case s.opts.Progress <- u:
	default:
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
