package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/hitster/internal/device"
	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/services"
	"github.com/desertthunder/hitster/internal/shared"
	th "github.com/desertthunder/hitster/internal/testing"
)

const trackABC = models.TrackRef("spotify:track:ABC")

type tokens string

func (t tokens) Value() string { return string(t) }
func (t tokens) Valid() bool   { return t != "" }

type statusLog struct {
	mu   sync.Mutex
	msgs []string
}

func (l *statusLog) add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

func (l *statusLog) last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.msgs) == 0 {
		return ""
	}
	return l.msgs[len(l.msgs)-1]
}

type fixture struct {
	player   *th.MockPlayer
	provider *th.MockPlayerService
	device   *device.Controller
	status   *statusLog
	seq      *Sequencer
}

func newFixture(t *testing.T, ready bool, configure func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		player:   th.NewMockPlayer("dev1"),
		provider: th.NewMockPlayerService(),
		status:   &statusLog{},
	}
	f.device = device.NewController(device.ControllerOptions{
		Name:     "Hitster Player",
		Factory:  f.player.Factory(),
		Tokens:   tokens("tok1"),
		Provider: f.provider,
	})
	if ready {
		if err := f.device.MarkSDKReady(context.Background()); err != nil {
			t.Fatalf("device setup failed: %v", err)
		}
	}

	opts := Options{Device: f.device, Provider: f.provider, Status: f.status.add}
	if configure != nil {
		configure(&opts)
	}
	f.seq = NewSequencer(opts)
	t.Cleanup(f.seq.Close)
	return f
}

func equalMethods(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestSequencer(t *testing.T) {
	ctx := context.Background()

	t.Run("two rapid triggers transfer once and play twice", func(t *testing.T) {
		f := newFixture(t, true, nil)
		release := f.provider.Gate()

		first := f.seq.Enqueue(ctx, trackABC)
		second := f.seq.Enqueue(ctx, "spotify:track:DEF")

		th.Eventually(t, time.Second, func() bool { return f.provider.Count(th.CallTransfer) == 1 }, "first attempt transferred")
		if f.seq.Pending() != 1 {
			t.Errorf("expected the second request to wait, got %d pending", f.seq.Pending())
		}

		release()
		if err := first.Wait(ctx); err != nil {
			t.Fatalf("first play failed: %v", err)
		}
		if err := second.Wait(ctx); err != nil {
			t.Fatalf("second play failed: %v", err)
		}

		want := []string{th.CallTransfer, th.CallPlay, th.CallPlay}
		if got := f.provider.Methods(); !equalMethods(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}

		calls := f.provider.Calls()
		if calls[0].Play {
			t.Error("expected transfer with autoplay disabled")
		}
		if calls[1].DeviceID != "dev1" || calls[1].URIs[0] != trackABC {
			t.Errorf("unexpected play call %+v", calls[1])
		}
		if f.status.last() != StatusPlaying {
			t.Errorf("expected %q, got %q", StatusPlaying, f.status.last())
		}
		if _, activations, _, _ := f.player.Stats(); activations != 1 {
			t.Errorf("expected one activation, got %d", activations)
		}
	})

	t.Run("blocked activation makes no provider calls", func(t *testing.T) {
		f := newFixture(t, true, nil)
		f.player.FailActivation(errors.New("NotAllowedError"))

		err := f.seq.Play(ctx, trackABC)
		if !errors.Is(err, shared.ErrActivationBlocked) {
			t.Fatalf("expected ErrActivationBlocked, got %v", err)
		}
		if got := f.provider.Methods(); len(got) != 0 {
			t.Errorf("expected no provider calls, got %v", got)
		}
		if f.status.last() != StatusActivationBlocked {
			t.Errorf("expected %q, got %q", StatusActivationBlocked, f.status.last())
		}
	})

	t.Run("not ready", func(t *testing.T) {
		f := newFixture(t, false, nil)
		if err := f.seq.Play(ctx, trackABC); !errors.Is(err, shared.ErrNotReady) {
			t.Fatalf("expected ErrNotReady, got %v", err)
		}
		if f.status.last() != StatusNotReady {
			t.Errorf("expected %q, got %q", StatusNotReady, f.status.last())
		}
		if _, activations, _, _ := f.player.Stats(); activations != 0 {
			t.Error("expected no activation")
		}
	})

	t.Run("no track", func(t *testing.T) {
		f := newFixture(t, true, nil)
		if err := f.seq.Play(ctx, ""); !errors.Is(err, shared.ErrNoTrack) {
			t.Fatalf("expected ErrNoTrack, got %v", err)
		}
		if f.status.last() != StatusNoTrack {
			t.Errorf("expected %q, got %q", StatusNoTrack, f.status.last())
		}
	})

	t.Run("transfer failure retransfers next time", func(t *testing.T) {
		f := newFixture(t, true, nil)
		f.provider.SetError(th.CallTransfer, &services.APIError{Status: 404, Message: "Device not found"})

		err := f.seq.Play(ctx, trackABC)
		if !errors.Is(err, shared.ErrTransferFailed) {
			t.Fatalf("expected ErrTransferFailed, got %v", err)
		}
		if f.status.last() != "Playback error: Device not found" {
			t.Errorf("unexpected status %q", f.status.last())
		}
		if f.device.Transferred() {
			t.Error("expected transferred to stay false")
		}

		f.provider.SetError(th.CallTransfer, nil)
		if err := f.seq.Play(ctx, trackABC); err != nil {
			t.Fatalf("second play failed: %v", err)
		}
		want := []string{th.CallTransfer, th.CallTransfer, th.CallPlay}
		if got := f.provider.Methods(); !equalMethods(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("play failure resets transferred", func(t *testing.T) {
		f := newFixture(t, true, nil)
		f.provider.SetError(th.CallPlay, &services.APIError{Status: 502})

		if err := f.seq.Play(ctx, trackABC); !errors.Is(err, shared.ErrPlayFailed) {
			t.Fatalf("expected ErrPlayFailed, got %v", err)
		}
		if f.status.last() != "Playback error: HTTP 502" {
			t.Errorf("unexpected status %q", f.status.last())
		}

		f.provider.SetError(th.CallPlay, nil)
		if err := f.seq.Play(ctx, trackABC); err != nil {
			t.Fatalf("second play failed: %v", err)
		}
		want := []string{th.CallTransfer, th.CallPlay, th.CallTransfer, th.CallPlay}
		if got := f.provider.Methods(); !equalMethods(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("expired token reports an auth failure", func(t *testing.T) {
		var reasons []string
		f := newFixture(t, true, func(o *Options) {
			o.OnAuthFailure = func(reason string) { reasons = append(reasons, reason) }
		})
		f.provider.SetError(th.CallTransfer, &services.APIError{Status: 401, Message: "The access token expired"})

		err := f.seq.Play(ctx, trackABC)
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
		if len(reasons) != 1 || reasons[0] != "The access token expired" {
			t.Errorf("unexpected auth failures %v", reasons)
		}
	})

	t.Run("failures do not abort queued requests", func(t *testing.T) {
		f := newFixture(t, true, nil)
		release := f.provider.Gate()

		a := f.seq.Enqueue(ctx, trackABC)
		b := f.seq.Enqueue(ctx, "")
		c := f.seq.Enqueue(ctx, "spotify:track:DEF")
		release()

		if err := a.Wait(ctx); err != nil {
			t.Errorf("first: %v", err)
		}
		if err := b.Wait(ctx); !errors.Is(err, shared.ErrNoTrack) {
			t.Errorf("second: expected ErrNoTrack, got %v", err)
		}
		if err := c.Wait(ctx); err != nil {
			t.Errorf("third: %v", err)
		}
		if n := f.provider.Count(th.CallPlay); n != 2 {
			t.Errorf("expected 2 plays, got %d", n)
		}
	})

	t.Run("progress and playing hook", func(t *testing.T) {
		progress := make(chan Update, 16)
		var played []models.TrackRef
		f := newFixture(t, true, func(o *Options) {
			o.Progress = progress
			o.OnPlaying = func(ctx context.Context, ref models.TrackRef) { played = append(played, ref) }
		})

		if err := f.seq.Play(ctx, trackABC); err != nil {
			t.Fatalf("play failed: %v", err)
		}
		close(progress)

		var phases []Phase
		var id string
		for u := range progress {
			phases = append(phases, u.Phase)
			if id == "" {
				id = u.RequestID
			} else if u.RequestID != id {
				t.Errorf("expected one request id, got %q and %q", id, u.RequestID)
			}
		}
		want := []Phase{Queued, Activate, Transfer, Start, Playing}
		if len(phases) != len(want) {
			t.Fatalf("expected %v, got %v", want, phases)
		}
		for i := range want {
			if phases[i] != want[i] {
				t.Errorf("phase %d: expected %s, got %s", i, want[i], phases[i])
			}
		}
		if len(played) != 1 || played[0] != trackABC {
			t.Errorf("expected playing hook for %s, got %v", trackABC, played)
		}
	})

	t.Run("Close fails queued requests", func(t *testing.T) {
		f := newFixture(t, true, nil)
		release := f.provider.Gate()

		first := f.seq.Enqueue(ctx, trackABC)
		th.Eventually(t, time.Second, func() bool { return f.provider.Count(th.CallTransfer) == 1 }, "first attempt started")
		second := f.seq.Enqueue(ctx, trackABC)

		closed := make(chan struct{})
		go func() {
			f.seq.Close()
			close(closed)
		}()
		if err := second.Wait(ctx); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}

		release()
		<-closed
		if err := first.Wait(ctx); err != nil {
			t.Errorf("expected the attempt in flight to finish, got %v", err)
		}
		if err := f.seq.Enqueue(ctx, trackABC).Wait(ctx); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed after Close, got %v", err)
		}
	})

	t.Run("cancelled request is skipped", func(t *testing.T) {
		f := newFixture(t, true, nil)
		release := f.provider.Gate()

		first := f.seq.Enqueue(ctx, trackABC)
		cctx, cancel := context.WithCancel(ctx)
		second := f.seq.Enqueue(cctx, trackABC)
		cancel()
		release()

		if err := first.Wait(ctx); err != nil {
			t.Fatalf("first play failed: %v", err)
		}
		<-second.Done()
		if !errors.Is(second.Err(), context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", second.Err())
		}
		if n := f.provider.Count(th.CallPlay); n != 1 {
			t.Errorf("expected one play, got %d", n)
		}
	})
}
