package scanner_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/hitster/internal/scanner"
	"github.com/desertthunder/hitster/internal/shared"
	th "github.com/desertthunder/hitster/internal/testing"
)

type recorder struct {
	mu       sync.Mutex
	statuses []string
	payloads []scanner.Payload
}

func (r *recorder) status(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, msg)
}

func (r *recorder) handle(ctx context.Context, p scanner.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
}

func (r *recorder) lastStatus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

func (r *recorder) payloadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func newSession(camera scanner.Camera, decoder scanner.Decoder, clock shared.Clock, rec *recorder) *scanner.Session {
	return scanner.NewSession(scanner.Options{
		Camera:      camera,
		Decoder:     decoder,
		Clock:       clock,
		Interval:    time.Millisecond,
		IdleTimeout: time.Minute,
		Handler:     rec.handle,
		Status:      rec.status,
	})
}

func TestSession(t *testing.T) {
	ctx := context.Background()

	t.Run("capability errors", func(t *testing.T) {
		rec := &recorder{}
		s := newSession(nil, th.TextDecoder{}, th.NewFakeClock(), rec)
		if err := s.Open(ctx); !errors.Is(err, shared.ErrCameraUnavailable) {
			t.Errorf("expected ErrCameraUnavailable, got %v", err)
		}
		if rec.lastStatus() != scanner.StatusCameraUnavailable {
			t.Errorf("unexpected status %q", rec.lastStatus())
		}

		rec = &recorder{}
		s = newSession(th.NewMockCamera(), nil, th.NewFakeClock(), rec)
		if err := s.Open(ctx); !errors.Is(err, shared.ErrDecoderUnavailable) {
			t.Errorf("expected ErrDecoderUnavailable, got %v", err)
		}
		if rec.lastStatus() != scanner.StatusDecoderUnavailable {
			t.Errorf("unexpected status %q", rec.lastStatus())
		}
	})

	t.Run("permission denied", func(t *testing.T) {
		camera := th.NewMockCamera()
		camera.Fail(errors.New("NotAllowedError"))
		rec := &recorder{}
		s := newSession(camera, th.TextDecoder{}, th.NewFakeClock(), rec)

		if err := s.Open(ctx); !errors.Is(err, shared.ErrCameraDenied) {
			t.Errorf("expected ErrCameraDenied, got %v", err)
		}
		if rec.lastStatus() != scanner.StatusCameraDenied {
			t.Errorf("unexpected status %q", rec.lastStatus())
		}
		if s.State() != scanner.Closed {
			t.Errorf("expected closed, got %s", s.State())
		}
	})

	t.Run("decode stops tracks and hands off once", func(t *testing.T) {
		camera := th.NewMockCamera()
		rec := &recorder{}
		s := newSession(camera, th.TextDecoder{}, th.NewFakeClock(), rec)

		if err := s.Open(ctx); err != nil {
			t.Fatalf("open failed: %v", err)
		}
		if s.State() != scanner.Active {
			t.Fatalf("expected active, got %s", s.State())
		}
		if f := camera.Facings(); len(f) != 1 || f[0] != scanner.FacingEnvironment {
			t.Errorf("expected rear camera, got %v", f)
		}

		stream := camera.Streams()[0]
		stream.Feed("", "", "https://hitster.example/?id=12", "spotify:track:LATE")

		th.Eventually(t, 2*time.Second, func() bool { return rec.payloadCount() == 1 }, "payload handed off")

		if s.State() != scanner.Closed {
			t.Errorf("expected closed after decode, got %s", s.State())
		}
		if stream.Track().Stops() == 0 || stream.Track().State() != scanner.TrackEnded {
			t.Error("expected camera track to be stopped after decode")
		}

		rec.mu.Lock()
		p := rec.payloads[0]
		rec.mu.Unlock()
		if p.Kind != scanner.KindID || p.Value != "12" {
			t.Errorf("unexpected payload %+v", p)
		}

		time.Sleep(20 * time.Millisecond)
		if rec.payloadCount() != 1 {
			t.Errorf("expected exactly one hand off, got %d", rec.payloadCount())
		}
	})

	t.Run("Settled waits for the handler of the decoded payload", func(t *testing.T) {
		camera := th.NewMockCamera()
		release := make(chan struct{})
		s := scanner.NewSession(scanner.Options{
			Camera:      camera,
			Decoder:     th.TextDecoder{},
			Clock:       th.NewFakeClock(),
			Interval:    time.Millisecond,
			IdleTimeout: time.Minute,
			Handler:     func(context.Context, scanner.Payload) { <-release },
		})
		defer s.Close()

		select {
		case <-s.Settled():
		default:
			t.Fatal("expected Settled closed before any decode")
		}

		if err := s.Open(ctx); err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		camera.Streams()[0].Feed("spotify:track:ABC")
		th.Eventually(t, 2*time.Second, func() bool { return s.State() == scanner.Closed }, "closed after decode")

		settled := s.Settled()
		select {
		case <-settled:
			t.Fatal("expected Settled open while the handler runs")
		default:
		}

		close(release)
		select {
		case <-settled:
		case <-time.After(2 * time.Second):
			t.Fatal("expected Settled closed once the handler returned")
		}
	})

	t.Run("Close stops tracks and is idempotent", func(t *testing.T) {
		camera := th.NewMockCamera()
		rec := &recorder{}
		s := newSession(camera, th.TextDecoder{}, th.NewFakeClock(), rec)

		if err := s.Open(ctx); err != nil {
			t.Fatalf("open failed: %v", err)
		}
		if err := s.Open(ctx); err != nil {
			t.Fatalf("second open failed: %v", err)
		}
		if n := len(camera.Streams()); n != 1 {
			t.Fatalf("expected one stream, got %d", n)
		}

		s.Close()
		s.Close()

		track := camera.Streams()[0].Track()
		if track.State() != scanner.TrackEnded {
			t.Error("expected track stopped")
		}
		if rec.lastStatus() != scanner.StatusClosed {
			t.Errorf("unexpected status %q", rec.lastStatus())
		}
	})

	t.Run("hidden surface closes the camera", func(t *testing.T) {
		camera := th.NewMockCamera()
		s := newSession(camera, th.TextDecoder{}, th.NewFakeClock(), &recorder{})
		if err := s.Open(ctx); err != nil {
			t.Fatalf("open failed: %v", err)
		}

		s.SetVisible(true)
		if s.State() != scanner.Active {
			t.Fatal("expected visibility to keep the session open")
		}
		s.SetVisible(false)
		if s.State() != scanner.Closed || camera.Streams()[0].Track().State() != scanner.TrackEnded {
			t.Error("expected hidden surface to release the camera")
		}
	})

	t.Run("inactivity closes the camera", func(t *testing.T) {
		camera := th.NewMockCamera()
		clock := th.NewFakeClock()
		rec := &recorder{}
		s := newSession(camera, th.TextDecoder{}, clock, rec)
		if err := s.Open(ctx); err != nil {
			t.Fatalf("open failed: %v", err)
		}
		if !s.LastActivity().Equal(clock.Now()) {
			t.Errorf("expected last activity at open time")
		}

		clock.Advance(59 * time.Second)
		if s.State() != scanner.Active {
			t.Fatal("expected session to stay open before the timeout")
		}

		clock.Advance(time.Second)
		if s.State() != scanner.Closed {
			t.Fatal("expected session closed after the timeout")
		}
		if camera.Streams()[0].Track().State() != scanner.TrackEnded {
			t.Error("expected track stopped after the timeout")
		}
		if rec.lastStatus() != scanner.StatusIdle {
			t.Errorf("unexpected status %q", rec.lastStatus())
		}
	})

	t.Run("close during open releases the late stream", func(t *testing.T) {
		camera := th.NewMockCamera()
		release := camera.Block()
		s := newSession(camera, th.TextDecoder{}, th.NewFakeClock(), &recorder{})

		done := make(chan error, 1)
		go func() { done <- s.Open(ctx) }()

		th.Eventually(t, time.Second, func() bool { return s.State() == scanner.Opening }, "session opening")
		s.Close()
		release()

		if err := <-done; err != nil {
			t.Fatalf("open returned error: %v", err)
		}
		if s.State() != scanner.Closed {
			t.Errorf("expected closed, got %s", s.State())
		}
		streams := camera.Streams()
		if len(streams) != 1 || streams[0].Track().State() != scanner.TrackEnded {
			t.Error("expected the late stream to be stopped")
		}
	})

	t.Run("reopen after decode", func(t *testing.T) {
		camera := th.NewMockCamera()
		rec := &recorder{}
		s := newSession(camera, th.TextDecoder{}, th.NewFakeClock(), rec)

		for i := range 2 {
			if err := s.Open(ctx); err != nil {
				t.Fatalf("open %d failed: %v", i, err)
			}
			camera.Streams()[i].Feed("spotify:track:ABC")
			th.Eventually(t, 2*time.Second, func() bool { return rec.payloadCount() == i+1 }, "payload handed off")
		}
	})
}
