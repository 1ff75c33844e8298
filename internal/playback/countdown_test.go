package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/hitster/internal/models"
	th "github.com/desertthunder/hitster/internal/testing"
)

type countingPauser struct {
	mu     sync.Mutex
	pauses int
	err    error
}

func (p *countingPauser) Pause(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses++
	return p.err
}

func (p *countingPauser) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pauses
}

type countdownFixture struct {
	clock   *th.FakeClock
	pauser  *countingPauser
	prefs   *th.MemoryPrefs
	status  *statusLog
	ticks   []string
	expired int
	cd      *Countdown
}

func newCountdown() *countdownFixture {
	f := &countdownFixture{
		clock:  th.NewFakeClock(),
		pauser: &countingPauser{},
		prefs:  th.NewMemoryPrefs(),
		status: &statusLog{},
	}
	f.cd = NewCountdown(CountdownOptions{
		Seconds:  30,
		Clock:    f.clock,
		Device:   f.pauser,
		Prefs:    f.prefs,
		Status:   f.status.add,
		OnTick:   func(d string) { f.ticks = append(f.ticks, d) },
		OnExpire: func() { f.expired++ },
	})
	return f
}

func TestCountdown(t *testing.T) {
	t.Run("reaching zero pauses exactly once", func(t *testing.T) {
		f := newCountdown()
		f.cd.Begin()

		f.clock.Advance(29 * time.Second)
		if f.pauser.count() != 0 {
			t.Fatal("expected no pause before zero")
		}
		if f.cd.Display() != "1" {
			t.Errorf("expected display 1, got %q", f.cd.Display())
		}

		f.clock.Advance(time.Second)
		f.clock.Advance(time.Minute)

		if f.pauser.count() != 1 {
			t.Errorf("expected exactly one pause, got %d", f.pauser.count())
		}
		if f.expired != 1 {
			t.Errorf("expected one expiry, got %d", f.expired)
		}
		if f.status.last() != StatusStopped {
			t.Errorf("expected %q, got %q", StatusStopped, f.status.last())
		}
		if f.cd.Running() || f.clock.Pending() != 0 {
			t.Error("expected the schedule to be cancelled")
		}
		if f.ticks[0] != "30" || f.ticks[len(f.ticks)-1] != "0" {
			t.Errorf("unexpected ticks %v", f.ticks)
		}
	})

	t.Run("pause failures are not retried", func(t *testing.T) {
		f := newCountdown()
		f.pauser.err = errors.New("network down")
		f.cd.Begin()
		f.clock.Advance(2 * time.Minute)

		if f.pauser.count() != 1 {
			t.Errorf("expected one pause attempt, got %d", f.pauser.count())
		}
		if f.status.last() != StatusStopped {
			t.Errorf("expected %q, got %q", StatusStopped, f.status.last())
		}
	})

	t.Run("restart cancels the prior countdown", func(t *testing.T) {
		f := newCountdown()
		f.cd.Begin()
		f.clock.Advance(20 * time.Second)

		f.cd.Begin()
		if f.cd.Remaining() != 30 {
			t.Errorf("expected reset to 30, got %d", f.cd.Remaining())
		}
		f.clock.Advance(20 * time.Second)
		if f.pauser.count() != 0 {
			t.Fatal("expected the first countdown not to fire")
		}
		if f.clock.Pending() != 1 {
			t.Errorf("expected a single live schedule, got %d", f.clock.Pending())
		}

		f.clock.Advance(10 * time.Second)
		if f.pauser.count() != 1 {
			t.Errorf("expected one pause, got %d", f.pauser.count())
		}
	})

	t.Run("full mode mid-countdown cancels without pause", func(t *testing.T) {
		f := newCountdown()
		f.cd.Begin()
		f.clock.Advance(5 * time.Second)

		f.cd.SetMode(models.ModeFull)
		if f.cd.Display() != Infinity {
			t.Errorf("expected %q, got %q", Infinity, f.cd.Display())
		}
		f.clock.Advance(time.Minute)
		if f.pauser.count() != 0 {
			t.Errorf("expected no pause, got %d", f.pauser.count())
		}
		if full, _ := f.prefs.GetBool(ModeKey); !full {
			t.Error("expected full mode to be persisted")
		}
	})

	t.Run("full mode Begin never pauses", func(t *testing.T) {
		f := newCountdown()
		f.cd.SetMode(models.ModeFull)
		f.cd.Begin()

		if f.cd.Running() {
			t.Error("expected no schedule in full mode")
		}
		f.clock.Advance(time.Minute)
		if f.pauser.count() != 0 {
			t.Errorf("expected no pause, got %d", f.pauser.count())
		}
		if f.ticks[len(f.ticks)-1] != Infinity {
			t.Errorf("expected %q, got %v", Infinity, f.ticks)
		}
	})

	t.Run("timed mode applies at next Begin", func(t *testing.T) {
		f := newCountdown()
		f.cd.SetMode(models.ModeFull)
		f.cd.Begin()
		if mode := f.cd.ToggleMode(); mode != models.ModeTimed {
			t.Fatalf("expected timed, got %s", mode)
		}
		f.clock.Advance(time.Minute)
		if f.pauser.count() != 0 {
			t.Error("expected no pause before the next Begin")
		}

		f.cd.Begin()
		f.clock.Advance(30 * time.Second)
		if f.pauser.count() != 1 {
			t.Errorf("expected one pause, got %d", f.pauser.count())
		}
	})

	t.Run("Stop resets without pausing", func(t *testing.T) {
		f := newCountdown()
		f.cd.Begin()
		f.clock.Advance(5 * time.Second)
		f.cd.Stop()

		if f.cd.Remaining() != 30 || f.cd.Running() {
			t.Errorf("expected stopped at 30, got %d running=%v", f.cd.Remaining(), f.cd.Running())
		}
		f.clock.Advance(time.Minute)
		if f.pauser.count() != 0 {
			t.Errorf("expected no pause, got %d", f.pauser.count())
		}
	})

	t.Run("UseMode is not persisted", func(t *testing.T) {
		f := newCountdown()
		f.cd.Begin()

		f.cd.UseMode(models.ModeFull)
		if f.cd.Mode() != models.ModeFull || f.cd.Running() {
			t.Error("expected full mode with the countdown cancelled")
		}
		if _, ok, _ := f.prefs.Get(ModeKey); ok {
			t.Error("expected no stored mode")
		}
		f.clock.Advance(time.Minute)
		if f.pauser.count() != 0 {
			t.Errorf("expected no pause, got %d", f.pauser.count())
		}
	})

	t.Run("LoadMode", func(t *testing.T) {
		f := newCountdown()
		if mode := f.cd.LoadMode(); mode != models.ModeTimed {
			t.Errorf("expected timed by default, got %s", mode)
		}

		f.prefs.SetBool(ModeKey, true)
		if mode := f.cd.LoadMode(); mode != models.ModeFull {
			t.Errorf("expected full, got %s", mode)
		}

		f.prefs.Fail(errors.New("storage disabled"))
		if mode := f.cd.LoadMode(); mode != models.ModeTimed {
			t.Errorf("expected timed when storage fails, got %s", mode)
		}
	})
}
