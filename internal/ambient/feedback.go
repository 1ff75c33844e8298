package ambient

import (
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hitster/internal/shared"
)

// Micro-feedback shape.
const (
	PulseVibration = 30 * time.Millisecond
	PulseToneHz    = 880
	PulseTone      = 80 * time.Millisecond
	PulseFlash     = 150 * time.Millisecond

	// HoldThreshold is how long a press must last to count as a hold.
	HoldThreshold = 400 * time.Millisecond
)

// Haptics produces physical, audible and visual acknowledgements. Methods
// return [shared.ErrNotImplemented] when the platform lacks the capability.
type Haptics interface {
	Vibrate(d time.Duration) error
	Tone(hz float64, d time.Duration) error
	Flash(d time.Duration) error
}

// Feedback plays the hold acknowledgement. It is never used for playback start or stop.
type Feedback struct {
	haptics Haptics
	logger  *log.Logger
}

// NewFeedback creates a [Feedback]. A nil haptics makes Pulse a no-op.
func NewFeedback(haptics Haptics, logger *log.Logger) *Feedback {
	if logger == nil {
		logger = log.Default()
	}
	return &Feedback{haptics: haptics, logger: shared.WithLogger(logger, "component", "feedback")}
}

// Pulse vibrates, beeps and flashes. Failures are logged and ignored.
func (f *Feedback) Pulse() {
	if f.haptics == nil {
		return
	}
	if err := f.haptics.Vibrate(PulseVibration); err != nil {
		f.logger.Debug("vibrate unavailable", "error", err)
	}
	if err := f.haptics.Tone(PulseToneHz, PulseTone); err != nil {
		f.logger.Debug("tone unavailable", "error", err)
	}
	if err := f.haptics.Flash(PulseFlash); err != nil {
		f.logger.Debug("flash unavailable", "error", err)
	}
}

// TerminalHaptics rings the terminal bell for the tone and hands flashes to a
// renderer. Terminals cannot vibrate.
type TerminalHaptics struct {
	mu    sync.Mutex
	w     io.Writer
	flash func(d time.Duration)
}

// NewTerminalHaptics writes the bell to w. flash may be nil.
func NewTerminalHaptics(w io.Writer, flash func(d time.Duration)) *TerminalHaptics {
	return &TerminalHaptics{w: w, flash: flash}
}

func (h *TerminalHaptics) Vibrate(time.Duration) error { return shared.ErrNotImplemented }

func (h *TerminalHaptics) Tone(float64, time.Duration) error {
	if h.w == nil {
		return shared.ErrNotImplemented
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, "\a")
	return err
}

func (h *TerminalHaptics) Flash(d time.Duration) error {
	if h.flash == nil {
		return shared.ErrNotImplemented
	}
	h.flash(d)
	return nil
}

// HoldGesture turns press and release into a hold. OnHold fires once the press
// lasted [HoldThreshold]; OnRelease fires on the release that ends a hold.
type HoldGesture struct {
	clock     shared.Clock
	threshold time.Duration
	onHold    func()
	onRelease func()

	mu    sync.Mutex
	gen   uint64
	timer shared.Timer
	held  bool
}

// NewHoldGesture creates a [HoldGesture]. A zero threshold uses [HoldThreshold].
func NewHoldGesture(clock shared.Clock, threshold time.Duration, onHold, onRelease func()) *HoldGesture {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if threshold <= 0 {
		threshold = HoldThreshold
	}
	return &HoldGesture{clock: clock, threshold: threshold, onHold: onHold, onRelease: onRelease}
}

// Press starts a hold. Pressing while pressed restarts it.
func (g *HoldGesture) Press() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopLocked()
	g.gen++
	gen := g.gen
	g.timer = g.clock.AfterFunc(g.threshold, func() { g.fire(gen) })
}

// Release ends the press. A press shorter than the threshold does nothing.
func (g *HoldGesture) Release() {
	g.mu.Lock()
	g.stopLocked()
	g.gen++
	held := g.held
	g.held = false
	g.mu.Unlock()

	if held && g.onRelease != nil {
		g.onRelease()
	}
}

// Held reports whether a hold is in progress.
func (g *HoldGesture) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

func (g *HoldGesture) fire(gen uint64) {
	g.mu.Lock()
	if gen != g.gen {
		g.mu.Unlock()
		return
	}
	g.timer = nil
	g.held = true
	g.mu.Unlock()

	if g.onHold != nil {
		g.onHold()
	}
}

func (g *HoldGesture) stopLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}
