package playback

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/shared"
)

// ModeKey is the preference key holding the full-track mode flag.
const ModeKey = "hitster.full_track_mode"

// Infinity is the timer display in full mode.
const Infinity = "∞"

const (
	defaultSeconds = 30
	pauseTimeout   = 10 * time.Second
)

// Pauser stops audio on the output device.
type Pauser interface {
	Pause(ctx context.Context) error
}

// ModePrefs persists the playback mode.
type ModePrefs interface {
	GetBool(key string) (bool, error)
	SetBool(key string, value bool) error
}

// CountdownOptions configures a [Countdown].
type CountdownOptions struct {
	Seconds int
	Clock   shared.Clock
	Device  Pauser
	Prefs   ModePrefs
	Logger  *log.Logger

	Status func(msg string)
	// OnTick receives the new display value.
	OnTick   func(display string)
	OnExpire func()
}

// Countdown is the preview timer. At most one schedule is live at a time.
type Countdown struct {
	opts   CountdownOptions
	logger *log.Logger

	mu        sync.Mutex
	mode      models.PlaybackMode
	remaining int
	running   bool
	gen       uint64
	timer     shared.Timer
}

// NewCountdown creates a stopped [Countdown] in timed mode.
func NewCountdown(opts CountdownOptions) *Countdown {
	if opts.Seconds <= 0 {
		opts.Seconds = defaultSeconds
	}
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Countdown{
		opts:      opts,
		logger:    shared.WithLogger(opts.Logger, "component", "countdown"),
		mode:      models.ModeTimed,
		remaining: opts.Seconds,
	}
}

// LoadMode restores the persisted mode. Unreadable preferences leave timed mode.
func (c *Countdown) LoadMode() models.PlaybackMode {
	mode := models.ModeTimed
	if c.opts.Prefs != nil {
		full, err := c.opts.Prefs.GetBool(ModeKey)
		if err != nil {
			c.logger.Warn("could not read playback mode", "error", err)
		} else if full {
			mode = models.ModeFull
		}
	}

	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	c.tick(c.Display())
	return mode
}

// Mode returns the current mode.
func (c *Countdown) Mode() models.PlaybackMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode changes and persists the mode. Switching to full mode while a
// countdown runs cancels it without pausing. Other changes apply at the next
// [Countdown.Begin].
func (c *Countdown) SetMode(mode models.PlaybackMode) { c.setMode(mode, true) }

// UseMode changes the mode like [Countdown.SetMode] without persisting it.
func (c *Countdown) UseMode(mode models.PlaybackMode) { c.setMode(mode, false) }

func (c *Countdown) setMode(mode models.PlaybackMode, persist bool) {
	c.mu.Lock()
	c.mode = mode
	if mode == models.ModeFull && c.running {
		c.cancelLocked()
		c.remaining = c.opts.Seconds
	}
	c.mu.Unlock()

	if persist && c.opts.Prefs != nil {
		if err := c.opts.Prefs.SetBool(ModeKey, mode == models.ModeFull); err != nil {
			c.logger.Warn("could not persist playback mode", "error", err)
		}
	}
	c.logger.Debug("playback mode changed", "mode", mode, "persist", persist)
	c.tick(c.Display())
}

// ToggleMode flips between timed and full mode and returns the new mode.
func (c *Countdown) ToggleMode() models.PlaybackMode {
	mode := models.ModeFull
	if c.Mode() == models.ModeFull {
		mode = models.ModeTimed
	}
	c.SetMode(mode)
	return mode
}

// Begin resets the countdown and, in timed mode, starts ticking once per
// second. A running countdown is replaced.
func (c *Countdown) Begin() {
	c.mu.Lock()
	c.cancelLocked()
	c.remaining = c.opts.Seconds
	if c.mode == models.ModeTimed {
		c.running = true
		gen := c.gen
		c.timer = c.opts.Clock.AfterFunc(time.Second, func() { c.step(gen) })
	}
	c.mu.Unlock()

	c.tick(c.Display())
}

// Stop cancels the countdown and resets it without pausing.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.cancelLocked()
	c.remaining = c.opts.Seconds
	c.mu.Unlock()

	c.tick(c.Display())
}

// Running reports whether a schedule is live.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Display renders the timer: the seconds left, or "∞" in full mode.
func (c *Countdown) Display() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == models.ModeFull && !c.running {
		return Infinity
	}
	return strconv.Itoa(c.remaining)
}

func (c *Countdown) step(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.running {
		c.mu.Unlock()
		return
	}
	c.remaining--
	display := strconv.Itoa(c.remaining)
	if c.remaining > 0 {
		c.timer = c.opts.Clock.AfterFunc(time.Second, func() { c.step(gen) })
		c.mu.Unlock()
		c.tick(display)
		return
	}
	c.running = false
	c.timer = nil
	c.gen++
	c.mu.Unlock()

	c.tick(display)
	c.expire()
}

func (c *Countdown) expire() {
	if c.opts.Device != nil {
		ctx, cancel := context.WithTimeout(context.Background(), pauseTimeout)
		defer cancel()
		if err := c.opts.Device.Pause(ctx); err != nil {
			c.logger.Error("auto-pause failed", "error", err)
		}
	}
	if c.opts.Status != nil {
		c.opts.Status(StatusStopped)
	}
	if c.opts.OnExpire != nil {
		c.opts.OnExpire()
	}
}

func (c *Countdown) cancelLocked() {
	c.gen++
	c.running = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Countdown) tick(display string) {
	if c.opts.OnTick != nil {
		c.opts.OnTick(display)
	}
}
