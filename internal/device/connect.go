package device

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hitster/internal/services"
	"github.com/desertthunder/hitster/internal/shared"
	"golang.org/x/time/rate"
)

// ConnectPlayer drives a Spotify Connect device through the Web API.
//
// It polls the device list for a device named (or with the id) deviceName and
// reports it ready while present. With an empty deviceName the active device is
// followed. Playback state is polled on the same cadence.
type ConnectPlayer struct {
	provider   services.PlayerService
	deviceName string
	interval   time.Duration
	logger     *log.Logger

	mu       sync.Mutex
	events   Events
	cancel   context.CancelFunc
	deviceID string
	last     *services.PlaybackState
}

// NewConnectPlayer creates a [ConnectPlayer].
func NewConnectPlayer(provider services.PlayerService, deviceName string, interval time.Duration, logger *log.Logger) *ConnectPlayer {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ConnectPlayer{
		provider:   provider,
		deviceName: deviceName,
		interval:   interval,
		logger:     shared.WithLogger(logger, "component", "connect"),
	}
}

// ConnectFactory returns a [PlayerFactory] building [ConnectPlayer] values for
// deviceName, or for the active device when deviceName is empty.
// The provider client reads the token itself, so the factory ignores name and token.
func ConnectFactory(provider services.PlayerService, deviceName string, interval time.Duration, logger *log.Logger) PlayerFactory {
	return func(string, func() string) Player {
		return NewConnectPlayer(provider, deviceName, interval, logger)
	}
}

// Connect polls once synchronously, then keeps polling until [ConnectPlayer.Disconnect].
func (p *ConnectPlayer) Connect(ctx context.Context, events Events) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	p.events = events
	p.cancel = cancel
	p.mu.Unlock()

	if err := p.poll(ctx); err != nil {
		cancel()
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
		return err
	}

	go p.loop(loopCtx)
	return nil
}

func (p *ConnectPlayer) loop(ctx context.Context) {
	limiter := rate.NewLimiter(rate.Every(p.interval), 1)
	limiter.Allow()
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if err := p.poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Debug("poll failed", "error", err)
		}
	}
}

// poll refreshes the device and the playback state.
func (p *ConnectPlayer) poll(ctx context.Context) error {
	devices, err := p.provider.Devices(ctx)
	if err != nil {
		p.report(err)
		return err
	}

	found, ok := p.match(devices)

	p.mu.Lock()
	if ctx.Err() != nil {
		p.mu.Unlock()
		return ctx.Err()
	}
	events, prev := p.events, p.deviceID
	if ok {
		p.deviceID = found.ID
	} else {
		p.deviceID = ""
	}
	p.mu.Unlock()

	switch {
	case ok && found.ID != prev:
		if prev != "" {
			events.OnNotReady(prev)
		}
		events.OnReady(found.ID)
	case !ok && prev != "":
		events.OnNotReady(prev)
	}

	state, err := p.provider.PlaybackState(ctx)
	if err != nil {
		p.report(err)
		return err
	}
	if state != nil && p.changed(state) {
		events.OnPlayerStateChanged(*state)
	}
	return nil
}

// report routes provider failures to the matching event.
func (p *ConnectPlayer) report(err error) {
	p.mu.Lock()
	events := p.events
	p.mu.Unlock()
	if events == nil {
		return
	}

	detail := services.ErrorDetail(err)
	var apiErr *services.APIError
	switch {
	case errors.Is(err, shared.ErrTokenExpired), errors.Is(err, shared.ErrNotAuthenticated):
		events.OnAuthenticationError(detail)
	case errors.As(err, &apiErr) && apiErr.Status == 403:
		events.OnAccountError(detail)
	default:
		events.OnInitializationError(detail)
	}
}

func (p *ConnectPlayer) changed(state *services.PlaybackState) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.last
	copied := *state
	p.last = &copied
	if prev == nil {
		return true
	}
	return prev.IsPlaying != state.IsPlaying || prev.TrackURI != state.TrackURI ||
		prev.DeviceID != state.DeviceID || prev.ProgressMS != state.ProgressMS
}

func (p *ConnectPlayer) match(devices []services.Device) (services.Device, bool) {
	if p.deviceName == "" {
		return services.ActiveDevice(devices)
	}
	for _, d := range devices {
		if d.ID == p.deviceName || strings.EqualFold(d.Name, p.deviceName) {
			return d, true
		}
	}
	return services.Device{}, false
}

func (p *ConnectPlayer) currentID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deviceID == "" {
		return "", shared.ErrNotReady
	}
	return p.deviceID, nil
}

// Activate confirms the device still exists and accepts remote commands.
func (p *ConnectPlayer) Activate(ctx context.Context) error {
	id, err := p.currentID()
	if err != nil {
		return err
	}

	devices, err := p.provider.Devices(ctx)
	if err != nil {
		return err
	}
	d, ok := services.FindDevice(devices, id)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrDeviceNotFound, id)
	}
	if d.IsRestricted {
		return fmt.Errorf("device %s does not accept remote control", d.Name)
	}
	return nil
}

// SetVolume maps volume in [0, 1] to a percentage.
func (p *ConnectPlayer) SetVolume(ctx context.Context, volume float64) error {
	id, err := p.currentID()
	if err != nil {
		return err
	}
	return p.provider.SetVolume(ctx, id, int(math.Round(volume*100)))
}

// Pause pauses the device.
func (p *ConnectPlayer) Pause(ctx context.Context) error {
	id, err := p.currentID()
	if err != nil {
		return err
	}
	return p.provider.Pause(ctx, id)
}

// Disconnect stops polling. It may be called from an event callback.
func (p *ConnectPlayer) Disconnect() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.deviceID = ""
	p.last = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
