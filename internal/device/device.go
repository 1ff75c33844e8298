package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hitster/internal/services"
	"github.com/desertthunder/hitster/internal/shared"
)

// State is the controller lifecycle state.
type State int

const (
	Uninitialized State = iota
	Connecting
	Ready
	NotReady
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case NotReady:
		return "not ready"
	default:
		return "uninitialized"
	}
}

// Events receives player lifecycle notifications.
type Events interface {
	OnReady(deviceID string)
	OnNotReady(deviceID string)
	OnInitializationError(message string)
	OnAuthenticationError(message string)
	OnAccountError(message string)
	OnPlayerStateChanged(state services.PlaybackState)
}

// Player is a handle to an output device.
type Player interface {
	// Connect starts the player and reports lifecycle changes to events.
	Connect(ctx context.Context, events Events) error
	// Activate unlocks audio output, the equivalent of a user start-audio gesture.
	Activate(ctx context.Context) error
	// SetVolume sets the output volume in [0, 1].
	SetVolume(ctx context.Context, volume float64) error
	Pause(ctx context.Context) error
	Disconnect()
}

// PlayerFactory builds a player named name. token returns the current access token.
type PlayerFactory func(name string, token func() string) Player

// TokenReader exposes the session token.
type TokenReader interface {
	Value() string
	Valid() bool
}

// Pauser pauses a device through the provider API.
type Pauser interface {
	Pause(ctx context.Context, deviceID string) error
}

// Status messages.
const (
	StatusLoginRequired = "Spotify player loaded. Please log in."
	StatusNotReady      = "Player not ready."
)

// ControllerOptions configures a [Controller].
type ControllerOptions struct {
	Name    string
	Volume  float64
	Factory PlayerFactory
	Tokens  TokenReader
	// Provider backs Pause when no player handle exists.
	Provider Pauser
	Logger   *log.Logger

	Status        func(msg string)
	OnAuthError   func(message string)
	OnStateChange func(state services.PlaybackState)
}

// Controller owns the output device handle.
type Controller struct {
	opts   ControllerOptions
	logger *log.Logger

	mu          sync.Mutex
	state       State
	sdkReady    bool
	player      Player
	deviceID    string
	activated   bool
	transferred bool
}

// NewController creates a [Controller].
func NewController(opts ControllerOptions) *Controller {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Volume <= 0 {
		opts.Volume = 0.9
	}
	return &Controller{opts: opts, logger: shared.WithLogger(opts.Logger, "component", "device")}
}

func (c *Controller) status(msg string) {
	if c.opts.Status != nil {
		c.opts.Status(msg)
	}
}

// MarkSDKReady records that the player runtime is loaded and attempts setup.
func (c *Controller) MarkSDKReady(ctx context.Context) error {
	c.mu.Lock()
	c.sdkReady = true
	c.mu.Unlock()
	return c.Setup(ctx)
}

// Setup creates and connects the player once the runtime is loaded and a token is present.
// Calls while a player exists are no-ops.
func (c *Controller) Setup(ctx context.Context) error {
	c.mu.Lock()
	if !c.sdkReady {
		c.mu.Unlock()
		return nil
	}
	if !c.opts.Tokens.Valid() {
		c.mu.Unlock()
		c.status(StatusLoginRequired)
		return nil
	}
	if c.player != nil {
		c.mu.Unlock()
		return nil
	}

	player := c.opts.Factory(c.opts.Name, c.opts.Tokens.Value)
	c.player = player
	c.state = Connecting
	c.mu.Unlock()

	c.logger.Debug("connecting player", "name", c.opts.Name)
	if err := player.Connect(ctx, c); err != nil {
		c.mu.Lock()
		if c.player == player {
			c.player = nil
			c.state = Uninitialized
		}
		c.mu.Unlock()
		return fmt.Errorf("failed to connect player: %w", err)
	}
	return nil
}

// Teardown disconnects the player and forgets the device.
func (c *Controller) Teardown() {
	c.mu.Lock()
	player := c.player
	c.player = nil
	c.state = Uninitialized
	c.deviceID = ""
	c.activated = false
	c.transferred = false
	c.mu.Unlock()

	if player != nil {
		player.Disconnect()
	}
}

// OnReady implements [Events].
func (c *Controller) OnReady(deviceID string) {
	c.mu.Lock()
	if deviceID != c.deviceID {
		c.activated = false
		c.transferred = false
	}
	c.deviceID = deviceID
	c.state = Ready
	c.mu.Unlock()

	c.logger.Info("player ready", "device", deviceID)
	c.status("Player ready. Device: " + deviceID)
}

// OnNotReady implements [Events].
func (c *Controller) OnNotReady(deviceID string) {
	c.mu.Lock()
	if deviceID == c.deviceID {
		c.deviceID = ""
		c.activated = false
		c.transferred = false
	}
	c.state = NotReady
	c.mu.Unlock()

	c.logger.Warn("player not ready", "device", deviceID)
	c.status(StatusNotReady)
}

// OnInitializationError implements [Events].
func (c *Controller) OnInitializationError(message string) {
	c.logger.Error("player initialization failed", "message", message)
	c.status("Init error: " + message)
}

// OnAuthenticationError implements [Events].
func (c *Controller) OnAuthenticationError(message string) {
	c.logger.Error("player authentication failed", "message", message)
	c.status("Auth error: " + message)
	if c.opts.OnAuthError != nil {
		c.opts.OnAuthError(message)
	}
}

// OnAccountError implements [Events].
func (c *Controller) OnAccountError(message string) {
	c.logger.Error("player account error", "message", message)
	c.status("Account error: " + message)
}

// OnPlayerStateChanged implements [Events].
func (c *Controller) OnPlayerStateChanged(state services.PlaybackState) {
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(state)
	}
}

// EnsureActivated unlocks audio on the device once. Later calls return immediately.
//
// A refused activation returns [shared.ErrActivationBlocked] and issues no
// provider calls.
func (c *Controller) EnsureActivated(ctx context.Context) error {
	c.mu.Lock()
	player, deviceID, activated := c.player, c.deviceID, c.activated
	c.mu.Unlock()

	if activated {
		return nil
	}
	if player == nil {
		return shared.ErrNotReady
	}

	if err := player.Activate(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrActivationBlocked, err)
	}
	if err := player.SetVolume(ctx, c.opts.Volume); err != nil {
		c.logger.Warn("could not prime volume", "device", deviceID, "error", err)
	}

	c.mu.Lock()
	if c.deviceID == deviceID {
		c.activated = true
	}
	c.mu.Unlock()
	return nil
}

// IsUsable reports whether a device id and a token are both present.
func (c *Controller) IsUsable() bool {
	c.mu.Lock()
	id := c.deviceID
	c.mu.Unlock()
	return id != "" && c.opts.Tokens.Valid()
}

// Pause stops audio on the device, through the player handle when one exists.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	player, deviceID := c.player, c.deviceID
	c.mu.Unlock()

	if player != nil {
		return player.Pause(ctx)
	}
	if deviceID != "" && c.opts.Provider != nil {
		return c.opts.Provider.Pause(ctx, deviceID)
	}
	return shared.ErrNotReady
}

// DeviceID returns the current device id, or "".
func (c *Controller) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceID
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Activated reports whether audio was unlocked on the current device.
func (c *Controller) Activated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activated
}

// Transferred reports whether playback was moved to the current device.
func (c *Controller) Transferred() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transferred
}

// MarkTransferred records a transfer to deviceID. It is ignored when the device changed meanwhile.
func (c *Controller) MarkTransferred(deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if deviceID != "" && deviceID == c.deviceID {
		c.transferred = true
	}
}

// ResetTransferred forces the next playback to transfer again.
func (c *Controller) ResetTransferred() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transferred = false
}
