package testing

import (
	"context"
	"sync"

	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/services"
)

// Provider call names recorded by [MockPlayerService].
const (
	CallTransfer = "transfer"
	CallPlay     = "play"
	CallPause    = "pause"
	CallVolume   = "volume"
	CallDevices  = "devices"
	CallState    = "state"
)

// Call is one recorded provider request.
type Call struct {
	Method   string
	DeviceID string
	URIs     []models.TrackRef
	Play     bool
	Volume   int
}

// MockPlayerService is a recording test double for [services.PlayerService].
type MockPlayerService struct {
	mu      sync.Mutex
	calls   []Call
	errs    map[string]error
	devices []services.Device
	state   *services.PlaybackState
	gate    chan struct{}
}

func NewMockPlayerService() *MockPlayerService {
	return &MockPlayerService{errs: map[string]error{}}
}

// SetError makes method fail with err until cleared with nil.
func (m *MockPlayerService) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[method] = err
}

func (m *MockPlayerService) SetDevices(devices ...services.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = devices
}

func (m *MockPlayerService) SetState(state *services.PlaybackState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

// Gate makes StartPlayback block until the returned function is called.
func (m *MockPlayerService) Gate() (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := make(chan struct{})
	m.gate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (m *MockPlayerService) record(c Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	return m.errs[c.Method]
}

// Calls returns every recorded call in order.
func (m *MockPlayerService) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Methods returns the method names of recorded calls, skipping polling calls.
func (m *MockPlayerService) Methods() []string {
	var out []string
	for _, c := range m.Calls() {
		if c.Method == CallDevices || c.Method == CallState {
			continue
		}
		out = append(out, c.Method)
	}
	return out
}

// Count returns how many times method was called.
func (m *MockPlayerService) Count(method string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (m *MockPlayerService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *MockPlayerService) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	return m.record(Call{Method: CallTransfer, DeviceID: deviceID, Play: play})
}

func (m *MockPlayerService) StartPlayback(ctx context.Context, deviceID string, uris ...models.TrackRef) error {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.record(Call{Method: CallPlay, DeviceID: deviceID, URIs: uris})
}

func (m *MockPlayerService) Pause(ctx context.Context, deviceID string) error {
	return m.record(Call{Method: CallPause, DeviceID: deviceID})
}

func (m *MockPlayerService) SetVolume(ctx context.Context, deviceID string, percent int) error {
	return m.record(Call{Method: CallVolume, DeviceID: deviceID, Volume: percent})
}

func (m *MockPlayerService) Devices(ctx context.Context) ([]services.Device, error) {
	if err := m.record(Call{Method: CallDevices}); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]services.Device(nil), m.devices...), nil
}

func (m *MockPlayerService) PlaybackState(ctx context.Context) (*services.PlaybackState, error) {
	if err := m.record(Call{Method: CallState}); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	s := *m.state
	return &s, nil
}
