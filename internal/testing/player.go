package testing

import (
	"context"
	"sync"

	"github.com/desertthunder/hitster/internal/device"
)

// MockPlayer is a scripted [device.Player]. Connect reports ready with DeviceID
// when it is set.
type MockPlayer struct {
	mu          sync.Mutex
	deviceID    string
	activateErr error
	connectErr  error
	events      device.Events
	names       []string

	connects    int
	activations int
	volumes     []float64
	pauses      int
	disconnects int
}

func NewMockPlayer(deviceID string) *MockPlayer {
	return &MockPlayer{deviceID: deviceID}
}

// Factory returns a [device.PlayerFactory] that always hands out m.
func (m *MockPlayer) Factory() device.PlayerFactory {
	return func(name string, token func() string) device.Player {
		m.mu.Lock()
		m.names = append(m.names, name)
		m.mu.Unlock()
		return m
	}
}

func (m *MockPlayer) FailActivation(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activateErr = err
}

func (m *MockPlayer) FailConnect(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectErr = err
}

// Events returns the sink passed to the last Connect.
func (m *MockPlayer) Events() device.Events {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

// Names returns the names the factory was called with.
func (m *MockPlayer) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...)
}

func (m *MockPlayer) Stats() (connects, activations, pauses, disconnects int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects, m.activations, m.pauses, m.disconnects
}

// Volumes returns every volume set.
func (m *MockPlayer) Volumes() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.volumes...)
}

func (m *MockPlayer) Connect(ctx context.Context, events device.Events) error {
	m.mu.Lock()
	m.connects++
	m.events = events
	id, err := m.deviceID, m.connectErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if id != "" {
		events.OnReady(id)
	}
	return nil
}

func (m *MockPlayer) Activate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activations++
	return m.activateErr
}

func (m *MockPlayer) SetVolume(ctx context.Context, volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volumes = append(m.volumes, volume)
	return nil
}

func (m *MockPlayer) Pause(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
	return nil
}

func (m *MockPlayer) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
}
