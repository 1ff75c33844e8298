package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/shared"
)

// PlayerService drives playback on a remote output device.
type PlayerService interface {
	// TransferPlayback moves the account's playback to deviceID. When play is
	// false the device receives the session paused.
	TransferPlayback(ctx context.Context, deviceID string, play bool) error

	// StartPlayback plays uris on deviceID from the beginning.
	StartPlayback(ctx context.Context, deviceID string, uris ...models.TrackRef) error

	// Pause pauses playback on deviceID.
	Pause(ctx context.Context, deviceID string) error

	// SetVolume sets the device volume in percent (0-100).
	SetVolume(ctx context.Context, deviceID string, percent int) error

	// Devices lists the account's available devices.
	Devices(ctx context.Context) ([]Device, error)

	// PlaybackState returns the current playback state, or nil when nothing is playing anywhere.
	PlaybackState(ctx context.Context) (*PlaybackState, error)
}

// Device is an output device known to the provider.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"is_active"`
	IsRestricted  bool   `json:"is_restricted"`
	VolumePercent *int   `json:"volume_percent"`
}

// PlaybackState is the provider's view of what the account is playing.
type PlaybackState struct {
	DeviceID   string
	IsPlaying  bool
	ProgressMS int
	DurationMS int
	TrackURI   models.TrackRef
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify API error: status %d", e.Status)
	}
	return fmt.Sprintf("spotify API error: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return shared.ErrTokenExpired
	}
	return shared.ErrAPIRequest
}

// ErrorDetail returns the provider message carried by err, or err's text.
func ErrorDetail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fmt.Sprintf("HTTP %d", apiErr.Status)
	}
	return err.Error()
}

// FindDevice returns the device whose id equals id.
func FindDevice(devices []Device, id string) (Device, bool) {
	for _, d := range devices {
		if d.ID == id {
			return d, true
		}
	}
	return Device{}, false
}

// ActiveDevice returns the first active device.
func ActiveDevice(devices []Device) (Device, bool) {
	for _, d := range devices {
		if d.IsActive {
			return d, true
		}
	}
	return Device{}, false
}
