package models

import (
	"fmt"
	"time"
)

// PlaybackMode selects whether the countdown pauses playback.
type PlaybackMode int

const (
	ModeTimed PlaybackMode = iota // pause after the preview window
	ModeFull                      // let the track run
)

func (m PlaybackMode) String() string {
	if m == ModeFull {
		return "full"
	}
	return "timed"
}

// ParsePlaybackMode is the inverse of [PlaybackMode.String].
func ParsePlaybackMode(s string) PlaybackMode {
	if s == "full" {
		return ModeFull
	}
	return ModeTimed
}

// Play records one successful playback start.
type Play struct {
	id        string
	uri       TrackRef
	deviceID  string
	mode      PlaybackMode
	createdAt time.Time
}

// NewPlay creates a [Play] stamped with the current time.
func NewPlay(uri TrackRef, deviceID string, mode PlaybackMode) *Play {
	return &Play{uri: uri, deviceID: deviceID, mode: mode, createdAt: time.Now()}
}

func (p *Play) ID() string           { return p.id }
func (p *Play) CreatedAt() time.Time { return p.createdAt }
func (p *Play) URI() TrackRef        { return p.uri }
func (p *Play) DeviceID() string     { return p.deviceID }
func (p *Play) Mode() PlaybackMode   { return p.mode }

func (p *Play) SetID(id string)           { p.id = id }
func (p *Play) SetCreatedAt(at time.Time) { p.createdAt = at }

func (p *Play) Validate() error {
	if !p.uri.Valid() {
		return fmt.Errorf("invalid track uri %q", p.uri)
	}
	if p.deviceID == "" {
		return fmt.Errorf("device id is required")
	}
	return nil
}
