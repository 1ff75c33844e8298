package ambient

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/services"
)

// PlaybackStatus is the play state shown by a media session.
type PlaybackStatus string

const (
	StatusNone    PlaybackStatus = "none"
	StatusPlaying PlaybackStatus = "playing"
	StatusPaused  PlaybackStatus = "paused"
)

// Metadata is the now-playing information of a media session.
type Metadata struct {
	URI   models.TrackRef
	Title string
	Year  string
}

// Position is the playback position of a media session.
type Position struct {
	Elapsed  time.Duration
	Duration time.Duration
}

// MediaSession is a now-playing surface.
type MediaSession interface {
	SetMetadata(m Metadata)
	SetPlaybackState(s PlaybackStatus)
	SetPosition(p Position)
	Clear()
}

// Lookup finds catalog metadata for a track.
type Lookup interface {
	Lookup(ctx context.Context, ref models.TrackRef) (models.CatalogEntry, bool)
}

// Mirror keeps a [MediaSession] in step with the playing track.
type Mirror struct {
	session MediaSession
	lookup  Lookup

	mu      sync.Mutex
	current models.TrackRef
}

// NewMirror creates a [Mirror]. A nil session makes every call a no-op.
func NewMirror(session MediaSession, lookup Lookup) *Mirror {
	return &Mirror{session: session, lookup: lookup}
}

// Prime publishes ref's catalog title and year and marks the session playing.
func (m *Mirror) Prime(ctx context.Context, ref models.TrackRef) {
	if m.session == nil {
		return
	}
	m.mu.Lock()
	m.current = ref
	m.mu.Unlock()

	m.session.SetMetadata(m.metadata(ctx, ref))
	m.session.SetPlaybackState(StatusPlaying)
}

// Sync mirrors a provider state change. Metadata is republished when the track changed.
func (m *Mirror) Sync(ctx context.Context, state services.PlaybackState) {
	if m.session == nil {
		return
	}

	m.mu.Lock()
	changed := state.TrackURI != "" && state.TrackURI != m.current
	if changed {
		m.current = state.TrackURI
	}
	m.mu.Unlock()

	if changed {
		m.session.SetMetadata(m.metadata(ctx, state.TrackURI))
	}
	if state.IsPlaying {
		m.session.SetPlaybackState(StatusPlaying)
	} else {
		m.session.SetPlaybackState(StatusPaused)
	}
	if state.DurationMS > 0 {
		elapsed := min(state.ProgressMS, state.DurationMS)
		m.session.SetPosition(Position{
			Elapsed:  time.Duration(elapsed) * time.Millisecond,
			Duration: time.Duration(state.DurationMS) * time.Millisecond,
		})
	}
}

// Pause marks the session paused.
func (m *Mirror) Pause() {
	if m.session != nil {
		m.session.SetPlaybackState(StatusPaused)
	}
}

// Clear forgets the track.
func (m *Mirror) Clear() {
	if m.session == nil {
		return
	}
	m.mu.Lock()
	m.current = ""
	m.mu.Unlock()
	m.session.Clear()
}

func (m *Mirror) metadata(ctx context.Context, ref models.TrackRef) Metadata {
	md := Metadata{URI: ref, Title: models.UnknownTrack}
	if m.lookup == nil {
		return md
	}
	if entry, ok := m.lookup.Lookup(ctx, ref); ok {
		md.Title = entry.DisplayTitle()
		md.Year = entry.Year.String()
	}
	return md
}
