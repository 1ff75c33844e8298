package ui

import (
	"sync"
	"time"

	"github.com/desertthunder/hitster/internal/ambient"
	"github.com/desertthunder/hitster/internal/session"
)

var (
	_ session.Surface      = (*Bridge)(nil)
	_ ambient.MediaSession = (*Bridge)(nil)
)

// Bridge turns session callbacks into [Msg] values for the program.
// Sends block until the model reads them or the bridge is closed.
type Bridge struct {
	events chan Msg
	done   chan struct{}
	once   sync.Once
}

// NewBridge creates a [Bridge] with room for buffer pending messages.
func NewBridge(buffer int) *Bridge {
	return &Bridge{events: make(chan Msg, buffer), done: make(chan struct{})}
}

// Events is read by the model.
func (b *Bridge) Events() <-chan Msg { return b.events }

// Close drops every later message.
func (b *Bridge) Close() { b.once.Do(func() { close(b.done) }) }

func (b *Bridge) send(m Msg) {
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.events <- m:
	case <-b.done:
	}
}

func (b *Bridge) SetStatus(msg string)            { b.send(statusMsg(msg)) }
func (b *Bridge) SetScannerStatus(msg string)     { b.send(scannerStatusMsg(msg)) }
func (b *Bridge) SetControlsEnabled(enabled bool) { b.send(controlsMsg(enabled)) }
func (b *Bridge) SetTimer(display string)         { b.send(timerMsg(display)) }
func (b *Bridge) ShowReveal(title, year string)   { b.send(revealMsg(title, year)) }
func (b *Bridge) HideReveal()                     { b.send(hideRevealMsg()) }

func (b *Bridge) SetMetadata(m ambient.Metadata)            { b.send(metadataMsg(m)) }
func (b *Bridge) SetPlaybackState(s ambient.PlaybackStatus) { b.send(playStateMsg(s)) }
func (b *Bridge) SetPosition(p ambient.Position)            { b.send(positionMsg(p)) }
func (b *Bridge) Clear()                                    { b.send(clearMediaMsg()) }

// Flash is the screen flash used by [ambient.NewTerminalHaptics].
func (b *Bridge) Flash(d time.Duration) { b.send(flashMsg(d)) }
