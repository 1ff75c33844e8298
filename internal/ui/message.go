package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hitster/internal/ambient"
	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/playback"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

// Kinds up to [MsgFlash] arrive through the [Bridge].
const (
	MsgStatus MsgKind = iota
	MsgScannerStatus
	MsgControls
	MsgTimer
	MsgReveal
	MsgHideReveal
	MsgMetadata
	MsgPlayState
	MsgPosition
	MsgClearMedia
	MsgFlash
	MsgFlashEnd
	MsgProgress
	MsgActionDone
	MsgModeChanged
	MsgHoldCheck
	MsgNotice
)

// bridged reports whether m came from the event channel.
func (m Msg) bridged() bool { return m.kind <= MsgFlash }

type reveal struct {
	title string
	year  string
}

type actionResult struct {
	name string
	err  error
}

func statusMsg(s string) Msg                      { return Msg{kind: MsgStatus, data: s} }
func scannerStatusMsg(s string) Msg               { return Msg{kind: MsgScannerStatus, data: s} }
func controlsMsg(enabled bool) Msg                { return Msg{kind: MsgControls, data: enabled} }
func timerMsg(display string) Msg                 { return Msg{kind: MsgTimer, data: display} }
func revealMsg(title, year string) Msg            { return Msg{kind: MsgReveal, data: reveal{title, year}} }
func hideRevealMsg() Msg                          { return Msg{kind: MsgHideReveal} }
func metadataMsg(m ambient.Metadata) Msg          { return Msg{kind: MsgMetadata, data: m} }
func playStateMsg(s ambient.PlaybackStatus) Msg   { return Msg{kind: MsgPlayState, data: s} }
func positionMsg(p ambient.Position) Msg          { return Msg{kind: MsgPosition, data: p} }
func clearMediaMsg() Msg                          { return Msg{kind: MsgClearMedia} }
func flashMsg(d time.Duration) Msg                { return Msg{kind: MsgFlash, data: d} }
func flashEndMsg(seq int) Msg                     { return Msg{kind: MsgFlashEnd, data: seq} }
func progressMsg(u playback.Update) Msg           { return Msg{kind: MsgProgress, data: u} }
func actionDoneMsg(name string, err error) Msg    { return Msg{kind: MsgActionDone, data: actionResult{name, err}} }
func modeChangedMsg(mode models.PlaybackMode) Msg { return Msg{kind: MsgModeChanged, data: mode} }
func holdCheckMsg(seq int) Msg                    { return Msg{kind: MsgHoldCheck, data: seq} }
func noticeMsg(s string) Msg                      { return Msg{kind: MsgNotice, data: s} }
