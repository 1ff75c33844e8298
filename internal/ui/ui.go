package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/hitster/internal/ambient"
	"github.com/desertthunder/hitster/internal/catalog"
	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/playback"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	GameView ViewState = iota
	InputView
	CatalogView
)

// holdRelease is the gap in key repeats after which a held key counts as released.
// It has to outlast the terminal's initial repeat delay.
const holdRelease = 600 * time.Millisecond

// Game is the playback session the TUI drives.
type Game interface {
	Start(ctx context.Context) error
	Play(ctx context.Context) error
	Stop(ctx context.Context) error
	PlayInput(ctx context.Context, input string) error
	Reveal(ctx context.Context)
	Next()
	Mode() models.PlaybackMode
	ToggleMode() models.PlaybackMode
	OpenScanner(ctx context.Context) error
	CloseScanner()
	ScannerOpen() bool
	SetVisible(ctx context.Context, visible bool)
	PressHold()
	ReleaseHold()
	LoginURL() string
	Logout()
}

// Options configures a [Model]. Game is required.
type Options struct {
	Game     Game
	Events   <-chan Msg
	Progress <-chan playback.Update
	Entries  []catalog.Entry
	// OpenURL opens the login page. The URL is shown when it is nil or fails.
	OpenURL func(url string) error
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	game     Game
	events   <-chan Msg
	progress <-chan playback.Update
	openURL  func(string) error
	width    int
	height   int

	status        string
	scannerStatus string
	controls      bool
	timer         string
	mode          models.PlaybackMode
	reveal        *reveal
	nowPlaying    ambient.Metadata
	playState     ambient.PlaybackStatus
	position      ambient.Position
	phase         playback.Update
	busy          bool
	flash         bool
	flashSeq      int
	holding       bool
	holdSeq       int
	err           error

	input   textinput.Model
	cards   list.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	input := textinput.New()
	input.Placeholder = "card number, code or link"
	input.CharLimit = 256

	cards := list.New(cardItems(opts.Entries), list.NewDefaultDelegate(), 0, 0)
	cards.Title = "Cards"
	cards.DisableQuitKeybindings()

	return &Model{
		ctx:       ctx,
		view:      GameView,
		game:      opts.Game,
		events:    opts.Events,
		progress:  opts.Progress,
		openURL:   opts.OpenURL,
		mode:      opts.Game.Mode(),
		playState: ambient.StatusNone,
		input:     input,
		cards:     cards,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init starts the session and begins listening for its events.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.action("start", m.game.Start), m.waitForEvent(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.cards.SetSize(msg.Width-4, msg.Height-8)
		m.help.Width = msg.Width
		return m, nil

	case tea.FocusMsg:
		return m, m.setVisible(true)

	case tea.BlurMsg:
		return m, m.setVisible(false)

	case tea.KeyMsg:
		switch m.view {
		case InputView:
			return m.handleInputKeys(msg)
		case CatalogView:
			return m.handleCatalogKeys(msg)
		default:
			return m.handleGameKeys(msg)
		}

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		cmd := m.apply(msg)
		if msg.bridged() {
			return m, tea.Batch(cmd, m.waitForEvent())
		}
		if msg.kind == MsgProgress {
			return m, tea.Batch(cmd, m.waitForProgress())
		}
		return m, cmd
	}

	return m.updateComponents(msg)
}

func (m *Model) apply(msg Msg) tea.Cmd {
	switch msg.kind {
	case MsgStatus, MsgNotice:
		m.status = msg.data.(string)
	case MsgScannerStatus:
		m.scannerStatus = msg.data.(string)
	case MsgControls:
		m.controls = msg.data.(bool)
	case MsgTimer:
		m.timer = msg.data.(string)
	case MsgReveal:
		r := msg.data.(reveal)
		m.reveal = &r
	case MsgHideReveal:
		m.reveal = nil
	case MsgMetadata:
		m.nowPlaying = msg.data.(ambient.Metadata)
	case MsgPlayState:
		m.playState = msg.data.(ambient.PlaybackStatus)
	case MsgPosition:
		m.position = msg.data.(ambient.Position)
	case MsgClearMedia:
		m.nowPlaying = ambient.Metadata{}
		m.playState = ambient.StatusNone
		m.position = ambient.Position{}
	case MsgFlash:
		m.flash = true
		m.flashSeq++
		seq := m.flashSeq
		return tea.Tick(msg.data.(time.Duration), func(time.Time) tea.Msg { return flashEndMsg(seq) })
	case MsgFlashEnd:
		if msg.data.(int) == m.flashSeq {
			m.flash = false
		}
	case MsgProgress:
		m.phase = msg.data.(playback.Update)
	case MsgActionDone:
		res := msg.data.(actionResult)
		switch res.name {
		case "play", "input":
			m.busy = false
		}
		m.err = res.err
	case MsgModeChanged:
		m.mode = msg.data.(models.PlaybackMode)
	case MsgHoldCheck:
		if msg.data.(int) == m.holdSeq && m.holding {
			m.holding = false
			return m.run(m.game.ReleaseHold)
		}
	}
	return nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case InputView:
		return m.renderInput()
	case CatalogView:
		return m.renderCatalog()
	default:
		return m.renderGame()
	}
}

func (m *Model) handleGameKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.play):
		m.err = nil
		m.busy = true
		return m, tea.Batch(m.action("play", m.game.Play), m.spinner.Tick)
	case key.Matches(msg, m.keys.stop):
		return m, m.action("stop", m.game.Stop)
	case key.Matches(msg, m.keys.reveal):
		return m, m.run(func() { m.game.Reveal(m.ctx) })
	case key.Matches(msg, m.keys.hold):
		return m, m.hold()
	case key.Matches(msg, m.keys.next):
		return m, m.run(m.game.Next)
	case key.Matches(msg, m.keys.mode):
		return m, func() tea.Msg { return modeChangedMsg(m.game.ToggleMode()) }
	case key.Matches(msg, m.keys.scan):
		return m, m.action("scan", m.toggleScanner)
	case key.Matches(msg, m.keys.input):
		m.view = InputView
		m.input.Reset()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.catalog):
		if len(m.cards.Items()) == 0 {
			m.status = "No cards in the catalog."
			return m, nil
		}
		m.view = CatalogView
		return m, nil
	case key.Matches(msg, m.keys.login):
		return m, m.login()
	case key.Matches(msg, m.keys.logout):
		return m, m.run(m.game.Logout)
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	return m, nil
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.input.Blur()
		m.view = GameView
		return m, nil
	case key.Matches(msg, m.keys.enter):
		value := strings.TrimSpace(m.input.Value())
		m.input.Blur()
		m.input.Reset()
		m.view = GameView
		if value == "" {
			return m, nil
		}
		return m, m.playInput(value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleCatalogKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	filtering := m.cards.FilterState() == list.Filtering
	switch {
	case key.Matches(msg, m.keys.back) && !filtering && !m.cards.IsFiltered():
		m.view = GameView
		return m, nil
	case key.Matches(msg, m.keys.enter) && !filtering:
		if item, ok := m.cards.SelectedItem().(cardItem); ok {
			m.view = GameView
			return m, m.playInput(item.entry.URI.String())
		}
	}

	var cmd tea.Cmd
	m.cards, cmd = m.cards.Update(msg)
	return m, cmd
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case InputView:
		m.input, cmd = m.input.Update(msg)
	case CatalogView:
		m.cards, cmd = m.cards.Update(msg)
	}
	return m, cmd
}

func (m *Model) playInput(value string) tea.Cmd {
	m.err = nil
	m.busy = true
	return tea.Batch(m.action("input", func(ctx context.Context) error {
		return m.game.PlayInput(ctx, value)
	}), m.spinner.Tick)
}

// hold presses on the first key event and re-arms the release check on every repeat.
func (m *Model) hold() tea.Cmd {
	m.holdSeq++
	seq := m.holdSeq
	check := tea.Tick(holdRelease, func(time.Time) tea.Msg { return holdCheckMsg(seq) })
	if m.holding {
		return check
	}
	m.holding = true
	return tea.Batch(m.run(m.game.PressHold), check)
}

func (m *Model) toggleScanner(ctx context.Context) error {
	if m.game.ScannerOpen() {
		m.game.CloseScanner()
		return nil
	}
	return m.game.OpenScanner(ctx)
}

func (m *Model) login() tea.Cmd {
	return func() tea.Msg {
		url := m.game.LoginURL()
		if m.openURL != nil {
			if err := m.openURL(url); err == nil {
				return noticeMsg("Opened " + url)
			}
		}
		return noticeMsg("Open " + url + " to log in.")
	}
}

func (m *Model) setVisible(visible bool) tea.Cmd {
	return m.run(func() { m.game.SetVisible(m.ctx, visible) })
}

// action runs fn off the update loop and reports its result.
func (m *Model) action(name string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg(name, fn(m.ctx))
	}
}

// run calls fn off the update loop.
func (m *Model) run(fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return nil
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-m.events
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	if m.progress == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-m.progress
		if !ok {
			return nil
		}
		return progressMsg(update)
	}
}

func (m *Model) renderGame() string {
	var b strings.Builder

	title := styles.title
	if m.flash {
		title = styles.flash
	}
	b.WriteString(title.Render("Hitster"))
	b.WriteString("\n")

	b.WriteString(m.status)
	b.WriteString("\n\n")

	timer := m.timer
	if timer == "" {
		timer = "--"
	}
	b.WriteString(styles.timer.Render(timer))
	b.WriteString("  ")
	b.WriteString(styles.help.Render(m.mode.String()))
	if !m.controls {
		b.WriteString("  ")
		b.WriteString(styles.warn.Render("controls locked"))
	}
	b.WriteString("\n")

	if m.reveal != nil {
		answer := m.reveal.title
		if m.reveal.year != "" {
			answer = fmt.Sprintf("%s (%s)", answer, m.reveal.year)
		}
		b.WriteString(styles.reveal.Render(answer))
		b.WriteString("\n")
	}

	if line := m.renderNowPlaying(); line != "" {
		b.WriteString("\n")
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.busy {
		b.WriteString("\n")
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(m.phase.Message)
		b.WriteString("\n")
	}

	if m.scannerStatus != "" {
		b.WriteString("\n")
		b.WriteString(styles.help.Render("camera: " + m.scannerStatus))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderNowPlaying() string {
	var icon string
	switch m.playState {
	case ambient.StatusPlaying:
		icon = styles.ok.Render("▶")
	case ambient.StatusPaused:
		icon = styles.warn.Render("⏸")
	default:
		return ""
	}
	if id := m.nowPlaying.URI.ID(); id != "" {
		icon += " " + styles.help.Render(id)
	}
	if m.position.Duration <= 0 {
		return icon
	}
	return fmt.Sprintf("%s %s / %s", icon, clock(m.position.Elapsed), clock(m.position.Duration))
}

func (m *Model) renderInput() string {
	title := styles.title.Render("Play a card")
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back})
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.input.View(), helpView)
}

func (m *Model) renderCatalog() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.back})
	return fmt.Sprintf("%s\n\n%s", m.cards.View(), helpView)
}

func clock(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
