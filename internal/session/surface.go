package session

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/hitster/internal/shared"
)

// Surface is what the player sees and touches. Implementations must be safe
// for use from multiple goroutines.
type Surface interface {
	SetStatus(msg string)
	SetScannerStatus(msg string)
	// SetControlsEnabled toggles the controls that need a token: play, reveal and next.
	SetControlsEnabled(enabled bool)
	SetTimer(display string)
	ShowReveal(title, year string)
	HideReveal()
}

var (
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	scannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true)
	revealStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
)

// LogSurface prints status lines to a writer. Timer ticks and control changes
// go to the debug log only.
type LogSurface struct {
	mu     sync.Mutex
	w      io.Writer
	logger *log.Logger
	last   string
}

func NewLogSurface(w io.Writer, logger *log.Logger) *LogSurface {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSurface{w: w, logger: shared.WithLogger(logger, "component", "surface")}
}

func (s *LogSurface) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, line)
}

func (s *LogSurface) SetStatus(msg string) {
	s.mu.Lock()
	s.last = msg
	s.mu.Unlock()
	s.println(statusStyle.Render(msg))
}

func (s *LogSurface) SetScannerStatus(msg string) { s.println(scannerStyle.Render("scanner: " + msg)) }

func (s *LogSurface) SetControlsEnabled(enabled bool) {
	s.logger.Debug("controls", "enabled", enabled)
}

func (s *LogSurface) SetTimer(display string) { s.logger.Debug("timer", "display", display) }

func (s *LogSurface) ShowReveal(title, year string) {
	if year == "" {
		s.println(revealStyle.Render(title))
		return
	}
	s.println(revealStyle.Render(fmt.Sprintf("%s (%s)", title, year)))
}

func (s *LogSurface) HideReveal() {}

// LastStatus returns the most recent status message.
func (s *LogSurface) LastStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
