package ambient

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/desertthunder/hitster/internal/shared"
)

// InhibitLocker holds wake locks with systemd-inhibit. Each lock is a child
// process that blocks idle and sleep until it exits.
type InhibitLocker struct {
	path string
	who  string
	why  string
}

// NewInhibitLocker finds systemd-inhibit on PATH. It returns [shared.ErrNotImplemented] when absent.
func NewInhibitLocker(who, why string) (*InhibitLocker, error) {
	path, err := exec.LookPath("systemd-inhibit")
	if err != nil {
		return nil, fmt.Errorf("%w: systemd-inhibit: %v", shared.ErrNotImplemented, err)
	}
	return &InhibitLocker{path: path, who: who, why: why}, nil
}

func (l *InhibitLocker) args() []string {
	return []string{
		"--what=idle:sleep",
		"--who=" + l.who,
		"--why=" + l.why,
		"--mode=block",
		"sleep", "infinity",
	}
}

// Acquire starts the inhibitor process.
func (l *InhibitLocker) Acquire(ctx context.Context) (Sentinel, error) {
	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, l.path, l.args()...)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := ctx.Err(); err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start systemd-inhibit: %w", err)
	}

	s := &inhibitSentinel{cancel: cancel, released: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(s.released)
	}()
	return s, nil
}

type inhibitSentinel struct {
	once     sync.Once
	cancel   context.CancelFunc
	released chan struct{}
}

// Release stops the inhibitor process and waits for it to exit.
func (s *inhibitSentinel) Release() error {
	s.once.Do(s.cancel)
	<-s.released
	return nil
}

func (s *inhibitSentinel) Released() <-chan struct{} { return s.released }
