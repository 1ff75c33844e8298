package ambient

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hitster/internal/shared"
)

// Sentinel is a held wake lock.
type Sentinel interface {
	Release() error
	// Released is closed once the lock is gone, whether released or dropped by the platform.
	Released() <-chan struct{}
}

// WakeLocker acquires wake locks.
type WakeLocker interface {
	Acquire(ctx context.Context) (Sentinel, error)
}

// WakeLock holds a wake lock while it is desired and the surface is visible.
type WakeLock struct {
	locker WakeLocker
	logger *log.Logger

	mu       sync.Mutex
	desired  bool
	visible  bool
	sentinel Sentinel
	gen      uint64
}

// NewWakeLock creates a [WakeLock]. A nil locker makes every call a no-op.
func NewWakeLock(locker WakeLocker, logger *log.Logger) *WakeLock {
	if logger == nil {
		logger = log.Default()
	}
	return &WakeLock{locker: locker, logger: shared.WithLogger(logger, "component", "wakelock"), visible: true}
}

// Request marks the lock desired and acquires it when visible.
func (w *WakeLock) Request(ctx context.Context) {
	w.mu.Lock()
	w.desired = true
	w.mu.Unlock()
	w.acquire(ctx)
}

// Release marks the lock undesired and releases it.
func (w *WakeLock) Release() {
	w.mu.Lock()
	w.desired = false
	sen := w.dropLocked()
	w.mu.Unlock()
	w.release(sen)
}

// SetVisible releases the lock when hidden and re-acquires it when shown again
// while still desired.
func (w *WakeLock) SetVisible(ctx context.Context, visible bool) {
	w.mu.Lock()
	w.visible = visible
	var sen Sentinel
	if !visible {
		sen = w.dropLocked()
	}
	w.mu.Unlock()

	if visible {
		w.acquire(ctx)
		return
	}
	w.release(sen)
}

// Held reports whether a lock is currently held.
func (w *WakeLock) Held() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sentinel != nil
}

// Desired reports whether playback wants the lock.
func (w *WakeLock) Desired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.desired
}

func (w *WakeLock) acquire(ctx context.Context) {
	if w.locker == nil {
		return
	}

	w.mu.Lock()
	if !w.desired || !w.visible || w.sentinel != nil {
		w.mu.Unlock()
		return
	}
	gen := w.gen
	w.mu.Unlock()

	sen, err := w.locker.Acquire(ctx)
	if err != nil {
		w.logger.Warn("wake lock unavailable", "error", err)
		return
	}

	w.mu.Lock()
	if gen != w.gen || !w.desired || !w.visible || w.sentinel != nil {
		w.mu.Unlock()
		w.release(sen)
		return
	}
	w.gen++
	w.sentinel = sen
	w.mu.Unlock()

	w.logger.Debug("wake lock acquired")
	go w.watch(sen)
}

// watch re-acquires the lock when the platform drops it.
func (w *WakeLock) watch(sen Sentinel) {
	<-sen.Released()

	w.mu.Lock()
	if w.sentinel != sen {
		w.mu.Unlock()
		return
	}
	w.sentinel = nil
	w.gen++
	again := w.desired && w.visible
	w.mu.Unlock()

	w.logger.Info("wake lock dropped", "reacquire", again)
	if again {
		w.acquire(context.Background())
	}
}

func (w *WakeLock) dropLocked() Sentinel {
	sen := w.sentinel
	w.sentinel = nil
	w.gen++
	return sen
}

func (w *WakeLock) release(sen Sentinel) {
	if sen == nil {
		return
	}
	if err := sen.Release(); err != nil {
		w.logger.Warn("wake lock release failed", "error", err)
		return
	}
	w.logger.Debug("wake lock released")
}
