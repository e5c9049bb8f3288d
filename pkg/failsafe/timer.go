package failsafe

import (
	"errors"
	"sync"
	"time"
)

// Timer window bounds.
const (
	// MinWindow is the shortest accepted fail-safe window.
	MinWindow = 1 * time.Second

	// MaxWindow is the longest accepted fail-safe window.
	MaxWindow = 15 * time.Minute

	// DefaultWindow is the fail-safe window used when none is
	// configured.
	DefaultWindow = 60 * time.Second
)

// ErrInvalidWindow indicates a window outside [MinWindow, MaxWindow].
var ErrInvalidWindow = errors.New("invalid fail-safe window")

// Timer is a rearmed-per-phase deadline for one commissioning attempt.
// The zero value is not usable; create timers with NewTimer.
type Timer struct {
	mu sync.Mutex

	window   time.Duration
	timer    *time.Timer
	armed    bool
	expired  bool
	canceled bool
	deadline time.Time

	onExpire func()
}

// NewTimer creates a fail-safe timer with the given window. A zero
// window selects DefaultWindow. The callback runs once, on the timer's
// own goroutine, if the window elapses before Cancel.
func NewTimer(window time.Duration, onExpire func()) (*Timer, error) {
	if window == 0 {
		window = DefaultWindow
	}
	if window < MinWindow || window > MaxWindow {
		return nil, ErrInvalidWindow
	}
	return &Timer{window: window, onExpire: onExpire}, nil
}

// Arm starts (or restarts) the window. Each phase transition calls Arm
// so slow-but-progressing commissioners are not cut off. Arming an
// expired or canceled timer is a no-op: a finished attempt stays
// finished.
func (t *Timer) Arm() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.expired || t.canceled {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.armed = true
	t.deadline = time.Now().Add(t.window)
	t.timer = time.AfterFunc(t.window, t.expire)
}

// Cancel stops the timer permanently. Called on reaching a terminal
// phase. Returns false if the timer had already expired, in which case
// the expiry callback has run (or is running) and the attempt is lost.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.expired {
		return false
	}
	t.canceled = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.armed = false
	return true
}

// Expired reports whether the window elapsed before Cancel.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Remaining returns the time left in the current window, zero if the
// timer is not armed.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.armed || t.expired || t.canceled {
		return 0
	}
	d := time.Until(t.deadline)
	if d < 0 {
		return 0
	}
	return d
}

func (t *Timer) expire() {
	t.mu.Lock()
	if t.expired || t.canceled || !t.armed {
		t.mu.Unlock()
		return
	}
	t.expired = true
	t.armed = false
	t.timer = nil
	cb := t.onExpire
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}
