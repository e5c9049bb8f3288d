package failsafe

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerExpiry(t *testing.T) {
	var fired atomic.Int32
	tm, err := NewTimer(MinWindow, func() { fired.Add(1) })
	if err != nil {
		t.Fatalf("NewTimer() error = %v", err)
	}

	tm.Arm()
	deadline := time.Now().Add(5 * time.Second)
	for !tm.Expired() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if !tm.Expired() {
		t.Fatal("timer never expired")
	}
	// Callback runs exactly once even if Arm is called again after.
	tm.Arm()
	time.Sleep(20 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("expiry callback ran %d times, want 1", got)
	}
}

func TestTimerCancel(t *testing.T) {
	var fired atomic.Int32
	tm, _ := NewTimer(MinWindow, func() { fired.Add(1) })

	tm.Arm()
	if !tm.Cancel() {
		t.Error("Cancel() = false on live timer")
	}
	time.Sleep(time.Duration(float64(MinWindow) * 1.5))
	if fired.Load() != 0 {
		t.Error("callback ran after Cancel")
	}
	if tm.Expired() {
		t.Error("canceled timer reports expired")
	}

	// Arming after cancel stays a no-op.
	tm.Arm()
	if tm.Remaining() != 0 {
		t.Error("canceled timer rearmed")
	}
}

func TestTimerRearmExtendsDeadline(t *testing.T) {
	var fired atomic.Int32
	// White-box: a window below MinWindow keeps the test fast.
	tm := &Timer{window: 200 * time.Millisecond, onExpire: func() { fired.Add(1) }}

	tm.Arm()
	// Keep rearming past the original deadline.
	for i := 0; i < 4; i++ {
		time.Sleep(100 * time.Millisecond)
		tm.Arm()
	}
	if fired.Load() != 0 {
		t.Error("timer expired despite rearming")
	}
	tm.Cancel()
}

func TestCancelAfterExpiryReturnsFalse(t *testing.T) {
	tm, _ := NewTimer(MinWindow, nil)
	tm.Arm()

	deadline := time.Now().Add(5 * time.Second)
	for !tm.Expired() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if tm.Cancel() {
		t.Error("Cancel() = true after expiry; late success must not win")
	}
}

func TestInvalidWindow(t *testing.T) {
	if _, err := NewTimer(10*time.Millisecond, nil); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("NewTimer(10ms) error = %v, want ErrInvalidWindow", err)
	}
	if _, err := NewTimer(24*time.Hour, nil); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("NewTimer(24h) error = %v, want ErrInvalidWindow", err)
	}
	tm, err := NewTimer(0, nil)
	if err != nil {
		t.Fatalf("NewTimer(0) error = %v", err)
	}
	if tm.window != DefaultWindow {
		t.Errorf("default window = %v, want %v", tm.window, DefaultWindow)
	}
}
