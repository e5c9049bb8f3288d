package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNoopLogger(t *testing.T) {
	// Must not panic, usable as zero value.
	var l NoopLogger
	l.Log(Event{Timestamp: time.Now()})
}

func TestMultiLoggerFanOut(t *testing.T) {
	var a, b countingLogger
	m := NewMultiLogger(&a, &b)
	m.Log(Event{})
	m.Log(Event{})
	if a.n != 2 || b.n != 2 {
		t.Errorf("fan-out counts = %d, %d, want 2, 2", a.n, b.n)
	}
}

type countingLogger struct{ n int }

func (c *countingLogger) Log(Event) { c.n++ }

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := NewSlogAdapter(slog.New(handler))

	adapter.Log(Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-9",
		Direction:    DirectionIn,
		Layer:        LayerService,
		Category:     CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityCommissioning,
			OldState: "Idle",
			NewState: "ChainSent",
			Reason:   "certificate chain requested",
		},
	})

	out := buf.String()
	for _, want := range []string{"conn-9", "COMMISSIONING", "ChainSent", "certificate chain requested"} {
		if !strings.Contains(out, want) {
			t.Errorf("slog output missing %q:\n%s", want, out)
		}
	}
}
