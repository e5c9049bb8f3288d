package log

// MultiLogger fans one event stream out to several sinks, typically a
// console SlogAdapter plus a FileLogger trace.
type MultiLogger struct {
	sinks []Logger
}

// NewMultiLogger builds a fan-out over the given loggers. The argument
// slice is copied; later mutation of it does not affect the fan-out.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	sinks := make([]Logger, len(loggers))
	copy(sinks, loggers)
	return &MultiLogger{sinks: sinks}
}

// Log delivers the event to every sink in registration order.
func (m *MultiLogger) Log(event Event) {
	for _, sink := range m.sinks {
		sink.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
