package log

import (
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events while reading a trace. The zero value matches
// everything; each set field narrows the selection.
type Filter struct {
	// ConnectionID selects one channel's events.
	ConnectionID string

	// Direction selects inbound or outbound events.
	Direction *Direction

	// Layer selects one protocol layer.
	Layer *Layer

	// Category selects one event category.
	Category *Category

	// TimeStart and TimeEnd bound the half-open interval
	// [TimeStart, TimeEnd).
	TimeStart *time.Time
	TimeEnd   *time.Time

	// DeviceID selects one device's events.
	DeviceID string

	// FabricIndex selects events tagged with one local fabric index.
	FabricIndex uint8
}

func (f *Filter) matches(event Event) bool {
	switch {
	case f.ConnectionID != "" && event.ConnectionID != f.ConnectionID:
		return false
	case f.Direction != nil && event.Direction != *f.Direction:
		return false
	case f.Layer != nil && event.Layer != *f.Layer:
		return false
	case f.Category != nil && event.Category != *f.Category:
		return false
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	case f.DeviceID != "" && event.DeviceID != f.DeviceID:
		return false
	case f.FabricIndex != 0 && event.FabricIndex != f.FabricIndex:
		return false
	}
	return true
}

// Reader iterates the events of a trace file. Traces can be large, so
// events stream one at a time rather than loading the file whole.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens a trace file for unfiltered iteration.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a trace file, yielding only events the
// filter accepts.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, decoder: NewDecoder(f), filter: filter}, nil
}

// Next returns the next accepted event, io.EOF at end of trace.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			return Event{}, err
		}
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

var _ io.Closer = (*Reader)(nil)
