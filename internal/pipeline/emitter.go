package pipeline

import (
	"encoding/json"
	"io"
	"sync"
)

// Emitter delivers events to the caller of a run in emission order. Once a
// terminal event has been emitted, or the caller has gone away, further calls
// are no-ops.
type Emitter interface {
	Emit(Event)
}

// StreamEmitter writes newline-delimited JSON records to an open caller
// connection, flushing after each record.
type StreamEmitter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	flush  func()
	closed bool
	gone   bool
	onGone func(error)
}

// NewStreamEmitter wraps w. flush may be nil. onGone, if set, is called once
// with the first write error.
func NewStreamEmitter(w io.Writer, flush func(), onGone func(error)) *StreamEmitter {
	return &StreamEmitter{enc: json.NewEncoder(w), flush: flush, onGone: onGone}
}

// Emit writes ev. A write failure marks the caller as gone.
func (s *StreamEmitter) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gone {
		return
	}
	if err := s.enc.Encode(ev); err != nil {
		s.gone = true
		if s.onGone != nil {
			s.onGone(err)
		}
		return
	}
	if s.flush != nil {
		s.flush()
	}
	if ev.Type.Terminal() {
		s.closed = true
	}
}

// Gone reports whether the caller connection failed.
func (s *StreamEmitter) Gone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gone
}

// Closed reports whether a terminal event has been written.
func (s *StreamEmitter) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MemoryEmitter records events in memory. It is used by the CLI summary
// output and by tests.
type MemoryEmitter struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

// Emit appends ev unless a terminal event was already recorded.
func (m *MemoryEmitter) Emit(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.events = append(m.events, ev)
	if ev.Type.Terminal() {
		m.closed = true
	}
}

// Events returns a copy of the recorded events.
func (m *MemoryEmitter) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// OfType returns the recorded events of type t.
func (m *MemoryEmitter) OfType(t EventType) []Event {
	var out []Event
	for _, ev := range m.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Last returns the final recorded event.
func (m *MemoryEmitter) Last() (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return Event{}, false
	}
	return m.events[len(m.events)-1], true
}

// Discard is an Emitter that drops every event.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(Event) {}
