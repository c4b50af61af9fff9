package service

import (
	"bytes"
	"io"
	"sync"
)

// EventEmittingWriter wraps a buffer and invokes a callback with each write,
// letting a host (the API's WebSocket broadcaster) forward guest output to
// subscribers as it's produced instead of polling the buffer.
type EventEmittingWriter struct {
	buffer   bytes.Buffer
	onOutput func(string)
	mutex    sync.Mutex
}

// NewEventEmittingWriter creates a new event-emitting writer. onOutput may be
// nil, in which case output only accumulates in the buffer.
func NewEventEmittingWriter(onOutput func(string)) *EventEmittingWriter {
	return &EventEmittingWriter{onOutput: onOutput}
}

// Write implements io.Writer.
func (w *EventEmittingWriter) Write(p []byte) (n int, err error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	n, err = w.buffer.Write(p)
	if err == nil && n > 0 && w.onOutput != nil {
		w.onOutput(string(p))
	}
	return n, err
}

// GetBufferAndClear returns buffer contents and clears it.
func (w *EventEmittingWriter) GetBufferAndClear() string {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	output := w.buffer.String()
	w.buffer.Reset()
	return output
}

var _ io.Writer = (*EventEmittingWriter)(nil)
