package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// Sink receives a copy of every entry the service records. Sinks observe;
// the store remains the system of record.
type Sink interface {
	Emit(ctx context.Context, entry Entry)
}

// NoOpSink discards all entries.
type NoOpSink struct{}

// Emit implements Sink.
func (NoOpSink) Emit(context.Context, Entry) {}

// ChannelSink forwards entries to a buffered channel, typically consumed by
// an operator tail or a test.
type ChannelSink struct {
	entries chan Entry
}

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		entries: make(chan Entry, buffer),
	}
}

// Emit implements Sink. A full channel drops the entry: a stalled
// consumer must not wedge the dispatcher goroutine.
func (s *ChannelSink) Emit(ctx context.Context, entry Entry) {
	select {
	case s.entries <- entry:
	case <-ctx.Done():
	default:
	}
}

// Entries returns the receive side of the sink.
func (s *ChannelSink) Entries() <-chan Entry {
	return s.entries
}

// WriterSink writes one JSON line per entry to an io.Writer.
type WriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewWriterSink creates a WriterSink that writes to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{
		writer: w,
	}
}

// Emit implements Sink.
func (s *WriterSink) Emit(_ context.Context, entry Entry) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
