package authcore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/bizware/authcore/store"
)

// ActivitySink receives the activity entries the engine records. Sinks must
// never block the caller for long and must tolerate concurrent Emit calls.
type ActivitySink interface {
	Emit(ctx context.Context, entry store.ActivityEntry)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, store.ActivityEntry) {}

// ChannelSink exposes entries on a channel, mostly for tests and for callers
// that bridge into their own pipeline.
type ChannelSink struct {
	entries chan store.ActivityEntry
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		entries: make(chan store.ActivityEntry, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, entry store.ActivityEntry) {
	select {
	case s.entries <- entry:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Entries() <-chan store.ActivityEntry {
	return s.entries
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, entry store.ActivityEntry) {
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

// StoreSink persists entries through a [store.ActivityStore]. Write failures
// are logged and swallowed: the recorder is best-effort and must never fail
// an authentication flow.
type StoreSink struct {
	store  store.ActivityStore
	logger *slog.Logger
}

func NewStoreSink(s store.ActivityStore, logger *slog.Logger) *StoreSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSink{store: s, logger: logger}
}

func (s *StoreSink) Emit(ctx context.Context, entry store.ActivityEntry) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Append(ctx, &entry); err != nil {
		s.logger.Warn("activity append failed",
			"event", entry.Event,
			"account_id", entry.AccountID,
			"error", err)
	}
}

// multiSink fans a single entry out to several sinks in order.
type multiSink []ActivitySink

func (m multiSink) Emit(ctx context.Context, entry store.ActivityEntry) {
	for _, s := range m {
		s.Emit(ctx, entry)
	}
}
