package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Saver persists one audit entry.
type Saver interface {
	Save(ctx context.Context, e *Entry) error
}

// Recorder writes audit entries in the background. Record never blocks: when
// the buffer is full, or the recorder is closed, the entry is dropped and a
// warning is logged.
type Recorder struct {
	saver  Saver
	logger zerolog.Logger
	ch     chan *Entry
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	// SaveTimeout bounds each database write.
	SaveTimeout time.Duration
}

// NewRecorder starts the background writer.
func NewRecorder(saver Saver, bufferSize int, logger zerolog.Logger) *Recorder {
	if bufferSize < 1 {
		bufferSize = 1
	}
	r := &Recorder{
		saver:       saver,
		logger:      logger,
		ch:          make(chan *Entry, bufferSize),
		done:        make(chan struct{}),
		SaveTimeout: 5 * time.Second,
	}
	go r.run()
	return r
}

func (r *Recorder) Record(e *Entry) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(e, "recorder closed")
		return
	}
	select {
	case r.ch <- e:
	default:
		r.drop(e, "audit buffer full")
	}
}

func (r *Recorder) drop(e *Entry, reason string) {
	r.logger.Warn().
		Str("agent_type", e.AgentType).
		Str("request_id", e.RequestID).
		Str("status", e.Status).
		Msg("dropping audit entry: " + reason)
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.ch {
		r.save(e)
	}
}

func (r *Recorder) save(e *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.SaveTimeout)
	defer cancel()
	if err := r.saver.Save(ctx, e); err != nil {
		r.logger.Error().Err(err).
			Str("agent_type", e.AgentType).
			Str("request_id", e.RequestID).
			Msg("failed to save audit entry")
	}
}

// Close stops accepting entries and waits for the buffer to drain or ctx to
// end. It is safe to call more than once.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
