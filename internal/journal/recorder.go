package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ta25stage/stagelink/internal/dispatch"
)

// DefaultBuffer is the number of entries the recorder holds before it
// starts dropping.
const DefaultBuffer = 256

// writeTimeout bounds one insert.
const writeTimeout = 2 * time.Second

// Logger is the logging interface the recorder needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder moves dispatcher results into the repository off the send path.
type Recorder struct {
	repo   Repository
	logger Logger
	queue  chan Entry

	recorded, dropped, failed atomic.Uint64
}

// NewRecorder creates a recorder. A buffer of 0 selects DefaultBuffer.
func NewRecorder(repo Repository, buffer int, logger Logger) *Recorder {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		repo:   repo,
		logger: logger,
		queue:  make(chan Entry, buffer),
	}
}

// Observe has the dispatch.Observer signature. It never blocks.
func (r *Recorder) Observe(res dispatch.Result) {
	select {
	case r.queue <- FromResult(res):
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("dispatch journal full, dropping entries")
		}
	}
}

// Run writes queued entries until ctx is cancelled, then drains what is
// already queued.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return nil
		case e := <-r.queue:
			r.write(context.Background(), e)
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case e := <-r.queue:
			r.write(context.Background(), e)
		default:
			return
		}
	}
}

func (r *Recorder) write(parent context.Context, e Entry) {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()
	if err := r.repo.Create(ctx, &e); err != nil {
		r.failed.Add(1)
		r.logger.Warn("dispatch journal write failed", "error", err)
		return
	}
	r.recorded.Add(1)
}

// RecorderStats counts journal outcomes.
type RecorderStats struct {
	Recorded uint64 `json:"recorded"`
	Dropped  uint64 `json:"dropped"`
	Failed   uint64 `json:"failed"`
}

// Stats returns the recorder counters.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		Recorded: r.recorded.Load(),
		Dropped:  r.dropped.Load(),
		Failed:   r.failed.Load(),
	}
}
