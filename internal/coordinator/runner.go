package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ta25stage/stagelink/internal/dispatch"
	"github.com/ta25stage/stagelink/internal/protocol"
	"github.com/ta25stage/stagelink/internal/regions"
	"github.com/ta25stage/stagelink/internal/sequence"
	"github.com/ta25stage/stagelink/internal/supervisor"
)

// Defaults for Options.
const (
	DefaultControlTick = 100 * time.Millisecond
	DefaultInboxSize   = 32
)

// Dispatcher sends one packet over the radio.
type Dispatcher interface {
	Send(ctx context.Context, p protocol.Packet) error
}

// Sequencer runs a predefined show to completion.
type Sequencer interface {
	Run(ctx context.Context, id uint8) error
}

// Supervisor advances connectivity by one step.
type Supervisor interface {
	Tick(ctx context.Context) error
}

// Logger is the logging interface the coordinator needs.
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

// Options configures a Runner. Zero values select the defaults.
type Options struct {
	Logger      Logger
	ControlTick time.Duration
	InboxSize   int

	// FromTopic resolves the panel id of per-panel command topics.
	FromTopic TopicPanel

	Now func() time.Time
}

// Command sources recorded in LastCommand.
const (
	SourceCommand  = "command"
	SourceAudio    = "audio"
	SourceSequence = "sequence"
)

// LastCommand describes the most recent command the loop executed.
type LastCommand struct {
	Source         string    `json:"source"`
	PanelID        uint8     `json:"panel_id"`
	Mode           string    `json:"mode"`
	SequenceID     uint8     `json:"sequence_id,omitempty"`
	Effect         string    `json:"effect,omitempty"`
	Brightness     uint8     `json:"brightness"`
	Speed          uint8     `json:"speed"`
	Regions        []int     `json:"regions"`
	AudioReactive  bool      `json:"audio_reactive"`
	AudioIntensity uint8     `json:"audio_intensity"`
	Outcome        string    `json:"outcome"`
	At             time.Time `json:"at"`
}

// Stats counts inbound traffic and its fate.
type Stats struct {
	Received         uint64 `json:"received"`
	ParseErrors      uint64 `json:"parse_errors"`
	InboxDropped     uint64 `json:"inbox_dropped"`
	SequencesDropped uint64 `json:"sequences_dropped"`
	Dispatched       uint64 `json:"dispatched"`
	DispatchFailures uint64 `json:"dispatch_failures"`
}

type jobKind uint8

const (
	jobCommand jobKind = iota
	jobAudio
)

type job struct {
	kind      jobKind
	req       protocol.Request
	intensity int
}

// Runner is the coordinator's single control loop.
//
// Thread Safety: HandleCommand and HandleAudio may be called from any
// goroutine. Run must be called once.
type Runner struct {
	dispatcher Dispatcher
	sequencer  Sequencer
	supervisor Supervisor
	logger     Logger
	fromTopic  TopicPanel
	tick       time.Duration
	now        func() time.Time

	inbox chan job

	// seqBusy covers a sequence from the moment it is queued until it
	// finishes, so a second request is dropped rather than queued.
	seqBusy atomic.Bool

	// lastReq is owned by the Run goroutine.
	lastReq *protocol.Request

	lastMu sync.RWMutex
	last   *LastCommand

	received, parseErrors, inboxDropped, seqDropped atomic.Uint64
	dispatched, dispatchFailures                    atomic.Uint64
}

// NewRunner creates the control loop. sup may be nil when nothing needs
// supervising (tests, showctl).
func NewRunner(d Dispatcher, seq Sequencer, sup Supervisor, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.ControlTick <= 0 {
		opts.ControlTick = DefaultControlTick
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultInboxSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		dispatcher: d,
		sequencer:  seq,
		supervisor: sup,
		logger:     opts.Logger,
		fromTopic:  opts.FromTopic,
		tick:       opts.ControlTick,
		now:        opts.Now,
		inbox:      make(chan job, opts.InboxSize),
	}
}

// HandleCommand has the mqtt.MessageHandler signature. Malformed messages
// return an ErrParse error for the caller to log; nothing else happens.
func (r *Runner) HandleCommand(topic string, payload []byte) error {
	r.received.Add(1)

	req, err := ParseCommand(topic, payload, r.fromTopic)
	if err != nil {
		r.parseErrors.Add(1)
		return err
	}

	if req.Mode == protocol.ModeSequence {
		if !r.seqBusy.CompareAndSwap(false, true) {
			r.seqDropped.Add(1)
			r.logger.Info("sequence request dropped, another sequence is active",
				"sequence", req.SequenceID,
			)
			return nil
		}
		if !r.enqueue(job{kind: jobCommand, req: req}) {
			r.seqBusy.Store(false)
		}
		return nil
	}

	r.enqueue(job{kind: jobCommand, req: req})
	return nil
}

// HandleAudio has the mqtt.MessageHandler signature. The intensity is
// applied to the last command if that command was audio-reactive.
func (r *Runner) HandleAudio(_ string, payload []byte) error {
	intensity, err := ParseAudio(payload)
	if err != nil {
		r.parseErrors.Add(1)
		return err
	}
	r.enqueue(job{kind: jobAudio, intensity: intensity})
	return nil
}

func (r *Runner) enqueue(j job) bool {
	select {
	case r.inbox <- j:
		return true
	default:
		r.inboxDropped.Add(1)
		r.logger.Warn("command inbox full, dropping command")
		return false
	}
}

// Run services the inbox and ticks the supervisor until ctx is cancelled.
// The first supervisor tick happens immediately.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	r.logger.Info("control loop started", "tick", r.tick.String(), "inbox", cap(r.inbox))
	r.tickSupervisor(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("control loop stopped")
			return nil
		case j := <-r.inbox:
			r.execute(ctx, j)
		case <-ticker.C:
			r.tickSupervisor(ctx)
		}
	}
}

func (r *Runner) tickSupervisor(ctx context.Context) {
	if r.supervisor == nil {
		return
	}
	err := r.supervisor.Tick(ctx)
	if err == nil || ctx.Err() != nil {
		return
	}
	switch {
	case errors.Is(err, supervisor.ErrConnectivityExhausted):
		r.logger.Error("connectivity exhausted", "error", err)
	case errors.Is(err, supervisor.ErrTransportDegraded):
		r.logger.Warn("transport degraded", "error", err)
	default:
		r.logger.Debug("supervisor tick", "error", err)
	}
}

func (r *Runner) execute(ctx context.Context, j job) {
	switch j.kind {
	case jobAudio:
		if r.lastReq == nil || !r.lastReq.AudioReactive {
			return
		}
		req := *r.lastReq
		req.AudioIntensity = j.intensity
		r.send(ctx, req, SourceAudio)
		r.lastReq.AudioIntensity = j.intensity

	case jobCommand:
		if j.req.Mode == protocol.ModeSequence {
			defer r.seqBusy.Store(false)
			r.runSequence(ctx, uint8(j.req.SequenceID)) //nolint:gosec // range checked by ParseCommand
			return
		}
		r.send(ctx, j.req, SourceCommand)
		req := j.req
		r.lastReq = &req
	}
}

func (r *Runner) send(ctx context.Context, req protocol.Request, source string) {
	p := protocol.Encode(req)
	err := r.dispatcher.Send(ctx, p)
	res := dispatch.Result{Packet: p, Err: err, At: r.now()}

	if err != nil {
		r.dispatchFailures.Add(1)
		r.logger.Warn("command not dispatched",
			"source", source,
			"panel", p.PanelID,
			"outcome", res.Outcome(),
			"error", err,
		)
	} else {
		r.dispatched.Add(1)
		r.logger.Debug("command dispatched", "source", source, "packet", p.String())
	}

	r.setLast(LastCommand{
		Source:         source,
		PanelID:        p.PanelID,
		Mode:           p.Mode.String(),
		SequenceID:     p.SequenceID,
		Effect:         p.Effect.String(),
		Brightness:     p.Brightness,
		Speed:          p.Speed,
		Regions:        setRegions(p.Regions),
		AudioReactive:  p.AudioReactive,
		AudioIntensity: p.AudioIntensity,
		Outcome:        res.Outcome(),
		At:             res.At,
	})
}

func (r *Runner) runSequence(ctx context.Context, id uint8) {
	r.logger.Info("sequence started", "sequence", id)
	start := r.now()
	err := r.sequencer.Run(ctx, id)

	outcome := "completed"
	switch {
	case err == nil:
		r.logger.Info("sequence finished", "sequence", id, "took", r.now().Sub(start).Round(time.Millisecond).String())
	case errors.Is(err, sequence.ErrUnknownSequence):
		outcome = "unknown_sequence"
		r.logger.Warn("unknown sequence requested", "sequence", id)
	case errors.Is(err, sequence.ErrSequenceRunning):
		outcome = "dropped"
		r.seqDropped.Add(1)
		r.logger.Info("sequence request dropped, another sequence is active", "sequence", id)
	case ctx.Err() != nil:
		outcome = "interrupted"
	default:
		outcome = "failed"
		r.logger.Warn("sequence failed", "sequence", id, "error", err)
	}

	r.setLast(LastCommand{
		Source:     SourceSequence,
		Mode:       protocol.ModeSequence.String(),
		SequenceID: id,
		Outcome:    outcome,
		At:         r.now(),
	})
}

func (r *Runner) setLast(lc LastCommand) {
	r.lastMu.Lock()
	r.last = &lc
	r.lastMu.Unlock()
}

// LastCommand returns the most recently executed command.
func (r *Runner) LastCommand() (LastCommand, bool) {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	if r.last == nil {
		return LastCommand{}, false
	}
	return *r.last, true
}

// SequenceActive reports whether a sequence is queued or running.
func (r *Runner) SequenceActive() bool {
	return r.seqBusy.Load()
}

// Stats returns the traffic counters.
func (r *Runner) Stats() Stats {
	return Stats{
		Received:         r.received.Load(),
		ParseErrors:      r.parseErrors.Load(),
		InboxDropped:     r.inboxDropped.Load(),
		SequencesDropped: r.seqDropped.Load(),
		Dispatched:       r.dispatched.Load(),
		DispatchFailures: r.dispatchFailures.Load(),
	}
}

func setRegions(s regions.Set) []int {
	idx := s.Indices()
	out := make([]int, len(idx))
	for i, v := range idx {
		out[i] = int(v)
	}
	return out
}
