package sequence

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ta25stage/stagelink/internal/protocol"
	"github.com/ta25stage/stagelink/internal/regions"
)

// Sender broadcasts one packet. *dispatch.Dispatcher satisfies it.
type Sender interface {
	Send(ctx context.Context, p protocol.Packet) error
}

// Sleeper blocks for a step's hold.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Logger is the logging interface the orchestrator needs.
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

type timerSleeper struct{}

// Sleep waits for d. Only ctx cancellation ends it early.
func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Options configures an Orchestrator. Zero values select the defaults.
type Options struct {
	Logger  Logger
	Sleeper Sleeper

	// Shows replaces the compiled-in catalogue. Used by tests.
	Shows []Show
}

// Orchestrator runs shows one at a time.
//
// Thread Safety: Run and Running are safe for concurrent use. A second Run
// while one is in progress returns ErrSequenceRunning immediately.
type Orchestrator struct {
	sender  Sender
	sleeper Sleeper
	logger  Logger
	shows   map[uint8]Show

	running atomic.Bool
	current atomic.Uint32
}

// New creates an orchestrator that sends through sender.
func New(sender Sender, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Sleeper == nil {
		opts.Sleeper = timerSleeper{}
	}
	shows := opts.Shows
	if shows == nil {
		shows = Catalogue()
	}
	byID := make(map[uint8]Show, len(shows))
	for _, s := range shows {
		byID[s.ID] = s
	}
	return &Orchestrator{
		sender:  sender,
		sleeper: opts.Sleeper,
		logger:  opts.Logger,
		shows:   byID,
	}
}

// Running reports whether a show is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Current returns the id of the running show, or 0 when idle.
func (o *Orchestrator) Current() uint8 {
	return uint8(o.current.Load())
}

// Run executes show id to completion on the calling goroutine.
//
// Each step's mask is built from the previous step's mask by the step's
// operation, starting from an empty mask, and is broadcast once with
// mode=sequence, sequenceId=id and step=i. A failed send is logged and the
// show carries on. Holds block; ctx cancellation ends the show early and
// is meant for process shutdown only.
//
// Returns:
//   - ErrSequenceRunning if another show is in progress (request dropped)
//   - ErrUnknownSequence if id is not in the catalogue
//   - ctx.Err() if ctx was cancelled during a hold
func (o *Orchestrator) Run(ctx context.Context, id uint8) error {
	if !o.running.CompareAndSwap(false, true) {
		o.logger.Warn("sequence request dropped, another show is running",
			"requested", id,
			"running", o.Current(),
		)
		return ErrSequenceRunning
	}
	defer o.running.Store(false)

	show, ok := o.shows[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSequence, id)
	}

	o.current.Store(uint32(id))
	defer o.current.Store(0)

	o.logger.Info("sequence started",
		"sequence_id", id,
		"name", show.Name,
		"steps", len(show.Steps),
		"duration", show.Duration().String(),
	)
	started := time.Now()

	var mask regions.Set
	failed := 0
	for i, step := range show.Steps {
		mask = step.Apply(mask)
		p := protocol.Packet{
			PanelID:    protocol.BroadcastPanel,
			Mode:       protocol.ModeSequence,
			SequenceID: id,
			GroupID:    step.groupID(),
			Regions:    mask,
			Effect:     step.Effect,
			Brightness: step.Brightness,
			Speed:      step.Speed,
			Step:       uint8(i),
		}
		if err := o.sender.Send(ctx, p); err != nil {
			failed++
			o.logger.Warn("sequence step not sent",
				"sequence_id", id,
				"step", i,
				"error", err,
			)
		} else {
			o.logger.Debug("sequence step sent",
				"sequence_id", id,
				"step", i,
				"op", step.Op.String(),
				"regions", mask.Count(),
				"effect", step.Effect.String(),
			)
		}

		if err := o.sleeper.Sleep(ctx, step.Hold); err != nil {
			o.logger.Info("sequence interrupted", "sequence_id", id, "step", i)
			return err
		}
	}

	o.logger.Info("sequence finished",
		"sequence_id", id,
		"name", show.Name,
		"failed_steps", failed,
		"elapsed", time.Since(started).Round(time.Millisecond).String(),
	)
	return nil
}

// Shows returns the shows this orchestrator can run, ordered by id.
func (o *Orchestrator) Shows() []Show {
	out := make([]Show, 0, len(o.shows))
	for _, s := range o.shows {
		out = append(out, s)
	}
	sortShows(out)
	return out
}
