package panel

import (
	"context"
	"fmt"
	"time"

	"github.com/ta25stage/stagelink/internal/effect"
)

// Default agent timings.
const (
	DefaultTickInterval   = 5 * time.Millisecond
	DefaultStaleAfter     = 5 * time.Minute
	DefaultStatusInterval = 60 * time.Second
)

// Actuator drives the panel's regions. Apply receives one level per region
// in local order.
type Actuator interface {
	Apply(levels []uint8) error
}

// AgentConfig tunes the render loop. Zero values select the defaults.
type AgentConfig struct {
	TickInterval   time.Duration
	StaleAfter     time.Duration
	StatusInterval time.Duration
}

// Agent is the panel's render loop.
type Agent struct {
	rx       *Receiver
	engine   *effect.Engine
	actuator Actuator
	logger   Logger
	cfg      AgentConfig

	started     time.Time
	lastTick    time.Time
	lastStatus  time.Time
	staleWarnAt time.Time
	frames      uint64
	applyErrs   uint64
}

// NewAgent creates a render loop reading from rx and writing to act.
func NewAgent(rx *Receiver, act Actuator, cfg AgentConfig, logger Logger) *Agent {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultStatusInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Agent{
		rx:       rx,
		engine:   effect.NewEngine(rx.Layout().Count),
		actuator: act,
		logger:   logger,
		cfg:      cfg,
	}
}

// Tick renders one frame for the current state and hands it to the
// actuator. It returns the frame that was applied.
func (a *Agent) Tick(now time.Time) ([]uint8, error) {
	if a.started.IsZero() {
		a.started = now
		a.lastStatus = now
	}

	var elapsed time.Duration
	if !a.lastTick.IsZero() {
		elapsed = now.Sub(a.lastTick)
	}
	a.lastTick = now

	st := a.rx.State()
	frame := a.engine.Render(st.Render(a.rx.Layout()), elapsed)
	a.frames++

	if err := a.actuator.Apply(frame); err != nil {
		a.applyErrs++
		return frame, fmt.Errorf("applying frame: %w", err)
	}
	return frame, nil
}

// Run ticks until ctx is cancelled. Actuator errors are logged and the loop
// carries on.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.TickInterval)
	defer ticker.Stop()

	a.logger.Info("panel render loop started",
		"panel", a.rx.Self(),
		"regions", a.rx.Layout().Count,
		"tick", a.cfg.TickInterval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if _, err := a.Tick(now); err != nil {
				a.logger.Warn("actuator write failed", "error", err)
			}
			a.checkStale(now)
			if now.Sub(a.lastStatus) >= a.cfg.StatusInterval {
				a.logStatus(now)
				a.lastStatus = now
			}
		}
	}
}

// checkStale warns when no command has been accepted for StaleAfter, and
// again every StaleAfter while the silence lasts. The panel keeps rendering
// its last state.
func (a *Agent) checkStale(now time.Time) bool {
	since := a.rx.State().AcceptedAt
	if since.IsZero() {
		since = a.started
	}
	if now.Sub(since) < a.cfg.StaleAfter {
		return false
	}
	if a.staleWarnAt.Before(since) || now.Sub(a.staleWarnAt) >= a.cfg.StaleAfter {
		a.logger.Warn("no commands received recently",
			"panel", a.rx.Self(),
			"silent_for", now.Sub(since).Round(time.Second).String(),
		)
		a.staleWarnAt = now
	}
	return true
}

// Status summarises the panel for periodic logs.
type Status struct {
	Panel         uint8
	Effect        string
	Brightness    uint8
	Speed         uint8
	ActiveRegions int
	LastCommand   time.Duration // -1 when nothing was ever accepted
	Accepted      uint64
	Ignored       uint64
	Malformed     uint64
	Frames        uint64
}

// Status returns the current summary.
func (a *Agent) Status(now time.Time) Status {
	st := a.rx.State()
	stats := a.rx.Stats()

	active := 0
	for _, on := range st.Render(a.rx.Layout()).Enabled {
		if on {
			active++
		}
	}
	age := time.Duration(-1)
	if !st.AcceptedAt.IsZero() {
		age = now.Sub(st.AcceptedAt)
	}

	return Status{
		Panel:         a.rx.Self(),
		Effect:        st.Packet.Effect.String(),
		Brightness:    st.Packet.Brightness,
		Speed:         st.Packet.Speed,
		ActiveRegions: active,
		LastCommand:   age,
		Accepted:      stats.Accepted,
		Ignored:       stats.Ignored,
		Malformed:     stats.Malformed,
		Frames:        a.frames,
	}
}

func (a *Agent) logStatus(now time.Time) {
	s := a.Status(now)
	a.logger.Info("panel status",
		"panel", s.Panel,
		"effect", s.Effect,
		"brightness", s.Brightness,
		"speed", s.Speed,
		"active_regions", s.ActiveRegions,
		"last_command_age", s.LastCommand.Round(time.Millisecond).String(),
		"accepted", s.Accepted,
		"ignored", s.Ignored,
		"malformed", s.Malformed,
		"frames", s.Frames,
		"actuator_errors", a.applyErrs,
	)
}
