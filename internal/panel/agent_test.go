package panel

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ta25stage/stagelink/internal/protocol"
)

// ─── Mock Dependencies ─────────────────────────────────────────────

type recordActuator struct {
	mu     sync.Mutex
	frames [][]uint8
	err    error
}

func (a *recordActuator) Apply(levels []uint8) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	f := make([]uint8, len(levels))
	copy(f, levels)
	a.frames = append(a.frames, f)
	return a.err
}

func (a *recordActuator) last() []uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.frames) == 0 {
		return nil
	}
	return a.frames[len(a.frames)-1]
}

type recordLogger struct {
	noopLogger
	mu    sync.Mutex
	warns []string
}

func (l *recordLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// ─── Tests ─────────────────────────────────────────────────────────

func TestAgent_TickRendersBootState(t *testing.T) {
	rx := newTestReceiver(t, 4)
	act := &recordActuator{}
	agent := NewAgent(rx, act, AgentConfig{}, nil)

	frame, err := agent.Tick(time.Now())
	require.NoError(t, err)
	assert.Equal(t, []uint8{128, 128, 128, 128}, frame)
	assert.Equal(t, frame, act.last())
}

func TestAgent_FollowsAcceptedState(t *testing.T) {
	rx := newTestReceiver(t, 1)
	act := &recordActuator{}
	agent := NewAgent(rx, act, AgentConfig{}, nil)
	now := time.Now()

	fadeOut := int(protocol.EffectFadeOut)
	rx.OnPacket(packet(protocol.Request{Effect: &fadeOut, Speed: protocol.Int(100), Regions: []int{1, 2}}), coordinator)

	frame, err := agent.Tick(now)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 250, 250, 0, 0}, frame)

	frame, _ = agent.Tick(now.Add(5 * time.Millisecond))
	assert.Equal(t, []uint8{0, 245, 245, 0, 0}, frame)
}

func TestAgent_ActuatorErrorIsReturned(t *testing.T) {
	rx := newTestReceiver(t, 1)
	act := &recordActuator{err: errors.New("pin busy")}
	agent := NewAgent(rx, act, AgentConfig{}, nil)

	_, err := agent.Tick(time.Now())
	assert.Error(t, err)
}

func TestAgent_StaleWarningRepeatsWhileSilent(t *testing.T) {
	rx := newTestReceiver(t, 1)
	log := &recordLogger{}
	agent := NewAgent(rx, &recordActuator{}, AgentConfig{StaleAfter: time.Minute}, log)

	start := time.Now()
	agent.Tick(start) //nolint:errcheck // recordActuator never fails here

	assert.False(t, agent.checkStale(start.Add(30*time.Second)))
	assert.True(t, agent.checkStale(start.Add(61*time.Second)))
	assert.True(t, agent.checkStale(start.Add(90*time.Second)))
	assert.Len(t, log.warns, 1, "one warning per StaleAfter window")

	assert.True(t, agent.checkStale(start.Add(121*time.Second)))
	assert.Len(t, log.warns, 2, "silence continues, warn again")

	rx.now = func() time.Time { return start.Add(125 * time.Second) }
	rx.OnPacket(packet(protocol.Request{}), coordinator)
	assert.False(t, agent.checkStale(start.Add(130*time.Second)))

	assert.True(t, agent.checkStale(start.Add(186*time.Second)))
	assert.Len(t, log.warns, 3)
}

func TestAgent_Status(t *testing.T) {
	rx := newTestReceiver(t, 2)
	agent := NewAgent(rx, &recordActuator{}, AgentConfig{}, nil)
	now := time.Now()

	s := agent.Status(now)
	assert.Equal(t, time.Duration(-1), s.LastCommand)
	assert.Equal(t, 6, s.ActiveRegions)

	wave := int(protocol.EffectWave)
	rx.now = func() time.Time { return now }
	rx.OnPacket(packet(protocol.Request{PanelID: 2, Effect: &wave, Regions: []int{5, 6}}), coordinator)
	agent.Tick(now) //nolint:errcheck // recordActuator never fails here

	s = agent.Status(now.Add(time.Second))
	assert.Equal(t, "wave", s.Effect)
	assert.Equal(t, 2, s.ActiveRegions)
	assert.Equal(t, time.Second, s.LastCommand)
	assert.Equal(t, uint64(1), s.Accepted)
	assert.Equal(t, uint64(1), s.Frames)
}
