package panel_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ta25stage/stagelink/internal/dispatch"
	"github.com/ta25stage/stagelink/internal/panel"
	"github.com/ta25stage/stagelink/internal/protocol"
	"github.com/ta25stage/stagelink/internal/radio"
	"github.com/ta25stage/stagelink/internal/radio/radiotest"
	"github.com/ta25stage/stagelink/internal/regions"
)

type frameSink struct{ last []uint8 }

func (s *frameSink) Apply(levels []uint8) error {
	s.last = append([]uint8(nil), levels...)
	return nil
}

type rig struct {
	dispatcher *dispatch.Dispatcher
	agents     map[uint8]*panel.Agent
	sinks      map[uint8]*frameSink
}

func newRig(t *testing.T) *rig {
	t.Helper()

	medium := radiotest.NewMedium(radio.DefaultChannel)
	coord := medium.Attach(radio.Addr{0x02, 0, 0, 0, 0, 1})

	r := &rig{
		dispatcher: dispatch.New(coord, dispatch.NewRegistry(1, 2, 3, 4), dispatch.Options{}),
		agents:     make(map[uint8]*panel.Agent),
		sinks:      make(map[uint8]*frameSink),
	}
	for id := uint8(1); id <= regions.NumPanels; id++ {
		rx, err := panel.NewReceiver(id, nil)
		require.NoError(t, err)
		medium.Attach(dispatch.PanelAddr(id)).Handle(rx.OnPacket)

		sink := &frameSink{}
		r.sinks[id] = sink
		r.agents[id] = panel.NewAgent(rx, sink, panel.AgentConfig{}, nil)
	}
	return r
}

func (r *rig) tickAll(t *testing.T, now time.Time) {
	t.Helper()
	for id, a := range r.agents {
		_, err := a.Tick(now)
		require.NoError(t, err, "panel %d", id)
	}
}

func TestEndToEnd_StaticBroadcast(t *testing.T) {
	r := newRig(t)

	req := protocol.Request{
		PanelID:    0,
		Mode:       protocol.ModeDirect,
		Regions:    []int{0, 1, 2},
		Brightness: protocol.Int(255),
		Speed:      protocol.Int(50),
		Effect:     protocol.Int(int(protocol.EffectStatic)),
	}
	require.NoError(t, r.dispatcher.Send(context.Background(), protocol.Encode(req)))

	r.tickAll(t, time.Now())

	assert.Equal(t, []uint8{255, 255, 255, 0, 0}, r.sinks[1].last)
	assert.Equal(t, []uint8{0, 0, 0, 0, 0, 0}, r.sinks[2].last)
	assert.Equal(t, []uint8{0, 0, 0, 0, 0}, r.sinks[3].last)
	assert.Equal(t, []uint8{0, 0, 0, 0}, r.sinks[4].last)
}

func TestEndToEnd_UnicastLeavesOtherPanelsIdle(t *testing.T) {
	r := newRig(t)

	req := protocol.Request{
		PanelID:    4,
		Regions:    regionList(regions.ByGroup(regions.Raavana)),
		Brightness: protocol.Int(40),
	}
	require.NoError(t, r.dispatcher.Send(context.Background(), protocol.Encode(req)))

	r.tickAll(t, time.Now())

	assert.Equal(t, []uint8{40, 40, 40, 40}, r.sinks[4].last)
	// Panel 3 also owns a RAAVANA region but the packet was not for it.
	assert.Equal(t, []uint8{128, 128, 128, 128, 128}, r.sinks[3].last)
}

func regionList(idx []regions.Index) []int {
	out := make([]int, len(idx))
	for i, v := range idx {
		out[i] = int(v)
	}
	return out
}
