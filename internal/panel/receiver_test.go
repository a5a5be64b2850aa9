package panel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ta25stage/stagelink/internal/protocol"
	"github.com/ta25stage/stagelink/internal/radio"
	"github.com/ta25stage/stagelink/internal/regions"
)

var coordinator = radio.Addr{0x02, 0, 0, 0, 0, 1}

func newTestReceiver(t *testing.T, self uint8) *Receiver {
	t.Helper()
	rx, err := NewReceiver(self, nil)
	require.NoError(t, err)
	rx.now = func() time.Time { return time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC) }
	return rx
}

func packet(req protocol.Request) []byte {
	return protocol.Encode(req).Bytes()
}

func TestNewReceiver_BootState(t *testing.T) {
	rx := newTestReceiver(t, 2)
	st := rx.State()

	assert.Equal(t, protocol.EffectStatic, st.Packet.Effect)
	assert.Equal(t, uint8(protocol.DefaultBrightness), st.Packet.Brightness)
	assert.Equal(t, uint8(protocol.DefaultSpeed), st.Packet.Speed)
	assert.Equal(t, []regions.Index{5, 6, 7, 8, 9, 10}, st.Packet.Regions.Indices())
	assert.True(t, st.AcceptedAt.IsZero())
}

func TestNewReceiver_UnknownPanel(t *testing.T) {
	_, err := NewReceiver(0, nil)
	assert.ErrorIs(t, err, ErrUnknownPanel)

	_, err = NewReceiver(5, nil)
	assert.ErrorIs(t, err, ErrUnknownPanel)
}

func TestOnPacket_AcceptsBroadcastAndOwnID(t *testing.T) {
	rx := newTestReceiver(t, 3)

	rx.OnPacket(packet(protocol.Request{PanelID: 0, Brightness: protocol.Int(10)}), coordinator)
	assert.Equal(t, uint8(10), rx.State().Packet.Brightness)

	rx.OnPacket(packet(protocol.Request{PanelID: 3, Brightness: protocol.Int(20)}), coordinator)
	assert.Equal(t, uint8(20), rx.State().Packet.Brightness)
	assert.Equal(t, coordinator, rx.State().Sender)
	assert.False(t, rx.State().AcceptedAt.IsZero())

	assert.Equal(t, uint64(2), rx.Stats().Accepted)
}

func TestOnPacket_SizeMismatchLeavesStateUnchanged(t *testing.T) {
	rx := newTestReceiver(t, 1)
	before := rx.State()

	good := packet(protocol.Request{Brightness: protocol.Int(1)})
	for _, bad := range [][]byte{nil, good[:protocol.PacketSize-1], append(good, 0)} {
		rx.OnPacket(bad, coordinator)
	}

	assert.Same(t, before, rx.State())
	assert.Equal(t, uint64(3), rx.Stats().Malformed)
	assert.Zero(t, rx.Stats().Accepted)
}

func TestOnPacket_OtherPanelIgnored(t *testing.T) {
	rx := newTestReceiver(t, 1)
	before := rx.State()

	for id := 2; id <= 255; id += 17 {
		rx.OnPacket(packet(protocol.Request{PanelID: id, Brightness: protocol.Int(1)}), coordinator)
	}

	assert.Same(t, before, rx.State())
	assert.Zero(t, rx.Stats().Accepted)
	assert.NotZero(t, rx.Stats().Ignored)
}

func TestOnPacket_EffectChangeBumpsEpoch(t *testing.T) {
	rx := newTestReceiver(t, 1)
	e0 := rx.State().Epoch

	pulse := int(protocol.EffectPulse)
	rx.OnPacket(packet(protocol.Request{Effect: &pulse}), coordinator)
	e1 := rx.State().Epoch
	assert.Equal(t, e0+1, e1, "static -> pulse")

	rx.OnPacket(packet(protocol.Request{Effect: &pulse, Brightness: protocol.Int(90)}), coordinator)
	assert.Equal(t, e1, rx.State().Epoch, "same effect keeps counters")

	fadeIn := int(protocol.EffectFadeIn)
	rx.OnPacket(packet(protocol.Request{Effect: &fadeIn}), coordinator)
	assert.Equal(t, e1+1, rx.State().Epoch, "pulse -> fade in")
}

func TestState_RenderUsesOwnRegionsOnly(t *testing.T) {
	rx := newTestReceiver(t, 2)
	rx.OnPacket(packet(protocol.Request{Regions: []int{0, 1, 6, 10, 19}}), coordinator)

	fx := rx.State().Render(rx.Layout())
	assert.Equal(t, []bool{false, true, false, false, false, true}, fx.Enabled)
}
