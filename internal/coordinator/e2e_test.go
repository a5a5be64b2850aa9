package coordinator_test

import (
	"context"
	"testing"
	"time"

	"github.com/ta25stage/stagelink/internal/coordinator"
	"github.com/ta25stage/stagelink/internal/dispatch"
	"github.com/ta25stage/stagelink/internal/infrastructure/mqtt"
	"github.com/ta25stage/stagelink/internal/panel"
	"github.com/ta25stage/stagelink/internal/protocol"
	"github.com/ta25stage/stagelink/internal/radio"
	"github.com/ta25stage/stagelink/internal/radio/radiotest"
	"github.com/ta25stage/stagelink/internal/regions"
	"github.com/ta25stage/stagelink/internal/sequence"
)

// Drives a JSON command from the bus through the dispatcher and the radio
// to every panel receiver.
func TestCommandReachesPanels(t *testing.T) {
	medium := radiotest.NewMedium(radio.DefaultChannel)
	link := medium.Attach(radio.Addr{0x02, 0, 0, 0, 0, 1})
	d := dispatch.New(link, dispatch.NewRegistry(1, 2, 3, 4), dispatch.Options{})

	receivers := make(map[uint8]*panel.Receiver)
	for id := uint8(1); id <= regions.NumPanels; id++ {
		rx, err := panel.NewReceiver(id, nil)
		if err != nil {
			t.Fatal(err)
		}
		medium.Attach(dispatch.PanelAddr(id)).Handle(rx.OnPacket)
		receivers[id] = rx
	}

	topics := mqtt.Topics{}
	r := coordinator.NewRunner(d, sequence.New(d, sequence.Options{}), nil, coordinator.Options{
		FromTopic: topics.PanelFromTopic,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx) //nolint:errcheck // returns nil on cancel
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	payload := `{"mode":2,"groupId":1,"effectType":4,"brightness":255,"speed":100}`
	if err := r.HandleCommand(topics.Command(), []byte(payload)); err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}

	waitFor(t, func() bool { return receivers[4].Stats().Accepted == 1 })

	for id, rx := range receivers {
		p := rx.State().Packet
		if p.Mode != protocol.ModeGroup || p.Effect != protocol.EffectPulse {
			t.Errorf("panel %d state = %s", id, p)
		}
		if p.Regions != regions.GroupSet(regions.Raavana) {
			t.Errorf("panel %d regions = %v", id, p.Regions.Indices())
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}
