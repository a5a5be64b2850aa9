package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ta25stage/stagelink/internal/protocol"
	"github.com/ta25stage/stagelink/internal/radio"
	"github.com/ta25stage/stagelink/internal/radio/radiotest"
)

// ─── Mock Dependencies ─────────────────────────────────────────────

type recordLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordLogger) Debug(string, ...any) {}
func (l *recordLogger) Info(string, ...any)  {}
func (l *recordLogger) Error(string, ...any) {}
func (l *recordLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

type switchGate struct{ allowed bool }

func (g *switchGate) TransmitAllowed() bool { return g.allowed }

type panelSink struct {
	mu      sync.Mutex
	packets []protocol.Packet
}

func (s *panelSink) handle(payload []byte, _ radio.Addr) {
	p, err := protocol.Decode(payload)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.packets = append(s.packets, p)
	s.mu.Unlock()
}

func (s *panelSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.packets)
}

// ─── Helpers ───────────────────────────────────────────────────────

func setup(t *testing.T, opts Options) (*Dispatcher, *radiotest.Medium, map[uint8]*panelSink) {
	t.Helper()

	medium := radiotest.NewMedium(radio.DefaultChannel)
	coord := medium.Attach(radio.Addr{0x02, 0, 0, 0, 0, 1})

	sinks := make(map[uint8]*panelSink)
	for id := uint8(1); id <= 4; id++ {
		s := &panelSink{}
		medium.Attach(PanelAddr(id)).Handle(s.handle)
		sinks[id] = s
	}

	return New(coord, NewRegistry(1, 2, 3, 4), opts), medium, sinks
}

// ─── Tests ─────────────────────────────────────────────────────────

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry(0, 1, 2, 3, 4)

	if got := r.Panels(); fmt.Sprint(got) != "[1 2 3 4]" {
		t.Errorf("Panels() = %v, want [1 2 3 4]", got)
	}

	a, err := r.Resolve(3)
	if err != nil {
		t.Fatalf("Resolve(3) error = %v", err)
	}
	if a.String() != "aa:aa:aa:aa:aa:03" {
		t.Errorf("Resolve(3) = %s", a)
	}

	if a, _ := r.Resolve(0); !a.IsBroadcast() {
		t.Errorf("Resolve(0) = %s, want broadcast", a)
	}

	if _, err := r.Resolve(5); !errors.Is(err, ErrUnknownPanel) {
		t.Errorf("Resolve(5) error = %v, want ErrUnknownPanel", err)
	}
}

func TestSend_BroadcastReachesEveryPanel(t *testing.T) {
	d, medium, sinks := setup(t, Options{})

	p := protocol.Encode(protocol.Request{PanelID: 0, Brightness: protocol.Int(255)})
	if err := d.Send(context.Background(), p); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	frames := medium.Sent()
	if len(frames) != 1 || !frames[0].Dst.IsBroadcast() {
		t.Fatalf("medium saw %+v, want one broadcast frame", frames)
	}
	for id, s := range sinks {
		if s.count() != 1 {
			t.Errorf("panel %d received %d packets, want 1", id, s.count())
		}
	}
}

func TestSend_UnicastReachesOnlyTarget(t *testing.T) {
	d, _, sinks := setup(t, Options{})

	if err := d.Send(context.Background(), protocol.Encode(protocol.Request{PanelID: 2})); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	for id, s := range sinks {
		want := 0
		if id == 2 {
			want = 1
		}
		if s.count() != want {
			t.Errorf("panel %d received %d packets, want %d", id, s.count(), want)
		}
	}
}

func TestSend_UnknownPanelIsDropped(t *testing.T) {
	log := &recordLogger{}
	d, medium, _ := setup(t, Options{Logger: log})

	var results []Result
	d.Observe(func(r Result) { results = append(results, r) })

	err := d.Send(context.Background(), protocol.Encode(protocol.Request{PanelID: 9}))
	if !errors.Is(err, ErrUnknownPanel) {
		t.Fatalf("Send() error = %v, want ErrUnknownPanel", err)
	}
	if n := len(medium.Sent()); n != 0 {
		t.Errorf("medium saw %d frames, want 0", n)
	}
	if st := d.Stats(); st.Unknown != 1 || st.Sent != 0 {
		t.Errorf("Stats() = %+v", st)
	}
	if len(results) != 1 || !errors.Is(results[0].Err, ErrUnknownPanel) {
		t.Errorf("observer results = %+v", results)
	}
	if len(log.warns) != 1 {
		t.Errorf("warnings = %v, want one", log.warns)
	}
}

func TestSend_LinkFailureNotRetried(t *testing.T) {
	medium := radiotest.NewMedium(radio.DefaultChannel)
	coord := medium.Attach(radio.Addr{0x02, 0, 0, 0, 0, 1})
	coord.FailSends(errors.New("tx queue full"))
	d := New(coord, NewRegistry(1), Options{})

	if err := d.Send(context.Background(), protocol.Encode(protocol.Request{})); err == nil {
		t.Fatal("Send() error = nil, want link error")
	}
	if st := d.Stats(); st.Failed != 1 || st.Sent != 0 {
		t.Errorf("Stats() = %+v, want one failure", st)
	}
	if d.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", d.Failures())
	}
}

func TestSend_SuppressedByGate(t *testing.T) {
	gate := &switchGate{allowed: false}
	d, medium, _ := setup(t, Options{Gate: gate})

	var results []Result
	d.Observe(func(r Result) { results = append(results, r) })

	err := d.Send(context.Background(), protocol.Encode(protocol.Request{PanelID: 2}))
	if !errors.Is(err, ErrTransmitSuspended) {
		t.Fatalf("Send() error = %v, want ErrTransmitSuspended", err)
	}
	if n := len(medium.Sent()); n != 0 {
		t.Errorf("medium saw %d frames while suspended", n)
	}
	if len(results) != 1 {
		t.Fatalf("observer saw %d results while suspended, want 1", len(results))
	}
	if got := results[0].Outcome(); got != OutcomeSuppressed {
		t.Errorf("Outcome() = %q, want %q", got, OutcomeSuppressed)
	}
	if results[0].Packet.PanelID != 2 {
		t.Errorf("observed PanelID = %d, want 2", results[0].Packet.PanelID)
	}

	gate.allowed = true
	if err := d.Send(context.Background(), protocol.Encode(protocol.Request{})); err != nil {
		t.Fatalf("Send() after resume error = %v", err)
	}
	if st := d.Stats(); st.Suppressed != 1 || st.Sent != 1 {
		t.Errorf("Stats() = %+v", st)
	}
	if len(results) != 2 || results[1].Outcome() != OutcomeSent {
		t.Errorf("observer results after resume = %+v", results)
	}
}

func TestCheckChannel_MismatchOnlyWarns(t *testing.T) {
	log := &recordLogger{}
	medium := radiotest.NewMedium(6)
	coord := medium.Attach(radio.Addr{0x02, 0, 0, 0, 0, 1})
	medium.Attach(PanelAddr(1))
	d := New(coord, NewRegistry(1), Options{Logger: log})

	if d.CheckChannel(radio.DefaultChannel) {
		t.Error("CheckChannel() = true, want false on mismatch")
	}
	if len(log.warns) != 1 {
		t.Errorf("warnings = %v, want one", log.warns)
	}

	if err := d.Send(context.Background(), protocol.Encode(protocol.Request{PanelID: 1})); err != nil {
		t.Errorf("Send() after mismatch error = %v, want operation to continue", err)
	}
}

func TestResult_Outcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, OutcomeSent},
		{fmt.Errorf("resolve: %w", ErrUnknownPanel), OutcomeUnknownPanel},
		{ErrTransmitSuspended, OutcomeSuppressed},
		{errors.New("write udp: network is unreachable"), OutcomeFailed},
	}
	for _, tt := range tests {
		if got := (Result{Err: tt.err}).Outcome(); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
