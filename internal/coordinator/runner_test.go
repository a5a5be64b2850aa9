package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ta25stage/stagelink/internal/dispatch"
	"github.com/ta25stage/stagelink/internal/protocol"
	"github.com/ta25stage/stagelink/internal/sequence"
	"github.com/ta25stage/stagelink/internal/supervisor"
)

// ─── Mock Dependencies ─────────────────────────────────────────────

type mockDispatcher struct {
	mu      sync.Mutex
	packets []protocol.Packet
	err     error
}

func (d *mockDispatcher) Send(_ context.Context, p protocol.Packet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.packets = append(d.packets, p)
	return d.err
}

func (d *mockDispatcher) sent() []protocol.Packet {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]protocol.Packet(nil), d.packets...)
}

// gatedSequencer blocks each Run until release is closed.
type gatedSequencer struct {
	started chan uint8
	release chan struct{}
	err     error
	runs    atomic.Int32
}

func newGatedSequencer() *gatedSequencer {
	return &gatedSequencer{started: make(chan uint8, 4), release: make(chan struct{})}
}

func (s *gatedSequencer) Run(ctx context.Context, id uint8) error {
	s.runs.Add(1)
	s.started <- id
	select {
	case <-s.release:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type mockSupervisor struct {
	ticks atomic.Int32
	err   error
}

func (s *mockSupervisor) Tick(context.Context) error {
	s.ticks.Add(1)
	return s.err
}

type captureLogger struct {
	noopLogger
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (l *captureLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *captureLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

var fixedNow = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func newTestRunner(d Dispatcher, seq Sequencer, opts Options) *Runner {
	if opts.FromTopic == nil {
		opts.FromTopic = topics.PanelFromTopic
	}
	opts.Now = func() time.Time { return fixedNow }
	return NewRunner(d, seq, nil, opts)
}

// drain executes everything queued so far on the calling goroutine.
func drain(t *testing.T, r *Runner) {
	t.Helper()
	for {
		select {
		case j := <-r.inbox:
			r.execute(context.Background(), j)
		default:
			return
		}
	}
}

// ─── Tests ─────────────────────────────────────────────────────────

func TestRunner_DirectCommandDispatched(t *testing.T) {
	d := &mockDispatcher{}
	r := newTestRunner(d, newGatedSequencer(), Options{})

	err := r.HandleCommand(topics.Command(), []byte(`{"panelId":2,"effectType":2,"brightness":120,"regions":[5,7]}`))
	if err != nil {
		t.Fatalf("HandleCommand() error = %v", err)
	}
	drain(t, r)

	sent := d.sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d packets, want 1", len(sent))
	}
	p := sent[0]
	if p.PanelID != 2 || p.Effect != protocol.EffectWave || p.Brightness != 120 {
		t.Errorf("packet = %s", p)
	}
	if p.Speed != protocol.DefaultSpeed {
		t.Errorf("Speed = %d, want default %d", p.Speed, protocol.DefaultSpeed)
	}

	lc, ok := r.LastCommand()
	if !ok {
		t.Fatal("LastCommand() not set")
	}
	if lc.Source != SourceCommand || lc.Outcome != dispatch.OutcomeSent || lc.Effect != "wave" {
		t.Errorf("LastCommand = %+v", lc)
	}
	if len(lc.Regions) != 2 || lc.Regions[0] != 5 || lc.Regions[1] != 7 {
		t.Errorf("LastCommand.Regions = %v", lc.Regions)
	}
	if !lc.At.Equal(fixedNow) {
		t.Errorf("LastCommand.At = %v", lc.At)
	}

	st := r.Stats()
	if st.Received != 1 || st.Dispatched != 1 || st.DispatchFailures != 0 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestRunner_CommandsKeepArrivalOrder(t *testing.T) {
	d := &mockDispatcher{}
	r := newTestRunner(d, newGatedSequencer(), Options{})

	for _, b := range []string{`{"brightness":1}`, `{"brightness":2}`, `{"brightness":3}`} {
		if err := r.HandleCommand(topics.Command(), []byte(b)); err != nil {
			t.Fatal(err)
		}
	}
	drain(t, r)

	sent := d.sent()
	if len(sent) != 3 {
		t.Fatalf("sent %d packets, want 3", len(sent))
	}
	for i, p := range sent {
		if int(p.Brightness) != i+1 {
			t.Errorf("packet %d brightness = %d", i, p.Brightness)
		}
	}
}

func TestRunner_ParseErrorCounted(t *testing.T) {
	d := &mockDispatcher{}
	r := newTestRunner(d, newGatedSequencer(), Options{})

	err := r.HandleCommand(topics.Command(), []byte(`{oops`))
	if !errors.Is(err, ErrParse) {
		t.Errorf("HandleCommand() error = %v, want ErrParse", err)
	}
	err = r.HandleAudio(topics.Audio(), []byte(`{}`))
	if !errors.Is(err, ErrParse) {
		t.Errorf("HandleAudio() error = %v, want ErrParse", err)
	}
	drain(t, r)

	if len(d.sent()) != 0 {
		t.Error("malformed command was dispatched")
	}
	if st := r.Stats(); st.ParseErrors != 2 || st.Received != 1 {
		t.Errorf("Stats = %+v", st)
	}
	if _, ok := r.LastCommand(); ok {
		t.Error("LastCommand set by malformed input")
	}
}

func TestRunner_InboxFullDrops(t *testing.T) {
	log := &captureLogger{}
	r := newTestRunner(&mockDispatcher{}, newGatedSequencer(), Options{InboxSize: 2, Logger: log})

	for i := 0; i < 5; i++ {
		if err := r.HandleCommand(topics.Command(), []byte(`{}`)); err != nil {
			t.Fatal(err)
		}
	}

	if got := r.Stats().InboxDropped; got != 3 {
		t.Errorf("InboxDropped = %d, want 3", got)
	}
	if len(log.warns) != 3 {
		t.Errorf("warnings = %d, want 3", len(log.warns))
	}
}

func TestRunner_DispatchFailureRecorded(t *testing.T) {
	d := &mockDispatcher{err: dispatch.ErrTransmitSuspended}
	r := newTestRunner(d, newGatedSequencer(), Options{})

	if err := r.HandleCommand(topics.Command(), []byte(`{"panelId":1}`)); err != nil {
		t.Fatal(err)
	}
	drain(t, r)

	lc, _ := r.LastCommand()
	if lc.Outcome != dispatch.OutcomeSuppressed {
		t.Errorf("Outcome = %q, want %q", lc.Outcome, dispatch.OutcomeSuppressed)
	}
	if st := r.Stats(); st.DispatchFailures != 1 || st.Dispatched != 0 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestRunner_AudioAppliesToReactiveCommand(t *testing.T) {
	d := &mockDispatcher{}
	r := newTestRunner(d, newGatedSequencer(), Options{})

	cmd := `{"panelId":3,"effectType":3,"brightness":200,"audioReactive":true,"audioIntensity":10}`
	if err := r.HandleCommand(topics.PanelCommand(3), []byte(cmd)); err != nil {
		t.Fatal(err)
	}
	if err := r.HandleAudio(topics.Audio(), []byte(`{"intensity":180}`)); err != nil {
		t.Fatal(err)
	}
	if err := r.HandleAudio(topics.Audio(), []byte(`{"intensity":400}`)); err != nil {
		t.Fatal(err)
	}
	drain(t, r)

	sent := d.sent()
	if len(sent) != 3 {
		t.Fatalf("sent %d packets, want 3", len(sent))
	}
	if sent[1].AudioIntensity != 180 || sent[1].PanelID != 3 || sent[1].Brightness != 200 {
		t.Errorf("audio re-dispatch = %s", sent[1])
	}
	if sent[2].AudioIntensity != 255 {
		t.Errorf("intensity = %d, want clamped 255", sent[2].AudioIntensity)
	}

	lc, _ := r.LastCommand()
	if lc.Source != SourceAudio {
		t.Errorf("Source = %q, want %q", lc.Source, SourceAudio)
	}
}

func TestRunner_AudioIgnoredWithoutReactiveCommand(t *testing.T) {
	d := &mockDispatcher{}
	r := newTestRunner(d, newGatedSequencer(), Options{})

	if err := r.HandleAudio(topics.Audio(), []byte(`{"intensity":90}`)); err != nil {
		t.Fatal(err)
	}
	drain(t, r)
	if len(d.sent()) != 0 {
		t.Error("audio dispatched with no prior command")
	}

	if err := r.HandleCommand(topics.Command(), []byte(`{"effectType":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := r.HandleAudio(topics.Audio(), []byte(`{"intensity":90}`)); err != nil {
		t.Fatal(err)
	}
	drain(t, r)
	if got := len(d.sent()); got != 1 {
		t.Errorf("sent %d packets, want 1 (audio ignored for non-reactive command)", got)
	}
}

func TestRunner_SequenceCollisionDropsSecond(t *testing.T) {
	seq := newGatedSequencer()
	r := newTestRunner(&mockDispatcher{}, seq, Options{})

	if err := r.HandleCommand(topics.Command(), []byte(`{"mode":1,"sequenceId":1}`)); err != nil {
		t.Fatal(err)
	}
	if !r.SequenceActive() {
		t.Fatal("SequenceActive() = false after queueing a sequence")
	}

	// Second request while the first is still queued.
	if err := r.HandleCommand(topics.Command(), []byte(`{"mode":1,"sequenceId":2}`)); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		r.execute(context.Background(), <-r.inbox)
		close(done)
	}()
	if id := <-seq.started; id != 1 {
		t.Errorf("started sequence %d, want 1", id)
	}

	// Third request while the first is running.
	if err := r.HandleCommand(topics.Command(), []byte(`{"mode":1,"sequenceId":3}`)); err != nil {
		t.Fatal(err)
	}
	close(seq.release)
	<-done

	if got := seq.runs.Load(); got != 1 {
		t.Errorf("sequencer runs = %d, want 1", got)
	}
	if got := r.Stats().SequencesDropped; got != 2 {
		t.Errorf("SequencesDropped = %d, want 2", got)
	}
	if r.SequenceActive() {
		t.Error("SequenceActive() = true after the sequence finished")
	}
	lc, _ := r.LastCommand()
	if lc.Source != SourceSequence || lc.SequenceID != 1 || lc.Outcome != "completed" {
		t.Errorf("LastCommand = %+v", lc)
	}

	// A new request is accepted once idle.
	if err := r.HandleCommand(topics.Command(), []byte(`{"mode":1,"sequenceId":2}`)); err != nil {
		t.Fatal(err)
	}
	if !r.SequenceActive() {
		t.Error("sequence after completion was not accepted")
	}
}

func TestRunner_SequenceOutcomes(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{sequence.ErrUnknownSequence, "unknown_sequence"},
		{sequence.ErrSequenceRunning, "dropped"},
		{errors.New("radio on fire"), "failed"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			seq := newGatedSequencer()
			seq.err = tt.err
			close(seq.release)
			r := newTestRunner(&mockDispatcher{}, seq, Options{})

			if err := r.HandleCommand(topics.Command(), []byte(`{"mode":1,"sequenceId":9}`)); err != nil {
				t.Fatal(err)
			}
			drain(t, r)

			lc, _ := r.LastCommand()
			if lc.Outcome != tt.want {
				t.Errorf("Outcome = %q, want %q", lc.Outcome, tt.want)
			}
			if r.SequenceActive() {
				t.Error("SequenceActive() stuck after failure")
			}
		})
	}
}

func TestRunner_SequenceInboxFullReleasesSlot(t *testing.T) {
	r := newTestRunner(&mockDispatcher{}, newGatedSequencer(), Options{InboxSize: 1})

	if err := r.HandleCommand(topics.Command(), []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if err := r.HandleCommand(topics.Command(), []byte(`{"mode":1,"sequenceId":1}`)); err != nil {
		t.Fatal(err)
	}
	if r.SequenceActive() {
		t.Error("SequenceActive() = true for a sequence that never entered the inbox")
	}
}

func TestRunner_RunTicksSupervisorAndStops(t *testing.T) {
	d := &mockDispatcher{}
	sup := &mockSupervisor{}
	r := NewRunner(d, newGatedSequencer(), sup, Options{ControlTick: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	if err := r.HandleCommand(topics.Command(), []byte(`{"brightness":9}`)); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for len(d.sent()) == 0 || sup.ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("sent=%d ticks=%d before deadline", len(d.sent()), sup.ticks.Load())
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestRunner_SupervisorErrorsLogged(t *testing.T) {
	tests := []struct {
		err        error
		wantWarns  int
		wantErrors int
	}{
		{supervisor.ErrTransportDegraded, 1, 0},
		{supervisor.ErrConnectivityExhausted, 0, 1},
		{supervisor.ErrBusUnavailable, 0, 0},
		{nil, 0, 0},
	}
	for _, tt := range tests {
		log := &captureLogger{}
		r := NewRunner(&mockDispatcher{}, newGatedSequencer(), &mockSupervisor{err: tt.err}, Options{Logger: log})
		r.tickSupervisor(context.Background())

		if len(log.warns) != tt.wantWarns || len(log.errors) != tt.wantErrors {
			t.Errorf("err=%v: warns=%d errors=%d, want %d/%d", tt.err, len(log.warns), len(log.errors), tt.wantWarns, tt.wantErrors)
		}
	}
}
