package main

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ta25stage/stagelink/internal/dispatch"
	"github.com/ta25stage/stagelink/internal/infrastructure/config"
	"github.com/ta25stage/stagelink/internal/infrastructure/logging"
	"github.com/ta25stage/stagelink/internal/infrastructure/mqtt"
	"github.com/ta25stage/stagelink/internal/protocol"
	"github.com/ta25stage/stagelink/internal/radio"
	"github.com/ta25stage/stagelink/internal/regions"
	"github.com/ta25stage/stagelink/internal/supervisor"
)

func setConfigEnv(t *testing.T, path string) {
	t.Helper()
	t.Setenv("STAGELINK_CONFIG", path)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	setConfigEnv(t, "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when the journal is
// enabled without a path.
func TestRun_MissingDatabasePath(t *testing.T) {
	setConfigEnv(t, writeConfig(t, `
database:
  enabled: true
  path: ""
api:
  enabled: false
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_StartsWithoutBroker verifies the coordinator comes up and shuts
// down cleanly when no MQTT broker is reachable.
func TestRun_StartsWithoutBroker(t *testing.T) {
	dir := t.TempDir()
	setConfigEnv(t, writeConfig(t, `
device:
  name: test-coordinator
database:
  enabled: true
  path: "`+filepath.Join(dir, "test.db")+`"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1
    client_id: "test-coordinator"
  qos: 1
api:
  enabled: false
influxdb:
  enabled: false
logging:
  level: error
  format: text
  output: stdout
radio:
  channel: 1
  port: 47690
  bind_host: "127.0.0.1"
  broadcast_host: "127.0.0.1"
`))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v, want clean shutdown", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "test.db")); err != nil {
		t.Errorf("journal database not created: %v", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("STAGELINK_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	setConfigEnv(t, expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestHealthCheck_NilClients verifies disabled stores are skipped.
func TestHealthCheck_NilClients(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil); err != nil {
		t.Errorf("healthCheck(nil, nil) = %v, want nil", err)
	}
}

func TestParsePeers(t *testing.T) {
	peers, err := parsePeers(map[string]string{"aa:aa:aa:aa:aa:01": "10.0.0.11"})
	if err != nil {
		t.Fatalf("parsePeers() error = %v", err)
	}
	if got := peers[dispatch.PanelAddr(1)]; got != "10.0.0.11" {
		t.Errorf("peer for panel 1 = %q, want 10.0.0.11", got)
	}

	if _, err := parsePeers(map[string]string{"not-an-address": "x"}); err == nil {
		t.Error("parsePeers() should reject a malformed address")
	}
}

// TestOpenCoordinatorLink_UnicastFallsBackToBroadcastHost verifies a panel
// without a configured host is reached through the broadcast host.
func TestOpenCoordinatorLink_UnicastFallsBackToBroadcastHost(t *testing.T) {
	sink, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer sink.Close()

	cfg := config.RadioConfig{
		Channel:       1,
		Port:          47600,
		BindHost:      "127.0.0.1",
		BroadcastHost: sink.LocalAddr().String(),
	}
	link, err := openCoordinatorLink(cfg, dispatch.NewRegistry(regions.PanelIDs()...), logging.Default(logging.ServiceCoordinator))
	if err != nil {
		t.Fatalf("openCoordinatorLink() error = %v", err)
	}
	defer link.Close()

	if link.LocalAddr() != defaultCoordinatorAddr {
		t.Errorf("LocalAddr() = %s, want %s", link.LocalAddr(), defaultCoordinatorAddr)
	}

	if err := link.Send(context.Background(), dispatch.PanelAddr(3), []byte{1, 2, 3}); err != nil {
		t.Fatalf("Send() to panel 3 error = %v", err)
	}

	if err := sink.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("deadline: %v", err)
	}
	buf := make([]byte, 512)
	n, _, err := sink.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("no frame received: %v", err)
	}
	if n <= 3 {
		t.Errorf("frame length = %d, want header plus payload", n)
	}
}

func TestOpenCoordinatorLink_ConfiguredAddress(t *testing.T) {
	cfg := config.RadioConfig{
		Channel:  1,
		Port:     47600,
		BindHost: "127.0.0.1",
		Address:  "02:00:00:00:00:09",
	}
	link, err := openCoordinatorLink(cfg, dispatch.NewRegistry(), logging.Default(logging.ServiceCoordinator))
	if err != nil {
		t.Fatalf("openCoordinatorLink() error = %v", err)
	}
	defer link.Close()

	want := radio.Addr{0x02, 0, 0, 0, 0, 0x09}
	if link.LocalAddr() != want {
		t.Errorf("LocalAddr() = %s, want %s", link.LocalAddr(), want)
	}
}

func TestTransportFor(t *testing.T) {
	if _, ok := transportFor(config.CoordinatorConfig{}).(supervisor.AlwaysAssociated); !ok {
		t.Error("empty interface should select AlwaysAssociated")
	}
	if _, ok := transportFor(config.CoordinatorConfig{NetworkInterface: "wlan0"}).(*supervisor.NetTransport); !ok {
		t.Error("named interface should select NetTransport")
	}
}

func TestSupervisorConfig(t *testing.T) {
	got := supervisorConfig(config.CoordinatorConfig{
		HeartbeatInterval: 30 * time.Second,
		WatchdogInterval:  time.Minute,
		SuspendDuration:   5 * time.Minute,
		Backoff: config.BackoffConfig{
			Initial: 5 * time.Second,
			Step:    10 * time.Second,
			Max:     2 * time.Minute,
		},
		RecoveryThreshold: 5,
		LowPowerThreshold: 10,
	})

	want := supervisor.Config{
		InitialBackoff:    5 * time.Second,
		BackoffStep:       10 * time.Second,
		MaxBackoff:        2 * time.Minute,
		RecoveryThreshold: 5,
		LowPowerThreshold: 10,
		HeartbeatInterval: 30 * time.Second,
		WatchdogInterval:  time.Minute,
		SuspendDuration:   5 * time.Minute,
	}
	if got != want {
		t.Errorf("supervisorConfig() = %+v, want %+v", got, want)
	}
}

func TestDispatchPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	p := protocol.Encode(protocol.Request{
		PanelID:    2,
		Regions:    []int{5, 6, 7},
		Brightness: protocol.Int(200),
	})

	pt := dispatchPoint(dispatch.Result{Packet: p, At: at, Err: errors.New("boom")})

	if pt.PanelID != 2 || pt.Regions != 3 || pt.Brightness != 200 {
		t.Errorf("dispatchPoint() = %+v", pt)
	}
	if pt.Outcome != dispatch.OutcomeFailed {
		t.Errorf("Outcome = %q, want %q", pt.Outcome, dispatch.OutcomeFailed)
	}
	if !pt.At.Equal(at) {
		t.Errorf("At = %v, want %v", pt.At, at)
	}
	if pt.Effect != p.Effect.String() || pt.Mode != p.Mode.String() {
		t.Errorf("Effect/Mode = %q/%q", pt.Effect, pt.Mode)
	}
}

// TestIntakeSubscriptions verifies the command topics are tracked before
// the first connect and released again at shutdown.
func TestIntakeSubscriptions(t *testing.T) {
	client := mqtt.New(config.MQTTConfig{
		Broker:      config.MQTTBrokerConfig{Host: "127.0.0.1", Port: 1883, ClientID: "stagelink-test"},
		QoS:         1,
		TopicPrefix: "stagelink-test",
	})
	topics := client.Topics()
	noop := func(string, []byte) error { return nil }
	intake := map[string]mqtt.MessageHandler{
		topics.Command():          noop,
		topics.AllPanelCommands(): noop,
		topics.Audio():            noop,
	}

	if err := subscribe(client, 1, intake); err != nil {
		t.Fatalf("subscribe() error = %v", err)
	}
	if got := client.SubscriptionCount(); got != 3 {
		t.Errorf("SubscriptionCount() = %d, want 3", got)
	}

	unsubscribe(client, intake, logging.Default("test"))
	if got := client.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() after unsubscribe = %d, want 0", got)
	}
}
