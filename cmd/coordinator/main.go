// StageLink Coordinator - stage lighting show controller
//
// This is the main entry point for the coordinator. The coordinator
// bridges the show network's MQTT bus to the panel radio link:
//   - Commands on <prefix>/command and <prefix>/<panel>/command become
//     radio packets
//   - Audio intensity updates re-dispatch audio-reactive commands
//   - Predefined shows run as timed packet sequences
//   - Heartbeats report connectivity on <prefix>/telemetry
//
// For the wire format, see: internal/protocol
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "github.com/ta25stage/stagelink/migrations"

	"github.com/ta25stage/stagelink/internal/api"
	"github.com/ta25stage/stagelink/internal/coordinator"
	"github.com/ta25stage/stagelink/internal/dispatch"
	"github.com/ta25stage/stagelink/internal/infrastructure/config"
	"github.com/ta25stage/stagelink/internal/infrastructure/database"
	"github.com/ta25stage/stagelink/internal/infrastructure/influxdb"
	"github.com/ta25stage/stagelink/internal/infrastructure/logging"
	"github.com/ta25stage/stagelink/internal/infrastructure/mqtt"
	"github.com/ta25stage/stagelink/internal/journal"
	"github.com/ta25stage/stagelink/internal/radio"
	"github.com/ta25stage/stagelink/internal/regions"
	"github.com/ta25stage/stagelink/internal/sequence"
	"github.com/ta25stage/stagelink/internal/supervisor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// defaultCoordinatorAddr is the coordinator's hardware address when the
// config does not set one.
var defaultCoordinatorAddr = radio.Addr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default(logging.ServiceCoordinator)
	log.Info("starting StageLink coordinator",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, logging.ServiceCoordinator, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Dispatch journal (optional)
	var db *database.DB
	var journalRepo journal.Repository
	var recorder *journal.Recorder
	if cfg.Database.Enabled {
		db, err = database.Open(database.FromConfig(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database opened", "path", cfg.Database.Path)

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		journalRepo = journal.NewSQLiteRepository(db.DB)
		recorder = journal.NewRecorder(journalRepo, journal.DefaultBuffer, log.Component("journal"))
	} else {
		log.Info("dispatch journal disabled")
	}

	// Time-series metrics (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// MQTT client. The supervisor owns connecting and reconnecting, so the
	// broker does not have to be up for the coordinator to start.
	mqttClient := mqtt.New(cfg.MQTT)
	mqttClient.SetLogger(log.Component("mqtt"))
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connected", "client_id", mqttClient.ClientID())
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	topics := mqttClient.Topics()

	// Radio link
	registry := dispatch.NewRegistry(regions.PanelIDs()...)
	link, err := openCoordinatorLink(cfg.Radio, registry, log.Component("radio"))
	if err != nil {
		return fmt.Errorf("opening radio link: %w", err)
	}
	defer func() {
		log.Info("closing radio link")
		if closeErr := link.Close(); closeErr != nil {
			log.Error("error closing radio link", "error", closeErr)
		}
	}()
	log.Info("radio link open",
		"address", link.LocalAddr().String(),
		"channel", link.Channel(),
		"udp", link.BoundAddr().String(),
	)

	// Telemetry, supervisor, dispatcher and runner depend on each other;
	// the telemetry sources are attached once all four exist.
	var heartbeatObservers []func(coordinator.Heartbeat)
	telemetryCfg := coordinator.TelemetryConfig{
		Device:    cfg.Device.Name,
		Topic:     topics.Telemetry(),
		QoS:       byte(cfg.MQTT.QoS), //nolint:gosec // validated 0-2
		Publisher: mqttClient,
		Observer: func(hb coordinator.Heartbeat) {
			for _, o := range heartbeatObservers {
				o(hb)
			}
		},
	}
	if influxClient != nil {
		telemetryCfg.Metrics = influxClient
	}
	telemetry := coordinator.NewTelemetry(telemetryCfg)

	sup := supervisor.New(mqttClient, transportFor(cfg.Coordinator), supervisorConfig(cfg.Coordinator), supervisor.Options{
		Logger:    log.Component("supervisor"),
		Heartbeat: telemetry,
	})

	dispatcher := dispatch.New(link, registry, dispatch.Options{
		Logger: log.Component("dispatch"),
		Gate:   sup,
	})
	dispatcher.CheckChannel(radio.DefaultChannel)
	if recorder != nil {
		dispatcher.Observe(recorder.Observe)
	}
	if influxClient != nil {
		dispatcher.Observe(func(r dispatch.Result) {
			influxClient.WriteDispatch(dispatchPoint(r))
		})
	}

	orchestrator := sequence.New(dispatcher, sequence.Options{
		Logger: log.Component("sequence"),
	})
	log.Info("show catalogue loaded", "shows", len(orchestrator.Shows()))

	runner := coordinator.NewRunner(dispatcher, orchestrator, sup, coordinator.Options{
		Logger:      log.Component("coordinator"),
		ControlTick: cfg.Coordinator.ControlTick,
		InboxSize:   cfg.Coordinator.InboxSize,
		FromTopic:   topics.PanelFromTopic,
	})
	telemetry.SetSources(dispatcher, runner)

	qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated 0-2
	intake := map[string]mqtt.MessageHandler{
		topics.Command():          runner.HandleCommand,
		topics.AllPanelCommands(): runner.HandleCommand,
		topics.Audio():            runner.HandleAudio,
	}
	if err := subscribe(mqttClient, qos, intake); err != nil {
		return err
	}
	log.Info("command intake subscribed", "topics", mqttClient.SubscriptionCount())

	// HTTP API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:       cfg.API,
			Logger:       log.Component("api"),
			Version:      version,
			Connectivity: sup,
			Control:      runner,
			Dispatcher:   dispatcher,
			Shows:        orchestrator,
			Bus:          mqttClient,
		}
		if db != nil {
			deps.DB = db
			deps.Journal = journalRepo
			deps.Recorder = recorder
		}
		apiServer, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
		dispatcher.Observe(apiServer.BroadcastDispatch)
		heartbeatObservers = append(heartbeatObservers, apiServer.BroadcastHeartbeat)
		log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	if recorder != nil {
		g.Go(func() error { return recorder.Run(gctx) })
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	waitErr := g.Wait()
	unsubscribe(mqttClient, intake, log)
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return fmt.Errorf("control loop: %w", waitErr)
	}

	log.Info("shutdown signal received, cleaning up",
		"commands", runner.Stats().Received,
		"dispatch_failures", dispatcher.Failures(),
	)
	log.Info("StageLink coordinator stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses STAGELINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("STAGELINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openCoordinatorLink opens the send-only UDP link. Every registered panel
// gets a route: its configured host, or the broadcast host when none is
// configured, since panels filter frames by hardware address.
func openCoordinatorLink(cfg config.RadioConfig, registry *dispatch.Registry, log *logging.Logger) (*radio.UDPLink, error) {
	local := defaultCoordinatorAddr
	if cfg.Address != "" {
		addr, err := radio.ParseAddr(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("radio address: %w", err)
		}
		local = addr
	}

	configured, err := parsePeers(cfg.Peers)
	if err != nil {
		return nil, err
	}
	peers := make(map[radio.Addr]string, len(configured))
	for _, addr := range registry.Addrs() {
		host, ok := configured[addr]
		if !ok {
			host = cfg.BroadcastHost
		}
		peers[addr] = host
	}

	return radio.NewUDP(radio.UDPConfig{
		Local:         local,
		Channel:       uint8(cfg.Channel), //nolint:gosec // validated by config
		BasePort:      cfg.Port,
		BindHost:      cfg.BindHost,
		BroadcastHost: cfg.BroadcastHost,
		Peers:         peers,
		Logger:        log,
	})
}

// parsePeers converts the configured address table.
func parsePeers(in map[string]string) (map[radio.Addr]string, error) {
	out := make(map[radio.Addr]string, len(in))
	for s, host := range in {
		addr, err := radio.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("radio peer %q: %w", s, err)
		}
		out[addr] = host
	}
	return out, nil
}

// transportFor selects the link watchdog's transport.
func transportFor(cfg config.CoordinatorConfig) supervisor.Transport {
	if cfg.NetworkInterface == "" {
		return supervisor.AlwaysAssociated{}
	}
	return supervisor.NewNetTransport(cfg.NetworkInterface)
}

// supervisorConfig maps the coordinator settings onto the supervisor.
func supervisorConfig(cfg config.CoordinatorConfig) supervisor.Config {
	return supervisor.Config{
		InitialBackoff:    cfg.Backoff.Initial,
		BackoffStep:       cfg.Backoff.Step,
		MaxBackoff:        cfg.Backoff.Max,
		RecoveryThreshold: cfg.RecoveryThreshold,
		LowPowerThreshold: cfg.LowPowerThreshold,
		HeartbeatInterval: cfg.HeartbeatInterval,
		WatchdogInterval:  cfg.WatchdogInterval,
		SuspendDuration:   cfg.SuspendDuration,
	}
}

// subscribe registers the command handlers. Subscriptions made before the
// first connect are restored by the client when it connects.
func subscribe(client *mqtt.Client, qos byte, handlers map[string]mqtt.MessageHandler) error {
	for topic, h := range handlers {
		if err := client.Subscribe(topic, qos, h); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}
	return nil
}

// unsubscribe stops command intake once the control loop has exited, so
// late messages are not queued on an inbox nobody drains.
func unsubscribe(client *mqtt.Client, handlers map[string]mqtt.MessageHandler, log *logging.Logger) {
	for topic := range handlers {
		if err := client.Unsubscribe(topic); err != nil {
			log.Warn("unsubscribing command intake", "topic", topic, "error", err)
		}
	}
}

// dispatchPoint converts a send result into a metrics point.
func dispatchPoint(r dispatch.Result) influxdb.DispatchPoint {
	return influxdb.DispatchPoint{
		PanelID:    r.Packet.PanelID,
		Mode:       r.Packet.Mode.String(),
		Effect:     r.Packet.Effect.String(),
		Brightness: r.Packet.Brightness,
		Speed:      r.Packet.Speed,
		Regions:    r.Packet.Regions.Count(),
		SequenceID: r.Packet.SequenceID,
		Step:       r.Packet.Step,
		Outcome:    r.Outcome(),
		At:         r.At,
	}
}

// healthCheck verifies the optional stores are reachable. The MQTT bus is
// left to the supervisor.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Journal database (may be nil if disabled)
//   - influxClient: InfluxDB client (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
