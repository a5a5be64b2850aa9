// StageLink Panel - region driver for one stage panel
//
// Each panel listens on the radio channel, keeps only packets addressed to
// it or to all panels, and renders the commanded effect onto its regions
// through the configured actuator driver.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ta25stage/stagelink/internal/actuator"
	"github.com/ta25stage/stagelink/internal/dispatch"
	"github.com/ta25stage/stagelink/internal/infrastructure/config"
	"github.com/ta25stage/stagelink/internal/infrastructure/logging"
	"github.com/ta25stage/stagelink/internal/panel"
	"github.com/ta25stage/stagelink/internal/radio"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/panel.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run loads config, opens the link and actuator, and renders until ctx is
// cancelled.
func run(ctx context.Context) error {
	log := logging.Default(logging.ServicePanel)
	log.Info("starting StageLink panel",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Panel.ID < 1 {
		return fmt.Errorf("panel.id must be set on a panel")
	}
	id := uint8(cfg.Panel.ID) //nolint:gosec // validated 1-4

	log = logging.New(cfg.Logging, logging.ServicePanel, version).With("panel", id)
	log.Info("configuration loaded", "path", configPath)

	rx, err := panel.NewReceiver(id, log.Component("receiver"))
	if err != nil {
		return fmt.Errorf("creating receiver: %w", err)
	}

	act, err := actuator.New(actuator.Config{
		Driver:      cfg.Panel.Actuator.Driver,
		FrequencyHz: cfg.Panel.Actuator.FrequencyHz,
	}, rx.Layout(), log.Component("actuator"))
	if err != nil {
		return fmt.Errorf("opening actuator: %w", err)
	}
	defer func() {
		log.Info("releasing actuator")
		if closeErr := act.Close(); closeErr != nil {
			log.Error("error closing actuator", "error", closeErr)
		}
	}()
	log.Info("actuator ready",
		"driver", cfg.Panel.Actuator.Driver,
		"regions", rx.Layout().Count,
	)

	link, err := openPanelLink(cfg.Radio, id, log.Component("radio"))
	if err != nil {
		return fmt.Errorf("opening radio link: %w", err)
	}
	defer func() {
		if closeErr := link.Close(); closeErr != nil {
			log.Error("error closing radio link", "error", closeErr)
		}
	}()
	if link.Channel() != radio.DefaultChannel {
		log.Warn("radio channel mismatch, the coordinator will not be heard",
			"expected", radio.DefaultChannel,
			"actual", link.Channel(),
		)
	}
	log.Info("radio link listening",
		"address", link.LocalAddr().String(),
		"channel", link.Channel(),
		"udp", link.BoundAddr().String(),
	)

	agent := panel.NewAgent(rx, act, panel.AgentConfig{
		TickInterval:   cfg.Panel.TickInterval,
		StaleAfter:     cfg.Panel.StaleAfter,
		StatusInterval: cfg.Panel.StatusInterval,
	}, log.Component("agent"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return link.Listen(gctx, rx.OnPacket) })
	g.Go(func() error { return agent.Run(gctx) })

	// Listen reports ctx.Err() when stopped by a signal; that is a clean
	// shutdown.
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("panel loop: %w", err)
	}

	stats := rx.Stats()
	log.Info("StageLink panel stopped",
		"accepted", stats.Accepted,
		"ignored", stats.Ignored,
		"malformed", stats.Malformed,
	)
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

// openPanelLink binds the channel port. Panels only receive, so no peer
// routes are configured.
func openPanelLink(cfg config.RadioConfig, id uint8, log *logging.Logger) (*radio.UDPLink, error) {
	local := dispatch.PanelAddr(id)
	if cfg.Address != "" {
		addr, err := radio.ParseAddr(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("radio address: %w", err)
		}
		local = addr
	}

	return radio.NewUDP(radio.UDPConfig{
		Local:    local,
		Channel:  uint8(cfg.Channel), //nolint:gosec // validated by config
		BasePort: cfg.Port,
		BindHost: cfg.BindHost,
		Listen:   true,
		Logger:   log,
	})
}
