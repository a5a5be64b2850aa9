package actuator

import (
	"errors"
	"fmt"

	"github.com/ta25stage/stagelink/internal/regions"
)

// Driver names accepted by New.
const (
	DriverGPIO = "gpio"
	DriverLog  = "log"
	DriverNone = "none"
)

// DefaultFrequencyHz is the PWM carrier frequency.
const DefaultFrequencyHz = 5000

// Errors returned by drivers.
var (
	ErrUnknownDriver = errors.New("actuator: unknown driver")
	ErrPinNotFound   = errors.New("actuator: gpio pin not found")
	ErrLevelCount    = errors.New("actuator: level count does not match region count")
	ErrClosed        = errors.New("actuator: closed")
)

// Actuator writes one level per region, in local order.
type Actuator interface {
	Apply(levels []uint8) error
	Close() error
}

// Logger is the logging interface drivers need.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config selects and tunes a driver.
type Config struct {
	Driver      string
	FrequencyHz int
}

// New opens the configured driver for the regions in layout.
func New(cfg Config, layout regions.Layout, logger Logger) (Actuator, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	switch cfg.Driver {
	case DriverGPIO:
		return OpenPWM(layout, cfg.FrequencyHz, logger)
	case DriverLog:
		return NewLog(layout, logger), nil
	case DriverNone, "":
		return Discard(layout.Count), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func checkLevels(levels []uint8, want int) error {
	if len(levels) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrLevelCount, len(levels), want)
	}
	return nil
}

type discard int

// Discard returns an actuator for n regions that accepts and drops levels.
func Discard(n int) Actuator {
	return discard(n)
}

func (d discard) Apply(levels []uint8) error {
	return checkLevels(levels, int(d))
}

func (discard) Close() error {
	return nil
}
