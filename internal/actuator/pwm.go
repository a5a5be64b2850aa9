package actuator

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/ta25stage/stagelink/internal/regions"
)

// Duty converts an 8-bit level to a PWM duty cycle.
func Duty(level uint8) gpio.Duty {
	return gpio.Duty(int64(level) * int64(gpio.DutyMax) / 255)
}

// PWM drives one GPIO pin per region.
//
// Thread Safety: Apply and Close may be called concurrently.
type PWM struct {
	freq   physic.Frequency
	logger Logger

	mu     sync.Mutex
	pins   []gpio.PinOut
	last   []uint8
	closed bool
}

// OpenPWM initialises the host drivers and opens the pin of every region in
// layout by its "GPIO<n>" name.
func OpenPWM(layout regions.Layout, freqHz int, logger Logger) (*PWM, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("actuator: initialising host: %w", err)
	}

	pins := make([]gpio.PinOut, 0, layout.Count)
	for _, r := range layout.Regions() {
		name := fmt.Sprintf("GPIO%d", r.Pin)
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("%w: %s (region %s)", ErrPinNotFound, name, r.Name)
		}
		pins = append(pins, p)
	}
	return NewPWM(pins, freqHz, logger)
}

// NewPWM drives the given pins, one per region in local order. Every pin is
// set to zero before NewPWM returns.
func NewPWM(pins []gpio.PinOut, freqHz int, logger Logger) (*PWM, error) {
	if freqHz <= 0 {
		freqHz = DefaultFrequencyHz
	}
	if logger == nil {
		logger = noopLogger{}
	}
	d := &PWM{
		freq:   physic.Frequency(freqHz) * physic.Hertz,
		logger: logger,
		pins:   pins,
		last:   make([]uint8, len(pins)),
	}
	if err := d.zero(); err != nil {
		return nil, err
	}
	logger.Info("pwm actuator ready", "pins", len(pins), "frequency", d.freq.String())
	return d, nil
}

// Apply writes the levels. Pins whose level did not change are not touched.
func (d *PWM) Apply(levels []uint8) error {
	if err := checkLevels(levels, len(d.pins)); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	for i, l := range levels {
		if l == d.last[i] {
			continue
		}
		if err := d.pins[i].PWM(Duty(l), d.freq); err != nil {
			return fmt.Errorf("actuator: pin %s: %w", d.pins[i], err)
		}
		d.last[i] = l
	}
	return nil
}

// Close turns every region off.
func (d *PWM) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.zeroLocked()
}

func (d *PWM) zero() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.zeroLocked()
}

func (d *PWM) zeroLocked() error {
	for i, p := range d.pins {
		if err := p.PWM(0, d.freq); err != nil {
			return fmt.Errorf("actuator: zeroing pin %s: %w", p, err)
		}
		d.last[i] = 0
	}
	return nil
}
