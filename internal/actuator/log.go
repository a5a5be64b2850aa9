package actuator

import (
	"sync"

	"github.com/ta25stage/stagelink/internal/regions"
)

// Log records level changes instead of driving hardware.
type Log struct {
	names  []string
	logger Logger

	mu     sync.Mutex
	last   []uint8
	closed bool
}

// NewLog creates a log driver for the regions in layout.
func NewLog(layout regions.Layout, logger Logger) *Log {
	if logger == nil {
		logger = noopLogger{}
	}
	names := make([]string, 0, layout.Count)
	for _, r := range layout.Regions() {
		names = append(names, r.Name)
	}
	logger.Info("log actuator ready", "panel", layout.Panel, "regions", names)
	return &Log{
		names:  names,
		logger: logger,
		last:   make([]uint8, layout.Count),
	}
}

// Apply logs every region whose level changed.
func (l *Log) Apply(levels []uint8) error {
	if err := checkLevels(levels, len(l.names)); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	for i, v := range levels {
		if v != l.last[i] {
			l.logger.Debug("region level", "region", l.names[i], "from", l.last[i], "to", v)
			l.last[i] = v
		}
	}
	return nil
}

// Levels returns a copy of the last applied levels.
func (l *Log) Levels() []uint8 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]uint8, len(l.last))
	copy(out, l.last)
	return out
}

// Close logs every region going dark.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	for i := range l.last {
		l.last[i] = 0
	}
	l.logger.Info("log actuator closed, regions off")
	return nil
}
