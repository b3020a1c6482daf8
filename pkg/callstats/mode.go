package callstats

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Mode selects how much work instrumentation does.
type Mode int32

const (
	// Disabled turns Enter and Leave into no-ops.
	Disabled Mode = iota
	// Enabled measures every activation.
	Enabled
	// Sampling binds timers to counters but takes no timestamps; durations
	// are expected to come from an external sampler.
	Sampling
)

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case Enabled:
		return "enabled"
	case Sampling:
		return "sampling"
	default:
		return fmt.Sprintf("mode(%d)", int32(m))
	}
}

// ParseMode parses a mode name. The empty string means disabled.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "disabled", "off", "false":
		return Disabled, nil
	case "enabled", "on", "true":
		return Enabled, nil
	case "sampling":
		return Sampling, nil
	default:
		return Disabled, fmt.Errorf("invalid mode %q: expected disabled, enabled or sampling", s)
	}
}

// Switch holds the instrumentation mode. It may be flipped from any
// goroutine; Stats reads it once per Enter and once per Leave.
type Switch struct {
	mode atomic.Int32
}

// NewSwitch returns a switch set to m.
func NewSwitch(m Mode) *Switch {
	s := &Switch{}
	s.Set(m)
	return s
}

// Mode returns the current mode.
func (s *Switch) Mode() Mode {
	return Mode(s.mode.Load())
}

// Set changes the mode.
func (s *Switch) Set(m Mode) {
	s.mode.Store(int32(m))
}
