// Package audioio provides the uniform interface the core uses to talk to
// local audio hardware (USB Audio Class or S/PDIF), on both the sink
// (receiver mode) and source (sender mode) sides. The concrete USB Audio
// Class / S/PDIF silicon drivers are out of scope for this core (see
// internal/external) — production builds inject a real Device; tests
// inject an in-memory fake, the same seam the teacher uses to swap a real
// syscall for an injected method in ptp4u/server/config.go.
package audioio

import (
	"context"
	"fmt"
	"time"
)

// ConnectionState mirrors the USB sink state machine in §4.6.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Enumerating
	Ready
	Streaming
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Enumerating:
		return "enumerating"
	case Ready:
		return "ready"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// StreamConfig is what a sink or source is currently configured for.
type StreamConfig struct {
	Channels      int
	BitResolution int
	SampleRateHz  uint32
	// Pin is the S/PDIF data pin (spdif_data_pin). Unused by USB adapters.
	Pin uint8
}

// Device is the narrow handle a concrete adapter drives. It stands in for
// the platform driver call surface (libusb transfer, ALSA/CoreAudio
// handle, or the S/PDIF bit-streamer) that is out of scope for this core.
type Device interface {
	// Write sends bytes to the device, blocking at most timeout.
	Write(ctx context.Context, pcm []byte, timeout time.Duration) (int, error)
	// Read fills pcm from the device, blocking at most timeout.
	Read(ctx context.Context, pcm []byte, timeout time.Duration) (int, error)
	// Connected reports whether hardware is currently present.
	Connected() bool
	// Configure applies a stream configuration; USB devices may need to
	// re-enumerate, S/PDIF devices just reprogram the clock.
	Configure(cfg StreamConfig) error
}

// Sink is the common capability set for receiver-mode playback adapters.
type Sink interface {
	Initialize() error
	Start(cfg StreamConfig) error
	Stop() error
	Deinitialize() error
	IsConnected() bool
	Write(ctx context.Context, pcm []byte, timeout time.Duration) error
	SetVolume(v float32) error
	PrepareForSleep() error
	RestoreAfterWake() error
	State() ConnectionState
}

// Source is the common capability set for sender-mode capture adapters.
type Source interface {
	Initialize() error
	Start(cfg StreamConfig) error
	Stop() error
	Deinitialize() error
	IsConnected() bool
	Read(ctx context.Context, pcm []byte, timeout time.Duration) (int, error)
	PrepareForSleep() error
	RestoreAfterWake() error
	State() ConnectionState
}

// ErrUnsupported reports a platform that lacks the peripheral. None of
// the adapter constructors or methods in this package return it.
var ErrUnsupported = fmt.Errorf("audioio: peripheral not supported on this platform")
