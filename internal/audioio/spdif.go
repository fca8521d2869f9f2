package audioio

import (
	"context"
	"fmt"
	"time"
)

// SpdifSink drives an S/PDIF transmitter pin. Unlike USB there is no
// enumeration: init binds a sample rate and GPIO pin directly, and writes
// are expected to be non-blocking (the hardware FIFO either has room or
// it doesn't).
type SpdifSink struct {
	dev Device
	pin uint8

	state  ConnectionState
	volume float32
	cfg    StreamConfig
}

// NewSpdifSink binds dev to the given data pin.
func NewSpdifSink(dev Device, pin uint8) *SpdifSink {
	return &SpdifSink{dev: dev, pin: pin, volume: 1.0}
}

func (s *SpdifSink) Initialize() error {
	s.state = Disconnected
	return nil
}

// Start is the init(sample_rate, pin) call: S/PDIF has no discovery phase,
// so a successful Configure moves straight to Streaming.
func (s *SpdifSink) Start(cfg StreamConfig) error {
	s.state = Enumerating
	cfg.Pin = s.pin
	if err := s.dev.Configure(cfg); err != nil {
		s.state = Disconnected
		return fmt.Errorf("audioio: spdif sink init on pin %d: %w", s.pin, err)
	}
	s.cfg = cfg
	s.state = Streaming
	return nil
}

// SetPin reinitializes the S/PDIF driver at a new data pin, keeping the
// current sample rate, per the spdif_data_pin delta action.
func (s *SpdifSink) SetPin(pin uint8) error {
	cfg := s.cfg
	cfg.Pin = pin
	if err := s.dev.Configure(cfg); err != nil {
		return fmt.Errorf("audioio: spdif sink reinit on pin %d: %w", pin, err)
	}
	s.pin = pin
	s.cfg = cfg
	return nil
}

func (s *SpdifSink) Stop() error {
	s.state = Disconnected
	return nil
}

func (s *SpdifSink) Deinitialize() error {
	s.state = Disconnected
	return nil
}

func (s *SpdifSink) IsConnected() bool {
	return s.dev != nil && s.dev.Connected()
}

// Write is non-blocking: a full hardware FIFO is not retried, it is
// reported as an error to the caller (the PCM pump).
func (s *SpdifSink) Write(ctx context.Context, pcm []byte, timeout time.Duration) error {
	n, err := s.dev.Write(ctx, pcm, 0)
	if err != nil {
		return fmt.Errorf("audioio: spdif sink write: %w", err)
	}
	if n != len(pcm) {
		return fmt.Errorf("audioio: spdif sink short write: wrote %d of %d bytes", n, len(pcm))
	}
	return nil
}

// SetSampleRate reprograms the output clock at runtime without tearing
// down the stream, per the S/PDIF set_sample_rates contract.
func (s *SpdifSink) SetSampleRate(hz uint32) error {
	cfg := s.cfg
	cfg.SampleRateHz = hz
	if err := s.dev.Configure(cfg); err != nil {
		return fmt.Errorf("audioio: spdif sink set_sample_rate(%d): %w", hz, err)
	}
	s.cfg = cfg
	return nil
}

func (s *SpdifSink) SetVolume(v float32) error {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.volume = v
	return nil
}

// PrepareForSleep and RestoreAfterWake are no-ops beyond state tracking:
// there is no device handle to release, only the GPIO/clock programming,
// which Start reapplies idempotently.
func (s *SpdifSink) PrepareForSleep() error {
	s.state = Disconnected
	return nil
}

func (s *SpdifSink) RestoreAfterWake() error {
	return s.Start(s.cfg)
}

func (s *SpdifSink) State() ConnectionState { return s.state }

// SpdifSource is the capture-side mirror of SpdifSink, used in sender
// modes to read PCM off an S/PDIF receiver.
type SpdifSource struct {
	dev Device
	pin uint8

	state ConnectionState
	cfg   StreamConfig
}

func NewSpdifSource(dev Device, pin uint8) *SpdifSource {
	return &SpdifSource{dev: dev, pin: pin}
}

func (s *SpdifSource) Initialize() error {
	s.state = Disconnected
	return nil
}

func (s *SpdifSource) Start(cfg StreamConfig) error {
	s.state = Enumerating
	cfg.Pin = s.pin
	if err := s.dev.Configure(cfg); err != nil {
		s.state = Disconnected
		return fmt.Errorf("audioio: spdif source init on pin %d: %w", s.pin, err)
	}
	s.cfg = cfg
	s.state = Streaming
	return nil
}

// SetPin reinitializes the S/PDIF driver at a new data pin, keeping the
// current sample rate.
func (s *SpdifSource) SetPin(pin uint8) error {
	cfg := s.cfg
	cfg.Pin = pin
	if err := s.dev.Configure(cfg); err != nil {
		return fmt.Errorf("audioio: spdif source reinit on pin %d: %w", pin, err)
	}
	s.pin = pin
	s.cfg = cfg
	return nil
}

func (s *SpdifSource) Stop() error {
	s.state = Disconnected
	return nil
}

func (s *SpdifSource) Deinitialize() error {
	s.state = Disconnected
	return nil
}

func (s *SpdifSource) IsConnected() bool { return s.dev != nil && s.dev.Connected() }

func (s *SpdifSource) Read(ctx context.Context, pcm []byte, timeout time.Duration) (int, error) {
	return s.dev.Read(ctx, pcm, timeout)
}

func (s *SpdifSource) SetSampleRate(hz uint32) error {
	cfg := s.cfg
	cfg.SampleRateHz = hz
	if err := s.dev.Configure(cfg); err != nil {
		return fmt.Errorf("audioio: spdif source set_sample_rate(%d): %w", hz, err)
	}
	s.cfg = cfg
	return nil
}

func (s *SpdifSource) PrepareForSleep() error {
	s.state = Disconnected
	return nil
}

func (s *SpdifSource) RestoreAfterWake() error {
	return s.Start(s.cfg)
}

func (s *SpdifSource) State() ConnectionState { return s.state }
