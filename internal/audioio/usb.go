package audioio

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Enumeration and retry constants, §4.6.
const (
	EnumerationTimeout   = 5 * time.Second
	transferRetryBase    = 100 * time.Millisecond
	transferRetryMax     = 3
	reconnectAttemptsMax = 5
)

// UsbSink drives a USB Audio Class playback endpoint through an injected
// Device.
type UsbSink struct {
	dev Device

	state  ConnectionState
	volume float32

	// Saved so a wake-from-sleep can reopen the same device without
	// re-enumeration.
	savedAddress   string
	savedInterface int
	savedConfig    StreamConfig
}

// NewUsbSink wraps dev, identified by address/iface for reconnection
// bookkeeping.
func NewUsbSink(dev Device, address string, iface int) *UsbSink {
	return &UsbSink{dev: dev, savedAddress: address, savedInterface: iface, volume: 1.0}
}

func (s *UsbSink) Initialize() error {
	s.state = Disconnected
	return nil
}

func (s *UsbSink) Start(cfg StreamConfig) error {
	s.state = Enumerating
	ctx, cancel := context.WithTimeout(context.Background(), EnumerationTimeout)
	defer cancel()

	if err := s.enumerate(ctx, cfg); err != nil {
		s.state = Disconnected
		return fmt.Errorf("audioio: usb sink enumeration: %w", err)
	}
	s.state = Streaming
	s.savedConfig = cfg
	return nil
}

func (s *UsbSink) enumerate(ctx context.Context, cfg StreamConfig) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := s.dev.Configure(cfg); err != nil {
		return err
	}
	s.state = Ready
	return nil
}

func (s *UsbSink) Stop() error {
	s.state = Disconnected
	return nil
}

func (s *UsbSink) Deinitialize() error {
	s.state = Disconnected
	return nil
}

func (s *UsbSink) IsConnected() bool {
	return s.dev != nil && s.dev.Connected()
}

// Write attempts a single transfer with bounded retry and exponential
// backoff; persistent failure triggers a bounded reconnection sequence
// before giving up.
func (s *UsbSink) Write(ctx context.Context, pcm []byte, timeout time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < transferRetryMax; attempt++ {
		_, err := s.dev.Write(ctx, pcm, timeout)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warningf("audioio: usb sink transfer attempt %d of %d failed: %v", attempt+1, transferRetryMax, err)
		backoff := transferRetryBase << attempt
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := s.reconnect(ctx); err != nil {
		return fmt.Errorf("audioio: usb sink transfer failed after retries (%v), reconnect failed: %w", lastErr, err)
	}
	_, err := s.dev.Write(ctx, pcm, timeout)
	if err != nil {
		return fmt.Errorf("audioio: usb sink transfer failed even after reconnect: %w", err)
	}
	return nil
}

func (s *UsbSink) reconnect(ctx context.Context) error {
	for attempt := 0; attempt < reconnectAttemptsMax; attempt++ {
		delay := transferRetryBase << uint(attempt+1)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if s.dev.Connected() {
			if err := s.dev.Configure(s.savedConfig); err == nil {
				s.state = Streaming
				return nil
			}
		}
	}
	s.state = Disconnected
	return fmt.Errorf("audioio: usb sink reconnection exhausted after %d attempts", reconnectAttemptsMax)
}

func (s *UsbSink) SetVolume(v float32) error {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.volume = v
	return nil
}

func (s *UsbSink) PrepareForSleep() error {
	s.state = Disconnected
	return nil
}

// RestoreAfterWake reapplies the saved stream configuration directly,
// without going back through Start's enumeration path.
func (s *UsbSink) RestoreAfterWake() error {
	if err := s.dev.Configure(s.savedConfig); err != nil {
		s.state = Disconnected
		return fmt.Errorf("audioio: usb sink restore after wake: %w", err)
	}
	s.state = Streaming
	return nil
}

func (s *UsbSink) State() ConnectionState { return s.state }

// UsbSource is the capture-side mirror of UsbSink.
type UsbSource struct {
	dev         Device
	state       ConnectionState
	savedConfig StreamConfig
}

func NewUsbSource(dev Device) *UsbSource {
	return &UsbSource{dev: dev}
}

func (s *UsbSource) Initialize() error {
	s.state = Disconnected
	return nil
}

func (s *UsbSource) Start(cfg StreamConfig) error {
	s.state = Enumerating
	if err := s.dev.Configure(cfg); err != nil {
		s.state = Disconnected
		return fmt.Errorf("audioio: usb source enumeration: %w", err)
	}
	s.savedConfig = cfg
	s.state = Streaming
	return nil
}

func (s *UsbSource) Stop() error {
	s.state = Disconnected
	return nil
}

func (s *UsbSource) Deinitialize() error {
	s.state = Disconnected
	return nil
}

func (s *UsbSource) IsConnected() bool { return s.dev != nil && s.dev.Connected() }

func (s *UsbSource) Read(ctx context.Context, pcm []byte, timeout time.Duration) (int, error) {
	return s.dev.Read(ctx, pcm, timeout)
}

func (s *UsbSource) PrepareForSleep() error {
	s.state = Disconnected
	return nil
}

func (s *UsbSource) RestoreAfterWake() error {
	return s.Start(s.savedConfig)
}

func (s *UsbSource) State() ConnectionState { return s.state }
