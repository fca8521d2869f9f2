package lifecycle

import (
	"context"
	"net"

	log "github.com/sirupsen/logrus"

	"github.com/netham45/rtpbridge/internal/config"
)

func (c *Controller) handleEvent(e Event) {
	switch e.Type {
	case EvConfigurationChanged:
		c.handleConfigurationChanged(e.Config)
	case EvWifiConnected:
		c.wifiConnected = true
	case EvWifiDisconnected:
		c.wifiConnected = false
	case EvUsbDacConnected:
		if c.State() == ModeReceiverUsb {
			if err := c.deps.UsbSink.RestoreAfterWake(); err != nil {
				log.Warningf("lifecycle: usb dac reconnect: %v", err)
			}
		}
	case EvUsbDacDisconnected:
		if c.State() == ModeReceiverUsb {
			if err := c.deps.UsbSink.PrepareForSleep(); err != nil {
				log.Warningf("lifecycle: usb dac disconnect handling: %v", err)
			}
		}
	case EvEnterSleep:
		c.handleEnterSleep()
	case EvWakeUp:
		c.handleWakeUp()
	case EvStartPairing:
		c.handleStartPairing()
	case EvPairingComplete, EvCancelPairing:
		c.handleEndPairing()
	case EvSampleRateChange:
		c.handleSampleRateChange(e.Rate)
	}
}

// handleEnterSleep is only honored in a mode state, per the event
// handling rules (silence_threshold_ms is enforced by the PCM pump
// before this event is ever posted).
func (c *Controller) handleEnterSleep() {
	current := c.State()
	if !isModeState(current) {
		return
	}
	if err := c.stopMode(); err != nil {
		log.Errorf("lifecycle: enter sleep: stop mode: %v", err)
	}
	c.resumeState = current
	c.setState(Sleeping)
}

func (c *Controller) handleWakeUp() {
	if c.State() != Sleeping {
		return
	}
	if err := c.startMode(c.resumeState); err != nil {
		log.Errorf("lifecycle: wake up: restart mode: %v", err)
		c.setState(Error)
	}
}

func (c *Controller) handleStartPairing() {
	current := c.State()
	if current == Pairing {
		return
	}
	if isModeState(current) {
		if err := c.stopMode(); err != nil {
			log.Errorf("lifecycle: start pairing: stop mode: %v", err)
		}
	}
	c.resumeState = current
	c.setState(Pairing)
}

func (c *Controller) handleEndPairing() {
	if c.State() != Pairing {
		return
	}
	if isModeState(c.resumeState) {
		if err := c.startMode(c.resumeState); err != nil {
			log.Errorf("lifecycle: resume after pairing: %v", err)
			c.setState(Error)
		}
		return
	}
	c.setState(c.resumeState)
}

// handleSampleRateChange attempts in-place reconfiguration; on failure it
// persists and lets the ConfigurationChanged path force a restart.
func (c *Controller) handleSampleRateChange(rate uint32) {
	current := c.State()
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()

	switch {
	case current == ModeReceiverSpdif && sink != nil:
		if spdif, ok := sink.(interface{ SetSampleRate(uint32) error }); ok {
			if err := spdif.SetSampleRate(rate); err == nil {
				return
			}
		}
	case current == ModeReceiverUsb:
		// USB adapts implicitly via Configure on the next stream start;
		// nothing to do in place.
		return
	}

	if err := c.deps.Store.Set(config.KeySampleRate, rate); err != nil {
		log.Errorf("lifecycle: persist sample rate change: %v", err)
		return
	}
	snapshot := c.deps.Store.Snapshot()
	c.Post(Event{Type: EvConfigurationChanged, Config: &snapshot})
}

// handleConfigurationChanged diffs newCfg against the controller's
// private snapshot and applies each changed field's action from the
// delta handler table.
func (c *Controller) handleConfigurationChanged(newCfg *config.Config) {
	if newCfg == nil {
		return
	}
	old := c.snapshot
	restartNeeded := false

	if newCfg.Port != old.Port {
		if c.rx != nil {
			if err := c.rx.UpdatePort(newCfg.Port); err != nil {
				log.Errorf("lifecycle: reopen unicast socket on port change: %v", err)
			}
		}
	}

	if newCfg.Hostname != old.Hostname && newCfg.EnableMDNSDiscovery {
		if err := c.deps.Advertiser.Withdraw(); err != nil {
			log.Warningf("lifecycle: withdraw mdns advertisement: %v", err)
		}
		if err := c.deps.Advertiser.Advertise(context.Background(), newCfg.Hostname, newCfg.Port); err != nil {
			log.Warningf("lifecycle: re-advertise mdns: %v", err)
		}
	}

	if (newCfg.SenderDestinationIP != old.SenderDestinationIP || newCfg.SenderDestinationPort != old.SenderDestinationPort) && c.tx != nil {
		destIP := net.ParseIP(newCfg.SenderDestinationIP)
		if destIP != nil {
			c.tx.UpdateDestination(destIP, newCfg.SenderDestinationPort)
		}
	}

	if newCfg.InitialBufferSize != old.InitialBufferSize ||
		newCfg.BufferGrowStepSize != old.BufferGrowStepSize ||
		newCfg.MaxGrowSize != old.MaxGrowSize {
		if c.buf != nil {
			c.buf.Empty()
			c.buf.UpdateGrowthParams(int(newCfg.BufferGrowStepSize), int(newCfg.MaxGrowSize))
		}
	}
	if newCfg.MaxBufferSize != old.MaxBufferSize {
		// The underlying ring is sized at allocation time; changing its
		// capacity needs a fresh Buffer, which only a mode restart gives.
		restartNeeded = true
	}

	if newCfg.SpdifDataPin != old.SpdifDataPin && c.State() == ModeReceiverSpdif && c.sink != nil {
		if spdif, ok := c.sink.(interface{ SetPin(uint8) error }); ok {
			if err := spdif.SetPin(newCfg.SpdifDataPin); err != nil {
				log.Errorf("lifecycle: reinitialize spdif driver at pin %d: %v", newCfg.SpdifDataPin, err)
			}
		}
	}

	if newCfg.Volume != old.Volume && c.State() == ModeReceiverUsb && c.sink != nil {
		if err := c.sink.SetVolume(newCfg.Volume); err != nil {
			log.Warningf("lifecycle: apply volume change: %v", err)
		}
	}

	if newCfg.SampleRate != old.SampleRate {
		c.handleSampleRateChange(newCfg.SampleRate)
	}

	if newCfg.SilenceThresholdMs != old.SilenceThresholdMs && c.pump != nil {
		c.pump.silenceLimit = newCfg.SilenceThresholdMs
	}

	if newCfg.DeviceMode != old.DeviceMode {
		restartNeeded = true
	}

	if restartNeeded {
		target := modeForDeviceMode(newCfg.DeviceMode)
		if err := c.restartMode(target); err != nil {
			log.Errorf("lifecycle: restart mode after configuration change: %v", err)
			c.setState(Error)
		}
	}

	c.snapshot = *newCfg
}
