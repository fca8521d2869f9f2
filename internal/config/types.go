// Package config implements the NVS-backed typed key-value configuration
// store: defaults, persistent overlay, single-key and batch commits, and
// the invariants the store itself is responsible for (legacy sender
// booleans, volume/pin clamping).
package config

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// DeviceMode is the authoritative runtime role of the device.
type DeviceMode uint8

const (
	ReceiverUsb DeviceMode = iota
	ReceiverSpdif
	SenderUsb
	SenderSpdif
)

func (m DeviceMode) String() string {
	switch m {
	case ReceiverUsb:
		return "receiver_usb"
	case ReceiverSpdif:
		return "receiver_spdif"
	case SenderUsb:
		return "sender_usb"
	case SenderSpdif:
		return "sender_spdif"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// DefaultDeviceMode is the compile-time fallback used when device_mode is
// absent from the backing store and the legacy booleans are also both
// false (migration rule, §4.1).
const DefaultDeviceMode = ReceiverSpdif

// Option names, stable short keys as persisted (§6).
const (
	KeyPort                        = "port"
	KeyHostname                    = "hostname"
	KeyDeviceMode                  = "device_mode"
	KeySampleRate                  = "sample_rate"
	KeyBitDepth                    = "bit_depth"
	KeyVolume                      = "volume"
	KeyInitialBufferSize           = "initial_buffer_size"
	KeyBufferGrowStepSize          = "buffer_grow_step_size"
	KeyMaxBufferSize               = "max_buffer_size"
	KeyMaxGrowSize                 = "max_grow_size"
	KeySpdifDataPin                = "spdif_data_pin"
	KeySilenceThresholdMs          = "silence_threshold_ms"
	KeyNetworkCheckIntervalMs      = "network_check_interval_ms"
	KeyNetworkInactivityTimeoutMs  = "network_inactivity_timeout_ms"
	KeyActivityThresholdPackets    = "activity_threshold_packets"
	KeySilenceAmplitudeThreshold   = "silence_amplitude_threshold"
	KeySenderDestinationIP         = "sender_destination_ip"
	KeySenderDestinationPort       = "sender_destination_port"
	KeyAPSSID                      = "ap_ssid"
	KeyAPPassword                  = "ap_password"
	KeyHideAPWhenConnected         = "hide_ap_when_connected"
	KeyUseDirectWrite              = "use_direct_write"
	KeyEnableMDNSDiscovery         = "enable_mdns_discovery"
	KeyAutoSelectBestDevice        = "auto_select_best_device"
	KeySetupWizardCompleted        = "setup_wizard_completed"
	KeyDiscoveryIntervalMs         = "discovery_interval_ms"
	KeySAPStreamName               = "sap_stream_name"
	// Derived/legacy, kept consistent with device_mode by invariant (i).
	keyEnableUsbSender   = "enable_usb_sender"
	keyEnableSpdifSender = "enable_spdif_sender"
)

// Config is the single structure persisted as typed key-value pairs.
type Config struct {
	Port       uint16
	Hostname   string
	DeviceMode DeviceMode
	SampleRate uint32
	BitDepth   uint8
	Volume     float32

	InitialBufferSize  uint8
	BufferGrowStepSize uint8
	MaxBufferSize      uint8
	MaxGrowSize        uint8

	SpdifDataPin uint8

	SilenceThresholdMs         uint32
	NetworkCheckIntervalMs     uint32
	NetworkInactivityTimeoutMs uint32
	ActivityThresholdPackets   uint8
	SilenceAmplitudeThreshold  uint16

	SenderDestinationIP   string
	SenderDestinationPort uint16

	APSSID   string
	APPassword string

	HideAPWhenConnected   bool
	UseDirectWrite        bool
	EnableMDNSDiscovery   bool
	AutoSelectBestDevice  bool
	SetupWizardCompleted  bool

	DiscoveryIntervalMs uint32
	SAPStreamName       string

	// Derived, always kept consistent with DeviceMode (invariant i).
	EnableUsbSender   bool
	EnableSpdifSender bool
}

// Defaults returns the bootstrap default configuration, seeded before any
// persisted overlay is applied. Values come from the embedded
// defaults.yaml (see defaults.go); hardcodedDefaults is the fallback if
// that asset ever fails to parse.
func Defaults() Config {
	c, err := defaultsFromYAML()
	if err != nil {
		log.Errorf("config: embedded defaults.yaml invalid, using hardcoded fallback: %v", err)
		c = hardcodedDefaults()
	}
	applyDeviceModeInvariant(&c)
	clampVolume(&c)
	clampSpdifPin(&c)
	return c
}

// hardcodedDefaults is the compile-time fallback mirroring defaults.yaml,
// kept in sync by hand.
func hardcodedDefaults() Config {
	c := Config{
		Port:                       4010,
		Hostname:                   "audiobridge",
		DeviceMode:                 DefaultDeviceMode,
		SampleRate:                 48000,
		BitDepth:                   16,
		Volume:                     1.0,
		InitialBufferSize:          4,
		BufferGrowStepSize:         2,
		MaxBufferSize:              32,
		MaxGrowSize:                24,
		SpdifDataPin:               18,
		SilenceThresholdMs:         30000,
		NetworkCheckIntervalMs:     5000,
		NetworkInactivityTimeoutMs: 60000,
		ActivityThresholdPackets:   4,
		SilenceAmplitudeThreshold:  64,
		SenderDestinationPort:      4010,
		APSSID:                     "audiobridge-setup",
		HideAPWhenConnected:        true,
		EnableMDNSDiscovery:        true,
		AutoSelectBestDevice:       true,
		DiscoveryIntervalMs:        10000,
		SAPStreamName:              "audiobridge",
	}
	applyDeviceModeInvariant(&c)
	clampVolume(&c)
	clampSpdifPin(&c)
	return c
}

func applyDeviceModeInvariant(c *Config) {
	c.EnableUsbSender = c.DeviceMode == SenderUsb
	c.EnableSpdifSender = c.DeviceMode == SenderSpdif
}

func clampVolume(c *Config) {
	if c.Volume < 0 {
		c.Volume = 0
	}
	if c.Volume > 1 {
		c.Volume = 1
	}
}

func clampSpdifPin(c *Config) {
	if c.SpdifDataPin > 39 {
		c.SpdifDataPin = 39
	}
}
