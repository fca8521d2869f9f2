package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v2"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// yamlDefaults mirrors defaults.yaml, the static bootstrap file separated
// from runtime state the same way the teacher keeps NetworkConfig apart
// from MeasureConfig in calnex/config.
type yamlDefaults struct {
	Port                       uint16  `yaml:"port"`
	Hostname                   string  `yaml:"hostname"`
	DeviceMode                 string  `yaml:"device_mode"`
	SampleRate                 uint32  `yaml:"sample_rate"`
	BitDepth                   uint8   `yaml:"bit_depth"`
	Volume                     float32 `yaml:"volume"`
	InitialBufferSize          uint8   `yaml:"initial_buffer_size"`
	BufferGrowStepSize         uint8   `yaml:"buffer_grow_step_size"`
	MaxBufferSize              uint8   `yaml:"max_buffer_size"`
	MaxGrowSize                uint8   `yaml:"max_grow_size"`
	SpdifDataPin               uint8   `yaml:"spdif_data_pin"`
	SilenceThresholdMs         uint32  `yaml:"silence_threshold_ms"`
	NetworkCheckIntervalMs     uint32  `yaml:"network_check_interval_ms"`
	NetworkInactivityTimeoutMs uint32  `yaml:"network_inactivity_timeout_ms"`
	ActivityThresholdPackets   uint8   `yaml:"activity_threshold_packets"`
	SilenceAmplitudeThreshold  uint16  `yaml:"silence_amplitude_threshold"`
	SenderDestinationPort      uint16  `yaml:"sender_destination_port"`
	APSSID                     string  `yaml:"ap_ssid"`
	HideAPWhenConnected        bool    `yaml:"hide_ap_when_connected"`
	EnableMDNSDiscovery        bool    `yaml:"enable_mdns_discovery"`
	AutoSelectBestDevice       bool    `yaml:"auto_select_best_device"`
	DiscoveryIntervalMs        uint32  `yaml:"discovery_interval_ms"`
	SAPStreamName              string  `yaml:"sap_stream_name"`
}

func parseDeviceModeName(name string) (DeviceMode, error) {
	switch name {
	case "receiver_usb":
		return ReceiverUsb, nil
	case "receiver_spdif":
		return ReceiverSpdif, nil
	case "sender_usb":
		return SenderUsb, nil
	case "sender_spdif":
		return SenderSpdif, nil
	default:
		return 0, fmt.Errorf("config: unrecognized device_mode %q", name)
	}
}

// defaultsFromYAML parses the embedded defaults.yaml into a Config.
func defaultsFromYAML() (Config, error) {
	var y yamlDefaults
	if err := yaml.Unmarshal(defaultsYAML, &y); err != nil {
		return Config{}, fmt.Errorf("config: parse defaults.yaml: %w", err)
	}
	mode, err := parseDeviceModeName(y.DeviceMode)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Port:                       y.Port,
		Hostname:                   y.Hostname,
		DeviceMode:                 mode,
		SampleRate:                 y.SampleRate,
		BitDepth:                   y.BitDepth,
		Volume:                     y.Volume,
		InitialBufferSize:          y.InitialBufferSize,
		BufferGrowStepSize:         y.BufferGrowStepSize,
		MaxBufferSize:              y.MaxBufferSize,
		MaxGrowSize:                y.MaxGrowSize,
		SpdifDataPin:               y.SpdifDataPin,
		SilenceThresholdMs:         y.SilenceThresholdMs,
		NetworkCheckIntervalMs:     y.NetworkCheckIntervalMs,
		NetworkInactivityTimeoutMs: y.NetworkInactivityTimeoutMs,
		ActivityThresholdPackets:   y.ActivityThresholdPackets,
		SilenceAmplitudeThreshold:  y.SilenceAmplitudeThreshold,
		SenderDestinationPort:      y.SenderDestinationPort,
		APSSID:                     y.APSSID,
		HideAPWhenConnected:        y.HideAPWhenConnected,
		EnableMDNSDiscovery:        y.EnableMDNSDiscovery,
		AutoSelectBestDevice:       y.AutoSelectBestDevice,
		DiscoveryIntervalMs:        y.DiscoveryIntervalMs,
		SAPStreamName:              y.SAPStreamName,
	}, nil
}
