package config

import (
	"fmt"
	"strconv"
)

// toMap renders cfg into the persisted key-value form, applying the
// §6 wire conventions (volume as integer*100, device_mode as a u8).
func toMap(cfg *Config) map[string]any {
	return map[string]any{
		KeyPort:                       cfg.Port,
		KeyHostname:                   cfg.Hostname,
		KeyDeviceMode:                 uint8(cfg.DeviceMode),
		KeySampleRate:                 cfg.SampleRate,
		KeyBitDepth:                   cfg.BitDepth,
		KeyVolume:                     int(cfg.Volume*100 + 0.5),
		KeyInitialBufferSize:          cfg.InitialBufferSize,
		KeyBufferGrowStepSize:         cfg.BufferGrowStepSize,
		KeyMaxBufferSize:              cfg.MaxBufferSize,
		KeyMaxGrowSize:                cfg.MaxGrowSize,
		KeySpdifDataPin:               cfg.SpdifDataPin,
		KeySilenceThresholdMs:         cfg.SilenceThresholdMs,
		KeyNetworkCheckIntervalMs:     cfg.NetworkCheckIntervalMs,
		KeyNetworkInactivityTimeoutMs: cfg.NetworkInactivityTimeoutMs,
		KeyActivityThresholdPackets:   cfg.ActivityThresholdPackets,
		KeySilenceAmplitudeThreshold:  cfg.SilenceAmplitudeThreshold,
		KeySenderDestinationIP:        cfg.SenderDestinationIP,
		KeySenderDestinationPort:      cfg.SenderDestinationPort,
		KeyAPSSID:                     cfg.APSSID,
		KeyAPPassword:                 cfg.APPassword,
		KeyHideAPWhenConnected:        cfg.HideAPWhenConnected,
		KeyUseDirectWrite:             cfg.UseDirectWrite,
		KeyEnableMDNSDiscovery:        cfg.EnableMDNSDiscovery,
		KeyAutoSelectBestDevice:       cfg.AutoSelectBestDevice,
		KeySetupWizardCompleted:       cfg.SetupWizardCompleted,
		KeyDiscoveryIntervalMs:        cfg.DiscoveryIntervalMs,
		KeySAPStreamName:              cfg.SAPStreamName,
		keyEnableUsbSender:            cfg.EnableUsbSender,
		keyEnableSpdifSender:          cfg.EnableSpdifSender,
	}
}

// getField returns the current value of a recognized option key.
func getField(cfg *Config, key string) (any, bool) {
	switch key {
	case KeyPort:
		return cfg.Port, true
	case KeyHostname:
		return cfg.Hostname, true
	case KeyDeviceMode:
		return cfg.DeviceMode, true
	case KeySampleRate:
		return cfg.SampleRate, true
	case KeyBitDepth:
		return cfg.BitDepth, true
	case KeyVolume:
		return cfg.Volume, true
	case KeyInitialBufferSize:
		return cfg.InitialBufferSize, true
	case KeyBufferGrowStepSize:
		return cfg.BufferGrowStepSize, true
	case KeyMaxBufferSize:
		return cfg.MaxBufferSize, true
	case KeyMaxGrowSize:
		return cfg.MaxGrowSize, true
	case KeySpdifDataPin:
		return cfg.SpdifDataPin, true
	case KeySilenceThresholdMs:
		return cfg.SilenceThresholdMs, true
	case KeyNetworkCheckIntervalMs:
		return cfg.NetworkCheckIntervalMs, true
	case KeyNetworkInactivityTimeoutMs:
		return cfg.NetworkInactivityTimeoutMs, true
	case KeyActivityThresholdPackets:
		return cfg.ActivityThresholdPackets, true
	case KeySilenceAmplitudeThreshold:
		return cfg.SilenceAmplitudeThreshold, true
	case KeySenderDestinationIP:
		return cfg.SenderDestinationIP, true
	case KeySenderDestinationPort:
		return cfg.SenderDestinationPort, true
	case KeyAPSSID:
		return cfg.APSSID, true
	case KeyAPPassword:
		return cfg.APPassword, true
	case KeyHideAPWhenConnected:
		return cfg.HideAPWhenConnected, true
	case KeyUseDirectWrite:
		return cfg.UseDirectWrite, true
	case KeyEnableMDNSDiscovery:
		return cfg.EnableMDNSDiscovery, true
	case KeyAutoSelectBestDevice:
		return cfg.AutoSelectBestDevice, true
	case KeySetupWizardCompleted:
		return cfg.SetupWizardCompleted, true
	case KeyDiscoveryIntervalMs:
		return cfg.DiscoveryIntervalMs, true
	case KeySAPStreamName:
		return cfg.SAPStreamName, true
	case keyEnableUsbSender:
		return cfg.EnableUsbSender, true
	case keyEnableSpdifSender:
		return cfg.EnableSpdifSender, true
	default:
		return nil, false
	}
}

// setField validates and assigns value to the field named by key. It
// accepts the Go-native typed value a caller would naturally have
// (uint16, string, bool, float32, config.DeviceMode, ...) and the
// widened numeric forms int, int64 and float64.
func setField(cfg *Config, key string, value any) error {
	switch key {
	case KeyPort:
		v, err := asUint16(value)
		if err != nil {
			return err
		}
		cfg.Port = v
	case KeyHostname:
		v, err := asString(value)
		if err != nil {
			return err
		}
		if len(v) > 63 {
			return fmt.Errorf("config: hostname exceeds 63 characters")
		}
		cfg.Hostname = v
	case KeyDeviceMode:
		v, err := asDeviceMode(value)
		if err != nil {
			return err
		}
		cfg.DeviceMode = v
	case KeySampleRate:
		v, err := asUint32(value)
		if err != nil {
			return err
		}
		cfg.SampleRate = v
	case KeyBitDepth:
		v, err := asUint8(value)
		if err != nil {
			return err
		}
		cfg.BitDepth = v
	case KeyVolume:
		v, err := asFloat32(value)
		if err != nil {
			return err
		}
		cfg.Volume = v
	case KeyInitialBufferSize:
		v, err := asUint8(value)
		if err != nil {
			return err
		}
		cfg.InitialBufferSize = v
	case KeyBufferGrowStepSize:
		v, err := asUint8(value)
		if err != nil {
			return err
		}
		cfg.BufferGrowStepSize = v
	case KeyMaxBufferSize:
		v, err := asUint8(value)
		if err != nil {
			return err
		}
		cfg.MaxBufferSize = v
	case KeyMaxGrowSize:
		v, err := asUint8(value)
		if err != nil {
			return err
		}
		cfg.MaxGrowSize = v
	case KeySpdifDataPin:
		v, err := asUint8(value)
		if err != nil {
			return err
		}
		cfg.SpdifDataPin = v
	case KeySilenceThresholdMs:
		v, err := asUint32(value)
		if err != nil {
			return err
		}
		cfg.SilenceThresholdMs = v
	case KeyNetworkCheckIntervalMs:
		v, err := asUint32(value)
		if err != nil {
			return err
		}
		cfg.NetworkCheckIntervalMs = v
	case KeyNetworkInactivityTimeoutMs:
		v, err := asUint32(value)
		if err != nil {
			return err
		}
		cfg.NetworkInactivityTimeoutMs = v
	case KeyActivityThresholdPackets:
		v, err := asUint8(value)
		if err != nil {
			return err
		}
		cfg.ActivityThresholdPackets = v
	case KeySilenceAmplitudeThreshold:
		v, err := asUint16(value)
		if err != nil {
			return err
		}
		cfg.SilenceAmplitudeThreshold = v
	case KeySenderDestinationIP:
		v, err := asString(value)
		if err != nil {
			return err
		}
		cfg.SenderDestinationIP = v
	case KeySenderDestinationPort:
		v, err := asUint16(value)
		if err != nil {
			return err
		}
		cfg.SenderDestinationPort = v
	case KeyAPSSID:
		v, err := asString(value)
		if err != nil {
			return err
		}
		cfg.APSSID = v
	case KeyAPPassword:
		v, err := asString(value)
		if err != nil {
			return err
		}
		cfg.APPassword = v
	case KeyHideAPWhenConnected:
		v, err := asBool(value)
		if err != nil {
			return err
		}
		cfg.HideAPWhenConnected = v
	case KeyUseDirectWrite:
		v, err := asBool(value)
		if err != nil {
			return err
		}
		cfg.UseDirectWrite = v
	case KeyEnableMDNSDiscovery:
		v, err := asBool(value)
		if err != nil {
			return err
		}
		cfg.EnableMDNSDiscovery = v
	case KeyAutoSelectBestDevice:
		v, err := asBool(value)
		if err != nil {
			return err
		}
		cfg.AutoSelectBestDevice = v
	case KeySetupWizardCompleted:
		v, err := asBool(value)
		if err != nil {
			return err
		}
		cfg.SetupWizardCompleted = v
	case KeyDiscoveryIntervalMs:
		v, err := asUint32(value)
		if err != nil {
			return err
		}
		cfg.DiscoveryIntervalMs = v
	case KeySAPStreamName:
		v, err := asString(value)
		if err != nil {
			return err
		}
		if len(v) > 63 {
			return fmt.Errorf("config: sap_stream_name exceeds 63 characters")
		}
		cfg.SAPStreamName = v
	case keyEnableUsbSender, keyEnableSpdifSender:
		// Derived fields: writes are ignored directly and instead
		// flow from device_mode via applyDeviceModeInvariant.
	default:
		return fmt.Errorf("config: unrecognized key %q", key)
	}
	return nil
}

// iniValue decodes the string form of an ini key's value into the type
// setField expects, applying the §6 wire conventions (volume as int*100,
// device_mode as a u8) when loading from the backing store.
func iniValue(key, raw string) (any, error) {
	switch key {
	case KeyVolume:
		centi, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", key, err)
		}
		return float32(centi) / 100, nil
	case KeyDeviceMode:
		mode, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", key, err)
		}
		return DeviceMode(mode), nil
	case KeyPort, KeySenderDestinationPort, KeySilenceAmplitudeThreshold:
		v, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", key, err)
		}
		return uint16(v), nil
	case KeySampleRate, KeySilenceThresholdMs, KeyNetworkCheckIntervalMs,
		KeyNetworkInactivityTimeoutMs, KeyDiscoveryIntervalMs:
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", key, err)
		}
		return uint32(v), nil
	case KeyBitDepth, KeyInitialBufferSize, KeyBufferGrowStepSize, KeyMaxBufferSize,
		KeyMaxGrowSize, KeySpdifDataPin, KeyActivityThresholdPackets:
		v, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", key, err)
		}
		return uint8(v), nil
	case KeyHideAPWhenConnected, KeyUseDirectWrite, KeyEnableMDNSDiscovery,
		KeyAutoSelectBestDevice, KeySetupWizardCompleted,
		keyEnableUsbSender, keyEnableSpdifSender:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", key, err)
		}
		return v, nil
	case KeyHostname, KeySenderDestinationIP, KeyAPSSID, KeyAPPassword, KeySAPStreamName:
		return raw, nil
	default:
		return nil, fmt.Errorf("config: unrecognized key %q", key)
	}
}

// iniString renders a value from toMap into the string form committed to
// an ini.Key.
func iniString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
