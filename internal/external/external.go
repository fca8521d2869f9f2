// Package external declares the narrow interfaces the Lifecycle Controller
// calls through for collaborators that are out of scope for this core
// (mDNS/SAP discovery, NTP time sync, the web configuration UI, OTA
// firmware updates, battery telemetry, captive-portal provisioning, and
// network interface management). None of these interfaces carries
// protocol internals; they exist so the controller can be driven end to
// end in tests against the no-op implementations defined here.
package external

import "context"

// Advertiser publishes/withdraws the device's mDNS service record.
type Advertiser interface {
	Advertise(ctx context.Context, hostname string, port uint16) error
	Withdraw() error
}

// NTPClient synchronizes the local master clock against an external NTP
// source, independent of the RTCP-derived sync used for RTP playout.
type NTPClient interface {
	Sync(ctx context.Context) error
	LastSyncError() error
}

// SAPListener watches for Session Announcement Protocol stream
// advertisements on the local network.
type SAPListener interface {
	Start(ctx context.Context) error
	Stop() error
}

// WebServer serves the device's local configuration UI / REST API.
type WebServer interface {
	Start(ctx context.Context, addr string) error
	Stop(ctx context.Context) error
}

// OTAManager checks for and applies firmware updates.
type OTAManager interface {
	CheckForUpdate(ctx context.Context) (available bool, version string, err error)
	Apply(ctx context.Context, version string) error
}

// BatteryMonitor reports power state for battery-powered deployments.
type BatteryMonitor interface {
	LevelPercent() (int, error)
	Charging() (bool, error)
}

// CaptivePortal runs the first-boot / no-network provisioning flow.
type CaptivePortal interface {
	Start(ctx context.Context, ssid, password string) error
	Stop() error
}

// NetworkProvisioner applies and queries network interface state
// (Wi-Fi join, AP mode, static/DHCP addressing).
type NetworkProvisioner interface {
	Connected() bool
	Provision(ctx context.Context, ssid, password string) error
}
