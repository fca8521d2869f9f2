package external

import (
	"context"
	"fmt"
)

// NoopAdvertiser satisfies Advertiser without touching the network;
// production builds wire in a real mDNS responder, tests and
// discovery-disabled deployments use this.
type NoopAdvertiser struct{}

func (NoopAdvertiser) Advertise(ctx context.Context, hostname string, port uint16) error { return nil }
func (NoopAdvertiser) Withdraw() error                                                   { return nil }

// NoopNTPClient reports itself always out of sync, matching a deployment
// that relies solely on RTCP-derived playout timing.
type NoopNTPClient struct{}

func (NoopNTPClient) Sync(ctx context.Context) error { return nil }
func (NoopNTPClient) LastSyncError() error           { return fmt.Errorf("external: ntp client not configured") }

// NoopSAPListener never reports a stream.
type NoopSAPListener struct{}

func (NoopSAPListener) Start(ctx context.Context) error { return nil }
func (NoopSAPListener) Stop() error                     { return nil }

// NoopWebServer never listens; the daemon still starts without a
// configuration UI.
type NoopWebServer struct{}

func (NoopWebServer) Start(ctx context.Context, addr string) error { return nil }
func (NoopWebServer) Stop(ctx context.Context) error               { return nil }

// NoopOTAManager always reports no update available.
type NoopOTAManager struct{}

func (NoopOTAManager) CheckForUpdate(ctx context.Context) (bool, string, error) {
	return false, "", nil
}
func (NoopOTAManager) Apply(ctx context.Context, version string) error {
	return fmt.Errorf("external: ota not supported on this build")
}

// NoopBatteryMonitor reports a mains-powered device.
type NoopBatteryMonitor struct{}

func (NoopBatteryMonitor) LevelPercent() (int, error) { return 100, nil }
func (NoopBatteryMonitor) Charging() (bool, error)     { return true, nil }

// NoopCaptivePortal never starts a provisioning AP.
type NoopCaptivePortal struct{}

func (NoopCaptivePortal) Start(ctx context.Context, ssid, password string) error { return nil }
func (NoopCaptivePortal) Stop() error                                            { return nil }

// NoopNetworkProvisioner reports an always-connected network, suitable
// for wired-only deployments and tests.
type NoopNetworkProvisioner struct{}

func (NoopNetworkProvisioner) Connected() bool { return true }
func (NoopNetworkProvisioner) Provision(ctx context.Context, ssid, password string) error {
	return nil
}
