// Package lifecycle implements the Lifecycle Controller: a single FIFO
// event queue drained by exactly one worker goroutine, which is the only
// mutator of the bridge's top-level state and the sole place that starts
// and stops the per-mode pipelines (jitter buffer, RTP ingress/egress,
// audio I/O adapters).
package lifecycle

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/netham45/rtpbridge/internal/audioio"
	"github.com/netham45/rtpbridge/internal/config"
	"github.com/netham45/rtpbridge/internal/egress"
	"github.com/netham45/rtpbridge/internal/external"
	"github.com/netham45/rtpbridge/internal/ingress"
	"github.com/netham45/rtpbridge/internal/jitter"
	"github.com/netham45/rtpbridge/internal/masterclock"
	"github.com/netham45/rtpbridge/internal/stats"
)

// State is one of the Lifecycle State Machine's named states.
type State int

const (
	Initializing State = iota
	HwInit
	StartingServices
	AwaitingModeConfig
	ModeSenderUsb
	ModeSenderSpdif
	ModeReceiverUsb
	ModeReceiverSpdif
	Sleeping
	Pairing
	Error
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case HwInit:
		return "hw_init"
	case StartingServices:
		return "starting_services"
	case AwaitingModeConfig:
		return "awaiting_mode_config"
	case ModeSenderUsb:
		return "mode_sender_usb"
	case ModeSenderSpdif:
		return "mode_sender_spdif"
	case ModeReceiverUsb:
		return "mode_receiver_usb"
	case ModeReceiverSpdif:
		return "mode_receiver_spdif"
	case Sleeping:
		return "sleeping"
	case Pairing:
		return "pairing"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

func isModeState(s State) bool {
	switch s {
	case ModeSenderUsb, ModeSenderSpdif, ModeReceiverUsb, ModeReceiverSpdif:
		return true
	}
	return false
}

// modeForDeviceMode maps a persisted DeviceMode onto the corresponding
// mode state.
func modeForDeviceMode(m config.DeviceMode) State {
	switch m {
	case config.SenderUsb:
		return ModeSenderUsb
	case config.SenderSpdif:
		return ModeSenderSpdif
	case config.ReceiverUsb:
		return ModeReceiverUsb
	default:
		return ModeReceiverSpdif
	}
}

// EventType names the events the controller's worker handles.
type EventType int

const (
	EvConfigurationChanged EventType = iota
	EvWifiConnected
	EvWifiDisconnected
	EvUsbDacConnected
	EvUsbDacDisconnected
	EvEnterSleep
	EvWakeUp
	EvStartPairing
	EvPairingComplete
	EvCancelPairing
	EvSampleRateChange
)

// Event is one entry in the lifecycle's FIFO queue.
type Event struct {
	Type   EventType
	Config *config.Config // set on EvConfigurationChanged
	Rate   uint32          // set on EvSampleRateChange
}

// queueDepth bounds the event queue; Post drops and logs rather than
// blocking a caller (e.g. the PCM pump posting EnterSleep).
const queueDepth = 32

const defaultPayloadType = 96

// chunkSize is the fixed 1152-byte PCM chunk the RTP codec frames, per
// the wire protocol (288 stereo 16-bit frames, 6ms at 48kHz).
const chunkSize = 1152

// samplesPerChunk is the RTP timestamp increment per chunk: one tick per
// sample frame (288 stereo frames).
const samplesPerChunk = 288

// Deps bundles every collaborator the controller wires into a running
// mode. Device adapters are pre-constructed by the caller (this core
// targets a portable reference build; real USB/S-PDIF enumeration is out
// of scope, see internal/audioio).
type Deps struct {
	Store *config.Store

	UsbSink     audioio.Sink
	UsbSource   audioio.Source
	SpdifSink   audioio.Sink
	SpdifSource audioio.Source

	LocalMAC   net.HardwareAddr
	LocalAddrs []net.IP

	Advertiser         external.Advertiser
	NTPClient          external.NTPClient
	SAPListener        external.SAPListener
	WebServer          external.WebServer
	OTAManager         external.OTAManager
	BatteryMonitor     external.BatteryMonitor
	CaptivePortal      external.CaptivePortal
	NetworkProvisioner external.NetworkProvisioner

	Counters *stats.Counters
}

// Controller is the single-goroutine-worker Lifecycle State Machine.
type Controller struct {
	deps Deps

	mu    sync.Mutex
	state State

	clock    *masterclock.Clock
	snapshot config.Config

	queue  chan Event
	stopCh chan struct{}
	wg     sync.WaitGroup

	// Active pipeline, non-nil only while in a mode state.
	buf    *jitter.Buffer
	rx     *ingress.Receiver
	tx     *egress.Transmitter
	sink   audioio.Sink
	source audioio.Source
	pump   *pcmPump

	wifiConnected bool
	resumeState   State // mode to return to after Sleeping or Pairing

	silenceSince time.Time
	isSilent     bool
}

// New constructs a Controller in Initializing. Call Start to run the
// boot sequence and launch the worker goroutine.
func New(deps Deps) *Controller {
	return &Controller{
		deps:  deps,
		state: Initializing,
		clock: masterclock.New(),
		queue: make(chan Event, queueDepth),
	}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	log.Infof("lifecycle: transitioned to %s", s)
}

// Post enqueues an event for the worker. It never blocks: a full queue
// drops the event and logs, matching the "no operation busy-waits, no
// caller is made to wait on the lifecycle worker" rule.
func (c *Controller) Post(e Event) {
	select {
	case c.queue <- e:
	default:
		log.Warningf("lifecycle: event queue full, dropping event type %d", e.Type)
	}
}

// Start runs the HwInit/StartingServices boot sequence synchronously,
// then launches the single worker goroutine that owns all subsequent
// state mutation.
func (c *Controller) Start(ctx context.Context) error {
	c.setState(HwInit)
	if err := c.hwInit(ctx); err != nil {
		c.setState(Error)
		return fmt.Errorf("lifecycle: hw init: %w", err)
	}

	c.setState(StartingServices)
	if err := c.startServices(ctx); err != nil {
		c.setState(Error)
		return fmt.Errorf("lifecycle: starting services: %w", err)
	}

	snapshot := c.deps.Store.Snapshot()
	c.snapshot = snapshot

	c.stopCh = make(chan struct{})
	c.wg.Add(1)
	go c.run()

	if !snapshot.SetupWizardCompleted {
		c.setState(AwaitingModeConfig)
		return nil
	}
	return c.startMode(modeForDeviceMode(snapshot.DeviceMode))
}

// Stop tears down the active mode (if any) and halts the worker.
func (c *Controller) Stop() error {
	if isModeState(c.State()) {
		if err := c.stopMode(); err != nil {
			log.Errorf("lifecycle: error stopping mode during shutdown: %v", err)
		}
	}
	if c.stopCh != nil {
		close(c.stopCh)
	}
	c.wg.Wait()
	return nil
}

func (c *Controller) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		case e := <-c.queue:
			c.handleEvent(e)
		}
	}
}

// hwInit performs the Initializing state's substeps: config is already
// loaded by the caller (Deps.Store), so this wires the remaining
// out-of-scope collaborators that must be ready before services start.
func (c *Controller) hwInit(ctx context.Context) error {
	if _, err := c.deps.OTAManager.CheckForUpdate(ctx); err != nil {
		log.Warningf("lifecycle: ota check failed, continuing: %v", err)
	}
	if _, err := c.deps.BatteryMonitor.LevelPercent(); err != nil {
		log.Warningf("lifecycle: battery monitor unavailable, continuing: %v", err)
	}
	return nil
}

func (c *Controller) startServices(ctx context.Context) error {
	snapshot := c.deps.Store.Snapshot()
	if err := c.deps.NetworkProvisioner.Provision(ctx, snapshot.APSSID, snapshot.APPassword); err != nil {
		log.Warningf("lifecycle: network provisioning failed, continuing: %v", err)
	}
	if err := c.deps.WebServer.Start(ctx, fmt.Sprintf(":%d", snapshot.Port)); err != nil {
		log.Warningf("lifecycle: web server failed to start, continuing: %v", err)
	}
	if snapshot.EnableMDNSDiscovery {
		if err := c.deps.Advertiser.Advertise(ctx, snapshot.Hostname, snapshot.Port); err != nil {
			log.Warningf("lifecycle: mdns advertise failed, continuing: %v", err)
		}
	}
	if err := c.deps.NTPClient.Sync(ctx); err != nil {
		log.Warningf("lifecycle: ntp sync failed, continuing: %v", err)
	}
	return nil
}
