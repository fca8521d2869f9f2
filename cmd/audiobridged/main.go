package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/netham45/rtpbridge/internal/audioio"
	"github.com/netham45/rtpbridge/internal/config"
	"github.com/netham45/rtpbridge/internal/external"
	"github.com/netham45/rtpbridge/internal/lifecycle"
	"github.com/netham45/rtpbridge/internal/stats"
)

// flags
var (
	baseDir        string
	iface          string
	logLevel       string
	monitoringAddr string
	jsonStatsAddr  string
	usbAddress     string
	usbInterface   int
)

// rootCmd is the daemon's single command; flags are on the root rather
// than a subcommand since audiobridged has no secondary verbs, matching
// how cmd/ptpcheck's cmd.RootCmd carries flags even when a given build
// only exercises one of its subcommands.
var rootCmd = &cobra.Command{
	Use:   "audiobridged",
	Short: "RTP/UDP to USB/S-PDIF PCM bridge daemon",
	RunE:  runDaemon,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&baseDir, "basedir", "/var/lib/audiobridged", "Directory holding the persisted configuration store")
	flags.StringVar(&iface, "iface", "eth0", "Network interface to derive the stream SSRC and local address set from")
	flags.StringVar(&logLevel, "loglevel", "info", "Set a log level. Can be: debug, info, warning, error")
	flags.StringVar(&monitoringAddr, "monitoringaddr", ":9110", "host:port to serve /metrics on")
	flags.StringVar(&jsonStatsAddr, "jsonstatsaddr", ":9111", "host:port to serve a JSON counters snapshot on")
	flags.StringVar(&usbAddress, "usb-address", "auto", "USB device address to bind the sink/source to")
	flags.IntVar(&usbInterface, "usb-interface", 0, "USB audio interface index to claim")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runDaemon(_ *cobra.Command, _ []string) error {
	switch logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		return fmt.Errorf("unrecognized log level: %v", logLevel)
	}

	store, err := config.Load(baseDir)
	if err != nil {
		return fmt.Errorf("loading configuration store: %w", err)
	}

	netIface, err := net.InterfaceByName(iface)
	if err != nil {
		return fmt.Errorf("resolving interface %q: %w", iface, err)
	}
	localAddrs, err := localAddresses(netIface)
	if err != nil {
		return fmt.Errorf("enumerating addresses on %q: %w", iface, err)
	}

	counters := stats.NewCounters()
	refDevice := audioio.NewReferenceDevice()
	snapshot := store.Snapshot()

	deps := lifecycle.Deps{
		Store:       store,
		UsbSink:     audioio.NewUsbSink(refDevice, usbAddress, usbInterface),
		UsbSource:   audioio.NewUsbSource(refDevice),
		SpdifSink:   audioio.NewSpdifSink(refDevice, snapshot.SpdifDataPin),
		SpdifSource: audioio.NewSpdifSource(refDevice, snapshot.SpdifDataPin),

		LocalMAC:   netIface.HardwareAddr,
		LocalAddrs: localAddrs,

		Advertiser:         external.NoopAdvertiser{},
		NTPClient:          external.NoopNTPClient{},
		SAPListener:        external.NoopSAPListener{},
		WebServer:          external.NoopWebServer{},
		OTAManager:         external.NoopOTAManager{},
		BatteryMonitor:     external.NoopBatteryMonitor{},
		CaptivePortal:      external.NoopCaptivePortal{},
		NetworkProvisioner: external.NoopNetworkProvisioner{},

		Counters: counters,
	}

	ctrl := lifecycle.New(deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exporter := stats.NewPrometheusExporter(counters, 15*time.Second)
	go func() {
		if err := exporter.Start(ctx, monitoringAddr); err != nil {
			log.Errorf("audiobridged: monitoring server stopped: %v", err)
		}
	}()

	jsonMux := http.NewServeMux()
	jsonMux.HandleFunc("/stats.json", counters.JSONHandler())
	jsonServer := &http.Server{Addr: jsonStatsAddr, Handler: jsonMux}
	go func() {
		if err := jsonServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("audiobridged: json stats server stopped: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = jsonServer.Shutdown(shutdownCtx)
	}()

	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	log.Infof("audiobridged: running as %s", ctrl.State())
	if err := sdNotifyReady(); err != nil {
		log.Warningf("audiobridged: sd_notify failed: %v", err)
	}

	sigStop := make(chan os.Signal, 1)
	signal.Notify(sigStop, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	<-sigStop

	log.Warning("audiobridged: graceful shutdown")
	cancel()
	if err := ctrl.Stop(); err != nil {
		log.Errorf("audiobridged: shutdown error: %v", err)
	}
	return nil
}

// sdNotifyReady notifies systemd (when running under it) that the daemon
// has finished startup and reached its running state.
func sdNotifyReady() error {
	// daemon.SdNotify returns one of the following:
	// (false, nil) - notification not supported (i.e. NOTIFY_SOCKET is unset)
	// (false, err) - notification supported, but failure happened (e.g. error connecting to NOTIFY_SOCKET or while sending data)
	// (true, nil) - notification supported, data has been sent
	supported, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if !supported && err != nil {
		return err
	} else if !supported {
		log.Debug("audiobridged: sd_notify not supported")
	} else {
		log.Info("audiobridged: sent sd_notify ready event")
	}
	return nil
}

// localAddresses returns the IPv4/IPv6 addresses bound to iface, used by
// RTP Ingress to distinguish a unicast reconfiguration aimed at this host
// from one that requires joining a multicast group.
func localAddresses(iface *net.Interface) ([]net.IP, error) {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		if ipNet, ok := a.(*net.IPNet); ok {
			ips = append(ips, ipNet.IP)
		}
	}
	return ips, nil
}
