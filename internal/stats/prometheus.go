package stats

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// PrometheusExporter periodically copies a Counters snapshot into
// registered gauges and serves them on /metrics, grounded on
// ptp/sptp/stats/prom_exporter.go's registry-plus-scrape-loop shape.
type PrometheusExporter struct {
	registry *prometheus.Registry
	counters *Counters
	interval time.Duration
	server   *http.Server

	gauges map[string]prometheus.Gauge
}

// NewPrometheusExporter wires counters into a fresh registry, scraping
// its own process-local values every interval.
func NewPrometheusExporter(counters *Counters, interval time.Duration) *PrometheusExporter {
	e := &PrometheusExporter{
		registry: prometheus.NewRegistry(),
		counters: counters,
		interval: interval,
		gauges:   make(map[string]prometheus.Gauge),
	}
	for _, name := range []string{
		"packets_received", "packets_lost", "packets_sent",
		"underrun_count", "overflow_count", "buffer_size", "target_buffer_size",
		"buffer_occupancy_mean", "buffer_occupancy_stddev",
	} {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "audiobridge",
			Name:      name,
			Help:      name,
		})
		e.registry.MustRegister(g)
		e.gauges[name] = g
	}
	return e
}

// Start begins the scrape loop and serves /metrics on addr until ctx is
// canceled.
func (e *PrometheusExporter) Start(ctx context.Context, addr string) error {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.scrape()
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	e.server = &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("stats: prometheus exporter shutdown: %v", err)
		}
	}()

	log.Infof("stats: prometheus exporter listening on %s", addr)
	if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("stats: prometheus exporter: %w", err)
	}
	return nil
}

func (e *PrometheusExporter) scrape() {
	snap := e.counters.Snapshot()
	e.gauges["packets_received"].Set(float64(snap.PacketsReceived))
	e.gauges["packets_lost"].Set(float64(snap.PacketsLost))
	e.gauges["packets_sent"].Set(float64(snap.PacketsSent))
	e.gauges["underrun_count"].Set(float64(snap.UnderrunCount))
	e.gauges["overflow_count"].Set(float64(snap.OverflowCount))
	e.gauges["buffer_size"].Set(float64(snap.BufferSize))
	e.gauges["target_buffer_size"].Set(float64(snap.TargetBufferSize))
	e.gauges["buffer_occupancy_mean"].Set(snap.BufferOccupancyMean)
	e.gauges["buffer_occupancy_stddev"].Set(snap.BufferOccupancyStdd)
}
