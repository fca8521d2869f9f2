package lifecycle

import (
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/netham45/rtpbridge/internal/audioio"
	"github.com/netham45/rtpbridge/internal/egress"
	"github.com/netham45/rtpbridge/internal/ingress"
	"github.com/netham45/rtpbridge/internal/jitter"
	"github.com/netham45/rtpbridge/internal/masterclock"
	"github.com/netham45/rtpbridge/internal/ssrc"
)

// startMode initializes the pipeline for target and transitions into it.
func (c *Controller) startMode(target State) error {
	snapshot := c.deps.Store.Snapshot()

	switch target {
	case ModeReceiverUsb, ModeReceiverSpdif:
		buf, err := jitter.New(jitter.Config{
			ChunkSize:         chunkSize,
			MaxBufferSize:     int(snapshot.MaxBufferSize),
			InitialBufferSize: int(snapshot.InitialBufferSize),
			GrowStepSize:      int(snapshot.BufferGrowStepSize),
			MaxGrowSize:       int(snapshot.MaxGrowSize),
		}, jitter.PolicyAdaptive)
		if err != nil {
			return fmt.Errorf("lifecycle: allocate jitter buffer: %w", err)
		}

		sink := c.deps.UsbSink
		if target == ModeReceiverSpdif {
			sink = c.deps.SpdifSink
		}
		if err := sink.Initialize(); err != nil {
			return fmt.Errorf("lifecycle: initialize sink: %w", err)
		}
		cfg := audioio.StreamConfig{Channels: 2, BitResolution: int(snapshot.BitDepth), SampleRateHz: snapshot.SampleRate}
		if err := sink.Start(cfg); err != nil {
			return fmt.Errorf("lifecycle: start sink: %w", err)
		}
		if err := sink.SetVolume(snapshot.Volume); err != nil {
			log.Warningf("lifecycle: set initial volume: %v", err)
		}

		rx := ingress.New(c.deps.LocalAddrs, snapshot.NetworkCheckIntervalMs, buf, c.clock, snapshot.SampleRate, c.deps.Counters)
		if err := rx.Start(snapshot.Port); err != nil {
			return fmt.Errorf("lifecycle: start ingress: %w", err)
		}

		pump := newPCMPump(c, buf, snapshot.SilenceThresholdMs)
		pump.start()

		c.mu.Lock()
		c.buf, c.rx, c.sink, c.pump = buf, rx, sink, pump
		c.mu.Unlock()
		c.silenceSince = masterclock.Monotonic()
		c.isSilent = false

	case ModeSenderUsb, ModeSenderSpdif:
		source := c.deps.UsbSource
		if target == ModeSenderSpdif {
			source = c.deps.SpdifSource
		}
		if err := source.Initialize(); err != nil {
			return fmt.Errorf("lifecycle: initialize source: %w", err)
		}
		cfg := audioio.StreamConfig{Channels: 2, BitResolution: int(snapshot.BitDepth), SampleRateHz: snapshot.SampleRate}
		if err := source.Start(cfg); err != nil {
			return fmt.Errorf("lifecycle: start source: %w", err)
		}

		streamSSRC, err := ssrc.FromMAC(c.deps.LocalMAC)
		if err != nil {
			return fmt.Errorf("lifecycle: derive ssrc: %w", err)
		}
		tx := egress.New(streamSSRC, chunkSize, samplesPerChunk, defaultPayloadType, source, c.deps.Counters)
		destIP := net.ParseIP(snapshot.SenderDestinationIP)
		if destIP == nil {
			destIP = net.IPv4bcast
		}
		if err := tx.Start(destIP, snapshot.SenderDestinationPort); err != nil {
			return fmt.Errorf("lifecycle: start egress: %w", err)
		}

		c.mu.Lock()
		c.tx, c.source = tx, source
		c.mu.Unlock()

	default:
		return fmt.Errorf("lifecycle: %s is not a mode state", target)
	}

	c.setState(target)
	return nil
}

// stopMode tears down the currently active mode's pipeline: the PCM pump
// first, then ingress/egress and the audio adapter concurrently.
func (c *Controller) stopMode() error {
	c.mu.Lock()
	rx, tx, sink, source, pump := c.rx, c.tx, c.sink, c.source, c.pump
	c.rx, c.tx, c.sink, c.source, c.buf, c.pump = nil, nil, nil, nil, nil, nil
	c.mu.Unlock()

	if pump != nil {
		pump.stop()
	}

	// rx/tx and sink/source belong to mutually exclusive pipelines (only
	// one mode is ever active), but neither teardown path depends on the
	// other, so they run concurrently and join on a single errgroup
	// rather than serialize two independent shutdown waits.
	var g errgroup.Group
	g.Go(func() error {
		if rx != nil {
			if err := rx.Stop(); err != nil {
				log.Errorf("lifecycle: stop ingress: %v", err)
			}
		}
		if tx != nil {
			if err := tx.Stop(); err != nil {
				log.Errorf("lifecycle: stop egress: %v", err)
			}
		}
		return nil
	})
	g.Go(func() error {
		if sink != nil {
			if err := sink.Stop(); err != nil {
				log.Errorf("lifecycle: stop sink: %v", err)
			}
			_ = sink.Deinitialize()
		}
		if source != nil {
			if err := source.Stop(); err != nil {
				log.Errorf("lifecycle: stop source: %v", err)
			}
			_ = source.Deinitialize()
		}
		return nil
	})
	_ = g.Wait()
	return nil
}

// restartMode stops the current mode and starts target, per the
// device_mode delta action.
func (c *Controller) restartMode(target State) error {
	if isModeState(c.State()) {
		if err := c.stopMode(); err != nil {
			return err
		}
	}
	return c.startMode(target)
}
