package lifecycle

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/netham45/rtpbridge/internal/jitter"
	"github.com/netham45/rtpbridge/internal/masterclock"
)

// silenceAnomalyThresholdMs discards silence durations above this value
// as a clock anomaly rather than a genuine long silence.
const silenceAnomalyThresholdMs = 30000

// pcmPump is the single receiver-mode worker that drains the jitter
// buffer on schedule and writes to the active sink, tracking continuous
// silence to drive EnterSleep.
type pcmPump struct {
	c            *Controller
	buf          *jitter.Buffer
	silenceLimit uint32 // silence_threshold_ms; updated on config change
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

func newPCMPump(c *Controller, buf *jitter.Buffer, silenceThresholdMs uint32) *pcmPump {
	return &pcmPump{c: c, buf: buf, silenceLimit: silenceThresholdMs, stopCh: make(chan struct{})}
}

func (p *pcmPump) start() {
	p.wg.Add(1)
	go p.run()
}

func (p *pcmPump) stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *pcmPump) run() {
	defer p.wg.Done()

	var silenceStart time.Time
	isSilent := false

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		result, chunk, _ := p.buf.PopTimed(p.c.clock.NowMs())
		switch result {
		case jitter.Ready:
			if isSilent {
				isSilent = false
			}
			p.c.mu.Lock()
			sink := p.c.sink
			p.c.mu.Unlock()
			if sink != nil {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				if err := sink.Write(ctx, chunk, time.Second); err != nil {
					log.Warningf("lifecycle: pcm pump sink write failed: %v", err)
				}
				cancel()
			}
		case jitter.NotYet:
			time.Sleep(time.Millisecond)
		case jitter.Empty:
			now := masterclock.Monotonic()
			if !isSilent {
				isSilent = true
				silenceStart = now
			}
			elapsed := now.Sub(silenceStart).Milliseconds()
			if elapsed > silenceAnomalyThresholdMs {
				// Clock anomaly: reset rather than treat as genuine
				// silence.
				silenceStart = now
				elapsed = 0
			}
			if uint32(elapsed) >= p.silenceLimit {
				p.c.Post(Event{Type: EvEnterSleep})
			}
			time.Sleep(time.Millisecond)
		}
	}
}
