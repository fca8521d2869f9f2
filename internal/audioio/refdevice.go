package audioio

import (
	"context"
	"sync"
	"time"
)

// ReferenceDevice is the Device this core's portable reference build
// injects in place of a real USB Audio Class or S/PDIF silicon driver
// (out of scope here, see package doc). It always reports itself
// connected, discards writes, and reads back silence, giving the
// Lifecycle Controller a real device lifecycle to drive end to end on
// hardware that has no actual audio peripheral wired up.
type ReferenceDevice struct {
	mu  sync.Mutex
	cfg StreamConfig
}

// NewReferenceDevice returns a Device ready for Configure.
func NewReferenceDevice() *ReferenceDevice {
	return &ReferenceDevice{}
}

func (d *ReferenceDevice) Write(ctx context.Context, pcm []byte, timeout time.Duration) (int, error) {
	return len(pcm), nil
}

func (d *ReferenceDevice) Read(ctx context.Context, pcm []byte, timeout time.Duration) (int, error) {
	for i := range pcm {
		pcm[i] = 0
	}
	return len(pcm), nil
}

func (d *ReferenceDevice) Connected() bool { return true }

func (d *ReferenceDevice) Configure(cfg StreamConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
	return nil
}
