// Package masterclock provides the two clock domains this bridge needs:
// a monotonic clock for elapsed-time math (timing loops, silence
// detection) and an NTP-disciplined millisecond clock used for scheduled
// playout deadlines. Per the design notes, elapsed-time math must never
// use a clock that can be stepped by NTP, and playout scheduling must
// never use raw monotonic time (it has no relationship to a peer's clock).
package masterclock

import (
	"sync/atomic"
	"time"
)

// Clock is the NTP-disciplined millisecond clock. It tracks an offset
// from the local wall clock, updated by an external NTP client
// (out of scope for this core; see internal/external).
type Clock struct {
	offsetMs atomic.Int64
	synced   atomic.Bool
}

// New returns a Clock with zero offset and unsynced state.
func New() *Clock {
	return &Clock{}
}

// NowMs returns the current master-clock time in milliseconds.
func (c *Clock) NowMs() int64 {
	return time.Now().UnixMilli() + c.offsetMs.Load()
}

// SetOffset applies a newly disciplined offset, as reported by the NTP
// client when it completes a sync round. It also marks the clock synced.
func (c *Clock) SetOffset(offset time.Duration) {
	c.offsetMs.Store(offset.Milliseconds())
	c.synced.Store(true)
}

// Synced reports whether the clock has ever been disciplined by NTP.
func (c *Clock) Synced() bool {
	return c.synced.Load()
}

// Monotonic returns an elapsed-time reference point safe for timing loops
// and silence detection: it is never affected by NTP steps. Elapsed time
// since a prior call is computed with time.Since/Sub, which Go guarantees
// uses the monotonic reading embedded in time.Time as long as both values
// came from time.Now().
func Monotonic() time.Time {
	return time.Now()
}
