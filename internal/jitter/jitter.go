// Package jitter implements the bounded ring jitter buffer with timed
// playout described by the core's buffering contract: a fixed-capacity
// ring of audio chunks, each annotated with a scheduled playout deadline
// on the master clock, with adaptive underrun recovery.
package jitter

import (
	"sync"
)

// MinFutureBufferMs is the minimum amount of scheduled-future audio the
// buffer must hold, in synchronized mode, before it is considered to have
// exited underrun.
const MinFutureBufferMs = 40

// MaxPlayoutDelayMs sets how far behind schedule a chunk may be before
// the strict playout policy drops it instead of playing it late: the drop
// threshold is MaxPlayoutDelayMs/2.
const MaxPlayoutDelayMs = 200

// hasSyncUpperBound mirrors the spec's has_sync validity window:
// 2^64 - 2^32. Values at or above this are treated as implausible and the
// chunk is played back unsynchronized.
const hasSyncUpperBound = uint64(1)<<64 - uint64(1)<<32

// Policy selects how PopTimed behaves when a chunk is found to be more
// than MaxPlayoutDelayMs/2 behind schedule.
type Policy int

const (
	// PolicyStrict drops a chunk that missed its deadline by more than
	// MaxPlayoutDelayMs/2 and reports NotYet for the caller to retry.
	PolicyStrict Policy = iota
	// PolicyAdaptive returns the late chunk anyway rather than drop it.
	PolicyAdaptive
)

// Result is the outcome of a PopTimed call.
type Result int

const (
	// Empty means the ring currently holds no chunks; the buffer has
	// just entered (or remains in) underrun.
	Empty Result = iota
	// NotYet means a chunk exists but its playout deadline has not
	// arrived yet, or the buffer is still in underrun recovery; the
	// caller should sleep briefly and retry.
	NotYet
	// Ready means a chunk was returned and read_pos advanced past it.
	Ready
)

type meta struct {
	playoutMs   uint64
	rtpTS       uint32
	hasSync     bool
	skipBytes   int
}

// Config shapes the buffer's capacity and growth behavior.
type Config struct {
	ChunkSize         int
	MaxBufferSize     int // ring capacity, in chunks
	InitialBufferSize int // starting target_buffer_size, in chunks
	GrowStepSize      int
	MaxGrowSize       int
}

// Buffer is the mutex-protected bounded ring of (chunk, metadata) pairs.
type Buffer struct {
	mu sync.Mutex

	chunkSize     int
	maxBufferSize int
	growStepSize  int
	maxGrowSize   int
	policy        Policy

	ring  []byte
	metas []meta

	size             int
	readPos          int
	targetBufferSize int
	isUnderrun       bool
	receivedPackets  int
}

// New allocates a ring of cfg.MaxBufferSize*cfg.ChunkSize bytes plus a
// parallel metadata array, per the "single contiguous allocation, no
// per-slot pointer" design note. New returns an error only if the
// requested capacity can't be allocated.
func New(cfg Config, policy Policy) (*Buffer, error) {
	if cfg.ChunkSize <= 0 || cfg.MaxBufferSize <= 0 {
		return nil, errInvalidCapacity
	}
	target := cfg.InitialBufferSize
	if target <= 0 {
		target = 1
	}
	if target > cfg.MaxBufferSize {
		target = cfg.MaxBufferSize
	}

	b := &Buffer{
		chunkSize:        cfg.ChunkSize,
		maxBufferSize:    cfg.MaxBufferSize,
		growStepSize:     cfg.GrowStepSize,
		maxGrowSize:      cfg.MaxGrowSize,
		policy:           policy,
		ring:             make([]byte, cfg.MaxBufferSize*cfg.ChunkSize),
		metas:            make([]meta, cfg.MaxBufferSize),
		targetBufferSize: target,
		isUnderrun:       true, // starts empty, which is underrun by definition
	}
	return b, nil
}

var errInvalidCapacity = bufferError("jitter: chunk size and max buffer size must be positive")

type bufferError string

func (e bufferError) Error() string { return string(e) }

// Push enqueues chunk with no playout deadline (played back immediately).
// It is equivalent to PushWithSkip(chunk, 0, rtpTS, 0).
func (b *Buffer) Push(chunk []byte, rtpTS uint32) bool {
	return b.PushWithSkip(chunk, 0, rtpTS, 0)
}

// PushWithDeadline enqueues chunk with an explicit master-clock playout
// deadline in milliseconds.
func (b *Buffer) PushWithDeadline(chunk []byte, playoutMs uint64, rtpTS uint32) bool {
	return b.PushWithSkip(chunk, playoutMs, rtpTS, 0)
}

// PushWithSkip enqueues chunk with a playout deadline and a skip-bytes
// prefix (bytes to discard when rendering, e.g. to resync mid-chunk).
//
// On overflow (ring already full) the new chunk is discarded, the target
// grows by one step (as on an underrun), size is reset to the grown
// target_buffer_size, and false is returned — the ring contents are
// otherwise left unchanged, per B2.
func (b *Buffer) PushWithSkip(chunk []byte, playoutMs uint64, rtpTS uint32, skipBytes int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(chunk) != b.chunkSize {
		return false
	}

	if b.size == b.maxBufferSize {
		// Overflow: the producer is outrunning the consumer just as
		// surely as an underrun means the opposite, so it grows the
		// target the same way.
		b.growTarget()
		b.size = b.targetBufferSize
		return false
	}

	slot := (b.readPos + b.size) % b.maxBufferSize
	copy(b.ring[slot*b.chunkSize:(slot+1)*b.chunkSize], chunk)

	hasSync := playoutMs > 0 && playoutMs < hasSyncUpperBound
	if skipBytes < 0 {
		skipBytes = 0
	}
	if skipBytes > b.chunkSize {
		skipBytes = b.chunkSize
	}
	b.metas[slot] = meta{
		playoutMs: playoutMs,
		rtpTS:     rtpTS,
		hasSync:   hasSync,
		skipBytes: skipBytes,
	}

	b.size++
	b.receivedPackets++

	if b.isUnderrun && b.exitUnderrunLocked() {
		b.isUnderrun = false
	}

	return true
}

// growTarget grows target_buffer_size by growStepSize, clamped to
// maxGrowSize and to the ring capacity. It runs on the transition from
// having data to empty (entering underrun) and on overflow.
func (b *Buffer) growTarget() {
	grown := b.targetBufferSize + b.growStepSize
	cap := b.maxGrowSize
	if cap <= 0 {
		cap = b.maxBufferSize
	}
	if grown > cap {
		grown = cap
	}
	if grown > b.maxBufferSize {
		grown = b.maxBufferSize
	}
	b.targetBufferSize = grown
}

// exitUnderrunLocked reports whether the buffer currently satisfies
// either underrun-exit condition. Callers must hold mu.
func (b *Buffer) exitUnderrunLocked() bool {
	if b.receivedPackets >= b.targetBufferSize {
		return true
	}
	if b.size == 0 {
		return false
	}
	head := b.metas[b.readPos]
	if !head.hasSync {
		return false
	}
	// Synchronized mode: the buffer exits underrun once it covers at
	// least MinFutureBufferMs of wall-clock-future audio, approximated
	// here by the spread between the oldest and newest deadlines.
	tail := b.metas[(b.readPos+b.size-1)%b.maxBufferSize]
	if !tail.hasSync {
		return false
	}
	return int64(tail.playoutMs)-int64(head.playoutMs) >= MinFutureBufferMs
}

// PopTimed attempts to pop the next chunk, honoring its scheduled
// playout deadline against nowMs (master-clock milliseconds).
func (b *Buffer) PopTimed(nowMs int64) (Result, []byte, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		if !b.isUnderrun {
			// Transition from "has data" to "empty": grow the
			// target so the buffer absorbs a bigger burst next
			// time before it starves the consumer again.
			b.growTarget()
		}
		b.isUnderrun = true
		b.receivedPackets = 0
		return Empty, nil, 0
	}
	if b.isUnderrun {
		return NotYet, nil, 0
	}

	m := b.metas[b.readPos]

	if m.hasSync && plausible(m.playoutMs, nowMs) {
		diff := int64(m.playoutMs) - nowMs
		if diff > 10 {
			return NotYet, nil, 0
		}
		if diff < -MaxPlayoutDelayMs/2 {
			if b.policy == PolicyStrict {
				b.advanceLocked()
				return NotYet, nil, 0
			}
			// adaptive: fall through and return the late chunk
		}
	}

	slot := b.readPos
	chunk := make([]byte, b.chunkSize)
	copy(chunk, b.ring[slot*b.chunkSize:(slot+1)*b.chunkSize])
	if m.skipBytes > 0 && m.skipBytes <= len(chunk) {
		chunk = chunk[m.skipBytes:]
	}
	playout := m.playoutMs
	b.advanceLocked()
	return Ready, chunk, playout
}

// plausible reports whether a playout timestamp is within a sane window
// of nowMs: up to 1s in the past (underflow) or up to 1s in the future.
// Implausible timestamps are treated as "play immediately" by the caller.
func plausible(playoutMs uint64, nowMs int64) bool {
	diff := int64(playoutMs) - nowMs
	return diff >= -1000 && diff <= 1000
}

func (b *Buffer) advanceLocked() {
	b.readPos = (b.readPos + 1) % b.maxBufferSize
	b.size--
}

// Empty resets the buffer to the empty state: size, received_packets,
// and all metadata are zeroed, and the buffer re-enters underrun.
func (b *Buffer) Empty() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emptyLocked()
}

func (b *Buffer) emptyLocked() {
	b.size = 0
	b.receivedPackets = 0
	b.readPos = 0
	for i := range b.metas {
		b.metas[i] = meta{}
	}
	b.isUnderrun = true
}

// Reset is an alias for Empty exposed under the spec's operation name.
func (b *Buffer) Reset() { b.Empty() }

// UpdateGrowthParams atomically reloads the grow-step and grow-cap
// parameters. If the new cap is below the current target, the target is
// clamped down to match.
func (b *Buffer) UpdateGrowthParams(stepSize, maxGrowSize int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.growStepSize = stepSize
	b.maxGrowSize = maxGrowSize
	if maxGrowSize > 0 && b.targetBufferSize > maxGrowSize {
		b.targetBufferSize = maxGrowSize
	}
}

// Size returns the current occupancy.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// TargetBufferSize returns the current high-water mark.
func (b *Buffer) TargetBufferSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.targetBufferSize
}

// IsUnderrun reports whether the buffer is currently in underrun.
func (b *Buffer) IsUnderrun() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isUnderrun
}

// ReceivedPackets returns the count since the last Empty/underrun entry.
func (b *Buffer) ReceivedPackets() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.receivedPackets
}
