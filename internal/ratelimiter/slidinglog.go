package ratelimiter

import (
	"sync"
	"time"
)

// SlidingLog admits at most `limit` requests per client within any trailing
// window of length `window`, using a per-client log of admitted timestamps.
//
// Locking discipline:
//   - mu guards only the clients map, and is write-locked only when a
//     previously unseen client needs a record. The steady-state decision
//     takes mu as a read lock plus the client's own mutex, so different
//     clients never serialize against each other.
//   - The prune-check-append sequence runs entirely under the client record's
//     mutex. Two concurrent requests from the same client therefore cannot
//     both observe a pre-prune count below the limit and both be admitted
//     past it.
//
// Timestamps come from time.Time's monotonic clock reading, so wall-clock
// adjustments cannot widen or shrink the window.
type SlidingLog struct {
	limit  int
	window time.Duration

	mu      sync.RWMutex
	clients map[string]*clientLog

	// now is replaceable in tests to drive the window deterministically.
	now func() time.Time
}

type clientLog struct {
	mu     sync.Mutex
	stamps []time.Time
}

// NewSlidingLog creates a sliding-log limiter admitting `limit` requests per
// `window` per client IP.
func NewSlidingLog(limit int, window time.Duration) *SlidingLog {
	return &SlidingLog{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientLog),
		now:     time.Now,
	}
}

// Admit reports whether a request from clientIP may proceed, recording its
// timestamp when it may. Rejected attempts are not recorded, so a client
// that keeps retrying is admitted again as soon as the window slides.
func (l *SlidingLog) Admit(clientIP string) bool {
	record := l.record(clientIP)

	record.mu.Lock()
	defer record.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	// Drop stamps at or beyond one full window of age. Stamps are appended
	// in admission order, so the retained suffix starts at the first stamp
	// strictly inside the window.
	keep := 0
	for keep < len(record.stamps) && !record.stamps[keep].After(cutoff) {
		keep++
	}
	record.stamps = record.stamps[keep:]

	if len(record.stamps) >= l.limit {
		return false
	}

	record.stamps = append(record.stamps, now)
	return true
}

// record returns the client's log, creating it on first sight. The
// double-checked insert guarantees concurrent first requests from one IP
// share a single record.
func (l *SlidingLog) record(clientIP string) *clientLog {
	l.mu.RLock()
	record, ok := l.clients[clientIP]
	l.mu.RUnlock()
	if ok {
		return record
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if record, ok = l.clients[clientIP]; ok {
		return record
	}
	record = &clientLog{}
	l.clients[clientIP] = record
	return record
}
