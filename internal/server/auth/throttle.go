package auth

import (
	"sync"
	"time"
)

// failureRecord tracks failed logins from one source IP.
type failureRecord struct {
	count       int
	lastAttempt time.Time
}

// Throttle blocks further login attempts from an IP once it accumulates
// maxFailures within a single UTC calendar day. The counter resets when the
// day rolls over, so a block lasts until UTC midnight at most.
type Throttle struct {
	mu          sync.Mutex
	failures    map[string]*failureRecord
	maxFailures int
	now         func() time.Time
}

// NewThrottle creates a throttle that blocks after maxFailures failed
// attempts per UTC day.
func NewThrottle(maxFailures int) *Throttle {
	return &Throttle{
		failures:    make(map[string]*failureRecord),
		maxFailures: maxFailures,
		now:         time.Now,
	}
}

// Blocked reports whether ip has exhausted its attempts for the current UTC
// day.
func (t *Throttle) Blocked(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.failures[ip]
	if !ok {
		return false
	}
	if !sameUTCDay(rec.lastAttempt, t.now()) {
		delete(t.failures, ip)
		return false
	}
	return rec.count >= t.maxFailures
}

// RecordFailure counts one failed attempt from ip.
func (t *Throttle) RecordFailure(ip string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	rec, ok := t.failures[ip]
	if !ok || !sameUTCDay(rec.lastAttempt, now) {
		t.failures[ip] = &failureRecord{count: 1, lastAttempt: now}
		return
	}
	rec.count++
	rec.lastAttempt = now
}

// Clear wipes the failure record for ip after a successful login.
func (t *Throttle) Clear(ip string) {
	t.mu.Lock()
	delete(t.failures, ip)
	t.mu.Unlock()
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
