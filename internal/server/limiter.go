package server

import "sync"

// AdmissionLimiter bounds the number of simultaneously dispatched
// invocations. Work beyond the cap is refused at the transport layer
// rather than queued unboundedly in memory.
type AdmissionLimiter struct {
	mu       sync.Mutex
	max      int
	inFlight int
}

// NewAdmissionLimiter creates a limiter allowing max concurrent slots.
func NewAdmissionLimiter(max int) *AdmissionLimiter {
	return &AdmissionLimiter{max: max}
}

// TryAcquire claims a slot. It never blocks; a false return means the
// caller must refuse the work.
func (l *AdmissionLimiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight >= l.max {
		return false
	}
	l.inFlight++
	return true
}

// Release returns a previously acquired slot.
func (l *AdmissionLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight > 0 {
		l.inFlight--
	}
}

// InFlight returns the number of currently claimed slots.
func (l *AdmissionLimiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.inFlight
}
