// Package rate implements the sliding-window attempt limiter with
// exponential-backoff lockout that gates credential operations.
package rate

import (
	"errors"
	"math"
	"sync"
	"time"
)

var (
	// ErrRateLimited indicates the attempt budget for the window is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrLocked indicates the identifier is under an active lockout.
	ErrLocked = errors.New("identifier locked")
)

// Config holds limiter tuning parameters.
type Config struct {
	Window            time.Duration
	MaxAttempts       int
	BaseLockout       time.Duration
	BackoffMultiplier float64
	MaxLockout        time.Duration
}

// record tracks failed attempts for one identifier. The attempt counter is
// not reset while a lock is active, so repeated violations keep growing the
// lockout exponent.
type record struct {
	attempts     int
	firstAttempt time.Time
	lastAttempt  time.Time
	lockUntil    time.Time
}

// Limiter enforces per-identifier attempt budgets. It is process-local and
// safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	records map[string]*record
	config  Config
	now     func() time.Time
}

// New creates a limiter. The now function exists for tests; pass nil for
// time.Now.
func New(cfg Config, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		records: make(map[string]*record),
		config:  cfg,
		now:     now,
	}
}

// Check reports whether the identifier may attempt. Returns ErrLocked during
// an active lockout and ErrRateLimited when the window budget is spent.
func (l *Limiter) Check(identifier string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[identifier]
	if !ok {
		return nil
	}

	now := l.now()
	if rec.lockUntil.After(now) {
		return ErrLocked
	}
	if l.windowExpired(rec, now) {
		delete(l.records, identifier)
		return nil
	}
	if rec.attempts >= l.config.MaxAttempts {
		return ErrRateLimited
	}
	return nil
}

// RecordFailure counts a failed attempt and arms or extends the lockout once
// the threshold is reached. Lockout duration grows as
// BaseLockout * BackoffMultiplier^(attempts - MaxAttempts).
func (l *Limiter) RecordFailure(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[identifier]
	if !ok || (l.windowExpired(rec, now) && !rec.lockUntil.After(now)) {
		rec = &record{firstAttempt: now}
		l.records[identifier] = rec
	}

	rec.attempts++
	rec.lastAttempt = now

	if rec.attempts >= l.config.MaxAttempts {
		exponent := float64(rec.attempts - l.config.MaxAttempts)
		lockout := time.Duration(float64(l.config.BaseLockout) * math.Pow(l.config.BackoffMultiplier, exponent))
		if l.config.MaxLockout > 0 && lockout > l.config.MaxLockout {
			lockout = l.config.MaxLockout
		}
		rec.lockUntil = now.Add(lockout)
	}
}

// RecordSuccess clears the identifier's record entirely.
func (l *Limiter) RecordSuccess(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, identifier)
}

// RetryAfter returns the remaining lockout, or the time until the window
// resets when the budget is spent without a lock, clamped to >= 0.
func (l *Limiter) RetryAfter(identifier string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[identifier]
	if !ok {
		return 0
	}

	now := l.now()
	if rec.lockUntil.After(now) {
		return rec.lockUntil.Sub(now)
	}
	if rec.attempts >= l.config.MaxAttempts {
		if remaining := rec.firstAttempt.Add(l.config.Window).Sub(now); remaining > 0 {
			return remaining
		}
	}
	return 0
}

// Attempts returns the current windowed attempt count for an identifier.
// Missing records return zero and do not reveal account existence.
func (l *Limiter) Attempts(identifier string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[identifier]
	if !ok {
		return 0
	}
	return rec.attempts
}

// Sweep removes records whose window elapsed without an active lock. Called
// lazily by the engine; safe to call at any time.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, rec := range l.records {
		if l.windowExpired(rec, now) && !rec.lockUntil.After(now) {
			delete(l.records, id)
		}
	}
}

func (l *Limiter) windowExpired(rec *record, now time.Time) bool {
	return now.Sub(rec.firstAttempt) > l.config.Window
}
