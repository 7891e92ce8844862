package sessionkit

import (
	"sync/atomic"
)

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	// MetricSignInSuccess counts successful password sign-ins.
	MetricSignInSuccess MetricID = iota
	// MetricSignInFailure counts failed password sign-ins.
	MetricSignInFailure
	// MetricSignInRateLimited counts sign-ins rejected by the rate limiter.
	MetricSignInRateLimited
	// MetricSignUpSuccess counts successful sign-ups.
	MetricSignUpSuccess
	// MetricSignUpFailure counts failed sign-ups.
	MetricSignUpFailure
	// MetricFederatedSuccess counts successful federated sign-ins.
	MetricFederatedSuccess
	// MetricFederatedFailure counts failed federated sign-ins.
	MetricFederatedFailure
	// MetricFederatedCancelled counts user-cancelled federated attempts.
	MetricFederatedCancelled
	// MetricRefreshSuccess counts successful session refreshes.
	MetricRefreshSuccess
	// MetricRefreshFailure counts failed session refreshes.
	MetricRefreshFailure
	// MetricRefreshRejected counts refreshes rejected by the single-flight
	// guard.
	MetricRefreshRejected
	// MetricAutoLogout counts forced sign-outs after a failed refresh.
	MetricAutoLogout
	// MetricSignOut counts explicit sign-outs.
	MetricSignOut
	// MetricPasswordResetRequest counts password-reset requests.
	MetricPasswordResetRequest
	// MetricListenerFailure counts captured transition-listener failures.
	MetricListenerFailure
	// MetricLinkSuccess counts successful account links.
	MetricLinkSuccess
	// MetricLinkFailure counts failed account links.
	MetricLinkFailure

	metricCount
)

// Metrics is a fixed-size set of atomic counters. Disabled metrics cost a
// single branch per increment.
type Metrics struct {
	enabled  bool
	counters [metricCount]atomic.Uint64
}

// NewMetrics creates the counter set.
func NewMetrics(enabled bool) *Metrics {
	return &Metrics{enabled: enabled}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() map[MetricID]uint64 {
	out := make(map[MetricID]uint64, metricCount)
	if m == nil || !m.enabled {
		return out
	}
	for id := MetricID(0); id < metricCount; id++ {
		out[id] = m.counters[id].Load()
	}
	return out
}
