// Package lifecycle holds shared process state for graceful shutdown.
package lifecycle

import "sync/atomic"

// Lifecycle reports whether the gateway is draining. Readiness flips to 503
// while draining so load balancers stop routing new sessions here.
type Lifecycle struct {
	draining atomic.Bool
}

func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}
