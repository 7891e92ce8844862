package sessionkit

import (
	"fmt"
	"log"
)

// Bridge is the single point where lifecycle transitions become side effects
// on dependent subsystems. Every collaborator call is best-effort and
// isolated: a failure or panic in one never prevents the others and never
// aborts the transition.
type Bridge struct {
	config BridgeConfig
	nav    Navigator
	cache  CacheInvalidator
	sync   SyncController
	timers TimerController

	unauthRoutes map[string]struct{}
	report       func(stage string, err error)
}

// NewBridge creates a bridge over the given collaborators. Any collaborator
// may be nil; its side effects are skipped. The report hook receives captured
// failures; pass nil for a log-only default.
func NewBridge(cfg BridgeConfig, nav Navigator, cache CacheInvalidator, syncCtl SyncController, timers TimerController, report func(stage string, err error)) *Bridge {
	if report == nil {
		report = func(stage string, err error) {
			log.Printf("sessionkit: bridge %s failed", stage)
		}
	}

	unauth := make(map[string]struct{}, len(cfg.UnauthenticatedRoutes))
	for _, route := range cfg.UnauthenticatedRoutes {
		unauth[route] = struct{}{}
	}

	return &Bridge{
		config:       cfg,
		nav:          nav,
		cache:        cache,
		sync:         syncCtl,
		timers:       timers,
		unauthRoutes: unauth,
		report:       report,
	}
}

// HandleTransition reacts to one lifecycle event. Registered with
// [Engine.OnTransition]; it always returns nil because collaborator failures
// are captured internally.
func (b *Bridge) HandleTransition(ev LifecycleEvent) error {
	switch ev.Kind {
	case TransitionLogin:
		b.handleLogin(ev)
	case TransitionLogout:
		b.handleLogout(ev)
	case TransitionTokenRefresh:
		b.handleTokenRefresh(ev)
	case TransitionUserUpdate:
		b.handleUserUpdate(ev)
	}
	return nil
}

func (b *Bridge) handleLogin(ev LifecycleEvent) {
	if ev.Identity == nil {
		return
	}

	// Identity change: drop the old principal's footprint before priming the
	// new one, so stale user-scoped data can never bleed across accounts.
	if ev.IdentityChanged() {
		b.purgePrevious(ev.Previous.ID)
	}

	if b.cache != nil {
		b.try("cache.invalidate", func() error { return b.cache.InvalidateUserScoped(ev.Identity.ID) })
	}
	if b.sync != nil {
		b.try("sync.resume", func() error { return b.sync.Resume() })
	}
	if b.timers != nil {
		b.try("timers.start", func() error { return b.timers.StartFor(ev.Identity.ID) })
	}
	if b.nav != nil {
		// Redirect only from an unauthenticated route; never override a
		// caller who already moved elsewhere.
		if _, unauth := b.unauthRoutes[b.currentRoute()]; unauth {
			b.try("nav.authenticated", func() error { return b.nav.NavigateToAuthenticatedRoot() })
		}
	}
}

func (b *Bridge) handleLogout(ev LifecycleEvent) {
	if b.timers != nil {
		b.try("timers.stop", func() error { return b.timers.StopAll() })
	}
	if b.sync != nil {
		b.try("sync.pause", func() error { return b.sync.Pause() })
	}
	if b.cache != nil {
		b.try("cache.clear", func() error { return b.cache.ClearSensitiveEntries() })
	}
	if b.sync != nil && b.config.PurgeOnLogout && ev.Previous != nil {
		b.try("sync.purge", func() error { return b.sync.Purge(ev.Previous.ID) })
	}
	if b.nav != nil {
		b.try("nav.unauthenticated", func() error { return b.nav.NavigateToUnauthenticatedRoot() })
	}
}

// handleTokenRefresh is a no-op for a same-identity refresh. An identity swap
// mid-refresh gets the same purge/invalidate treatment as a login, without a
// navigation change.
func (b *Bridge) handleTokenRefresh(ev LifecycleEvent) {
	if !ev.IdentityChanged() {
		return
	}
	b.purgePrevious(ev.Previous.ID)
	if b.cache != nil {
		b.try("cache.invalidate", func() error { return b.cache.InvalidateUserScoped(ev.Identity.ID) })
	}
}

// handleUserUpdate performs a minimal targeted refresh, never a broad
// invalidation.
func (b *Bridge) handleUserUpdate(ev LifecycleEvent) {
	if b.cache == nil || ev.Identity == nil {
		return
	}
	b.try("cache.invalidate", func() error { return b.cache.InvalidateUserScoped(ev.Identity.ID) })
}

func (b *Bridge) purgePrevious(previousID string) {
	if b.cache != nil {
		b.try("cache.clear", func() error { return b.cache.ClearSensitiveEntries() })
	}
	if b.sync != nil {
		b.try("sync.purge", func() error { return b.sync.Purge(previousID) })
	}
}

func (b *Bridge) currentRoute() string {
	route := ""
	b.try("nav.route", func() error {
		route = b.nav.CurrentRoute()
		return nil
	})
	return route
}

// try runs one collaborator call with panic and error capture.
func (b *Bridge) try(stage string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			b.report(stage, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		b.report(stage, err)
	}
}
