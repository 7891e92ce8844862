package sessionkit

import (
	"errors"
	"time"

	"github.com/halcyonlabs/sessionkit/federated"
	"github.com/halcyonlabs/sessionkit/internal/rate"
	"github.com/halcyonlabs/sessionkit/token"
	"github.com/halcyonlabs/sessionkit/validate"
)

// Builder assembles an [Engine]. It is single-use: Build may be called once,
// and the builder must not be reused afterwards.
//
//	engine, err := sessionkit.New().
//		WithProvider(provider).
//		WithSecureStore(store).
//		Build()
type Builder struct {
	config      Config
	provider    IdentityProvider
	secureStore token.SecureStore
	directory   federated.AccountDirectory
	auditSink   AuditSink

	navigator Navigator
	cache     CacheInvalidator
	syncCtl   SyncController
	timers    TimerController

	now      func() time.Time
	schedule func(d time.Duration, fn func()) (cancel func())

	built bool
}

// New returns a builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the entire configuration. The builder keeps its own
// copy, so later mutation of cfg by the caller has no effect.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithProvider sets the identity provider. Required.
func (b *Builder) WithProvider(provider IdentityProvider) *Builder {
	b.provider = provider
	return b
}

// WithSecureStore sets the durable store for the refresh token. Required.
func (b *Builder) WithSecureStore(store token.SecureStore) *Builder {
	b.secureStore = store
	return b
}

// WithAccountDirectory enables account linking. Without it the linking
// operations return [ErrEngineNotReady].
func (b *Builder) WithAccountDirectory(directory federated.AccountDirectory) *Builder {
	b.directory = directory
	return b
}

// WithAuditSink sets the destination for audit events. Only consulted when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithNavigator sets the navigation collaborator for the coordination bridge.
func (b *Builder) WithNavigator(nav Navigator) *Builder {
	b.navigator = nav
	return b
}

// WithCacheInvalidator sets the cache collaborator for the coordination
// bridge.
func (b *Builder) WithCacheInvalidator(cache CacheInvalidator) *Builder {
	b.cache = cache
	return b
}

// WithSyncController sets the sync collaborator for the coordination bridge.
func (b *Builder) WithSyncController(syncCtl SyncController) *Builder {
	b.syncCtl = syncCtl
	return b
}

// WithTimerController sets the timer collaborator for the coordination
// bridge.
func (b *Builder) WithTimerController(timers TimerController) *Builder {
	b.timers = timers
	return b
}

// WithClock overrides the engine's time source. Test hook.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithScheduler overrides the one-shot timer used for auto-refresh. The
// returned cancel function must stop the pending call. Test hook.
func (b *Builder) WithScheduler(schedule func(d time.Duration, fn func()) (cancel func())) *Builder {
	b.schedule = schedule
	return b
}

// Build validates the configuration and assembles the engine. When all four
// bridge collaborators were provided as nil the bridge is skipped entirely;
// otherwise it is constructed and subscribed before Build returns, so no
// transition can slip past it.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("sessionkit: builder already used")
	}
	b.built = true

	if b.provider == nil {
		return nil, errors.New("sessionkit: identity provider is required")
	}
	if b.secureStore == nil {
		return nil, errors.New("sessionkit: secure store is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	schedule := b.schedule
	if schedule == nil {
		schedule = defaultSchedule
	}

	cfg := cloneConfig(b.config)

	e := &Engine{
		config:   cfg,
		provider: b.provider,
		tokens: token.NewStore(b.secureStore, token.Config{
			RefreshLeadTime: cfg.Token.RefreshLeadTime,
			StorageKey:      cfg.Token.StorageKey,
		}, now),
		limiter: rate.New(rate.Config{
			Window:            cfg.RateLimit.Window,
			MaxAttempts:       cfg.RateLimit.MaxAttempts,
			BaseLockout:       cfg.RateLimit.BaseLockout,
			BackoffMultiplier: cfg.RateLimit.BackoffMultiplier,
			MaxLockout:        cfg.RateLimit.MaxLockout,
		}, now),
		mapper: NewErrorMapper(cfg.Retry),
		flow: federated.NewFlow(federated.Config{
			Claims: federated.ClaimsConfig{
				Issuer:   cfg.Federated.Issuer,
				Audience: cfg.Federated.Audience,
			},
			Nonce: federated.NonceConfig{
				TTL:       cfg.Federated.NonceTTL,
				Freshness: cfg.Federated.NonceFreshness,
			},
			RelayDomains: cfg.Federated.RelayDomains,
		}, now),
		metrics: NewMetrics(cfg.Metrics.Enabled),
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		policy: validate.PasswordPolicy{
			MinLength:     cfg.Password.MinLength,
			MaxLength:     cfg.Password.MaxLength,
			RequireUpper:  cfg.Password.RequireUpper,
			RequireLower:  cfg.Password.RequireLower,
			RequireDigit:  cfg.Password.RequireDigit,
			RequireSymbol: cfg.Password.RequireSymbol,
			TargetLength:  cfg.Password.TargetLength,
		},
		now:      now,
		schedule: schedule,
	}
	e.bus = newTransitionBus(e.reportListenerFailure)
	e.state.Store(&AuthState{Phase: PhaseAnonymous})

	if b.directory != nil {
		e.linker = federated.NewLinker(b.directory)
	}

	if b.navigator != nil || b.cache != nil || b.syncCtl != nil || b.timers != nil {
		bridge := NewBridge(cfg.Bridge, b.navigator, b.cache, b.syncCtl, b.timers, func(stage string, err error) {
			e.reportListenerFailure(errors.New("bridge " + stage + ": " + err.Error()))
		})
		e.bus.subscribe(bridge.HandleTransition)
	}

	return e, nil
}
