package authcore

import (
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bizware/authcore/internal/csrf"
	"github.com/bizware/authcore/internal/rate"
	"github.com/bizware/authcore/jwt"
	"github.com/bizware/authcore/password"
	"github.com/bizware/authcore/store"
	"github.com/bizware/authcore/store/memory"
)

// Builder assembles an [Engine]. Configure it during startup and call Build
// exactly once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts store.AccountStore
	refresh  store.RefreshStore
	activity store.ActivityStore

	sink          ActivitySink
	logger        *slog.Logger
	attackHandler func(AttackSignal)

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the full configuration. Zero-valued fields are filled
// from [DefaultConfig] at Build time; the secrets have no default. The
// Enabled flags are not filled: false means off, so start from
// [DefaultConfig] when overriding individual fields.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis supplies the shared counter store. Without it the limiter and the
// CSRF guard run purely in-process, which only enforces per-instance limits.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAccountStore(s store.AccountStore) *Builder {
	b.accounts = s
	return b
}

func (b *Builder) WithRefreshStore(s store.RefreshStore) *Builder {
	b.refresh = s
	return b
}

// WithActivityStore persists activity entries through the given store. It is
// sugar for WithActivitySink(NewStoreSink(s, logger)).
func (b *Builder) WithActivityStore(s store.ActivityStore) *Builder {
	b.activity = s
	return b
}

// WithActivitySink adds a sink alongside any configured activity store.
func (b *Builder) WithActivitySink(sink ActivitySink) *Builder {
	b.sink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAttackHandler registers a callback for derived attack signals. The
// handler runs on the limiter's goroutine and must not block.
func (b *Builder) WithAttackHandler(fn func(AttackSignal)) *Builder {
	b.attackHandler = fn
	return b
}

func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if b.refresh == nil {
		return nil, errors.New("refresh token store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:        cfg,
		accounts:      b.accounts,
		refresh:       b.refresh,
		activity:      b.activity,
		metrics:       NewMetrics(cfg.Metrics),
		logger:        logger,
		attackHandler: b.attackHandler,
		now:           time.Now,
	}

	// The shared store is primary; a redis outage fails over to in-process
	// counters rather than letting limits lapse.
	var counters rate.Store = rate.NewMemoryStore()
	if b.redis != nil {
		engine.failover = rate.NewFailover(
			rate.NewRedisStore(b.redis),
			counters,
			cfg.RateLimit.FailoverCooldown,
			logger,
		)
		counters = engine.failover
	}
	engine.limiter = rate.New(counters, cfg.rateConfig(), engine.handleSignal, logger)

	engine.csrf = csrf.New(b.redis, cfg.CSRF.TTL, logger)

	jm, err := jwt.NewManager(jwt.Config{
		Secret:    cfg.Token.AccessSecret,
		AccessTTL: cfg.Token.AccessTTL,
		Issuer:    cfg.Token.Issuer,
	})
	if err != nil {
		return nil, err
	}
	engine.tokens = jm

	engine.hasher = password.NewHasher(cfg.PasswordCost)

	sink := b.sink
	if b.activity != nil {
		ss := NewStoreSink(b.activity, logger)
		if sink != nil {
			sink = multiSink{ss, sink}
		} else {
			sink = ss
		}
	}
	engine.audit = newActivityDispatcher(cfg.Audit, sink)

	if cfg.SweepInterval > 0 {
		engine.sweepStop = make(chan struct{})
		engine.sweepWG.Add(1)
		go engine.sweepLoop(cfg.SweepInterval)
	}

	b.built = true

	return engine, nil
}

// NewMemoryEngine wires an engine over in-memory stores. Meant for tests and
// local development.
func NewMemoryEngine(cfg Config) (*Engine, error) {
	return New().
		WithConfig(cfg).
		WithAccountStore(memory.NewAccountStore()).
		WithRefreshStore(memory.NewRefreshStore()).
		WithActivityStore(memory.NewActivityStore()).
		Build()
}
