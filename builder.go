package gosession

import (
	"errors"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/blacklist"
	"github.com/MrEthical07/goSession/cache"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/pepper"
	"github.com/MrEthical07/goSession/session"
)

// devPepper keys the device hasher when no pepper is configured.
// Validate rejects this in production mode.
var devPepper = []byte("gosession-development-pepper-0000")

// Builder assembles an Engine. Single use.
type Builder struct {
	config Config

	redis    redis.UniversalClient
	postgres *pgxpool.Pool
	store    session.Store

	tenants   TenantProvider
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis backend used for sessions (unless a
// Postgres pool or explicit store is also given), the blacklist and
// the revocation cache.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPostgres stores sessions in Postgres instead of Redis. The
// blacklist and revocation cache still prefer Redis when one is
// configured, falling back to in-process memory otherwise.
func (b *Builder) WithPostgres(pool *pgxpool.Pool) *Builder {
	b.postgres = pool
	return b
}

// WithSessionStore overrides backend selection with a custom Store.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithTenantProvider wires the tenant status lookup. Without one every
// tenant is treated as active at credential version 1.
func (b *Builder) WithTenantProvider(tp TenantProvider) *Builder {
	b.tenants = tp
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, picks the session store and
// assembles the Engine. Fails fast: a config a production deployment
// must not run with never yields an Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.store
	switch {
	case store != nil:
	case b.postgres != nil:
		store = session.NewPostgresStore(b.postgres)
	case b.redis != nil:
		store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix)
	default:
		return nil, errors.New("session backend required: provide redis, postgres, or a session store")
	}

	var sideCache cache.Cache
	if b.redis != nil {
		sideCache = cache.NewRedis(b.redis)
	} else {
		sideCache = cache.NewMemory()
	}

	pepperKey := cfg.Device.Pepper
	if len(pepperKey) == 0 {
		pepperKey = devPepper
	}
	hasher, err := pepper.New(pepperKey)
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	policy := blacklist.FailClosed
	failOpen := cfg.Blacklist.FailOpen && !cfg.ProductionMode
	if failOpen {
		policy = blacklist.FailOpen
	}

	warn := func(msg string) {
		log.Print("goSession: " + msg)
	}

	engine := &Engine{
		config:     cfg,
		jwtManager: jm,
		store:      store,
		hasher:     hasher,
		blacklist:  blacklist.New(sideCache, policy, log.Printf),
		revocation: newRevocationCache(sideCache, store, cfg.Revocation.CacheTTL, failOpen, warn),
		tenants:    b.tenants,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
	}

	b.built = true

	return engine, nil
}
