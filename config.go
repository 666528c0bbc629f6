package gosession

import (
	"errors"
	"time"
)

// Config carries all engine configuration. Instances are set up once,
// validated by Build, and treated as immutable afterwards.
type Config struct {
	JWT        JWTConfig
	Device     DeviceConfig
	Session    SessionConfig
	Blacklist  BlacklistConfig
	Revocation RevocationConfig
	Audit      AuditConfig
	Metrics    MetricsConfig

	// ProductionMode tightens every availability/security trade-off:
	// blacklist and revocation lookups fail closed, and Validate
	// rejects missing signing or pepper material outright.
	ProductionMode bool
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the token signer.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
DEVICE CONFIG
====================================
*/

// DeviceConfig configures device binding.
type DeviceConfig struct {
	// Pepper keys the device-secret hash. 32 to 64 bytes. Required in
	// production mode.
	Pepper []byte
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the family store.
type SessionConfig struct {
	RedisPrefix string

	// MaxSessionsPerTenant caps live families per tenant; the
	// least-recently-used family is revoked when the cap is exceeded.
	// Zero disables the cap.
	MaxSessionsPerTenant int
}

/*
====================================
BLACKLIST CONFIG
====================================
*/

// BlacklistConfig configures access-token revocation.
type BlacklistConfig struct {
	// FailOpen overrides the production default of failing closed on
	// backend errors. Ignored (always closed) when ProductionMode is
	// set.
	FailOpen bool
}

/*
====================================
REVOCATION CACHE CONFIG
====================================
*/

// RevocationConfig configures the read-through revoked-family cache.
type RevocationConfig struct {
	// CacheTTL bounds how stale a revocation decision can be. Keep it
	// in single-digit seconds; writes eagerly invalidate anyway.
	CacheTTL time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig configures the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

const (
	defaultAccessTTL     = 15 * time.Minute
	defaultRefreshTTL    = 7 * 24 * time.Hour
	defaultRevocationTTL = 5 * time.Second
	maxRevocationTTL     = 30 * time.Second
)

// DefaultConfig returns a development-friendly baseline: ed25519 with
// caller-supplied keys, short access tokens, week-long refresh, 5s
// revocation cache, no session cap.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     defaultAccessTTL,
			RefreshTTL:    defaultRefreshTTL,
			SigningMethod: "ed25519",
		},
		Session: SessionConfig{
			RedisPrefix: "gs",
		},
		Revocation: RevocationConfig{
			CacheTTL: defaultRevocationTTL,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks cross-field consistency. Production mode turns weak
// or absent secret material into hard startup failures.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT.AccessTTL must be positive")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT.RefreshTTL must be positive")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT.RefreshTTL must not be shorter than JWT.AccessTTL")
	}

	switch c.JWT.SigningMethod {
	case "ed25519", "hs256":
	default:
		return errors.New("JWT.SigningMethod must be ed25519 or hs256")
	}

	if len(c.JWT.PrivateKey) == 0 {
		return errors.New("JWT.PrivateKey required")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("JWT.PublicKey required for ed25519")
	}

	if c.ProductionMode {
		if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
			return errors.New("production mode requires an hs256 key of at least 32 bytes")
		}
		if len(c.Device.Pepper) == 0 {
			return errors.New("production mode requires Device.Pepper")
		}
	}
	if len(c.Device.Pepper) > 0 && (len(c.Device.Pepper) < 32 || len(c.Device.Pepper) > 64) {
		return errors.New("Device.Pepper must be 32 to 64 bytes")
	}

	if c.Session.MaxSessionsPerTenant < 0 {
		return errors.New("Session.MaxSessionsPerTenant must not be negative")
	}

	if c.Revocation.CacheTTL < 0 {
		return errors.New("Revocation.CacheTTL must not be negative")
	}
	if c.Revocation.CacheTTL > maxRevocationTTL {
		return errors.New("Revocation.CacheTTL too large; revocations must propagate quickly")
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Device.Pepper = cloneBytes(cfg.Device.Pepper)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
