package gosession

import (
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestValidateCatchesBadConfigs(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero access ttl",
			mutate:  func(c *Config) { c.JWT.AccessTTL = 0 },
			wantErr: "AccessTTL",
		},
		{
			name:    "refresh shorter than access",
			mutate:  func(c *Config) { c.JWT.RefreshTTL = time.Minute },
			wantErr: "RefreshTTL",
		},
		{
			name:    "unknown signing method",
			mutate:  func(c *Config) { c.JWT.SigningMethod = "none" },
			wantErr: "SigningMethod",
		},
		{
			name:    "missing signing key",
			mutate:  func(c *Config) { c.JWT.PrivateKey = nil },
			wantErr: "PrivateKey",
		},
		{
			name:    "short pepper",
			mutate:  func(c *Config) { c.Device.Pepper = []byte("short") },
			wantErr: "Pepper",
		},
		{
			name:    "negative session cap",
			mutate:  func(c *Config) { c.Session.MaxSessionsPerTenant = -1 },
			wantErr: "MaxSessionsPerTenant",
		},
		{
			name:    "revocation ttl too large",
			mutate:  func(c *Config) { c.Revocation.CacheTTL = time.Minute },
			wantErr: "CacheTTL",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidateProductionMode(t *testing.T) {
	cfg := testConfig()
	cfg.ProductionMode = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("production config with pepper and strong key: %v", err)
	}

	cfg.Device.Pepper = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected production mode to require a pepper")
	}

	cfg = testConfig()
	cfg.ProductionMode = true
	cfg.JWT.PrivateKey = []byte("weak")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected production mode to reject a short hs256 key")
	}
}

func TestBuilderRequiresBackend(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected build to fail without a backend")
	}
}

func TestBuilderRejectsReuse(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	b := New().WithConfig(testConfig()).WithRedis(rdb)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build on the same builder to fail")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("GOSESSION_ENV", "production")
	t.Setenv("GOSESSION_SIGNING_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("GOSESSION_ACCESS_TTL", "10m")
	t.Setenv("GOSESSION_REFRESH_TTL", "72h")
	t.Setenv("GOSESSION_DEVICE_PEPPER", "test-pepper-test-pepper-test-pep")
	t.Setenv("GOSESSION_MAX_SESSIONS_PER_TENANT", "7")
	t.Setenv("GOSESSION_REVOCATION_CACHE_TTL", "2s")
	t.Setenv("GOSESSION_ISSUER", "sso.example.com")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}

	if !cfg.ProductionMode {
		t.Fatal("expected production mode")
	}
	if cfg.JWT.SigningMethod != "hs256" {
		t.Fatalf("signing method = %q", cfg.JWT.SigningMethod)
	}
	if cfg.JWT.AccessTTL != 10*time.Minute || cfg.JWT.RefreshTTL != 72*time.Hour {
		t.Fatalf("ttls = %v / %v", cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	}
	if cfg.Session.MaxSessionsPerTenant != 7 {
		t.Fatalf("session cap = %d", cfg.Session.MaxSessionsPerTenant)
	}
	if cfg.Revocation.CacheTTL != 2*time.Second {
		t.Fatalf("revocation ttl = %v", cfg.Revocation.CacheTTL)
	}
	if cfg.JWT.Issuer != "sso.example.com" {
		t.Fatalf("issuer = %q", cfg.JWT.Issuer)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("env config should validate: %v", err)
	}
}

func TestConfigFromEnvBadDuration(t *testing.T) {
	t.Setenv("GOSESSION_ACCESS_TTL", "not-a-duration")

	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("expected error for malformed duration")
	}
}

func TestCloneConfigCopiesSecretMaterial(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)

	clone.JWT.PrivateKey[0] ^= 0xFF
	clone.Device.Pepper[0] ^= 0xFF

	if cfg.JWT.PrivateKey[0] == clone.JWT.PrivateKey[0] {
		t.Fatal("private key was not copied")
	}
	if cfg.Device.Pepper[0] == clone.Device.Pepper[0] {
		t.Fatal("pepper was not copied")
	}
}
