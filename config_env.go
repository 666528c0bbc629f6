package gosession

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ConfigFromEnv builds a Config from GOSESSION_* environment variables,
// loading a .env file first when one exists. Unset variables keep the
// DefaultConfig value; Validate still runs at Build time.
//
//	GOSESSION_ENV                      "production" or "development"
//	GOSESSION_SIGNING_METHOD           "hs256" or "ed25519"
//	GOSESSION_SIGNING_SECRET           hs256 shared secret
//	GOSESSION_PRIVATE_KEY              ed25519 private key, PEM
//	GOSESSION_PUBLIC_KEY               ed25519 public key, PEM
//	GOSESSION_ACCESS_TTL               duration, e.g. "15m"
//	GOSESSION_REFRESH_TTL              duration, e.g. "168h"
//	GOSESSION_ISSUER                   iss claim
//	GOSESSION_AUDIENCE                 aud claim
//	GOSESSION_DEVICE_PEPPER            device-hash pepper, 32-64 bytes
//	GOSESSION_MAX_SESSIONS_PER_TENANT  integer, 0 = unlimited
//	GOSESSION_REVOCATION_CACHE_TTL     duration, e.g. "5s"
func ConfigFromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.ProductionMode = os.Getenv("GOSESSION_ENV") == "production"

	if method := os.Getenv("GOSESSION_SIGNING_METHOD"); method != "" {
		cfg.JWT.SigningMethod = method
	}
	if secret := os.Getenv("GOSESSION_SIGNING_SECRET"); secret != "" {
		cfg.JWT.SigningMethod = "hs256"
		cfg.JWT.PrivateKey = []byte(secret)
	}
	if key := os.Getenv("GOSESSION_PRIVATE_KEY"); key != "" {
		cfg.JWT.PrivateKey = []byte(key)
	}
	if key := os.Getenv("GOSESSION_PUBLIC_KEY"); key != "" {
		cfg.JWT.PublicKey = []byte(key)
	}
	cfg.JWT.Issuer = envOr("GOSESSION_ISSUER", cfg.JWT.Issuer)
	cfg.JWT.Audience = envOr("GOSESSION_AUDIENCE", cfg.JWT.Audience)

	var err error
	if cfg.JWT.AccessTTL, err = envDuration("GOSESSION_ACCESS_TTL", cfg.JWT.AccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.JWT.RefreshTTL, err = envDuration("GOSESSION_REFRESH_TTL", cfg.JWT.RefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.Revocation.CacheTTL, err = envDuration("GOSESSION_REVOCATION_CACHE_TTL", cfg.Revocation.CacheTTL); err != nil {
		return Config{}, err
	}

	if pepper := os.Getenv("GOSESSION_DEVICE_PEPPER"); pepper != "" {
		cfg.Device.Pepper = []byte(pepper)
	}

	if raw := os.Getenv("GOSESSION_MAX_SESSIONS_PER_TENANT"); raw != "" {
		max, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("GOSESSION_MAX_SESSIONS_PER_TENANT: %w", err)
		}
		cfg.Session.MaxSessionsPerTenant = max
	}

	return cfg, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}
