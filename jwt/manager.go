package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind tags a bearer token as either an access or a refresh
// credential. The kind is carried inside the signed claims and checked
// at decode time, so call sites never branch on raw claim strings.
type TokenKind uint8

const (
	// KindUnknown marks a token whose kind claim is missing or invalid.
	KindUnknown TokenKind = iota
	// KindAccess is a short-lived bearer credential presented on every
	// protected request.
	KindAccess
	// KindRefresh is a long-lived credential used only to obtain a new
	// token pair.
	KindRefresh
)

const (
	kindClaimAccess  = "access"
	kindClaimRefresh = "refresh"
)

func (k TokenKind) String() string {
	switch k {
	case KindAccess:
		return kindClaimAccess
	case KindRefresh:
		return kindClaimRefresh
	default:
		return "unknown"
	}
}

var (
	// ErrMalformed is returned when a token cannot be parsed or carries
	// an unexpected claim shape.
	ErrMalformed = errors.New("malformed token")
	// ErrExpired is returned when a token's exp claim has passed.
	ErrExpired = errors.New("token expired")
	// ErrBadSignature is returned when the signature does not verify.
	ErrBadSignature = errors.New("bad token signature")
	// ErrKindMismatch is returned when a token of one kind is presented
	// where the other kind is required.
	ErrKindMismatch = errors.New("token kind mismatch")
)

// SigningMethod selects the signature algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Curve25519.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 using a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// Config holds signer configuration. Instances are set once at startup
// and treated as immutable afterwards.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
}

// Claims is the decoded content of a goSession bearer token.
type Claims struct {
	Subject        string
	TenantID       string
	Role           string
	AccountVersion uint32
	FamilyID       string
	TokenID        string
	Kind           TokenKind
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

type wireClaims struct {
	TenantID       string `json:"tid,omitempty"`
	Role           string `json:"role,omitempty"`
	AccountVersion uint32 `json:"av,omitempty"`
	FamilyID       string `json:"fid"`
	Kind           string `json:"knd"`
	jwt.RegisteredClaims
}

// Manager performs stateless encode and decode of bearer tokens. It
// verifies signature and expiry only; sessions, blacklists, and
// revocation are layered on top by the engine.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a key of at least 32 bytes")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// EncodeAccess signs an access token for c, stamping kind, iat and exp.
// c.TokenID and c.FamilyID must already be set by the caller.
func (m *Manager) EncodeAccess(c Claims) (string, error) {
	return m.encode(c, KindAccess, m.config.AccessTTL)
}

// EncodeRefresh signs a refresh token for c with the long refresh TTL.
func (m *Manager) EncodeRefresh(c Claims) (string, error) {
	return m.encode(c, KindRefresh, m.config.RefreshTTL)
}

func (m *Manager) encode(c Claims, kind TokenKind, ttl time.Duration) (string, error) {
	if c.FamilyID == "" || c.TokenID == "" {
		return "", errors.New("claims missing family or token id")
	}

	now := time.Now()
	wc := wireClaims{
		TenantID:       c.TenantID,
		Role:           c.Role,
		AccountVersion: c.AccountVersion,
		FamilyID:       c.FamilyID,
		Kind:           kind.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			ID:        c.TokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		wc.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method(), wc)

	signKey, err := m.signKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(signKey)
}

// DecodeAccess parses and verifies an access token. A structurally valid
// refresh token fails with ErrKindMismatch.
func (m *Manager) DecodeAccess(tokenStr string) (*Claims, error) {
	return m.decode(tokenStr, KindAccess, true)
}

// DecodeRefresh parses and verifies a refresh token.
func (m *Manager) DecodeRefresh(tokenStr string) (*Claims, error) {
	return m.decode(tokenStr, KindRefresh, true)
}

// DecodeForRevocation parses an access token while tolerating an expired
// exp claim. The signature is still verified. Logout uses this to
// recover the token id and remaining lifetime from a token that may have
// just crossed its expiry.
func (m *Manager) DecodeForRevocation(tokenStr string) (*Claims, error) {
	return m.decode(tokenStr, KindAccess, false)
}

func (m *Manager) decode(tokenStr string, want TokenKind, checkExpiry bool) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
	}
	if !checkExpiry {
		options = append(options, jwt.WithoutClaimsValidation())
	} else {
		if m.config.Leeway > 0 {
			options = append(options, jwt.WithLeeway(m.config.Leeway))
		}
		if m.config.Issuer != "" {
			options = append(options, jwt.WithIssuer(m.config.Issuer))
		}
		if m.config.Audience != "" {
			options = append(options, jwt.WithAudience(m.config.Audience))
		}
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &wireClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.verifyKey()
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	wc, ok := token.Claims.(*wireClaims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}

	var kind TokenKind
	switch wc.Kind {
	case kindClaimAccess:
		kind = KindAccess
	case kindClaimRefresh:
		kind = KindRefresh
	default:
		return nil, ErrMalformed
	}
	if kind != want {
		return nil, ErrKindMismatch
	}

	if wc.FamilyID == "" || wc.ID == "" || wc.Subject == "" {
		return nil, ErrMalformed
	}
	if wc.IssuedAt != nil && m.config.MaxFutureIAT > 0 {
		if wc.IssuedAt.Time.After(time.Now().Add(m.config.MaxFutureIAT)) {
			return nil, ErrMalformed
		}
	}

	c := &Claims{
		Subject:        wc.Subject,
		TenantID:       wc.TenantID,
		Role:           wc.Role,
		AccountVersion: wc.AccountVersion,
		FamilyID:       wc.FamilyID,
		TokenID:        wc.ID,
		Kind:           kind,
	}
	if wc.IssuedAt != nil {
		c.IssuedAt = wc.IssuedAt.Time
	}
	if wc.ExpiresAt != nil {
		c.ExpiresAt = wc.ExpiresAt.Time
	}

	return c, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	default:
		return ErrMalformed
	}
}

func (m *Manager) method() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) signKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) verifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
